package engine

import (
	"crashengine/game"
	"crashengine/state"
)

// Settle resolves the main bet, side bet and jackpot of a crashed round. It
// claims the jackpot pool when won; crediting the wallet is left to the caller.
func Settle(r *state.Round, pool *state.JackpotPool, jackpotThreshold float64) game.Settlement {
	var s game.Settlement

	if r.CashedOut && r.Payout != nil {
		s.MainPayout = *r.Payout
	}
	s.Total = s.MainPayout

	// The side-bet stake was taken at placement; a loss credits nothing.
	if side := r.Wager.SideBet; side.Placed() && side.Wins(r.CrashPoint) {
		s.SideBetWon = true
		s.SideBetPayout = r.Wager.SideAmount() * side.Payout
		s.Total += s.SideBetPayout
	}

	if r.JackpotEligible && r.CrashPoint > jackpotThreshold {
		s.JackpotWon = true
		s.JackpotPayout = pool.Claim()
		s.Total += s.JackpotPayout
	}

	return s
}
