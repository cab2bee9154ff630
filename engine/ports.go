package engine

import (
	"context"

	"crashengine/game"
	"crashengine/state"
)

// Store persists the wallet balance and jackpot pool across restarts.
// A missing key reports ok == false.
type Store interface {
	LoadNumber(ctx context.Context, key string) (value float64, ok bool, err error)
	SaveNumber(ctx context.Context, key string, value float64) error
}

// Frame is what a display needs to draw the round after each tick or phase change.
type Frame struct {
	Phase       state.Phase       `json:"phase"`
	Multiplier  float64           `json:"multiplier"`
	Crashed     bool              `json:"crashed"`
	CashedOut   bool              `json:"cashedOut"`
	Payout      *float64          `json:"payout"`
	Sample      *game.Sample      `json:"sample,omitempty"`
	CountdownMs int64             `json:"countdownMs"`
	Balance     float64           `json:"balance"`
	Jackpot     float64           `json:"jackpot"`
	Fairness    game.FairnessData `json:"provablyFair"`
}

// Display receives frames, feed lines and settled rounds. Calls are made without
// the engine lock held and must not block for long.
type Display interface {
	Frame(Frame)
	Feed(line string)
	RoundEnded(game.RoundResult)
}

// ResultSink records settled rounds outside the process (archive, event bus).
type ResultSink interface {
	Record(ctx context.Context, res game.RoundResult) error
}

type nopDisplay struct{}

func (nopDisplay) Frame(Frame)                 {}
func (nopDisplay) Feed(string)                 {}
func (nopDisplay) RoundEnded(game.RoundResult) {}
