package state

import (
	"fmt"
	"sync"
	"time"

	"crashengine/crypto"
	"crashengine/game"
)

// ==============================================================================
// ROUND PHASE
// ==============================================================================

type Phase string

const (
	PhaseLobby   Phase = "LOBBY"
	PhaseBetting Phase = "BETTING"
	PhaseRunning Phase = "RUNNING"
	PhaseEnded   Phase = "ENDED"
)

// ==============================================================================
// ROUND (one play cycle, owned by the engine)
// ==============================================================================
//
// Round carries no lock of its own. The engine holds its mutex around every
// mutator, which is what makes tick and cash-out single atomic steps.

type Wager struct {
	Main    float64      `json:"main"`
	SideBet game.SideBet `json:"sideBet"`
}

func (w Wager) SideAmount() float64 {
	return w.SideBet.Wager(w.Main)
}

// Cost is what placement debits from the wallet.
func (w Wager) Cost() float64 {
	return w.Main + w.SideAmount()
}

type Round struct {
	fairness game.FairnessData
	revealed bool

	Phase      Phase
	CrashPoint float64
	Multiplier float64
	Crashed    bool
	CashedOut  bool
	Payout     *float64

	JackpotEligible bool
	Wager           Wager

	StartedAt  time.Time
	Trajectory []game.Sample

	milestones map[float64]struct{}
	settled    bool
}

// NewRound fixes the seed material of a round and publishes its commitment.
func NewRound(serverSeed, clientSeed string, nonce uint64) *Round {
	return &Round{
		fairness: game.FairnessData{
			ServerSeed:     serverSeed,
			ServerSeedHash: crypto.Commit(serverSeed),
			ClientSeed:     clientSeed,
			Nonce:          nonce,
		},
		Phase:      PhaseLobby,
		Multiplier: 1,
		milestones: make(map[float64]struct{}),
	}
}

// Public returns the fairness data with the server seed withheld until reveal.
func (r *Round) Public() game.FairnessData {
	fd := r.fairness
	if !r.revealed {
		fd.ServerSeed = ""
	}
	return fd
}

// Secret is the full seed material; only the engine derives the outcome from it.
func (r *Round) Secret() game.FairnessData {
	return r.fairness
}

func (r *Round) Reveal() game.FairnessData {
	r.revealed = true
	return r.fairness
}

func (r *Round) ID() string {
	return fmt.Sprintf("%s-%d", r.fairness.ServerSeed, r.fairness.Nonce)
}

func (r *Round) Nonce() uint64 {
	return r.fairness.Nonce
}

// Begin enters RUNNING with the crash point computed at this instant.
func (r *Round) Begin(crashPoint float64, at time.Time) {
	r.Phase = PhaseRunning
	r.CrashPoint = crashPoint
	r.StartedAt = at
	r.Multiplier = 1
}

// Advance applies one tick. The multiplier never decreases; reaching the crash
// point clamps it, sets Crashed and records a sample without a value.
func (r *Round) Advance(elapsed, next float64) (sample game.Sample, crashed bool) {
	if r.Phase != PhaseRunning || r.Crashed {
		return game.Sample{Elapsed: elapsed}, false
	}
	if next < r.Multiplier {
		next = r.Multiplier
	}

	if next >= r.CrashPoint {
		r.Multiplier = r.CrashPoint
		r.Crashed = true
		sample = game.Sample{Elapsed: elapsed}
		r.Trajectory = append(r.Trajectory, sample)
		return sample, true
	}

	r.Multiplier = next
	m := next
	sample = game.Sample{Elapsed: elapsed, Multiplier: &m}
	r.Trajectory = append(r.Trajectory, sample)
	return sample, false
}

// CashOut locks in mainAmount * current multiplier. It only succeeds once per
// round, while running and before the crash flag is set.
func (r *Round) CashOut() (float64, bool) {
	if r.Phase != PhaseRunning || r.Crashed || r.CashedOut {
		return 0, false
	}
	payout := r.Wager.Main * r.Multiplier
	r.CashedOut = true
	r.Payout = &payout
	r.JackpotEligible = true
	return payout, true
}

// CrossedMilestones returns milestones reached by the current multiplier that
// have not fired yet this round, marking them fired.
func (r *Round) CrossedMilestones(milestones []game.Milestone) []game.Milestone {
	var hit []game.Milestone
	for _, m := range milestones {
		if r.Multiplier < m.At {
			continue
		}
		if _, done := r.milestones[m.At]; done {
			continue
		}
		r.milestones[m.At] = struct{}{}
		hit = append(hit, m)
	}
	return hit
}

// MarkSettled returns true the first time it is called for a round.
func (r *Round) MarkSettled() bool {
	if r.settled {
		return false
	}
	r.settled = true
	return true
}

func (r *Round) Settled() bool {
	return r.settled
}

// ==============================================================================
// WALLET & JACKPOT (process-wide, mutated only from the round lifecycle)
// ==============================================================================

type Wallet struct {
	Balance float64
}

func (w *Wallet) CanAfford(amount float64) bool {
	return w.Balance >= amount
}

func (w *Wallet) Debit(amount float64) {
	w.Balance -= amount
	if w.Balance < 0 {
		w.Balance = 0
	}
}

func (w *Wallet) Credit(amount float64) {
	w.Balance += amount
}

type JackpotPool struct {
	Amount  float64
	Initial float64
}

func (j *JackpotPool) Contribute(amount float64) {
	j.Amount += amount
}

// Claim pays out the whole pool and resets it to its initial amount.
func (j *JackpotPool) Claim() float64 {
	won := j.Amount
	j.Amount = j.Initial
	return won
}

// ==============================================================================
// HISTORY LEDGER
// ==============================================================================

type HistoryLedger struct {
	mu      sync.RWMutex
	entries []game.HistoryEntry
	MaxSize int
}

func NewHistoryLedger(maxSize int) *HistoryLedger {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HistoryLedger{
		entries: make([]game.HistoryEntry, 0, maxSize),
		MaxSize: maxSize,
	}
}

// Append puts entry first and drops the oldest entries past MaxSize.
func (h *HistoryLedger) Append(entry game.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]game.HistoryEntry{entry}, h.entries...)
	if len(h.entries) > h.MaxSize {
		h.entries = h.entries[:h.MaxSize]
	}
}

func (h *HistoryLedger) Entries() []game.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]game.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *HistoryLedger) Find(id string) (game.HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, e := range h.entries {
		if e.ID == id {
			return e, true
		}
	}
	return game.HistoryEntry{}, false
}

func (h *HistoryLedger) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// ==============================================================================
// FEED (bounded console log)
// ==============================================================================

type Feed struct {
	mu      sync.RWMutex
	lines   []string
	MaxSize int
}

func NewFeed(maxSize int) *Feed {
	return &Feed{
		lines:   make([]string, 0, maxSize),
		MaxSize: maxSize,
	}
}

func (f *Feed) Add(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lines = append(f.lines, line)
	if len(f.lines) > f.MaxSize {
		f.lines = f.lines[len(f.lines)-f.MaxSize:]
	}
}

func (f *Feed) Lines() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}
