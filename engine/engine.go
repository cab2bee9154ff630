package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"crashengine/config"
	"crashengine/crypto"
	"crashengine/game"
	"crashengine/state"

	"github.com/shopspring/decimal"
)

var ErrInsufficientFunds = errors.New("insufficient funds for bet and side bet")

const persistTimeout = 3 * time.Second

// Options wires the engine to its ports. Only Scheduler is required.
type Options struct {
	Scheduler Scheduler
	Store     Store
	Display   Display
	Sinks     []ResultSink
	Seeder    func() string
	Logger    *slog.Logger
}

// Engine drives one player's rounds through LOBBY, BETTING, RUNNING and ENDED.
//
// Every timer callback and player action takes mu for its whole step. Timer
// callbacks capture the round they were armed for and do nothing once that
// round has been replaced or has left the phase they expect.
type Engine struct {
	mu     sync.Mutex
	cfg    config.Game
	params game.Params

	sched   Scheduler
	store   Store
	display Display
	sinks   []ResultSink
	newSeed func() string
	outcome func(game.FairnessData) float64
	log     *slog.Logger

	running bool
	nonce   uint64
	round   *state.Round
	wallet  state.Wallet
	jackpot state.JackpotPool
	history *state.HistoryLedger
	feed    *state.Feed

	betTimer       Timer
	countdownTimer Timer
	tickTimer      Timer
	summaryTimer   Timer
	betDeadline    time.Time

	// display and store calls queued under mu, run after it is released
	pending []func()

	persistMu    sync.Mutex
	persistSeq   uint64
	persistedSeq uint64
}

func New(cfg config.Game, opts Options) *Engine {
	e := &Engine{
		cfg:     cfg,
		params:  cfg.Params(),
		sched:   opts.Scheduler,
		store:   opts.Store,
		display: opts.Display,
		sinks:   opts.Sinks,
		newSeed: opts.Seeder,
		log:     opts.Logger,
		wallet:  state.Wallet{Balance: cfg.InitialBalance},
		jackpot: state.JackpotPool{Amount: cfg.JackpotInitial, Initial: cfg.JackpotInitial},
		history: state.NewHistoryLedger(cfg.HistoryLength),
		feed:    state.NewFeed(cfg.FeedLength),
	}
	if e.sched == nil {
		e.sched = RealScheduler{}
	}
	if e.display == nil {
		e.display = nopDisplay{}
	}
	if e.newSeed == nil {
		e.newSeed = crypto.NewSeed
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.outcome = func(fd game.FairnessData) float64 {
		return game.CalculateCrashPoint(fd.ServerSeed, fd.ClientSeed, fd.Nonce, e.params)
	}
	return e
}

func (e *Engine) unlock() {
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (e *Engine) later(fn func()) {
	e.pending = append(e.pending, fn)
}

/* =========================
   LIFECYCLE
========================= */

// Start restores the wallet, jackpot and nonce from the store and opens the first round.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock()

	if e.running {
		return errors.New("engine already started")
	}

	if e.store != nil {
		e.restore(ctx, config.BalanceKey, &e.wallet.Balance)
		e.restore(ctx, config.JackpotKey, &e.jackpot.Amount)

		var nonce float64
		e.restore(ctx, config.NonceKey, &nonce)
		if nonce > 0 {
			e.nonce = uint64(nonce)
		}
	}

	e.running = true
	e.log.Info("🎰 Crash engine started",
		"balance", e.wallet.Balance,
		"jackpot", e.jackpot.Amount,
		"nonce", e.nonce,
	)
	e.say("[SYSTEM] Quantum De-Cryption initialized. Stand by for connection.")
	e.setupRoundLocked()
	return nil
}

func (e *Engine) restore(ctx context.Context, key string, dst *float64) {
	v, ok, err := e.store.LoadNumber(ctx, key)
	if err != nil {
		e.log.Warn("⚠️  Failed to restore value, using default", "key", key, "error", err)
		return
	}
	if ok {
		*dst = v
	}
}

// Stop cancels every pending timer. Stale callbacks already in flight do nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.unlock()

	e.cancelTimersLocked()
	e.running = false
	e.log.Info("🛑 Crash engine stopped")
}

func (e *Engine) cancelTimersLocked() {
	for _, t := range []*Timer{&e.betTimer, &e.countdownTimer, &e.tickTimer, &e.summaryTimer} {
		stopTimer(t)
	}
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (e *Engine) setupRoundLocked() {
	e.cancelTimersLocked()

	e.nonce++
	e.round = state.NewRound(e.newSeed(), e.newSeed(), e.nonce)
	e.persistLocked()

	e.log.Info("🎲 New round ready",
		"nonce", e.nonce,
		"serverSeedHash", e.round.Public().ServerSeedHash,
	)
	e.say("Preparing new round...")
	e.pushFrameLocked(nil)
}

/* =========================
   PLAYER ACTIONS
========================= */

// PlaceBet opens the betting phase. It is ignored outside LOBBY; a wallet that
// cannot cover the main bet plus side bet is rejected without any change.
func (e *Engine) PlaceBet(amount float64, kind game.SideBetKind) error {
	e.mu.Lock()
	defer e.unlock()

	r := e.round
	if !e.running || r == nil || r.Phase != state.PhaseLobby {
		return nil
	}

	wager := state.Wager{
		Main:    game.ClampToRange(amount, e.cfg.MinBet, e.cfg.MaxBet),
		SideBet: e.cfg.SideBets.Lookup(kind),
	}
	if !e.wallet.CanAfford(wager.Cost()) {
		e.say("Insufficient funds for bet and side bet.")
		return ErrInsufficientFunds
	}

	e.wallet.Debit(wager.Cost())
	e.jackpot.Contribute(wager.Main * e.cfg.JackpotContribution)
	r.Wager = wager
	r.Phase = state.PhaseBetting
	e.persistLocked()

	e.say(fmt.Sprintf("Bet of %s placed.", credits(wager.Main)))
	if wager.SideBet.Placed() {
		e.say(fmt.Sprintf("Side bet of %s placed on: %s", credits(wager.SideAmount()), wager.SideBet.Label))
	}

	e.betDeadline = e.sched.Now().Add(e.cfg.BetPhase)
	e.betTimer = e.sched.After(e.cfg.BetPhase, func() { e.onBetPhaseElapsed(r) })
	e.countdownTimer = e.sched.Every(config.CountdownStep, func() { e.onCountdown(r) })

	e.log.Debug("💰 Bet placed", "nonce", r.Nonce(), "main", wager.Main, "sideBet", wager.SideBet.Kind)
	e.pushFrameLocked(nil)
	return nil
}

// CashOut locks in the current multiplier. It reports false when the round is
// not running, has crashed, or was already cashed out.
func (e *Engine) CashOut() (float64, bool) {
	e.mu.Lock()
	defer e.unlock()

	r := e.round
	if !e.running || r == nil {
		return 0, false
	}
	payout, ok := r.CashOut()
	if !ok {
		return 0, false
	}

	e.say(fmt.Sprintf("Cash out successful at %.2fx for %s credits.", r.Multiplier, credits(payout)))
	e.log.Debug("💸 Cashed out", "nonce", r.Nonce(), "multiplier", r.Multiplier, "payout", payout)
	e.pushFrameLocked(nil)
	return payout, true
}

/* =========================
   TIMER CALLBACKS
========================= */

func (e *Engine) onCountdown(r *state.Round) {
	e.mu.Lock()
	defer e.unlock()

	if e.round != r || r.Phase != state.PhaseBetting {
		return
	}
	e.pushFrameLocked(nil)
}

func (e *Engine) onBetPhaseElapsed(r *state.Round) {
	e.mu.Lock()
	defer e.unlock()

	if e.round != r || r.Phase != state.PhaseBetting {
		return
	}
	e.betTimer = nil
	stopTimer(&e.countdownTimer)

	r.Begin(e.outcome(r.Secret()), e.sched.Now())
	e.say("Trace initiated. Multiplier is live!")
	e.log.Info("🚀 Round running", "nonce", r.Nonce())

	e.tickTimer = e.sched.Every(e.cfg.TickInterval(), func() { e.onTick(r) })
	e.pushFrameLocked(nil)
}

func (e *Engine) onTick(r *state.Round) {
	e.mu.Lock()
	defer e.unlock()

	if e.round != r || r.Phase != state.PhaseRunning || r.Crashed {
		return
	}

	elapsed := e.sched.Now().Sub(r.StartedAt).Seconds()
	sample, crashed := r.Advance(elapsed, game.MultiplierAt(e.cfg.GrowthK, elapsed))

	for _, m := range r.CrossedMilestones(e.cfg.Milestones) {
		e.say(m.Message)
	}
	e.pushFrameLocked(&sample)

	if crashed {
		e.say(fmt.Sprintf("[SIGNAL LOST] Trace failed at %.2fx.", r.CrashPoint))
		e.finishRoundLocked(r)
	}
}

// finishRoundLocked settles a crashed round exactly once, however many crash
// signals arrive for it.
func (e *Engine) finishRoundLocked(r *state.Round) {
	if e.round != r || !r.Crashed || !r.MarkSettled() {
		return
	}
	stopTimer(&e.tickTimer)
	r.Phase = state.PhaseEnded

	s := Settle(r, &e.jackpot, e.cfg.JackpotThreshold)

	if side := r.Wager.SideBet; side.Placed() {
		if s.SideBetWon {
			e.say(fmt.Sprintf("Side bet WON! (%s) +%s credits.", side.Label, credits(s.SideBetPayout)))
		} else {
			e.say(fmt.Sprintf("Side bet lost. (%s)", side.Label))
		}
	}
	if s.JackpotWon {
		e.say(fmt.Sprintf("[JACKPOT] Cache breached! +%s credits.", credits(s.JackpotPayout)))
	}
	if s.Total > 0 {
		e.wallet.Credit(s.Total)
		e.say(fmt.Sprintf("Total payout: %s credits.", credits(s.Total)))
	}

	entry := game.HistoryEntry{
		ID:              r.ID(),
		CrashMultiplier: r.CrashPoint,
		Fairness:        r.Reveal(),
		EndedAt:         e.sched.Now(),
	}
	e.history.Append(entry)
	e.persistLocked()

	res := game.RoundResult{
		Entry:      entry,
		MainBet:    r.Wager.Main,
		SideBet:    r.Wager.SideBet.Kind,
		SideWager:  r.Wager.SideAmount(),
		CashedOut:  r.CashedOut,
		Payout:     r.Payout,
		Settlement: s,
		Ticks:      len(r.Trajectory),
		Balance:    e.wallet.Balance,
		Jackpot:    e.jackpot.Amount,
	}
	e.log.Info("💥 Round crashed",
		"nonce", r.Nonce(),
		"crashPoint", r.CrashPoint,
		"cashedOut", r.CashedOut,
		"payout", s.Total,
		"balance", e.wallet.Balance,
	)

	e.pushFrameLocked(nil)
	e.later(func() {
		e.display.RoundEnded(res)
		e.record(res)
	})

	e.summaryTimer = e.sched.After(e.cfg.Summary, func() { e.onSummaryElapsed(r) })
}

func (e *Engine) onSummaryElapsed(r *state.Round) {
	e.mu.Lock()
	defer e.unlock()

	if e.round != r || r.Phase != state.PhaseEnded {
		return
	}
	e.summaryTimer = nil
	e.setupRoundLocked()
}

/* =========================
   SIDE EFFECTS
========================= */

func (e *Engine) say(msg string) {
	line := fmt.Sprintf("[%s] %s", e.sched.Now().Format("15:04:05"), msg)
	e.feed.Add(line)
	e.later(func() { e.display.Feed(line) })
}

func (e *Engine) pushFrameLocked(sample *game.Sample) {
	f := e.frameLocked()
	f.Sample = sample
	e.later(func() { e.display.Frame(f) })
}

func (e *Engine) frameLocked() Frame {
	r := e.round
	f := Frame{
		Balance: e.wallet.Balance,
		Jackpot: e.jackpot.Amount,
	}
	if r == nil {
		f.Phase = state.PhaseLobby
		f.Multiplier = 1
		return f
	}

	f.Phase = r.Phase
	f.Multiplier = r.Multiplier
	f.Crashed = r.Crashed
	f.CashedOut = r.CashedOut
	f.Payout = r.Payout
	f.Fairness = r.Public()
	if r.Phase == state.PhaseBetting {
		if left := e.betDeadline.Sub(e.sched.Now()); left > 0 {
			f.CountdownMs = left.Milliseconds()
		}
	}
	return f
}

// persistLocked snapshots the durable numbers; writes that lose a race to a
// newer snapshot are skipped.
func (e *Engine) persistLocked() {
	if e.store == nil {
		return
	}
	e.persistSeq++
	seq := e.persistSeq
	values := map[string]float64{
		config.BalanceKey: e.wallet.Balance,
		config.JackpotKey: e.jackpot.Amount,
		config.NonceKey:   float64(e.nonce),
	}
	e.later(func() { e.persist(seq, values) })
}

func (e *Engine) persist(seq uint64, values map[string]float64) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	if seq <= e.persistedSeq {
		return
	}
	e.persistedSeq = seq

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	for key, v := range values {
		if err := e.store.SaveNumber(ctx, key, v); err != nil {
			e.log.Error("❌ Failed to persist value", "key", key, "error", err)
		}
	}
}

func (e *Engine) record(res game.RoundResult) {
	for _, sink := range e.sinks {
		go func(sink ResultSink) {
			ctx, cancel := context.WithTimeout(context.Background(), config.ArchiveTimeout)
			defer cancel()
			if err := sink.Record(ctx, res); err != nil {
				e.log.Error("❌ Failed to record round", "id", res.Entry.ID, "error", err)
			}
		}(sink)
	}
}

func credits(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

/* =========================
   READ ACCESS
========================= */

// Snapshot is the frame a newly connected display starts from.
func (e *Engine) Snapshot() Frame {
	e.mu.Lock()
	defer e.unlock()
	return e.frameLocked()
}

// Wager is the bet of the current round, zero while in LOBBY.
func (e *Engine) Wager() state.Wager {
	e.mu.Lock()
	defer e.unlock()
	if e.round == nil {
		return state.Wager{}
	}
	return e.round.Wager
}

// Trajectory copies the samples of the current round.
func (e *Engine) Trajectory() []game.Sample {
	e.mu.Lock()
	defer e.unlock()
	if e.round == nil {
		return nil
	}
	return append([]game.Sample(nil), e.round.Trajectory...)
}

// History lists completed rounds, newest first.
func (e *Engine) History() []game.HistoryEntry {
	return e.history.Entries()
}

func (e *Engine) FindRound(id string) (game.HistoryEntry, bool) {
	return e.history.Find(id)
}

func (e *Engine) Feed() []string {
	return e.feed.Lines()
}

func (e *Engine) SideBets() []game.SideBet {
	return e.cfg.SideBets.Options()
}

func (e *Engine) Config() config.Game {
	return e.cfg
}

// ErrBelowMinimum rejects a bet request from a wallet that cannot cover the minimum bet.
var ErrBelowMinimum = errors.New("balance is below the minimum bet")

// NormaliseBet turns a requested amount into one the balance can cover. Zero
// means the default bet.
func NormaliseBet(cfg config.Game, balance, requested float64) (float64, error) {
	if requested == 0 {
		requested = cfg.DefaultBet
	}
	if balance < cfg.MinBet {
		return 0, ErrBelowMinimum
	}
	return game.ClampBet(requested, balance, cfg.MinBet, cfg.MaxBet), nil
}
