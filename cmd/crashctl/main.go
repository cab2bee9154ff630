package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"crashengine/config"
	"crashengine/db"
	"crashengine/engine"
	"crashengine/game"
	"crashengine/logger"
	"crashengine/state"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "crashctl",
		Short:        "Offline tools for the crash engine: fairness checks and simulations.",
		SilenceUsage: true,
	}
	root.AddCommand(newVerifyCmd(), newSimulateCmd())
	return root
}

/* =========================
   VERIFY
========================= */

func newVerifyCmd() *cobra.Command {
	var (
		fd      game.FairnessData
		claimed float64
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute a round's crash point from its revealed seeds.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			v := game.Verify(fd, claimed, cfg.Game.Params())

			out := cmd.OutOrStdout()
			if !v.Valid {
				fmt.Fprintf(out, "❌ %s\n", v.Error)
				if v.CrashPoint != 0 {
					fmt.Fprintf(out, "   recomputed crash point: %.2fx\n", v.CrashPoint)
				}
				return fmt.Errorf("verification failed")
			}
			fmt.Fprintf(out, "✅ Crash point %.2fx (nonce %d)\n", v.CrashPoint, fd.Nonce)
			return nil
		},
	}
	cmd.Flags().StringVar(&fd.ServerSeed, "server-seed", "", "revealed server seed")
	cmd.Flags().StringVar(&fd.ServerSeedHash, "hash", "", "committed server seed hash")
	cmd.Flags().StringVar(&fd.ClientSeed, "client-seed", "", "client seed")
	cmd.Flags().Uint64Var(&fd.Nonce, "nonce", 1, "round nonce")
	cmd.Flags().Float64Var(&claimed, "crash", 0, "crash point to check against (0 skips the check)")
	_ = cmd.MarkFlagRequired("server-seed")
	return cmd
}

/* =========================
   SIMULATE
========================= */

type simOptions struct {
	Rounds  int
	Bet     float64
	CashAt  float64
	SideBet string
	Seed    string
	Verbose bool
}

type simReport struct {
	Rounds     int
	Played     int
	Under2x    int
	CashedOut  int
	SideWins   int
	Jackpots   int
	MeanCrash  float64
	MaxCrash   float64
	Staked     float64
	Returned   float64
	EndBalance float64
}

func newSimulateCmd() *cobra.Command {
	var opts simOptions
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play rounds on a virtual clock and report the outcome distribution.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			logger.Init(logger.Options{Level: level, Writer: cmd.ErrOrStderr()})

			rep, err := simulate(cfg.Game, opts)
			if err != nil {
				return err
			}
			printReport(cmd, rep)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Rounds, "rounds", 100, "rounds to play")
	cmd.Flags().Float64Var(&opts.Bet, "bet", config.DefaultBet, "main bet per round")
	cmd.Flags().Float64Var(&opts.CashAt, "cash-out", 2, "auto cash-out multiplier (0 never cashes out)")
	cmd.Flags().StringVar(&opts.SideBet, "side-bet", string(game.SideBetNone), "side bet kind")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "fixed seed for reproducible runs")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every round")
	return cmd
}

func seeder(seed string) func() string {
	if seed == "" {
		return nil
	}
	rng := game.NewSeededRNG(seed, "crashctl", 0)
	return func() string {
		return fmt.Sprintf("%016x%016x%016x%016x", rng.Uint64(), rng.Uint64(), rng.Uint64(), rng.Uint64())
	}
}

// simulate drives a real engine with a manual scheduler, so phase timings cost nothing.
func simulate(cfg config.Game, opts simOptions) (simReport, error) {
	if opts.Rounds < 1 {
		return simReport{}, fmt.Errorf("rounds must be positive")
	}

	sched := engine.NewManualScheduler(time.Unix(0, 0).UTC())
	e := engine.New(cfg, engine.Options{
		Scheduler: sched,
		Store:     db.NewMemoryStore(),
		Seeder:    seeder(opts.Seed),
		Logger:    slog.Default(),
	})
	if err := e.Start(context.Background()); err != nil {
		return simReport{}, err
	}
	defer e.Stop()

	rep := simReport{Rounds: opts.Rounds}
	tick := cfg.TickInterval()
	limit := time.Duration(game.TimeToReach(cfg.GrowthK, cfg.MaxMultiplier)*float64(time.Second)) + time.Minute
	phase := func(p state.Phase) func() bool {
		return func() bool { return e.Snapshot().Phase == p }
	}

	for i := 0; i < opts.Rounds; i++ {
		before := e.Snapshot().Balance
		if err := e.PlaceBet(opts.Bet, game.SideBetKind(opts.SideBet)); err != nil {
			slog.Warn("🛑 Simulation stopped", "round", i+1, "error", err)
			break
		}
		wager := e.Wager()
		rep.Staked += wager.Cost()

		if !sched.AdvanceUntil(time.Second, cfg.BetPhase+time.Second, phase(state.PhaseRunning)) {
			return rep, fmt.Errorf("round %d never started", i+1)
		}
		if opts.CashAt > 0 {
			sched.AdvanceUntil(tick, limit, func() bool {
				f := e.Snapshot()
				if f.Phase != state.PhaseRunning || f.Crashed {
					return true
				}
				if f.Multiplier >= opts.CashAt {
					e.CashOut()
					return true
				}
				return false
			})
		}
		if !sched.AdvanceUntil(tick, limit, phase(state.PhaseEnded)) {
			return rep, fmt.Errorf("round %d never crashed", i+1)
		}

		entry := e.History()[0]
		crash := entry.CrashMultiplier
		after := e.Snapshot()

		rep.Played++
		rep.MeanCrash += crash
		rep.MaxCrash = max(rep.MaxCrash, crash)
		if crash < 2 {
			rep.Under2x++
		}
		if after.CashedOut {
			rep.CashedOut++
		}
		if wager.SideBet.Wins(crash) {
			rep.SideWins++
		}
		if after.CashedOut && crash > cfg.JackpotThreshold {
			rep.Jackpots++
		}
		rep.Returned += after.Balance - before + wager.Cost()

		slog.Debug("🎲 Round simulated", "nonce", entry.Fairness.Nonce, "crash", crash, "balance", after.Balance)
		sched.Advance(cfg.Summary)
	}

	if rep.Played > 0 {
		rep.MeanCrash /= float64(rep.Played)
	}
	rep.EndBalance = e.Snapshot().Balance
	return rep, nil
}

func printReport(cmd *cobra.Command, rep simReport) {
	out := cmd.OutOrStdout()
	pct := func(n int) float64 {
		if rep.Played == 0 {
			return 0
		}
		return float64(n) * 100 / float64(rep.Played)
	}

	fmt.Fprintf(out, "Played %d of %d rounds\n", rep.Played, rep.Rounds)
	fmt.Fprintf(out, "  crash < 2x:   %5.1f%%\n", pct(rep.Under2x))
	fmt.Fprintf(out, "  mean crash:   %.2fx (max %.2fx)\n", rep.MeanCrash, rep.MaxCrash)
	fmt.Fprintf(out, "  cashed out:   %5.1f%%\n", pct(rep.CashedOut))
	fmt.Fprintf(out, "  side wins:    %d\n", rep.SideWins)
	fmt.Fprintf(out, "  jackpots:     %d\n", rep.Jackpots)
	if rep.Staked > 0 {
		fmt.Fprintf(out, "  return:       %.2f%% of %.2f staked\n", rep.Returned*100/rep.Staked, rep.Staked)
	}
	fmt.Fprintf(out, "  end balance:  %.2f\n", rep.EndBalance)
}
