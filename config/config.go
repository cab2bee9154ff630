package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"crashengine/game"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Game holds every round constant. Values are fixed once the process starts.
type Game struct {
	HouseEdge        float64 `env:"HOUSE_EDGE"`
	DistributionBias float64 `env:"DISTRIBUTION_BIAS"`
	MaxMultiplier    float64 `env:"MAX_MULTIPLIER"`
	GrowthK          float64 `env:"GROWTH_K"`

	BetPhase   time.Duration `env:"BET_PHASE"`
	Summary    time.Duration `env:"SUMMARY_PHASE"`
	TickRateHz int           `env:"TICK_RATE_HZ"`

	MinBet         float64 `env:"MIN_BET"`
	MaxBet         float64 `env:"MAX_BET"`
	DefaultBet     float64 `env:"DEFAULT_BET"`
	InitialBalance float64 `env:"INITIAL_BALANCE"`

	JackpotContribution float64 `env:"JACKPOT_CONTRIBUTION"`
	JackpotThreshold    float64 `env:"JACKPOT_THRESHOLD"`
	JackpotInitial      float64 `env:"JACKPOT_INITIAL"`

	HistoryLength int `env:"HISTORY_LENGTH"`
	FeedLength    int `env:"FEED_LENGTH"`

	SideBets   game.SideBetTable
	Milestones []game.Milestone
}

// Server holds the outer surfaces and backing services. Empty URLs disable a service.
type Server struct {
	Addr     string `env:"SERVER_ADDR"`
	LogLevel string `env:"LOG_LEVEL"`

	Store      string `env:"STORE"` // memory, badger, redis
	BadgerPath string `env:"BADGER_PATH"`

	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	DatabaseURL string `env:"DATABASE_URL"`

	NATSURL     string `env:"NATS_URL"`
	NATSSubject string `env:"NATS_SUBJECT"`

	SideBetsFile string `env:"SIDE_BETS_FILE"`
}

type Config struct {
	Game   Game
	Server Server
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Game: Game{
			HouseEdge:           HouseEdge,
			DistributionBias:    DistributionBias,
			MaxMultiplier:       MaxMultiplier,
			GrowthK:             GrowthK,
			BetPhase:            BetPhaseDuration,
			Summary:             SummaryDuration,
			TickRateHz:          TickRateHz,
			MinBet:              MinBet,
			MaxBet:              MaxBet,
			DefaultBet:          DefaultBet,
			InitialBalance:      InitialBalance,
			JackpotContribution: JackpotContributionPercent,
			JackpotThreshold:    JackpotWinThreshold,
			JackpotInitial:      JackpotInitialAmount,
			HistoryLength:       HistoryLength,
			FeedLength:          FeedLength,
			SideBets:            game.DefaultSideBets(),
			Milestones:          append([]game.Milestone(nil), Milestones...),
		},
		Server: Server{
			Addr:        ServerAddr,
			LogLevel:    "info",
			Store:       "memory",
			BadgerPath:  "data/badger",
			NATSSubject: NATSSubject,
		},
	}
}

// Load reads .env (if present) and the environment over the defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("⚠️  .env file not found, using environment variables")
	} else {
		slog.Info("✅ Loaded environment variables from .env")
	}
	return FromEnv()
}

// FromEnv decodes the process environment over the defaults without touching .env.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg.Game); err != nil {
		return cfg, fmt.Errorf("failed to parse game config: %w", err)
	}
	if err := env.Parse(&cfg.Server); err != nil {
		return cfg, fmt.Errorf("failed to parse server config: %w", err)
	}

	if cfg.Server.SideBetsFile != "" {
		table, err := LoadSideBets(cfg.Server.SideBetsFile)
		if err != nil {
			return cfg, err
		}
		cfg.Game.SideBets = table
	}

	if err := cfg.Game.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid game config: %w", err)
	}
	return cfg, nil
}

type sideBetFile struct {
	SideBets []game.SideBet `yaml:"sideBets"`
}

// LoadSideBets reads a YAML side-bet table. The NONE row is always present.
func LoadSideBets(path string) (game.SideBetTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read side bets file: %w", err)
	}

	var f sideBetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse side bets file: %w", err)
	}

	table := game.SideBetTable{
		game.SideBetNone: {Kind: game.SideBetNone, Label: "None"},
	}
	for _, s := range f.SideBets {
		if _, dup := table[s.Kind]; dup {
			return nil, fmt.Errorf("duplicate side bet %q", s.Kind)
		}
		table[s.Kind] = s
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func (g Game) Validate() error {
	switch {
	case g.HouseEdge < 0 || g.HouseEdge >= 1:
		return errors.New("house edge must be in [0, 1)")
	case g.DistributionBias <= 0:
		return errors.New("distribution bias must be positive")
	case g.MaxMultiplier < game.MinCrashPoint:
		return fmt.Errorf("max multiplier must be at least %.2f", game.MinCrashPoint)
	case g.GrowthK <= 0:
		return errors.New("growth constant must be positive")
	case g.TickRateHz <= 0:
		return errors.New("tick rate must be positive")
	case g.BetPhase <= 0 || g.Summary <= 0:
		return errors.New("phase durations must be positive")
	case g.MinBet <= 0 || g.MinBet > g.MaxBet:
		return errors.New("bet range must satisfy 0 < min <= max")
	case g.HistoryLength < 1:
		return errors.New("history length must be at least 1")
	case g.FeedLength < 1:
		return errors.New("feed length must be at least 1")
	case g.InitialBalance < 0 || g.JackpotInitial < 0 || g.JackpotContribution < 0:
		return errors.New("balances and jackpot settings must not be negative")
	}
	return g.SideBets.Validate()
}

// Params are the crash-point distribution knobs.
func (g Game) Params() game.Params {
	return game.Params{
		HouseEdge:        g.HouseEdge,
		DistributionBias: g.DistributionBias,
		MaxMultiplier:    g.MaxMultiplier,
	}
}

// TickInterval is the period of the multiplier ticker.
func (g Game) TickInterval() time.Duration {
	return time.Second / time.Duration(g.TickRateHz)
}
