package config

import (
	"time"

	"crashengine/game"
)

/* =========================
   FAIRNESS & CRASH DISTRIBUTION
========================= */

const (
	HouseEdge = 0.02

	// A bias > 1 skews results towards higher multipliers; 1 is the plain distribution.
	DistributionBias = 1.5

	// Multiplier cap, also returned when the biased draw hits exactly 1.
	MaxMultiplier = 10000.0
	MinCrashPoint = 1.01

	// Derivation counters folded into every draw (round segment, cursor).
	FairnessRound  = 0
	FairnessCursor = 1
)

/* =========================
   ROUND TIMING
========================= */

const (
	BetPhaseDuration = 5000 * time.Millisecond
	SummaryDuration  = 3000 * time.Millisecond
	TickRateHz       = 30
	CountdownStep    = 1 * time.Second

	// Exponential growth: exp(GrowthK * seconds)
	GrowthK = 0.4
)

/* =========================
   WAGERS & JACKPOT
========================= */

const (
	MinBet         = 1.0
	MaxBet         = 10000.0
	DefaultBet     = 10.0
	InitialBalance = 5000.0

	JackpotContributionPercent = 0.01 // 1% of each main bet
	JackpotWinThreshold        = 100.0
	JackpotInitialAmount       = 1000.0
)

/* =========================
   HISTORY & FEED
========================= */

const (
	HistoryLength = 15
	FeedLength    = 100
)

/* =========================
   PERSISTENCE KEYS
========================= */

const (
	BalanceKey = "qd-balance"
	JackpotKey = "qd-jackpot"
	NonceKey   = "qd-nonce"
)

/* =========================
   SERVER
========================= */

const (
	ServerAddr     = "0.0.0.0:8080"
	NATSSubject    = "crash.rounds"
	WSSendBuffer   = 256
	ArchiveTimeout = 10 * time.Second
)

// Milestones fire one informational feed line each per round.
var Milestones = []game.Milestone{
	{At: 2, Message: "[SYSTEM] Trace Strength Rising..."},
	{At: 5, Message: "[WARNING] Overclock Detected!"},
	{At: 10, Message: "[CRITICAL] Firewall Escalation!"},
}
