package game

import "time"

// FairnessData is the seed material of one round. ServerSeed stays empty until reveal.
type FairnessData struct {
	ServerSeed     string `json:"serverSeed"`
	ServerSeedHash string `json:"serverSeedHash"`
	ClientSeed     string `json:"clientSeed"`
	Nonce          uint64 `json:"nonce"`
}

// Sample is one trajectory point. Multiplier is nil on the crash tick.
type Sample struct {
	Elapsed    float64  `json:"time"`
	Multiplier *float64 `json:"multiplier"`
}

type Milestone struct {
	At      float64 `yaml:"at" json:"at"`
	Message string  `yaml:"message" json:"message"`
}

// HistoryEntry is an immutable record of a completed round.
type HistoryEntry struct {
	ID              string       `json:"id"`
	CrashMultiplier float64      `json:"crashMultiplier"`
	Fairness        FairnessData `json:"provablyFairData"`
	EndedAt         time.Time    `json:"endedAt"`
}

// Settlement breaks down what a round paid back to the wallet.
type Settlement struct {
	MainPayout    float64 `json:"mainPayout"`
	SideBetWon    bool    `json:"sideBetWon"`
	SideBetPayout float64 `json:"sideBetPayout"`
	JackpotWon    bool    `json:"jackpotWon"`
	JackpotPayout float64 `json:"jackpotPayout"`
	Total         float64 `json:"total"`
}

// RoundResult is handed to displays and sinks once a round has settled.
type RoundResult struct {
	Entry      HistoryEntry `json:"entry"`
	MainBet    float64      `json:"mainBet"`
	SideBet    SideBetKind  `json:"sideBet"`
	SideWager  float64      `json:"sideWager"`
	CashedOut  bool         `json:"cashedOut"`
	Payout     *float64     `json:"payout"`
	Settlement Settlement   `json:"settlement"`
	Ticks      int          `json:"ticks"`
	Balance    float64      `json:"balance"`
	Jackpot    float64      `json:"jackpot"`
}
