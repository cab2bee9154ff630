package game

import (
	"fmt"
	"sort"
)

type SideBetKind string

const (
	SideBetNone          SideBetKind = "NONE"
	SideBetUnder2x       SideBetKind = "UNDER_2X"
	SideBetBetween3And5x SideBetKind = "BETWEEN_3_5X"
	SideBetAbove10x      SideBetKind = "ABOVE_10X"
)

// Condition bounds the crash point a side bet wins on. A zero bound is unset.
type Condition struct {
	Above   float64 `yaml:"above" json:"above,omitempty"`     // crash > Above
	AtLeast float64 `yaml:"atLeast" json:"atLeast,omitempty"` // crash >= AtLeast
	Below   float64 `yaml:"below" json:"below,omitempty"`     // crash < Below
	AtMost  float64 `yaml:"atMost" json:"atMost,omitempty"`   // crash <= AtMost
}

func (c Condition) Holds(crash float64) bool {
	if c.Above != 0 && !(crash > c.Above) {
		return false
	}
	if c.AtLeast != 0 && !(crash >= c.AtLeast) {
		return false
	}
	if c.Below != 0 && !(crash < c.Below) {
		return false
	}
	if c.AtMost != 0 && !(crash <= c.AtMost) {
		return false
	}
	return true
}

// SideBet is one row of the side-bet table.
type SideBet struct {
	Kind         SideBetKind `yaml:"kind" json:"kind"`
	Label        string      `yaml:"label" json:"label"`
	WagerPercent float64     `yaml:"wagerPercent" json:"wagerPercent"`
	Payout       float64     `yaml:"payout" json:"payout"`
	Condition    Condition   `yaml:"condition" json:"condition"`
}

// Placed reports whether this is a real side bet rather than the NONE row.
func (s SideBet) Placed() bool {
	return s.Kind != "" && s.Kind != SideBetNone
}

// Wager is the side-bet stake for a main bet.
func (s SideBet) Wager(mainAmount float64) float64 {
	if !s.Placed() {
		return 0
	}
	return mainAmount * s.WagerPercent
}

// Wins evaluates the condition against the round's final crash point.
func (s SideBet) Wins(crash float64) bool {
	if !s.Placed() {
		return false
	}
	return s.Condition.Holds(crash)
}

// SideBetTable is the fixed set of side bets offered.
type SideBetTable map[SideBetKind]SideBet

// DefaultSideBets is the stock table.
func DefaultSideBets() SideBetTable {
	return SideBetTable{
		SideBetNone: {Kind: SideBetNone, Label: "None"},
		SideBetUnder2x: {
			Kind: SideBetUnder2x, Label: "Crash < 2x", WagerPercent: 0.2, Payout: 2.5,
			Condition: Condition{Below: 2},
		},
		SideBetBetween3And5x: {
			Kind: SideBetBetween3And5x, Label: "Crash 3-5x", WagerPercent: 0.2, Payout: 3.5,
			Condition: Condition{AtLeast: 3, AtMost: 5},
		},
		SideBetAbove10x: {
			Kind: SideBetAbove10x, Label: "Crash > 10x", WagerPercent: 0.2, Payout: 5.0,
			Condition: Condition{Above: 10},
		},
	}
}

// Lookup returns the row for kind; unknown kinds fall back to NONE.
func (t SideBetTable) Lookup(kind SideBetKind) SideBet {
	if kind == "" {
		kind = SideBetNone
	}
	if s, ok := t[kind]; ok {
		return s
	}
	return SideBet{Kind: SideBetNone, Label: "None"}
}

// Options lists the placeable side bets in a stable order.
func (t SideBetTable) Options() []SideBet {
	out := make([]SideBet, 0, len(t))
	for _, s := range t {
		if s.Placed() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func (t SideBetTable) Validate() error {
	for kind, s := range t {
		if s.Kind != kind {
			return fmt.Errorf("side bet %q: kind mismatch %q", kind, s.Kind)
		}
		if !s.Placed() {
			continue
		}
		if s.WagerPercent <= 0 || s.Payout <= 0 {
			return fmt.Errorf("side bet %q: wager percent and payout must be positive", kind)
		}
		if s.Condition == (Condition{}) {
			return fmt.Errorf("side bet %q: condition has no bounds", kind)
		}
	}
	return nil
}
