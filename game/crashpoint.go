package game

import "math"

// MinCrashPoint is the lowest multiplier a round can crash at.
const MinCrashPoint = 1.01

// Params are the distribution knobs of the crash point.
type Params struct {
	HouseEdge        float64
	DistributionBias float64
	MaxMultiplier    float64
}

// CrashPoint maps a uniform draw onto the round's crash multiplier.
//
// The draw is skewed by u^(1/bias), pushed through the inverse CDF of an
// exponential tail discounted by the house edge, floored to cents and kept inside
// [MinCrashPoint, MaxMultiplier]. Degenerate draws never produce a non-finite value.
func CrashPoint(u float64, p Params) float64 {
	if math.IsNaN(u) || u < 0 {
		u = 0
	}
	if u >= 1 {
		return p.MaxMultiplier
	}

	bias := p.DistributionBias
	if bias <= 0 {
		bias = 1
	}
	biased := math.Pow(u, 1/bias)
	if biased >= 1 {
		return p.MaxMultiplier
	}

	raw := (100 * (1 - p.HouseEdge)) / (100 * (1 - biased))
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw >= p.MaxMultiplier {
		return p.MaxMultiplier
	}

	crash := math.Floor(raw*100) / 100
	if crash < MinCrashPoint {
		return MinCrashPoint
	}
	return crash
}

// CalculateCrashPoint derives a round's crash point from its seed material.
func CalculateCrashPoint(serverSeed, clientSeed string, nonce uint64, p Params) float64 {
	return CrashPoint(DeriveUniform(serverSeed, clientSeed, nonce), p)
}

// MultiplierAt is the displayed multiplier after elapsed seconds of growth.
func MultiplierAt(k, elapsed float64) float64 {
	if elapsed <= 0 {
		return 1
	}
	return math.Exp(k * elapsed)
}

// TimeToReach is the inverse of MultiplierAt, in seconds.
func TimeToReach(k, multiplier float64) float64 {
	if multiplier <= 1 || k <= 0 {
		return 0
	}
	return math.Log(multiplier) / k
}
