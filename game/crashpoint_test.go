package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var stockParams = Params{HouseEdge: 0.02, DistributionBias: 1.5, MaxMultiplier: 10000}

func TestCrashPointUnbiasedMidpoint(t *testing.T) {
	p := Params{HouseEdge: 0.02, DistributionBias: 1, MaxMultiplier: 10000}
	assert.InDelta(t, 1.96, CrashPoint(0.5, p), 1e-9)
}

func TestCrashPointBounds(t *testing.T) {
	tests := []struct {
		name string
		u    float64
	}{
		{"zero", 0},
		{"tiny", 1e-12},
		{"low", 0.01},
		{"quarter", 0.25},
		{"half", 0.5},
		{"high", 0.99},
		{"very high", 0.999999},
		{"largest below one", math.Nextafter(1, 0)},
		{"one", 1},
		{"nan", math.NaN()},
		{"negative", -0.3},
	}

	for _, bias := range []float64{1, 1.5, 3} {
		p := stockParams
		p.DistributionBias = bias
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := CrashPoint(tt.u, p)
				assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
				assert.GreaterOrEqual(t, got, MinCrashPoint)
				assert.LessOrEqual(t, got, p.MaxMultiplier)
			})
		}
	}
}

func TestCrashPointGridStaysInRange(t *testing.T) {
	for i := 0; i < 10000; i++ {
		u := float64(i) / 10000
		got := CrashPoint(u, stockParams)
		if got < MinCrashPoint || got > stockParams.MaxMultiplier {
			t.Fatalf("CrashPoint(%v) = %v out of range", u, got)
		}
	}
}

func TestCrashPointCapsAtMax(t *testing.T) {
	p := Params{HouseEdge: 0.02, DistributionBias: 1, MaxMultiplier: 50}
	assert.Equal(t, 50.0, CrashPoint(0.999, p))
	assert.Equal(t, 50.0, CrashPoint(1, p))
}

func TestCrashPointFloorsToCents(t *testing.T) {
	p := Params{HouseEdge: 0.02, DistributionBias: 1, MaxMultiplier: 10000}
	got := CrashPoint(0.3, p) // 98 / 70 = 1.4
	assert.InDelta(t, 1.4, got, 1e-9)

	got = CrashPoint(0.123, p) // 98 / 87.7 = 1.11745...
	assert.InDelta(t, 1.11, got, 1e-9)
}

func TestCrashPointBiasRaisesOutcome(t *testing.T) {
	plain := Params{HouseEdge: 0.02, DistributionBias: 1, MaxMultiplier: 10000}
	skewed := Params{HouseEdge: 0.02, DistributionBias: 2, MaxMultiplier: 10000}
	assert.Greater(t, CrashPoint(0.5, skewed), CrashPoint(0.5, plain))
}

func TestCrashPointLowDrawClampsToMinimum(t *testing.T) {
	p := Params{HouseEdge: 0.02, DistributionBias: 1, MaxMultiplier: 10000}
	assert.Equal(t, MinCrashPoint, CrashPoint(0, p))
}

func TestMultiplierAtAndTimeToReach(t *testing.T) {
	assert.Equal(t, 1.0, MultiplierAt(0.4, 0))
	assert.InDelta(t, math.Exp(0.8), MultiplierAt(0.4, 2), 1e-12)

	secs := TimeToReach(0.4, 3)
	assert.InDelta(t, 3, MultiplierAt(0.4, secs), 1e-9)
	assert.Equal(t, 0.0, TimeToReach(0.4, 1))
}
