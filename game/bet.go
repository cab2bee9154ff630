package game

import "math"

// ClampBet normalises a bet amount from user input: NaN becomes min, otherwise the
// amount is held inside [min, min(max, floor(balance))]. When the balance is below
// min the result is min and placement is left to reject it.
func ClampBet(amount, balance, min, max float64) float64 {
	if math.IsNaN(amount) {
		return min
	}
	upper := math.Min(max, math.Floor(balance))
	if amount > upper {
		amount = upper
	}
	if amount < min {
		amount = min
	}
	return amount
}

// ClampToRange holds amount inside [min, max]; NaN becomes min.
func ClampToRange(amount, min, max float64) float64 {
	if math.IsNaN(amount) || amount < min {
		return min
	}
	if amount > max {
		return max
	}
	return amount
}
