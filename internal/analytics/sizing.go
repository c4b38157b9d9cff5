package analytics

// SizeModifier returns the position-size multiplier for the current loss
// streak: full size with no losses, stepping down as the streak grows.
func SizeModifier(streak int) float64 {
	switch {
	case streak <= 0:
		return 1.0
	case streak == 1:
		return 0.75
	case streak == 2:
		return 0.5
	default:
		return 0.25
	}
}

// SuggestPositionSize computes a position size from the account balance,
// the risk percentage per trade, and the stop distance in price-movement
// units, then applies the streak modifier multiplicatively. A non-positive
// stop distance or balance yields zero.
func SuggestPositionSize(balance, riskPercent, stopDistance float64, streak int) float64 {
	if balance <= 0 || riskPercent <= 0 || stopDistance <= 0 {
		return 0
	}
	riskAmount := balance * riskPercent / 100
	size := riskAmount / stopDistance * SizeModifier(streak)
	return round2(size)
}
