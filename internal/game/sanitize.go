package game

import "math"

// MaxSafeValue mirrors the largest integer the save document can carry
// without losing precision in a JSON number (2^53 - 1).
const MaxSafeValue = 9007199254740991

// SanitizeNumber clamps value to [min, max] when it is a finite number
// and returns def otherwise. No component may write an unsanitized
// number into GameState.
func SanitizeNumber(value, def, min, max float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return def
	}
	return math.Max(min, math.Min(max, value))
}

// SanitizeCount is SanitizeNumber specialized for non-negative counters.
func SanitizeCount(value float64) float64 {
	return SanitizeNumber(value, 0, 0, MaxSafeValue)
}

// SanitizeLevel clamps an integer level (skills, prestige) to [0, cap].
func SanitizeLevel(value, cap int) int {
	if value < 0 {
		return 0
	}
	if value > cap {
		return cap
	}
	return value
}
