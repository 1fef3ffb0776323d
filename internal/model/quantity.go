package model

import "math"

// MaxQuantity caps quantities so they fit an int on every platform.
const MaxQuantity = math.MaxInt32

// NormalizeQuantity floors v to an integer. Non-finite values and anything
// below 1 become 1.
func NormalizeQuantity(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	f := math.Floor(v)
	if f < 1 {
		return 1
	}
	if f > MaxQuantity {
		return MaxQuantity
	}
	return int(f)
}

// ParseQuantity normalizes free text typed into a quantity field.
// Text that is not a number yields 1.
func ParseQuantity(s string) int {
	f, ok := parseNumber(s)
	if !ok {
		return 1
	}
	return NormalizeQuantity(f)
}
