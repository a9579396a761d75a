package tick

import "math"

const (
	negTinyBits  = 0x8000000000000001
	clearSign    = 0x7fffffffffffffff
	posInfBits   = 0x7ff0000000000000
	negInfBits   = 0xfff0000000000000
	smallestBits = 0x1
)

// NextUp returns the least float64 greater than a. The bit pattern is stepped
// directly so subnormals are never flushed.
func NextUp(a float64) float64 {
	b := math.Float64bits(a)
	if math.IsNaN(a) || b == posInfBits {
		return a
	}
	switch abs := b & clearSign; {
	case abs == 0:
		return math.Float64frombits(smallestBits)
	case b == abs:
		return math.Float64frombits(b + 1)
	default:
		return math.Float64frombits(b - 1)
	}
}

// NextDown returns the greatest float64 less than a.
func NextDown(a float64) float64 {
	b := math.Float64bits(a)
	if math.IsNaN(a) || b == negInfBits {
		return a
	}
	switch abs := b & clearSign; {
	case abs == 0:
		return math.Float64frombits(negTinyBits)
	case b == abs:
		return math.Float64frombits(b - 1)
	default:
		return math.Float64frombits(b + 1)
	}
}
