package tick

import (
	"fmt"
	"math"

	"liquidityEngine/internal/model"
)

// Pivot search bounds: the distance between a sqrt-price and the pivot tick
// price stays within about 0.625 ticks.
var (
	distMin = math.Float64frombits(0x3FEFFFBE77E28A1D)
	distMax = math.Float64frombits(0x3FF00020C451D518)

	maxApproximateLog = Precalculated(maxApproximateLogIndex)
	minApproximateLog = math.Float64frombits(0x3FEA12FE77BFA405)
)

const maxApproximateLogIndex = 12

// FindPivot walks from init to the effective tick whose price is within
// (distMin, distMax) of sqrtprice.
func FindPivot(init EffTick, sqrtprice float64) (EffTick, error) {
	pivot := init
	for {
		distance := sqrtprice / pivot.EffSqrtprice()
		if distMin < distance && distance < distMax {
			return pivot, nil
		}

		var step int32
		switch {
		case distance > maxApproximateLog:
			step = 1 << lastTableIndexBelow(distance)
		case distance < minApproximateLog:
			step = -(1 << lastTableIndexBelow(1/distance))
		default:
			// (1+x)^n ~ 1+n*x for small x
			approx := int32(math.Round((distance - 1) / (Base - 1)))
			step = clamp(approx, -(1 << maxApproximateLogIndex), 1<<maxApproximateLogIndex)
			step = clamp(step, MinEffTick-int32(pivot), MaxEffTick-int32(pivot))
		}
		if step == 0 {
			return 0, fmt.Errorf("pivot search stalled at %d: %w", pivot, model.ErrInternalLogicError)
		}

		next, err := pivot.Shifted(step)
		if err != nil {
			return 0, err
		}
		pivot = next
	}
}

// lastTableIndexBelow is the highest i with v >= Precalculated(i).
func lastTableIndexBelow(v float64) int {
	for i := len(precalculated) - 1; i >= 0; i-- {
		if v >= Precalculated(i) {
			return i
		}
	}
	return 0
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EffSqrtpriceOppositeSide inverts an effective sqrt-price to the other swap
// direction on level, using the pivot tick to stay exact on tick boundaries.
// A nil pivot starts the search from zero.
func EffSqrtpriceOppositeSide(sqrtprice float64, level FeeLevel, pivot *EffTick) (float64, error) {
	var start EffTick
	if pivot != nil {
		start = *pivot
	}
	p, err := FindPivot(start, sqrtprice)
	if err != nil {
		return 0, err
	}
	return (p.EffSqrtprice() / sqrtprice) * p.Opposite(level).EffSqrtprice(), nil
}

// EffSqrtprices holds the effective sqrt-price for each swap direction.
type EffSqrtprices = Pair[float64]

// EffSqrtpricesFromValue completes v, given for side, with the opposite side price.
func EffSqrtpricesFromValue(v float64, side Side, level FeeLevel, pivot *EffTick) (EffSqrtprices, error) {
	opposite, err := EffSqrtpriceOppositeSide(v, level, pivot)
	if err != nil {
		return EffSqrtprices{}, err
	}
	if side == Left {
		return NewPair(v, opposite), nil
	}
	return NewPair(opposite, v), nil
}

// EffSqrtpricesFromTick evaluates both effective prices of t on level.
func EffSqrtpricesFromTick(t Tick, level FeeLevel) EffSqrtprices {
	return NewPair(t.EffSqrtprice(level, Left), t.EffSqrtprice(level, Right))
}
