package tick

import (
	"fmt"

	"liquidityEngine/internal/model"
)

// NumFeeLevels is the number of parallel fee levels in every pool.
const NumFeeLevels = 8

// BasisPointDivisor converts basis points to a fraction.
const BasisPointDivisor = 10000

// FeeLevel selects a fee tier. Level L charges 2^L basis-point ticks.
type FeeLevel uint8

// Levels lists every fee level in ascending order.
var Levels = func() [NumFeeLevels]FeeLevel {
	var out [NumFeeLevels]FeeLevel
	for i := range out {
		out[i] = FeeLevel(i)
	}
	return out
}()

func (l FeeLevel) Valid() bool { return l < NumFeeLevels }

// RateTicks is the fee of the level expressed in ticks (and basis points).
func (l FeeLevel) RateTicks() int32 { return 1 << l }

// OneOverSqrtOneMinusFeeRate is 1/sqrt(1-fee) for the level.
func (l FeeLevel) OneOverSqrtOneMinusFeeRate() float64 {
	return spotSqrtprice(l.RateTicks())
}

// OneOverOneMinusFeeRate is 1/(1-fee) for the level.
func (l FeeLevel) OneOverOneMinusFeeRate() float64 {
	return spotSqrtprice(2 * l.RateTicks())
}

// FeeRate is the fraction of the input retained as fee.
func (l FeeLevel) FeeRate() float64 {
	x := l.OneOverOneMinusFeeRate()
	return (x - 1) / x
}

// FeeRatesTicks lists RateTicks for every level.
func FeeRatesTicks() [NumFeeLevels]int32 {
	var out [NumFeeLevels]int32
	for _, level := range Levels {
		out[level] = level.RateTicks()
	}
	return out
}

// LevelForRate maps a fee rate in basis points to its level.
func LevelForRate(rate uint32) (FeeLevel, error) {
	for _, level := range Levels {
		if uint32(level.RateTicks()) == rate {
			return level, nil
		}
	}
	return 0, fmt.Errorf("fee rate %d: %w", rate, model.ErrIllegalFee)
}
