// Package tick maps discrete price ticks to square-root prices.
//
// A tick t corresponds to the spot sqrt-price sqrt(1.0001)^t. Effective ticks
// shift a tick by the fee of a level so that the effective price a trader pays
// on that level is again a plain tick price.
package tick

import (
	"fmt"
	"math"
	"math/bits"

	"liquidityEngine/internal/model"
)

const (
	MinTick int32 = -887273
	MaxTick int32 = 887273

	MinEffTick = MinTick - 1<<(NumFeeLevels-1)
	MaxEffTick = MaxTick + 1<<(NumFeeLevels-1)

	// NumPrecalculatedTicks is the highest bit index of the sqrt-price table.
	NumPrecalculatedTicks = 20
)

// precalculated holds float64 bit patterns of sqrt(1.0001)^(2^i).
var precalculated = [NumPrecalculatedTicks + 1]uint64{
	4607182643974369558,
	4607182869159980145,
	4607183319564978878,
	4607184220510102349,
	4607186022940979433,
	4607189629966263589,
	4607196852679033204,
	4607211332818125533,
	4607240432470062669,
	4607299193450302128,
	4607418995971640537,
	4607668000704051496,
	4608205938457857923,
	4609462070376259803,
	4612290832146940624,
	4617480469329378893,
	4628148512120721768,
	4649381992504848318,
	4692198734602598674,
	4777248888797670312,
	4947442543280771895,
}

// Precalculated returns sqrt(1.0001)^(2^i).
func Precalculated(i int) float64 {
	return math.Float64frombits(precalculated[i])
}

// Base is the sqrt-price ratio between neighbouring ticks.
var Base = Precalculated(0)

// Tick is a point on the spot price scale.
type Tick int32

var (
	Min = Tick(MinTick)
	Max = Tick(MaxTick)
)

func IsValid(v int32) bool {
	return MinTick <= v && v <= MaxTick
}

// New fails with ErrPriceTickOutOfBounds outside [MinTick, MaxTick].
func New(v int32) (Tick, error) {
	if !IsValid(v) {
		return 0, fmt.Errorf("tick %d: %w", v, model.ErrPriceTickOutOfBounds)
	}
	return Tick(v), nil
}

func (t Tick) Index() int32 { return int32(t) }

// OptIndex returns nil for the range bounds.
func (t Tick) OptIndex() *int32 {
	if t <= Min || t >= Max {
		return nil
	}
	v := int32(t)
	return &v
}

// Opposite is the tick of the reciprocal spot price.
func (t Tick) Opposite() Tick { return -t }

func (t Tick) OppositeIf(cond bool) Tick {
	if cond {
		return t.Opposite()
	}
	return t
}

// SpotSqrtprice multiplies the table entries of the set bits of |t|, lowest
// bit first, and inverts the product for negative ticks.
func (t Tick) SpotSqrtprice() float64 {
	return spotSqrtprice(int32(t))
}

func spotSqrtprice(index int32) float64 {
	abs := uint32(index)
	if index < 0 {
		abs = uint32(-index)
	}
	if abs == 0 {
		return 1
	}
	product := 1.0
	for abs != 0 {
		product *= Precalculated(bits.TrailingZeros32(abs))
		abs &= abs - 1
	}
	if index < 0 {
		return 1 / product
	}
	return product
}

// EffSqrtprice is the effective sqrt-price of t on level for a swap from side.
func (t Tick) EffSqrtprice(level FeeLevel, side Side) float64 {
	return EffTickFrom(t, level, side).EffSqrtprice()
}

// WithSameEffPrice finds the tick on other with the effective price t has on level.
func (t Tick) WithSameEffPrice(level, other FeeLevel, side Side) (Tick, error) {
	return EffTickFrom(t, level, side).ToTick(other, side)
}

// UnwrapRange replaces missing bounds with Min and Max.
func UnwrapRange(low, high *int32) (Tick, Tick, error) {
	lo, hi := Min, Max
	var err error
	if low != nil {
		if lo, err = New(*low); err != nil {
			return 0, 0, err
		}
	}
	if high != nil {
		if hi, err = New(*high); err != nil {
			return 0, 0, err
		}
	}
	return lo, hi, nil
}

// WrapRange maps bounds at or beyond Min and Max back to nil.
func WrapRange(low, high Tick) (*int32, *int32) {
	var lo, hi *int32
	if low > Min {
		v := int32(low)
		lo = &v
	}
	if high < Max {
		v := int32(high)
		hi = &v
	}
	return lo, hi
}

// EffTick is a point on the effective price scale.
type EffTick int32

func IsValidEff(v int32) bool {
	return MinEffTick <= v && v <= MaxEffTick
}

func NewEff(v int32) (EffTick, error) {
	if !IsValidEff(v) {
		return 0, fmt.Errorf("effective tick %d: %w", v, model.ErrPriceTickOutOfBounds)
	}
	return EffTick(v), nil
}

func (e EffTick) Index() int32 { return int32(e) }

// EffTickFrom shifts t by the fee ticks of level. Right side ticks are mirrored.
func EffTickFrom(t Tick, level FeeLevel, side Side) EffTick {
	if side == Left {
		return EffTick(int32(t) + level.RateTicks())
	}
	return EffTick(-int32(t) + level.RateTicks())
}

func (e EffTick) ToTick(level FeeLevel, side Side) (Tick, error) {
	if side == Left {
		return New(int32(e) - level.RateTicks())
	}
	return New(-int32(e) + level.RateTicks())
}

// EffSqrtprice evaluates the spot formula on the raw index, which may lie
// slightly beyond the spot tick range.
func (e EffTick) EffSqrtprice() float64 {
	return spotSqrtprice(int32(e))
}

// Opposite is the effective tick of the same spot tick seen from the other side.
func (e EffTick) Opposite(level FeeLevel) EffTick {
	return EffTick(-int32(e) + 2*level.RateTicks())
}

func (e EffTick) Shifted(step int32) (EffTick, error) {
	return NewEff(int32(e) + step)
}

// Nearest returns the tick of sqrtprice truncated towards zero and clamped to the range.
// Used only for display and estimation.
func Nearest(sqrtprice float64) Tick {
	if sqrtprice <= 0 || math.IsNaN(sqrtprice) {
		return Min
	}
	v := math.Log(sqrtprice) / math.Log(Base)
	switch {
	case v <= float64(MinTick):
		return Min
	case v >= float64(MaxTick):
		return Max
	}
	return Tick(int32(v))
}
