package fp

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Unsigned is an immutable unsigned fixed-point value raw / 2^FracBits.
// The zero value is 0.
type Unsigned[F Format] struct {
	raw *big.Int
}

func fromRaw[F Format](raw *big.Int) (Unsigned[F], error) {
	total, _ := layout[F]()
	if raw.Sign() < 0 {
		return Unsigned[F]{}, ErrOverflow
	}
	if uint(raw.BitLen()) > total {
		return Unsigned[F]{}, ErrOverflow
	}
	if raw.Sign() == 0 {
		return Unsigned[F]{}, nil
	}
	return Unsigned[F]{raw: raw}, nil
}

// FromRaw builds a value from its underlying integer representation.
func FromRaw[F Format](raw *big.Int) (Unsigned[F], error) {
	return fromRaw[F](new(big.Int).Set(raw))
}

// FromUint64 converts an integer. Every format has at least 64 integer bits.
func FromUint64[F Format](v uint64) Unsigned[F] {
	_, frac := layout[F]()
	raw := new(big.Int).Lsh(new(big.Int).SetUint64(v), frac)
	u, _ := fromRaw[F](raw)
	return u
}

func One[F Format]() Unsigned[F] {
	return FromUint64[F](1)
}

func (x Unsigned[F]) r() *big.Int {
	if x.raw == nil {
		return new(big.Int)
	}
	return x.raw
}

// Raw returns a copy of the underlying integer.
func (x Unsigned[F]) Raw() *big.Int {
	return new(big.Int).Set(x.r())
}

func (x Unsigned[F]) IsZero() bool {
	return x.raw == nil || x.raw.Sign() == 0
}

func (x Unsigned[F]) Cmp(y Unsigned[F]) int {
	return x.r().Cmp(y.r())
}

func (x Unsigned[F]) Equal(y Unsigned[F]) bool {
	return x.Cmp(y) == 0
}

func (x Unsigned[F]) Min(y Unsigned[F]) Unsigned[F] {
	if y.Cmp(x) < 0 {
		return y
	}
	return x
}

func (x Unsigned[F]) Add(y Unsigned[F]) (Unsigned[F], error) {
	return fromRaw[F](new(big.Int).Add(x.r(), y.r()))
}

// Sub fails with ErrOverflow when y > x.
func (x Unsigned[F]) Sub(y Unsigned[F]) (Unsigned[F], error) {
	if x.Cmp(y) < 0 {
		return Unsigned[F]{}, ErrOverflow
	}
	return fromRaw[F](new(big.Int).Sub(x.r(), y.r()))
}

// Mul truncates the product toward zero.
func (x Unsigned[F]) Mul(y Unsigned[F]) (Unsigned[F], error) {
	_, frac := layout[F]()
	p := new(big.Int).Mul(x.r(), y.r())
	return fromRaw[F](p.Rsh(p, frac))
}

// Div truncates the quotient toward zero. Division by zero is ErrOverflow.
func (x Unsigned[F]) Div(y Unsigned[F]) (Unsigned[F], error) {
	if y.IsZero() {
		return Unsigned[F]{}, ErrOverflow
	}
	_, frac := layout[F]()
	n := new(big.Int).Lsh(x.r(), frac)
	return fromRaw[F](n.Quo(n, y.r()))
}

func (x Unsigned[F]) Recip() (Unsigned[F], error) {
	return One[F]().Div(x)
}

// Sqrt returns the truncated square root.
func (x Unsigned[F]) Sqrt() Unsigned[F] {
	_, frac := layout[F]()
	s := new(big.Int).Sqrt(x.r())
	u, _ := fromRaw[F](s.Lsh(s, frac/2))
	return u
}

// Cbrt returns the truncated cube root. The fractional width must divide by 3.
func (x Unsigned[F]) Cbrt() (Unsigned[F], error) {
	_, frac := layout[F]()
	if frac%3 != 0 {
		return Unsigned[F]{}, ErrPrecisionLoss
	}
	c := icbrt(x.r())
	return fromRaw[F](c.Lsh(c, 2*frac/3))
}

func (x Unsigned[F]) Floor() Unsigned[F] {
	_, frac := layout[F]()
	f := new(big.Int).Rsh(x.r(), frac)
	u, _ := fromRaw[F](f.Lsh(f, frac))
	return u
}

func (x Unsigned[F]) Fract() Unsigned[F] {
	_, frac := layout[F]()
	mask := new(big.Int).Lsh(big.NewInt(1), frac)
	mask.Sub(mask, big.NewInt(1))
	u, _ := fromRaw[F](mask.And(mask, x.r()))
	return u
}

// Ceil rounds up to the next integer and fails when that integer does not fit.
func (x Unsigned[F]) Ceil() (Unsigned[F], error) {
	floor := x.Floor()
	if x.Fract().IsZero() {
		return floor, nil
	}
	return floor.Add(One[F]())
}

// Float64 rounds to the nearest float64, ties to even.
func (x Unsigned[F]) Float64() float64 {
	_, frac := layout[F]()
	bf := new(big.Float).SetInt(x.r())
	bf.SetMantExp(bf, -int(frac))
	f, _ := bf.Float64()
	return f
}

// Decimal renders the exact value: raw / 2^f == raw * 5^f / 10^f.
func (x Unsigned[F]) Decimal() decimal.Decimal {
	_, frac := layout[F]()
	five := new(big.Int).Exp(big.NewInt(5), big.NewInt(int64(frac)), nil)
	return decimal.NewFromBigInt(five.Mul(five, x.r()), -int32(frac))
}

func (x Unsigned[F]) String() string {
	return x.Decimal().String()
}

// Convert changes the format without losing information.
func Convert[T, F Format](x Unsigned[F]) (Unsigned[T], error) {
	_, from := layout[F]()
	_, to := layout[T]()
	raw := x.r()
	if to >= from {
		return fromRaw[T](new(big.Int).Lsh(raw, to-from))
	}
	shift := from - to
	if lowBitsSet(raw, shift) {
		return Unsigned[T]{}, ErrPrecisionLoss
	}
	return fromRaw[T](new(big.Int).Rsh(raw, shift))
}

// Truncate changes the format, dropping fractional bits the target cannot hold.
func Truncate[T, F Format](x Unsigned[F]) (Unsigned[T], error) {
	_, from := layout[F]()
	_, to := layout[T]()
	raw := x.r()
	if to >= from {
		return fromRaw[T](new(big.Int).Lsh(raw, to-from))
	}
	return fromRaw[T](new(big.Int).Rsh(raw, from-to))
}

func lowBitsSet(raw *big.Int, n uint) bool {
	return raw.Sign() != 0 && raw.TrailingZeroBits() < n
}

func icbrt(n *big.Int) *big.Int {
	if n.Sign() == 0 {
		return new(big.Int)
	}
	three := big.NewInt(3)
	x := new(big.Int).Lsh(big.NewInt(1), uint((n.BitLen()+2)/3))
	for {
		y := new(big.Int).Mul(x, x)
		y.Quo(n, y)
		y.Add(y, new(big.Int).Lsh(x, 1))
		y.Quo(y, three)
		if y.Cmp(x) >= 0 {
			return x
		}
		x = y
	}
}
