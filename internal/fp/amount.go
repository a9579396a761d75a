package fp

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// AmountBits is the width of a token quantity.
const AmountBits = 128

// Amount is an unsigned 128-bit integer token quantity.
type Amount struct {
	v uint256.Int
}

func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// AmountFromBig fails when b is negative or wider than 128 bits.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b.Sign() < 0 {
		return Amount{}, ErrNegativeToUnsigned
	}
	if b.BitLen() > AmountBits {
		return Amount{}, ErrOverflow
	}
	var a Amount
	a.v.SetFromBig(b)
	return a, nil
}

// ParseAmount parses a base-10 integer.
func ParseAmount(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("parse amount %q: invalid integer", s)
	}
	a, err := AmountFromBig(b)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return a, nil
}

// AmountFromFloat64 truncates the fractional part.
func AmountFromFloat64(v float64) (Amount, error) {
	switch {
	case math.IsNaN(v):
		return Amount{}, ErrNaN
	case math.IsInf(v, 0):
		return Amount{}, ErrOverflow
	case math.Signbit(v):
		return Amount{}, ErrNegativeToUnsigned
	case v < 1:
		return Amount{}, nil
	}
	b, _ := new(big.Float).SetFloat64(math.Trunc(v)).Int(nil)
	return AmountFromBig(b)
}

// AmountFromUFP takes the integer part of x.
func AmountFromUFP(x U256X256) (Amount, error) {
	_, frac := layout[X256x256]()
	return AmountFromBig(new(big.Int).Rsh(x.r(), frac))
}

// UFP widens the amount to the longest unsigned format.
func (a Amount) UFP() U256X256 {
	return FromBigInteger[X256x256](a.Big())
}

// FromBigInteger converts a non-negative integer that fits the integer part.
func FromBigInteger[F Format](b *big.Int) Unsigned[F] {
	_, frac := layout[F]()
	u, _ := fromRaw[F](new(big.Int).Lsh(b, frac))
	return u
}

func (a Amount) Big() *big.Int { return a.v.ToBig() }

func (a Amount) IsZero() bool { return a.v.IsZero() }

func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

func (a Amount) Min(b Amount) Amount {
	if b.Cmp(a) < 0 {
		return b
	}
	return a
}

func (a Amount) Add(b Amount) (Amount, error) {
	var sum Amount
	if _, overflow := sum.v.AddOverflow(&a.v, &b.v); overflow || sum.v.BitLen() > AmountBits {
		return Amount{}, ErrOverflow
	}
	return sum, nil
}

// Sub fails with ErrOverflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Amount{}, ErrOverflow
	}
	var diff Amount
	diff.v.Sub(&a.v, &b.v)
	return diff, nil
}

// Float64 rounds to the nearest float64.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.Big()).Float64()
	return f
}

func (a Amount) String() string { return a.Big().String() }

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
