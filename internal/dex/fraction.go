package dex

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
)

// Fraction is an exact rational rendering of a float price.
type Fraction struct {
	Numerator   fp.Amount `json:"numerator"`
	Denominator fp.Amount `json:"denominator"`
}

// FractionFromFloat64 decomposes v into mantissa and binary exponent. Zero
// maps to 0/0. Prices must be positive with an exponent in (-128, 128).
func FractionFromFloat64(v float64) (Fraction, error) {
	if v == 0 {
		return Fraction{}, nil
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return Fraction{}, fmt.Errorf("price %v: %w", v, model.ErrInternalLogicError)
	}
	mantissa, exp := integerDecode(v)
	if exp <= -128 || exp >= 128 {
		return Fraction{}, fmt.Errorf("price %v exponent %d: %w", v, exp, model.ErrInternalLogicError)
	}
	m := new(big.Int).SetUint64(mantissa)
	one := big.NewInt(1)
	var num, den *big.Int
	if exp >= 0 {
		num, den = m.Lsh(m, uint(exp)), one
	} else {
		num, den = m, new(big.Int).Lsh(one, uint(-exp))
	}
	n, err := fp.AmountFromBig(num)
	if err != nil {
		return Fraction{}, fmt.Errorf("price %v: %w", v, model.ErrInternalLogicError)
	}
	d, err := fp.AmountFromBig(den)
	if err != nil {
		return Fraction{}, fmt.Errorf("price %v: %w", v, model.ErrInternalLogicError)
	}
	return Fraction{Numerator: n, Denominator: d}, nil
}

// integerDecode splits a positive finite v into m * 2^e with m the 53-bit
// significand (subnormals keep their shorter one).
func integerDecode(v float64) (uint64, int) {
	bits := math.Float64bits(v)
	exp := int((bits >> 52) & 0x7ff)
	mantissa := bits & (1<<52 - 1)
	if exp == 0 {
		exp = 1
	} else {
		mantissa |= 1 << 52
	}
	return mantissa, exp - 1075
}

func (f Fraction) IsZero() bool {
	return f.Denominator.IsZero()
}

// Decimal evaluates the fraction with the given number of decimal places.
func (f Fraction) Decimal(places int32) decimal.Decimal {
	if f.IsZero() {
		return decimal.Zero
	}
	num := decimal.NewFromBigInt(f.Numerator.Big(), 0)
	den := decimal.NewFromBigInt(f.Denominator.Big(), 0)
	return num.DivRound(den, places)
}

func (f Fraction) Float64() float64 {
	if f.IsZero() {
		return 0
	}
	return f.Numerator.Float64() / f.Denominator.Float64()
}

func (f Fraction) String() string {
	return f.Numerator.String() + "/" + f.Denominator.String()
}
