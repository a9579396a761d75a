package fp

import (
	"errors"
	"math"
	"math/big"
	"testing"
)

func TestFromFloat64Errors(t *testing.T) {
	cases := []struct {
		name string
		v    float64
		want error
	}{
		{name: "nan", v: math.NaN(), want: ErrNaN},
		{name: "inf", v: math.Inf(1), want: ErrOverflow},
		{name: "negative", v: -1, want: ErrNegativeToUnsigned},
		{name: "negative zero", v: math.Copysign(0, -1), want: ErrNegativeToUnsigned},
		{name: "too large", v: math.Ldexp(1, 200), want: ErrOverflow},
		{name: "too small", v: math.Ldexp(1, -200), want: ErrPrecisionLoss},
	}
	for _, tc := range cases {
		if _, err := FromFloat64[X128x128](tc.v); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	values := []float64{0, 1, 1.5, 0.1, 1234567.891, math.Ldexp(1, -120), math.Ldexp(3, 100)}
	for _, v := range values {
		u, err := FromFloat64[X256x256](v)
		if err != nil {
			t.Fatalf("convert %v: %v", v, err)
		}
		if got := u.Float64(); got != v {
			t.Fatalf("round trip %v: got %v", v, got)
		}
	}
}

func TestArithmetic(t *testing.T) {
	onePointFive, _ := FromFloat64[X128x128](1.5)
	two := FromUint64[X128x128](2)

	product, err := onePointFive.Mul(two)
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	if !product.Equal(FromUint64[X128x128](3)) {
		t.Fatalf("expected 3, got %s", product)
	}

	third, err := One[X128x128]().Div(FromUint64[X128x128](3))
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	back, _ := third.Mul(FromUint64[X128x128](3))
	if back.Cmp(One[X128x128]()) >= 0 {
		t.Fatalf("expected truncated product below one, got %s", back)
	}

	if _, err := two.Sub(mustAdd(t, onePointFive, two)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if _, err := two.Div(Unsigned[X128x128]{}); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected division by zero overflow, got %v", err)
	}

	if got := FromUint64[X128x128](4).Sqrt(); !got.Equal(two) {
		t.Fatalf("sqrt(4) = %s", got)
	}
	cbrt, err := FromUint64[X192x192](27).Cbrt()
	if err != nil || !cbrt.Equal(FromUint64[X192x192](3)) {
		t.Fatalf("cbrt(27) = %s, %v", cbrt, err)
	}
}

func mustAdd[F Format](t *testing.T, x, y Unsigned[F]) Unsigned[F] {
	t.Helper()
	sum, err := x.Add(y)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	return sum
}

func TestFloorCeilFract(t *testing.T) {
	v, _ := FromFloat64[X256x256](2.5)
	if got := v.Floor().Float64(); got != 2 {
		t.Fatalf("floor = %v", got)
	}
	ceil, err := v.Ceil()
	if err != nil || ceil.Float64() != 3 {
		t.Fatalf("ceil = %v, %v", ceil.Float64(), err)
	}
	if got := v.Fract().Float64(); got != 0.5 {
		t.Fatalf("fract = %v", got)
	}
	if got := v.Decimal().String(); got != "2.5" {
		t.Fatalf("decimal = %s", got)
	}
}

func TestConvert(t *testing.T) {
	tiny, _ := FromFloat64[X320x192](math.Ldexp(1, -100))
	if _, err := Convert[X192x64](tiny); !errors.Is(err, ErrPrecisionLoss) {
		t.Fatalf("expected precision loss, got %v", err)
	}
	truncated, err := Truncate[X192x64](tiny)
	if err != nil || !truncated.IsZero() {
		t.Fatalf("expected truncation to zero, got %s, %v", truncated, err)
	}

	small, _ := FromFloat64[X320x192](math.Ldexp(1, -60))
	narrowed, err := Convert[X192x64](small)
	if err != nil || narrowed.Float64() != math.Ldexp(1, -60) {
		t.Fatalf("narrowing failed: %v", err)
	}

	huge := FromBigInteger[X320x64](new(big.Int).Lsh(big.NewInt(1), 200))
	if _, err := Convert[X192x64](huge); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestSigned(t *testing.T) {
	a, _ := SignedFromFloat64[X192x64](-1.5)
	b, _ := SignedFromFloat64[X192x64](1.5)
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !sum.IsZero() || sum.IsNegative() {
		t.Fatalf("expected non-negative zero, got %s", sum)
	}
	if sum.Neg().IsNegative() {
		t.Fatalf("negated zero must stay non-negative")
	}
	diff, _ := a.Sub(b)
	if diff.Float64() != -3 || diff.Sign() != -1 {
		t.Fatalf("expected -3, got %s", diff)
	}
	prod, _ := a.Mul(a)
	if prod.Float64() != 2.25 {
		t.Fatalf("expected 2.25, got %s", prod)
	}
	if _, err := a.Unsigned(); !errors.Is(err, ErrNegativeToUnsigned) {
		t.Fatalf("expected negative to unsigned, got %v", err)
	}

	seven, _ := SignedFromFloat64[X192x64](-7)
	two, _ := SignedFromFloat64[X192x64](2)
	quo, err := seven.Div(two)
	if err != nil || quo.Float64() != -3.5 {
		t.Fatalf("expected -3.5, got %s, %v", quo, err)
	}
	if quo, _ = seven.Div(seven); quo.Float64() != 1 || quo.IsNegative() {
		t.Fatalf("expected 1, got %s", quo)
	}
	if _, err := seven.Div(Signed[X192x64]{}); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow on zero divisor, got %v", err)
	}
	// the quotient is cut at the last fractional bit, not rounded away from zero
	ulp, _ := fromRaw[X192x64](big.NewInt(1))
	tiny := SignedOf(ulp).Neg()
	if quo, _ = tiny.Div(two); !quo.IsZero() || quo.IsNegative() {
		t.Fatalf("expected truncation to zero, got %s", quo)
	}
}

func TestAmount(t *testing.T) {
	ceiling, err := ParseAmount("340282366920938463463374607431768211455")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := ceiling.Add(NewAmount(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := NewAmount(1).Sub(NewAmount(2)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected underflow, got %v", err)
	}

	ufp, _ := FromFloat64[X256x256](41.75)
	floor, err := AmountFromUFP(ufp)
	if err != nil || floor.Cmp(NewAmount(41)) != 0 {
		t.Fatalf("floor = %s, %v", floor, err)
	}
	truncated, err := AmountFromFloat64(99.9)
	if err != nil || truncated.Cmp(NewAmount(99)) != 0 {
		t.Fatalf("float = %s, %v", truncated, err)
	}
	if got := NewAmount(1000).UFP().Float64(); got != 1000 {
		t.Fatalf("ufp = %v", got)
	}

	var decoded Amount
	if err := decoded.UnmarshalText([]byte("12345")); err != nil || decoded.String() != "12345" {
		t.Fatalf("unmarshal = %s, %v", decoded, err)
	}
}
