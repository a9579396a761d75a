package fp

import "math/big"

// Signed is a sign and magnitude fixed-point value. Zero is never negative.
type Signed[F Format] struct {
	mag Unsigned[F]
	neg bool
}

// SignedOf lifts an unsigned value.
func SignedOf[F Format](u Unsigned[F]) Signed[F] {
	return Signed[F]{mag: u}
}

func signedFromBig[F Format](b *big.Int) (Signed[F], error) {
	mag, err := fromRaw[F](new(big.Int).Abs(b))
	if err != nil {
		return Signed[F]{}, err
	}
	return Signed[F]{mag: mag, neg: b.Sign() < 0}, nil
}

func (s Signed[F]) bigInt() *big.Int {
	b := s.mag.Raw()
	if s.neg {
		b.Neg(b)
	}
	return b
}

func (s Signed[F]) Abs() Unsigned[F] { return s.mag }

func (s Signed[F]) IsZero() bool { return s.mag.IsZero() }

func (s Signed[F]) IsNegative() bool { return s.neg }

func (s Signed[F]) Sign() int {
	switch {
	case s.mag.IsZero():
		return 0
	case s.neg:
		return -1
	default:
		return 1
	}
}

func (s Signed[F]) Neg() Signed[F] {
	return Signed[F]{mag: s.mag, neg: !s.neg && !s.mag.IsZero()}
}

func (s Signed[F]) Cmp(o Signed[F]) int {
	return s.bigInt().Cmp(o.bigInt())
}

func (s Signed[F]) Add(o Signed[F]) (Signed[F], error) {
	return signedFromBig[F](new(big.Int).Add(s.bigInt(), o.bigInt()))
}

func (s Signed[F]) Sub(o Signed[F]) (Signed[F], error) {
	return signedFromBig[F](new(big.Int).Sub(s.bigInt(), o.bigInt()))
}

// Mul truncates the magnitude of the product toward zero.
func (s Signed[F]) Mul(o Signed[F]) (Signed[F], error) {
	mag, err := s.mag.Mul(o.mag)
	if err != nil {
		return Signed[F]{}, err
	}
	return Signed[F]{mag: mag, neg: s.neg != o.neg && !mag.IsZero()}, nil
}

// Div truncates the quotient toward zero. Division by zero is ErrOverflow.
func (s Signed[F]) Div(o Signed[F]) (Signed[F], error) {
	mag, err := s.mag.Div(o.mag)
	if err != nil {
		return Signed[F]{}, err
	}
	return Signed[F]{mag: mag, neg: s.neg != o.neg && !mag.IsZero()}, nil
}

func (s Signed[F]) Float64() float64 {
	f := s.mag.Float64()
	if s.neg {
		return -f
	}
	return f
}

func (s Signed[F]) String() string {
	if s.neg {
		return "-" + s.mag.String()
	}
	return s.mag.String()
}

// ConvertSigned changes the format without losing information.
func ConvertSigned[T, F Format](s Signed[F]) (Signed[T], error) {
	mag, err := Convert[T](s.mag)
	if err != nil {
		return Signed[T]{}, err
	}
	return Signed[T]{mag: mag, neg: s.neg}, nil
}

// Unsigned returns the magnitude of a non-negative value.
func (s Signed[F]) Unsigned() (Unsigned[F], error) {
	if s.neg {
		return Unsigned[F]{}, ErrNegativeToUnsigned
	}
	return s.mag, nil
}
