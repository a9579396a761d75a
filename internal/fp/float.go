package fp

import (
	"math"
	"math/big"
)

// FromFloat64 converts a float exactly. The mantissa is placed with 64-bit word
// granularity: a word landing above the format is ErrOverflow, a nonzero word
// landing below the lowest fractional word is ErrPrecisionLoss.
func FromFloat64[F Format](v float64) (Unsigned[F], error) {
	switch {
	case math.IsNaN(v):
		return Unsigned[F]{}, ErrNaN
	case math.IsInf(v, 0):
		return Unsigned[F]{}, ErrOverflow
	case math.Signbit(v):
		return Unsigned[F]{}, ErrNegativeToUnsigned
	}
	total, frac := layout[F]()
	mant, exp := decompose(v)
	raw, err := placeMantissa(mant, exp, total, frac)
	if err != nil {
		return Unsigned[F]{}, err
	}
	return fromRaw[F](raw)
}

// SignedFromFloat64 converts a float keeping its sign.
func SignedFromFloat64[F Format](v float64) (Signed[F], error) {
	if math.IsNaN(v) {
		return Signed[F]{}, ErrNaN
	}
	mag, err := FromFloat64[F](math.Abs(v))
	if err != nil {
		return Signed[F]{}, err
	}
	return Signed[F]{mag: mag, neg: v < 0 && !mag.IsZero()}, nil
}

// decompose returns mant and exp with v == mant * 2^exp.
func decompose(v float64) (uint64, int) {
	bits := math.Float64bits(v)
	e := int((bits >> 52) & 0x7ff)
	m := bits & (1<<52 - 1)
	if e == 0 {
		m <<= 1
	} else {
		m |= 1 << 52
	}
	return m, e - 1075
}

func placeMantissa(mant uint64, exp int, totalBits, fracBits uint) (*big.Int, error) {
	totalWords := int(totalBits / 64)
	fracWords := int(fracBits / 64)

	wordPos := floorDiv(exp, 64)
	up := uint(exp - wordPos*64)
	lower := mant << up
	var higher uint64
	if up > 0 {
		higher = mant >> (64 - up)
	}

	raw := new(big.Int)
	for i, word := range [2]uint64{lower, higher} {
		if word == 0 {
			continue
		}
		idx := wordPos + fracWords + i
		if idx >= totalWords {
			return nil, ErrOverflow
		}
		if idx < 0 {
			return nil, ErrPrecisionLoss
		}
		w := new(big.Int).SetUint64(word)
		raw.Or(raw, w.Lsh(w, uint(idx)*64))
	}
	return raw, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
