package tick

import "fmt"

// Side is a swap direction. Left means the left token is paid in.
type Side uint8

const (
	Left Side = iota
	Right
)

// Sides lists both directions in index order.
var Sides = [2]Side{Left, Right}

func (s Side) Opposite() Side {
	if s == Left {
		return Right
	}
	return Left
}

// OppositeIf returns the opposite side when cond holds.
func (s Side) OppositeIf(cond bool) Side {
	if cond {
		return s.Opposite()
	}
	return s
}

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	side, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// ParseSide accepts "left"/"l" and "right"/"r".
func ParseSide(v string) (Side, error) {
	switch v {
	case "left", "l", "Left":
		return Left, nil
	case "right", "r", "Right":
		return Right, nil
	}
	return Left, fmt.Errorf("unknown side %q", v)
}

// Pair holds one value per side, indexed by Side.
type Pair[T any] [2]T

func NewPair[T any](left, right T) Pair[T] {
	return Pair[T]{left, right}
}

func (p Pair[T]) Left() T  { return p[Left] }
func (p Pair[T]) Right() T { return p[Right] }

// Get returns the value for side s.
func (p Pair[T]) Get(s Side) T { return p[s] }

// Swapped exchanges the two values when cond holds.
func (p Pair[T]) Swapped(cond bool) Pair[T] {
	if cond {
		return Pair[T]{p[1], p[0]}
	}
	return p
}
