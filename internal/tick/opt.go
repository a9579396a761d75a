package tick

// Opt is a tick that may be absent. An absent tick orders before every tick.
type Opt struct {
	Tick  Tick
	Valid bool
}

// None is the absent tick.
var None Opt

func Some(t Tick) Opt { return Opt{Tick: t, Valid: true} }

// Is reports whether o holds t.
func (o Opt) Is(t Tick) bool { return o.Valid && o.Tick == t }

// Less orders absent ticks first.
func (o Opt) Less(p Opt) bool {
	if !o.Valid {
		return p.Valid
	}
	return p.Valid && o.Tick < p.Tick
}

// MinSome returns the smaller present tick, ignoring absent ones.
func MinSome(a, b Opt) Opt {
	switch {
	case !b.Valid:
		return a
	case !a.Valid:
		return b
	case b.Tick < a.Tick:
		return b
	}
	return a
}

// MaxOpt returns the greater of a and b, absent ticks being smallest.
func MaxOpt(a, b Opt) Opt {
	if a.Less(b) {
		return b
	}
	return a
}

// Index returns the tick index or nil.
func (o Opt) Index() *int32 {
	if !o.Valid {
		return nil
	}
	v := int32(o.Tick)
	return &v
}
