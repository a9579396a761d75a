package pool

import (
	"fmt"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/tick"
)

// rangeOrder tells where the spot price of a level lies relative to a tick range.
type rangeOrder int

const (
	belowRange rangeOrder = -1
	inRange    rangeOrder = 0
	aboveRange rangeOrder = 1
)

// tickAdd references t on level and adds change to its net liquidity change.
func (p *Pool) tickAdd(level tick.FeeLevel, t tick.Tick, change fp.I192X64) (fp.I192X64, error) {
	state, _ := p.ticks[level].Get(t)
	sum, err := state.NetLiquidityChange.Add(change)
	if err != nil {
		return fp.I192X64{}, fmt.Errorf("tick %d change: %w", t, model.ErrLiquidityTooBig)
	}
	state.NetLiquidityChange = sum
	state.RefCount++
	p.ticks[level].Insert(t, state)
	return sum, nil
}

// tickRemove drops one reference to t. When the last reference goes, the tick
// is deleted and the next active ticks pointing at it move past it.
func (p *Pool) tickRemove(level tick.FeeLevel, t tick.Tick, change fp.I192X64) (fp.I192X64, error) {
	state, ok := p.ticks[level].Get(t)
	if !ok {
		return fp.I192X64{}, fmt.Errorf("tick %d on level %d: %w", t, level, model.ErrInternalTickNotFound)
	}
	diff, err := state.NetLiquidityChange.Sub(change)
	if err != nil {
		return fp.I192X64{}, fmt.Errorf("tick %d change: %w", t, model.ErrInternalLogicError)
	}
	if state.RefCount == 0 {
		return fp.I192X64{}, fmt.Errorf("tick %d has no references: %w", t, model.ErrInternalLogicError)
	}
	state.NetLiquidityChange = diff
	state.RefCount--

	if state.RefCount > 0 {
		p.ticks[level].Insert(t, state)
		return diff, nil
	}
	if !diff.IsZero() {
		return fp.I192X64{}, fmt.Errorf("released tick %d keeps liquidity %s: %w", t, diff, model.ErrInternalLogicError)
	}
	p.ticks[level].Remove(t)
	for _, side := range tick.Sides {
		if p.nextActive[level][side].Is(t) {
			p.nextActive[level][side] = p.findNextActiveTick(t, level, side)
		}
	}
	return diff, nil
}

// findNextActiveTick scans strictly beyond from in the swap direction of side.
func (p *Pool) findNextActiveTick(from tick.Tick, level tick.FeeLevel, side tick.Side) tick.Opt {
	var (
		t  tick.Tick
		ok bool
	)
	if side == tick.Left {
		t, _, ok = p.ticks[level].Above(from)
	} else {
		t, _, ok = p.ticks[level].Below(from)
	}
	if !ok {
		return tick.None
	}
	return tick.Some(t)
}

func (p *Pool) tickAccOutside(level tick.FeeLevel, t tick.Tick) tick.Pair[fp.I128X128] {
	state, _ := p.ticks[level].Get(t)
	return state.AccOutside
}

// updateNextActiveTicks accounts for a tick a new position is about to reference.
// Prices may lie exactly on the tick on one side and a rounding step away on
// the other, and an already active tick under the price must not move.
func (p *Pool) updateNextActiveTicks(t tick.Tick, level tick.FeeLevel) error {
	eff := p.effSqrtprices[level]
	next := &p.nextActive[level]
	if eff[tick.Left] < t.EffSqrtprice(level, tick.Left) {
		if eff[tick.Right] < t.EffSqrtprice(level, tick.Right) {
			return fmt.Errorf("tick %d above left price but below right price: %w", t, model.ErrInternalLogicError)
		}
		if !next[tick.Right].Less(tick.Some(t)) {
			return fmt.Errorf("tick %d not above next right tick: %w", t, model.ErrInternalLogicError)
		}
		next[tick.Left] = tick.MinSome(next[tick.Left], tick.Some(t))
		return nil
	}

	if eff[tick.Right] > t.EffSqrtprice(level, tick.Right) {
		return fmt.Errorf("tick %d below left price but above right price: %w", t, model.ErrInternalLogicError)
	}
	if next[tick.Left].Is(t) {
		if eff[tick.Left] != t.EffSqrtprice(level, tick.Left) {
			return fmt.Errorf("next left tick %d is not at the price: %w", t, model.ErrInternalLogicError)
		}
		return nil
	}
	next[tick.Right] = tick.MaxOpt(next[tick.Right], tick.Some(t))
	return nil
}

// cmpSpotPriceToRange compares next active ticks rather than prices: a price
// sitting exactly on a tick is ambiguous, the next ticks are not.
func (p *Pool) cmpSpotPriceToRange(level tick.FeeLevel, low, high tick.Tick) (rangeOrder, error) {
	nextLeft, nextRight := p.nextActive[level][tick.Left], p.nextActive[level][tick.Right]
	switch {
	case nextLeft.Valid && nextRight.Valid:
		switch {
		case low <= nextRight.Tick && nextLeft.Tick <= high:
			return inRange, nil
		case high <= nextRight.Tick:
			return aboveRange, nil
		case nextLeft.Tick <= low:
			return belowRange, nil
		}
		return 0, fmt.Errorf("range [%d, %d] vs next ticks (%d, %d): %w",
			low, high, nextLeft.Tick, nextRight.Tick, model.ErrInternalLogicError)
	case nextLeft.Valid && nextLeft.Tick <= low:
		return belowRange, nil
	case nextRight.Valid && high <= nextRight.Tick:
		return aboveRange, nil
	}
	return 0, fmt.Errorf("range [%d, %d] on level %d: %w", low, high, level, model.ErrInternalTickNotFound)
}

// accRange is the LP fee per fee liquidity accumulated inside [low, high] on
// level since the pool was created. Ticks not yet referenced count as zero.
func (p *Pool) accRange(level tick.FeeLevel, low, high tick.Tick) (tick.Pair[fp.I128X128], error) {
	lower := p.tickAccOutside(level, low)
	upper := p.tickAccOutside(level, high)
	order, err := p.cmpSpotPriceToRange(level, low, high)
	if err != nil {
		return tick.Pair[fp.I128X128]{}, err
	}
	var global tick.Pair[fp.I128X128]
	if order == inRange {
		if global, err = p.globalAcc(level); err != nil {
			return global, err
		}
	}

	var out tick.Pair[fp.I128X128]
	for _, side := range tick.Sides {
		var v fp.I128X128
		switch order {
		case inRange:
			v, err = global[side].Sub(lower[side])
			if err == nil {
				v, err = v.Sub(upper[side])
			}
		case belowRange:
			v, err = lower[side].Sub(upper[side])
		case aboveRange:
			v, err = upper[side].Sub(lower[side])
		}
		if err != nil {
			return out, fmt.Errorf("range accumulator: %w", err)
		}
		out[side] = v
	}
	return out, nil
}

// flipTick moves the price across t on level: the outside accumulators now
// cover the other half of the price scale and the net liquidity of the level
// changes by the tick's net change in the swap direction.
func (p *Pool) flipTick(level tick.FeeLevel, t tick.Tick, side tick.Side) error {
	state, ok := p.ticks[level].Get(t)
	if !ok {
		return fmt.Errorf("tick %d on level %d: %w", t, level, model.ErrInternalTickNotFound)
	}
	global, err := p.globalAcc(level)
	if err != nil {
		return err
	}
	for _, s := range tick.Sides {
		flipped, err := global[s].Sub(state.AccOutside[s])
		if err != nil {
			return fmt.Errorf("flip tick %d: %w", t, err)
		}
		state.AccOutside[s] = flipped
	}
	p.ticks[level].Insert(t, state)

	change := state.NetLiquidityChange
	if side == tick.Right {
		change = change.Neg()
	}
	if change.IsNegative() {
		return p.decNetLiquidity(level, change.Abs())
	}
	return p.incNetLiquidity(level, change.Abs())
}

// crossTicks crosses every active level whose next tick maps to the crossed
// effective tick and returns how many ticks were crossed.
func (p *Pool) crossTicks(crossed tick.EffTick, top tick.FeeLevel, side tick.Side) (uint32, error) {
	var count uint32
	for level := tick.FeeLevel(0); level <= top; level++ {
		next := p.nextActive[level][side]
		if !next.Valid || tick.EffTickFrom(next.Tick, level, side) != crossed {
			continue
		}
		if err := p.flipTick(level, next.Tick, side); err != nil {
			return count, err
		}
		following := p.findNextActiveTick(next.Tick, level, side)
		p.nextActive[level][side.Opposite()] = next
		p.nextActive[level][side] = following
		count++
	}
	return count, nil
}

// TicksLiquidityChange lists up to n referenced ticks of level from start
// (inclusive, ascending) with their net liquidity change. For the right side
// the listing is mirrored: reversed order, opposite ticks and negated changes.
func (p *Pool) TicksLiquidityChange(level tick.FeeLevel, side tick.Side, start tick.Tick, n int) []TickChange {
	out := make([]TickChange, 0)
	p.ticks[level].Ascend(start, func(t tick.Tick, s TickState) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, TickChange{Tick: t, Change: s.NetLiquidityChange.Float64()})
		return true
	})
	return mirrorIf(side == tick.Right, out)
}

// AllTicksLiquidityChange lists every referenced tick of level as seen from side.
func (p *Pool) AllTicksLiquidityChange(level tick.FeeLevel, side tick.Side) []TickChange {
	out := make([]TickChange, 0, p.ticks[level].Len())
	p.ticks[level].Each(func(t tick.Tick, s TickState) bool {
		out = append(out, TickChange{Tick: t, Change: s.NetLiquidityChange.Float64()})
		return true
	})
	return mirrorIf(side == tick.Right, out)
}

func mirrorIf(cond bool, changes []TickChange) []TickChange {
	if !cond {
		return changes
	}
	out := make([]TickChange, len(changes))
	for i, c := range changes {
		out[len(changes)-1-i] = TickChange{Tick: c.Tick.Opposite(), Change: -c.Change}
	}
	return out
}
