// Package pool holds the per-pair liquidity state and the swap executor.
//
// A pool keeps eight fee levels side by side. Every level has its own tick
// index, net liquidity and effective sqrt-prices; swaps move the effective
// price of all active levels together and activate higher levels as the
// price reaches them.
package pool

import (
	"fmt"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/store"
	"liquidityEngine/internal/tick"
)

// PositionID identifies a position across all pools.
type PositionID = uint64

// TickState is the per-tick bookkeeping on one fee level.
type TickState struct {
	NetLiquidityChange fp.I192X64
	RefCount           uint32
	// AccOutside is the LP fee per fee liquidity accumulated on the far side of the tick.
	AccOutside tick.Pair[fp.I128X128]
}

// Position is a liquidity position inside one pool.
type Position struct {
	FeeLevel     tick.FeeLevel
	NetLiquidity fp.U192X64
	// InitAcc and UnwithdrawnAcc snapshot the in-range fee accumulator at
	// creation and at the last harvest.
	InitAcc        tick.Pair[fp.I128X128]
	UnwithdrawnAcc tick.Pair[fp.I128X128]
	InitSqrtprice  float64
	Low            tick.Tick
	High           tick.Tick
}

// Pool is the state of one token pair. The zero value is not usable; use New.
type Pool struct {
	positions store.OrderedMap[PositionID, Position]
	ticks     [tick.NumFeeLevels]store.OrderedMap[tick.Tick, TickState]

	// totalReserves include positions and collected LP and protocol fees.
	totalReserves    tick.Pair[fp.Amount]
	positionReserves [tick.NumFeeLevels]tick.Pair[fp.U256X256]
	accLPFee         tick.Pair[fp.U256X256]
	// accPerFeeLiq[L] sums the price shifts performed while L was the top
	// active level; the total for level k is the sum over L >= k.
	accPerFeeLiq  [tick.NumFeeLevels]tick.Pair[fp.I128X128]
	effSqrtprices [tick.NumFeeLevels]tick.EffSqrtprices
	nextActive    [tick.NumFeeLevels]tick.Pair[tick.Opt]
	netLiquidity  [tick.NumFeeLevels]fp.U192X64

	topLevel   tick.FeeLevel
	activeSide tick.Side
	pivot      tick.EffTick
}

// New creates an empty pool whose collections are namespaced by f.
func New(f *store.Factory) *Pool {
	p := &Pool{positions: store.NewOrderedMap[PositionID, Position](f, "positions")}
	for i := range p.ticks {
		p.ticks[i] = store.NewOrderedMap[tick.Tick, TickState](f, fmt.Sprintf("ticks.%d", i))
	}
	return p
}

// Clone returns an independent copy. Collections are copied lazily.
func (p *Pool) Clone() *Pool {
	c := *p
	c.positions = p.positions.Clone()
	for i := range p.ticks {
		c.ticks[i] = p.ticks[i].Clone()
	}
	return &c
}

func (p *Pool) ActiveSide() tick.Side { return p.activeSide }

func (p *Pool) TopActiveLevel() tick.FeeLevel { return p.topLevel }

func (p *Pool) Pivot() tick.EffTick { return p.pivot }

func (p *Pool) TotalReserves() tick.Pair[fp.Amount] { return p.totalReserves }

func (p *Pool) AccLPFee() tick.Pair[fp.U256X256] { return p.accLPFee }

func (p *Pool) EffSqrtprice(level tick.FeeLevel, side tick.Side) float64 {
	return p.effSqrtprices[level][side]
}

func (p *Pool) EffSqrtprices(level tick.FeeLevel) tick.EffSqrtprices {
	return p.effSqrtprices[level]
}

func (p *Pool) NetLiquidity(level tick.FeeLevel) fp.U192X64 { return p.netLiquidity[level] }

func (p *Pool) NextActiveTick(level tick.FeeLevel, side tick.Side) tick.Opt {
	return p.nextActive[level][side]
}

func (p *Pool) PositionReserves(level tick.FeeLevel) tick.Pair[fp.U256X256] {
	return p.positionReserves[level]
}

// PositionCount returns the number of open positions.
func (p *Pool) PositionCount() int { return p.positions.Len() }

// Position returns a copy of the position state.
func (p *Pool) Position(id PositionID) (Position, bool) {
	return p.positions.Get(id)
}

// PositionIDs lists open positions in ascending id order.
func (p *Pool) PositionIDs() []PositionID {
	return store.Keys(p.positions)
}

// IsSpotPriceSet is false for a pool without positions: prices are reset to zero then.
func (p *Pool) IsSpotPriceSet() bool {
	return p.effSqrtprices[0][tick.Left] != 0
}

// ContainsAnyPositions relies on every closed position releasing its ticks.
func (p *Pool) ContainsAnyPositions() bool {
	for _, m := range p.ticks {
		if m.Len() > 0 {
			return true
		}
	}
	return false
}

func (p *Pool) resetTopLevel() { p.topLevel = 0 }
func (p *Pool) resetEffSqrtprices() { p.effSqrtprices = [tick.NumFeeLevels]tick.EffSqrtprices{} }
func (p *Pool) activeEffSqrtprice() float64 { return p.effSqrtprices[p.topLevel][p.activeSide] }

func (p *Pool) incTotalReserve(side tick.Side, v fp.Amount) error {
	sum, err := p.totalReserves[side].Add(v)
	if err != nil {
		return err
	}
	p.totalReserves[side] = sum
	return nil
}

func (p *Pool) decTotalReserve(side tick.Side, v fp.Amount) error {
	diff, err := p.totalReserves[side].Sub(v)
	if err != nil {
		return err
	}
	p.totalReserves[side] = diff
	return nil
}

func (p *Pool) decTotalReserves(v tick.Pair[fp.Amount]) error {
	for _, side := range tick.Sides {
		if err := p.decTotalReserve(side, v[side]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) incPositionReserve(level tick.FeeLevel, side tick.Side, v fp.U256X256) error {
	sum, err := p.positionReserves[level][side].Add(v)
	if err != nil {
		return err
	}
	p.positionReserves[level][side] = sum
	return nil
}

func (p *Pool) decPositionReserve(level tick.FeeLevel, side tick.Side, v fp.U256X256) error {
	diff, err := p.positionReserves[level][side].Sub(v)
	if err != nil {
		return err
	}
	p.positionReserves[level][side] = diff
	return nil
}

func (p *Pool) incNetLiquidity(level tick.FeeLevel, v fp.U192X64) error {
	sum, err := p.netLiquidity[level].Add(v)
	if err != nil {
		return fmt.Errorf("net liquidity on level %d: %w", level, model.ErrInternalLogicError)
	}
	p.netLiquidity[level] = sum
	return nil
}

func (p *Pool) decNetLiquidity(level tick.FeeLevel, v fp.U192X64) error {
	diff, err := p.netLiquidity[level].Sub(v)
	if err != nil {
		return fmt.Errorf("net liquidity on level %d: %w", level, model.ErrInternalLogicError)
	}
	p.netLiquidity[level] = diff
	return nil
}

// sumPositionReserves adds position reserves over all levels.
func (p *Pool) sumPositionReserves() (tick.Pair[fp.U256X256], error) {
	var sum tick.Pair[fp.U256X256]
	for _, level := range tick.Levels {
		for _, side := range tick.Sides {
			v, err := sum[side].Add(p.positionReserves[level][side])
			if err != nil {
				return sum, err
			}
			sum[side] = v
		}
	}
	return sum, nil
}

// globalAcc is the LP fee per fee liquidity accumulated on level since the pool
// was created.
func (p *Pool) globalAcc(level tick.FeeLevel) (tick.Pair[fp.I128X128], error) {
	var acc tick.Pair[fp.I128X128]
	for l := level; l < tick.NumFeeLevels; l++ {
		for _, side := range tick.Sides {
			v, err := acc[side].Add(p.accPerFeeLiq[l][side])
			if err != nil {
				return acc, err
			}
			acc[side] = v
		}
	}
	return acc, nil
}
