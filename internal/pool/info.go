package pool

import (
	"fmt"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/tick"
)

// SpotSqrtprice removes the fee shift of level from its effective price.
func (p *Pool) SpotSqrtprice(side tick.Side, level tick.FeeLevel) float64 {
	return p.effSqrtprices[level][side] / level.OneOverSqrtOneMinusFeeRate()
}

func (p *Pool) SpotPrice(side tick.Side, level tick.FeeLevel) float64 {
	s := p.SpotSqrtprice(side, level)
	return s * s
}

func (p *Pool) SpotSqrtprices(side tick.Side) [tick.NumFeeLevels]float64 {
	var out [tick.NumFeeLevels]float64
	for _, level := range tick.Levels {
		out[level] = p.SpotSqrtprice(side, level)
	}
	return out
}

// Info reports the pool from the point of view of side: for the right side
// token order is swapped.
func (p *Pool) Info(side tick.Side) (Info, error) {
	swap := side == tick.Right
	positions, err := p.sumPositionReserves()
	if err != nil {
		return Info{}, fmt.Errorf("position reserves: %w", model.ErrInternalLogicError)
	}
	positionAmounts, err := floorAmounts(positions)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		TotalReserves:    p.totalReserves.Swapped(swap),
		PositionReserves: positionAmounts.Swapped(swap),
		SpotSqrtprices:   p.SpotSqrtprices(side),
		Liquidities:      p.Liquidities(),
		FeeRates:         tick.FeeRatesTicks(),
		FeeDivisor:       tick.BasisPointDivisor,
	}
	for _, level := range tick.Levels {
		info.EffSqrtprices[level] = p.effSqrtprices[level].Swapped(swap)
	}
	return info, nil
}

// LiquidityDistribution reports the percentage of the pool liquidity held by
// every level. It reports false when the pool holds no liquidity.
func (p *Pool) LiquidityDistribution() ([tick.NumFeeLevels]float64, bool) {
	var (
		out   [tick.NumFeeLevels]float64
		total float64
	)
	liquidities := p.Liquidities()
	for _, l := range liquidities {
		total += l.Float64()
	}
	if total == 0 {
		return out, false
	}
	for level, l := range liquidities {
		out[level] = l.Float64() * 100 / total
	}
	return out, true
}
