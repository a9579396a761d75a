package pool

import (
	"errors"
	"fmt"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/tick"
)

// grossLiquidity is net liquidity scaled by 1/(1-fee): the input per unit of
// effective sqrt-price shift.
func grossLiquidity(net fp.U192X64, level tick.FeeLevel) fp.U192X192 {
	return scaleNet(net, level.OneOverOneMinusFeeRate())
}

// feeLiquidity is the part of the gross liquidity retained as fee.
func feeLiquidity(net fp.U192X64, level tick.FeeLevel) fp.U192X192 {
	return scaleNet(net, level.OneOverOneMinusFeeRate()-1)
}

// scaleNet multiplies in a format wide enough for both factors; neither has
// more than 64 fractional bits, so the product is exact.
func scaleNet(net fp.U192X64, factor float64) fp.U192X192 {
	n, _ := fp.Convert[fp.X192x192](net)
	f, err := fp.FromFloat64[fp.X192x192](factor)
	if err != nil {
		panic(fmt.Sprintf("fee factor %v: %v", factor, err))
	}
	prod, err := n.Mul(f)
	if err != nil {
		panic(fmt.Sprintf("scaled liquidity overflow: %v", err))
	}
	return prod
}

// Liquidity is the level's net liquidity in spot terms.
func (p *Pool) Liquidity(level tick.FeeLevel) fp.U192X64 {
	f, _ := fp.FromFloat64[fp.X192x64](level.OneOverSqrtOneMinusFeeRate())
	l, _ := p.netLiquidity[level].Mul(f)
	return l
}

func (p *Pool) Liquidities() [tick.NumFeeLevels]fp.U192X64 {
	var out [tick.NumFeeLevels]fp.U192X64
	for _, level := range tick.Levels {
		out[level] = p.Liquidity(level)
	}
	return out
}

// activeGrossLiquidity sums gross liquidity over levels 0..top.
func (p *Pool) activeGrossLiquidity() (fp.U192X192, error) {
	var sum fp.U192X192
	for level := tick.FeeLevel(0); level <= p.topLevel; level++ {
		v, err := sum.Add(grossLiquidity(p.netLiquidity[level], level))
		if err != nil {
			return sum, fmt.Errorf("gross liquidity: %w", model.ErrInternalLogicError)
		}
		sum = v
	}
	return sum, nil
}

// activeFeeLiquidity sums fee liquidity over levels 0..top.
func (p *Pool) activeFeeLiquidity() (fp.U192X192, error) {
	var sum fp.U192X192
	for level := tick.FeeLevel(0); level <= p.topLevel; level++ {
		v, err := sum.Add(feeLiquidity(p.netLiquidity[level], level))
		if err != nil {
			return sum, fmt.Errorf("fee liquidity: %w", model.ErrInternalLogicError)
		}
		sum = v
	}
	return sum, nil
}

// positionBalanceUFP evaluates the tokens held by a position of net liquidity
// over [low, high] at the given effective prices.
func positionBalanceUFP(net fp.U192X64, low, high tick.Tick, eff tick.EffSqrtprices, level tick.FeeLevel) (tick.Pair[fp.U256X256], error) {
	lower := tick.NewPair(low.EffSqrtprice(level, tick.Left), high.EffSqrtprice(level, tick.Right))
	upper := tick.NewPair(high.EffSqrtprice(level, tick.Left), low.EffSqrtprice(level, tick.Right))
	liq, err := fp.Convert[fp.X256x256](net)
	if err != nil {
		return tick.Pair[fp.U256X256]{}, err
	}

	var out tick.Pair[fp.U256X256]
	for _, side := range tick.Sides {
		if eff[side] <= lower[side] {
			continue
		}
		top := upper[side]
		if eff[side] < top {
			top = eff[side]
		}
		hi, err := fp.FromFloat64[fp.X256x256](top)
		if err != nil {
			return out, fmt.Errorf("balance price: %w", err)
		}
		lo, err := fp.FromFloat64[fp.X256x256](lower[side])
		if err != nil {
			return out, fmt.Errorf("balance bound: %w", err)
		}
		span, err := hi.Sub(lo)
		if err != nil {
			return out, fmt.Errorf("balance span: %w", err)
		}
		if out[side], err = liq.Mul(span); err != nil {
			return out, fmt.Errorf("balance: %w", err)
		}
	}
	return out, nil
}

func floorAmounts(v tick.Pair[fp.U256X256]) (tick.Pair[fp.Amount], error) {
	var out tick.Pair[fp.Amount]
	for _, side := range tick.Sides {
		a, err := fp.AmountFromUFP(v[side])
		if err != nil {
			return out, err
		}
		out[side] = a
	}
	return out, nil
}

// evalInitialEffSqrtprice picks the effective sqrt-price at which the first
// position deposits as much of both maximum amounts as the range allows. It
// returns the price and the side it is expressed for.
func evalInitialEffSqrtprice(maxLeft, maxRight float64, low, high tick.Tick, level tick.FeeLevel) (float64, tick.Side, error) {
	switch {
	case maxLeft > 0 && maxRight > 0:
		return evalInitialEffSqrtpriceBoth(maxLeft, maxRight, low, high, level)
	case maxLeft > 0:
		// Only the left token: the price sits at the high end of the range.
		if high >= tick.Max {
			return 0, 0, fmt.Errorf("left-only position needs a finite high tick: %w", model.ErrSlippage)
		}
		return high.EffSqrtprice(level, tick.Right), tick.Right, nil
	case maxRight > 0:
		if low <= tick.Min {
			return 0, 0, fmt.Errorf("right-only position needs a finite low tick: %w", model.ErrSlippage)
		}
		return low.EffSqrtprice(level, tick.Left), tick.Left, nil
	}
	return 0, 0, fmt.Errorf("both amounts are zero: %w", model.ErrInvalidParams)
}

// evalInitialEffSqrtpriceBoth solves the quadratic of a position holding both
// amounts for the effective sqrt-price on the side with the smaller ratio.
func evalInitialEffSqrtpriceBoth(maxLeft, maxRight float64, low, high tick.Tick, level tick.FeeLevel) (float64, tick.Side, error) {
	lowLeft := low.EffSqrtprice(level, tick.Left)
	lowRight := high.EffSqrtprice(level, tick.Right)

	side := tick.Right
	if maxLeft*lowRight <= maxRight*lowLeft {
		side = tick.Left
	}
	var ratio, first, second, oneOver float64
	if side == tick.Left {
		ratio = maxLeft / maxRight
		first, second = lowLeft, lowRight
		oneOver = lowLeft * low.EffSqrtprice(level, tick.Right)
	} else {
		ratio = maxRight / maxLeft
		first, second = lowRight, lowLeft
		oneOver = lowRight * high.EffSqrtprice(level, tick.Left)
	}

	minusB, err := fp.SignedFromFloat64[fp.X256x256](first)
	if err != nil {
		return 0, 0, fmt.Errorf("initial price bound %v: %w", first, model.ErrInternalLogicError)
	}
	term, err := fp.SignedFromFloat64[fp.X256x256](ratio * second)
	switch {
	case err == nil:
	case errors.Is(err, fp.ErrPrecisionLoss):
		term = fp.I256X256{}
	default:
		return 0, 0, fmt.Errorf("initial price: %w", err)
	}
	if minusB, err = minusB.Sub(term); err != nil {
		return 0, 0, fmt.Errorf("initial price: %w", err)
	}
	b := minusB.Abs()
	if minusB.IsNegative() {
		b = fp.U256X256{}
	}

	c, err := fp.FromFloat64[fp.X256x256](4 * ratio * oneOver)
	if err != nil {
		return 0, 0, fmt.Errorf("initial price discriminant: %w", model.ErrInternalLogicError)
	}
	bb, err := b.Mul(b)
	if err != nil {
		return 0, 0, fmt.Errorf("initial price: %w", err)
	}
	disc, err := bb.Add(c)
	if err != nil {
		return 0, 0, fmt.Errorf("initial price: %w", err)
	}
	root, err := disc.Sqrt().Add(b)
	if err != nil {
		return 0, 0, fmt.Errorf("initial price: %w", err)
	}
	eff := tick.NextUp(root.Float64()) * 0.5

	var lo, hi float64
	if side == tick.Left {
		lo, hi = low.EffSqrtprice(level, tick.Left), high.EffSqrtprice(level, tick.Left)
	} else {
		lo, hi = high.EffSqrtprice(level, tick.Right), low.EffSqrtprice(level, tick.Right)
	}
	if eff < lo || eff > hi {
		return 0, 0, fmt.Errorf("initial price %v outside [%v, %v]: %w", eff, lo, hi, model.ErrInternalLogicError)
	}
	return eff, side, nil
}
