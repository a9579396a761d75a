package pool

import (
	"errors"
	"fmt"
	"math"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/tick"
)

// stepLimit tells what stopped a swap step.
type stepLimit uint8

const (
	stepComplete stepLimit = iota
	levelActivation
	tickCrossing
)

// lpFeeFractionBits is the precision kept for LP fee per fee liquidity.
const lpFeeFractionBits = 128

type stepResult struct {
	in        float64
	out       fp.U256X256
	limit     stepLimit
	crossings uint32
}

// Swap dispatches on kind. ToPrice needs a price limit.
func (p *Pool) Swap(side tick.Side, kind SwapKind, amount fp.Amount, protocolFee uint16, priceLimit *float64) (SwapResult, error) {
	switch kind {
	case ExactIn:
		return p.SwapExactIn(side, amount, protocolFee)
	case ExactOut:
		return p.SwapExactOut(side, amount, protocolFee)
	case ToPrice:
		if priceLimit == nil {
			return SwapResult{}, fmt.Errorf("to-price swap without limit: %w", model.ErrInvalidParams)
		}
		return p.SwapToPrice(side, amount, *priceLimit, protocolFee)
	}
	return SwapResult{}, fmt.Errorf("swap kind %d: %w", kind, model.ErrInvalidParams)
}

// SwapExactIn spends the whole amountIn of side.
func (p *Pool) SwapExactIn(side tick.Side, amountIn fp.Amount, protocolFee uint16) (SwapResult, error) {
	return p.swapExactInOrToPrice(side, amountIn, protocolFee, nil)
}

// SwapToPrice moves the effective sqrt-price of side up to limit, spending at
// most maxAmountIn. A limit at or below the current price is a no-op; a
// limit that is not a positive number is rejected.
func (p *Pool) SwapToPrice(side tick.Side, maxAmountIn fp.Amount, limit float64, protocolFee uint16) (SwapResult, error) {
	if !(limit > 0) {
		return SwapResult{}, fmt.Errorf("price limit %v: %w", limit, model.ErrInvalidParams)
	}
	if limit <= p.effSqrtprices[0][side] {
		return SwapResult{}, nil
	}
	return p.swapExactInOrToPrice(side, maxAmountIn, protocolFee, &limit)
}

func (p *Pool) swapExactInOrToPrice(side tick.Side, maxIn fp.Amount, protocolFee uint16, limit *float64) (SwapResult, error) {
	if maxIn.IsZero() {
		return SwapResult{}, fmt.Errorf("zero amount in: %w", model.ErrInvalidParams)
	}
	if !p.IsSpotPriceSet() {
		return SwapResult{}, fmt.Errorf("empty pool: %w", model.ErrInsufficientLiquidity)
	}
	p.updateActiveSide(side)
	initEff := p.activeEffSqrtprice()

	maxInFloat := maxIn.Float64()
	remaining := maxInFloat
	var (
		inFloat   float64
		out       fp.U256X256
		crossings uint32
	)
	for {
		gross, err := p.activeGrossLiquidity()
		if err != nil {
			return SwapResult{}, err
		}
		grossFloat := gross.Float64()
		target := requiredEffSqrtpriceExactIn(p.activeEffSqrtprice(), remaining, grossFloat)
		if limit != nil {
			target = math.Min(target, *limit)
		}
		step, err := p.tryStepToPrice(target, grossFloat, protocolFee)
		if err != nil {
			return SwapResult{}, err
		}
		remaining -= step.in
		inFloat += step.in
		if out, err = out.Add(step.out); err != nil {
			return SwapResult{}, swapAmountError("amount out", err)
		}
		crossings += step.crossings
		if step.limit == stepComplete {
			break
		}
	}

	// Rounding may make the price shift cost slightly more than the amount
	// given; the protocol fee covers the gap.
	if remaining < -maxInFloat*SwapMaxUnderpay {
		return SwapResult{}, fmt.Errorf("underpaid by %v of %v: %w", -remaining, maxInFloat, model.ErrInternalLogicError)
	}

	amountIn := maxIn
	if limit != nil {
		charged, err := fp.AmountFromFloat64(math.Ceil(inFloat))
		if err != nil {
			return SwapResult{}, swapAmountError("amount in", err)
		}
		amountIn = charged.Min(maxIn)
	}
	amountOut, err := fp.AmountFromUFP(out)
	if err != nil {
		return SwapResult{}, swapAmountError("amount out", err)
	}
	if limit == nil && amountOut.IsZero() {
		return SwapResult{}, fmt.Errorf("exact-in swap of %s yields nothing: %w", maxIn, model.ErrSwapAmountTooSmall)
	}
	if !amountOut.IsZero() && inFloat/amountOut.Float64() < (1-SwapMaxUnderpay)*initEff*initEff {
		return SwapResult{}, fmt.Errorf("swap price below initial price: %w", model.ErrInternalLogicError)
	}

	if err := p.settleSwap(side, amountIn, amountOut); err != nil {
		return SwapResult{}, err
	}
	return SwapResult{AmountIn: amountIn, AmountOut: amountOut, TickCrossings: crossings}, nil
}

// SwapExactOut buys exactly amountOut of the opposite token.
func (p *Pool) SwapExactOut(side tick.Side, amountOut fp.Amount, protocolFee uint16) (SwapResult, error) {
	if amountOut.IsZero() {
		return SwapResult{}, fmt.Errorf("zero amount out: %w", model.ErrInvalidParams)
	}
	if !p.IsSpotPriceSet() {
		return SwapResult{}, fmt.Errorf("empty pool: %w", model.ErrInsufficientLiquidity)
	}
	p.updateActiveSide(side)
	initEff := p.activeEffSqrtprice()

	var (
		inFloat   float64
		crossings uint32
	)
	remaining := fp.SignedOf(amountOut.UFP())
	for remaining.Sign() > 0 {
		gross, err := p.activeGrossLiquidity()
		if err != nil {
			return SwapResult{}, err
		}
		grossFloat := gross.Float64()
		target, err := requiredEffSqrtpriceExactOut(p.activeEffSqrtprice(), remaining.Float64(), grossFloat)
		if err != nil {
			return SwapResult{}, err
		}
		step, err := p.tryStepToPrice(target, grossFloat, protocolFee)
		if err != nil {
			return SwapResult{}, err
		}
		crossings += step.crossings
		inFloat += step.in
		if remaining, err = remaining.Sub(fp.SignedOf(step.out)); err != nil {
			return SwapResult{}, swapAmountError("amount out", err)
		}
	}

	// Round the amount to pay in favour of the pool.
	inFloat = math.Ceil(inFloat)
	amountIn, err := fp.AmountFromFloat64(inFloat)
	if err != nil {
		return SwapResult{}, swapAmountError("amount in", err)
	}
	if amountIn.IsZero() {
		return SwapResult{}, fmt.Errorf("exact-out swap of %s costs nothing: %w", amountOut, model.ErrSwapAmountTooSmall)
	}
	if inFloat/amountOut.Float64() < (1-SwapMaxUnderpay)*initEff*initEff {
		return SwapResult{}, fmt.Errorf("swap price below initial price: %w", model.ErrInternalLogicError)
	}

	if err := p.settleSwap(side, amountIn, amountOut); err != nil {
		return SwapResult{}, err
	}
	return SwapResult{AmountIn: amountIn, AmountOut: amountOut, TickCrossings: crossings}, nil
}

func (p *Pool) settleSwap(side tick.Side, amountIn, amountOut fp.Amount) error {
	if err := p.incTotalReserve(side, amountIn); err != nil {
		return fmt.Errorf("%s total reserve: %w", side, model.ErrDepositWouldOverflow)
	}
	if err := p.decTotalReserve(side.Opposite(), amountOut); err != nil {
		return fmt.Errorf("%s total reserve below amount out: %w", side.Opposite(), model.ErrInternalLogicError)
	}
	return nil
}

// swapAmountError reports fixed-point overflow of a swap amount as a domain error.
func swapAmountError(what string, err error) error {
	if errors.Is(err, fp.ErrOverflow) {
		return fmt.Errorf("%s: %w", what, model.ErrSwapAmountTooLarge)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// updateActiveSide resets the top level and flips the pivot when the swap
// direction changes.
func (p *Pool) updateActiveSide(side tick.Side) {
	if side == p.activeSide {
		return
	}
	p.resetTopLevel()
	p.activeSide = side
	p.pivot = p.pivot.Opposite(0)
}

// nearestActiveEffTick is the closest next tick in the swap direction over
// the active levels.
func (p *Pool) nearestActiveEffTick() (tick.EffTick, bool) {
	var (
		nearest tick.EffTick
		found   bool
	)
	for level := tick.FeeLevel(0); level <= p.topLevel; level++ {
		next := p.nextActive[level][p.activeSide]
		if !next.Valid {
			continue
		}
		eff := tick.EffTickFrom(next.Tick, level, p.activeSide)
		if !found || eff < nearest {
			nearest, found = eff, true
		}
	}
	return nearest, found
}

// tryStepToPrice moves the active price towards target, stopping early at a
// level activation or a tick crossing.
func (p *Pool) tryStepToPrice(target, gross float64, protocolFee uint16) (stepResult, error) {
	side := p.activeSide
	initEff := p.activeEffSqrtprice()
	if target < initEff {
		return stepResult{}, fmt.Errorf("step target %v below price %v: %w", target, initEff, model.ErrInternalLogicError)
	}

	limit := stepComplete
	if p.topLevel < tick.NumFeeLevels-1 {
		if next := p.effSqrtprices[p.topLevel+1][side]; next <= target {
			target, limit = next, levelActivation
		}
	}
	nearest, hasNearest := p.nearestActiveEffTick()
	if hasNearest {
		if price := nearest.EffSqrtprice(); price <= target {
			target, limit = price, tickCrossing
		}
	} else if p.topLevel == tick.NumFeeLevels-1 {
		return stepResult{}, fmt.Errorf("no liquidity beyond %v: %w", initEff, model.ErrInsufficientLiquidity)
	}

	shift := target - initEff
	in := shift * gross
	pivot, err := tick.FindPivot(p.pivot, target)
	if err != nil {
		return stepResult{}, err
	}
	p.pivot = pivot

	opposite := side.Opposite()
	var out fp.U256X256
	for level := tick.FeeLevel(0); level <= p.topLevel; level++ {
		var prices tick.EffSqrtprices
		if limit == tickCrossing {
			t, err := nearest.ToTick(level, side)
			if err != nil {
				if errors.Is(err, model.ErrPriceTickOutOfBounds) {
					return stepResult{}, fmt.Errorf("crossing beyond tick range: %w", model.ErrInsufficientLiquidity)
				}
				return stepResult{}, err
			}
			prices = tick.EffSqrtpricesFromTick(t, level)
		} else {
			if prices, err = tick.EffSqrtpricesFromValue(target, side, level, &p.pivot); err != nil {
				return stepResult{}, err
			}
		}
		prices[opposite] = math.Min(prices[opposite], p.effSqrtprices[level][opposite])

		delta, err := p.updatePricesAndPositionReserves(level, prices)
		if err != nil {
			return stepResult{}, err
		}
		if delta[opposite].Sign() > 0 {
			return stepResult{}, fmt.Errorf("level %d paid in on the out side: %w", level, model.ErrInternalLogicError)
		}
		if out, err = out.Add(delta[opposite].Abs()); err != nil {
			return stepResult{}, swapAmountError("step out", err)
		}
	}

	bound, err := fp.FromFloat64[fp.X256x256](in / initEff / target)
	if err != nil {
		return stepResult{}, swapAmountError("step out bound", err)
	}
	out = out.Min(bound)

	if err := p.accumulateFees(shift, protocolFee); err != nil {
		return stepResult{}, err
	}

	var crossings uint32
	switch limit {
	case levelActivation:
		p.topLevel++
	case tickCrossing:
		if crossings, err = p.crossTicks(nearest, p.topLevel, side); err != nil {
			return stepResult{}, err
		}
	}
	return stepResult{in: in, out: out, limit: limit, crossings: crossings}, nil
}

// updatePricesAndPositionReserves sets new prices on level and moves the
// position reserves by the implied balance change.
func (p *Pool) updatePricesAndPositionReserves(level tick.FeeLevel, prices tick.EffSqrtprices) (tick.Pair[fp.I256X256], error) {
	var delta tick.Pair[fp.I256X256]
	net, err := fp.Convert[fp.X256x256](p.netLiquidity[level])
	if err != nil {
		return delta, err
	}
	liq := fp.SignedOf(net)
	for _, side := range tick.Sides {
		oldPrice, err := fp.SignedFromFloat64[fp.X256x256](p.effSqrtprices[level][side])
		if err != nil {
			return delta, err
		}
		newPrice, err := fp.SignedFromFloat64[fp.X256x256](prices[side])
		if err != nil {
			return delta, err
		}
		shift, err := newPrice.Sub(oldPrice)
		if err != nil {
			return delta, err
		}
		if delta[side], err = shift.Mul(liq); err != nil {
			return delta, fmt.Errorf("level %d balance change: %w", level, model.ErrSwapAmountTooLarge)
		}
	}

	side, opposite := p.activeSide, p.activeSide.Opposite()
	if delta[side].IsNegative() || delta[opposite].Sign() > 0 {
		return delta, fmt.Errorf("level %d balance change has wrong direction: %w", level, model.ErrInternalLogicError)
	}
	if err := p.incPositionReserve(level, side, delta[side].Abs()); err != nil {
		return delta, fmt.Errorf("level %d position reserve: %w", level, model.ErrSwapAmountTooLarge)
	}
	// The step is bounded by the liquidity, so the reserve never goes negative.
	if err := p.decPositionReserve(level, opposite, delta[opposite].Abs()); err != nil {
		return delta, fmt.Errorf("level %d position reserve exhausted: %w", level, model.ErrInternalLogicError)
	}
	p.effSqrtprices[level] = prices
	return delta, nil
}

// accumulateFees books the LP share of a price shift. The LP fee per fee
// liquidity keeps 128 fractional bits so that its product with the fee
// liquidity is exact.
func (p *Pool) accumulateFees(shift float64, protocolFee uint16) error {
	s, err := fp.FromFloat64[fp.X256x256](shift)
	if err != nil {
		return fmt.Errorf("price shift %v: %w", shift, err)
	}
	factor, err := fp.FromUint64[fp.X256x256](uint64(tick.BasisPointDivisor - int(protocolFee))).
		Div(fp.FromUint64[fp.X256x256](tick.BasisPointDivisor))
	if err != nil {
		return err
	}
	lp, err := s.Mul(factor)
	if err != nil {
		return err
	}
	lp128, err := fp.Truncate[fp.X128x128](lp)
	if err != nil {
		return fmt.Errorf("lp fee per fee liquidity: %w", err)
	}

	feeLiq, err := p.activeFeeLiquidity()
	if err != nil {
		return err
	}
	wideFeeLiq, err := fp.Convert[fp.X256x256](feeLiq)
	if err != nil {
		return err
	}
	wideLP, _ := fp.Convert[fp.X256x256](lp128)
	if !fitsFractionBits(wideFeeLiq, lpFeeFractionBits) || !fitsFractionBits(wideLP, lpFeeFractionBits) {
		return fmt.Errorf("fee product would round: %w", model.ErrInternalLogicError)
	}
	fee, err := wideLP.Mul(wideFeeLiq)
	if err != nil {
		return fmt.Errorf("lp fee: %w", err)
	}

	side := p.activeSide
	total, err := p.accLPFee[side].Add(fee)
	if err != nil {
		return fmt.Errorf("accumulated lp fee: %w", err)
	}
	acc, err := p.accPerFeeLiq[p.topLevel][side].Add(fp.SignedOf(lp128))
	if err != nil {
		return fmt.Errorf("lp fee per fee liquidity: %w", err)
	}
	p.accLPFee[side] = total
	p.accPerFeeLiq[p.topLevel][side] = acc
	return nil
}

// fitsFractionBits reports whether x has no bits below 2^-bits.
func fitsFractionBits(x fp.U256X256, bits uint) bool {
	raw := x.Raw()
	if raw.Sign() == 0 {
		return true
	}
	const fracBits = 256
	return raw.TrailingZeroBits() >= fracBits-bits
}

// requiredEffSqrtpriceExactIn is the price a swap of amount reaches with
// constant liquidity. Zero liquidity yields math.MaxFloat64.
func requiredEffSqrtpriceExactIn(current, amount, gross float64) float64 {
	if gross == 0 {
		return math.MaxFloat64
	}
	shift := amount / gross
	var target float64
	if current > shift {
		target = tick.NextDown(current) + shift
	} else {
		target = current + tick.NextDown(shift)
	}
	return math.Max(target, current)
}

// requiredEffSqrtpriceExactOut is the price at which amount is bought with
// constant liquidity, rounded so the trader pays at least for amount.
// math.MaxFloat64 means the active liquidity cannot provide amount at any price.
func requiredEffSqrtpriceExactOut(current, amount, gross float64) (float64, error) {
	if gross == 0 {
		return math.MaxFloat64, nil
	}
	inverse := 1 / current
	required := amount / gross
	if required >= tick.NextDown(inverse) {
		return math.MaxFloat64, nil
	}
	newInverse := tick.NextDown(inverse) - required
	if !isNormal(newInverse) {
		return 0, fmt.Errorf("inverse price %v: %w", newInverse, model.ErrInternalLogicError)
	}
	if (1/current-newInverse)*gross < amount {
		return 0, fmt.Errorf("price shift too small for %v: %w", amount, model.ErrInternalLogicError)
	}
	target := math.Max(tick.NextUp(1/newInverse), tick.NextUp(current))
	if target <= current {
		return 0, fmt.Errorf("price did not move from %v: %w", current, model.ErrInternalLogicError)
	}
	return target, nil
}
