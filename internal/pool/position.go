package pool

import (
	"fmt"
	"math"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/tick"
)

// OpenPosition adds a position with id on level. The deposit is derived from
// the maximum amounts and the current price; the first position of an empty
// pool sets the price.
func (p *Pool) OpenPosition(in PositionInit, level tick.FeeLevel, id PositionID) (OpenedInfo, error) {
	if !level.Valid() {
		return OpenedInfo{}, fmt.Errorf("fee level %d: %w", level, model.ErrIllegalFee)
	}
	low, high, err := tick.UnwrapRange(in.LowTick, in.HighTick)
	if err != nil {
		return OpenedInfo{}, err
	}
	for _, side := range tick.Sides {
		if in.AmountRanges[side].Max.Cmp(in.AmountRanges[side].Min) < 0 {
			return OpenedInfo{}, fmt.Errorf("%s amount range: %w", side, model.ErrInvalidParams)
		}
	}
	if high <= low {
		return OpenedInfo{}, fmt.Errorf("tick range [%d, %d]: %w", low, high, model.ErrInvalidParams)
	}

	var maxFloat tick.Pair[float64]
	for _, side := range tick.Sides {
		maxFloat[side] = tick.NextDown(in.AmountRanges[side].Max.Float64())
	}

	if !p.IsSpotPriceSet() {
		eff, side, err := evalInitialEffSqrtprice(maxFloat[tick.Left], maxFloat[tick.Right], low, high, level)
		if err != nil {
			return OpenedInfo{}, err
		}
		if err := p.initFromEffSqrtprice(eff, side, level); err != nil {
			return OpenedInfo{}, err
		}
	}

	for _, t := range [2]tick.Tick{low, high} {
		if err := p.updateNextActiveTicks(t, level); err != nil {
			return OpenedInfo{}, err
		}
	}

	net, err := p.accountedNetLiquidity(maxFloat, low, high, level)
	if err != nil {
		return OpenedInfo{}, err
	}
	acc, err := p.accRange(level, low, high)
	if err != nil {
		return OpenedInfo{}, err
	}
	if p.positions.Contains(id) {
		return OpenedInfo{}, fmt.Errorf("position %d: %w", id, model.ErrPositionAlreadyExists)
	}
	p.positions.Insert(id, Position{
		FeeLevel:       level,
		NetLiquidity:   net,
		InitAcc:        acc,
		UnwithdrawnAcc: acc,
		InitSqrtprice:  p.SpotSqrtprice(tick.Right, level),
		Low:            low,
		High:           high,
	})

	signed := fp.SignedOf(net)
	lowChange, err := p.tickAdd(level, low, signed)
	if err != nil {
		return OpenedInfo{}, err
	}
	highChange, err := p.tickAdd(level, high, signed.Neg())
	if err != nil {
		return OpenedInfo{}, err
	}

	deposit, err := positionBalanceUFP(net, low, high, p.effSqrtprices[level], level)
	if err != nil {
		return OpenedInfo{}, err
	}
	for _, side := range tick.Sides {
		if err := p.incPositionReserve(level, side, deposit[side]); err != nil {
			return OpenedInfo{}, fmt.Errorf("%s position reserve: %w", side, model.ErrDepositWouldOverflow)
		}
	}

	order, err := p.cmpSpotPriceToRange(level, low, high)
	if err != nil {
		return OpenedInfo{}, err
	}
	if order == inRange {
		if err := p.incNetLiquidity(level, net); err != nil {
			return OpenedInfo{}, err
		}
	}

	// LPs cannot be charged fractional tokens; rounding up leaves the
	// difference to the protocol.
	var actual tick.Pair[fp.Amount]
	for _, side := range tick.Sides {
		ceil, err := deposit[side].Ceil()
		if err != nil {
			return OpenedInfo{}, fmt.Errorf("%s deposit: %w", side, model.ErrDepositWouldOverflow)
		}
		if actual[side], err = fp.AmountFromUFP(ceil); err != nil {
			return OpenedInfo{}, fmt.Errorf("%s deposit: %w", side, model.ErrDepositWouldOverflow)
		}
		if actual[side].Cmp(in.AmountRanges[side].Max) > 0 {
			return OpenedInfo{}, fmt.Errorf("%s deposit %s exceeds max %s: %w",
				side, actual[side], in.AmountRanges[side].Max, model.ErrInternalLogicError)
		}
		if actual[side].Cmp(in.AmountRanges[side].Min) < 0 {
			return OpenedInfo{}, fmt.Errorf("%s deposit %s below min %s: %w",
				side, actual[side], in.AmountRanges[side].Min, model.ErrSlippage)
		}
	}
	for _, side := range tick.Sides {
		if err := p.incTotalReserve(side, actual[side]); err != nil {
			return OpenedInfo{}, fmt.Errorf("%s total reserve: %w", side, model.ErrDepositWouldOverflow)
		}
	}

	return OpenedInfo{
		Deposited:    actual,
		NetLiquidity: net,
		Low:          TickChange{Tick: low, Change: lowChange.Float64()},
		High:         TickChange{Tick: high, Change: highChange.Float64()},
	}, nil
}

// initFromEffSqrtprice sets the prices of all levels from the price v of
// level on side. Levels differ by their fee shift relative to the pivot.
func (p *Pool) initFromEffSqrtprice(v float64, side tick.Side, level tick.FeeLevel) error {
	pivot, err := tick.FindPivot(0, v)
	if err != nil {
		return err
	}
	p.pivot = pivot
	for _, other := range tick.Levels {
		shifted, err := tick.NewEff(int32(pivot) - level.RateTicks() + other.RateTicks())
		if err != nil {
			return err
		}
		value := (v / pivot.EffSqrtprice()) * shifted.EffSqrtprice()
		prices, err := tick.EffSqrtpricesFromValue(value, side, other, &p.pivot)
		if err != nil {
			return err
		}
		p.effSqrtprices[other] = prices
	}
	p.resetTopLevel()
	p.activeSide = side
	return nil
}

// accountedNetLiquidity converts maximum amounts into the net liquidity the
// range can hold at the current price. Next active ticks must already include
// the range bounds.
func (p *Pool) accountedNetLiquidity(maxAmounts tick.Pair[float64], low, high tick.Tick, level tick.FeeLevel) (fp.U192X64, error) {
	order, err := p.cmpSpotPriceToRange(level, low, high)
	if err != nil {
		return fp.U192X64{}, err
	}
	eff := p.effSqrtprices[level]
	// A price exactly on a bound is ambiguous for the tick comparison.
	switch {
	case eff[tick.Left] == low.EffSqrtprice(level, tick.Left) || eff[tick.Right] == low.EffSqrtprice(level, tick.Right):
		order = belowRange
	case eff[tick.Left] == high.EffSqrtprice(level, tick.Left) || eff[tick.Right] == high.EffSqrtprice(level, tick.Right):
		order = aboveRange
	}

	var liquidity float64
	switch order {
	case belowRange:
		// Only the right token.
		if maxAmounts[tick.Right] <= 0 {
			return fp.U192X64{}, fmt.Errorf("right amount required below range: %w", model.ErrSlippage)
		}
		hi, lo := low.EffSqrtprice(level, tick.Right), high.EffSqrtprice(level, tick.Right)
		if hi <= lo {
			return fp.U192X64{}, fmt.Errorf("right price span: %w", model.ErrInternalLogicError)
		}
		liquidity = maxAmounts[tick.Right] / tick.NextUp(hi-lo)
	case inRange:
		if maxAmounts[tick.Right] <= 0 || maxAmounts[tick.Left] <= 0 {
			return fp.U192X64{}, fmt.Errorf("both amounts required in range: %w", model.ErrSlippage)
		}
		lowLeft, lowRight := low.EffSqrtprice(level, tick.Left), high.EffSqrtprice(level, tick.Right)
		if eff[tick.Left] <= lowLeft || eff[tick.Right] <= lowRight {
			return fp.U192X64{}, fmt.Errorf("price outside range: %w", model.ErrInternalLogicError)
		}
		left := maxAmounts[tick.Left] / tick.NextUp(eff[tick.Left]-lowLeft)
		right := maxAmounts[tick.Right] / tick.NextUp(eff[tick.Right]-lowRight)
		if !isNormal(left) || !isNormal(right) {
			return fp.U192X64{}, fmt.Errorf("liquidity (%v, %v): %w", left, right, model.ErrInternalLogicError)
		}
		liquidity = math.Min(left, right)
	case aboveRange:
		// Only the left token.
		if maxAmounts[tick.Left] <= 0 {
			return fp.U192X64{}, fmt.Errorf("left amount required above range: %w", model.ErrSlippage)
		}
		hi, lo := high.EffSqrtprice(level, tick.Left), low.EffSqrtprice(level, tick.Left)
		if hi <= lo {
			return fp.U192X64{}, fmt.Errorf("left price span: %w", model.ErrInternalLogicError)
		}
		liquidity = maxAmounts[tick.Left] / tick.NextUp(hi-lo)
	}
	if !isNormal(liquidity) {
		return fp.U192X64{}, fmt.Errorf("liquidity %v: %w", liquidity, model.ErrInternalLogicError)
	}
	if liquidity < MinNetLiquidity {
		return fp.U192X64{}, fmt.Errorf("liquidity %v: %w", liquidity, model.ErrLiquidityTooSmall)
	}
	if liquidity > MaxNetLiquidity {
		return fp.U192X64{}, fmt.Errorf("liquidity %v: %w", liquidity, model.ErrLiquidityTooBig)
	}
	net, err := fp.FromFloat64[fp.X192x64](liquidity)
	if err != nil {
		return fp.U192X64{}, fmt.Errorf("liquidity %v: %w", liquidity, err)
	}
	return net, nil
}

func isNormal(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) >= 0x1p-1022
}

func (p *Pool) position(id PositionID) (Position, error) {
	pos, ok := p.positions.Get(id)
	if !ok {
		return Position{}, fmt.Errorf("position %d: %w", id, model.ErrPositionDoesNotExist)
	}
	return pos, nil
}

// positionRewardUFP is the fee earned since the last harvest or, with
// sinceCreation, since the position was opened.
func (p *Pool) positionRewardUFP(pos Position, sinceCreation bool) (tick.Pair[fp.U256X256], tick.Pair[fp.I128X128], error) {
	var reward tick.Pair[fp.U256X256]
	acc, err := p.accRange(pos.FeeLevel, pos.Low, pos.High)
	if err != nil {
		return reward, acc, err
	}
	start := pos.UnwithdrawnAcc
	if sinceCreation {
		start = pos.InitAcc
	}
	feeLiq, err := fp.Convert[fp.X256x256](feeLiquidity(pos.NetLiquidity, pos.FeeLevel))
	if err != nil {
		return reward, acc, err
	}
	for _, side := range tick.Sides {
		diff, err := acc[side].Sub(start[side])
		if err != nil {
			return reward, acc, err
		}
		if diff.IsNegative() {
			return reward, acc, fmt.Errorf("%s fee accumulator went backwards: %w", side, model.ErrInternalLogicError)
		}
		perLiq, err := fp.Convert[fp.X256x256](diff.Abs())
		if err != nil {
			return reward, acc, err
		}
		if reward[side], err = feeLiq.Mul(perLiq); err != nil {
			return reward, acc, err
		}
	}
	return reward, acc, nil
}

// WithdrawFee harvests the fee earned by position id since the last harvest.
func (p *Pool) WithdrawFee(id PositionID) (tick.Pair[fp.Amount], error) {
	pos, err := p.position(id)
	if err != nil {
		return tick.Pair[fp.Amount]{}, err
	}
	return p.withdrawFee(id, pos)
}

func (p *Pool) withdrawFee(id PositionID, pos Position) (tick.Pair[fp.Amount], error) {
	rewardUFP, acc, err := p.positionRewardUFP(pos, false)
	if err != nil {
		return tick.Pair[fp.Amount]{}, err
	}
	reward, err := floorAmounts(rewardUFP)
	if err != nil {
		return tick.Pair[fp.Amount]{}, err
	}
	pos.UnwithdrawnAcc = acc
	p.positions.Insert(id, pos)

	if err := p.decTotalReserves(reward); err != nil {
		return tick.Pair[fp.Amount]{}, fmt.Errorf("fee exceeds reserves: %w", model.ErrInternalLogicError)
	}
	for _, side := range tick.Sides {
		left, err := p.accLPFee[side].Sub(rewardUFP[side])
		if err != nil {
			return tick.Pair[fp.Amount]{}, fmt.Errorf("%s fee exceeds accumulated LP fee: %w", side, model.ErrInternalLogicError)
		}
		p.accLPFee[side] = left
	}
	return reward, nil
}

// WithdrawFeeAndClosePosition harvests the fee of position id, returns its
// balance and releases its ticks.
func (p *Pool) WithdrawFeeAndClosePosition(id PositionID) (ClosedInfo, error) {
	pos, err := p.position(id)
	if err != nil {
		return ClosedInfo{}, err
	}
	fees, err := p.withdrawFee(id, pos)
	if err != nil {
		return ClosedInfo{}, err
	}
	balanceUFP, err := positionBalanceUFP(pos.NetLiquidity, pos.Low, pos.High, p.effSqrtprices[pos.FeeLevel], pos.FeeLevel)
	if err != nil {
		return ClosedInfo{}, err
	}
	balance, err := floorAmounts(balanceUFP)
	if err != nil {
		return ClosedInfo{}, err
	}
	order, err := p.cmpSpotPriceToRange(pos.FeeLevel, pos.Low, pos.High)
	if err != nil {
		return ClosedInfo{}, err
	}
	p.positions.Remove(id)

	if err := p.decTotalReserves(balance); err != nil {
		return ClosedInfo{}, fmt.Errorf("balance exceeds reserves: %w", model.ErrInternalLogicError)
	}
	for _, side := range tick.Sides {
		if err := p.decPositionReserve(pos.FeeLevel, side, balanceUFP[side]); err != nil {
			return ClosedInfo{}, fmt.Errorf("%s balance exceeds position reserve: %w", side, model.ErrInternalLogicError)
		}
	}
	if order == inRange {
		if err := p.decNetLiquidity(pos.FeeLevel, pos.NetLiquidity); err != nil {
			return ClosedInfo{}, err
		}
	}

	signed := fp.SignedOf(pos.NetLiquidity)
	lowChange, err := p.tickRemove(pos.FeeLevel, pos.Low, signed)
	if err != nil {
		return ClosedInfo{}, err
	}
	highChange, err := p.tickRemove(pos.FeeLevel, pos.High, signed.Neg())
	if err != nil {
		return ClosedInfo{}, err
	}

	if p.positions.Len() == 0 {
		p.resetEffSqrtprices()
		p.resetTopLevel()
		for _, level := range tick.Levels {
			for _, side := range tick.Sides {
				if p.nextActive[level][side].Valid {
					return ClosedInfo{}, fmt.Errorf("empty pool keeps next tick on level %d: %w", level, model.ErrInternalLogicError)
				}
			}
		}
	}

	return ClosedInfo{
		Fees:     fees,
		Balance:  balance,
		FeeLevel: pos.FeeLevel,
		Low:      TickChange{Tick: pos.Low, Change: lowChange.Float64()},
		High:     TickChange{Tick: pos.High, Change: highChange.Float64()},
	}, nil
}

// WithdrawProtocolFee takes everything in the reserves not owed to positions
// or LPs.
func (p *Pool) WithdrawProtocolFee() (tick.Pair[fp.Amount], error) {
	positions, err := p.sumPositionReserves()
	if err != nil {
		return tick.Pair[fp.Amount]{}, fmt.Errorf("position reserves: %w", model.ErrInternalLogicError)
	}
	var fee tick.Pair[fp.Amount]
	for _, side := range tick.Sides {
		owed, err := positions[side].Add(p.accLPFee[side])
		if err != nil {
			return fee, fmt.Errorf("%s owed: %w", side, model.ErrInternalLogicError)
		}
		rest, err := p.totalReserves[side].UFP().Sub(owed)
		if err != nil {
			return fee, fmt.Errorf("%s reserves below owed: %w", side, model.ErrInternalLogicError)
		}
		if fee[side], err = fp.AmountFromUFP(rest); err != nil {
			return fee, err
		}
	}
	if err := p.decTotalReserves(fee); err != nil {
		return fee, fmt.Errorf("protocol fee: %w", model.ErrInternalLogicError)
	}
	return fee, nil
}

// PositionInfo reports balance and rewards of position id.
func (p *Pool) PositionInfo(id PositionID) (PositionInfo, error) {
	pos, err := p.position(id)
	if err != nil {
		return PositionInfo{}, err
	}
	balanceUFP, err := positionBalanceUFP(pos.NetLiquidity, pos.Low, pos.High, p.effSqrtprices[pos.FeeLevel], pos.FeeLevel)
	if err != nil {
		return PositionInfo{}, err
	}
	balance, err := floorAmounts(balanceUFP)
	if err != nil {
		return PositionInfo{}, err
	}
	info := PositionInfo{
		FeeLevel:      pos.FeeLevel,
		Balance:       balance,
		InitSqrtprice: pos.InitSqrtprice,
		Low:           pos.Low,
		High:          pos.High,
		NetLiquidity:  pos.NetLiquidity.Float64(),
	}
	for _, since := range []bool{false, true} {
		rewardUFP, _, err := p.positionRewardUFP(pos, since)
		if err != nil {
			return PositionInfo{}, err
		}
		reward, err := floorAmounts(rewardUFP)
		if err != nil {
			return PositionInfo{}, err
		}
		if since {
			info.RewardSinceCreation = reward
		} else {
			info.RewardSinceLast = reward
		}
	}
	return info, nil
}
