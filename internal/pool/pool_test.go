package pool

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/store"
	"liquidityEngine/internal/tick"
)

func newTestPool() *Pool {
	return New(store.NewFactory("pool-test"))
}

func fullRange(left, right uint64) PositionInit {
	return PositionInit{AmountRanges: tick.NewPair(
		Range{Max: fp.NewAmount(left)},
		Range{Max: fp.NewAmount(right)},
	)}
}

func boundedRange(left, right uint64, low, high int32) PositionInit {
	in := fullRange(left, right)
	in.LowTick, in.HighTick = &low, &high
	return in
}

func mustOpen(t *testing.T, p *Pool, in PositionInit, level tick.FeeLevel, id PositionID) OpenedInfo {
	t.Helper()
	info, err := p.OpenPosition(in, level, id)
	if err != nil {
		t.Fatalf("open position %d: %v", id, err)
	}
	return info
}

func TestOpenFirstPositionSetsPrice(t *testing.T) {
	p := newTestPool()
	if p.IsSpotPriceSet() {
		t.Fatalf("new pool must not have a price")
	}
	opened := mustOpen(t, p, fullRange(1000, 1000), 0, 1)

	for _, side := range tick.Sides {
		if opened.Deposited[side].Cmp(fp.NewAmount(1000)) > 0 {
			t.Fatalf("%s deposit %s exceeds max", side, opened.Deposited[side])
		}
		if opened.Deposited[side].Cmp(fp.NewAmount(990)) < 0 {
			t.Fatalf("%s deposit %s too small", side, opened.Deposited[side])
		}
	}
	if !reflect.DeepEqual(p.TotalReserves(), opened.Deposited) {
		t.Fatalf("reserves %v, deposited %v", p.TotalReserves(), opened.Deposited)
	}
	if got := p.SpotPrice(tick.Left, 0); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected spot price 1, got %v", got)
	}
	if opened.Low.Tick != tick.Min || opened.High.Tick != tick.Max {
		t.Fatalf("unexpected ticks %d, %d", opened.Low.Tick, opened.High.Tick)
	}
	if opened.Low.Change <= 0 || opened.High.Change != -opened.Low.Change {
		t.Fatalf("unexpected tick changes %v, %v", opened.Low.Change, opened.High.Change)
	}
	if !p.NetLiquidity(0).Equal(opened.NetLiquidity) {
		t.Fatalf("in-range position must be active")
	}
}

func TestBasicSwap(t *testing.T) {
	p := newTestPool()
	opened := mustOpen(t, p, fullRange(1000, 1000), 0, 1)

	res, err := p.SwapExactIn(tick.Left, fp.NewAmount(200), 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.AmountIn.Cmp(fp.NewAmount(200)) != 0 {
		t.Fatalf("exact-in must charge the full amount, got %s", res.AmountIn)
	}
	if res.AmountOut.Cmp(fp.NewAmount(100)) < 0 || res.AmountOut.Cmp(fp.NewAmount(200)) > 0 {
		t.Fatalf("amount out %s outside [100, 200]", res.AmountOut)
	}

	wantLeft, _ := opened.Deposited[tick.Left].Add(fp.NewAmount(200))
	wantRight, _ := opened.Deposited[tick.Right].Sub(res.AmountOut)
	reserves := p.TotalReserves()
	if reserves[tick.Left].Cmp(wantLeft) != 0 || reserves[tick.Right].Cmp(wantRight) != 0 {
		t.Fatalf("reserves %v, expected (%s, %s)", reserves, wantLeft, wantRight)
	}
	if right := reserves[tick.Right].Float64(); right < 820 || right > 845 {
		t.Fatalf("right reserve %v, expected about 833", right)
	}
	if p.SpotPrice(tick.Left, 0) <= 1 {
		t.Fatalf("left price must rise after buying right")
	}
}

func TestSwapExactOut(t *testing.T) {
	p := newTestPool()
	mustOpen(t, p, fullRange(1000, 1000), 0, 1)

	res, err := p.SwapExactOut(tick.Right, fp.NewAmount(100), 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.AmountOut.Cmp(fp.NewAmount(100)) != 0 {
		t.Fatalf("amount out %s", res.AmountOut)
	}
	if res.AmountIn.Cmp(fp.NewAmount(100)) <= 0 || res.AmountIn.Cmp(fp.NewAmount(200)) > 0 {
		t.Fatalf("amount in %s", res.AmountIn)
	}
	if p.ActiveSide() != tick.Right {
		t.Fatalf("active side must follow the swap")
	}
}

func TestSwapErrors(t *testing.T) {
	p := newTestPool()
	if _, err := p.SwapExactIn(tick.Left, fp.NewAmount(10), 0); !errors.Is(err, model.ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
	mustOpen(t, p, fullRange(1000, 1000), 0, 1)
	if _, err := p.SwapExactIn(tick.Left, fp.Amount{}, 0); !errors.Is(err, model.ErrInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
	if _, err := p.SwapExactOut(tick.Left, fp.Amount{}, 0); !errors.Is(err, model.ErrInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
	if _, err := p.Swap(tick.Left, ToPrice, fp.NewAmount(10), 0, nil); !errors.Is(err, model.ErrInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}

	before := p.TotalReserves()
	for _, limit := range []float64{math.NaN(), 0, -1, math.Inf(-1)} {
		if _, err := p.SwapToPrice(tick.Left, fp.NewAmount(100), limit, 0); !errors.Is(err, model.ErrInvalidParams) {
			t.Fatalf("limit %v: expected invalid params, got %v", limit, err)
		}
	}
	if !reflect.DeepEqual(before, p.TotalReserves()) {
		t.Fatalf("rejected swaps changed reserves")
	}
}

func TestSwapToPriceBelowCurrentIsNoop(t *testing.T) {
	p := newTestPool()
	mustOpen(t, p, fullRange(1000, 1000), 0, 1)
	before := p.TotalReserves()

	res, err := p.SwapToPrice(tick.Left, fp.NewAmount(100), 0.5, 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !res.AmountIn.IsZero() || !res.AmountOut.IsZero() || res.TickCrossings != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if !reflect.DeepEqual(before, p.TotalReserves()) {
		t.Fatalf("reserves changed")
	}
}

func TestWithdrawFee(t *testing.T) {
	p := newTestPool()
	mustOpen(t, p, fullRange(1_000_000_000_000, 1_000_000_000_000), 0, 7)

	if _, err := p.SwapExactIn(tick.Left, fp.NewAmount(200_000_000_000), 0); err != nil {
		t.Fatalf("swap: %v", err)
	}
	info, err := p.PositionInfo(7)
	if err != nil {
		t.Fatalf("position info: %v", err)
	}
	fees, err := p.WithdrawFee(7)
	if err != nil {
		t.Fatalf("withdraw fee: %v", err)
	}
	if fees[tick.Left].IsZero() {
		t.Fatalf("expected left fee after a left swap")
	}
	if !fees[tick.Right].IsZero() {
		t.Fatalf("unexpected right fee %s", fees[tick.Right])
	}
	if !reflect.DeepEqual(fees, info.RewardSinceLast) {
		t.Fatalf("harvest %v differs from reported reward %v", fees, info.RewardSinceLast)
	}

	again, err := p.WithdrawFee(7)
	if err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
	if !again[tick.Left].IsZero() || !again[tick.Right].IsZero() {
		t.Fatalf("second harvest must be empty, got %v", again)
	}

	after, err := p.PositionInfo(7)
	if err != nil {
		t.Fatalf("position info: %v", err)
	}
	if !reflect.DeepEqual(after.RewardSinceCreation, info.RewardSinceCreation) {
		t.Fatalf("reward since creation changed: %v vs %v", after.RewardSinceCreation, info.RewardSinceCreation)
	}
	if _, err := p.WithdrawFee(8); !errors.Is(err, model.ErrPositionDoesNotExist) {
		t.Fatalf("expected missing position, got %v", err)
	}
}

func TestOpenCloseInverse(t *testing.T) {
	p := newTestPool()
	opened := mustOpen(t, p, fullRange(1000, 1000), 0, 1)

	closed, err := p.WithdrawFeeAndClosePosition(1)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, side := range tick.Sides {
		if closed.Balance[side].Cmp(opened.Deposited[side]) > 0 {
			t.Fatalf("%s returned %s, deposited %s", side, closed.Balance[side], opened.Deposited[side])
		}
		shortfall, _ := opened.Deposited[side].Sub(closed.Balance[side])
		if shortfall.Cmp(fp.NewAmount(1)) > 0 {
			t.Fatalf("%s shortfall %s", side, shortfall)
		}
		if !closed.Fees[side].IsZero() {
			t.Fatalf("%s fee without swaps", side)
		}
	}
	if p.IsSpotPriceSet() || p.ContainsAnyPositions() || p.PositionCount() != 0 {
		t.Fatalf("closing the last position must empty the pool")
	}
	if closed.Low.Change != 0 || closed.High.Change != 0 {
		t.Fatalf("released ticks must have no change, got %v, %v", closed.Low.Change, closed.High.Change)
	}

	protocol, err := p.WithdrawProtocolFee()
	if err != nil {
		t.Fatalf("protocol fee: %v", err)
	}
	for _, side := range tick.Sides {
		if protocol[side].Cmp(fp.NewAmount(1)) > 0 {
			t.Fatalf("%s rounding remainder %s", side, protocol[side])
		}
		if !p.TotalReserves()[side].IsZero() {
			t.Fatalf("%s reserve left after protocol withdrawal", side)
		}
	}
}

func TestSwapsCrossTicksAcrossLevels(t *testing.T) {
	p := newTestPool()
	mustOpen(t, p, fullRange(1_000_000, 1_000_000), 0, 1)
	mustOpen(t, p, boundedRange(10_000, 10_000, -500, 500), 3, 2)
	mustOpen(t, p, boundedRange(10_000, 10_000, -500, 500), 5, 3)
	mustOpen(t, p, boundedRange(10_000, 10_000, 30_000, 40_000), 0, 4)
	mustOpen(t, p, boundedRange(10_000, 10_000, -40_000, -30_000), 5, 5)

	far := []PositionID{4, 5}
	for _, id := range far {
		info, err := p.PositionInfo(id)
		if err != nil {
			t.Fatalf("position %d: %v", id, err)
		}
		if !info.Balance[tick.Left].IsZero() && !info.Balance[tick.Right].IsZero() {
			t.Fatalf("position %d out of range must hold one token, got %v", id, info.Balance)
		}
	}

	steps := []struct {
		name   string
		side   tick.Side
		kind   SwapKind
		amount uint64
	}{
		{"left exact in", tick.Left, ExactIn, 100_000},
		{"right exact in", tick.Right, ExactIn, 250_000},
		{"left exact out", tick.Left, ExactOut, 120_000},
	}

	for _, step := range steps {
		res, err := p.Swap(step.side, step.kind, fp.NewAmount(step.amount), 1300, nil)
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if res.TickCrossings == 0 {
			t.Fatalf("%s: expected tick crossings, got %+v", step.name, res)
		}
		if p.TopActiveLevel() == 0 {
			t.Fatalf("%s: higher levels must activate", step.name)
		}
		if p.ActiveSide() != step.side {
			t.Fatalf("%s: active side %s", step.name, p.ActiveSide())
		}
		for _, id := range far {
			info, err := p.PositionInfo(id)
			if err != nil {
				t.Fatalf("position %d: %v", id, err)
			}
			if !info.RewardSinceCreation[tick.Left].IsZero() || !info.RewardSinceCreation[tick.Right].IsZero() {
				t.Fatalf("%s: position %d earned %v out of range", step.name, id, info.RewardSinceCreation)
			}
		}
	}

	full, err := p.PositionInfo(1)
	if err != nil {
		t.Fatalf("position 1: %v", err)
	}
	for _, side := range tick.Sides {
		if full.RewardSinceCreation[side].IsZero() {
			t.Fatalf("full range position earned no %s fee", side)
		}
	}

	for id := PositionID(1); id <= 5; id++ {
		if _, err := p.WithdrawFeeAndClosePosition(id); err != nil {
			t.Fatalf("close %d: %v", id, err)
		}
	}
	if p.ContainsAnyPositions() || p.PositionCount() != 0 {
		t.Fatalf("positions left after closing all")
	}

	protocol, err := p.WithdrawProtocolFee()
	if err != nil {
		t.Fatalf("protocol fee: %v", err)
	}
	if protocol[tick.Left].IsZero() || protocol[tick.Right].IsZero() {
		t.Fatalf("expected protocol fee on both sides, got %v", protocol)
	}
	for _, side := range tick.Sides {
		if !p.TotalReserves()[side].IsZero() {
			t.Fatalf("%s reserve %s left after protocol withdrawal", side, p.TotalReserves()[side])
		}
	}
}

func TestOpenPositionValidation(t *testing.T) {
	p := newTestPool()
	if _, err := p.OpenPosition(boundedRange(10, 10, 100, 100), 0, 1); !errors.Is(err, model.ErrInvalidParams) {
		t.Fatalf("expected invalid params for empty range, got %v", err)
	}
	bad := fullRange(10, 10)
	bad.AmountRanges[tick.Left].Min = fp.NewAmount(11)
	if _, err := p.OpenPosition(bad, 0, 1); !errors.Is(err, model.ErrInvalidParams) {
		t.Fatalf("expected invalid params for min > max, got %v", err)
	}
	outside := int32(tick.MaxTick + 1)
	in := fullRange(10, 10)
	in.HighTick = &outside
	if _, err := p.OpenPosition(in, 0, 1); !errors.Is(err, model.ErrPriceTickOutOfBounds) {
		t.Fatalf("expected tick out of bounds, got %v", err)
	}
	if _, err := p.OpenPosition(fullRange(0, 0), 0, 1); !errors.Is(err, model.ErrInvalidParams) {
		t.Fatalf("expected invalid params for zero amounts, got %v", err)
	}
	if _, err := p.OpenPosition(fullRange(10, 10), 8, 1); !errors.Is(err, model.ErrIllegalFee) {
		t.Fatalf("expected illegal fee, got %v", err)
	}

	mustOpen(t, p, fullRange(1000, 1000), 0, 1)
	if _, err := p.OpenPosition(fullRange(1000, 1000), 0, 1); !errors.Is(err, model.ErrPositionAlreadyExists) {
		t.Fatalf("expected duplicate position, got %v", err)
	}
}

func TestOpenPositionSlippage(t *testing.T) {
	p := newTestPool()
	mustOpen(t, p, fullRange(1000, 1000), 0, 1)

	in := fullRange(1000, 10)
	in.AmountRanges[tick.Left].Min = fp.NewAmount(500)
	if _, err := p.OpenPosition(in, 0, 2); !errors.Is(err, model.ErrSlippage) {
		t.Fatalf("expected slippage, got %v", err)
	}
}

func TestTicksLiquidityChange(t *testing.T) {
	p := newTestPool()
	opened := mustOpen(t, p, boundedRange(1000, 1000, -100, 100), 0, 1)

	left := p.AllTicksLiquidityChange(0, tick.Left)
	if len(left) != 2 || left[0].Tick != -100 || left[1].Tick != 100 {
		t.Fatalf("unexpected ticks %+v", left)
	}
	if left[0].Change != opened.Low.Change || left[1].Change != -left[0].Change {
		t.Fatalf("unexpected changes %+v", left)
	}

	right := p.AllTicksLiquidityChange(0, tick.Right)
	if len(right) != 2 || right[0].Tick != -100 || right[1].Tick != 100 || right[0].Change != left[0].Change {
		t.Fatalf("unexpected mirrored ticks %+v", right)
	}

	first := p.TicksLiquidityChange(0, tick.Left, -100, 1)
	if len(first) != 1 || first[0].Tick != -100 {
		t.Fatalf("unexpected page %+v", first)
	}
	rest := p.TicksLiquidityChange(0, tick.Left, -99, 10)
	if len(rest) != 1 || rest[0].Tick != 100 {
		t.Fatalf("unexpected page %+v", rest)
	}
	if got := p.AllTicksLiquidityChange(3, tick.Left); len(got) != 0 {
		t.Fatalf("unused level lists %+v", got)
	}
}

func TestProjectionsAreIdempotent(t *testing.T) {
	p := newTestPool()
	mustOpen(t, p, fullRange(1000, 1000), 0, 1)
	if _, err := p.SwapExactIn(tick.Left, fp.NewAmount(50), 0); err != nil {
		t.Fatalf("swap: %v", err)
	}

	first, err := p.Info(tick.Left)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	second, _ := p.Info(tick.Left)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("info changed between calls")
	}
	pos1, _ := p.PositionInfo(1)
	pos2, _ := p.PositionInfo(1)
	if !reflect.DeepEqual(pos1, pos2) {
		t.Fatalf("position info changed between calls")
	}

	right, _ := p.Info(tick.Right)
	if !reflect.DeepEqual(right.TotalReserves, first.TotalReserves.Swapped(true)) {
		t.Fatalf("right view must swap reserves")
	}
	if right.EffSqrtprices[0][tick.Left] != first.EffSqrtprices[0][tick.Right] {
		t.Fatalf("right view must swap prices")
	}
	if first.FeeDivisor != tick.BasisPointDivisor || first.FeeRates[7] != 128 {
		t.Fatalf("unexpected fee rates %v / %d", first.FeeRates, first.FeeDivisor)
	}
}

func TestCloneIsolation(t *testing.T) {
	p := newTestPool()
	mustOpen(t, p, fullRange(1000, 1000), 0, 1)
	snapshot := p.Clone()

	if _, err := p.SwapExactIn(tick.Left, fp.NewAmount(100), 0); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if _, err := p.WithdrawFeeAndClosePosition(1); err != nil {
		t.Fatalf("close: %v", err)
	}
	if snapshot.PositionCount() != 1 || !snapshot.IsSpotPriceSet() {
		t.Fatalf("clone shares state with the original")
	}
	if math.Abs(snapshot.SpotPrice(tick.Left, 0)-1) > 1e-9 {
		t.Fatalf("clone price moved")
	}
}

func TestLiquidityDistribution(t *testing.T) {
	p := newTestPool()
	if _, ok := p.LiquidityDistribution(); ok {
		t.Fatalf("empty pool has no distribution")
	}
	mustOpen(t, p, fullRange(1000, 1000), 0, 1)
	mustOpen(t, p, fullRange(3000, 3000), 2, 2)

	dist, ok := p.LiquidityDistribution()
	if !ok {
		t.Fatalf("expected distribution")
	}
	var sum float64
	for _, v := range dist {
		sum += v
	}
	if math.Abs(sum-100) > 1e-9 {
		t.Fatalf("shares sum to %v", sum)
	}
	if dist[0] <= 0 || dist[2] <= dist[0] || dist[1] != 0 {
		t.Fatalf("unexpected distribution %v", dist)
	}
}

func TestRequiredEffSqrtprice(t *testing.T) {
	if got := requiredEffSqrtpriceExactIn(1, 10, 0); got != math.MaxFloat64 {
		t.Fatalf("zero liquidity must give max price, got %v", got)
	}
	if got := requiredEffSqrtpriceExactIn(1.5, 0, 100); got != 1.5 {
		t.Fatalf("zero amount must keep the price, got %v", got)
	}
	if got := requiredEffSqrtpriceExactIn(1, 100, 100); got <= 1.99 || got > 2 {
		t.Fatalf("expected about 2, got %v", got)
	}

	if got, err := requiredEffSqrtpriceExactOut(1, 200, 100); err != nil || got != math.MaxFloat64 {
		t.Fatalf("unreachable amount must give max price, got %v, %v", got, err)
	}
	got, err := requiredEffSqrtpriceExactOut(1, 50, 100)
	if err != nil {
		t.Fatalf("exact out: %v", err)
	}
	if got < 2 || got > 2.0000001 {
		t.Fatalf("expected about 2, got %v", got)
	}
}

func TestTransposeIf(t *testing.T) {
	in := boundedRange(1, 2, -10, 30)
	out := in.TransposeIf(true)
	if *out.LowTick != -30 || *out.HighTick != 10 {
		t.Fatalf("unexpected ticks %d, %d", *out.LowTick, *out.HighTick)
	}
	if out.AmountRanges[tick.Left].Max.Cmp(fp.NewAmount(2)) != 0 {
		t.Fatalf("amount ranges must swap")
	}
	if same := in.TransposeIf(false); !reflect.DeepEqual(same, in) {
		t.Fatalf("no-op transpose changed the request")
	}
}
