package dex

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/tick"
)

var (
	tokenA = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	alice  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Options{
		Seed:  "engine-test",
		Clock: func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func mustDeposit(t *testing.T, e *Engine, account, token common.Address, amount uint64) {
	t.Helper()
	if _, err := e.Deposit(account, token, fp.NewAmount(amount)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func seededEngine(t *testing.T) (*Engine, OpenResult) {
	t.Helper()
	e := newTestEngine(t)
	mustDeposit(t, e, alice, tokenA, 1000)
	mustDeposit(t, e, alice, tokenB, 1000)
	res, err := e.OpenPositionFull(alice, tokenA, tokenB, 1, fp.NewAmount(1000), fp.NewAmount(1000))
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	return e, res
}

func balanceOf(t *testing.T, e *Engine, account, token common.Address) fp.Amount {
	t.Helper()
	b, err := e.Balance(account, token)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func TestNewPoolIDOrdering(t *testing.T) {
	id, transposed, err := NewPoolID(tokenA, tokenB)
	if err != nil {
		t.Fatalf("pool id: %v", err)
	}
	if id.Left != tokenB || id.Right != tokenA || !transposed {
		t.Fatalf("unexpected pool id %s transposed=%v", id, transposed)
	}
	again, transposed, _ := NewPoolID(tokenB, tokenA)
	if again != id || transposed {
		t.Fatalf("pool id must not depend on argument order")
	}
	if id.Side(tokenA) != tick.Right || id.Side(tokenB) != tick.Left {
		t.Fatalf("unexpected sides")
	}
	if _, _, err := NewPoolID(tokenA, tokenA); !errors.Is(err, model.ErrTokenDuplicates) {
		t.Fatalf("expected duplicate tokens, got %v", err)
	}
}

func TestLedger(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Withdraw(alice, tokenA, fp.NewAmount(1)); !errors.Is(err, model.ErrAccountNotRegistered) {
		t.Fatalf("expected unregistered account, got %v", err)
	}
	mustDeposit(t, e, alice, tokenA, 100)
	balance, err := e.Deposit(alice, tokenA, fp.NewAmount(50))
	if err != nil || balance.Cmp(fp.NewAmount(150)) != 0 {
		t.Fatalf("unexpected balance %s, %v", balance, err)
	}
	if _, err := e.Withdraw(alice, tokenB, fp.NewAmount(1)); !errors.Is(err, model.ErrTokenNotRegistered) {
		t.Fatalf("expected unregistered token, got %v", err)
	}
	if _, err := e.Withdraw(alice, tokenA, fp.NewAmount(151)); !errors.Is(err, model.ErrNotEnoughTokens) {
		t.Fatalf("expected not enough tokens, got %v", err)
	}
	got, err := e.Withdraw(alice, tokenA, fp.NewAmount(40))
	if err != nil || got.Cmp(fp.NewAmount(40)) != 0 {
		t.Fatalf("withdraw: %s, %v", got, err)
	}
	all, err := e.Withdraw(alice, tokenA, fp.Amount{})
	if err != nil || all.Cmp(fp.NewAmount(110)) != 0 {
		t.Fatalf("withdraw all: %s, %v", all, err)
	}
	if !balanceOf(t, e, alice, tokenA).IsZero() {
		t.Fatalf("balance left after withdrawing all")
	}
	none, err := e.Withdraw(alice, tokenA, fp.Amount{})
	if err != nil || !none.IsZero() {
		t.Fatalf("withdrawing an empty balance: %s, %v", none, err)
	}

	deposits, err := e.Deposits(alice)
	if err != nil {
		t.Fatalf("deposits: %v", err)
	}
	if len(deposits) != 1 || deposits[0].Token != tokenA {
		t.Fatalf("unexpected deposits %+v", deposits)
	}

	events := e.DrainEvents()
	names := make([]model.EventName, 0, len(events))
	for i, ev := range events {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
		names = append(names, ev.Name)
	}
	want := []model.EventName{model.EventDeposit, model.EventDeposit, model.EventWithdraw, model.EventWithdraw}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("events %v, want %v", names, want)
	}
	if len(e.DrainEvents()) != 0 {
		t.Fatalf("drain must clear events")
	}
}

func TestOpenPositionDebitsDeposits(t *testing.T) {
	e, res := seededEngine(t)
	for _, c := range []struct {
		token  common.Address
		amount fp.Amount
	}{{tokenA, res.AmountA}, {tokenB, res.AmountB}} {
		left, _ := fp.NewAmount(1000).Sub(c.amount)
		if got := balanceOf(t, e, alice, c.token); got.Cmp(left) != 0 {
			t.Fatalf("balance %s, expected %s", got, left)
		}
	}
	if got := e.AccountPositions(alice); !reflect.DeepEqual(got, []pool.PositionID{res.PositionID}) {
		t.Fatalf("unexpected positions %v", got)
	}

	info, err := e.PositionInfo(res.PositionID)
	if err != nil {
		t.Fatalf("position info: %v", err)
	}
	if info.Low != tick.Min || info.High != tick.Max {
		t.Fatalf("full range expected, got [%d, %d]", info.Low, info.High)
	}

	names := make(map[model.EventName]int)
	for _, ev := range e.DrainEvents() {
		names[ev.Name]++
	}
	if names[model.EventOpenPosition] != 1 || names[model.EventTickUpdate] != 2 || names[model.EventUpdatePoolState] != 1 {
		t.Fatalf("unexpected events %v", names)
	}
}

func TestPoolViewsFollowTokenOrder(t *testing.T) {
	e, res := seededEngine(t)
	ab, found, err := e.PoolInfo(tokenA, tokenB)
	if err != nil || !found {
		t.Fatalf("pool info: %v, %v", found, err)
	}
	ba, _, _ := e.PoolInfo(tokenB, tokenA)
	if !reflect.DeepEqual(ab.TotalReserves, ba.TotalReserves.Swapped(true)) {
		t.Fatalf("views must mirror each other")
	}
	if ab.TotalReserves[tick.Left].Cmp(res.AmountA) != 0 {
		t.Fatalf("left reserve %s, deposited %s", ab.TotalReserves[tick.Left], res.AmountA)
	}
	if _, found, _ := e.PoolInfo(tokenA, common.HexToAddress("0x01")); found {
		t.Fatalf("unknown pool reported")
	}

	dist, ok, err := e.LiquidityFeeLevelDistribution(tokenA, tokenB)
	if err != nil || !ok || math.Abs(dist[0]-100) > 1e-9 {
		t.Fatalf("unexpected distribution %v, %v, %v", dist, ok, err)
	}

	frac, err := e.SpotPriceFraction(tokenA, tokenB, 0)
	if err != nil {
		t.Fatalf("fraction: %v", err)
	}
	if f := frac.Float64(); f < 0.999 || f > 1.001 {
		t.Fatalf("unexpected spot price %v", f)
	}
}

func TestSwapSettlesBalances(t *testing.T) {
	e, _ := seededEngine(t)
	mustDeposit(t, e, bob, tokenA, 200)

	est, err := e.EstimateSwap(SwapRequest{TokenIn: tokenA, TokenOut: tokenB, Kind: pool.ExactIn, Amount: fp.NewAmount(200)})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	res, err := e.SwapExactIn(bob, tokenA, tokenB, fp.NewAmount(200), fp.NewAmount(100))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !reflect.DeepEqual(est, res) {
		t.Fatalf("estimate %+v differs from swap %+v", est, res)
	}
	if res.AmountOut.Cmp(fp.NewAmount(100)) < 0 || res.AmountOut.Cmp(fp.NewAmount(200)) > 0 {
		t.Fatalf("amount out %s outside [100, 200]", res.AmountOut)
	}
	if !balanceOf(t, e, bob, tokenA).IsZero() {
		t.Fatalf("input not debited")
	}
	if got := balanceOf(t, e, bob, tokenB); got.Cmp(res.AmountOut) != 0 {
		t.Fatalf("output balance %s, expected %s", got, res.AmountOut)
	}
}

func TestSlippageLeavesStateUntouched(t *testing.T) {
	e, _ := seededEngine(t)
	mustDeposit(t, e, bob, tokenA, 200)
	before, _, _ := e.PoolInfo(tokenA, tokenB)
	e.DrainEvents()

	if _, err := e.SwapExactIn(bob, tokenA, tokenB, fp.NewAmount(200), fp.NewAmount(200)); !errors.Is(err, model.ErrSlippage) {
		t.Fatalf("expected slippage, got %v", err)
	}
	if _, err := e.SwapExactOut(bob, tokenA, tokenB, fp.NewAmount(100), fp.NewAmount(50)); !errors.Is(err, model.ErrSlippage) {
		t.Fatalf("expected slippage, got %v", err)
	}
	after, _, _ := e.PoolInfo(tokenA, tokenB)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("rejected swap changed the pool")
	}
	if got := balanceOf(t, e, bob, tokenA); got.Cmp(fp.NewAmount(200)) != 0 {
		t.Fatalf("rejected swap changed the balance: %s", got)
	}
	if n := len(e.DrainEvents()); n != 0 {
		t.Fatalf("rejected calls emitted %d events", n)
	}
}

func TestSwapNeedsBalance(t *testing.T) {
	e, _ := seededEngine(t)
	before, _, _ := e.PoolInfo(tokenA, tokenB)
	if _, err := e.SwapExactIn(bob, tokenA, tokenB, fp.NewAmount(10), fp.Amount{}); !errors.Is(err, model.ErrNotEnoughTokens) {
		t.Fatalf("expected not enough tokens, got %v", err)
	}
	after, _, _ := e.PoolInfo(tokenA, tokenB)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("failed swap changed the pool")
	}
	c := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	if _, err := e.SwapExactIn(bob, tokenA, c, fp.NewAmount(10), fp.Amount{}); !errors.Is(err, model.ErrPoolNotRegistered) {
		t.Fatalf("expected missing pool, got %v", err)
	}
}

func TestFailedOpenDoesNotCreatePool(t *testing.T) {
	e := newTestEngine(t)
	mustDeposit(t, e, alice, tokenA, 10)
	if _, err := e.OpenPositionFull(alice, tokenA, tokenB, 1, fp.NewAmount(1000), fp.NewAmount(1000)); !errors.Is(err, model.ErrNotEnoughTokens) {
		t.Fatalf("expected not enough tokens, got %v", err)
	}
	if _, found, _ := e.PoolInfo(tokenA, tokenB); found {
		t.Fatalf("failed open left a pool behind")
	}
	if _, err := e.OpenPositionFull(alice, tokenA, tokenB, 3, fp.NewAmount(5), fp.NewAmount(5)); !errors.Is(err, model.ErrIllegalFee) {
		t.Fatalf("expected illegal fee, got %v", err)
	}
}

func TestPositionOwnership(t *testing.T) {
	e, res := seededEngine(t)
	if _, err := e.ClosePosition(bob, res.PositionID); !errors.Is(err, model.ErrNotYourPosition) {
		t.Fatalf("expected not your position, got %v", err)
	}
	if _, err := e.WithdrawFee(bob, res.PositionID); !errors.Is(err, model.ErrNotYourPosition) {
		t.Fatalf("expected not your position, got %v", err)
	}
	if _, err := e.ClosePosition(alice, res.PositionID+1); !errors.Is(err, model.ErrPositionDoesNotExist) {
		t.Fatalf("expected missing position, got %v", err)
	}

	closed, err := e.ClosePosition(alice, res.PositionID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, side := range tick.Sides {
		token := closed.Pool.Tokens()[side]
		if got := balanceOf(t, e, alice, token); got.Cmp(fp.NewAmount(999)) < 0 {
			t.Fatalf("%s balance %s after close", token.Hex(), got)
		}
	}
	if len(e.AccountPositions(alice)) != 0 {
		t.Fatalf("closed position still listed")
	}
	if _, err := e.PositionInfo(res.PositionID); !errors.Is(err, model.ErrPositionDoesNotExist) {
		t.Fatalf("expected missing position, got %v", err)
	}
	if got := e.PositionsInfo([]pool.PositionID{res.PositionID}); got[0] != nil {
		t.Fatalf("closed position resolved")
	}
}

func TestPositionIDsAreMonotone(t *testing.T) {
	e, first := seededEngine(t)
	mustDeposit(t, e, bob, tokenA, 500)
	mustDeposit(t, e, bob, tokenB, 500)
	second, err := e.OpenPositionFull(bob, tokenB, tokenA, 2, fp.NewAmount(500), fp.NewAmount(500))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if second.PositionID != first.PositionID+1 {
		t.Fatalf("ids %d then %d", first.PositionID, second.PositionID)
	}
	infos := e.PositionsInfo([]pool.PositionID{first.PositionID, second.PositionID, 99})
	if infos[0] == nil || infos[1] == nil || infos[2] != nil {
		t.Fatalf("unexpected infos %v", infos)
	}
	if infos[1].FeeLevel != 1 {
		t.Fatalf("fee rate 2 must map to level 1, got %d", infos[1].FeeLevel)
	}
}

func TestProtocolFeeFraction(t *testing.T) {
	e := newTestEngine(t)
	if e.ProtocolFeeFraction() != DefaultProtocolFeeFraction {
		t.Fatalf("unexpected default %d", e.ProtocolFeeFraction())
	}
	for _, v := range []uint16{0, 5001} {
		if err := e.SetProtocolFeeFraction(v); !errors.Is(err, model.ErrIllegalFee) {
			t.Fatalf("fraction %d: expected illegal fee, got %v", v, err)
		}
	}
	if err := e.SetProtocolFeeFraction(5000); err != nil {
		t.Fatalf("set fraction: %v", err)
	}
	if e.ProtocolFeeFraction() != 5000 {
		t.Fatalf("fraction not stored")
	}
	if _, err := New(Options{ProtocolFeeFraction: 6000}); !errors.Is(err, model.ErrIllegalFee) {
		t.Fatalf("expected illegal fee, got %v", err)
	}
}

func TestSuspendPayableAPI(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SuspendPayableAPI(alice); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if err := e.SuspendPayableAPI(alice); err == nil {
		t.Fatalf("double suspend accepted")
	}
	if _, err := e.Deposit(alice, tokenA, fp.NewAmount(1)); !errors.Is(err, model.ErrPayableAPISuspended) {
		t.Fatalf("expected suspended, got %v", err)
	}
	if err := e.ResumePayableAPI(alice); err != nil {
		t.Fatalf("resume: %v", err)
	}
	mustDeposit(t, e, alice, tokenA, 1)
	if e.IsSuspended() {
		t.Fatalf("still suspended")
	}
}

func TestDepositFromOtherSigner(t *testing.T) {
	e := newTestEngine(t)
	e.DrainEvents()
	_, err := e.DepositFrom(bob, alice, tokenA, fp.NewAmount(10))
	if !errors.Is(err, model.ErrDepositSenderMustBeSigner) {
		t.Fatalf("expected sender must be signer, got %v", err)
	}
	if model.KindOf(err) != model.KindDomain {
		t.Fatalf("unexpected kind %q", model.KindOf(err))
	}
	if n := len(e.DrainEvents()); n != 0 {
		t.Fatalf("rejected deposit emitted %d events", n)
	}
	if _, err := e.Balance(alice, tokenA); !errors.Is(err, model.ErrAccountNotRegistered) {
		t.Fatalf("rejected deposit must not register the account, got %v", err)
	}

	balance, err := e.DepositFrom(alice, alice, tokenA, fp.NewAmount(10))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if balance.Cmp(fp.NewAmount(10)) != 0 {
		t.Fatalf("balance %s", balance)
	}
}

func TestTicksLiquidityChange(t *testing.T) {
	e, _ := seededEngine(t)
	e.DrainEvents()
	last, err := e.TicksLiquidityChange(tokenA, tokenB, 0, tick.MinTick, 10)
	if err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if last != tick.MaxTick {
		t.Fatalf("last tick %d", last)
	}
	if n := len(e.DrainEvents()); n != 2 {
		t.Fatalf("expected 2 tick events, got %d", n)
	}
	if _, err := e.TicksLiquidityChange(tokenA, tokenB, 1, 0, 10); !errors.Is(err, model.ErrInternalTickNotFound) {
		t.Fatalf("expected no ticks, got %v", err)
	}
	n, err := e.PoolTicks(tokenA, tokenB, 0)
	if err != nil || n != 2 {
		t.Fatalf("pool ticks %d, %v", n, err)
	}
}

func TestWithdrawProtocolFee(t *testing.T) {
	e, _ := seededEngine(t)
	mustDeposit(t, e, bob, tokenA, 100_000)
	mustDeposit(t, e, alice, tokenA, 1_000_000)
	mustDeposit(t, e, alice, tokenB, 1_000_000)
	if _, err := e.OpenPositionFull(alice, tokenA, tokenB, 128, fp.NewAmount(1_000_000), fp.NewAmount(1_000_000)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := e.SwapExactIn(bob, tokenA, tokenB, fp.NewAmount(100_000), fp.Amount{}); err != nil {
		t.Fatalf("swap: %v", err)
	}
	owner := common.HexToAddress("0x9999999999999999999999999999999999999999")
	feeA, _, err := e.WithdrawProtocolFee(owner, tokenA, tokenB)
	if err != nil {
		t.Fatalf("protocol fee: %v", err)
	}
	if feeA.IsZero() {
		t.Fatalf("expected protocol fee on the input token")
	}
	if got := balanceOf(t, e, owner, tokenA); got.Cmp(feeA) != 0 {
		t.Fatalf("owner balance %s, fee %s", got, feeA)
	}
}
