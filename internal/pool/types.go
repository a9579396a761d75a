package pool

import (
	"fmt"
	"math"
	"strings"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/tick"
)

var (
	// MinNetLiquidity is 2^-11.
	MinNetLiquidity = math.Ldexp(1, -11)
	// MaxNetLiquidity is 2^143.
	MaxNetLiquidity = math.Ldexp(1, 143)
	// SwapMaxUnderpay bounds how much a trader may be underpaid relative to the
	// amount in, caused by rounding. It is 2^-49.
	SwapMaxUnderpay = math.Ldexp(1, -49)
)

// Range is an inclusive amount interval.
type Range struct {
	Min fp.Amount
	Max fp.Amount
}

// PositionInit describes a position to open. Missing tick bounds stand for
// the ends of the tick range.
type PositionInit struct {
	AmountRanges tick.Pair[Range]
	LowTick      *int32
	HighTick     *int32
}

// TransposeIf converts the request to the opposite token order: amount ranges
// swap and the tick range mirrors.
func (in PositionInit) TransposeIf(cond bool) PositionInit {
	if !cond {
		return in
	}
	out := PositionInit{AmountRanges: in.AmountRanges.Swapped(true)}
	if in.HighTick != nil {
		v := -*in.HighTick
		out.LowTick = &v
	}
	if in.LowTick != nil {
		v := -*in.LowTick
		out.HighTick = &v
	}
	return out
}

// TickChange is the net liquidity change at a tick.
type TickChange struct {
	Tick   tick.Tick
	Change float64
}

// OpenedInfo reports the result of OpenPosition.
type OpenedInfo struct {
	Deposited    tick.Pair[fp.Amount]
	NetLiquidity fp.U192X64
	Low          TickChange
	High         TickChange
}

// ClosedInfo reports the result of WithdrawFeeAndClosePosition.
type ClosedInfo struct {
	Fees     tick.Pair[fp.Amount]
	Balance  tick.Pair[fp.Amount]
	FeeLevel tick.FeeLevel
	Low      TickChange
	High     TickChange
}

// PositionInfo is a read-only view of a position. Token order is the pool's.
type PositionInfo struct {
	FeeLevel            tick.FeeLevel
	Balance             tick.Pair[fp.Amount]
	InitSqrtprice       float64
	Low                 tick.Tick
	High                tick.Tick
	RewardSinceLast     tick.Pair[fp.Amount]
	RewardSinceCreation tick.Pair[fp.Amount]
	NetLiquidity        float64
}

// Info is a read-only view of a pool from one swap direction.
type Info struct {
	TotalReserves    tick.Pair[fp.Amount]
	PositionReserves tick.Pair[fp.Amount]
	SpotSqrtprices   [tick.NumFeeLevels]float64
	EffSqrtprices    [tick.NumFeeLevels]tick.EffSqrtprices
	Liquidities      [tick.NumFeeLevels]fp.U192X64
	FeeRates         [tick.NumFeeLevels]int32
	FeeDivisor       uint32
}

// SwapKind selects how the swap amount is interpreted.
type SwapKind uint8

const (
	ExactIn SwapKind = iota
	ExactOut
	ToPrice
)

func (k SwapKind) String() string {
	switch k {
	case ExactIn:
		return "exact_in"
	case ExactOut:
		return "exact_out"
	case ToPrice:
		return "to_price"
	}
	return fmt.Sprintf("swap_kind(%d)", uint8(k))
}

func (k SwapKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SwapKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "exact_in", "exactin":
		*k = ExactIn
	case "exact_out", "exactout":
		*k = ExactOut
	case "to_price", "toprice":
		*k = ToPrice
	default:
		return fmt.Errorf("unknown swap kind %q", text)
	}
	return nil
}

// SwapResult reports amounts moved by a swap and the number of ticks crossed.
type SwapResult struct {
	AmountIn      fp.Amount
	AmountOut     fp.Amount
	TickCrossings uint32
}

// UpdateReason tells why a pool changed.
type UpdateReason uint8

const (
	AddLiquidity UpdateReason = iota
	RemoveLiquidity
	SwapUpdate
)

func (r UpdateReason) String() string {
	switch r {
	case AddLiquidity:
		return "add_liquidity"
	case RemoveLiquidity:
		return "remove_liquidity"
	case SwapUpdate:
		return "swap"
	}
	return fmt.Sprintf("update_reason(%d)", uint8(r))
}
