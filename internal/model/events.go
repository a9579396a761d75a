package model

import "liquidityEngine/internal/fp"

// EventName identifies the payload carried by an Event.
type EventName string

const (
	EventDeposit           EventName = "deposit"
	EventWithdraw          EventName = "withdraw"
	EventOpenPosition      EventName = "open_position"
	EventClosePosition     EventName = "close_position"
	EventHarvestFee        EventName = "harvest_fee"
	EventSwap              EventName = "swap"
	EventUpdatePoolState   EventName = "update_pool_state"
	EventTickUpdate        EventName = "tick_update"
	EventSuspendPayableAPI EventName = "suspend_payable_api"
	EventResumePayableAPI  EventName = "resume_payable_api"
)

// DepositEventData is emitted when an account balance grows by a deposit.
type DepositEventData struct {
	Account string    `json:"account"`
	Token   string    `json:"token"`
	Amount  fp.Amount `json:"amount"`
	Balance fp.Amount `json:"balance"`
}

// WithdrawEventData is emitted when tokens leave an account balance.
type WithdrawEventData struct {
	Account string    `json:"account"`
	Token   string    `json:"token"`
	Amount  fp.Amount `json:"amount"`
	Balance fp.Amount `json:"balance"`
}

// OpenPositionEventData describes a freshly opened position in canonical
// pool token order.
type OpenPositionEventData struct {
	Account      string    `json:"account"`
	Token0       string    `json:"token0"`
	Token1       string    `json:"token1"`
	PositionID   uint64    `json:"position_id"`
	FeeRate      uint32    `json:"fee_rate"`
	TickLower    int32     `json:"tick_lower"`
	TickUpper    int32     `json:"tick_upper"`
	Amount0      fp.Amount `json:"amount0"`
	Amount1      fp.Amount `json:"amount1"`
	NetLiquidity string    `json:"net_liquidity"`
}

type ClosePositionEventData struct {
	Account    string    `json:"account"`
	Token0     string    `json:"token0"`
	Token1     string    `json:"token1"`
	PositionID uint64    `json:"position_id"`
	Amount0    fp.Amount `json:"amount0"`
	Amount1    fp.Amount `json:"amount1"`
	Fee0       fp.Amount `json:"fee0"`
	Fee1       fp.Amount `json:"fee1"`
}

type HarvestFeeEventData struct {
	Account    string    `json:"account"`
	Token0     string    `json:"token0"`
	Token1     string    `json:"token1"`
	PositionID uint64    `json:"position_id"`
	Fee0       fp.Amount `json:"fee0"`
	Fee1       fp.Amount `json:"fee1"`
}

// SwapEventData is the result of one executed swap.
type SwapEventData struct {
	Account       string    `json:"account"`
	TokenIn       string    `json:"token_in"`
	TokenOut      string    `json:"token_out"`
	Kind          string    `json:"kind"`
	AmountIn      fp.Amount `json:"amount_in"`
	AmountOut     fp.Amount `json:"amount_out"`
	TickCrossings uint32    `json:"tick_crossings"`
}

// UpdatePoolStateEventData snapshots a pool after a state changing call.
type UpdatePoolStateEventData struct {
	Reason   string       `json:"reason"`
	Snapshot PoolSnapshot `json:"snapshot"`
}

// TickUpdateEventData reports the net liquidity change stored at a tick.
type TickUpdateEventData struct {
	Token0   string  `json:"token0"`
	Token1   string  `json:"token1"`
	FeeLevel uint8   `json:"fee_level"`
	Tick     int32   `json:"tick"`
	Change   float64 `json:"change"`
}

type PayableAPIEventData struct {
	Account string `json:"account"`
}
