package model

import "github.com/shopspring/decimal"

// PoolSnapshot is the storage row of a pool's state after a committed call.
// Token0 is the canonical left token of the pool.
type PoolSnapshot struct {
	Seq              uint64            `json:"seq"`
	Token0           string            `json:"token0"`
	Token1           string            `json:"token1"`
	TotalReserve0    string            `json:"total_reserve0"`
	TotalReserve1    string            `json:"total_reserve1"`
	PositionReserve0 string            `json:"position_reserve0"`
	PositionReserve1 string            `json:"position_reserve1"`
	SpotSqrtprice    float64           `json:"spot_sqrtprice"`
	Liquidities      []decimal.Decimal `json:"liquidities"`
	Positions        int               `json:"positions"`
}

// PoolKey identifies a pool in caches and tables.
func (s PoolSnapshot) PoolKey() string {
	return s.Token0 + ":" + s.Token1
}

// PoolSummary stores per-pool totals over an event stream. Amounts are raw
// integer strings; fee rates and APR are derived from the latest reserves.
type PoolSummary struct {
	Token0          string  `json:"token0"`
	Token1          string  `json:"token1"`
	SwapCount       uint64  `json:"swap_count"`
	Volume0         string  `json:"volume0"`
	Volume1         string  `json:"volume1"`
	Fee0            string  `json:"fee0"`
	Fee1            string  `json:"fee1"`
	Reserve0        string  `json:"reserve0"`
	Reserve1        string  `json:"reserve1"`
	FeeRate0        *string `json:"fee_rate0,omitempty"`
	FeeRate1        *string `json:"fee_rate1,omitempty"`
	APR             *string `json:"apr,omitempty"`
	PositionsOpened uint64  `json:"positions_opened"`
	PositionsClosed uint64  `json:"positions_closed"`
	TickCrossings   uint64  `json:"tick_crossings"`
	SpotSqrtprice   float64 `json:"spot_sqrtprice"`
	FirstSeq        uint64  `json:"first_seq"`
	LastSeq         uint64  `json:"last_seq"`
	FirstTS         uint64  `json:"first_ts"`
	LastTS          uint64  `json:"last_ts"`
}

func (s PoolSummary) PoolKey() string {
	return s.Token0 + ":" + s.Token1
}
