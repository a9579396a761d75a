package aggregate

import (
	"fmt"
	"math/big"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
)

// Accumulator holds aggregate values for one pool.
type Accumulator struct {
	Token0          string
	Token1          string
	SwapCount       uint64
	Volume0         *big.Int
	Volume1         *big.Int
	Fee0            *big.Int
	Fee1            *big.Int
	Reserve0        *big.Int
	Reserve1        *big.Int
	PositionsOpened uint64
	PositionsClosed uint64
	TickCrossings   uint64
	SpotSqrtprice   float64
	FirstSeq        uint64
	LastSeq         uint64
	FirstTS         uint64
	LastTS          uint64
}

func NewAccumulator(token0, token1 string) *Accumulator {
	return &Accumulator{
		Token0:   token0,
		Token1:   token1,
		Volume0:  big.NewInt(0),
		Volume1:  big.NewInt(0),
		Fee0:     big.NewInt(0),
		Fee1:     big.NewInt(0),
		Reserve0: big.NewInt(0),
		Reserve1: big.NewInt(0),
	}
}

// FromSummary resumes accumulation from a stored summary.
func FromSummary(s model.PoolSummary) (*Accumulator, error) {
	acc := NewAccumulator(s.Token0, s.Token1)
	for _, field := range []struct {
		target *big.Int
		value  string
	}{
		{acc.Volume0, s.Volume0},
		{acc.Volume1, s.Volume1},
		{acc.Fee0, s.Fee0},
		{acc.Fee1, s.Fee1},
		{acc.Reserve0, s.Reserve0},
		{acc.Reserve1, s.Reserve1},
	} {
		v, err := parseBigInt(field.value)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", s.PoolKey(), err)
		}
		field.target.Set(v)
	}
	acc.SwapCount = s.SwapCount
	acc.PositionsOpened = s.PositionsOpened
	acc.PositionsClosed = s.PositionsClosed
	acc.TickCrossings = s.TickCrossings
	acc.SpotSqrtprice = s.SpotSqrtprice
	acc.FirstSeq, acc.LastSeq = s.FirstSeq, s.LastSeq
	acc.FirstTS, acc.LastTS = s.FirstTS, s.LastTS
	return acc, nil
}

// AddEvent applies a decoded payload belonging to this pool.
func (a *Accumulator) AddEvent(record model.EventRecord, data interface{}) error {
	if a.FirstSeq == 0 || record.Seq < a.FirstSeq {
		a.FirstSeq = record.Seq
		a.FirstTS = record.Timestamp
	}
	if record.Seq >= a.LastSeq {
		a.LastSeq = record.Seq
		a.LastTS = record.Timestamp
	}

	switch ev := data.(type) {
	case *model.SwapEventData:
		a.applySwap(ev)
	case *model.HarvestFeeEventData:
		addAmount(a.Fee0, ev.Fee0)
		addAmount(a.Fee1, ev.Fee1)
	case *model.OpenPositionEventData:
		a.PositionsOpened++
	case *model.ClosePositionEventData:
		a.PositionsClosed++
	case *model.UpdatePoolStateEventData:
		return a.applySnapshot(ev.Snapshot)
	}
	return nil
}

func (a *Accumulator) applySwap(swap *model.SwapEventData) {
	a.SwapCount++
	a.TickCrossings += uint64(swap.TickCrossings)
	if swap.TokenIn == a.Token0 {
		addAmount(a.Volume0, swap.AmountIn)
		addAmount(a.Volume1, swap.AmountOut)
		return
	}
	addAmount(a.Volume1, swap.AmountIn)
	addAmount(a.Volume0, swap.AmountOut)
}

func (a *Accumulator) applySnapshot(snap model.PoolSnapshot) error {
	reserve0, err := parseBigInt(snap.TotalReserve0)
	if err != nil {
		return err
	}
	reserve1, err := parseBigInt(snap.TotalReserve1)
	if err != nil {
		return err
	}
	a.Reserve0.Set(reserve0)
	a.Reserve1.Set(reserve1)
	a.SpotSqrtprice = snap.SpotSqrtprice
	return nil
}

// Summary renders the raw totals.
func (a *Accumulator) Summary() model.PoolSummary {
	feeRate0, feeRate1 := computeFeeRates(a.Fee0, a.Fee1, a.Reserve0, a.Reserve1)
	var window uint64
	if a.LastTS > a.FirstTS {
		window = a.LastTS - a.FirstTS
	}
	return model.PoolSummary{
		Token0:          a.Token0,
		Token1:          a.Token1,
		SwapCount:       a.SwapCount,
		Volume0:         a.Volume0.String(),
		Volume1:         a.Volume1.String(),
		Fee0:            a.Fee0.String(),
		Fee1:            a.Fee1.String(),
		Reserve0:        a.Reserve0.String(),
		Reserve1:        a.Reserve1.String(),
		FeeRate0:        feeRate0,
		FeeRate1:        feeRate1,
		APR:             computeAPR(feeRate0, feeRate1, window),
		PositionsOpened: a.PositionsOpened,
		PositionsClosed: a.PositionsClosed,
		TickCrossings:   a.TickCrossings,
		SpotSqrtprice:   a.SpotSqrtprice,
		FirstSeq:        a.FirstSeq,
		LastSeq:         a.LastSeq,
		FirstTS:         a.FirstTS,
		LastTS:          a.LastTS,
	}
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}

func addAmount(target *big.Int, value fp.Amount) {
	if target == nil {
		return
	}
	target.Add(target, value.Big())
}
