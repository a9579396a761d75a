package dex

import (
	"fmt"

	"github.com/shopspring/decimal"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/tick"
)

// OpenResult reports an opened position in the caller's token order.
type OpenResult struct {
	PositionID   pool.PositionID
	AmountA      fp.Amount
	AmountB      fp.Amount
	NetLiquidity fp.U192X64
}

// OpenPosition opens a position on the (tokenA, tokenB) pool, creating the
// pool on first use. Ranges and ticks in init are in tokenA/tokenB terms.
func (e *Engine) OpenPosition(account AccountID, tokenA, tokenB TokenID, feeRate uint32, init pool.PositionInit) (OpenResult, error) {
	var res OpenResult
	err := e.update("open_position", func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		t.registerAccount(account, tokenA, tokenB)
		id, transposed, err := NewPoolID(tokenA, tokenB)
		if err != nil {
			return err
		}
		level, err := tick.LevelForRate(feeRate)
		if err != nil {
			return err
		}

		positionID := t.nextPositionID
		t.nextPositionID++

		p := t.poolOrCreate(id)
		opened, err := p.OpenPosition(init.TransposeIf(transposed), level, positionID)
		if err != nil {
			return err
		}
		key := positionKey{Account: account, ID: positionID}
		if t.accountPositions.Contains(key) {
			return fmt.Errorf("position %d: %w", positionID, model.ErrPositionAlreadyExists)
		}
		for _, side := range tick.Sides {
			if _, err := t.debit(account, id.Tokens()[side], opened.Deposited[side]); err != nil {
				return err
			}
		}
		t.accountPositions.Insert(key, struct{}{})
		t.positionPools.Insert(positionID, id)

		for _, change := range []pool.TickChange{opened.Low, opened.High} {
			t.emitTickUpdate(id, level, change)
		}
		t.emit(model.EventOpenPosition, model.OpenPositionEventData{
			Account:      account.Hex(),
			Token0:       id.Left.Hex(),
			Token1:       id.Right.Hex(),
			PositionID:   positionID,
			FeeRate:      feeRate,
			TickLower:    opened.Low.Tick.Index(),
			TickUpper:    opened.High.Tick.Index(),
			Amount0:      opened.Deposited[tick.Left],
			Amount1:      opened.Deposited[tick.Right],
			NetLiquidity: opened.NetLiquidity.Decimal().String(),
		})
		if err := t.emitPoolState(id, p, pool.AddLiquidity); err != nil {
			return err
		}

		deposited := opened.Deposited.Swapped(transposed)
		res = OpenResult{
			PositionID:   positionID,
			AmountA:      deposited[tick.Left],
			AmountB:      deposited[tick.Right],
			NetLiquidity: opened.NetLiquidity,
		}
		return nil
	})
	return res, err
}

// OpenPositionFull opens a full-range position taking at least one unit of
// each token.
func (e *Engine) OpenPositionFull(account AccountID, tokenA, tokenB TokenID, feeRate uint32, amountA, amountB fp.Amount) (OpenResult, error) {
	one := fp.NewAmount(1)
	return e.OpenPosition(account, tokenA, tokenB, feeRate, pool.PositionInit{
		AmountRanges: tick.NewPair(
			pool.Range{Min: one, Max: amountA},
			pool.Range{Min: one, Max: amountB},
		),
	})
}

// CloseResult reports a closed position in canonical pool order.
type CloseResult struct {
	Pool    PoolID
	Balance tick.Pair[fp.Amount]
	Fees    tick.Pair[fp.Amount]
}

// ClosePosition withdraws the fees and the liquidity of a position into the
// owner's balances.
func (e *Engine) ClosePosition(account AccountID, positionID pool.PositionID) (CloseResult, error) {
	var res CloseResult
	err := e.update("close_position", func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		id, err := t.ownedPosition(account, positionID)
		if err != nil {
			return err
		}
		p, err := t.poolMut(id)
		if err != nil {
			return fmt.Errorf("position %d pool: %w", positionID, model.ErrInternalLogicError)
		}
		closed, err := p.WithdrawFeeAndClosePosition(positionID)
		if err != nil {
			return err
		}
		for _, side := range tick.Sides {
			total, err := closed.Balance[side].Add(closed.Fees[side])
			if err != nil {
				return fmt.Errorf("close position %d: %w", positionID, model.ErrDepositWouldOverflow)
			}
			if _, err := t.credit(account, id.Tokens()[side], total); err != nil {
				return err
			}
		}
		t.accountPositions.Remove(positionKey{Account: account, ID: positionID})
		t.positionPools.Remove(positionID)

		for _, change := range []pool.TickChange{closed.Low, closed.High} {
			t.emitTickUpdate(id, closed.FeeLevel, change)
		}
		t.emit(model.EventHarvestFee, model.HarvestFeeEventData{
			Account:    account.Hex(),
			Token0:     id.Left.Hex(),
			Token1:     id.Right.Hex(),
			PositionID: positionID,
			Fee0:       closed.Fees[tick.Left],
			Fee1:       closed.Fees[tick.Right],
		})
		t.emit(model.EventClosePosition, model.ClosePositionEventData{
			Account:    account.Hex(),
			Token0:     id.Left.Hex(),
			Token1:     id.Right.Hex(),
			PositionID: positionID,
			Amount0:    closed.Balance[tick.Left],
			Amount1:    closed.Balance[tick.Right],
			Fee0:       closed.Fees[tick.Left],
			Fee1:       closed.Fees[tick.Right],
		})
		if err := t.emitPoolState(id, p, pool.RemoveLiquidity); err != nil {
			return err
		}
		res = CloseResult{Pool: id, Balance: closed.Balance, Fees: closed.Fees}
		return nil
	})
	return res, err
}

// WithdrawFee harvests the fees of a position into the owner's balances. The
// result is in canonical pool order.
func (e *Engine) WithdrawFee(account AccountID, positionID pool.PositionID) (tick.Pair[fp.Amount], error) {
	var fees tick.Pair[fp.Amount]
	err := e.update("withdraw_fee", func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		id, err := t.ownedPosition(account, positionID)
		if err != nil {
			return err
		}
		p, err := t.poolMut(id)
		if err != nil {
			return fmt.Errorf("position %d pool: %w", positionID, model.ErrInternalLogicError)
		}
		if fees, err = p.WithdrawFee(positionID); err != nil {
			return err
		}
		for _, side := range tick.Sides {
			if _, err := t.credit(account, id.Tokens()[side], fees[side]); err != nil {
				return err
			}
		}
		t.emit(model.EventHarvestFee, model.HarvestFeeEventData{
			Account:    account.Hex(),
			Token0:     id.Left.Hex(),
			Token1:     id.Right.Hex(),
			PositionID: positionID,
			Fee0:       fees[tick.Left],
			Fee1:       fees[tick.Right],
		})
		return nil
	})
	return fees, err
}

// WithdrawProtocolFee moves the protocol's share of a pool into the balances
// of account. The result is in the caller's token order.
func (e *Engine) WithdrawProtocolFee(account AccountID, tokenA, tokenB TokenID) (fp.Amount, fp.Amount, error) {
	var amounts tick.Pair[fp.Amount]
	err := e.update("withdraw_protocol_fee", func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		id, transposed, err := NewPoolID(tokenA, tokenB)
		if err != nil {
			return err
		}
		p, err := t.poolMut(id)
		if err != nil {
			return err
		}
		fees, err := p.WithdrawProtocolFee()
		if err != nil {
			return err
		}
		t.registerAccount(account, id.Left, id.Right)
		for _, side := range tick.Sides {
			if _, err := t.credit(account, id.Tokens()[side], fees[side]); err != nil {
				return err
			}
		}
		amounts = fees.Swapped(transposed)
		return nil
	})
	return amounts[tick.Left], amounts[tick.Right], err
}

func (t *txn) emitTickUpdate(id PoolID, level tick.FeeLevel, change pool.TickChange) {
	t.emit(model.EventTickUpdate, model.TickUpdateEventData{
		Token0:   id.Left.Hex(),
		Token1:   id.Right.Hex(),
		FeeLevel: uint8(level),
		Tick:     change.Tick.Index(),
		Change:   change.Change,
	})
}

func (t *txn) emitPoolState(id PoolID, p *pool.Pool, reason pool.UpdateReason) error {
	snap, err := snapshot(id, p)
	if err != nil {
		return err
	}
	t.emit(model.EventUpdatePoolState, model.UpdatePoolStateEventData{
		Reason:   reason.String(),
		Snapshot: snap,
	})
	return nil
}

// snapshot renders the storage row of a pool in canonical order.
func snapshot(id PoolID, p *pool.Pool) (model.PoolSnapshot, error) {
	info, err := p.Info(tick.Left)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	liquidities := make([]decimal.Decimal, 0, len(info.Liquidities))
	for _, l := range info.Liquidities {
		liquidities = append(liquidities, l.Decimal())
	}
	return model.PoolSnapshot{
		Token0:           id.Left.Hex(),
		Token1:           id.Right.Hex(),
		TotalReserve0:    info.TotalReserves[tick.Left].String(),
		TotalReserve1:    info.TotalReserves[tick.Right].String(),
		PositionReserve0: info.PositionReserves[tick.Left].String(),
		PositionReserve1: info.PositionReserves[tick.Right].String(),
		SpotSqrtprice:    info.SpotSqrtprices[0],
		Liquidities:      liquidities,
		Positions:        p.PositionCount(),
	}, nil
}
