package dex

import (
	"fmt"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/tick"
)

// Balance is one token balance of an account.
type Balance struct {
	Token  TokenID
	Amount fp.Amount
}

// PositionInfo is a position together with its pool.
type PositionInfo struct {
	Pool PoolID
	pool.PositionInfo
}

// PoolInfoEntry pairs a pool with its canonical view.
type PoolInfoEntry struct {
	Pool PoolID
	Info pool.Info
}

func (e *Engine) Balance(account AccountID, token TokenID) (fp.Amount, error) {
	var out fp.Amount
	err := e.view(func(s *state) error {
		b, err := s.balance(account, token)
		out = b
		return err
	})
	return out, err
}

// Deposits lists the registered token balances of account.
func (e *Engine) Deposits(account AccountID) ([]Balance, error) {
	var out []Balance
	err := e.view(func(s *state) error {
		if !s.accounts.Contains(account) {
			return fmt.Errorf("account %s: %w", account.Hex(), model.ErrAccountNotRegistered)
		}
		s.balances.Ascend(balanceKey{Account: account}, func(k balanceKey, v fp.Amount) bool {
			if k.Account != account {
				return false
			}
			out = append(out, Balance{Token: k.Token, Amount: v})
			return true
		})
		return nil
	})
	return out, err
}

// AccountPositions lists the ids of the positions account owns.
func (e *Engine) AccountPositions(account AccountID) []pool.PositionID {
	var out []pool.PositionID
	_ = e.view(func(s *state) error {
		s.accountPositions.Ascend(positionKey{Account: account}, func(k positionKey, _ struct{}) bool {
			if k.Account != account {
				return false
			}
			out = append(out, k.ID)
			return true
		})
		return nil
	})
	return out
}

// PoolInfo views the (tokenA, tokenB) pool with tokenA as the left token.
// It reports false when the pool does not exist.
func (e *Engine) PoolInfo(tokenA, tokenB TokenID) (pool.Info, bool, error) {
	var (
		info  pool.Info
		found bool
	)
	err := e.view(func(s *state) error {
		id, transposed, err := NewPoolID(tokenA, tokenB)
		if err != nil {
			return err
		}
		p, ok := s.pools.Get(id)
		if !ok {
			return nil
		}
		side := tick.Left
		if transposed {
			side = tick.Right
		}
		info, err = p.Info(side)
		found = err == nil
		return err
	})
	return info, found, err
}

// PoolInfos lists every pool in canonical order.
func (e *Engine) PoolInfos() ([]PoolInfoEntry, error) {
	var out []PoolInfoEntry
	err := e.view(func(s *state) error {
		var err error
		s.pools.Each(func(id PoolID, p *pool.Pool) bool {
			var info pool.Info
			if info, err = p.Info(tick.Left); err != nil {
				return false
			}
			out = append(out, PoolInfoEntry{Pool: id, Info: info})
			return true
		})
		return err
	})
	return out, err
}

// Snapshots renders the storage rows of every pool.
func (e *Engine) Snapshots() ([]model.PoolSnapshot, error) {
	var out []model.PoolSnapshot
	err := e.view(func(s *state) error {
		var err error
		s.pools.Each(func(id PoolID, p *pool.Pool) bool {
			var snap model.PoolSnapshot
			if snap, err = snapshot(id, p); err != nil {
				return false
			}
			out = append(out, snap)
			return true
		})
		return err
	})
	return out, err
}

func (e *Engine) PositionInfo(positionID pool.PositionID) (PositionInfo, error) {
	var out PositionInfo
	err := e.view(func(s *state) error {
		var err error
		out, err = s.positionInfo(positionID)
		return err
	})
	return out, err
}

// PositionsInfo resolves many positions at once; missing ones are nil.
func (e *Engine) PositionsInfo(ids []pool.PositionID) []*PositionInfo {
	out := make([]*PositionInfo, len(ids))
	_ = e.view(func(s *state) error {
		for i, id := range ids {
			if info, err := s.positionInfo(id); err == nil {
				out[i] = &info
			}
		}
		return nil
	})
	return out
}

func (s *state) positionInfo(positionID pool.PositionID) (PositionInfo, error) {
	id, ok := s.positionPools.Get(positionID)
	if !ok {
		return PositionInfo{}, fmt.Errorf("position %d: %w", positionID, model.ErrPositionDoesNotExist)
	}
	p, err := s.pool(id)
	if err != nil {
		return PositionInfo{}, fmt.Errorf("position %d pool: %w", positionID, model.ErrInternalLogicError)
	}
	info, err := p.PositionInfo(positionID)
	if err != nil {
		return PositionInfo{}, err
	}
	return PositionInfo{Pool: id, PositionInfo: info}, nil
}

// LiquidityFeeLevelDistribution reports the percentage of liquidity per fee
// level. It reports false for a missing or empty pool.
func (e *Engine) LiquidityFeeLevelDistribution(tokenA, tokenB TokenID) ([tick.NumFeeLevels]float64, bool, error) {
	var (
		out [tick.NumFeeLevels]float64
		ok  bool
	)
	err := e.view(func(s *state) error {
		id, _, err := NewPoolID(tokenA, tokenB)
		if err != nil {
			return err
		}
		p, found := s.pools.Get(id)
		if !found {
			return nil
		}
		out, ok = p.LiquidityDistribution()
		return nil
	})
	return out, ok, err
}

// PoolTicks counts the referenced ticks of a level.
func (e *Engine) PoolTicks(tokenA, tokenB TokenID, level tick.FeeLevel) (int, error) {
	var n int
	err := e.view(func(s *state) error {
		id, _, err := NewPoolID(tokenA, tokenB)
		if err != nil {
			return err
		}
		p, err := s.pool(id)
		if err != nil {
			return err
		}
		if !level.Valid() {
			return fmt.Errorf("fee level %d: %w", level, model.ErrIllegalFee)
		}
		n = len(p.AllTicksLiquidityChange(level, tick.Left))
		return nil
	})
	return n, err
}

// TicksLiquidityChange emits a TickUpdate event for up to n ticks of level
// starting at start and returns the last reported tick.
func (e *Engine) TicksLiquidityChange(tokenA, tokenB TokenID, level tick.FeeLevel, start int32, n int) (int32, error) {
	var last int32
	err := e.update("ticks_liquidity_change", func(t *txn) error {
		id, _, err := NewPoolID(tokenA, tokenB)
		if err != nil {
			return err
		}
		from, err := tick.New(start)
		if err != nil {
			return err
		}
		if !level.Valid() {
			return fmt.Errorf("fee level %d: %w", level, model.ErrIllegalFee)
		}
		p, err := t.pool(id)
		if err != nil {
			return err
		}
		changes := p.TicksLiquidityChange(level, tick.Left, from, n)
		if len(changes) == 0 {
			return fmt.Errorf("no ticks from %d: %w", start, model.ErrInternalTickNotFound)
		}
		for _, change := range changes {
			t.emitTickUpdate(id, level, change)
		}
		last = changes[len(changes)-1].Tick.Index()
		return nil
	})
	return last, err
}

// SpotPriceFraction renders the level's spot price of tokenA in tokenB as an
// exact fraction.
func (e *Engine) SpotPriceFraction(tokenA, tokenB TokenID, level tick.FeeLevel) (Fraction, error) {
	var out Fraction
	err := e.view(func(s *state) error {
		id, transposed, err := NewPoolID(tokenA, tokenB)
		if err != nil {
			return err
		}
		p, err := s.pool(id)
		if err != nil {
			return err
		}
		if !level.Valid() {
			return fmt.Errorf("fee level %d: %w", level, model.ErrIllegalFee)
		}
		side := tick.Left
		if transposed {
			side = tick.Right
		}
		out, err = FractionFromFloat64(p.SpotPrice(side, level))
		return err
	})
	return out, err
}

// FeeRates lists the fee rate of every level in basis points.
func FeeRates() [tick.NumFeeLevels]int32 {
	return tick.FeeRatesTicks()
}
