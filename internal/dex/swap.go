package dex

import (
	"fmt"
	"math"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
)

// SwapRequest is one swap from the caller's balance.
type SwapRequest struct {
	TokenIn  TokenID
	TokenOut TokenID
	Kind     pool.SwapKind
	// Amount is the input for ExactIn and ToPrice and the output for ExactOut.
	Amount fp.Amount
	// Limit is the minimum output for ExactIn and the maximum input for
	// ExactOut. A zero limit disables the check for ExactIn only.
	Limit fp.Amount
	// PriceLimit is the worst effective price accepted by ToPrice.
	PriceLimit float64
}

// SwapExactIn sells amountIn and requires at least minOut back.
func (e *Engine) SwapExactIn(account AccountID, tokenIn, tokenOut TokenID, amountIn, minOut fp.Amount) (pool.SwapResult, error) {
	return e.Swap(account, SwapRequest{TokenIn: tokenIn, TokenOut: tokenOut, Kind: pool.ExactIn, Amount: amountIn, Limit: minOut})
}

// SwapExactOut buys amountOut paying at most maxIn.
func (e *Engine) SwapExactOut(account AccountID, tokenIn, tokenOut TokenID, amountOut, maxIn fp.Amount) (pool.SwapResult, error) {
	return e.Swap(account, SwapRequest{TokenIn: tokenIn, TokenOut: tokenOut, Kind: pool.ExactOut, Amount: amountOut, Limit: maxIn})
}

// SwapToPrice sells up to amountIn while the effective price stays at or
// below priceLimit.
func (e *Engine) SwapToPrice(account AccountID, tokenIn, tokenOut TokenID, amountIn fp.Amount, priceLimit float64) (pool.SwapResult, error) {
	return e.Swap(account, SwapRequest{TokenIn: tokenIn, TokenOut: tokenOut, Kind: pool.ToPrice, Amount: amountIn, PriceLimit: priceLimit})
}

func (e *Engine) Swap(account AccountID, req SwapRequest) (pool.SwapResult, error) {
	var res pool.SwapResult
	err := e.update("swap_"+req.Kind.String(), func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		t.registerAccount(account, req.TokenIn, req.TokenOut)
		r, err := t.swap(req)
		if err != nil {
			return err
		}
		if _, err := t.debit(account, req.TokenIn, r.AmountIn); err != nil {
			return err
		}
		if _, err := t.credit(account, req.TokenOut, r.AmountOut); err != nil {
			return err
		}
		t.emit(model.EventSwap, model.SwapEventData{
			Account:       account.Hex(),
			TokenIn:       req.TokenIn.Hex(),
			TokenOut:      req.TokenOut.Hex(),
			Kind:          req.Kind.String(),
			AmountIn:      r.AmountIn,
			AmountOut:     r.AmountOut,
			TickCrossings: r.TickCrossings,
		})
		res = r
		return nil
	})
	return res, err
}

// EstimateSwap runs the swap on a discarded copy of the state. Balances are
// not checked.
func (e *Engine) EstimateSwap(req SwapRequest) (pool.SwapResult, error) {
	var res pool.SwapResult
	err := e.dryRun(func(t *txn) error {
		r, err := t.swap(req)
		res = r
		return err
	})
	return res, err
}

// swap executes req on its pool and checks the slippage limit.
func (t *txn) swap(req SwapRequest) (pool.SwapResult, error) {
	id, _, err := NewPoolID(req.TokenIn, req.TokenOut)
	if err != nil {
		return pool.SwapResult{}, err
	}
	p, err := t.poolMut(id)
	if err != nil {
		return pool.SwapResult{}, err
	}
	side := id.Side(req.TokenIn)

	var limit *float64
	if req.Kind == pool.ToPrice {
		if !(req.PriceLimit > 0) {
			return pool.SwapResult{}, fmt.Errorf("price limit %v: %w", req.PriceLimit, model.ErrInvalidParams)
		}
		// pools work on sqrt-prices
		v := math.Sqrt(req.PriceLimit)
		limit = &v
	}
	res, err := p.Swap(side, req.Kind, req.Amount, t.protocolFee, limit)
	if err != nil {
		return pool.SwapResult{}, err
	}
	switch req.Kind {
	case pool.ExactIn:
		if res.AmountOut.Cmp(req.Limit) < 0 {
			return pool.SwapResult{}, fmt.Errorf("out %s below %s: %w", res.AmountOut, req.Limit, model.ErrSlippage)
		}
	case pool.ExactOut:
		if res.AmountIn.Cmp(req.Limit) > 0 {
			return pool.SwapResult{}, fmt.Errorf("in %s above %s: %w", res.AmountIn, req.Limit, model.ErrSlippage)
		}
	}
	if err := t.emitPoolState(id, p, pool.SwapUpdate); err != nil {
		return pool.SwapResult{}, err
	}
	return res, nil
}
