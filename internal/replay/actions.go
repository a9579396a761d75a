package replay

import (
	"fmt"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/tick"
)

// session carries what the actions of one run share.
type session struct {
	engine *dex.Engine
	sc     *Scenario
	labels map[string]pool.PositionID
}

type handler func(s *session, a Action) error

var handlers = map[string]handler{
	"register_account":          registerAccount,
	"deposit":                   deposit,
	"withdraw":                  withdraw,
	"open_position":             openPosition,
	"open_position_full":        openPositionFull,
	"close_position":            closePosition,
	"withdraw_fee":              withdrawFee,
	"withdraw_protocol_fee":     withdrawProtocolFee,
	"swap_exact_in":             swapExactIn,
	"swap_exact_out":            swapExactOut,
	"swap_to_price":             swapToPrice,
	"set_protocol_fee_fraction": setProtocolFeeFraction,
	"suspend_payable_api":       suspendPayableAPI,
	"resume_payable_api":        resumePayableAPI,
	"ticks_liquidity_change":    ticksLiquidityChange,
}

func registerAccount(s *session, a Action) error {
	account, err := s.sc.Account(a.Account)
	if err != nil {
		return err
	}
	var tokens []dex.TokenID
	for _, name := range []string{a.Token, a.TokenA, a.TokenB} {
		if name == "" {
			continue
		}
		token, err := s.sc.Token(name)
		if err != nil {
			return err
		}
		tokens = append(tokens, token)
	}
	return s.engine.RegisterAccount(account, tokens...)
}

func deposit(s *session, a Action) error {
	account, token, amount, err := s.accountTokenAmount(a)
	if err != nil {
		return err
	}
	signer := account
	if a.Signer != "" {
		if signer, err = s.sc.Account(a.Signer); err != nil {
			return err
		}
	}
	_, err = s.engine.DepositFrom(signer, account, token, amount)
	return err
}

func withdraw(s *session, a Action) error {
	account, token, amount, err := s.accountTokenAmount(a)
	if err != nil {
		return err
	}
	_, err = s.engine.Withdraw(account, token, amount)
	return err
}

func openPosition(s *session, a Action) error {
	account, tokenA, tokenB, err := s.accountPair(a.TokenA, a.TokenB, a)
	if err != nil {
		return err
	}
	var amounts [4]fp.Amount
	for i, f := range []struct{ name, value string }{
		{"min_a", a.MinA}, {"amount_a", a.AmountA}, {"min_b", a.MinB}, {"amount_b", a.AmountB},
	} {
		if amounts[i], err = parseAmount(f.name, f.value); err != nil {
			return err
		}
	}
	init := pool.PositionInit{
		AmountRanges: tick.NewPair(
			pool.Range{Min: amounts[0], Max: amounts[1]},
			pool.Range{Min: amounts[2], Max: amounts[3]},
		),
		LowTick:  a.LowTick,
		HighTick: a.HighTick,
	}
	res, err := s.engine.OpenPosition(account, tokenA, tokenB, a.FeeRate, init)
	if err != nil {
		return err
	}
	s.label(a, res.PositionID)
	return nil
}

func openPositionFull(s *session, a Action) error {
	account, tokenA, tokenB, err := s.accountPair(a.TokenA, a.TokenB, a)
	if err != nil {
		return err
	}
	amountA, err := parseAmount("amount_a", a.AmountA)
	if err != nil {
		return err
	}
	amountB, err := parseAmount("amount_b", a.AmountB)
	if err != nil {
		return err
	}
	res, err := s.engine.OpenPositionFull(account, tokenA, tokenB, a.FeeRate, amountA, amountB)
	if err != nil {
		return err
	}
	s.label(a, res.PositionID)
	return nil
}

func closePosition(s *session, a Action) error {
	account, id, err := s.accountPosition(a)
	if err != nil {
		return err
	}
	_, err = s.engine.ClosePosition(account, id)
	return err
}

func withdrawFee(s *session, a Action) error {
	account, id, err := s.accountPosition(a)
	if err != nil {
		return err
	}
	_, err = s.engine.WithdrawFee(account, id)
	return err
}

func withdrawProtocolFee(s *session, a Action) error {
	account, tokenA, tokenB, err := s.accountPair(a.TokenA, a.TokenB, a)
	if err != nil {
		return err
	}
	_, _, err = s.engine.WithdrawProtocolFee(account, tokenA, tokenB)
	return err
}

func swapExactIn(s *session, a Action) error {
	return s.swap(a, pool.ExactIn)
}

func swapExactOut(s *session, a Action) error {
	return s.swap(a, pool.ExactOut)
}

func swapToPrice(s *session, a Action) error {
	return s.swap(a, pool.ToPrice)
}

func (s *session) swap(a Action, kind pool.SwapKind) error {
	account, tokenIn, tokenOut, err := s.accountPair(a.TokenIn, a.TokenOut, a)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", a.Amount)
	if err != nil {
		return err
	}
	limit, err := parseAmount("limit", a.Limit)
	if err != nil {
		return err
	}
	_, err = s.engine.Swap(account, dex.SwapRequest{
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		Kind:       kind,
		Amount:     amount,
		Limit:      limit,
		PriceLimit: a.Price,
	})
	return err
}

func setProtocolFeeFraction(s *session, a Action) error {
	return s.engine.SetProtocolFeeFraction(a.Fraction)
}

func suspendPayableAPI(s *session, a Action) error {
	account, err := s.sc.Account(a.Account)
	if err != nil {
		return err
	}
	return s.engine.SuspendPayableAPI(account)
}

func resumePayableAPI(s *session, a Action) error {
	account, err := s.sc.Account(a.Account)
	if err != nil {
		return err
	}
	return s.engine.ResumePayableAPI(account)
}

func ticksLiquidityChange(s *session, a Action) error {
	tokenA, err := s.sc.Token(a.TokenA)
	if err != nil {
		return err
	}
	tokenB, err := s.sc.Token(a.TokenB)
	if err != nil {
		return err
	}
	count := a.Count
	if count <= 0 {
		count = 100
	}
	_, err = s.engine.TicksLiquidityChange(tokenA, tokenB, tick.FeeLevel(a.Level), a.Start, count)
	return err
}

func (s *session) accountTokenAmount(a Action) (dex.AccountID, dex.TokenID, fp.Amount, error) {
	account, err := s.sc.Account(a.Account)
	if err != nil {
		return dex.AccountID{}, dex.TokenID{}, fp.Amount{}, err
	}
	token, err := s.sc.Token(a.Token)
	if err != nil {
		return dex.AccountID{}, dex.TokenID{}, fp.Amount{}, err
	}
	amount, err := parseAmount("amount", a.Amount)
	return account, token, amount, err
}

func (s *session) accountPair(first, second string, a Action) (dex.AccountID, dex.TokenID, dex.TokenID, error) {
	account, err := s.sc.Account(a.Account)
	if err != nil {
		return dex.AccountID{}, dex.TokenID{}, dex.TokenID{}, err
	}
	tokenA, err := s.sc.Token(first)
	if err != nil {
		return dex.AccountID{}, dex.TokenID{}, dex.TokenID{}, err
	}
	tokenB, err := s.sc.Token(second)
	return account, tokenA, tokenB, err
}

func (s *session) accountPosition(a Action) (dex.AccountID, pool.PositionID, error) {
	account, err := s.sc.Account(a.Account)
	if err != nil {
		return dex.AccountID{}, 0, err
	}
	id, ok := s.labels[a.Position]
	if !ok {
		return dex.AccountID{}, 0, fmt.Errorf("unknown position label %q", a.Position)
	}
	return account, id, nil
}

func (s *session) label(a Action, id pool.PositionID) {
	if a.Label != "" {
		s.labels[a.Label] = id
	}
}
