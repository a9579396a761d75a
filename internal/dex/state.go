package dex

import (
	"bytes"
	"fmt"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/store"
)

type balanceKey struct {
	Account AccountID
	Token   TokenID
}

func balanceKeyLess(a, b balanceKey) bool {
	if c := bytes.Compare(a.Account[:], b.Account[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.Token[:], b.Token[:]) < 0
}

type positionKey struct {
	Account AccountID
	ID      pool.PositionID
}

func positionKeyLess(a, b positionKey) bool {
	if c := bytes.Compare(a.Account[:], b.Account[:]); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

// state is everything the engine persists. A transaction works on a clone
// and replaces the committed state on success.
type state struct {
	factory          *store.Factory
	accounts         store.OrderedMap[AccountID, struct{}]
	balances         store.OrderedMap[balanceKey, fp.Amount]
	accountPositions store.OrderedMap[positionKey, struct{}]
	pools            store.OrderedMap[PoolID, *pool.Pool]
	positionPools    store.OrderedMap[pool.PositionID, PoolID]
	nextPositionID   pool.PositionID
	protocolFee      uint16
	suspended        bool

	// pools already copied into this transaction
	owned map[PoolID]struct{}
}

func newState(f *store.Factory, protocolFee uint16) *state {
	return &state{
		factory:          f,
		accounts:         store.NewMap[AccountID, struct{}](f, "accounts", store.AddressLess),
		balances:         store.NewMap[balanceKey, fp.Amount](f, "balances", balanceKeyLess),
		accountPositions: store.NewMap[positionKey, struct{}](f, "account_positions", positionKeyLess),
		pools:            store.NewMap[PoolID, *pool.Pool](f, "pools", poolIDLess),
		positionPools:    store.NewOrderedMap[pool.PositionID, PoolID](f, "position_pools"),
		protocolFee:      protocolFee,
		owned:            make(map[PoolID]struct{}),
	}
}

func (s *state) clone() *state {
	return &state{
		factory:          s.factory.Fork(),
		accounts:         s.accounts.Clone(),
		balances:         s.balances.Clone(),
		accountPositions: s.accountPositions.Clone(),
		pools:            s.pools.Clone(),
		positionPools:    s.positionPools.Clone(),
		nextPositionID:   s.nextPositionID,
		protocolFee:      s.protocolFee,
		suspended:        s.suspended,
		owned:            make(map[PoolID]struct{}),
	}
}

func (s *state) ensurePayable() error {
	if s.suspended {
		return model.ErrPayableAPISuspended
	}
	return nil
}

// registerAccount adds the account and its tokens to the ledger.
func (s *state) registerAccount(account AccountID, tokens ...TokenID) {
	if !s.accounts.Contains(account) {
		s.accounts.Insert(account, struct{}{})
	}
	for _, token := range tokens {
		key := balanceKey{Account: account, Token: token}
		if !s.balances.Contains(key) {
			s.balances.Insert(key, fp.Amount{})
		}
	}
}

func (s *state) balance(account AccountID, token TokenID) (fp.Amount, error) {
	if !s.accounts.Contains(account) {
		return fp.Amount{}, fmt.Errorf("account %s: %w", account.Hex(), model.ErrAccountNotRegistered)
	}
	b, ok := s.balances.Get(balanceKey{Account: account, Token: token})
	if !ok {
		return fp.Amount{}, fmt.Errorf("token %s: %w", token.Hex(), model.ErrTokenNotRegistered)
	}
	return b, nil
}

func (s *state) credit(account AccountID, token TokenID, amount fp.Amount) (fp.Amount, error) {
	b, err := s.balance(account, token)
	if err != nil {
		return fp.Amount{}, err
	}
	next, err := b.Add(amount)
	if err != nil {
		return fp.Amount{}, fmt.Errorf("deposit %s: %w", token.Hex(), model.ErrDepositWouldOverflow)
	}
	s.balances.Insert(balanceKey{Account: account, Token: token}, next)
	return next, nil
}

func (s *state) debit(account AccountID, token TokenID, amount fp.Amount) (fp.Amount, error) {
	b, err := s.balance(account, token)
	if err != nil {
		return fp.Amount{}, err
	}
	next, err := b.Sub(amount)
	if err != nil {
		return fp.Amount{}, fmt.Errorf("withdraw %s of %s, have %s: %w", amount, token.Hex(), b, model.ErrNotEnoughTokens)
	}
	s.balances.Insert(balanceKey{Account: account, Token: token}, next)
	return next, nil
}

func (s *state) pool(id PoolID) (*pool.Pool, error) {
	p, ok := s.pools.Get(id)
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", id, model.ErrPoolNotRegistered)
	}
	return p, nil
}

// poolMut returns a pool private to this transaction.
func (s *state) poolMut(id PoolID) (*pool.Pool, error) {
	p, err := s.pool(id)
	if err != nil {
		return nil, err
	}
	if _, ok := s.owned[id]; !ok {
		p = p.Clone()
		s.pools.Insert(id, p)
		s.owned[id] = struct{}{}
	}
	return p, nil
}

func (s *state) poolOrCreate(id PoolID) *pool.Pool {
	if p, err := s.poolMut(id); err == nil {
		return p
	}
	p := pool.New(s.factory)
	s.pools.Insert(id, p)
	s.owned[id] = struct{}{}
	return p
}

// ownedPosition resolves the pool of a position the account holds.
func (s *state) ownedPosition(account AccountID, id pool.PositionID) (PoolID, error) {
	poolID, ok := s.positionPools.Get(id)
	if !ok {
		return PoolID{}, fmt.Errorf("position %d: %w", id, model.ErrPositionDoesNotExist)
	}
	if !s.accountPositions.Contains(positionKey{Account: account, ID: id}) {
		return PoolID{}, fmt.Errorf("position %d: %w", id, model.ErrNotYourPosition)
	}
	return poolID, nil
}
