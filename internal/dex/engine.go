// Package dex hosts pools behind an account ledger. Every call runs as one
// transaction: it either commits all of its state changes and events or
// leaves the engine untouched.
package dex

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"liquidityEngine/internal/fp"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/store"
)

const (
	DefaultProtocolFeeFraction uint16 = 1300
	MinProtocolFeeFraction     uint16 = 1
	MaxProtocolFeeFraction     uint16 = 5000
)

// Observer is told about every finished call.
type Observer interface {
	ObserveCall(op string, d time.Duration, err error)
	ObserveEvents(events []model.Event)
}

// Options configure an Engine. Zero values select defaults.
type Options struct {
	Seed                string
	ProtocolFeeFraction uint16
	Logger              *zap.Logger
	Clock               func() time.Time
	Observer            Observer
}

// Engine serialises calls on the committed state.
type Engine struct {
	mu       sync.Mutex
	st       *state
	logger   *zap.Logger
	clock    func() time.Time
	observer Observer
	seq      uint64
	events   []model.Event
}

func New(opts Options) (*Engine, error) {
	fee := opts.ProtocolFeeFraction
	if fee == 0 {
		fee = DefaultProtocolFeeFraction
	}
	if err := validateProtocolFeeFraction(fee); err != nil {
		return nil, err
	}
	if opts.Seed == "" {
		opts.Seed = "liquidity-engine"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		st:       newState(store.NewFactory(opts.Seed), fee),
		logger:   logger,
		clock:    clock,
		observer: opts.Observer,
	}, nil
}

func validateProtocolFeeFraction(v uint16) error {
	if v < MinProtocolFeeFraction || v > MaxProtocolFeeFraction {
		return fmt.Errorf("protocol fee fraction %d: %w", v, model.ErrIllegalFee)
	}
	return nil
}

// txn is the working copy of one call.
type txn struct {
	*state
	events []model.Event
}

func (t *txn) emit(name model.EventName, data interface{}) {
	t.events = append(t.events, model.Event{Name: name, Data: data})
}

// update runs fn on a copy of the state and commits it when fn succeeds.
func (e *Engine) update(op string, fn func(t *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.clock()
	t := &txn{state: e.st.clone()}
	err := fn(t)
	if err != nil {
		e.logger.Debug("call rejected", zap.String("op", op), zap.Error(err))
	} else {
		e.st = t.state
		e.commitEvents(t.events)
	}
	if e.observer != nil {
		e.observer.ObserveCall(op, e.clock().Sub(start), err)
	}
	return err
}

// dryRun runs fn on a copy of the state and always discards it.
func (e *Engine) dryRun(fn func(t *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&txn{state: e.st.clone()})
}

// view runs fn on the committed state. fn must not mutate it.
func (e *Engine) view(fn func(s *state) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.st)
}

func (e *Engine) commitEvents(events []model.Event) {
	if len(events) == 0 {
		return
	}
	ts := uint64(e.clock().Unix())
	for i := range events {
		e.seq++
		events[i].Seq = e.seq
		events[i].Timestamp = ts
	}
	e.events = append(e.events, events...)
	if e.observer != nil {
		e.observer.ObserveEvents(events)
	}
}

// DrainEvents returns the committed events not drained yet.
func (e *Engine) DrainEvents() []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.events
	e.events = nil
	return out
}

// LastSeq is the sequence number of the latest committed event.
func (e *Engine) LastSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// RegisterAccount adds an account and its tokens to the ledger.
func (e *Engine) RegisterAccount(account AccountID, tokens ...TokenID) error {
	return e.update("register_account", func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		t.registerAccount(account, tokens...)
		return nil
	})
}

// Deposit credits amount of token and returns the new balance.
func (e *Engine) Deposit(account AccountID, token TokenID, amount fp.Amount) (fp.Amount, error) {
	return e.DepositFrom(account, account, token, amount)
}

// DepositFrom credits a transfer initiated by signer. Only the account owner
// may deposit into it.
func (e *Engine) DepositFrom(signer, account AccountID, token TokenID, amount fp.Amount) (fp.Amount, error) {
	var balance fp.Amount
	err := e.update("deposit", func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		if signer != account {
			return fmt.Errorf("deposit to %s signed by %s: %w", account.Hex(), signer.Hex(), model.ErrDepositSenderMustBeSigner)
		}
		t.registerAccount(account, token)
		b, err := t.credit(account, token, amount)
		if err != nil {
			return err
		}
		balance = b
		t.emit(model.EventDeposit, model.DepositEventData{
			Account: account.Hex(), Token: token.Hex(), Amount: amount, Balance: b,
		})
		return nil
	})
	return balance, err
}

// Withdraw debits amount of token; a zero amount withdraws the whole balance.
// It returns the withdrawn amount.
func (e *Engine) Withdraw(account AccountID, token TokenID, amount fp.Amount) (fp.Amount, error) {
	var withdrawn fp.Amount
	err := e.update("withdraw", func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		if amount.IsZero() {
			b, err := t.balance(account, token)
			if err != nil {
				return err
			}
			if b.IsZero() {
				return nil
			}
			amount = b
		}
		b, err := t.debit(account, token, amount)
		if err != nil {
			return err
		}
		withdrawn = amount
		t.emit(model.EventWithdraw, model.WithdrawEventData{
			Account: account.Hex(), Token: token.Hex(), Amount: amount, Balance: b,
		})
		return nil
	})
	return withdrawn, err
}

// SetProtocolFeeFraction sets the share of swap fees, in basis points, kept by
// the protocol.
func (e *Engine) SetProtocolFeeFraction(v uint16) error {
	return e.update("set_protocol_fee_fraction", func(t *txn) error {
		if err := t.ensurePayable(); err != nil {
			return err
		}
		if err := validateProtocolFeeFraction(v); err != nil {
			return err
		}
		t.protocolFee = v
		return nil
	})
}

func (e *Engine) ProtocolFeeFraction() uint16 {
	var v uint16
	_ = e.view(func(s *state) error {
		v = s.protocolFee
		return nil
	})
	return v
}

// SuspendPayableAPI rejects every state changing call until resumed.
func (e *Engine) SuspendPayableAPI(account AccountID) error {
	return e.update("suspend_payable_api", func(t *txn) error {
		if t.suspended {
			return fmt.Errorf("already suspended: %w", model.ErrInvalidParams)
		}
		t.suspended = true
		t.emit(model.EventSuspendPayableAPI, model.PayableAPIEventData{Account: account.Hex()})
		return nil
	})
}

func (e *Engine) ResumePayableAPI(account AccountID) error {
	return e.update("resume_payable_api", func(t *txn) error {
		if !t.suspended {
			return fmt.Errorf("not suspended: %w", model.ErrInvalidParams)
		}
		t.suspended = false
		t.emit(model.EventResumePayableAPI, model.PayableAPIEventData{Account: account.Hex()})
		return nil
	})
}

func (e *Engine) IsSuspended() bool {
	var v bool
	_ = e.view(func(s *state) error {
		v = s.suspended
		return nil
	})
	return v
}
