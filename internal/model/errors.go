package model

import (
	"errors"

	"liquidityEngine/internal/fp"
)

// Numeric errors raised by fixed-point arithmetic.
var (
	ErrOverflow           = fp.ErrOverflow
	ErrPrecisionLoss      = fp.ErrPrecisionLoss
	ErrNegativeToUnsigned = fp.ErrNegativeToUnsigned
	ErrNaN                = fp.ErrNaN
)

// Domain errors: the request is rejected and no state changes.
var (
	ErrTokenNotRegistered        = errors.New("token not registered")
	ErrTokenDuplicates           = errors.New("token duplicates")
	ErrPoolNotRegistered         = errors.New("pool not registered")
	ErrAccountNotRegistered      = errors.New("account not registered")
	ErrIllegalFee                = errors.New("illegal fee")
	ErrSlippage                  = errors.New("slippage")
	ErrWrongActionResult         = errors.New("wrong action result")
	ErrPayableAPISuspended       = errors.New("payable api suspended")
	ErrDepositSenderMustBeSigner = errors.New("deposit sender must be signer")
	ErrInvalidParams             = errors.New("invalid params")
	ErrPriceTickOutOfBounds      = errors.New("price tick out of bounds")
	ErrInsufficientLiquidity     = errors.New("insufficient liquidity")
	ErrLiquidityTooSmall         = errors.New("liquidity too small")
	ErrLiquidityTooBig           = errors.New("liquidity too big")
	ErrSwapAmountTooSmall        = errors.New("swap amount too small")
	ErrSwapAmountTooLarge        = errors.New("swap amount too large")
	ErrDepositWouldOverflow      = errors.New("deposit would overflow")
	ErrPositionAlreadyExists     = errors.New("position already exists")
	ErrPositionDoesNotExist      = errors.New("position does not exist")
	ErrNotYourPosition           = errors.New("not your position")
	ErrNotEnoughTokens           = errors.New("not enough tokens")
)

// Internal errors signal a broken invariant.
var (
	ErrInternalTickNotFound = errors.New("internal: tick not found")
	ErrInternalLogicError   = errors.New("internal: logic error")
)

// ErrorKind groups errors for reporting.
type ErrorKind string

const (
	KindNone     ErrorKind = ""
	KindNumeric  ErrorKind = "numeric"
	KindDomain   ErrorKind = "domain"
	KindInternal ErrorKind = "internal"
	KindOther    ErrorKind = "other"
)

var (
	numericErrors  = []error{ErrOverflow, ErrPrecisionLoss, ErrNegativeToUnsigned, ErrNaN}
	internalErrors = []error{ErrInternalTickNotFound, ErrInternalLogicError}
	domainErrors   = []error{
		ErrTokenNotRegistered, ErrTokenDuplicates, ErrPoolNotRegistered, ErrAccountNotRegistered,
		ErrIllegalFee, ErrSlippage, ErrWrongActionResult, ErrPayableAPISuspended,
		ErrDepositSenderMustBeSigner, ErrInvalidParams, ErrPriceTickOutOfBounds,
		ErrInsufficientLiquidity, ErrLiquidityTooSmall, ErrLiquidityTooBig,
		ErrSwapAmountTooSmall, ErrSwapAmountTooLarge, ErrDepositWouldOverflow,
		ErrPositionAlreadyExists, ErrPositionDoesNotExist, ErrNotYourPosition, ErrNotEnoughTokens,
	}
)

// KindOf classifies err. Internal errors win over the others when several are wrapped.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	switch {
	case matchesAny(err, internalErrors):
		return KindInternal
	case matchesAny(err, domainErrors):
		return KindDomain
	case matchesAny(err, numericErrors):
		return KindNumeric
	}
	return KindOther
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorName returns the sentinel text of the most specific known error in err.
func ErrorName(err error) string {
	for _, group := range [][]error{internalErrors, domainErrors, numericErrors} {
		for _, target := range group {
			if errors.Is(err, target) {
				return target.Error()
			}
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
