package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is the stable, caller-facing classification of a ledger error.
type Kind string

const (
	KindInvalidAmount      Kind = "invalid_amount"
	KindInvalidKind        Kind = "invalid_kind"
	KindNotFound           Kind = "not_found"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindInsufficientCredit Kind = "insufficient_credit"
	KindConflict           Kind = "conflict"
	KindPersistence        Kind = "persistence_failure"
	KindCache              Kind = "cache_failure"
)

var (
	// ErrInvalidAmount occurs when an amount is not strictly positive or has
	// more fractional digits than the store keeps.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidKind occurs when a transaction or wallet kind is not recognized.
	ErrInvalidKind = errors.New("invalid kind")

	// ErrNotFound covers missing rows and rows owned by someone else.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds occurs when an asset wallet would go below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientCredit occurs when a credit line would exceed its limit.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrConflict indicates a lock wait timeout or serialization failure.
	// Nothing was written and the operation is safe to retry.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrPersistence indicates the store could not commit. Nothing was written.
	ErrPersistence = errors.New("persistence failure")

	// ErrCache is logged, never returned from a mutation.
	ErrCache = errors.New("cache failure")
)

var sentinels = map[Kind]error{
	KindInvalidAmount:      ErrInvalidAmount,
	KindInvalidKind:        ErrInvalidKind,
	KindNotFound:           ErrNotFound,
	KindInsufficientFunds:  ErrInsufficientFunds,
	KindInsufficientCredit: ErrInsufficientCredit,
	KindConflict:           ErrConflict,
	KindPersistence:        ErrPersistence,
	KindCache:              ErrCache,
}

// Error is a classified ledger error. Message is safe to show to callers;
// Err keeps the underlying cause for logs and errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if s, ok := sentinels[e.Kind]; ok {
		return s.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := sentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Errorf builds a classified error with a caller-facing message.
func Errorf(kind Kind, format string, args ...any) error {
	return newError(kind, format, args...)
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// PolicyError explains why a wallet policy rejected a balance change.
type PolicyError struct {
	Kind     Kind
	WalletID string
	Balance  decimal.Decimal
	Delta    decimal.Decimal
	Limit    decimal.Decimal
}

func (e *PolicyError) Error() string {
	wallet := e.WalletID
	if wallet == "" {
		wallet = "wallet"
	} else {
		wallet = "wallet " + wallet
	}
	if e.Kind == KindInsufficientCredit {
		return fmt.Sprintf("insufficient credit in %s: owed %s, change %s would exceed limit %s",
			wallet, e.Balance.StringFixed(2), e.Delta.StringFixed(2), e.Limit.StringFixed(2))
	}
	return fmt.Sprintf("insufficient funds in %s: balance %s, change %s would leave %s",
		wallet, e.Balance.StringFixed(2), e.Delta.StringFixed(2), e.Balance.Add(e.Delta).StringFixed(2))
}

func (e *PolicyError) Unwrap() error {
	return sentinels[e.Kind]
}

// KindOf classifies err. Unclassified errors return "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConflict
}

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindInvalidAmount, KindInvalidKind, KindNotFound, KindInsufficientFunds, KindInsufficientCredit:
		return true
	}
	return false
}
