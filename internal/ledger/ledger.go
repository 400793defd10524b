package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WalletType is the user-facing category of a wallet.
type WalletType string

const (
	WalletCash        WalletType = "Cash"
	WalletBankAccount WalletType = "BankAccount"
	WalletCreditCard  WalletType = "CreditCard"
	WalletOther       WalletType = "Other"
)

// ParseWalletType validates a wallet type label.
func ParseWalletType(s string) (WalletType, error) {
	switch t := WalletType(strings.TrimSpace(s)); t {
	case WalletCash, WalletBankAccount, WalletCreditCard, WalletOther:
		return t, nil
	}
	return "", newError(KindInvalidKind, "unknown wallet type %q", s)
}

// Kind reports which spending policy governs wallets of this type.
func (t WalletType) Kind() WalletKind {
	if t == WalletCreditCard {
		return CreditLine
	}
	return Asset
}

// TxKind is the direction of a transaction. Immutable once created.
type TxKind string

const (
	// Credit moves money into an asset wallet or pays down a credit line.
	Credit TxKind = "income"
	// Debit moves money out of an asset wallet or draws on a credit line.
	Debit TxKind = "expense"
)

// ParseTxKind accepts both the domain labels (income/expense) and the
// ledger labels (credit/debit).
func ParseTxKind(s string) (TxKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "credit":
		return Credit, nil
	case "expense", "debit":
		return Debit, nil
	}
	return "", newError(KindInvalidKind, "unknown transaction kind %q", s)
}

// Wallet is a money container owned by a single principal.
type Wallet struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"user_id"`
	Name        string          `json:"name"`
	Type        WalletType      `json:"wallet_type"`
	Balance     decimal.Decimal `json:"balance"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Kind is shorthand for w.Type.Kind().
func (w Wallet) Kind() WalletKind { return w.Type.Kind() }

// Available returns the spendable amount: the balance held for asset
// wallets, the unused part of the limit for credit lines.
func (w Wallet) Available() decimal.Decimal {
	if w.Kind() == CreditLine {
		return w.CreditLimit.Sub(w.Balance)
	}
	return w.Balance
}

// Transaction is a single income or expense recorded against a wallet.
// Amount is always positive; Kind carries the direction.
type Transaction struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"user_id"`
	WalletID  string          `json:"wallet_id"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      TxKind          `json:"transaction_type"`
	Category  string          `json:"category"`
	Note      string          `json:"description"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store runs ledger mutations as atomic units. If fn returns an error every
// write made through tx is discarded and every lock released.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the lock-scoped view of the store inside one atomic unit. Lock*
// methods block until the row lock is granted or the lock timeout expires
// (reported as KindConflict); rows not owned by ownerID are reported as
// KindNotFound.
type Tx interface {
	LockWallet(ctx context.Context, ownerID, id string) (Wallet, error)
	LockTransaction(ctx context.Context, ownerID, id string) (Transaction, error)

	InsertWallet(ctx context.Context, w Wallet) error
	UpdateWallet(ctx context.Context, w Wallet) error
	// DeleteWallet removes a locked wallet and every transaction referencing it.
	DeleteWallet(ctx context.Context, ownerID, id string) error

	InsertTransaction(ctx context.Context, t Transaction) error
	UpdateTransaction(ctx context.Context, t Transaction) error
	DeleteTransaction(ctx context.Context, ownerID, id string) error
}

// TransactionFilter narrows ListTransactions. Zero value lists everything.
type TransactionFilter struct {
	WalletID string
}

// Reader serves unserialized reads. Results may trail in-flight mutations.
type Reader interface {
	GetWallet(ctx context.Context, ownerID, id string) (Wallet, error)
	ListWallets(ctx context.Context, ownerID string) ([]Wallet, error)
	GetTransaction(ctx context.Context, ownerID, id string) (Transaction, error)
	ListTransactions(ctx context.Context, ownerID string, filter TransactionFilter) ([]Transaction, error)
}

// Backend is a complete storage implementation.
type Backend interface {
	Store
	Reader
}

// MaxScale is the number of fractional digits the store keeps for money.
const MaxScale = 4

// MaxIntegerDigits is the number of integer digits a NUMERIC(20,4) column
// holds. Amounts and balances at or beyond 10^16 are rejected.
const MaxIntegerDigits = 16

const maxZeroScale = 64

// ValidateAmount rejects non-positive amounts, amounts the store would have
// to round and amounts too large to store.
func ValidateAmount(amount decimal.Decimal) error {
	if err := checkStorable("amount", amount); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return newError(KindInvalidAmount, "amount must be positive, got %s", amount.String())
	}
	return nil
}

// ValidateScale rejects values the store would have to round or could not
// hold. Sign is not checked; field names the value in the message.
func ValidateScale(field string, v decimal.Decimal) error {
	return checkStorable(field, v)
}

// checkStorable bounds v by its digit count and exponent before doing any
// arithmetic, so exponent-form input like 1e50000000 never gets expanded.
func checkStorable(field string, v decimal.Decimal) error {
	exp := int64(v.Exponent())
	if v.IsZero() {
		// Zero is storable, but comparing against 0e50000000 still
		// rescales by the exponent.
		if exp > MaxIntegerDigits || exp < -maxZeroScale {
			return newError(KindInvalidAmount, "%s has an unsupported exponent", field)
		}
		return nil
	}
	digits := int64(v.NumDigits())
	if digits+exp > MaxIntegerDigits {
		return newError(KindInvalidAmount, "%s is out of range, at most %d integer digits are allowed", field, MaxIntegerDigits)
	}
	if exp >= -MaxScale {
		return nil
	}
	// Only trailing zeros may sit beyond MaxScale, and there cannot be more
	// of them than the coefficient has digits.
	if -exp-MaxScale >= digits || !v.Equal(v.Round(MaxScale)) {
		return newError(KindInvalidAmount, "%s has more than %d fractional digits", field, MaxScale)
	}
	return nil
}

func notFound(what, id string) error {
	return newError(KindNotFound, "%s %s not found", what, id)
}
