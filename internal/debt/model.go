package debt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/ledger"
)

// Status is the lifecycle state of a debt.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status label. Empty means active.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusActive, nil
	case StatusActive, StatusPaid, StatusCancelled:
		return st, nil
	}
	return "", ledger.Errorf(ledger.KindInvalidKind, "unknown debt status %q", s)
}

// Debt is money the owner owes to a creditor. It may name a wallet for
// grouping but never moves any balance.
type Debt struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"user_id"`
	WalletID     *string         `json:"wallet_id"`
	CreditorName string          `json:"creditor_name"`
	Amount       decimal.Decimal `json:"amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	DueDate      *time.Time      `json:"due_date"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CreateInput captures data required to record a debt.
type CreateInput struct {
	OwnerID      string
	WalletID     *string
	CreditorName string
	Amount       decimal.Decimal
	InterestRate *decimal.Decimal
	DueDate      *time.Time
	Status       string
}

// UpdateInput is a partial update. An empty WalletID detaches the debt
// from its wallet.
type UpdateInput struct {
	OwnerID      string
	DebtID       string
	WalletID     *string
	CreditorName *string
	Amount       *decimal.Decimal
	InterestRate *decimal.Decimal
	DueDate      *time.Time
	Status       *string
}
