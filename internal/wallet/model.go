package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/ledger"
)

// View is the read model of a wallet returned to callers.
type View struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"user_id"`
	Name        string          `json:"name"`
	Type        string          `json:"wallet_type"`
	Kind        string          `json:"kind"`
	Balance     decimal.Decimal `json:"balance"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Available   decimal.Decimal `json:"available_balance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewView builds the read model for w.
func NewView(w ledger.Wallet) View {
	return View{
		ID:          w.ID,
		OwnerID:     w.OwnerID,
		Name:        w.Name,
		Type:        string(w.Type),
		Kind:        string(w.Kind()),
		Balance:     w.Balance,
		CreditLimit: w.CreditLimit,
		Available:   w.Available(),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID        string
	Name           string
	Type           string
	InitialBalance decimal.Decimal
	CreditLimit    *decimal.Decimal
}

// UpdateInput carries the editable wallet metadata. The balance is not
// editable; it only moves through transactions.
type UpdateInput struct {
	OwnerID     string
	WalletID    string
	Name        *string
	CreditLimit *decimal.Decimal
}
