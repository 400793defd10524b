package wallet

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/events"
	"github.com/fintrack/fintrack/internal/ledger"
)

// Service manages wallet lifecycle and metadata. Balances are owned by the
// ledger engine; this service only sets the opening balance.
type Service struct {
	backend   ledger.Backend
	cache     *cache.Cache
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds a wallet service instance.
func NewService(backend ledger.Backend, c *cache.Cache, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, cache: c, publisher: publisher, logger: logger, now: time.Now}
}

// Create provisions a wallet with its opening balance.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	wt, err := ledger.ParseWalletType(input.Type)
	if err != nil {
		return ledger.Wallet{}, err
	}
	if err := ledger.ValidateScale("initial balance", input.InitialBalance); err != nil {
		return ledger.Wallet{}, err
	}

	limit := decimal.Zero
	switch wt.Kind() {
	case ledger.CreditLine:
		if input.CreditLimit != nil {
			limit = *input.CreditLimit
		}
		if err := validateLimit(limit); err != nil {
			return ledger.Wallet{}, err
		}
		if input.InitialBalance.IsNegative() || input.InitialBalance.GreaterThan(limit) {
			return ledger.Wallet{}, ledger.Errorf(ledger.KindInvalidAmount,
				"initial amount owed %s must be between 0 and the credit limit %s",
				input.InitialBalance.StringFixed(2), limit.StringFixed(2))
		}
	default:
		if input.InitialBalance.IsNegative() {
			return ledger.Wallet{}, ledger.Errorf(ledger.KindInvalidAmount,
				"initial balance %s cannot be negative", input.InitialBalance.StringFixed(2))
		}
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	w := ledger.Wallet{
		ID:          uuid.NewString(),
		OwnerID:     input.OwnerID,
		Name:        strings.TrimSpace(input.Name),
		Type:        wt,
		Balance:     input.InitialBalance,
		CreditLimit: limit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.backend.WithinTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertWallet(ctx, w)
	}); err != nil {
		return ledger.Wallet{}, err
	}

	s.logger.InfoContext(ctx, "wallet created", "owner_id", w.OwnerID, "wallet_id", w.ID, "wallet_type", string(w.Type))
	s.publisher.Publish(ctx, events.Change{Op: events.OpWalletCreated, OwnerID: w.OwnerID, WalletIDs: []string{w.ID}})
	return w, nil
}

// Get retrieves a wallet.
func (s *Service) Get(ctx context.Context, ownerID, id string) (ledger.Wallet, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.WalletKey(ownerID, id), func(ctx context.Context) (ledger.Wallet, error) {
		return s.backend.GetWallet(ctx, ownerID, id)
	})
}

// List returns the owner's wallets, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]ledger.Wallet, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.WalletsKey(ownerID), func(ctx context.Context) ([]ledger.Wallet, error) {
		return s.backend.ListWallets(ctx, ownerID)
	})
}

// Update renames a wallet or changes its credit limit under the wallet's
// row lock, so a limit change cannot race a spend.
func (s *Service) Update(ctx context.Context, input UpdateInput) (ledger.Wallet, error) {
	var updated ledger.Wallet
	err := s.backend.WithinTx(ctx, func(tx ledger.Tx) error {
		w, err := tx.LockWallet(ctx, input.OwnerID, input.WalletID)
		if err != nil {
			return err
		}
		if input.Name != nil {
			w.Name = strings.TrimSpace(*input.Name)
		}
		if input.CreditLimit != nil {
			limit := *input.CreditLimit
			if w.Kind() != ledger.CreditLine {
				return ledger.Errorf(ledger.KindInvalidKind, "wallet %s is not a credit line", w.ID)
			}
			if err := validateLimit(limit); err != nil {
				return err
			}
			if w.Balance.GreaterThan(limit) {
				return &ledger.PolicyError{
					Kind:     ledger.KindInsufficientCredit,
					WalletID: w.ID,
					Balance:  w.Balance,
					Delta:    decimal.Zero,
					Limit:    limit,
				}
			}
			w.CreditLimit = limit
		}
		w.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		return ledger.Wallet{}, err
	}

	s.publisher.Publish(ctx, events.Change{Op: events.OpWalletUpdated, OwnerID: updated.OwnerID, WalletIDs: []string{updated.ID}})
	return updated, nil
}

// Delete removes a wallet together with its transactions.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	err := s.backend.WithinTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.LockWallet(ctx, ownerID, id); err != nil {
			return err
		}
		return tx.DeleteWallet(ctx, ownerID, id)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "wallet deleted", "owner_id", ownerID, "wallet_id", id)
	s.publisher.Publish(ctx, events.Change{Op: events.OpWalletDeleted, OwnerID: ownerID, WalletIDs: []string{id}})
	return nil
}

func validateLimit(limit decimal.Decimal) error {
	if err := ledger.ValidateScale("credit limit", limit); err != nil {
		return err
	}
	if limit.IsNegative() {
		return ledger.Errorf(ledger.KindInvalidAmount, "credit limit %s cannot be negative", limit.StringFixed(2))
	}
	return nil
}
