package debt

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

// WalletLookup resolves a wallet for ownership checks.
type WalletLookup interface {
	GetWallet(ctx context.Context, ownerID, id string) (ledger.Wallet, error)
}

// Service manages debts. Debts are bookkeeping only and never touch the
// ledger.
type Service struct {
	repo      Repository
	wallets   WalletLookup
	cache     *cache.Cache
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a debt service.
func NewService(repo Repository, wallets WalletLookup, c *cache.Cache, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, wallets: wallets, cache: c, publisher: publisher, logger: logger, now: time.Now}
}

// Create records a debt.
func (s *Service) Create(ctx context.Context, in CreateInput) (Debt, error) {
	status, err := ParseStatus(in.Status)
	if err != nil {
		return Debt{}, err
	}
	rate := decimal.Zero
	if in.InterestRate != nil {
		rate = *in.InterestRate
	}
	if err := validate(in.Amount, rate); err != nil {
		return Debt{}, err
	}
	walletID, err := s.checkWallet(ctx, in.OwnerID, in.WalletID)
	if err != nil {
		return Debt{}, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	d := Debt{
		ID:           uuid.NewString(),
		OwnerID:      in.OwnerID,
		WalletID:     walletID,
		CreditorName: strings.TrimSpace(in.CreditorName),
		Amount:       in.Amount,
		InterestRate: rate,
		DueDate:      utc(in.DueDate),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return Debt{}, err
	}

	s.logger.InfoContext(ctx, "debt created", "owner_id", d.OwnerID, "debt_id", d.ID)
	s.publisher.Publish(ctx, events.Change{Op: events.OpDebtCreated, OwnerID: d.OwnerID, DebtID: d.ID})
	return d, nil
}

// Get returns one debt.
func (s *Service) Get(ctx context.Context, ownerID, id string) (Debt, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.DebtKey(ownerID, id), func(ctx context.Context) (Debt, error) {
		return s.repo.Get(ctx, ownerID, id)
	})
}

// List returns the owner's debts, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]Debt, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.DebtsKey(ownerID), func(ctx context.Context) ([]Debt, error) {
		return s.repo.List(ctx, ownerID)
	})
}

// Update applies a partial change.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Debt, error) {
	d, err := s.repo.Get(ctx, in.OwnerID, in.DebtID)
	if err != nil {
		return Debt{}, err
	}

	if in.CreditorName != nil {
		d.CreditorName = strings.TrimSpace(*in.CreditorName)
	}
	if in.Amount != nil {
		d.Amount = *in.Amount
	}
	if in.InterestRate != nil {
		d.InterestRate = *in.InterestRate
	}
	if err := validate(d.Amount, d.InterestRate); err != nil {
		return Debt{}, err
	}
	if in.DueDate != nil {
		d.DueDate = utc(in.DueDate)
	}
	if in.Status != nil {
		status, err := ParseStatus(*in.Status)
		if err != nil {
			return Debt{}, err
		}
		d.Status = status
	}
	if in.WalletID != nil {
		if *in.WalletID == "" {
			d.WalletID = nil
		} else if d.WalletID, err = s.checkWallet(ctx, in.OwnerID, in.WalletID); err != nil {
			return Debt{}, err
		}
	}
	d.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)

	if err := s.repo.Update(ctx, d); err != nil {
		return Debt{}, err
	}
	s.publisher.Publish(ctx, events.Change{Op: events.OpDebtUpdated, OwnerID: d.OwnerID, DebtID: d.ID})
	return d, nil
}

// Delete removes a debt.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "debt deleted", "owner_id", ownerID, "debt_id", id)
	s.publisher.Publish(ctx, events.Change{Op: events.OpDebtDeleted, OwnerID: ownerID, DebtID: id})
	return nil
}

func (s *Service) checkWallet(ctx context.Context, ownerID string, walletID *string) (*string, error) {
	if walletID == nil || *walletID == "" {
		return nil, nil
	}
	w, err := s.wallets.GetWallet(ctx, ownerID, *walletID)
	if err != nil {
		return nil, err
	}
	return &w.ID, nil
}

func validate(amount, rate decimal.Decimal) error {
	if err := ledger.ValidateAmount(amount); err != nil {
		return err
	}
	if err := ledger.ValidateScale("interest rate", rate); err != nil {
		return err
	}
	if rate.IsNegative() {
		return ledger.Errorf(ledger.KindInvalidAmount, "interest rate %s cannot be negative", rate.String())
	}
	return nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Microsecond)
	return &v
}
