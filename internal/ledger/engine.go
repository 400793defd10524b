package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/events"
)

// DefaultMutationTimeout bounds a whole Create, Update or Delete.
const DefaultMutationTimeout = 10 * time.Second

// Engine is the only writer of wallet balances. Every transaction
// mutation goes through it so that a wallet's balance always equals its
// opening balance plus the signed contributions of the transactions that
// currently reference it.
type Engine struct {
	store     Store
	publisher events.Publisher
	logger    *slog.Logger
	timeout   time.Duration

	now   func() time.Time
	newID func() string
}

// NewEngine builds an engine over store. A nil publisher or logger is
// allowed; a non-positive timeout selects DefaultMutationTimeout.
func NewEngine(store Store, publisher events.Publisher, logger *slog.Logger, timeout time.Duration) *Engine {
	if publisher == nil {
		publisher = events.Nop
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultMutationTimeout
	}
	return &Engine{
		store:     store,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
		now:       func() time.Time { return time.Now() },
		newID:     uuid.NewString,
	}
}

// CreateInput describes a new transaction.
type CreateInput struct {
	OwnerID  string
	WalletID string
	Amount   decimal.Decimal
	Kind     TxKind
	Category string
	Note     string
}

// UpdateInput describes a partial change to a transaction. Nil fields are
// left as they are. The kind of a transaction cannot be changed.
type UpdateInput struct {
	OwnerID       string
	TransactionID string
	WalletID      *string
	Amount        *decimal.Decimal
	Category      *string
	Note          *string
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

// Create records a transaction against a wallet and applies its signed
// delta to the wallet balance in the same unit.
func (e *Engine) Create(ctx context.Context, in CreateInput) (Transaction, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return Transaction{}, err
	}
	if in.Kind != Credit && in.Kind != Debit {
		return Transaction{}, newError(KindInvalidKind, "unknown transaction kind %q", in.Kind)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var created Transaction
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		w, err := tx.LockWallet(ctx, in.OwnerID, in.WalletID)
		if err != nil {
			return err
		}
		delta, err := SignedDelta(w.Kind(), in.Kind, in.Amount)
		if err != nil {
			return err
		}
		next, err := evaluateWallet(w, w.Balance, delta)
		if err != nil {
			return err
		}

		now := e.timestamp()
		t := Transaction{
			ID:        e.newID(),
			OwnerID:   in.OwnerID,
			WalletID:  w.ID,
			Amount:    in.Amount,
			Kind:      in.Kind,
			Category:  in.Category,
			Note:      in.Note,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		w.Balance = next
		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		e.rejected(ctx, "create", in.OwnerID, in.WalletID, "", err)
		return Transaction{}, err
	}

	e.logger.InfoContext(ctx, "transaction created",
		"owner_id", created.OwnerID, "wallet_id", created.WalletID, "transaction_id", created.ID,
		"kind", string(created.Kind), "amount", created.Amount.String())
	e.publish(ctx, events.Change{
		Op:            events.OpTransactionCreated,
		OwnerID:       created.OwnerID,
		WalletIDs:     []string{created.WalletID},
		TransactionID: created.ID,
	})
	return created, nil
}

// Update changes a transaction's wallet, amount or metadata. A wallet or
// amount change reverses the old contribution on the source wallet and
// applies the new one on the target wallet; policy is checked on the
// target before anything is written.
func (e *Engine) Update(ctx context.Context, in UpdateInput) (Transaction, error) {
	if in.Amount != nil {
		if err := ValidateAmount(*in.Amount); err != nil {
			return Transaction{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		updated Transaction
		touched []string
	)
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		cur, err := tx.LockTransaction(ctx, in.OwnerID, in.TransactionID)
		if err != nil {
			return err
		}

		targetID := cur.WalletID
		if in.WalletID != nil && *in.WalletID != "" {
			targetID = *in.WalletID
		}
		amount := cur.Amount
		if in.Amount != nil {
			amount = *in.Amount
		}

		wallets := make(map[string]Wallet, 2)
		for _, id := range lockOrder(cur.WalletID, targetID) {
			w, err := tx.LockWallet(ctx, in.OwnerID, id)
			if err != nil {
				return err
			}
			wallets[id] = w
		}

		now := e.timestamp()
		next := cur
		next.WalletID = targetID
		next.Amount = amount
		if in.Category != nil {
			next.Category = *in.Category
		}
		if in.Note != nil {
			next.Note = *in.Note
		}
		next.UpdatedAt = now

		if targetID != cur.WalletID || !amount.Equal(cur.Amount) {
			source, target := wallets[cur.WalletID], wallets[targetID]

			applied, err := SignedDelta(source.Kind(), cur.Kind, cur.Amount)
			if err != nil {
				return err
			}
			reversed := source.Balance.Sub(applied)

			forward, err := SignedDelta(target.Kind(), cur.Kind, amount)
			if err != nil {
				return err
			}
			base := target.Balance
			if targetID == cur.WalletID {
				base = reversed
			}
			final, err := evaluateWallet(target, base, forward)
			if err != nil {
				return err
			}

			if targetID != cur.WalletID {
				if err := checkStorable("source balance", reversed); err != nil {
					return err
				}
				source.Balance = reversed
				source.UpdatedAt = now
				if err := tx.UpdateWallet(ctx, source); err != nil {
					return err
				}
			}
			target.Balance = final
			target.UpdatedAt = now
			if err := tx.UpdateWallet(ctx, target); err != nil {
				return err
			}
			touched = lockOrder(cur.WalletID, targetID)
		}

		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		target := ""
		if in.WalletID != nil {
			target = *in.WalletID
		}
		e.rejected(ctx, "update", in.OwnerID, target, in.TransactionID, err)
		return Transaction{}, err
	}

	e.logger.InfoContext(ctx, "transaction updated",
		"owner_id", updated.OwnerID, "wallet_id", updated.WalletID, "transaction_id", updated.ID,
		"amount", updated.Amount.String(), "wallets_touched", len(touched))
	e.publish(ctx, events.Change{
		Op:            events.OpTransactionUpdated,
		OwnerID:       updated.OwnerID,
		WalletIDs:     touched,
		TransactionID: updated.ID,
	})
	return updated, nil
}

// Delete removes a transaction and reverses its contribution. The
// reversal is applied without a policy check; only a balance the store
// could not hold is refused.
func (e *Engine) Delete(ctx context.Context, ownerID, transactionID string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var walletID string
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		cur, err := tx.LockTransaction(ctx, ownerID, transactionID)
		if err != nil {
			return err
		}
		w, err := tx.LockWallet(ctx, ownerID, cur.WalletID)
		if err != nil {
			return err
		}
		applied, err := SignedDelta(w.Kind(), cur.Kind, cur.Amount)
		if err != nil {
			return err
		}

		reversed := w.Balance.Sub(applied)
		if err := checkStorable("resulting balance", reversed); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, ownerID, cur.ID); err != nil {
			return err
		}
		w.Balance = reversed
		w.UpdatedAt = e.timestamp()
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		walletID = w.ID
		return nil
	})
	if err != nil {
		e.rejected(ctx, "delete", ownerID, "", transactionID, err)
		return err
	}

	e.logger.InfoContext(ctx, "transaction deleted",
		"owner_id", ownerID, "wallet_id", walletID, "transaction_id", transactionID)
	e.publish(ctx, events.Change{
		Op:            events.OpTransactionDeleted,
		OwnerID:       ownerID,
		WalletIDs:     []string{walletID},
		TransactionID: transactionID,
	})
	return nil
}

func (e *Engine) publish(ctx context.Context, change events.Change) {
	e.publisher.Publish(context.WithoutCancel(ctx), change)
}

func (e *Engine) rejected(ctx context.Context, op, ownerID, walletID, transactionID string, err error) {
	level := slog.LevelDebug
	if !IsClientError(err) {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "transaction "+op+" rejected",
		"owner_id", ownerID, "wallet_id", walletID, "transaction_id", transactionID,
		"kind", string(KindOf(err)), "error", err)
}
