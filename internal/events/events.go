package events

import (
	"context"
	"log/slog"
)

// Op names a committed change.
type Op string

const (
	OpWalletCreated      Op = "wallet_created"
	OpWalletUpdated      Op = "wallet_updated"
	OpWalletDeleted      Op = "wallet_deleted"
	OpTransactionCreated Op = "transaction_created"
	OpTransactionUpdated Op = "transaction_updated"
	OpTransactionDeleted Op = "transaction_deleted"
	OpDebtCreated        Op = "debt_created"
	OpDebtUpdated        Op = "debt_updated"
	OpDebtDeleted        Op = "debt_deleted"
)

// Change describes a mutation after it has been committed.
type Change struct {
	Op            Op
	OwnerID       string
	WalletIDs     []string
	TransactionID string
	DebtID        string
}

// Publisher receives committed changes. Implementations must not block the
// caller for long and must not report failures back: the change has
// already happened.
type Publisher interface {
	Publish(ctx context.Context, change Change)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, change Change)

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, change Change) { f(ctx, change) }

// Multi fans a change out to every publisher in order. Nil entries are skipped.
func Multi(publishers ...Publisher) Publisher {
	list := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			list = append(list, p)
		}
	}
	return multi(list)
}

type multi []Publisher

func (m multi) Publish(ctx context.Context, change Change) {
	for _, p := range m {
		p.Publish(ctx, change)
	}
}

// Nop discards changes.
var Nop Publisher = PublisherFunc(func(context.Context, Change) {})

// LogPublisher writes each change to the structured logger at debug level.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher constructs a logging publisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish writes the change to the logger.
func (p *LogPublisher) Publish(ctx context.Context, change Change) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.DebugContext(ctx, "change committed",
		"op", string(change.Op),
		"owner_id", change.OwnerID,
		"wallet_ids", change.WalletIDs,
		"transaction_id", change.TransactionID,
		"debt_id", change.DebtID,
	)
}
