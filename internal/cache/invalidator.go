package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fintrack/fintrack/internal/events"
	"github.com/fintrack/fintrack/internal/ledger"
)

// DefaultInvalidationTimeout bounds a single asynchronous eviction.
const DefaultInvalidationTimeout = 2 * time.Second

// Invalidator evicts the views a committed change made stale. It runs each
// eviction in the background, detached from the request, so a slow or
// unavailable Redis never delays or fails a mutation.
type Invalidator struct {
	cache   *Cache
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

var _ events.Publisher = (*Invalidator)(nil)

// NewInvalidator constructs an invalidator over c.
func NewInvalidator(c *Cache, timeout time.Duration, logger *slog.Logger) *Invalidator {
	if timeout <= 0 {
		timeout = DefaultInvalidationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{cache: c, timeout: timeout, logger: logger}
}

// Publish schedules eviction of the keys affected by change.
func (i *Invalidator) Publish(ctx context.Context, change events.Change) {
	if !i.cache.Enabled() {
		return
	}
	keys, patterns := Evictions(change)
	if len(keys) == 0 && len(patterns) == 0 {
		return
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.timeout)
		defer cancel()

		if err := i.cache.Delete(ctx, keys...); err != nil {
			i.warn(ctx, change, err)
		}
		for _, p := range patterns {
			if err := i.cache.DeleteMatching(ctx, p); err != nil {
				i.warn(ctx, change, err)
			}
		}
	}()
}

// Wait blocks until scheduled evictions finish or ctx is done.
func (i *Invalidator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Invalidator) warn(ctx context.Context, change events.Change, err error) {
	i.logger.WarnContext(ctx, "cache invalidation failed",
		slog.String("kind", string(ledger.KindCache)),
		slog.String("op", string(change.Op)),
		slog.String("owner_id", change.OwnerID),
		slog.Any("error", err),
	)
}

// Evictions lists the exact keys and the key patterns a change makes stale.
func Evictions(change events.Change) (keys []string, patterns []string) {
	owner := change.OwnerID
	if owner == "" {
		return nil, nil
	}

	switch change.Op {
	case events.OpTransactionCreated, events.OpTransactionUpdated, events.OpTransactionDeleted:
		keys = append(keys, WalletsKey(owner))
		for _, id := range change.WalletIDs {
			keys = append(keys, WalletKey(owner, id))
		}
		keys = append(keys, TransactionsKey(owner))
		if change.TransactionID != "" {
			keys = append(keys, TransactionKey(owner, change.TransactionID))
		}

	case events.OpWalletCreated, events.OpWalletUpdated:
		keys = append(keys, WalletsKey(owner))
		for _, id := range change.WalletIDs {
			keys = append(keys, WalletKey(owner, id))
		}

	case events.OpWalletDeleted:
		// Cascaded transactions and detached debts are not enumerated in
		// the change, so their single views are evicted by pattern.
		keys = append(keys, WalletsKey(owner))
		for _, id := range change.WalletIDs {
			keys = append(keys, WalletKey(owner, id))
		}
		keys = append(keys, TransactionsKey(owner), DebtsKey(owner))
		patterns = append(patterns, transactionPattern(owner), debtPattern(owner))

	case events.OpDebtCreated, events.OpDebtUpdated, events.OpDebtDeleted:
		keys = append(keys, DebtsKey(owner))
		if change.DebtID != "" {
			keys = append(keys, DebtKey(owner, change.DebtID))
		}
	}
	return keys, patterns
}
