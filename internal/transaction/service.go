package transaction

import (
	"context"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/ledger"
)

// Service routes transaction writes through the ledger engine and serves
// reads from the cache when possible.
type Service struct {
	engine *ledger.Engine
	reader ledger.Reader
	cache  *cache.Cache
}

// NewService constructs a transaction service.
func NewService(engine *ledger.Engine, reader ledger.Reader, c *cache.Cache) *Service {
	return &Service{engine: engine, reader: reader, cache: c}
}

func (s *Service) Create(ctx context.Context, in ledger.CreateInput) (ledger.Transaction, error) {
	return s.engine.Create(ctx, in)
}

func (s *Service) Update(ctx context.Context, in ledger.UpdateInput) (ledger.Transaction, error) {
	return s.engine.Update(ctx, in)
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	return s.engine.Delete(ctx, ownerID, id)
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, ownerID, id string) (ledger.Transaction, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.TransactionKey(ownerID, id), func(ctx context.Context) (ledger.Transaction, error) {
		return s.reader.GetTransaction(ctx, ownerID, id)
	})
}

// List returns the owner's transactions, newest first. Only the unfiltered
// list is cached.
func (s *Service) List(ctx context.Context, ownerID string, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	if filter.WalletID != "" {
		return s.reader.ListTransactions(ctx, ownerID, filter)
	}
	return cache.GetOrLoad(ctx, s.cache, cache.TransactionsKey(ownerID), func(ctx context.Context) ([]ledger.Transaction, error) {
		return s.reader.ListTransactions(ctx, ownerID, filter)
	})
}
