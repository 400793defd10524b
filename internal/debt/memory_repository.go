package debt

import (
	"context"
	"sort"
	"sync"

	"github.com/fintrack/fintrack/internal/events"
	"github.com/fintrack/fintrack/internal/ledger"
)

// MemoryRepository keeps debts in memory. It also listens for wallet
// deletions so that it can null wallet links the way the database foreign
// key does.
type MemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Debt
}

// NewMemoryRepository constructs an in-memory repository for tests and
// database-less development.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{storage: make(map[string]Debt)}
}

func (r *MemoryRepository) Create(_ context.Context, d Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[d.ID]; exists {
		return ledger.Errorf(ledger.KindConflict, "debt %s already exists", d.ID)
	}
	r.storage[d.ID] = d
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, ownerID, id string) (Debt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.storage[id]
	if !ok || d.OwnerID != ownerID {
		return Debt{}, ledger.Errorf(ledger.KindNotFound, "debt %s not found", id)
	}
	return d, nil
}

func (r *MemoryRepository) List(_ context.Context, ownerID string) ([]Debt, error) {
	r.mu.RLock()
	out := make([]Debt, 0)
	for _, d := range r.storage {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, d Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.storage[d.ID]
	if !ok || cur.OwnerID != d.OwnerID {
		return ledger.Errorf(ledger.KindNotFound, "debt %s not found", d.ID)
	}
	r.storage[d.ID] = d
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.storage[id]
	if !ok || d.OwnerID != ownerID {
		return ledger.Errorf(ledger.KindNotFound, "debt %s not found", id)
	}
	delete(r.storage, id)
	return nil
}

// Publish detaches debts from wallets that were deleted.
func (r *MemoryRepository) Publish(_ context.Context, change events.Change) {
	if change.Op != events.OpWalletDeleted {
		return
	}
	gone := make(map[string]struct{}, len(change.WalletIDs))
	for _, id := range change.WalletIDs {
		gone[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.storage {
		if d.WalletID == nil || d.OwnerID != change.OwnerID {
			continue
		}
		if _, ok := gone[*d.WalletID]; ok {
			d.WalletID = nil
			r.storage[id] = d
		}
	}
}
