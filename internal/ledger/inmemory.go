package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-memory Backend. It follows the same
// locking rules as the PostgreSQL store: row locks are exclusive per row,
// waits are bounded by the lock timeout, and writes become visible only on
// commit. Useful for tests and for running without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]Wallet
	transactions map[string]Transaction

	locksMu     sync.Mutex
	locks       map[string]*rowLock
	lockTimeout time.Duration
}

// rowLock is a one-slot semaphore. refs counts holders and waiters so the
// entry can be dropped once nobody uses it.
type rowLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryStore creates an empty store. A non-positive lockTimeout selects
// DefaultLockTimeout.
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &MemoryStore{
		wallets:      make(map[string]Wallet),
		transactions: make(map[string]Transaction),
		locks:        make(map[string]*rowLock),
		lockTimeout:  lockTimeout,
	}
}

func (s *MemoryStore) ref(key string) *rowLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	return l
}

func (s *MemoryStore) unref(key string, l *rowLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

func (s *MemoryStore) acquire(ctx context.Context, key string) error {
	l := s.ref(key)
	select {
	case l.ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-timer.C:
		s.unref(key, l)
		return newError(KindConflict, "timed out waiting for lock on %s, retry", key)
	case <-ctx.Done():
		s.unref(key, l)
		return contextError(ctx.Err(), "lock "+key)
	}
}

func (s *MemoryStore) release(key string) {
	s.locksMu.Lock()
	l := s.locks[key]
	s.locksMu.Unlock()
	<-l.ch
	s.unref(key, l)
}

// WithinTx runs fn as one unit. Staged writes are applied only if fn
// succeeds and ctx is still live.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return contextError(err, "begin")
	}

	tx := &memoryTx{
		store:          s,
		held:           make(map[string]struct{}),
		wallets:        make(map[string]Wallet),
		deletedWallets: make(map[string]struct{}),
		transactions:   make(map[string]Transaction),
		deletedTxs:     make(map[string]struct{}),
	}
	defer tx.releaseAll()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return contextError(err, "commit")
	}
	tx.commit()
	return nil
}

func walletKey(id string) string      { return "wallet " + id }
func transactionKey(id string) string { return "transaction " + id }

type memoryTx struct {
	store *MemoryStore
	held  map[string]struct{}
	order []string

	wallets        map[string]Wallet
	deletedWallets map[string]struct{}
	transactions   map[string]Transaction
	deletedTxs     map[string]struct{}
}

func (t *memoryTx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := t.store.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	return nil
}

func (t *memoryTx) holds(key string) error {
	if _, ok := t.held[key]; !ok {
		return newError(KindPersistence, "%s written without holding its lock", key)
	}
	return nil
}

func (t *memoryTx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.release(t.order[i])
	}
	t.order = nil
	t.held = nil
}

func (t *memoryTx) wallet(id string) (Wallet, bool) {
	if _, gone := t.deletedWallets[id]; gone {
		return Wallet{}, false
	}
	if w, ok := t.wallets[id]; ok {
		return w, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	w, ok := t.store.wallets[id]
	return w, ok
}

func (t *memoryTx) transaction(id string) (Transaction, bool) {
	if _, gone := t.deletedTxs[id]; gone {
		return Transaction{}, false
	}
	if tr, ok := t.transactions[id]; ok {
		return tr, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	tr, ok := t.store.transactions[id]
	if ok {
		if _, gone := t.deletedWallets[tr.WalletID]; gone {
			return Transaction{}, false
		}
	}
	return tr, ok
}

func (t *memoryTx) LockWallet(ctx context.Context, ownerID, id string) (Wallet, error) {
	if id == "" {
		return Wallet{}, notFound("wallet", id)
	}
	if err := t.lock(ctx, walletKey(id)); err != nil {
		return Wallet{}, err
	}
	w, ok := t.wallet(id)
	if !ok || w.OwnerID != ownerID {
		return Wallet{}, notFound("wallet", id)
	}
	return w, nil
}

func (t *memoryTx) LockTransaction(ctx context.Context, ownerID, id string) (Transaction, error) {
	if id == "" {
		return Transaction{}, notFound("transaction", id)
	}
	if err := t.lock(ctx, transactionKey(id)); err != nil {
		return Transaction{}, err
	}
	tr, ok := t.transaction(id)
	if !ok || tr.OwnerID != ownerID {
		return Transaction{}, notFound("transaction", id)
	}
	return tr, nil
}

func (t *memoryTx) InsertWallet(ctx context.Context, w Wallet) error {
	if err := t.lock(ctx, walletKey(w.ID)); err != nil {
		return err
	}
	if _, exists := t.wallet(w.ID); exists {
		return newError(KindConflict, "wallet %s already exists", w.ID)
	}
	delete(t.deletedWallets, w.ID)
	t.wallets[w.ID] = w
	return nil
}

func (t *memoryTx) UpdateWallet(_ context.Context, w Wallet) error {
	if err := t.holds(walletKey(w.ID)); err != nil {
		return err
	}
	if _, ok := t.wallet(w.ID); !ok {
		return notFound("wallet", w.ID)
	}
	t.wallets[w.ID] = w
	return nil
}

func (t *memoryTx) DeleteWallet(_ context.Context, ownerID, id string) error {
	if err := t.holds(walletKey(id)); err != nil {
		return err
	}
	w, ok := t.wallet(id)
	if !ok || w.OwnerID != ownerID {
		return notFound("wallet", id)
	}
	delete(t.wallets, id)
	t.deletedWallets[id] = struct{}{}
	for txID, tr := range t.transactions {
		if tr.WalletID == id {
			delete(t.transactions, txID)
		}
	}
	return nil
}

func (t *memoryTx) InsertTransaction(ctx context.Context, tr Transaction) error {
	if _, ok := t.wallet(tr.WalletID); !ok {
		return notFound("wallet", tr.WalletID)
	}
	if err := t.lock(ctx, transactionKey(tr.ID)); err != nil {
		return err
	}
	if _, exists := t.transaction(tr.ID); exists {
		return newError(KindConflict, "transaction %s already exists", tr.ID)
	}
	delete(t.deletedTxs, tr.ID)
	t.transactions[tr.ID] = tr
	return nil
}

func (t *memoryTx) UpdateTransaction(_ context.Context, tr Transaction) error {
	if err := t.holds(transactionKey(tr.ID)); err != nil {
		return err
	}
	if _, ok := t.transaction(tr.ID); !ok {
		return notFound("transaction", tr.ID)
	}
	if _, ok := t.wallet(tr.WalletID); !ok {
		return notFound("wallet", tr.WalletID)
	}
	t.transactions[tr.ID] = tr
	return nil
}

func (t *memoryTx) DeleteTransaction(_ context.Context, ownerID, id string) error {
	if err := t.holds(transactionKey(id)); err != nil {
		return err
	}
	tr, ok := t.transaction(id)
	if !ok || tr.OwnerID != ownerID {
		return notFound("transaction", id)
	}
	delete(t.transactions, id)
	t.deletedTxs[id] = struct{}{}
	return nil
}

func (t *memoryTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range t.wallets {
		s.wallets[id] = w
	}
	for id, tr := range t.transactions {
		s.transactions[id] = tr
	}
	for id := range t.deletedTxs {
		delete(s.transactions, id)
	}
	for id := range t.deletedWallets {
		delete(s.wallets, id)
		for txID, tr := range s.transactions {
			if tr.WalletID == id {
				delete(s.transactions, txID)
			}
		}
	}
}

// GetWallet returns the committed wallet.
func (s *MemoryStore) GetWallet(_ context.Context, ownerID, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok || w.OwnerID != ownerID {
		return Wallet{}, notFound("wallet", id)
	}
	return w, nil
}

// ListWallets returns the owner's wallets, newest first.
func (s *MemoryStore) ListWallets(_ context.Context, ownerID string) ([]Wallet, error) {
	s.mu.RLock()
	out := make([]Wallet, 0)
	for _, w := range s.wallets {
		if w.OwnerID == ownerID {
			out = append(out, w)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// GetTransaction returns the committed transaction.
func (s *MemoryStore) GetTransaction(_ context.Context, ownerID, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.transactions[id]
	if !ok || tr.OwnerID != ownerID {
		return Transaction{}, notFound("transaction", id)
	}
	return tr, nil
}

// ListTransactions returns the owner's transactions, newest first.
func (s *MemoryStore) ListTransactions(_ context.Context, ownerID string, filter TransactionFilter) ([]Transaction, error) {
	s.mu.RLock()
	out := make([]Transaction, 0)
	for _, tr := range s.transactions {
		if tr.OwnerID != ownerID {
			continue
		}
		if filter.WalletID != "" && tr.WalletID != filter.WalletID {
			continue
		}
		out = append(out, tr)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
