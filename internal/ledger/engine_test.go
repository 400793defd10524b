package ledger

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/internal/events"
	"github.com/fintrack/fintrack/internal/logging"
)

const owner = "owner-1"

type recordingPublisher struct {
	mu      sync.Mutex
	changes []events.Change
}

func (p *recordingPublisher) Publish(_ context.Context, c events.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *recordingPublisher) all() []events.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Change(nil), p.changes...)
}

func newTestEngine(t *testing.T) (*Engine, *MemoryStore, *recordingPublisher) {
	t.Helper()
	store := NewMemoryStore(200 * time.Millisecond)
	pub := &recordingPublisher{}
	return NewEngine(store, pub, logging.Discard(), time.Second), store, pub
}

func seed(s *MemoryStore, id string, wt WalletType, balance, limit string) Wallet {
	w := Wallet{
		ID:          id,
		OwnerID:     owner,
		Name:        id,
		Type:        wt,
		Balance:     dec(balance),
		CreditLimit: dec(limit),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	SeedWallet(s, w)
	return w
}

func balanceOf(t *testing.T, s *MemoryStore, id string) decimal.Decimal {
	t.Helper()
	w, err := s.GetWallet(context.Background(), owner, id)
	require.NoError(t, err)
	return w.Balance
}

type snapshot struct {
	wallets      map[string]Wallet
	transactions map[string]Transaction
}

func takeSnapshot(s *MemoryStore) snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{wallets: map[string]Wallet{}, transactions: map[string]Transaction{}}
	for k, v := range s.wallets {
		snap.wallets[k] = v
	}
	for k, v := range s.transactions {
		snap.transactions[k] = v
	}
	return snap
}

// checkLedger verifies that every wallet's balance equals its opening
// balance plus the signed contributions of its current transactions.
func checkLedger(t *testing.T, s *MemoryStore, opening map[string]decimal.Decimal) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, open := range opening {
		w, ok := s.wallets[id]
		require.True(t, ok, "wallet %s missing", id)
		want := open
		for _, tr := range s.transactions {
			if tr.WalletID != id {
				continue
			}
			d, err := SignedDelta(w.Kind(), tr.Kind, tr.Amount)
			require.NoError(t, err)
			want = want.Add(d)
		}
		require.True(t, w.Balance.Equal(want), "wallet %s: balance %s, history says %s", id, w.Balance, want)
	}
}

func TestCreateAppliesDelta(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	seed(store, "cash", WalletCash, "100.00", "0")
	seed(store, "card", WalletCreditCard, "0", "500.00")
	ctx := context.Background()

	tr, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("25.50"), Kind: Debit, Category: "food"})
	require.NoError(t, err)
	assert.Equal(t, "cash", tr.WalletID)
	assert.Equal(t, "food", tr.Category)
	assert.NotEmpty(t, tr.ID)
	assert.True(t, balanceOf(t, store, "cash").Equal(dec("74.50")))

	_, err = eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "card", Amount: dec("40"), Kind: Debit})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, "card").Equal(dec("40")))

	changes := pub.all()
	require.Len(t, changes, 2)
	assert.Equal(t, events.OpTransactionCreated, changes[0].Op)
	assert.Equal(t, []string{"cash"}, changes[0].WalletIDs)
	assert.Equal(t, tr.ID, changes[0].TransactionID)
}

func TestCreateValidation(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	seed(store, "cash", WalletCash, "10", "0")
	ctx := context.Background()

	_, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: decimal.Zero, Kind: Debit})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("1"), Kind: "transfer"})
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "missing", Amount: dec("1"), Kind: Debit})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = eng.Create(ctx, CreateInput{OwnerID: "someone-else", WalletID: "cash", Amount: dec("1"), Kind: Debit})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, pub.all())
}

func TestAssetBoundary(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "cash", WalletCash, "50.00", "0")
	ctx := context.Background()

	_, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("50.01"), Kind: Debit})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, balanceOf(t, store, "cash").Equal(dec("50.00")))

	_, err = eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("50.00"), Kind: Debit})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, "cash").IsZero())
}

func TestCreditLineBoundary(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "card", WalletCreditCard, "90.00", "100.00")
	ctx := context.Background()

	_, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "card", Amount: dec("10.01"), Kind: Debit})
	require.ErrorIs(t, err, ErrInsufficientCredit)
	assert.True(t, balanceOf(t, store, "card").Equal(dec("90.00")))

	_, err = eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "card", Amount: dec("10.00"), Kind: Debit})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, "card").Equal(dec("100.00")))

	_, err = eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "card", Amount: dec("200.00"), Kind: Credit})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, "card").Equal(dec("-100.00")))
}

func TestCreateThenDeleteRestoresBalance(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	seed(store, "cash", WalletCash, "33.33", "0")
	seed(store, "card", WalletCreditCard, "12.34", "50")
	ctx := context.Background()

	for _, id := range []string{"cash", "card"} {
		for _, kind := range []TxKind{Credit, Debit} {
			before := balanceOf(t, store, id)
			tr, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: id, Amount: dec("7.77"), Kind: kind})
			require.NoError(t, err)
			require.NoError(t, eng.Delete(ctx, owner, tr.ID))
			assert.True(t, balanceOf(t, store, id).Equal(before), "%s/%s", id, kind)
		}
	}

	last := pub.all()[len(pub.all())-1]
	assert.Equal(t, events.OpTransactionDeleted, last.Op)
	assert.Equal(t, []string{"card"}, last.WalletIDs)
}

func TestDeleteReversesWithoutPolicy(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "cash", WalletCash, "5", "0")
	SeedTransaction(store, Transaction{ID: "t1", OwnerID: owner, WalletID: "cash", Amount: dec("20"), Kind: Credit})

	require.NoError(t, eng.Delete(context.Background(), owner, "t1"))
	assert.True(t, balanceOf(t, store, "cash").Equal(dec("-15")))

	err := eng.Delete(context.Background(), owner, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOutOfRangeAmountsAreInvalidNotPersistence(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	seed(store, "cash", WalletCash, "9999999999999990", "0")
	seed(store, "other", WalletCash, "100", "0")
	SeedTransaction(store, Transaction{ID: "t1", OwnerID: owner, WalletID: "cash", Amount: dec("20"), Kind: Debit})
	ctx := context.Background()
	before := takeSnapshot(store)

	_, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "other", Amount: dec("1e20"), Kind: Credit})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// the amount is fine but the resulting balance is not
	_, err = eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("10"), Kind: Credit})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// reversing the expense on delete or reassignment would push cash past the range
	assert.ErrorIs(t, eng.Delete(ctx, owner, "t1"), ErrInvalidAmount)
	other := "other"
	_, err = eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: "t1", WalletID: &other})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	huge := dec("1e50000000")
	_, err = eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: "t1", Amount: &huge})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.Equal(t, before, takeSnapshot(store))
	assert.Empty(t, pub.all())
}

func TestUpdateSameWalletEvaluatesReversedBalance(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "cash", WalletCash, "100", "0")
	ctx := context.Background()

	tr, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("80"), Kind: Debit})
	require.NoError(t, err)
	require.True(t, balanceOf(t, store, "cash").Equal(dec("20")))

	// 100 is affordable only once the previous 80 is reversed.
	amount := dec("100")
	updated, err := eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: tr.ID, Amount: &amount})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))
	assert.True(t, balanceOf(t, store, "cash").IsZero())

	amount = dec("100.01")
	_, err = eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: tr.ID, Amount: &amount})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, balanceOf(t, store, "cash").IsZero())
}

func TestUpdateReassignmentConservation(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	seed(store, "a", WalletCash, "100", "0")
	seed(store, "b", WalletBankAccount, "10", "0")
	ctx := context.Background()

	tr, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "a", Amount: dec("30"), Kind: Credit})
	require.NoError(t, err)
	aBefore, bBefore := balanceOf(t, store, "a"), balanceOf(t, store, "b")

	target := "b"
	updated, err := eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: tr.ID, WalletID: &target})
	require.NoError(t, err)
	assert.Equal(t, "b", updated.WalletID)

	aAfter, bAfter := balanceOf(t, store, "a"), balanceOf(t, store, "b")
	assert.True(t, aAfter.Sub(aBefore).Equal(dec("-30")))
	assert.True(t, bAfter.Sub(bBefore).Equal(dec("30")))
	assert.True(t, aAfter.Add(bAfter).Equal(aBefore.Add(bBefore)))

	last := pub.all()[len(pub.all())-1]
	assert.Equal(t, events.OpTransactionUpdated, last.Op)
	assert.Equal(t, []string{"a", "b"}, last.WalletIDs)
}

func TestUpdateReassignmentChecksTargetStoredBalance(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "a", WalletCash, "100", "0")
	seed(store, "b", WalletCash, "10", "0")
	ctx := context.Background()

	tr, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "a", Amount: dec("50"), Kind: Debit})
	require.NoError(t, err)
	before := takeSnapshot(store)

	target := "b"
	_, err = eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: tr.ID, WalletID: &target})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, before, takeSnapshot(store))
}

func TestUpdateReassignAcrossKinds(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "cash", WalletCash, "100", "0")
	seed(store, "card", WalletCreditCard, "0", "40")
	ctx := context.Background()

	tr, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("30"), Kind: Debit})
	require.NoError(t, err)

	target := "card"
	_, err = eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: tr.ID, WalletID: &target})
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, "cash").Equal(dec("100")))
	assert.True(t, balanceOf(t, store, "card").Equal(dec("30")))

	amount := dec("41")
	_, err = eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: tr.ID, Amount: &amount})
	assert.ErrorIs(t, err, ErrInsufficientCredit)
}

func TestUpdateMetadataOnlySkipsPolicy(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	seed(store, "cash", WalletCash, "0", "0")
	SeedTransaction(store, Transaction{ID: "t1", OwnerID: owner, WalletID: "cash", Amount: dec("20"), Kind: Debit})

	note := "lunch"
	category := "food"
	updated, err := eng.Update(context.Background(), UpdateInput{OwnerID: owner, TransactionID: "t1", Note: &note, Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "lunch", updated.Note)
	assert.Equal(t, "food", updated.Category)
	assert.True(t, balanceOf(t, store, "cash").IsZero())

	last := pub.all()[len(pub.all())-1]
	assert.Empty(t, last.WalletIDs)
	assert.Equal(t, "t1", last.TransactionID)
}

func TestUpdateRejectsForeignTarget(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "mine", WalletCash, "100", "0")
	SeedWallet(store, Wallet{ID: "theirs", OwnerID: "owner-2", Type: WalletCash, Balance: dec("100")})
	ctx := context.Background()

	tr, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "mine", Amount: dec("10"), Kind: Debit})
	require.NoError(t, err)

	target := "theirs"
	_, err = eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: tr.ID, WalletID: &target})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = eng.Update(ctx, UpdateInput{OwnerID: "owner-2", TransactionID: tr.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	bad := dec("0")
	_, err = eng.Update(ctx, UpdateInput{OwnerID: owner, TransactionID: tr.ID, Amount: &bad})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRandomSequencesPreserveLedger(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	opening := map[string]decimal.Decimal{}
	for id, w := range map[string]Wallet{
		"a": seed(store, "a", WalletCash, "200", "0"),
		"b": seed(store, "b", WalletBankAccount, "50", "0"),
		"c": seed(store, "c", WalletCreditCard, "20", "150"),
	} {
		opening[id] = w.Balance
	}
	wallets := []string{"a", "b", "c"}
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	var live []string

	randomAmount := func() decimal.Decimal {
		return decimal.New(int64(rng.Intn(12000)+1), -2)
	}

	for step := 0; step < 400; step++ {
		before := takeSnapshot(store)
		var err error

		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			kind := Credit
			if rng.Intn(2) == 0 {
				kind = Debit
			}
			var tr Transaction
			tr, err = eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: wallets[rng.Intn(3)], Amount: randomAmount(), Kind: kind})
			if err == nil {
				live = append(live, tr.ID)
			}
		case op == 1:
			in := UpdateInput{OwnerID: owner, TransactionID: live[rng.Intn(len(live))]}
			if rng.Intn(2) == 0 {
				target := wallets[rng.Intn(3)]
				in.WalletID = &target
			}
			if rng.Intn(2) == 0 {
				amount := randomAmount()
				in.Amount = &amount
			}
			_, err = eng.Update(ctx, in)
		default:
			i := rng.Intn(len(live))
			err = eng.Delete(ctx, owner, live[i])
			if err == nil {
				live = append(live[:i], live[i+1:]...)
			}
		}

		if err != nil {
			require.True(t, IsClientError(err), "step %d: unexpected %v", step, err)
			require.Equal(t, before, takeSnapshot(store), "step %d: rejected mutation changed state", step)
		}
		checkLedger(t, store, opening)
	}

	for id := range opening {
		w, err := store.GetWallet(ctx, owner, id)
		require.NoError(t, err)
		if w.Kind() == Asset {
			assert.False(t, w.Balance.IsNegative(), "asset wallet %s went negative", id)
		} else {
			assert.False(t, w.Balance.GreaterThan(w.CreditLimit), "credit line %s over limit", id)
		}
	}
}

func TestConcurrentDisjointWallets(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "a", WalletCash, "100", "0")
	seed(store, "b", WalletCash, "100", "0")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = eng.Create(context.Background(), CreateInput{OwnerID: owner, WalletID: id, Amount: dec("60"), Kind: Debit})
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, balanceOf(t, store, "a").Equal(dec("40")))
	assert.True(t, balanceOf(t, store, "b").Equal(dec("40")))
}

func TestConcurrentSameWalletNeverOverdraws(t *testing.T) {
	for round := 0; round < 20; round++ {
		eng, store, _ := newTestEngine(t)
		seed(store, "cash", WalletCash, "100", "0")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = eng.Create(context.Background(), CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("60"), Kind: Debit})
			}(i)
		}
		close(start)
		wg.Wait()

		var ok, rejected int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case KindOf(err) == KindInsufficientFunds:
				rejected++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		require.Equal(t, 1, ok)
		require.Equal(t, 1, rejected)
		require.True(t, balanceOf(t, store, "cash").Equal(dec("40")))
	}
}

func TestConcurrentHalfSpendsSucceedTogether(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "cash", WalletCash, "100", "0")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Create(context.Background(), CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("50"), Kind: Debit})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.True(t, balanceOf(t, store, "cash").IsZero())
}

func TestLockTimeoutIsConflict(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "cash", WalletCash, "100", "0")

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = store.WithinTx(context.Background(), func(tx Tx) error {
			if _, err := tx.LockWallet(context.Background(), owner, "cash"); err != nil {
				return err
			}
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	before := takeSnapshot(store)
	_, err := eng.Create(context.Background(), CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("1"), Kind: Debit})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, before, takeSnapshot(store))
}

func TestCancelledContextWritesNothing(t *testing.T) {
	eng, store, pub := newTestEngine(t)
	seed(store, "cash", WalletCash, "100", "0")
	before := takeSnapshot(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Create(ctx, CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("1"), Kind: Debit})
	assert.Equal(t, KindPersistence, KindOf(err))
	assert.Equal(t, before, takeSnapshot(store))
	assert.Empty(t, pub.all())
}

func TestTimestampsAreUTCMicroseconds(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	seed(store, "cash", WalletCash, "100", "0")
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.FixedZone("X", 3600))
	eng.now = func() time.Time { return fixed }
	eng.newID = func() string { return "fixed-id" }

	tr, err := eng.Create(context.Background(), CreateInput{OwnerID: owner, WalletID: "cash", Amount: dec("1"), Kind: Debit})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", tr.ID)
	assert.Equal(t, time.UTC, tr.CreatedAt.Location())
	assert.Equal(t, 123456000, tr.CreatedAt.Nanosecond())

	w, err := store.GetWallet(context.Background(), owner, "cash")
	require.NoError(t, err)
	assert.True(t, w.UpdatedAt.Equal(tr.CreatedAt))
}
