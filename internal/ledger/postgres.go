package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists wallets and transactions in PostgreSQL. Row locks
// are taken with SELECT ... FOR UPDATE inside READ COMMITTED transactions.
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore constructs a Postgres-backed store. A non-positive
// lockTimeout selects DefaultLockTimeout.
func NewPostgresStore(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

const (
	walletColumns      = `id, user_id, name, wallet_type, balance, credit_limit, created_at, updated_at`
	transactionColumns = `id, user_id, wallet_id, amount, transaction_type, category, description, created_at, updated_at`
)

// WithinTx runs fn inside a database transaction with a bounded lock wait.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Classify(err, "begin transaction")
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return Classify(err, "set lock timeout")
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return Classify(err, "ledger update")
	}
	if err := tx.Commit(ctx); err != nil {
		return Classify(err, "commit")
	}
	return nil
}

// Classify maps driver and context failures onto ledger kinds. Errors that
// are already classified pass through. The driver text stays in the chain
// for logs but never reaches the message.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40001", "40P01":
			return wrapError(KindConflict, err, "%s: concurrent update, retry", op)
		case "23503":
			return wrapError(KindNotFound, err, "%s: referenced row not found", op)
		case "23505":
			return wrapError(KindConflict, err, "%s: row already exists", op)
		case "22003":
			return wrapError(KindInvalidAmount, err, "%s: value out of range", op)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contextError(err, op)
	}
	return wrapError(KindPersistence, err, "%s failed", op)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var walletType string
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Name, &walletType, &w.Balance, &w.CreditLimit, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	w.Type = WalletType(walletType)
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	var kind string
	if err := row.Scan(&t.ID, &t.OwnerID, &t.WalletID, &t.Amount, &kind, &t.Category, &t.Note, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	t.Kind = TxKind(kind)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (p *pgTx) LockWallet(ctx context.Context, ownerID, id string) (Wallet, error) {
	row := p.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, ownerID)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, notFound("wallet", id)
		}
		return Wallet{}, Classify(err, "lock wallet")
	}
	return w, nil
}

func (p *pgTx) LockTransaction(ctx context.Context, ownerID, id string) (Transaction, error) {
	row := p.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, ownerID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, notFound("transaction", id)
		}
		return Transaction{}, Classify(err, "lock transaction")
	}
	return t, nil
}

func (p *pgTx) InsertWallet(ctx context.Context, w Wallet) error {
	_, err := p.tx.Exec(ctx, `INSERT INTO wallets (`+walletColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.OwnerID, w.Name, string(w.Type), w.Balance.String(), w.CreditLimit.String(), w.CreatedAt, w.UpdatedAt)
	return Classify(err, "insert wallet")
}

func (p *pgTx) UpdateWallet(ctx context.Context, w Wallet) error {
	tag, err := p.tx.Exec(ctx, `UPDATE wallets SET name = $3, balance = $4, credit_limit = $5, updated_at = $6
        WHERE id = $1 AND user_id = $2`,
		w.ID, w.OwnerID, w.Name, w.Balance.String(), w.CreditLimit.String(), w.UpdatedAt)
	if err != nil {
		return Classify(err, "update wallet")
	}
	if tag.RowsAffected() == 0 {
		return notFound("wallet", w.ID)
	}
	return nil
}

func (p *pgTx) DeleteWallet(ctx context.Context, ownerID, id string) error {
	tag, err := p.tx.Exec(ctx, `DELETE FROM wallets WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return Classify(err, "delete wallet")
	}
	if tag.RowsAffected() == 0 {
		return notFound("wallet", id)
	}
	return nil
}

func (p *pgTx) InsertTransaction(ctx context.Context, t Transaction) error {
	_, err := p.tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.OwnerID, t.WalletID, t.Amount.String(), string(t.Kind), t.Category, t.Note, t.CreatedAt, t.UpdatedAt)
	return Classify(err, "insert transaction")
}

func (p *pgTx) UpdateTransaction(ctx context.Context, t Transaction) error {
	tag, err := p.tx.Exec(ctx, `UPDATE transactions SET wallet_id = $3, amount = $4, category = $5, description = $6, updated_at = $7
        WHERE id = $1 AND user_id = $2`,
		t.ID, t.OwnerID, t.WalletID, t.Amount.String(), t.Category, t.Note, t.UpdatedAt)
	if err != nil {
		return Classify(err, "update transaction")
	}
	if tag.RowsAffected() == 0 {
		return notFound("transaction", t.ID)
	}
	return nil
}

func (p *pgTx) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	tag, err := p.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return Classify(err, "delete transaction")
	}
	if tag.RowsAffected() == 0 {
		return notFound("transaction", id)
	}
	return nil
}

// GetWallet fetches a wallet without locking it.
func (s *PostgresStore) GetWallet(ctx context.Context, ownerID, id string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND user_id = $2`, id, ownerID)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, notFound("wallet", id)
		}
		return Wallet{}, Classify(err, "get wallet")
	}
	return w, nil
}

// ListWallets returns the owner's wallets, newest first.
func (s *PostgresStore) ListWallets(ctx context.Context, ownerID string) ([]Wallet, error) {
	rows, err := s.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, Classify(err, "list wallets")
	}
	defer rows.Close()

	out := make([]Wallet, 0)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, Classify(err, "list wallets")
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err, "list wallets")
	}
	return out, nil
}

// GetTransaction fetches a transaction without locking it.
func (s *PostgresStore) GetTransaction(ctx context.Context, ownerID, id string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`, id, ownerID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, notFound("transaction", id)
		}
		return Transaction{}, Classify(err, "get transaction")
	}
	return t, nil
}

// ListTransactions returns the owner's transactions, newest first.
func (s *PostgresStore) ListTransactions(ctx context.Context, ownerID string, filter TransactionFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []any{ownerID}
	if filter.WalletID != "" {
		query += ` AND wallet_id = $2`
		args = append(args, filter.WalletID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, Classify(err, "list transactions")
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, Classify(err, "list transactions")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err, "list transactions")
	}
	return out, nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
