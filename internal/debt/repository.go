package debt

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fintrack/fintrack/internal/ledger"
)

// Repository persists debts.
type Repository interface {
	Create(ctx context.Context, d Debt) error
	Get(ctx context.Context, ownerID, id string) (Debt, error)
	List(ctx context.Context, ownerID string) ([]Debt, error)
	Update(ctx context.Context, d Debt) error
	Delete(ctx context.Context, ownerID, id string) error
}

// PostgresRepository stores debts in PostgreSQL. Deleting a wallet nulls
// the wallet_id of its debts through the foreign key.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const debtColumns = `id, user_id, wallet_id, creditor_name, amount, interest_rate, due_date, status, created_at, updated_at`

func scanDebt(row pgx.Row) (Debt, error) {
	var d Debt
	var status string
	if err := row.Scan(&d.ID, &d.OwnerID, &d.WalletID, &d.CreditorName, &d.Amount, &d.InterestRate, &d.DueDate, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Debt{}, err
	}
	d.Status = Status(status)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		d.DueDate = &due
	}
	return d, nil
}

// Create inserts a debt record.
func (r *PostgresRepository) Create(ctx context.Context, d Debt) error {
	_, err := r.db.Exec(ctx, `INSERT INTO debts (`+debtColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.OwnerID, d.WalletID, d.CreditorName, d.Amount.String(), d.InterestRate.String(), d.DueDate, string(d.Status), d.CreatedAt, d.UpdatedAt)
	return ledger.Classify(err, "insert debt")
}

// Get fetches a debt by owner and id.
func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (Debt, error) {
	d, err := scanDebt(r.db.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1 AND user_id = $2`, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Debt{}, ledger.Errorf(ledger.KindNotFound, "debt %s not found", id)
		}
		return Debt{}, ledger.Classify(err, "get debt")
	}
	return d, nil
}

// List returns the owner's debts, newest first.
func (r *PostgresRepository) List(ctx context.Context, ownerID string) ([]Debt, error) {
	rows, err := r.db.Query(ctx, `SELECT `+debtColumns+` FROM debts WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, ledger.Classify(err, "list debts")
	}
	defer rows.Close()

	out := make([]Debt, 0)
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, ledger.Classify(err, "list debts")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Classify(err, "list debts")
	}
	return out, nil
}

// Update rewrites every mutable column of a debt.
func (r *PostgresRepository) Update(ctx context.Context, d Debt) error {
	tag, err := r.db.Exec(ctx, `UPDATE debts SET wallet_id = $3, creditor_name = $4, amount = $5, interest_rate = $6,
        due_date = $7, status = $8, updated_at = $9 WHERE id = $1 AND user_id = $2`,
		d.ID, d.OwnerID, d.WalletID, d.CreditorName, d.Amount.String(), d.InterestRate.String(), d.DueDate, string(d.Status), d.UpdatedAt)
	if err != nil {
		return ledger.Classify(err, "update debt")
	}
	if tag.RowsAffected() == 0 {
		return ledger.Errorf(ledger.KindNotFound, "debt %s not found", d.ID)
	}
	return nil
}

// Delete removes a debt.
func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM debts WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return ledger.Classify(err, "delete debt")
	}
	if tag.RowsAffected() == 0 {
		return ledger.Errorf(ledger.KindNotFound, "debt %s not found", id)
	}
	return nil
}
