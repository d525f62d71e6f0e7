package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists bank accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListBankAccounts returns the company's active banks ordered by name.
func (r *Repository) ListBankAccounts(ctx context.Context, companyID uuid.UUID) ([]BankAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, name, account_type, gl_account_id, COALESCE(current_balance,0)::text
FROM bank_accounts WHERE company_id=$1 AND COALESCE(is_active, TRUE) ORDER BY name, id`, companyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BankAccount, error) {
		var b BankAccount
		raw := make([]string, 1)
		if err := row.Scan(&b.ID, &b.CompanyID, &b.Name, &b.Type, &b.GLAccountID, &raw[0]); err != nil {
			return b, err
		}
		return b, ledger.ScanAmounts(raw, &b.CurrentBalance)
	})
}

// LinkBankAccount sets gl_account_id unless the bank was linked meanwhile.
func (r *Repository) LinkBankAccount(ctx context.Context, bankID, glAccountID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bank_accounts SET gl_account_id=$2, updated_at=NOW()
WHERE id=$1 AND gl_account_id IS NULL`, bankID, glAccountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("reconcile: bank already linked or missing")
	}
	return nil
}

// UpdateBalances writes every balance in one transaction.
func (r *Repository) UpdateBalances(ctx context.Context, updates []BalanceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range updates {
			batch.Queue(`UPDATE bank_accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, u.BankID, ledger.Numeric(u.Balance))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("reconcile: batch update: %w", err)
		}
		return nil
	})
}
