package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

const constraintEntryReference = "uq_journal_entries_reference"

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ActiveAccounts(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	InsertEntryHeader(ctx context.Context, d Draft, status EntryStatus) (uuid.UUID, bool, error)
	InsertLines(ctx context.Context, entryID uuid.UUID, lines []LineInput) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a read-committed transaction. ON CONFLICT on the
// reference index only stays conflict-free at this isolation level.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// InsertEntry writes the header and lines of d atomically. A reference that
// is already taken yields AlreadyExists and leaves no rows behind.
func (r *Repository) InsertEntry(ctx context.Context, d Draft, status EntryStatus) InsertResult {
	if err := d.Validate(); err != nil {
		return FailedResult(err)
	}
	var entryID uuid.UUID
	err := r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		active, err := tx.ActiveAccounts(ctx, d.CompanyID, d.AccountIDs())
		if err != nil {
			return err
		}
		if err := d.RequireActive(active); err != nil {
			return err
		}
		id, created, err := tx.InsertEntryHeader(ctx, d, status)
		if err != nil {
			return err
		}
		if !created {
			return errReferenceTaken
		}
		if err := tx.InsertLines(ctx, id, d.Lines); err != nil {
			return err
		}
		entryID = id
		return nil
	})
	switch {
	case err == nil:
		return InsertedResult(entryID)
	case errors.Is(err, errReferenceTaken), db.IsUniqueViolation(err, constraintEntryReference):
		return ExistsResult()
	default:
		return FailedResult(fmt.Errorf("ledger: insert %s: %w", d.Reference, err))
	}
}

var errReferenceTaken = errors.New("ledger: reference taken")

// ActiveAccounts returns which of ids are active accounts of the company. The
// rows stay share-locked until commit so they cannot be deactivated under
// the insert.
func (r *txRepository) ActiveAccounts(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT id FROM accounts
WHERE company_id=$1 AND id = ANY($2) AND is_active
FOR SHARE`, companyID, ids)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	active := make(map[uuid.UUID]bool, len(found))
	for _, id := range found {
		active[id] = true
	}
	return active, nil
}

func (r *txRepository) InsertEntryHeader(ctx context.Context, d Draft, status EntryStatus) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, entry_number, entry_date, description, reference, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (company_id, reference) WHERE status <> 'voided' DO NOTHING
RETURNING id`, d.CompanyID, d.EntryNumber, d.EntryDate, d.Description, d.Reference, status, nullUUID(d.CreatedBy)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID uuid.UUID, lines []LineInput) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_entry_lines (journal_entry_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5)`, entryID, line.AccountID, Numeric(line.Debit), Numeric(line.Credit), line.Description)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

// ListAccounts returns the company's chart ordered by number.
func (r *Repository) ListAccounts(ctx context.Context, companyID uuid.UUID) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, account_number, name, account_type, COALESCE(sub_type,''), normal_balance, parent_id, is_active, created_at
FROM accounts WHERE company_id=$1 ORDER BY account_number`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Number, &a.Name, &a.Type, &a.SubType, &a.NormalBalance, &a.ParentID, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateAccount inserts seed unless its number already exists, returning the
// stored row either way.
func (r *Repository) CreateAccount(ctx context.Context, companyID uuid.UUID, seed AccountSeed) (Account, error) {
	normal := NormalBalanceFor(seed.Type)
	_, err := r.pool.Exec(ctx, `INSERT INTO accounts (company_id, account_number, name, account_type, sub_type, normal_balance, is_active)
VALUES ($1,$2,$3,$4,$5,$6,TRUE)
ON CONFLICT (company_id, account_number) DO NOTHING`, companyID, seed.Number, seed.Name, seed.Type, seed.SubType, normal)
	if err != nil {
		return Account{}, fmt.Errorf("ledger: seed account %s: %w", seed.Number, err)
	}
	var a Account
	err = r.pool.QueryRow(ctx, `SELECT id, company_id, account_number, name, account_type, COALESCE(sub_type,''), normal_balance, parent_id, is_active, created_at
FROM accounts WHERE company_id=$1 AND account_number=$2`, companyID, seed.Number).
		Scan(&a.ID, &a.CompanyID, &a.Number, &a.Name, &a.Type, &a.SubType, &a.NormalBalance, &a.ParentID, &a.Active, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// ExistingReferences returns which of refs already belong to a non-voided
// entry. One round trip covers the whole candidate set.
func (r *Repository) ExistingReferences(ctx context.Context, companyID uuid.UUID, refs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT reference FROM journal_entries
WHERE company_id=$1 AND status <> 'voided' AND reference = ANY($2)`, companyID, refs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		out[ref] = true
	}
	return out, rows.Err()
}

// ListCompanyIDs returns every company that owns at least one active account.
func (r *Repository) ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT company_id FROM accounts WHERE is_active ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// PromoteDrafts moves every draft entry of the company to posted.
func (r *Repository) PromoteDrafts(ctx context.Context, companyID uuid.UUID) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE journal_entries SET status='posted', updated_at=NOW()
WHERE company_id=$1 AND status='draft'`, companyID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// AccountBalances sums posted debit minus credit per account.
func (r *Repository) AccountBalances(ctx context.Context, companyID uuid.UUID, accountIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(accountIDs))
	for _, id := range accountIDs {
		out[id] = decimal.Zero
	}
	if len(accountIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit - l.credit),0)::text
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE e.company_id=$1 AND e.status='posted' AND l.account_id = ANY($2)
GROUP BY l.account_id`, companyID, accountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("ledger: parse balance: %w", err)
		}
		out[id] = amount
	}
	return out, rows.Err()
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
