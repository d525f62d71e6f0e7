package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/deferral"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/payroll"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
)

// Source reads business events from Postgres. Amount columns are selected as
// text and parsed into decimals.
type Source struct {
	pool *pgxpool.Pool
}

// NewSource constructs Source.
func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

// Invoices returns the company's non-void invoices with a positive total.
func (s *Source) Invoices(ctx context.Context, companyID uuid.UUID) ([]posting.Invoice, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, invoice_number, invoice_type, COALESCE(status,''), invoice_date,
	amount::text, COALESCE(tax_amount,0)::text, COALESCE(retainage_held,0)::text,
	COALESCE(counterparty_name,''), gl_account_id, deferral_start_date, deferral_end_date
FROM invoices
WHERE company_id=$1 AND COALESCE(status,'') NOT IN ('void','voided','draft')
	AND amount + COALESCE(tax_amount,0) > 0
ORDER BY invoice_date, invoice_number`, companyID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load invoices: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (posting.Invoice, error) {
		var inv posting.Invoice
		raw := make([]string, 3)
		if err := row.Scan(&inv.ID, &inv.Number, &inv.Type, &inv.Status, &inv.InvoiceDate,
			&raw[0], &raw[1], &raw[2], &inv.Counterparty, &inv.GLAccountID, &inv.DeferralStart, &inv.DeferralEnd); err != nil {
			return inv, err
		}
		return inv, ledger.ScanAmounts(raw, &inv.Amount, &inv.TaxAmount, &inv.RetainageHeld)
	})
}

// Leases returns leases with a positive monthly rent.
func (s *Source) Leases(ctx context.Context, companyID uuid.UUID) ([]posting.Lease, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, COALESCE(tenant_name,''), COALESCE(unit_number,''), monthly_rent::text, lease_start, lease_end
FROM leases
WHERE company_id=$1 AND monthly_rent > 0 AND COALESCE(status,'active') <> 'cancelled'
ORDER BY lease_start`, companyID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load leases: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (posting.Lease, error) {
		var l posting.Lease
		raw := make([]string, 1)
		if err := row.Scan(&l.ID, &l.TenantName, &l.UnitNumber, &raw[0], &l.Start, &l.End); err != nil {
			return l, err
		}
		return l, ledger.ScanAmounts(raw, &l.MonthlyRent)
	})
}

// RentPayments returns received rent payments joined to their lease tenant.
func (s *Source) RentPayments(ctx context.Context, companyID uuid.UUID) ([]posting.RentPayment, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.id, p.lease_id, COALESCE(l.tenant_name,''), p.payment_date,
	p.amount::text, COALESCE(p.late_fee,0)::text, COALESCE(p.payment_method,'')
FROM rent_payments p
LEFT JOIN leases l ON l.id = p.lease_id
WHERE p.company_id=$1 AND p.amount + COALESCE(p.late_fee,0) > 0
ORDER BY p.payment_date`, companyID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load rent payments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (posting.RentPayment, error) {
		var p posting.RentPayment
		raw := make([]string, 2)
		if err := row.Scan(&p.ID, &p.LeaseID, &p.TenantName, &p.PaymentDate, &raw[0], &raw[1], &p.Method); err != nil {
			return p, err
		}
		return p, ledger.ScanAmounts(raw, &p.Amount, &p.LateFee)
	})
}

// Equipment returns equipment with a purchase cost.
func (s *Source) Equipment(ctx context.Context, companyID uuid.UUID) ([]posting.Equipment, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, purchase_date, purchase_cost::text, COALESCE(salvage_value,0)::text,
	COALESCE(useful_life_months,0), depreciation_start_date
FROM equipment
WHERE company_id=$1 AND purchase_cost > 0 AND purchase_date IS NOT NULL
ORDER BY purchase_date`, companyID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load equipment: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (posting.Equipment, error) {
		var e posting.Equipment
		raw := make([]string, 2)
		if err := row.Scan(&e.ID, &e.Name, &e.PurchaseDate, &raw[0], &raw[1], &e.UsefulLifeMonths, &e.DepreciationStartDate); err != nil {
			return e, err
		}
		return e, ledger.ScanAmounts(raw, &e.PurchaseCost, &e.SalvageValue)
	})
}

// MaintenanceCosts merges completed property work orders and equipment
// service logs that carry a cost.
func (s *Source) MaintenanceCosts(ctx context.Context, companyID uuid.UUID) ([]posting.MaintenanceCost, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, 'property', COALESCE(completed_at, created_at)::date, actual_cost::text,
	COALESCE(is_paid, FALSE), COALESCE(title,'')
FROM maintenance_requests
WHERE company_id=$1 AND status='completed' AND actual_cost > 0
UNION ALL
SELECT id, 'equipment', service_date, cost::text, COALESCE(is_paid, FALSE), COALESCE(description,'')
FROM equipment_maintenance_logs
WHERE company_id=$1 AND cost > 0
ORDER BY 3`, companyID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load maintenance: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (posting.MaintenanceCost, error) {
		var m posting.MaintenanceCost
		raw := make([]string, 1)
		if err := row.Scan(&m.ID, &m.Source, &m.Date, &raw[0], &m.Paid, &m.Description); err != nil {
			return m, err
		}
		return m, ledger.ScanAmounts(raw, &m.Amount)
	})
}

// PayrollRuns returns unlinked, non-void runs with their items.
func (s *Source) PayrollRuns(ctx context.Context, companyID uuid.UUID) ([]posting.PayrollRun, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, period_start, period_end, pay_date,
	COALESCE(total_gross,0)::text, COALESCE(total_taxes,0)::text, COALESCE(total_deductions,0)::text,
	COALESCE(total_net,0)::text, COALESCE(total_employer_taxes,0)::text
FROM payroll_runs
WHERE company_id=$1 AND journal_entry_id IS NULL AND COALESCE(status,'') <> 'void'
ORDER BY pay_date`, companyID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load payroll runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (posting.PayrollRun, error) {
		var r posting.PayrollRun
		raw := make([]string, 5)
		if err := row.Scan(&r.ID, &r.PeriodStart, &r.PeriodEnd, &r.PayDate, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4]); err != nil {
			return r, err
		}
		return r, ledger.ScanAmounts(raw, &r.TotalGross, &r.TotalTaxes, &r.TotalDeductions, &r.TotalNet, &r.TotalEmployerTaxes)
	})
	if err != nil || len(runs) == 0 {
		return runs, err
	}

	ids := make([]uuid.UUID, len(runs))
	index := make(map[uuid.UUID]int, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
		index[r.ID] = i
	}
	itemRows, err := s.pool.Query(ctx, `SELECT payroll_run_id, employee_id, COALESCE(hourly_rate,0)::text,
	COALESCE(regular_hours,0)::text, COALESCE(overtime_hours,0)::text, COALESCE(gross_pay,0)::text,
	COALESCE(taxes,0)::text, COALESCE(deductions,0)::text, COALESCE(net_pay,0)::text, COALESCE(employer_taxes,0)::text
FROM payroll_items WHERE payroll_run_id = ANY($1) ORDER BY payroll_run_id, employee_id`, ids)
	if err != nil {
		return nil, fmt.Errorf("backfill: load payroll items: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var runID uuid.UUID
		var it posting.PayrollItem
		raw := make([]string, 8)
		if err := itemRows.Scan(&runID, &it.EmployeeID, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &raw[6], &raw[7]); err != nil {
			return nil, err
		}
		if err := ledger.ScanAmounts(raw, &it.HourlyRate, &it.RegularHours, &it.OvertimeHours, &it.Gross, &it.Taxes, &it.Deductions, &it.Net, &it.EmployerTaxes); err != nil {
			return nil, err
		}
		i := index[runID]
		runs[i].Items = append(runs[i].Items, it)
	}
	return runs, itemRows.Err()
}

// TimeRecords returns time entries dated within [from, to].
func (s *Source) TimeRecords(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]payroll.TimeRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT employee_id, work_date, hours::text, status = 'approved'
FROM time_entries
WHERE company_id=$1 AND work_date BETWEEN $2 AND $3`, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("backfill: load time entries: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (payroll.TimeRecord, error) {
		var r payroll.TimeRecord
		raw := make([]string, 1)
		if err := row.Scan(&r.EmployeeID, &r.WorkDate, &raw[0], &r.Approved); err != nil {
			return r, err
		}
		return r, ledger.ScanAmounts(raw, &r.Hours)
	})
}

// SavePayrollItems writes computed hours and pay back to the run's items and
// refreshes the run totals.
func (s *Source) SavePayrollItems(ctx context.Context, runID uuid.UUID, items []posting.PayrollItem) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(`UPDATE payroll_items SET regular_hours=$3, overtime_hours=$4, gross_pay=$5, net_pay=$6
WHERE payroll_run_id=$1 AND employee_id=$2`, runID, it.EmployeeID,
				ledger.Numeric(it.RegularHours), ledger.Numeric(it.OvertimeHours), ledger.Numeric(it.Gross), ledger.Numeric(it.Net))
		}
		batch.Queue(`UPDATE payroll_runs r SET
	total_gross = t.gross, total_taxes = t.taxes, total_deductions = t.deductions,
	total_net = t.net, total_employer_taxes = t.employer
FROM (SELECT SUM(gross_pay) gross, SUM(taxes) taxes, SUM(deductions) deductions,
	SUM(net_pay) net, SUM(employer_taxes) employer
	FROM payroll_items WHERE payroll_run_id=$1) t
WHERE r.id=$1`, runID)
		return tx.SendBatch(ctx, batch).Close()
	})
}

// LinkPayrollRun points the run at the journal entry holding reference.
func (s *Source) LinkPayrollRun(ctx context.Context, companyID, runID uuid.UUID, reference string) error {
	_, err := s.pool.Exec(ctx, `UPDATE payroll_runs SET journal_entry_id = e.id
FROM journal_entries e
WHERE payroll_runs.id=$2 AND e.company_id=$1 AND e.reference=$3 AND e.status <> 'voided'`, companyID, runID, reference)
	return err
}

// DeferralRows returns every schedule row for the company.
func (s *Source) DeferralRows(ctx context.Context, companyID uuid.UUID) ([]deferral.Row, error) {
	rows, err := s.pool.Query(ctx, `SELECT invoice_id, schedule_date, monthly_amount::text, status
FROM deferral_schedules WHERE company_id=$1 ORDER BY invoice_id, schedule_date`, companyID)
	if err != nil {
		return nil, fmt.Errorf("backfill: load deferral schedules: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (deferral.Row, error) {
		var r deferral.Row
		raw := make([]string, 1)
		if err := row.Scan(&r.InvoiceID, &r.Date, &raw[0], &r.Status); err != nil {
			return r, err
		}
		return r, ledger.ScanAmounts(raw, &r.Amount)
	})
}

// CreateDeferralRows stores a new schedule. Rows that already exist are left
// untouched.
func (s *Source) CreateDeferralRows(ctx context.Context, companyID uuid.UUID, rows []deferral.Row) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range rows {
			batch.Queue(`INSERT INTO deferral_schedules (company_id, invoice_id, schedule_date, monthly_amount, status)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (invoice_id, schedule_date) DO NOTHING`, companyID, r.InvoiceID, r.Date, ledger.Numeric(r.Amount), r.Status)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// MarkRecognized flips one schedule row to recognized.
func (s *Source) MarkRecognized(ctx context.Context, invoiceID uuid.UUID, date time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE deferral_schedules SET status='recognized', recognized_at=NOW()
WHERE invoice_id=$1 AND schedule_date=$2 AND status='scheduled'`, invoiceID, date)
	return err
}
