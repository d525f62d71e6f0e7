package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/deferral"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/payroll"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
)

type memoryLedger struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	failRefs map[string]bool
	// hidden references are stored but missed by the batch lookup, as when
	// a concurrent pass inserts between the lookup and the insert.
	hidden   map[string]bool
	promoted int64
}

type memoryEntry struct {
	id     uuid.UUID
	draft  ledger.Draft
	status ledger.EntryStatus
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{entries: make(map[string]*memoryEntry), failRefs: make(map[string]bool), hidden: make(map[string]bool)}
}

func (m *memoryLedger) ExistingReferences(ctx context.Context, companyID uuid.UUID, refs []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool)
	for _, ref := range refs {
		if _, ok := m.entries[ref]; ok && !m.hidden[ref] {
			out[ref] = true
		}
	}
	return out, nil
}

func (m *memoryLedger) InsertEntry(ctx context.Context, d ledger.Draft, status ledger.EntryStatus) ledger.InsertResult {
	if err := d.Validate(); err != nil {
		return ledger.FailedResult(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRefs[d.Reference] {
		return ledger.FailedResult(errors.New("connection reset"))
	}
	if _, ok := m.entries[d.Reference]; ok {
		return ledger.ExistsResult()
	}
	id := uuid.New()
	m.entries[d.Reference] = &memoryEntry{id: id, draft: d, status: status}
	return ledger.InsertedResult(id)
}

func (m *memoryLedger) PromoteDrafts(ctx context.Context, companyID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.entries {
		if e.draft.CompanyID == companyID && e.status == ledger.EntryStatusDraft {
			e.status = ledger.EntryStatusPosted
			n++
		}
	}
	m.promoted += n
	return n, nil
}

// balances sums posted debit minus credit per account.
func (m *memoryLedger) balances() map[uuid.UUID]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := make(map[uuid.UUID]decimal.Decimal)
	for _, e := range m.entries {
		if e.status != ledger.EntryStatusPosted {
			continue
		}
		for _, l := range e.draft.Lines {
			sums[l.AccountID] = sums[l.AccountID].Add(l.Debit).Sub(l.Credit)
		}
	}
	out := make(map[uuid.UUID]string, len(sums))
	for id, v := range sums {
		out[id] = v.StringFixed(2)
	}
	return out
}

type memorySource struct {
	mu          sync.Mutex
	invoices    []posting.Invoice
	leases      []posting.Lease
	payments    []posting.RentPayment
	equipment   []posting.Equipment
	maintenance []posting.MaintenanceCost
	runs        []posting.PayrollRun
	time        []payroll.TimeRecord
	deferrals   []deferral.Row
	linked      map[uuid.UUID]string
	savedItems  map[uuid.UUID][]posting.PayrollItem
	leaseErr    error
}

func newMemorySource() *memorySource {
	return &memorySource{linked: make(map[uuid.UUID]string), savedItems: make(map[uuid.UUID][]posting.PayrollItem)}
}

func (s *memorySource) Invoices(ctx context.Context, companyID uuid.UUID) ([]posting.Invoice, error) {
	return s.invoices, nil
}

func (s *memorySource) Leases(ctx context.Context, companyID uuid.UUID) ([]posting.Lease, error) {
	return s.leases, s.leaseErr
}

func (s *memorySource) RentPayments(ctx context.Context, companyID uuid.UUID) ([]posting.RentPayment, error) {
	return s.payments, nil
}

func (s *memorySource) Equipment(ctx context.Context, companyID uuid.UUID) ([]posting.Equipment, error) {
	return s.equipment, nil
}

func (s *memorySource) MaintenanceCosts(ctx context.Context, companyID uuid.UUID) ([]posting.MaintenanceCost, error) {
	return s.maintenance, nil
}

func (s *memorySource) PayrollRuns(ctx context.Context, companyID uuid.UUID) ([]posting.PayrollRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []posting.PayrollRun
	for _, r := range s.runs {
		if _, ok := s.linked[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *memorySource) TimeRecords(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]payroll.TimeRecord, error) {
	return s.time, nil
}

func (s *memorySource) SavePayrollItems(ctx context.Context, runID uuid.UUID, items []posting.PayrollItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedItems[runID] = items
	return nil
}

func (s *memorySource) LinkPayrollRun(ctx context.Context, companyID, runID uuid.UUID, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linked[runID] = reference
	return nil
}

func (s *memorySource) DeferralRows(ctx context.Context, companyID uuid.UUID) ([]deferral.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]deferral.Row(nil), s.deferrals...), nil
}

func (s *memorySource) CreateDeferralRows(ctx context.Context, companyID uuid.UUID, rows []deferral.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deferrals = append(s.deferrals, rows...)
	return nil
}

func (s *memorySource) MarkRecognized(ctx context.Context, invoiceID uuid.UUID, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.deferrals {
		if r.InvoiceID == invoiceID && r.Date.Equal(date) {
			s.deferrals[i].Status = deferral.StatusRecognized
		}
	}
	return nil
}

type staticResolver struct {
	m   accounts.Map
	err error
}

func (r staticResolver) Resolve(ctx context.Context, companyID uuid.UUID) (accounts.Map, error) {
	return r.m, r.err
}

func fullChart() accounts.Map {
	ids := make(map[accounts.Role]uuid.UUID)
	for _, def := range accounts.Definitions {
		ids[def.Role] = uuid.NewSHA1(uuid.NameSpaceOID, []byte(def.Number))
	}
	return accounts.NewMap(ids)
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func seededSource() *memorySource {
	src := newMemorySource()
	deferStart, deferEnd := day(2025, 1, 1), day(2025, 3, 31)
	src.invoices = []posting.Invoice{
		{ID: uuid.New(), Number: "INV-1", Type: posting.InvoiceReceivable, Status: "paid", InvoiceDate: day(2025, 1, 10), Amount: amt("5000")},
		{ID: uuid.New(), Number: "INV-2", Type: posting.InvoiceReceivable, Status: "sent", InvoiceDate: day(2025, 1, 12), Amount: amt("900"), DeferralStart: &deferStart, DeferralEnd: &deferEnd},
		{ID: uuid.New(), Number: "BILL-1", Type: posting.InvoicePayable, InvoiceDate: day(2025, 1, 14), Amount: amt("1200"), TaxAmount: amt("99")},
		{ID: uuid.New(), Number: "ZERO", Type: posting.InvoiceReceivable, InvoiceDate: day(2025, 1, 15)},
		{ID: uuid.New(), Number: "BAD", Type: "credit_memo", InvoiceDate: day(2025, 1, 15), Amount: amt("10")},
	}
	src.leases = []posting.Lease{
		{ID: uuid.New(), TenantName: "Acme", MonthlyRent: amt("1500"), Start: day(2025, 1, 1), End: day(2025, 2, 28)},
	}
	src.payments = []posting.RentPayment{
		{ID: uuid.New(), PaymentDate: day(2025, 1, 5), Amount: amt("1500"), LateFee: amt("50")},
	}
	src.equipment = []posting.Equipment{
		{ID: uuid.New(), Name: "Loader", PurchaseDate: day(2025, 1, 2), PurchaseCost: amt("3600"), UsefulLifeMonths: 36},
	}
	src.maintenance = []posting.MaintenanceCost{
		{ID: uuid.New(), Source: posting.MaintenanceProperty, Date: day(2025, 2, 1), Amount: amt("250"), Paid: true},
	}
	employee := uuid.New()
	src.runs = []posting.PayrollRun{{
		ID:          uuid.New(),
		PeriodStart: day(2025, 1, 6),
		PeriodEnd:   day(2025, 1, 12),
		PayDate:     day(2025, 1, 17),
		Items: []posting.PayrollItem{
			{EmployeeID: employee, HourlyRate: amt("20"), Taxes: amt("100"), EmployerTaxes: amt("60")},
		},
	}}
	for i := 0; i < 5; i++ {
		src.time = append(src.time, payroll.TimeRecord{EmployeeID: employee, WorkDate: day(2025, 1, 6+i), Hours: amt("9"), Approved: true})
	}
	return src
}

func TestRunGeneratesEveryCategory(t *testing.T) {
	src := seededSource()
	store := newMemoryLedger()
	svc := NewService(src, store, staticResolver{m: fullChart()}, nil)
	companyID := uuid.New()

	summary, err := svc.Run(context.Background(), Request{CompanyID: companyID, UserID: uuid.New(), AsOf: day(2025, 3, 15)})
	require.NoError(t, err)

	require.Equal(t, Tally{Generated: 3, Skipped: 2}, summary.Categories[CategoryInvoices])
	require.Equal(t, Tally{Generated: 2}, summary.Categories[CategoryLeases])
	require.Equal(t, Tally{Generated: 1}, summary.Categories[CategoryRentPayments])
	require.Equal(t, Tally{Generated: 1}, summary.Categories[CategoryEquipment])
	require.Equal(t, Tally{Generated: 2}, summary.Categories[CategoryDepreciation])
	require.Equal(t, Tally{Generated: 1}, summary.Categories[CategoryMaintenance])
	require.Equal(t, Tally{Generated: 1}, summary.Categories[CategoryPayroll])
	require.Equal(t, Tally{Generated: 3}, summary.Categories[CategoryDeferrals])
	require.EqualValues(t, 14, summary.Promoted)

	for ref, e := range store.entries {
		require.Equal(t, ledger.EntryStatusPosted, e.status, ref)
		debit, credit := e.draft.Totals()
		require.True(t, debit.Equal(credit), ref)
	}

	// 45 hours in one ISO week: 40 regular, 5 overtime at 1.5x.
	run := src.runs[0]
	items := src.savedItems[run.ID]
	require.Len(t, items, 1)
	require.Equal(t, "40.00", items[0].RegularHours.StringFixed(2))
	require.Equal(t, "5.00", items[0].OvertimeHours.StringFixed(2))
	require.Equal(t, "950.00", items[0].Gross.StringFixed(2))
	require.Equal(t, "850.00", items[0].Net.StringFixed(2))
	require.Equal(t, posting.Reference(posting.DomainPayrollRun, run.ID), src.linked[run.ID])

	require.Len(t, src.deferrals, 3)
	for _, row := range src.deferrals {
		require.Equal(t, deferral.StatusRecognized, row.Status)
		require.Equal(t, "300.00", row.Amount.StringFixed(2))
	}
}

func TestRunTwiceIsNoOp(t *testing.T) {
	src := seededSource()
	store := newMemoryLedger()
	svc := NewService(src, store, staticResolver{m: fullChart()}, nil)
	req := Request{CompanyID: uuid.New(), AsOf: day(2025, 3, 15)}

	_, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	before := store.balances()
	count := len(store.entries)

	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.Zero(t, second.Total().Generated)
	require.Zero(t, second.Total().Failed)
	require.Zero(t, second.Promoted)
	require.Len(t, store.entries, count)
	require.Equal(t, before, store.balances())
}

func TestRunOnlyPostsNewEventsAfterPartialFailure(t *testing.T) {
	src := seededSource()
	store := newMemoryLedger()
	svc := NewService(src, store, staticResolver{m: fullChart()}, nil)
	req := Request{CompanyID: uuid.New(), AsOf: day(2025, 3, 15)}

	failing := posting.Reference(posting.DomainRentPayment, src.payments[0].ID)
	store.failRefs[failing] = true
	first, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, Tally{Failed: 1}, first.Categories[CategoryRentPayments])

	delete(store.failRefs, failing)
	second, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, second.Total().Generated)
	require.Equal(t, Tally{Generated: 1}, second.Categories[CategoryRentPayments])
	require.EqualValues(t, 1, second.Promoted)
}

func TestRunContinuesWhenOneCategoryFailsToLoad(t *testing.T) {
	src := seededSource()
	src.leaseErr = errors.New("timeout")
	store := newMemoryLedger()
	svc := NewService(src, store, staticResolver{m: fullChart()}, nil)

	summary, err := svc.Run(context.Background(), Request{CompanyID: uuid.New(), AsOf: day(2025, 3, 15)})
	require.NoError(t, err)
	require.Equal(t, Tally{Failed: 1}, summary.Categories[CategoryLeases])
	require.Equal(t, 3, summary.Categories[CategoryInvoices].Generated)
}

func TestRunFailsWithoutChart(t *testing.T) {
	svc := NewService(newMemorySource(), newMemoryLedger(), staticResolver{err: ledger.ErrMissingAccounts}, nil)
	_, err := svc.Run(context.Background(), Request{CompanyID: uuid.New()})
	require.ErrorIs(t, err, ledger.ErrMissingAccounts)

	_, err = svc.Run(context.Background(), Request{})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRunSkipsEventsForMissingAccounts(t *testing.T) {
	src := seededSource()
	chart := accounts.NewMap(map[accounts.Role]uuid.UUID{
		accounts.RoleCash:    uuid.New(),
		accounts.RoleRevenue: uuid.New(),
	})
	svc := NewService(src, newMemoryLedger(), staticResolver{m: chart}, nil)

	summary, err := svc.Run(context.Background(), Request{CompanyID: uuid.New(), AsOf: day(2025, 3, 15)})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Categories[CategoryInvoices].Generated)
	require.Equal(t, Tally{Skipped: 1}, summary.Categories[CategoryLeases])
	require.Equal(t, Tally{Skipped: 1}, summary.Categories[CategoryMaintenance])
	require.Zero(t, summary.Total().Failed)
}

func TestRunCountsLostInsertRaceAsExisting(t *testing.T) {
	src := seededSource()
	store := newMemoryLedger()
	svc := NewService(src, store, staticResolver{m: fullChart()}, nil)
	companyID := uuid.New()

	run := src.runs[0]
	ref := posting.Reference(posting.DomainPayrollRun, run.ID)
	store.entries[ref] = &memoryEntry{id: uuid.New(), draft: ledger.Draft{CompanyID: companyID, Reference: ref}, status: ledger.EntryStatusPosted}
	store.hidden[ref] = true

	summary, err := svc.Run(context.Background(), Request{CompanyID: companyID, AsOf: day(2025, 3, 15)})
	require.NoError(t, err)
	require.Equal(t, Tally{Existing: 1}, summary.Categories[CategoryPayroll])
	require.Zero(t, summary.Total().Failed)
	require.Equal(t, ref, src.linked[run.ID])
	require.Equal(t, 3, summary.Categories[CategoryInvoices].Generated)
}

func TestRunDoesNotScheduleOverriddenDeferredInvoice(t *testing.T) {
	chart := fullChart()
	override := uuid.New()
	start, end := day(2025, 1, 1), day(2025, 3, 31)
	src := newMemorySource()
	src.invoices = []posting.Invoice{{
		ID:            uuid.New(),
		Number:        "INV-9",
		Type:          posting.InvoiceReceivable,
		Status:        "paid",
		InvoiceDate:   day(2025, 1, 3),
		Amount:        amt("900"),
		GLAccountID:   &override,
		DeferralStart: &start,
		DeferralEnd:   &end,
	}}
	store := newMemoryLedger()
	svc := NewService(src, store, staticResolver{m: chart}, nil)

	summary, err := svc.Run(context.Background(), Request{CompanyID: uuid.New(), AsOf: day(2025, 3, 31)})
	require.NoError(t, err)
	require.Equal(t, Tally{Generated: 1}, summary.Categories[CategoryInvoices])
	require.Equal(t, Tally{}, summary.Categories[CategoryDeferrals])
	require.Empty(t, src.deferrals)

	balances := store.balances()
	deferred, _ := chart.Get(accounts.RoleDeferredRevenue)
	revenue, _ := chart.Get(accounts.RoleRevenue)
	require.Equal(t, "-900.00", balances[override])
	require.NotContains(t, balances, deferred)
	require.NotContains(t, balances, revenue)
}

func TestRunLeavesPayrollWithoutApprovedHoursUntouched(t *testing.T) {
	src := seededSource()
	src.time = nil
	store := newMemoryLedger()
	svc := NewService(src, store, staticResolver{m: fullChart()}, nil)

	summary, err := svc.Run(context.Background(), Request{CompanyID: uuid.New(), AsOf: day(2025, 3, 15)})
	require.NoError(t, err)
	require.Equal(t, Tally{Skipped: 1}, summary.Categories[CategoryPayroll])
	require.Empty(t, src.savedItems)
	require.Empty(t, src.linked)
}
