package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/deferral"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/payroll"
	"github.com/odyssey-erp/odyssey-ledger/internal/posting"
)

// SourcePort loads eligible business events for a company and writes the
// few back-links the ledger keeps on source rows.
type SourcePort interface {
	Invoices(ctx context.Context, companyID uuid.UUID) ([]posting.Invoice, error)
	Leases(ctx context.Context, companyID uuid.UUID) ([]posting.Lease, error)
	RentPayments(ctx context.Context, companyID uuid.UUID) ([]posting.RentPayment, error)
	Equipment(ctx context.Context, companyID uuid.UUID) ([]posting.Equipment, error)
	MaintenanceCosts(ctx context.Context, companyID uuid.UUID) ([]posting.MaintenanceCost, error)
	PayrollRuns(ctx context.Context, companyID uuid.UUID) ([]posting.PayrollRun, error)
	TimeRecords(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]payroll.TimeRecord, error)
	SavePayrollItems(ctx context.Context, runID uuid.UUID, items []posting.PayrollItem) error
	LinkPayrollRun(ctx context.Context, companyID, runID uuid.UUID, reference string) error
	DeferralRows(ctx context.Context, companyID uuid.UUID) ([]deferral.Row, error)
	CreateDeferralRows(ctx context.Context, companyID uuid.UUID, rows []deferral.Row) error
	MarkRecognized(ctx context.Context, invoiceID uuid.UUID, date time.Time) error
}

// LedgerPort is the subset of the ledger store the orchestrator writes to.
type LedgerPort interface {
	ExistingReferences(ctx context.Context, companyID uuid.UUID, refs []string) (map[string]bool, error)
	InsertEntry(ctx context.Context, d ledger.Draft, status ledger.EntryStatus) ledger.InsertResult
	PromoteDrafts(ctx context.Context, companyID uuid.UUID) (int64, error)
}

// AccountResolver produces the role map for a company.
type AccountResolver interface {
	Resolve(ctx context.Context, companyID uuid.UUID) (accounts.Map, error)
}

// Request scopes one backfill pass.
type Request struct {
	CompanyID uuid.UUID
	UserID    uuid.UUID
	AsOf      time.Time
}

// ErrInvalidRequest is returned for a request without a company.
var ErrInvalidRequest = errors.New("backfill: company required")

// Service generates, guards and inserts journal entries for every event type.
type Service struct {
	source   SourcePort
	ledger   LedgerPort
	resolver AccountResolver
	validate *validator.Validate
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService wires the orchestrator.
func NewService(source SourcePort, store LedgerPort, resolver AccountResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:   source,
		ledger:   store,
		resolver: resolver,
		validate: validator.New(),
		logger:   logger,
		clock:    time.Now,
	}
}

// candidate is one draft awaiting the guard. after runs once the reference is
// known to be in the ledger, whether this pass inserted it or not.
type candidate struct {
	eventID uuid.UUID
	draft   ledger.Draft
	after   func(ctx context.Context, res ledger.InsertResult) error
}

type pass struct {
	category Category
	run      func(ctx context.Context, env passEnv) ([]candidate, Tally, error)
}

type passEnv struct {
	req   Request
	accts accounts.Map
}

// Run executes every pass for the company concurrently, then promotes the
// company's drafts in one statement. Only account resolution and promotion
// abort the run; per-event problems are counted in the summary.
func (s *Service) Run(ctx context.Context, req Request) (Summary, error) {
	if req.CompanyID == uuid.Nil {
		return Summary{}, ErrInvalidRequest
	}
	if req.AsOf.IsZero() {
		req.AsOf = s.clock()
	}
	summary := Summary{Categories: make(map[Category]Tally, len(Categories)), StartedAt: s.clock()}
	logger := s.logger.With(slog.String("company_id", req.CompanyID.String()))

	accts, err := s.resolver.Resolve(ctx, req.CompanyID)
	if err != nil {
		return summary, fmt.Errorf("backfill: resolve accounts: %w", err)
	}
	env := passEnv{req: req, accts: accts}

	passes := []pass{
		{CategoryInvoices, s.invoicePass},
		{CategoryLeases, s.leasePass},
		{CategoryRentPayments, s.rentPass},
		{CategoryEquipment, s.equipmentPass},
		{CategoryDepreciation, s.depreciationPass},
		{CategoryMaintenance, s.maintenancePass},
		{CategoryPayroll, s.payrollPass},
		{CategoryDeferrals, s.deferralPass},
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range passes {
		g.Go(func() error {
			tally := s.runPass(gctx, logger, env, p)
			mu.Lock()
			summary.Categories[p.category] = tally
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	promoted, err := s.ledger.PromoteDrafts(ctx, req.CompanyID)
	if err != nil {
		return summary, fmt.Errorf("backfill: promote drafts: %w", err)
	}
	summary.Promoted = promoted
	summary.FinishedAt = s.clock()

	total := summary.Total()
	logger.Info("backfill complete",
		slog.Int("generated", total.Generated),
		slog.Int("existing", total.Existing),
		slog.Int("skipped", total.Skipped),
		slog.Int("failed", total.Failed),
		slog.Int64("promoted", promoted))
	return summary, nil
}

func (s *Service) runPass(ctx context.Context, logger *slog.Logger, env passEnv, p pass) Tally {
	logger = logger.With(slog.String("category", string(p.category)))
	candidates, tally, err := p.run(ctx, env)
	if err != nil {
		logger.Error("load events failed", slog.Any("error", err))
		tally.Failed++
		return tally
	}
	if len(candidates) == 0 {
		return tally
	}

	refs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		refs = append(refs, c.draft.Reference)
	}
	existing, err := s.ledger.ExistingReferences(ctx, env.req.CompanyID, refs)
	if err != nil {
		logger.Error("reference lookup failed", slog.Any("error", err))
		tally.Failed += len(candidates)
		return tally
	}

	for _, c := range candidates {
		res := ledger.ExistsResult()
		if !existing[c.draft.Reference] {
			res = s.ledger.InsertEntry(ctx, c.draft, ledger.EntryStatusDraft)
		}
		tally.Add(res.Outcome)
		if res.Outcome == ledger.Failed {
			logger.Error("insert entry failed",
				slog.String("event_id", c.eventID.String()),
				slog.String("reference", c.draft.Reference),
				slog.Any("error", res.Err))
			continue
		}
		if c.after == nil {
			continue
		}
		if err := c.after(ctx, res); err != nil {
			logger.Warn("post-insert update failed",
				slog.String("event_id", c.eventID.String()),
				slog.String("reference", c.draft.Reference),
				slog.Any("error", err))
		}
	}
	return tally
}

// valid reports whether ev passes its struct tags, logging the reason when
// it does not.
func (s *Service) valid(ctx context.Context, category Category, id uuid.UUID, ev any) bool {
	if err := s.validate.StructCtx(ctx, ev); err != nil {
		s.logger.Warn("skipping invalid event",
			slog.String("category", string(category)),
			slog.String("event_id", id.String()),
			slog.Any("error", err))
		return false
	}
	return true
}

func (s *Service) invoicePass(ctx context.Context, env passEnv) ([]candidate, Tally, error) {
	var tally Tally
	invoices, err := s.source.Invoices(ctx, env.req.CompanyID)
	if err != nil {
		return nil, tally, err
	}
	var out []candidate
	for _, inv := range invoices {
		if !s.valid(ctx, CategoryInvoices, inv.ID, inv) {
			tally.Skipped++
			continue
		}
		d, ok := posting.InvoiceEntry(env.req.CompanyID, env.req.UserID, inv, env.accts)
		if !ok {
			tally.Skipped++
			continue
		}
		out = append(out, candidate{eventID: inv.ID, draft: d})
	}
	return out, tally, nil
}

func (s *Service) leasePass(ctx context.Context, env passEnv) ([]candidate, Tally, error) {
	var tally Tally
	leases, err := s.source.Leases(ctx, env.req.CompanyID)
	if err != nil {
		return nil, tally, err
	}
	var out []candidate
	for _, lease := range leases {
		if !s.valid(ctx, CategoryLeases, lease.ID, lease) {
			tally.Skipped++
			continue
		}
		drafts := posting.LeaseEntries(env.req.CompanyID, env.req.UserID, lease, env.accts)
		if len(drafts) == 0 {
			tally.Skipped++
			continue
		}
		for _, d := range drafts {
			out = append(out, candidate{eventID: lease.ID, draft: d})
		}
	}
	return out, tally, nil
}

func (s *Service) rentPass(ctx context.Context, env passEnv) ([]candidate, Tally, error) {
	var tally Tally
	payments, err := s.source.RentPayments(ctx, env.req.CompanyID)
	if err != nil {
		return nil, tally, err
	}
	var out []candidate
	for _, p := range payments {
		if !s.valid(ctx, CategoryRentPayments, p.ID, p) {
			tally.Skipped++
			continue
		}
		d, ok := posting.RentPaymentEntry(env.req.CompanyID, env.req.UserID, p, env.accts)
		if !ok {
			tally.Skipped++
			continue
		}
		out = append(out, candidate{eventID: p.ID, draft: d})
	}
	return out, tally, nil
}

func (s *Service) equipmentPass(ctx context.Context, env passEnv) ([]candidate, Tally, error) {
	var tally Tally
	items, err := s.source.Equipment(ctx, env.req.CompanyID)
	if err != nil {
		return nil, tally, err
	}
	var out []candidate
	for _, eq := range items {
		if !s.valid(ctx, CategoryEquipment, eq.ID, eq) {
			tally.Skipped++
			continue
		}
		d, ok := posting.EquipmentPurchaseEntry(env.req.CompanyID, env.req.UserID, eq, env.accts)
		if !ok {
			tally.Skipped++
			continue
		}
		out = append(out, candidate{eventID: eq.ID, draft: d})
	}
	return out, tally, nil
}

func (s *Service) depreciationPass(ctx context.Context, env passEnv) ([]candidate, Tally, error) {
	var tally Tally
	items, err := s.source.Equipment(ctx, env.req.CompanyID)
	if err != nil {
		return nil, tally, err
	}
	var out []candidate
	for _, eq := range items {
		if !s.valid(ctx, CategoryDepreciation, eq.ID, eq) {
			tally.Skipped++
			continue
		}
		drafts := posting.DepreciationEntries(env.req.CompanyID, env.req.UserID, eq, env.req.AsOf, env.accts)
		if len(drafts) == 0 {
			tally.Skipped++
			continue
		}
		for _, d := range drafts {
			out = append(out, candidate{eventID: eq.ID, draft: d})
		}
	}
	return out, tally, nil
}

func (s *Service) maintenancePass(ctx context.Context, env passEnv) ([]candidate, Tally, error) {
	var tally Tally
	costs, err := s.source.MaintenanceCosts(ctx, env.req.CompanyID)
	if err != nil {
		return nil, tally, err
	}
	var out []candidate
	for _, m := range costs {
		if !s.valid(ctx, CategoryMaintenance, m.ID, m) {
			tally.Skipped++
			continue
		}
		d, ok := posting.MaintenanceEntry(env.req.CompanyID, env.req.UserID, m, env.accts)
		if !ok {
			tally.Skipped++
			continue
		}
		out = append(out, candidate{eventID: m.ID, draft: d})
	}
	return out, tally, nil
}

func (s *Service) payrollPass(ctx context.Context, env passEnv) ([]candidate, Tally, error) {
	var tally Tally
	runs, err := s.source.PayrollRuns(ctx, env.req.CompanyID)
	if err != nil {
		return nil, tally, err
	}
	var out []candidate
	for _, run := range runs {
		if !s.valid(ctx, CategoryPayroll, run.ID, run) {
			tally.Skipped++
			continue
		}
		filled, err := s.fillPayrollHours(ctx, env.req.CompanyID, run)
		if err != nil {
			s.logger.Error("payroll hours split failed",
				slog.String("event_id", run.ID.String()),
				slog.Any("error", err))
			tally.Failed++
			continue
		}
		d, ok := posting.PayrollEntry(env.req.CompanyID, env.req.UserID, filled, env.accts)
		if !ok {
			tally.Skipped++
			continue
		}
		companyID, runID, ref := env.req.CompanyID, run.ID, d.Reference
		out = append(out, candidate{
			eventID: run.ID,
			draft:   d,
			after: func(ctx context.Context, _ ledger.InsertResult) error {
				return s.source.LinkPayrollRun(ctx, companyID, runID, ref)
			},
		})
	}
	return out, tally, nil
}

// fillPayrollHours computes hours and gross pay for items that carry an
// hourly rate but no gross yet, using the run's approved time records.
func (s *Service) fillPayrollHours(ctx context.Context, companyID uuid.UUID, run posting.PayrollRun) (posting.PayrollRun, error) {
	pending := false
	for _, it := range run.Items {
		if it.Gross.IsZero() && it.HourlyRate.IsPositive() {
			pending = true
			break
		}
	}
	if !pending {
		return run, nil
	}
	records, err := s.source.TimeRecords(ctx, companyID, run.PeriodStart, run.PeriodEnd)
	if err != nil {
		return run, err
	}
	hours := payroll.Split(records, run.PeriodStart, run.PeriodEnd)

	items := make([]posting.PayrollItem, len(run.Items))
	copy(items, run.Items)
	changed := false
	for i, it := range items {
		if !it.Gross.IsZero() || !it.HourlyRate.IsPositive() {
			continue
		}
		h := hours[it.EmployeeID]
		gross := payroll.Gross(h, it.HourlyRate, payroll.DefaultOvertimeMultiplier)
		// No approved hours yet; leave the item for a later pass.
		if !gross.IsPositive() {
			continue
		}
		it.RegularHours = h.Regular
		it.OvertimeHours = h.Overtime
		it.Gross = gross
		it.Net = ledger.Round(gross.Sub(it.Taxes).Sub(it.Deductions))
		items[i] = it
		changed = true
	}
	if !changed {
		return run, nil
	}
	if err := s.source.SavePayrollItems(ctx, run.ID, items); err != nil {
		return run, err
	}
	run.Items = items
	return run, nil
}

func (s *Service) deferralPass(ctx context.Context, env passEnv) ([]candidate, Tally, error) {
	var tally Tally
	companyID := env.req.CompanyID
	rows, err := s.source.DeferralRows(ctx, companyID)
	if err != nil {
		return nil, tally, err
	}
	scheduled := make(map[uuid.UUID]bool)
	for _, row := range rows {
		scheduled[row.InvoiceID] = true
	}

	invoices, err := s.source.Invoices(ctx, companyID)
	if err != nil {
		return nil, tally, err
	}
	for _, inv := range invoices {
		if scheduled[inv.ID] || !posting.DefersRevenue(inv, env.accts) {
			continue
		}
		created := deferral.ForInvoice(inv.ID, ledger.Round(inv.Amount), *inv.DeferralStart, *inv.DeferralEnd)
		if len(created) == 0 {
			continue
		}
		if err := s.source.CreateDeferralRows(ctx, companyID, created); err != nil {
			s.logger.Error("create deferral schedule failed",
				slog.String("event_id", inv.ID.String()),
				slog.Any("error", err))
			tally.Failed++
			continue
		}
		rows = append(rows, created...)
	}

	var out []candidate
	for _, row := range deferral.Due(rows, env.req.AsOf) {
		d, ok := posting.DeferralRecognitionEntry(companyID, env.req.UserID, row, env.accts)
		if !ok {
			tally.Skipped++
			continue
		}
		invoiceID, date := row.InvoiceID, row.Date
		out = append(out, candidate{
			eventID: row.InvoiceID,
			draft:   d,
			after: func(ctx context.Context, _ ledger.InsertResult) error {
				return s.source.MarkRecognized(ctx, invoiceID, date)
			},
		})
	}
	return out, tally, nil
}
