package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/backfill"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// Backfiller runs one backfill pass for a company.
type Backfiller interface {
	Run(ctx context.Context, req backfill.Request) (backfill.Summary, error)
}

// BackfillJob handles ledger:backfill tasks.
type BackfillJob struct {
	Service   Backfiller
	Companies CompanyLister
	Locker    PassLocker
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewBackfillJob constructs the backfill handler.
func NewBackfillJob(service Backfiller, companies CompanyLister, locker PassLocker, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackfillJob {
	return &BackfillJob{
		Service:   service,
		Companies: companies,
		Locker:    locker,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle runs the backfill for every company in the task scope. One failing
// company does not stop the others; the joined error triggers a retry, which
// is safe because inserts are idempotent.
func (j *BackfillJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("ledger backfill: service not configured")
	}
	scope, err := decodeLedgerPayload(t.Payload())
	if err != nil {
		j.log().Warn("rejecting task", slog.Any("error", err))
		return err
	}

	tracker := j.metrics().Track(TaskLedgerBackfill)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	companies, err := resolveCompanies(ctx, j.Companies, scope)
	if err != nil {
		resultErr = err
		j.log().Error("list companies", slog.Any("error", err))
		return resultErr
	}

	start := j.now()
	var errs []error
	for _, companyID := range companies {
		if err := j.runCompany(ctx, companyID, scope); err != nil {
			errs = append(errs, err)
		}
	}
	resultErr = errors.Join(errs...)
	j.log().Info("backfill task finished",
		slog.Int("companies", len(companies)),
		slog.Int("failed_companies", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *BackfillJob) runCompany(ctx context.Context, companyID uuid.UUID, scope ledgerScope) error {
	logger := j.log().With(slog.String("company_id", companyID.String()))
	return withCompanyLock(ctx, j.Locker, j.metrics(), TaskLedgerBackfill, logger, companyID, func(ctx context.Context) error {
		summary, err := j.Service.Run(ctx, backfill.Request{CompanyID: companyID, UserID: scope.userID, AsOf: scope.asOf})
		j.record(summary)
		if err != nil {
			logger.Error("backfill failed", slog.Any("error", err))
			return err
		}
		return nil
	})
}

func (j *BackfillJob) record(summary backfill.Summary) {
	m := j.metrics()
	for _, category := range summary.Sorted() {
		tally := summary.Categories[category]
		m.AddEntries(string(category), "generated", tally.Generated)
		m.AddEntries(string(category), "existing", tally.Existing)
		m.AddEntries(string(category), "skipped", tally.Skipped)
		m.AddEntries(string(category), "failed", tally.Failed)
	}
}

func (j *BackfillJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *BackfillJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerBackfill))
	}
	return slog.Default().With(slog.String("job", TaskLedgerBackfill))
}

func (j *BackfillJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
