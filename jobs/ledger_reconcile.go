package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/reconcile"
)

// Reconciler runs one bank reconciliation pass for a company.
type Reconciler interface {
	Run(ctx context.Context, companyID, userID uuid.UUID) (reconcile.Result, error)
}

// ReconcileJob handles ledger:reconcile tasks.
type ReconcileJob struct {
	Engine    Reconciler
	Companies CompanyLister
	Locker    PassLocker
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewReconcileJob constructs the reconciliation handler.
func NewReconcileJob(engine Reconciler, companies CompanyLister, locker PassLocker, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Engine: engine, Companies: companies, Locker: locker, Logger: logger, Metrics: metrics}
}

// Handle reconciles every company in the task scope. Per-bank failures are
// logged and counted; only a failed pass fails the task.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Engine == nil {
		return errors.New("ledger reconcile: engine not configured")
	}
	scope, err := decodeLedgerPayload(t.Payload())
	if err != nil {
		j.log().Warn("rejecting task", slog.Any("error", err))
		return err
	}

	tracker := j.metrics().Track(TaskLedgerReconcile)
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

	start := time.Now()
	var errs []error
	for _, companyID := range companies {
		if err := j.runCompany(ctx, companyID, scope.userID); err != nil {
			errs = append(errs, err)
		}
	}
	resultErr = errors.Join(errs...)
	j.log().Info("reconcile task finished",
		slog.Int("companies", len(companies)),
		slog.Int("failed_companies", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ReconcileJob) runCompany(ctx context.Context, companyID, userID uuid.UUID) error {
	logger := j.log().With(slog.String("company_id", companyID.String()))
	return withCompanyLock(ctx, j.Locker, j.metrics(), TaskLedgerReconcile, logger, companyID, func(ctx context.Context) error {
		result, err := j.Engine.Run(ctx, companyID, userID)
		if err != nil {
			logger.Error("reconciliation failed", slog.Any("error", err))
			return err
		}
		steps := make(map[reconcile.Step]int)
		for _, f := range result.Failures {
			steps[f.Step]++
		}
		for step, n := range steps {
			j.metrics().AddReconciliationFailures(string(step), n)
		}
		logger.Info("reconciled",
			slog.Int("linked", result.Linked),
			slog.Int("reclassified", result.Reclassified),
			slog.Bool("equity_adjusted", result.Adjusted),
			slog.String("cash_balance", result.CashBalance.StringFixed(2)),
			slog.Int("banks_updated", len(result.Updates)),
			slog.Int("failures", len(result.Failures)))
		return nil
	})
}

func (j *ReconcileJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReconcileJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerReconcile))
	}
	return slog.Default().With(slog.String("job", TaskLedgerReconcile))
}
