package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PassLocker serialises ledger passes per company.
type PassLocker interface {
	Acquire(ctx context.Context, key string) (*cache.Lease, error)
}

// CompanyLister enumerates the companies an "all" task fans out to.
type CompanyLister interface {
	ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}

func resolveCompanies(ctx context.Context, lister CompanyLister, scope ledgerScope) ([]uuid.UUID, error) {
	if !scope.all {
		return []uuid.UUID{scope.companyID}, nil
	}
	if lister == nil {
		return nil, errors.New("jobs: company lister not configured")
	}
	return lister.ListCompanyIDs(ctx)
}

// withCompanyLock runs fn while holding the company lock. A held lock skips
// fn and is not an error; the next scheduled run picks the company up.
func withCompanyLock(ctx context.Context, locker PassLocker, metrics *jobmetrics.Metrics, job string, logger *slog.Logger, companyID uuid.UUID, fn func(context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	lease, err := locker.Acquire(ctx, cache.CompanyLockKey(companyID))
	if errors.Is(err, cache.ErrLockHeld) {
		metrics.LockSkipped(job)
		logger.Info("company pass already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		// A cancelled run must still free the key.
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release company lock", slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
