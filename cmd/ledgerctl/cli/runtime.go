package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Commands run ledger passes in-process.
var Commands = []subcommands.Command{
	&backfillCmd{},
	&reconcileCmd{},
}

// QueueCommands talk to the asynq queue served by the worker.
var QueueCommands = []subcommands.Command{
	&enqueueCmd{},
	&queueCmd{},
}

// env holds the connections a ledger command needs.
type env struct {
	cfg      *app.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	ledger   *ledger.Repository
	resolver *accounts.Resolver
	locker   *cache.Locker
}

// openEnv connects to Postgres and, unless noLock is set, Redis.
func openEnv(ctx context.Context, noLock bool) (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg)
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, pool: pool, ledger: ledger.NewRepository(pool)}
	e.resolver = accounts.NewResolver(e.ledger, logger)
	if !noLock {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w (use -no-lock to run without redis)", err)
		}
		e.redis = client
		e.locker = cache.NewLocker(client, cfg.PassLockTTL)
	}
	return e, nil
}

func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	e.pool.Close()
}

// locked runs fn under the company lock when a locker is configured.
func (e *env) locked(ctx context.Context, companyID uuid.UUID, fn func() error) error {
	if e.locker == nil {
		return fn()
	}
	lease, err := e.locker.Acquire(ctx, cache.CompanyLockKey(companyID))
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("release company lock", slog.Any("error", err))
		}
	}()
	return fn()
}

type companyLister interface {
	ListCompanyIDs(ctx context.Context) ([]uuid.UUID, error)
}

// resolveCompanies expands -company: a UUID or "all".
func resolveCompanies(ctx context.Context, lister companyLister, value string) ([]uuid.UUID, error) {
	value = strings.TrimSpace(value)
	switch value {
	case "":
		return nil, errors.New("-company is required (a company id or \"all\")")
	case "all":
		return lister.ListCompanyIDs(ctx)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("invalid -company %q: %w", value, err)
	}
	return []uuid.UUID{id}, nil
}

func parseUser(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid -user %q: %w", value, err)
	}
	return id, nil
}
