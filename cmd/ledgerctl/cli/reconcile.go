package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/reconcile"
)

type reconcileCmd struct {
	company     string
	user        string
	noProvision bool
	noLock      bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "reconcile bank balances with the cash ledger" }
func (*reconcileCmd) Usage() string {
	return `ledgerctl reconcile -company <id|all> [-user <id>] [-no-provision] [-no-lock]

  Links banks to cash sub-accounts, books opening-balance reclassifications,
  offsets a negative cash control balance against opening balance equity and
  spreads the remaining cash over unlinked banks.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.company, "company", "", "Company id, or \"all\" for every company with a chart.")
	f.StringVar(&c.user, "user", "", "User id recorded as the entries' creator.")
	f.BoolVar(&c.noProvision, "no-provision", false, "Do not create cash sub-accounts for unlinked banks.")
	f.BoolVar(&c.noLock, "no-lock", false, "Skip the redis company lock.")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	userID, err := parseUser(c.user)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, c.noLock)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	companies, err := resolveCompanies(ctx, e.ledger, c.company)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	provision := e.cfg.ProvisionBankSubAccounts && !c.noProvision
	engine := reconcile.NewEngine(reconcile.NewRepository(e.pool), e.ledger, e.resolver,
		reconcile.Options{ProvisionSubAccounts: provision}, e.logger)
	if failed := runReconcile(ctx, os.Stdout, e, engine, companies, userID); failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type reconciler interface {
	Run(ctx context.Context, companyID, userID uuid.UUID) (reconcile.Result, error)
}

// runReconcile returns how many companies failed outright. Per-bank failures
// are printed but do not count.
func runReconcile(ctx context.Context, w io.Writer, locks lockRunner, engine reconciler, companies []uuid.UUID, userID uuid.UUID) int {
	failed := 0
	for _, companyID := range companies {
		err := locks.locked(ctx, companyID, func() error {
			result, err := engine.Run(ctx, companyID, userID)
			if err != nil {
				return err
			}
			return writeResult(w, companyID, result)
		})
		if err != nil {
			fmt.Fprintf(w, "company %s: %v\n", companyID, err)
			failed++
		}
	}
	return failed
}
