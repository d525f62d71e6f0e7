package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/backfill"
)

type backfillCmd struct {
	company string
	user    string
	asOf    string
	noLock  bool
}

func (*backfillCmd) Name() string     { return "backfill" }
func (*backfillCmd) Synopsis() string { return "generate missing journal entries from historical events" }
func (*backfillCmd) Usage() string {
	return `ledgerctl backfill -company <id|all> [-user <id>] [-as-of YYYY-MM-DD] [-no-lock]

  Runs every generator pass for the company, inserts the entries that are not
  in the ledger yet and promotes drafts to posted. Safe to rerun.
`
}

func (c *backfillCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.company, "company", "", "Company id, or \"all\" for every company with a chart.")
	f.StringVar(&c.user, "user", "", "User id recorded as the entries' creator.")
	f.StringVar(&c.asOf, "as-of", "", "Cut-off date for depreciation and recognition (defaults to today).")
	f.BoolVar(&c.noLock, "no-lock", false, "Skip the redis company lock.")
}

func (c *backfillCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	userID, err := parseUser(c.user)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	var asOf time.Time
	if c.asOf != "" {
		if asOf, err = time.Parse("2006-01-02", c.asOf); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -as-of: %v\n", err)
			return subcommands.ExitUsageError
		}
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
	svc := backfill.NewService(backfill.NewSource(e.pool), e.ledger, e.resolver, e.logger)
	failed := runBackfill(ctx, os.Stdout, e, svc, companies, userID, asOf)
	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type backfiller interface {
	Run(ctx context.Context, req backfill.Request) (backfill.Summary, error)
}

type lockRunner interface {
	locked(ctx context.Context, companyID uuid.UUID, fn func() error) error
}

// runBackfill runs each company in turn and returns how many failed.
func runBackfill(ctx context.Context, w io.Writer, locks lockRunner, svc backfiller, companies []uuid.UUID, userID uuid.UUID, asOf time.Time) int {
	failed := 0
	for _, companyID := range companies {
		err := locks.locked(ctx, companyID, func() error {
			summary, err := svc.Run(ctx, backfill.Request{CompanyID: companyID, UserID: userID, AsOf: asOf})
			if err != nil {
				return err
			}
			return writeSummary(w, companyID, summary)
		})
		if err != nil {
			fmt.Fprintf(w, "company %s: %v\n", companyID, err)
			failed++
		}
	}
	return failed
}
