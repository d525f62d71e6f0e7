package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
)

type enqueueCmd struct {
	company string
	user    string
	asOf    string
}

func (*enqueueCmd) Name() string     { return "enqueue" }
func (*enqueueCmd) Synopsis() string { return "queue a backfill or reconcile task for the worker" }
func (*enqueueCmd) Usage() string {
	return `ledgerctl enqueue [-company <id|all>] [-user <id>] [-as-of YYYY-MM-DD] backfill|reconcile
`
}

func (c *enqueueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.company, "company", "all", "Company id, or \"all\".")
	f.StringVar(&c.user, "user", "", "User id recorded as the entries' creator.")
	f.StringVar(&c.asOf, "as-of", "", "Backfill cut-off date.")
}

func (c *enqueueCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
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
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	jc := NewJobsCLI(cfg.RedisAddr)
	defer jc.Close()

	info, err := jc.Trigger(ctx, f.Arg(0), c.company, userID, asOf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return subcommands.ExitSuccess
}

type queueCmd struct {
	scheduled int
}

func (*queueCmd) Name() string     { return "queue" }
func (*queueCmd) Synopsis() string { return "show ledger queue depth and schedules" }
func (*queueCmd) Usage() string {
	return `ledgerctl queue [-scheduled N]
`
}

func (c *queueCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.scheduled, "scheduled", 10, "How many scheduled tasks to list.")
}

func (c *queueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	jc := NewJobsCLI(cfg.RedisAddr)
	defer jc.Close()

	stats, err := jc.InspectQueue()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("queue %s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if entries, err := jc.ListCronEntries(); err == nil && len(entries) > 0 {
		fmt.Fprintln(tw, "CRON\tTASK\tNEXT")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Spec, e.Task.Type(), e.Next.Format(time.RFC3339))
		}
	}
	tasks, err := jc.ListScheduled(c.scheduled)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if len(tasks) > 0 {
		fmt.Fprintln(tw, "SCHEDULED\tTASK\tAT")
		for _, t := range tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
		}
	}
	_ = tw.Flush()
	return subcommands.ExitSuccess
}
