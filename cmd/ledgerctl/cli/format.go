package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-ledger/internal/backfill"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/reconcile"
)

var printer = message.NewPrinter(language.English)

// formatAmount renders v with thousands separators and two decimals.
func formatAmount(v decimal.Decimal) string {
	cents := ledger.Cents(v)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + printer.Sprintf("%d", cents/100) + fmt.Sprintf(".%02d", cents%100)
}

func writeSummary(w io.Writer, companyID uuid.UUID, s backfill.Summary) error {
	printer.Fprintf(w, "company %s\n", companyID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	printer.Fprintf(tw, "category\tgenerated\texisting\tskipped\tfailed\t\n")
	for _, c := range s.Sorted() {
		t := s.Categories[c]
		printer.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t\n", c, t.Generated, t.Existing, t.Skipped, t.Failed)
	}
	total := s.Total()
	printer.Fprintf(tw, "total\t%d\t%d\t%d\t%d\t\n", total.Generated, total.Existing, total.Skipped, total.Failed)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := printer.Fprintf(w, "promoted %d draft entries\n", s.Promoted)
	return err
}

func writeResult(w io.Writer, companyID uuid.UUID, r reconcile.Result) error {
	printer.Fprintf(w, "company %s\n", companyID)
	printer.Fprintf(w, "linked banks:       %d\n", r.Linked)
	printer.Fprintf(w, "reclassified banks: %d\n", r.Reclassified)
	if r.Adjusted {
		printer.Fprintf(w, "equity adjustment:  %s\n", formatAmount(r.AdjustmentAmount))
	}
	printer.Fprintf(w, "cash balance:       %s\n", formatAmount(r.CashBalance))
	printer.Fprintf(w, "sub-account total:  %s\n", formatAmount(r.SubAccountTotal))
	if len(r.Updates) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, u := range r.Updates {
			printer.Fprintf(tw, "  %s\t%s\t\n", u.BankID, formatAmount(u.Balance))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if r.EqualSplit {
		printer.Fprintf(w, "warning: banks had no prior balances, remainder split equally\n")
	}
	for _, f := range r.Failures {
		printer.Fprintf(w, "failed: %s\n", f.Error())
	}
	return nil
}
