package backfill

import (
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Category names one generator pass.
type Category string

const (
	CategoryInvoices     Category = "invoices"
	CategoryLeases       Category = "leases"
	CategoryRentPayments Category = "rent_payments"
	CategoryEquipment    Category = "equipment"
	CategoryDepreciation Category = "depreciation"
	CategoryMaintenance  Category = "maintenance"
	CategoryPayroll      Category = "payroll"
	CategoryDeferrals    Category = "deferrals"
)

// Categories lists every pass in reporting order.
var Categories = []Category{
	CategoryInvoices,
	CategoryLeases,
	CategoryRentPayments,
	CategoryEquipment,
	CategoryDepreciation,
	CategoryMaintenance,
	CategoryPayroll,
	CategoryDeferrals,
}

// Tally counts what happened to the candidate entries of one category.
// Generated counts new rows, Existing counts references already in the
// ledger, Skipped counts events that produced no draft.
type Tally struct {
	Generated int
	Skipped   int
	Existing  int
	Failed    int
}

// Add folds an insert outcome into the tally.
func (t *Tally) Add(outcome ledger.InsertOutcome) {
	switch outcome {
	case ledger.Inserted:
		t.Generated++
	case ledger.AlreadyExists:
		t.Existing++
	default:
		t.Failed++
	}
}

// Summary is the result of one backfill pass for a company.
type Summary struct {
	Categories map[Category]Tally
	Promoted   int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Total sums every category.
func (s Summary) Total() Tally {
	var total Tally
	for _, t := range s.Categories {
		total.Generated += t.Generated
		total.Skipped += t.Skipped
		total.Existing += t.Existing
		total.Failed += t.Failed
	}
	return total
}

// Sorted returns the categories present in the summary in reporting order,
// followed by any unknown ones alphabetically.
func (s Summary) Sorted() []Category {
	known := make(map[Category]bool, len(Categories))
	out := make([]Category, 0, len(s.Categories))
	for _, c := range Categories {
		known[c] = true
		if _, ok := s.Categories[c]; ok {
			out = append(out, c)
		}
	}
	var extra []Category
	for c := range s.Categories {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
