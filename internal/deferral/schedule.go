package deferral

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates schedule row states.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusRecognized Status = "recognized"
)

// Row is one month of a deferred-revenue schedule.
type Row struct {
	InvoiceID uuid.UUID
	Date      time.Time
	Amount    decimal.Decimal
	Status    Status
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Months counts calendar months from start to end inclusive. It returns 0
// when end precedes start.
func Months(start, end time.Time) int {
	s, e := MonthStart(start), MonthStart(end)
	if e.Before(s) {
		return 0
	}
	return (e.Year()-s.Year())*12 + int(e.Month()-s.Month()) + 1
}

// Schedule spreads total over every calendar month between start and end,
// inclusive. Each row carries total/months truncated to cents except the last,
// which absorbs the remainder so the rows sum to total exactly and the last
// row is never smaller than the others. All rows are
// returned as scheduled; recognition is tracked by the caller.
func Schedule(total decimal.Decimal, start, end time.Time) []Row {
	n := Months(start, end)
	if n == 0 || total.IsZero() {
		return nil
	}
	per := total.Round(2).Div(decimal.NewFromInt(int64(n))).Truncate(2)
	rows := make([]Row, 0, n)
	allocated := decimal.Zero
	first := MonthStart(start)
	for i := 0; i < n; i++ {
		amount := per
		if i == n-1 {
			amount = total.Round(2).Sub(allocated)
		}
		rows = append(rows, Row{
			Date:   first.AddDate(0, i, 0),
			Amount: amount,
			Status: StatusScheduled,
		})
		allocated = allocated.Add(amount)
	}
	return rows
}

// ForInvoice is Schedule with the invoice id stamped on each row.
func ForInvoice(invoiceID uuid.UUID, total decimal.Decimal, start, end time.Time) []Row {
	rows := Schedule(total, start, end)
	for i := range rows {
		rows[i].InvoiceID = invoiceID
	}
	return rows
}

// Due returns the scheduled rows dated on or before asOf. Recognized rows are
// never returned, so re-running recognition cannot touch them.
func Due(rows []Row, asOf time.Time) []Row {
	var out []Row
	for _, row := range rows {
		if row.Status != StatusScheduled {
			continue
		}
		if row.Date.After(asOf) {
			continue
		}
		out = append(out, row)
	}
	return out
}
