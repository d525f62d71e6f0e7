package payroll

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WeeklyRegularLimit is the number of hours per ISO week paid at the regular rate.
var WeeklyRegularLimit = decimal.NewFromInt(40)

// TimeRecord is a single approved-or-not time entry.
type TimeRecord struct {
	EmployeeID uuid.UUID
	WorkDate   time.Time
	Hours      decimal.Decimal
	Approved   bool
}

// Hours holds split totals for an employee.
type Hours struct {
	Regular  decimal.Decimal
	Overtime decimal.Decimal
}

// Total returns regular plus overtime.
func (h Hours) Total() decimal.Decimal {
	return h.Regular.Add(h.Overtime)
}

type weekKey struct {
	employee uuid.UUID
	year     int
	week     int
}

// Split groups approved records dated within [from, to] by employee and ISO
// week. Up to 40 hours per week are regular, the rest overtime. A zero from
// or to leaves that side of the window open.
func Split(records []TimeRecord, from, to time.Time) map[uuid.UUID]Hours {
	weeks := make(map[weekKey]decimal.Decimal)
	for _, rec := range records {
		if !rec.Approved || !rec.Hours.IsPositive() {
			continue
		}
		day := dateOnly(rec.WorkDate)
		if !from.IsZero() && day.Before(dateOnly(from)) {
			continue
		}
		if !to.IsZero() && day.After(dateOnly(to)) {
			continue
		}
		year, week := day.ISOWeek()
		key := weekKey{employee: rec.EmployeeID, year: year, week: week}
		weeks[key] = weeks[key].Add(rec.Hours)
	}

	out := make(map[uuid.UUID]Hours)
	for key, total := range weeks {
		h := out[key.employee]
		if total.GreaterThan(WeeklyRegularLimit) {
			h.Regular = h.Regular.Add(WeeklyRegularLimit)
			h.Overtime = h.Overtime.Add(total.Sub(WeeklyRegularLimit))
		} else {
			h.Regular = h.Regular.Add(total)
		}
		out[key.employee] = h
	}
	for id, h := range out {
		out[id] = Hours{Regular: h.Regular.Round(2), Overtime: h.Overtime.Round(2)}
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
