package payroll

import "github.com/shopspring/decimal"

// DefaultOvertimeMultiplier is time-and-a-half.
var DefaultOvertimeMultiplier = decimal.NewFromFloat(1.5)

// Gross computes gross pay for split hours at an hourly rate. A non-positive
// multiplier falls back to DefaultOvertimeMultiplier.
func Gross(h Hours, rate, otMultiplier decimal.Decimal) decimal.Decimal {
	if !otMultiplier.IsPositive() {
		otMultiplier = DefaultOvertimeMultiplier
	}
	regular := h.Regular.Mul(rate)
	overtime := h.Overtime.Mul(rate).Mul(otMultiplier)
	return regular.Add(overtime).Round(2)
}
