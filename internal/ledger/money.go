package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round rounds an amount half away from zero to cents.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Cents returns the amount expressed in integer cents.
func Cents(v decimal.Decimal) int64 {
	return Round(v).Mul(hundred).IntPart()
}

// ParseAmount parses a numeric column rendered as text. Empty strings are zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// Numeric renders an amount for a numeric(18,2) parameter.
func Numeric(v decimal.Decimal) string {
	return Round(v).StringFixed(2)
}

// ScanAmounts parses numeric columns selected as text into dst, pairwise.
func ScanAmounts(raw []string, dst ...*decimal.Decimal) error {
	if len(raw) != len(dst) {
		return fmt.Errorf("ledger: %d amounts for %d targets", len(raw), len(dst))
	}
	for i, s := range raw {
		v, err := ParseAmount(s)
		if err != nil {
			return fmt.Errorf("ledger: parse amount %q: %w", s, err)
		}
		*dst[i] = v
	}
	return nil
}
