package reconcile

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Snapshot is an unlinked bank's balance before distribution.
type Snapshot struct {
	BankID  uuid.UUID
	Balance decimal.Decimal
}

// Distribution is the outcome of Distribute.
type Distribution struct {
	Updates []BalanceUpdate
	// EqualSplit is set when prior balances gave no weights and the
	// remainder was split evenly. Such results deserve a manual look.
	EqualSplit bool
}

// Distribute splits remaining across banks in proportion to their prior
// balances. When the prior balances sum to zero every bank gets an equal
// share. Shares are rounded to cents and the last bank absorbs the rounding
// so the updates always sum to remaining.
func Distribute(remaining decimal.Decimal, banks []Snapshot) Distribution {
	if len(banks) == 0 {
		return Distribution{}
	}
	remaining = ledger.Round(remaining)
	total := decimal.Zero
	for _, b := range banks {
		total = total.Add(b.Balance)
	}
	equal := total.IsZero()
	count := decimal.NewFromInt(int64(len(banks)))

	out := Distribution{Updates: make([]BalanceUpdate, 0, len(banks)), EqualSplit: equal}
	allocated := decimal.Zero
	for i, b := range banks {
		var share decimal.Decimal
		switch {
		case i == len(banks)-1:
			share = remaining.Sub(allocated)
		case equal:
			share = remaining.Div(count).Round(2)
		default:
			share = remaining.Mul(b.Balance).Div(total).Round(2)
		}
		allocated = allocated.Add(share)
		out.Updates = append(out.Updates, BalanceUpdate{BankID: b.BankID, Balance: share})
	}
	return out
}
