package posting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/deferral"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
)

// EquipmentPurchaseEntry capitalises the purchase cost against cash.
func EquipmentPurchaseEntry(companyID, userID uuid.UUID, eq Equipment, accts accounts.Map) (ledger.Draft, bool) {
	cost := ledger.Round(eq.PurchaseCost)
	if !cost.IsPositive() {
		return ledger.Draft{}, false
	}
	asset, ok := accts.Get(accounts.RoleEquipment)
	if !ok {
		return ledger.Draft{}, false
	}
	cash, ok := accts.Get(accounts.RoleCash)
	if !ok {
		return ledger.Draft{}, false
	}
	memo := "Equipment purchase - " + eq.Name
	return finish(ledger.Draft{
		CompanyID:   companyID,
		CreatedBy:   userID,
		EntryNumber: entryNumber("EQP", eq.ID),
		EntryDate:   eq.PurchaseDate,
		Description: memo,
		Reference:   Reference(DomainEquipment, eq.ID),
		Lines: []ledger.LineInput{
			ledger.Debit(asset, cost, memo),
			ledger.Credit(cash, cost, memo),
		},
	})
}

// DepreciationEntries emits one straight-line entry per month elapsed since
// the depreciation start, dated at month end and only for months that have
// closed by asOf. The run stops after UsefulLifeMonths or once the
// depreciable base is exhausted; the final month takes the rounding remainder.
func DepreciationEntries(companyID, userID uuid.UUID, eq Equipment, asOf time.Time, accts accounts.Map) []ledger.Draft {
	schedule := DepreciationSchedule(eq, asOf)
	if len(schedule) == 0 {
		return nil
	}
	expense, ok := accts.Get(accounts.RoleDepreciationExpense)
	if !ok {
		return nil
	}
	accumulated, ok := accts.Get(accounts.RoleAccumulatedDepreciation)
	if !ok {
		return nil
	}
	drafts := make([]ledger.Draft, 0, len(schedule))
	for _, period := range schedule {
		memo := fmt.Sprintf("Depreciation %s %s", eq.Name, period.Month.Format("Jan 2006"))
		d, ok := finish(ledger.Draft{
			CompanyID:   companyID,
			CreatedBy:   userID,
			EntryNumber: periodEntryNumber("DEP", eq.ID, period.Month),
			EntryDate:   monthEnd(period.Month),
			Description: memo,
			Reference:   PeriodReference(DomainDepreciation, eq.ID, period.Month),
			Lines: []ledger.LineInput{
				ledger.Debit(expense, period.Amount, memo),
				ledger.Credit(accumulated, period.Amount, memo),
			},
		})
		if ok {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

// DepreciationPeriod is one month of a depreciation run.
type DepreciationPeriod struct {
	Month  time.Time
	Amount decimal.Decimal
}

// DepreciationSchedule lists the periods DepreciationEntries would post.
func DepreciationSchedule(eq Equipment, asOf time.Time) []DepreciationPeriod {
	base := ledger.Round(eq.DepreciableBase())
	if !base.IsPositive() || eq.UsefulLifeMonths <= 0 {
		return nil
	}
	monthly := base.Div(decimal.NewFromInt(int64(eq.UsefulLifeMonths))).Round(2)
	if !monthly.IsPositive() {
		monthly = base
	}
	first := deferral.MonthStart(eq.DepreciationStart())

	var out []DepreciationPeriod
	accumulated := decimal.Zero
	for i := 0; i < eq.UsefulLifeMonths; i++ {
		month := first.AddDate(0, i, 0)
		if monthEnd(month).After(asOf) {
			break
		}
		amount := monthly
		remaining := base.Sub(accumulated)
		if i == eq.UsefulLifeMonths-1 || amount.GreaterThan(remaining) {
			amount = remaining
		}
		if !amount.IsPositive() {
			break
		}
		out = append(out, DepreciationPeriod{Month: month, Amount: amount})
		accumulated = accumulated.Add(amount)
	}
	return out
}

func monthEnd(month time.Time) time.Time {
	return deferral.MonthStart(month).AddDate(0, 1, -1)
}
