package posting

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/deferral"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
)

// DeferralRecognitionEntry releases one scheduled month of deferred revenue.
func DeferralRecognitionEntry(companyID, userID uuid.UUID, row deferral.Row, accts accounts.Map) (ledger.Draft, bool) {
	if row.Status != deferral.StatusScheduled {
		return ledger.Draft{}, false
	}
	amount := ledger.Round(row.Amount)
	if !amount.IsPositive() {
		return ledger.Draft{}, false
	}
	deferred, ok := accts.Get(accounts.RoleDeferredRevenue)
	if !ok {
		return ledger.Draft{}, false
	}
	revenue, ok := accts.Get(accounts.RoleRevenue)
	if !ok {
		return ledger.Draft{}, false
	}
	memo := "Revenue recognition " + row.Date.Format("Jan 2006")
	return finish(ledger.Draft{
		CompanyID:   companyID,
		CreatedBy:   userID,
		EntryNumber: periodEntryNumber("REC", row.InvoiceID, row.Date),
		EntryDate:   row.Date,
		Description: memo,
		Reference:   PeriodReference(DomainDeferral, row.InvoiceID, row.Date),
		Lines: []ledger.LineInput{
			ledger.Debit(deferred, amount, memo),
			ledger.Credit(revenue, amount, memo),
		},
	})
}
