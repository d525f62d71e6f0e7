package posting

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/deferral"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
)

// LeaseEntries books the monthly rent receivable for every month of the
// lease term against deferred rental revenue.
func LeaseEntries(companyID, userID uuid.UUID, lease Lease, accts accounts.Map) []ledger.Draft {
	rent := ledger.Round(lease.MonthlyRent)
	if !rent.IsPositive() {
		return nil
	}
	receivable, ok := accts.Get(accounts.RoleRentReceivable)
	if !ok {
		return nil
	}
	deferred, ok := accts.Get(accounts.RoleDeferredRentalRevenue)
	if !ok {
		return nil
	}

	n := deferral.Months(lease.Start, lease.End)
	first := deferral.MonthStart(lease.Start)
	drafts := make([]ledger.Draft, 0, n)
	for i := 0; i < n; i++ {
		month := first.AddDate(0, i, 0)
		memo := fmt.Sprintf("Rent %s %s", leaseLabel(lease), month.Format("Jan 2006"))
		d, ok := finish(ledger.Draft{
			CompanyID:   companyID,
			CreatedBy:   userID,
			EntryNumber: periodEntryNumber("LSE", lease.ID, month),
			EntryDate:   month,
			Description: memo,
			Reference:   PeriodReference(DomainLease, lease.ID, month),
			Lines: []ledger.LineInput{
				ledger.Debit(receivable, rent, memo),
				ledger.Credit(deferred, rent, memo),
			},
		})
		if ok {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

func leaseLabel(lease Lease) string {
	switch {
	case lease.TenantName != "" && lease.UnitNumber != "":
		return lease.TenantName + " unit " + lease.UnitNumber
	case lease.TenantName != "":
		return lease.TenantName
	case lease.UnitNumber != "":
		return "unit " + lease.UnitNumber
	default:
		return "lease " + lease.ID.String()[:8]
	}
}

// RentPaymentEntry records cash received against rent, with any late fee on
// its own credit line.
func RentPaymentEntry(companyID, userID uuid.UUID, p RentPayment, accts accounts.Map) (ledger.Draft, bool) {
	amount := ledger.Round(p.Amount)
	fee := ledger.Round(p.LateFee)
	if fee.IsNegative() {
		return ledger.Draft{}, false
	}
	total := amount.Add(fee)
	if !total.IsPositive() {
		return ledger.Draft{}, false
	}
	cash, ok := accts.Get(accounts.RoleCash)
	if !ok {
		return ledger.Draft{}, false
	}
	rentAccount, ok := accts.First(accounts.RoleRentReceivable, accounts.RoleRentalIncome)
	if !ok {
		return ledger.Draft{}, false
	}
	feeAccount, ok := accts.First(accounts.RoleLateFeeIncome, accounts.RoleRentalIncome)
	if !ok {
		feeAccount = rentAccount
	}

	memo := "Rent payment"
	if p.TenantName != "" {
		memo += " - " + p.TenantName
	}
	return finish(ledger.Draft{
		CompanyID:   companyID,
		CreatedBy:   userID,
		EntryNumber: entryNumber("RNT", p.ID),
		EntryDate:   p.PaymentDate,
		Description: memo,
		Reference:   Reference(DomainRentPayment, p.ID),
		Lines: []ledger.LineInput{
			ledger.Debit(cash, total, memo),
			ledger.Credit(rentAccount, amount, memo),
			ledger.Credit(feeAccount, fee, "Late fee"),
		},
	})
}
