package posting

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
)

// InvoiceEntry maps an invoice to its journal entry. Receivables debit Cash
// when paid (AR otherwise) and credit revenue; payables debit expense and
// credit AP (Cash when paid). Tax and retainage get their own lines when
// nonzero and their accounts exist.
func InvoiceEntry(companyID, userID uuid.UUID, inv Invoice, accts accounts.Map) (ledger.Draft, bool) {
	total := ledger.Round(inv.Total())
	if !total.IsPositive() {
		return ledger.Draft{}, false
	}
	d := ledger.Draft{
		CompanyID:   companyID,
		CreatedBy:   userID,
		EntryNumber: "INV-" + inv.Number,
		EntryDate:   inv.InvoiceDate,
		Description: invoiceMemo(inv),
		Reference:   Reference(DomainInvoice, inv.ID),
	}
	var ok bool
	switch inv.Type {
	case InvoiceReceivable:
		d.Lines, ok = receivableLines(inv, accts)
	case InvoicePayable:
		d.Lines, ok = payableLines(inv, accts)
	}
	if !ok {
		return ledger.Draft{}, false
	}
	return finish(d)
}

func receivableLines(inv Invoice, accts accounts.Map) ([]ledger.LineInput, bool) {
	debitRole := accounts.RoleAccountsReceivable
	if inv.Paid() {
		debitRole = accounts.RoleCash
	}
	debitAccount, ok := accts.Get(debitRole)
	if !ok {
		return nil, false
	}
	creditAccount, ok := revenueAccount(inv, accts)
	if !ok {
		return nil, false
	}

	amount := ledger.Round(inv.Amount)
	tax := ledger.Round(inv.TaxAmount)
	retainage := ledger.Round(inv.RetainageHeld)
	total := amount.Add(tax)

	revenueCredit := amount
	taxAccount, hasTax := accts.Get(accounts.RoleSalesTaxPayable)
	if !hasTax {
		revenueCredit = total
		tax = decimal.Zero
	}
	retainageAccount, hasRetainage := accts.Get(accounts.RoleRetainageReceivable)
	if !hasRetainage || retainage.GreaterThan(total) {
		retainage = decimal.Zero
	}

	return []ledger.LineInput{
		ledger.Debit(debitAccount, total.Sub(retainage), "Invoice "+inv.Number),
		ledger.Debit(retainageAccount, retainage, "Retainage held "+inv.Number),
		ledger.Credit(creditAccount, revenueCredit, "Revenue "+inv.Number),
		ledger.Credit(taxAccount, tax, "Sales tax "+inv.Number),
	}, true
}

func payableLines(inv Invoice, accts accounts.Map) ([]ledger.LineInput, bool) {
	creditRole := accounts.RoleAccountsPayable
	if inv.Paid() {
		creditRole = accounts.RoleCash
	}
	creditAccount, ok := accts.Get(creditRole)
	if !ok {
		return nil, false
	}
	expenseAccount, ok := accts.Get(accounts.RoleDirectCost)
	if hasOverride(inv) {
		expenseAccount, ok = *inv.GLAccountID, true
	}
	if !ok {
		return nil, false
	}

	total := ledger.Round(inv.Total())
	retainage := ledger.Round(inv.RetainageHeld)
	retainageAccount, hasRetainage := accts.Get(accounts.RoleRetainagePayable)
	if !hasRetainage || retainage.GreaterThan(total) {
		retainage = decimal.Zero
	}

	return []ledger.LineInput{
		ledger.Debit(expenseAccount, total, "Bill "+inv.Number),
		ledger.Credit(creditAccount, total.Sub(retainage), "Bill "+inv.Number),
		ledger.Credit(retainageAccount, retainage, "Retainage withheld "+inv.Number),
	}, true
}

// revenueAccount picks the credit side of a receivable: an explicit GL
// override, then deferred revenue for scheduled invoices, then revenue. A
// deferred invoice without a Deferred Revenue account is not posted.
func revenueAccount(inv Invoice, accts accounts.Map) (uuid.UUID, bool) {
	if hasOverride(inv) {
		return *inv.GLAccountID, true
	}
	if inv.Deferred() {
		return accts.Get(accounts.RoleDeferredRevenue)
	}
	return accts.Get(accounts.RoleRevenue)
}

// DefersRevenue reports whether the invoice entry credits Deferred Revenue,
// the only case where a recognition schedule applies.
func DefersRevenue(inv Invoice, accts accounts.Map) bool {
	if inv.Type != InvoiceReceivable || !inv.Deferred() || hasOverride(inv) {
		return false
	}
	return accts.Has(accounts.RoleDeferredRevenue)
}

func hasOverride(inv Invoice) bool {
	return inv.GLAccountID != nil && *inv.GLAccountID != uuid.Nil
}

func invoiceMemo(inv Invoice) string {
	kind := "Invoice"
	if inv.Type == InvoicePayable {
		kind = "Bill"
	}
	if inv.Counterparty == "" {
		return fmt.Sprintf("%s %s", kind, inv.Number)
	}
	return fmt.Sprintf("%s %s - %s", kind, inv.Number, inv.Counterparty)
}

// finish drops empty lines and rejects anything that would not post.
func finish(d ledger.Draft) (ledger.Draft, bool) {
	d = d.Compact()
	if err := d.Validate(); err != nil {
		return ledger.Draft{}, false
	}
	return d, true
}
