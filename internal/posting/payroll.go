package posting

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
)

// PayrollEntry books a payroll run: gross to payroll expense, withholdings
// and deductions to liabilities, net pay out of cash. Employer taxes add an
// expense/liability pair. Runs whose gross does not reconcile to net plus
// withholdings plus deductions are skipped.
func PayrollEntry(companyID, userID uuid.UUID, run PayrollRun, accts accounts.Map) (ledger.Draft, bool) {
	t := run.Totals()
	gross := ledger.Round(t.Gross)
	taxes := ledger.Round(t.Taxes)
	deductions := ledger.Round(t.Deductions)
	net := ledger.Round(t.Net)
	employer := ledger.Round(t.EmployerTaxes)

	if !gross.IsPositive() {
		return ledger.Draft{}, false
	}
	if taxes.IsNegative() || deductions.IsNegative() || net.IsNegative() || employer.IsNegative() {
		return ledger.Draft{}, false
	}
	if gross.Sub(net.Add(taxes).Add(deductions)).Abs().GreaterThan(ledger.Tolerance) {
		return ledger.Draft{}, false
	}

	expense, ok := accts.Get(accounts.RolePayrollExpense)
	if !ok {
		return ledger.Draft{}, false
	}
	cash, ok := accts.Get(accounts.RoleCash)
	if !ok {
		return ledger.Draft{}, false
	}
	taxPayable, hasTaxPayable := accts.Get(accounts.RolePayrollTaxPayable)
	if !hasTaxPayable && (taxes.IsPositive() || employer.IsPositive()) {
		return ledger.Draft{}, false
	}
	accrued, ok := accts.First(accounts.RoleAccruedPayroll, accounts.RolePayrollTaxPayable)
	if !ok && deductions.IsPositive() {
		return ledger.Draft{}, false
	}
	employerExpense, _ := accts.First(accounts.RolePayrollTaxExpense, accounts.RolePayrollExpense)

	period := fmt.Sprintf("%s - %s", run.PeriodStart.Format("2006-01-02"), run.PeriodEnd.Format("2006-01-02"))
	memo := "Payroll " + period
	return finish(ledger.Draft{
		CompanyID:   companyID,
		CreatedBy:   userID,
		EntryNumber: entryNumber("PAY", run.ID),
		EntryDate:   run.PayDate,
		Description: memo,
		Reference:   Reference(DomainPayrollRun, run.ID),
		Lines: []ledger.LineInput{
			ledger.Debit(expense, gross, "Gross wages "+period),
			ledger.Credit(taxPayable, taxes, "Employee withholdings"),
			ledger.Credit(accrued, deductions, "Payroll deductions"),
			ledger.Credit(cash, net, "Net pay"),
			ledger.Debit(employerExpense, employer, "Employer payroll taxes"),
			ledger.Credit(taxPayable, employer, "Employer payroll taxes"),
		},
	})
}
