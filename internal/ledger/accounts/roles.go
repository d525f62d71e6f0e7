package accounts

import "github.com/odyssey-erp/odyssey-ledger/internal/ledger"

// Role names the semantic purpose an account plays for the generators.
type Role string

const (
	RoleCash                    Role = "cash"
	RoleAccountsReceivable      Role = "accounts_receivable"
	RoleRetainageReceivable     Role = "retainage_receivable"
	RoleRentReceivable          Role = "rent_receivable"
	RoleEquipment               Role = "equipment"
	RoleAccumulatedDepreciation Role = "accumulated_depreciation"
	RoleAccountsPayable         Role = "accounts_payable"
	RoleRetainagePayable        Role = "retainage_payable"
	RoleAccruedPayroll          Role = "accrued_payroll"
	RolePayrollTaxPayable       Role = "payroll_tax_payable"
	RoleSalesTaxPayable         Role = "sales_tax_payable"
	RoleDeferredRentalRevenue   Role = "deferred_rental_revenue"
	RoleDeferredRevenue         Role = "deferred_revenue"
	RoleOpeningBalanceEquity    Role = "opening_balance_equity"
	RoleRevenue                 Role = "revenue"
	RoleRentalIncome            Role = "rental_income"
	RoleLateFeeIncome           Role = "late_fee_income"
	RoleDirectCost              Role = "direct_cost"
	RolePayrollExpense          Role = "payroll_expense"
	RolePayrollTaxExpense       Role = "payroll_tax_expense"
	RoleRepairsMaintenance      Role = "repairs_maintenance"
	RoleDepreciationExpense     Role = "depreciation_expense"
)

// Definition ties a role to its canonical number and the name patterns used
// by the fallback tier.
type Definition struct {
	Role     Role
	Number   string
	Type     ledger.AccountType
	Patterns []string
}

// Definitions lists every role in resolution order. Order matters for the
// name fallback: a more specific role claims an account before a generic one.
var Definitions = []Definition{
	{RoleCash, "1000", ledger.AccountTypeAsset, []string{"cash"}},
	{RoleAccountsReceivable, "1010", ledger.AccountTypeAsset, []string{"accounts receivable"}},
	{RoleRetainageReceivable, "1020", ledger.AccountTypeAsset, []string{"retention receivable", "retainage receivable"}},
	{RoleRentReceivable, "1050", ledger.AccountTypeAsset, []string{"rent receivable"}},
	{RoleAccumulatedDepreciation, "1540", ledger.AccountTypeAsset, []string{"accumulated depreciation"}},
	{RoleEquipment, "1500", ledger.AccountTypeAsset, []string{"equipment"}},
	{RoleAccountsPayable, "2000", ledger.AccountTypeLiability, []string{"accounts payable"}},
	{RoleRetainagePayable, "2010", ledger.AccountTypeLiability, []string{"retention payable", "retainage payable"}},
	{RoleAccruedPayroll, "2030", ledger.AccountTypeLiability, []string{"accrued payroll"}},
	{RolePayrollTaxPayable, "2035", ledger.AccountTypeLiability, []string{"payroll tax", "withholding"}},
	{RoleSalesTaxPayable, "2040", ledger.AccountTypeLiability, []string{"sales tax"}},
	{RoleDeferredRentalRevenue, "2060", ledger.AccountTypeLiability, []string{"deferred rent", "deferred rental"}},
	{RoleDeferredRevenue, "2070", ledger.AccountTypeLiability, []string{"deferred revenue", "unearned revenue"}},
	{RoleOpeningBalanceEquity, "3900", ledger.AccountTypeEquity, []string{"opening balance"}},
	{RoleRentalIncome, "4100", ledger.AccountTypeRevenue, []string{"rental income", "rent income"}},
	{RoleLateFeeIncome, "4110", ledger.AccountTypeRevenue, []string{"late fee"}},
	{RoleRevenue, "4000", ledger.AccountTypeRevenue, []string{"contract revenue", "revenue", "sales"}},
	{RoleDirectCost, "5000", ledger.AccountTypeExpense, []string{"subcontractor", "direct cost", "cost of"}},
	{RolePayrollTaxExpense, "6010", ledger.AccountTypeExpense, []string{"payroll tax"}},
	{RolePayrollExpense, "6000", ledger.AccountTypeExpense, []string{"salaries", "wages", "payroll"}},
	{RoleRepairsMaintenance, "6250", ledger.AccountTypeExpense, []string{"repairs", "maintenance"}},
	{RoleDepreciationExpense, "6700", ledger.AccountTypeExpense, []string{"depreciation"}},
}

// Seeds are provisioned before resolution whenever a company has a chart.
var Seeds = []ledger.AccountSeed{
	{Number: "1500", Name: "Equipment", Type: ledger.AccountTypeAsset, SubType: "fixed_asset"},
	{Number: "1540", Name: "Accumulated Depreciation", Type: ledger.AccountTypeAsset, SubType: "fixed_asset"},
	{Number: "6250", Name: "Repairs & Maintenance", Type: ledger.AccountTypeExpense, SubType: "operating_expense"},
	{Number: "6700", Name: "Depreciation Expense", Type: ledger.AccountTypeExpense, SubType: "operating_expense"},
}

// OpeningBalanceEquitySeed is created on demand by reconciliation.
var OpeningBalanceEquitySeed = ledger.AccountSeed{
	Number:  "3900",
	Name:    "Opening Balance Equity",
	Type:    ledger.AccountTypeEquity,
	SubType: "equity",
}
