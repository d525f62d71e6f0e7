package posting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/deferral"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
)

var (
	companyID = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	userID    = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fullChart binds every role to a distinct deterministic id.
func fullChart() accounts.Map {
	ids := make(map[accounts.Role]uuid.UUID)
	for _, def := range accounts.Definitions {
		ids[def.Role] = uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(def.Role)))
	}
	return accounts.NewMap(ids)
}

func acct(m accounts.Map, role accounts.Role) uuid.UUID {
	id, _ := m.Get(role)
	return id
}

func requireBalanced(t *testing.T, d ledger.Draft) {
	t.Helper()
	require.NoError(t, d.Validate())
	debit, credit := d.Totals()
	require.True(t, debit.Equal(credit), "debit %s credit %s", debit, credit)
}

func TestPaidReceivableInvoicePostsCashAndRevenue(t *testing.T) {
	chart := fullChart()
	inv := Invoice{
		ID:          uuid.New(),
		Number:      "1001",
		Type:        InvoiceReceivable,
		Status:      "paid",
		InvoiceDate: day(2025, 3, 4),
		Amount:      amt("5000.00"),
	}

	d, ok := InvoiceEntry(companyID, userID, inv, chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Equal(t, "invoice:"+inv.ID.String(), d.Reference)
	require.Len(t, d.Lines, 2)
	require.Equal(t, acct(chart, accounts.RoleCash), d.Lines[0].AccountID)
	require.Equal(t, "5000.00", d.Lines[0].Debit.StringFixed(2))
	require.Equal(t, acct(chart, accounts.RoleRevenue), d.Lines[1].AccountID)
	require.Equal(t, "5000.00", d.Lines[1].Credit.StringFixed(2))
}

func TestReceivableInvoiceSplitsTaxAndRetainage(t *testing.T) {
	chart := fullChart()
	inv := Invoice{
		ID:            uuid.New(),
		Number:        "1002",
		Type:          InvoiceReceivable,
		Status:        "sent",
		InvoiceDate:   day(2025, 3, 4),
		Amount:        amt("10000.00"),
		TaxAmount:     amt("825.00"),
		RetainageHeld: amt("1000.00"),
	}

	d, ok := InvoiceEntry(companyID, userID, inv, chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Len(t, d.Lines, 4)
	require.Equal(t, acct(chart, accounts.RoleAccountsReceivable), d.Lines[0].AccountID)
	require.Equal(t, "9825.00", d.Lines[0].Debit.StringFixed(2))
	require.Equal(t, acct(chart, accounts.RoleRetainageReceivable), d.Lines[1].AccountID)
	require.Equal(t, "1000.00", d.Lines[1].Debit.StringFixed(2))
	require.Equal(t, "10000.00", d.Lines[2].Credit.StringFixed(2))
	require.Equal(t, acct(chart, accounts.RoleSalesTaxPayable), d.Lines[3].AccountID)
	require.Equal(t, "825.00", d.Lines[3].Credit.StringFixed(2))
}

func TestReceivableInvoiceFoldsMissingTaxAccountIntoRevenue(t *testing.T) {
	chart := accounts.NewMap(map[accounts.Role]uuid.UUID{
		accounts.RoleAccountsReceivable: uuid.New(),
		accounts.RoleRevenue:            uuid.New(),
	})
	inv := Invoice{ID: uuid.New(), Number: "7", Type: InvoiceReceivable, InvoiceDate: day(2025, 1, 1), Amount: amt("100"), TaxAmount: amt("8.25")}

	d, ok := InvoiceEntry(companyID, userID, inv, chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Len(t, d.Lines, 2)
	require.Equal(t, "108.25", d.Lines[1].Credit.StringFixed(2))
}

func TestReceivableInvoiceCreditTarget(t *testing.T) {
	chart := fullChart()
	override := uuid.New()
	start, end := day(2025, 1, 1), day(2025, 12, 31)

	cases := []struct {
		name string
		inv  Invoice
		want uuid.UUID
	}{
		{"gl override", Invoice{GLAccountID: &override}, override},
		{"deferred window", Invoice{DeferralStart: &start, DeferralEnd: &end}, acct(chart, accounts.RoleDeferredRevenue)},
		{"plain", Invoice{}, acct(chart, accounts.RoleRevenue)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := tc.inv
			inv.ID, inv.Number, inv.Type, inv.InvoiceDate, inv.Amount = uuid.New(), "X", InvoiceReceivable, day(2025, 1, 5), amt("120")
			d, ok := InvoiceEntry(companyID, userID, inv, chart)
			require.True(t, ok)
			require.Equal(t, tc.want, d.Lines[len(d.Lines)-1].AccountID)
		})
	}
}

func TestDefersRevenue(t *testing.T) {
	override := uuid.New()
	start, end := day(2025, 1, 1), day(2025, 3, 31)
	withoutDeferred := accounts.NewMap(map[accounts.Role]uuid.UUID{
		accounts.RoleAccountsReceivable: uuid.New(),
		accounts.RoleRevenue:            uuid.New(),
	})

	cases := []struct {
		name  string
		inv   Invoice
		chart accounts.Map
		want  bool
	}{
		{"deferred receivable", Invoice{Type: InvoiceReceivable, DeferralStart: &start, DeferralEnd: &end}, fullChart(), true},
		{"gl override wins", Invoice{Type: InvoiceReceivable, GLAccountID: &override, DeferralStart: &start, DeferralEnd: &end}, fullChart(), false},
		{"no deferred revenue account", Invoice{Type: InvoiceReceivable, DeferralStart: &start, DeferralEnd: &end}, withoutDeferred, false},
		{"payable", Invoice{Type: InvoicePayable, DeferralStart: &start, DeferralEnd: &end}, fullChart(), false},
		{"no window", Invoice{Type: InvoiceReceivable}, fullChart(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DefersRevenue(tc.inv, tc.chart))
		})
	}

	// Without a Deferred Revenue account the invoice waits instead of
	// crediting revenue it would later recognize again.
	inv := Invoice{ID: uuid.New(), Number: "D-1", Type: InvoiceReceivable, InvoiceDate: day(2025, 1, 5), Amount: amt("900"), DeferralStart: &start, DeferralEnd: &end}
	_, ok := InvoiceEntry(companyID, userID, inv, withoutDeferred)
	require.False(t, ok)
}

func TestPayableInvoice(t *testing.T) {
	chart := fullChart()
	inv := Invoice{
		ID:            uuid.New(),
		Number:        "B-9",
		Type:          InvoicePayable,
		InvoiceDate:   day(2025, 2, 1),
		Amount:        amt("2000"),
		TaxAmount:     amt("100"),
		RetainageHeld: amt("200"),
	}

	d, ok := InvoiceEntry(companyID, userID, inv, chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Len(t, d.Lines, 3)
	require.Equal(t, acct(chart, accounts.RoleDirectCost), d.Lines[0].AccountID)
	require.Equal(t, "2100.00", d.Lines[0].Debit.StringFixed(2))
	require.Equal(t, acct(chart, accounts.RoleAccountsPayable), d.Lines[1].AccountID)
	require.Equal(t, "1900.00", d.Lines[1].Credit.StringFixed(2))
	require.Equal(t, acct(chart, accounts.RoleRetainagePayable), d.Lines[2].AccountID)

	inv.Status, inv.RetainageHeld = "paid", decimal.Zero
	d, ok = InvoiceEntry(companyID, userID, inv, chart)
	require.True(t, ok)
	require.Equal(t, acct(chart, accounts.RoleCash), d.Lines[1].AccountID)
}

func TestInvoiceSkips(t *testing.T) {
	chart := fullChart()
	_, ok := InvoiceEntry(companyID, userID, Invoice{ID: uuid.New(), Type: InvoiceReceivable, InvoiceDate: day(2025, 1, 1)}, chart)
	require.False(t, ok, "zero amount")

	bare := accounts.NewMap(map[accounts.Role]uuid.UUID{accounts.RoleCash: uuid.New()})
	_, ok = InvoiceEntry(companyID, userID, Invoice{ID: uuid.New(), Type: InvoiceReceivable, Status: "paid", InvoiceDate: day(2025, 1, 1), Amount: amt("5")}, bare)
	require.False(t, ok, "missing revenue")
}

func TestLeaseEntriesOnePerMonth(t *testing.T) {
	chart := fullChart()
	lease := Lease{ID: uuid.New(), TenantName: "Acme", UnitNumber: "4B", MonthlyRent: amt("1500"), Start: day(2025, 1, 15), End: day(2025, 4, 14)}

	drafts := LeaseEntries(companyID, userID, lease, chart)
	require.Len(t, drafts, 4)
	for i, d := range drafts {
		requireBalanced(t, d)
		month := day(2025, time.Month(i+1), 1)
		require.Equal(t, month, d.EntryDate)
		require.Equal(t, PeriodReference(DomainLease, lease.ID, month), d.Reference)
		require.Equal(t, acct(chart, accounts.RoleRentReceivable), d.Lines[0].AccountID)
		require.Equal(t, acct(chart, accounts.RoleDeferredRentalRevenue), d.Lines[1].AccountID)
	}
	require.Equal(t, "lease:"+lease.ID.String()+":2025-01", drafts[0].Reference)

	require.Empty(t, LeaseEntries(companyID, userID, Lease{ID: uuid.New(), Start: day(2025, 1, 1), End: day(2025, 2, 1)}, chart))
}

func TestRentPaymentWithLateFee(t *testing.T) {
	chart := fullChart()
	p := RentPayment{ID: uuid.New(), PaymentDate: day(2025, 2, 7), Amount: amt("1500"), LateFee: amt("75")}

	d, ok := RentPaymentEntry(companyID, userID, p, chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Len(t, d.Lines, 3)
	require.Equal(t, "1575.00", d.Lines[0].Debit.StringFixed(2))
	require.Equal(t, acct(chart, accounts.RoleRentReceivable), d.Lines[1].AccountID)
	require.Equal(t, acct(chart, accounts.RoleLateFeeIncome), d.Lines[2].AccountID)

	onlyIncome := accounts.NewMap(map[accounts.Role]uuid.UUID{
		accounts.RoleCash:         acct(chart, accounts.RoleCash),
		accounts.RoleRentalIncome: acct(chart, accounts.RoleRentalIncome),
	})
	d, ok = RentPaymentEntry(companyID, userID, p, onlyIncome)
	require.True(t, ok)
	require.Equal(t, acct(chart, accounts.RoleRentalIncome), d.Lines[1].AccountID)
	require.Equal(t, acct(chart, accounts.RoleRentalIncome), d.Lines[2].AccountID)
}

func TestEquipmentPurchase(t *testing.T) {
	chart := fullChart()
	eq := Equipment{ID: uuid.New(), Name: "Excavator", PurchaseDate: day(2024, 6, 10), PurchaseCost: amt("85000")}

	d, ok := EquipmentPurchaseEntry(companyID, userID, eq, chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Equal(t, "equipment:"+eq.ID.String(), d.Reference)
	require.Equal(t, acct(chart, accounts.RoleEquipment), d.Lines[0].AccountID)
	require.Equal(t, acct(chart, accounts.RoleCash), d.Lines[1].AccountID)
}

func TestDepreciationStopsAtAsOf(t *testing.T) {
	chart := fullChart()
	start := day(2025, 1, 20)
	eq := Equipment{
		ID:                    uuid.New(),
		Name:                  "Loader",
		PurchaseDate:          day(2025, 1, 3),
		PurchaseCost:          amt("12000"),
		SalvageValue:          amt("2000"),
		UsefulLifeMonths:      36,
		DepreciationStartDate: &start,
	}

	drafts := DepreciationEntries(companyID, userID, eq, day(2025, 4, 15), chart)
	require.Len(t, drafts, 3)
	require.Equal(t, day(2025, 1, 31), drafts[0].EntryDate)
	require.Equal(t, day(2025, 3, 31), drafts[2].EntryDate)
	for _, d := range drafts {
		requireBalanced(t, d)
		require.Equal(t, "277.78", d.Lines[0].Debit.StringFixed(2))
		require.Equal(t, acct(chart, accounts.RoleDepreciationExpense), d.Lines[0].AccountID)
		require.Equal(t, acct(chart, accounts.RoleAccumulatedDepreciation), d.Lines[1].AccountID)
	}
	require.Equal(t, "depreciation:"+eq.ID.String()+":2025-03", drafts[2].Reference)
}

func TestDepreciationFullLifeSumsToBase(t *testing.T) {
	eq := Equipment{ID: uuid.New(), Name: "Truck", PurchaseDate: day(2020, 1, 1), PurchaseCost: amt("1000"), UsefulLifeMonths: 3}

	schedule := DepreciationSchedule(eq, day(2030, 1, 1))
	require.Len(t, schedule, 3)
	require.Equal(t, "333.33", schedule[0].Amount.StringFixed(2))
	require.Equal(t, "333.34", schedule[2].Amount.StringFixed(2))

	total := decimal.Zero
	for _, p := range schedule {
		total = total.Add(p.Amount)
	}
	require.Equal(t, "1000.00", total.StringFixed(2))

	require.Empty(t, DepreciationSchedule(Equipment{PurchaseCost: amt("10"), SalvageValue: amt("10"), UsefulLifeMonths: 5, PurchaseDate: day(2020, 1, 1)}, day(2030, 1, 1)))
	require.Empty(t, DepreciationSchedule(Equipment{PurchaseCost: amt("10"), PurchaseDate: day(2020, 1, 1)}, day(2030, 1, 1)))
}

func TestPayrollEntry(t *testing.T) {
	chart := fullChart()
	run := PayrollRun{
		ID:          uuid.New(),
		PeriodStart: day(2025, 3, 3),
		PeriodEnd:   day(2025, 3, 16),
		PayDate:     day(2025, 3, 21),
		Items: []PayrollItem{
			{EmployeeID: uuid.New(), Gross: amt("2000"), Taxes: amt("300"), Deductions: amt("100"), Net: amt("1600"), EmployerTaxes: amt("153")},
			{EmployeeID: uuid.New(), Gross: amt("1000"), Taxes: amt("150"), Net: amt("850"), EmployerTaxes: amt("76.50")},
		},
	}

	d, ok := PayrollEntry(companyID, userID, run, chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Equal(t, "payroll_run:"+run.ID.String(), d.Reference)
	require.Len(t, d.Lines, 6)
	require.Equal(t, "3000.00", d.Lines[0].Debit.StringFixed(2))
	require.Equal(t, "450.00", d.Lines[1].Credit.StringFixed(2))
	require.Equal(t, acct(chart, accounts.RoleAccruedPayroll), d.Lines[2].AccountID)
	require.Equal(t, "2450.00", d.Lines[3].Credit.StringFixed(2))
	require.Equal(t, acct(chart, accounts.RolePayrollTaxExpense), d.Lines[4].AccountID)
	require.Equal(t, "229.50", d.Lines[4].Debit.StringFixed(2))
}

func TestPayrollEntrySkipsUnreconciledRun(t *testing.T) {
	run := PayrollRun{
		ID: uuid.New(), PeriodStart: day(2025, 3, 3), PeriodEnd: day(2025, 3, 16), PayDate: day(2025, 3, 21),
		TotalGross: amt("1000"), TotalTaxes: amt("100"), TotalNet: amt("850"),
	}
	_, ok := PayrollEntry(companyID, userID, run, fullChart())
	require.False(t, ok)

	run.TotalNet = amt("900")
	d, ok := PayrollEntry(companyID, userID, run, fullChart())
	require.True(t, ok)
	requireBalanced(t, d)
}

func TestMaintenanceEntry(t *testing.T) {
	chart := fullChart()
	m := MaintenanceCost{ID: uuid.New(), Source: MaintenanceProperty, Date: day(2025, 5, 2), Amount: amt("420"), Description: "HVAC"}

	d, ok := MaintenanceEntry(companyID, userID, m, chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Equal(t, "maintenance_request:"+m.ID.String(), d.Reference)
	require.Equal(t, acct(chart, accounts.RoleAccountsPayable), d.Lines[1].AccountID)

	m.Source, m.Paid = MaintenanceEquipment, true
	d, ok = MaintenanceEntry(companyID, userID, m, chart)
	require.True(t, ok)
	require.Equal(t, "equipment_maintenance:"+m.ID.String(), d.Reference)
	require.Equal(t, acct(chart, accounts.RoleCash), d.Lines[1].AccountID)
}

func TestDeferralRecognitionEntry(t *testing.T) {
	chart := fullChart()
	inv := uuid.New()
	rows := deferral.ForInvoice(inv, amt("900"), day(2025, 1, 1), day(2025, 3, 31))

	d, ok := DeferralRecognitionEntry(companyID, userID, rows[1], chart)
	require.True(t, ok)
	requireBalanced(t, d)
	require.Equal(t, "deferral:"+inv.String()+":2025-02", d.Reference)
	require.Equal(t, acct(chart, accounts.RoleDeferredRevenue), d.Lines[0].AccountID)
	require.Equal(t, acct(chart, accounts.RoleRevenue), d.Lines[1].AccountID)

	rows[1].Status = deferral.StatusRecognized
	_, ok = DeferralRecognitionEntry(companyID, userID, rows[1], chart)
	require.False(t, ok)
}
