package posting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType separates customer billings from vendor bills.
type InvoiceType string

const (
	InvoiceReceivable InvoiceType = "receivable"
	InvoicePayable    InvoiceType = "payable"
)

// Invoice is a receivable or payable invoice row. Amount excludes tax.
type Invoice struct {
	ID            uuid.UUID   `validate:"required"`
	Number        string      `validate:"required"`
	Type          InvoiceType `validate:"oneof=receivable payable"`
	Status        string
	InvoiceDate   time.Time `validate:"required"`
	Amount        decimal.Decimal
	TaxAmount     decimal.Decimal
	RetainageHeld decimal.Decimal
	Counterparty  string
	GLAccountID   *uuid.UUID
	DeferralStart *time.Time
	DeferralEnd   *time.Time
}

// Paid reports whether the invoice settled in cash.
func (inv Invoice) Paid() bool {
	return inv.Status == "paid"
}

// Total is amount plus tax.
func (inv Invoice) Total() decimal.Decimal {
	return inv.Amount.Add(inv.TaxAmount)
}

// Deferred reports whether revenue recognition follows a schedule.
func (inv Invoice) Deferred() bool {
	return inv.DeferralStart != nil && inv.DeferralEnd != nil && !inv.DeferralEnd.Before(*inv.DeferralStart)
}

// Lease is a tenant lease with a fixed monthly rent.
type Lease struct {
	ID          uuid.UUID `validate:"required"`
	TenantName  string
	UnitNumber  string
	MonthlyRent decimal.Decimal
	Start       time.Time `validate:"required"`
	End         time.Time `validate:"required,gtefield=Start"`
}

// RentPayment is a payment received against a lease.
type RentPayment struct {
	ID          uuid.UUID `validate:"required"`
	LeaseID     uuid.UUID
	TenantName  string
	PaymentDate time.Time `validate:"required"`
	Amount      decimal.Decimal
	LateFee     decimal.Decimal
	Method      string
}

// Equipment is a purchased asset that depreciates straight-line.
type Equipment struct {
	ID                    uuid.UUID `validate:"required"`
	Name                  string    `validate:"required"`
	PurchaseDate          time.Time `validate:"required"`
	PurchaseCost          decimal.Decimal
	SalvageValue          decimal.Decimal
	UsefulLifeMonths      int `validate:"gte=0"`
	DepreciationStartDate *time.Time
}

// DepreciationStart returns the first depreciation month anchor.
func (e Equipment) DepreciationStart() time.Time {
	if e.DepreciationStartDate != nil && !e.DepreciationStartDate.IsZero() {
		return *e.DepreciationStartDate
	}
	return e.PurchaseDate
}

// DepreciableBase is cost less salvage, floored at zero.
func (e Equipment) DepreciableBase() decimal.Decimal {
	base := e.PurchaseCost.Sub(e.SalvageValue)
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}

// MaintenanceSource tells property work orders from equipment service logs.
type MaintenanceSource string

const (
	MaintenanceProperty  MaintenanceSource = "property"
	MaintenanceEquipment MaintenanceSource = "equipment"
)

// MaintenanceCost is a completed maintenance request or equipment log.
type MaintenanceCost struct {
	ID          uuid.UUID         `validate:"required"`
	Source      MaintenanceSource `validate:"oneof=property equipment"`
	Date        time.Time         `validate:"required"`
	Amount      decimal.Decimal
	Paid        bool
	Description string
}

// PayrollItem is one employee's line on a payroll run.
type PayrollItem struct {
	EmployeeID    uuid.UUID `validate:"required"`
	HourlyRate    decimal.Decimal
	RegularHours  decimal.Decimal
	OvertimeHours decimal.Decimal
	Gross         decimal.Decimal
	Taxes         decimal.Decimal
	Deductions    decimal.Decimal
	Net           decimal.Decimal
	EmployerTaxes decimal.Decimal
}

// PayrollRun aggregates items for a pay period.
type PayrollRun struct {
	ID          uuid.UUID `validate:"required"`
	PeriodStart time.Time `validate:"required"`
	PeriodEnd   time.Time `validate:"required,gtefield=PeriodStart"`
	PayDate     time.Time `validate:"required"`
	Items       []PayrollItem `validate:"dive"`

	TotalGross         decimal.Decimal
	TotalTaxes         decimal.Decimal
	TotalDeductions    decimal.Decimal
	TotalNet           decimal.Decimal
	TotalEmployerTaxes decimal.Decimal
}

// PayrollTotals are the amounts a payroll entry posts.
type PayrollTotals struct {
	Gross         decimal.Decimal
	Taxes         decimal.Decimal
	Deductions    decimal.Decimal
	Net           decimal.Decimal
	EmployerTaxes decimal.Decimal
}

// Totals sums the items when present and falls back to the run header.
func (r PayrollRun) Totals() PayrollTotals {
	if len(r.Items) == 0 {
		return PayrollTotals{
			Gross:         r.TotalGross,
			Taxes:         r.TotalTaxes,
			Deductions:    r.TotalDeductions,
			Net:           r.TotalNet,
			EmployerTaxes: r.TotalEmployerTaxes,
		}
	}
	var t PayrollTotals
	for _, it := range r.Items {
		t.Gross = t.Gross.Add(it.Gross)
		t.Taxes = t.Taxes.Add(it.Taxes)
		t.Deductions = t.Deductions.Add(it.Deductions)
		t.Net = t.Net.Add(it.Net)
		t.EmployerTaxes = t.EmployerTaxes.Add(it.EmployerTaxes)
	}
	return t
}
