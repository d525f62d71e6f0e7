package posting

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reference domains. Each event type owns one namespace of reference keys.
const (
	DomainInvoice              = "invoice"
	DomainLease                = "lease"
	DomainRentPayment          = "rent_payment"
	DomainEquipment            = "equipment"
	DomainDepreciation         = "depreciation"
	DomainPayrollRun           = "payroll_run"
	DomainMaintenanceRequest   = "maintenance_request"
	DomainEquipmentMaintenance = "equipment_maintenance"
	DomainDeferral             = "deferral"
)

// Reference builds the idempotency key "<domain>:<id>".
func Reference(domain string, id uuid.UUID) string {
	return domain + ":" + id.String()
}

// PeriodReference builds "<domain>:<id>:<YYYY-MM>" for per-month entries.
func PeriodReference(domain string, id uuid.UUID, month time.Time) string {
	return fmt.Sprintf("%s:%s:%s", domain, id, month.Format("2006-01"))
}

func entryNumber(prefix string, id uuid.UUID) string {
	return prefix + "-" + strings.ToUpper(id.String()[:8])
}

func periodEntryNumber(prefix string, id uuid.UUID, month time.Time) string {
	return entryNumber(prefix, id) + "-" + month.Format("200601")
}
