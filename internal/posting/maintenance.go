package posting

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
)

// MaintenanceEntry expenses a completed work order or equipment service log.
func MaintenanceEntry(companyID, userID uuid.UUID, m MaintenanceCost, accts accounts.Map) (ledger.Draft, bool) {
	amount := ledger.Round(m.Amount)
	if !amount.IsPositive() {
		return ledger.Draft{}, false
	}
	expense, ok := accts.Get(accounts.RoleRepairsMaintenance)
	if !ok {
		return ledger.Draft{}, false
	}
	var credit uuid.UUID
	if m.Paid {
		credit, ok = accts.Get(accounts.RoleCash)
	} else {
		credit, ok = accts.First(accounts.RoleAccountsPayable, accounts.RoleCash)
	}
	if !ok {
		return ledger.Draft{}, false
	}

	domain, prefix, memo := DomainMaintenanceRequest, "MNT", "Property maintenance"
	if m.Source == MaintenanceEquipment {
		domain, prefix, memo = DomainEquipmentMaintenance, "EQM", "Equipment maintenance"
	}
	if m.Description != "" {
		memo += " - " + m.Description
	}
	return finish(ledger.Draft{
		CompanyID:   companyID,
		CreatedBy:   userID,
		EntryNumber: entryNumber(prefix, m.ID),
		EntryDate:   m.Date,
		Description: memo,
		Reference:   Reference(domain, m.ID),
		Lines: []ledger.LineInput{
			ledger.Debit(expense, amount, memo),
			ledger.Credit(credit, amount, memo),
		},
	})
}
