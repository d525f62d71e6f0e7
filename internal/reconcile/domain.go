package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// BankType enumerates bank account kinds.
type BankType string

const (
	BankChecking BankType = "checking"
	BankSavings  BankType = "savings"
)

// BankAccount is a company bank account. CurrentBalance is a cached view that
// every reconciliation pass recomputes.
type BankAccount struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	Name           string
	Type           BankType
	GLAccountID    *uuid.UUID
	CurrentBalance decimal.Decimal
}

// Linked reports whether the bank points at a GL sub-account.
func (b BankAccount) Linked() bool {
	return b.GLAccountID != nil && *b.GLAccountID != uuid.Nil
}

// BalanceUpdate is a new current_balance for one bank.
type BalanceUpdate struct {
	BankID  uuid.UUID
	Balance decimal.Decimal
}

// Step names the stage a failure happened in.
type Step string

const (
	StepLink       Step = "link"
	StepReclassify Step = "reclassify"
	StepAdjust     Step = "equity_adjustment"
)

// Failure records one bank (or the control adjustment) left unreconciled.
type Failure struct {
	BankID uuid.UUID
	Step   Step
	Err    error
}

func (f Failure) Error() string {
	if f.BankID == uuid.Nil {
		return fmt.Sprintf("reconcile: %s: %v", f.Step, f.Err)
	}
	return fmt.Sprintf("reconcile: %s bank %s: %v", f.Step, f.BankID, f.Err)
}

// Result summarises one reconciliation pass.
type Result struct {
	Linked           int
	Reclassified     int
	Adjusted         bool
	AdjustmentAmount decimal.Decimal
	CashBalance      decimal.Decimal
	SubAccountTotal  decimal.Decimal
	Updates          []BalanceUpdate
	EqualSplit       bool
	Failures         []Failure
}

func (r Result) failedBanks() map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(r.Failures))
	for _, f := range r.Failures {
		if f.BankID != uuid.Nil {
			out[f.BankID] = true
		}
	}
	return out
}

var (
	// ErrNoCashAccount means the chart has no Cash control account.
	ErrNoCashAccount = errors.New("reconcile: cash control account not found")
	// ErrNoSubAccountNumber means 1001-1099 are all taken.
	ErrNoSubAccountNumber = errors.New("reconcile: no free bank sub-account number")
)

// Sub-account numbers provisioned for banks.
const (
	SubAccountFirst = 1001
	SubAccountLast  = 1099
)

// BankReference is the idempotency key of a bank's reclassification entry.
func BankReference(bankID uuid.UUID) string {
	return "opening_balance:bank:" + bankID.String()
}

// EquityReference keys an opening balance equity adjustment by date and amount.
func EquityReference(date time.Time, amount decimal.Decimal) string {
	return fmt.Sprintf("opening_balance:equity:%s:%d", date.Format("20060102"), ledger.Cents(amount))
}

// SubAccountName is the provisioned GL name for a bank.
func SubAccountName(bank BankAccount) string {
	return "Cash - " + bank.Name
}
