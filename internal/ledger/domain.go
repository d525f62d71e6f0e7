package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// NormalBalance is the side that increases an account.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// NormalBalanceFor returns the conventional normal side for an account type.
func NormalBalanceFor(t AccountType) NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// EntryStatus enumerates journal lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "draft"
	EntryStatusPosted EntryStatus = "posted"
	EntryStatusVoided EntryStatus = "voided"
)

// Account models a chart of accounts node.
type Account struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	Number        string
	Name          string
	Type          AccountType
	SubType       string
	NormalBalance NormalBalance
	ParentID      *uuid.UUID
	Active        bool
	CreatedAt     time.Time
}

// SubTypeBank marks a per-bank Cash sub-account.
const SubTypeBank = "bank"

// AccountSeed describes an account to provision when missing.
type AccountSeed struct {
	Number  string
	Name    string
	Type    AccountType
	SubType string
}

// JournalEntry captures a persisted entry header with its lines.
type JournalEntry struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	EntryNumber string
	EntryDate   time.Time
	Description string
	Reference   string
	Status      EntryStatus
	CreatedBy   uuid.UUID
	CreatedAt   time.Time
	Lines       []JournalLine
}

// JournalLine stores a debit or credit amount for an account.
type JournalLine struct {
	ID          uuid.UUID
	EntryID     uuid.UUID
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// LineInput describes a journal line of a draft.
type LineInput struct {
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Draft groups the fields required to persist a journal entry. Generators
// produce drafts; the store turns them into JournalEntry rows.
type Draft struct {
	CompanyID   uuid.UUID
	CreatedBy   uuid.UUID
	EntryNumber string
	EntryDate   time.Time
	Description string
	Reference   string
	Lines       []LineInput
}

// Tolerance is the maximum debit/credit difference accepted as balanced.
var Tolerance = decimal.NewFromFloat(0.01)

var (
	// ErrMissingAccounts indicates the company has no chart of accounts at all.
	ErrMissingAccounts = errors.New("ledger: company has no chart of accounts")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrReferenceRequired indicates a draft without idempotency key.
	ErrReferenceRequired = errors.New("ledger: reference required")
	// ErrAccountNotFound indicates a missing account row.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrInactiveAccount indicates a line posting to an inactive or unknown account.
	ErrInactiveAccount = errors.New("ledger: account inactive or not in company chart")
)

// Debit builds a debit line.
func Debit(account uuid.UUID, amount decimal.Decimal, desc string) LineInput {
	return LineInput{AccountID: account, Debit: Round(amount), Description: desc}
}

// Credit builds a credit line.
func Credit(account uuid.UUID, amount decimal.Decimal, desc string) LineInput {
	return LineInput{AccountID: account, Credit: Round(amount), Description: desc}
}

// Totals returns the debit and credit sums of the draft.
func (d Draft) Totals() (debit, credit decimal.Decimal) {
	for _, line := range d.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Validate ensures the draft meets minimum posting criteria.
func (d Draft) Validate() error {
	if d.Reference == "" {
		return ErrReferenceRequired
	}
	if d.CompanyID == uuid.Nil {
		return errors.New("ledger: company required")
	}
	if len(d.Lines) < 2 {
		return ErrTooFewLines
	}
	for idx, line := range d.Lines {
		if line.AccountID == uuid.Nil {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("ledger: line %d must carry exactly one of debit or credit", idx)
		}
	}
	debit, credit := d.Totals()
	if debit.Sub(credit).Abs().GreaterThan(Tolerance) {
		return ErrUnbalanced
	}
	return nil
}

// Compact drops zero-amount lines so optional components (tax, retainage)
// never produce empty rows.
func (d Draft) Compact() Draft {
	lines := make([]LineInput, 0, len(d.Lines))
	for _, line := range d.Lines {
		if line.Debit.IsZero() && line.Credit.IsZero() {
			continue
		}
		lines = append(lines, line)
	}
	d.Lines = lines
	return d
}

// AccountIDs returns the distinct accounts d posts to, in line order.
func (d Draft) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(d.Lines))
	ids := make([]uuid.UUID, 0, len(d.Lines))
	for _, line := range d.Lines {
		if seen[line.AccountID] {
			continue
		}
		seen[line.AccountID] = true
		ids = append(ids, line.AccountID)
	}
	return ids
}

// RequireActive fails when any line posts to an account missing from active.
func (d Draft) RequireActive(active map[uuid.UUID]bool) error {
	for idx, line := range d.Lines {
		if !active[line.AccountID] {
			return fmt.Errorf("%w: line %d account %s", ErrInactiveAccount, idx, line.AccountID)
		}
	}
	return nil
}
