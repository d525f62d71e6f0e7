package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/accounts"
)

// BankStore reads and updates bank accounts.
type BankStore interface {
	ListBankAccounts(ctx context.Context, companyID uuid.UUID) ([]BankAccount, error)
	LinkBankAccount(ctx context.Context, bankID, glAccountID uuid.UUID) error
	UpdateBalances(ctx context.Context, updates []BalanceUpdate) error
}

// LedgerPort is the ledger access the engine needs.
type LedgerPort interface {
	ListAccounts(ctx context.Context, companyID uuid.UUID) ([]ledger.Account, error)
	CreateAccount(ctx context.Context, companyID uuid.UUID, seed ledger.AccountSeed) (ledger.Account, error)
	AccountBalances(ctx context.Context, companyID uuid.UUID, accountIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	InsertEntry(ctx context.Context, d ledger.Draft, status ledger.EntryStatus) ledger.InsertResult
}

// AccountResolver resolves roles and provisions single accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, companyID uuid.UUID) (accounts.Map, error)
	Ensure(ctx context.Context, companyID uuid.UUID, seed ledger.AccountSeed) (ledger.Account, error)
}

// Options tunes the engine.
type Options struct {
	// ProvisionSubAccounts links unlinked banks to a new "Cash - <bank>"
	// account before reclassification.
	ProvisionSubAccounts bool
}

// Engine reconciles bank balances against the Cash control account.
type Engine struct {
	banks    BankStore
	ledger   LedgerPort
	resolver AccountResolver
	opts     Options
	logger   *slog.Logger
	clock    func() time.Time
}

// NewEngine constructs Engine.
func NewEngine(banks BankStore, store LedgerPort, resolver AccountResolver, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{banks: banks, ledger: store, resolver: resolver, opts: opts, logger: logger, clock: time.Now}
}

// Run performs one reconciliation pass for the company:
//
//  1. link unlinked banks to provisioned sub-accounts (when enabled)
//  2. reclassify nominal balances of empty sub-accounts out of Cash
//  3. offset a negative Cash balance against Opening Balance Equity
//  4. recompute linked bank balances from their sub-accounts
//  5. distribute the remaining Cash balance over unlinked banks
//
// A failing bank is recorded in Result.Failures and the pass moves on.
func (e *Engine) Run(ctx context.Context, companyID, userID uuid.UUID) (Result, error) {
	logger := e.logger.With(slog.String("company_id", companyID.String()))
	accts, err := e.resolver.Resolve(ctx, companyID)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: resolve accounts: %w", err)
	}
	cash, ok := accts.Get(accounts.RoleCash)
	if !ok {
		return Result{}, ErrNoCashAccount
	}
	banks, err := e.banks.ListBankAccounts(ctx, companyID)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: list banks: %w", err)
	}

	var res Result
	if e.opts.ProvisionSubAccounts {
		banks = e.link(ctx, logger, companyID, cash, banks, &res)
	}

	var linked, unlinked []BankAccount
	for _, b := range banks {
		if b.Linked() && *b.GLAccountID != cash {
			linked = append(linked, b)
		} else {
			unlinked = append(unlinked, b)
		}
	}

	if err := e.reclassify(ctx, logger, companyID, userID, cash, linked, &res); err != nil {
		return res, err
	}
	if err := e.adjustEquity(ctx, logger, companyID, userID, cash, accts, &res); err != nil {
		return res, err
	}

	ids := []uuid.UUID{cash}
	for _, b := range linked {
		ids = append(ids, *b.GLAccountID)
	}
	balances, err := e.ledger.AccountBalances(ctx, companyID, ids)
	if err != nil {
		return res, fmt.Errorf("reconcile: recompute balances: %w", err)
	}
	res.CashBalance = balances[cash]
	res.SubAccountTotal = decimal.Zero
	failed := res.failedBanks()
	for _, b := range linked {
		balance := balances[*b.GLAccountID]
		res.SubAccountTotal = res.SubAccountTotal.Add(balance)
		// A failed bank keeps its nominal balance so the next pass retries it.
		if failed[b.ID] {
			continue
		}
		res.Updates = append(res.Updates, BalanceUpdate{BankID: b.ID, Balance: balance})
	}

	snapshots := make([]Snapshot, 0, len(unlinked))
	for _, b := range unlinked {
		snapshots = append(snapshots, Snapshot{BankID: b.ID, Balance: b.CurrentBalance})
	}
	dist := Distribute(res.CashBalance, snapshots)
	if dist.EqualSplit {
		res.EqualSplit = true
		logger.Warn("unlinked banks had no prior balances, cash split equally",
			slog.Int("banks", len(unlinked)),
			slog.String("cash_balance", res.CashBalance.StringFixed(2)))
	}
	res.Updates = append(res.Updates, dist.Updates...)

	if len(res.Updates) > 0 {
		if err := e.banks.UpdateBalances(ctx, res.Updates); err != nil {
			return res, fmt.Errorf("reconcile: update bank balances: %w", err)
		}
	}

	logger.Info("reconciliation complete",
		slog.Int("linked", res.Linked),
		slog.Int("reclassified", res.Reclassified),
		slog.Bool("adjusted", res.Adjusted),
		slog.Int("failures", len(res.Failures)),
		slog.String("cash_balance", res.CashBalance.StringFixed(2)),
		slog.String("sub_account_total", res.SubAccountTotal.StringFixed(2)))
	return res, nil
}

// link provisions and attaches a GL sub-account to every unlinked bank.
func (e *Engine) link(ctx context.Context, logger *slog.Logger, companyID, cash uuid.UUID, banks []BankAccount, res *Result) []BankAccount {
	var pending []int
	for i, b := range banks {
		if !b.Linked() {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return banks
	}
	chart, err := e.ledger.ListAccounts(ctx, companyID)
	if err != nil {
		for _, i := range pending {
			res.Failures = append(res.Failures, Failure{BankID: banks[i].ID, Step: StepLink, Err: err})
		}
		logger.Error("list chart for bank linking failed", slog.Any("error", err))
		return banks
	}

	out := append([]BankAccount(nil), banks...)
	for _, i := range pending {
		bank := out[i]
		account, err := e.subAccount(ctx, companyID, bank, &chart)
		if err == nil {
			err = e.banks.LinkBankAccount(ctx, bank.ID, account.ID)
		}
		if err != nil {
			res.Failures = append(res.Failures, Failure{BankID: bank.ID, Step: StepLink, Err: err})
			logger.Error("link bank failed", slog.String("bank_id", bank.ID.String()), slog.Any("error", err))
			continue
		}
		id := account.ID
		out[i].GLAccountID = &id
		res.Linked++
		logger.Info("linked bank to sub-account",
			slog.String("bank_id", bank.ID.String()),
			slog.String("account_number", account.Number))
	}
	return out
}

// subAccount finds the bank's "Cash - <name>" account or creates it under the
// lowest free number in the sub-account range.
func (e *Engine) subAccount(ctx context.Context, companyID uuid.UUID, bank BankAccount, chart *[]ledger.Account) (ledger.Account, error) {
	name := SubAccountName(bank)
	used := make(map[int]bool)
	for _, a := range *chart {
		if a.Type == ledger.AccountTypeAsset && a.Active && strings.EqualFold(a.Name, name) {
			return a, nil
		}
		if n, err := strconv.Atoi(a.Number); err == nil {
			used[n] = true
		}
	}
	number := 0
	for n := SubAccountFirst; n <= SubAccountLast; n++ {
		if !used[n] {
			number = n
			break
		}
	}
	if number == 0 {
		return ledger.Account{}, ErrNoSubAccountNumber
	}
	account, err := e.resolver.Ensure(ctx, companyID, ledger.AccountSeed{
		Number:  strconv.Itoa(number),
		Name:    name,
		Type:    ledger.AccountTypeAsset,
		SubType: ledger.SubTypeBank,
	})
	if err != nil {
		return ledger.Account{}, err
	}
	*chart = append(*chart, account)
	return account, nil
}

// reclassify moves each empty sub-account's nominal balance out of Cash.
func (e *Engine) reclassify(ctx context.Context, logger *slog.Logger, companyID, userID, cash uuid.UUID, linked []BankAccount, res *Result) error {
	if len(linked) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(linked))
	for _, b := range linked {
		ids = append(ids, *b.GLAccountID)
	}
	balances, err := e.ledger.AccountBalances(ctx, companyID, ids)
	if err != nil {
		return fmt.Errorf("reconcile: sub-account balances: %w", err)
	}
	for _, b := range linked {
		nominal := ledger.Round(b.CurrentBalance)
		if !balances[*b.GLAccountID].IsZero() || nominal.IsZero() {
			continue
		}
		d := ReclassificationEntry(companyID, userID, cash, b, e.clock())
		result := e.ledger.InsertEntry(ctx, d, ledger.EntryStatusPosted)
		switch result.Outcome {
		case ledger.Inserted:
			res.Reclassified++
			logger.Info("reclassified bank opening balance",
				slog.String("bank_id", b.ID.String()),
				slog.String("amount", nominal.StringFixed(2)))
		case ledger.AlreadyExists:
		default:
			res.Failures = append(res.Failures, Failure{BankID: b.ID, Step: StepReclassify, Err: result.Err})
			logger.Error("reclassification failed",
				slog.String("bank_id", b.ID.String()),
				slog.Any("error", result.Err))
		}
	}
	return nil
}

// ReclassificationEntry moves a bank's nominal balance from Cash into its
// sub-account. Negative balances post the opposite sides.
func ReclassificationEntry(companyID, userID, cash uuid.UUID, bank BankAccount, date time.Time) ledger.Draft {
	amount := ledger.Round(bank.CurrentBalance)
	sub := *bank.GLAccountID
	memo := "Opening balance reclassification - " + bank.Name
	lines := []ledger.LineInput{
		ledger.Debit(sub, amount, memo),
		ledger.Credit(cash, amount, memo),
	}
	if amount.IsNegative() {
		lines = []ledger.LineInput{
			ledger.Debit(cash, amount.Abs(), memo),
			ledger.Credit(sub, amount.Abs(), memo),
		}
	}
	return ledger.Draft{
		CompanyID:   companyID,
		CreatedBy:   userID,
		EntryNumber: "OB-" + strings.ToUpper(bank.ID.String()[:8]),
		EntryDate:   dateOnly(date),
		Description: memo,
		Reference:   BankReference(bank.ID),
		Lines:       lines,
	}
}

// adjustEquity brings a negative Cash balance back to zero against Opening
// Balance Equity, creating the equity account when the chart lacks one.
func (e *Engine) adjustEquity(ctx context.Context, logger *slog.Logger, companyID, userID, cash uuid.UUID, accts accounts.Map, res *Result) error {
	balances, err := e.ledger.AccountBalances(ctx, companyID, []uuid.UUID{cash})
	if err != nil {
		return fmt.Errorf("reconcile: cash balance: %w", err)
	}
	balance := balances[cash]
	if !balance.IsNegative() {
		return nil
	}
	shortfall := ledger.Round(balance.Abs())

	equity, ok := accts.Get(accounts.RoleOpeningBalanceEquity)
	if !ok {
		account, err := e.resolver.Ensure(ctx, companyID, accounts.OpeningBalanceEquitySeed)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Step: StepAdjust, Err: err})
			logger.Error("create opening balance equity failed", slog.Any("error", err))
			return nil
		}
		equity = account.ID
	}

	date := dateOnly(e.clock())
	memo := "Opening balance equity adjustment"
	result := e.ledger.InsertEntry(ctx, ledger.Draft{
		CompanyID:   companyID,
		CreatedBy:   userID,
		EntryNumber: "OBE-" + date.Format("20060102"),
		EntryDate:   date,
		Description: memo,
		Reference:   EquityReference(date, shortfall),
		Lines: []ledger.LineInput{
			ledger.Debit(cash, shortfall, memo),
			ledger.Credit(equity, shortfall, memo),
		},
	}, ledger.EntryStatusPosted)
	switch result.Outcome {
	case ledger.Inserted:
		res.Adjusted = true
		res.AdjustmentAmount = shortfall
		logger.Info("cash shortfall moved to opening balance equity", slog.String("amount", shortfall.StringFixed(2)))
	case ledger.AlreadyExists:
	default:
		res.Failures = append(res.Failures, Failure{Step: StepAdjust, Err: result.Err})
		logger.Error("opening balance equity adjustment failed", slog.Any("error", result.Err))
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
