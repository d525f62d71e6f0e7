package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerBackfill generates journal entries for historical events.
	TaskLedgerBackfill = "ledger:backfill"
	// TaskLedgerReconcile reconciles bank balances with the cash ledger.
	TaskLedgerReconcile = "ledger:reconcile"

	// AllCompanies scopes a task to every company with a chart of accounts.
	AllCompanies = "all"

	asOfLayout = "2006-01-02"
)

// LedgerPayload is the JSON body shared by the ledger tasks.
type LedgerPayload struct {
	CompanyID string `json:"company_id" validate:"required,uuid|eq=all"`
	UserID    string `json:"user_id,omitempty" validate:"omitempty,uuid"`
	AsOf      string `json:"as_of,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

var payloadValidator = validator.New()

// ledgerScope is a decoded LedgerPayload.
type ledgerScope struct {
	all       bool
	companyID uuid.UUID
	userID    uuid.UUID
	asOf      time.Time
}

// NewBackfillTask builds a ledger:backfill task. An empty company means all.
func NewBackfillTask(companyID string, userID uuid.UUID, asOf time.Time) (*asynq.Task, error) {
	return newLedgerTask(TaskLedgerBackfill, companyID, userID, asOf)
}

// NewReconcileTask builds a ledger:reconcile task. An empty company means all.
func NewReconcileTask(companyID string, userID uuid.UUID) (*asynq.Task, error) {
	return newLedgerTask(TaskLedgerReconcile, companyID, userID, time.Time{})
}

func newLedgerTask(typename, companyID string, userID uuid.UUID, asOf time.Time) (*asynq.Task, error) {
	if companyID == "" {
		companyID = AllCompanies
	}
	payload := LedgerPayload{CompanyID: companyID}
	if userID != uuid.Nil {
		payload.UserID = userID.String()
	}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format(asOfLayout)
	}
	if err := payloadValidator.Struct(payload); err != nil {
		return nil, fmt.Errorf("jobs: %s payload: %w", typename, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// decodeLedgerPayload parses and validates a task body. Errors wrap
// asynq.SkipRetry since a malformed payload never succeeds.
func decodeLedgerPayload(body []byte) (ledgerScope, error) {
	var payload LedgerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ledgerScope{}, fmt.Errorf("jobs: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payloadValidator.Struct(payload); err != nil {
		return ledgerScope{}, fmt.Errorf("jobs: invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	var scope ledgerScope
	if payload.CompanyID == AllCompanies {
		scope.all = true
	} else {
		scope.companyID = uuid.MustParse(payload.CompanyID)
	}
	if payload.UserID != "" {
		scope.userID = uuid.MustParse(payload.UserID)
	}
	if payload.AsOf != "" {
		asOf, err := time.Parse(asOfLayout, payload.AsOf)
		if err != nil {
			return ledgerScope{}, fmt.Errorf("jobs: as_of: %v: %w", err, asynq.SkipRetry)
		}
		scope.asOf = asOf
	}
	return scope, nil
}
