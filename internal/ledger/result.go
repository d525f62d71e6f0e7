package ledger

import "github.com/google/uuid"

// InsertOutcome tags the result of persisting a draft.
type InsertOutcome int

const (
	// Inserted means the header and all lines were committed.
	Inserted InsertOutcome = iota
	// AlreadyExists means another entry already owns the reference.
	AlreadyExists
	// Failed means nothing was written; Err carries the reason.
	Failed
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "failed"
	}
}

// InsertResult is returned by every insert so duplicate references are
// reported as data rather than errors.
type InsertResult struct {
	Outcome InsertOutcome
	EntryID uuid.UUID
	Err     error
}

// InsertedResult builds an Inserted result.
func InsertedResult(id uuid.UUID) InsertResult {
	return InsertResult{Outcome: Inserted, EntryID: id}
}

// ExistsResult builds an AlreadyExists result.
func ExistsResult() InsertResult {
	return InsertResult{Outcome: AlreadyExists}
}

// FailedResult builds a Failed result.
func FailedResult(err error) InsertResult {
	return InsertResult{Outcome: Failed, Err: err}
}
