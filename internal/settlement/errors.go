package settlement

import (
	"errors"
	"fmt"

	"aquanexus/marketplace-backend/internal/ledger"
)

// Kind classifies a rejected settlement
type Kind string

const (
	KindProjectNotFound   Kind = "ProjectNotFound"
	KindAlreadySold       Kind = "AlreadySold"
	KindLedgerWriteFailed Kind = "LedgerWriteFailed"
	KindTimeout           Kind = "Timeout"
	KindValidation        Kind = "ValidationError"
	KindInternal          Kind = "Internal"
)

// Error is the only error type returned by Engine operations. Err keeps
// the underlying cause for logs and is never shown to buyers.
type Error struct {
	Kind          Kind
	Message       string
	ProjectID     string
	TransactionID string

	// SoldUnrecorded is set when the project was transitioned to Sold
	// but the ledger append could not be confirmed
	SoldUnrecorded bool
	Record         *ledger.Record

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.ProjectID != "" {
		return fmt.Sprintf("settlement %s: %s (project %s)", e.Kind, msg, e.ProjectID)
	}
	return fmt.Sprintf("settlement %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work
// with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrProjectNotFound   = &Error{Kind: KindProjectNotFound}
	ErrAlreadySold       = &Error{Kind: KindAlreadySold}
	ErrLedgerWriteFailed = &Error{Kind: KindLedgerWriteFailed}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInternal          = &Error{Kind: KindInternal}
)

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
