package evaluation

import (
	"errors"
	"fmt"
)

// #region sentinels
var (
	// ErrValidation rejects caller input before any evaluation is attempted.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports a missing output, version or catalog entry.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports a first version requested for an output that
	// already has versions.
	ErrAlreadyExists = errors.New("output already has versions")
	// ErrVersionConflict reports a version number taken by a concurrent writer.
	ErrVersionConflict = errors.New("version number conflict")
	// ErrTransient reports conflicts that outlasted the retry budget.
	ErrTransient = errors.New("temporarily unavailable, try again")
	// ErrCorrupt reports stored content that no longer matches its digest.
	ErrCorrupt = errors.New("stored version content does not match digest")
)
// #endregion sentinels

// #region error
// Error carries the failing operation, a message fit for the analyst, and
// the technical cause for the log.
type Error struct {
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error whose cause chain includes kind.
func NewError(op string, kind error, msg string, cause error) error {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &Error{Op: op, Msg: msg, Err: err}
}

// Message returns the analyst-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return "evaluation failed"
}
// #endregion error
