package document

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed change submission. Index is the
// 0-based position of the offending operation, or -1 when the batch as a
// whole is invalid. Nothing is persisted when validation fails.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid changes: %s", e.Reason)
	}
	return fmt.Sprintf("operation %d: %s", e.Index+1, e.Reason)
}

// ConflictError reports that the document moved past the caller's expected
// version. It is the one recoverable outcome of a mutation: the caller
// should re-fetch at CurrentVersion, re-diff, and retry.
type ConflictError struct {
	CurrentVersion int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: current version is %d", e.CurrentVersion)
}

// ErrDiffSelfCheck reports that a generated diff payload failed to
// reproduce the submitted text on re-application. This is an internal
// invariant violation, never a caller error.
var ErrDiffSelfCheck = errors.New("diff self-check failed")
