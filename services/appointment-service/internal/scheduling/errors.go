package scheduling

import (
	"fmt"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
)

// ErrorClass buckets storage failures for the retry policy. Only Transient
// failures are ever retried, and only once.
type ErrorClass int

const (
	ClassFatal ErrorClass = iota
	ClassTransient
	ClassConflict
	ClassNotFound
)

// ValidationError rejects malformed input before any storage round trip.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// InvalidTransitionError reports a move that the state graph forbids. The
// caller should re-fetch the appointment before retrying deliberately.
type InvalidTransitionError struct {
	From model.Status
	To   model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// VersionConflictError reports a lost compare-and-swap race. Expected is the
// version the caller presented; Actual is the version observed on the
// preceding read, so the client can refresh and reapply.
type VersionConflictError struct {
	ID       string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on appointment %s: expected %d, stored %d", e.ID, e.Expected, e.Actual)
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "appointment not found: " + e.ID
}

// StorageError wraps a backing-store failure that was not absorbed by the
// single transient retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
