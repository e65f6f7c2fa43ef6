package scheduling

import (
	"context"
	"time"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
)

// MoveFields are the optional column overrides applied together with a
// conditional move. Nil fields keep their stored values (timestamps may
// still be derived by the mover).
type MoveFields struct {
	CheckInAt  *time.Time
	CheckOutAt *time.Time
	TechID     *string
	Notes      *string
}

// PatchFields is the administrative patch shape. It has no status member on
// purpose: status changes go exclusively through Move.
type PatchFields struct {
	ApptStart   *time.Time
	ApptEnd     *time.Time
	Position    *int
	TechID      *string
	Notes       *string
	TotalAmount *float64
	PaidAmount  *float64
}

// Empty reports whether the patch carries no changes.
func (f PatchFields) Empty() bool {
	return f.ApptStart == nil && f.ApptEnd == nil && f.Position == nil &&
		f.TechID == nil && f.Notes == nil && f.TotalAmount == nil && f.PaidAmount == nil
}

// ListFilter narrows and pages the appointment listing.
type ListFilter struct {
	Status     model.Status
	CustomerID string
	TechID     string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Store is the durable appointment storage this service coordinates through.
// There is no shared in-process appointment state: ConditionalMove is the
// sole compare-and-swap primitive, and every call must honor the caller's
// context deadline.
type Store interface {
	// Get reads the bare row. A missing id yields an error classified
	// ClassNotFound.
	Get(ctx context.Context, id string) (model.Appointment, error)

	// GetDetail reads the row with customer/vehicle display fields joined.
	GetDetail(ctx context.Context, id string) (model.Appointment, error)

	// ConditionalMove atomically updates status, position and the given
	// fields, and bumps version by exactly one, but only while the stored
	// version still equals expectedVersion. When the guard no longer
	// matches it yields an error classified ClassNotFound (the mover
	// disambiguates stale-version from missing-row using its prior read).
	ConditionalMove(ctx context.Context, id string, expectedVersion int64, newStatus model.Status, newPosition int, fields MoveFields) (model.Appointment, error)

	// QueryBoard returns the appointments whose appt_start falls on day
	// (UTC midnight), with display fields joined, ordered by
	// (status, position, appt_start).
	QueryBoard(ctx context.Context, day time.Time) ([]model.Appointment, error)

	// List returns filtered, paged appointments ordered by appt_start.
	List(ctx context.Context, filter ListFilter) ([]model.Appointment, error)

	// Patch applies non-status field changes and bumps version by one.
	Patch(ctx context.Context, id string, fields PatchFields) (model.Appointment, error)

	// Classify maps a storage failure onto the retry policy classes.
	Classify(err error) ErrorClass
}
