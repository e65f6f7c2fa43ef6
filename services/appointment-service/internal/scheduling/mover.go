package scheduling

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/status"
)

// Mover applies status moves under optimistic version control. It holds no
// appointment state between calls; losers of a same-id race get a
// VersionConflictError rather than being queued.
type Mover struct {
	store Store
	now   func() time.Time
	sleep func(time.Duration)
}

func NewMover(store Store) *Mover {
	return &Mover{
		store: store,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

type MoveRequest struct {
	ID              string
	NewStatus       model.Status
	NewPosition     int
	ExpectedVersion int64
	Fields          MoveFields
}

// Move runs read -> validate -> conditional write -> re-read. A transient
// storage failure on the conditional write is retried exactly once after a
// randomized 10-25ms backoff; everything else surfaces immediately.
func (m *Mover) Move(ctx context.Context, req MoveRequest) (model.Appointment, error) {
	if !req.NewStatus.Known() {
		return model.Appointment{}, &ValidationError{Reason: fmt.Sprintf("unknown status %q", req.NewStatus)}
	}
	if req.ExpectedVersion < 1 {
		return model.Appointment{}, &ValidationError{Reason: "expected_version must be positive"}
	}
	if req.Fields.CheckInAt != nil && req.Fields.CheckOutAt != nil && req.Fields.CheckOutAt.Before(*req.Fields.CheckInAt) {
		return model.Appointment{}, &ValidationError{Reason: "check_out_at must not precede check_in_at"}
	}

	current, err := m.store.Get(ctx, req.ID)
	if err != nil {
		if m.store.Classify(err) == ClassNotFound {
			return model.Appointment{}, &NotFoundError{ID: req.ID}
		}
		return model.Appointment{}, &StorageError{Op: "get", Err: err}
	}

	// Advisory relative to concurrent writers: the version guard on the
	// conditional write below is the authoritative check.
	if !status.CanTransition(current.Status, req.NewStatus) {
		return model.Appointment{}, &InvalidTransitionError{From: current.Status, To: req.NewStatus}
	}

	fields := req.Fields
	now := m.now().UTC()
	if fields.CheckInAt == nil && req.NewStatus == model.StatusInProgress && current.Status != model.StatusInProgress {
		fields.CheckInAt = &now
	}
	if fields.CheckOutAt == nil && req.NewStatus == model.StatusCompleted && current.Status != model.StatusCompleted {
		fields.CheckOutAt = &now
	}

	updated, err := m.conditionalMove(ctx, req, fields, current.Version)
	if err != nil {
		return model.Appointment{}, err
	}

	detail, err := m.store.GetDetail(ctx, updated.ID)
	if err != nil {
		return model.Appointment{}, &StorageError{Op: "reread", Err: err}
	}
	return detail, nil
}

func (m *Mover) conditionalMove(ctx context.Context, req MoveRequest, fields MoveFields, storedVersion int64) (model.Appointment, error) {
	appt, err := m.store.ConditionalMove(ctx, req.ID, req.ExpectedVersion, req.NewStatus, req.NewPosition, fields)
	if err == nil {
		return appt, nil
	}

	switch m.store.Classify(err) {
	case ClassNotFound:
		// The row existed on the preceding read, so zero matched rows can
		// only mean the version guard failed.
		return model.Appointment{}, &VersionConflictError{ID: req.ID, Expected: req.ExpectedVersion, Actual: storedVersion}
	case ClassTransient:
		m.sleep(retryBackoff())
		appt, err = m.store.ConditionalMove(ctx, req.ID, req.ExpectedVersion, req.NewStatus, req.NewPosition, fields)
		if err == nil {
			return appt, nil
		}
		if m.store.Classify(err) == ClassNotFound {
			return model.Appointment{}, &VersionConflictError{ID: req.ID, Expected: req.ExpectedVersion, Actual: storedVersion}
		}
		// A second transient failure is fatal; never retry more than once.
		return model.Appointment{}, &StorageError{Op: "move", Err: err}
	default:
		return model.Appointment{}, &StorageError{Op: "move", Err: err}
	}
}

// retryBackoff returns the jittered delay before the single retry of a
// transient conditional-write failure.
func retryBackoff() time.Duration {
	return 10*time.Millisecond + rand.N(15*time.Millisecond)
}
