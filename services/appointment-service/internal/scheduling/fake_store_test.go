package scheduling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
)

var (
	errFakeNoRow     = errors.New("fake: no rows")
	errFakeTransient = errors.New("fake: serialization failure")
	errFakeFatal     = errors.New("fake: connection refused")
)

// fakeStore is an in-memory Store with real compare-and-swap semantics plus
// an error queue for forcing failures on specific ConditionalMove attempts.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]model.Appointment

	moveErrs   []error
	moveCalls  int
	lastFilter ListFilter
	boardRows  []model.Appointment
}

func newFakeStore(rows ...model.Appointment) *fakeStore {
	s := &fakeStore{rows: make(map[string]model.Appointment, len(rows))}
	for _, row := range rows {
		s.rows[row.ID] = row
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return model.Appointment{}, errFakeNoRow
	}
	return row, nil
}

func (s *fakeStore) GetDetail(ctx context.Context, id string) (model.Appointment, error) {
	return s.Get(ctx, id)
}

func (s *fakeStore) ConditionalMove(_ context.Context, id string, expectedVersion int64, newStatus model.Status, newPosition int, fields MoveFields) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moveCalls++

	if len(s.moveErrs) > 0 {
		err := s.moveErrs[0]
		s.moveErrs = s.moveErrs[1:]
		return model.Appointment{}, err
	}

	row, ok := s.rows[id]
	if !ok || row.Version != expectedVersion {
		return model.Appointment{}, errFakeNoRow
	}

	row.Status = newStatus
	row.Position = newPosition
	if fields.CheckInAt != nil {
		row.CheckInAt = fields.CheckInAt
	}
	if fields.CheckOutAt != nil {
		row.CheckOutAt = fields.CheckOutAt
	}
	if fields.TechID != nil {
		row.TechID = fields.TechID
	}
	if fields.Notes != nil {
		row.Notes = *fields.Notes
	}
	row.Version++
	row.UpdatedAt = time.Now().UTC()
	s.rows[id] = row
	return row, nil
}

func (s *fakeStore) QueryBoard(_ context.Context, _ time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Appointment(nil), s.boardRows...), nil
}

func (s *fakeStore) List(_ context.Context, filter ListFilter) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	out := make([]model.Appointment, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *fakeStore) Patch(_ context.Context, id string, fields PatchFields) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return model.Appointment{}, errFakeNoRow
	}
	if fields.ApptStart != nil {
		row.ApptStart = *fields.ApptStart
	}
	if fields.ApptEnd != nil {
		row.ApptEnd = *fields.ApptEnd
	}
	if fields.Position != nil {
		row.Position = *fields.Position
	}
	if fields.TechID != nil {
		row.TechID = fields.TechID
	}
	if fields.Notes != nil {
		row.Notes = *fields.Notes
	}
	if fields.TotalAmount != nil {
		row.TotalAmount = *fields.TotalAmount
	}
	if fields.PaidAmount != nil {
		row.PaidAmount = *fields.PaidAmount
	}
	row.Version++
	row.UpdatedAt = time.Now().UTC()
	s.rows[id] = row
	return row, nil
}

func (s *fakeStore) Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, errFakeNoRow):
		return ClassNotFound
	case errors.Is(err, errFakeTransient):
		return ClassTransient
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ClassFatal
	default:
		return ClassFatal
	}
}

func (s *fakeStore) row(id string) model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveCalls
}
