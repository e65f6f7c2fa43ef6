package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/scheduling"
)

var errNoRow = errors.New("no rows")

type stubStore struct {
	rows      map[string]model.Appointment
	boardRows []model.Appointment
}

func (s *stubStore) Get(_ context.Context, id string) (model.Appointment, error) {
	row, ok := s.rows[id]
	if !ok {
		return model.Appointment{}, errNoRow
	}
	return row, nil
}

func (s *stubStore) GetDetail(ctx context.Context, id string) (model.Appointment, error) {
	return s.Get(ctx, id)
}

func (s *stubStore) ConditionalMove(_ context.Context, id string, expectedVersion int64, newStatus model.Status, newPosition int, fields scheduling.MoveFields) (model.Appointment, error) {
	row, ok := s.rows[id]
	if !ok || row.Version != expectedVersion {
		return model.Appointment{}, errNoRow
	}
	row.Status = newStatus
	row.Position = newPosition
	if fields.CheckInAt != nil {
		row.CheckInAt = fields.CheckInAt
	}
	if fields.CheckOutAt != nil {
		row.CheckOutAt = fields.CheckOutAt
	}
	row.Version++
	s.rows[id] = row
	return row, nil
}

func (s *stubStore) QueryBoard(_ context.Context, _ time.Time) ([]model.Appointment, error) {
	return s.boardRows, nil
}

func (s *stubStore) List(_ context.Context, _ scheduling.ListFilter) ([]model.Appointment, error) {
	out := make([]model.Appointment, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *stubStore) Patch(_ context.Context, id string, fields scheduling.PatchFields) (model.Appointment, error) {
	row, ok := s.rows[id]
	if !ok {
		return model.Appointment{}, errNoRow
	}
	if fields.Notes != nil {
		row.Notes = *fields.Notes
	}
	if fields.Position != nil {
		row.Position = *fields.Position
	}
	row.Version++
	s.rows[id] = row
	return row, nil
}

func (s *stubStore) Classify(err error) scheduling.ErrorClass {
	if errors.Is(err, errNoRow) {
		return scheduling.ClassNotFound
	}
	return scheduling.ClassFatal
}

func newTestHandler(rows ...model.Appointment) (*AppointmentHandler, *stubStore) {
	store := &stubStore{rows: make(map[string]model.Appointment, len(rows))}
	for _, row := range rows {
		store.rows[row.ID] = row
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAppointmentHandler(scheduling.NewService(store, logger), logger), store
}

func seedAppointment(id string, status model.Status, version int64) model.Appointment {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return model.Appointment{
		ID:         id,
		CustomerID: "cust-1",
		VehicleID:  "veh-1",
		ApptStart:  start,
		ApptEnd:    start.Add(time.Hour),
		Status:     status,
		Version:    version,
		CreatedAt:  start,
		UpdatedAt:  start,
	}
}

func TestMoveHandler_Success(t *testing.T) {
	h, _ := newTestHandler(seedAppointment("a1", model.StatusScheduled, 1))

	body := `{"appointment_id":"a1","new_status":"IN_PROGRESS","new_position":2,"expected_version":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/move", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Move(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got appointmentItem
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "IN_PROGRESS" || got.Version != 2 || got.Position != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.CheckInAt == "" {
		t.Fatal("check_in_at missing from response")
	}
}

func TestMoveHandler_VersionConflict(t *testing.T) {
	h, _ := newTestHandler(seedAppointment("a1", model.StatusScheduled, 4))

	body := `{"appointment_id":"a1","new_status":"IN_PROGRESS","expected_version":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/move", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Move(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["expected_version"].(float64) != 2 || resp["actual_version"].(float64) != 4 {
		t.Fatalf("conflict body = %v", resp)
	}
}

func TestMoveHandler_InvalidTransition(t *testing.T) {
	h, _ := newTestHandler(seedAppointment("a1", model.StatusCompleted, 1))

	body := `{"appointment_id":"a1","new_status":"IN_PROGRESS","expected_version":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/move", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Move(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["current_status"] != "COMPLETED" || resp["requested_status"] != "IN_PROGRESS" {
		t.Fatalf("conflict body = %v", resp)
	}
}

func TestMoveHandler_UnknownStatus(t *testing.T) {
	h, _ := newTestHandler(seedAppointment("a1", model.StatusScheduled, 1))

	body := `{"appointment_id":"a1","new_status":"PARKED","expected_version":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/move", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Move(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMoveHandler_NotFound(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"appointment_id":"ghost","new_status":"IN_PROGRESS","expected_version":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/move", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Move(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMoveHandler_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/move", nil)
	rec := httptest.NewRecorder()
	h.Move(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestPatchHandler_RejectsStatusKey(t *testing.T) {
	h, store := newTestHandler(seedAppointment("a1", model.StatusScheduled, 1))

	body := `{"appointment_id":"a1","fields":{"status":"COMPLETED"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/patch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Patch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := store.rows["a1"]; got.Status != model.StatusScheduled || got.Version != 1 {
		t.Fatalf("patch with status key wrote: %+v", got)
	}
}

func TestPatchHandler_RejectsUnknownKey(t *testing.T) {
	h, _ := newTestHandler(seedAppointment("a1", model.StatusScheduled, 1))

	body := `{"appointment_id":"a1","fields":{"color":"red"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/patch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Patch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPatchHandler_AppliesFields(t *testing.T) {
	h, _ := newTestHandler(seedAppointment("a1", model.StatusScheduled, 1))

	body := `{"appointment_id":"a1","fields":{"notes":"customer waiting","position":3}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/patch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Patch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got appointmentItem
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Notes != "customer waiting" || got.Position != 3 || got.Version != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestPatchHandler_EmptyPatch(t *testing.T) {
	h, _ := newTestHandler(seedAppointment("a1", model.StatusScheduled, 1))

	body := `{"appointment_id":"a1","fields":{}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/patch", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Patch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBoardHandler_Shape(t *testing.T) {
	h, store := newTestHandler()
	store.boardRows = []model.Appointment{
		seedAppointment("s1", model.StatusScheduled, 1),
		seedAppointment("p1", model.StatusInProgress, 1),
		seedAppointment("r1", model.StatusReady, 1),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/board?date=2025-06-02", nil)
	rec := httptest.NewRecorder()
	h.Board(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp boardResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2025-06-02" {
		t.Fatalf("date = %s", resp.Date)
	}
	if len(resp.Columns) != 5 {
		t.Fatalf("columns = %d, want 5", len(resp.Columns))
	}
	if resp.Stats.JobsToday != 3 || resp.Stats.OnPrem != 2 {
		t.Fatalf("stats = %+v", resp.Stats)
	}
	if len(resp.Columns["completed"].Items) != 0 {
		t.Fatal("empty column missing or non-empty")
	}
}

func TestBoardHandler_BadDate(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/board?date=June-2", nil)
	rec := httptest.NewRecorder()
	h.Board(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDashboardStatsHandler(t *testing.T) {
	h, store := newTestHandler()
	scheduled := seedAppointment("s1", model.StatusScheduled, 1)
	scheduled.TotalAmount = 120
	scheduled.PaidAmount = 20
	done := seedAppointment("c1", model.StatusCompleted, 1)
	done.TotalAmount = 400
	store.boardRows = []model.Appointment{scheduled, done}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats?date=2025-06-02", nil)
	rec := httptest.NewRecorder()
	h.DashboardStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp dashboardResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobsToday != 2 || resp.UnpaidTotal != 100 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestGetHandler_NotFound(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/detail?id=ghost", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
