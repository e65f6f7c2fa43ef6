package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/scheduling"
)

type AppointmentHandler struct {
	svc    *scheduling.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *scheduling.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type appointmentItem struct {
	AppointmentID string  `json:"appointment_id"`
	CustomerID    string  `json:"customer_id"`
	VehicleID     string  `json:"vehicle_id"`
	CustomerName  string  `json:"customer_name,omitempty"`
	Vehicle       string  `json:"vehicle,omitempty"`
	LicensePlate  string  `json:"license_plate,omitempty"`
	ApptStart     string  `json:"appt_start"`
	ApptEnd       string  `json:"appt_end"`
	Status        string  `json:"status"`
	Position      int     `json:"position"`
	CheckInAt     string  `json:"check_in_at,omitempty"`
	CheckOutAt    string  `json:"check_out_at,omitempty"`
	TechID        string  `json:"tech_id,omitempty"`
	TotalAmount   float64 `json:"total_amount"`
	PaidAmount    float64 `json:"paid_amount"`
	Version       int64   `json:"version"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func toItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: a.ID,
		CustomerID:    a.CustomerID,
		VehicleID:     a.VehicleID,
		CustomerName:  a.CustomerName,
		Vehicle:       a.VehicleName,
		LicensePlate:  a.LicensePlate,
		ApptStart:     a.ApptStart.UTC().Format(time.RFC3339),
		ApptEnd:       a.ApptEnd.UTC().Format(time.RFC3339),
		Status:        string(a.Status),
		Position:      a.Position,
		TotalAmount:   a.TotalAmount,
		PaidAmount:    a.PaidAmount,
		Version:       a.Version,
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if a.CheckInAt != nil {
		item.CheckInAt = a.CheckInAt.UTC().Format(time.RFC3339)
	}
	if a.CheckOutAt != nil {
		item.CheckOutAt = a.CheckOutAt.UTC().Format(time.RFC3339)
	}
	if a.TechID != nil {
		item.TechID = *a.TechID
	}
	return item
}

type moveRequest struct {
	AppointmentID   string `json:"appointment_id"`
	NewStatus       string `json:"new_status"`
	NewPosition     int    `json:"new_position"`
	ExpectedVersion int64  `json:"expected_version"`
	CheckInAt       string `json:"check_in_at"`
	CheckOutAt      string `json:"check_out_at"`
	TechID          string `json:"tech_id"`
	Notes           string `json:"notes"`
}

func (h *AppointmentHandler) Move(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	fields := scheduling.MoveFields{}
	if req.CheckInAt != "" {
		t, err := time.Parse(time.RFC3339, req.CheckInAt)
		if err != nil {
			http.Error(w, "invalid check_in_at", http.StatusBadRequest)
			return
		}
		fields.CheckInAt = &t
	}
	if req.CheckOutAt != "" {
		t, err := time.Parse(time.RFC3339, req.CheckOutAt)
		if err != nil {
			http.Error(w, "invalid check_out_at", http.StatusBadRequest)
			return
		}
		fields.CheckOutAt = &t
	}
	if v := strings.TrimSpace(req.TechID); v != "" {
		fields.TechID = &v
	}
	if req.Notes != "" {
		fields.Notes = &req.Notes
	}

	appt, err := h.svc.Move(r.Context(), scheduling.MoveRequest{
		ID:              req.AppointmentID,
		NewStatus:       model.Status(strings.TrimSpace(req.NewStatus)),
		NewPosition:     req.NewPosition,
		ExpectedVersion: req.ExpectedVersion,
		Fields:          fields,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

// patchKeys is the closed set of administratively patchable fields. Status
// is deliberately absent: status changes go through the move endpoint, never
// around the transition check.
var patchKeys = map[string]bool{
	"appt_start":   true,
	"appt_end":     true,
	"position":     true,
	"tech_id":      true,
	"notes":        true,
	"total_amount": true,
	"paid_amount":  true,
}

type patchRequest struct {
	AppointmentID string                     `json:"appointment_id"`
	Fields        map[string]json.RawMessage `json:"fields"`
}

func (h *AppointmentHandler) Patch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	fields, err := parsePatchFields(req.Fields)
	if err != nil {
		h.writeError(w, err)
		return
	}

	appt, err := h.svc.Patch(r.Context(), req.AppointmentID, fields)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

func parsePatchFields(raw map[string]json.RawMessage) (scheduling.PatchFields, error) {
	var fields scheduling.PatchFields
	for key, value := range raw {
		if key == "status" {
			return fields, &scheduling.ValidationError{Reason: "status is not patchable; use the move endpoint"}
		}
		if !patchKeys[key] {
			return fields, &scheduling.ValidationError{Reason: "unknown patch field " + key}
		}

		switch key {
		case "appt_start", "appt_end":
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fields, &scheduling.ValidationError{Reason: key + " must be an RFC3339 string"}
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return fields, &scheduling.ValidationError{Reason: "invalid " + key}
			}
			if key == "appt_start" {
				fields.ApptStart = &t
			} else {
				fields.ApptEnd = &t
			}
		case "position":
			var n int
			if err := json.Unmarshal(value, &n); err != nil {
				return fields, &scheduling.ValidationError{Reason: "position must be an integer"}
			}
			fields.Position = &n
		case "tech_id", "notes":
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fields, &scheduling.ValidationError{Reason: key + " must be a string"}
			}
			if key == "tech_id" {
				fields.TechID = &s
			} else {
				fields.Notes = &s
			}
		case "total_amount", "paid_amount":
			var f float64
			if err := json.Unmarshal(value, &f); err != nil {
				return fields, &scheduling.ValidationError{Reason: key + " must be a number"}
			}
			if f < 0 {
				return fields, &scheduling.ValidationError{Reason: key + " must not be negative"}
			}
			if key == "total_amount" {
				fields.TotalAmount = &f
			} else {
				fields.PaidAmount = &f
			}
		}
	}
	return fields, nil
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := scheduling.ListFilter{
		Status:     model.Status(strings.TrimSpace(q.Get("status"))),
		CustomerID: strings.TrimSpace(q.Get("customer_id")),
		TechID:     strings.TrimSpace(q.Get("tech_id")),
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		filter.From = t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		filter.To = t
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	appts, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toItem(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

type boardColumn struct {
	Items []appointmentItem `json:"items"`
}

type boardStats struct {
	JobsToday    int            `json:"jobs_today"`
	OnPrem       int            `json:"on_prem"`
	StatusCounts map[string]int `json:"status_counts"`
}

type boardResponse struct {
	Date    string                 `json:"date"`
	Columns map[string]boardColumn `json:"columns"`
	Stats   boardStats             `json:"stats"`
}

func (h *AppointmentHandler) Board(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day, ok := parseDay(w, r)
	if !ok {
		return
	}

	board, err := h.svc.Board(r.Context(), day)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := boardResponse{
		Date:    board.Date,
		Columns: make(map[string]boardColumn, len(board.Columns)),
		Stats: boardStats{
			JobsToday:    board.Stats.JobsToday,
			OnPrem:       board.Stats.OnPrem,
			StatusCounts: board.Stats.StatusCounts,
		},
	}
	for name, col := range board.Columns {
		items := make([]appointmentItem, 0, len(col.Items))
		for _, appt := range col.Items {
			items = append(items, toItem(appt))
		}
		resp.Columns[name] = boardColumn{Items: items}
	}
	writeJSON(w, http.StatusOK, resp)
}

type dashboardResponse struct {
	JobsToday    int            `json:"jobs_today"`
	OnPrem       int            `json:"on_prem"`
	StatusCounts map[string]int `json:"status_counts"`
	UnpaidTotal  float64        `json:"unpaid_total"`
}

func (h *AppointmentHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day, ok := parseDay(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.DashboardStats(r.Context(), day)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		JobsToday:    stats.JobsToday,
		OnPrem:       stats.OnPrem,
		StatusCounts: stats.StatusCounts,
		UnpaidTotal:  stats.UnpaidTotal,
	})
}

func parseDay(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		http.Error(w, "date required (YYYY-MM-DD)", http.StatusBadRequest)
		return time.Time{}, false
	}
	day, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return time.Time{}, false
	}
	return day, true
}

// writeError maps the scheduling error taxonomy onto HTTP statuses. Conflict
// responses carry enough detail for the client to refresh and retry
// deliberately.
func (h *AppointmentHandler) writeError(w http.ResponseWriter, err error) {
	var validationErr *scheduling.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": validationErr.Error()})
		return
	}

	var transitionErr *scheduling.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            transitionErr.Error(),
			"current_status":   transitionErr.From,
			"requested_status": transitionErr.To,
		})
		return
	}

	var versionErr *scheduling.VersionConflictError
	if errors.As(err, &versionErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            versionErr.Error(),
			"expected_version": versionErr.Expected,
			"actual_version":   versionErr.Actual,
		})
		return
	}

	var notFoundErr *scheduling.NotFoundError
	if errors.As(err, &notFoundErr) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": notFoundErr.Error()})
		return
	}

	h.logger.Error("appointment operation failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "storage failure"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
