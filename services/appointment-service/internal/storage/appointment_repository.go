package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avik-sarkar/autoshop/libs/db"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/outbox"
	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/scheduling"
)

// AppointmentRepository is the Postgres-backed scheduling.Store. The
// conditional move and its outbox event commit in one transaction; no row
// state is cached between calls.
type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

const apptColumns = `
	a.id::text, a.customer_id::text, a.vehicle_id::text,
	a.appt_start, a.appt_end, a.status, a.position,
	a.check_in_at, a.check_out_at, a.tech_id::text,
	a.total_amount::float8, a.paid_amount::float8,
	a.version, COALESCE(a.notes, ''), a.created_at, a.updated_at`

const displayColumns = `,
	COALESCE(c.first_name || ' ' || c.last_name, ''),
	COALESCE(v.make || ' ' || v.model, ''),
	COALESCE(v.license_plate, '')`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID, &a.CustomerID, &a.VehicleID,
		&a.ApptStart, &a.ApptEnd, &a.Status, &a.Position,
		&a.CheckInAt, &a.CheckOutAt, &a.TechID,
		&a.TotalAmount, &a.PaidAmount,
		&a.Version, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func scanAppointmentDetail(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID, &a.CustomerID, &a.VehicleID,
		&a.ApptStart, &a.ApptEnd, &a.Status, &a.Position,
		&a.CheckInAt, &a.CheckOutAt, &a.TechID,
		&a.TotalAmount, &a.PaidAmount,
		&a.Version, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&a.CustomerName, &a.VehicleName, &a.LicensePlate,
	)
	return a, err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments a
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) GetDetail(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+displayColumns+`
		FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		JOIN vehicles v ON v.id = a.vehicle_id
		WHERE a.id = $1
	`, id)
	return scanAppointmentDetail(row)
}

// ConditionalMove is the compare-and-swap primitive: one UPDATE guarded by
// the stored version, bumping it by exactly one. Zero matched rows surface
// as pgx.ErrNoRows for the mover to disambiguate.
func (r *AppointmentRepository) ConditionalMove(ctx context.Context, id string, expectedVersion int64, newStatus model.Status, newPosition int, fields scheduling.MoveFields) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments a
		SET status = $3,
			position = $4,
			check_in_at = COALESCE($5, a.check_in_at),
			check_out_at = COALESCE($6, a.check_out_at),
			tech_id = COALESCE($7::uuid, a.tech_id),
			notes = COALESCE($8, a.notes),
			version = a.version + 1,
			updated_at = now()
		WHERE a.id = $1 AND a.version = $2
		RETURNING `+strings.ReplaceAll(apptColumns, "a.", "")+`
	`, id, expectedVersion, newStatus, newPosition, fields.CheckInAt, fields.CheckOutAt, fields.TechID, fields.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"status":         appt.Status,
		"position":       appt.Position,
		"version":        appt.Version,
		"moved_at":       appt.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentMoved,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) QueryBoard(ctx context.Context, day time.Time) ([]model.Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+displayColumns+`
		FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		JOIN vehicles v ON v.id = a.vehicle_id
		WHERE a.appt_start >= $1 AND a.appt_start < $2
		ORDER BY a.status, a.position, a.appt_start
	`, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) List(ctx context.Context, filter scheduling.ListFilter) ([]model.Appointment, error) {
	where := []string{"true"}
	args := []any{}

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("a.status = $%d", filter.Status)
	}
	if filter.CustomerID != "" {
		add("a.customer_id = $%d", filter.CustomerID)
	}
	if filter.TechID != "" {
		add("a.tech_id = $%d", filter.TechID)
	}
	if !filter.From.IsZero() {
		add("a.appt_start >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("a.appt_start < $%d", filter.To)
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT `+apptColumns+`
		FROM appointments a
		WHERE %s
		ORDER BY a.appt_start
		LIMIT $%d OFFSET $%d
	`, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// Patch updates the administrative fields that are set and bumps version by
// one. Status is not patchable here; moves own it.
func (r *AppointmentRepository) Patch(ctx context.Context, id string, fields scheduling.PatchFields) (model.Appointment, error) {
	set := []string{"version = a.version + 1", "updated_at = now()"}
	args := []any{id}

	add := func(clause string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf(clause, len(args)))
	}
	if fields.ApptStart != nil {
		add("appt_start = $%d", *fields.ApptStart)
	}
	if fields.ApptEnd != nil {
		add("appt_end = $%d", *fields.ApptEnd)
	}
	if fields.Position != nil {
		add("position = $%d", *fields.Position)
	}
	if fields.TechID != nil {
		add("tech_id = $%d::uuid", *fields.TechID)
	}
	if fields.Notes != nil {
		add("notes = $%d", *fields.Notes)
	}
	if fields.TotalAmount != nil {
		add("total_amount = $%d", *fields.TotalAmount)
	}
	if fields.PaidAmount != nil {
		add("paid_amount = $%d", *fields.PaidAmount)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE appointments a
		SET %s
		WHERE a.id = $1
		RETURNING `+strings.ReplaceAll(apptColumns, "a.", "")+`
	`, strings.Join(set, ", ")), args...)

	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"version":        appt.Version,
		"patched_at":     appt.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentPatched,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// ApplyPayment records an externally collected payment against the open
// balance. Used by the billing event consumer; bumps version like every
// other mutation.
func (r *AppointmentRepository) ApplyPayment(ctx context.Context, id string, amount float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET paid_amount = paid_amount + $2,
			version = version + 1,
			updated_at = now()
		WHERE id = $1
	`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentRepository) Classify(err error) scheduling.ErrorClass {
	return Classify(err)
}
