package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service is the scheduling facade consumed by the API boundary. It composes
// the mover and the board aggregator over a single Store.
type Service struct {
	store  Store
	mover  *Mover
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		mover:  NewMover(store),
		logger: logger,
	}
}

func (s *Service) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := s.store.GetDetail(ctx, id)
	if err != nil {
		if s.store.Classify(err) == ClassNotFound {
			return model.Appointment{}, &NotFoundError{ID: id}
		}
		return model.Appointment{}, &StorageError{Op: "get", Err: err}
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]model.Appointment, error) {
	if filter.Status != "" && !filter.Status.Known() {
		return nil, &ValidationError{Reason: "unknown status filter " + string(filter.Status)}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	appts, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return appts, nil
}

// Move delegates to the concurrency controller.
func (s *Service) Move(ctx context.Context, req MoveRequest) (model.Appointment, error) {
	appt, err := s.mover.Move(ctx, req)
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment moved",
		"appointment_id", appt.ID,
		"status", appt.Status,
		"position", appt.Position,
		"version", appt.Version,
	)
	return appt, nil
}

// Patch applies administrative field changes. It always bumps version, and
// by construction cannot touch status.
func (s *Service) Patch(ctx context.Context, id string, fields PatchFields) (model.Appointment, error) {
	if fields.Empty() {
		return model.Appointment{}, &ValidationError{Reason: "patch contains no fields"}
	}
	if fields.ApptStart != nil && fields.ApptEnd != nil && !fields.ApptEnd.After(*fields.ApptStart) {
		return model.Appointment{}, &ValidationError{Reason: "appt_end must be after appt_start"}
	}

	appt, err := s.store.Patch(ctx, id, fields)
	if err != nil {
		if s.store.Classify(err) == ClassNotFound {
			return model.Appointment{}, &NotFoundError{ID: id}
		}
		return model.Appointment{}, &StorageError{Op: "patch", Err: err}
	}
	return appt, nil
}

func (s *Service) Board(ctx context.Context, day time.Time) (Board, error) {
	rows, err := s.store.QueryBoard(ctx, day)
	if err != nil {
		return Board{}, &StorageError{Op: "board", Err: err}
	}
	return buildBoard(day, rows), nil
}

// DashboardStats reuses the board query and adds the live unpaid balance.
func (s *Service) DashboardStats(ctx context.Context, day time.Time) (DashboardStats, error) {
	rows, err := s.store.QueryBoard(ctx, day)
	if err != nil {
		return DashboardStats{}, &StorageError{Op: "stats", Err: err}
	}
	board := buildBoard(day, rows)
	return DashboardStats{
		JobsToday:    board.Stats.JobsToday,
		OnPrem:       board.Stats.OnPrem,
		StatusCounts: board.Stats.StatusCounts,
		UnpaidTotal:  unpaidTotal(rows),
	}, nil
}
