package scheduling

import (
	"math"
	"time"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
)

// Board column names, in display order.
const (
	ColumnScheduled  = "scheduled"
	ColumnInProgress = "in_progress"
	ColumnReady      = "ready"
	ColumnCompleted  = "completed"
	ColumnNoShow     = "no_show"
)

var columnOrder = []string{ColumnScheduled, ColumnInProgress, ColumnReady, ColumnCompleted, ColumnNoShow}

type Column struct {
	Items []model.Appointment
}

type Stats struct {
	JobsToday    int
	OnPrem       int
	StatusCounts map[string]int
}

type Board struct {
	Date    string
	Columns map[string]Column
	Stats   Stats
}

type DashboardStats struct {
	JobsToday    int
	OnPrem       int
	StatusCounts map[string]int
	UnpaidTotal  float64
}

// columnFor maps a stored status onto its board column. Anything
// unrecognized lands in the scheduled column rather than being dropped.
func columnFor(s model.Status) string {
	switch s {
	case model.StatusInProgress:
		return ColumnInProgress
	case model.StatusReady:
		return ColumnReady
	case model.StatusCompleted:
		return ColumnCompleted
	case model.StatusNoShow:
		return ColumnNoShow
	default:
		return ColumnScheduled
	}
}

// buildBoard groups the day's rows into the five fixed columns and derives
// the board stats. Rows arrive already ordered by (status, position,
// appt_start), which keeps per-column ordering stable.
func buildBoard(day time.Time, rows []model.Appointment) Board {
	columns := make(map[string]Column, len(columnOrder))
	counts := make(map[string]int, len(columnOrder))
	for _, name := range columnOrder {
		columns[name] = Column{Items: []model.Appointment{}}
		counts[name] = 0
	}

	for _, appt := range rows {
		name := columnFor(appt.Status)
		col := columns[name]
		col.Items = append(col.Items, appt)
		columns[name] = col
		counts[name]++
	}

	return Board{
		Date:    day.UTC().Format("2006-01-02"),
		Columns: columns,
		Stats: Stats{
			JobsToday:    len(rows),
			OnPrem:       counts[ColumnInProgress] + counts[ColumnReady],
			StatusCounts: counts,
		},
	}
}

// unpaidTotal sums the outstanding balance over appointments that are still
// live on the board. Completed and no-show jobs do not contribute, and a
// per-appointment contribution never goes negative.
func unpaidTotal(rows []model.Appointment) float64 {
	var sum float64
	for _, appt := range rows {
		switch appt.Status {
		case model.StatusCompleted, model.StatusNoShow:
			continue
		}
		if due := appt.TotalAmount - appt.PaidAmount; due > 0 {
			sum += due
		}
	}
	return math.Round(sum*100) / 100
}
