package scheduling

import (
	"testing"
	"time"

	"github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"
)

func boardRow(id string, status model.Status, position int, total, paid float64) model.Appointment {
	start := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	return model.Appointment{
		ID:          id,
		Status:      status,
		Position:    position,
		ApptStart:   start,
		ApptEnd:     start.Add(time.Hour),
		TotalAmount: total,
		PaidAmount:  paid,
		Version:     1,
	}
}

func TestBuildBoard_GroupsAndCounts(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := []model.Appointment{
		boardRow("s1", model.StatusScheduled, 0, 100, 0),
		boardRow("s2", model.StatusScheduled, 1, 50, 0),
		boardRow("s3", model.StatusScheduled, 2, 80, 0),
		boardRow("p1", model.StatusInProgress, 0, 200, 50),
		boardRow("r1", model.StatusReady, 0, 120, 120),
		boardRow("n1", model.StatusNoShow, 0, 60, 0),
	}

	board := buildBoard(day, rows)

	if board.Date != "2025-06-02" {
		t.Fatalf("date = %s", board.Date)
	}
	if board.Stats.JobsToday != 6 {
		t.Fatalf("jobs_today = %d, want 6", board.Stats.JobsToday)
	}
	if board.Stats.OnPrem != 2 {
		t.Fatalf("on_prem = %d, want 2 (in_progress + ready)", board.Stats.OnPrem)
	}

	wantCounts := map[string]int{
		ColumnScheduled: 3, ColumnInProgress: 1, ColumnReady: 1, ColumnCompleted: 0, ColumnNoShow: 1,
	}
	for name, want := range wantCounts {
		if got := board.Stats.StatusCounts[name]; got != want {
			t.Fatalf("status_counts[%s] = %d, want %d", name, got, want)
		}
		if got := len(board.Columns[name].Items); got != want {
			t.Fatalf("len(columns[%s]) = %d, want %d", name, got, want)
		}
	}
}

func TestBuildBoard_EmptyDayHasAllColumns(t *testing.T) {
	board := buildBoard(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), nil)

	if len(board.Columns) != 5 {
		t.Fatalf("columns = %d, want 5", len(board.Columns))
	}
	for _, name := range columnOrder {
		col, ok := board.Columns[name]
		if !ok {
			t.Fatalf("column %s missing", name)
		}
		if col.Items == nil || len(col.Items) != 0 {
			t.Fatalf("column %s not an empty slice", name)
		}
		if board.Stats.StatusCounts[name] != 0 {
			t.Fatalf("status_counts[%s] = %d, want 0", name, board.Stats.StatusCounts[name])
		}
	}
	if board.Stats.JobsToday != 0 || board.Stats.OnPrem != 0 {
		t.Fatalf("stats = %+v, want zeros", board.Stats)
	}
}

func TestBuildBoard_UnknownStatusFallsToScheduled(t *testing.T) {
	rows := []model.Appointment{boardRow("x1", "LEGACY_STATE", 0, 10, 0)}
	board := buildBoard(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), rows)

	if len(board.Columns[ColumnScheduled].Items) != 1 {
		t.Fatalf("unknown status not routed to scheduled column")
	}
	if board.Stats.JobsToday != 1 {
		t.Fatalf("jobs_today = %d, want 1", board.Stats.JobsToday)
	}
}

func TestBuildBoard_PreservesRowOrderWithinColumn(t *testing.T) {
	rows := []model.Appointment{
		boardRow("s1", model.StatusScheduled, 0, 0, 0),
		boardRow("s2", model.StatusScheduled, 1, 0, 0),
		boardRow("s3", model.StatusScheduled, 2, 0, 0),
	}
	board := buildBoard(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), rows)

	items := board.Columns[ColumnScheduled].Items
	for i, want := range []string{"s1", "s2", "s3"} {
		if items[i].ID != want {
			t.Fatalf("items[%d].ID = %s, want %s", i, items[i].ID, want)
		}
	}
}

func TestBuildBoard_Idempotent(t *testing.T) {
	rows := []model.Appointment{
		boardRow("s1", model.StatusScheduled, 0, 0, 0),
		boardRow("p1", model.StatusInProgress, 0, 0, 0),
	}
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	first := buildBoard(day, rows)
	second := buildBoard(day, rows)

	if first.Stats.JobsToday != second.Stats.JobsToday || first.Stats.OnPrem != second.Stats.OnPrem {
		t.Fatalf("stats differ across rebuilds: %+v vs %+v", first.Stats, second.Stats)
	}
	for _, name := range columnOrder {
		if len(first.Columns[name].Items) != len(second.Columns[name].Items) {
			t.Fatalf("column %s differs across rebuilds", name)
		}
	}
}

func TestUnpaidTotal_ExcludesSettledStates(t *testing.T) {
	rows := []model.Appointment{
		boardRow("s1", model.StatusScheduled, 0, 100, 40),  // 60 due
		boardRow("p1", model.StatusInProgress, 0, 50, 70),  // overpaid, clamps to 0
		boardRow("c1", model.StatusCompleted, 0, 500, 0),   // excluded
		boardRow("n1", model.StatusNoShow, 0, 30, 0),       // excluded
		boardRow("r1", model.StatusReady, 0, 0.1, 0),       // 0.10
		boardRow("r2", model.StatusReady, 1, 0.2, 0),       // 0.20
	}

	got := unpaidTotal(rows)
	if got != 60.3 {
		t.Fatalf("unpaid_total = %v, want 60.3", got)
	}
}

func TestUnpaidTotal_Empty(t *testing.T) {
	if got := unpaidTotal(nil); got != 0 {
		t.Fatalf("unpaid_total = %v, want 0", got)
	}
}
