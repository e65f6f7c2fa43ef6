package model

import "time"

// Status is the workflow state of an appointment on the shop board.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReady      Status = "READY"
	StatusCompleted  Status = "COMPLETED"
	StatusNoShow     Status = "NO_SHOW"
)

// Known reports whether s is one of the five recognized workflow states.
func (s Status) Known() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusReady, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID          string
	CustomerID  string
	VehicleID   string
	ApptStart   time.Time
	ApptEnd     time.Time
	Status      Status
	Position    int
	CheckInAt   *time.Time
	CheckOutAt  *time.Time
	TechID      *string
	TotalAmount float64
	PaidAmount  float64
	Version     int64
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Display fields joined from customers/vehicles for the board view.
	// Empty on plain point reads.
	CustomerName string
	VehicleName  string
	LicensePlate string
}
