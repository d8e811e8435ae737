package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/calendar"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// ActiveStatuses are the statuses that occupy a slot.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

// Active reports whether an appointment in this status holds its slot.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s AppointmentStatus) Valid() bool {
	return s.Active() || s == StatusCancelled
}

// CanTransition lists the allowed status moves. Cancelled is terminal.
func CanTransition(from, to AppointmentStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCancelled
	}
	return false
}

// SlotKey identifies the slot an active appointment occupies.
type SlotKey struct {
	ProviderID uuid.UUID
	Date       calendar.Date
	StartTime  calendar.TimeOfDay
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.ProviderID, k.Date, k.StartTime)
}

type Appointment struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	Date       calendar.Date
	StartTime  calendar.TimeOfDay
	EndTime    calendar.TimeOfDay
	Motif      string
	Status     AppointmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  *time.Time // set while pending
}

func (a *Appointment) Key() SlotKey {
	return SlotKey{ProviderID: a.ProviderID, Date: a.Date, StartTime: a.StartTime}
}

// NewAppointment is the input to InsertAppointmentIfFree.
type NewAppointment struct {
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	Date       calendar.Date
	StartTime  calendar.TimeOfDay
	EndTime    calendar.TimeOfDay
	Motif      string
	Status     AppointmentStatus
	ExpiresAt  *time.Time
}

func (n NewAppointment) Key() SlotKey {
	return SlotKey{ProviderID: n.ProviderID, Date: n.Date, StartTime: n.StartTime}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
