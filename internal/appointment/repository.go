package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/calendar"
)

var (
	ErrNotFound                = errors.New("appointment not found")
	ErrSlotTaken               = errors.New("slot already taken")
	ErrAlreadyCancelled        = errors.New("appointment already cancelled")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// Repository is the reservation store. InsertAppointmentIfFree is the only
// primitive that may create a slot-occupying row and must be atomic with
// respect to the (provider, date, start time) key.
type Repository interface {
	// GetActiveAppointments returns pending and confirmed appointments for the day.
	GetActiveAppointments(ctx context.Context, providerID uuid.UUID, date calendar.Date) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// InsertAppointmentIfFree returns ErrSlotTaken when another active
	// appointment already holds the key.
	InsertAppointmentIfFree(ctx context.Context, n NewAppointment) (*Appointment, error)
	// UpdateAppointmentStatus moves the appointment to `to` only if its current
	// status is one of `from`; otherwise it returns ErrNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, from ...AppointmentStatus) (*Appointment, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
