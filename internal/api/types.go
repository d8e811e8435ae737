package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/appointment"
	"github.com/hackgods/availability-booking/internal/availability"
)

type CreateAppointmentRequest struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
	PatientID  string `json:"patient_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime  string `json:"start_time" validate:"required,hhmm"`
	Motif      string `json:"motif" validate:"max=500"`
}

type AppointmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	Date       string     `json:"date"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	Motif      string     `json:"motif,omitempty"`
	Status     string     `json:"status"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type SlotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// AvailabilityResponse carries slots only when the day is available, so an
// available day with everything booked still renders "slots": [].
type AvailabilityResponse struct {
	ProviderID uuid.UUID       `json:"provider_id"`
	Date       string          `json:"date"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Slots      *[]SlotResponse `json:"slots,omitempty"`
}

type AvailabilityRangeResponse struct {
	ProviderID uuid.UUID              `json:"provider_id"`
	Days       []AvailabilityResponse `json:"days"`
}

type ErrorResponse struct {
	Error        string                `json:"error"`
	Details      string                `json:"details,omitempty"`
	Availability *AvailabilityResponse `json:"availability,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		PatientID:  a.PatientID,
		Date:       a.Date.String(),
		StartTime:  a.StartTime.String(),
		EndTime:    a.EndTime.String(),
		Motif:      a.Motif,
		Status:     string(a.Status),
		ExpiresAt:  a.ExpiresAt,
		CreatedAt:  a.CreatedAt,
	}
}

func toAvailabilityResponse(providerID uuid.UUID, res availability.Result) AvailabilityResponse {
	resp := AvailabilityResponse{
		ProviderID: providerID,
		Date:       res.Date.String(),
	}
	if !res.Available {
		resp.Status = "unavailable"
		resp.Reason = res.Reason
		return resp
	}

	slots := make([]SlotResponse, 0, len(res.Slots))
	for _, s := range res.Slots {
		slots = append(slots, SlotResponse{StartTime: s.Start.String(), EndTime: s.End.String()})
	}
	resp.Status = "available"
	resp.Slots = &slots
	return resp
}
