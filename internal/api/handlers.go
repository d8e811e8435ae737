package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/availability-booking/internal/appointment"
	"github.com/hackgods/availability-booking/internal/availability"
	"github.com/hackgods/availability-booking/internal/booking"
	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/schedule"
)

type BookingService interface {
	Book(ctx context.Context, req booking.Request) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
}

type AvailabilityResolver interface {
	Resolve(ctx context.Context, providerID uuid.UUID, date calendar.Date) (availability.Result, error)
	ResolveRange(ctx context.Context, providerID uuid.UUID, from calendar.Date, days int) ([]availability.Result, error)
}

const defaultRangeDays = 7

func getAvailabilityHandler(resolver AvailabilityResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
			return
		}

		date, err := calendar.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		res, err := resolver.Resolve(r.Context(), providerID, date)
		if err != nil {
			handleServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAvailabilityResponse(providerID, res))
	}
}

func getAvailabilityRangeHandler(resolver AvailabilityResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
			return
		}

		q := r.URL.Query()
		from, err := calendar.ParseDate(q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
			return
		}
		days, err := intParam(q.Get("days"), defaultRangeDays)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_range", "days must be an integer")
			return
		}

		results, err := resolver.ResolveRange(r.Context(), providerID, from, days)
		if err != nil {
			handleServiceError(w, logger, err)
			return
		}

		resp := AvailabilityRangeResponse{
			ProviderID: providerID,
			Days:       make([]AvailabilityResponse, 0, len(results)),
		}
		for _, res := range results {
			resp.Days = append(resp.Days, toAvailabilityResponse(providerID, res))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc BookingService, resolver AvailabilityResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeValidationError(w, err)
			return
		}

		// Formats were checked by the validator.
		bookReq := booking.Request{
			ProviderID: uuid.MustParse(req.ProviderID),
			PatientID:  uuid.MustParse(req.PatientID),
			Motif:      req.Motif,
		}
		bookReq.Date, _ = calendar.ParseDate(req.Date)
		bookReq.StartTime, _ = calendar.ParseTimeOfDay(req.StartTime)

		appt, err := svc.Book(r.Context(), bookReq)
		if err != nil {
			if errors.Is(err, appointment.ErrSlotTaken) {
				writeSlotTaken(w, r, resolver, logger, bookReq, err)
				return
			}
			handleServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// writeSlotTaken answers a lost race with the provider's current free slots
// for the same day so the client can pick another one.
func writeSlotTaken(w http.ResponseWriter, r *http.Request, resolver AvailabilityResolver, logger *zap.Logger, req booking.Request, err error) {
	resp := ErrorResponse{Error: "slot_taken", Details: err.Error()}

	res, resolveErr := resolver.Resolve(r.Context(), req.ProviderID, req.Date)
	if resolveErr != nil {
		logger.Warn("re-offer availability failed",
			zap.String("provider_id", req.ProviderID.String()),
			zap.Error(resolveErr),
		)
	} else {
		offer := toAvailabilityResponse(req.ProviderID, res)
		resp.Availability = &offer
	}

	writeJSON(w, http.StatusConflict, resp)
}

func getAppointmentHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		patientID, err := uuid.Parse(q.Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		limit, err := intParam(q.Get("limit"), 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		offset, err := intParam(q.Get("offset"), 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
			return
		}

		appointments, err := svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleServiceError(w, logger, err)
			return
		}

		resp := ListAppointmentsResponse{
			Appointments: make([]AppointmentResponse, 0, len(appointments)),
			Limit:        limit,
			Offset:       offset,
		}
		for i := range appointments {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appointments[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func confirmAppointmentHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Confirm(r.Context(), id)
		if err != nil {
			handleServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc BookingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, availability.ErrPastDate):
		writeError(w, http.StatusUnprocessableEntity, "past_date", err.Error())
	case errors.Is(err, booking.ErrUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "unavailable", err.Error())
	case errors.Is(err, booking.ErrOutsideWindow):
		writeError(w, http.StatusUnprocessableEntity, "outside_window", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, schedule.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, booking.ErrAppointmentExpired):
		writeError(w, http.StatusConflict, "appointment_expired", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, availability.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, booking.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
