package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/availability-booking/internal/appointment"
	"github.com/hackgods/availability-booking/internal/availability"
	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/config"
	redisclient "github.com/hackgods/availability-booking/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
)

var (
	ErrInvalidRequest     = errors.New("invalid booking request")
	ErrUnavailable        = errors.New("provider is unavailable on this date")
	ErrOutsideWindow      = errors.New("start time is not a slot in the provider's availability")
	ErrAppointmentExpired = errors.New("appointment hold has expired")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Request struct {
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	Date       calendar.Date
	StartTime  calendar.TimeOfDay
	Motif      string
}

type Service struct {
	resolver *availability.Resolver
	repo     appointment.Repository
	locker   redisclient.Locker
	cfg      config.Config
	clock    calendar.Clock
	logger   *zap.Logger
}

// NewService wires the booking flow. locker may be nil, in which case only
// the reservation store serialises competing bookings.
func NewService(resolver *availability.Resolver, repo appointment.Repository, locker redisclient.Locker, cfg config.Config, clock calendar.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver: resolver,
		repo:     repo,
		locker:   locker,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}
}

// Book reserves req.StartTime for the patient.
//
// The resolver pre-checks reject past dates, closed days and start times that
// are not generated slots. The commit itself is a single insert that fails
// with appointment.ErrSlotTaken when another active appointment holds the key.
func (s *Service) Book(ctx context.Context, req Request) (*appointment.Appointment, error) {
	if req.ProviderID == uuid.Nil || req.PatientID == uuid.Nil || req.Date.IsZero() || !req.StartTime.Valid() {
		return nil, ErrInvalidRequest
	}

	day, err := s.resolver.Candidates(ctx, req.ProviderID, req.Date)
	if err != nil {
		return nil, err
	}
	if day.Closed() {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, day.Reason)
	}
	slot, ok := day.HasStart(req.StartTime)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrOutsideWindow, req.StartTime, req.Date)
	}

	n := appointment.NewAppointment{
		ProviderID: req.ProviderID,
		PatientID:  req.PatientID,
		Date:       req.Date,
		StartTime:  slot.Start,
		EndTime:    slot.End,
		Motif:      req.Motif,
		Status:     appointment.StatusPending,
	}
	if s.cfg.AutoConfirm {
		n.Status = appointment.StatusConfirmed
	} else {
		expiresAt := s.clock.Now().Add(s.cfg.AppointmentTTL)
		n.ExpiresAt = &expiresAt
	}

	var created *appointment.Appointment
	err = s.withSlotLock(ctx, n.Key(), func(lockCtx context.Context) error {
		appt, err := s.repo.InsertAppointmentIfFree(lockCtx, n)
		if err != nil {
			return err
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"provider_id": appt.ProviderID.String(),
			"patient_id":  appt.PatientID.String(),
			"date":        appt.Date.String(),
			"start_time":  appt.StartTime.String(),
			"status":      appt.Status,
			"expires_at":  appt.ExpiresAt,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) || errors.Is(err, appointment.ErrSlotTaken) {
			s.logger.Debug("slot taken",
				zap.String("slot", n.Key().String()),
				zap.String("patient_id", req.PatientID.String()),
			)
			return nil, appointment.ErrSlotTaken
		}
		return nil, fmt.Errorf("book appointment: %w", err)
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("slot", created.Key().String()),
		zap.String("status", string(created.Status)),
	)
	return created, nil
}

func (s *Service) withSlotLock(ctx context.Context, key appointment.SlotKey, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithSlotLock(ctx, key, fn)
}

// Cancel releases the appointment's slot. Only one of several concurrent
// cancels succeeds; the others get appointment.ErrAlreadyCancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appointment.StatusCancelled, appointment.ActiveStatuses...)
	if err != nil {
		if !errors.Is(err, appointment.ErrNotFound) {
			return nil, fmt.Errorf("cancel appointment: %w", err)
		}
		existing, getErr := s.repo.GetAppointmentByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Status == appointment.StatusCancelled {
			return nil, appointment.ErrAlreadyCancelled
		}
		return nil, appointment.ErrInvalidStatusTransition
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{})
	s.logger.Info("appointment cancelled", zap.String("appointment_id", updated.ID.String()))
	return updated, nil
}

// Confirm moves a pending appointment to confirmed. A hold past its expiry is
// cancelled instead and ErrAppointmentExpired returned.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status != appointment.StatusPending {
		return nil, appointment.ErrInvalidStatusTransition
	}

	if appt.ExpiresAt != nil && !appt.ExpiresAt.After(s.clock.Now()) {
		_, updErr := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appointment.StatusCancelled, appointment.StatusPending)
		if updErr == nil {
			s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{
				"reason": "confirm_after_expiry",
			})
		} else if !errors.Is(updErr, appointment.ErrNotFound) {
			s.logger.Warn("failed to expire appointment during confirm",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(updErr),
			)
		}
		return nil, ErrAppointmentExpired
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appointment.StatusConfirmed, appointment.StatusPending)
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			// Cancelled or expired since it was read.
			return nil, appointment.ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	return updated, nil
}

// ExpirePendingAppointments cancels pending holds whose expiry has passed and
// returns how many it released. Called by the expiry worker.
func (s *Service) ExpirePendingAppointments(ctx context.Context) (int, error) {
	now := s.clock.Now()
	candidates, err := s.repo.FindExpiredPending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range candidates {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appointment.StatusCancelled, appointment.StatusPending)
		if err != nil {
			if !errors.Is(err, appointment.ErrNotFound) {
				s.logger.Warn("failed to expire appointment",
					zap.String("appointment_id", appt.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		expired++
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{
			"reason": "worker",
		})
	}

	return expired, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// logEvent records an audit event. Failures are logged, never returned.
func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := appointment.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

