package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/appointment"
	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/schedule"
)

// MaxRangeDays bounds ResolveRange.
const MaxRangeDays = 31

var (
	ErrPastDate     = errors.New("date is in the past")
	ErrInvalidRange = errors.New("invalid date range")
)

// Reservations is the part of the reservation store the resolver reads.
type Reservations interface {
	GetActiveAppointments(ctx context.Context, providerID uuid.UUID, date calendar.Date) ([]appointment.Appointment, error)
}

// Resolver computes free slots for a provider day. It never writes, so its
// answer is advisory: a slot reported free can be taken before it is booked.
type Resolver struct {
	store        schedule.Store
	reservations Reservations
	clock        calendar.Clock
}

func NewResolver(store schedule.Store, reservations Reservations, clock calendar.Clock) *Resolver {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	return &Resolver{store: store, reservations: reservations, clock: clock}
}

// Day is the reservation-independent view of a provider day.
type Day struct {
	Provider *schedule.Provider
	Location *time.Location
	// Reason is set when the day is closed, either by an override or because
	// no weekly window falls on it.
	Reason string
	Slots  []schedule.Slot
}

func (d *Day) Closed() bool { return d.Reason != "" }

// HasStart reports whether start is the start of a generated slot.
func (d *Day) HasStart(start calendar.TimeOfDay) (schedule.Slot, bool) {
	for _, s := range d.Slots {
		if s.Start == start {
			return s, true
		}
	}
	return schedule.Slot{}, false
}

// Candidates loads the provider, rejects past dates, applies overrides and
// expands weekly windows without looking at reservations.
func (r *Resolver) Candidates(ctx context.Context, providerID uuid.UUID, date calendar.Date) (*Day, error) {
	provider, err := r.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	loc, err := provider.Location()
	if err != nil {
		return nil, err
	}
	if date.Before(calendar.Today(r.clock, loc)) {
		return nil, fmt.Errorf("%w: %s", ErrPastDate, date)
	}
	return r.candidates(ctx, provider, loc, date)
}

func (r *Resolver) candidates(ctx context.Context, provider *schedule.Provider, loc *time.Location, date calendar.Date) (*Day, error) {
	day := &Day{Provider: provider, Location: loc}

	override, err := r.store.GetDateOverride(ctx, provider.ID, date)
	if err != nil {
		return nil, fmt.Errorf("load date override: %w", err)
	}
	if override != nil && override.Unavailable {
		day.Reason = override.Reason
		if day.Reason == "" {
			day.Reason = ReasonUnavailable
		}
		return day, nil
	}

	windows, err := r.store.GetWeeklyWindows(ctx, provider.ID, calendar.DayOfWeekOf(date))
	if err != nil {
		return nil, fmt.Errorf("load weekly windows: %w", err)
	}
	if len(windows) == 0 {
		day.Reason = ReasonNoRecurringAvailability
		return day, nil
	}

	day.Slots = schedule.Expand(windows, provider.SlotDuration)
	for i := range day.Slots {
		day.Slots[i].ProviderID = provider.ID
		day.Slots[i].Date = date
	}
	return day, nil
}

// Resolve returns the free slots for providerID on date.
func (r *Resolver) Resolve(ctx context.Context, providerID uuid.UUID, date calendar.Date) (Result, error) {
	day, err := r.Candidates(ctx, providerID, date)
	if err != nil {
		return Result{}, err
	}
	return r.subtract(ctx, day, date)
}

func (r *Resolver) subtract(ctx context.Context, day *Day, date calendar.Date) (Result, error) {
	if day.Closed() {
		return Unavailable(date, day.Reason), nil
	}

	active, err := r.reservations.GetActiveAppointments(ctx, day.Provider.ID, date)
	if err != nil {
		return Result{}, fmt.Errorf("load active appointments: %w", err)
	}
	taken := make(map[calendar.TimeOfDay]struct{}, len(active))
	for _, a := range active {
		taken[a.StartTime] = struct{}{}
	}

	free := make([]schedule.Slot, 0, len(day.Slots))
	for _, s := range day.Slots {
		if _, ok := taken[s.Start]; !ok {
			free = append(free, s)
		}
	}
	return Available(date, free), nil
}

// ResolveRange resolves up to MaxRangeDays consecutive days starting at from.
// Days already in the past are skipped.
func (r *Resolver) ResolveRange(ctx context.Context, providerID uuid.UUID, from calendar.Date, days int) ([]Result, error) {
	if days < 1 || days > MaxRangeDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidRange, MaxRangeDays)
	}

	provider, err := r.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	loc, err := provider.Location()
	if err != nil {
		return nil, err
	}
	today := calendar.Today(r.clock, loc)

	results := make([]Result, 0, days)
	for i := 0; i < days; i++ {
		date := from.AddDays(i)
		if date.Before(today) {
			continue
		}
		day, err := r.candidates(ctx, provider, loc, date)
		if err != nil {
			return nil, err
		}
		res, err := r.subtract(ctx, day, date)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
