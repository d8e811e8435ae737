package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/calendar"
)

// DefaultSlotDuration is used when a provider is created without one.
const DefaultSlotDuration = 30 * time.Minute

type Provider struct {
	ID           uuid.UUID
	Name         string
	TimeZone     string // IANA name, e.g. "Europe/Paris"
	SlotDuration time.Duration
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Location loads the provider's canonical time zone.
func (p *Provider) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", ErrInvalidProvider, p.TimeZone, err)
	}
	return loc, nil
}

func (p *Provider) Validate() error {
	if p.SlotDuration < time.Minute || p.SlotDuration%time.Minute != 0 {
		return fmt.Errorf("%w: slot duration %s must be a whole number of minutes", ErrInvalidProvider, p.SlotDuration)
	}
	if p.SlotDuration > calendar.MinutesPerDay*time.Minute {
		return fmt.Errorf("%w: slot duration %s longer than a day", ErrInvalidProvider, p.SlotDuration)
	}
	_, err := p.Location()
	return err
}

// Window is a recurring weekly range during which a provider accepts bookings.
type Window struct {
	ProviderID uuid.UUID
	DayOfWeek  calendar.DayOfWeek
	Start      calendar.TimeOfDay
	End        calendar.TimeOfDay
}

func (w Window) Valid() bool {
	return w.DayOfWeek.Valid() && w.Start.Valid() && w.End.Valid() && w.Start < w.End
}

func (w Window) overlaps(o Window) bool {
	return w.Start < o.End && o.Start < w.End
}

// DateOverride marks a single date as unavailable regardless of weekly windows.
type DateOverride struct {
	ProviderID  uuid.UUID
	Date        calendar.Date
	Unavailable bool
	Reason      string
}

// Slot is a candidate booking interval. It is generated on demand and never stored.
type Slot struct {
	ProviderID uuid.UUID
	Date       calendar.Date
	Start      calendar.TimeOfDay
	End        calendar.TimeOfDay
}

func (s Slot) Overlaps(o Slot) bool {
	return s.Date == o.Date && s.Start < o.End && o.Start < s.End
}

// Within reports whether the slot lies entirely inside w.
func (s Slot) Within(w Window) bool {
	return s.Start >= w.Start && s.End <= w.End
}
