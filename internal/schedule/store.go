package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/calendar"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrInvalidProvider  = errors.New("invalid provider")
	ErrInvalidWindow    = errors.New("invalid availability window")
	ErrWindowOverlap    = errors.New("availability window overlaps an existing window")
)

// Store is the read side of provider availability. Windows and overrides are
// maintained by provider management; booking only reads them.
type Store interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetWeeklyWindows(ctx context.Context, providerID uuid.UUID, day calendar.DayOfWeek) ([]Window, error)
	// GetDateOverride returns nil, nil when the date has no override.
	GetDateOverride(ctx context.Context, providerID uuid.UUID, date calendar.Date) (*DateOverride, error)
}

// checkWindow rejects malformed windows and windows overlapping one already
// stored for the same provider and day.
func checkWindow(existing []Window, w Window) error {
	if !w.Valid() {
		return fmt.Errorf("%w: %s %s-%s", ErrInvalidWindow, w.DayOfWeek, w.Start, w.End)
	}
	for _, e := range existing {
		if e.DayOfWeek == w.DayOfWeek && e.overlaps(w) {
			return fmt.Errorf("%w: %s %s-%s", ErrWindowOverlap, w.DayOfWeek, e.Start, e.End)
		}
	}
	return nil
}
