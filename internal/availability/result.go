package availability

import (
	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/schedule"
)

const (
	ReasonNoRecurringAvailability = "no recurring availability"
	ReasonUnavailable             = "unavailable"
)

// Result is the outcome of resolving one provider day. An available day may
// still have zero free slots when everything is booked.
type Result struct {
	Date      calendar.Date
	Available bool
	Reason    string
	Slots     []schedule.Slot
}

func Unavailable(date calendar.Date, reason string) Result {
	if reason == "" {
		reason = ReasonUnavailable
	}
	return Result{Date: date, Reason: reason}
}

func Available(date calendar.Date, slots []schedule.Slot) Result {
	if slots == nil {
		slots = []schedule.Slot{}
	}
	return Result{Date: date, Available: true, Slots: slots}
}
