// Package calendar holds the civil date and time-of-day types shared by the
// scheduling packages, together with the one canonical day-of-week mapping.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
)

// DayOfWeek enumerates days from Sunday (0) to Saturday (6). The order matches
// time.Weekday so a stored value can be compared against either.
type DayOfWeek int

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayNames = [...]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// AllDays lists every day in canonical order.
var AllDays = []DayOfWeek{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func (d DayOfWeek) Valid() bool {
	return d >= Sunday && d <= Saturday
}

func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DayOfWeek(%d)", int(d))
	}
	return dayNames[d]
}

// ParseDayOfWeek accepts "MON", "monday" or "1".
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		d := DayOfWeek(n)
		if !d.Valid() {
			return 0, fmt.Errorf("day of week %d out of range", n)
		}
		return d, nil
	}
	upper := strings.ToUpper(s)
	if len(upper) >= 3 {
		for i, name := range dayNames {
			if strings.HasPrefix(upper, name) {
				return DayOfWeek(i), nil
			}
		}
	}
	return 0, fmt.Errorf("unknown day of week %q", s)
}

// DayOfWeekOf maps a calendar date to its day of week. Every package that
// needs a weekday goes through here instead of deriving it itself.
func DayOfWeekOf(d Date) DayOfWeek {
	return DayOfWeek(d.Time(nil).Weekday())
}
