package schedule

import (
	"sort"
	"time"

	"github.com/hackgods/availability-booking/internal/calendar"
)

// Expand cuts one day's windows into consecutive slots of slotDuration.
//
// A trailing partial slot is dropped. Overlapping windows are merged before
// expansion so the result never contains duplicates or overlapping slots;
// windows that merely touch keep their own alignment. The returned slots are
// sorted by start and carry no date, callers stamp it.
func Expand(windows []Window, slotDuration time.Duration) []Slot {
	step := calendar.TimeOfDay(slotDuration / time.Minute)
	if step <= 0 {
		return nil
	}

	var slots []Slot
	for _, w := range mergeWindows(windows) {
		for start := w.Start; start+step <= w.End; start += step {
			slots = append(slots, Slot{
				ProviderID: w.ProviderID,
				Start:      start,
				End:        start + step,
			})
		}
	}
	return slots
}

func mergeWindows(windows []Window) []Window {
	valid := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Start.Valid() && w.End.Valid() && w.Start < w.End {
			valid = append(valid, w)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End < valid[j].End
	})

	merged := valid[:0]
	for _, w := range valid {
		if n := len(merged); n > 0 && w.Start < merged[n-1].End {
			if w.End > merged[n-1].End {
				merged[n-1].End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
