package schedule

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/calendar"
)

func tod(s string) calendar.TimeOfDay {
	t, err := calendar.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func window(start, end string) Window {
	return Window{DayOfWeek: calendar.Monday, Start: tod(start), End: tod(end)}
}

func starts(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start.String() + "-" + s.End.String()
	}
	return out
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		windows  []Window
		duration time.Duration
		want     []string
	}{
		{
			name:     "single window exact fit",
			windows:  []Window{window("09:00", "10:00")},
			duration: 30 * time.Minute,
			want:     []string{"09:00-09:30", "09:30-10:00"},
		},
		{
			name:     "trailing partial slot dropped",
			windows:  []Window{window("09:00", "10:15")},
			duration: 30 * time.Minute,
			want:     []string{"09:00-09:30", "09:30-10:00"},
		},
		{
			name:     "window shorter than a slot",
			windows:  []Window{window("09:00", "09:20")},
			duration: 30 * time.Minute,
			want:     []string{},
		},
		{
			name:     "multiple windows sorted",
			windows:  []Window{window("14:00", "15:00"), window("09:00", "10:00")},
			duration: time.Hour,
			want:     []string{"09:00-10:00", "14:00-15:00"},
		},
		{
			name:     "overlapping windows merged",
			windows:  []Window{window("09:00", "10:00"), window("09:30", "11:00")},
			duration: 30 * time.Minute,
			want:     []string{"09:00-09:30", "09:30-10:00", "10:00-10:30", "10:30-11:00"},
		},
		{
			name:     "duplicate windows deduplicated",
			windows:  []Window{window("09:00", "10:00"), window("09:00", "10:00")},
			duration: 30 * time.Minute,
			want:     []string{"09:00-09:30", "09:30-10:00"},
		},
		{
			name:     "nested window absorbed",
			windows:  []Window{window("09:00", "12:00"), window("10:00", "10:30")},
			duration: time.Hour,
			want:     []string{"09:00-10:00", "10:00-11:00", "11:00-12:00"},
		},
		{
			name:     "touching windows keep own alignment",
			windows:  []Window{window("09:00", "09:45"), window("09:45", "10:30")},
			duration: 30 * time.Minute,
			want:     []string{"09:00-09:30", "09:45-10:15"},
		},
		{
			name:     "invalid windows skipped",
			windows:  []Window{window("10:00", "09:00"), window("11:00", "11:00"), window("12:00", "13:00")},
			duration: time.Hour,
			want:     []string{"12:00-13:00"},
		},
		{
			name:     "window to end of day",
			windows:  []Window{window("23:00", "24:00")},
			duration: 30 * time.Minute,
			want:     []string{"23:00-23:30", "23:30-24:00"},
		},
		{
			name:     "zero duration",
			windows:  []Window{window("09:00", "10:00")},
			duration: 0,
			want:     []string{},
		},
		{
			name:     "no windows",
			windows:  nil,
			duration: 30 * time.Minute,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := starts(Expand(tt.windows, tt.duration))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestExpand_Deterministic(t *testing.T) {
	windows := []Window{window("13:00", "17:00"), window("08:00", "12:30"), window("11:00", "13:30")}

	first := Expand(windows, 20*time.Minute)
	for i := 0; i < 10; i++ {
		if got := Expand(windows, 20*time.Minute); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, starts(got), starts(first))
		}
	}
}

func TestExpand_DoesNotMutateInput(t *testing.T) {
	windows := []Window{window("10:00", "11:00"), window("09:00", "10:30")}
	before := append([]Window(nil), windows...)

	Expand(windows, 30*time.Minute)

	if !reflect.DeepEqual(windows, before) {
		t.Errorf("input windows mutated: %v", windows)
	}
}

func TestExpand_NonOverlappingAndContained(t *testing.T) {
	windows := []Window{
		window("08:00", "09:10"),
		window("08:40", "10:00"),
		window("10:00", "10:50"),
		window("15:05", "18:00"),
	}

	for _, d := range []time.Duration{15 * time.Minute, 25 * time.Minute, 45 * time.Minute} {
		slots := Expand(windows, d)
		for i := range slots {
			if slots[i].End-slots[i].Start != calendar.TimeOfDay(d/time.Minute) {
				t.Errorf("slot %s-%s has wrong length", slots[i].Start, slots[i].End)
			}
			if i > 0 && slots[i].Start < slots[i-1].End {
				t.Errorf("slots %s and %s overlap", slots[i-1].Start, slots[i].Start)
			}
			contained := false
			for _, w := range windows {
				if slots[i].Within(w) || (slots[i].Start >= tod("08:00") && slots[i].End <= tod("10:00")) {
					contained = true
					break
				}
			}
			if !contained {
				t.Errorf("slot %s-%s outside every window", slots[i].Start, slots[i].End)
			}
		}
	}
}

func TestExpand_CarriesProvider(t *testing.T) {
	id := uuid.New()
	w := window("09:00", "10:00")
	w.ProviderID = id

	for _, s := range Expand([]Window{w}, 30*time.Minute) {
		if s.ProviderID != id {
			t.Errorf("expected provider %s, got %s", id, s.ProviderID)
		}
		if !s.Date.IsZero() {
			t.Errorf("expected undated slot, got %s", s.Date)
		}
	}
}
