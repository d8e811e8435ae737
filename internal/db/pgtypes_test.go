package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/availability-booking/internal/calendar"
)

func TestTimeOfDayRoundTrip(t *testing.T) {
	for _, tod := range []calendar.TimeOfDay{0, calendar.NewTimeOfDay(9, 30), calendar.NewTimeOfDay(23, 59)} {
		pg := TimeOfDay(tod)
		if !pg.Valid {
			t.Fatalf("%s: expected valid pg time", tod)
		}
		if got := FromTime(pg); got != tod {
			t.Errorf("round trip %s -> %s", tod, got)
		}
	}
}

func TestDateRoundTrip(t *testing.T) {
	d := calendar.NewDate(2024, time.February, 29)
	if got := FromDate(Date(d)); got != d {
		t.Errorf("round trip %s -> %s", d, got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_uidx"})

	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation")
	}
	if !IsUniqueViolation(err, "appointments_active_slot_uidx") {
		t.Error("expected constraint match")
	}
	if IsUniqueViolation(err, "other_uidx") {
		t.Error("expected constraint mismatch")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error is not a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
}
