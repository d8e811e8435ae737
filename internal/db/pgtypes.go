package db

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/availability-booking/internal/calendar"
)

const uniqueViolation = "23505"

// TimeOfDay converts to a Postgres TIME value.
func TimeOfDay(t calendar.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.Duration() / time.Microsecond), Valid: true}
}

// FromTime converts a scanned TIME back, dropping seconds.
func FromTime(t pgtype.Time) calendar.TimeOfDay {
	return calendar.TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

// Date converts to a value pgx encodes as DATE.
func Date(d calendar.Date) time.Time {
	return d.Time(time.UTC)
}

// FromDate converts a scanned DATE back to a civil date.
func FromDate(t time.Time) calendar.Date {
	return calendar.DateOf(t, time.UTC)
}

// IsUniqueViolation reports whether err came from a unique constraint. When
// constraint is non-empty the violated constraint name must match too.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
