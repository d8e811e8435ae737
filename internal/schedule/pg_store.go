package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/availability-booking/internal/calendar"
	"github.com/hackgods/availability-booking/internal/db"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var minutes int

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.TimeZone,
		&minutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.SlotDuration = time.Duration(minutes) * time.Minute
	return &p, nil
}

func scanWindow(row pgx.Row) (Window, error) {
	var w Window
	var day int16
	var start, end pgtype.Time

	if err := row.Scan(&w.ProviderID, &day, &start, &end); err != nil {
		return Window{}, err
	}

	w.DayOfWeek = calendar.DayOfWeek(day)
	w.Start = db.FromTime(start)
	w.End = db.FromTime(end)
	return w, nil
}

// Read path

func (s *PgStore) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, time_zone, slot_duration_minutes, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (s *PgStore) GetWeeklyWindows(ctx context.Context, providerID uuid.UUID, day calendar.DayOfWeek) ([]Window, error) {
	return s.queryWindows(ctx, s.pool, providerID, day)
}

func (s *PgStore) GetDateOverride(ctx context.Context, providerID uuid.UUID, date calendar.Date) (*DateOverride, error) {
	o := DateOverride{ProviderID: providerID, Date: date}
	var reason *string

	err := s.pool.QueryRow(ctx, `
		SELECT unavailable, reason
		FROM date_overrides
		WHERE provider_id = $1 AND date = $2
	`, providerID, db.Date(date)).Scan(&o.Unavailable, &reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get date override: %w", err)
	}

	if reason != nil {
		o.Reason = *reason
	}
	return &o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PgStore) queryWindows(ctx context.Context, q querier, providerID uuid.UUID, day calendar.DayOfWeek) ([]Window, error) {
	rows, err := q.Query(ctx, `
		SELECT provider_id, day_of_week, start_time, end_time
		FROM weekly_windows
		WHERE provider_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`, providerID, int16(day))
	if err != nil {
		return nil, fmt.Errorf("query weekly windows: %w", err)
	}
	defer rows.Close()

	var result []Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weekly window: %w", err)
		}
		result = append(result, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Write path, used by seeding and provider management tooling.

func (s *PgStore) CreateProvider(ctx context.Context, p Provider) (*Provider, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.SlotDuration == 0 {
		p.SlotDuration = DefaultSlotDuration
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO providers (id, name, time_zone, slot_duration_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, name, time_zone, slot_duration_minutes, created_at, updated_at
	`, p.ID, p.Name, p.TimeZone, int(p.SlotDuration/time.Minute))
	return scanProvider(row)
}

// AddWindow stores a weekly window after checking it against the provider's
// existing windows for that day. The provider row is locked so two concurrent
// writers cannot both pass the overlap check.
func (s *PgStore) AddWindow(ctx context.Context, w Window) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM providers WHERE id = $1 FOR UPDATE`, w.ProviderID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProviderNotFound
		}
		return fmt.Errorf("lock provider: %w", err)
	}

	existing, err := s.queryWindows(ctx, tx, w.ProviderID, w.DayOfWeek)
	if err != nil {
		return err
	}
	if err := checkWindow(existing, w); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO weekly_windows (provider_id, day_of_week, start_time, end_time)
		VALUES ($1, $2, $3, $4)
	`, w.ProviderID, int16(w.DayOfWeek), db.TimeOfDay(w.Start), db.TimeOfDay(w.End))
	if err != nil {
		return fmt.Errorf("insert weekly window: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgStore) SetDateOverride(ctx context.Context, o DateOverride) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO date_overrides (provider_id, date, unavailable, reason, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), now())
		ON CONFLICT (provider_id, date)
		DO UPDATE SET unavailable = EXCLUDED.unavailable, reason = EXCLUDED.reason
	`, o.ProviderID, db.Date(o.Date), o.Unavailable, o.Reason)
	if err != nil {
		return fmt.Errorf("upsert date override: %w", err)
	}
	return nil
}

// ListProviderIDs returns up to limit provider ids, oldest first.
func (s *PgStore) ListProviderIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM providers ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect provider ids: %w", err)
	}
	return ids, nil
}
