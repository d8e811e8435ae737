package appointment

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/calendar"
)

// MemoryRepository is an in-process reservation store. A single mutex makes
// InsertAppointmentIfFree atomic, which gives the same guarantee as the
// partial unique index in Postgres.
type MemoryRepository struct {
	mu           sync.Mutex
	now          func() time.Time
	appointments map[uuid.UUID]*Appointment
	active       map[SlotKey]uuid.UUID
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:          time.Now,
		appointments: make(map[uuid.UUID]*Appointment),
		active:       make(map[SlotKey]uuid.UUID),
	}
}

func (m *MemoryRepository) GetActiveAppointments(ctx context.Context, providerID uuid.UUID, date calendar.Date) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for key, id := range m.active {
		if key.ProviderID == providerID && key.Date == date {
			result = append(result, *m.appointments[id])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].StartTime > result[j].StartTime
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryRepository) InsertAppointmentIfFree(ctx context.Context, n NewAppointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := n.Key()
	if _, taken := m.active[key]; taken && n.Status.Active() {
		return nil, ErrSlotTaken
	}

	now := m.now()
	a := &Appointment{
		ID:         uuid.New(),
		ProviderID: n.ProviderID,
		PatientID:  n.PatientID,
		Date:       n.Date,
		StartTime:  n.StartTime,
		EndTime:    n.EndTime,
		Motif:      n.Motif,
		Status:     n.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  n.ExpiresAt,
	}
	m.appointments[a.ID] = a
	if a.Status.Active() {
		m.active[key] = a.ID
	}

	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, from ...AppointmentStatus) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || !slices.Contains(from, a.Status) {
		return nil, ErrNotFound
	}

	key := a.Key()
	if to.Active() && !a.Status.Active() {
		if _, taken := m.active[key]; taken {
			return nil, ErrSlotTaken
		}
	}

	a.Status = to
	a.UpdatedAt = m.now()
	if to != StatusPending {
		a.ExpiresAt = nil
	}
	if to.Active() {
		m.active[key] = a.ID
	} else if m.active[key] == a.ID {
		delete(m.active, key)
	}

	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) FindExpiredPending(_ context.Context, now time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]EventLog(nil), m.events...)
}
