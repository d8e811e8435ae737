package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-booking/internal/calendar"
)

type overrideKey struct {
	providerID uuid.UUID
	date       calendar.Date
}

// MemoryStore keeps providers, windows and overrides in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]Provider
	windows   map[uuid.UUID][]Window
	overrides map[overrideKey]DateOverride
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		providers: make(map[uuid.UUID]Provider),
		windows:   make(map[uuid.UUID][]Window),
		overrides: make(map[overrideKey]DateOverride),
	}
}

func (m *MemoryStore) CreateProvider(_ context.Context, p Provider) (*Provider, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.SlotDuration == 0 {
		p.SlotDuration = DefaultSlotDuration
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
	return &p, nil
}

func (m *MemoryStore) AddWindow(_ context.Context, w Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[w.ProviderID]; !ok {
		return ErrProviderNotFound
	}
	if err := checkWindow(m.windows[w.ProviderID], w); err != nil {
		return err
	}
	m.windows[w.ProviderID] = append(m.windows[w.ProviderID], w)
	return nil
}

func (m *MemoryStore) SetDateOverride(_ context.Context, o DateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[o.ProviderID]; !ok {
		return ErrProviderNotFound
	}
	m.overrides[overrideKey{o.ProviderID, o.Date}] = o
	return nil
}

func (m *MemoryStore) GetProvider(_ context.Context, id uuid.UUID) (*Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (m *MemoryStore) GetWeeklyWindows(_ context.Context, providerID uuid.UUID, day calendar.DayOfWeek) ([]Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Window
	for _, w := range m.windows[providerID] {
		if w.DayOfWeek == day {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Start < result[j].Start
	})
	return result, nil
}

func (m *MemoryStore) GetDateOverride(_ context.Context, providerID uuid.UUID, date calendar.Date) (*DateOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.overrides[overrideKey{providerID, date}]
	if !ok {
		return nil, nil
	}
	return &o, nil
}
