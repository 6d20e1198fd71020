package numerator

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory CounterStore with a Reserve that enforces
// per-tenant uniqueness like the database constraint does.
// Use in unit tests to avoid database dependencies.
type MemoryStore struct {
	mu       sync.Mutex
	numbers  map[memoryKey]map[string]struct{}
	counters map[counterKey]int64
}

type memoryKey struct {
	tenantID string
	kind     Kind
}

type counterKey struct {
	tenantID string
	kind     Kind
	year     int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		numbers:  make(map[memoryKey]map[string]struct{}),
		counters: make(map[counterKey]int64),
	}
}

// Seed marks numbers as used without going through a Sequencer.
func (m *MemoryStore) Seed(tenantID string, kind Kind, numbers ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.set(tenantID, kind)
	for _, n := range numbers {
		set[n] = struct{}{}
	}
}

// ExistingNumbers implements Store.
func (m *MemoryStore) ExistingNumbers(_ context.Context, tenantID string, kind Kind, year int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := YearPrefix(year)
	var out []string
	for n := range m.numbers[memoryKey{tenantID, kind}] {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out, nil
}

// NextValue implements CounterStore.
func (m *MemoryStore) NextValue(_ context.Context, tenantID string, kind Kind, year int, floor int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := counterKey{tenantID, kind, year}
	v := m.counters[key] + 1
	if v < floor {
		v = floor
	}
	m.counters[key] = v
	return v, nil
}

// Reserve records number, returning ErrNumberTaken if it is already used.
func (m *MemoryStore) Reserve(_ context.Context, tenantID string, kind Kind, number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.set(tenantID, kind)
	if _, taken := set[number]; taken {
		return ErrNumberTaken
	}
	set[number] = struct{}{}
	return nil
}

// ReserveFunc binds Reserve to a tenant and kind.
func (m *MemoryStore) ReserveFunc(tenantID string, kind Kind) ReserveFunc {
	return func(ctx context.Context, number string) error {
		return m.Reserve(ctx, tenantID, kind, number)
	}
}

func (m *MemoryStore) set(tenantID string, kind Kind) map[string]struct{} {
	key := memoryKey{tenantID, kind}
	set, ok := m.numbers[key]
	if !ok {
		set = make(map[string]struct{})
		m.numbers[key] = set
	}
	return set
}

var _ CounterStore = (*MemoryStore)(nil)
