package numerator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"easyentrepreneur/internal/core/apperror"
)

var numberPattern = regexp.MustCompile(`^\d{4}-\d{3,}$`)

func newTestSequencer(t *testing.T, store Store, cfg Config, opts ...Option) *Sequencer {
	t.Helper()
	seq, err := NewSequencer(store, cfg, opts...)
	require.NoError(t, err)
	return seq
}

func allocateN(t *testing.T, seq *Sequencer, store *MemoryStore, req Request, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		num, err := seq.Allocate(context.Background(), req, store.ReserveFunc(req.TenantID, req.Kind))
		require.NoError(t, err)
		out = append(out, num)
	}
	return out
}

func TestAllocate_SequentialIsDense(t *testing.T) {
	for _, strategy := range []Strategy{StrategyScan, StrategyCounter} {
		t.Run(strategy.String(), func(t *testing.T) {
			store := NewMemoryStore()
			seq := newTestSequencer(t, store, Config{Strategy: strategy})
			req := Request{TenantID: "t1", Kind: KindInvoice, Year: 2025}

			got := allocateN(t, seq, store, req, 5)
			assert.Equal(t, []string{"2025-001", "2025-002", "2025-003", "2025-004", "2025-005"}, got)
		})
	}
}

func TestAllocate_PaddingGrowsPast999(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("t1", KindInvoice, "2025-009", "2025-099", "2025-999")
	seq := newTestSequencer(t, store, DefaultConfig())
	req := Request{TenantID: "t1", Kind: KindInvoice, Year: 2025}

	num, err := seq.Allocate(context.Background(), req, store.ReserveFunc("t1", KindInvoice))
	require.NoError(t, err)
	assert.Equal(t, "2025-1000", num)
}

func TestAllocate_PaddingAtTenthAndHundredth(t *testing.T) {
	store := NewMemoryStore()
	seq := newTestSequencer(t, store, DefaultConfig())
	req := Request{TenantID: "t1", Kind: KindQuote, Year: 2025}

	got := allocateN(t, seq, store, req, 100)
	assert.Equal(t, "2025-001", got[0])
	assert.Equal(t, "2025-010", got[9])
	assert.Equal(t, "2025-100", got[99])
}

func TestAllocate_CrossYearIsolation(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("t1", KindInvoice, "2024-001", "2024-002", "2024-003", "2024-004", "2024-005")
	seq := newTestSequencer(t, store, DefaultConfig())

	num, err := seq.Allocate(context.Background(),
		Request{TenantID: "t1", Kind: KindInvoice, Year: 2025},
		store.ReserveFunc("t1", KindInvoice))
	require.NoError(t, err)
	assert.Equal(t, "2025-001", num)
}

func TestAllocate_CrossKindAndTenantIsolation(t *testing.T) {
	store := NewMemoryStore()
	seq := newTestSequencer(t, store, DefaultConfig())
	ctx := context.Background()

	inv, err := seq.Allocate(ctx, Request{TenantID: "t1", Kind: KindInvoice, Year: 2025}, store.ReserveFunc("t1", KindInvoice))
	require.NoError(t, err)
	quote, err := seq.Allocate(ctx, Request{TenantID: "t1", Kind: KindQuote, Year: 2025}, store.ReserveFunc("t1", KindQuote))
	require.NoError(t, err)
	other, err := seq.Allocate(ctx, Request{TenantID: "t2", Kind: KindInvoice, Year: 2025}, store.ReserveFunc("t2", KindInvoice))
	require.NoError(t, err)

	assert.Equal(t, "2025-001", inv)
	assert.Equal(t, "2025-001", quote)
	assert.Equal(t, "2025-001", other)
}

func TestAllocate_DeletedNumbersAreNotReused(t *testing.T) {
	// The store reports soft-deleted rows too, so a gap at the top is never refilled.
	store := NewMemoryStore()
	store.Seed("t1", KindInvoice, "2025-001", "2025-002", "2025-003")
	seq := newTestSequencer(t, store, DefaultConfig())

	num, err := seq.Allocate(context.Background(),
		Request{TenantID: "t1", Kind: KindInvoice, Year: 2025},
		store.ReserveFunc("t1", KindInvoice))
	require.NoError(t, err)
	assert.Equal(t, "2025-004", num)
}

// barrierStore lets n callers scan before any of them reserves.
type barrierStore struct {
	*MemoryStore
	wg *sync.WaitGroup
}

func (b *barrierStore) ExistingNumbers(ctx context.Context, tenantID string, kind Kind, year int) ([]string, error) {
	numbers, err := b.MemoryStore.ExistingNumbers(ctx, tenantID, kind, year)
	b.wg.Done()
	b.wg.Wait()
	return numbers, err
}

func TestAllocate_ConcurrentRaceResolution(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	mem := NewMemoryStore()
	seq := newTestSequencer(t, &barrierStore{MemoryStore: mem, wg: &wg}, DefaultConfig())
	req := Request{TenantID: "t1", Kind: KindInvoice, Year: 2025}

	results := make([]string, 2)
	errs := make([]error, 2)
	var done sync.WaitGroup
	for i := 0; i < 2; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			results[i], errs[i] = seq.Allocate(context.Background(), req, mem.ReserveFunc("t1", KindInvoice))
		}(i)
	}
	done.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.ElementsMatch(t, []string{"2025-001", "2025-002"}, results)
}

func TestAllocate_ConcurrentUniqueness(t *testing.T) {
	const n = 40
	for _, strategy := range []Strategy{StrategyScan, StrategyCounter} {
		t.Run(strategy.String(), func(t *testing.T) {
			store := NewMemoryStore()
			// Each collision means another caller won that number, so n attempts always suffice.
			seq := newTestSequencer(t, store, Config{MaxAttempts: n, Strategy: strategy})
			req := Request{TenantID: "t1", Kind: KindInvoice, Year: 2025}

			var (
				mu   sync.Mutex
				seen = make(map[string]struct{})
				wg   sync.WaitGroup
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					num, err := seq.Allocate(context.Background(), req, store.ReserveFunc("t1", KindInvoice))
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					seen[num] = struct{}{}
					mu.Unlock()
				}()
			}
			wg.Wait()

			assert.Len(t, seen, n)
			for num := range seen {
				assert.Regexp(t, numberPattern, num)
			}
		})
	}
}

type recordingObserver struct {
	kind     Kind
	attempts int
	err      error
}

func (r *recordingObserver) AllocationFinished(kind Kind, attempts int, err error) {
	r.kind, r.attempts, r.err = kind, attempts, err
}

func TestAllocate_ExhaustsAfterMaxAttempts(t *testing.T) {
	store := NewMemoryStore()
	obs := &recordingObserver{}
	seq := newTestSequencer(t, store, DefaultConfig(), WithObserver(obs))

	var tried []string
	reserve := func(ctx context.Context, number string) error {
		tried = append(tried, number)
		return fmt.Errorf("insert invoice: %w", ErrNumberTaken)
	}

	num, err := seq.Allocate(context.Background(), Request{TenantID: "t1", Kind: KindInvoice, Year: 2025}, reserve)
	require.Error(t, err)
	assert.Empty(t, num)
	assert.ErrorIs(t, err, ErrAllocationExhausted)
	assert.True(t, apperror.HasCode(err, apperror.CodeNumberAllocationExhausted))
	assert.Len(t, tried, DefaultMaxAttempts)
	assert.Equal(t, "2025-001", tried[0])
	assert.Equal(t, "2025-010", tried[9])

	assert.Equal(t, KindInvoice, obs.kind)
	assert.Equal(t, DefaultMaxAttempts, obs.attempts)
	assert.ErrorIs(t, obs.err, ErrAllocationExhausted)
}

func TestAllocate_SkipsPreoccupiedCandidates(t *testing.T) {
	// The scan sees nothing but the store already holds 001..009 (e.g. a stale read).
	store := NewMemoryStore()
	blind := &blindStore{}
	seq := newTestSequencer(t, blind, DefaultConfig())
	for i := 1; i <= 9; i++ {
		store.Seed("t1", KindInvoice, Format(2025, int64(i), 3))
	}

	num, err := seq.Allocate(context.Background(), Request{TenantID: "t1", Kind: KindInvoice, Year: 2025}, store.ReserveFunc("t1", KindInvoice))
	require.NoError(t, err)
	assert.Equal(t, "2025-010", num)
}

type blindStore struct{}

func (blindStore) ExistingNumbers(context.Context, string, Kind, int) ([]string, error) {
	return nil, nil
}

func TestAllocate_CounterCatchesUpWithExistingNumbers(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("t1", KindInvoice, "2025-001", "2025-002", "2025-003", "2025-004", "2025-005",
		"2025-006", "2025-007", "2025-008", "2025-009", "2025-010", "2025-011", "2025-012")
	seq := newTestSequencer(t, store, Config{Strategy: StrategyCounter})

	num, err := seq.Allocate(context.Background(), Request{TenantID: "t1", Kind: KindInvoice, Year: 2025}, store.ReserveFunc("t1", KindInvoice))
	require.NoError(t, err)
	assert.Equal(t, "2025-013", num)
}

func TestAllocate_PermanentErrorStopsImmediately(t *testing.T) {
	store := NewMemoryStore()
	seq := newTestSequencer(t, store, DefaultConfig())
	boom := errors.New("connection reset")

	calls := 0
	_, err := seq.Allocate(context.Background(), Request{TenantID: "t1", Kind: KindQuote, Year: 2025},
		func(context.Context, string) error {
			calls++
			return boom
		})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAllocationExhausted)
	assert.Equal(t, 1, calls)
}

type failingStore struct{ err error }

func (f failingStore) ExistingNumbers(context.Context, string, Kind, int) ([]string, error) {
	return nil, f.err
}

func TestAllocate_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	seq := newTestSequencer(t, failingStore{err: boom}, DefaultConfig())

	_, err := seq.Allocate(context.Background(), Request{TenantID: "t1", Kind: KindInvoice, Year: 2025},
		func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestAllocate_RejectsBadRequests(t *testing.T) {
	store := NewMemoryStore()
	seq := newTestSequencer(t, store, DefaultConfig())
	ctx := context.Background()

	_, err := seq.Allocate(ctx, Request{TenantID: "t1", Kind: "receipt", Year: 2025}, store.ReserveFunc("t1", "receipt"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = seq.Allocate(ctx, Request{Kind: KindInvoice, Year: 2025}, store.ReserveFunc("", KindInvoice))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestNewSequencer_CounterNeedsCounterStore(t *testing.T) {
	_, err := NewSequencer(blindStore{}, Config{Strategy: StrategyCounter})
	assert.Error(t, err)

	_, err = NewSequencer(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestAllocate_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	seq := newTestSequencer(t, store, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := seq.Allocate(ctx, Request{TenantID: "t1", Kind: KindInvoice, Year: 2025},
		func(context.Context, string) error {
			calls++
			return ErrNumberTaken
		})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
