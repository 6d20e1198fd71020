package numerator

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"easyentrepreneur/internal/core/apperror"
)

var tracer = otel.Tracer("easyentrepreneur/numerator")

var (
	// ErrNumberTaken is returned by a ReserveFunc when the candidate number
	// violates the (tenant, number) uniqueness constraint.
	ErrNumberTaken = errors.New("document number already taken")

	// ErrAllocationExhausted means every attempt collided.
	ErrAllocationExhausted = errors.New("document number allocation exhausted")
)

// Request identifies the sequence to draw from.
type Request struct {
	TenantID string
	Kind     Kind
	Year     int
}

// Store exposes the numbers already used in a sequence.
type Store interface {
	// ExistingNumbers returns every number of the tenant and kind that starts
	// with "<year>-", soft-deleted documents included.
	ExistingNumbers(ctx context.Context, tenantID string, kind Kind, year int) ([]string, error)
}

// CounterStore is a Store backed by an atomic counter per (tenant, kind, year).
type CounterStore interface {
	Store

	// NextValue increments the counter and returns max(previous+1, floor).
	NextValue(ctx context.Context, tenantID string, kind Kind, year int, floor int64) (int64, error)
}

// ReserveFunc persists a document under number.
// It must return an error wrapping ErrNumberTaken on a uniqueness collision;
// any other error aborts the allocation.
type ReserveFunc func(ctx context.Context, number string) error

// Observer receives the outcome of every allocation.
type Observer interface {
	AllocationFinished(kind Kind, attempts int, err error)
}

type nopObserver struct{}

func (nopObserver) AllocationFinished(Kind, int, error) {}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithObserver attaches an allocation observer (metrics).
func WithObserver(o Observer) Option {
	return func(s *Sequencer) {
		if o != nil {
			s.observer = o
		}
	}
}

// Sequencer allocates the next free number and hands it to a ReserveFunc,
// moving to the next candidate on collision.
type Sequencer struct {
	store    Store
	cfg      Config
	observer Observer
}

// NewSequencer creates a Sequencer. StrategyCounter requires store to implement CounterStore.
func NewSequencer(store Store, cfg Config, opts ...Option) (*Sequencer, error) {
	if store == nil {
		return nil, fmt.Errorf("numerator store is nil")
	}
	cfg = cfg.withDefaults()
	if cfg.Strategy == StrategyCounter {
		if _, ok := store.(CounterStore); !ok {
			return nil, fmt.Errorf("strategy %s requires a counter store", cfg.Strategy)
		}
	}

	s := &Sequencer{store: store, cfg: cfg, observer: nopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Sequencer) Config() Config {
	return s.cfg
}

// Allocate finds a free number in the sequence and reserves it.
// It returns the reserved number, the first non-collision error from reserve,
// or a NUMBER_ALLOCATION_EXHAUSTED error after MaxAttempts collisions.
func (s *Sequencer) Allocate(ctx context.Context, req Request, reserve ReserveFunc) (string, error) {
	if !req.Kind.Valid() {
		return "", apperror.NewValidation(fmt.Sprintf("unknown document kind %q", req.Kind))
	}
	if req.TenantID == "" {
		return "", apperror.NewValidation("tenant is required for numbering")
	}
	if reserve == nil {
		return "", fmt.Errorf("reserve func is nil")
	}

	ctx, span := tracer.Start(ctx, "numerator.Allocate", trace.WithAttributes(
		attribute.String("document.kind", string(req.Kind)),
		attribute.Int("document.year", req.Year),
	))
	defer span.End()

	number, attempts, err := s.allocate(ctx, req, reserve)
	span.SetAttributes(attribute.Int("numerator.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.observer.AllocationFinished(req.Kind, attempts, err)
	return number, err
}

func (s *Sequencer) allocate(ctx context.Context, req Request, reserve ReserveFunc) (string, int, error) {
	var (
		seq      int64
		number   string
		attempts int
	)

	op := func() error {
		var err error
		if attempts == 0 {
			seq, err = s.first(ctx, req)
		} else {
			seq, err = s.next(ctx, req, seq)
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		attempts++
		candidate := Format(req.Year, seq, s.cfg.PadWidth)
		err = reserve(ctx, candidate)
		switch {
		case err == nil:
			number = candidate
			return nil
		case errors.Is(err, ErrNumberTaken):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(s.cfg.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, ErrNumberTaken) {
			return "", attempts, apperror.NewNumberAllocationExhausted(string(req.Kind), attempts).
				WithCause(fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, attempts))
		}
		return "", attempts, err
	}
	return number, attempts, nil
}

// first returns the initial candidate for the configured strategy.
func (s *Sequencer) first(ctx context.Context, req Request) (int64, error) {
	if s.cfg.Strategy == StrategyCounter {
		v, err := s.store.(CounterStore).NextValue(ctx, req.TenantID, req.Kind, req.Year, 0)
		if err != nil {
			return 0, fmt.Errorf("next counter value: %w", err)
		}
		return v, nil
	}
	return s.scan(ctx, req)
}

// next returns the candidate after a collision on prev.
// The counter strategy re-scans so a lagging counter catches up in one step.
func (s *Sequencer) next(ctx context.Context, req Request, prev int64) (int64, error) {
	if s.cfg.Strategy != StrategyCounter {
		return prev + 1, nil
	}
	floor, err := s.scan(ctx, req)
	if err != nil {
		return 0, err
	}
	v, err := s.store.(CounterStore).NextValue(ctx, req.TenantID, req.Kind, req.Year, floor)
	if err != nil {
		return 0, fmt.Errorf("next counter value: %w", err)
	}
	return v, nil
}

func (s *Sequencer) scan(ctx context.Context, req Request) (int64, error) {
	existing, err := s.store.ExistingNumbers(ctx, req.TenantID, req.Kind, req.Year)
	if err != nil {
		return 0, fmt.Errorf("load existing numbers: %w", err)
	}
	return MaxSequence(existing, req.Year) + 1, nil
}
