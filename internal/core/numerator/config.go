// Package numerator allocates human-readable document numbers ("2025-007").
// Numbers are unique per (tenant, kind, year). The store's unique constraint
// is the source of truth; the Sequencer only converges on a free number.
package numerator

import (
	"fmt"
	"strings"
)

// Kind is the type of billing document. Each kind has its own sequence.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindQuote   Kind = "quote"
)

// Kinds lists every document kind.
func Kinds() []Kind {
	return []Kind{KindInvoice, KindQuote}
}

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	return k, k.Valid()
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindQuote
}

// Strategy defines how candidate numbers are produced.
type Strategy int

const (
	// StrategyScan reads existing numbers and starts at max+1.
	// Collisions move to the next candidate.
	StrategyScan Strategy = iota

	// StrategyCounter draws candidates from an atomic per-(tenant, kind, year)
	// counter row. The insert is still guarded by the unique constraint.
	StrategyCounter
)

func (s Strategy) String() string {
	switch s {
	case StrategyCounter:
		return "counter"
	default:
		return "scan"
	}
}

// ParseStrategy maps a config value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scan":
		return StrategyScan, nil
	case "counter":
		return StrategyCounter, nil
	default:
		return StrategyScan, fmt.Errorf("unknown numbering strategy %q", s)
	}
}

const (
	// DefaultPadWidth is the minimum width of the sequence part.
	DefaultPadWidth = 3

	// DefaultMaxAttempts bounds reservation attempts per allocation.
	DefaultMaxAttempts = 10
)

// Config holds numbering configuration.
type Config struct {
	// PadWidth is the minimum number of digits; longer sequences are never truncated.
	PadWidth int

	// MaxAttempts is the total number of reservations tried before giving up.
	MaxAttempts int

	Strategy Strategy
}

// DefaultConfig returns the standard numbering setup.
func DefaultConfig() Config {
	return Config{
		PadWidth:    DefaultPadWidth,
		MaxAttempts: DefaultMaxAttempts,
		Strategy:    StrategyScan,
	}
}

func (c Config) withDefaults() Config {
	if c.PadWidth <= 0 {
		c.PadWidth = DefaultPadWidth
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}
