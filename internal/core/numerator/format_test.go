package numerator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat_Padding(t *testing.T) {
	tests := []struct {
		seq  int64
		want string
	}{
		{1, "2025-001"},
		{10, "2025-010"},
		{100, "2025-100"},
		{1000, "2025-1000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(2025, tt.seq, DefaultPadWidth))
	}
	assert.Equal(t, "2025-00042", Format(2025, 42, 5))
	assert.Equal(t, "2025-007", Format(2025, 7, 0))
}

func TestParse(t *testing.T) {
	year, seq, ok := Parse("2025-007")
	assert.True(t, ok)
	assert.Equal(t, 2025, year)
	assert.Equal(t, int64(7), seq)

	for _, bad := range []string{"", "2025", "2025-", "-007", "2025-07a", "INV-2025-001", "2025-+1"} {
		_, _, ok := Parse(bad)
		assert.False(t, ok, bad)
	}
}

func TestMaxSequence(t *testing.T) {
	numbers := []string{"2025-003", "2025-012", "2024-999", "2025-garbage", "2025-1000x", "2025-009"}
	assert.Equal(t, int64(12), MaxSequence(numbers, 2025))
	assert.Equal(t, int64(999), MaxSequence(numbers, 2024))
	assert.Equal(t, int64(0), MaxSequence(numbers, 2026))
	assert.Equal(t, int64(0), MaxSequence(nil, 2025))
}

func TestParseKindAndStrategy(t *testing.T) {
	k, ok := ParseKind(" Invoice ")
	assert.True(t, ok)
	assert.Equal(t, KindInvoice, k)

	_, ok = ParseKind("receipt")
	assert.False(t, ok)

	s, err := ParseStrategy("COUNTER")
	assert.NoError(t, err)
	assert.Equal(t, StrategyCounter, s)

	s, err = ParseStrategy("")
	assert.NoError(t, err)
	assert.Equal(t, StrategyScan, s)

	_, err = ParseStrategy("cached")
	assert.Error(t, err)
}
