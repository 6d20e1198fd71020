package numerator

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders a display number: "<year>-<seq>" with seq zero-padded to padWidth.
// Padding is a minimum width, so 1000 renders as "2025-1000".
func Format(year int, seq int64, padWidth int) string {
	if padWidth <= 0 {
		padWidth = DefaultPadWidth
	}
	return fmt.Sprintf("%d-%0*d", year, padWidth, seq)
}

// YearPrefix returns the prefix shared by all numbers of a year ("2025-").
func YearPrefix(year int) string {
	return strconv.Itoa(year) + "-"
}

// Parse splits a display number into year and sequence.
// ok is false for anything that is not "<digits>-<digits>".
func Parse(number string) (year int, seq int64, ok bool) {
	y, s, found := strings.Cut(number, "-")
	if !found || !allDigits(y) || !allDigits(s) {
		return 0, 0, false
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return year, seq, true
}

// MaxSequence returns the highest sequence among numbers of the given year.
// Numbers of other years and unparseable values are ignored; 0 means none.
func MaxSequence(numbers []string, year int) int64 {
	var max int64
	for _, n := range numbers {
		y, seq, ok := Parse(n)
		if !ok || y != year {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
