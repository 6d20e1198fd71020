// Package types provides monetary helpers over shopspring/decimal.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// MoneyPlaces is the number of fractional digits kept on stored totals.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// NewMoneyFromString parses a decimal string such as "12.50".
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney parses s and panics on error. Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds half away from zero to cents.
func RoundMoney(m Money) Money {
	return m.Round(MoneyPlaces)
}

// Percent returns m * rate / 100.
func Percent(m Money, rate decimal.Decimal) Money {
	return m.Mul(rate).Div(hundred)
}
