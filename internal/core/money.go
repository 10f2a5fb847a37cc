// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals with a fixed scale of two digits. They are
// never represented as floats.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits every amount carries.
const MoneyScale = 2

// Money is an exact decimal amount rounded to two fractional digits.
// The zero value is 0.00.
type Money struct {
	amount decimal.Decimal
}

// NewMoney rounds d half-up to two fractional digits.
func NewMoney(d decimal.Decimal) Money {
	return Money{amount: d.Round(MoneyScale)}
}

// MoneyFromCents builds an amount from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -MoneyScale)}
}

// ParseMoney parses a signed decimal string such as "-12.5" or "1234.567".
// Extra fractional digits are rounded half-up.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return NewMoney(d), nil
}

// ParseAmount converts a user supplied decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Negative, zero or malformed
// values return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.Count(s, ",")+strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	m, err := ParseMoney(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if !m.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

func (m Money) Add(o Money) Money { return Money{amount: m.amount.Add(o.amount)} }
func (m Money) Sub(o Money) Money { return Money{amount: m.amount.Sub(o.amount)} }
func (m Money) Neg() Money        { return Money{amount: m.amount.Neg()} }
func (m Money) Abs() Money        { return Money{amount: m.amount.Abs()} }

// Mul multiplies the amount by an integer factor.
func (m Money) Mul(n int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(n))}
}

// Div divides by an integer and rounds half-up to two digits.
func (m Money) Div(n int64) Money {
	return Money{amount: m.amount.DivRound(decimal.NewFromInt(n), MoneyScale)}
}

func (m Money) Cmp(o Money) int         { return m.amount.Cmp(o.amount) }
func (m Money) Equal(o Money) bool      { return m.amount.Equal(o.amount) }
func (m Money) LessThan(o Money) bool   { return m.amount.LessThan(o.amount) }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsNegative() bool        { return m.amount.IsNegative() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.amount.Shift(MoneyScale).Round(0).IntPart()
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.amount.StringFixed(MoneyScale)
}

// MarshalJSON encodes the amount as a bare JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, b)
		}
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Validate checks the amount is strictly positive.
func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
