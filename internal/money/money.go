package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a non-negative amount stored as fixed-point cents so that
// comparisons and arithmetic never hit float precision issues.
type Money int64

// Parse normalizes a displayed amount like "$1,250.00" into Money.
// All characters except digits, '.' and '-' are stripped before parsing.
// An empty numeric result or a negative amount is an error, never a
// silent zero.
func Parse(s string) (Money, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	numeric := b.String()
	if numeric == "" {
		return 0, fmt.Errorf("no numeric value in %q", s)
	}

	f, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative amount %q", s)
	}

	return FromDollars(f), nil
}

// FromDollars converts a float dollar amount to cents, rounding to the
// nearest cent to avoid truncation bias.
func FromDollars(f float64) Money {
	return Money(int64(math.Round(f * 100)))
}

// Dollars returns the amount as a float64 dollar value.
func (m Money) Dollars() float64 {
	return float64(m) / 100
}

// Div divides the amount by n, rounding to the nearest cent. Used to
// derive a unit price from a line total.
func (m Money) Div(n int) Money {
	if n == 0 {
		return 0
	}
	return Money(int64(math.Round(float64(m) / float64(n))))
}

// String renders the amount as a plain dollar string, e.g. "$1250.00".
func (m Money) String() string {
	return fmt.Sprintf("$%d.%02d", int64(m)/100, int64(m)%100)
}

// Display renders the amount with thousands separators, e.g. "$1,250.00",
// matching how amounts appear on the source document.
func (m Money) Display() string {
	whole := int64(m) / 100
	digits := strconv.FormatInt(whole, 10)

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	return fmt.Sprintf("$%s.%02d", b.String(), int64(m)%100)
}
