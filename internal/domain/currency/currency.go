// Package currency converts human-readable monetary magnitudes such as "$12.5M" to exact
// amounts in minor units and back to their canonical dashboard display form.
package currency

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary magnitude stored in cents/minor units
type Amount int64

// RoundingMode selects how Format rounds at the displayed decimal place
type RoundingMode string

const (
	// RoundHalfAwayFromZero rounds 58.25 to 58.3
	RoundHalfAwayFromZero RoundingMode = "half_away_from_zero"
	// RoundHalfEven is banker's rounding: 58.25 rounds to 58.2, 58.35 to 58.4
	RoundHalfEven RoundingMode = "half_even"
)

const centsPerDollar = 100

var (
	hundred  = decimal.NewFromInt(centsPerDollar)
	thousand = decimal.NewFromInt(1000)
	maxCents = decimal.NewFromInt(math.MaxInt64)

	scales = []struct {
		suffix string
		factor decimal.Decimal
	}{
		{"B", decimal.New(1, 9)},
		{"M", decimal.New(1, 6)},
		{"K", decimal.New(1, 3)},
	}
)

// FormatError reports a magnitude string whose numeric portion is absent or non-numeric
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid currency amount %q: %s", e.Input, e.Reason)
}

// Parse converts a magnitude string to minor units.
//
// Accepted forms are an optional "$", digits with an optional decimal point (thousands
// separators allowed in the integer part) and an optional K, M or B suffix in either case.
// Any other trailing letter is treated as if no suffix were given, so "$250X" parses as
// $250. Sub-cent precision is rounded to the nearest cent.
func Parse(text string) (Amount, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &FormatError{Input: text, Reason: "missing numeric value"}
	}

	multiplier := decimal.NewFromInt(1)
	if last := s[len(s)-1]; isLetter(last) {
		switch last {
		case 'k', 'K':
			multiplier = decimal.New(1, 3)
		case 'm', 'M':
			multiplier = decimal.New(1, 6)
		case 'b', 'B':
			multiplier = decimal.New(1, 9)
		}
		s = strings.TrimSpace(s[:len(s)-1])
	}

	digits, err := normalizeDigits(s)
	if err != nil {
		return 0, &FormatError{Input: text, Reason: err.Error()}
	}

	value, err := decimal.NewFromString(digits)
	if err != nil {
		return 0, &FormatError{Input: text, Reason: "non-numeric value"}
	}

	cents := value.Mul(multiplier).Mul(hundred).Round(0)
	if cents.GreaterThan(maxCents) {
		return 0, &FormatError{Input: text, Reason: "amount out of range"}
	}
	return Amount(cents.IntPart()), nil
}

// MustParse is Parse for trusted literals such as seed data; it panics on malformed input
func MustParse(text string) Amount {
	a, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return a
}

func normalizeDigits(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing numeric value")
	}

	intPart, fracPart, hasPoint := strings.Cut(s, ".")
	if hasPoint && strings.Contains(fracPart, ".") {
		return "", fmt.Errorf("multiple decimal points")
	}
	if strings.Contains(fracPart, ",") {
		return "", fmt.Errorf("separator in fractional part")
	}

	intPart = strings.ReplaceAll(intPart, ",", "")
	if intPart == "" && fracPart == "" {
		return "", fmt.Errorf("missing numeric value")
	}
	for _, part := range []string{intPart, fracPart} {
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return "", fmt.Errorf("non-numeric character %q", part[i])
			}
		}
	}

	if intPart == "" {
		intPart = "0"
	}
	if hasPoint && fracPart != "" {
		return intPart + "." + fracPart, nil
	}
	return intPart, nil
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Formatter renders amounts in the dashboard's compact display form
type Formatter struct {
	Rounding RoundingMode
}

// NewFormatter returns a formatter using mode, defaulting to RoundHalfAwayFromZero
func NewFormatter(mode RoundingMode) Formatter {
	if mode != RoundHalfEven {
		mode = RoundHalfAwayFromZero
	}
	return Formatter{Rounding: mode}
}

// Format renders a with a B, M or K suffix at one decimal place, or as a raw dollar
// amount below one thousand dollars. A value that rounds up to 1000 of one class is
// shown in the next class up, so $999,950 renders as "$1.0M".
func (f Formatter) Format(a Amount) string {
	sign := ""
	if a < 0 {
		sign = "-"
	}
	dollars := decimal.NewFromInt(int64(a)).Abs().Div(hundred)

	for i, sc := range scales {
		if dollars.GreaterThanOrEqual(sc.factor) {
			scaled := f.round(dollars.Div(sc.factor), 1)
			if i > 0 && scaled.GreaterThanOrEqual(thousand) {
				sc = scales[i-1]
				scaled = f.round(dollars.Div(sc.factor), 1)
			}
			return sign + "$" + scaled.StringFixed(1) + sc.suffix
		}
	}

	if dollars.IsInteger() {
		return sign + "$" + dollars.StringFixed(0)
	}
	return sign + "$" + dollars.StringFixed(2)
}

func (f Formatter) round(d decimal.Decimal, places int32) decimal.Decimal {
	if f.Rounding == RoundHalfEven {
		return d.RoundBank(places)
	}
	return d.Round(places)
}

var defaultFormatter = NewFormatter(RoundHalfAwayFromZero)

// Format renders a with the default formatter
func Format(a Amount) string {
	return defaultFormatter.Format(a)
}

// String implements fmt.Stringer using the default display form
func (a Amount) String() string {
	return Format(a)
}

// Sum adds amounts in minor units
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
