package currency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Amount
	}{
		{name: "millions with dollar sign", input: "$12.5M", expected: 1_250_000_000},
		{name: "lowercase suffix", input: "4.2m", expected: 420_000_000},
		{name: "thousands", input: "$750K", expected: 75_000_000},
		{name: "billions", input: "$1.25B", expected: 125_000_000_000},
		{name: "raw dollars", input: "$950", expected: 95_000},
		{name: "raw dollars with cents", input: "$950.75", expected: 95_075},
		{name: "thousands separators", input: "$5,000,000", expected: 500_000_000},
		{name: "surrounding whitespace", input: "  $ 3.2M ", expected: 320_000_000},
		{name: "leading decimal point", input: ".5K", expected: 50_000},
		{name: "unknown suffix ignored", input: "$250X", expected: 25_000},
		{name: "sub-cent precision rounds", input: "$0.005", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_FormatError(t *testing.T) {
	inputs := []string{"", "$", "M", "$M", "abc", "$12.5.1M", "$1,2.5,0", "-5", "$."}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			var formatErr *FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, input, formatErr.Input)
		})
	}
}

func TestParse_OutOfRange(t *testing.T) {
	inputs := []string{"$100000000B", "$92233720368547758.08", "99999999999999999999"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			got, err := Parse(input)
			var formatErr *FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Equal(t, "amount out of range", formatErr.Reason)
			assert.Equal(t, Amount(0), got)
		})
	}

	got, err := Parse("$92233720368547758.07")
	require.NoError(t, err)
	assert.Equal(t, Amount(math.MaxInt64), got)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		expected string
	}{
		{name: "millions", amount: MustParse("$12.5M"), expected: "$12.5M"},
		{name: "millions rounding half away from zero", amount: MustParse("$58.25M"), expected: "$58.3M"},
		{name: "thousands", amount: MustParse("$12,345"), expected: "$12.3K"},
		{name: "billions", amount: MustParse("$2.05B"), expected: "$2.1B"},
		{name: "raw whole dollars", amount: MustParse("$999"), expected: "$999"},
		{name: "raw dollars with cents", amount: MustParse("$12.5"), expected: "$12.50"},
		{name: "zero", amount: 0, expected: "$0"},
		{name: "negative", amount: -MustParse("$1.5M"), expected: "-$1.5M"},
		{name: "thousands rounding into millions", amount: MustParse("$999,950"), expected: "$1.0M"},
		{name: "millions rounding into billions", amount: MustParse("$999.96M"), expected: "$1.0B"},
		{name: "thousands just below the carry", amount: MustParse("$999,940"), expected: "$999.9K"},
		{name: "minimum amount", amount: Amount(math.MinInt64), expected: "-$92233720.4B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.amount))
		})
	}
}

func TestFormatter_HalfEven(t *testing.T) {
	f := NewFormatter(RoundHalfEven)

	assert.Equal(t, "$58.2M", f.Format(MustParse("$58.25M")))
	assert.Equal(t, "$58.4M", f.Format(MustParse("$58.35M")))
	assert.Equal(t, RoundHalfAwayFromZero, NewFormatter("bogus").Rounding)
}

func TestSum_SeedPortfolioExposure(t *testing.T) {
	amounts := []Amount{
		MustParse("12.5M"),
		MustParse("4.2M"),
		MustParse("25.0M"),
		MustParse("3.2M"),
		MustParse("12.25M"),
		MustParse("1.1M"),
	}

	total := Sum(amounts...)

	assert.Equal(t, MustParse("58.25M"), total)
	assert.Equal(t, "$58.3M", Format(total))
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{"$12.5M", "$4.2M", "$999", "$1.1B", "$7.3K", "$58.25M", "$0.99"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			original := MustParse(input)
			reparsed, err := Parse(Format(original))
			require.NoError(t, err)

			if original < MustParse("$1K") {
				assert.Equal(t, original, reparsed)
				return
			}
			diff := float64(reparsed - original)
			if diff < 0 {
				diff = -diff
			}
			assert.LessOrEqual(t, diff/float64(original), 0.001)
			assert.Equal(t, Format(original)[len(Format(original))-1:], Format(reparsed)[len(Format(reparsed))-1:])
		})
	}
}
