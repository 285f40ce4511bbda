package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		fallback  string
		wantMinor int64
		wantCode  string
		wantErr   error
	}{
		{
			name:      "yen with comma grouping",
			text:      "¥1,000",
			fallback:  "JPY",
			wantMinor: 1000,
			wantCode:  "JPY",
		},
		{
			name:      "fullwidth yen sign",
			text:      "￥500",
			fallback:  "JPY",
			wantMinor: 500,
			wantCode:  "JPY",
		},
		{
			name:      "dollars with decimal point",
			text:      "$5.00",
			fallback:  "JPY",
			wantMinor: 500,
			wantCode:  "USD",
		},
		{
			name:      "canadian dollar prefix wins over plain dollar",
			text:      "CA$2.79",
			fallback:  "JPY",
			wantMinor: 279,
			wantCode:  "CAD",
		},
		{
			name:      "dot followed by three digits is grouping",
			text:      "€1.234",
			fallback:  "JPY",
			wantMinor: 123400,
			wantCode:  "EUR",
		},
		{
			name:      "repeated dot grouping",
			text:      "2.000.000",
			fallback:  "VND",
			wantMinor: 2000000,
			wantCode:  "VND",
		},
		{
			name:      "trailing currency marker",
			text:      "2.000 ₫",
			fallback:  "JPY",
			wantMinor: 2000,
			wantCode:  "VND",
		},
		{
			name:      "alphabetic code with space",
			text:      "PHP 50.00",
			fallback:  "JPY",
			wantMinor: 5000,
			wantCode:  "PHP",
		},
		{
			name:      "lowercase alphabetic code",
			text:      "sek 25",
			fallback:  "JPY",
			wantMinor: 2500,
			wantCode:  "SEK",
		},
		{
			name:      "unknown symbol falls back",
			text:      "֏1,500",
			fallback:  "JPY",
			wantMinor: 1500,
			wantCode:  "JPY",
		},
		{
			name:      "bare number uses fallback",
			text:      "700",
			fallback:  "JPY",
			wantMinor: 700,
			wantCode:  "JPY",
		},
		{
			name:     "no digits",
			text:     "¥",
			fallback: "JPY",
			wantCode: "JPY",
			wantErr:  ErrEmptyAmount,
		},
		{
			name:     "empty string",
			text:     "",
			fallback: "JPY",
			wantCode: "JPY",
			wantErr:  ErrEmptyAmount,
		},
		{
			name:     "four fractional digits is malformed",
			text:     "$1.2345",
			fallback: "JPY",
			wantCode: "USD",
			wantErr:  ErrMalformedAmount,
		},
		{
			name:     "mixed grouping and decimal widths",
			text:     "$1.23.45",
			fallback: "JPY",
			wantCode: "USD",
			wantErr:  ErrMalformedAmount,
		},
		{
			name:     "negative amount is malformed",
			text:     "-500",
			fallback: "JPY",
			wantCode: "JPY",
			wantErr:  ErrMalformedAmount,
		},
		{
			name:     "negative amount after symbol is malformed",
			text:     "¥-500",
			fallback: "JPY",
			wantCode: "JPY",
			wantErr:  ErrMalformedAmount,
		},
		{
			name:     "minus sign is malformed",
			text:     "−500",
			fallback: "JPY",
			wantCode: "JPY",
			wantErr:  ErrMalformedAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := Parse(tt.text, tt.fallback)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, int64(0), amount.Minor, "failed parse must degrade to zero")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantMinor, amount.Minor)
			assert.Equal(t, tt.wantCode, amount.Code)
		})
	}
}

func TestParseZeroDecimalCurrencies(t *testing.T) {
	// Zero-decimal currencies must not be scaled by 100.
	for _, code := range []string{"JPY", "KRW", "VND"} {
		amount, err := Parse("1,000", code)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), amount.Minor, code)
	}

	// Two-decimal currencies are.
	amount, err := Parse("1,000", "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), amount.Minor)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("¥"))
	assert.True(t, Known("usd"))
	assert.False(t, Known("֏"))
	assert.False(t, Known(""))
}
