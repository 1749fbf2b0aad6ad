package format_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Piebald-AI/splitrail/pkg/format"
)

func TestNumberPlain(t *testing.T) {
	assert.Equal(t, "0", format.Number(0, format.Options{}))
	assert.Equal(t, "1234567", format.Number(1234567, format.Options{}))
}

func TestNumberComma(t *testing.T) {
	tests := []struct {
		locale string
		n      uint64
		want   string
	}{
		{"en", 1234567, "1,234,567"},
		{"de", 1234567, "1.234.567"},
		{"it", 1234567, "1.234.567"},
		{"en", 999, "999"},
		{"unknown", 1000, "1,000"},
	}

	for _, tt := range tests {
		opts := format.Options{Comma: true, Locale: tt.locale}
		assert.Equal(t, tt.want, format.Number(tt.n, opts), "locale=%s n=%d", tt.locale, tt.n)
	}
}

func TestNumberHuman(t *testing.T) {
	opts := format.Options{Human: true, DecimalPlaces: 2}

	assert.Equal(t, "999", format.Number(999, opts))
	assert.Equal(t, "1.00k", format.Number(1000, opts))
	assert.Equal(t, "1.50k", format.Number(1500, opts))
	assert.Equal(t, "2.35m", format.Number(2345678, opts))
	assert.Equal(t, "3.00b", format.Number(3_000_000_000, opts))
	assert.Equal(t, "1.20t", format.Number(1_200_000_000_000, opts))
}

func TestNumberHumanPrecision(t *testing.T) {
	opts := format.Options{Human: true, DecimalPlaces: 0}
	assert.Equal(t, "2k", format.Number(1500, opts))

	opts.DecimalPlaces = 1
	assert.Equal(t, "1.5k", format.Number(1500, opts))
}

func TestNumberHumanWinsOverComma(t *testing.T) {
	opts := format.Options{Comma: true, Human: true, DecimalPlaces: 1}
	assert.Equal(t, "1.2m", format.Number(1_234_567, opts))
}

func TestCost(t *testing.T) {
	assert.Equal(t, "$0.00", format.Cost(decimal.Zero))
	assert.Equal(t, "$12.34", format.Cost(decimal.RequireFromString("12.34")))
	assert.Equal(t, "$0.10", format.Cost(decimal.RequireFromString("0.1")))
	assert.Equal(t, "$1234.57", format.Cost(decimal.RequireFromString("1234.567")))
}

func TestDate(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "3/5/2026", format.Date("2026-03-05", now))
	assert.Equal(t, "12/31/2025", format.Date("2025-12-31", now))
	assert.Equal(t, "3/15/2026*", format.Date("2026-03-15", now))
	assert.Equal(t, "Unknown", format.Date("unknown", now))
	assert.Equal(t, "not-a-date", format.Date("not-a-date", now))
}
