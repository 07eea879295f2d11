package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		at   time.Time
		want Session
	}{
		{"friday_before_21", time.Date(2026, 10, 9, 20, 59, 0, 0, time.UTC), Regular},
		{"friday_21", time.Date(2026, 10, 9, 21, 0, 0, 0, time.UTC), OTC},
		{"saturday", time.Date(2026, 10, 10, 12, 0, 0, 0, time.UTC), OTC},
		{"sunday_morning", time.Date(2026, 10, 11, 8, 0, 0, 0, time.UTC), OTC},
		{"sunday_21", time.Date(2026, 10, 11, 21, 0, 0, 0, time.UTC), Regular},
		{"wednesday", time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC), Regular},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SessionAt(tt.at))
		})
	}
}

func TestSessionAtConvertsToUTC(t *testing.T) {
	t.Parallel()

	// Friday 19:00 in UTC-3 is Friday 22:00 UTC.
	loc := time.FixedZone("BRT", -3*3600)
	assert.Equal(t, OTC, SessionAt(time.Date(2026, 10, 9, 19, 0, 0, 0, loc)))
}

func TestCurrencies(t *testing.T) {
	t.Parallel()

	base, quote, ok := Currencies("GBPUSD-OTC")
	require.True(t, ok)
	assert.Equal(t, "GBP", base)
	assert.Equal(t, "USD", quote)

	base, quote, ok = Currencies("eurjpy-op")
	require.True(t, ok)
	assert.Equal(t, "EUR", base)
	assert.Equal(t, "JPY", quote)

	_, _, ok = Currencies("BTC")
	assert.False(t, ok)
}

func TestSelectAssetsRegular(t *testing.T) {
	t.Parallel()

	open := map[string]bool{
		"EURUSD":     true,
		"EURUSD-OTC": true,
		"GBPUSD-op":  true,
		"USDJPY":     false,
		"XAUUSD":     true,
	}
	got := SelectAssets(Regular, open, PreferredAssets)
	assert.Equal(t, []Asset{
		{Name: "EURUSD", CandleSymbol: "EURUSD"},
		{Name: "GBPUSD-op", CandleSymbol: "GBPUSD"},
	}, got)
}

func TestSelectAssetsOTC(t *testing.T) {
	t.Parallel()

	open := map[string]bool{"EURUSD-OTC": true, "EURJPY-OTC": true, "EURUSD": true}
	got := SelectAssets(OTC, open, PreferredAssets)
	assert.Equal(t, []Asset{
		{Name: "EURUSD-OTC", CandleSymbol: "EURUSD-OTC"},
		{Name: "EURJPY-OTC", CandleSymbol: "EURJPY-OTC"},
	}, got)
}

func TestSelectAssetsFallbackIsCapped(t *testing.T) {
	t.Parallel()

	open := map[string]bool{}
	for _, n := range []string{"AAA-x", "BBB", "CCC", "DDD", "EEE", "FFF", "GGG"} {
		open[n] = true
	}
	got := SelectAssets(Regular, open, PreferredAssets)
	require.Len(t, got, FallbackLimit)
	assert.Equal(t, Asset{Name: "AAA-x", CandleSymbol: "AAA"}, got[0])
}

func TestSelectAssetsNothingOpen(t *testing.T) {
	t.Parallel()
	assert.Empty(t, SelectAssets(Regular, nil, PreferredAssets))
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Win, OutcomeOf(decimal.NewFromFloat(0.01)))
	assert.Equal(t, Loss, OutcomeOf(decimal.NewFromInt(-5)))
	assert.Equal(t, Draw, OutcomeOf(decimal.Zero))
}

func TestParseDirection(t *testing.T) {
	t.Parallel()

	d, err := ParseDirection("buy")
	require.NoError(t, err)
	assert.Equal(t, Call, d)

	d, err = ParseDirection("PUT")
	require.NoError(t, err)
	assert.Equal(t, Put, d)

	_, err = ParseDirection("hold")
	assert.Error(t, err)
}
