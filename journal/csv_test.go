package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/bintrader/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(ts time.Time, pnl string) TradeRecord {
	p := decimal.RequireFromString(pnl)
	return TradeRecord{
		ID:        ts.Format(time.RFC3339) + "/" + pnl,
		Time:      ts,
		Asset:     "EURUSD",
		Direction: market.Call,
		Stake:     decimal.RequireFromString("10.5"),
		Outcome:   market.OutcomeOf(p),
		PnL:       p,
		DailyPnL:  p,
		Policy:    "soros",
		Level:     1,
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, Header, rows[0])
}

func TestCSVJournalAppend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)

	ts := time.Date(2026, 10, 14, 13, 1, 0, 0, time.UTC)
	require.NoError(t, j.Append(sampleRecord(ts, "8.4")))
	require.NoError(t, j.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"2026-10-14T13:01:00Z", "EURUSD", "CALL", "10.5", "WIN", "8.4", "8.4", "soros", "1",
	}, rows[1])
}

func TestCSVJournalReopenKeepsRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	ts := time.Date(2026, 10, 14, 13, 1, 0, 0, time.UTC)

	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(sampleRecord(ts, "8.4")))
	require.NoError(t, j.Close())

	j, err = NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(sampleRecord(ts.Add(time.Minute), "-10.5")))
	require.NoError(t, j.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3, "header written once, both rows kept")
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "WIN", rows[1][4])
	assert.Equal(t, "LOSS", rows[2][4])
}

func TestReadCSVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSV(path)
	require.NoError(t, err)

	ts := time.Date(2026, 10, 14, 13, 1, 0, 0, time.UTC)
	want := sampleRecord(ts, "0")
	want.Direction = market.Put
	require.NoError(t, j.Append(want))
	require.NoError(t, j.Close())

	got, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.True(t, got[0].Time.Equal(ts))
	assert.Equal(t, market.Put, got[0].Direction)
	assert.Equal(t, market.Draw, got[0].Outcome)
	assert.True(t, got[0].Stake.Equal(want.Stake))
	assert.True(t, got[0].PnL.IsZero())
	assert.Equal(t, "soros", got[0].Policy)
	assert.Equal(t, 1, got[0].Level)
}

func TestReadCSVRejectsForeignHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c,d,e,f,g,h,i\n"), 0o644))

	_, err := ReadCSV(path)
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestNewCSVRejectsForeignHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "other.csv")
	foreign := "date,symbol,side\n2026-10-14,EURUSD,CALL\n"
	require.NoError(t, os.WriteFile(path, []byte(foreign), 0o644))

	_, err := NewCSV(path)
	assert.ErrorIs(t, err, ErrHeaderMismatch)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, foreign, string(data), "file left untouched")
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	_, err := NewCSV(filepath.Join(t.TempDir(), "missing", "trades.csv"))
	assert.Error(t, err)
}

type failingJournal struct{ closed bool }

func (f *failingJournal) Append(TradeRecord) error { return os.ErrPermission }
func (f *failingJournal) Close() error             { f.closed = true; return nil }

func TestMultiAttemptsEveryJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	c, err := NewCSV(path)
	require.NoError(t, err)
	bad := &failingJournal{}

	m := Multi(bad, c)
	err = m.Append(sampleRecord(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), "1"))
	assert.ErrorIs(t, err, os.ErrPermission)
	require.NoError(t, m.Close())
	assert.True(t, bad.closed)

	assert.Len(t, readRows(t, path), 2)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	a := sampleRecord(ts, "8")
	b := sampleRecord(ts, "-10")
	c := sampleRecord(ts, "0")
	c.Asset = "AUDCAD"

	per, total := Summarize([]TradeRecord{a, b, c})
	require.Len(t, per, 2)
	assert.Equal(t, "AUDCAD", per[0].Asset)
	assert.Equal(t, 1, per[0].Draws)
	assert.Equal(t, "EURUSD", per[1].Asset)
	assert.Equal(t, 1, per[1].Wins)
	assert.Equal(t, 1, per[1].Losses)
	assert.InDelta(t, 50.0, per[1].Assertiveness(), 1e-9)

	assert.Equal(t, 3, total.Trades)
	assert.True(t, total.PnL.Equal(decimal.NewFromInt(-2)))
	assert.True(t, total.Staked.Equal(decimal.RequireFromString("31.5")))
}
