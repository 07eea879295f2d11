package risk

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/bintrader/journal"
	"github.com/rustyeddy/bintrader/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func settings(stake StakeConfig, p Policy) Settings {
	return Settings{
		Stake:         stake,
		Policy:        p,
		StopLossPct:   d("10"),
		TakeProfitPct: d("5"),
	}
}

type memJournal struct {
	records []journal.TradeRecord
	err     error
	closed  bool
}

func (j *memJournal) Append(t journal.TradeRecord) error {
	if j.err != nil {
		return j.err
	}
	j.records = append(j.records, t)
	return nil
}

func (j *memJournal) Close() error { j.closed = true; return nil }

func pnl(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func newManager(t *testing.T, initial string, s Settings, j journal.Journal) *Manager {
	t.Helper()
	m, err := NewManager(d(initial), s, j, WithLogger(quiet))
	require.NoError(t, err)
	return m
}

func TestManagerFirstPercentageStake(t *testing.T) {
	t.Parallel()

	m := newManager(t, "1000", settings(StakeConfig{Mode: Percentage, Value: d("1")}, NoPolicy()), nil)
	got := m.NextStake()
	assert.Equal(t, "10.00", got.StringFixed(2))
}

func TestManagerSorosScenario(t *testing.T) {
	t.Parallel()

	j := &memJournal{}
	m := newManager(t, "1000", settings(fixed10, SorosPolicy(2)), j)

	stake := m.NextStake()
	assertDec(t, "10", stake)
	m.Settle("EURUSD", market.Call, stake, pnl("10"))
	assert.Equal(t, 1, m.Cycle().Level)

	stake = m.NextStake()
	assertDec(t, "20", stake)
	m.Settle("EURUSD", market.Put, stake, pnl("15"))
	assert.Equal(t, 0, m.Cycle().Level)

	assertDec(t, "10", m.NextStake())

	require.Len(t, j.records, 2)
	assert.Equal(t, 0, j.records[0].Level, "level recorded at time of trade")
	assert.Equal(t, 1, j.records[1].Level)
	assert.Equal(t, "soros", j.records[1].Policy)
	assertDec(t, "25", j.records[1].DailyPnL)
}

func TestManagerMartingaleScenario(t *testing.T) {
	t.Parallel()

	m := newManager(t, "1000", settings(StakeConfig{Mode: Fixed, Value: d("5")}, MartingalePolicy(d("2"))), nil)

	steps := []struct {
		pnl       string
		nextStake string
		level     int
	}{
		{"-5", "10", 1},
		{"-10", "20", 2},
		{"17", "5", 0},
	}
	stake := m.NextStake()
	assertDec(t, "5", stake)
	for _, st := range steps {
		m.Settle("GBPUSD", market.Call, stake, pnl(st.pnl))
		assert.Equal(t, st.level, m.Cycle().Level)
		stake = m.NextStake()
		assertDec(t, st.nextStake, stake)
	}
}

func TestManagerStopLossBoundary(t *testing.T) {
	t.Parallel()

	m := newManager(t, "1000", settings(fixed10, NoPolicy()), nil)

	m.Settle("EURUSD", market.Call, d("10"), pnl("-99.99"))
	assert.False(t, m.ShouldStop())
	assert.Equal(t, KeepTrading, m.StopReason())

	m.Settle("EURUSD", market.Call, d("10"), pnl("-0.01"))
	assert.True(t, m.ShouldStop())
	assert.Equal(t, StopLoss, m.StopReason())
	assertDec(t, "900", m.Account().Current)
	assertDec(t, "1000", m.Account().Initial)
}

func TestManagerTakeProfit(t *testing.T) {
	t.Parallel()

	m := newManager(t, "1000", settings(fixed10, NoPolicy()), nil)
	m.Settle("EURUSD", market.Call, d("10"), pnl("49"))
	assert.False(t, m.ShouldStop())
	m.Settle("EURUSD", market.Call, d("10"), pnl("1"))
	assert.Equal(t, TakeProfit, m.StopReason())
	assert.Equal(t, "take_profit", m.StopReason().String())
}

func TestManagerUnknownSettlementIsDraw(t *testing.T) {
	t.Parallel()

	j := &memJournal{}
	m := newManager(t, "1000", settings(fixed10, NoPolicy()), j)

	rec := m.Settle("EURUSD", market.Call, d("10"), decimal.NullDecimal{})
	assert.Equal(t, market.Draw, rec.Outcome)
	assert.True(t, rec.PnL.IsZero())

	l := m.Ledger()
	assert.Equal(t, 0, l.Wins)
	assert.Equal(t, 0, l.Losses)
	assert.Equal(t, 1, l.Operations)
	assertDec(t, "1000", m.Account().Current)
	require.Len(t, j.records, 1)
}

func TestManagerJournalFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	j := &memJournal{err: errors.New("disk full")}
	m := newManager(t, "1000", settings(fixed10, SorosPolicy(3)), j)

	rec := m.Settle("EURUSD", market.Call, m.NextStake(), pnl("8"))
	assert.Equal(t, market.Win, rec.Outcome)
	assert.Equal(t, 1, m.Ledger().Wins)
	assertDec(t, "18", m.NextStake())
}

func TestManagerSnapshot(t *testing.T) {
	t.Parallel()

	m := newManager(t, "200", settings(fixed10, SorosPolicy(2)), nil)
	m.NextStake()
	m.Settle("EURUSD", market.Call, d("10"), pnl("8"))
	m.NextStake()
	m.Settle("EURUSD", market.Call, d("18"), pnl("-18"))

	s := m.Snapshot()
	assertDec(t, "190", s.Balance)
	assertDec(t, "-10", s.DailyPnL)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 2, s.Operations)
	assert.InDelta(t, 50.0, s.Assertiveness, 1e-9)
	assert.Equal(t, "soros(2)", s.Policy)
	assert.Equal(t, 0, s.Level)
}

func TestManagerZeroBalanceSkips(t *testing.T) {
	t.Parallel()

	m := newManager(t, "10", settings(fixed10, NoPolicy()), nil)
	m.Settle("EURUSD", market.Call, d("10"), pnl("-10"))
	assert.True(t, m.NextStake().IsZero())
}

func TestNewManagerRejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	bad := []Settings{
		settings(StakeConfig{Mode: Fixed, Value: d("0")}, NoPolicy()),
		settings(fixed10, SorosPolicy(0)),
		settings(fixed10, MartingalePolicy(d("0.5"))),
		{Stake: fixed10, Policy: NoPolicy(), StopLossPct: d("0"), TakeProfitPct: d("5")},
		{Stake: fixed10, Policy: NoPolicy(), StopLossPct: d("10"), TakeProfitPct: d("-1")},
	}
	for i, s := range bad {
		_, err := NewManager(d("1000"), s, nil)
		assert.ErrorIs(t, err, ErrInvalidSettings, "case %d", i)
	}
}

func TestManagerWritesCSVAuditLog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := journal.NewCSV(path)
	require.NoError(t, err)

	ts := time.Date(2026, 10, 14, 13, 1, 0, 0, time.UTC)
	m, err := NewManager(d("1000"), settings(fixed10, MartingalePolicy(d("2"))), j,
		WithLogger(quiet), WithClock(func() time.Time { return ts }))
	require.NoError(t, err)

	m.Settle("EURUSD", market.Put, m.NextStake(), pnl("-10"))
	m.Settle("EURUSD", market.Call, m.NextStake(), pnl("16"))
	require.NoError(t, m.Close())

	recs, err := journal.ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, market.Loss, recs[0].Outcome)
	assertDec(t, "20", recs[1].Stake)
	assert.Equal(t, 1, recs[1].Level)
	assertDec(t, "6", recs[1].DailyPnL)
	assert.Equal(t, "martingale", recs[1].Policy)
	assert.True(t, recs[1].Time.Equal(ts))
}
