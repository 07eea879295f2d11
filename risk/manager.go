package risk

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/bintrader/journal"
	"github.com/rustyeddy/bintrader/market"
	"github.com/rustyeddy/bintrader/pkg/id"
	"github.com/shopspring/decimal"
)

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("invalid risk settings")

// Account is the balance the session trades from. Initial is fixed at
// session start; Current moves with every settled trade.
type Account struct {
	Initial decimal.Decimal
	Current decimal.Decimal
}

// Settings configure one session.
type Settings struct {
	Stake         StakeConfig
	Policy        Policy
	StopLossPct   decimal.Decimal
	TakeProfitPct decimal.Decimal
}

func (s Settings) Validate() error {
	if err := s.Stake.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if !s.StopLossPct.IsPositive() {
		return fmt.Errorf("%w: stop loss must be positive, got %s", ErrInvalidSettings, s.StopLossPct)
	}
	if !s.TakeProfitPct.IsPositive() {
		return fmt.Errorf("%w: take profit must be positive, got %s", ErrInvalidSettings, s.TakeProfitPct)
	}
	return nil
}

// StopReason names the condition that ended a session.
type StopReason int

const (
	KeepTrading StopReason = iota
	StopLoss
	TakeProfit
)

func (r StopReason) String() string {
	switch r {
	case StopLoss:
		return "stop_loss"
	case TakeProfit:
		return "take_profit"
	default:
		return "none"
	}
}

// Snapshot is the state reported to the user after each trade.
type Snapshot struct {
	Balance       decimal.Decimal
	DailyPnL      decimal.Decimal
	Wins          int
	Losses        int
	Operations    int
	Assertiveness float64
	Policy        string
	Level         int
}

// Manager composes the stake calculator, the cycle tracker, the ledger and
// the audit log. All methods are safe for concurrent use, but a session is
// expected to call NextStake and Settle strictly in turn.
type Manager struct {
	mu       sync.Mutex
	settings Settings
	account  Account
	tracker  *Tracker
	ledger   Ledger
	journal  journal.Journal
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithClock overrides the timestamp source for trade records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager starts a session with initial as the immutable day baseline.
// A nil journal discards records.
func NewManager(initial decimal.Decimal, s Settings, j journal.Journal, opts ...Option) (*Manager, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if j == nil {
		j = journal.Nop{}
	}

	m := &Manager{
		settings: s,
		account:  Account{Initial: initial, Current: initial},
		tracker:  NewTracker(s.Policy),
		journal:  j,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) Settings() Settings { return m.settings }

func (m *Manager) Account() Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account
}

func (m *Manager) Ledger() Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger
}

func (m *Manager) Cycle() CycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.State()
}

// NextStake returns the amount to risk on the next trade. Zero means skip
// this round and do not submit an order.
func (m *Manager) NextStake() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.NextStake(m.account.Current, m.settings.Stake)
}

// Settle books a finished trade. An unknown result (pnl.Valid == false) is
// booked as a draw. Journal failures are logged and do not fail the call.
func (m *Manager) Settle(asset string, dir market.Direction, stake decimal.Decimal, pnl decimal.NullDecimal) journal.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	realized := decimal.Zero
	if pnl.Valid {
		realized = pnl.Decimal
	} else {
		m.log.Warn("settlement result unknown, booking as draw", slog.String("asset", asset))
	}

	level := m.tracker.State().Level
	m.ledger.Record(realized)
	m.account.Current = m.account.Current.Add(realized)

	switch tr := m.tracker.Apply(realized); tr {
	case Completed, Aborted:
		m.log.Info("capital cycle "+tr.String(),
			slog.String("policy", m.settings.Policy.String()),
			slog.Int("level", level))
	}

	now := m.now()
	rec := journal.TradeRecord{
		ID:        id.At(now),
		Time:      now,
		Asset:     asset,
		Direction: dir,
		Stake:     stake,
		Outcome:   market.OutcomeOf(realized),
		PnL:       realized,
		DailyPnL:  m.ledger.DailyPnL,
		Policy:    m.settings.Policy.Name(),
		Level:     level,
	}
	if err := m.journal.Append(rec); err != nil {
		m.log.Error("audit log write failed", slog.String("trade_id", rec.ID), slog.Any("err", err))
	}
	return rec
}

// StopReason reports which daily limit, if any, has been reached.
func (m *Manager) StopReason() StopReason {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.ledger.StopLossHit(m.account.Initial, m.settings.StopLossPct):
		return StopLoss
	case m.ledger.TakeProfitHit(m.account.Initial, m.settings.TakeProfitPct):
		return TakeProfit
	}
	return KeepTrading
}

// ShouldStop is true once either daily limit is reached.
func (m *Manager) ShouldStop() bool {
	return m.StopReason() != KeepTrading
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Balance:       m.account.Current,
		DailyPnL:      m.ledger.DailyPnL,
		Wins:          m.ledger.Wins,
		Losses:        m.ledger.Losses,
		Operations:    m.ledger.Operations,
		Assertiveness: m.ledger.Assertiveness(),
		Policy:        m.settings.Policy.String(),
		Level:         m.tracker.State().Level,
	}
}

// Close flushes and closes the audit log.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.journal.Close()
}
