// Package bot runs a trading session: it watches the open assets, waits for
// each candle to close, asks the strategies for a signal and places at most
// one option per round, settling it through the risk manager.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/bintrader/broker"
	"github.com/rustyeddy/bintrader/calendar"
	"github.com/rustyeddy/bintrader/journal"
	"github.com/rustyeddy/bintrader/market"
	"github.com/rustyeddy/bintrader/metrics"
	"github.com/rustyeddy/bintrader/pkg/id"
	"github.com/rustyeddy/bintrader/risk"
	"github.com/rustyeddy/bintrader/strategies"
	"github.com/shopspring/decimal"
)

var (
	ErrConnect      = broker.ErrConnect
	ErrNoBalance    = broker.ErrNoBalance
	ErrNoStrategies = errors.New("no strategies configured")
)

// Stop reasons reported in Result. The daily limits use the risk package's
// names.
var (
	ReasonStopLoss   = risk.StopLoss.String()
	ReasonTakeProfit = risk.TakeProfit.String()
)

const (
	ReasonStopped      = "stopped"
	ReasonConnectError = "connect_error"
	ReasonBalanceError = "balance_error"
	ReasonConfigError  = "config_error"
)

type Config struct {
	Timeframe       time.Duration
	Expiration      time.Duration
	CandleCount     int
	MinCandles      int
	PostTradePause  time.Duration
	IdleWait        time.Duration
	Preferred       []string
	ConnectAttempts int
	ConnectBackoff  time.Duration
	// InitialBalance overrides the broker balance when positive.
	InitialBalance decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		Timeframe:       time.Minute,
		Expiration:      time.Minute,
		CandleCount:     110,
		MinCandles:      100,
		PostTradePause:  5 * time.Second,
		IdleWait:        time.Minute,
		Preferred:       market.PreferredAssets,
		ConnectAttempts: 3,
		ConnectBackoff:  5 * time.Second,
	}
}

// Result describes how a session ended.
type Result struct {
	SessionID string
	Reason    string
	Trades    []journal.TradeRecord
	Snapshot  risk.Snapshot
}

type Session struct {
	cfg        Config
	broker     broker.Broker
	settings   risk.Settings
	strategies []strategies.Strategy

	journal journal.Journal
	news    *calendar.Filter
	metrics *metrics.Recorder
	events  chan<- Event
	log     *slog.Logger
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error

	lastCandle map[string]time.Time
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.log = l } }

// WithJournal sets the audit log. The session closes it when Run returns.
func WithJournal(j journal.Journal) Option { return func(s *Session) { s.journal = j } }

func WithNewsFilter(f *calendar.Filter) Option { return func(s *Session) { s.news = f } }

func WithMetrics(m *metrics.Recorder) Option { return func(s *Session) { s.metrics = m } }

// WithEvents publishes status and trade events. Sends never block; events
// are dropped when ch is full.
func WithEvents(ch chan<- Event) Option { return func(s *Session) { s.events = ch } }

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Session) { s.sleep = sleep }
}

func New(cfg Config, b broker.Broker, settings risk.Settings, strats []strategies.Strategy, opts ...Option) *Session {
	s := &Session{
		cfg:        cfg,
		broker:     b,
		settings:   settings,
		strategies: strats,
		log:        slog.Default(),
		now:        time.Now,
		sleep:      sleepCtx,
		lastCandle: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run trades until a daily limit is reached or ctx is cancelled. A cancelled
// context is a normal stop and returns a nil error.
func (s *Session) Run(ctx context.Context) (Result, error) {
	res := Result{SessionID: id.At(s.now())}
	log := s.log.With(slog.String("session", res.SessionID))

	// The manager closes the journal once it exists; before that Run does.
	var mgr *risk.Manager
	defer func() {
		if mgr != nil || s.journal == nil {
			return
		}
		if err := s.journal.Close(); err != nil {
			log.Error("closing audit log", slog.Any("err", err))
		}
	}()

	if len(s.strategies) == 0 {
		res.Reason = ReasonConfigError
		return res, ErrNoStrategies
	}

	s.status("connecting")
	if err := broker.Connect(ctx, s.broker, s.cfg.ConnectAttempts, s.cfg.ConnectBackoff); err != nil {
		s.status("connection error")
		res.Reason = ReasonConnectError
		if ctx.Err() != nil {
			res.Reason = ReasonStopped
			return res, nil
		}
		return res, err
	}

	balance := s.cfg.InitialBalance
	if !balance.IsPositive() {
		b, err := s.broker.Balance(ctx)
		if err != nil {
			s.status("balance error")
			res.Reason = ReasonBalanceError
			if !errors.Is(err, ErrNoBalance) {
				err = fmt.Errorf("%w: %w", ErrNoBalance, err)
			}
			return res, err
		}
		balance = b
	}

	m, err := risk.NewManager(balance, s.settings, s.journal,
		risk.WithLogger(log), risk.WithClock(s.now))
	if err != nil {
		res.Reason = ReasonConfigError
		return res, err
	}
	mgr = m
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Error("closing audit log", slog.Any("err", err))
		}
	}()

	log.Info("session started",
		slog.String("balance", balance.StringFixed(2)),
		slog.String("policy", s.settings.Policy.String()),
		slog.Int("strategies", len(s.strategies)))
	s.status("running")
	s.metrics.Session(mgr.Snapshot())

	for {
		if ctx.Err() != nil {
			res.Reason = ReasonStopped
			break
		}
		if reason := mgr.StopReason(); reason != risk.KeepTrading {
			res.Reason = reason.String()
			log.Info("daily limit reached", slog.String("reason", res.Reason))
			break
		}

		rec, traded, err := s.round(ctx, log, mgr)
		if traded {
			res.Trades = append(res.Trades, rec)
		}
		if err != nil && ctx.Err() == nil {
			log.Warn("round failed", slog.Any("err", err))
		}
	}

	res.Snapshot = mgr.Snapshot()
	s.status("stopped")
	log.Info("session finished",
		slog.String("reason", res.Reason),
		slog.Int("trades", len(res.Trades)),
		slog.String("daily_pnl", res.Snapshot.DailyPnL.StringFixed(2)))
	return res, nil
}

// round scans the watched assets once and trades at most one of them.
func (s *Session) round(ctx context.Context, log *slog.Logger, mgr *risk.Manager) (journal.TradeRecord, bool, error) {
	session := market.SessionAt(s.now())
	open, err := s.broker.OpenAssets(ctx)
	if err != nil {
		_ = s.sleep(ctx, s.cfg.IdleWait)
		return journal.TradeRecord{}, false, fmt.Errorf("open assets: %w", err)
	}

	assets := market.SelectAssets(session, open, s.cfg.Preferred)
	if len(assets) == 0 {
		log.Info("no tradable assets, waiting", slog.String("market", session.String()))
		_ = s.sleep(ctx, s.cfg.IdleWait)
		return journal.TradeRecord{}, false, nil
	}

	now := s.now()
	next := now.Truncate(s.cfg.Timeframe).Add(s.cfg.Timeframe)
	if err := s.sleep(ctx, next.Sub(now)); err != nil {
		return journal.TradeRecord{}, false, err
	}

	for _, a := range assets {
		if ctx.Err() != nil {
			return journal.TradeRecord{}, false, ctx.Err()
		}
		alog := log.With(slog.String("asset", a.Name))

		if ok, ev := s.news.IsTradingSafe(a.Name, s.now()); !ok {
			alog.Warn("news blackout", slog.String("event", ev.Name), slog.String("currency", ev.Currency),
				slog.Time("at", ev.Time))
			continue
		}

		candles, err := s.broker.Candles(ctx, a.CandleSymbol, s.cfg.Timeframe, s.cfg.CandleCount, s.now())
		if err != nil {
			alog.Warn("candles unavailable", slog.Any("err", err))
			continue
		}
		if len(candles) < s.cfg.MinCandles {
			alog.Info("not enough candles", slog.Int("have", len(candles)), slog.Int("need", s.cfg.MinCandles))
			continue
		}

		last, _ := market.Last(candles)
		if !last.Time.After(s.lastCandle[a.Name]) {
			continue
		}
		s.lastCandle[a.Name] = last.Time

		rec, traded, err := s.evaluate(ctx, alog, mgr, a, candles)
		if traded || err != nil {
			return rec, traded, err
		}
	}
	return journal.TradeRecord{}, false, nil
}

// evaluate runs the strategies in order; the first signal is traded.
func (s *Session) evaluate(ctx context.Context, log *slog.Logger, mgr *risk.Manager, a market.Asset, candles []market.Candle) (journal.TradeRecord, bool, error) {
	for _, strat := range s.strategies {
		dec, err := safeEvaluate(strat, candles)
		if err != nil {
			log.Error("strategy failed", slog.String("strategy", strat.Name()), slog.Any("err", err))
			s.metrics.StrategyError(strat.Name())
			continue
		}
		dir, ok := dec.Direction()
		if !ok {
			continue
		}

		stake := mgr.NextStake()
		if !stake.IsPositive() {
			log.Info("stake is zero, no order placed", slog.String("strategy", strat.Name()))
			return journal.TradeRecord{}, false, nil
		}

		cycle := mgr.Cycle()
		log.Info("signal",
			slog.String("strategy", strat.Name()),
			slog.String("direction", dir.String()),
			slog.String("stake", stake.StringFixed(2)),
			slog.Int("level", cycle.Level),
			slog.String("reason", dec.Reason))

		orderID, err := s.broker.Buy(ctx, stake, a.Name, dir, s.cfg.Expiration)
		if err != nil {
			log.Warn("order rejected", slog.Any("err", err))
			continue
		}
		s.status("trading " + a.Name)

		pnl, err := s.broker.AwaitResult(ctx, orderID)
		if err != nil {
			log.Warn("settlement unknown", slog.String("order", orderID), slog.Any("err", err))
			pnl = decimal.NullDecimal{}
		}

		rec := mgr.Settle(a.Name, dir, stake, pnl)
		snap := mgr.Snapshot()
		s.metrics.Trade(rec)
		s.metrics.Session(snap)
		s.emit(Event{Kind: TradeEvent, Time: rec.Time, Trade: &rec, Snapshot: &snap})

		log.Info("trade settled",
			slog.String("order", orderID),
			slog.String("outcome", rec.Outcome.String()),
			slog.String("pnl", rec.PnL.StringFixed(2)),
			slog.String("daily_pnl", snap.DailyPnL.StringFixed(2)),
			slog.String("balance", snap.Balance.StringFixed(2)),
			slog.String("assertiveness", fmt.Sprintf("%.2f%%", snap.Assertiveness)))

		if ctx.Err() == nil {
			_ = s.sleep(ctx, s.cfg.PostTradePause)
		}
		return rec, true, nil
	}
	return journal.TradeRecord{}, false, nil
}

// safeEvaluate turns a strategy panic into an error.
func safeEvaluate(strat strategies.Strategy, candles []market.Candle) (dec strategies.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", strat.Name(), r)
		}
	}()

	cp := make([]market.Candle, len(candles))
	copy(cp, candles)
	return strat.Evaluate(cp)
}
