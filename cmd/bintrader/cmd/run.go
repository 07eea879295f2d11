package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/bintrader/bot"
	"github.com/rustyeddy/bintrader/broker"
	"github.com/rustyeddy/bintrader/broker/sim"
	"github.com/rustyeddy/bintrader/calendar"
	"github.com/rustyeddy/bintrader/config"
	"github.com/rustyeddy/bintrader/journal"
	"github.com/rustyeddy/bintrader/market"
	"github.com/rustyeddy/bintrader/metrics"
	"github.com/rustyeddy/bintrader/schedule"
	"github.com/rustyeddy/bintrader/strategies"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a trading session",
	Long: `Run a trading day using settings from a configuration file.

The session ends when the daily stop loss or take profit is reached, or on
Ctrl+C. With schedule.enabled the command stays up and starts a new session
at each schedule.start, ending it at schedule.stop.

Example:
  bintrader run -c bintrader.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runEnvFile string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runEnvFile, "env-file", ".env", "file with BINTRADER_EMAIL and BINTRADER_PASSWORD")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("log-level") && !flags.Changed("log-format") {
		if err := setupLogging(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
			return err
		}
	}

	creds, err := config.LoadCredentials(runEnvFile)
	switch {
	case err == nil:
		slog.Info("broker credentials loaded", slog.String("email", creds.Email))
	case errors.Is(err, config.ErrMissingCredentials) && cfg.Broker.Type == "sim":
		slog.Info("no broker credentials, the simulator runs without them")
	default:
		return err
	}

	news, err := newsFilter(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rec *metrics.Recorder
	if cfg.Metrics.Addr != "" {
		rec = metrics.New()
		shutdown := serveMetrics(cfg.Metrics.Addr, rec)
		defer shutdown()
	}

	b, err := newBroker(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	session := func(ctx context.Context) (bot.Result, error) {
		return runSession(ctx, out, cfg, b, news, rec)
	}

	if !cfg.Schedule.Enabled {
		res, err := session(ctx)
		if err != nil {
			return err
		}
		renderResult(out, res)
		return nil
	}

	sched := schedule.New(ctx, func(ctx context.Context) {
		res, err := session(ctx)
		if err != nil {
			slog.Error("session failed", slog.String("reason", res.Reason), slog.Any("err", err))
			return
		}
		renderResult(out, res)
	})
	if err := sched.Register(cfg.Schedule.Start, cfg.Schedule.Stop); err != nil {
		return err
	}
	sched.Start()
	slog.Info("waiting for the trading day",
		slog.String("start", cfg.Schedule.Start),
		slog.String("stop", cfg.Schedule.Stop),
		slog.Time("next", sched.Next()))

	<-ctx.Done()
	sched.Stop()
	return nil
}

// runSession builds a fresh journal and strategy set for one trading day.
func runSession(ctx context.Context, out io.Writer, cfg *config.Config, b broker.Broker, news *calendar.Filter, rec *metrics.Recorder) (bot.Result, error) {
	settings, err := cfg.RiskSettings()
	if err != nil {
		return bot.Result{Reason: bot.ReasonConfigError}, err
	}
	strats, err := strategies.Default().Build(cfg.Trading.Strategies)
	if err != nil {
		return bot.Result{Reason: bot.ReasonConfigError}, err
	}
	j, err := openJournal(cfg.Journal)
	if err != nil {
		return bot.Result{Reason: bot.ReasonConfigError}, err
	}

	events := make(chan bot.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(out, events)
	}()

	s := bot.New(cfg.BotConfig(), b, settings, strats,
		bot.WithJournal(j),
		bot.WithNewsFilter(news),
		bot.WithMetrics(rec),
		bot.WithEvents(events))
	res, err := s.Run(ctx)
	close(events)
	<-done
	return res, err
}

// printEvents writes one line per settled trade.
func printEvents(w io.Writer, events <-chan bot.Event) {
	for ev := range events {
		if ev.Kind != bot.TradeEvent || ev.Trade == nil || ev.Snapshot == nil {
			continue
		}
		t, s := ev.Trade, ev.Snapshot
		fmt.Fprintf(w, "%s %-11s %-4s %-4s stake %8s  P/L %8s | balance %s | day %s | %d/%d (%.1f%%)\n",
			t.Time.Format(time.TimeOnly), t.Asset, t.Direction, t.Outcome,
			t.Stake.StringFixed(2), t.PnL.StringFixed(2),
			s.Balance.StringFixed(2), s.DailyPnL.StringFixed(2),
			s.Wins, s.Operations, s.Assertiveness)
	}
}

func newBroker(cfg *config.Config) (broker.Broker, error) {
	sc := sim.DefaultConfig()
	sc.Seed = cfg.Broker.Seed
	sc.Payout = decimal.NewFromFloat(cfg.Broker.Payout)
	sc.Assets = cfg.Trading.Assets
	sc.Interval = cfg.BotConfig().Timeframe
	if cfg.Account.Balance > 0 {
		sc.Balance = decimal.NewFromFloat(cfg.Account.Balance)
	}
	if cfg.Broker.HistoryFile != "" {
		history, err := market.ReadCandlesCSV(cfg.Broker.HistoryFile, time.Time{}, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("candle history: %w", err)
		}
		sc.History = history
		slog.Info("replaying recorded candles", slog.String("file", cfg.Broker.HistoryFile), slog.Int("assets", len(history)))
	}
	return sim.New(sc), nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.TradesFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "both":
		c, err := journal.NewCSV(jc.TradesFile)
		if err != nil {
			return nil, err
		}
		s, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			c.Close()
			return nil, err
		}
		return journal.Multi(c, s), nil
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}

func newsFilter(cfg *config.Config) (*calendar.Filter, error) {
	if !cfg.News.Enabled {
		return nil, nil
	}
	events, err := calendar.LoadEvents(cfg.News.EventsFile)
	if err != nil {
		return nil, fmt.Errorf("news calendar: %w", err)
	}
	before, after := cfg.NewsWindow()
	slog.Info("news filter enabled", slog.Int("events", len(events)))
	return calendar.NewFilter(events, cfg.NewsImpacts(), before, after), nil
}

// serveMetrics exposes /metrics until the returned func is called.
func serveMetrics(addr string, rec *metrics.Recorder) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", slog.Any("err", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
