// Package metrics exposes trading session state to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rustyeddy/bintrader/journal"
	"github.com/rustyeddy/bintrader/risk"
)

// Recorder owns a dedicated registry. A nil Recorder records nothing.
type Recorder struct {
	reg *prometheus.Registry

	trades         *prometheus.CounterVec
	stake          prometheus.Histogram
	balance        prometheus.Gauge
	dailyPnL       prometheus.Gauge
	cycleLevel     prometheus.Gauge
	strategyErrors *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bintrader_trades_total",
				Help: "Settled trades by asset and outcome",
			},
			[]string{"asset", "outcome"},
		),
		stake: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bintrader_stake",
			Help:    "Distribution of stakes submitted",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bintrader_balance",
			Help: "Current account balance",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bintrader_daily_pnl",
			Help: "Realized profit and loss for the session",
		}),
		cycleLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bintrader_cycle_level",
			Help: "Current capital management cycle level",
		}),
		strategyErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bintrader_strategy_errors_total",
				Help: "Strategy evaluations that failed or panicked",
			},
			[]string{"strategy"},
		),
	}
	r.reg.MustRegister(r.trades, r.stake, r.balance, r.dailyPnL, r.cycleLevel, r.strategyErrors)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Trade records a settled trade.
func (r *Recorder) Trade(t journal.TradeRecord) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(t.Asset, t.Outcome.String()).Inc()
	r.stake.Observe(t.Stake.InexactFloat64())
}

// Session publishes the manager state after a trade.
func (r *Recorder) Session(s risk.Snapshot) {
	if r == nil {
		return
	}
	r.balance.Set(s.Balance.InexactFloat64())
	r.dailyPnL.Set(s.DailyPnL.InexactFloat64())
	r.cycleLevel.Set(float64(s.Level))
}

func (r *Recorder) StrategyError(name string) {
	if r == nil {
		return
	}
	r.strategyErrors.WithLabelValues(name).Inc()
}
