package strategies

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/bintrader/indicators"
	"github.com/rustyeddy/bintrader/market"
)

const PullbackName = "pullback"

// PullbackConfig tunes the Pullback strategy.
type PullbackConfig struct {
	FastEMA         int
	SlowEMA         int
	RSIPeriod       int
	StochK          int
	StochSmooth     int
	StochD          int
	VolumePeriod    int
	VolumeThreshold float64 // volume / average volume must exceed this
	MinBodyRatio    float64 // body / range must exceed this
	MinPullback     float64
	MaxPullback     float64
	Cooldown        time.Duration
}

func DefaultPullbackConfig() PullbackConfig {
	return PullbackConfig{
		FastEMA:         20,
		SlowEMA:         50,
		RSIPeriod:       14,
		StochK:          14,
		StochSmooth:     3,
		StochD:          3,
		VolumePeriod:    20,
		VolumeThreshold: 1.2,
		MinBodyRatio:    0.6,
		MinPullback:     0.0003,
		MaxPullback:     0.0080,
		Cooldown:        300 * time.Second,
	}
}

// Pullback trades retracements inside an EMA trend. It holds a cooldown
// between signals measured on candle time, so each instance is stateful.
type Pullback struct {
	cfg PullbackConfig

	mu         sync.Mutex
	lastSignal time.Time
}

func NewPullback(cfg PullbackConfig) *Pullback {
	return &Pullback{cfg: cfg}
}

func (p *Pullback) Name() string { return PullbackName }

type trend int

const (
	neutral trend = iota
	uptrend
	downtrend
)

func (p *Pullback) Evaluate(cs []market.Candle) (Decision, error) {
	if len(cs) < p.cfg.SlowEMA || len(cs) < 6 {
		return hold("not enough candles"), nil
	}

	closes := market.Closes(cs)
	fast, err := indicators.EMA(closes, p.cfg.FastEMA)
	if err != nil {
		return Decision{}, err
	}
	slow, err := indicators.EMA(closes, p.cfg.SlowEMA)
	if err != nil {
		return Decision{}, err
	}
	rsiS, err := indicators.RSI(closes, p.cfg.RSIPeriod)
	if err != nil {
		return Decision{}, err
	}
	stochK, _, err := indicators.Stochastic(cs, p.cfg.StochK, p.cfg.StochSmooth, p.cfg.StochD)
	if err != nil {
		return Decision{}, err
	}
	volMA, err := indicators.SMA(market.Volumes(cs), p.cfg.VolumePeriod)
	if err != nil {
		return Decision{}, err
	}

	n := len(cs) - 1
	last := cs[n]

	tr := p.trend(fast, slow, last.Close)
	if tr == neutral {
		return hold("no trend"), nil
	}

	rsi, _ := indicators.At(rsiS, n)
	k, _ := indicators.At(stochK, n)
	prior := cs[n-5 : n]

	var sig Signal
	var size float64
	switch tr {
	case uptrend:
		hi := math.Inf(-1)
		for _, c := range prior {
			hi = math.Max(hi, c.High)
		}
		size = hi - last.Close
		if p.inRange(size) && rsi < 50 && k < 50 {
			sig = Buy
		}
	case downtrend:
		lo := math.Inf(1)
		for _, c := range prior {
			lo = math.Min(lo, c.Low)
		}
		size = last.Close - lo
		if p.inRange(size) && rsi > 50 && k > 50 {
			sig = Sell
		}
	}
	if sig == Hold {
		return hold("no pullback"), nil
	}

	avgVol, _ := indicators.At(volMA, n)
	if avgVol <= 0 || last.Volume/avgVol <= p.cfg.VolumeThreshold {
		return hold("volume too low"), nil
	}
	body := 0.0
	if r := last.Range(); r > 0 {
		body = last.Body() / r
	}
	if body <= p.cfg.MinBodyRatio {
		return hold("weak candle body"), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.lastSignal.IsZero() && last.Time.Sub(p.lastSignal) <= p.cfg.Cooldown {
		return hold("cooldown"), nil
	}
	p.lastSignal = last.Time

	return Decision{sig, fmt.Sprintf("pullback %.5f rsi %.2f stoch %.2f", size, rsi, k)}, nil
}

func (p *Pullback) trend(fast, slow []float64, price float64) trend {
	n := len(fast) - 1
	f, _ := indicators.At(fast, n)
	s, _ := indicators.At(slow, n)

	// slope against the mean of the five prior fast EMA values
	sum := 0.0
	for i := n - 5; i < n; i++ {
		v, ok := indicators.At(fast, i)
		if !ok {
			return neutral
		}
		sum += v
	}
	prev := sum / 5

	switch {
	case f > s && price > f && f > prev:
		return uptrend
	case f < s && price < f && f < prev:
		return downtrend
	}
	return neutral
}

func (p *Pullback) inRange(size float64) bool {
	return size >= p.cfg.MinPullback && size <= p.cfg.MaxPullback
}
