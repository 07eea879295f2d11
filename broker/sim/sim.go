// Package sim is a deterministic in-process binary-options broker. Prices
// are a seeded random walk per asset, so a given seed and start time always
// produce the same candles and settlements. Recorded candles can be replayed
// ahead of the walk.
package sim

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/bintrader/broker"
	"github.com/rustyeddy/bintrader/market"
	"github.com/rustyeddy/bintrader/pkg/id"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownAsset      = errors.New("unknown asset")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInterval          = errors.New("unsupported candle interval")
)

type Config struct {
	Seed    int64
	Balance decimal.Decimal
	// Payout is the profit ratio on a winning option, 0.8 pays 80%.
	Payout decimal.Decimal
	// Assets are pair names; each is also open as its -OTC variant.
	Assets     []string
	Interval   time.Duration
	Start      time.Time
	StartPrice float64
	Volatility float64
	// ConnectFailures makes the first n Connect calls fail.
	ConnectFailures int
	// History holds recorded candles per pair, replayed from Start on the
	// simulated clock. The random walk continues from the last close.
	History map[string][]market.Candle
}

// DefaultConfig trades the preferred pairs from a 1000 balance with an 80%
// payout on one minute candles.
func DefaultConfig() Config {
	return Config{
		Seed:       1,
		Balance:    decimal.NewFromInt(1000),
		Payout:     decimal.NewFromFloat(0.8),
		Assets:     market.PreferredAssets,
		Interval:   time.Minute,
		StartPrice: 1.1,
		Volatility: 0.0004,
	}
}

type order struct {
	asset   string
	dir     market.Direction
	amount  decimal.Decimal
	entry   float64
	expires time.Time
	result  *decimal.NullDecimal
}

type Broker struct {
	mu        sync.Mutex
	cfg       Config
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
	connected bool
	attempts  int
	balance   decimal.Decimal
	series    map[string]*walk
	orders    map[string]*order
}

var _ broker.Broker = (*Broker)(nil)

type Option func(*Broker)

func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

// WithSleep replaces the wait used while an option runs to expiry.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(b *Broker) { b.sleep = sleep }
}

func New(cfg Config, opts ...Option) *Broker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = def.StartPrice
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = def.Volatility
	}
	if len(cfg.Assets) == 0 {
		cfg.Assets = def.Assets
	}

	b := &Broker{
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
		balance: cfg.Balance,
		series:  make(map[string]*walk),
		orders:  make(map[string]*order),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.cfg.Start.IsZero() {
		b.cfg.Start = b.now().Truncate(cfg.Interval).Add(-500 * cfg.Interval)
	}
	return b
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

func (b *Broker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	if b.attempts <= b.cfg.ConnectFailures {
		return fmt.Errorf("sim: connect attempt %d refused", b.attempts)
	}
	b.connected = true
	return nil
}

func (b *Broker) Balance(ctx context.Context) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return decimal.Zero, broker.ErrNotConnected
	}
	return b.balance, nil
}

func (b *Broker) OpenAssets(ctx context.Context) (map[string]bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil, broker.ErrNotConnected
	}
	open := make(map[string]bool, 2*len(b.cfg.Assets))
	for _, a := range b.cfg.Assets {
		open[a] = true
		open[a+market.OTCSuffix] = true
	}
	return open, nil
}

func (b *Broker) known(asset string) bool {
	for _, a := range b.cfg.Assets {
		if asset == a || asset == a+market.OTCSuffix {
			return true
		}
	}
	return false
}

func (b *Broker) Candles(ctx context.Context, asset string, interval time.Duration, count int, end time.Time) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil, broker.ErrNotConnected
	}
	if interval != b.cfg.Interval {
		return nil, fmt.Errorf("%w: %s", ErrInterval, interval)
	}
	if !b.known(asset) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	}

	last := b.lastClosed(end)
	if last < 0 || count <= 0 {
		return nil, nil
	}
	first := last - count + 1
	if first < 0 {
		first = 0
	}

	w := b.walk(asset)
	w.extend(last)
	out := make([]market.Candle, last-first+1)
	copy(out, w.candles[first:last+1])
	return out, nil
}

// lastClosed is the index of the newest candle that closed at or before t.
func (b *Broker) lastClosed(t time.Time) int {
	if t.Before(b.cfg.Start) {
		return -1
	}
	return int(t.Sub(b.cfg.Start)/b.cfg.Interval) - 1
}

// priceAt is the close of the newest candle closed at or before t.
func (b *Broker) priceAt(asset string, t time.Time) float64 {
	i := b.lastClosed(t)
	if i < 0 {
		return b.cfg.StartPrice
	}
	w := b.walk(asset)
	w.extend(i)
	return w.candles[i].Close
}

func (b *Broker) Buy(ctx context.Context, amount decimal.Decimal, asset string, dir market.Direction, expiry time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case !b.connected:
		return "", broker.ErrNotConnected
	case !b.known(asset):
		return "", fmt.Errorf("%w: %q", ErrUnknownAsset, asset)
	case !amount.IsPositive():
		return "", fmt.Errorf("sim: stake must be positive, got %s", amount)
	case amount.GreaterThan(b.balance):
		return "", fmt.Errorf("%w: stake %s, balance %s", ErrInsufficientFunds, amount, b.balance)
	}

	now := b.now()
	oid := id.At(now)
	b.orders[oid] = &order{
		asset:   asset,
		dir:     dir,
		amount:  amount,
		entry:   b.priceAt(asset, now),
		expires: now.Add(expiry),
	}
	b.balance = b.balance.Sub(amount)
	return oid, nil
}

func (b *Broker) AwaitResult(ctx context.Context, orderID string) (decimal.NullDecimal, error) {
	b.mu.Lock()
	o, ok := b.orders[orderID]
	if !ok {
		b.mu.Unlock()
		return decimal.NullDecimal{}, fmt.Errorf("%w: %q", ErrUnknownOrder, orderID)
	}
	if o.result != nil {
		r := *o.result
		b.mu.Unlock()
		return r, nil
	}
	wait := o.expires.Sub(b.now())
	b.mu.Unlock()

	if err := b.sleep(ctx, wait); err != nil {
		return decimal.NullDecimal{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if o.result != nil {
		return *o.result, nil
	}

	exit := b.priceAt(o.asset, o.expires)
	pnl := b.settle(o, exit)
	r := decimal.NewNullDecimal(pnl)
	o.result = &r
	b.balance = b.balance.Add(o.amount).Add(pnl)
	return r, nil
}

func (b *Broker) settle(o *order, exit float64) decimal.Decimal {
	move := exit - o.entry
	if o.dir == market.Put {
		move = -move
	}
	switch {
	case move > 0:
		return o.amount.Mul(b.cfg.Payout).Round(2)
	case move < 0:
		return o.amount.Neg()
	}
	return decimal.Zero
}

func (b *Broker) walk(asset string) *walk {
	w, ok := b.series[asset]
	if !ok {
		h := fnv.New64a()
		h.Write([]byte(asset))
		w = &walk{
			rng:   rand.New(rand.NewSource(b.cfg.Seed ^ int64(h.Sum64()))),
			start: b.cfg.Start,
			step:  b.cfg.Interval,
			price: b.cfg.StartPrice,
			vol:   b.cfg.Volatility,
		}
		w.seed(b.history(asset))
		b.series[asset] = w
	}
	return w
}

// history is the recorded series for asset, shared with its -OTC variant.
func (b *Broker) history(asset string) []market.Candle {
	if cs, ok := b.cfg.History[asset]; ok {
		return cs
	}
	return b.cfg.History[strings.TrimSuffix(asset, market.OTCSuffix)]
}

// walk generates candles lazily and remembers them.
type walk struct {
	rng     *rand.Rand
	start   time.Time
	step    time.Duration
	price   float64
	vol     float64
	candles []market.Candle
}

// seed restamps recorded candles onto the walk's grid.
func (w *walk) seed(cs []market.Candle) {
	for i, c := range cs {
		c.Time = w.start.Add(time.Duration(i) * w.step)
		w.candles = append(w.candles, c)
	}
	if c, ok := market.Last(cs); ok {
		w.price = c.Close
	}
}

func round5(x float64) float64 { return math.Round(x*1e5) / 1e5 }

func (w *walk) extend(upto int) {
	for len(w.candles) <= upto {
		i := len(w.candles)
		open := w.price
		cl := round5(math.Max(open+w.rng.NormFloat64()*w.vol, w.vol))
		high := round5(math.Max(open, cl) + math.Abs(w.rng.NormFloat64())*w.vol/2)
		low := round5(math.Min(open, cl) - math.Abs(w.rng.NormFloat64())*w.vol/2)
		w.candles = append(w.candles, market.Candle{
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cl,
			Volume: float64(50 + w.rng.Intn(100)),
			Time:   w.start.Add(time.Duration(i) * w.step),
		})
		w.price = cl
	}
}
