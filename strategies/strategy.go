// Package strategies turns a window of closed candles into a trade signal.
package strategies

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/bintrader/market"
)

var (
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrDuplicateStrategy = errors.New("strategy already registered")
)

// Strategy evaluates the most recent candles, oldest first. The last
// element is the most recent candle.
type Strategy interface {
	Name() string
	Evaluate(candles []market.Candle) (Decision, error)
}

type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Signal Signal
	Reason string
}

func hold(reason string) Decision { return Decision{Signal: Hold, Reason: reason} }

// Direction maps the signal onto an option direction. ok is false for Hold.
func (d Decision) Direction() (dir market.Direction, ok bool) {
	switch d.Signal {
	case Buy:
		return market.Call, true
	case Sell:
		return market.Put, true
	}
	return 0, false
}

// Func adapts a stateless function to the Strategy interface.
type Func struct {
	name string
	fn   func([]market.Candle) (Decision, error)
}

func NewFunc(name string, fn func([]market.Candle) (Decision, error)) Func {
	return Func{name: name, fn: fn}
}

func (f Func) Name() string { return f.name }

func (f Func) Evaluate(cs []market.Candle) (Decision, error) { return f.fn(cs) }

// Constructor builds a fresh strategy instance. Each call must return an
// instance with its own state.
type Constructor func() Strategy

// Registry maps strategy names to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(name)
	if _, ok := r.ctors[key]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateStrategy, name)
	}
	r.ctors[key] = ctor
	return nil
}

// New builds the strategy registered under name.
func (r *Registry) New(name string) (Strategy, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, name, strings.Join(r.Names(), ", "))
	}
	return ctor(), nil
}

// Build instantiates every named strategy in order.
func (r *Registry) Build(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, err := r.New(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry holding the built-in strategies.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(BollingerRSIName, func() Strategy { return NewFunc(BollingerRSIName, BollingerRSI) })
	_ = r.Register(BermanName, func() Strategy { return NewFunc(BermanName, Berman) })
	_ = r.Register(PullbackName, func() Strategy { return NewPullback(DefaultPullbackConfig()) })
	return r
}
