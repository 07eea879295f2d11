package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PolicyKind names a capital cycle strategy.
type PolicyKind int

const (
	NoCycle PolicyKind = iota
	Soros
	Martingale
)

func (k PolicyKind) String() string {
	switch k {
	case Soros:
		return "soros"
	case Martingale:
		return "martingale"
	default:
		return "none"
	}
}

// Policy is the capital cycle applied on top of the base stake.
// MaxLevels is used by Soros, Multiplier by Martingale.
type Policy struct {
	Kind       PolicyKind
	MaxLevels  int
	Multiplier decimal.Decimal
}

// NoPolicy stakes every trade with the base stake.
func NoPolicy() Policy { return Policy{Kind: NoCycle} }

// SorosPolicy reinvests the previous win for up to levels consecutive wins.
func SorosPolicy(levels int) Policy { return Policy{Kind: Soros, MaxLevels: levels} }

// MartingalePolicy multiplies the base stake by multiplier after every loss.
func MartingalePolicy(multiplier decimal.Decimal) Policy {
	return Policy{Kind: Martingale, Multiplier: multiplier}
}

// ParsePolicy builds a Policy from the config fields capital_strategy,
// soros_levels and martingale_multiplier.
func ParsePolicy(name string, sorosLevels int, multiplier float64) (Policy, error) {
	var p Policy
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		p = NoPolicy()
	case "soros":
		p = SorosPolicy(sorosLevels)
	case "martingale":
		p = MartingalePolicy(decimal.NewFromFloat(multiplier))
	default:
		return Policy{}, fmt.Errorf("unknown capital strategy %q", name)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Name is the label written to the audit log.
func (p Policy) Name() string { return p.Kind.String() }

func (p Policy) String() string {
	switch p.Kind {
	case Soros:
		return fmt.Sprintf("soros(%d)", p.MaxLevels)
	case Martingale:
		return fmt.Sprintf("martingale(%s)", p.Multiplier)
	default:
		return "none"
	}
}

func (p Policy) Validate() error {
	switch p.Kind {
	case NoCycle:
		return nil
	case Soros:
		if p.MaxLevels < 1 {
			return fmt.Errorf("soros levels must be >= 1, got %d", p.MaxLevels)
		}
	case Martingale:
		if !p.Multiplier.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("martingale multiplier must be > 1, got %s", p.Multiplier)
		}
	default:
		return fmt.Errorf("unknown policy kind %d", p.Kind)
	}
	return nil
}

// CycleState is the progress of the running cycle. Level 0 means no cycle is
// active. Reinvest holds only the most recent win's profit.
type CycleState struct {
	Level     int
	BaseStake decimal.Decimal
	Reinvest  decimal.Decimal
}

// Transition describes what an outcome did to the cycle.
type Transition int

const (
	Unchanged Transition = iota
	Advanced
	Completed
	Aborted
)

func (t Transition) String() string {
	switch t {
	case Advanced:
		return "advanced"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "unchanged"
	}
}

// Tracker owns the CycleState for one policy. It is not safe for concurrent
// use; Manager serializes access.
type Tracker struct {
	policy Policy
	state  CycleState
}

func NewTracker(p Policy) *Tracker {
	return &Tracker{policy: p}
}

func (t *Tracker) Policy() Policy { return t.policy }

func (t *Tracker) State() CycleState { return t.state }

// Reset drops any running cycle.
func (t *Tracker) Reset() { t.state = CycleState{} }

// NextStake returns the stake for the next trade. Starting a cycle stores
// the base stake it is computed from. Zero means do not trade.
func (t *Tracker) NextStake(balance decimal.Decimal, cfg StakeConfig) decimal.Decimal {
	switch t.policy.Kind {
	case Soros:
		if t.state.Level == 0 {
			t.state.BaseStake = BaseStake(balance, cfg)
			return t.state.BaseStake
		}
		return clamp(t.state.BaseStake.Add(t.state.Reinvest), balance)

	case Martingale:
		if t.state.Level == 0 {
			t.state.BaseStake = BaseStake(balance, cfg)
			return t.state.BaseStake
		}
		stake := t.state.BaseStake.Mul(powInt(t.policy.Multiplier, t.state.Level))
		return clamp(stake, balance)

	default:
		return BaseStake(balance, cfg)
	}
}

// Apply advances or resets the cycle after a trade settles with pnl.
func (t *Tracker) Apply(pnl decimal.Decimal) Transition {
	switch t.policy.Kind {
	case Soros:
		if !pnl.IsPositive() {
			if t.state.Level == 0 {
				t.Reset()
				return Unchanged
			}
			t.Reset()
			return Aborted
		}
		t.state.Reinvest = pnl
		t.state.Level++
		if t.state.Level >= t.policy.MaxLevels {
			t.Reset()
			return Completed
		}
		return Advanced

	case Martingale:
		switch pnl.Sign() {
		case 1:
			if t.state.Level == 0 {
				return Unchanged
			}
			t.Reset()
			return Completed
		case -1:
			t.state.Level++
			return Advanced
		default:
			// draws leave the progression where it is
			return Unchanged
		}
	}
	return Unchanged
}

func powInt(base decimal.Decimal, n int) decimal.Decimal {
	out := decimal.NewFromInt(1)
	for i := 0; i < n; i++ {
		out = out.Mul(base)
	}
	return out
}
