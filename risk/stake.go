// Package risk sizes binary-option stakes and tracks the session's capital:
// base stake calculation, Soros and Martingale cycles, the daily ledger and
// the stop-loss / take-profit checks.
package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// StakeMode selects how the base stake is derived from the balance.
type StakeMode int

const (
	Percentage StakeMode = iota
	Fixed
)

func (m StakeMode) String() string {
	if m == Fixed {
		return "fixed"
	}
	return "percentage"
}

// ParseStakeMode maps a config value to a StakeMode.
func ParseStakeMode(s string) (StakeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage", "percent", "pct":
		return Percentage, nil
	case "fixed":
		return Fixed, nil
	}
	return 0, fmt.Errorf("unknown stake mode %q", s)
}

// StakeConfig is immutable for a session. Value is in percentage points for
// Percentage and in account currency for Fixed. Percentages above 100 are
// accepted; BaseStake caps the result at the balance.
type StakeConfig struct {
	Mode  StakeMode
	Value decimal.Decimal
}

func (c StakeConfig) Validate() error {
	if !c.Value.IsPositive() {
		return fmt.Errorf("stake value must be positive, got %s", c.Value)
	}
	return nil
}

// BaseStake computes the stake for a trade that is not part of a running
// cycle. A non-positive balance yields zero, which callers treat as "skip".
// The result never exceeds balance.
func BaseStake(balance decimal.Decimal, cfg StakeConfig) decimal.Decimal {
	if !balance.IsPositive() {
		return decimal.Zero
	}

	var stake decimal.Decimal
	switch cfg.Mode {
	case Fixed:
		stake = cfg.Value
	default:
		stake = balance.Mul(cfg.Value).Div(hundred)
	}
	return clamp(stake, balance)
}

// clamp bounds stake to [0, balance].
func clamp(stake, balance decimal.Decimal) decimal.Decimal {
	stake = decimal.Min(stake, balance)
	if !stake.IsPositive() {
		return decimal.Zero
	}
	return stake
}
