package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction is the side of a binary option.
type Direction int

const (
	Call Direction = iota + 1
	Put
)

func (d Direction) String() string {
	switch d {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	default:
		return "UNKNOWN"
	}
}

// ParseDirection accepts CALL/PUT and the BUY/SELL aliases.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "BUY":
		return Call, nil
	case "PUT", "SELL":
		return Put, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Outcome labels a settled trade.
type Outcome int

const (
	Draw Outcome = iota
	Win
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "WIN"
	case Loss:
		return "LOSS"
	default:
		return "DRAW"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WIN":
		return Win, nil
	case "LOSS":
		return Loss, nil
	case "DRAW":
		return Draw, nil
	}
	return Draw, fmt.Errorf("unknown outcome %q", s)
}

// OutcomeOf classifies a realized profit or loss by its sign.
func OutcomeOf(pnl decimal.Decimal) Outcome {
	switch pnl.Sign() {
	case 1:
		return Win
	case -1:
		return Loss
	default:
		return Draw
	}
}
