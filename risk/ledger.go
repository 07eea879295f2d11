package risk

import "github.com/shopspring/decimal"

// Ledger accumulates the realized results of one session.
// Draws count as operations but neither as wins nor losses.
type Ledger struct {
	DailyPnL   decimal.Decimal
	Wins       int
	Losses     int
	Operations int
}

// Record adds one settled trade.
func (l *Ledger) Record(pnl decimal.Decimal) {
	l.DailyPnL = l.DailyPnL.Add(pnl)
	l.Operations++
	switch pnl.Sign() {
	case 1:
		l.Wins++
	case -1:
		l.Losses++
	}
}

// Draws is the number of operations that neither won nor lost.
func (l Ledger) Draws() int { return l.Operations - l.Wins - l.Losses }

// Assertiveness is the win rate in percent, 0 before the first operation.
func (l Ledger) Assertiveness() float64 {
	if l.Operations == 0 {
		return 0
	}
	return float64(l.Wins) / float64(l.Operations) * 100
}

// StopLossHit reports whether the day's loss reached stopLossPct percent of
// the initial balance.
func (l Ledger) StopLossHit(initial, stopLossPct decimal.Decimal) bool {
	if !l.DailyPnL.IsNegative() {
		return false
	}
	maxLoss := initial.Mul(stopLossPct).Div(hundred)
	return l.DailyPnL.LessThanOrEqual(maxLoss.Neg())
}

// TakeProfitHit reports whether the day's profit reached takeProfitPct
// percent of the initial balance.
func (l Ledger) TakeProfitHit(initial, takeProfitPct decimal.Decimal) bool {
	if !l.DailyPnL.IsPositive() {
		return false
	}
	minProfit := initial.Mul(takeProfitPct).Div(hundred)
	return l.DailyPnL.GreaterThanOrEqual(minProfit)
}
