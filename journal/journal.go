// Package journal is the append-only audit log of settled trades.
package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/bintrader/market"
	"github.com/shopspring/decimal"
)

// TradeRecord is written once per settled trade and never modified.
type TradeRecord struct {
	ID        string
	Time      time.Time
	Asset     string
	Direction market.Direction
	Stake     decimal.Decimal
	Outcome   market.Outcome
	PnL       decimal.Decimal
	DailyPnL  decimal.Decimal
	Policy    string
	Level     int
}

type Journal interface {
	Append(TradeRecord) error
	Close() error
}

// Nop discards every record.
type Nop struct{}

func (Nop) Append(TradeRecord) error { return nil }
func (Nop) Close() error             { return nil }

type multi []Journal

// Multi writes every record to each journal. All journals are attempted even
// when one fails.
func Multi(js ...Journal) Journal {
	return multi(js)
}

func (m multi) Append(t TradeRecord) error {
	var errs []error
	for _, j := range m {
		if err := j.Append(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, j := range m {
		if err := j.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
