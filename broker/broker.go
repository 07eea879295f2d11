// Package broker defines the brokerage collaborator the trading session
// talks to.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/bintrader/market"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoBalance means the broker could not report a balance.
	ErrNoBalance = errors.New("balance unavailable")
	// ErrConnect means every connection attempt failed.
	ErrConnect      = errors.New("could not connect to broker")
	ErrNotConnected = errors.New("broker not connected")
)

// Broker is a binary-options brokerage. Implementations must honour ctx on
// every blocking call.
type Broker interface {
	Connect(ctx context.Context) error
	Balance(ctx context.Context) (decimal.Decimal, error)

	// OpenAssets reports which asset names are open for binary trading.
	OpenAssets(ctx context.Context) (map[string]bool, error)

	// Candles returns up to count closed candles of the given interval
	// ending at or before end, oldest first.
	Candles(ctx context.Context, asset string, interval time.Duration, count int, end time.Time) ([]market.Candle, error)

	// Buy places an option and returns its order id.
	Buy(ctx context.Context, amount decimal.Decimal, asset string, dir market.Direction, expiry time.Duration) (string, error)

	// AwaitResult blocks until the order settles. The value is the realized
	// profit or loss, zero for a draw. An invalid value means the outcome
	// could not be determined.
	AwaitResult(ctx context.Context, orderID string) (decimal.NullDecimal, error)
}

// Connect calls b.Connect up to attempts times, waiting backoff between
// failures. The returned error wraps ErrConnect and the last failure.
func Connect(ctx context.Context, b Broker, attempts int, backoff time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := b.Connect(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("broker connect failed",
			slog.Int("attempt", attempt),
			slog.Int("attempts", attempts),
			slog.Any("err", err))

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrConnect, attempts, lastErr)
}
