// Package market holds the price and trade vocabulary shared by the bot,
// the risk manager and the brokers.
package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) candlestick data.
// Time is the candle open time.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	time.Time
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool { return c.Close < c.Open }

// Body is the absolute distance between open and close.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range is high minus low.
func (c Candle) Range() float64 { return c.High - c.Low }

// Closes extracts the close series.
func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts the volume series.
func Volumes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Volume
	}
	return out
}

// Last returns the most recent candle and false if cs is empty.
func Last(cs []Candle) (Candle, bool) {
	if len(cs) == 0 {
		return Candle{}, false
	}
	return cs[len(cs)-1], true
}
