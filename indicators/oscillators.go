package indicators

import (
	"math"

	"github.com/rustyeddy/bintrader/market"
)

// RSI calculates Wilder's Relative Strength Index. The first value appears
// at index period since it needs period price changes.
func RSI(values []float64, period int) ([]float64, error) {
	if err := check(len(values), period+1); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	var gain, loss float64
	for i := 1; i <= period; i++ {
		ch := values[i] - values[i-1]
		if ch > 0 {
			gain += ch
		} else {
			loss -= ch
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	out[period] = rsi(gain, loss)

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		ch := values[i] - values[i-1]
		up, down := 0.0, 0.0
		if ch > 0 {
			up = ch
		} else {
			down = -ch
		}
		gain = (gain*(p-1) + up) / p
		loss = (loss*(p-1) + down) / p
		out[i] = rsi(gain, loss)
	}
	return out, nil
}

func rsi(gain, loss float64) float64 {
	switch {
	case loss == 0 && gain == 0:
		return 50
	case loss == 0:
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// Stochastic computes the slow stochastic oscillator. K is the raw %K over
// kPeriod smoothed with an SMA of smooth; D is an SMA of K over dPeriod. A
// flat window has a raw %K of 50.
func Stochastic(cs []market.Candle, kPeriod, smooth, dPeriod int) (k, d []float64, err error) {
	if kPeriod <= 0 || smooth <= 0 || dPeriod <= 0 {
		return nil, nil, ErrPeriod
	}
	if err := check(len(cs), kPeriod+smooth+dPeriod-2); err != nil {
		return nil, nil, err
	}

	raw := make([]float64, 0, len(cs)-kPeriod+1)
	for i := kPeriod - 1; i < len(cs); i++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, c := range cs[i-kPeriod+1 : i+1] {
			lo = math.Min(lo, c.Low)
			hi = math.Max(hi, c.High)
		}
		if hi == lo {
			raw = append(raw, 50)
			continue
		}
		raw = append(raw, 100*(cs[i].Close-lo)/(hi-lo))
	}

	smoothK, err := SMA(raw, smooth)
	if err != nil {
		return nil, nil, err
	}
	kd, err := SMA(dropNaN(smoothK), dPeriod)
	if err != nil {
		return nil, nil, err
	}

	k = align(smoothK, len(cs))
	d = align(kd, len(cs))
	return k, d, nil
}

func dropNaN(s []float64) []float64 {
	out := make([]float64, 0, len(s))
	for _, v := range s {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// align right-justifies s into a NaN padded series of length n.
func align(s []float64, n int) []float64 {
	out := nanSeries(n)
	copy(out[n-len(s):], s)
	return out
}
