package indicators

import "math"

// SMA calculates the Simple Moving Average for the given period.
func SMA(values []float64, period int) ([]float64, error) {
	if err := check(len(values), period); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMA calculates the Exponential Moving Average for the given period. The
// first value is seeded with the SMA of the first period values.
func EMA(values []float64, period int) ([]float64, error) {
	if err := check(len(values), period); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	multiplier := 2.0 / float64(period+1)

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += values[i]
	}
	ema := sma / float64(period)
	out[period-1] = ema

	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out, nil
}

// StdDev is the rolling population standard deviation.
func StdDev(values []float64, period int) ([]float64, error) {
	mean, err := SMA(values, period)
	if err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		ss := 0.0
		for _, v := range values[i-period+1 : i+1] {
			diff := v - mean[i]
			ss += diff * diff
		}
		out[i] = math.Sqrt(ss / float64(period))
	}
	return out, nil
}

// Bands holds Bollinger band series.
type Bands struct {
	Lower  []float64
	Middle []float64
	Upper  []float64
}

// Bollinger computes bands k standard deviations around the SMA.
func Bollinger(values []float64, period int, k float64) (Bands, error) {
	mid, err := SMA(values, period)
	if err != nil {
		return Bands{}, err
	}
	sd, err := StdDev(values, period)
	if err != nil {
		return Bands{}, err
	}

	b := Bands{
		Lower:  nanSeries(len(values)),
		Middle: mid,
		Upper:  nanSeries(len(values)),
	}
	for i := period - 1; i < len(values); i++ {
		b.Lower[i] = mid[i] - k*sd[i]
		b.Upper[i] = mid[i] + k*sd[i]
	}
	return b, nil
}
