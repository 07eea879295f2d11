package strategies

import (
	"fmt"

	"github.com/rustyeddy/bintrader/indicators"
	"github.com/rustyeddy/bintrader/market"
)

const (
	BollingerRSIName = "bollinger_rsi"
	BermanName       = "berman"

	bandPeriod = 20
	minCandles = bandPeriod + 1
)

// BollingerRSI is a reversal signal. It buys when the current candle opens
// below the lower band (20, 2.5) and RSI(4) of the previous candle is
// oversold, and sells on the mirror condition.
func BollingerRSI(cs []market.Candle) (Decision, error) {
	if len(cs) < minCandles {
		return hold("not enough candles"), nil
	}

	closes := market.Closes(cs)
	bands, err := indicators.Bollinger(closes, bandPeriod, 2.5)
	if err != nil {
		return Decision{}, err
	}
	rsi, err := indicators.RSI(closes, 4)
	if err != nil {
		return Decision{}, err
	}

	n := len(cs) - 1
	open := cs[n].Open
	lower, _ := indicators.At(bands.Lower, n)
	upper, _ := indicators.At(bands.Upper, n)
	prevRSI, ok := indicators.At(rsi, n-1)
	if !ok {
		return hold("rsi warming up"), nil
	}

	switch {
	case open < lower && prevRSI < 20:
		return Decision{Buy, fmt.Sprintf("open %.5f below band %.5f, rsi %.2f", open, lower, prevRSI)}, nil
	case open > upper && prevRSI > 80:
		return Decision{Sell, fmt.Sprintf("open %.5f above band %.5f, rsi %.2f", open, upper, prevRSI)}, nil
	}
	return hold(""), nil
}

// Berman buys when the previous candle closed below the lower band (20, 2)
// and the current candle opened and closed above SMA(20). Sell mirrors it.
func Berman(cs []market.Candle) (Decision, error) {
	if len(cs) < minCandles {
		return hold("not enough candles"), nil
	}

	closes := market.Closes(cs)
	bands, err := indicators.Bollinger(closes, bandPeriod, 2.0)
	if err != nil {
		return Decision{}, err
	}

	n := len(cs) - 1
	cur, prev := cs[n], cs[n-1]
	sma, _ := indicators.At(bands.Middle, n)
	lower, _ := indicators.At(bands.Lower, n-1)
	upper, _ := indicators.At(bands.Upper, n-1)

	switch {
	case prev.Close < lower && cur.Open > sma && cur.Close > sma:
		return Decision{Buy, fmt.Sprintf("reclaimed sma %.5f after close below band", sma)}, nil
	case prev.Close > upper && cur.Open < sma && cur.Close < sma:
		return Decision{Sell, fmt.Sprintf("lost sma %.5f after close above band", sma)}, nil
	}
	return hold(""), nil
}
