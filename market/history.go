package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ReadCandlesCSV loads recorded candles grouped by asset from rows of
//
//	time,asset,open,high,low,close[,volume]
//
// where time is RFC3339 or RFC3339Nano. A header row ("time,...") is
// allowed, short rows are skipped, and rows outside [from, to) are dropped
// when the bound is set. Each asset's candles are sorted oldest first.
func ReadCandlesCSV(path string, from, to time.Time) (map[string][]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out, err := readCandles(f, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func readCandles(r io.Reader, from, to time.Time) (map[string][]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	out := make(map[string][]Candle)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}

		asset, c, ok, err := parseCandleRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok || !inRange(c.Time, from, to) {
			continue
		}
		out[asset] = append(out[asset], c)
	}

	for _, cs := range out {
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Time.Before(cs[j].Time) })
	}
	return out, nil
}

func parseCandleRow(row []string) (string, Candle, bool, error) {
	if len(row) < 6 {
		return "", Candle{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	asset := strings.ToUpper(strings.TrimSpace(row[1]))
	if ts == "" || asset == "" {
		return "", Candle{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "", Candle{}, false, fmt.Errorf("bad time %q: %w", ts, err)
	}

	var vals [5]float64
	n := min(len(row)-2, len(vals))
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+2]), 64)
		if err != nil {
			return "", Candle{}, false, fmt.Errorf("bad number %q: %w", row[i+2], err)
		}
		vals[i] = v
	}

	c := Candle{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4], Time: t.UTC()}
	if c.High < c.Low || c.Open > c.High || c.Open < c.Low || c.Close > c.High || c.Close < c.Low {
		return "", Candle{}, false, fmt.Errorf("inconsistent candle at %s: o=%g h=%g l=%g c=%g", ts, c.Open, c.High, c.Low, c.Close)
	}
	return asset, c, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
