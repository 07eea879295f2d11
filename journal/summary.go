package journal

import (
	"sort"

	"github.com/rustyeddy/bintrader/market"
	"github.com/shopspring/decimal"
)

// Summary aggregates records for post-hoc review.
type Summary struct {
	Asset  string
	Trades int
	Wins   int
	Losses int
	Draws  int
	Staked decimal.Decimal
	PnL    decimal.Decimal
}

// Assertiveness is the win rate in percent.
func (s Summary) Assertiveness() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades) * 100
}

func (s *Summary) add(t TradeRecord) {
	s.Trades++
	switch t.Outcome {
	case market.Win:
		s.Wins++
	case market.Loss:
		s.Losses++
	default:
		s.Draws++
	}
	s.Staked = s.Staked.Add(t.Stake)
	s.PnL = s.PnL.Add(t.PnL)
}

// Summarize groups records by asset, sorted by asset name, and returns the
// overall totals alongside.
func Summarize(records []TradeRecord) (perAsset []Summary, total Summary) {
	total.Asset = "TOTAL"
	byAsset := map[string]*Summary{}
	for _, t := range records {
		s, ok := byAsset[t.Asset]
		if !ok {
			s = &Summary{Asset: t.Asset}
			byAsset[t.Asset] = s
		}
		s.add(t)
		total.add(t)
	}

	perAsset = make([]Summary, 0, len(byAsset))
	for _, s := range byAsset {
		perAsset = append(perAsset, *s)
	}
	sort.Slice(perAsset, func(i, j int) bool { return perAsset[i].Asset < perAsset[j].Asset })
	return perAsset, total
}
