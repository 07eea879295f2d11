package market

import (
	"sort"
	"strings"
	"time"
)

// OTCSuffix marks the weekend over-the-counter variant of a pair.
const OTCSuffix = "-OTC"

// FallbackLimit caps how many non-preferred assets are monitored when none of
// the preferred pairs are open.
const FallbackLimit = 5

// PreferredAssets is the default watch list.
var PreferredAssets = []string{"EURUSD", "EURJPY", "GBPUSD", "AUDCAD", "USDJPY", "EURGBP", "USDCAD"}

// Asset is a tradable name as the broker lists it plus the symbol used to
// request its candles.
type Asset struct {
	Name         string
	CandleSymbol string
}

// Session distinguishes the regular market from the weekend OTC market.
type Session int

const (
	Regular Session = iota
	OTC
)

func (s Session) String() string {
	if s == OTC {
		return "OTC"
	}
	return "REGULAR"
}

// SessionAt classifies t. The OTC market runs from Friday 21:00 UTC until
// Sunday 21:00 UTC.
func SessionAt(t time.Time) Session {
	u := t.UTC()
	switch u.Weekday() {
	case time.Friday:
		if u.Hour() >= 21 {
			return OTC
		}
	case time.Saturday:
		return OTC
	case time.Sunday:
		if u.Hour() < 21 {
			return OTC
		}
	}
	return Regular
}

// Currencies splits a pair like "EURUSD" or "GBPUSD-OTC" into its base and
// quote codes. ok is false when the name is not a six letter pair.
func Currencies(asset string) (base, quote string, ok bool) {
	s := strings.ToUpper(strings.TrimSuffix(strings.ToUpper(asset), OTCSuffix))
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	if len(s) != 6 {
		return "", "", false
	}
	return s[:3], s[3:], true
}

// SelectAssets picks the assets to watch for the session from the set the
// broker reports open. Preferred pairs win; when none are open any open
// asset is used, up to FallbackLimit.
func SelectAssets(session Session, open map[string]bool, preferred []string) []Asset {
	names := make([]string, 0, len(open))
	for name, isOpen := range open {
		if isOpen {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []Asset
	if session == Regular {
		for _, name := range names {
			if strings.Contains(name, OTCSuffix) {
				continue
			}
			for _, p := range preferred {
				if strings.HasPrefix(name, p) {
					out = append(out, Asset{Name: name, CandleSymbol: p})
					break
				}
			}
		}
	} else {
		for _, p := range preferred {
			name := p + OTCSuffix
			if open[name] {
				out = append(out, Asset{Name: name, CandleSymbol: name})
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, name := range names {
		symbol := name
		if session == Regular {
			symbol = strings.SplitN(name, "-", 2)[0]
		}
		out = append(out, Asset{Name: name, CandleSymbol: symbol})
		if len(out) >= FallbackLimit {
			break
		}
	}
	return out
}
