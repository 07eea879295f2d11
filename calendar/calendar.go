// Package calendar blocks trading around scheduled economic news.
package calendar

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/bintrader/market"
	"gopkg.in/yaml.v3"
)

type Impact string

const (
	Low    Impact = "low"
	Medium Impact = "medium"
	High   Impact = "high"
)

// Event is one scheduled release affecting a currency.
type Event struct {
	Name     string    `yaml:"name"`
	Currency string    `yaml:"currency"`
	Time     time.Time `yaml:"time"`
	Impact   Impact    `yaml:"impact"`
}

type eventFile struct {
	Events []Event `yaml:"events"`
}

// LoadEvents reads an events file:
//
//	events:
//	  - name: Non-Farm Payrolls
//	    currency: USD
//	    time: 2026-10-02T12:30:00Z
//	    impact: high
func LoadEvents(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	var f eventFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse events %s: %w", path, err)
	}
	for i := range f.Events {
		e := &f.Events[i]
		e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
		e.Impact = Impact(strings.ToLower(string(e.Impact)))
		if len(e.Currency) != 3 {
			return nil, fmt.Errorf("event %d %q: invalid currency %q", i, e.Name, e.Currency)
		}
		if e.Time.IsZero() {
			return nil, fmt.Errorf("event %d %q: missing time", i, e.Name)
		}
	}
	sort.Slice(f.Events, func(i, j int) bool { return f.Events[i].Time.Before(f.Events[j].Time) })
	return f.Events, nil
}

// Filter decides whether an asset can be traded at a given instant.
type Filter struct {
	Events  []Event
	Impacts []Impact
	Before  time.Duration
	After   time.Duration
}

// NewFilter with no impacts considers only high impact events.
func NewFilter(events []Event, impacts []Impact, before, after time.Duration) *Filter {
	if len(impacts) == 0 {
		impacts = []Impact{High}
	}
	return &Filter{Events: events, Impacts: impacts, Before: before, After: after}
}

func (f *Filter) relevant(imp Impact) bool {
	for _, i := range f.Impacts {
		if i == imp {
			return true
		}
	}
	return false
}

// IsTradingSafe reports false, with the blocking event, when now falls in
// [event-Before, event+After] for an event on either currency of asset.
// Assets that are not currency pairs are always safe.
func (f *Filter) IsTradingSafe(asset string, now time.Time) (bool, *Event) {
	if f == nil || len(f.Events) == 0 {
		return true, nil
	}
	base, quote, ok := market.Currencies(asset)
	if !ok {
		return true, nil
	}

	for i := range f.Events {
		e := &f.Events[i]
		if !f.relevant(e.Impact) || (e.Currency != base && e.Currency != quote) {
			continue
		}
		start, end := e.Time.Add(-f.Before), e.Time.Add(f.After)
		if !now.Before(start) && !now.After(end) {
			return false, e
		}
	}
	return true, nil
}
