package bot

import (
	"log/slog"
	"time"

	"github.com/rustyeddy/bintrader/journal"
	"github.com/rustyeddy/bintrader/risk"
)

type EventKind int

const (
	StatusEvent EventKind = iota
	TradeEvent
)

func (k EventKind) String() string {
	if k == TradeEvent {
		return "trade"
	}
	return "status"
}

// Event is published to the optional events channel. Trade events carry the
// settled record and the manager state after it.
type Event struct {
	Kind     EventKind
	Time     time.Time
	Status   string
	Trade    *journal.TradeRecord
	Snapshot *risk.Snapshot
}

func (s *Session) status(msg string) {
	s.emit(Event{Kind: StatusEvent, Time: s.now(), Status: msg})
}

func (s *Session) emit(ev Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.log.Debug("event dropped", slog.String("kind", ev.Kind.String()))
	}
}
