package model

import (
	"time"

	"github.com/samber/mo"
)

// UntitledEvent is the title used when a VEVENT has no SUMMARY.
const UntitledEvent = "(no title)"

// Event is the canonical unit of calendar data produced by the ICS
// normalizer. Start and End are absent when the source record has no usable
// value; End >= Start is not guaranteed for malformed sources.
type Event struct {
	// ID comes from UID, then SEQUENCE, then a random token. Random IDs are
	// not stable across fetches of the same resource.
	ID    string
	Title string

	Start mo.Option[time.Time]
	End   mo.Option[time.Time]

	// AllDay is true when DTSTART is a bare DATE value.
	AllDay bool

	Description string
	Location    string
}

// StartTime returns the start instant and whether it is present.
func (e Event) StartTime() (time.Time, bool) {
	return e.Start.Get()
}

// EndTime returns the end instant, falling back to the start when the end is
// absent.
func (e Event) EndTime() (time.Time, bool) {
	if end, ok := e.End.Get(); ok {
		return end, true
	}
	return e.Start.Get()
}

// Resolved returns a copy in which a missing start is replaced by now and a
// missing end by the (resolved) start. It is meant for display code only; the
// normalizer never substitutes times.
func (e Event) Resolved(now time.Time) Event {
	start := e.Start.OrElse(now)
	e.Start = mo.Some(start)
	e.End = mo.Some(e.End.OrElse(start))
	return e
}

// ResolveAll applies Resolved to every event and returns a new slice.
func ResolveAll(events []Event, now time.Time) []Event {
	out := make([]Event, len(events))
	for i, ev := range events {
		out[i] = ev.Resolved(now)
	}
	return out
}

// FetchResult is the successful outcome of one retrieval. It is built fresh
// per request and never persisted.
type FetchResult struct {
	Events []Event
}
