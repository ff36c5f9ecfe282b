package ics

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/samber/mo"

	appLog "icsview/internal/log"
	"icsview/internal/model"
)

// Normalize converts calendar text into events in source order. It never
// fails: records that cannot be parsed are dropped and the rest are kept.
//
// The whole document is parsed first. If the parser rejects it (one broken
// line is enough), the text is cut into individual VEVENT blocks which are
// parsed one by one, so a single bad record only loses itself.
func Normalize(text string) []model.Event {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return []model.Event{}
	}

	var records []mo.Result[model.Event]

	cal, err := ical.ParseCalendar(strings.NewReader(text))
	if err == nil {
		for _, ve := range cal.Events() {
			records = append(records, parseRecord(ve))
		}
	} else {
		appLog.Debug("ics document rejected; parsing records individually", "err", err)
		for _, block := range splitEvents(text) {
			records = append(records, parseBlock(block))
		}
	}

	events := make([]model.Event, 0, len(records))
	skipped := 0
	for _, r := range records {
		ev, rerr := r.Get()
		if rerr != nil {
			skipped++
			appLog.Debug("ics record skipped", "err", rerr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics normalize completed", "event_count", len(events), "skipped", skipped)
	return events
}

// parseBlock parses one VEVENT block in isolation by wrapping it in a
// minimal calendar.
func parseBlock(block string) mo.Result[model.Event] {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//icsview//record//EN\r\n")
	b.WriteString(block)
	b.WriteString("END:VCALENDAR\r\n")

	cal, err := ical.ParseCalendar(strings.NewReader(b.String()))
	if err != nil {
		return mo.Err[model.Event](fmt.Errorf("parse record: %w", err))
	}
	events := cal.Events()
	if len(events) != 1 {
		return mo.Err[model.Event](fmt.Errorf("parse record: expected 1 event, got %d", len(events)))
	}
	return parseRecord(events[0])
}

// splitEvents returns the raw text of every terminated VEVENT block, each
// line ending in CRLF. Folded continuation lines stay attached to their
// block. A VEVENT that is never closed, or that is interrupted by another
// BEGIN:VEVENT, is dropped.
func splitEvents(text string) []string {
	var (
		blocks  []string
		current strings.Builder
		inEvent bool
	)

	sc := bufio.NewScanner(strings.NewReader(text))
	// A line can be as long as the whole payload, whatever cap the fetcher had.
	sc.Buffer(make([]byte, 0, min(len(text)+1, 64*1024)), len(text)+1)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		token := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case token == "BEGIN:VEVENT":
			current.Reset()
			inEvent = true
		case !inEvent:
			continue
		}

		current.WriteString(line)
		current.WriteString("\r\n")

		if token == "END:VEVENT" {
			blocks = append(blocks, current.String())
			current.Reset()
			inEvent = false
		}
	}
	if err := sc.Err(); err != nil {
		appLog.Debug("ics: vevent split stopped early", "err", err, "blocks", len(blocks))
	}
	return blocks
}

// parseRecord projects a VEVENT into an Event.
func parseRecord(ve *ical.VEvent) mo.Result[model.Event] {
	var out model.Event

	out.ID = recordID(ve)

	out.Title = model.UntitledEvent
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil && p.Value != "" {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		start, err := timeValue(p, ve.GetStartAt)
		if err != nil {
			return mo.Err[model.Event](fmt.Errorf("record %q: DTSTART: %w", out.ID, err))
		}
		out.Start = mo.Some(start)
		out.AllDay = isDateValue(p)
	}

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, err := timeValue(ve.GetProperty(ical.ComponentPropertyDtEnd), ve.GetEndAt)
		if err != nil {
			return mo.Err[model.Event](fmt.Errorf("record %q: DTEND: %w", out.ID, err))
		}
		out.End = mo.Some(end)
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		start, ok := out.Start.Get()
		if !ok {
			break
		}
		d, err := parseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return mo.Err[model.Event](fmt.Errorf("record %q: DURATION: %w", out.ID, err))
		}
		out.End = mo.Some(d.addTo(start))
	default:
		out.End = out.Start
	}

	return mo.Ok(out)
}

// timeValue reads a DTSTART/DTEND through the library. When the library
// rejects the value only because its TZID is not a known IANA zone (common in
// Outlook feeds), the wall-clock value is kept in the local zone instead of
// dropping the record.
func timeValue(p *ical.IANAProperty, get func() (time.Time, error)) (time.Time, error) {
	t, err := get()
	if err == nil {
		return t, nil
	}
	if _, hasTZ := p.ICalParameters["TZID"]; !hasTZ {
		return time.Time{}, err
	}
	if ft, ferr := parseFloating(p.Value); ferr == nil {
		return ft, nil
	}
	return time.Time{}, err
}

// parseFloating parses a basic DATE or DATE-TIME value, honoring a trailing
// Z and otherwise using time.Local.
func parseFloating(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.Local)
	default:
		return time.ParseInLocation("20060102", v, time.Local)
	}
}

// recordID picks UID, then SEQUENCE, then a random token.
func recordID(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		if v := strings.TrimSpace(p.Value); v != "" {
			return v
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if v := strings.TrimSpace(p.Value); v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// isDateValue reports whether a DTSTART carries a bare date: VALUE=DATE or
// a value without a time part.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// icsDuration is a RFC 5545 DURATION value. Days and weeks are kept apart
// from the clock part so that adding them follows the calendar.
type icsDuration struct {
	negative bool
	days     int
	clock    time.Duration
}

func (d icsDuration) addTo(t time.Time) time.Time {
	if d.negative {
		return t.AddDate(0, 0, -d.days).Add(-d.clock)
	}
	return t.AddDate(0, 0, d.days).Add(d.clock)
}

var errBadDuration = errors.New("malformed duration")

// parseDuration reads values such as "PT1H30M", "P1D", "-P2W" or
// "P1DT12H".
func parseDuration(v string) (icsDuration, error) {
	var d icsDuration
	s := strings.ToUpper(strings.TrimSpace(v))
	switch {
	case strings.HasPrefix(s, "-"):
		d.negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return d, errBadDuration
	}
	s = s[1:]

	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			if inTime || num != "" {
				return d, errBadDuration
			}
			inTime = true
		default:
			if num == "" {
				return d, errBadDuration
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return d, errBadDuration
			}
			num = ""
			switch {
			case r == 'W' && !inTime:
				d.days += 7 * n
			case r == 'D' && !inTime:
				d.days += n
			case r == 'H' && inTime:
				d.clock += time.Duration(n) * time.Hour
			case r == 'M' && inTime:
				d.clock += time.Duration(n) * time.Minute
			case r == 'S' && inTime:
				d.clock += time.Duration(n) * time.Second
			default:
				return d, errBadDuration
			}
		}
	}
	if num != "" {
		return d, errBadDuration
	}
	return d, nil
}
