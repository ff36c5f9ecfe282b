// Package printer turns grids and day groups into a paginated, print-ready
// document tree.
//
// All text in the tree is markup-safe: calendar-supplied strings are escaped
// while the tree is built and serializers write them out unchanged.
package printer

import (
	"fmt"
	"time"

	"icsview/internal/grid"
	"icsview/internal/model"
)

const (
	// PageSize is the CSS @page size of every document.
	PageSize = "A4 portrait"

	DefaultEntriesPerPage = 25

	// EmptyNotice is printed on a list document with no events.
	EmptyNotice = "Nessun evento nel range selezionato."
)

// Options controls rendering. The zero value is usable.
type Options struct {
	// FontScale multiplies the stylesheet's font sizes. Values <= 0 mean 1.
	FontScale float64
	// Kind overrides the document kind. Grids default to their own kind and
	// lists to grid.KindList.
	Kind grid.Kind
	// EntriesPerPage caps the events on one list page. Values <= 0 mean
	// DefaultEntriesPerPage.
	EntriesPerPage int
	// Location is used to format times. nil means time.Local.
	Location *time.Location
	// From and To label the range of a list document. When zero they are
	// taken from the groups.
	From, To time.Time
}

func (o Options) normalized() Options {
	if o.FontScale <= 0 {
		o.FontScale = 1
	}
	if o.EntriesPerPage <= 0 {
		o.EntriesPerPage = DefaultEntriesPerPage
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Document is a complete print job.
type Document struct {
	Title     string    `json:"title"`
	PageSize  string    `json:"pageSize"`
	FontScale float64   `json:"fontScale"`
	Kind      grid.Kind `json:"kind"`
	Pages     []Page    `json:"pages"`
}

// EventCount returns the number of entries across all pages.
func (d Document) EventCount() int {
	n := 0
	for _, p := range d.Pages {
		for _, s := range p.Sections {
			n += len(s.Entries)
		}
	}
	return n
}

// Page is one printed sheet. Number starts at 1.
type Page struct {
	Number   int       `json:"number"`
	Sections []Section `json:"sections"`
}

// Section is one day on a page.
type Section struct {
	Heading string  `json:"heading"`
	DayKey  string  `json:"day"`
	Muted   bool    `json:"muted,omitempty"`
	Entries []Entry `json:"entries"`
}

// Entry is one printed event.
type Entry struct {
	Title       string `json:"title"`
	When        string `json:"when"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// RenderGrid lays a grid out with one page per row of the grid. Every cell
// becomes a section, empty or not.
func RenderGrid(g grid.Grid, opts Options) Document {
	opts = opts.normalized()
	kind := opts.Kind
	if kind == "" {
		kind = g.Kind
	}

	doc := Document{
		Title:     Escape(gridTitle(g, kind)),
		PageSize:  PageSize,
		FontScale: opts.FontScale,
		Kind:      kind,
	}

	for i, row := range g.Rows() {
		page := Page{Number: i + 1, Sections: make([]Section, 0, len(row))}
		for _, c := range row {
			page.Sections = append(page.Sections, Section{
				Heading: Escape(dayHeading(c.Date)),
				DayKey:  c.Key(),
				Muted:   c.Muted,
				Entries: entries(c.Events, opts.Location),
			})
		}
		doc.Pages = append(doc.Pages, page)
	}
	if len(doc.Pages) == 0 {
		doc.Pages = []Page{{Number: 1}}
	}
	return doc
}

// RenderList flows day groups onto pages of at most opts.EntriesPerPage
// entries. A day that does not fit on the current page continues on the
// next one under a repeated heading. No groups yield a single empty page.
func RenderList(groups []grid.DayGroup, opts Options) Document {
	opts = opts.normalized()
	kind := opts.Kind
	if kind == "" {
		kind = grid.KindList
	}

	from, to := opts.From, opts.To
	if from.IsZero() && len(groups) > 0 {
		from = groups[0].Date
	}
	if to.IsZero() && len(groups) > 0 {
		to = groups[len(groups)-1].Date
	}

	total := 0
	for _, g := range groups {
		total += len(g.Events)
	}

	doc := Document{
		Title:     Escape(listTitle(total, from, to)),
		PageSize:  PageSize,
		FontScale: opts.FontScale,
		Kind:      kind,
	}

	page := Page{Number: 1}
	used := 0
	for _, g := range groups {
		heading := Escape(dayHeading(g.Date))
		rest := entries(g.Events, opts.Location)
		for len(rest) > 0 {
			if used == opts.EntriesPerPage {
				doc.Pages = append(doc.Pages, page)
				page = Page{Number: page.Number + 1}
				used = 0
			}
			take := min(opts.EntriesPerPage-used, len(rest))
			page.Sections = append(page.Sections, Section{
				Heading: heading,
				DayKey:  g.Key,
				Entries: rest[:take:take],
			})
			rest = rest[take:]
			used += take
		}
	}
	doc.Pages = append(doc.Pages, page)
	return doc
}

func entries(events []model.Event, loc *time.Location) []Entry {
	out := make([]Entry, 0, len(events))
	for _, ev := range events {
		out = append(out, Entry{
			Title:       Escape(ev.Title),
			When:        Escape(when(ev, loc)),
			Location:    Escape(ev.Location),
			Description: Escape(ev.Description),
		})
	}
	return out
}

var (
	weekdays = [...]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"}
	months   = [...]string{"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno", "luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre"}
)

const (
	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"
	clockLayout    = "15:04"
)

func dayHeading(t time.Time) string {
	return weekdays[t.Weekday()] + " " + t.Format(dateLayout)
}

func gridTitle(g grid.Grid, kind grid.Kind) string {
	switch kind {
	case grid.KindDay:
		return "Calendario: " + dayHeading(g.Reference)
	case grid.KindWeek:
		return fmt.Sprintf("Calendario: settimana dal %s al %s",
			g.Start().Format(dateLayout), g.End().Format(dateLayout))
	default:
		return fmt.Sprintf("Calendario: %s %d", months[g.Reference.Month()-1], g.Reference.Year())
	}
}

func listTitle(count int, from, to time.Time) string {
	if from.IsZero() {
		return fmt.Sprintf("Calendario: %d eventi", count)
	}
	return fmt.Sprintf("Calendario: %d eventi (%s → %s)", count, from.Format(dateLayout), to.Format(dateLayout))
}

// when formats an event's time span in loc. All-day ends are exclusive, so a
// one-day event ending at the next midnight prints as a single day.
func when(ev model.Event, loc *time.Location) string {
	start, ok := grid.LocalStart(ev, loc)
	if !ok {
		return ""
	}
	end, _ := grid.LocalEnd(ev, loc)

	if ev.AllDay {
		last := start
		if end.After(start) {
			last = end
			if end.Equal(grid.StartOfDay(end)) {
				last = grid.AddDays(end, -1)
			}
		}
		if grid.SameDay(last, start) {
			return start.Format(dateLayout) + " (tutto il giorno)"
		}
		return start.Format(dateLayout) + " - " + last.Format(dateLayout) + " (tutto il giorno)"
	}

	switch {
	case !end.After(start):
		return start.Format(dateTimeLayout)
	case grid.SameDay(end, start):
		return start.Format(dateTimeLayout) + " - " + end.Format(clockLayout)
	default:
		return start.Format(dateTimeLayout) + " - " + end.Format(dateTimeLayout)
	}
}
