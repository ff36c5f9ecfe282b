// Package grid lays calendar days out as month, week, day and list views and
// attributes events to them.
//
// An event belongs to the day its start falls on, in the grid's location.
// Multi-day events are not repeated on the days they span.
package grid

import (
	"slices"
	"time"

	"icsview/internal/model"
)

// Kind is the shape of a grid.
type Kind string

const (
	KindMonth Kind = "month"
	KindWeek  Kind = "week"
	KindDay   Kind = "day"
	KindList  Kind = "list"
)

// Cell is one day of a grid.
type Cell struct {
	// Date is midnight of the day in the grid's location.
	Date time.Time
	// Muted marks days outside the reference month. It only affects display.
	Muted  bool
	Events []model.Event
}

// Key returns the cell's YYYY-MM-DD day key.
func (c Cell) Key() string {
	return c.Date.Format(DayKeyLayout)
}

// Grid is a contiguous, chronologically ordered run of day cells.
type Grid struct {
	Kind      Kind
	Reference time.Time
	WeekStart time.Weekday
	Cells     []Cell
}

// Location is the zone the grid's days are laid out in.
func (g Grid) Location() *time.Location {
	if len(g.Cells) > 0 {
		return g.Cells[0].Date.Location()
	}
	return g.Reference.Location()
}

// Start returns the first day of the grid.
func (g Grid) Start() time.Time {
	if len(g.Cells) == 0 {
		return time.Time{}
	}
	return g.Cells[0].Date
}

// End returns the last instant of the grid's final day.
func (g Grid) End() time.Time {
	if len(g.Cells) == 0 {
		return time.Time{}
	}
	return EndOfDay(g.Cells[len(g.Cells)-1].Date)
}

// Rows splits the cells into weeks of 7. Day grids yield a single row of one.
func (g Grid) Rows() [][]Cell {
	if len(g.Cells) <= 7 {
		return [][]Cell{g.Cells}
	}
	rows := make([][]Cell, 0, len(g.Cells)/7)
	for i := 0; i < len(g.Cells); i += 7 {
		end := min(i+7, len(g.Cells))
		rows = append(rows, g.Cells[i:end])
	}
	return rows
}

// BuildMonth returns whole weeks covering ref's month, from the weekStart day
// on or before the 1st through the week end on or after the last day.
func BuildMonth(ref time.Time, weekStart time.Weekday) Grid {
	start := StartOfWeek(StartOfMonth(ref), weekStart)
	end := EndOfWeek(EndOfMonth(ref), weekStart)

	cells := daysBetween(start, end)
	month := ref.Month()
	for i := range cells {
		cells[i].Muted = cells[i].Date.Month() != month
	}
	return Grid{Kind: KindMonth, Reference: ref, WeekStart: weekStart, Cells: cells}
}

// BuildWeek returns the 7 days of the week containing ref.
func BuildWeek(ref time.Time, weekStart time.Weekday) Grid {
	start := StartOfWeek(ref, weekStart)
	return Grid{
		Kind:      KindWeek,
		Reference: ref,
		WeekStart: weekStart,
		Cells:     daysBetween(start, AddDays(start, 6)),
	}
}

// BuildDay returns a single-cell grid for ref's day.
func BuildDay(ref time.Time) Grid {
	return Grid{
		Kind:      KindDay,
		Reference: ref,
		Cells:     []Cell{{Date: StartOfDay(ref)}},
	}
}

// daysBetween returns one cell per day from start to end inclusive. Both are
// expected at midnight in the same location.
func daysBetween(start, end time.Time) []Cell {
	n := int(dayIndex(end)-dayIndex(start)) + 1
	if n < 1 {
		return nil
	}
	cells := make([]Cell, n)
	for i := range cells {
		cells[i].Date = AddDays(start, i)
	}
	return cells
}

// Assign returns a copy of g with every event attached to the cell of its
// start day. Events without a start, or starting outside the grid, are left
// out. Within a cell events are in ascending start order, ties keeping the
// input order.
func Assign(g Grid, events []model.Event) Grid {
	out := g
	out.Cells = make([]Cell, len(g.Cells))
	copy(out.Cells, g.Cells)
	if len(out.Cells) == 0 {
		return out
	}

	loc := g.Location()
	first := dayIndex(out.Cells[0].Date)
	for i := range out.Cells {
		out.Cells[i].Events = nil
	}

	for _, ev := range events {
		start, ok := LocalStart(ev, loc)
		if !ok {
			continue
		}
		idx := dayIndex(start) - first
		if idx < 0 || idx >= int64(len(out.Cells)) {
			continue
		}
		out.Cells[idx].Events = append(out.Cells[idx].Events, ev)
	}

	for i := range out.Cells {
		sortByStart(out.Cells[i].Events, loc)
	}
	return out
}

// DayGroup is one day of a list view.
type DayGroup struct {
	// Key is the YYYY-MM-DD day of the events' start.
	Key    string
	Date   time.Time
	Events []model.Event
}

// BuildList selects the events overlapping [from, to] and groups them by
// start day. from is taken from the start of its day and to through the end
// of its day, both in from's location. An event is kept iff
// start <= to && end >= from, so one that began earlier but has not ended is
// included under its own start day. Groups are ascending by day; events
// within a group ascend by start, ties keeping the input order.
func BuildList(from, to time.Time, events []model.Event) []DayGroup {
	loc := from.Location()
	lo := StartOfDay(from)
	hi := EndOfDay(to.In(loc))
	if hi.Before(lo) {
		return []DayGroup{}
	}

	selected := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if Overlaps(ev, lo, hi) {
			selected = append(selected, ev)
		}
	}
	sortByStart(selected, loc)

	groups := make([]DayGroup, 0)
	for _, ev := range selected {
		local, _ := LocalStart(ev, loc)
		key := local.Format(DayKeyLayout)
		if n := len(groups); n > 0 && groups[n-1].Key == key {
			groups[n-1].Events = append(groups[n-1].Events, ev)
			continue
		}
		groups = append(groups, DayGroup{Key: key, Date: StartOfDay(local), Events: []model.Event{ev}})
	}
	return groups
}

// Overlaps reports whether ev intersects [from, to], both ends inclusive.
// A missing end counts as the start; an end before the start is compared
// as-is, which can only exclude the event.
func Overlaps(ev model.Event, from, to time.Time) bool {
	start, ok := LocalStart(ev, from.Location())
	if !ok {
		return false
	}
	end, _ := LocalEnd(ev, from.Location())
	return !start.After(to) && !end.Before(from)
}

// LocalStart returns ev's start as seen in loc. All-day values are floating
// dates, so they keep their calendar day instead of being converted.
func LocalStart(ev model.Event, loc *time.Location) (time.Time, bool) {
	start, ok := ev.StartTime()
	return inZone(start, ev.AllDay, loc), ok
}

// LocalEnd is LocalStart for the end, which falls back to the start.
func LocalEnd(ev model.Event, loc *time.Location) (time.Time, bool) {
	end, ok := ev.EndTime()
	return inZone(end, ev.AllDay, loc), ok
}

func inZone(t time.Time, floating bool, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	if floating {
		y, m, d := t.Date()
		h, mi, s := t.Clock()
		return time.Date(y, m, d, h, mi, s, t.Nanosecond(), loc)
	}
	return t.In(loc)
}

// sortByStart orders events by their start as seen in loc, the same instant
// used to pick their day.
func sortByStart(events []model.Event, loc *time.Location) {
	slices.SortStableFunc(events, func(a, b model.Event) int {
		as, _ := LocalStart(a, loc)
		bs, _ := LocalStart(b, loc)
		return as.Compare(bs)
	})
}
