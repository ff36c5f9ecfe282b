package web

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"icsview/internal/grid"
	"icsview/internal/model"
	"icsview/internal/printer"
)

// DefaultListDays is the span of an agenda when only its start is given.
const DefaultListDays = 7

// ViewRequest selects what to lay out. Date is the reference day of grid
// views; From and To bound the agenda, both inclusive.
type ViewRequest struct {
	View grid.ViewMode
	Date time.Time
	From time.Time
	To   time.Time
}

// ParamError reports a query parameter that could not be parsed.
type ParamError struct {
	Name  string
	Value string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s parameter %q", e.Name, e.Value)
}

// Message is the user-facing text returned in the API error body.
func (e *ParamError) Message() string {
	if e.Name == "view" {
		return fmt.Sprintf("Parametro view non valido: %q", e.Value)
	}
	return fmt.Sprintf("Parametro %s non valido (atteso YYYY-MM-DD): %q", e.Name, e.Value)
}

// ParseViewRequest reads view, date, from and to from q. Missing values
// default to the month view of today, and an agenda from the reference day
// through DefaultListDays later. Days are interpreted in loc.
func ParseViewRequest(q url.Values, now time.Time, loc *time.Location) (ViewRequest, error) {
	var req ViewRequest

	view, err := grid.ParseViewMode(q.Get("view"))
	if err != nil {
		return req, &ParamError{Name: "view", Value: q.Get("view")}
	}
	req.View = view

	req.Date = grid.StartOfDay(now.In(loc))
	if err := parseDayParam(q, "date", loc, &req.Date); err != nil {
		return req, err
	}

	req.From = req.Date
	if err := parseDayParam(q, "from", loc, &req.From); err != nil {
		return req, err
	}
	req.To = grid.AddDays(req.From, DefaultListDays)
	if err := parseDayParam(q, "to", loc, &req.To); err != nil {
		return req, err
	}
	return req, nil
}

func parseDayParam(q url.Values, name string, loc *time.Location, dst *time.Time) error {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil
	}
	t, err := grid.ParseDay(v, loc)
	if err != nil {
		return &ParamError{Name: name, Value: v}
	}
	*dst = t
	return nil
}

// Layout builds the grid, or for the agenda the day groups, of req with
// events attached. Exactly one of the results is set.
func Layout(req ViewRequest, weekStart time.Weekday, events []model.Event) (*grid.Grid, []grid.DayGroup) {
	var g grid.Grid
	switch req.View.Kind() {
	case grid.KindList:
		return nil, grid.BuildList(req.From, req.To, events)
	case grid.KindWeek:
		g = grid.BuildWeek(req.Date, weekStart)
	case grid.KindDay:
		g = grid.BuildDay(req.Date)
	default:
		g = grid.BuildMonth(req.Date, weekStart)
	}
	g = grid.Assign(g, events)
	return &g, nil
}

// RenderDocument lays req out and renders it as a print document.
func RenderDocument(req ViewRequest, weekStart time.Weekday, events []model.Event, opts printer.Options) printer.Document {
	g, groups := Layout(req, weekStart, events)
	if g != nil {
		return printer.RenderGrid(*g, opts)
	}
	opts.From, opts.To = req.From, req.To
	return printer.RenderList(groups, opts)
}
