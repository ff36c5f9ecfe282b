package grid

import (
	"fmt"
	"strings"
)

// ViewMode is a user-selectable calendar view.
type ViewMode int

const (
	ViewMonth ViewMode = iota
	ViewWeek
	ViewWorkWeek
	ViewDay
	ViewAgenda
)

var viewNames = map[ViewMode]string{
	ViewMonth:    "month",
	ViewWeek:     "week",
	ViewWorkWeek: "work_week",
	ViewDay:      "day",
	ViewAgenda:   "agenda",
}

func (v ViewMode) String() string {
	if s, ok := viewNames[v]; ok {
		return s
	}
	return fmt.Sprintf("ViewMode(%d)", int(v))
}

// Kind maps a view to the grid shape that renders it. The work week is shown
// as the full week containing the reference day.
func (v ViewMode) Kind() Kind {
	switch v {
	case ViewWeek, ViewWorkWeek:
		return KindWeek
	case ViewDay:
		return KindDay
	case ViewAgenda:
		return KindList
	default:
		return KindMonth
	}
}

// ParseViewMode accepts month, week, work_week, day and agenda, case
// insensitively. An empty string selects the month view.
func ParseViewMode(s string) (ViewMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ViewMonth, nil
	}
	for v, name := range viewNames {
		if name == s {
			return v, nil
		}
	}
	return ViewMonth, fmt.Errorf("unknown view %q", s)
}
