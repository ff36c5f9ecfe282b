package printer

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icsview/internal/grid"
	"icsview/internal/model"
)

func at(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func timed(id string, start, end time.Time) model.Event {
	return model.Event{ID: id, Title: id, Start: mo.Some(start), End: mo.Some(end)}
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;&amp;&quot;&#39;&lt;/b&gt;", Escape(`<b>&"'</b>`))
	assert.Equal(t, "plain text", Escape("plain text"))
	assert.Equal(t, "&amp;amp;", Escape("&amp;"))
}

func TestRenderList_EscapesFields(t *testing.T) {
	ev := timed("x", at(2024, 6, 3, 9, 0), at(2024, 6, 3, 10, 0))
	ev.Title = `<script>alert("x")</script>`
	ev.Location = "Tom & Jerry's"
	ev.Description = "<img src=x onerror=alert(1)>"

	groups := grid.BuildList(at(2024, 6, 1, 0, 0), at(2024, 6, 30, 0, 0), []model.Event{ev})
	doc := RenderList(groups, Options{Location: time.UTC})

	require.Len(t, doc.Pages, 1)
	entry := doc.Pages[0].Sections[0].Entries[0]
	assert.Equal(t, "&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;", entry.Title)
	assert.Equal(t, "Tom &amp; Jerry&#39;s", entry.Location)
	assert.Equal(t, "&lt;img src=x onerror=alert(1)&gt;", entry.Description)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, doc))
	out := buf.String()
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<img")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "&amp;lt;", "fields must not be escaped twice")
}

func TestRenderList_Pagination(t *testing.T) {
	var events []model.Event
	// Day 1: 3 events, day 2: 7 events, day 3: 1 event.
	for i, n := range []int{3, 7, 1} {
		for j := 0; j < n; j++ {
			start := at(2024, 6, 10+i, 8+j, 0)
			events = append(events, timed(fmt.Sprintf("d%d-%d", i+1, j), start, start.Add(time.Hour)))
		}
	}
	groups := grid.BuildList(at(2024, 6, 10, 0, 0), at(2024, 6, 12, 0, 0), events)
	doc := RenderList(groups, Options{EntriesPerPage: 4, Location: time.UTC})

	type sectionShape struct {
		Day     string
		Entries int
	}
	var got [][]sectionShape
	for i, p := range doc.Pages {
		assert.Equal(t, i+1, p.Number)
		var page []sectionShape
		total := 0
		for _, s := range p.Sections {
			page = append(page, sectionShape{s.DayKey, len(s.Entries)})
			total += len(s.Entries)
		}
		assert.LessOrEqual(t, total, 4)
		got = append(got, page)
	}

	want := [][]sectionShape{
		{{"2024-06-10", 3}, {"2024-06-11", 1}},
		{{"2024-06-11", 4}},
		{{"2024-06-11", 2}, {"2024-06-12", 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pagination mismatch (-want +got):\n%s", diff)
	}

	// A continued day repeats its heading.
	assert.Equal(t, doc.Pages[0].Sections[1].Heading, doc.Pages[1].Sections[0].Heading)
	assert.Equal(t, 11, doc.EventCount())
	assert.Equal(t, grid.KindList, doc.Kind)
	assert.Equal(t, "Calendario: 11 eventi (10/06/2024 → 12/06/2024)", doc.Title)
}

func TestRenderList_Empty(t *testing.T) {
	doc := RenderList(nil, Options{From: at(2024, 6, 1, 0, 0), To: at(2024, 6, 2, 0, 0)})
	require.Len(t, doc.Pages, 1)
	assert.Empty(t, doc.Pages[0].Sections)
	assert.Equal(t, 1.0, doc.FontScale)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, doc))
	assert.Contains(t, buf.String(), EmptyNotice)
	assert.Contains(t, buf.String(), "size: A4 portrait")
}

func TestRenderGrid_Month(t *testing.T) {
	g := grid.BuildMonth(at(2024, 6, 15, 0, 0), time.Monday)
	g = grid.Assign(g, []model.Event{timed("standup", at(2024, 6, 3, 9, 0), at(2024, 6, 3, 9, 30))})

	doc := RenderGrid(g, Options{FontScale: 1.5, Location: time.UTC})

	assert.Equal(t, grid.KindMonth, doc.Kind)
	assert.Equal(t, "Calendario: giugno 2024", doc.Title)
	require.Len(t, doc.Pages, 5)
	for _, p := range doc.Pages {
		assert.Len(t, p.Sections, 7)
	}

	first := doc.Pages[0].Sections[0]
	assert.Equal(t, "2024-05-27", first.DayKey)
	assert.True(t, first.Muted)
	assert.Equal(t, "lunedì 27/05/2024", first.Heading)

	monday := doc.Pages[1].Sections[0]
	assert.Equal(t, "2024-06-03", monday.DayKey)
	assert.False(t, monday.Muted)
	require.Len(t, monday.Entries, 1)
	assert.Equal(t, "03/06/2024 09:00 - 09:30", monday.Entries[0].When)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, doc))
	assert.Contains(t, buf.String(), "font-size: 27px")
	assert.Equal(t, 5, strings.Count(buf.String(), `class="page"`))
}

func TestRenderGrid_WeekAndDay(t *testing.T) {
	week := RenderGrid(grid.BuildWeek(at(2024, 6, 12, 0, 0), time.Monday), Options{})
	require.Len(t, week.Pages, 1)
	assert.Len(t, week.Pages[0].Sections, 7)
	assert.Equal(t, "Calendario: settimana dal 10/06/2024 al 16/06/2024", week.Title)

	day := RenderGrid(grid.BuildDay(at(2024, 6, 12, 0, 0)), Options{})
	require.Len(t, day.Pages, 1)
	assert.Len(t, day.Pages[0].Sections, 1)
	assert.Equal(t, grid.KindDay, day.Kind)
}

func TestRender_Deterministic(t *testing.T) {
	events := []model.Event{
		timed("b", at(2024, 6, 3, 9, 0), at(2024, 6, 3, 10, 0)),
		timed("a", at(2024, 6, 3, 9, 0), at(2024, 6, 4, 10, 0)),
	}
	render := func() string {
		groups := grid.BuildList(at(2024, 6, 1, 0, 0), at(2024, 6, 30, 0, 0), events)
		var buf bytes.Buffer
		require.NoError(t, WriteHTML(&buf, RenderList(groups, Options{Location: time.UTC})))
		return buf.String()
	}
	assert.Equal(t, render(), render())
}

func TestWhen(t *testing.T) {
	allDay := func(start, end time.Time) model.Event {
		ev := timed("d", start, end)
		ev.AllDay = true
		return ev
	}
	tests := []struct {
		name string
		ev   model.Event
		want string
	}{
		{"same day", timed("x", at(2024, 6, 3, 9, 0), at(2024, 6, 3, 17, 0)), "03/06/2024 09:00 - 17:00"},
		{"across days", timed("x", at(2024, 6, 3, 22, 0), at(2024, 6, 4, 1, 0)), "03/06/2024 22:00 - 04/06/2024 01:00"},
		{"instant", timed("x", at(2024, 6, 3, 9, 0), at(2024, 6, 3, 9, 0)), "03/06/2024 09:00"},
		{"no start", model.Event{}, ""},
		{"all day", allDay(at(2024, 6, 3, 0, 0), at(2024, 6, 4, 0, 0)), "03/06/2024 (tutto il giorno)"},
		{"all day no end", allDay(at(2024, 6, 3, 0, 0), at(2024, 6, 3, 0, 0)), "03/06/2024 (tutto il giorno)"},
		{"multi all day", allDay(at(2024, 6, 3, 0, 0), at(2024, 6, 6, 0, 0)), "03/06/2024 - 05/06/2024 (tutto il giorno)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, when(tt.ev, time.UTC))
		})
	}
}
