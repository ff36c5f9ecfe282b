package web

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"icsview/internal/grid"
	appLog "icsview/internal/log"
	"icsview/internal/model"
	"icsview/internal/printer"
)

// eventDTO is the wire shape of an event. Missing times are null.
type eventDTO struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	AllDay      bool    `json:"allDay"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
}

type eventsResponse struct {
	Events []eventDTO `json:"events"`
}

func toEventDTO(ev model.Event) eventDTO {
	format := func(t time.Time, ok bool) *string {
		if !ok {
			return nil
		}
		s := t.Format(time.RFC3339)
		return &s
	}
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Start:       format(ev.Start.Get()),
		End:         format(ev.End.Get()),
		AllDay:      ev.AllDay,
		Description: ev.Description,
		Location:    ev.Location,
	}
}

func toEventDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventDTO(ev))
	}
	return out
}

// handleICS returns the normalized events of one remote calendar.
//
// GET /api/ics?url=<calendar URL>
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Loader.Load(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: toEventDTOs(res.Events)})
}

type cellDTO struct {
	Date   string     `json:"date"`
	Muted  bool       `json:"muted"`
	Events []eventDTO `json:"events"`
}

type dayDTO struct {
	Date   string     `json:"date"`
	Events []eventDTO `json:"events"`
}

type gridResponse struct {
	View      string    `json:"view"`
	Kind      grid.Kind `json:"kind"`
	Timezone  string    `json:"timezone"`
	WeekStart string    `json:"weekStart"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Cells     []cellDTO `json:"cells,omitempty"`
	Days      []dayDTO  `json:"days,omitempty"`
}

// handleGrid lays a calendar out as a month, week, day or agenda view.
//
// GET /api/grid?url=&view=month|week|work_week|day|agenda&date=&from=&to=
//   - date:     reference day of grid views (default today)
//   - from, to: agenda range, both inclusive (default date .. date+7)
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.deps.Now()
	req, err := ParseViewRequest(q, now, s.loc)
	if err != nil {
		writeParamError(w, err)
		return
	}

	res, err := s.deps.Loader.Load(r.Context(), q.Get("url"))
	if err != nil {
		writeLoadError(w, err)
		return
	}

	events := model.ResolveAll(res.Events, now)
	g, groups := Layout(req, s.cfg.WeekStartDay(), events)

	resp := gridResponse{
		View:      req.View.String(),
		Kind:      req.View.Kind(),
		Timezone:  s.loc.String(),
		WeekStart: strings.ToLower(s.cfg.WeekStartDay().String()),
	}
	if g != nil {
		resp.Start = g.Start().Format(grid.DayKeyLayout)
		resp.End = g.End().Format(grid.DayKeyLayout)
		resp.Cells = make([]cellDTO, 0, len(g.Cells))
		for _, c := range g.Cells {
			resp.Cells = append(resp.Cells, cellDTO{Date: c.Key(), Muted: c.Muted, Events: toEventDTOs(c.Events)})
		}
	} else {
		resp.Start = req.From.Format(grid.DayKeyLayout)
		resp.End = req.To.Format(grid.DayKeyLayout)
		resp.Days = make([]dayDTO, 0, len(groups))
		for _, d := range groups {
			resp.Days = append(resp.Days, dayDTO{Date: d.Key, Events: toEventDTOs(d.Events)})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePrint renders a view as an A4 print document.
//
// GET /api/print?url=&view=&date=&from=&to=&scale=&format=html|json|pdf
//   - scale:  font scale, > 0 (default from config)
//   - format: html (default), json (document tree) or pdf (when enabled)
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.deps.Now()
	req, err := ParseViewRequest(q, now, s.loc)
	if err != nil {
		writeParamError(w, err)
		return
	}

	scale := s.cfg.Print.FontScale
	if v := strings.TrimSpace(q.Get("scale")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 4 {
			writeError(w, http.StatusBadRequest, "Parametro scale non valido: "+strconv.Quote(v))
			return
		}
		scale = f
	}

	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	switch format {
	case "", "html", "json":
	case "pdf":
		if s.deps.PrintPDF == nil {
			writeError(w, http.StatusNotImplemented, "Esportazione PDF non abilitata")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "Parametro format non valido: "+strconv.Quote(format))
		return
	}

	res, err := s.deps.Loader.Load(r.Context(), q.Get("url"))
	if err != nil {
		writeLoadError(w, err)
		return
	}

	doc := RenderDocument(req, s.cfg.WeekStartDay(), model.ResolveAll(res.Events, now), printer.Options{
		FontScale:      scale,
		EntriesPerPage: s.cfg.Print.EntriesPerPage,
		Location:       s.loc,
	})

	if format == "json" {
		writeJSON(w, http.StatusOK, doc)
		return
	}

	var buf bytes.Buffer
	if err := printer.WriteHTML(&buf, doc); err != nil {
		appLog.Error("print render failed", err)
		writeError(w, http.StatusInternalServerError, "Failed to render print document")
		return
	}

	if format == "pdf" {
		pdf, err := s.deps.PrintPDF(r.Context(), buf.String())
		if err != nil {
			appLog.Error("pdf capture failed", err)
			writeError(w, http.StatusInternalServerError, "Failed to render PDF")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `inline; filename="calendar.pdf"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
