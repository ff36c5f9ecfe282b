package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"icsview/internal/config"
	"icsview/internal/httpx"
	appLog "icsview/internal/log"
	"icsview/internal/model"
)

// EventLoader runs one guarded calendar retrieval. *pipeline.Loader is the
// production implementation.
type EventLoader interface {
	Load(ctx context.Context, rawURL string) (model.FetchResult, error)
}

// PDFPrinter converts a print document's HTML to PDF.
type PDFPrinter func(ctx context.Context, html string) ([]byte, error)

// Deps are the collaborators of a Server. Only Loader is required.
type Deps struct {
	Loader EventLoader
	// Telemetry instruments every route when set.
	Telemetry *httpx.Telemetry
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// PrintPDF enables format=pdf on /api/print when set.
	PrintPDF PDFPrinter
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the calendar HTTP API. It keeps no state between
// requests: every call retrieves the calendar afresh.
type Server struct {
	cfg    *config.Config
	deps   Deps
	loc    *time.Location
	router *mux.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		loc:    resolveLocationOrLocal(cfg.Timezone),
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	if s.deps.Telemetry != nil {
		r.Use(s.deps.Telemetry.Middleware)
	}
	r.Use(httpx.Logger(), httpx.Recovery(), httpx.CORS(s.cfg.CORSOrigin))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ics", s.handleICS).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/grid", s.handleGrid).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/print", s.handlePrint).Methods(http.MethodGet, http.MethodOptions)

	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
