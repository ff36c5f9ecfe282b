package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "icsview/http"

// requestBuckets spans a quick JSON error up to a slow upstream fetch
// followed by a PDF print.
var requestBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45}

// Telemetry instruments the calendar API. Requests are counted and timed per
// route and status class; errors are the 4xx and 5xx classes.
type Telemetry struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewTelemetry creates the instruments on the global meter and tracer
// providers.
func NewTelemetry() (*Telemetry, error) {
	meter := otel.Meter(instrumentationName)
	t := &Telemetry{tracer: otel.Tracer(instrumentationName)}

	var err error
	if t.requests, err = meter.Int64Counter("icsview.http.requests",
		metric.WithDescription("Calendar API requests by route and status class"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	if t.latency, err = meter.Float64Histogram("icsview.http.latency",
		metric.WithDescription("Calendar API latency, upstream fetch included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(requestBuckets...),
	); err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}
	if t.inFlight, err = meter.Int64UpDownCounter("icsview.http.in_flight",
		metric.WithDescription("Calendar API requests being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("create in-flight counter: %w", err)
	}
	return t, nil
}

// statusClass buckets a status code as "2xx", "4xx" and so on.
func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// Middleware instruments requests with metrics and a server span. The query
// string is never recorded because it carries the calendar URL.
func (t *Telemetry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := attribute.String("http.route", routeName(r))
		method := attribute.String("http.method", r.Method)

		ctx, span := t.tracer.Start(r.Context(), r.Method+" "+route.Value.AsString(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(method, route),
		)
		defer span.End()

		t.inFlight.Add(ctx, 1, metric.WithAttributes(route))
		defer t.inFlight.Add(ctx, -1, metric.WithAttributes(route))

		rw := newStatusRecorder(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		class := attribute.String("http.status_class", statusClass(rw.status))
		attrs := metric.WithAttributes(method, route, class)
		t.requests.Add(ctx, 1, attrs)
		t.latency.Record(ctx, time.Since(start).Seconds(), attrs)

		span.SetAttributes(attribute.Int("http.status_code", rw.status))
		if rw.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rw.status))
		}
	})
}

// routeName prefers the matched mux template over the raw path to keep
// label cardinality bounded.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	if rw, ok := w.(*statusRecorder); ok {
		return rw
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if !rw.written {
		rw.status = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
