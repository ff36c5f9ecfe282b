package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	appLog "icsview/internal/log"
)

const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultFetchTimeout = 15 * time.Second
	DefaultMaxRedirects = 5
	DefaultMaxBytes     = 10 * 1024 * 1024
)

// ErrorKind classifies fetch failures.
type ErrorKind string

const (
	UnexpectedContentType ErrorKind = "UnexpectedContentType"
	PayloadTooLarge       ErrorKind = "PayloadTooLarge"
	UpstreamFetchFailed   ErrorKind = "UpstreamFetchFailed"
	FetchTimeout          ErrorKind = "FetchTimeout"
)

// FetchError is the only error type returned by Fetcher.Fetch.
type FetchError struct {
	Kind ErrorKind
	// Status is the upstream HTTP status, or 0 when none was received.
	Status int
	// ContentType is set for UnexpectedContentType.
	ContentType string
	Err         error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == UnexpectedContentType:
		return "unexpected content type: " + e.ContentType
	case e.Status != 0:
		return fmt.Sprintf("%s: upstream status %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

var (
	calendarContentType = regexp.MustCompile(`(?i)text/calendar|application/calendar|text/vcalendar`)
	icsSuffix           = regexp.MustCompile(`(?i)\.ics(\?.*)?$`)
)

// LooksLikeICS reports whether a URL string ends in ".ics", optionally
// followed by a query string.
func LooksLikeICS(rawURL string) bool {
	return icsSuffix.MatchString(rawURL)
}

// IsCalendarContentType reports whether a Content-Type header names one of
// the calendar media types.
func IsCalendarContentType(ct string) bool {
	return calendarContentType.MatchString(ct)
}

// Options bounds a Fetcher. Zero values take the package defaults; set
// NoRedirects to refuse every redirect.
type Options struct {
	ProbeTimeout time.Duration
	Timeout      time.Duration
	MaxRedirects int
	NoRedirects  bool
	MaxBytes     int64
	UserAgent    string
	// Transport replaces the default transport (tests inject one).
	Transport http.RoundTripper
}

// Fetcher performs the advisory HEAD probe and the bounded GET for a URL
// that has already passed urlguard.Validate.
type Fetcher struct {
	client       *http.Client
	probeTimeout time.Duration
	timeout      time.Duration
	maxBytes     int64
	userAgent    string
	results      metric.Int64Counter
}

// NewFetcher creates a Fetcher with the given limits.
func NewFetcher(opts Options) *Fetcher {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	switch {
	case opts.NoRedirects:
		opts.MaxRedirects = 0
	case opts.MaxRedirects <= 0:
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	maxRedirects := opts.MaxRedirects
	client := &http.Client{
		Transport: opts.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	counter, err := otel.Meter("icsview/ics").Int64Counter(
		"ics.fetch.results",
		metric.WithDescription("Calendar fetch outcomes"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		appLog.Error("ics fetch counter unavailable", err)
	}

	return &Fetcher{
		client:       client,
		probeTimeout: opts.ProbeTimeout,
		timeout:      opts.Timeout,
		maxBytes:     opts.MaxBytes,
		userAgent:    opts.UserAgent,
		results:      counter,
	}
}

// Fetch retrieves rawURL and returns its body as text. Errors are always
// *FetchError. The probe and the GET run one after the other; neither is
// retried.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	body, err := f.fetch(ctx, rawURL)
	f.record(ctx, err)
	return body, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	if ct := f.probe(ctx, rawURL); ct != "" {
		if !IsCalendarContentType(ct) && !LooksLikeICS(rawURL) {
			appLog.Info("ics probe rejected content type", "url", redactURL(rawURL), "content_type", ct)
			return "", &FetchError{Kind: UnexpectedContentType, ContentType: ct}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return "", &FetchError{Kind: UpstreamFetchFailed, Err: err}
	}

	appLog.Info("ics fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		appLog.Info("ics fetch non-success status", "url", redactURL(rawURL), "status", resp.StatusCode)
		return "", &FetchError{Kind: UpstreamFetchFailed, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	if resp.ContentLength > f.maxBytes {
		return "", &FetchError{
			Kind: PayloadTooLarge,
			Err:  fmt.Errorf("advertised length %d exceeds limit %d", resp.ContentLength, f.maxBytes),
		}
	}

	// Read one byte past the cap so an oversized body is detected without
	// buffering it.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", transportError(err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", &FetchError{
			Kind: PayloadTooLarge,
			Err:  fmt.Errorf("body exceeds limit %d", f.maxBytes),
		}
	}

	appLog.Info("ics fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
	return string(body), nil
}

// probe issues the advisory HEAD request and returns the advertised content
// type. Any failure yields "".
func (f *Fetcher) probe(ctx context.Context, rawURL string) string {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	req, err := f.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return ""
	}
	resp, err := f.client.Do(req)
	if err != nil {
		appLog.Debug("ics probe failed", "url", redactURL(rawURL), "err", err)
		return ""
	}
	defer resp.Body.Close()

	// A 405 or 404 on HEAD says nothing about what GET would serve.
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		appLog.Debug("ics probe ignored", "url", redactURL(rawURL), "status", resp.StatusCode)
		return ""
	}
	return resp.Header.Get("Content-Type")
}

func (f *Fetcher) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar, application/calendar, text/plain;q=0.5, */*;q=0.1")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	return req, nil
}

func (f *Fetcher) record(ctx context.Context, err error) {
	if f.results == nil {
		return
	}
	outcome := "ok"
	var ferr *FetchError
	if errors.As(err, &ferr) {
		outcome = string(ferr.Kind)
	}
	f.results.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func transportError(err error) *FetchError {
	kind := UpstreamFetchFailed
	if isTimeout(err) {
		kind = FetchTimeout
	}
	// url.Error repeats the full request URL, which may carry a token.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = fmt.Errorf("%s %s: %w", uerr.Op, redactURL(uerr.URL), uerr.Err)
	}
	return &FetchError{Kind: kind, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	i += 3

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' && u[j] != '#' {
		j++
	}

	// Drop userinfo if present.
	host := u[i:j]
	if at := strings.LastIndexByte(host, '@'); at >= 0 {
		host = host[at+1:]
	}
	return u[:i] + host + redactedSuffix
}
