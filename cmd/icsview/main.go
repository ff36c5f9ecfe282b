package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"icsview/internal/capture"
	"icsview/internal/config"
	"icsview/internal/httpx"
	"icsview/internal/ics"
	appLog "icsview/internal/log"
	"icsview/internal/model"
	"icsview/internal/pipeline"
	"icsview/internal/printer"
	"icsview/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values; non-empty values override the config file.
type flagConfig struct {
	configPath string
	listen     string
	logLevel   string

	once   bool
	url    string
	view   string
	date   string
	from   string
	to     string
	format string
	out    string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if conf == nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err != nil {
		appLog.Error("failed to write default config; continuing with defaults", err, "config_path", flags.configPath)
	}

	if flags.logLevel != "" {
		conf.Log.Level = flags.logLevel
	}
	appLog.SetFormat(appLog.Format(conf.Log.Format))
	appLog.SetLevel(appLog.ParseLevel(conf.Log.Level))

	conf.Listen = listenAddress(conf.Listen, flags.listen, os.Getenv("PORT"))

	appLog.Info("icsview starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"fetch_timeout_seconds", conf.Fetch.TimeoutSeconds,
		"max_bytes", conf.Fetch.MaxBytes,
		"pdf_enabled", conf.Print.PDFEnabled,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.once {
		if err := runOnce(ctx, conf, flags); err != nil {
			appLog.Error("one-shot run failed", err)
			os.Exit(1)
		}
		return
	}

	if err := runServer(ctx, conf); err != nil {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("icsview exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/icsview/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config and PORT if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info or error (overrides config if set)")

	flag.BoolVar(&cfg.once, "once", false, "Fetch and render one calendar, then exit")
	flag.StringVar(&cfg.url, "url", "", "Calendar URL for -once")
	flag.StringVar(&cfg.view, "view", "agenda", "View for -once: month, week, work_week, day or agenda")
	flag.StringVar(&cfg.date, "date", "", "Reference day for -once (YYYY-MM-DD, default today)")
	flag.StringVar(&cfg.from, "from", "", "Agenda start for -once (YYYY-MM-DD)")
	flag.StringVar(&cfg.to, "to", "", "Agenda end for -once (YYYY-MM-DD, inclusive)")
	flag.StringVar(&cfg.format, "format", "html", "Output format for -once: html, json or pdf")
	flag.StringVar(&cfg.out, "out", "", "Output file for -once (default stdout)")

	flag.Parse()

	return cfg
}

// listenAddress applies the -listen flag, or failing that the PORT
// environment variable, to the configured address.
func listenAddress(configured, flagListen, port string) string {
	if flagListen != "" {
		return flagListen
	}
	if port == "" {
		return configured
	}
	host, _, err := net.SplitHostPort(configured)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}

func fetchOptions(conf *config.Config) ics.Options {
	return ics.Options{
		ProbeTimeout: time.Duration(conf.Fetch.ProbeTimeoutSeconds) * time.Second,
		Timeout:      time.Duration(conf.Fetch.TimeoutSeconds) * time.Second,
		MaxRedirects: conf.Fetch.MaxRedirects,
		NoRedirects:  conf.Fetch.MaxRedirects == 0,
		MaxBytes:     conf.Fetch.MaxBytes,
		UserAgent:    conf.Fetch.UserAgent,
	}
}

func pdfPrinter(conf *config.Config) web.PDFPrinter {
	opts := capture.PDFOptions{
		Timeout:         time.Duration(conf.Print.PDFTimeoutSeconds) * time.Second,
		PrintBackground: true,
	}
	return func(ctx context.Context, html string) ([]byte, error) {
		return capture.PrintPDF(ctx, html, opts)
	}
}

func newLoader(conf *config.Config) *pipeline.Loader {
	return pipeline.NewLoader(ics.NewFetcher(fetchOptions(conf)))
}

func runServer(ctx context.Context, conf *config.Config) error {
	meterProvider, metricsHandler, err := httpx.SetupPrometheusExporter(nil)
	if err != nil {
		return fmt.Errorf("initialize OpenTelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpx.Shutdown(shutdownCtx, meterProvider); err != nil {
			appLog.Error("failed to shutdown OpenTelemetry", err)
		}
	}()
	otel.SetMeterProvider(meterProvider)

	telemetry, err := httpx.NewTelemetry()
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	// The fetch counter binds to the global meter provider at construction,
	// so the loader is built only after SetMeterProvider.
	deps := web.Deps{
		Loader:    newLoader(conf),
		Telemetry: telemetry,
		Metrics:   metricsHandler,
	}
	if conf.Print.PDFEnabled {
		deps.PrintPDF = pdfPrinter(conf)
	}
	srv := web.NewServer(conf, deps)

	// WriteTimeout leaves room for the upstream fetch plus a PDF print.
	writeTimeout := time.Duration(conf.Fetch.ProbeTimeoutSeconds+conf.Fetch.TimeoutSeconds+conf.Print.PDFTimeoutSeconds+10) * time.Second
	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLog.Info("signal received, shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// runOnce fetches flags.url, renders the requested view and writes it to
// flags.out or stdout.
func runOnce(ctx context.Context, conf *config.Config, flags flagConfig) error {
	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
	}

	q := url.Values{}
	q.Set("view", flags.view)
	q.Set("date", flags.date)
	q.Set("from", flags.from)
	q.Set("to", flags.to)
	now := time.Now()
	req, err := web.ParseViewRequest(q, now, loc)
	if err != nil {
		return err
	}

	res, err := newLoader(conf).Load(ctx, flags.url)
	if err != nil {
		return err
	}

	doc := web.RenderDocument(req, conf.WeekStartDay(), model.ResolveAll(res.Events, now), printer.Options{
		FontScale:      conf.Print.FontScale,
		EntriesPerPage: conf.Print.EntriesPerPage,
		Location:       loc,
	})

	var buf bytes.Buffer
	switch flags.format {
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
	case "html", "pdf":
		if err := printer.WriteHTML(&buf, doc); err != nil {
			return err
		}
		if flags.format == "pdf" {
			pdf, err := pdfPrinter(conf)(ctx, buf.String())
			if err != nil {
				return err
			}
			buf.Reset()
			buf.Write(pdf)
		}
	default:
		return fmt.Errorf("unknown format %q", flags.format)
	}

	appLog.Info("one-shot render completed",
		"view", req.View.String(),
		"events", doc.EventCount(),
		"pages", len(doc.Pages),
		"format", flags.format,
	)
	return writeOutput(flags.out, buf.Bytes())
}

func writeOutput(path string, data []byte) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
