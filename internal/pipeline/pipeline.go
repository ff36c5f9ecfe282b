// Package pipeline runs one calendar retrieval: the URL guard, the bounded
// fetch and the normalizer, in that order.
package pipeline

import (
	"context"
	"time"

	"icsview/internal/ics"
	appLog "icsview/internal/log"
	"icsview/internal/model"
	"icsview/internal/urlguard"
)

// Fetcher retrieves calendar text. *ics.Fetcher is the production
// implementation.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Loader holds no per-request state and is safe for concurrent use.
type Loader struct {
	fetcher Fetcher
}

func NewLoader(f Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// Load validates rawURL, retrieves it and normalizes the body. Guard
// failures are *urlguard.Error and no network activity happens for them;
// retrieval failures are *ics.FetchError. A successful load never fails
// because of malformed records.
func (l *Loader) Load(ctx context.Context, rawURL string) (model.FetchResult, error) {
	if err := urlguard.Validate(rawURL); err != nil {
		return model.FetchResult{}, err
	}

	started := time.Now()
	body, err := l.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return model.FetchResult{}, err
	}

	events := ics.Normalize(body)
	appLog.Debug("calendar loaded",
		"event_count", len(events),
		"bytes", len(body),
		"elapsed", time.Since(started).String(),
	)
	return model.FetchResult{Events: events}, nil
}
