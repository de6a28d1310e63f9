package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedybot/internal/domain"

	"github.com/mmcdole/gofeed"
)

const (
	userAgent = "Mozilla/5.0 (compatible; feedybot/1.0; +https://github.com/mmcdole/gofeed)"

	DefaultFetchTimeout = 30 * time.Second
)

var (
	ErrFeedUnavailable = errors.New("feed is unavailable")
	ErrFeedMalformed   = errors.New("feed is malformed")
	ErrFeedEmpty       = errors.New("feed has no entries")
	ErrInvalidURL      = errors.New("invalid feed URL")
)

// Extractor fetches feed sources and normalizes their items into entries.
type Extractor struct {
	client *http.Client
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewExtractor(timeout time.Duration, log *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	return &Extractor{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
		log:    log,
	}
}

// Extract returns the entries of feedURL newest first. Transport failures,
// timeouts and non-2xx responses wrap ErrFeedUnavailable. A malformed or empty
// document is logged and yields no entries without an error.
func (e *Extractor) Extract(ctx context.Context, feedURL string) ([]domain.Entry, error) {
	parsed, err := e.fetch(ctx, feedURL)
	if errors.Is(err, ErrFeedMalformed) {
		e.log.WarnContext(ctx, "Failed to parse feed so it is treated as empty",
			"error", err,
			"feedURL", feedURL)

		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(parsed.Items) == 0 {
		e.log.WarnContext(ctx, "Feed has no entries",
			"feedURL", feedURL)

		return nil, nil
	}

	entries := make([]domain.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		entries = append(entries, entryFromItem(item))
	}

	return entries, nil
}

// Validate checks that feedURL is an http(s) URL serving a parsable feed with
// at least one entry and returns the feed title.
func (e *Extractor) Validate(ctx context.Context, feedURL string) (string, error) {
	feedURL = strings.TrimSpace(feedURL)
	if !IsValidURL(feedURL) {
		return "", ErrInvalidURL
	}

	parsed, err := e.fetch(ctx, feedURL)
	if err != nil {
		return "", err
	}

	if len(parsed.Items) == 0 {
		return "", ErrFeedEmpty
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		title = feedURL
	}

	return title, nil
}

func (e *Extractor) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request (URL = %s): %w: %w", feedURL, ErrFeedUnavailable, err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request (URL = %s): %w: %w", feedURL, ErrFeedUnavailable, err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			e.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"feedURL", feedURL)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status (URL = %s, status = %d): %w",
			feedURL, resp.StatusCode, ErrFeedUnavailable)
	}

	parsed, err := e.parser.Parse(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("read body (URL = %s): %w: %w", feedURL, ErrFeedUnavailable, err)
		}

		return nil, fmt.Errorf("parse feed (URL = %s): %w: %w", feedURL, ErrFeedMalformed, err)
	}

	return parsed, nil
}

// IsValidURL reports whether raw is an absolute http or https URL.
func IsValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
