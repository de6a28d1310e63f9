package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedybot/internal/delivery"
	"feedybot/internal/domain"
	"feedybot/internal/feed"
)

var (
	ErrFeedNotFound = errors.New("feed not found")
	ErrNoEntries    = errors.New("feed has no entries")
)

const defaultPreviewTimeout = 5 * time.Minute

type Store interface {
	ListFeedSources(ctx context.Context) ([]domain.FeedSource, error)
	ListFeedSourcesByCategory(ctx context.Context, category string) ([]string, error)
	GetWatermark(ctx context.Context, feedURL string) (string, bool, error)
	SetWatermark(ctx context.Context, feedURL string, entryID string) error
}

type Extractor interface {
	Extract(ctx context.Context, feedURL string) ([]domain.Entry, error)
}

type Dispatcher interface {
	Deliver(ctx context.Context, category string, entries []domain.Entry) delivery.Report
	Backfill(ctx context.Context, batches map[string][]domain.Entry) delivery.Report
}

type Notifier interface {
	Push(ctx context.Context, userID int64, msg domain.Message) error
}

type Config struct {
	SourcePacing   time.Duration
	PreviewPacing  time.Duration
	PreviewTimeout time.Duration
	// InitialPosts is how many of the newest entries of each feed
	// PopulateMailboxes queues, 0 disables it.
	InitialPosts int
}

// Result summarizes one invocation of a poll cycle.
type Result struct {
	Category     string
	FeedURL      string
	FeedsChecked int
	FeedsFailed  int
	NewEntries   int
}

// Poller runs poll cycles over the configured feed sources. Cycles never
// overlap, whether started by the scheduler or by a manual check.
type Poller struct {
	store      Store
	extractor  Extractor
	dispatcher Dispatcher
	notifier   Notifier
	cfg        Config
	log        *slog.Logger

	mu       sync.Mutex
	previews sync.WaitGroup
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(
	store Store,
	extractor Extractor,
	dispatcher Dispatcher,
	notifier Notifier,
	cfg Config,
	log *slog.Logger,
) *Poller {
	if cfg.PreviewTimeout <= 0 {
		cfg.PreviewTimeout = defaultPreviewTimeout
	}

	return &Poller{
		store:      store,
		extractor:  extractor,
		dispatcher: dispatcher,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
		sleep:      sleepContext,
	}
}

// RunPollCycle checks every (category, feed) pair once.
func (p *Poller) RunPollCycle(ctx context.Context) (Result, error) {
	sources, err := p.store.ListFeedSources(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list feed sources: %w", err)
	}

	return p.run(ctx, Result{}, sources)
}

// RunPollCycleForCategory checks every feed of category once.
func (p *Poller) RunPollCycleForCategory(ctx context.Context, category string) (Result, error) {
	urls, err := p.store.ListFeedSourcesByCategory(ctx, category)
	if err != nil {
		return Result{}, fmt.Errorf("list category feed sources: %w", err)
	}

	sources := make([]domain.FeedSource, 0, len(urls))
	for _, url := range urls {
		sources = append(sources, domain.FeedSource{Category: category, URL: url})
	}

	return p.run(ctx, Result{Category: category}, sources)
}

// RunPollCycleForSource checks a single feed. Unlike the multi-source cycles
// the fetch error of the feed is returned.
func (p *Poller) RunPollCycleForSource(ctx context.Context, feedURL string) (Result, error) {
	sources, err := p.store.ListFeedSources(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list feed sources: %w", err)
	}

	for _, source := range sources {
		if source.URL != feedURL {
			continue
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		result := Result{Category: source.Category, FeedURL: source.URL, FeedsChecked: 1}

		newEntries, err := p.processSource(ctx, source)
		result.NewEntries = newEntries
		if err != nil {
			result.FeedsFailed = 1
			return result, err
		}

		return result, nil
	}

	return Result{FeedURL: feedURL}, ErrFeedNotFound
}

func (p *Poller) run(ctx context.Context, result Result, sources []domain.FeedSource) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	startedAt := time.Now()

	for i, source := range sources {
		if i > 0 {
			if err := p.sleep(ctx, p.cfg.SourcePacing); err != nil {
				p.log.InfoContext(ctx, "Poll cycle context is done",
					"error", err,
					"feedsChecked", result.FeedsChecked)

				return result, err
			}
		}

		result.FeedsChecked++

		newEntries, err := p.processSource(ctx, source)
		result.NewEntries += newEntries
		if err != nil {
			result.FeedsFailed++
		}
	}

	p.log.InfoContext(ctx, "Poll cycle finished",
		"category", result.Category,
		"feedsChecked", result.FeedsChecked,
		"feedsFailed", result.FeedsFailed,
		"newEntries", result.NewEntries,
		"duration", time.Since(startedAt))

	return result, nil
}

// processSource fetches one feed, advances its watermark and hands the new
// entries to the dispatcher. Every failure stays within this source.
func (p *Poller) processSource(ctx context.Context, source domain.FeedSource) (newEntries int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process source panic: %v", r)

			p.log.ErrorContext(ctx, "Recovered from feed processing panic",
				"error", err,
				"category", source.Category,
				"url", source.URL)
		}
	}()

	entries, err := p.extractor.Extract(ctx, source.URL)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to fetch feed",
			"error", err,
			"category", source.Category,
			"url", source.URL)

		return 0, err
	}

	if len(entries) == 0 {
		return 0, nil
	}

	lastID, hasWatermark, err := p.store.GetWatermark(ctx, source.URL)
	if err != nil {
		p.log.ErrorContext(ctx, "Failed to get watermark",
			"error", err,
			"category", source.Category,
			"url", source.URL)

		return 0, fmt.Errorf("get watermark: %w", err)
	}

	fresh, watermark := feed.SelectNew(entries, lastID, hasWatermark)
	if len(fresh) == 0 {
		return 0, nil
	}

	if err = p.store.SetWatermark(ctx, source.URL, watermark); err != nil {
		p.log.ErrorContext(ctx, "Failed to set watermark, skipping delivery",
			"error", err,
			"category", source.Category,
			"url", source.URL,
			"newEntries", len(fresh))

		return 0, fmt.Errorf("set watermark: %w", err)
	}

	report := p.dispatcher.Deliver(ctx, source.Category, fresh)

	p.log.InfoContext(ctx, "Delivered new entries",
		"category", source.Category,
		"url", source.URL,
		"newEntries", len(fresh),
		"subscribers", report.Subscribers,
		"enqueued", report.Enqueued,
		"filtered", report.Filtered,
		"pushed", report.Pushed,
		"pushFailures", report.PushFailures)

	return len(fresh), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
