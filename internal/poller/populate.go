package poller

import (
	"context"
	"fmt"
	"slices"
	"time"

	"feedybot/internal/domain"
)

// PopulateMailboxes fills the empty mailboxes of subscribers with the newest
// InitialPosts entries of every feed of their categories. Nothing is pushed
// and watermarks are left alone. It runs under the same lock as poll cycles.
func (p *Poller) PopulateMailboxes(ctx context.Context) (Result, error) {
	if p.cfg.InitialPosts <= 0 {
		return Result{}, nil
	}

	sources, err := p.store.ListFeedSources(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list feed sources: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	startedAt := time.Now()

	var result Result
	batches := make(map[string][]domain.Entry)

	for i, source := range sources {
		if i > 0 {
			if err = p.sleep(ctx, p.cfg.SourcePacing); err != nil {
				return result, err
			}
		}

		result.FeedsChecked++

		entries, err := p.extractor.Extract(ctx, source.URL)
		if err != nil {
			result.FeedsFailed++

			p.log.WarnContext(ctx, "Failed to fetch feed for initial posts",
				"error", err,
				"category", source.Category,
				"url", source.URL)

			continue
		}

		if len(entries) > p.cfg.InitialPosts {
			entries = entries[:p.cfg.InitialPosts]
		}

		entries = slices.Clone(entries)
		slices.Reverse(entries)

		batches[source.Category] = append(batches[source.Category], entries...)
		result.NewEntries += len(entries)
	}

	report := p.dispatcher.Backfill(ctx, batches)

	p.log.InfoContext(ctx, "Mailboxes are populated",
		"feedsChecked", result.FeedsChecked,
		"feedsFailed", result.FeedsFailed,
		"entries", result.NewEntries,
		"subscribers", report.Subscribers,
		"enqueued", report.Enqueued,
		"filtered", report.Filtered,
		"duration", time.Since(startedAt))

	return result, nil
}
