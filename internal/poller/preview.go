package poller

import (
	"context"
	"fmt"
	"time"

	"feedybot/internal/render"
)

// SendLatestPreview pushes the newest entry of feedURL to userID. It does not
// touch the watermark or the mailbox.
func (p *Poller) SendLatestPreview(ctx context.Context, userID int64, category string, feedURL string) error {
	entries, err := p.extractor.Extract(ctx, feedURL)
	if err != nil {
		return fmt.Errorf("extract feed: %w", err)
	}

	if len(entries) == 0 {
		return ErrNoEntries
	}

	if err = p.notifier.Push(ctx, userID, render.Preview(category, entries[0])); err != nil {
		return fmt.Errorf("push preview: %w", err)
	}

	return nil
}

// SendCategoryPreviews sends the latest entry of every feed of categories and
// returns how many previews were delivered.
func (p *Poller) SendCategoryPreviews(ctx context.Context, userID int64, categories []string) (int, error) {
	sent := 0
	attempted := 0

	for _, category := range categories {
		urls, err := p.store.ListFeedSourcesByCategory(ctx, category)
		if err != nil {
			p.log.ErrorContext(ctx, "Failed to list category feeds for previews",
				"error", err,
				"userID", userID,
				"category", category)

			continue
		}

		for _, url := range urls {
			if attempted > 0 {
				if err = p.sleep(ctx, p.cfg.PreviewPacing); err != nil {
					return sent, err
				}
			}
			attempted++

			if err = p.SendLatestPreview(ctx, userID, category, url); err != nil {
				p.log.WarnContext(ctx, "Failed to send preview",
					"error", err,
					"userID", userID,
					"category", category,
					"url", url)

				continue
			}

			sent++
		}
	}

	return sent, nil
}

// SchedulePreviews sends category previews in the background. The work
// outlives the caller's context and is bounded by its own timeout.
func (p *Poller) SchedulePreviews(ctx context.Context, userID int64, categories []string) {
	if len(categories) == 0 {
		return
	}

	categories = append([]string(nil), categories...)

	p.previews.Add(1)
	go func() {
		defer p.previews.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.PreviewTimeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				p.log.ErrorContext(ctx, "Recovered from preview panic",
					"panic", r,
					"userID", userID)
			}
		}()

		startedAt := time.Now()

		sent, err := p.SendCategoryPreviews(ctx, userID, categories)
		if err != nil {
			p.log.WarnContext(ctx, "Previews interrupted",
				"error", err,
				"userID", userID,
				"sent", sent)

			return
		}

		p.log.InfoContext(ctx, "Previews sent",
			"userID", userID,
			"categories", categories,
			"sent", sent,
			"duration", time.Since(startedAt))
	}()
}

// Wait blocks until every scheduled preview task has finished.
func (p *Poller) Wait() {
	p.previews.Wait()
}
