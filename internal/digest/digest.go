package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedybot/internal/domain"
	"feedybot/internal/render"
	"feedybot/internal/summarizer"
)

var ErrNoUnreadPosts = errors.New("no unread posts")

const DefaultPostLimit = 50

type Mailbox interface {
	List(ctx context.Context, userID int64, limit int) []domain.UnreadPost
	Clear(ctx context.Context, userID int64) error
	Count(ctx context.Context, userID int64) int
}

type SubscriberLister interface {
	ListActiveSubscribers(ctx context.Context) ([]int64, error)
}

type Notifier interface {
	Push(ctx context.Context, userID int64, msg domain.Message) error
}

// Digest turns a subscriber's mailbox into a summary message.
type Digest struct {
	mailbox    Mailbox
	store      SubscriberLister
	summarizer summarizer.Summarizer
	notifier   Notifier
	postLimit  int
	log        *slog.Logger
}

// New builds a digest service. A nil summarizer behaves as an unavailable one.
func New(
	mailbox Mailbox,
	store SubscriberLister,
	s summarizer.Summarizer,
	notifier Notifier,
	postLimit int,
	log *slog.Logger,
) *Digest {
	if s == nil {
		s = summarizer.Unavailable{}
	}

	if postLimit <= 0 {
		postLimit = DefaultPostLimit
	}

	return &Digest{
		mailbox:    mailbox,
		store:      store,
		summarizer: s,
		notifier:   notifier,
		postLimit:  postLimit,
		log:        log,
	}
}

// Generate summarizes up to postLimit of the newest unread posts of userID.
// The mailbox is left untouched.
func (d *Digest) Generate(ctx context.Context, userID int64) (domain.Summary, error) {
	posts := d.mailbox.List(ctx, userID, d.postLimit)
	if len(posts) == 0 {
		return domain.Summary{}, ErrNoUnreadPosts
	}

	input := make([]summarizer.Post, 0, len(posts))
	categories := make(map[string]int)
	for _, post := range posts {
		input = append(input, summarizer.Post{
			Title:    post.Title,
			Summary:  post.Summary,
			Link:     post.Link,
			Category: post.Category,
		})
		categories[post.Category]++
	}

	text, err := d.summarizer.Summarize(ctx, input)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summarize posts: %w", err)
	}

	return domain.Summary{
		Text:       text,
		TotalPosts: len(posts),
		Categories: categories,
	}, nil
}

// SendSummary generates and pushes a summary to userID. The mailbox is cleared
// only once the summary message was delivered.
func (d *Digest) SendSummary(ctx context.Context, userID int64) error {
	summary, err := d.Generate(ctx, userID)
	if err != nil {
		return err
	}

	if err = d.notifier.Push(ctx, userID, render.Summary(summary)); err != nil {
		return fmt.Errorf("push summary: %w", err)
	}

	if err = d.mailbox.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear mailbox: %w", err)
	}

	d.log.InfoContext(ctx, "Sent summary",
		"userID", userID,
		"totalPosts", summary.TotalPosts,
		"categories", len(summary.Categories))

	return nil
}

// SendDailySummaries sends a summary to every active subscriber with unread
// posts and returns how many were delivered.
func (d *Digest) SendDailySummaries(ctx context.Context) (int, error) {
	userIDs, err := d.store.ListActiveSubscribers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active subscribers: %w", err)
	}

	startedAt := time.Now()
	sent := 0

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}

		if d.mailbox.Count(ctx, userID) == 0 {
			d.log.DebugContext(ctx, "No unread posts, skipping summary",
				"userID", userID)

			continue
		}

		if err = d.SendSummary(ctx, userID); err != nil {
			d.log.ErrorContext(ctx, "Failed to send daily summary",
				"error", err,
				"userID", userID)

			continue
		}

		sent++
	}

	d.log.InfoContext(ctx, "Daily summaries sent",
		"sent", sent,
		"subscribers", len(userIDs),
		"duration", time.Since(startedAt))

	return sent, nil
}
