package delivery

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"feedybot/internal/domain"
	"feedybot/internal/render"
)

type Store interface {
	SubscriberGetter
	ListSubscribersByCategory(ctx context.Context, category string) ([]int64, error)
}

type Mailbox interface {
	Enqueue(ctx context.Context, userID int64, category string, entry domain.Entry) error
	Trim(ctx context.Context, userID int64, category string) error
	Count(ctx context.Context, userID int64) int
}

type Notifier interface {
	Push(ctx context.Context, userID int64, msg domain.Message) error
}

const DefaultPushTimeout = 30 * time.Second

type Report struct {
	Subscribers  int
	Enqueued     int
	Filtered     int
	Pushed       int
	PushFailures int
}

// Dispatcher fans new entries of a category out to its subscribers.
type Dispatcher struct {
	store       Store
	filter      *KeywordFilter
	mailbox     Mailbox
	notifier    Notifier
	pushTimeout time.Duration
	log         *slog.Logger
}

// NewDispatcher builds a dispatcher. notifier may be nil, then posts are only
// queued.
func NewDispatcher(
	store Store,
	filter *KeywordFilter,
	mailbox Mailbox,
	notifier Notifier,
	pushTimeout time.Duration,
	log *slog.Logger,
) *Dispatcher {
	if pushTimeout <= 0 {
		pushTimeout = DefaultPushTimeout
	}

	return &Dispatcher{
		store:       store,
		filter:      filter,
		mailbox:     mailbox,
		notifier:    notifier,
		pushTimeout: pushTimeout,
		log:         log,
	}
}

type pendingPush struct {
	userID int64
	entry  domain.Entry
	msg    domain.Message
}

// Deliver processes entries in the given order (oldest first). Every entry is
// queued for each subscriber whose keywords match, the mailbox of each touched
// subscriber is trimmed once, and only then the posts are pushed.
//
// The caller has already advanced the watermark, so queueing runs detached
// from ctx: a cancelled or expired cycle must not drop posts. Pushes are
// best-effort, each bounded by the push timeout and by ctx.
func (d *Dispatcher) Deliver(ctx context.Context, category string, entries []domain.Entry) Report {
	var report Report
	if len(entries) == 0 {
		return report
	}

	queueCtx := context.WithoutCancel(ctx)

	userIDs := d.resolveSubscribers(queueCtx, category)
	report.Subscribers = len(userIDs)
	if len(userIDs) == 0 {
		return report
	}

	pushes := d.enqueue(queueCtx, category, entries, userIDs, &report)

	if d.notifier == nil {
		return report
	}

	for i, p := range pushes {
		if ctx.Err() != nil {
			report.PushFailures += len(pushes) - i

			d.log.WarnContext(ctx, "Context is done, remaining posts stay queued",
				"error", ctx.Err(),
				"category", category,
				"skippedPushes", len(pushes)-i)

			break
		}

		d.push(ctx, category, p, &report)
	}

	return report
}

// Backfill queues entries of every category for subscribers whose mailbox is
// empty, without pushing anything. Emptiness is checked once per subscriber
// before any of their posts is queued, so a restart does not queue the same
// posts again for subscribers that still have unread posts.
func (d *Dispatcher) Backfill(ctx context.Context, batches map[string][]domain.Entry) Report {
	var report Report

	eligible := make(map[int64]bool)

	categories := slices.Sorted(maps.Keys(batches))
	for _, category := range categories {
		entries := batches[category]
		if len(entries) == 0 {
			continue
		}

		var userIDs []int64
		for _, userID := range d.resolveSubscribers(ctx, category) {
			ok, seen := eligible[userID]
			if !seen {
				ok = d.mailbox.Count(ctx, userID) == 0
				eligible[userID] = ok
			}

			if ok {
				userIDs = append(userIDs, userID)
			}
		}

		report.Subscribers += len(userIDs)
		if len(userIDs) == 0 {
			continue
		}

		d.enqueue(ctx, category, entries, userIDs, &report)
	}

	return report
}

// enqueue queues the batch for userIDs in entry order, trims each touched
// mailbox once and returns the pushes owed, oldest first.
func (d *Dispatcher) enqueue(
	ctx context.Context,
	category string,
	entries []domain.Entry,
	userIDs []int64,
	report *Report,
) []pendingPush {
	matchers := make(map[int64]Matcher, len(userIDs))
	for _, userID := range userIDs {
		matchers[userID] = d.filter.ForSubscriber(ctx, userID)
	}

	touched := make(map[int64]struct{}, len(userIDs))

	var pushes []pendingPush

	for _, entry := range entries {
		msg := render.Post(category, entry)

		for _, userID := range userIDs {
			if !matchers[userID](entry.Title, entry.Summary) {
				report.Filtered++
				continue
			}

			if err := d.mailbox.Enqueue(ctx, userID, category, entry); err != nil {
				d.log.ErrorContext(ctx, "Failed to enqueue unread post",
					"error", err,
					"userID", userID,
					"category", category,
					"entryID", entry.ID)
			} else {
				report.Enqueued++
				touched[userID] = struct{}{}
			}

			pushes = append(pushes, pendingPush{userID: userID, entry: entry, msg: msg})
		}
	}

	for _, userID := range userIDs {
		if _, ok := touched[userID]; !ok {
			continue
		}

		if err := d.mailbox.Trim(ctx, userID, category); err != nil {
			d.log.ErrorContext(ctx, "Failed to trim unread posts",
				"error", err,
				"userID", userID,
				"category", category)
		}
	}

	return pushes
}

func (d *Dispatcher) push(ctx context.Context, category string, p pendingPush, report *Report) {
	ctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()

	if err := d.notifier.Push(ctx, p.userID, p.msg); err != nil {
		report.PushFailures++

		d.log.WarnContext(ctx, "Failed to push post",
			"error", err,
			"userID", p.userID,
			"category", category,
			"entryID", p.entry.ID,
			"link", p.entry.Link)

		return
	}

	report.Pushed++
}

func (d *Dispatcher) resolveSubscribers(ctx context.Context, category string) []int64 {
	userIDs, err := d.store.ListSubscribersByCategory(ctx, category)
	if err != nil {
		d.log.ErrorContext(ctx, "Failed to list subscribers",
			"error", err,
			"category", category)

		return nil
	}

	return userIDs
}
