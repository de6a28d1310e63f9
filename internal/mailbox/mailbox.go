// Package mailbox keeps the bounded per-subscriber queue of posts that were
// delivered but not yet summarized.
package mailbox

import (
	"context"
	"log/slog"
	"time"

	"feedybot/internal/domain"
)

const DefaultCapacity = 10

type Store interface {
	EnqueueUnread(ctx context.Context, post domain.UnreadPost) error
	TrimUnread(ctx context.Context, userID int64, category string, limit int) error
	ListUnread(ctx context.Context, userID int64, limit int) ([]domain.UnreadPost, error)
	ClearUnread(ctx context.Context, userID int64) error
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type Mailbox struct {
	store    Store
	capacity int
	now      func() time.Time
	log      *slog.Logger
}

func New(store Store, capacity int, log *slog.Logger) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Mailbox{
		store:    store,
		capacity: capacity,
		now:      time.Now,
		log:      log,
	}
}

func (m *Mailbox) Capacity() int {
	return m.capacity
}

// Enqueue appends entry to the (userID, category) queue stamped with the
// current time. It does not deduplicate.
func (m *Mailbox) Enqueue(ctx context.Context, userID int64, category string, entry domain.Entry) error {
	return m.store.EnqueueUnread(ctx, domain.NewUnreadPost(userID, category, entry, m.now().UTC()))
}

// Trim evicts all but the newest Capacity posts of the (userID, category) pair.
// Call it once per pair after a batch of enqueues.
func (m *Mailbox) Trim(ctx context.Context, userID int64, category string) error {
	return m.store.TrimUnread(ctx, userID, category, m.capacity)
}

// List returns up to limit posts newest first. Storage errors are logged and
// yield an empty list.
func (m *Mailbox) List(ctx context.Context, userID int64, limit int) []domain.UnreadPost {
	posts, err := m.store.ListUnread(ctx, userID, limit)
	if err != nil {
		m.log.ErrorContext(ctx, "Failed to list unread posts",
			"error", err,
			"userID", userID,
			"limit", limit)

		return nil
	}

	return posts
}

// Clear drops every unread post of userID. Only call it after the summary of
// those posts has been delivered.
func (m *Mailbox) Clear(ctx context.Context, userID int64) error {
	return m.store.ClearUnread(ctx, userID)
}

// Count returns the number of unread posts, 0 when storage fails.
func (m *Mailbox) Count(ctx context.Context, userID int64) int {
	count, err := m.store.CountUnread(ctx, userID)
	if err != nil {
		m.log.ErrorContext(ctx, "Failed to count unread posts",
			"error", err,
			"userID", userID)

		return 0
	}

	return count
}
