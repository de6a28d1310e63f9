package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"feedybot/internal/domain"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), slog.Default())
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	return db
}

func TestWatermarkRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if _, ok, err := db.GetWatermark(ctx, "https://example.com/feed"); err != nil || ok {
		t.Fatalf("expected no watermark, got ok = %v err = %v", ok, err)
	}

	if err := db.SetWatermark(ctx, "https://example.com/feed", "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.SetWatermark(ctx, "https://example.com/feed", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := db.GetWatermark(ctx, "https://example.com/feed")
	if err != nil || !ok {
		t.Fatalf("expected watermark, got ok = %v err = %v", ok, err)
	}

	if got != "b" {
		t.Fatalf("unexpected watermark: %q", got)
	}
}

func TestAddFeedCreatesCategoryAndRejectsSecondCategory(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if err := db.AddFeed(ctx, "tech", "https://example.com/feed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := db.AddFeed(ctx, "tech", "https://example.com/feed"); err != nil {
		t.Fatalf("expected re-adding to same category to be a no-op, got %v", err)
	}

	if err := db.AddFeed(ctx, "news", "https://example.com/feed"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	categories, err := db.ListCategories(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(categories) != 2 || categories[0] != "news" || categories[1] != "tech" {
		t.Fatalf("unexpected categories: %v", categories)
	}

	sources, err := db.ListFeedSources(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sources) != 1 || sources[0].Category != "tech" {
		t.Fatalf("unexpected sources: %v", sources)
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if err := db.AddFeed(ctx, "tech", "https://example.com/feed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Subscribe(ctx, 1, "alice", "tech"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := db.DeleteCategory(ctx, "tech"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	urls, err := db.ListFeedSourcesByCategory(ctx, "tech")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("expected feeds to be removed, got %v", urls)
	}

	ids, err := db.ListSubscribersByCategory(ctx, "tech")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected subscriptions to be removed, got %v", ids)
	}

	if err = db.DeleteCategory(ctx, "tech"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscriberLifecycle(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for _, c := range []string{"tech", "news", "sport"} {
		if err := db.AddCategory(ctx, c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if _, err := db.GetSubscriber(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := db.SetSubscriptions(ctx, 7, "bob", []string{"tech", "news"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.SetSubscriptions(ctx, 7, "bob", []string{"missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown category, got %v", err)
	}
	if err := db.AddKeyword(ctx, 7, "  RUST "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.AddKeyword(ctx, 7, "rust"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.AddKeyword(ctx, 8, "go"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}

	s, err := db.GetSubscriber(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(s.Categories) != 2 || s.Categories[0] != "news" || s.Categories[1] != "tech" {
		t.Fatalf("unexpected categories: %v", s.Categories)
	}
	if len(s.Keywords) != 1 || s.Keywords[0] != "rust" {
		t.Fatalf("unexpected keywords: %v", s.Keywords)
	}
	if s.CreatedAt.IsZero() {
		t.Fatalf("expected registration time")
	}

	if err = db.Unsubscribe(ctx, 7, "news"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, err := db.ListSubscribersByCategory(ctx, "news")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no subscribers, got %v", ids)
	}

	active, err := db.ListActiveSubscribers(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 || active[0] != 7 {
		t.Fatalf("unexpected active subscribers: %v", active)
	}
}

func TestTrimUnreadKeepsNewest(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if err := db.AddCategory(ctx, "tech"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Subscribe(ctx, 1, "alice", "tech"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := range 15 {
		post := domain.UnreadPost{
			UserID:    1,
			Category:  "tech",
			Title:     fmt.Sprintf("post-%02d", i),
			Link:      fmt.Sprintf("https://example.com/%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.EnqueueUnread(ctx, post); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	other := domain.UnreadPost{UserID: 1, Category: "news", Title: "other", Link: "x", CreatedAt: base}
	if err := db.EnqueueUnread(ctx, other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := db.TrimUnread(ctx, 1, "tech", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := db.CountUnread(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 11 {
		t.Fatalf("expected 10 tech posts and 1 news post, got %d", count)
	}

	posts, err := db.ListUnread(ctx, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, post := range posts {
		want := fmt.Sprintf("post-%02d", 14-i)
		if post.Title != want {
			t.Fatalf("unexpected post at %d: got %q want %q", i, post.Title, want)
		}
	}

	if err = db.ClearUnread(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count, err = db.CountUnread(ctx, 1); err != nil || count != 0 {
		t.Fatalf("expected empty mailbox, got count = %d err = %v", count, err)
	}
}

func TestTrimUnreadBreaksTiesByInsertionOrder(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if err := db.AddCategory(ctx, "tech"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Subscribe(ctx, 1, "alice", "tech"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for _, title := range []string{"a", "b", "c"} {
		post := domain.UnreadPost{UserID: 1, Category: "tech", Title: title, Link: title, CreatedAt: at}
		if err := db.EnqueueUnread(ctx, post); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := db.TrimUnread(ctx, 1, "tech", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	posts, err := db.ListUnread(ctx, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(posts) != 2 || posts[0].Title != "c" || posts[1].Title != "b" {
		t.Fatalf("unexpected posts after trim: %+v", posts)
	}
}

func TestGetSubscriberStats(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if err := db.AddFeed(ctx, "tech", "https://example.com/a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.AddFeed(ctx, "tech", "https://example.com/b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.AddFeed(ctx, "news", "https://example.com/c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.Subscribe(ctx, 1, "alice", "tech"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	post := domain.UnreadPost{UserID: 1, Category: "tech", Title: "t", Link: "l"}
	if err := db.EnqueueUnread(ctx, post); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := db.GetSubscriberStats(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.FeedCount != 2 || stats.UnreadCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSeedFeeds(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	defaults := map[string][]string{
		"news": {"https://example.com/a"},
		"tech": {"https://example.com/a", "https://example.com/b"},
	}

	added, err := db.SeedFeeds(ctx, defaults)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 feeds to be added, got %d", added)
	}

	added, err = db.SeedFeeds(ctx, defaults)
	if err != nil || added != 0 {
		t.Fatalf("expected seeding again to add nothing, got %d err = %v", added, err)
	}

	urls, err := db.ListFeedSourcesByCategory(ctx, "tech")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 1 || urls[0] != "https://example.com/b" {
		t.Fatalf("unexpected tech feeds: %v", urls)
	}
}
