package poller

import (
	"context"
	"errors"
	"strings"
	"testing"

	"feedybot/internal/domain"
)

func TestSendLatestPreview(t *testing.T) {
	const url = "https://example.com/feed"

	store := newFakeStore(domain.FeedSource{Category: "tech", URL: url})
	extractor := &fakeExtractor{feeds: map[string][]domain.Entry{url: entries("b", "a")}}
	notifier := &fakeNotifier{}
	p := newTestPoller(store, extractor, &fakeDispatcher{}, notifier)

	if err := p.SendLatestPreview(context.Background(), 1, "tech", url); err != nil {
		t.Fatalf("SendLatestPreview() error: %v", err)
	}

	if notifier.count() != 1 || !strings.Contains(notifier.messages[0].Text, "Post b") {
		t.Fatalf("expected a preview of the newest entry, got %+v", notifier.messages)
	}

	if len(store.watermarks) != 0 {
		t.Fatalf("preview must not move the watermark")
	}
}

func TestSendLatestPreviewEmptyFeed(t *testing.T) {
	p := newTestPoller(newFakeStore(), &fakeExtractor{}, &fakeDispatcher{}, &fakeNotifier{})

	if err := p.SendLatestPreview(context.Background(), 1, "tech", "https://example.com"); !errors.Is(err, ErrNoEntries) {
		t.Fatalf("expected ErrNoEntries, got %v", err)
	}
}

func TestSendCategoryPreviewsCountsSent(t *testing.T) {
	store := newFakeStore(
		domain.FeedSource{Category: "tech", URL: "https://a.example.com"},
		domain.FeedSource{Category: "tech", URL: "https://empty.example.com"},
		domain.FeedSource{Category: "news", URL: "https://b.example.com"},
		domain.FeedSource{Category: "sport", URL: "https://c.example.com"},
	)
	extractor := &fakeExtractor{feeds: map[string][]domain.Entry{
		"https://a.example.com": entries("a"),
		"https://b.example.com": entries("b"),
		"https://c.example.com": entries("c"),
	}}
	notifier := &fakeNotifier{}
	p := newTestPoller(store, extractor, &fakeDispatcher{}, notifier)

	sent, err := p.SendCategoryPreviews(context.Background(), 1, []string{"tech", "news"})
	if err != nil {
		t.Fatalf("SendCategoryPreviews() error: %v", err)
	}

	if sent != 2 || notifier.count() != 2 {
		t.Fatalf("expected 2 previews, got sent=%d pushed=%d", sent, notifier.count())
	}
}

func TestSchedulePreviewsOutlivesCaller(t *testing.T) {
	store := newFakeStore(domain.FeedSource{Category: "tech", URL: "https://a.example.com"})
	extractor := &fakeExtractor{feeds: map[string][]domain.Entry{"https://a.example.com": entries("a")}}
	notifier := &fakeNotifier{}
	p := newTestPoller(store, extractor, &fakeDispatcher{}, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	p.SchedulePreviews(ctx, 1, []string{"tech"})
	cancel()
	p.Wait()

	if notifier.count() != 1 {
		t.Fatalf("expected the preview to be sent, got %d", notifier.count())
	}
}
