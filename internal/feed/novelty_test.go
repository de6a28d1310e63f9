package feed_test

import (
	"feedybot/internal/domain"
	"feedybot/internal/feed"
	"testing"
)

func entries(ids ...string) []domain.Entry {
	result := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		result = append(result, domain.Entry{ID: id, Title: "T-" + id})
	}

	return result
}

func ids(entries []domain.Entry) []string {
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.ID)
	}

	return result
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func TestSelectNew(t *testing.T) {
	tests := []struct {
		name          string
		entries       []domain.Entry
		lastID        string
		hasWatermark  bool
		wantFresh     []string
		wantWatermark string
	}{
		{
			name:          "First poll marks only newest",
			entries:       entries("b", "a"),
			wantFresh:     []string{"b"},
			wantWatermark: "b",
		},
		{
			name:          "Watermark at newest yields nothing",
			entries:       entries("b", "a"),
			lastID:        "b",
			hasWatermark:  true,
			wantFresh:     []string{},
			wantWatermark: "b",
		},
		{
			name:          "Entries above watermark are new",
			entries:       entries("c", "b", "a"),
			lastID:        "b",
			hasWatermark:  true,
			wantFresh:     []string{"c"},
			wantWatermark: "c",
		},
		{
			name:          "Fresh entries are ordered oldest first",
			entries:       entries("e", "d", "c", "b"),
			lastID:        "b",
			hasWatermark:  true,
			wantFresh:     []string{"c", "d", "e"},
			wantWatermark: "e",
		},
		{
			name:          "Missing watermark makes whole fetch new",
			entries:       entries("z", "y", "x"),
			lastID:        "gone",
			hasWatermark:  true,
			wantFresh:     []string{"x", "y", "z"},
			wantWatermark: "z",
		},
		{
			name:          "Watermark at oldest fetched entry",
			entries:       entries("c", "b", "a"),
			lastID:        "a",
			hasWatermark:  true,
			wantFresh:     []string{"b", "c"},
			wantWatermark: "c",
		},
		{
			name:         "Empty fetch",
			entries:      nil,
			lastID:       "a",
			hasWatermark: true,
			wantFresh:    []string{},
		},
		{
			name:      "Empty fetch without watermark",
			wantFresh: []string{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fresh, watermark := feed.SelectNew(test.entries, test.lastID, test.hasWatermark)

			if got := ids(fresh); !equalIDs(got, test.wantFresh) {
				t.Fatalf("unexpected fresh entries: got %v want %v", got, test.wantFresh)
			}

			if watermark != test.wantWatermark {
				t.Fatalf("unexpected watermark: got %q want %q", watermark, test.wantWatermark)
			}
		})
	}
}

func TestSelectNewSequence(t *testing.T) {
	fetch := entries("b", "a")

	fresh, watermark := feed.SelectNew(fetch, "", false)
	if !equalIDs(ids(fresh), []string{"b"}) || watermark != "b" {
		t.Fatalf("unexpected first poll: fresh %v watermark %q", ids(fresh), watermark)
	}

	fresh, _ = feed.SelectNew(fetch, watermark, true)
	if len(fresh) != 0 {
		t.Fatalf("expected second poll to be empty, got %v", ids(fresh))
	}

	fresh, watermark = feed.SelectNew(entries("c", "b", "a"), "b", true)
	if !equalIDs(ids(fresh), []string{"c"}) || watermark != "c" {
		t.Fatalf("unexpected third poll: fresh %v watermark %q", ids(fresh), watermark)
	}
}
