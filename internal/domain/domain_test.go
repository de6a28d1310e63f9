package domain_test

import (
	"feedybot/internal/domain"
	"testing"
)

func TestNewEntryIDFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		guid   string
		title  string
		link   string
		wantID string
	}{
		{"GUID wins", " guid-1 ", "Title", "https://example.com/1", "guid-1"},
		{"Link when GUID is empty", "", "Title", "https://example.com/1", "https://example.com/1"},
		{"Title when GUID and link are empty", "", "Title", "", "Title"},
		{"Unknown when everything is empty", "", "", "", "unknown"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := domain.NewEntry(test.guid, test.title, test.link, "", "", "")
			if got.ID != test.wantID {
				t.Fatalf("unexpected id: got %q want %q", got.ID, test.wantID)
			}
		})
	}
}

func TestNewEntryDefaultsTitle(t *testing.T) {
	got := domain.NewEntry("id", "  ", "https://example.com", " summary ", "", "")

	if got.Title != "No title" {
		t.Fatalf("expected fallback title, got %q", got.Title)
	}

	if got.Summary != "summary" {
		t.Fatalf("expected trimmed summary, got %q", got.Summary)
	}
}
