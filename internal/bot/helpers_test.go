package bot

import (
	"strings"
	"testing"
	"time"

	"feedybot/internal/domain"
	"feedybot/internal/poller"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantCommand string
		wantArgs    string
	}{
		{"Bare command", "/help", "help", ""},
		{"Command with args", "/addfeed Tech News https://example.com/rss", "addfeed", "Tech News https://example.com/rss"},
		{"Command with bot name", "/Summary@feedy_bot", "summary", ""},
		{"Args on next line", "/addkeyword\nrust", "addkeyword", "rust"},
		{"Not a command", "hello", "", ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			command, args := parseCommand(test.text)

			if command != test.wantCommand || args != test.wantArgs {
				t.Fatalf("parseCommand(%q) = (%q, %q), want (%q, %q)",
					test.text, command, args, test.wantCommand, test.wantArgs)
			}
		})
	}
}

func TestSanitizeCategory(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Tech   News ", "Tech News"},
		{"R&D - Labs!", "R&D - Labs"},
		{"<script>", "script"},
		{"!!!", ""},
		{strings.Repeat("a", 40), strings.Repeat("a", 32)},
	}

	for _, test := range tests {
		if got := sanitizeCategory(test.input); got != test.want {
			t.Errorf("sanitizeCategory(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestParseCategories(t *testing.T) {
	got := parseCategories("tech, news,, tech ,!!")
	if len(got) != 2 || got[0] != "tech" || got[1] != "news" {
		t.Fatalf("Unexpected categories %v", got)
	}
}

func TestSplitCategoryAndURL(t *testing.T) {
	category, url := splitCategoryAndURL("Tech News https://example.com/rss.xml")
	if category != "Tech News" || url != "https://example.com/rss.xml" {
		t.Fatalf("Unexpected split (%q, %q)", category, url)
	}

	category, url = splitCategoryAndURL("Tech")
	if category != "Tech" || url != "" {
		t.Fatalf("Unexpected split without URL (%q, %q)", category, url)
	}
}

func TestCategoryListTextMarksSubscriptions(t *testing.T) {
	text := categoryListText([]string{"tech", "news"}, []string{"tech"})

	if !strings.Contains(text, "✅ *tech*") || !strings.Contains(text, "⬜ news") {
		t.Fatalf("Unexpected category list:\n%s", text)
	}

	if strings.Index(text, "news") > strings.Index(text, "tech") {
		t.Fatalf("Expected categories sorted by name:\n%s", text)
	}
}

func TestFeedListTextLimitsEntries(t *testing.T) {
	feeds := make([]string, 12)
	for i := range feeds {
		feeds[i] = "https://example.com/" + string(rune('a'+i))
	}

	text := feedListText("tech", feeds)

	if !strings.Contains(text, "10\\. ") || strings.Contains(text, "11\\. ") {
		t.Fatalf("Expected exactly 10 listed feeds:\n%s", text)
	}

	if !strings.Contains(text, "and 2 more") {
		t.Fatalf("Expected the hidden feed count:\n%s", text)
	}
}

func TestStatsText(t *testing.T) {
	text := statsText(&domain.SubscriberStats{
		Subscriber: domain.Subscriber{
			ID:         1,
			Username:   "reader_1",
			Categories: []string{"tech"},
			Keywords:   []string{"go", "rust"},
			CreatedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		FeedCount:   3,
		UnreadCount: 7,
	})

	for _, want := range []string{"reader\\_1", "1 subscribed", "3 total", "7 pending", "go, rust", "2024\\-03\\-01"} {
		if !strings.Contains(text, want) {
			t.Fatalf("Expected %q in stats:\n%s", want, text)
		}
	}
}

func TestCheckResultText(t *testing.T) {
	text := checkResultText(poller.Result{Category: "tech", FeedsChecked: 3, FeedsFailed: 1, NewEntries: 4})

	if !strings.Contains(text, "tech") || !strings.Contains(text, "Checked 3 feeds, 1 failed, 4 new posts") {
		t.Fatalf("Unexpected check result:\n%s", text)
	}
}

func TestSetupKeyboard(t *testing.T) {
	keyboard := getSetupKeyboard([]string{"tech", "news"}, []string{"news"})

	rows := keyboard.InlineKeyboard
	if len(rows) != 3 {
		t.Fatalf("Expected 2 category rows and a done row, got %d", len(rows))
	}

	if rows[0][0].Text != "⬜ tech" || rows[1][0].Text != "✅ news" {
		t.Fatalf("Unexpected buttons %q %q", rows[0][0].Text, rows[1][0].Text)
	}

	category, ok := setupToggleCategory(rows[1][0].CallbackData)
	if !ok || category != "news" {
		t.Fatalf("Unexpected toggle data %q", rows[1][0].CallbackData)
	}
}
