// Package render turns entries and summaries into Telegram MarkdownV2 messages.
package render

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"feedybot/internal/domain"
	"feedybot/internal/feed"

	"github.com/araddon/dateparse"
)

const (
	postTitleMaxChars       = 256
	postDescriptionMaxChars = 200
	summaryTextMaxChars     = 3500
	publishedLayout         = "Jan 02, 2006 15:04 UTC"
)

// Post renders a freshly delivered entry.
func Post(category string, entry domain.Entry) domain.Message {
	return entryMessage("📰", "", category, entry)
}

// Preview renders the latest entry of a feed after a subscription.
func Preview(category string, entry domain.Entry) domain.Message {
	return entryMessage("👀", "Latest from "+category, category, entry)
}

func entryMessage(icon string, header string, category string, entry domain.Entry) domain.Message {
	var b strings.Builder

	if header != "" {
		fmt.Fprintf(&b, "_%s_\n\n", EscapeV2(header))
	}

	title := EscapeV2(Truncate(entry.Title, postTitleMaxChars))
	if feed.IsValidURL(entry.Link) {
		fmt.Fprintf(&b, "%s *[%s](%s)*\n\n", icon, title, escapeLinkURL(entry.Link))
	} else {
		fmt.Fprintf(&b, "%s *%s*\n\n", icon, title)
	}

	if description := Truncate(entry.Summary, postDescriptionMaxChars); description != "" {
		b.WriteString(EscapeV2(description))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "🏷 %s", EscapeV2(category))
	if entry.Published != "" {
		fmt.Fprintf(&b, " · 📅 %s", EscapeV2(FormatPublished(entry.Published)))
	}

	msg := domain.Message{Text: b.String()}
	if feed.IsValidURL(entry.Thumbnail) {
		msg.ImageURL = entry.Thumbnail
	}

	return msg
}

// Summary renders a generated digest with per-category statistics.
func Summary(s domain.Summary) domain.Message {
	var b strings.Builder

	b.WriteString("📰 *Your feed summary*\n\n")
	b.WriteString(EscapeV2(Truncate(s.Text, summaryTextMaxChars)))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "📊 *Total posts:* %d\n", s.TotalPosts)
	fmt.Fprintf(&b, "📂 *Categories:* %d\n", len(s.Categories))

	categories := slices.SortedFunc(maps.Keys(s.Categories), func(a, b string) int {
		if c := cmp.Compare(s.Categories[b], s.Categories[a]); c != 0 {
			return c
		}

		return cmp.Compare(a, b)
	})

	for _, category := range categories {
		fmt.Fprintf(&b, "• %s: %d\n", EscapeV2(category), s.Categories[category])
	}

	return domain.Message{Text: b.String()}
}

// FormatPublished renders a feed date in a uniform layout, returning raw
// unchanged when it cannot be parsed.
func FormatPublished(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}

	return t.In(time.UTC).Format(publishedLayout)
}

// Truncate shortens s to at most maxChars runes, ending with "..." when cut.
func Truncate(s string, maxChars int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	runes := []rune(s)
	cut := max(maxChars-3, 0)

	return strings.TrimSpace(string(runes[:cut])) + "..."
}
