package feed

import (
	"strings"

	"feedybot/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

func entryFromItem(item *gofeed.Item) domain.Entry {
	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	published := item.Published
	if strings.TrimSpace(published) == "" {
		published = item.Updated
	}

	return domain.NewEntry(
		item.GUID,
		StripHTML(item.Title),
		item.Link,
		StripHTML(summary),
		published,
		Thumbnail(item),
	)
}

// StripHTML returns the text content of an HTML fragment with whitespace
// collapsed and entities decoded.
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	text := s
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
		text = doc.Text()
	}

	return strings.Join(strings.Fields(text), " ")
}
