package feed

import (
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type thumbnailStrategy func(item *gofeed.Item) string

// Tried in order, first non-empty URL wins.
var thumbnailStrategies = []thumbnailStrategy{
	mediaContentThumbnail,
	mediaThumbnail,
	imageEnclosureThumbnail,
	inlineImageLinkThumbnail,
	htmlBodyThumbnail,
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// Thumbnail picks a representative image URL for item, or "" when none exists.
func Thumbnail(item *gofeed.Item) string {
	if item == nil {
		return ""
	}

	for _, strategy := range thumbnailStrategies {
		if u := strings.TrimSpace(strategy(item)); u != "" {
			return u
		}
	}

	return ""
}

func mediaContentThumbnail(item *gofeed.Item) string {
	return firstMediaURL(item, "content")
}

func mediaThumbnail(item *gofeed.Item) string {
	return firstMediaURL(item, "thumbnail")
}

func firstMediaURL(item *gofeed.Item, name string) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}

	if u := firstAttrURL(media[name]); u != "" {
		return u
	}

	for _, group := range media["group"] {
		if u := firstAttrURL(group.Children[name]); u != "" {
			return u
		}
	}

	return ""
}

func firstAttrURL(extensions []ext.Extension) string {
	for _, e := range extensions {
		if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
			return u
		}
	}

	return ""
}

func imageEnclosureThumbnail(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}

		if strings.HasPrefix(strings.ToLower(enclosure.Type), "image/") {
			return enclosure.URL
		}
	}

	return ""
}

func inlineImageLinkThumbnail(item *gofeed.Item) string {
	if item.Image != nil && strings.TrimSpace(item.Image.URL) != "" {
		return item.Image.URL
	}

	for _, link := range item.Links {
		if hasImageExtension(link) {
			return link
		}
	}

	return ""
}

func htmlBodyThumbnail(item *gofeed.Item) string {
	for _, body := range []string{item.Description, item.Content} {
		if !strings.Contains(body, "<img") {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			continue
		}

		if src, ok := doc.Find("img[src]").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			return src
		}
	}

	return ""
}

func hasImageExtension(raw string) bool {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}

	_, ok := imageExtensions[strings.ToLower(path.Ext(raw))]

	return ok
}
