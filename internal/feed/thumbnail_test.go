package feed

import (
	"testing"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

func mediaExtensions(name string, url string) ext.Extensions {
	return ext.Extensions{
		"media": {
			name: {{Name: name, Attrs: map[string]string{"url": url}}},
		},
	}
}

func TestThumbnailStrategies(t *testing.T) {
	tests := []struct {
		name string
		item *gofeed.Item
		want string
	}{
		{
			name: "Nil item",
			item: nil,
			want: "",
		},
		{
			name: "Media content",
			item: &gofeed.Item{Extensions: mediaExtensions("content", "https://img/content.jpg")},
			want: "https://img/content.jpg",
		},
		{
			name: "Media thumbnail",
			item: &gofeed.Item{Extensions: mediaExtensions("thumbnail", "https://img/thumb.jpg")},
			want: "https://img/thumb.jpg",
		},
		{
			name: "Media group content",
			item: &gofeed.Item{Extensions: ext.Extensions{
				"media": {
					"group": {{
						Name: "group",
						Children: map[string][]ext.Extension{
							"content": {{Name: "content", Attrs: map[string]string{"url": "https://img/group.jpg"}}},
						},
					}},
				},
			}},
			want: "https://img/group.jpg",
		},
		{
			name: "Image enclosure",
			item: &gofeed.Item{Enclosures: []*gofeed.Enclosure{
				{URL: "https://audio/a.mp3", Type: "audio/mpeg"},
				{URL: "https://img/enclosure.png", Type: "image/png"},
			}},
			want: "https://img/enclosure.png",
		},
		{
			name: "Inline image link",
			item: &gofeed.Item{Links: []string{"https://example.com/post", "https://img/link.webp?size=2"}},
			want: "https://img/link.webp?size=2",
		},
		{
			name: "HTML body image",
			item: &gofeed.Item{Content: `<p>text</p><img alt="x" src="https://img/body.gif">`},
			want: "https://img/body.gif",
		},
		{
			name: "Media content wins over body image",
			item: &gofeed.Item{
				Extensions:  mediaExtensions("content", "https://img/content.jpg"),
				Description: `<img src="https://img/body.gif">`,
			},
			want: "https://img/content.jpg",
		},
		{
			name: "Nothing",
			item: &gofeed.Item{Description: "no images here"},
			want: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Thumbnail(test.item); got != test.want {
				t.Fatalf("unexpected thumbnail: got %q want %q", got, test.want)
			}
		})
	}
}

func TestIsValidURL(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://example.com/feed", true},
		{"http://example.com", true},
		{"ftp://example.com", false},
		{"example.com/feed", false},
		{"", false},
	}

	for _, test := range tests {
		if got := IsValidURL(test.raw); got != test.want {
			t.Fatalf("IsValidURL(%q) = %v, want %v", test.raw, got, test.want)
		}
	}
}
