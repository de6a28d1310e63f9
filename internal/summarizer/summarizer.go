package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrUnavailable is returned when no summarization backend is configured or
// the backend could not produce a summary.
var ErrUnavailable = errors.New("summarization unavailable")

const postSummaryLimit = 200

// Post is a single unread post handed to the model.
type Post struct {
	Title    string
	Summary  string
	Link     string
	Category string
}

// Summarizer produces a single digest text for a batch of posts.
type Summarizer interface {
	Summarize(ctx context.Context, posts []Post) (string, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// New builds the OpenAI backed summarizer. It returns ErrUnavailable when no
// API key is configured.
func New(cfg Config) (Summarizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is empty: %w", ErrUnavailable)
	}

	return NewOpenAISummarizer(cfg), nil
}

// Unavailable is used when New fails, every call returns ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Summarize(context.Context, []Post) (string, error) {
	return "", ErrUnavailable
}

// BuildPrompt groups posts by category in order of first appearance.
func BuildPrompt(posts []Post) string {
	var order []string
	grouped := make(map[string][]Post)
	for _, post := range posts {
		if _, ok := grouped[post.Category]; !ok {
			order = append(order, post.Category)
		}
		grouped[post.Category] = append(grouped[post.Category], post)
	}

	b := strings.Builder{}
	fmt.Fprintf(&b, "Please provide a clear, organized summary of %d recent posts grouped by category. ", len(posts))
	b.WriteString("For each post, include the title and a brief key point.\n")

	for _, category := range order {
		categoryPosts := grouped[category]
		fmt.Fprintf(&b, "\n**%s** (%d posts):\n", category, len(categoryPosts))

		for i, post := range categoryPosts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, post.Title)
			if summary := truncate(strings.TrimSpace(post.Summary), postSummaryLimit); summary != "" {
				fmt.Fprintf(&b, "   %s\n", summary)
			}
			if post.Link != "" {
				fmt.Fprintf(&b, "   Link: %s\n", post.Link)
			}
		}
	}

	b.WriteString("\nPlease create a concise summary that highlights the most important points and trends.")

	return b.String()
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	return string([]rune(s)[:limit])
}
