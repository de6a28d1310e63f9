package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewWithoutAPIKey(t *testing.T) {
	s, err := New(Config{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil summarizer, got %T", s)
	}
}

func TestNewWithAPIKey(t *testing.T) {
	s, err := New(Config{APIKey: "key", BaseURL: "http://localhost:1234/v1", Model: "local"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	openAI, ok := s.(*OpenAISummarizer)
	if !ok {
		t.Fatalf("unexpected summarizer type %T", s)
	}
	if openAI.model != "local" || openAI.flex {
		t.Fatalf("unexpected summarizer settings: model=%q flex=%v", openAI.model, openAI.flex)
	}
	if openAI.timeout != defaultTimeout {
		t.Fatalf("unexpected timeout %v", openAI.timeout)
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Summarize(context.Background(), []Post{{Title: "x"}})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBuildPromptGroupsByCategory(t *testing.T) {
	posts := []Post{
		{Title: "Go 1.22", Category: "tech", Link: "https://go.dev"},
		{Title: "Elections", Category: "news", Summary: "Results are in"},
		{Title: "Rust 2.0", Category: "tech", Summary: strings.Repeat("x", 300)},
	}

	prompt := BuildPrompt(posts)

	if !strings.Contains(prompt, "summary of 3 recent posts") {
		t.Fatalf("prompt misses the post count:\n%s", prompt)
	}

	tech := strings.Index(prompt, "**tech** (2 posts)")
	news := strings.Index(prompt, "**news** (1 posts)")
	if tech < 0 || news < 0 || tech > news {
		t.Fatalf("unexpected category grouping:\n%s", prompt)
	}

	if !strings.Contains(prompt, "2. Rust 2.0\n   "+strings.Repeat("x", 200)+"\n") {
		t.Fatalf("expected post summary truncated to 200 characters:\n%s", prompt)
	}

	if strings.Contains(prompt, strings.Repeat("x", 201)) {
		t.Fatalf("post summary was not truncated")
	}

	if !strings.Contains(prompt, "   Link: https://go.dev\n") {
		t.Fatalf("prompt misses the link:\n%s", prompt)
	}
}
