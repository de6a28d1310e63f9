package delivery

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"feedybot/internal/domain"
)

type SubscriberGetter interface {
	GetSubscriber(ctx context.Context, userID int64) (*domain.Subscriber, error)
}

// KeywordFilter decides whether a post reaches a subscriber. When keywords
// cannot be loaded the post is shown, unless the filter is built fail-closed.
type KeywordFilter struct {
	store      SubscriberGetter
	failClosed bool
	log        *slog.Logger
}

func NewKeywordFilter(store SubscriberGetter, failClosed bool, log *slog.Logger) *KeywordFilter {
	return &KeywordFilter{
		store:      store,
		failClosed: failClosed,
		log:        log,
	}
}

// Matcher reports whether a post with the given title and summary passes.
type Matcher func(title string, summary string) bool

// ForSubscriber loads the keywords of userID once and returns a matcher for
// them.
func (f *KeywordFilter) ForSubscriber(ctx context.Context, userID int64) Matcher {
	s, err := f.store.GetSubscriber(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return matchAll
	case err != nil:
		f.log.ErrorContext(ctx, "Failed to load subscriber keywords",
			"error", err,
			"userID", userID,
			"failClosed", f.failClosed)

		if f.failClosed {
			return matchNone
		}

		return matchAll
	}

	keywords := s.Keywords

	return func(title string, summary string) bool {
		return MatchKeywords(keywords, title, summary)
	}
}

func (f *KeywordFilter) Allows(ctx context.Context, userID int64, title string, summary string) bool {
	return f.ForSubscriber(ctx, userID)(title, summary)
}

// MatchKeywords passes everything for an empty keyword set, otherwise at least
// one keyword must be a case-insensitive substring of title and summary.
func MatchKeywords(keywords []string, title string, summary string) bool {
	var content string

	checked := 0
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}

		if checked == 0 {
			content = strings.ToLower(title + " " + summary)
		}
		checked++

		if strings.Contains(content, keyword) {
			return true
		}
	}

	return checked == 0
}

func matchAll(string, string) bool { return true }

func matchNone(string, string) bool { return false }
