package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const (
	fallbackEntryID    = "unknown"
	fallbackEntryTitle = "No title"
)

type FeedSource struct {
	Category string
	URL      string
}

type Entry struct {
	ID        string
	Title     string
	Link      string
	Summary   string
	Published string
	Thumbnail string
}

// NewEntry trims every field and applies the id and title fallbacks.
func NewEntry(guid, title, link, summary, published, thumbnail string) Entry {
	guid = strings.TrimSpace(guid)
	title = strings.TrimSpace(title)
	link = strings.TrimSpace(link)

	id := guid
	switch {
	case id != "":
	case link != "":
		id = link
	case title != "":
		id = title
	default:
		id = fallbackEntryID
	}

	if title == "" {
		title = fallbackEntryTitle
	}

	return Entry{
		ID:        id,
		Title:     title,
		Link:      link,
		Summary:   strings.TrimSpace(summary),
		Published: strings.TrimSpace(published),
		Thumbnail: strings.TrimSpace(thumbnail),
	}
}

type Subscriber struct {
	ID         int64
	Username   string
	Categories []string
	Keywords   []string
	CreatedAt  time.Time
}

type UnreadPost struct {
	ID        int64
	UserID    int64
	Category  string
	Title     string
	Link      string
	Published string
	Summary   string
	CreatedAt time.Time
}

func NewUnreadPost(userID int64, category string, entry Entry, createdAt time.Time) UnreadPost {
	return UnreadPost{
		UserID:    userID,
		Category:  category,
		Title:     entry.Title,
		Link:      entry.Link,
		Published: entry.Published,
		Summary:   entry.Summary,
		CreatedAt: createdAt,
	}
}

type SubscriberStats struct {
	Subscriber  Subscriber
	FeedCount   int
	UnreadCount int
}

// Message is a rendered notification ready for a chat transport.
type Message struct {
	Text     string
	ImageURL string
}

// Summary is a generated digest of a subscriber's unread posts.
type Summary struct {
	Text       string
	TotalPosts int
	Categories map[string]int
}
