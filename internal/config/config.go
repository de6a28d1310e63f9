package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token        string  `env:"TOKEN,required,notEmpty"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`
	DBPath       string  `env:"DB_PATH"                 envDefault:"feedybot.sqlite"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL"`

	PollInterval     time.Duration `env:"POLL_INTERVAL"      envDefault:"15m"`
	DailySummaryHour int           `env:"DAILY_SUMMARY_HOUR" envDefault:"9"`

	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT"   envDefault:"30s"`
	SourcePacing   time.Duration `env:"SOURCE_PACING"   envDefault:"1s"`
	PreviewPacing  time.Duration `env:"PREVIEW_PACING"  envDefault:"500ms"`
	SummaryTimeout time.Duration `env:"SUMMARY_TIMEOUT" envDefault:"2m"`

	PushTimeout    time.Duration `env:"PUSH_TIMEOUT"    envDefault:"30s"`

	// DEFAULT_CATEGORIES="Tech=https://a.example/rss https://b.example/rss;News=https://c.example/rss"
	DefaultCategories map[string]string `env:"DEFAULT_CATEGORIES" envSeparator:";" envKeyValSeparator:"="`
	InitialPosts      int               `env:"INITIAL_POSTS"      envDefault:"10"`

	UnreadLimit             int  `env:"UNREAD_LIMIT"               envDefault:"10"`
	SummaryPostLimit        int  `env:"SUMMARY_POST_LIMIT"         envDefault:"50"`
	KeywordFilterFailClosed bool `env:"KEYWORD_FILTER_FAIL_CLOSED"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

//nolint:gochecknoglobals // Compiled once, never modified.
var categoryName = regexp.MustCompile(`^[a-zA-Z0-9&-]+( [a-zA-Z0-9&-]+)*$`)

const maxCategoryNameLen = 32

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.DailySummaryHour < 0 || c.DailySummaryHour > 23 {
		return fmt.Errorf("DAILY_SUMMARY_HOUR must be in [0, 23] (got %d)", c.DailySummaryHour)
	}

	if c.PollInterval < time.Minute {
		return fmt.Errorf("POLL_INTERVAL must be at least 1m (got %s)", c.PollInterval)
	}

	if c.UnreadLimit <= 0 {
		return fmt.Errorf("UNREAD_LIMIT must be positive (got %d)", c.UnreadLimit)
	}

	if c.SummaryPostLimit <= 0 {
		return fmt.Errorf("SUMMARY_POST_LIMIT must be positive (got %d)", c.SummaryPostLimit)
	}

	if c.InitialPosts < 0 {
		return fmt.Errorf("INITIAL_POSTS must not be negative (got %d)", c.InitialPosts)
	}

	if c.PushTimeout <= 0 {
		return fmt.Errorf("PUSH_TIMEOUT must be positive (got %s)", c.PushTimeout)
	}

	for category, urls := range c.DefaultFeeds() {
		if !categoryName.MatchString(category) || len(category) > maxCategoryNameLen {
			return fmt.Errorf("DEFAULT_CATEGORIES has an invalid category name %q", category)
		}

		if len(urls) == 0 {
			return fmt.Errorf("DEFAULT_CATEGORIES lists no feeds for %q", category)
		}
	}

	return nil
}

// DefaultFeeds returns the feed URLs of every DEFAULT_CATEGORIES entry. URLs
// of one category are separated by whitespace.
func (c Config) DefaultFeeds() map[string][]string {
	if len(c.DefaultCategories) == 0 {
		return nil
	}

	feeds := make(map[string][]string, len(c.DefaultCategories))
	for category, urls := range c.DefaultCategories {
		feeds[strings.TrimSpace(category)] = strings.Fields(urls)
	}

	return feeds
}
