package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 4096

	defaultTimeout = 2 * time.Minute

	systemPrompt = `You summarize RSS feed updates for a single reader.

Rules:
- Keep the category grouping of the input.
- One short line per important post, then one or two lines on overall trends.
- Keep critical context (dates, numbers, names).
- Neutral tone, no emojis, no hashtags.
- Plain text without markdown.
- Write in the language of the posts.`
)

// OpenAISummarizer calls OpenAI's Responses API to produce digests.
type OpenAISummarizer struct {
	client  openai.Client
	model   string
	flex    bool
	timeout time.Duration
}

// NewOpenAISummarizer builds a new summarizer instance. A custom base URL
// points the client at an OpenAI compatible endpoint.
func NewOpenAISummarizer(cfg Config) *OpenAISummarizer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT5Mini2025_08_07
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &OpenAISummarizer{
		client:  openai.NewClient(opts...),
		model:   model,
		flex:    cfg.BaseURL == "",
		timeout: timeout,
	}
}

// Summarize produces a single digest for the given posts.
func (s *OpenAISummarizer) Summarize(ctx context.Context, posts []Post) (string, error) {
	if len(posts) == 0 {
		return "", errors.New("posts are empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := BuildPrompt(posts)

	maxOutputTokens := baseMaxOutputTokens
	for {
		params := responses.ResponseNewParams{
			Model:           s.model,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Instructions:    openai.String(systemPrompt),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(prompt),
			},
		}
		if s.flex {
			params.ServiceTier = responses.ResponseNewParamsServiceTierFlex
			params.Reasoning = responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			}
		}

		resp, err := s.client.Responses.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("do request: %w: %w", ErrUnavailable, err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d): %w",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
				ErrUnavailable,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("output text is missing (status = %s): %w", resp.Status, ErrUnavailable)
		}
		return summary, nil
	}
}
