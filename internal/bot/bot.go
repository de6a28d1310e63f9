package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"feedybot/internal/domain"
	"feedybot/internal/poller"
	"feedybot/internal/ratelimiter"
)

const (
	updateProcessingTimeout = 60 * time.Second

	maxSendRetries   = 3
	sendRetryBackoff = time.Second

	defaultSummaryTimeout = 2 * time.Minute
	summaryDeliveryMargin = 30 * time.Second
)

type Store interface {
	AddCategory(ctx context.Context, name string) error
	DeleteCategory(ctx context.Context, name string) error
	ListCategories(ctx context.Context) ([]string, error)
	CategoryExists(ctx context.Context, name string) (bool, error)
	AddFeed(ctx context.Context, category string, feedURL string) error
	RemoveFeed(ctx context.Context, category string, feedURL string) error
	ListFeedSourcesByCategory(ctx context.Context, category string) ([]string, error)
	SetSubscriptions(ctx context.Context, userID int64, username string, categories []string) error
	Subscribe(ctx context.Context, userID int64, username string, category string) error
	Unsubscribe(ctx context.Context, userID int64, category string) error
	AddKeyword(ctx context.Context, userID int64, keyword string) error
	RemoveKeyword(ctx context.Context, userID int64, keyword string) error
	GetSubscriber(ctx context.Context, userID int64) (*domain.Subscriber, error)
	GetSubscriberStats(ctx context.Context, userID int64) (*domain.SubscriberStats, error)
}

type FeedValidator interface {
	Validate(ctx context.Context, feedURL string) (string, error)
}

type Poller interface {
	RunPollCycle(ctx context.Context) (poller.Result, error)
	RunPollCycleForCategory(ctx context.Context, category string) (poller.Result, error)
	RunPollCycleForSource(ctx context.Context, feedURL string) (poller.Result, error)
	SchedulePreviews(ctx context.Context, userID int64, categories []string)
}

type Digester interface {
	SendSummary(ctx context.Context, userID int64) error
}

type Bot struct {
	api            *tgbot.Bot
	rateLimiter    *ratelimiter.RateLimiter
	store          Store
	validator      FeedValidator
	poller         Poller
	digest         Digester
	allowedUsers   []int64
	summaryTimeout time.Duration
	menuKeyboard   *models.InlineKeyboardMarkup
	returnKeyboard *models.InlineKeyboardMarkup
	log            *slog.Logger
}

// New creates the chat transport. Commands become available after
// RegisterCommands, until then the bot only pushes notifications.
func New(
	token string,
	store Store,
	validator FeedValidator,
	allowedUsers []int64,
	log *slog.Logger,
	opts ...tgbot.Option,
) (*Bot, error) {
	b := &Bot{
		store:          store,
		validator:      validator,
		allowedUsers:   allowedUsers,
		menuKeyboard:   getMenuKeyboard(),
		returnKeyboard: getReturnKeyboard(),
		log:            log,
	}

	options := []tgbot.Option{
		tgbot.WithDefaultHandler(b.handleDefault),
		tgbot.WithMiddlewares(b.allowedUsersMiddleware),
		tgbot.WithErrorsHandler(b.handleAPIError),
	}
	options = append(options, opts...)

	api, err := tgbot.New(strings.TrimSpace(token), options...)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	b.api = api
	b.rateLimiter = ratelimiter.New(log)

	return b, nil
}

// RegisterCommands wires the services behind the chat commands.
// summaryTimeout bounds the summarizer call of /summary, the delivery of the
// result gets a small margin on top.
func (b *Bot) RegisterCommands(p Poller, d Digester, summaryTimeout time.Duration) {
	if summaryTimeout <= 0 {
		summaryTimeout = defaultSummaryTimeout
	}

	b.poller = p
	b.digest = d
	b.summaryTimeout = summaryTimeout + summaryDeliveryMargin

	b.api.RegisterHandler(tgbot.HandlerTypeMessageText, "/", tgbot.MatchTypePrefix, b.handleCommand)
	b.api.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, menuCallbackPrefix, tgbot.MatchTypePrefix, b.handleCallbackQuery)
	b.api.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, setupCallbackPrefix, tgbot.MatchTypePrefix, b.handleCallbackQuery)
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is starting")

	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

// Push delivers a rendered message to the private chat of userID.
func (b *Bot) Push(ctx context.Context, userID int64, msg domain.Message) error {
	params := &tgbot.SendMessageParams{
		ChatID:             userID,
		Text:               b.normalizeText(ctx, userID, msg.Text),
		ParseMode:          models.ParseModeMarkdown,
		LinkPreviewOptions: linkPreviewOptions(msg.ImageURL),
	}

	return b.send(ctx, userID, params)
}

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard *models.InlineKeyboardMarkup,
) error {
	params := &tgbot.SendMessageParams{
		ChatID:             chatID,
		Text:               b.normalizeText(ctx, chatID, text),
		ParseMode:          models.ParseModeMarkdown,
		LinkPreviewOptions: linkPreviewOptions(""),
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	return b.send(ctx, chatID, params)
}

// send queues params behind the per-chat rate limiter. Flood control
// rejections are retried after the delay Telegram asks for, every other error
// is returned as is.
func (b *Bot) send(ctx context.Context, chatID int64, params *tgbot.SendMessageParams) error {
	return b.rateLimiter.Send(ctx, chatID, func(ctx context.Context) error {
		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(sendRetryBackoff), maxSendRetries),
			ctx,
		)

		return backoff.Retry(func() error {
			_, err := b.api.SendMessage(ctx, params)
			if err == nil {
				return nil
			}

			var tooMany *tgbot.TooManyRequestsError
			if !errors.As(err, &tooMany) {
				return backoff.Permanent(fmt.Errorf("send message: %w", err))
			}

			b.log.WarnContext(ctx, "Telegram flood control, retrying",
				"chatID", chatID,
				"retryAfterSeconds", tooMany.RetryAfter)

			if sleepErr := sleepContext(ctx, time.Duration(tooMany.RetryAfter)*time.Second); sleepErr != nil {
				return backoff.Permanent(sleepErr)
			}

			return fmt.Errorf("send message: %w", err)
		}, policy)
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *Bot) normalizeText(ctx context.Context, chatID int64, text string) string {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	return normalizedText
}

func linkPreviewOptions(imageURL string) *models.LinkPreviewOptions {
	if imageURL == "" {
		return &models.LinkPreviewOptions{IsDisabled: tgbot.True()}
	}

	return &models.LinkPreviewOptions{
		URL:              &imageURL,
		PreferLargeMedia: tgbot.True(),
	}
}

func (b *Bot) allowedUsersMiddleware(next tgbot.HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, api *tgbot.Bot, update *models.Update) {
		userID, username := updateUser(update)
		if userID == 0 {
			return
		}

		if !b.userAllowed(userID) {
			b.log.DebugContext(ctx, "User is not allowed",
				"userID", userID,
				"username", username,
				"updateID", update.ID)

			return
		}

		ctx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
		defer cancel()

		next(ctx, api, update)
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) handleAPIError(err error) {
	b.log.Error("Telegram API error",
		"error", err)
}

func updateUser(update *models.Update) (int64, string) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, update.Message.From.Username
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, update.CallbackQuery.From.Username
	default:
		return 0, ""
	}
}
