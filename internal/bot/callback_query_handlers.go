package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	chatID := callbackChatID(callback)
	user := chatUser{id: callback.From.ID, username: callback.From.Username}
	data := strings.TrimSpace(callback.Data)

	err := b.withSpinner(ctx, chatID, func() error {
		switch data {
		case "menu":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleMenuCommand(ctx, chatID)
			})
		case "menu_categories":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleCategoriesCommand(ctx, chatID, user)
			})
		case "menu_myfeeds":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleMyFeedsCommand(ctx, chatID, user)
			})
		case "menu_summary":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleSummaryCommand(ctx, chatID, user)
			})
		case "menu_stats":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleStatsCommand(ctx, chatID, user)
			})
		case "menu_setup":
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.sendSetupKeyboard(ctx, chatID, user)
			})
		case setupDoneCallback:
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleMenuCommand(ctx, chatID)
			})
		}

		if category, ok := setupToggleCategory(data); ok {
			return b.handleSetupToggleQuery(ctx, callback, chatID, user, category)
		}

		return b.withEmptyCallbackAnswer(ctx, callback, func() error { return nil })
	})
	if err != nil {
		b.log.ErrorContext(ctx, "Failed to handle callback query",
			"error", err,
			"chatID", chatID,
			"userID", user.id,
			"data", data,
			"messageID", callbackMessageID(callback))
	}
}

// handleSetupToggleQuery flips the subscription to category and redraws the
// picker. A new subscription triggers previews of its feeds.
func (b *Bot) handleSetupToggleQuery(
	ctx context.Context,
	callback *models.CallbackQuery,
	chatID int64,
	user chatUser,
	category string,
) error {
	subscribed := b.subscribedCategories(ctx, user.id)

	var answer string
	if slices.Contains(subscribed, category) {
		if err := b.store.Unsubscribe(ctx, user.id, category); err != nil {
			return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("unsubscribe: %w", err))
		}

		answer = "Unsubscribed from " + category + "."
	} else {
		if err := b.store.Subscribe(ctx, user.id, user.username, category); err != nil {
			return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("subscribe: %w", err))
		}

		b.poller.SchedulePreviews(ctx, user.id, []string{category})

		answer = "✅ Subscribed to " + category + "."
	}

	var errs []error

	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            answer,
	}); err != nil {
		errs = append(errs, fmt.Errorf("answer callback query: %w", err))
	}

	if err := b.refreshSetupKeyboard(ctx, callback, chatID, user); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *Bot) refreshSetupKeyboard(ctx context.Context, callback *models.CallbackQuery, chatID int64, user chatUser) error {
	messageID := callbackMessageID(callback)
	if messageID == 0 {
		return nil
	}

	categories, err := b.store.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	if _, err = b.api.EditMessageReplyMarkup(ctx, &tgbot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   messageID,
		ReplyMarkup: getSetupKeyboard(categories, b.subscribedCategories(ctx, user.id)),
	}); err != nil {
		return fmt.Errorf("edit message reply markup: %w", err)
	}

	return nil
}

func (b *Bot) withEmptyCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
	}); err != nil {
		errs = append(errs, b.errorCallbackAnswer(ctx, callback, fmt.Errorf("answer callback query: %w", err)))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            "❌ Failed.",
	}); sendErr != nil {
		return errors.Join(err, fmt.Errorf("answer callback query: %w", sendErr))
	}

	return err
}

func callbackChatID(callback *models.CallbackQuery) int64 {
	if callback.Message.Message != nil {
		return callback.Message.Message.Chat.ID
	}

	return callback.From.ID
}

func callbackMessageID(callback *models.CallbackQuery) int {
	if callback.Message.Message != nil {
		return callback.Message.Message.ID
	}

	return 0
}
