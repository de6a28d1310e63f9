package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"feedybot/internal/digest"
	"feedybot/internal/domain"
	"feedybot/internal/poller"
	"feedybot/internal/render"
	"feedybot/internal/summarizer"
)

const manualCheckTimeout = 10 * time.Minute

const failedText = "❌ Failed\\."

//nolint:gochecknoglobals // Escaped once, never modified.
var (
	notRegisteredText = render.EscapeV2("You need to set up your subscriptions first! Use /setup to get started.")
	noUnreadPostsText = render.EscapeV2("You have no unread posts!")
	unavailableText   = render.EscapeV2("⚠️ Summarization is unavailable right now. Your unread posts are kept.")
	unknownText       = render.EscapeV2("Unknown command. Send /help to see what I can do.")
)

type chatUser struct {
	id       int64
	username string
}

func (b *Bot) handleCommand(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	message := update.Message
	chatID := message.Chat.ID
	user := chatUser{id: message.From.ID, username: message.From.Username}
	command, args := parseCommand(message.Text)

	err := b.withSpinner(ctx, chatID, func() error {
		return b.dispatchCommand(ctx, chatID, user, command, args)
	})
	if err != nil {
		b.log.ErrorContext(ctx, "Failed to handle command",
			"error", err,
			"chatID", chatID,
			"userID", user.id,
			"command", command,
			"messageID", message.ID)
	}
}

func (b *Bot) dispatchCommand(ctx context.Context, chatID int64, user chatUser, command string, args string) error {
	switch command {
	case "start", "help":
		return b.sendMessageWithKeyboard(ctx, chatID, helpText(), b.menuKeyboard)
	case "menu":
		return b.handleMenuCommand(ctx, chatID)
	case "categories":
		return b.handleCategoriesCommand(ctx, chatID, user)
	case "addcategory":
		return b.handleAddCategoryCommand(ctx, chatID, args)
	case "delcategory":
		return b.handleDeleteCategoryCommand(ctx, chatID, args)
	case "addfeed":
		return b.handleAddFeedCommand(ctx, chatID, args)
	case "removefeed":
		return b.handleRemoveFeedCommand(ctx, chatID, args)
	case "listfeeds":
		return b.handleListFeedsCommand(ctx, chatID, args)
	case "setup":
		return b.handleSetupCommand(ctx, chatID, user, args)
	case "subscribe":
		return b.handleSubscribeCommand(ctx, chatID, user, args)
	case "unsubscribe":
		return b.handleUnsubscribeCommand(ctx, chatID, user, args)
	case "myfeeds":
		return b.handleMyFeedsCommand(ctx, chatID, user)
	case "addkeyword":
		return b.handleAddKeywordCommand(ctx, chatID, user, args)
	case "removekeyword":
		return b.handleRemoveKeywordCommand(ctx, chatID, user, args)
	case "keywords":
		return b.handleKeywordsCommand(ctx, chatID, user)
	case "summary":
		return b.handleSummaryCommand(ctx, chatID, user)
	case "stats":
		return b.handleStatsCommand(ctx, chatID, user)
	case "check":
		return b.handleCheckCommand(ctx, chatID, args)
	default:
		return b.reply(ctx, chatID, unknownText)
	}
}

// handleDefault answers plain text and updates no other handler matched.
func (b *Bot) handleDefault(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID

	var err error
	if url := strictURLs.FindString(update.Message.Text); url != "" {
		err = b.reply(ctx, chatID, render.EscapeV2(
			fmt.Sprintf("To follow this feed add it to a category: /addfeed <category> %s", url)))
	} else {
		err = b.handleMenuCommand(ctx, chatID)
	}

	if err != nil {
		b.log.ErrorContext(ctx, "Failed to handle message",
			"error", err,
			"chatID", chatID,
			"messageID", update.Message.ID)
	}
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)
}

func (b *Bot) handleCategoriesCommand(ctx context.Context, chatID int64, user chatUser) error {
	categories, err := b.store.ListCategories(ctx)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("list categories: %w", err))
	}

	return b.reply(ctx, chatID, categoryListText(categories, b.subscribedCategories(ctx, user.id)))
}

func (b *Bot) handleAddCategoryCommand(ctx context.Context, chatID int64, args string) error {
	name := sanitizeCategory(args)
	if name == "" {
		return b.reply(ctx, chatID, render.EscapeV2("Invalid category name! Usage: /addcategory <name>"))
	}

	exists, err := b.store.CategoryExists(ctx, name)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("check category: %w", err))
	}

	if exists {
		return b.reply(ctx, chatID, fmt.Sprintf("✖️ Category *%s* already exists\\.", render.EscapeV2(name)))
	}

	if err = b.store.AddCategory(ctx, name); err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("add category: %w", err))
	}

	return b.reply(ctx, chatID, fmt.Sprintf("✅ Category *%s* is created\\.", render.EscapeV2(name)))
}

func (b *Bot) handleDeleteCategoryCommand(ctx context.Context, chatID int64, args string) error {
	name := sanitizeCategory(args)
	if name == "" {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /delcategory <name>"))
	}

	err := b.store.DeleteCategory(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, fmt.Sprintf("✖️ Category *%s* is not found\\.", render.EscapeV2(name)))
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("delete category: %w", err))
	}

	return b.reply(ctx, chatID, fmt.Sprintf("✅ Category *%s* is deleted with its feeds\\.", render.EscapeV2(name)))
}

func (b *Bot) handleAddFeedCommand(ctx context.Context, chatID int64, args string) error {
	category, url := splitCategoryAndURL(args)
	if category == "" || url == "" {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /addfeed <category> <url>"))
	}

	exists, err := b.store.CategoryExists(ctx, category)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("check category: %w", err))
	}

	if !exists {
		return b.reply(ctx, chatID, render.EscapeV2(
			fmt.Sprintf("Category %s is not found. Create it with /addcategory %s", category, category)))
	}

	title, err := b.validator.Validate(ctx, url)
	if err != nil {
		b.log.WarnContext(ctx, "Feed validation failed",
			"error", err,
			"url", url,
			"category", category)

		return b.reply(ctx, chatID, render.EscapeV2(
			fmt.Sprintf("❌ %s is not a readable feed with entries.", url)))
	}

	err = b.store.AddFeed(ctx, category, url)
	switch {
	case errors.Is(err, domain.ErrConflict):
		return b.reply(ctx, chatID, render.EscapeV2("✖️ This feed already belongs to another category."))
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("add feed: %w", err))
	}

	if title == "" {
		title = url
	}

	return b.reply(ctx, chatID, fmt.Sprintf("✅ Feed *%s* is added to *%s*\\.",
		render.EscapeV2(title), render.EscapeV2(category)))
}

func (b *Bot) handleRemoveFeedCommand(ctx context.Context, chatID int64, args string) error {
	category, url := splitCategoryAndURL(args)
	if category == "" || url == "" {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /removefeed <category> <url>"))
	}

	err := b.store.RemoveFeed(ctx, category, url)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, render.EscapeV2(fmt.Sprintf("✖️ Feed is not found in %s.", category)))
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("remove feed: %w", err))
	}

	return b.reply(ctx, chatID, fmt.Sprintf("✅ Feed is removed from *%s*\\.", render.EscapeV2(category)))
}

func (b *Bot) handleListFeedsCommand(ctx context.Context, chatID int64, args string) error {
	category := sanitizeCategory(args)
	if category == "" {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /listfeeds <category>"))
	}

	exists, err := b.store.CategoryExists(ctx, category)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("check category: %w", err))
	}

	if !exists {
		return b.reply(ctx, chatID, fmt.Sprintf("✖️ Category *%s* is not found\\.", render.EscapeV2(category)))
	}

	feeds, err := b.store.ListFeedSourcesByCategory(ctx, category)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("list feeds: %w", err))
	}

	return b.reply(ctx, chatID, feedListText(category, feeds))
}

// handleSetupCommand shows the category picker, or replaces the subscriptions
// when categories are given.
func (b *Bot) handleSetupCommand(ctx context.Context, chatID int64, user chatUser, args string) error {
	if args == "" {
		return b.sendSetupKeyboard(ctx, chatID, user)
	}

	categories := parseCategories(args)
	if len(categories) == 0 {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /setup <category1, category2>"))
	}

	previous := b.subscribedCategories(ctx, user.id)

	err := b.store.SetSubscriptions(ctx, user.id, user.username, categories)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, render.EscapeV2("✖️ Some of these categories do not exist. See /categories."))
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("set subscriptions: %w", err))
	}

	var added []string
	for _, category := range categories {
		if !slices.Contains(previous, category) {
			added = append(added, category)
		}
	}

	b.poller.SchedulePreviews(ctx, user.id, added)

	return b.reply(ctx, chatID, render.EscapeV2(
		fmt.Sprintf("✅ You now follow: %s.", strings.Join(categories, ", "))))
}

func (b *Bot) sendSetupKeyboard(ctx context.Context, chatID int64, user chatUser) error {
	categories, err := b.store.ListCategories(ctx)
	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("list categories: %w", err))
	}

	if len(categories) == 0 {
		return b.reply(ctx, chatID, render.EscapeV2("No categories available! Create one with /addcategory <name>."))
	}

	return b.sendMessageWithKeyboard(ctx, chatID,
		"⚙️ *Select the categories you want to follow:*",
		getSetupKeyboard(categories, b.subscribedCategories(ctx, user.id)))
}

func (b *Bot) handleSubscribeCommand(ctx context.Context, chatID int64, user chatUser, args string) error {
	categories := parseCategories(args)
	if len(categories) == 0 {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /subscribe <category1, category2>"))
	}

	var added, unknown []string
	for _, category := range categories {
		err := b.store.Subscribe(ctx, user.id, user.username, category)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			unknown = append(unknown, category)
		case err != nil:
			return b.fail(ctx, chatID, fmt.Errorf("subscribe: %w", err))
		default:
			added = append(added, category)
		}
	}

	b.poller.SchedulePreviews(ctx, user.id, added)

	var text strings.Builder
	if len(added) > 0 {
		fmt.Fprintf(&text, "✅ Subscribed to %s. The latest posts of their feeds are on the way.\n", strings.Join(added, ", "))
	}
	if len(unknown) > 0 {
		fmt.Fprintf(&text, "✖️ Unknown categories: %s.", strings.Join(unknown, ", "))
	}

	return b.reply(ctx, chatID, render.EscapeV2(strings.TrimSpace(text.String())))
}

func (b *Bot) handleUnsubscribeCommand(ctx context.Context, chatID int64, user chatUser, args string) error {
	category := sanitizeCategory(args)
	if category == "" {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /unsubscribe <category>"))
	}

	err := b.store.Unsubscribe(ctx, user.id, category)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, fmt.Sprintf("✖️ You are not subscribed to *%s*\\.", render.EscapeV2(category)))
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("unsubscribe: %w", err))
	}

	return b.reply(ctx, chatID, fmt.Sprintf("✅ Unsubscribed from *%s*\\.", render.EscapeV2(category)))
}

func (b *Bot) handleMyFeedsCommand(ctx context.Context, chatID int64, user chatUser) error {
	subscriber, err := b.store.GetSubscriber(ctx, user.id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, notRegisteredText)
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("get subscriber: %w", err))
	}

	if len(subscriber.Categories) == 0 {
		return b.reply(ctx, chatID, notRegisteredText)
	}

	var errs []error

	counts := make(map[string]int, len(subscriber.Categories))
	for _, category := range subscriber.Categories {
		feeds, err := b.store.ListFeedSourcesByCategory(ctx, category)
		if err != nil {
			errs = append(errs, fmt.Errorf("list feeds of %s: %w", category, err))
		}
		counts[category] = len(feeds)
	}

	if err = b.reply(ctx, chatID, myFeedsText(counts, subscriber.Categories)); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (b *Bot) handleAddKeywordCommand(ctx context.Context, chatID int64, user chatUser, args string) error {
	keyword := strings.ToLower(strings.TrimSpace(args))
	if keyword == "" {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /addkeyword <word>"))
	}

	err := b.store.AddKeyword(ctx, user.id, keyword)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, notRegisteredText)
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("add keyword: %w", err))
	}

	return b.reply(ctx, chatID, render.EscapeV2(
		fmt.Sprintf("✅ Keyword %q is added. You will only see posts containing your keywords.", keyword)))
}

func (b *Bot) handleRemoveKeywordCommand(ctx context.Context, chatID int64, user chatUser, args string) error {
	keyword := strings.ToLower(strings.TrimSpace(args))
	if keyword == "" {
		return b.reply(ctx, chatID, render.EscapeV2("Usage: /removekeyword <word>"))
	}

	err := b.store.RemoveKeyword(ctx, user.id, keyword)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, render.EscapeV2(fmt.Sprintf("✖️ Keyword %q is not found.", keyword)))
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("remove keyword: %w", err))
	}

	return b.reply(ctx, chatID, render.EscapeV2(fmt.Sprintf("✅ Keyword %q is removed.", keyword)))
}

func (b *Bot) handleKeywordsCommand(ctx context.Context, chatID int64, user chatUser) error {
	subscriber, err := b.store.GetSubscriber(ctx, user.id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, notRegisteredText)
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("get subscriber: %w", err))
	}

	return b.reply(ctx, chatID, keywordsText(subscriber.Keywords))
}

// handleSummaryCommand is not bound to the update processing timeout, the
// summarizer has its own.
func (b *Bot) handleSummaryCommand(ctx context.Context, chatID int64, user chatUser) error {
	summaryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.summaryTimeout)
	defer cancel()

	err := b.digest.SendSummary(summaryCtx, user.id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, digest.ErrNoUnreadPosts):
		return b.reply(summaryCtx, chatID, noUnreadPostsText)
	case errors.Is(err, summarizer.ErrUnavailable):
		b.log.WarnContext(summaryCtx, "Summarization is unavailable",
			"error", err,
			"userID", user.id)

		return b.reply(summaryCtx, chatID, unavailableText)
	default:
		return b.fail(summaryCtx, chatID, fmt.Errorf("send summary: %w", err))
	}
}

func (b *Bot) handleStatsCommand(ctx context.Context, chatID int64, user chatUser) error {
	stats, err := b.store.GetSubscriberStats(ctx, user.id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, chatID, notRegisteredText)
	case err != nil:
		return b.fail(ctx, chatID, fmt.Errorf("get subscriber stats: %w", err))
	}

	return b.reply(ctx, chatID, statsText(stats))
}

// handleCheckCommand runs a poll cycle for everything, one category or one
// feed URL. The cycle is not bound to the update processing timeout.
func (b *Bot) handleCheckCommand(ctx context.Context, chatID int64, args string) error {
	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), manualCheckTimeout)
	defer cancel()

	var (
		result poller.Result
		err    error
	)

	switch url := strictURLs.FindString(args); {
	case args == "":
		result, err = b.poller.RunPollCycle(checkCtx)
	case url != "":
		result, err = b.poller.RunPollCycleForSource(checkCtx, url)
		if errors.Is(err, poller.ErrFeedNotFound) {
			return b.reply(ctx, chatID, render.EscapeV2("✖️ This feed is not registered in any category."))
		}
	default:
		category := sanitizeCategory(args)

		exists, existsErr := b.store.CategoryExists(ctx, category)
		if existsErr != nil {
			return b.fail(ctx, chatID, fmt.Errorf("check category: %w", existsErr))
		}
		if !exists {
			return b.reply(ctx, chatID, fmt.Sprintf("✖️ Category *%s* is not found\\.", render.EscapeV2(category)))
		}

		result, err = b.poller.RunPollCycleForCategory(checkCtx, category)
	}

	if err != nil {
		return b.fail(ctx, chatID, fmt.Errorf("run poll cycle: %w", err))
	}

	return b.reply(ctx, chatID, checkResultText(result))
}

func (b *Bot) subscribedCategories(ctx context.Context, userID int64) []string {
	subscriber, err := b.store.GetSubscriber(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		b.log.ErrorContext(ctx, "Failed to get subscriber",
			"error", err,
			"userID", userID)

		return nil
	}

	return subscriber.Categories
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	if err := b.sendMessageWithKeyboard(ctx, chatID, text, b.returnKeyboard); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) fail(ctx context.Context, chatID int64, err error) error {
	errs := []error{err}

	if sendErr := b.reply(ctx, chatID, failedText); sendErr != nil {
		errs = append(errs, sendErr)
	}

	return errors.Join(errs...)
}
