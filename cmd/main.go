package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedybot/internal/bot"
	"feedybot/internal/config"
	"feedybot/internal/database"
	"feedybot/internal/delivery"
	"feedybot/internal/digest"
	"feedybot/internal/feed"
	"feedybot/internal/mailbox"
	"feedybot/internal/poller"
	"feedybot/internal/scheduler"
	"feedybot/internal/summarizer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	if defaults := cfg.DefaultFeeds(); len(defaults) > 0 {
		added, err := db.SeedFeeds(ctx, defaults)
		if err != nil {
			log.ErrorContext(ctx, "Failed to seed some default feeds",
				"error", err)
		}
		log.InfoContext(ctx, "Default categories are loaded",
			"categoriesCount", len(defaults),
			"addedFeedsCount", added)
	}

	s := initSummarizer(ctx, cfg, log)
	extractor := feed.NewExtractor(cfg.FetchTimeout, log)

	botInst, err := bot.New(cfg.Token, db, extractor, cfg.AllowedUsers, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers))

	mb := mailbox.New(db, cfg.UnreadLimit, log)
	filter := delivery.NewKeywordFilter(db, cfg.KeywordFilterFailClosed, log)
	dispatcher := delivery.NewDispatcher(db, filter, mb, botInst, cfg.PushTimeout, log)

	p := poller.New(db, extractor, dispatcher, botInst, poller.Config{
		SourcePacing:  cfg.SourcePacing,
		PreviewPacing: cfg.PreviewPacing,
		InitialPosts:  cfg.InitialPosts,
	}, log)

	d := digest.New(mb, db, s, botInst, cfg.SummaryPostLimit, log)

	botInst.RegisterCommands(p, d, cfg.SummaryTimeout)

	sched := scheduler.New(ctx, p, d, scheduler.Config{
		PollInterval:     cfg.PollInterval,
		DailySummaryHour: cfg.DailySummaryHour,
	}, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"pollSpec", scheduler.PollSpec(cfg.PollInterval),
			"dailySummarySpec", scheduler.DailySummarySpec(cfg.DailySummaryHour))

		return
	}
	log.InfoContext(ctx, "Scheduler is started",
		"pollSpec", scheduler.PollSpec(cfg.PollInterval),
		"dailySummarySpec", scheduler.DailySummarySpec(cfg.DailySummaryHour),
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	populated := make(chan struct{})
	go func() {
		defer close(populated)

		if _, err := p.PopulateMailboxes(ctx); err != nil {
			log.WarnContext(ctx, "Failed to populate mailboxes",
				"error", err)
		}
	}()

	go func() {
		botInst.Start(ctx)
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	sched.Stop()
	log.InfoContext(ctx, "Scheduler is stopped")

	<-populated
	p.Wait()

	botInst.Stop()
	log.InfoContext(ctx, "Bot is stopped",
		"uptimeSeconds", time.Since(start).Seconds())
}

// initSummarizer returns nil when no backend is available, callers then
// report summarization as unavailable.
func initSummarizer(ctx context.Context, cfg config.Config, log *slog.Logger) summarizer.Summarizer {
	s, err := summarizer.New(summarizer.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.SummaryTimeout,
	})
	if errors.Is(err, summarizer.ErrUnavailable) {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so summaries are unavailable",
			"envVar", "OPENAI_API_KEY")

		return nil
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI summarizer so summaries are unavailable",
			"error", err)

		return nil
	}

	log.InfoContext(ctx, "OpenAI summarizer is initialized",
		"provider", "openai",
		"model", cfg.OpenAIModel,
		"customBaseURL", cfg.OpenAIBaseURL != "")

	return s
}
