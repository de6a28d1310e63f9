package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"feedybot/internal/poller"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0

	dailySummaryTimeout = 30 * time.Minute
)

type Poller interface {
	RunPollCycle(ctx context.Context) (poller.Result, error)
}

type Digest interface {
	SendDailySummaries(ctx context.Context) (int, error)
}

type Config struct {
	PollInterval     time.Duration
	DailySummaryHour int
}

// Scheduler runs the poll cycle on a fixed interval and the summary sweep once
// a day. A job still running when its next tick fires is skipped.
type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	poller Poller
	digest Digest
	cfg    Config
	log    *slog.Logger
}

func New(ctx context.Context, p Poller, d Digest, cfg Config, log *slog.Logger) *Scheduler {
	logger := cronLogger{log: log}

	c := cron.New(
		cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		poller: p,
		digest: d,
		cfg:    cfg,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(PollSpec(s.cfg.PollInterval), s.pollFeeds); err != nil {
		return fmt.Errorf("add poll job: %w", err)
	}

	if _, err := s.cron.AddFunc(DailySummarySpec(s.cfg.DailySummaryHour), s.sendDailySummaries); err != nil {
		return fmt.Errorf("add daily summary job: %w", err)
	}

	s.cron.Start()

	return nil
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func PollSpec(interval time.Duration) string {
	return "@every " + interval.String()
}

func DailySummarySpec(hourUTC int) string {
	return fmt.Sprintf("0 %d * * *", hourUTC)
}

func (s *Scheduler) pollFeeds() {
	// Poll cycles are bounded by the interval so a slow cycle never spans
	// several ticks.
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.PollInterval)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	if _, err := s.poller.RunPollCycle(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to run poll cycle",
			"error", err)
	}
}

func (s *Scheduler) sendDailySummaries() {
	ctx, cancel := context.WithTimeout(s.ctx, dailySummaryTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	sent, err := s.digest.SendDailySummaries(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to send daily summaries",
			"error", err,
			"sent", sent)
	}
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("Cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("Cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
