package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// SendFunc performs one outgoing chat API call.
type SendFunc func(ctx context.Context) error

type request struct {
	ctx      context.Context
	chatID   int64
	send     SendFunc
	response chan error
}

// RateLimiter serializes outgoing calls through one queue and keeps a minimum
// interval between calls to the same chat.
type RateLimiter struct {
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
}

func New(log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}

	go rl.processQueue()

	return rl
}

// Send queues fn for chatID and waits for its result.
func (rl *RateLimiter) Send(ctx context.Context, chatID int64, fn SendFunc) error {
	if err := rl.ctx.Err(); err != nil {
		return err
	}

	req := request{
		ctx:      ctx,
		chatID:   chatID,
		send:     fn,
		response: make(chan error, 1),
	}

	select {
	case rl.queue <- req:
	case <-rl.ctx.Done():
		return rl.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.response:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- rl.ctx.Err()
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	if err := rl.ctx.Err(); err != nil {
		req.response <- err

		return
	}

	if err := req.ctx.Err(); err != nil {
		req.response <- err

		return
	}

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[req.chatID]
	rl.mu.Unlock()

	if exists {
		delay := getDelay(req.chatID, lastSent)

		if delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting message",
				"chatID", req.chatID,
				"delay", delay,
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-req.ctx.Done():
				req.response <- req.ctx.Err()

				return
			case <-rl.ctx.Done():
				req.response <- rl.ctx.Err()

				return
			}
		}
	}

	err := req.send(req.ctx)

	rl.mu.Lock()
	rl.lastSent[req.chatID] = time.Now()
	rl.mu.Unlock()

	req.response <- err
}

func getDelay(
	chatID int64,
	lastSent time.Time,
) time.Duration {
	elapsed := time.Since(lastSent)
	rate := getRate(chatID)

	return max(rate-elapsed, 0)
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
