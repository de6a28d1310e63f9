package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestGetDelay(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		chatID   int64
		lastSent time.Time
		wantZero bool
	}{
		{
			"Private chat - no delay needed",
			123456789,
			now.Add(-2 * time.Second),
			true,
		},
		{
			"Private chat - delay needed",
			123456789,
			now.Add(-500 * time.Millisecond),
			false,
		},
		{
			"Group chat - no delay needed",
			-123456789,
			now.Add(-4 * time.Second),
			true,
		},
		{
			"Group chat - delay needed",
			-123456789,
			now.Add(-1 * time.Second),
			false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := getDelay(test.chatID, test.lastSent)

			if test.wantZero && got > 0 {
				t.Errorf("Expected zero delay, got %v", got)
			}

			if !test.wantZero && got <= 0 {
				t.Errorf("Expected positive delay, got %v", got)
			}
		})
	}
}

func TestGetRate(t *testing.T) {
	tests := []struct {
		name   string
		chatID int64
		want   time.Duration
	}{
		{
			"PrivateChatRate",
			1,
			privateChatRate,
		},
		{
			"GroupChatRate",
			-1,
			groupChatRate,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := getRate(test.chatID)

			if got != test.want {
				t.Errorf("Expected %v rate, got %v", test.want, got)
			}
		})
	}
}

func TestSendReturnsCallResult(t *testing.T) {
	rl := New(slog.Default())
	defer rl.Stop()

	wantErr := errors.New("forbidden")

	err := rl.Send(context.Background(), 1, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected %v, got %v", wantErr, err)
	}

	calls := 0
	if err = rl.Send(context.Background(), 2, func(context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if calls != 1 {
		t.Fatalf("Expected one call, got %d", calls)
	}
}

func TestSendHonoursCallerContext(t *testing.T) {
	rl := New(slog.Default())
	defer rl.Stop()

	if err := rl.Send(context.Background(), 1, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	called := make(chan struct{}, 1)
	err := rl.Send(ctx, 1, func(context.Context) error {
		called <- struct{}{}
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestSendAfterStop(t *testing.T) {
	rl := New(slog.Default())
	rl.Stop()

	err := rl.Send(context.Background(), 1, func(context.Context) error { return nil })
	if err == nil {
		t.Fatalf("Expected an error after Stop")
	}
}
