package platform

import (
	"context"
	"sync"
	"time"

	"travelhub/internal/adapters/observability"
	"travelhub/internal/domain"
)

const DefaultWindow = 60 * time.Second

// WindowLimiter admits at most quota requests in any trailing window. When the
// window is full the caller sleeps until the oldest recorded request expires.
// One instance per platform is shared by every caller in the process.
type WindowLimiter struct {
	name   string
	quota  int
	window time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) bool

	mu     sync.Mutex
	stamps []time.Time // ascending
}

type WindowOption func(*WindowLimiter)

// WithClock replaces the time source and the sleeper (tests).
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) bool) WindowOption {
	return func(l *WindowLimiter) {
		l.now = now
		l.sleep = sleep
	}
}

func WithWindow(d time.Duration) WindowOption {
	return func(l *WindowLimiter) {
		if d > 0 {
			l.window = d
		}
	}
}

func NewWindowLimiter(name string, quota int, opts ...WindowOption) *WindowLimiter {
	if quota <= 0 {
		quota = 60
	}
	l := &WindowLimiter{
		name:   name,
		quota:  quota,
		window: DefaultWindow,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Wait blocks until a slot is free and records the request. It only fails
// when ctx is done while waiting.
func (l *WindowLimiter) Wait(ctx context.Context) error {
	var waited time.Duration
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.stamps) < l.quota {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			if waited > 0 {
				observability.ObserveRateLimitWait(l.name, waited)
			}
			return nil
		}
		wait := l.window - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if !l.sleep(ctx, wait) {
			return ctx.Err()
		}
		// re-check: concurrent waiters may have taken the freed slot
		waited += wait
	}
}

// Usage reports how many slots of the current window are taken.
func (l *WindowLimiter) Usage() domain.WindowUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return domain.WindowUsage{Used: len(l.stamps), Quota: l.quota}
}

func (l *WindowLimiter) prune(now time.Time) {
	i := 0
	for i < len(l.stamps) && now.Sub(l.stamps[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
