package fetcher

import (
	"context"
	"sync"
	"time"
)

// RateLimiter ограничивает параллельность и частоту запросов к одному хосту.
// Окно RPM фиксированное, минутное.
type RateLimiter struct {
	maxConcurrent  int
	rpm            int
	window         time.Duration
	hostSemaphores map[string]*hostLimiter
	mu             sync.Mutex
}

type hostLimiter struct {
	sem         chan struct{} // Semaphore for concurrency
	windowStart time.Time
	requests    int
	mu          sync.Mutex
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		maxConcurrent:  maxConcurrent,
		rpm:            rpm,
		window:         time.Minute,
		hostSemaphores: make(map[string]*hostLimiter),
	}
}

// Wait дожидается слота для хоста и сразу его освобождает
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	release, err := rl.Acquire(ctx, host)
	if err != nil {
		return err
	}
	release()
	return nil
}

// Acquire занимает слот хоста на время запроса. release обязателен.
func (rl *RateLimiter) Acquire(ctx context.Context, host string) (release func(), err error) {
	limiter := rl.limiterFor(host)

	select {
	case limiter.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release = func() { <-limiter.sem }

	if err := rl.throttle(ctx, limiter); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (rl *RateLimiter) limiterFor(host string) *hostLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.hostSemaphores[host]
	if !exists {
		limiter = &hostLimiter{
			sem: make(chan struct{}, rl.maxConcurrent),
		}
		rl.hostSemaphores[host] = limiter
	}
	return limiter
}

func (rl *RateLimiter) throttle(ctx context.Context, limiter *hostLimiter) error {
	if rl.rpm <= 0 {
		return nil
	}

	for {
		limiter.mu.Lock()
		now := time.Now()

		// Новое окно
		if now.Sub(limiter.windowStart) >= rl.window {
			limiter.requests = 0
			limiter.windowStart = now
		}

		if limiter.requests < rl.rpm {
			limiter.requests++
			limiter.mu.Unlock()
			return nil
		}

		waitTime := rl.window - now.Sub(limiter.windowStart)
		limiter.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
