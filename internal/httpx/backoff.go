package httpx

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// RetryPolicy controls the retry behaviour for transient failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
	// RetryIf replaces the default transient-failure check when set.
	RetryIf func(resp *http.Response, err error) bool
}

// DefaultRetryPolicy performs a single attempt. Callers opt into retries
// with WithRetryPolicy.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 0,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// retryable reports whether a failed attempt is worth repeating: transport
// errors other than cancellation, 408, 429 and 5xx.
func (p RetryPolicy) retryable(resp *http.Response, err error) bool {
	if p.RetryIf != nil {
		return p.RetryIf(resp, err)
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout:
		return true
	case resp.StatusCode >= 500 && resp.StatusCode <= 599:
		return true
	}
	return false
}

// backoff computes exponential delays with optional jitter.
type backoff struct {
	base   time.Duration
	max    time.Duration
	jitter float64

	mu   sync.Mutex
	rand *rand.Rand
}

func newBackoff(p RetryPolicy) *backoff {
	p = p.normalized()
	return &backoff{
		base:   p.BaseDelay,
		max:    p.MaxDelay,
		jitter: math.Min(p.Jitter, 1),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// forAttempt returns the delay before retrying after the given attempt
// (0-indexed): base * 2^attempt, capped at max, then jittered.
func (b *backoff) forAttempt(attempt int) time.Duration {
	delay := b.base
	if attempt > 0 {
		if attempt > 30 {
			attempt = 30
		}
		delay = time.Duration(float64(b.base) * float64(uint64(1)<<uint(attempt)))
	}
	if delay <= 0 || delay > b.max {
		delay = b.max
	}
	if b.jitter == 0 {
		return delay
	}

	b.mu.Lock()
	factor := 1 + (b.rand.Float64()*2-1)*b.jitter
	b.mu.Unlock()
	if factor < 0 {
		factor = 0
	}
	return time.Duration(float64(delay) * factor)
}

func sleep(ctx context.Context, d time.Duration) error {
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
