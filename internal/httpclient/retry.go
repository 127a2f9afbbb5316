package httpclient

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/torosent/stampede/internal/scenario"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	Delay       time.Duration // fixed delay between attempts when DelayFunc is nil
	// ShouldRetry decides whether an attempt's result is worth another try.
	// When nil, only transport errors are retried.
	ShouldRetry func(resp *Response, err error) bool
	// DelayFunc computes the backoff before attempt+1; attempt is 1-based.
	DelayFunc func(attempt int) time.Duration
}

type retrySender struct {
	inner  Sender
	policy RetryPolicy
}

// WithRetry wraps inner with retries. A policy allowing a single attempt
// returns inner unchanged.
func WithRetry(inner Sender, policy RetryPolicy) Sender {
	if policy.MaxAttempts <= 1 {
		return inner
	}
	return &retrySender{inner: inner, policy: policy}
}

func (r *retrySender) Send(ctx context.Context, req *scenario.Request) (*Response, error) {
	var (
		resp *Response
		err  error
	)
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		resp, err = r.inner.Send(ctx, req)
		if attempt == r.policy.MaxAttempts || !r.shouldRetry(resp, err) {
			return resp, err
		}

		delay := r.policy.Delay
		if r.policy.DelayFunc != nil {
			delay = r.policy.DelayFunc(attempt)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				// Report the last real outcome rather than the cancellation.
				return resp, err
			}
		}
	}
	return resp, err
}

func (r *retrySender) shouldRetry(resp *Response, err error) bool {
	if r.policy.ShouldRetry != nil {
		return r.policy.ShouldRetry(resp, err)
	}
	return err != nil
}

// DefaultRetryPolicy retries transport errors, 429 and 5xx with exponential
// backoff from 100ms up to 5s plus up to 50% jitter. Cancelled requests are
// never retried.
func DefaultRetryPolicy(retries int, seed uint64) RetryPolicy {
	source := newJitterSource(seed)
	return RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(resp *Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			if resp == nil {
				return false
			}
			return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		},
		DelayFunc: func(attempt int) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := maxRetryDelay
			if attempt <= 16 {
				backoff = min(time.Duration(1<<uint(attempt-1))*baseRetryDelay, maxRetryDelay)
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newJitterSource(seed uint64) *jitterSource {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &jitterSource{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (j *jitterSource) jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int64N(int64(limit)))
}
