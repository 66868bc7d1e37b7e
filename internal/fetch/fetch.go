// Package fetch is the rate-limited, bounded-concurrency activity
// dispatcher sitting adjacent to section detection: it fetches GPS
// tracks from an upstream API without overrunning that API's rate
// limit. Grounded on the teacher's strava.FetchBikeActivities /
// GetDetailedActivities (sequential http.Client, Bearer auth header,
// manual time.Sleep pacing) generalized to bounded-concurrency fan-out
// with a real token-bucket rate limiter and bounded retry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	burstLimit        = 20  // requests/sec while under burstCeiling total requests
	burstCeiling      = 100 // requests
	sustainedLimit    = 13  // requests/sec once burstCeiling is exceeded
	maxInFlight       = 50
	maxRetries        = 3
	baseBackoff       = 500 * time.Millisecond
	maxBackoff        = 4 * time.Second
)

// RateLimitedError marks an error as a 429-style rate-limit response
// worth retrying with backoff, as opposed to a permanent failure.
type RateLimitedError struct {
	StatusCode int
	Err        error
}

func (e *RateLimitedError) Error() string { return fmt.Sprintf("rate limited (status %d): %v", e.StatusCode, e.Err) }
func (e *RateLimitedError) Unwrap() error { return e.Err }

// Job is one unit of fetch work: an identifier for progress reporting
// and the actual upstream call.
type Job[T any] struct {
	ID string
	Do func(ctx context.Context) (T, error)
}

// Result pairs a Job's outcome with its ID.
type Result[T any] struct {
	ID    string
	Value T
	Err   error
}

// Progress reports atomic counters a caller can poll while Dispatch
// runs on another goroutine.
type Progress struct {
	Total     int64
	Completed int64
	Failed    int64
	InFlight  int64
}

// Snapshot reads the current counters.
func (p *Progress) Snapshot() Progress {
	return Progress{
		Total:     atomic.LoadInt64(&p.Total),
		Completed: atomic.LoadInt64(&p.Completed),
		Failed:    atomic.LoadInt64(&p.Failed),
		InFlight:  atomic.LoadInt64(&p.InFlight),
	}
}

// Dispatcher bounds concurrency with a weighted semaphore and paces
// requests with token-bucket rate.Limiters, switching from a burst
// rate to a sustained rate once burstCeiling requests have gone out.
type Dispatcher struct {
	sem        *semaphore.Weighted
	burst      *rate.Limiter
	sustained  *rate.Limiter
	sent       int64
	maxRetries int
}

// NewDispatcher builds a Dispatcher using the package's default
// concurrency and rate numbers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		sem:        semaphore.NewWeighted(maxInFlight),
		burst:      rate.NewLimiter(rate.Limit(burstLimit), burstLimit),
		sustained:  rate.NewLimiter(rate.Limit(sustainedLimit), sustainedLimit),
		maxRetries: maxRetries,
	}
}

// Dispatch runs every job with bounded concurrency and rate limiting,
// retrying RateLimitedError results with exponential backoff up to
// maxRetries times. Progress, if non-nil, is updated as jobs complete.
func Dispatch[T any](ctx context.Context, d *Dispatcher, jobs []Job[T], progress *Progress) []Result[T] {
	results := make([]Result[T], len(jobs))
	if progress != nil {
		atomic.StoreInt64(&progress.Total, int64(len(jobs)))
	}

	done := make(chan int, len(jobs))
	for i, job := range jobs {
		i, job := i, job
		go func() {
			defer func() { done <- i }()

			if err := d.sem.Acquire(ctx, 1); err != nil {
				results[i] = Result[T]{ID: job.ID, Err: err}
				return
			}
			defer d.sem.Release(1)

			if progress != nil {
				atomic.AddInt64(&progress.InFlight, 1)
				defer atomic.AddInt64(&progress.InFlight, -1)
			}

			value, err := runWithRetry(ctx, d, job)
			results[i] = Result[T]{ID: job.ID, Value: value, Err: err}

			if progress != nil {
				if err != nil {
					atomic.AddInt64(&progress.Failed, 1)
				}
				atomic.AddInt64(&progress.Completed, 1)
			}
		}()
	}
	for range jobs {
		<-done
	}
	return results
}

func runWithRetry[T any](ctx context.Context, d *Dispatcher, job Job[T]) (T, error) {
	var lastErr error
	var zero T
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if err := d.limiterFor().Wait(ctx); err != nil {
			return zero, err
		}
		atomic.AddInt64(&d.sent, 1)

		value, err := job.Do(ctx)
		if err == nil {
			return value, nil
		}

		var rle *RateLimitedError
		if !errors.As(err, &rle) {
			return zero, err
		}
		lastErr = err
		if attempt == d.maxRetries {
			break
		}
		backoff := time.Duration(math.Min(
			float64(baseBackoff)*math.Pow(2, float64(attempt)),
			float64(maxBackoff),
		))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("exhausted %d retries: %w", d.maxRetries, lastErr)
}

func (d *Dispatcher) limiterFor() *rate.Limiter {
	if atomic.LoadInt64(&d.sent) < burstCeiling {
		return d.burst
	}
	return d.sustained
}
