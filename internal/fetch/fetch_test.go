package fetch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatchRunsAllJobsConcurrently(t *testing.T) {
	d := NewDispatcher()
	jobs := make([]Job[int], 10)
	for i := range jobs {
		i := i
		jobs[i] = Job[int]{
			ID: fmt.Sprintf("job-%d", i),
			Do: func(ctx context.Context) (int, error) { return i * i, nil },
		}
	}

	var progress Progress
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := Dispatch(ctx, d, jobs, &progress)
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("job %d failed: %v", i, r.Err)
		}
		if r.Value != i*i {
			t.Fatalf("job %d: expected %d, got %d", i, i*i, r.Value)
		}
	}
	snap := progress.Snapshot()
	if snap.Completed != int64(len(jobs)) {
		t.Fatalf("expected %d completed, got %d", len(jobs), snap.Completed)
	}
	if snap.Failed != 0 {
		t.Fatalf("expected 0 failed, got %d", snap.Failed)
	}
}

func TestDispatchRetriesRateLimitedErrors(t *testing.T) {
	d := NewDispatcher()
	var attempts int64

	jobs := []Job[string]{{
		ID: "flaky",
		Do: func(ctx context.Context) (string, error) {
			n := atomic.AddInt64(&attempts, 1)
			if n < 3 {
				return "", &RateLimitedError{StatusCode: 429, Err: fmt.Errorf("too many requests")}
			}
			return "ok", nil
		},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := Dispatch(ctx, d, jobs, nil)
	if results[0].Err != nil {
		t.Fatalf("expected eventual success, got %v", results[0].Err)
	}
	if results[0].Value != "ok" {
		t.Fatalf("expected 'ok', got %q", results[0].Value)
	}
	if atomic.LoadInt64(&attempts) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestDispatchGivesUpAfterMaxRetries(t *testing.T) {
	d := NewDispatcher()
	jobs := []Job[string]{{
		ID: "always-limited",
		Do: func(ctx context.Context) (string, error) {
			return "", &RateLimitedError{StatusCode: 429, Err: fmt.Errorf("rate limited")}
		},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := Dispatch(ctx, d, jobs, nil)
	if results[0].Err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
}

func TestDispatchPropagatesNonRateLimitErrorsImmediately(t *testing.T) {
	d := NewDispatcher()
	var attempts int64
	jobs := []Job[string]{{
		ID: "permanent-failure",
		Do: func(ctx context.Context) (string, error) {
			atomic.AddInt64(&attempts, 1)
			return "", fmt.Errorf("not found")
		},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := Dispatch(ctx, d, jobs, nil)
	if results[0].Err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-rate-limit error, got %d", attempts)
	}
}
