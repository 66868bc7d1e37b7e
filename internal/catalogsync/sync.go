// Package catalogsync orchestrates one ingest run: fetch new activity
// tracks from an upstream API, persist them, and regroup routes
// incrementally. Grounded on the teacher's internal/sync package (the
// fetch → save → retry-failed phase structure, without its diff step,
// and its emoji-prefixed log.Printf/ProgressCallback idiom), re-pointed
// from Strava-specific DTOs to the generic fetch.TrackFetcher/
// persist.Store surface.
package catalogsync

import (
	"context"
	"fmt"
	"log"
	"time"

	"sectioncat/internal/fetch"
	"sectioncat/internal/geo"
	"sectioncat/internal/matching"
	"sectioncat/internal/persist"
	"sectioncat/internal/sections"
)

// ProgressCallback reports phase/current/total/message, mirroring the
// teacher's sync.ProgressCallback shape. phase is one of
// "fetching", "saving", "regrouping".
type ProgressCallback func(phase string, current, total int, message string)

// Request describes one ingest run: the activities to fetch (by ID and
// sport type) and the matching config to use for incremental
// regrouping afterward.
type Request struct {
	Activities []ActivityRef
	Matching   matching.Config
}

// ActivityRef is an upstream activity awaiting track ingest.
type ActivityRef struct {
	ID        string
	SportType string
}

// Result mirrors the teacher's sync.SyncResult shape.
type Result struct {
	TotalRequested        int
	SuccessfullyProcessed int
	FailedActivities      []string
	ProcessingTime        time.Duration
	Groups                []string // representative route group IDs touched
}

// Run fetches every requested activity's track, persists it, and
// incrementally regroups routes for the newly-added activities. Track
// fetch failures are recorded in Result.FailedActivities and do not
// abort the run, matching spec.md §7's per-activity local-absorption
// error handling rule.
func Run(ctx context.Context, store *persist.Store, fetcher *fetch.TrackFetcher, req Request, progress ProgressCallback) (*Result, error) {
	start := time.Now()
	log.Printf("🚀 Starting activity ingest run for %d activities", len(req.Activities))

	result := &Result{TotalRequested: len(req.Activities)}
	if len(req.Activities) == 0 {
		log.Printf("ℹ️ No activities requested, nothing to do")
		return result, nil
	}

	if progress != nil {
		progress("fetching", 0, len(req.Activities), "Fetching activity tracks...")
	}

	d := fetch.NewDispatcher()
	jobs := make([]fetch.Job[[]geo.Point], len(req.Activities))
	for i, a := range req.Activities {
		jobs[i] = fetcher.FetchJob(a.ID)
	}
	var fetchProgress fetch.Progress
	results := fetch.Dispatch(ctx, d, jobs, &fetchProgress)

	if progress != nil {
		snap := fetchProgress.Snapshot()
		progress("fetching", int(snap.Completed), len(req.Activities), fmt.Sprintf("Fetched %d/%d tracks", snap.Completed, len(req.Activities)))
	}

	if progress != nil {
		progress("saving", 0, len(results), "Saving activity tracks...")
	}

	var newActivityIDs []string
	for i, r := range results {
		activity := req.Activities[i]
		if r.Err != nil {
			log.Printf("❌ Failed to fetch activity %s: %v", activity.ID, r.Err)
			result.FailedActivities = append(result.FailedActivities, activity.ID)
			continue
		}

		track := sections.Track{ActivityID: activity.ID, SportType: activity.SportType, Points: r.Value}
		if err := store.AddActivity(ctx, track); err != nil {
			log.Printf("❌ Failed to save activity %s: %v", activity.ID, err)
			result.FailedActivities = append(result.FailedActivities, activity.ID)
			continue
		}

		result.SuccessfullyProcessed++
		newActivityIDs = append(newActivityIDs, activity.ID)
		log.Printf("✅ Saved activity %s", activity.ID)
		if progress != nil {
			progress("saving", i+1, len(results), fmt.Sprintf("Saved %s", activity.ID))
		}
	}

	if len(newActivityIDs) > 0 {
		if progress != nil {
			progress("regrouping", 0, len(newActivityIDs), "Regrouping routes...")
		}
		groups, err := store.RegroupIncremental(ctx, newActivityIDs, req.Matching)
		if err != nil {
			log.Printf("⚠️ Incremental regrouping failed: %v", err)
		} else {
			for _, g := range groups {
				result.Groups = append(result.Groups, g.GroupID)
			}
			log.Printf("✅ Regrouped into %d route groups", len(groups))
		}
	}

	result.ProcessingTime = time.Since(start)
	log.Printf("🎉 Ingest run completed: %d/%d succeeded, %d failed, took %v",
		result.SuccessfullyProcessed, result.TotalRequested, len(result.FailedActivities), result.ProcessingTime)
	if len(result.FailedActivities) > 0 {
		log.Printf("❌ Failed activity IDs: %v", result.FailedActivities)
	}
	return result, nil
}

// RunWithRetry retries failed activities up to maxRetries times, each
// attempt backing off by attempt*time.Second, matching the teacher's
// SyncActivitiesFromStravaWithRetry pacing.
func RunWithRetry(ctx context.Context, store *persist.Store, fetcher *fetch.TrackFetcher, req Request, maxRetries int, progress ProgressCallback) (*Result, error) {
	log.Printf("🔄 Starting ingest with retry logic (max retries: %d)", maxRetries)

	result, err := Run(ctx, store, fetcher, req, progress)
	if err != nil || len(result.FailedActivities) == 0 {
		return result, err
	}

	refByID := make(map[string]ActivityRef, len(req.Activities))
	for _, a := range req.Activities {
		refByID[a.ID] = a
	}

	for attempt := 1; attempt <= maxRetries && len(result.FailedActivities) > 0; attempt++ {
		log.Printf("🔄 Retry attempt %d for %d failed activities", attempt, len(result.FailedActivities))

		retryReq := Request{Matching: req.Matching}
		for _, id := range result.FailedActivities {
			retryReq.Activities = append(retryReq.Activities, refByID[id])
		}

		retryResult, err := Run(ctx, store, fetcher, retryReq, nil)
		if err != nil {
			log.Printf("❌ Retry attempt %d errored: %v", attempt, err)
			break
		}

		result.SuccessfullyProcessed += retryResult.SuccessfullyProcessed
		result.FailedActivities = retryResult.FailedActivities
		result.Groups = append(result.Groups, retryResult.Groups...)

		if len(result.FailedActivities) == 0 {
			log.Printf("✅ All activities successfully processed after retry")
			break
		}
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return result, nil
}
