package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sectioncat/internal/geo"
)

// trackResponse is the minimal upstream payload shape this dispatcher
// expects: a flat list of [lat, lng] pairs, matching the lat/lng
// stream shape the teacher's raw activity-stream DTOs decoded before
// this module's ingest source was generalized away from Strava.
type trackResponse struct {
	LatLng [][2]float64 `json:"latlng"`
}

// TrackFetcher issues authenticated GET requests for one activity's
// GPS stream, following the teacher's http.Client{Timeout: 30s} +
// Bearer-header idiom (strava.FetchBikeActivities).
type TrackFetcher struct {
	client      *http.Client
	baseURL     string
	accessToken string
}

// NewTrackFetcher builds a TrackFetcher against baseURL (the upstream
// API root) using accessToken as a Bearer credential.
func NewTrackFetcher(baseURL, accessToken string) *TrackFetcher {
	return &TrackFetcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		accessToken: accessToken,
	}
}

// FetchJob builds a Job that retrieves activityID's GPS track. err
// surfaces as *RateLimitedError on a 429 response so Dispatch's retry
// logic can back off, or a plain error for anything else non-2xx.
func (f *TrackFetcher) FetchJob(activityID string) Job[[]geo.Point] {
	return Job[[]geo.Point]{
		ID: activityID,
		Do: func(ctx context.Context) ([]geo.Point, error) {
			url := fmt.Sprintf("%s/activities/%s/streams?keys=latlng", f.baseURL, activityID)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to build request for activity %s: %w", activityID, err)
			}
			req.Header.Set("Authorization", "Bearer "+f.accessToken)

			resp, err := f.client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch track for activity %s: %w", activityID, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read response body for activity %s: %w", activityID, err)
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, &RateLimitedError{StatusCode: resp.StatusCode, Err: fmt.Errorf("activity %s: %s", activityID, string(body))}
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("failed to fetch track for activity %s: status %d: %s", activityID, resp.StatusCode, string(body))
			}

			var parsed trackResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return nil, fmt.Errorf("failed to unmarshal track for activity %s: %w", activityID, err)
			}

			points := make([]geo.Point, len(parsed.LatLng))
			for i, pair := range parsed.LatLng {
				points[i] = geo.New(pair[0], pair[1])
			}
			return points, nil
		},
	}
}
