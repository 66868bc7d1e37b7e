package persist

import (
	"context"
	"fmt"
	"strconv"

	"sectioncat/internal/geo"
	"sectioncat/internal/sections"
)

// Handle is the finite result of a background detection run, using a
// goroutine and a channel rather than a generic future type: the
// goroutine stores the result and error in the Handle and then closes
// done, so Wait is safe to call more than once and from more than one
// goroutine.
type Handle struct {
	done   chan struct{}
	result sections.MultiScaleResult
	err    error
}

// Wait blocks until detection completes (or ctx is cancelled) and
// returns its result.
func (h *Handle) Wait(ctx context.Context) (sections.MultiScaleResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return sections.MultiScaleResult{}, ctx.Err()
	}
}

// DetectSectionsBackground launches multi-scale detection over every
// resident activity's track on its own goroutine and returns
// immediately with a Handle. Loading every track is the expensive
// part; it happens off the caller's goroutine so a request handler
// calling this isn't blocked for the whole catalog's detection run.
func (s *Store) DetectSectionsBackground(ctx context.Context, cfg sections.Config) *Handle {
	h := &Handle{done: make(chan struct{})}

	go func() {
		defer close(h.done)

		tracks, err := s.loadAllTracks(ctx)
		if err != nil {
			h.err = fmt.Errorf("failed to load tracks for detection: %w", err)
			return
		}
		h.result = sections.DetectSectionsMultiScale(tracks, cfg)
	}()

	return h
}

func (s *Store) loadAllTracks(ctx context.Context) ([]sections.Track, error) {
	s.mu.Lock()
	metas := make([]ActivityMeta, 0, len(s.activities))
	for _, m := range s.activities {
		metas = append(metas, m)
	}
	s.mu.Unlock()

	tracks := make([]sections.Track, 0, len(metas))
	for _, m := range metas {
		s.mu.Lock()
		points, err := s.loadTrack(ctx, m.ActivityID)
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if len(points) < 2 {
			continue
		}
		tracks = append(tracks, sections.Track{ActivityID: m.ActivityID, SportType: m.SportType, Points: points})
	}
	return tracks, nil
}

// loadTrack reads one activity's full-resolution track back out of
// activity_geometries' stored LINESTRING, the on-demand tier of the
// tiered storage design (only ActivityMeta/signatures/consensus stay
// resident).
func (s *Store) loadTrack(ctx context.Context, activityID string) ([]geo.Point, error) {
	numericID, err := strconv.ParseInt(activityID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("activity id %q must be numeric to load: %w", activityID, err)
	}

	var wkt string
	err = s.conn.QueryRow(ctx, `
		SELECT ST_AsText(route_geog::geometry) FROM activity_geometries WHERE activity_id = $1
	`, numericID).Scan(&wkt)
	if err != nil {
		return nil, fmt.Errorf("failed to load track for activity %s: %w", activityID, err)
	}
	return parseLineStringWKT(wkt)
}

// ApplySections replaces the entire persisted section set
// transactionally: the old catalog is truncated and the new one
// inserted in a single transaction so readers never observe a
// half-replaced state. User-defined (custom/auto with a pinned
// reference) sections are preserved across the swap since they aren't
// reproducible by re-running detection.
func (s *Store) ApplySections(ctx context.Context, result sections.MultiScaleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin apply-sections transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sections WHERE is_user_defined = FALSE`); err != nil {
		return fmt.Errorf("failed to clear auto-detected sections: %w", err)
	}

	for i := range result.Sections {
		sec := &result.Sections[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO sections (id, name, sport_type, polyline_geog, representative_activity_id,
				visit_count, distance_meters, confidence, observation_count, average_spread,
				scale, stability, version, is_user_defined)
			VALUES ($1, $2, $3, ST_GeogFromText($4), $5, $6, $7, $8, $9, $10, $11, $12, $13, FALSE)
			ON CONFLICT (id) DO NOTHING
		`, sec.ID, sec.Name, sec.SportType, linestringWKT(sec.Polyline), nullIfEmpty(sec.RepresentativeActivity),
			sec.VisitCount, sec.DistanceMeters, sec.Confidence, sec.ObservationCount, sec.AverageSpread,
			sec.Scale, sec.Stability, sec.Version); err != nil {
			return fmt.Errorf("failed to insert section %s: %w", sec.ID, err)
		}

		for _, p := range sec.ActivityPortions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO section_activities (section_id, activity_id, start_index, end_index, direction)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (section_id, activity_id) DO NOTHING
			`, sec.ID, p.ActivityID, p.StartIndex, p.EndIndex, string(p.Direction)); err != nil {
				return fmt.Errorf("failed to insert section membership for %s/%s: %w", sec.ID, p.ActivityID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit apply-sections transaction: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
