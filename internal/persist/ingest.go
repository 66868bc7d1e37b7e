package persist

import (
	"context"
	"fmt"
	"strconv"

	"sectioncat/internal/geo"
	"sectioncat/internal/sections"
)

// AddActivity ingests one GPS track: persists its geometry (following
// the teacher's make_route_geog_from_lonlat/WKT fallback idiom), then
// registers it in the resident bounds index so future detection runs
// can candidate-filter without a round trip.
func (s *Store) AddActivity(ctx context.Context, track sections.Track) error {
	if len(track.Points) < 2 {
		return fmt.Errorf("activity %s needs at least 2 points to persist a track", track.ActivityID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lons := make([]float64, len(track.Points))
	lats := make([]float64, len(track.Points))
	for i, p := range track.Points {
		lons[i] = p.Lng
		lats[i] = p.Lat
	}

	activityID, err := strconv.ParseInt(track.ActivityID, 10, 64)
	if err != nil {
		return fmt.Errorf("activity id %q must be numeric to persist: %w", track.ActivityID, err)
	}

	summaryQuery := `
	INSERT INTO activity_summaries (id, sport_type)
	VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET sport_type = EXCLUDED.sport_type, updated_at = NOW()
	`
	if _, err = s.conn.Exec(ctx, summaryQuery, activityID, track.SportType); err != nil {
		return fmt.Errorf("failed to persist activity summary: %w", err)
	}

	query := `
	INSERT INTO activity_geometries (activity_id, route_geog)
	VALUES ($1, make_route_geog_from_lonlat($2, $3))
	ON CONFLICT (activity_id) DO UPDATE SET route_geog = EXCLUDED.route_geog, updated_at = NOW()
	`
	_, err = s.conn.Exec(ctx, query, activityID, lons, lats)
	if err != nil {
		fallback := `
		INSERT INTO activity_geometries (activity_id, route_geog)
		VALUES ($1, ST_GeogFromText($2))
		ON CONFLICT (activity_id) DO UPDATE SET route_geog = EXCLUDED.route_geog, updated_at = NOW()
		`
		if _, err = s.conn.Exec(ctx, fallback, activityID, linestringWKT(track.Points)); err != nil {
			return fmt.Errorf("both helper function and direct PostGIS insert failed: %w", err)
		}
	}

	bounds := geo.ComputeBounds(track.Points)
	meta := ActivityMeta{ActivityID: track.ActivityID, SportType: track.SportType, Bounds: bounds}
	s.activities[track.ActivityID] = meta
	s.activityTree.Insert(activityRect{meta})

	return nil
}

// DeleteActivity removes an activity's geometry and every section
// membership row that references it. Auto-detected sections left with
// zero members are deleted (a frequent section stops being frequent
// once its last contributing activity is gone); user-defined sections
// are kept even when empty.
func (s *Store) DeleteActivity(ctx context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	numericID, err := strconv.ParseInt(activityID, 10, 64)
	if err != nil {
		return fmt.Errorf("activity id %q must be numeric to delete: %w", activityID, err)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM activity_summaries WHERE id = $1`, numericID); err != nil {
		return fmt.Errorf("failed to delete activity summary: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM section_activities WHERE activity_id = $1`, activityID); err != nil {
		return fmt.Errorf("failed to delete section memberships: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM sections
		WHERE id IN (
			SELECT s.id FROM sections s
			LEFT JOIN section_activities sa ON sa.section_id = s.id
			WHERE sa.section_id IS NULL AND s.is_user_defined = FALSE
		)
	`); err != nil {
		return fmt.Errorf("failed to prune orphaned sections: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activity deletion: %w", err)
	}

	if meta, ok := s.activities[activityID]; ok {
		s.activityTree.Delete(activityRect{meta})
	}
	delete(s.activities, activityID)
	s.signatures.Invalidate(activityID)
	return nil
}
