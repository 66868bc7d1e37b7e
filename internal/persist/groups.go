package persist

import (
	"context"
	"fmt"

	"sectioncat/internal/geo"
	"sectioncat/internal/grouping"
	"sectioncat/internal/matching"
)

// signatureFor returns the cached route Signature for an activity,
// computing and caching it on miss. Callers must hold s.mu.
func (s *Store) signatureFor(activityID string, track []geo.Point, cfg matching.Config) matching.Signature {
	if sig, ok := s.signatures.Get(activityID); ok {
		return sig
	}
	sig := matching.NewSignature(track, cfg.ResampleCount)
	s.signatures.Insert(activityID, sig)
	return sig
}

// RegroupIncremental loads every persisted route_group, seeds
// GroupIncremental with it, compares newActivityIDs' tracks against
// the existing routes, and persists the updated grouping — the
// add_activity-triggered path spec.md §4.3's incremental grouping
// describes, rather than re-comparing every pair of routes in the
// catalog on every ingest.
func (s *Store) RegroupIncremental(ctx context.Context, newActivityIDs []string, cfg matching.Config) ([]grouping.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existingGroups, allExisting, err := s.loadRouteGroupsLocked(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var newRoutes []grouping.Route
	for _, id := range newActivityIDs {
		track, err := s.loadTrack(ctx, id)
		if err != nil {
			return nil, err
		}
		newRoutes = append(newRoutes, grouping.Route{ID: id, Signature: s.signatureFor(id, track, cfg)})
	}

	updated := grouping.GroupIncremental(existingGroups, newRoutes, allExisting, cfg)
	if err := s.persistRouteGroupsLocked(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) loadRouteGroupsLocked(ctx context.Context, cfg matching.Config) ([]grouping.Group, []grouping.Route, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT g.group_id, g.representative_activity_id, m.activity_id
		FROM route_groups g
		JOIN route_group_members m ON m.group_id = g.group_id
		ORDER BY g.group_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load route groups: %w", err)
	}
	defer rows.Close()

	byGroup := make(map[string]*grouping.Group)
	var order []string
	var allRoutes []grouping.Route
	seen := make(map[string]bool)

	for rows.Next() {
		var groupID, repID, activityID string
		if err := rows.Scan(&groupID, &repID, &activityID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan route group row: %w", err)
		}
		g, ok := byGroup[groupID]
		if !ok {
			g = &grouping.Group{GroupID: groupID, RepresentativeID: repID}
			byGroup[groupID] = g
			order = append(order, groupID)
		}
		g.ActivityIDs = append(g.ActivityIDs, activityID)

		if !seen[activityID] {
			seen[activityID] = true
			track, err := s.loadTrack(ctx, activityID)
			if err != nil {
				return nil, nil, err
			}
			allRoutes = append(allRoutes, grouping.Route{ID: activityID, Signature: s.signatureFor(activityID, track, cfg)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	groups := make([]grouping.Group, 0, len(order))
	for _, id := range order {
		groups = append(groups, *byGroup[id])
	}
	return groups, allRoutes, nil
}

func (s *Store) persistRouteGroupsLocked(ctx context.Context, groups []grouping.Group) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin route group persistence: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM route_groups`); err != nil {
		return fmt.Errorf("failed to clear route groups: %w", err)
	}

	for _, g := range groups {
		if _, err := tx.Exec(ctx, `
			INSERT INTO route_groups (group_id, representative_activity_id, min_lat, max_lat, min_lng, max_lng)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, g.GroupID, g.RepresentativeID, g.Bounds.MinLat, g.Bounds.MaxLat, g.Bounds.MinLng, g.Bounds.MaxLng); err != nil {
			return fmt.Errorf("failed to insert route group %s: %w", g.GroupID, err)
		}
		for _, activityID := range g.ActivityIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO route_group_members (group_id, activity_id) VALUES ($1, $2)
			`, g.GroupID, activityID); err != nil {
				return fmt.Errorf("failed to insert route group member %s/%s: %w", g.GroupID, activityID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit route group persistence: %w", err)
	}
	return nil
}
