package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sectioncat/internal/sections"
)

// SectionSummary is the lightweight projection returned by listing
// calls: everything a catalog UI needs without the polyline or
// per-activity portions.
type SectionSummary struct {
	ID             string
	Name           *string
	SportType      string
	VisitCount     int
	DistanceMeters float64
	Confidence     float64
	Scale          string
	IsUserDefined  bool
}

// GetSectionsByType returns every section for a sport type, most
// visited first.
func (s *Store) GetSectionsByType(ctx context.Context, sportType string) ([]sections.FrequentSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT id, name, sport_type, ST_AsText(polyline_geog::geometry),
			representative_activity_id, visit_count, distance_meters,
			confidence, observation_count, average_spread, scale, stability,
			version, is_user_defined
		FROM sections WHERE sport_type = $1 ORDER BY visit_count DESC
	`, sportType)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections by type: %w", err)
	}
	defer rows.Close()

	var out []sections.FrequentSection
	for rows.Next() {
		var sec sections.FrequentSection
		var wkt string
		var repActivity *string
		if err := rows.Scan(&sec.ID, &sec.Name, &sec.SportType, &wkt, &repActivity,
			&sec.VisitCount, &sec.DistanceMeters, &sec.Confidence, &sec.ObservationCount,
			&sec.AverageSpread, &sec.Scale, &sec.Stability, &sec.Version, &sec.IsUserDefined); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		if repActivity != nil {
			sec.RepresentativeActivity = *repActivity
		}
		points, err := parseLineStringWKT(wkt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse section polyline: %w", err)
		}
		sec.Polyline = points
		if err := s.loadMembershipLocked(ctx, &sec); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// GetSectionCountByType returns the number of sections for a sport
// type without loading any geometry.
func (s *Store) GetSectionCountByType(ctx context.Context, sportType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM sections WHERE sport_type = $1`, sportType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sections by type: %w", err)
	}
	return count, nil
}

// GetSectionSummariesByType is the supplemented lightweight listing
// call for catalog browsing UIs.
func (s *Store) GetSectionSummariesByType(ctx context.Context, sportType string) ([]SectionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT id, name, sport_type, visit_count, distance_meters, confidence, scale, is_user_defined
		FROM sections WHERE sport_type = $1 ORDER BY visit_count DESC
	`, sportType)
	if err != nil {
		return nil, fmt.Errorf("failed to query section summaries: %w", err)
	}
	defer rows.Close()

	var out []SectionSummary
	for rows.Next() {
		var summary SectionSummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.SportType, &summary.VisitCount,
			&summary.DistanceMeters, &summary.Confidence, &summary.Scale, &summary.IsUserDefined); err != nil {
			return nil, fmt.Errorf("failed to scan section summary: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// GetSection fetches a single section by id with its full polyline and
// activity memberships, or ok=false if it doesn't exist.
func (s *Store) GetSection(ctx context.Context, sectionID string) (sections.FrequentSection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sec sections.FrequentSection
	var wkt string
	var repActivity *string
	err := s.conn.QueryRow(ctx, `
		SELECT id, name, sport_type, ST_AsText(polyline_geog::geometry),
			representative_activity_id, visit_count, distance_meters,
			confidence, observation_count, average_spread, scale, stability,
			version, is_user_defined
		FROM sections WHERE id = $1
	`, sectionID).Scan(&sec.ID, &sec.Name, &sec.SportType, &wkt, &repActivity,
		&sec.VisitCount, &sec.DistanceMeters, &sec.Confidence, &sec.ObservationCount,
		&sec.AverageSpread, &sec.Scale, &sec.Stability, &sec.Version, &sec.IsUserDefined)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sections.FrequentSection{}, false, nil
		}
		return sections.FrequentSection{}, false, fmt.Errorf("failed to get section %s: %w", sectionID, err)
	}
	if repActivity != nil {
		sec.RepresentativeActivity = *repActivity
	}
	points, err := parseLineStringWKT(wkt)
	if err != nil {
		return sections.FrequentSection{}, false, fmt.Errorf("failed to parse section polyline: %w", err)
	}
	sec.Polyline = points
	if err := s.loadMembershipLocked(ctx, &sec); err != nil {
		return sections.FrequentSection{}, false, err
	}
	return sec, true, nil
}

// GetSectionsForActivity returns every section a given activity
// contributes to, each annotated with that activity's portion.
func (s *Store) GetSectionsForActivity(ctx context.Context, activityID string) ([]sections.FrequentSection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT s.id FROM sections s
		JOIN section_activities sa ON sa.section_id = s.id
		WHERE sa.activity_id = $1
	`, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections for activity: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan section id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []sections.FrequentSection
	for _, id := range ids {
		var sec sections.FrequentSection
		var wkt string
		var repActivity *string
		err := s.conn.QueryRow(ctx, `
			SELECT id, name, sport_type, ST_AsText(polyline_geog::geometry),
				representative_activity_id, visit_count, distance_meters,
				confidence, observation_count, average_spread, scale, stability,
				version, is_user_defined
			FROM sections WHERE id = $1
		`, id).Scan(&sec.ID, &sec.Name, &sec.SportType, &wkt, &repActivity,
			&sec.VisitCount, &sec.DistanceMeters, &sec.Confidence, &sec.ObservationCount,
			&sec.AverageSpread, &sec.Scale, &sec.Stability, &sec.Version, &sec.IsUserDefined)
		if err != nil {
			return nil, fmt.Errorf("failed to load section %s: %w", id, err)
		}
		if repActivity != nil {
			sec.RepresentativeActivity = *repActivity
		}
		points, err := parseLineStringWKT(wkt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse section polyline: %w", err)
		}
		sec.Polyline = points
		if err := s.loadMembershipLocked(ctx, &sec); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, nil
}

func (s *Store) loadMembershipLocked(ctx context.Context, sec *sections.FrequentSection) error {
	rows, err := s.conn.Query(ctx, `
		SELECT activity_id, start_index, end_index, direction
		FROM section_activities WHERE section_id = $1 ORDER BY activity_id
	`, sec.ID)
	if err != nil {
		return fmt.Errorf("failed to query section memberships: %w", err)
	}
	defer rows.Close()

	sec.ActivityIDs = nil
	sec.ActivityPortions = nil
	for rows.Next() {
		var p sections.Portion
		var direction string
		if err := rows.Scan(&p.ActivityID, &p.StartIndex, &p.EndIndex, &direction); err != nil {
			return fmt.Errorf("failed to scan section membership: %w", err)
		}
		p.Direction = sections.Direction(direction)
		sec.ActivityIDs = append(sec.ActivityIDs, p.ActivityID)
		sec.ActivityPortions = append(sec.ActivityPortions, p)
	}
	return rows.Err()
}
