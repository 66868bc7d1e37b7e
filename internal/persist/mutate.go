package persist

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"sectioncat/internal/geo"
	"sectioncat/internal/sections"
)

var customSectionCounter uint64

// CreateSectionParams mirrors spec.md §6's create_section payload.
// DistanceMeters is accepted but ignored: the persisted value is
// always recomputed from Polyline.
type CreateSectionParams struct {
	SportType        string
	Polyline         []geo.Point
	DistanceMeters   float64 // ignored; recomputed from Polyline
	Name             *string
	SourceActivityID *string
	StartIndex       int
	EndIndex         int
}

// CreateSection inserts a user-authored section. Supplying
// SourceActivityID makes it "custom" (is_user_defined = true); leaving
// it nil makes it "auto" even though it was user-submitted, matching
// spec.md's distinction between a hand-drawn polyline and one
// extracted from a referenced activity's track.
func (s *Store) CreateSection(ctx context.Context, p CreateSectionParams) (string, error) {
	if len(p.Polyline) < 2 {
		return "", fmt.Errorf("section polyline needs at least 2 points")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := atomic.AddUint64(&customSectionCounter, 1)
	prefix := "auto"
	isUserDefined := false
	if p.SourceActivityID != nil {
		prefix = "custom"
		isUserDefined = true
	}
	id := fmt.Sprintf("%s_%s_%05d", prefix, sportLower(p.SportType), n)

	distance := geo.PolylineLength(p.Polyline)

	_, err := s.conn.Exec(ctx, `
		INSERT INTO sections (id, name, sport_type, polyline_geog, representative_activity_id,
			visit_count, distance_meters, confidence, is_user_defined)
		VALUES ($1, $2, $3, ST_GeogFromText($4), $5, $6, $7, $8, $9)
	`, id, p.Name, p.SportType, linestringWKT(p.Polyline), p.SourceActivityID,
		boolToVisitCount(p.SourceActivityID != nil), distance, 1.0, isUserDefined)
	if err != nil {
		return "", fmt.Errorf("failed to create section: %w", err)
	}

	if p.SourceActivityID != nil {
		if _, err := s.conn.Exec(ctx, `
			INSERT INTO section_activities (section_id, activity_id, start_index, end_index, direction)
			VALUES ($1, $2, $3, $4, $5)
		`, id, *p.SourceActivityID, p.StartIndex, p.EndIndex, string(sections.DirectionSame)); err != nil {
			return "", fmt.Errorf("failed to record section source activity: %w", err)
		}
	}

	return id, nil
}

func boolToVisitCount(hasSource bool) int {
	if hasSource {
		return 1
	}
	return 0
}

func sportLower(sportType string) string {
	out := make([]rune, 0, len(sportType))
	for _, r := range sportType {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}

// RenameSection updates a section's display name. Returns ok=false if
// the section doesn't exist.
func (s *Store) RenameSection(ctx context.Context, sectionID string, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.conn.Exec(ctx, `UPDATE sections SET name = $2, updated_at = NOW() WHERE id = $1`, sectionID, name)
	if err != nil {
		return false, fmt.Errorf("failed to rename section %s: %w", sectionID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetSectionReference records activityID as the section's
// representative, stores the activity's [startIndex, endIndex] slice
// in section_activities and marks the section user-defined, for custom
// and auto-detected sections alike. The section's polyline is not
// re-extracted from the activity's track.
func (s *Store) SetSectionReference(ctx context.Context, sectionID, activityID string, startIndex, endIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := strconv.ParseInt(activityID, 10, 64); err != nil {
		return false, fmt.Errorf("activity id %q must be numeric: %w", activityID, err)
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE sections SET representative_activity_id = $2, is_user_defined = TRUE, updated_at = NOW()
		WHERE id = $1
	`, sectionID, activityID)
	if err != nil {
		return false, fmt.Errorf("failed to set section reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO section_activities (section_id, activity_id, start_index, end_index, direction)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (section_id, activity_id) DO UPDATE SET start_index = EXCLUDED.start_index, end_index = EXCLUDED.end_index
	`, sectionID, activityID, startIndex, endIndex, string(sections.DirectionSame))
	if err != nil {
		return false, fmt.Errorf("failed to record section reference membership: %w", err)
	}
	return true, nil
}

// ResetSectionReference clears is_user_defined, reverting a section to
// automatic detection eligibility.
func (s *Store) ResetSectionReference(ctx context.Context, sectionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.conn.Exec(ctx, `UPDATE sections SET is_user_defined = FALSE, updated_at = NOW() WHERE id = $1`, sectionID)
	if err != nil {
		return false, fmt.Errorf("failed to reset section reference: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteSection removes a section and its membership rows.
func (s *Store) DeleteSection(ctx context.Context, sectionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, err := s.conn.Exec(ctx, `DELETE FROM sections WHERE id = $1`, sectionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete section %s: %w", sectionID, err)
	}
	return tag.RowsAffected() > 0, nil
}
