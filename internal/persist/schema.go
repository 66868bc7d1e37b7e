// Package persist is the tiered storage engine: activity metadata and
// an in-memory R-tree stay resident, route signatures and consensus
// polylines ride in bounded LRU caches, and full GPS tracks load from
// Postgres/PostGIS on demand. Table layout follows the teacher's
// pggeo/schema.go idiom (GEOGRAPHY columns, GIST indexes, helper
// functions called via SELECT).
package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sectioncat/internal/pggeo"
)

// CreateTables creates the activity ingest tables (pggeo.CreateTables)
// and the section catalog tables, so any caller of Store.Init ends up
// with a schema AddActivity can write into without a separate -setup-db
// step.
func CreateTables(ctx context.Context, conn *pgx.Conn) error {
	if err := pggeo.CreateTables(ctx, conn); err != nil {
		return fmt.Errorf("failed to create activity tables: %w", err)
	}
	if err := createSectionsTable(ctx, conn); err != nil {
		return fmt.Errorf("failed to create sections table: %w", err)
	}
	if err := createSectionActivitiesTable(ctx, conn); err != nil {
		return fmt.Errorf("failed to create section_activities table: %w", err)
	}
	if err := createRouteGroupsTable(ctx, conn); err != nil {
		return fmt.Errorf("failed to create route_groups table: %w", err)
	}
	if err := createAPITokensTable(ctx, conn); err != nil {
		return fmt.Errorf("failed to create api_tokens table: %w", err)
	}
	return nil
}

// createAPITokensTable stores bcrypt hashes for the mutation HTTP
// surface's optional bearer-token auth; never plaintext.
func createAPITokensTable(ctx context.Context, conn *pgx.Conn) error {
	query := `
	CREATE TABLE IF NOT EXISTS api_tokens (
		label TEXT PRIMARY KEY,
		token_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	_, err := conn.Exec(ctx, query)
	return err
}

func createSectionsTable(ctx context.Context, conn *pgx.Conn) error {
	query := `
	CREATE TABLE IF NOT EXISTS sections (
		id TEXT PRIMARY KEY,
		name TEXT,
		sport_type TEXT NOT NULL,
		polyline_geog GEOGRAPHY(LINESTRING, 4326) NOT NULL,
		polyline_bbox_geom GEOMETRY(POLYGON, 4326)
			GENERATED ALWAYS AS (ST_Envelope(polyline_geog::GEOMETRY)) STORED,
		representative_activity_id TEXT,
		visit_count INTEGER NOT NULL DEFAULT 0,
		distance_meters DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		observation_count INTEGER NOT NULL DEFAULT 0,
		average_spread DOUBLE PRECISION NOT NULL DEFAULT 0,
		scale TEXT NOT NULL DEFAULT '',
		stability DOUBLE PRECISION NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		is_user_defined BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ,
		CONSTRAINT sections_polyline_has_two_points
			CHECK (ST_NPoints(polyline_geog::GEOMETRY) >= 2)
	)`
	if _, err := conn.Exec(ctx, query); err != nil {
		return err
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_sections_sport_type ON sections (sport_type)",
		"CREATE INDEX IF NOT EXISTS idx_sections_polyline_geog ON sections USING GIST (polyline_geog)",
		"CREATE INDEX IF NOT EXISTS idx_sections_bbox ON sections USING GIST (polyline_bbox_geom)",
		"CREATE INDEX IF NOT EXISTS idx_sections_visit_count ON sections (visit_count DESC)",
	}
	for _, q := range indexes {
		if _, err := conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to create sections index: %w", err)
		}
	}
	return nil
}

// createSectionActivitiesTable creates the junction table linking
// sections to the activities that contributed to them, including the
// per-activity portion (start/end index, direction) the matching
// stage solved for.
func createSectionActivitiesTable(ctx context.Context, conn *pgx.Conn) error {
	query := `
	CREATE TABLE IF NOT EXISTS section_activities (
		section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
		activity_id TEXT NOT NULL,
		start_index INTEGER NOT NULL,
		end_index INTEGER NOT NULL,
		direction TEXT NOT NULL,
		PRIMARY KEY (section_id, activity_id)
	)`
	if _, err := conn.Exec(ctx, query); err != nil {
		return err
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_section_activities_activity_id ON section_activities (activity_id)",
		"CREATE INDEX IF NOT EXISTS idx_section_activities_section_id ON section_activities (section_id)",
	}
	for _, q := range indexes {
		if _, err := conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to create section_activities index: %w", err)
		}
	}
	return nil
}

// createRouteGroupsTable persists the disjoint-set output of
// GroupSignatures so incremental grouping (GroupIncremental) can seed
// itself from prior runs without re-comparing every pair of routes.
func createRouteGroupsTable(ctx context.Context, conn *pgx.Conn) error {
	query := `
	CREATE TABLE IF NOT EXISTS route_groups (
		group_id TEXT PRIMARY KEY,
		representative_activity_id TEXT NOT NULL,
		min_lat DOUBLE PRECISION NOT NULL,
		max_lat DOUBLE PRECISION NOT NULL,
		min_lng DOUBLE PRECISION NOT NULL,
		max_lng DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := conn.Exec(ctx, query); err != nil {
		return err
	}

	query2 := `
	CREATE TABLE IF NOT EXISTS route_group_members (
		group_id TEXT NOT NULL REFERENCES route_groups(group_id) ON DELETE CASCADE,
		activity_id TEXT NOT NULL,
		PRIMARY KEY (group_id, activity_id)
	)`
	_, err := conn.Exec(ctx, query2)
	return err
}

// TruncateTables clears the section catalog without dropping it, for
// test setup and forced re-detection.
func TruncateTables(ctx context.Context, conn *pgx.Conn) error {
	tables := []string{"route_group_members", "route_groups", "section_activities", "sections"}
	for _, table := range tables {
		if _, err := conn.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}
