package pggeo

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
)

// CreateTables creates the activity ingest tables this catalog actually
// reads from: activity_summaries (id + sport_type) and
// activity_geometries (the stored route). The teacher's favorite-segment
// matching tables are what this module replaces with the sections
// catalog in internal/persist, so they are not part of this schema.
func CreateTables(ctx context.Context, conn *pgx.Conn) error {

	if err := createActivitySummariesTable(ctx, conn); err != nil {
		return fmt.Errorf("failed to create activity summaries table: %w", err)
	}

	if err := createActivityGeometriesTable(ctx, conn); err != nil {
		return fmt.Errorf("failed to create activity geometries table: %w", err)
	}

	if err := createHelperFunctions(ctx, conn); err != nil {
		return fmt.Errorf("failed to create helper functions: %w", err)
	}

	return nil
}

func TruncateTables(ctx context.Context, conn *pgx.Conn) error {
	tables := []string{
		"activity_geometries",
		"activity_summaries",
	}

	for _, table := range tables {
		query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

func DropAndRecreateTables(ctx context.Context, conn *pgx.Conn) error {
	// Drop tables in reverse dependency order
	tables := []string{
		"activity_geometries", // Depends on activity_summaries
		"activity_summaries",  // Base table
	}

	log.Printf("🗑️ Dropping %d tables...", len(tables))
	for _, table := range tables {
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)
		if _, err := conn.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		log.Printf("   ✓ Dropped table: %s", table)
	}

	log.Printf("🔨 Recreating all tables...")
	// Recreate all tables
	if err := CreateTables(ctx, conn); err != nil {
		return err
	}

	log.Printf("✅ All tables dropped and recreated successfully")
	return nil
}

// createActivitySummariesTable holds the one piece of activity metadata
// this catalog needs outside the route geometry itself: sport_type,
// which per-sport detection and the query surface both key off of.
func createActivitySummariesTable(ctx context.Context, conn *pgx.Conn) error {
	query := `
	CREATE TABLE IF NOT EXISTS activity_summaries (
		id BIGINT PRIMARY KEY,
		sport_type TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)`

	_, err := conn.Exec(ctx, query)
	if err != nil {
		return err
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_activity_summaries_sport_type ON activity_summaries (sport_type)",
	}

	for _, indexQuery := range indexes {
		if _, err := conn.Exec(ctx, indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func createActivityGeometriesTable(ctx context.Context, conn *pgx.Conn) error {
	query := `
	CREATE TABLE IF NOT EXISTS activity_geometries (
		activity_id BIGINT PRIMARY KEY REFERENCES activity_summaries(id) ON DELETE CASCADE,
		route_geog GEOGRAPHY(LINESTRING, 4326) NOT NULL,
		route_bbox_geom    GEOMETRY(POLYGON, 4326)
                     GENERATED ALWAYS AS (ST_Envelope(route_geog::GEOMETRY)) STORED,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW(),
	CONSTRAINT activities_route_has_two_points
		CHECK (ST_NPoints(route_geog::GEOMETRY) >= 2)
	)`

	_, err := conn.Exec(ctx, query)
	if err != nil {
		return err
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_activity_geometries_route_geog ON activity_geometries USING GIST (route_geog)",
		"CREATE INDEX IF NOT EXISTS idx_activity_geometries_bbox ON activity_geometries USING GIST (route_bbox_geom)",
	}

	for _, indexQuery := range indexes {
		if _, err := conn.Exec(ctx, indexQuery); err != nil {
			return fmt.Errorf("failed to create spatial index: %w", err)
		}
	}

	return nil
}

// createHelperFunctions installs the one PostGIS helper this catalog's
// ingest path calls directly: turning a pair of lon/lat arrays into a
// GEOGRAPHY linestring. Skipped (not fatal) when PostGIS isn't present,
// matching the teacher's WKT-insert fallback in internal/persist.
func createHelperFunctions(ctx context.Context, conn *pgx.Conn) error {
	// First, check if PostGIS is available
	var postgisVersion string
	err := conn.QueryRow(ctx, "SELECT PostGIS_Version()").Scan(&postgisVersion)
	if err != nil {
		log.Printf("⚠️ PostGIS not available, skipping spatial helper functions: %v", err)
		return nil
	}
	log.Printf("✅ PostGIS version: %s", postgisVersion)

	helperQueries := []string{
		// Make route geography from longitude and latitude
		`CREATE OR REPLACE FUNCTION make_route_geog_from_lonlat(
			lon DOUBLE PRECISION[],
			lat DOUBLE PRECISION[]
		) RETURNS GEOGRAPHY
		LANGUAGE SQL IMMUTABLE STRICT AS
		$$
		SELECT ST_MakeLine(
			ARRAY(
				SELECT ST_SetSRID(ST_MakePoint(lon[i], lat[i]), 4326)
				FROM generate_subscripts(lon,1) AS i
				ORDER BY i
			)
		)::GEOGRAPHY;
		$$;`,
	}

	for _, helperQuery := range helperQueries {
		if _, err := conn.Exec(ctx, helperQuery); err != nil {
			return fmt.Errorf("failed to create helper function: %w", err)
		}
	}

	return nil
}

// TableSchema represents the expected schema for a table
type TableSchema struct {
	Name        string
	Columns     []ColumnDef
	Indexes     []string
	Constraints []string
	IsCache     bool // If true, safe to drop/recreate on mismatch
}

// ColumnDef represents a column definition
type ColumnDef struct {
	Name         string
	Type         string
	Nullable     bool
	DefaultValue *string
}

// TableValidationResult represents the result of validating a table
type TableValidationResult struct {
	TableName   string
	Exists      bool
	Matches     bool
	Differences []string
	ActionTaken string
}

// ValidateAndMigrateSchema validates the activity tables and
// creates/fixes them as needed. If forceRebuild is true, tables with
// schema mismatches are dropped and recreated even though they hold
// real ingest data (WARNING: this deletes that data). Wired into
// cmd/sectionsctl's -validate-schema/-force-rebuild flags.
func ValidateAndMigrateSchema(ctx context.Context, conn *pgx.Conn, forceRebuild bool) error {
	log.Printf("🔍 Validating database schema...")
	if forceRebuild {
		log.Printf("⚠️ Force rebuild mode enabled - mismatched tables will be dropped and recreated")
	}

	expectedSchemas := GetExpectedTableSchemas()
	var results []TableValidationResult

	for _, schema := range expectedSchemas {
		result, err := ValidateTableSchema(ctx, conn, schema)
		if err != nil {
			log.Printf("❌ Error validating table %s: %v", schema.Name, err)
			return fmt.Errorf("failed to validate table %s: %w", schema.Name, err)
		}
		results = append(results, result)

		// Handle missing or mismatched tables
		if !result.Exists {
			log.Printf("📝 Table %s does not exist, creating...", schema.Name)
			if err := createTableBySchema(ctx, conn, schema); err != nil {
				return fmt.Errorf("failed to create table %s: %w", schema.Name, err)
			}
			result.ActionTaken = "created"
			log.Printf("✅ Created table %s", schema.Name)
		} else if !result.Matches {
			log.Printf("⚠️ Table %s schema mismatch detected", schema.Name)
			if len(result.Differences) > 0 {
				for _, diff := range result.Differences {
					log.Printf("   - %s", diff)
				}
			}

			// For cache tables, always drop and recreate
			// For data tables, only drop and recreate if forceRebuild is true
			shouldRebuild := schema.IsCache || forceRebuild

			if shouldRebuild {
				if forceRebuild && !schema.IsCache {
					log.Printf("⚠️ WARNING: Force rebuilding data table %s - ALL DATA WILL BE LOST", schema.Name)
				}
				log.Printf("🔄 Dropping and recreating table %s...", schema.Name)
				dropQuery := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", schema.Name)
				if _, err := conn.Exec(ctx, dropQuery); err != nil {
					return fmt.Errorf("failed to drop table %s: %w", schema.Name, err)
				}
				if err := createTableBySchema(ctx, conn, schema); err != nil {
					return fmt.Errorf("failed to recreate table %s: %w", schema.Name, err)
				}
				result.ActionTaken = "recreated"
				log.Printf("✅ Recreated table %s", schema.Name)
			} else {
				// For data tables without force rebuild, log warning but don't auto-fix
				log.Printf("⚠️ Table %s has schema differences but is not a cache table", schema.Name)
				log.Printf("   Use -force-rebuild flag to rebuild this table (WARNING: will delete all data)")
				result.ActionTaken = "warning"
			}
		} else {
			log.Printf("✅ Table %s schema is valid", schema.Name)
			result.ActionTaken = "valid"
		}
	}

	// Ensure helper functions exist
	if err := createHelperFunctions(ctx, conn); err != nil {
		log.Printf("⚠️ Warning: failed to create helper functions: %v", err)
		// Don't fail on this, as PostGIS might not be available
	}

	log.Printf("✅ Schema validation completed")
	return nil
}

// ValidateTableSchema validates a table against expected schema
func ValidateTableSchema(ctx context.Context, conn *pgx.Conn, expected TableSchema) (TableValidationResult, error) {
	result := TableValidationResult{
		TableName:   expected.Name,
		Exists:      false,
		Matches:     false,
		Differences: []string{},
	}

	// Check if table exists
	var exists bool
	checkQuery := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`
	err := conn.QueryRow(ctx, checkQuery, expected.Name).Scan(&exists)
	if err != nil {
		return result, fmt.Errorf("failed to check table existence: %w", err)
	}

	result.Exists = exists
	if !exists {
		return result, nil
	}

	// Get actual columns - use pg_catalog for better type information
	columnsQuery := `
		SELECT
			c.column_name,
			CASE
				WHEN c.data_type = 'USER-DEFINED' THEN c.udt_name
				ELSE c.data_type
			END as data_type,
			c.is_nullable,
			c.column_default
		FROM information_schema.columns c
		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position
	`
	rows, err := conn.Query(ctx, columnsQuery, expected.Name)
	if err != nil {
		return result, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	actualColumns := make(map[string]ColumnDef)
	for rows.Next() {
		var col ColumnDef
		var nullable string
		var defaultValue *string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &defaultValue); err != nil {
			return result, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Nullable = nullable == "YES"
		col.DefaultValue = defaultValue
		actualColumns[col.Name] = col
	}

	// Check expected columns
	expectedColumns := make(map[string]ColumnDef)
	for _, col := range expected.Columns {
		expectedColumns[col.Name] = col
	}

	// Compare columns
	for _, expectedCol := range expected.Columns {
		actualCol, ok := actualColumns[expectedCol.Name]
		if !ok {
			result.Differences = append(result.Differences,
				fmt.Sprintf("missing column: %s", expectedCol.Name))
			continue
		}

		// Normalize type for comparison (PostgreSQL has many type aliases)
		expectedType := normalizeType(expectedCol.Type)
		actualType := normalizeType(actualCol.Type)
		if expectedType != actualType {
			result.Differences = append(result.Differences,
				fmt.Sprintf("column %s type mismatch: expected %s, got %s", expectedCol.Name, expectedType, actualType))
		}

		if expectedCol.Nullable != actualCol.Nullable {
			result.Differences = append(result.Differences,
				fmt.Sprintf("column %s nullable mismatch: expected %v, got %v", expectedCol.Name, expectedCol.Nullable, actualCol.Nullable))
		}
	}

	// Check for extra columns (warn but don't fail)
	// First, check if columns are generated columns (we should ignore those if they're not in expected schema)
	generatedColumnsQuery := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		AND is_generated = 'ALWAYS'
	`
	generatedRows, err := conn.Query(ctx, generatedColumnsQuery, expected.Name)
	generatedCols := make(map[string]bool)
	if err == nil {
		defer generatedRows.Close()
		for generatedRows.Next() {
			var genColName string
			if err := generatedRows.Scan(&genColName); err == nil {
				generatedCols[genColName] = true
			}
		}
	}

	for colName := range actualColumns {
		if _, ok := expectedColumns[colName]; !ok {
			// Don't warn about generated columns that aren't in expected schema
			// (they're auto-created and may vary)
			if !generatedCols[colName] {
				result.Differences = append(result.Differences,
					fmt.Sprintf("extra column: %s (not in expected schema)", colName))
			}
		}
	}

	// Check indexes (simplified - just check if they exist)
	for _, indexName := range expected.Indexes {
		indexQuery := `
			SELECT EXISTS (
				SELECT FROM pg_indexes
				WHERE schemaname = 'public' AND indexname = $1
			)
		`
		var indexExists bool
		if err := conn.QueryRow(ctx, indexQuery, indexName).Scan(&indexExists); err != nil {
			// Log but don't fail
			log.Printf("⚠️ Could not check index %s: %v", indexName, err)
			continue
		}
		if !indexExists {
			result.Differences = append(result.Differences,
				fmt.Sprintf("missing index: %s", indexName))
		}
	}

	result.Matches = len(result.Differences) == 0
	return result, nil
}

// normalizeType normalizes PostgreSQL type names for comparison
func normalizeType(typ string) string {
	typ = strings.ToLower(typ)
	typ = strings.TrimSpace(typ)

	// Handle geography/geometry types - they may have parameters
	if strings.HasPrefix(typ, "geography") || strings.HasPrefix(typ, "geometry") {
		return strings.Split(typ, "(")[0] // Just return base type
	}

	// Handle common type aliases
	typeMap := map[string]string{
		"int8":        "bigint",
		"int4":        "integer",
		"float8":      "double precision",
		"float4":      "real",
		"bool":        "boolean",
		"timestamptz": "timestamp with time zone",
		"timestamp":   "timestamp without time zone",
		"geography":   "geography",
		"geometry":    "geometry",
		"text":        "text",
		"varchar":     "character varying",
		"character":   "character",
	}
	if normalized, ok := typeMap[typ]; ok {
		return normalized
	}
	return typ
}

// GetExpectedTableSchemas returns the expected schemas for the activity
// tables.
func GetExpectedTableSchemas() []TableSchema {
	return []TableSchema{
		{
			Name:    "activity_summaries",
			IsCache: false,
			Columns: []ColumnDef{
				{Name: "id", Type: "bigint", Nullable: false},
				{Name: "sport_type", Type: "text", Nullable: false},
				{Name: "created_at", Type: "timestamp with time zone", Nullable: true},
				{Name: "updated_at", Type: "timestamp with time zone", Nullable: true},
			},
			Indexes: []string{
				"idx_activity_summaries_sport_type",
			},
		},
		{
			Name:    "activity_geometries",
			IsCache: false,
			Columns: []ColumnDef{
				{Name: "activity_id", Type: "bigint", Nullable: false},
				{Name: "route_geog", Type: "geography", Nullable: false},
				{Name: "route_bbox_geom", Type: "geometry", Nullable: true}, // Generated column
				{Name: "created_at", Type: "timestamp with time zone", Nullable: true},
				{Name: "updated_at", Type: "timestamp with time zone", Nullable: true},
			},
			Indexes: []string{
				"idx_activity_geometries_route_geog",
				"idx_activity_geometries_bbox",
			},
		},
	}
}

// createTableBySchema creates a table based on the schema definition
func createTableBySchema(ctx context.Context, conn *pgx.Conn, schema TableSchema) error {
	switch schema.Name {
	case "activity_summaries":
		return createActivitySummariesTable(ctx, conn)
	case "activity_geometries":
		return createActivityGeometriesTable(ctx, conn)
	default:
		return fmt.Errorf("unknown table schema: %s", schema.Name)
	}
}
