package persist

import (
	"testing"

	"sectioncat/internal/geo"
)

func TestLinestringWKTRoundTrip(t *testing.T) {
	points := []geo.Point{
		geo.New(51.5, -0.1),
		geo.New(51.51, -0.11),
		geo.New(51.52, -0.12),
	}

	wkt := linestringWKT(points)
	parsed, err := parseLineStringWKT(wkt)
	if err != nil {
		t.Fatalf("unexpected error parsing generated WKT: %v", err)
	}
	if len(parsed) != len(points) {
		t.Fatalf("expected %d points, got %d", len(points), len(parsed))
	}
	for i := range points {
		if diffF(parsed[i].Lat, points[i].Lat) > 1e-6 || diffF(parsed[i].Lng, points[i].Lng) > 1e-6 {
			t.Fatalf("point %d mismatch: got %+v want %+v", i, parsed[i], points[i])
		}
	}
}

func TestParseLineStringWKTFromPostGISFormat(t *testing.T) {
	// ST_AsText emits e.g. "LINESTRING(-0.1 51.5,-0.11 51.51)".
	points, err := parseLineStringWKT("LINESTRING(-0.1 51.5,-0.11 51.51)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Lat != 51.5 || points[0].Lng != -0.1 {
		t.Fatalf("unexpected first point: %+v", points[0])
	}
}

func TestParseLineStringWKTRejectsMalformed(t *testing.T) {
	if _, err := parseLineStringWKT("not a linestring"); err == nil {
		t.Fatal("expected an error for malformed WKT")
	}
}

func TestSportLowerHandlesMixedCase(t *testing.T) {
	if got := sportLower("Ride"); got != "ride" {
		t.Fatalf("expected 'ride', got %q", got)
	}
	if got := sportLower("TRAIL_RUN"); got != "trail_run" {
		t.Fatalf("expected 'trail_run', got %q", got)
	}
}

func diffF(a, b float64) float64 {
	if a < b {
		return b - a
	}
	return a - b
}
