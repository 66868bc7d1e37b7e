package sections

import (
	"testing"

	"sectioncat/internal/geo"
)

func parallelTracks(n int, lat0, lng0, latStep, offsetDeg float64) ([]geo.Point, []geo.Point) {
	a := make([]geo.Point, n)
	b := make([]geo.Point, n)
	for i := 0; i < n; i++ {
		a[i] = geo.New(lat0+float64(i)*latStep, lng0)
		b[i] = geo.New(lat0+float64(i)*latStep, lng0+offsetDeg)
	}
	return a, b
}

func TestFindFullTrackOverlapParallelRoads(t *testing.T) {
	// ~1km long, ~20m apart (20m / 111_320 m-per-degree-lng at equator-ish lat).
	offsetDeg := 20.0 / 111_320.0
	a, b := parallelTracks(200, 51.5, -0.1, 1000.0/200.0/111_000.0, offsetDeg)

	overlap, ok := FindFullTrackOverlap("act_a", "act_b", a, b, 30, 100)
	if !ok {
		t.Fatal("expected an overlap to be found for two 20m-apart parallel tracks")
	}
	if overlap.ActivityA != "act_a" || overlap.ActivityB != "act_b" {
		t.Fatalf("unexpected activity ids in overlap: %+v", overlap)
	}
	length := geo.PolylineLength(overlap.PointsA)
	if length < 100 {
		t.Fatalf("expected overlap length >= min_section_length, got %v", length)
	}
}

func TestFindFullTrackOverlapNoneWhenTooFar(t *testing.T) {
	a, b := parallelTracks(100, 51.5, -0.1, 0.0005, 0.01) // ~690m apart
	_, ok := FindFullTrackOverlap("a", "b", a, b, 30, 100)
	if ok {
		t.Fatal("expected no overlap when tracks are far apart")
	}
}

func TestClusterOverlapsGroupsByProximity(t *testing.T) {
	a, b := parallelTracks(100, 51.5, -0.1, 0.0005, 20.0/111_320.0)
	overlap1, ok := FindFullTrackOverlap("a1", "a2", a, b, 30, 50)
	if !ok {
		t.Fatal("setup: expected overlap")
	}
	c, d := parallelTracks(100, 51.5, -0.1, 0.0005, 22.0/111_320.0)
	overlap2, ok := FindFullTrackOverlap("a3", "a4", c, d, 30, 50)
	if !ok {
		t.Fatal("setup: expected second overlap")
	}

	clusters := ClusterOverlaps([]FullTrackOverlap{overlap1, overlap2}, 40, 30)
	if len(clusters) != 1 {
		t.Fatalf("expected the two near-identical overlaps to cluster together, got %d clusters", len(clusters))
	}
}
