package geo

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestHaversineSymmetricAndZero(t *testing.T) {
	london := New(51.5074, -0.1278)
	paris := New(48.8566, 2.3522)

	d1 := Haversine(london, paris)
	d2 := Haversine(paris, london)
	if !approxEqual(d1, d2, 1e-6) {
		t.Fatalf("haversine not symmetric: %v vs %v", d1, d2)
	}
	if d1 <= 0 {
		t.Fatalf("expected positive distance, got %v", d1)
	}
	if Haversine(london, london) != 0 {
		t.Fatalf("expected zero distance for identical points")
	}
	maxDist := math.Pi * earthRadiusMeters
	if d1 > maxDist {
		t.Fatalf("distance %v exceeds half circumference %v", d1, maxDist)
	}
}

func TestPolylineLengthPreservedByResample(t *testing.T) {
	track := []Point{
		New(51.50, -0.10),
		New(51.51, -0.11),
		New(51.52, -0.12),
		New(51.53, -0.13),
		New(51.54, -0.14),
		New(51.55, -0.15),
	}
	original := PolylineLength(track)
	resampled := ResampleByDistance(track, 20)
	got := PolylineLength(resampled)

	if original == 0 {
		t.Fatal("expected nonzero original length")
	}
	diff := math.Abs(got-original) / original
	if diff > 0.01 {
		t.Fatalf("resampled length diverges by %.4f%%: original=%v got=%v", diff*100, original, got)
	}
}

func TestResamplePreservesEndpoints(t *testing.T) {
	track := make([]Point, 0, 50)
	for i := 0; i < 50; i++ {
		track = append(track, New(51.5+float64(i)*0.001, -0.1+float64(i)*0.001))
	}
	resampled := ResampleByDistance(track, 10)
	if resampled[0] != track[0] {
		t.Fatalf("first point not preserved: %v vs %v", resampled[0], track[0])
	}
	last := resampled[len(resampled)-1]
	wantLast := track[len(track)-1]
	if !approxEqual(last.Lat, wantLast.Lat, 1e-9) || !approxEqual(last.Lng, wantLast.Lng, 1e-9) {
		t.Fatalf("last point not preserved: %v vs %v", last, wantLast)
	}
}

func TestBoundsOverlap(t *testing.T) {
	a := Bounds{MinLat: 0, MaxLat: 10, MinLng: 0, MaxLng: 10}
	b := Bounds{MinLat: 5, MaxLat: 15, MinLng: 5, MaxLng: 15}
	c := Bounds{MinLat: 20, MaxLat: 30, MinLng: 20, MaxLng: 30}

	if !a.Overlaps(b) {
		t.Fatal("expected a and b to overlap")
	}
	if a.Overlaps(c) {
		t.Fatal("expected a and c not to overlap")
	}
}

func TestSimplifyKeepsEndpoints(t *testing.T) {
	track := []Point{
		New(0, 0), New(0, 0.0001), New(0, 0.0002), New(1, 1),
	}
	simplified := SimplifyDouglasPeucker(track, 50)
	if simplified[0] != track[0] {
		t.Fatal("expected first point preserved")
	}
	if simplified[len(simplified)-1] != track[len(track)-1] {
		t.Fatal("expected last point preserved")
	}
}
