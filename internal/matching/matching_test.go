package matching

import (
	"testing"

	"sectioncat/internal/geo"
)

func straightTrack(n int, latStep, lngStep float64) []geo.Point {
	track := make([]geo.Point, n)
	for i := 0; i < n; i++ {
		track[i] = geo.New(51.5+float64(i)*latStep, -0.1+float64(i)*lngStep)
	}
	return track
}

func reversed(points []geo.Point) []geo.Point {
	out := make([]geo.Point, len(points))
	for i, p := range points {
		out[len(points)-1-i] = p
	}
	return out
}

func TestCompareIdenticalRoutesScoresHighSame(t *testing.T) {
	cfg := DefaultConfig()
	track := straightTrack(40, 0.001, 0.001)
	sig := NewSignature(track, cfg.ResampleCount)

	result, ok := CompareRoutes(sig, sig, cfg)
	if !ok {
		t.Fatal("expected identical routes to pass the length prefilter")
	}
	if result.Score < 95 {
		t.Fatalf("expected score >= 95 for identical routes, got %v", result.Score)
	}
	if result.Direction != DirectionSame {
		t.Fatalf("expected direction 'same', got %v", result.Direction)
	}
}

func TestCompareReversedRouteDetectsReverse(t *testing.T) {
	cfg := DefaultConfig()
	track := straightTrack(40, 0.002, 0.002)
	sigA := NewSignature(track, cfg.ResampleCount)
	sigB := NewSignature(reversed(track), cfg.ResampleCount)

	result, ok := CompareRoutes(sigA, sigB, cfg)
	if !ok {
		t.Fatal("expected prefilter to pass")
	}
	if result.Score < 95 {
		t.Fatalf("expected score >= 95 for reversed route, got %v", result.Score)
	}
	if result.Direction != DirectionReverse {
		t.Fatalf("expected direction 'reverse', got %v", result.Direction)
	}
}

func TestLengthPrefilterRejectsVeryDifferentLengths(t *testing.T) {
	cfg := DefaultConfig()
	short := straightTrack(10, 0.001, 0.001)
	long := straightTrack(200, 0.001, 0.001)

	sigShort := NewSignature(short, cfg.ResampleCount)
	sigLong := NewSignature(long, cfg.ResampleCount)

	_, ok := CompareRoutes(sigShort, sigLong, cfg)
	if ok {
		t.Fatal("expected length prefilter to reject a >2x length difference")
	}
}

func TestShouldGroupRoutesRejectsScaledRoute(t *testing.T) {
	cfg := DefaultConfig()
	track := straightTrack(100, 0.0015, 0.0015)
	scaled := straightTrack(160, 0.0015, 0.0015) // ~1.6x longer

	sigA := NewSignature(track, cfg.ResampleCount)
	sigB := NewSignature(scaled, cfg.ResampleCount)

	if ShouldGroupRoutes(sigA, sigB, cfg) {
		t.Fatal("expected distance-ratio prefilter to reject a 1.6x scaled route")
	}
}

func TestAverageMinDistanceAsymmetric(t *testing.T) {
	a := []geo.Point{geo.New(0, 0), geo.New(0, 1)}
	b := []geo.Point{geo.New(0, 0), geo.New(0, 0.5), geo.New(0, 1)}

	// AMD(a,b) should be ~0 since a's points are also in b.
	if d := AverageMinDistance(a, b); d > 1 {
		t.Fatalf("expected near-zero AMD(a,b), got %v", d)
	}
	// AMD(b,a) is not: b's midpoint (0,0.5) is ~55km from both of a's points.
	if d := AverageMinDistance(b, a); d < 1000 {
		t.Fatalf("expected AMD(b,a) well above zero, got %v", d)
	}
}
