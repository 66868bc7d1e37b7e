package spatial

import (
	"testing"

	"sectioncat/internal/geo"
)

func TestNearestNeighbor(t *testing.T) {
	points := []geo.Point{
		geo.New(51.50, -0.10),
		geo.New(51.51, -0.11),
		geo.New(51.52, -0.12),
	}
	tree := BuildPointTree(points)

	nearest, _, ok := tree.NearestNeighbor(geo.New(51.509, -0.099))
	if !ok {
		t.Fatal("expected a nearest neighbor")
	}
	if nearest.Idx != 0 {
		t.Fatalf("expected index 0 nearest, got %d", nearest.Idx)
	}
}

func TestNearestWithinThreshold(t *testing.T) {
	points := []geo.Point{geo.New(0, 0)}
	tree := BuildPointTree(points)

	thresholdSq := ThresholdSquaredDegrees(10)
	_, ok := tree.NearestWithinSquaredDegrees(geo.New(10, 10), thresholdSq)
	if ok {
		t.Fatal("expected far point to be outside threshold")
	}

	_, ok = tree.NearestWithinSquaredDegrees(geo.New(0.00001, 0.00001), thresholdSq)
	if !ok {
		t.Fatal("expected very close point to be within threshold")
	}
}

func TestBoundsOverlapTracks(t *testing.T) {
	a := []geo.Point{geo.New(0, 0), geo.New(0.01, 0.01)}
	b := []geo.Point{geo.New(0.02, 0.02), geo.New(0.03, 0.03)}
	c := []geo.Point{geo.New(10, 10), geo.New(10.01, 10.01)}

	if !BoundsOverlapTracks(a, b, 2000) {
		t.Fatal("expected a and b to overlap with a generous buffer")
	}
	if BoundsOverlapTracks(a, c, 2000) {
		t.Fatal("expected a and c not to overlap")
	}
}
