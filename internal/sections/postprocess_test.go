package sections

import (
	"testing"

	"sectioncat/internal/geo"
)

func TestFlatDedupNoSurvivingPairExceedsThresholds(t *testing.T) {
	long := straightLine(50, 51.5, -0.1, 0.001)
	short := long[:20] // fully contained, same points

	sections := []FrequentSection{
		{ID: "s1", SportType: "ride", Polyline: long, DistanceMeters: geo.PolylineLength(long)},
		{ID: "s2", SportType: "ride", Polyline: short, DistanceMeters: geo.PolylineLength(short)},
	}

	out := removeOverlappingSectionsFlat(sections, 25)

	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			containment := computePolylineContainment(out[j].Polyline, out[i].Polyline, 25)
			lengthRatio := ratio(out[j].DistanceMeters, out[i].DistanceMeters)
			if containment > 0.9 && lengthRatio > 0.7 {
				t.Fatalf("surviving pair %s/%s violates dedup invariant: containment=%v ratio=%v", out[i].ID, out[j].ID, containment, lengthRatio)
			}
		}
	}
	if len(out) != 1 {
		t.Fatalf("expected the fully-contained shorter section to be dropped, got %d sections", len(out))
	}
}

func TestHierarchicalDedupPreservesDifferentScale(t *testing.T) {
	long := straightLine(50, 51.5, -0.1, 0.001)
	short := long[:20]

	sections := []FrequentSection{
		{ID: "s1", SportType: "ride", Scale: "long", Polyline: long, DistanceMeters: geo.PolylineLength(long)},
		{ID: "s2", SportType: "ride", Scale: "medium", Polyline: short, DistanceMeters: geo.PolylineLength(short)},
	}

	out := removeOverlappingSectionsHierarchical(sections, 25)
	if len(out) != 2 {
		t.Fatalf("expected both scale-distinct sections to survive hierarchical dedup, got %d", len(out))
	}
}

func TestPortionSolverIndicesWithinBounds(t *testing.T) {
	consensus := straightLine(40, 51.5, -0.1, 0.0005)
	track := straightLine(60, 51.5, -0.1, 0.0005)

	portions := ComputeActivityPortions(consensus, map[string][]geo.Point{"act1": track}, 25)
	for _, p := range portions {
		if !(p.StartIndex >= 0 && p.StartIndex < p.EndIndex && p.EndIndex <= len(track)) {
			t.Fatalf("invalid portion indices: %+v (track len %d)", p, len(track))
		}
	}
}
