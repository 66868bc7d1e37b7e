package sections

import (
	"testing"

	"sectioncat/internal/geo"
)

func straightLine(n int, lat0, lng0, step float64) []geo.Point {
	out := make([]geo.Point, n)
	for i := 0; i < n; i++ {
		out[i] = geo.New(lat0+float64(i)*step, lng0)
	}
	return out
}

func TestConsensusOfIdenticalTracesEqualsReference(t *testing.T) {
	reference := straightLine(20, 51.5, -0.1, 0.0005)
	traces := [][]geo.Point{reference, reference, reference}

	result := ComputeConsensusPolyline(reference, traces, 25)

	if result.Confidence != 1 {
		t.Fatalf("expected confidence 1 for identical traces, got %v", result.Confidence)
	}
	if result.AverageSpread != 0 {
		t.Fatalf("expected zero average spread, got %v", result.AverageSpread)
	}
	for i, d := range result.PointDensity {
		if d != len(traces) {
			t.Fatalf("expected point_density[%d] = %d, got %d", i, len(traces), d)
		}
	}
	for i, p := range result.Polyline {
		if p != reference[i] {
			t.Fatalf("expected consensus point %d to equal reference, got %v vs %v", i, p, reference[i])
		}
	}
}

func TestMedoidSelectsMinimumAMDTrace(t *testing.T) {
	base := straightLine(30, 48.85, 2.35, 0.0004)
	noisy := make([]geo.Point, len(base))
	copy(noisy, base)
	noisy[10].Lat += 0.01 // push one point far off

	cluster := OverlapCluster{
		Overlaps: []FullTrackOverlap{
			{ActivityA: "clean1", ActivityB: "clean2", PointsA: base, PointsB: base},
			{ActivityA: "clean2", ActivityB: "noisy", PointsA: base, PointsB: noisy},
		},
	}

	medoidID, _ := SelectMedoid(cluster)
	if medoidID == "noisy" {
		t.Fatalf("expected a clean trace to be selected as medoid, got %s", medoidID)
	}
}
