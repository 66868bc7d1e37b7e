package tiles

import (
	"testing"

	"sectioncat/internal/geo"
	"sectioncat/internal/sections"
)

func TestAccumulateIncreasesCellDensity(t *testing.T) {
	bounds := geo.Bounds{MinLat: 51.0, MaxLat: 52.0, MinLng: -1.0, MaxLng: 0.0}
	grid := NewGrid(bounds, 10, 10)

	sec := sections.FrequentSection{
		VisitCount: 3,
		Polyline: []geo.Point{
			geo.New(51.5, -0.5),
			geo.New(51.5, -0.5),
		},
	}
	grid.Accumulate(sec)

	if grid.Max() != 6 {
		t.Fatalf("expected max density 6 (2 points * visit_count 3), got %d", grid.Max())
	}
}

func TestAccumulateIgnoresPointsOutsideBounds(t *testing.T) {
	bounds := geo.Bounds{MinLat: 51.0, MaxLat: 52.0, MinLng: -1.0, MaxLng: 0.0}
	grid := NewGrid(bounds, 4, 4)

	sec := sections.FrequentSection{
		VisitCount: 1,
		Polyline:   []geo.Point{geo.New(10, 10)},
	}
	grid.Accumulate(sec)

	if grid.Max() != 0 {
		t.Fatalf("expected no density from an out-of-bounds point, got %d", grid.Max())
	}
}
