// Package spatial wraps github.com/dhconnelly/rtreego behind the
// nearest-neighbor and bounds-overlap surface the section-detection
// package needs, mirroring the role rstar plays
// in the original Rust implementation (see sections/rtree.rs).
package spatial

import (
	"github.com/dhconnelly/rtreego"

	"sectioncat/internal/geo"
)

// IndexedPoint is a geo.Point tagged with its original index in the
// polyline it came from, so nearest-neighbor queries can recover
// position along the source track.
type IndexedPoint struct {
	Idx   int
	Point geo.Point
}

// Bounds implements rtreego.Spatial for a single point (a degenerate
// rectangle).
func (p IndexedPoint) Bounds() *rtreego.Rect {
	rect, _ := rtreego.NewRect(rtreego.Point{p.Point.Lng, p.Point.Lat}, []float64{1e-9, 1e-9})
	return rect
}

// PointTree is an R-tree of IndexedPoints supporting nearest-neighbor
// queries by squared-degree distance (not haversine — matches the
// original's use of rstar's internal Euclidean ordering purely to pick
// candidates, with haversine applied afterward for real distances).
type PointTree struct {
	tree   *rtreego.Rtree
	points []IndexedPoint
}

// BuildPointTree builds an R-tree over points, inserting them one at a
// time.
func BuildPointTree(points []geo.Point) *PointTree {
	tree := rtreego.NewTree(2, 4, 25)
	indexed := make([]IndexedPoint, len(points))
	for i, p := range points {
		indexed[i] = IndexedPoint{Idx: i, Point: p}
		tree.Insert(indexed[i])
	}
	return &PointTree{tree: tree, points: indexed}
}

// Len reports how many points are indexed.
func (t *PointTree) Len() int {
	return len(t.points)
}

// NearestNeighbor returns the indexed point closest to query (by plain
// Euclidean distance in lat/lng space, consistent with how the
// original's rstar-backed index orders candidates) along with the
// squared-degree distance. ok is false if the tree is empty.
func (t *PointTree) NearestNeighbor(query geo.Point) (IndexedPoint, float64, bool) {
	if len(t.points) == 0 {
		return IndexedPoint{}, 0, false
	}
	nearest := t.tree.NearestNeighbor(rtreego.Point{query.Lng, query.Lat})
	ip, ok := nearest.(IndexedPoint)
	if !ok {
		return IndexedPoint{}, 0, false
	}
	dLat := ip.Point.Lat - query.Lat
	dLng := ip.Point.Lng - query.Lng
	distSq := dLat*dLat + dLng*dLng
	return ip, distSq, true
}

// NearestWithinSquaredDegrees is a convenience wrapper returning ok=false
// when the nearest point exceeds thresholdSq.
func (t *PointTree) NearestWithinSquaredDegrees(query geo.Point, thresholdSq float64) (IndexedPoint, bool) {
	ip, distSq, ok := t.NearestNeighbor(query)
	if !ok || distSq > thresholdSq {
		return IndexedPoint{}, false
	}
	return ip, true
}

// BoundsOverlapTracks reports whether two tracks' bounding boxes
// intersect once expanded by bufferMeters, used as a cheap prefilter
// before the more expensive overlap walk.
func BoundsOverlapTracks(a, b []geo.Point, bufferMeters float64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	boundsA := geo.ComputeBounds(a)
	boundsB := geo.ComputeBounds(b)
	marginDeg := geo.MetersToDegrees(bufferMeters)
	return boundsA.Expand(marginDeg).Overlaps(boundsB.Expand(marginDeg))
}

// ThresholdSquaredDegrees converts a meter threshold to the squared
// degree value comparable against NearestNeighbor's distSq.
func ThresholdSquaredDegrees(meters float64) float64 {
	d := geo.MetersToDegrees(meters)
	return d * d
}
