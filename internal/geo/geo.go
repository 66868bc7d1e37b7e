// Package geo provides the geometric primitives shared by every
// detection and matching component: points, bounds, distance,
// resampling and simplification.
package geo

import "math"

const earthRadiusMeters = 6_371_000.0

// Point is an immutable GPS coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// New builds a Point.
func New(lat, lng float64) Point {
	return Point{Lat: lat, Lng: lng}
}

// Valid reports whether the point has finite, in-range coordinates.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Bounds is an axis-aligned lat/lng bounding box.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// ComputeBounds returns the bounding box of points. The zero Bounds is
// returned for an empty slice.
func ComputeBounds(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLng: points[0].Lng, MaxLng: points[0].Lng,
	}
	for _, p := range points[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b
}

// Center returns the arithmetic center of a bounding box.
func (b Bounds) Center() Point {
	return Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLng + b.MaxLng) / 2,
	}
}

// Union returns the smallest Bounds containing both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		MinLat: math.Min(b.MinLat, other.MinLat),
		MaxLat: math.Max(b.MaxLat, other.MaxLat),
		MinLng: math.Min(b.MinLng, other.MinLng),
		MaxLng: math.Max(b.MaxLng, other.MaxLng),
	}
}

// Expand grows the bounds by marginDeg in every direction.
func (b Bounds) Expand(marginDeg float64) Bounds {
	return Bounds{
		MinLat: b.MinLat - marginDeg,
		MaxLat: b.MaxLat + marginDeg,
		MinLng: b.MinLng - marginDeg,
		MaxLng: b.MaxLng + marginDeg,
	}
}

// Overlaps reports whether two bounding boxes intersect.
func (b Bounds) Overlaps(other Bounds) bool {
	if b.MaxLat < other.MinLat || other.MaxLat < b.MinLat {
		return false
	}
	if b.MaxLng < other.MinLng || other.MaxLng < b.MinLng {
		return false
	}
	return true
}

// Centroid returns the arithmetic mean of points. The zero Point is
// returned for an empty slice.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return Point{Lat: sumLat / n, Lng: sumLng / n}
}

// PolylineLength returns the cumulative haversine length of a polyline.
func PolylineLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1], points[i])
	}
	return total
}

// MetersToDegrees converts a meter distance to an approximate degree
// delta usable for squared-distance comparisons against lat/lng
// coordinates. This mirrors the 111_000 m/degree approximation used
// throughout the reference algorithms (good enough at the scale of a
// single section/track, not intended for polar latitudes).
func MetersToDegrees(meters float64) float64 {
	return meters / 111_000.0
}

// ResampleByDistance resamples points to exactly n points, evenly
// spaced by cumulative distance. The first and last input points are
// preserved. If len(points) <= n, points is returned unchanged.
func ResampleByDistance(points []Point, n int) []Point {
	if len(points) <= n {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	if n < 2 {
		if len(points) == 0 {
			return nil
		}
		return []Point{points[0]}
	}

	cumulative := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		cumulative[i] = cumulative[i-1] + Haversine(points[i-1], points[i])
	}
	total := cumulative[len(cumulative)-1]
	if total < 1.0 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}

	resampled := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		target := (float64(i) / float64(n-1)) * total

		segIdx := 0
		for j := 1; j < len(cumulative); j++ {
			if cumulative[j] >= target {
				segIdx = j - 1
				break
			}
			segIdx = j - 1
		}

		segStart := cumulative[segIdx]
		segEnd := segStart
		if segIdx+1 < len(cumulative) {
			segEnd = cumulative[segIdx+1]
		}
		segLen := segEnd - segStart

		t := 0.0
		if segLen > 0.001 {
			t = (target - segStart) / segLen
		}

		p1 := points[segIdx]
		p2 := p1
		if segIdx+1 < len(points) {
			p2 = points[segIdx+1]
		}

		resampled = append(resampled, Point{
			Lat: p1.Lat + t*(p2.Lat-p1.Lat),
			Lng: p1.Lng + t*(p2.Lng-p1.Lng),
		})
	}
	return resampled
}

// SimplifyDouglasPeucker reduces a polyline to an approximation within
// toleranceMeters of the original, preserving endpoints.
func SimplifyDouglasPeucker(points []Point, toleranceMeters float64) []Point {
	if len(points) < 3 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true
	simplifySegment(points, 0, len(points)-1, toleranceMeters, keep)

	out := make([]Point, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

func simplifySegment(points []Point, start, end int, tolerance float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	maxIdx := -1
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(points[i], points[start], points[end])
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}
	if maxDist > tolerance && maxIdx != -1 {
		keep[maxIdx] = true
		simplifySegment(points, start, maxIdx, tolerance, keep)
		simplifySegment(points, maxIdx, end, tolerance, keep)
	}
}

// perpendicularDistance approximates the distance from p to the line
// segment (a,b) in meters using an equirectangular projection local to
// the segment, which is accurate enough at section/track scale.
func perpendicularDistance(p, a, b Point) float64 {
	if a == b {
		return Haversine(p, a)
	}
	centerLat := (a.Lat + b.Lat) / 2 * math.Pi / 180
	toXY := func(pt Point) (float64, float64) {
		x := (pt.Lng - a.Lng) * 111_320.0 * math.Cos(centerLat)
		y := (pt.Lat - a.Lat) * 110_540.0
		return x, y
	}
	ax, ay := toXY(a)
	bx, by := toXY(b)
	px, py := toXY(p)

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	projX := ax + t*dx
	projY := ay + t*dy
	return math.Hypot(px-projX, py-projY)
}
