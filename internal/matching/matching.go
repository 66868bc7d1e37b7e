// Package matching implements route-to-route comparison: the AMD-based
// scoring, direction detection, and grouping predicate used by the
// route grouping engine. Ported from the original's matching.rs.
package matching

import (
	"math"

	"sectioncat/internal/geo"
)

// Direction is the relative orientation of two compared routes.
type Direction string

const (
	DirectionSame    Direction = "same"
	DirectionReverse Direction = "reverse"
	DirectionPartial Direction = "partial"
)

// Config holds the thresholds governing route comparison and grouping.
type Config struct {
	ResampleCount        int
	PerfectThreshold     float64 // meters; AMD at or below this scores 100
	ZeroThreshold        float64 // meters; AMD at or above this scores 0
	MinMatchPercentage   float64
	EndpointThreshold    float64 // meters
	MinRouteDistance     float64 // meters
	MaxDistanceDiffRatio float64
}

// DefaultConfig mirrors the "discovery" preset's matching thresholds.
func DefaultConfig() Config {
	return Config{
		ResampleCount:        50,
		PerfectThreshold:     10,
		ZeroThreshold:        100,
		MinMatchPercentage:   70,
		EndpointThreshold:    100,
		MinRouteDistance:     500,
		MaxDistanceDiffRatio: 0.15,
	}
}

// Signature is the compact per-route representation matching spec §3's
// RouteSignature (persistence concerns such as ActivityID live in the
// persist package's own type; this is the pure-matching subset).
type Signature struct {
	Points        []geo.Point
	TotalDistance float64
	Start         geo.Point
	End           geo.Point
	Bounds        geo.Bounds
}

// NewSignature derives a Signature from a raw track.
func NewSignature(track []geo.Point, resampleCount int) Signature {
	if len(track) == 0 {
		return Signature{}
	}
	resampled := geo.ResampleByDistance(track, resampleCount)
	return Signature{
		Points:        resampled,
		TotalDistance: geo.PolylineLength(track),
		Start:         track[0],
		End:           track[len(track)-1],
		Bounds:        geo.ComputeBounds(track),
	}
}

// MatchResult is the outcome of comparing two signatures.
type MatchResult struct {
	Score     float64
	Direction Direction
	AMD       float64
}

// CompareRoutes applies the length prefilter, resamples, computes
// symmetric AMD, scores it piecewise-linearly, and detects direction.
// ok is false if the length prefilter rejects the pair.
func CompareRoutes(a, b Signature, cfg Config) (MatchResult, bool) {
	if a.TotalDistance == 0 || b.TotalDistance == 0 {
		return MatchResult{}, false
	}
	shorter := math.Min(a.TotalDistance, b.TotalDistance)
	longer := math.Max(a.TotalDistance, b.TotalDistance)
	if shorter/longer < 0.5 {
		return MatchResult{}, false
	}

	resampledA := geo.ResampleByDistance(a.Points, cfg.ResampleCount)
	resampledB := geo.ResampleByDistance(b.Points, cfg.ResampleCount)

	amd := symmetricAMD(resampledA, resampledB)
	score := amdToPercentage(amd, cfg.PerfectThreshold, cfg.ZeroThreshold)
	direction := determineDirectionByEndpoints(a.Start, a.End, b.Start, b.End, cfg.EndpointThreshold)
	if score < 70 {
		direction = DirectionPartial
	}

	return MatchResult{Score: score, Direction: direction, AMD: amd}, true
}

// AverageMinDistance computes the one-directional AMD from poly_a to
// poly_b: the mean over poly_a's points of the minimum haversine
// distance to any point in poly_b.
func AverageMinDistance(polyA, polyB []geo.Point) float64 {
	if len(polyA) == 0 || len(polyB) == 0 {
		return math.MaxFloat64
	}
	sum := 0.0
	for _, pa := range polyA {
		min := math.MaxFloat64
		for _, pb := range polyB {
			d := geo.Haversine(pa, pb)
			if d < min {
				min = d
			}
		}
		sum += min
	}
	return sum / float64(len(polyA))
}

// symmetricAMD averages AverageMinDistance in both directions.
func symmetricAMD(a, b []geo.Point) float64 {
	return (AverageMinDistance(a, b) + AverageMinDistance(b, a)) / 2.0
}

// amdToPercentage maps an AMD value to a 0-100 score: perfectThreshold
// and below scores 100; zeroThreshold and above scores 0; linear
// interpolation between.
func amdToPercentage(amd, perfectThreshold, zeroThreshold float64) float64 {
	if amd <= perfectThreshold {
		return 100
	}
	if amd >= zeroThreshold {
		return 0
	}
	span := zeroThreshold - perfectThreshold
	if span <= 0 {
		return 0
	}
	return 100 * (1 - (amd-perfectThreshold)/span)
}

// determineDirectionByEndpoints compares same-order vs swapped-order
// endpoint distance sums, with a 100m margin favoring "same", and
// collapses to "same" when both tracks are loops.
func determineDirectionByEndpoints(startA, endA, startB, endB geo.Point, endpointThreshold float64) Direction {
	loopA := geo.Haversine(startA, endA) < endpointThreshold
	loopB := geo.Haversine(startB, endB) < endpointThreshold
	if loopA && loopB {
		return DirectionSame
	}

	same := geo.Haversine(startA, startB) + geo.Haversine(endA, endB)
	reversed := geo.Haversine(startA, endB) + geo.Haversine(endA, startB)

	if reversed+100 < same {
		return DirectionReverse
	}
	return DirectionSame
}

// ShouldGroupRoutes applies the grouping predicate on top of a match:
// both distances must clear MinRouteDistance, score must clear
// MinMatchPercentage, distance ratio must be within
// MaxDistanceDiffRatio, and endpoints plus interior samples (25/50/75%)
// must align within the endpoint threshold (doubled for interior
// samples), direction-aware.
func ShouldGroupRoutes(a, b Signature, cfg Config) bool {
	if a.TotalDistance < cfg.MinRouteDistance || b.TotalDistance < cfg.MinRouteDistance {
		return false
	}

	match, ok := CompareRoutes(a, b, cfg)
	if !ok || match.Score < cfg.MinMatchPercentage {
		return false
	}

	diffRatio := math.Abs(a.TotalDistance-b.TotalDistance) / math.Max(a.TotalDistance, b.TotalDistance)
	if diffRatio > cfg.MaxDistanceDiffRatio {
		return false
	}

	if !endpointsMatch(a, b, cfg.EndpointThreshold) {
		return false
	}

	return checkMiddlePointsMatch(a, b, match.Direction, cfg.EndpointThreshold*2)
}

func endpointsMatch(a, b Signature, threshold float64) bool {
	loopA := geo.Haversine(a.Start, a.End) < threshold
	loopB := geo.Haversine(b.Start, b.End) < threshold
	if loopA && loopB {
		return geo.Haversine(a.Start, b.Start) <= threshold
	}

	same := geo.Haversine(a.Start, b.Start) <= threshold && geo.Haversine(a.End, b.End) <= threshold
	reversed := geo.Haversine(a.Start, b.End) <= threshold && geo.Haversine(a.End, b.Start) <= threshold
	return same || reversed
}

// checkMiddlePointsMatch samples each signature at 25%/50%/75% of its
// resampled length (direction-aligned per match.Direction) and
// requires each pair to be within threshold.
func checkMiddlePointsMatch(a, b Signature, direction Direction, threshold float64) bool {
	if len(a.Points) < 4 || len(b.Points) < 4 {
		// Too few points to sample interior positions meaningfully;
		// endpoints already matched, accept.
		return true
	}
	fractions := []float64{0.25, 0.5, 0.75}
	for _, f := range fractions {
		pa := sampleAtFraction(a.Points, f)
		var pb geo.Point
		if direction == DirectionReverse {
			pb = sampleAtFraction(b.Points, 1-f)
		} else {
			pb = sampleAtFraction(b.Points, f)
		}
		if geo.Haversine(pa, pb) > threshold {
			return false
		}
	}
	return true
}

func sampleAtFraction(points []geo.Point, fraction float64) geo.Point {
	if len(points) == 0 {
		return geo.Point{}
	}
	idx := int(fraction * float64(len(points)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(points) {
		idx = len(points) - 1
	}
	return points[idx]
}
