package sections

import (
	"fmt"
	"sort"

	"sectioncat/internal/geo"
	"sectioncat/internal/spatial"
)

// PostProcess runs the four post-processing passes in the spec's
// mandated order, each idempotent: fold-split, merge-nearby, dedup
// (flat or hierarchical per cfg.PreserveHierarchy), density-split.
//
// The reference implementation's postprocess.rs module body was not
// retrievable (only its doc comment survived retrieval); these passes
// are authored from spec.md §4.8's prose, using
// removeOverlappingSectionsHierarchical's exact keep/discard rule
// (ported from mod.rs, where it IS fully present) as the structural
// template for both dedup variants.
func PostProcess(input []FrequentSection, cfg Config) []FrequentSection {
	out := splitFoldingSections(input, cfg)
	out = mergeNearbySections(out, cfg)
	if cfg.PreserveHierarchy {
		out = removeOverlappingSectionsHierarchical(out, cfg.ProximityThreshold)
	} else {
		out = removeOverlappingSectionsFlat(out, cfg.ProximityThreshold)
	}
	out = splitHighVarianceSections(out, cfg)
	return out
}

// splitFoldingSections detects out-and-back folds: a section whose
// polyline findTurnaround reports as folding back toward its start is
// split at the turnaround, keeping only the outbound leg (the inbound leg duplicates
// it in reverse and is discarded, matching spec scenario 3's
// expectation that the fold yields a single A->B section).
func splitFoldingSections(sections []FrequentSection, cfg Config) []FrequentSection {
	var out []FrequentSection
	for _, s := range sections {
		turn := findTurnaround(s.Polyline, cfg.FoldTurnaroundMarginMeters)
		if turn < 0 {
			out = append(out, s)
			continue
		}
		outbound := s
		outbound.Polyline = append([]geo.Point{}, s.Polyline[:turn+1]...)
		outbound.DistanceMeters = geo.PolylineLength(outbound.Polyline)
		if len(s.PointDensity) > turn {
			outbound.PointDensity = append([]int{}, s.PointDensity[:turn+1]...)
		}
		if outbound.DistanceMeters < cfg.MinSectionLength {
			// Too short once split; keep the original rather than emit
			// a section below the configured minimum.
			out = append(out, s)
			continue
		}
		out = append(out, outbound)
	}
	return out
}

// findTurnaround returns the index at which a polyline stops making
// forward progress away from its start and begins returning toward it,
// or -1 if the polyline never folds back. Progress is measured as the
// straight-line (haversine) distance from the start point. The
// turnaround is the point farthest from the start; it counts as a fold
// only when it lies strictly inside the polyline and the last point is
// within marginMeters of the start or within half that maximum
// distance.
func findTurnaround(polyline []geo.Point, marginMeters float64) int {
	if len(polyline) < 5 {
		return -1
	}
	start := polyline[0]
	maxDistFromStart := 0.0
	turnIdx := -1
	for i, p := range polyline {
		d := geo.Haversine(start, p)
		if d > maxDistFromStart {
			maxDistFromStart = d
			turnIdx = i
		}
	}
	// A real turnaround must occur strictly inside the polyline (not at
	// either endpoint) and the tail must come back close to the start -
	// within the margin, or within half the maximum distance - otherwise
	// this is just a normal point-to-point route, not an out-and-back.
	if turnIdx <= 0 || turnIdx >= len(polyline)-1 {
		return -1
	}
	endDistFromStart := geo.Haversine(start, polyline[len(polyline)-1])
	if endDistFromStart > marginMeters && endDistFromStart > maxDistFromStart*0.5 {
		return -1
	}
	return turnIdx
}

// mergeNearbySections merges pairs whose polylines co-locate:
// bidirectional containment above 0.9 and length ratio above 0.7,
// trying both the as-is and reversed orientation of the candidate
// being folded into the kept section.
func mergeNearbySections(sections []FrequentSection, cfg Config) []FrequentSection {
	merged := make([]bool, len(sections))
	var out []FrequentSection

	for i := range sections {
		if merged[i] {
			continue
		}
		keep := sections[i]
		for j := i + 1; j < len(sections); j++ {
			if merged[j] {
				continue
			}
			if sections[j].SportType != keep.SportType {
				continue
			}
			candidate := sections[j]
			forward := computePolylineContainment(candidate.Polyline, keep.Polyline, cfg.ProximityThreshold)
			backward := computePolylineContainment(keep.Polyline, candidate.Polyline, cfg.ProximityThreshold)
			reversedPoly := reversePoints(candidate.Polyline)
			forwardRev := computePolylineContainment(reversedPoly, keep.Polyline, cfg.ProximityThreshold)

			bidirectional := (forward > 0.9 && backward > 0.9) || (forwardRev > 0.9 && backward > 0.9)
			lengthRatio := ratio(candidate.DistanceMeters, keep.DistanceMeters)

			if bidirectional && lengthRatio > 0.7 {
				keep = mergeSectionPair(keep, candidate)
				merged[j] = true
			}
		}
		merged[i] = true
		out = append(out, keep)
	}
	return out
}

func mergeSectionPair(a, b FrequentSection) FrequentSection {
	merged := a
	merged.ActivityIDs = unionStrings(a.ActivityIDs, b.ActivityIDs)
	merged.VisitCount = len(merged.ActivityIDs)
	if merged.ActivityTraces == nil {
		merged.ActivityTraces = make(map[string][]geo.Point)
	}
	for id, pts := range b.ActivityTraces {
		if _, ok := merged.ActivityTraces[id]; !ok {
			merged.ActivityTraces[id] = pts
		}
	}
	merged.ActivityPortions = append(append([]Portion{}, a.ActivityPortions...), b.ActivityPortions...)
	if b.ObservationCount > merged.ObservationCount {
		merged.Confidence = (a.Confidence + b.Confidence) / 2
		merged.ObservationCount = a.ObservationCount + b.ObservationCount
	}
	return merged
}

// removeOverlappingSectionsFlat: sort by distance descending; discard
// a shorter section if > 90% of its points lie within the proximity
// threshold of a longer, still-kept section (one-directional
// containment, no scale awareness).
func removeOverlappingSectionsFlat(sections []FrequentSection, proximityThreshold float64) []FrequentSection {
	ordered := append([]FrequentSection{}, sections...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].DistanceMeters > ordered[j].DistanceMeters })

	kept := make([]bool, len(ordered))
	for i := range ordered {
		kept[i] = true
	}
	for i := 0; i < len(ordered); i++ {
		if !kept[i] {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			if !kept[j] {
				continue
			}
			containment := computePolylineContainment(ordered[j].Polyline, ordered[i].Polyline, proximityThreshold)
			if containment > 0.9 {
				kept[j] = false
			}
		}
	}
	var out []FrequentSection
	for i, k := range kept {
		if k {
			out = append(out, ordered[i])
		}
	}
	return out
}

// removeOverlappingSectionsHierarchical discards the shorter section
// only when its containment in the longer one is above 0.9, their
// length ratio is above 0.7, and the pair is "same scale": if either
// section lacks a scale tag, or both match, the pair is
// scale-compatible and the test applies; if
// scales differ, the shorter section survives regardless of
// containment, preserving a short-scale subsegment inside a long-scale
// section. Ported from mod.rs's remove_overlapping_sections_hierarchical,
// the one dedup function that WAS fully present in the retrieval.
func removeOverlappingSectionsHierarchical(sections []FrequentSection, proximityThreshold float64) []FrequentSection {
	ordered := append([]FrequentSection{}, sections...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].DistanceMeters > ordered[j].DistanceMeters })

	kept := make([]bool, len(ordered))
	for i := range ordered {
		kept[i] = true
	}
	for i := 0; i < len(ordered); i++ {
		if !kept[i] {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			if !kept[j] {
				continue
			}
			containment := computePolylineContainment(ordered[j].Polyline, ordered[i].Polyline, proximityThreshold)
			lengthRatio := ratio(ordered[j].DistanceMeters, ordered[i].DistanceMeters)
			sameScale := ordered[i].Scale == "" || ordered[j].Scale == "" || ordered[i].Scale == ordered[j].Scale

			if containment > 0.9 && lengthRatio > 0.7 && sameScale {
				kept[j] = false
			}
		}
	}
	var out []FrequentSection
	for i, k := range kept {
		if k {
			out = append(out, ordered[i])
		}
	}
	return out
}

// computePolylineContainment returns the fraction of poly's points
// that lie within proximityThreshold of ANY point in reference
// (one-directional, "is poly contained in reference").
func computePolylineContainment(poly, reference []geo.Point, proximityThreshold float64) float64 {
	if len(poly) == 0 || len(reference) == 0 {
		return 0
	}
	tree := spatial.BuildPointTree(reference)
	thresholdSq := spatial.ThresholdSquaredDegrees(proximityThreshold)

	contained := 0
	for _, p := range poly {
		_, distSq, ok := tree.NearestNeighbor(p)
		if ok && distSq <= thresholdSq {
			contained++
		}
	}
	return float64(contained) / float64(len(poly))
}

// splitHighVarianceSections finds contiguous portions of a section's
// polyline where point_density sustains a multiple of the section's
// minimum density, emitting them as new, more-specific sections
// alongside (not replacing) the original.
func splitHighVarianceSections(sections []FrequentSection, cfg Config) []FrequentSection {
	out := append([]FrequentSection{}, sections...)
	for _, s := range sections {
		if len(s.PointDensity) == 0 {
			continue
		}
		minDensity := s.PointDensity[0]
		for _, d := range s.PointDensity {
			if d < minDensity {
				minDensity = d
			}
		}
		if minDensity <= 0 {
			continue
		}
		threshold := float64(minDensity) * cfg.DensitySplitMultiple

		runStart := -1
		for i := 0; i <= len(s.PointDensity); i++ {
			above := i < len(s.PointDensity) && float64(s.PointDensity[i]) >= threshold
			if above {
				if runStart < 0 {
					runStart = i
				}
				continue
			}
			if runStart >= 0 {
				runEnd := i
				if runEnd-runStart >= cfg.DensitySplitMinRunLength {
					sub := buildDensitySplitSection(s, runStart, runEnd)
					out = append(out, sub)
				}
				runStart = -1
			}
		}
	}
	return out
}

func buildDensitySplitSection(s FrequentSection, start, end int) FrequentSection {
	sub := s
	sub.Polyline = append([]geo.Point{}, s.Polyline[start:end]...)
	if len(s.PointDensity) >= end {
		sub.PointDensity = append([]int{}, s.PointDensity[start:end]...)
	}
	sub.DistanceMeters = geo.PolylineLength(sub.Polyline)
	sub.ID = fmt.Sprintf("%s_dense_%d_%d", s.ID, start, end)
	return sub
}

func reversePoints(points []geo.Point) []geo.Point {
	out := make([]geo.Point, len(points))
	for i, p := range points {
		out[len(points)-1-i] = p
	}
	return out
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	shorter, longer := a, b
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	return shorter / longer
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
