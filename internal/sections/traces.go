package sections

import (
	"sort"

	"sectioncat/internal/geo"
	"sectioncat/internal/spatial"
)

// traceProximityMultiplier widens the proximity threshold slightly to
// tolerate GPS variation when extracting activity traces, matching the
// original's `TRACE_PROXIMITY_THRESHOLD * 1.2` factor.
const traceProximityMultiplier = 1.2

// ExtractAllActivityTraces returns, for each activity id with a track
// in trackMap, the portion(s) of its track that overlap the section
// polyline, merged in section-position order so out-and-back passes
// are captured together.
func ExtractAllActivityTraces(activityIDs []string, sectionPolyline []geo.Point, trackMap map[string][]geo.Point, proximityThresholdMeters float64) map[string][]geo.Point {
	traces := make(map[string][]geo.Point)
	if len(sectionPolyline) < 2 {
		return traces
	}
	polylineTree := spatial.BuildPointTree(sectionPolyline)

	for _, activityID := range activityIDs {
		track, ok := trackMap[activityID]
		if !ok {
			continue
		}
		trace := extractActivityTrace(track, sectionPolyline, polylineTree, proximityThresholdMeters)
		if len(trace) > 0 {
			traces[activityID] = trace
		}
	}
	return traces
}

func extractActivityTrace(track, sectionPolyline []geo.Point, polylineTree *spatial.PointTree, proximityThresholdMeters float64) []geo.Point {
	if len(track) < minRunPoints || len(sectionPolyline) < 2 {
		return nil
	}
	thresholdSq := spatial.ThresholdSquaredDegrees(proximityThresholdMeters * traceProximityMultiplier)

	var sequences [][]geo.Point
	var current []geo.Point
	gapCount := 0

	flush := func() {
		if len(current) >= minRunPoints {
			sequences = append(sequences, current)
		}
		current = nil
	}

	for _, p := range track {
		_, distSq, ok := polylineTree.NearestNeighbor(p)
		near := ok && distSq <= thresholdSq

		if near {
			gapCount = 0
			current = append(current, p)
		} else {
			gapCount++
			if gapCount <= maxGap && len(current) > 0 {
				current = append(current, p)
			} else if gapCount > maxGap {
				flush()
				gapCount = 0
			}
		}
	}
	flush()

	if len(sequences) == 0 {
		return nil
	}
	if len(sequences) == 1 {
		return sequences[0]
	}

	sectionTree := spatial.BuildPointTree(sectionPolyline)
	type positioned struct {
		pos int
		seq []geo.Point
	}
	withPos := make([]positioned, len(sequences))
	for i, seq := range sequences {
		pos := 0
		if len(seq) > 0 {
			if ip, _, ok := sectionTree.NearestNeighbor(seq[0]); ok {
				pos = ip.Idx
			}
		}
		withPos[i] = positioned{pos: pos, seq: seq}
	}
	sort.SliceStable(withPos, func(i, j int) bool { return withPos[i].pos < withPos[j].pos })

	var merged []geo.Point
	for _, wp := range withPos {
		merged = append(merged, wp.seq...)
	}
	return merged
}
