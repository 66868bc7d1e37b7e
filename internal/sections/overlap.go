// Package sections implements the flagship section-detection
// pipeline: overlap finding, clustering, medoid selection, consensus
// polyline construction, activity-portion solving, post-processing,
// and multi-scale orchestration. Ported from the original's
// sections/{overlap,medoid,consensus,portions,traces,mod}.rs.
package sections

import (
	"sectioncat/internal/geo"
	"sectioncat/internal/spatial"
)

// FullTrackOverlap is the result of the longest-contiguous-run search
// between two tracks.
type FullTrackOverlap struct {
	ActivityA string
	ActivityB string
	PointsA   []geo.Point
	PointsB   []geo.Point
	Center    geo.Point
}

type openRun struct {
	startA  int
	minB    int
	maxB    int
	length  float64
	hasData bool
}

// FindFullTrackOverlap walks track A, using an R-tree over track B to
// find the longest contiguous subsequence of A that stays within
// thresholdMeters of some point in B. Returns ok=false if no run
// reaches minSectionLength.
func FindFullTrackOverlap(activityA, activityB string, trackA, trackB []geo.Point, thresholdMeters, minSectionLength float64) (FullTrackOverlap, bool) {
	if len(trackA) < 2 || len(trackB) < 2 {
		return FullTrackOverlap{}, false
	}
	if !spatial.BoundsOverlapTracks(trackA, trackB, thresholdMeters) {
		return FullTrackOverlap{}, false
	}

	treeB := spatial.BuildPointTree(trackB)
	thresholdSq := spatial.ThresholdSquaredDegrees(thresholdMeters)

	var current openRun
	var best struct {
		startA, endA, minB, maxB int
		length                   float64
		found                    bool
	}

	closeCurrent := func(endA int) {
		if !current.hasData {
			return
		}
		if current.length >= minSectionLength && current.length > best.length {
			best.startA = current.startA
			best.endA = endA
			best.minB = current.minB
			best.maxB = current.maxB
			best.length = current.length
			best.found = true
		}
		current = openRun{}
	}

	for i := range trackA {
		ip, distSq, ok := treeB.NearestNeighbor(trackA[i])
		near := ok && distSq <= thresholdSq

		if near {
			if !current.hasData {
				current = openRun{startA: i, minB: ip.Idx, maxB: ip.Idx, hasData: true}
			} else {
				if ip.Idx < current.minB {
					current.minB = ip.Idx
				}
				if ip.Idx > current.maxB {
					current.maxB = ip.Idx
				}
				if i > 0 {
					current.length += geo.Haversine(trackA[i-1], trackA[i])
				}
			}
		} else {
			closeCurrent(i)
		}
	}
	closeCurrent(len(trackA))

	if !best.found || best.length < minSectionLength {
		return FullTrackOverlap{}, false
	}

	pointsA := append([]geo.Point{}, trackA[best.startA:best.endA]...)
	pointsB := append([]geo.Point{}, trackB[best.minB:best.maxB+1]...)

	return FullTrackOverlap{
		ActivityA: activityA,
		ActivityB: activityB,
		PointsA:   pointsA,
		PointsB:   pointsB,
		Center:    geo.Centroid(pointsA),
	}, true
}

// OverlapCluster agglomerates overlaps that describe the same physical
// segment.
type OverlapCluster struct {
	Overlaps    []FullTrackOverlap
	ActivityIDs []string
}

// ClusterOverlaps performs a single-pass agglomerative clustering:
// join two overlaps if their centers are within clusterToleranceMeters
// AND a sampled-overlap check passes.
func ClusterOverlaps(overlaps []FullTrackOverlap, clusterToleranceMeters, proximityThresholdMeters float64) []OverlapCluster {
	assigned := make([]bool, len(overlaps))
	var clusters []OverlapCluster

	for i := range overlaps {
		if assigned[i] {
			continue
		}
		cluster := OverlapCluster{Overlaps: []FullTrackOverlap{overlaps[i]}}
		assigned[i] = true
		addActivityIDs(&cluster, overlaps[i])

		for j := i + 1; j < len(overlaps); j++ {
			if assigned[j] {
				continue
			}
			if geo.Haversine(overlaps[i].Center, overlaps[j].Center) > clusterToleranceMeters {
				continue
			}
			if !overlapsMatch(overlaps[i], overlaps[j], proximityThresholdMeters) {
				continue
			}
			assigned[j] = true
			cluster.Overlaps = append(cluster.Overlaps, overlaps[j])
			addActivityIDs(&cluster, overlaps[j])
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

func addActivityIDs(cluster *OverlapCluster, o FullTrackOverlap) {
	for _, id := range []string{o.ActivityA, o.ActivityB} {
		found := false
		for _, existing := range cluster.ActivityIDs {
			if existing == id {
				found = true
				break
			}
		}
		if !found {
			cluster.ActivityIDs = append(cluster.ActivityIDs, id)
		}
	}
}

// overlapsMatch samples up to 10 evenly-spaced points of a.PointsA and
// requires at least 50% to be within thresholdMeters of any point in
// b.PointsA.
func overlapsMatch(a, b FullTrackOverlap, thresholdMeters float64) bool {
	if len(a.PointsA) == 0 || len(b.PointsA) == 0 {
		return false
	}
	sampleCount := 10
	if len(a.PointsA) < sampleCount {
		sampleCount = len(a.PointsA)
	}
	treeB := spatial.BuildPointTree(b.PointsA)
	thresholdSq := spatial.ThresholdSquaredDegrees(thresholdMeters)

	matches := 0
	for k := 0; k < sampleCount; k++ {
		idx := 0
		if sampleCount > 1 {
			idx = k * (len(a.PointsA) - 1) / (sampleCount - 1)
		}
		_, distSq, ok := treeB.NearestNeighbor(a.PointsA[idx])
		if ok && distSq <= thresholdSq {
			matches++
		}
	}
	return float64(matches)/float64(sampleCount) >= 0.5
}

