package sections

import (
	"sectioncat/internal/geo"
)

// trace pairs an activity id with its contributing GPS points within a
// cluster.
type trace struct {
	activityID string
	points     []geo.Point
}

// SelectMedoid returns the activity id and points of the cluster
// member with minimum total AMD to all others. Clusters of <= 10
// distinct traces use full pairwise comparison; larger clusters sample
// 5 evenly-spaced comparisons per candidate.
func SelectMedoid(cluster OverlapCluster) (string, []geo.Point) {
	traces := distinctTraces(cluster)
	if len(traces) == 0 {
		return "", nil
	}
	if len(traces) == 1 {
		return traces[0].activityID, traces[0].points
	}

	bestIdx := 0
	bestTotal := -1.0
	useFullPairwise := len(traces) <= 10

	if useFullPairwise {
		for i := range traces {
			total := 0.0
			for j := range traces {
				if i == j {
					continue
				}
				total += medoidAMD(traces[i].points, traces[j].points)
			}
			if bestTotal < 0 || total < bestTotal {
				bestTotal = total
				bestIdx = i
			}
		}
	} else {
		sampleSize := 5
		if len(traces)-1 < sampleSize {
			sampleSize = len(traces) - 1
		}
		step := len(traces) / sampleSize
		if step < 1 {
			step = 1
		}
		for i := range traces {
			total := 0.0
			count := 0
			taken := 0
			for j := 0; j < len(traces) && taken < sampleSize; j += step {
				if j == i {
					continue
				}
				total += medoidAMD(traces[i].points, traces[j].points)
				count++
				taken++
			}
			if count == 0 {
				continue
			}
			avg := total / float64(count)
			if bestTotal < 0 || avg < bestTotal {
				bestTotal = avg
				bestIdx = i
			}
		}
	}

	return traces[bestIdx].activityID, traces[bestIdx].points
}

func distinctTraces(cluster OverlapCluster) []trace {
	var traces []trace
	seen := make(map[string]bool)
	for _, o := range cluster.Overlaps {
		if !seen[o.ActivityA] {
			seen[o.ActivityA] = true
			traces = append(traces, trace{activityID: o.ActivityA, points: o.PointsA})
		}
		if !seen[o.ActivityB] {
			seen[o.ActivityB] = true
			traces = append(traces, trace{activityID: o.ActivityB, points: o.PointsB})
		}
	}
	return traces
}

// medoidAMD computes the symmetric AMD between two polylines after
// resampling each to at most 50 points, matching the original's private
// average_min_distance in medoid.rs.
func medoidAMD(a, b []geo.Point) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1e18
	}
	const n = 50
	resampledA := geo.ResampleByDistance(a, n)
	resampledB := geo.ResampleByDistance(b, n)

	sumAB := 0.0
	for _, pa := range resampledA {
		min := 1e18
		for _, pb := range resampledB {
			if d := geo.Haversine(pa, pb); d < min {
				min = d
			}
		}
		sumAB += min
	}

	sumBA := 0.0
	for _, pb := range resampledB {
		min := 1e18
		for _, pa := range resampledA {
			if d := geo.Haversine(pb, pa); d < min {
				min = d
			}
		}
		sumBA += min
	}

	return (sumAB/float64(len(resampledA)) + sumBA/float64(len(resampledB))) / 2.0
}
