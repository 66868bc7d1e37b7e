package sections

import (
	"math"

	"sectioncat/internal/geo"
	"sectioncat/internal/spatial"
)

// ConsensusResult is the refined polyline plus its confidence metrics.
type ConsensusResult struct {
	Polyline         []geo.Point
	Confidence       float64
	ObservationCount int
	AverageSpread    float64
	PointDensity     []int
}

// ComputeConsensusPolyline refines the reference (medoid) polyline by
// distance-weighted averaging of nearby points from every contributing
// trace, weight = 1/(distance_meters + epsilon).
func ComputeConsensusPolyline(reference []geo.Point, allTraces [][]geo.Point, proximityThresholdMeters float64) ConsensusResult {
	if len(reference) == 0 || len(allTraces) == 0 {
		return ConsensusResult{
			Polyline:     append([]geo.Point{}, reference...),
			PointDensity: make([]int, len(reference)),
		}
	}

	traceTrees := make([]*spatial.PointTree, len(allTraces))
	for i, t := range allTraces {
		traceTrees[i] = spatial.BuildPointTree(t)
	}

	thresholdSq := spatial.ThresholdSquaredDegrees(proximityThresholdMeters)
	const epsilon = 0.000001

	consensus := make([]geo.Point, 0, len(reference))
	density := make([]int, 0, len(reference))
	totalSpread := 0.0
	totalPointObservations := 0

	for _, ref := range reference {
		weightedLat, weightedLng, totalWeight := 0.0, 0.0, 0.0
		var nearbyDistances []float64
		thisPointObservations := 0

		for ti, tree := range traceTrees {
			ip, distSq, ok := tree.NearestNeighbor(ref)
			if !ok || distSq > thresholdSq {
				continue
			}
			tracePoint := allTraces[ti][ip.Idx]
			distDeg := math.Sqrt(distSq)
			distMeters := distDeg * 111_000.0
			weight := 1.0 / (distMeters + epsilon)

			weightedLat += tracePoint.Lat * weight
			weightedLng += tracePoint.Lng * weight
			totalWeight += weight
			nearbyDistances = append(nearbyDistances, distMeters)
			thisPointObservations++
		}

		density = append(density, thisPointObservations)

		if totalWeight > 0 {
			consensus = append(consensus, geo.Point{
				Lat: weightedLat / totalWeight,
				Lng: weightedLng / totalWeight,
			})
			if len(nearbyDistances) > 0 {
				sum := 0.0
				for _, d := range nearbyDistances {
					sum += d
				}
				avg := sum / float64(len(nearbyDistances))
				totalSpread += avg
				totalPointObservations += len(nearbyDistances)
			}
		} else {
			consensus = append(consensus, ref)
		}
	}

	observationCount := len(traceTrees)
	averageSpread := proximityThresholdMeters
	if totalPointObservations > 0 {
		averageSpread = totalSpread / float64(len(reference))
	}

	obsFactor := math.Min(float64(observationCount), 10.0) / 10.0
	spreadFactor := 1.0 - math.Min(averageSpread/proximityThresholdMeters, 1.0)
	confidence := obsFactor*0.5 + spreadFactor*0.5
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return ConsensusResult{
		Polyline:         consensus,
		Confidence:       confidence,
		ObservationCount: observationCount,
		AverageSpread:    averageSpread,
		PointDensity:     density,
	}
}
