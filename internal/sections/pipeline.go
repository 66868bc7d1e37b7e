package sections

import (
	"fmt"
	"sort"
	"strings"

	"sectioncat/internal/geo"
)

// Track pairs an activity id, sport type and GPS track for detection.
type Track struct {
	ActivityID string
	SportType  string
	Points     []geo.Point
}

// DetectSectionsFromTracks runs the single-scale legacy pipeline:
// pairwise overlap -> cluster -> medoid -> consensus -> portions ->
// (no post-processing; callers compose that separately for the
// multi-scale path, see DetectSectionsMultiScale).
func DetectSectionsFromTracks(tracks []Track, cfg Config) ([]FrequentSection, DetectionStats) {
	bySport := groupBySport(tracks)
	var allSections []FrequentSection
	var stats DetectionStats
	stats.TracksConsidered = len(tracks)

	for sport, sportTracks := range bySport {
		overlaps := findAllOverlaps(sportTracks, cfg)
		stats.OverlapsFound += len(overlaps)

		clusters := ClusterOverlaps(overlaps, cfg.ClusterTolerance, cfg.ProximityThreshold)
		stats.ClustersFormed += len(clusters)

		for _, cluster := range clusters {
			if len(cluster.ActivityIDs) < cfg.MinActivities {
				continue
			}
			section, ok := processCluster(cluster, sport, cfg, buildTrackMap(sportTracks), "")
			if ok {
				allSections = append(allSections, section)
			}
		}
	}

	allSections = assignSectionIDs(allSections)
	sortSectionsByVisitCountDesc(allSections)
	stats.SectionsEmitted = len(allSections)
	return allSections, stats
}

// DetectSectionsMultiScale runs the pipeline once per ScalePreset
// (falling back to a single implicit scale derived from
// Min/MaxSectionLength when ScalePresets is empty), collects
// significant sections and 1-2 member potentials per scale, then runs
// ONE shared post-processing pass over the union of all scales.
func DetectSectionsMultiScale(tracks []Track, cfg Config) MultiScaleResult {
	presets := cfg.ScalePresets
	if len(presets) == 0 {
		presets = []ScalePreset{{
			Name: "", MinLength: cfg.MinSectionLength, MaxLength: cfg.MaxSectionLength, MinActivities: cfg.MinActivities,
		}}
	}

	bySport := groupBySport(tracks)
	var allSections []FrequentSection
	var allPotentials []PotentialSection
	var stats DetectionStats
	stats.TracksConsidered = len(tracks)

	for sport, sportTracks := range bySport {
		trackMap := buildTrackMap(sportTracks)

		for _, preset := range presets {
			scaleCfg := cfg
			scaleCfg.MinSectionLength = preset.MinLength
			scaleCfg.MaxSectionLength = preset.MaxLength
			scaleCfg.MinActivities = preset.MinActivities

			overlaps := findAllOverlaps(sportTracks, scaleCfg)
			stats.OverlapsFound += len(overlaps)
			clusters := ClusterOverlaps(overlaps, scaleCfg.ClusterTolerance, scaleCfg.ProximityThreshold)
			stats.ClustersFormed += len(clusters)

			for _, cluster := range clusters {
				memberCount := len(cluster.ActivityIDs)
				if memberCount >= scaleCfg.MinActivities {
					section, ok := processCluster(cluster, sport, scaleCfg, trackMap, preset.Name)
					if ok {
						allSections = append(allSections, section)
					}
					continue
				}
				if cfg.IncludePotentials && memberCount >= 1 && memberCount < scaleCfg.MinActivities {
					medoidID, medoidPoints := SelectMedoid(cluster)
					if medoidID == "" {
						continue
					}
					length := geo.PolylineLength(medoidPoints)
					if length < preset.MinLength || length > preset.MaxLength {
						continue
					}
					allPotentials = append(allPotentials, PotentialSection{
						SportType:      sport,
						Polyline:       medoidPoints,
						ActivityIDs:    cluster.ActivityIDs,
						DistanceMeters: length,
						Confidence:     0.3 + 0.2*float64(memberCount),
						Scale:          preset.Name,
					})
				}
			}
		}
	}

	allSections = assignSectionIDs(allSections)
	allSections = PostProcess(allSections, cfg)
	allPotentials = assignPotentialIDs(allPotentials)

	sortSectionsByVisitCountDesc(allSections)
	sort.Slice(allPotentials, func(i, j int) bool { return allPotentials[i].Confidence > allPotentials[j].Confidence })

	stats.SectionsEmitted = len(allSections)
	stats.PotentialsEmitted = len(allPotentials)

	return MultiScaleResult{Sections: allSections, Potentials: allPotentials, Stats: stats}
}

func processCluster(cluster OverlapCluster, sport string, cfg Config, trackMap map[string][]geo.Point, scale string) (FrequentSection, bool) {
	medoidID, medoidPoints := SelectMedoid(cluster)
	if medoidID == "" || len(medoidPoints) < 2 {
		return FrequentSection{}, false
	}

	traces := distinctTraces(cluster)
	traceLists := make([][]geo.Point, len(traces))
	for i, t := range traces {
		traceLists[i] = t.points
	}
	consensus := ComputeConsensusPolyline(medoidPoints, traceLists, cfg.ProximityThreshold)

	distance := geo.PolylineLength(consensus.Polyline)
	if distance < cfg.MinSectionLength || distance > cfg.MaxSectionLength {
		return FrequentSection{}, false
	}

	allTraces := ExtractAllActivityTraces(cluster.ActivityIDs, consensus.Polyline, trackMap, cfg.ProximityThreshold)
	memberTracks := make(map[string][]geo.Point, len(cluster.ActivityIDs))
	for _, id := range cluster.ActivityIDs {
		if pts, ok := trackMap[id]; ok {
			memberTracks[id] = pts
		}
	}
	portions := ComputeActivityPortions(consensus.Polyline, memberTracks, cfg.ProximityThreshold)

	ids := append([]string{}, cluster.ActivityIDs...)
	sort.Strings(ids)

	return FrequentSection{
		SportType:              sport,
		Polyline:               consensus.Polyline,
		RepresentativeActivity: medoidID,
		ActivityIDs:            ids,
		ActivityPortions:       portions,
		VisitCount:             len(ids),
		DistanceMeters:         distance,
		ActivityTraces:         allTraces,
		Confidence:             consensus.Confidence,
		ObservationCount:       consensus.ObservationCount,
		AverageSpread:          consensus.AverageSpread,
		PointDensity:           consensus.PointDensity,
		Scale:                  scale,
		Version:                1,
	}, true
}

func findAllOverlaps(tracks []Track, cfg Config) []FullTrackOverlap {
	var overlaps []FullTrackOverlap
	for i := 0; i < len(tracks); i++ {
		for j := i + 1; j < len(tracks); j++ {
			overlap, ok := FindFullTrackOverlap(
				tracks[i].ActivityID, tracks[j].ActivityID,
				tracks[i].Points, tracks[j].Points,
				cfg.ProximityThreshold, cfg.MinSectionLength,
			)
			if ok {
				overlaps = append(overlaps, overlap)
			}
		}
	}
	return overlaps
}

func groupBySport(tracks []Track) map[string][]Track {
	out := make(map[string][]Track)
	for _, t := range tracks {
		out[t.SportType] = append(out[t.SportType], t)
	}
	return out
}

func buildTrackMap(tracks []Track) map[string][]geo.Point {
	out := make(map[string][]geo.Point, len(tracks))
	for _, t := range tracks {
		out[t.ActivityID] = t.Points
	}
	return out
}

func sortSectionsByVisitCountDesc(sections []FrequentSection) {
	sort.Slice(sections, func(i, j int) bool {
		if sections[i].VisitCount != sections[j].VisitCount {
			return sections[i].VisitCount > sections[j].VisitCount
		}
		return sections[i].ID < sections[j].ID
	})
}

// assignSectionIDs formats ids as "sec_{sport_lower}_{index}" per
// spec.md §6, indexed per sport type in emission order.
func assignSectionIDs(sections []FrequentSection) []FrequentSection {
	counters := make(map[string]int)
	for i := range sections {
		sportLower := strings.ToLower(sections[i].SportType)
		counters[sportLower]++
		sections[i].ID = fmt.Sprintf("sec_%s_%d", sportLower, counters[sportLower])
	}
	return sections
}

func assignPotentialIDs(potentials []PotentialSection) []PotentialSection {
	// PotentialSection has no ID field, so no id is assigned here and
	// potentials carry no id anywhere in this module. Ordering is
	// already handled by the caller's sort.
	return potentials
}
