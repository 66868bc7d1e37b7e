package sections

import "sectioncat/internal/geo"

// ScalePreset is a (min_length, max_length, min_activities) band used
// by the multi-scale driver.
type ScalePreset struct {
	Name          string
	MinLength     float64
	MaxLength     float64
	MinActivities int
}

// ShortPreset, MediumPreset and LongPreset are the default scale bands.
func ShortPreset() ScalePreset {
	return ScalePreset{Name: "short", MinLength: 100, MaxLength: 500, MinActivities: 2}
}

func MediumPreset() ScalePreset {
	return ScalePreset{Name: "medium", MinLength: 500, MaxLength: 2000, MinActivities: 2}
}

func LongPreset() ScalePreset {
	return ScalePreset{Name: "long", MinLength: 2000, MaxLength: 5000, MinActivities: 2}
}

// DefaultPresets returns the short/medium/long bands.
func DefaultPresets() []ScalePreset {
	return []ScalePreset{ShortPreset(), MediumPreset(), LongPreset()}
}

// Config governs every stage of section detection; field names mirror
// spec.md §6's configuration option table plus the §4.8.1 promoted
// post-processing parameters.
type Config struct {
	ProximityThreshold float64 // meters
	MinSectionLength   float64 // meters
	MaxSectionLength   float64 // meters
	MinActivities      int
	ClusterTolerance   float64 // meters
	SamplePoints       int
	IncludePotentials  bool
	ScalePresets       []ScalePreset
	PreserveHierarchy  bool

	FoldTurnaroundMarginMeters float64
	DensitySplitMultiple       float64
	DensitySplitMinRunLength   int
}

// DefaultConfig is the "discovery" preset.
func DefaultConfig() Config {
	return Config{
		ProximityThreshold:         25,
		MinSectionLength:           150,
		MaxSectionLength:           8000,
		MinActivities:              2,
		ClusterTolerance:           40,
		SamplePoints:               50,
		IncludePotentials:          true,
		PreserveHierarchy:          true,
		FoldTurnaroundMarginMeters: 15,
		DensitySplitMultiple:       2.0,
		DensitySplitMinRunLength:   3,
	}
}

// ConservativeConfig favors precision over recall: tighter proximity,
// longer minimum sections, higher membership bar.
func ConservativeConfig() Config {
	c := DefaultConfig()
	c.ProximityThreshold = 15
	c.MinSectionLength = 300
	c.MinActivities = 3
	c.ClusterTolerance = 25
	c.IncludePotentials = false
	return c
}

// LegacyConfig mirrors the pre-multiscale single-band behavior.
func LegacyConfig() Config {
	c := DefaultConfig()
	c.ScalePresets = nil
	c.PreserveHierarchy = false
	c.IncludePotentials = false
	return c
}

// FrequentSection is spec §3's FrequentSection.
type FrequentSection struct {
	ID                     string
	Name                   *string
	SportType              string
	Polyline               []geo.Point
	RepresentativeActivity string
	ActivityIDs            []string
	ActivityPortions       []Portion
	RouteIDs               []string
	VisitCount             int
	DistanceMeters         float64
	ActivityTraces         map[string][]geo.Point
	Confidence             float64
	ObservationCount       int
	AverageSpread          float64
	PointDensity           []int
	Scale                  string
	Stability              float64
	Version                int
	IsUserDefined          bool
	CreatedAtUnixMs        int64
	UpdatedAtUnixMs        *int64
}

// PotentialSection is a FrequentSection-like object for clusters with
// 1-2 members; Confidence in [0.3, 0.7].
type PotentialSection struct {
	SportType      string
	Polyline       []geo.Point
	ActivityIDs    []string
	DistanceMeters float64
	Confidence     float64
	Scale          string
}

// DetectionStats summarizes one multi-scale detection run.
type DetectionStats struct {
	TracksConsidered  int
	OverlapsFound     int
	ClustersFormed    int
	SectionsEmitted   int
	PotentialsEmitted int
}

// MultiScaleResult is the output of DetectSectionsMultiScale.
type MultiScaleResult struct {
	Sections   []FrequentSection
	Potentials []PotentialSection
	Stats      DetectionStats
}
