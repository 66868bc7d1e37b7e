package sections

import (
	"testing"

	"sectioncat/internal/geo"
)

func TestDetectSectionsParallelRoadsScenario(t *testing.T) {
	// Scenario 1: two London tracks, parallel roads 20m apart, 1km long.
	offsetDeg := 20.0 / 111_320.0
	stepDeg := (1000.0 / 200.0) / 111_000.0
	a, b := parallelTracks(200, 51.5, -0.1, stepDeg, offsetDeg)

	tracks := []Track{
		{ActivityID: "ride1", SportType: "ride", Points: a},
		{ActivityID: "ride2", SportType: "ride", Points: b},
	}

	cfg := DefaultConfig()
	cfg.ProximityThreshold = 30
	cfg.MinSectionLength = 100
	cfg.MinActivities = 2

	result, _ := DetectSectionsFromTracks(tracks, cfg)
	if len(result) != 1 {
		t.Fatalf("expected exactly one section, got %d: %+v", len(result), result)
	}
	s := result[0]
	if s.ObservationCount != 2 {
		t.Fatalf("expected observation_count 2, got %d", s.ObservationCount)
	}
	if s.DistanceMeters < 900 || s.DistanceMeters > 1100 {
		t.Fatalf("expected section length ~1000m, got %v", s.DistanceMeters)
	}
	if s.Confidence < 0.3 {
		t.Fatalf("expected confidence >= 0.3, got %v", s.Confidence)
	}
}

func TestDetectSectionsThreeIdenticalPlusUnrelated(t *testing.T) {
	// Scenario 2: three identical tracks plus one unrelated Paris track.
	shared := straightLine(100, 51.5, -0.1, 0.0005)
	parisTrack := straightLine(100, 48.85, 2.35, 0.0005)

	tracks := []Track{
		{ActivityID: "r1", SportType: "ride", Points: shared},
		{ActivityID: "r2", SportType: "ride", Points: shared},
		{ActivityID: "r3", SportType: "ride", Points: shared},
		{ActivityID: "paris", SportType: "ride", Points: parisTrack},
	}

	cfg := DefaultConfig()
	cfg.ProximityThreshold = 20
	cfg.MinSectionLength = 50
	cfg.MinActivities = 2

	result, _ := DetectSectionsFromTracks(tracks, cfg)
	if len(result) != 1 {
		t.Fatalf("expected one section from the three identical tracks, got %d", len(result))
	}
	s := result[0]
	if s.VisitCount != 3 {
		t.Fatalf("expected 3 contributing activities, got %d", s.VisitCount)
	}
	for _, id := range s.ActivityIDs {
		if id == "paris" {
			t.Fatal("expected the unrelated Paris track to contribute nothing")
		}
	}
	for i, d := range s.PointDensity {
		if d != 3 {
			t.Fatalf("expected point_density[%d] = 3, got %d", i, d)
		}
	}
}

func TestMultiScaleDetectionProducesMediumSection(t *testing.T) {
	// Scenario 4: multi-scale on one 3km corridor shared by 4 activities.
	shared := straightLine(600, 51.5, -0.1, 3000.0/600.0/111_000.0)

	var tracks []Track
	for i := 0; i < 4; i++ {
		tracks = append(tracks, Track{
			ActivityID: "act" + string(rune('0'+i)),
			SportType:  "ride",
			Points:     shared,
		})
	}

	cfg := DefaultConfig()
	cfg.ProximityThreshold = 20
	cfg.ScalePresets = []ScalePreset{
		{Name: "short", MinLength: 100, MaxLength: 500, MinActivities: 2},
		{Name: "medium", MinLength: 500, MaxLength: 2000, MinActivities: 2},
		{Name: "long", MinLength: 2000, MaxLength: 5000, MinActivities: 2},
	}
	cfg.MinActivities = 2
	cfg.PreserveHierarchy = true

	result := DetectSectionsMultiScale(tracks, cfg)

	foundMedium := false
	for _, s := range result.Sections {
		if s.Scale == "medium" {
			foundMedium = true
		}
	}
	if !foundMedium {
		t.Fatalf("expected at least one medium-scale section, got scales: %v", scalesOf(result.Sections))
	}
}

func scalesOf(sections []FrequentSection) []string {
	var out []string
	for _, s := range sections {
		out = append(out, s.Scale)
	}
	return out
}

func TestFrequentSectionDistanceMatchesPolylineLength(t *testing.T) {
	polyline := straightLine(30, 40.0, -3.0, 0.0005)
	want := geo.PolylineLength(polyline)

	section := FrequentSection{
		ID:             "custom_1__00001",
		Polyline:       polyline,
		DistanceMeters: geo.PolylineLength(polyline), // always recomputed, never caller-supplied
		IsUserDefined:  true,
	}
	if section.DistanceMeters != want {
		t.Fatalf("expected distance_meters to equal polyline length, got %v want %v", section.DistanceMeters, want)
	}
}
