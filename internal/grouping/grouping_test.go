package grouping

import (
	"context"
	"testing"

	"sectioncat/internal/geo"
	"sectioncat/internal/matching"
)

func straightTrack(n int, lat0, lng0, latStep, lngStep float64) []geo.Point {
	track := make([]geo.Point, n)
	for i := 0; i < n; i++ {
		track[i] = geo.New(lat0+float64(i)*latStep, lng0+float64(i)*lngStep)
	}
	return track
}

func TestGroupSignaturesTwoIdenticalOneScaled(t *testing.T) {
	cfg := matching.DefaultConfig()

	base := straightTrack(100, 51.50, -0.10, 0.0005, 0.0005)
	routes := []Route{
		{ID: "a", Signature: matching.NewSignature(base, cfg.ResampleCount)},
		{ID: "b", Signature: matching.NewSignature(base, cfg.ResampleCount)},
		{ID: "c", Signature: matching.NewSignature(straightTrack(160, 51.50, -0.10, 0.0005, 0.0005), cfg.ResampleCount)},
	}

	groups := GroupSignatures(routes, cfg)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups (a+b together, c scaled away), got %d: %+v", len(groups), groups)
	}
}

func TestGroupSignaturesParallelMatchesSequential(t *testing.T) {
	cfg := matching.DefaultConfig()
	base := straightTrack(80, 48.85, 2.35, 0.0004, 0.0004)
	routes := []Route{
		{ID: "a", Signature: matching.NewSignature(base, cfg.ResampleCount)},
		{ID: "b", Signature: matching.NewSignature(base, cfg.ResampleCount)},
	}

	seq := GroupSignatures(routes, cfg)
	par, err := GroupSignaturesParallel(context.Background(), routes, cfg, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq) != len(par) {
		t.Fatalf("expected matching group counts, got seq=%d par=%d", len(seq), len(par))
	}
}

func TestGroupIncrementalJoinsExistingGroup(t *testing.T) {
	cfg := matching.DefaultConfig()
	base := straightTrack(60, 40.0, -3.0, 0.0006, 0.0006)

	existingRoutes := []Route{
		{ID: "a", Signature: matching.NewSignature(base, cfg.ResampleCount)},
		{ID: "b", Signature: matching.NewSignature(base, cfg.ResampleCount)},
	}
	existingGroups := GroupSignatures(existingRoutes, cfg)

	newRoute := Route{ID: "c", Signature: matching.NewSignature(base, cfg.ResampleCount)}
	updated := GroupIncremental(existingGroups, []Route{newRoute}, existingRoutes, cfg)

	found := false
	for _, g := range updated {
		if len(g.ActivityIDs) == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the new route to join the existing 3-member group, got %+v", updated)
	}
}
