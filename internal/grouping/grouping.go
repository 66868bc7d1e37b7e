// Package grouping clusters whole activities whose route signatures
// agree under the matching package's grouping predicate, using a
// spatial prefilter and union-find. Ported from the original's
// grouping.rs, including the incremental variant used for scenario 6.
package grouping

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"sectioncat/internal/geo"
	"sectioncat/internal/matching"
	"sectioncat/internal/unionfind"
)

// spatialToleranceDegrees expands each route's bounding box before
// querying candidate neighbors, matching the original's
// SPATIAL_TOLERANCE ~= 0.01 degrees.
const spatialToleranceDegrees = 0.01

// Route pairs a stable identifier with its Signature for grouping.
type Route struct {
	ID        string
	Signature matching.Signature
}

// Group is the grouping engine's output: spec §3's RouteGroup.
type Group struct {
	GroupID          string
	RepresentativeID string
	ActivityIDs      []string
	Bounds           geo.Bounds
}

// GroupSignatures groups routes sequentially: build a spatial prefilter
// over route bounds, compare qualifying pairs, union matches, then
// emit one Group per union-find equivalence class.
func GroupSignatures(routes []Route, cfg matching.Config) []Group {
	pairs := candidatePairs(routes, cfg)
	uf := unionfind.New[int]()
	for _, r := range routes {
		uf.MakeSet(indexOf(routes, r.ID))
	}
	for _, p := range pairs {
		if matching.ShouldGroupRoutes(routes[p[0]].Signature, routes[p[1]].Signature, cfg) {
			uf.Union(p[0], p[1])
		}
	}
	return buildRouteGroups(routes, uf)
}

// GroupSignaturesParallel computes the candidate comparison phase
// concurrently over a worker pool (mirroring the original's rayon data
// -parallel fold); union-find application stays sequential since it is
// not safe for concurrent mutation.
func GroupSignaturesParallel(ctx context.Context, routes []Route, cfg matching.Config, workers int) ([]Group, error) {
	candidates := rawCandidatePairs(routes)
	if workers < 1 {
		workers = 1
	}

	type matched struct {
		a, b int
	}
	results := make([]bool, len(candidates))

	g, _ := errgroup.WithContext(ctx)
	chunk := (len(candidates) + workers - 1) / workers
	if chunk < 1 {
		chunk = 1
	}
	var mu sync.Mutex
	for start := 0; start < len(candidates); start += chunk {
		start := start
		end := start + chunk
		if end > len(candidates) {
			end = len(candidates)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				p := candidates[i]
				ok := matching.ShouldGroupRoutes(routes[p[0]].Signature, routes[p[1]].Signature, cfg)
				mu.Lock()
				results[i] = ok
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	uf := unionfind.New[int]()
	for i := range routes {
		uf.MakeSet(i)
	}
	for i, p := range candidates {
		if results[i] {
			uf.Union(p[0], p[1])
		}
	}
	return buildRouteGroups(routes, uf), nil
}

// GroupIncremental seeds union-find with an existing grouping's
// structure (every existing group's members already unioned together),
// then only compares (new,existing) and (new,new)
// pairs, never recomputing pairs that were already established.
func GroupIncremental(existing []Group, newRoutes []Route, allExisting []Route, cfg matching.Config) []Group {
	all := append(append([]Route{}, allExisting...), newRoutes...)
	uf := unionfind.New[int]()
	idOf := make(map[string]int, len(all))
	for i, r := range all {
		idOf[r.ID] = i
		uf.MakeSet(i)
	}
	for _, grp := range existing {
		if len(grp.ActivityIDs) == 0 {
			continue
		}
		first := idOf[grp.ActivityIDs[0]]
		for _, id := range grp.ActivityIDs[1:] {
			uf.Union(first, idOf[id])
		}
	}

	// Only compare pairs touching at least one new route: (new,existing)
	// and (new,new). Existing-existing pairs were already established
	// by the grouping run that produced `existing` and are never
	// recomputed here.
	newStart := len(allExisting)
	for i := newStart; i < len(all); i++ {
		for j := 0; j < len(all); j++ {
			if j == i {
				continue
			}
			if j < i && j >= newStart {
				continue // (new,new) pair already covered as (j,i)
			}
			if matching.ShouldGroupRoutes(all[i].Signature, all[j].Signature, cfg) {
				uf.Union(i, j)
			}
		}
	}
	return buildRouteGroups(all, uf)
}

func candidatePairs(routes []Route, cfg matching.Config) [][2]int {
	raw := rawCandidatePairs(routes)
	filtered := raw[:0]
	for _, p := range raw {
		a, b := routes[p[0]].Signature, routes[p[1]].Signature
		shorter, longer := a.TotalDistance, b.TotalDistance
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		if longer == 0 || shorter/longer < 0.5 {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// rawCandidatePairs emits unique index pairs whose route bounds,
// expanded by spatialToleranceDegrees, intersect. Route-level
// prefiltering compares rectangle envelopes directly rather than going
// through internal/spatial's point R-tree (reserved for the per-track
// point queries in overlap/consensus/portions, where nearest-neighbor
// search is the actual win); this is still the same spatial-prefilter
// role the original's rstar-backed envelope index plays in grouping.rs.
func rawCandidatePairs(routes []Route) [][2]int {
	seen := make(map[[2]int]bool)
	var pairs [][2]int
	for i := 0; i < len(routes); i++ {
		boundsI := routes[i].Signature.Bounds.Expand(spatialToleranceDegrees)
		for j := i + 1; j < len(routes); j++ {
			if !boundsI.Overlaps(routes[j].Signature.Bounds) {
				continue
			}
			key := [2]int{i, j}
			if !seen[key] {
				seen[key] = true
				pairs = append(pairs, key)
			}
		}
	}
	return pairs
}

func buildRouteGroups(routes []Route, uf *unionfind.UnionFind[int]) []Group {
	groups := uf.Groups()
	out := make([]Group, 0, len(groups))
	for root, members := range groups {
		sort.Ints(members)
		ids := make([]string, len(members))
		var bounds geo.Bounds
		for i, m := range members {
			ids[i] = routes[m].ID
			if i == 0 {
				bounds = routes[m].Signature.Bounds
			} else {
				bounds = bounds.Union(routes[m].Signature.Bounds)
			}
		}
		out = append(out, Group{
			GroupID:          groupIDFor(routes[root].ID),
			RepresentativeID: routes[members[0]].ID,
			ActivityIDs:      ids,
			Bounds:           bounds,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out
}

func groupIDFor(representativeID string) string {
	return "grp_" + representativeID
}

func indexOf(routes []Route, id string) int {
	for i, r := range routes {
		if r.ID == id {
			return i
		}
	}
	return -1
}
