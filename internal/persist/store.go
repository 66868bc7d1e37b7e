package persist

import (
	"context"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/jackc/pgx/v5"

	"sectioncat/internal/geo"
	"sectioncat/internal/lru"
	"sectioncat/internal/matching"
	"sectioncat/internal/sections"
)

const (
	signatureCacheCapacity = 200
	consensusCacheCapacity = 50
)

// ActivityMeta is the always-resident summary kept for every ingested
// activity: enough to bounds-prefilter candidate pairs without
// touching Postgres.
type ActivityMeta struct {
	ActivityID string
	SportType  string
	Bounds     geo.Bounds
}

// activityRect adapts ActivityMeta to rtreego.Spatial.
type activityRect struct{ meta ActivityMeta }

func (r activityRect) Bounds() *rtreego.Rect {
	b := r.meta.Bounds
	rect, _ := rtreego.NewRect(
		rtreego.Point{b.MinLng, b.MinLat},
		[]float64{maxf(b.MaxLng-b.MinLng, 1e-9), maxf(b.MaxLat-b.MinLat, 1e-9)},
	)
	return rect
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Store is the tiered persistent engine described by spec.md §4.10:
// activity metadata and a bounds R-tree stay resident in memory,
// signatures and consensus polylines ride in bounded LRU caches, and
// full GPS tracks are loaded from Postgres on demand. A single
// connection is shared and serialized behind mu, mirroring the
// teacher's web.server connection-pooling pattern.
type Store struct {
	mu   sync.Mutex
	conn *pgx.Conn

	activityTree *rtreego.Rtree
	activities   map[string]ActivityMeta

	signatures *lru.Cache[string, matching.Signature]
	consensus  *lru.Cache[string, sections.ConsensusResult]
}

// NewStore wraps an already-connected *pgx.Conn.
func NewStore(conn *pgx.Conn) *Store {
	return &Store{
		conn:         conn,
		activityTree: rtreego.NewTree(2, 4, 25),
		activities:   make(map[string]ActivityMeta),
		signatures:   lru.New[string, matching.Signature](signatureCacheCapacity),
		consensus:    lru.New[string, sections.ConsensusResult](consensusCacheCapacity),
	}
}

// Init creates the section catalog tables and loads resident activity
// metadata from activity_geometries' bounding boxes.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := CreateTables(ctx, s.conn); err != nil {
		return err
	}
	return s.loadResidentMetadataLocked(ctx)
}

func (s *Store) loadResidentMetadataLocked(ctx context.Context) error {
	rows, err := s.conn.Query(ctx, `
		SELECT g.activity_id::text, a.sport_type,
			ST_YMin(g.route_bbox_geom), ST_YMax(g.route_bbox_geom),
			ST_XMin(g.route_bbox_geom), ST_XMax(g.route_bbox_geom)
		FROM activity_geometries g
		JOIN activity_summaries a ON a.id = g.activity_id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var meta ActivityMeta
		var sportType *string
		if err := rows.Scan(&meta.ActivityID, &sportType, &meta.Bounds.MinLat, &meta.Bounds.MaxLat, &meta.Bounds.MinLng, &meta.Bounds.MaxLng); err != nil {
			return err
		}
		if sportType != nil {
			meta.SportType = *sportType
		}
		s.activities[meta.ActivityID] = meta
		s.activityTree.Insert(activityRect{meta})
	}
	return rows.Err()
}

// CandidateActivityIDs returns resident activities whose bounds
// overlap bounds once expanded by marginMeters, a cheap prefilter
// before loading full tracks for comparison.
func (s *Store) CandidateActivityIDs(bounds geo.Bounds, marginMeters float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	margin := geo.MetersToDegrees(marginMeters)
	expanded := bounds.Expand(margin)
	rect, _ := rtreego.NewRect(
		rtreego.Point{expanded.MinLng, expanded.MinLat},
		[]float64{maxf(expanded.MaxLng-expanded.MinLng, 1e-9), maxf(expanded.MaxLat-expanded.MinLat, 1e-9)},
	)

	var ids []string
	for _, hit := range s.activityTree.SearchIntersect(rect) {
		ar, ok := hit.(activityRect)
		if ok {
			ids = append(ids, ar.meta.ActivityID)
		}
	}
	return ids
}
