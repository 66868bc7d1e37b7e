package persist

import (
	"fmt"
	"strconv"
	"strings"

	"sectioncat/internal/geo"
)

// parseLineStringWKT parses the "LINESTRING(lng lat,lng lat,...)" text
// ST_AsText emits for a PostGIS LINESTRING geometry.
func parseLineStringWKT(wkt string) ([]geo.Point, error) {
	start := strings.Index(wkt, "(")
	end := strings.LastIndex(wkt, ")")
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("malformed LINESTRING WKT: %q", wkt)
	}
	body := wkt[start+1 : end]
	pairs := strings.Split(body, ",")
	points := make([]geo.Point, 0, len(pairs))
	for _, pair := range pairs {
		fields := strings.Fields(strings.TrimSpace(pair))
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed LINESTRING point %q in %q", pair, wkt)
		}
		lng, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed longitude %q: %w", fields[0], err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed latitude %q: %w", fields[1], err)
		}
		points = append(points, geo.New(lat, lng))
	}
	return points, nil
}

// linestringWKT renders points as "LINESTRING(lng lat,lng lat,...)"
// text, the format ST_GeogFromText expects (teacher's fallback
// insertion idiom, see pggeo.InsertActivityGeometry).
func linestringWKT(points []geo.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%.8f %.8f", p.Lng, p.Lat)
	}
	return fmt.Sprintf("LINESTRING(%s)", strings.Join(parts, ","))
}
