// Package tiles is the adjacent heatmap summary named in spec.md as
// out-of-core-scope raster rendering: it accumulates a density grid
// over section polylines without ever encoding a PNG, giving a caller
// enough to build a tile renderer on top without this module owning
// that pipeline.
package tiles

import (
	"sectioncat/internal/geo"
	"sectioncat/internal/sections"
)

// Grid is a fixed-resolution lat/lng density accumulator: cell[i][j]
// sums, over the section polyline points that fell in that cell, each
// point's section visit count (at least 1).
type Grid struct {
	Bounds      geo.Bounds
	Rows, Cols  int
	cellHeight  float64
	cellWidth   float64
	counts      []int
}

// NewGrid allocates a rows x cols grid covering bounds.
func NewGrid(bounds geo.Bounds, rows, cols int) *Grid {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return &Grid{
		Bounds:     bounds,
		Rows:       rows,
		Cols:       cols,
		cellHeight: (bounds.MaxLat - bounds.MinLat) / float64(rows),
		cellWidth:  (bounds.MaxLng - bounds.MinLng) / float64(cols),
		counts:     make([]int, rows*cols),
	}
}

// Accumulate adds the section's visit count (at least 1) to the cell of
// each polyline point inside the grid, so well-traveled sections
// dominate the density map. Only the points are counted; the segments
// between them are not rasterized.
func (g *Grid) Accumulate(sec sections.FrequentSection) {
	for _, p := range sec.Polyline {
		row, col, ok := g.cellFor(p)
		if !ok {
			continue
		}
		g.counts[row*g.Cols+col] += maxi(sec.VisitCount, 1)
	}
}

// AccumulateAll accumulates every section in the set.
func (g *Grid) AccumulateAll(secs []sections.FrequentSection) {
	for _, s := range secs {
		g.Accumulate(s)
	}
}

// At returns the density count at (row, col), or 0 if out of range.
func (g *Grid) At(row, col int) int {
	if row < 0 || row >= g.Rows || col < 0 || col >= g.Cols {
		return 0
	}
	return g.counts[row*g.Cols+col]
}

// Max returns the highest cell count, for normalizing a heatmap legend.
func (g *Grid) Max() int {
	max := 0
	for _, c := range g.counts {
		if c > max {
			max = c
		}
	}
	return max
}

func (g *Grid) cellFor(p geo.Point) (row, col int, ok bool) {
	if g.cellHeight <= 0 || g.cellWidth <= 0 {
		return 0, 0, false
	}
	if p.Lat < g.Bounds.MinLat || p.Lat > g.Bounds.MaxLat || p.Lng < g.Bounds.MinLng || p.Lng > g.Bounds.MaxLng {
		return 0, 0, false
	}
	row = int((p.Lat - g.Bounds.MinLat) / g.cellHeight)
	col = int((p.Lng - g.Bounds.MinLng) / g.cellWidth)
	if row >= g.Rows {
		row = g.Rows - 1
	}
	if col >= g.Cols {
		col = g.Cols - 1
	}
	return row, col, true
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}
