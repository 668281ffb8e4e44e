/*
Copyright © 2024 the e-map authors.
This file is part of e-map.

e-map is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

e-map is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with e-map.  If not, see <http://www.gnu.org/licenses/>.*/

// Package emapgeom is the geometry kernel: cell<->coordinate conversion,
// rectangle clipping and polygon-cell area intersection. It is a thin,
// numerically-careful layer over github.com/ctessum/geom, the same
// polygon-clipping library a surrogate generator uses.
package emapgeom

import (
	"math"

	"github.com/ctessum/geom"
)

// fixedScale is the number of fractional units per projected meter used
// when rounding coordinates before summing areas. Rounding to a fixed
// integer grid before summation makes neighbor-overlap sums associative
// regardless of the order cells are processed in, which matters because
// the coverage builder sums overlaps from parallel workers.
const fixedScale = 1e4

// Round snaps a projected coordinate to the fixed-scale grid used for
// area bookkeeping.
func Round(v float64) float64 {
	return math.Round(v*fixedScale) / fixedScale
}

// Rect is an axis-aligned rectangle in projected coordinates.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Area returns the rectangle's area, which is always non-negative even if
// the rectangle was built from a north-up grid with a negative y-step.
func (r Rect) Area() float64 {
	return math.Abs(r.MaxX-r.MinX) * math.Abs(r.MaxY-r.MinY)
}

// Polygon converts the rectangle to a ctessum/geom polygon with
// coordinates rounded to the fixed scale, ready for intersection.
func (r Rect) Polygon() geom.Polygon {
	minX, minY, maxX, maxY := Round(r.MinX), Round(r.MinY), Round(r.MaxX), Round(r.MaxY)
	return geom.Polygon{{
		{X: minX, Y: minY}, {X: maxX, Y: minY},
		{X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY},
	}}
}

// Overlaps reports whether r and o share any area, used for the
// cheap binary containment test the disaggregator's erase-zone step
// needs instead of a full polygon clip.
func (r Rect) Overlaps(o Rect) bool {
	return r.MinX < o.MaxX && r.MaxX > o.MinX && r.MinY < o.MaxY && r.MaxY > o.MinY
}

// Point is a projected-coordinate point.
type Point struct{ X, Y float64 }

// BoundingBox returns the rectangle occupied by cell (row, col) of a grid
// with the given origin, cell size and row/col counts. cellSize.Y may be
// negative for north-up grids (row 0 at the top); the returned rectangle
// is always normalized so MinY <= MaxY.
func BoundingBox(originX, originY, cellSizeX, cellSizeY float64, row, col int) Rect {
	x0 := originX + float64(col)*cellSizeX
	x1 := x0 + cellSizeX
	y0 := originY + float64(row)*cellSizeY
	y1 := y0 + cellSizeY
	r := Rect{MinX: math.Min(x0, x1), MaxX: math.Max(x0, x1),
		MinY: math.Min(y0, y1), MaxY: math.Max(y0, y1)}
	return r
}

// CellCenter returns the projected-coordinate center of the rectangle
// occupied by a grid cell.
func CellCenter(originX, originY, cellSizeX, cellSizeY float64, row, col int) Point {
	r := BoundingBox(originX, originY, cellSizeX, cellSizeY, row, col)
	return Point{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// Intersect returns the area of overlap between a cell rectangle and a
// set of polygon paths (e.g. a country border, possibly multi-ring),
// computed via exact polygon clipping on the fixed-scale coordinates so
// that summing overlaps from many neighboring countries is associative.
func Intersect(cellRect Rect, countryPolygon geom.Polygon) float64 {
	if countryPolygon == nil || len(countryPolygon) == 0 {
		return 0
	}
	cellPoly := cellRect.Polygon()
	inter := cellPoly.Intersection(countryPolygon)
	if inter == nil {
		return 0
	}
	return math.Abs(inter.Area())
}

// RasterAxis describes the row-axis orientation of an in-memory raster.
type RasterAxis int

const (
	// AxisNorthUp means row 0 is the northernmost row (cellSize.Y < 0
	// when converting row index to y-coordinate).
	AxisNorthUp RasterAxis = iota
	// AxisSouthUp means row 0 is the southernmost row.
	AxisSouthUp
)

// NorthUp returns data re-ordered so that row 0 is northernmost, flipping
// row order if the source axis is south-up. It is a lazy no-op when the
// raster is already north-up. rows/cols describe the shape of data,
// stored row-major.
func NorthUp(data []float64, rows, cols int, axis RasterAxis) []float64 {
	if axis == AxisNorthUp {
		return data
	}
	out := make([]float64, len(data))
	for r := 0; r < rows; r++ {
		srcRow := rows - 1 - r
		copy(out[r*cols:(r+1)*cols], data[srcRow*cols:(srcRow+1)*cols])
	}
	return out
}
