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

// Package grid describes output/compute grids and the coarse-to-fine
// nested sequence (ModelGrid) that residual emissions cascade through.
// It plays the same role as a grid definition type, generalized to
// support multiple named grids and a model-wide nested sequence.
package grid

import (
	"fmt"

	"github.com/VITObelgium/emap/internal/emapgeom"
)

// Cell identifies a single row/column cell on a grid.
type Cell struct{ Row, Col int }

// Meta describes a regular grid: its extent, shape and cell size. Cells
// may be non-square and CellSize.Y may be negative for a north-up grid.
type Meta struct {
	Name           string
	Rows, Cols     int
	OriginX, OriginY float64
	CellSizeX, CellSizeY float64
	Projection     string
}

// BoundingBox returns the projected-coordinate rectangle occupied by a
// cell of this grid.
func (m Meta) BoundingBox(c Cell) emapgeom.Rect {
	return emapgeom.BoundingBox(m.OriginX, m.OriginY, m.CellSizeX, m.CellSizeY, c.Row, c.Col)
}

// CellCenter returns the projected-coordinate center of a cell.
func (m Meta) CellCenter(c Cell) emapgeom.Point {
	return emapgeom.CellCenter(m.OriginX, m.OriginY, m.CellSizeX, m.CellSizeY, c.Row, c.Col)
}

// CellArea returns the area of any cell on this grid (cells are uniform
// in size, though not necessarily square).
func (m Meta) CellArea() float64 {
	return absF(m.CellSizeX) * absF(m.CellSizeY)
}

// Extent returns the rectangle covering the whole grid.
func (m Meta) Extent() emapgeom.Rect {
	return emapgeom.BoundingBox(m.OriginX, m.OriginY, m.CellSizeX*float64(m.Cols), m.CellSizeY*float64(m.Rows), 0, 0)
}

// Contains reports whether cell c is within the grid's row/col bounds.
func (m Meta) Contains(c Cell) bool {
	return c.Row >= 0 && c.Row < m.Rows && c.Col >= 0 && c.Col < m.Cols
}

// AlignedSubgrid computes the minimal Meta, aligned to the same origin
// and cell size as m, that fully covers the rectangle r. It is used to
// derive a country's output-aligned subgrid.
func (m Meta) AlignedSubgrid(r emapgeom.Rect) (sub Meta, rowOffset, colOffset int) {
	colStep := absF(m.CellSizeX)
	rowStep := absF(m.CellSizeY)

	minCol := int((r.MinX - m.OriginX) / colStep)
	maxCol := int((r.MaxX-m.OriginX)/colStep) + 1

	// Row index depends on axis direction.
	var minRow, maxRow int
	if m.CellSizeY < 0 {
		// north-up: row 0 at max-Y
		topY := m.OriginY
		minRow = int((topY - r.MaxY) / rowStep)
		maxRow = int((topY-r.MinY)/rowStep) + 1
	} else {
		minRow = int((r.MinY - m.OriginY) / rowStep)
		maxRow = int((r.MaxY-m.OriginY)/rowStep) + 1
	}
	if minCol < 0 {
		minCol = 0
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxCol > m.Cols {
		maxCol = m.Cols
	}
	if maxRow > m.Rows {
		maxRow = m.Rows
	}
	rows := maxRow - minRow
	cols := maxCol - minCol
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	sub = Meta{
		Name:       m.Name + "-sub",
		Rows:       rows,
		Cols:       cols,
		OriginX:    m.OriginX + float64(minCol)*m.CellSizeX,
		OriginY:    m.OriginY + float64(minRow)*m.CellSizeY,
		CellSizeX:  m.CellSizeX,
		CellSizeY:  m.CellSizeY,
		Projection: m.Projection,
	}
	return sub, minRow, minCol
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Definition is a named catalog entry for a predefined grid, e.g. one
// member of a coarse->fine family (60km, 5km, 1km, 250m).
type Definition struct {
	Name string
	Meta Meta
}

// ModelGrid is an ordered sequence of grids from coarsest to finest.
// Residual diffuse emissions cascade through this sequence level by
// level.
type ModelGrid struct {
	Levels []Definition
}

// NewModelGrid builds a ModelGrid from coarsest to finest, validating
// that the caller supplied at least one level.
func NewModelGrid(levels ...Definition) (*ModelGrid, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("grid: model grid needs at least one level")
	}
	return &ModelGrid{Levels: levels}, nil
}

// NextFiner returns the Meta of the level after i, and true if one
// exists.
func (g *ModelGrid) NextFiner(i int) (Meta, bool) {
	if i+1 >= len(g.Levels) {
		return Meta{}, false
	}
	return g.Levels[i+1].Meta, true
}

// Coarsest/Finest indices.
func (g *ModelGrid) Coarsest() int { return 0 }
func (g *ModelGrid) Finest() int   { return len(g.Levels) - 1 }
