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

// Package coverage builds, for a target grid, the per-country list of
// (grid-cell, coverage-fraction) pairs: the fraction of each cell
// attributable to a country once neighboring countries on land are
// accounted for. It plays the same role a surrogate-generation worker
// plays for "input shape vs. surrogate shapes", generalized to
// "country polygon vs. neighboring country polygons".
package coverage

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/sirupsen/logrus"

	"github.com/VITObelgium/emap/internal/emapgeom"
	"github.com/VITObelgium/emap/internal/grid"
	"github.com/VITObelgium/emap/internal/ids"
)

// Mode selects which cells are retained in the output.
type Mode int

const (
	// GridOnly restricts emitted cells to those also on the compute
	// extent.
	GridOnly Mode = iota
	// AllCells retains all cells inside the country's subgrid, including
	// ones that fall outside the output grid. Used at the coarsest level
	// so that emissions landing outside the output grid can still be
	// accounted for in the mass balance.
	AllCells
)

const relativeCoverageTolerance = 1e-5

// CountryGeometry is a single country's border polygon, already warped
// to the target extent's projection.
type CountryGeometry struct {
	Country ids.CountryId
	Polygon geom.Polygon
}

// VectorSource supplies country border polygons, e.g. backed by a
// github.com/jonas-p/go-shp shapefile reader keyed by idField.
type VectorSource interface {
	// Countries returns every country polygon in the source, warped to
	// targetProjection.
	Countries(targetProjection string, idField string) ([]CountryGeometry, error)
}

// CountryInventory restricts the builder to countries that actually have
// emissions to distribute.
type CountryInventory interface {
	HasCountry(ids.CountryId) bool
}

// CellInfo is one cell's contribution to a CountryCoverage: the cell's
// location on both the compute grid and the country's own output-aligned
// subgrid, and the fraction of the cell attributed to the country.
type CellInfo struct {
	ComputeGridCell  grid.Cell
	CountryGridCell  grid.Cell
	Coverage         float64
}

// CountryCoverage is the bounding subgrid aligned to the output grid for
// one country, plus every cell where Coverage > 0.
type CountryCoverage struct {
	Country        ids.CountryId
	OutputSubgrid  grid.Meta
	Cells          []CellInfo
}

// SumCoverageArea returns Σ coverage·cellArea, used by the "coverage
// completeness" property test.
func (c *CountryCoverage) SumCoverageArea() float64 {
	var sum float64
	area := c.OutputSubgrid.CellArea()
	for _, ci := range c.Cells {
		sum += ci.Coverage * area
	}
	return sum
}

// ProgressFunc is polled between countries; returning Abort stops the
// builder from starting new country work (in-flight countries finish).
type ProgressFunc func(done, total int) Signal

type Signal int

const (
	Continue Signal = iota
	Abort
)

// Build computes CountryCoverage for every country in inventory that has
// a polygon in src, on grid extent, in the given mode.
//
// Countries are processed in parallel (up to GOMAXPROCS at a time),
// sorted by polygon complexity (point count) descending first, so that
// the most expensive countries are scheduled first and dominate the
// tail of the run least.
func Build(ctx context.Context, extent grid.Meta, src VectorSource, idField string,
	inventory CountryInventory, mode Mode, progress ProgressFunc, log *logrus.Logger) ([]*CountryCoverage, error) {

	if log == nil {
		log = logrus.StandardLogger()
	}
	all, err := src.Countries(extent.Projection, idField)
	if err != nil {
		return nil, fmt.Errorf("coverage: warping country polygons: %w", err)
	}

	var countries []CountryGeometry
	for _, cg := range all {
		if inventory == nil || inventory.HasCountry(cg.Country) {
			countries = append(countries, cg)
		}
	}
	sort.Slice(countries, func(i, j int) bool {
		return pointCount(countries[i].Polygon) > pointCount(countries[j].Polygon)
	})

	tree := rtree.NewTree(25, 50)
	for i := range countries {
		tree.Insert(&countryHolder{idx: i, Polygon: countries[i].Polygon})
	}

	nprocs := runtime.GOMAXPROCS(0)
	sem := make(chan struct{}, nprocs)
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]*CountryCoverage, len(countries))
	var aborted bool
	var doneCount int

	for i := range countries {
		mu.Lock()
		if aborted {
			mu.Unlock()
			break
		}
		mu.Unlock()

		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			select {
			case <-ctx.Done():
				return
			default:
			}

			cc, err := buildOne(countries[i], countries, tree, extent, mode)
			if err != nil {
				log.WithFields(logrus.Fields{"country": countries[i].Country}).
					WithError(err).Warn("coverage: skipping country after error")
			} else {
				mu.Lock()
				results[i] = cc
				mu.Unlock()
			}

			mu.Lock()
			doneCount++
			dc := doneCount
			mu.Unlock()
			if progress != nil && progress(dc, len(countries)) == Abort {
				mu.Lock()
				aborted = true
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	out := make([]*CountryCoverage, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

type countryHolder struct {
	idx int
	geom.Polygon
}

func pointCount(p geom.Polygon) int {
	n := 0
	for _, ring := range p {
		n += len(ring)
	}
	return n
}

func buildOne(target CountryGeometry, all []CountryGeometry, tree *rtree.Rtree, extent grid.Meta, mode Mode) (*CountryCoverage, error) {
	bounds := target.Polygon.Bounds()
	rect := emapgeom.Rect{MinX: bounds.Min.X, MinY: bounds.Min.Y, MaxX: bounds.Max.X, MaxY: bounds.Max.Y}
	subgrid, _, _ := extent.AlignedSubgrid(rect)

	cc := &CountryCoverage{Country: target.Country, OutputSubgrid: subgrid}

	neighborHits := tree.SearchIntersect(bounds)

	for r := 0; r < subgrid.Rows; r++ {
		for c := 0; c < subgrid.Cols; c++ {
			cell := grid.Cell{Row: r, Col: c}
			cellRect := subgrid.BoundingBox(cell)
			if !cellRect.Polygon().Bounds().Overlaps(bounds) {
				continue
			}
			overlap := emapgeom.Intersect(cellRect, target.Polygon)
			if overlap <= 0 {
				continue
			}
			cellArea := cellRect.Area()

			var coverage float64
			if relClose(overlap, cellArea, relativeCoverageTolerance) {
				coverage = 1.0
			} else {
				var neighborOverlap float64
				for _, hit := range neighborHits {
					ch := hit.(*countryHolder)
					if all[ch.idx].Country == target.Country {
						continue
					}
					neighborOverlap += emapgeom.Intersect(cellRect, all[ch.idx].Polygon)
				}
				if neighborOverlap <= 0 {
					coverage = 1.0 // rest of the cell is sea; attribute here
				} else {
					coverage = overlap / (overlap + neighborOverlap)
				}
			}
			if coverage <= 0 {
				continue
			}

			computeCell, onGrid := toComputeCell(extent, cellRect)
			if mode == GridOnly && !onGrid {
				continue
			}
			cc.Cells = append(cc.Cells, CellInfo{
				ComputeGridCell: computeCell,
				CountryGridCell: cell,
				Coverage:        coverage,
			})
		}
	}
	return cc, nil
}

func relClose(a, b, tol float64) bool {
	if b == 0 {
		return a == 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/b <= tol
}

// toComputeCell maps a subgrid cell rectangle back onto the compute
// extent's row/col indexing, reporting whether it actually falls inside
// the extent's bounds.
func toComputeCell(extent grid.Meta, cellRect emapgeom.Rect) (grid.Cell, bool) {
	colStep := absF(extent.CellSizeX)
	rowStep := absF(extent.CellSizeY)
	col := int((cellRect.MinX - extent.OriginX) / colStep)
	var row int
	if extent.CellSizeY < 0 {
		row = int((extent.OriginY - cellRect.MaxY) / rowStep)
	} else {
		row = int((cellRect.MinY - extent.OriginY) / rowStep)
	}
	cell := grid.Cell{Row: row, Col: col}
	return cell, extent.Contains(cell)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
