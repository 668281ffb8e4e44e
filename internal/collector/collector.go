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

// Package collector accumulates per-cell diffuse emissions across
// countries and sectors within a pollutant, then drains the result into
// an output.Builder. Aggregation at a coarser user-defined sector level
// sums same-named-sector rasters cell-wise. The per-pollutant aggregate
// maps are guarded by a single mutex; rasters are moved in, not copied.
package collector

import (
	"fmt"
	"sync"

	"github.com/ctessum/sparse"

	"github.com/VITObelgium/emap/internal/coverage"
	"github.com/VITObelgium/emap/internal/debugdump"
	"github.com/VITObelgium/emap/internal/grid"
	"github.com/VITObelgium/emap/internal/ids"
	"github.com/VITObelgium/emap/internal/output"
)

// SectorNamer maps an NFR sector onto the configured output-sector-name,
// which may be coarser than NFR.
type SectorNamer func(ids.SectorId) string

// aggKey groups diffuse contributions destined for the same output row
// set: one raster per (pollutant, output-sector-name, country).
type aggKey struct {
	Pollutant  ids.PollutantId
	SectorName string
	Country    ids.CountryId
}

// Collector is built once per run and reused across every grid level
// and the Flanders pass; each FlushPollutant drains and drops the
// pollutant's aggregates, so rasters from one level never leak into the
// next level's output.
type Collector struct {
	namer  SectorNamer
	output output.Builder
	dumper *debugdump.Dumper

	mu   sync.Mutex
	aggs map[aggKey]*aggEntry
}

type aggEntry struct {
	subgrid grid.Meta
	raster  *sparse.SparseArray
}

// New creates a Collector that will route flushed output through b. A
// nil dumper disables per-grid raster dumps.
func New(b output.Builder, namer SectorNamer, dumper *debugdump.Dumper) *Collector {
	return &Collector{output: b, namer: namer, dumper: dumper, aggs: make(map[aggKey]*aggEntry)}
}

// AddEmissions accumulates a country's diffuse raster into the
// per-output-sector aggregate and immediately forwards point sources to
// the output builder.
func (c *Collector) AddEmissions(cov *coverage.CountryCoverage, sector ids.SectorId, pollutant ids.PollutantId, raster *sparse.SparseArray, points []output.PointEntry) error {
	if raster != nil {
		name := sector.String()
		if c.namer != nil {
			name = c.namer(sector)
		}
		key := aggKey{Pollutant: pollutant, SectorName: name, Country: cov.Country}

		c.mu.Lock()
		entry, ok := c.aggs[key]
		if !ok {
			entry = &aggEntry{subgrid: cov.OutputSubgrid, raster: sparse.ZerosSparse(cov.OutputSubgrid.Rows, cov.OutputSubgrid.Cols)}
			c.aggs[key] = entry
		}
		entry.raster.AddSparse(raster)
		c.mu.Unlock()
	}

	for _, p := range points {
		p := p
		if err := output.Dispatch(c.output, output.Event{Kind: output.KindPoint, Point: &p}); err != nil {
			return fmt.Errorf("collector: writing point entry: %w", err)
		}
	}
	return nil
}

// FlushPollutant drains every aggregate belonging to pollutant into the
// output builder and removes them from the live set, then asks the
// builder to flush that pollutant's file(s) with mode. gridLevel names
// the level being flushed, used only to label raster dumps.
func (c *Collector) FlushPollutant(pollutant ids.PollutantId, gridLevel string, cellSizeMeters float64, mode output.WriteMode) error {
	c.mu.Lock()
	var keys []aggKey
	for k := range c.aggs {
		if k.Pollutant == pollutant {
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.mu.Lock()
		entry := c.aggs[k]
		delete(c.aggs, k)
		c.mu.Unlock()

		// A failed raster dump must never fail the run; the dumper logs
		// its own warning.
		_ = c.dumper.GridRaster(gridLevel, k.SectorName, pollutant, entry.raster)

		for _, idx1d := range entry.raster.Nonzero() {
			nd := entry.raster.IndexNd(idx1d)
			row, col := nd[0], nd[1]
			v := entry.raster.Get(row, col)
			if v == 0 {
				continue
			}
			de := output.DiffuseEntry{
				Country:        k.Country,
				Pollutant:      pollutant,
				SectorName:     k.SectorName,
				Row:            row,
				Col:            col,
				Amount:         v,
				CellSizeMeters: cellSizeMeters,
			}
			if err := output.Dispatch(c.output, output.Event{Kind: output.KindDiffuse, Diffuse: &de}); err != nil {
				return fmt.Errorf("collector: writing diffuse entry: %w", err)
			}
		}
	}
	return c.output.FlushPollutant(pollutant, mode)
}

// FinalFlush asks the output builder to emit any per-run singletons
// (headers, point-source companion files).
func (c *Collector) FinalFlush(mode output.WriteMode) error {
	return c.output.Flush(mode)
}
