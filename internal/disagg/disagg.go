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

// Package disagg is the disaggregation pipeline: it walks a ModelGrid
// from coarsest to finest, and at each level distributes every
// (pollutant, NFR sector, country) inventory entry across that level's
// cells using the best available spatial pattern, cascading whatever
// falls inside the next-finer grid's extent down to be recomputed
// there. Flanders (BEF) is handled once, separately, at the finest
// level, since its own high-resolution pattern library makes coarse
// disaggregation meaningless. It is the orchestration layer that ties
// together coverage, pattern, inventory and collector the way a
// spatialize step ties together surrogates, grid definitions and
// emission records.
package disagg

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/VITObelgium/emap/internal/collector"
	"github.com/VITObelgium/emap/internal/coverage"
	"github.com/VITObelgium/emap/internal/debugdump"
	"github.com/VITObelgium/emap/internal/emaperr"
	"github.com/VITObelgium/emap/internal/emapgeom"
	"github.com/VITObelgium/emap/internal/grid"
	"github.com/VITObelgium/emap/internal/ids"
	"github.com/VITObelgium/emap/internal/inventory"
	"github.com/VITObelgium/emap/internal/output"
	"github.com/VITObelgium/emap/internal/pattern"
)

// IgnoreKey names a (sector, country) pair excluded from disaggregation
// entirely, per the configured sector ignore list.
type IgnoreKey struct {
	Sector  string
	Country ids.CountryId
}

// Config bundles the run's fixed collaborators and policy knobs.
type Config struct {
	VectorSource  coverage.VectorSource
	VectorIDField string

	// Flanders is the country handle treated specially: skipped during
	// the main coarse-to-fine cascade and processed once, checked, at
	// the finest grid level. The zero value disables
	// the special case.
	Flanders ids.CountryId

	SectorIgnoreList map[IgnoreKey]bool

	// Namer resolves the output-sector-name a diffuse raster is filed
	// under; nil means "use the NFR/GNFR code verbatim".
	Namer collector.SectorNamer

	// MaxConcurrency bounds goroutines fanned out per sector and per
	// country; 0 means runtime.GOMAXPROCS(0).
	MaxConcurrency int

	// Dumper, when non-nil, writes intermediate per-country and
	// per-pattern rasters to disk as the cascade runs. A nil Dumper (or
	// one with every switch off) costs nothing beyond a nil check.
	Dumper *debugdump.Dumper
}

// UnitReport is handed to a Reporter after every process(p, s, c, gi)
// unit of work, carrying the bookkeeping a mass-balance report needs
// for mass-conservation diagnostics.
type UnitReport struct {
	Pollutant      ids.PollutantId
	Sector         ids.SectorId
	Country        ids.CountryId
	GridLevel      string
	ToSpread       float64
	ClippedOut     float64
	CarriedForward float64
	PointTotal     float64
	UsedUniform    bool
	Pattern        pattern.SpatialPatternSource
}

// Reporter receives a UnitReport per unit of work. Implementations
// (validate.Validator, validate.Summary) must not block.
type Reporter interface {
	ReportUnit(UnitReport)
}

// MultiReporter fans a single UnitReport out to several Reporters, so a
// run can feed both a Validator and a Summary without either knowing
// about the other.
type MultiReporter []Reporter

func (m MultiReporter) ReportUnit(u UnitReport) {
	for _, r := range m {
		if r != nil {
			r.ReportUnit(u)
		}
	}
}

// Disaggregator runs the grid-cascade disaggregation pipeline.
type Disaggregator struct {
	grids     *grid.ModelGrid
	patterns  *pattern.Index
	inventory *inventory.Inventory
	cfg       Config
	log       *logrus.Logger
}

// New builds a Disaggregator over grids, resolving patterns through
// patterns and reconciled totals through inv.
func New(grids *grid.ModelGrid, patterns *pattern.Index, inv *inventory.Inventory, cfg Config, log *logrus.Logger) *Disaggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Disaggregator{grids: grids, patterns: patterns, inventory: inv, cfg: cfg, log: log}
}

func (d *Disaggregator) concurrency() int {
	if d.cfg.MaxConcurrency > 0 {
		return d.cfg.MaxConcurrency
	}
	return runtime.GOMAXPROCS(0)
}

// Run executes the full coarse-to-fine cascade over every (pollutant,
// sector) pair in pollutants/sectors, then the dedicated Flanders pass,
// writing results through out.
func (d *Disaggregator) Run(ctx context.Context, pollutants []ids.PollutantId, sectors []ids.NfrId, out output.Builder, rep Reporter) error {
	coll := collector.New(out, d.cfg.Namer, d.cfg.Dumper)
	st := newEpochState()

	for i, level := range d.grids.Levels {
		if err := ctx.Err(); err != nil {
			return err
		}

		mode := coverage.GridOnly
		if i == d.grids.Coarsest() {
			mode = coverage.AllCells
		}
		covs, err := coverage.Build(ctx, level.Meta, d.cfg.VectorSource, d.cfg.VectorIDField, d.inventory, mode, nil, d.log)
		if err != nil {
			return fmt.Errorf("disagg: building coverage for %s: %w", level.Name, err)
		}
		covs = withoutFlanders(covs, d.cfg.Flanders)

		var nextExtent *emapgeom.Rect
		if nf, ok := d.grids.NextFiner(i); ok {
			e := nf.Extent()
			nextExtent = &e
		}
		initial := i == d.grids.Coarsest()

		for _, p := range pollutants {
			if err := d.processLevelPollutant(ctx, p, sectors, covs, level.Meta, nextExtent, initial, st, coll, rep); err != nil {
				return err
			}
			writeMode := output.Create
			if !initial {
				writeMode = output.Append
			}
			if err := coll.FlushPollutant(p, level.Name, cellSizeOf(level.Meta), writeMode); err != nil {
				return fmt.Errorf("disagg: flushing %s at %s: %w", p, level.Name, err)
			}
		}
	}

	if d.cfg.Flanders.IsValid() {
		if err := d.runFlanders(ctx, pollutants, sectors, coll, rep); err != nil {
			return err
		}
	}

	return coll.FinalFlush(output.Append)
}

// processLevelPollutant runs process(p, s, c, gi) for every sector in
// parallel, and for every country coverage within a sector in parallel,
// per the nested "for each ... in parallel" structure.
func (d *Disaggregator) processLevelPollutant(ctx context.Context, p ids.PollutantId, sectors []ids.NfrId, covs []*coverage.CountryCoverage,
	levelMeta grid.Meta, nextExtent *emapgeom.Rect, initial bool, st *epochState, coll *collector.Collector, rep Reporter) error {

	sem := make(chan struct{}, d.concurrency())
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, s := range sectors {
		wg.Add(1)
		sem <- struct{}{}
		go func(s ids.NfrId) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := d.processSector(ctx, p, ids.NfrSector(s), covs, levelMeta, nextExtent, initial, st, coll, rep); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()
	return firstErr
}

func (d *Disaggregator) processSector(ctx context.Context, p ids.PollutantId, s ids.SectorId, covs []*coverage.CountryCoverage,
	levelMeta grid.Meta, nextExtent *emapgeom.Rect, initial bool, st *epochState, coll *collector.Collector, rep Reporter) error {

	sem := make(chan struct{}, d.concurrency())
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, cc := range covs {
		wg.Add(1)
		sem <- struct{}{}
		go func(cc *coverage.CountryCoverage) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if err := d.processUnit(p, s, cc, levelMeta, nextExtent, initial, st, coll, rep); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(cc)
	}
	wg.Wait()
	return firstErr
}

// runFlanders processes BEF once at the finest grid level, after the
// main cascade, after the rest of the cascade completes.
func (d *Disaggregator) runFlanders(ctx context.Context, pollutants []ids.PollutantId, sectors []ids.NfrId, coll *collector.Collector, rep Reporter) error {
	finest := d.grids.Levels[d.grids.Finest()]
	covs, err := coverage.Build(ctx, finest.Meta, d.cfg.VectorSource, d.cfg.VectorIDField, d.inventory, coverage.GridOnly, nil, d.log)
	if err != nil {
		return fmt.Errorf("disagg: building Flanders coverage: %w", err)
	}
	var bef *coverage.CountryCoverage
	for _, cc := range covs {
		if cc.Country == d.cfg.Flanders {
			bef = cc
			break
		}
	}
	if bef == nil {
		d.log.Warn("disagg: Flanders has no coverage on the finest grid; skipping")
		return nil
	}

	st := newEpochState() // Flanders always resolves checked; no cascade state carries in.
	for _, p := range pollutants {
		for _, s := range sectors {
			if err := d.processUnit(p, ids.NfrSector(s), bef, finest.Meta, nil, true, st, coll, rep); err != nil {
				return fmt.Errorf("disagg: Flanders pass: %w", err)
			}
		}
		if err := coll.FlushPollutant(p, finest.Name, cellSizeOf(finest.Meta), output.Append); err != nil {
			return fmt.Errorf("disagg: flushing Flanders pass for %s: %w", p, err)
		}
	}
	return nil
}

// processUnit implements the per-(pollutant,sector,country,grid) work unit.
// initial is true on the coarsest grid level and for the dedicated
// Flanders pass: both read toSpread from the reconciled inventory
// rather than from carried-forward residuals, both include point
// sources, and both resolve the pattern "checked".
func (d *Disaggregator) processUnit(p ids.PollutantId, s ids.SectorId, cc *coverage.CountryCoverage,
	levelMeta grid.Meta, nextExtent *emapgeom.Rect, initial bool, st *epochState, coll *collector.Collector, rep Reporter) error {

	if d.cfg.SectorIgnoreList[IgnoreKey{Sector: s.String(), Country: cc.Country}] {
		return nil
	}

	key := ids.EmissionKey{Country: cc.Country, Sector: s, Pollutant: p}
	entry, ok := d.inventory.Get(key)
	if !ok {
		return nil
	}

	var toSpread float64
	if initial {
		toSpread = entry.ScaledDiffuse()
	} else {
		toSpread = st.takeRemaining(key)
	}

	var points []output.PointEntry
	if initial {
		points = convertPoints(entry)
	}
	var pointTotal float64
	for _, pt := range points {
		pointTotal += pt.Amount
	}
	if toSpread == 0 && len(points) == 0 {
		return nil
	}

	var sp pattern.SpatialPattern
	var err error
	if initial {
		sp, err = d.patterns.GetPatternChecked(key, cc)
		if err != nil {
			return fmt.Errorf("disagg: resolving checked pattern for %s: %w", key, err)
		}
		if sp.AvailableButWithoutData {
			st.markUniformFallback(key)
		}
	} else if st.isUniformFallback(key) {
		sp = pattern.SpatialPattern{Source: pattern.SpatialPatternSource{Kind: pattern.UniformFallback, Key: key}}
	} else {
		sp, err = d.patterns.GetPattern(key, cc)
		if err != nil {
			return fmt.Errorf("disagg: resolving pattern for %s: %w", key, err)
		}
	}

	if !sp.IsUniform() && sp.Raster.Sum() == 0 {
		return fmt.Errorf("disagg: pattern for %s resolved non-uniform with an empty raster: %w", key, emaperr.ErrInvariant)
	}

	if !sp.IsUniform() {
		if err := d.cfg.Dumper.PatternRaster(levelMeta.Name, s.String(), p, cc.Country, sp.Source.Kind.String(), sp.Raster); err != nil {
			d.log.WithError(err).Warn("disagg: pattern raster dump failed")
		}
	}

	var raster *sparse.SparseArray
	if sp.IsUniform() {
		raster = uniformOver(cc, toSpread)
	} else {
		raster = sp.Raster.ScaleCopy(toSpread)
	}

	lookup := cellLookup(cc)
	clippedOut := clipToExtent(raster, lookup, levelMeta)

	var carriedForward float64
	if nextExtent != nil {
		carriedForward = eraseZone(raster, lookup, levelMeta, *nextExtent)
		st.addRemaining(key, carriedForward)
	}

	if err := d.cfg.Dumper.CountryRaster(levelMeta.Name, s.String(), p, cc.Country, raster); err != nil {
		d.log.WithError(err).Warn("disagg: country raster dump failed")
	}

	if err := coll.AddEmissions(cc, s, p, raster, points); err != nil {
		return fmt.Errorf("disagg: submitting %s to collector: %w", key, err)
	}

	if rep != nil {
		rep.ReportUnit(UnitReport{
			Pollutant: p, Sector: s, Country: cc.Country, GridLevel: levelMeta.Name,
			ToSpread: toSpread, ClippedOut: clippedOut, CarriedForward: carriedForward,
			PointTotal: pointTotal, UsedUniform: sp.IsUniform(), Pattern: sp.Source,
		})
	}
	return nil
}

// withoutFlanders drops Flanders from a coverage slice; it is always
// handled by the dedicated finest-grid pass.
func withoutFlanders(covs []*coverage.CountryCoverage, flanders ids.CountryId) []*coverage.CountryCoverage {
	if !flanders.IsValid() {
		return covs
	}
	out := covs[:0:0]
	for _, cc := range covs {
		if cc.Country != flanders {
			out = append(out, cc)
		}
	}
	return out
}

// cellLookup indexes a country's cells by their position on the
// country's own subgrid, the coordinate space a pattern/uniform raster
// is built in.
func cellLookup(cc *coverage.CountryCoverage) map[grid.Cell]coverage.CellInfo {
	m := make(map[grid.Cell]coverage.CellInfo, len(cc.Cells))
	for _, ci := range cc.Cells {
		m[ci.CountryGridCell] = ci
	}
	return m
}

// uniformOver distributes toSpread across c's cells proportional to
// coverage.
func uniformOver(cc *coverage.CountryCoverage, toSpread float64) *sparse.SparseArray {
	raster := sparse.ZerosSparse(cc.OutputSubgrid.Rows, cc.OutputSubgrid.Cols)
	var total float64
	for _, ci := range cc.Cells {
		total += ci.Coverage
	}
	if total == 0 {
		return raster
	}
	for _, ci := range cc.Cells {
		raster.Set(toSpread*ci.Coverage/total, ci.CountryGridCell.Row, ci.CountryGridCell.Col)
	}
	return raster
}

// clipToExtent zeroes any raster cell that does not land on the
// current level's compute grid, returning the sum removed for the
// mass-balance bookkeeping (reported as ClippedOut); it is not carried
// forward to the next-finer level.
func clipToExtent(raster *sparse.SparseArray, lookup map[grid.Cell]coverage.CellInfo, levelMeta grid.Meta) float64 {
	var removed float64
	for _, idx1d := range raster.Nonzero() {
		nd := raster.IndexNd(idx1d)
		row, col := nd[0], nd[1]
		v := raster.Get(row, col)
		if v == 0 {
			continue
		}
		info, onCountryGrid := lookup[grid.Cell{Row: row, Col: col}]
		if !onCountryGrid || !levelMeta.Contains(info.ComputeGridCell) {
			removed += v
			raster.Set(0, row, col)
		}
	}
	return removed
}

// eraseZone zeroes any remaining raster cell whose current-level
// bounding box overlaps the next-finer grid's extent, returning the sum
// removed so the caller can carry it forward.
func eraseZone(raster *sparse.SparseArray, lookup map[grid.Cell]coverage.CellInfo, levelMeta grid.Meta, nextExtent emapgeom.Rect) float64 {
	var erased float64
	for _, idx1d := range raster.Nonzero() {
		nd := raster.IndexNd(idx1d)
		row, col := nd[0], nd[1]
		v := raster.Get(row, col)
		if v == 0 {
			continue
		}
		info, ok := lookup[grid.Cell{Row: row, Col: col}]
		if !ok {
			continue
		}
		cellRect := levelMeta.BoundingBox(info.ComputeGridCell)
		if cellRect.Overlaps(nextExtent) {
			erased += v
			raster.Set(0, row, col)
		}
	}
	return erased
}

// convertPoints turns an inventory entry's point sources into output
// rows, applying each point's user/auto scaling.
func convertPoints(entry *inventory.InventoryEntry) []output.PointEntry {
	scale := entry.PointScaleUser * entry.PointScaleAuto
	out := make([]output.PointEntry, 0, len(entry.PointEntries))
	for _, p := range entry.PointEntries {
		if p.Coordinate == nil {
			continue
		}
		var stack inventory.StackParams
		if p.Stack != nil {
			stack = *p.Stack
		}
		out = append(out, output.PointEntry{
			Key: p.Key, X: p.Coordinate.X, Y: p.Coordinate.Y, Amount: p.Value() * scale,
			Height: stack.Height, Diameter: stack.Diameter, Warmth: stack.Warmth,
			Flow: stack.Flow, Temperature: stack.Temperature,
		})
	}
	return out
}

func cellSizeOf(m grid.Meta) float64 { return math.Abs(m.CellSizeX) }

// epochState holds the cross-level, cross-goroutine bookkeeping the
// cascade needs: residual amounts erased at level i to be spread at
// level i+1, and which keys fell back to uniform spreading at the
// coarsest level, so finer levels stay consistent rather than
// re-resolving a pattern that may since have become available.
// A single mutex guards both maps; contention is bounded by one
// lock per processed unit, not per cell.
type epochState struct {
	mu              sync.Mutex
	remaining       map[ids.EmissionKey]float64
	uniformFallback map[ids.EmissionKey]bool
}

func newEpochState() *epochState {
	return &epochState{
		remaining:       make(map[ids.EmissionKey]float64),
		uniformFallback: make(map[ids.EmissionKey]bool),
	}
}

func (s *epochState) takeRemaining(k ids.EmissionKey) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.remaining[k]
	delete(s.remaining, k)
	return v
}

func (s *epochState) addRemaining(k ids.EmissionKey, v float64) {
	if v == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining[k] += v
}

func (s *epochState) markUniformFallback(k ids.EmissionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniformFallback[k] = true
}

func (s *epochState) isUniformFallback(k ids.EmissionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uniformFallback[k]
}
