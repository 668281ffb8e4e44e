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

// Package runctl wires the whole run together: it loads reference
// tables and input files, reconciles the inventory, scans the pattern
// index, assembles the model grid, and drives a single
// disagg.Disaggregator pass, wiring everything from one top-level
// config struct the way a single entrypoint command typically chains
// its load, build and run steps.
package runctl

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/VITObelgium/emap/internal/debugdump"
	"github.com/VITObelgium/emap/internal/disagg"
	"github.com/VITObelgium/emap/internal/emapconfig"
	"github.com/VITObelgium/emap/internal/emaperr"
	"github.com/VITObelgium/emap/internal/geodata"
	"github.com/VITObelgium/emap/internal/grid"
	"github.com/VITObelgium/emap/internal/ids"
	"github.com/VITObelgium/emap/internal/inventory"
	"github.com/VITObelgium/emap/internal/loader"
	"github.com/VITObelgium/emap/internal/output"
	"github.com/VITObelgium/emap/internal/pattern"
	"github.com/VITObelgium/emap/internal/refdata"
	"github.com/VITObelgium/emap/internal/validate"
)

// Result is what a run hands back to its caller for reporting.
type Result struct {
	Inventory  *inventory.BuildResult
	Diffs      []validate.KeyDiff
	ExceedsTol []validate.KeyDiff
}

// Run executes one full disaggregation run from cfg: load, reconcile,
// scan, disaggregate, write, validate.
func Run(ctx context.Context, cfg *emapconfig.RunConfig, log *logrus.Logger) (*Result, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	reg, err := refdata.Load(filepath.Join(cfg.Model.DataPath, "05_model_parameters"))
	if err != nil {
		return nil, err
	}

	nfrTotals, err := loader.ReadNfrTotals(filepath.Join(cfg.Model.DataPath, "01_nfr_totals.tsv"), reg)
	if err != nil {
		return nil, err
	}
	gnfrTotals, err := loader.ReadGnfrTotals(filepath.Join(cfg.Model.DataPath, "02_gnfr_totals.tsv"), reg)
	if err != nil {
		return nil, err
	}
	pointSources, err := loader.ReadPointSources(filepath.Join(cfg.Model.DataPath, "03_point_sources.tsv"), reg)
	if err != nil {
		return nil, err
	}

	var scalings []inventory.ScalingFactor
	if cfg.Model.ScalingsPath != "" {
		scalings, err = loader.ReadScalings(cfg.Model.ScalingsPath, reg)
		if err != nil {
			return nil, err
		}
	}

	var exceptions []pattern.ExceptionRule
	if cfg.Model.ExceptionsPath != "" {
		exceptions, err = loader.ReadExceptions(cfg.Model.ExceptionsPath, reg)
		if err != nil {
			return nil, err
		}
	}

	buildResult, err := inventory.Build(nfrTotals, gnfrTotals, pointSources, scalings, log)
	if err != nil {
		return nil, err
	}

	modelGrid, err := buildModelGrid(cfg.Model.GridLevels)
	if err != nil {
		return nil, err
	}

	vectorSrc := &geodata.ShapefileSource{
		Path:       cfg.Model.CountryShapefile,
		Projection: cfg.Model.CountryShapeProjection,
		CountryOf: func(attr string) (ids.CountryId, bool) {
			c, ok := reg.Countries[attr]
			return c, ok
		},
	}

	patternIdx := pattern.NewIndex(exceptions, &pattern.FileReader{}, 0, log)
	if err := patternIdx.Scan(cfg.Model.ReportingYear, cfg.Model.Year, cfg.Model.CamsRoot, cfg.Model.CeipRoot, cfg.Model.BefRoot); err != nil {
		return nil, err
	}

	pollutants := make([]ids.PollutantId, 0, len(cfg.Model.Pollutants))
	for _, code := range cfg.Model.Pollutants {
		p, err := reg.Pollutant(code)
		if err != nil {
			return nil, err
		}
		pollutants = append(pollutants, p)
	}

	namer := sectorNamer(cfg.Output.SectorLevelName)

	var flanders ids.CountryId
	if cfg.Model.FlandersISO != "" {
		flanders, err = reg.Country(cfg.Model.FlandersISO)
		if err != nil {
			return nil, err
		}
	}

	builder, err := newBuilder(cfg.Output, namer, cfg.Model.Year)
	if err != nil {
		return nil, err
	}

	var dumper *debugdump.Dumper
	if cfg.Output.DumpPerCountry || cfg.Output.DumpPerGrid || cfg.Output.DumpPerPattern {
		dumper = debugdump.New(filepath.Join(cfg.Output.Path, "debug"),
			cfg.Output.DumpPerCountry, cfg.Output.DumpPerGrid, cfg.Output.DumpPerPattern, log)
	}

	dcfg := disagg.Config{
		VectorSource:  vectorSrc,
		VectorIDField: cfg.Model.CountryShapeIDField,
		Flanders:      flanders,
		Namer:         namer,
		Dumper:        dumper,
	}
	d := disagg.New(modelGrid, patternIdx, buildResult.Inventory, dcfg, log)

	var validator *validate.Validator
	var summary *validate.Summary
	var rep disagg.Reporter
	if cfg.Options.Validation {
		tol := cfg.Options.ValidationTolerance
		if tol == 0 {
			tol = inventory.Tolerance
		}
		validator = validate.NewValidator(buildResult.Inventory, tol)
		summary = validate.NewSummary()
		summary.SetInventoryDiagnostics(buildResult)
		rep = disagg.MultiReporter{validator, summary}
	}

	if err := d.Run(ctx, pollutants, reg.Sectors, builder, rep); err != nil {
		return nil, err
	}

	res := &Result{Inventory: buildResult}
	if validator != nil {
		res.Diffs = validator.Finalize()
		for _, diff := range res.Diffs {
			if validator.Exceeds(diff) {
				res.ExceedsTol = append(res.ExceedsTol, diff)
				log.WithField("key", diff.Key.String()).Warnf("runctl: mass-balance diff exceeds tolerance: %s", diff)
			}
		}
	}
	if summary != nil && cfg.Output.SummaryPath != "" {
		if err := summary.WriteXLSX(cfg.Output.SummaryPath); err != nil {
			return res, err
		}
	}
	return res, nil
}

// buildModelGrid turns the configured grid levels, coarsest first, into
// a grid.ModelGrid.
func buildModelGrid(levels []emapconfig.GridLevelConfig) (*grid.ModelGrid, error) {
	defs := make([]grid.Definition, 0, len(levels))
	for _, l := range levels {
		defs = append(defs, grid.Definition{
			Name: l.Name,
			Meta: grid.Meta{
				Name: l.Name, Rows: l.Rows, Cols: l.Cols,
				OriginX: l.OriginX, OriginY: l.OriginY,
				CellSizeX: l.CellSizeX, CellSizeY: l.CellSizeY,
				Projection: l.Projection,
			},
		})
	}
	return grid.NewModelGrid(defs...)
}

// sectorNamer resolves the configured output sector level to a
// collector.SectorNamer: "NFR" keeps NFR codes as-is (nil namer),
// "GNFR" rolls every NFR up to its GNFR parent's code.
func sectorNamer(level string) func(ids.SectorId) string {
	switch level {
	case "", "NFR":
		return nil
	case "GNFR":
		return func(s ids.SectorId) string { return s.Gnfr().String() }
	default:
		return nil
	}
}

func newBuilder(cfg emapconfig.OutputConfig, namer func(ids.SectorId) string, year int) (output.Builder, error) {
	switch cfg.Format {
	case "", "dat":
		return output.NewDatWriter(cfg.Path, cfg.Suffix, namer), nil
	case "brn":
		return output.NewBrnWriter(cfg.Path, cfg.Suffix, year, namer), nil
	default:
		return nil, fmt.Errorf("runctl: unknown output format %q: %w", cfg.Format, emaperr.ErrConfig)
	}
}
