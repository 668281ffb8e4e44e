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

// Package emapconfig loads and validates the single TOML run
// configuration, a config-by-struct-tags approach built with
// BurntSushi/toml.
package emapconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/VITObelgium/emap/internal/emaperr"
)

// GridLevelConfig is one `[[model.grid_levels]]` entry: a named grid in
// the coarse-to-fine cascade, coarsest first.
type GridLevelConfig struct {
	Name       string  `toml:"name"`
	Rows       int     `toml:"rows"`
	Cols       int     `toml:"cols"`
	OriginX    float64 `toml:"origin_x"`
	OriginY    float64 `toml:"origin_y"`
	CellSizeX  float64 `toml:"cell_size_x"`
	CellSizeY  float64 `toml:"cell_size_y"`
	Projection string  `toml:"projection"`
}

// ModelConfig is the TOML `[model]` table. DataPath is the root of the
// conventional directory layout: 05_model_parameters/{countries,
// pollutants,sectors}.csv, 01_nfr_totals.tsv, 02_gnfr_totals.tsv,
// 03_point_sources.tsv, a country border shapefile, and the CAMS/CEIP/
// Flanders pattern roots.
type ModelConfig struct {
	DataPath         string            `toml:"data_path"`
	Year             int               `toml:"year"`
	ReportingYear    int               `toml:"reporting_year"`
	Scenario         string            `toml:"scenario"`
	Pollutants       []string          `toml:"pollutants"`
	RescaleThreshold float64           `toml:"point_source_rescale_threshold"`
	ExceptionsPath   string            `toml:"exceptions_path"`
	ScalingsPath     string            `toml:"scalings_path"`
	GridLevels       []GridLevelConfig `toml:"grid_levels"`

	CountryShapefile   string `toml:"country_shapefile"`
	CountryShapeIDField string `toml:"country_shapefile_id_field"`
	CountryShapeProjection string `toml:"country_shapefile_projection"`
	FlandersISO        string `toml:"flanders_iso"`

	CamsRoot string `toml:"cams_root"`
	CeipRoot string `toml:"ceip_root"`
	BefRoot  string `toml:"bef_root"`
}

// OutputConfig is the TOML `[output]` table.
type OutputConfig struct {
	Path            string `toml:"path"`
	// Format selects the gridded writer: "dat" (default) or "brn".
	Format          string `toml:"format"`
	SectorLevelName string `toml:"sector_level_name"`
	Suffix          string `toml:"suffix"`
	DumpPerCountry  bool   `toml:"dump_per_country"`
	DumpPerGrid     bool   `toml:"dump_per_grid"`
	DumpPerPattern  bool   `toml:"dump_per_pattern"`
	SeparatePointSource bool `toml:"separate_point_source"`
	// SummaryPath, when set, is where the run's diagnostic spreadsheet
	// is written; empty disables it regardless of options.validation.
	SummaryPath string `toml:"summary_path"`
}

// OptionsConfig is the TOML `[options]` table.
type OptionsConfig struct {
	Validation        bool    `toml:"validation"`
	ValidationTolerance float64 `toml:"validation_tolerance"`
}

// RunConfig is the top-level TOML document.
type RunConfig struct {
	Model   ModelConfig   `toml:"model"`
	Output  OutputConfig  `toml:"output"`
	Options OptionsConfig `toml:"options"`
}

// Load parses and validates path into a RunConfig.
func Load(path string) (*RunConfig, error) {
	var cfg RunConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("emapconfig: parsing %s: %w: %w", path, emaperr.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the keys a run cannot proceed without.
func (c *RunConfig) Validate() error {
	var missing []string
	if len(c.Model.GridLevels) == 0 {
		missing = append(missing, "model.grid_levels")
	}
	if c.Model.DataPath == "" {
		missing = append(missing, "model.data_path")
	}
	if c.Model.Year == 0 {
		missing = append(missing, "model.year")
	}
	if c.Model.ReportingYear == 0 {
		missing = append(missing, "model.reporting_year")
	}
	if c.Output.Path == "" {
		missing = append(missing, "output.path")
	}
	if c.Output.SectorLevelName == "" {
		missing = append(missing, "output.sector_level_name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("emapconfig: missing required keys %v: %w", missing, emaperr.ErrConfig)
	}
	if c.Model.RescaleThreshold < 0 {
		return fmt.Errorf("emapconfig: model.point_source_rescale_threshold must be >= 0: %w", emaperr.ErrConfig)
	}
	return nil
}
