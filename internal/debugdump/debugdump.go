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

// Package debugdump writes intermediate rasters to disk as plain
// (row, col, value) CSV tables, one file per dump, so a run can be
// inspected cell-by-cell without a GIS viewer. It is the CSV-table
// analogue of a vector debug dump: where a GDAL-backed dumper would
// write a shapefile or memory layer per grid/country/pattern, this
// writer uses encoding/csv the same way the rest of the pipeline's
// small reference tables are read and written, since no GDAL-equivalent
// vector/raster library is available to this module (DESIGN.md).
package debugdump

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/VITObelgium/emap/internal/emaperr"
	"github.com/VITObelgium/emap/internal/ids"
)

// Dumper writes debug rasters under Dir, gated per-kind by the
// PerCountry/PerGrid/PerPattern switches so a run only pays the I/O
// cost for the dumps it was asked for.
type Dumper struct {
	Dir        string
	PerCountry bool
	PerGrid    bool
	PerPattern bool

	log *logrus.Logger
}

// New creates a Dumper rooted at dir. A nil log falls back to the
// standard logger.
func New(dir string, perCountry, perGrid, perPattern bool, log *logrus.Logger) *Dumper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dumper{Dir: dir, PerCountry: perCountry, PerGrid: perGrid, PerPattern: perPattern, log: log}
}

// Enabled reports whether any dump kind is switched on; callers can
// skip building a raster entirely when this is false.
func (d *Dumper) Enabled() bool {
	return d != nil && (d.PerCountry || d.PerGrid || d.PerPattern)
}

// CountryRaster writes raster under <grid>/<sector>_<pollutant>_<country>.csv
// when PerCountry is set. It is a no-op otherwise.
func (d *Dumper) CountryRaster(gridLevel, sectorName string, pollutant ids.PollutantId, country ids.CountryId, raster *sparse.SparseArray) error {
	if d == nil || !d.PerCountry {
		return nil
	}
	name := fmt.Sprintf("%s_%s_%s.csv", sectorName, pollutant.Code(), country.String())
	return d.writeRaster(gridLevel, name, raster)
}

// GridRaster writes the full accumulated raster for gridLevel under
// <grid>/<sector>_<pollutant>.csv when PerGrid is set.
func (d *Dumper) GridRaster(gridLevel, sectorName string, pollutant ids.PollutantId, raster *sparse.SparseArray) error {
	if d == nil || !d.PerGrid {
		return nil
	}
	name := fmt.Sprintf("%s_%s.csv", sectorName, pollutant.Code())
	return d.writeRaster(gridLevel, name, raster)
}

// PatternRaster writes the normalized pattern weights chosen for a
// (country, sector, pollutant) key before scaling, under
// <grid>/patterns/<sector>_<pollutant>_<country>_<source>.csv, when
// PerPattern is set.
func (d *Dumper) PatternRaster(gridLevel, sectorName string, pollutant ids.PollutantId, country ids.CountryId, source string, raster *sparse.SparseArray) error {
	if d == nil || !d.PerPattern {
		return nil
	}
	name := fmt.Sprintf("%s_%s_%s_%s.csv", sectorName, pollutant.Code(), country.String(), source)
	return d.writeRaster(filepath.Join(gridLevel, "patterns"), name, raster)
}

// writeRaster writes every nonzero cell of raster as a (row, col,
// value) CSV row, logging and returning the error rather than
// aborting the run: a failed debug dump should never fail a run that
// would otherwise have succeeded.
func (d *Dumper) writeRaster(subdir, name string, raster *sparse.SparseArray) error {
	if raster == nil {
		return nil
	}
	dir := filepath.Join(d.Dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("debugdump: creating %s: %w: %w", dir, emaperr.ErrIO, err)
		d.log.WithError(err).Warn("debugdump: skipping raster dump")
		return err
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		err = fmt.Errorf("debugdump: creating %s: %w: %w", path, emaperr.ErrIO, err)
		d.log.WithError(err).Warn("debugdump: skipping raster dump")
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"row", "col", "value"}); err != nil {
		return fmt.Errorf("debugdump: writing %s: %w: %w", path, emaperr.ErrIO, err)
	}
	for _, idx1d := range raster.Nonzero() {
		nd := raster.IndexNd(idx1d)
		row, col := nd[0], nd[1]
		v := raster.Get(row, col)
		record := []string{
			strconv.Itoa(row),
			strconv.Itoa(col),
			strconv.FormatFloat(v, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("debugdump: writing %s: %w: %w", path, emaperr.ErrIO, err)
		}
	}
	d.log.WithField("path", path).Debug("debugdump: wrote raster dump")
	return nil
}
