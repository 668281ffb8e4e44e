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

package pattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/tealeg/xlsx"

	"github.com/VITObelgium/emap/internal/coverage"
)

// RasterSource abstracts over the raster read/warp/resample primitives
// as an out-of-scope collaborator: it loads a named file and returns
// values already resampled onto the given country subgrid shape. A
// concrete implementation would wrap GDAL or similar; e-map's core
// only needs the narrow interface below.
type RasterSource interface {
	ReadOnSubgrid(path string, rows, cols int) (*sparse.SparseArray, error)
}

// FileReader is the default RasterReader: it dispatches on
// fileEntry.kind, using rasters for CAMS/CEIP/user sources and parsing
// Flanders Excel tables directly.
type FileReader struct {
	Rasters RasterSource
}

// ReadForCountry loads fe and extracts the portion over cov's subgrid,
// returning nil if nothing positive overlaps the country.
func (f *FileReader) ReadForCountry(fe fileEntry, cov *coverage.CountryCoverage) (*sparse.SparseArray, error) {
	switch fe.kind {
	case FlandersExcel:
		return f.readFlanders(fe, cov)
	default:
		if f.Rasters == nil {
			return nil, fmt.Errorf("pattern: no raster source configured for %s", fe.path)
		}
		raw, err := f.Rasters.ReadOnSubgrid(fe.path, cov.OutputSubgrid.Rows, cov.OutputSubgrid.Cols)
		if err != nil {
			return nil, err
		}
		return maskToCoverage(raw, cov), nil
	}
}

// maskToCoverage zeroes out any raster cell that isn't part of the
// country's coverage list, then weights the remaining cells by their
// coverage fraction, computed after country extraction.
func maskToCoverage(raw *sparse.SparseArray, cov *coverage.CountryCoverage) *sparse.SparseArray {
	if raw == nil {
		return nil
	}
	out := sparse.ZerosSparse(cov.OutputSubgrid.Rows, cov.OutputSubgrid.Cols)
	for _, ci := range cov.Cells {
		v := raw.Get(ci.CountryGridCell.Row, ci.CountryGridCell.Col)
		if v != 0 {
			out.Set(v*ci.Coverage, ci.CountryGridCell.Row, ci.CountryGridCell.Col)
		}
	}
	return out
}

// readFlanders parses a Flanders pollutant workbook: one sheet per
// sector, rows of (row, col, value) triples relative to the country
// subgrid, per the Flanders table convention.
func (f *FileReader) readFlanders(fe fileEntry, cov *coverage.CountryCoverage) (*sparse.SparseArray, error) {
	wb, err := xlsx.OpenFile(fe.path)
	if err != nil {
		return nil, fmt.Errorf("pattern: opening Flanders workbook %s: %w", fe.path, err)
	}
	var sheet *xlsx.Sheet
	for _, s := range wb.Sheets {
		if strings.EqualFold(s.Name, fe.sector) {
			sheet = s
			break
		}
	}
	if sheet == nil && len(wb.Sheets) > 0 {
		sheet = wb.Sheets[0]
	}
	if sheet == nil {
		return nil, fmt.Errorf("pattern: Flanders workbook %s has no sheets", fe.path)
	}

	out := sparse.ZerosSparse(cov.OutputSubgrid.Rows, cov.OutputSubgrid.Cols)
	for i, row := range sheet.Rows {
		if i == 0 || len(row.Cells) < 3 {
			continue // header row or malformed row
		}
		r, errR := strconv.Atoi(strings.TrimSpace(row.Cells[0].Value))
		c, errC := strconv.Atoi(strings.TrimSpace(row.Cells[1].Value))
		v, errV := row.Cells[2].Float()
		if errR != nil || errC != nil || errV != nil {
			continue
		}
		if r < 0 || r >= cov.OutputSubgrid.Rows || c < 0 || c >= cov.OutputSubgrid.Cols {
			continue
		}
		out.AddVal(v, r, c)
	}
	return out, nil
}
