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

// Package loader reads the tab-separated input tables under a data
// root's 01_nfr_totals, 02_gnfr_totals, 03_point_sources,
// 04_scalings and exceptions files into the
// inventory/pattern package types that feed the rest of the pipeline.
// Parsing follows a tab-separated, comment-aware convention: a
// csv.Reader with a comment rune, one record-constructor per file
// shape, permissive about blank lines, strict about column counts.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/unit"

	"github.com/VITObelgium/emap/internal/emaperr"
	"github.com/VITObelgium/emap/internal/ids"
	"github.com/VITObelgium/emap/internal/inventory"
	"github.com/VITObelgium/emap/internal/pattern"
	"github.com/VITObelgium/emap/internal/refdata"
)

const commentRune = '#'

// nfrWithDestination builds an NfrId whose Destination comes from the
// sector/pollutant/country tables' already-registered NFR→GNFR parent
// (ids.RegisterNfr), rather than from the input row itself.
func nfrWithDestination(code string) ids.NfrId {
	return ids.NewNfr(code, ids.ParentGnfr(ids.NewNfr(code, ids.DestLand)).Destination())
}

func newReader(f io.Reader) *csv.Reader {
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.Comment = commentRune
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

func openTSV(path string) (*csv.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loader: opening %s: %w", path, emaperr.ErrIO)
	}
	return newReader(f), f, nil
}

func skipHeader(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	return rows[1:]
}

func parseFloat(path string, row int, field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("loader: %s row %d: bad %s %q: %w", path, row, field, s, emaperr.ErrInputData)
	}
	return v, nil
}

// ReadNfrTotals parses a `country\tnfr\tpollutant\tvalue_kg_per_year`
// table, tagging every key's sector with the NFR's registered
// destination (land/sea/eez).
func ReadNfrTotals(path string, reg *refdata.Registry) ([]inventory.EmissionEntry, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, emaperr.ErrInputData)
	}

	var out []inventory.EmissionEntry
	for i, row := range skipHeader(rows) {
		if len(row) == 0 {
			continue
		}
		if len(row) != 4 {
			return nil, fmt.Errorf("loader: %s row %d: expected 4 fields, got %d: %w", path, i+2, len(row), emaperr.ErrInputData)
		}
		country, err := reg.Country(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, err
		}
		pol, err := reg.Pollutant(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, err
		}
		value, err := parseFloat(path, i+2, "value", row[3])
		if err != nil {
			return nil, err
		}
		nfrCode := strings.TrimSpace(row[1])
		n := nfrWithDestination(nfrCode)
		amt := unit.New(value, inventory.MassPerYear)
		out = append(out, inventory.EmissionEntry{
			Key:    ids.EmissionKey{Country: country, Sector: ids.NfrSector(n), Pollutant: pol},
			Amount: amt,
		})
	}
	return out, nil
}

// ReadGnfrTotals parses a `country\tgnfr\tpollutant\tvalue_kg_per_year`
// table of independently-reported GNFR totals.
func ReadGnfrTotals(path string, reg *refdata.Registry) ([]inventory.EmissionEntry, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, emaperr.ErrInputData)
	}

	var out []inventory.EmissionEntry
	for i, row := range skipHeader(rows) {
		if len(row) == 0 {
			continue
		}
		if len(row) != 4 {
			return nil, fmt.Errorf("loader: %s row %d: expected 4 fields, got %d: %w", path, i+2, len(row), emaperr.ErrInputData)
		}
		country, err := reg.Country(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, err
		}
		pol, err := reg.Pollutant(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, err
		}
		value, err := parseFloat(path, i+2, "value", row[3])
		if err != nil {
			return nil, err
		}
		gnfrCode := strings.TrimSpace(row[1])
		g := ids.NewGnfr(gnfrCode, ids.DestLand)
		amt := unit.New(value, inventory.MassPerYear)
		out = append(out, inventory.EmissionEntry{
			Key:    ids.EmissionKey{Country: country, Sector: ids.GnfrSector(g), Pollutant: pol},
			Amount: amt,
		})
	}
	return out, nil
}

// pointColumns is the fixed column count of a point-source table row:
// country, nfr, pollutant, value, x, y, height, diameter, warmth, flow,
// temperature.
const pointColumns = 11

// ReadPointSources parses the point-source table: one row
// per stack, always attributed to an NFR sector.
func ReadPointSources(path string, reg *refdata.Registry) ([]inventory.EmissionEntry, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, emaperr.ErrInputData)
	}

	var out []inventory.EmissionEntry
	for i, row := range skipHeader(rows) {
		if len(row) == 0 {
			continue
		}
		if len(row) != pointColumns {
			return nil, fmt.Errorf("loader: %s row %d: expected %d fields, got %d: %w",
				path, i+2, pointColumns, len(row), emaperr.ErrInputData)
		}
		country, err := reg.Country(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, err
		}
		pol, err := reg.Pollutant(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, err
		}
		nfrCode := strings.TrimSpace(row[1])

		fields := make([]float64, 0, 8)
		for j, name := range []string{"value", "x", "y", "height", "diameter", "warmth", "flow", "temperature"} {
			v, err := parseFloat(path, i+2, name, row[3+j])
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
		}

		n := nfrWithDestination(nfrCode)
		amt := unit.New(fields[0], inventory.MassPerYear)
		out = append(out, inventory.EmissionEntry{
			Key:        ids.EmissionKey{Country: country, Sector: ids.NfrSector(n), Pollutant: pol},
			Amount:     amt,
			Coordinate: &inventory.Coordinate{X: fields[1], Y: fields[2]},
			Stack: &inventory.StackParams{
				Height: fields[3], Diameter: fields[4], Warmth: fields[5],
				Flow: fields[6], Temperature: fields[7],
			},
		})
	}
	return out, nil
}

// ReadScalings parses a `country\tsectorKind\tcode\tpollutant\tdiffuse\tpoint`
// table; sectorKind is "nfr" or "gnfr", and diffuse/point are blank
// when not set.
func ReadScalings(path string, reg *refdata.Registry) ([]inventory.ScalingFactor, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, emaperr.ErrInputData)
	}

	var out []inventory.ScalingFactor
	for i, row := range skipHeader(rows) {
		if len(row) == 0 {
			continue
		}
		if len(row) != 6 {
			return nil, fmt.Errorf("loader: %s row %d: expected 6 fields, got %d: %w", path, i+2, len(row), emaperr.ErrInputData)
		}
		country, err := reg.Country(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, err
		}
		pol, err := reg.Pollutant(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, err
		}
		code := strings.TrimSpace(row[2])
		var sector ids.SectorId
		switch strings.ToLower(strings.TrimSpace(row[1])) {
		case "nfr":
			sector = ids.NfrSector(nfrWithDestination(code))
		case "gnfr":
			sector = ids.GnfrSector(ids.NewGnfr(code, ids.DestLand))
		default:
			return nil, fmt.Errorf("loader: %s row %d: sector kind must be nfr or gnfr, got %q: %w", path, i+2, row[1], emaperr.ErrInputData)
		}

		sf := inventory.ScalingFactor{Key: ids.EmissionKey{Country: country, Sector: sector, Pollutant: pol}}
		if v := strings.TrimSpace(row[4]); v != "" {
			f, err := parseFloat(path, i+2, "diffuse", v)
			if err != nil {
				return nil, err
			}
			sf.Diffuse, sf.HasDiffuse = f, true
		}
		if v := strings.TrimSpace(row[5]); v != "" {
			f, err := parseFloat(path, i+2, "point", v)
			if err != nil {
				return nil, err
			}
			sf.Point, sf.HasPoint = f, true
		}
		out = append(out, sf)
	}
	return out, nil
}

// ReadExceptions parses the exceptions table: yearFrom, yearTo, country,
// pollutant, gnfr, nfr, path, type, viaGnfr, viaNfr — any field except
// yearFrom/yearTo/type may be blank to mean "any"/"no redirect"
// redirect before lookup.
func ReadExceptions(path string, reg *refdata.Registry) ([]pattern.ExceptionRule, error) {
	r, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, emaperr.ErrInputData)
	}

	var out []pattern.ExceptionRule
	for i, row := range skipHeader(rows) {
		if len(row) == 0 {
			continue
		}
		if len(row) != 10 {
			return nil, fmt.Errorf("loader: %s row %d: expected 10 fields, got %d: %w", path, i+2, len(row), emaperr.ErrInputData)
		}
		yearFrom, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("loader: %s row %d: bad yearFrom %q: %w", path, i+2, row[0], emaperr.ErrInputData)
		}
		yearTo, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("loader: %s row %d: bad yearTo %q: %w", path, i+2, row[1], emaperr.ErrInputData)
		}

		rule := pattern.ExceptionRule{
			YearFrom: yearFrom, YearTo: yearTo,
			Gnfr: strings.TrimSpace(row[4]), Nfr: strings.TrimSpace(row[5]),
			Path: strings.TrimSpace(row[6]), Type: strings.TrimSpace(row[7]),
			ViaGnfr: strings.TrimSpace(row[8]), ViaNfr: strings.TrimSpace(row[9]),
		}
		if iso := strings.TrimSpace(row[2]); iso != "" {
			c, err := reg.Country(iso)
			if err != nil {
				return nil, err
			}
			rule.Country = c
		}
		if code := strings.TrimSpace(row[3]); code != "" {
			p, err := reg.Pollutant(code)
			if err != nil {
				return nil, err
			}
			rule.Pollutant = p
		}
		out = append(out, rule)
	}
	return out, nil
}
