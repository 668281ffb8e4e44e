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

// Package refdata loads the id tables under a data root's
// 05_model_parameters/ directory: countries, pollutants and the
// NFR→GNFR parent map, each a small comma-separated table. It
// is the one place string codes in input files become the hashable
// CountryId/PollutantId/SectorId handles the rest of the pipeline
// passes around, mirroring a parse-once-at-startup,
// one-shot string-to-id tables built at startup.
package refdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/VITObelgium/emap/internal/emaperr"
	"github.com/VITObelgium/emap/internal/ids"
)

// Registry is the resolved set of id tables a run needs before any
// emission or pattern file can be parsed.
type Registry struct {
	Countries  map[string]ids.CountryId
	Pollutants map[string]ids.PollutantId
	// Sectors lists every NFR sector registered from sectors.csv, the
	// roster the run controller iterates over at every grid level.
	Sectors []ids.NfrId
}

func openCSV(path string) (*csv.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("refdata: opening %s: %w", path, emaperr.ErrIO)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r, f, nil
}

// LoadCountries parses a CSV of `iso,name,kind` rows, kind ∈ {land,sea}.
func LoadCountries(path string) (map[string]ids.CountryId, error) {
	r, f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]ids.CountryId)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("refdata: reading %s: %w", path, emaperr.ErrInputData)
	}
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		iso := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		kind := ids.Land
		if len(row) > 2 && strings.EqualFold(strings.TrimSpace(row[2]), "sea") {
			kind = ids.Sea
		}
		out[iso] = ids.NewCountry(iso, name, kind)
	}
	return out, nil
}

// LoadPollutants parses a CSV of `code,fallback` rows; fallback may be
// empty.
func LoadPollutants(path string) (map[string]ids.PollutantId, error) {
	r, f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]ids.PollutantId)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("refdata: reading %s: %w", path, emaperr.ErrInputData)
	}
	for i, row := range rows {
		if i == 0 || len(row) < 1 {
			continue
		}
		code := strings.TrimSpace(row[0])
		fallback := ""
		if len(row) > 1 {
			fallback = strings.TrimSpace(row[1])
		}
		out[code] = ids.NewPollutant(code, fallback)
	}
	return out, nil
}

// LoadSectors parses a CSV of `nfr,gnfr,destination` rows, destination
// ∈ {land,sea,eez}, registers every NFR's GNFR parent in the ids
// package's parent table as a side effect (since Sector's tagged-union
// design keeps that table process-global rather than per-Registry),
// and returns the full NFR roster in file order.
func LoadSectors(path string) ([]ids.NfrId, error) {
	r, f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("refdata: reading %s: %w", path, emaperr.ErrInputData)
	}
	var out []ids.NfrId
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		nfrCode := strings.TrimSpace(row[0])
		gnfrCode := strings.TrimSpace(row[1])
		dest := ids.DestLand
		if len(row) > 2 {
			switch strings.ToLower(strings.TrimSpace(row[2])) {
			case "sea":
				dest = ids.DestSea
			case "eez":
				dest = ids.DestEez
			}
		}
		n := ids.NewNfr(nfrCode, dest)
		ids.RegisterNfr(n, ids.NewGnfr(gnfrCode, dest))
		out = append(out, n)
	}
	return out, nil
}

// Load builds a Registry from a data root's 05_model_parameters/
// directory, also populating the NFR→GNFR parent table.
func Load(modelParamsDir string) (*Registry, error) {
	countries, err := LoadCountries(modelParamsDir + "/countries.csv")
	if err != nil {
		return nil, err
	}
	pollutants, err := LoadPollutants(modelParamsDir + "/pollutants.csv")
	if err != nil {
		return nil, err
	}
	sectors, err := LoadSectors(modelParamsDir + "/sectors.csv")
	if err != nil {
		return nil, err
	}
	return &Registry{Countries: countries, Pollutants: pollutants, Sectors: sectors}, nil
}

// Country resolves iso, erroring if unknown.
func (r *Registry) Country(iso string) (ids.CountryId, error) {
	c, ok := r.Countries[iso]
	if !ok {
		return ids.CountryId{}, fmt.Errorf("refdata: unknown country code %q: %w", iso, emaperr.ErrInputData)
	}
	return c, nil
}

// Pollutant resolves code, erroring if unknown.
func (r *Registry) Pollutant(code string) (ids.PollutantId, error) {
	p, ok := r.Pollutants[code]
	if !ok {
		return ids.PollutantId{}, fmt.Errorf("refdata: unknown pollutant code %q: %w", code, emaperr.ErrInputData)
	}
	return p, nil
}

// Nfr resolves an NFR sector code to a SectorId, using dest as its
// Destination tag.
func (r *Registry) Nfr(code string, dest ids.Destination) ids.SectorId {
	return ids.NfrSector(ids.NewNfr(code, dest))
}

// Gnfr resolves a GNFR sector code to a SectorId.
func (r *Registry) Gnfr(code string, dest ids.Destination) ids.SectorId {
	return ids.GnfrSector(ids.NewGnfr(code, dest))
}
