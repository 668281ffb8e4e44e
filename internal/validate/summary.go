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

package validate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tealeg/xlsx"

	"github.com/VITObelgium/emap/internal/disagg"
	"github.com/VITObelgium/emap/internal/ids"
	"github.com/VITObelgium/emap/internal/inventory"
)

// patternChoice is the pattern source recorded the first time a key is
// resolved (the "checked" resolution, at the coarsest level or the
// Flanders pass).
type patternChoice struct {
	key    ids.EmissionKey
	source string
	year   int
}

// Summary records, across a disagg.Run, which pattern source was chosen
// per key, which GNFR ratios and clamps the inventory builder applied,
// and any uniform-fallback events, then renders all of it to a
// spreadsheet.
type Summary struct {
	mu        sync.Mutex
	patterns  map[ids.EmissionKey]patternChoice
	fallbacks map[ids.EmissionKey]bool
	ratios    []inventory.RatioRecord
	clamps    []inventory.ClampRecord
	beClamped []ids.EmissionKey
}

// NewSummary creates an empty Summary.
func NewSummary() *Summary {
	return &Summary{
		patterns:  make(map[ids.EmissionKey]patternChoice),
		fallbacks: make(map[ids.EmissionKey]bool),
	}
}

// SetInventoryDiagnostics copies the diagnostics inventory.Build
// produced alongside the reconciled Inventory.
func (s *Summary) SetInventoryDiagnostics(res *inventory.BuildResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratios = res.Ratios
	s.clamps = res.Clamps
	s.beClamped = res.BEClamped
}

// ReportUnit implements disagg.Reporter. Only the first report for a
// key (the checked resolution) is kept as that key's pattern choice.
func (s *Summary) ReportUnit(u disagg.UnitReport) {
	key := ids.EmissionKey{Country: u.Country, Sector: u.Sector, Pollutant: u.Pollutant}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[key]; !ok {
		s.patterns[key] = patternChoice{key: key, source: u.Pattern.String(), year: u.Pattern.Year}
	}
	if u.UsedUniform {
		s.fallbacks[key] = true
	}
}

// WriteXLSX renders the summary to path: one sheet each for pattern
// choices, GNFR ratios, clamps and uniform-fallback events.
func (s *Summary) WriteXLSX(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := xlsx.NewFile()

	patSheet, err := file.AddSheet("PatternSources")
	if err != nil {
		return fmt.Errorf("validate: adding PatternSources sheet: %w", err)
	}
	header := patSheet.AddRow()
	for _, h := range []string{"country", "sector", "pollutant", "source", "year"} {
		header.AddCell().Value = h
	}
	var keys []ids.EmissionKey
	for k := range s.patterns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	for _, k := range keys {
		pc := s.patterns[k]
		row := patSheet.AddRow()
		row.AddCell().Value = k.Country.String()
		row.AddCell().Value = k.Sector.String()
		row.AddCell().Value = k.Pollutant.String()
		row.AddCell().Value = pc.source
		row.AddCell().SetInt(pc.year)
	}

	ratioSheet, err := file.AddSheet("GnfrRatios")
	if err != nil {
		return fmt.Errorf("validate: adding GnfrRatios sheet: %w", err)
	}
	rh := ratioSheet.AddRow()
	for _, h := range []string{"country", "gnfr", "pollutant", "reported", "fromNfr", "ratio"} {
		rh.AddCell().Value = h
	}
	for _, r := range s.ratios {
		row := ratioSheet.AddRow()
		row.AddCell().Value = r.Country.String()
		row.AddCell().Value = r.Gnfr.String()
		row.AddCell().Value = r.Pollutant.String()
		row.AddCell().SetFloat(r.Reported)
		row.AddCell().SetFloat(r.FromNfr)
		row.AddCell().SetFloat(r.Ratio)
	}

	clampSheet, err := file.AddSheet("Clamps")
	if err != nil {
		return fmt.Errorf("validate: adding Clamps sheet: %w", err)
	}
	ch := clampSheet.AddRow()
	for _, h := range []string{"country", "sector", "pollutant", "was", "kind"} {
		ch.AddCell().Value = h
	}
	for _, c := range s.clamps {
		row := clampSheet.AddRow()
		row.AddCell().Value = c.Key.Country.String()
		row.AddCell().Value = c.Key.Sector.String()
		row.AddCell().Value = c.Key.Pollutant.String()
		row.AddCell().SetFloat(c.Was)
		row.AddCell().Value = "negative-total"
	}
	for _, k := range s.beClamped {
		row := clampSheet.AddRow()
		row.AddCell().Value = k.Country.String()
		row.AddCell().Value = k.Sector.String()
		row.AddCell().Value = k.Pollutant.String()
		row.AddCell().SetFloat(0)
		row.AddCell().Value = "be-point-exceeds-total"
	}

	fbSheet, err := file.AddSheet("UniformFallbacks")
	if err != nil {
		return fmt.Errorf("validate: adding UniformFallbacks sheet: %w", err)
	}
	fh := fbSheet.AddRow()
	for _, h := range []string{"country", "sector", "pollutant"} {
		fh.AddCell().Value = h
	}
	var fbKeys []ids.EmissionKey
	for k := range s.fallbacks {
		fbKeys = append(fbKeys, k)
	}
	sort.Slice(fbKeys, func(i, j int) bool { return fbKeys[i].Less(fbKeys[j]) })
	for _, k := range fbKeys {
		row := fbSheet.AddRow()
		row.AddCell().Value = k.Country.String()
		row.AddCell().Value = k.Sector.String()
		row.AddCell().Value = k.Pollutant.String()
	}

	if err := file.Save(path); err != nil {
		return fmt.Errorf("validate: writing %s: %w", path, err)
	}
	return nil
}
