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

// Package pattern is the spatial-pattern inventory: it scans a data root
// for CAMS rasters, CEIP tables, Flanders Excel files and user rasters,
// indexes them by (year, pollutant, sector), applies exception rules and
// selects the best available pattern for a (country, sector, pollutant)
// key, normalizing the result to a country-local weight raster that sums
// to 1. It plays the same role a surrogate spec / filter / grid-ref
// trio plays for gridding surrogates elsewhere, generalized to
// e-map's multi-source, fallback-driven selection protocol.
package pattern

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/VITObelgium/emap/internal/coverage"
	"github.com/VITObelgium/emap/internal/ids"
)

// SourceKind tags the variant a SpatialPatternSource wraps.
type SourceKind int

const (
	CamsRaster SourceKind = iota
	CeipTable
	FlandersExcel
	UserRaster
	UniformFallback
)

func (k SourceKind) String() string {
	switch k {
	case CamsRaster:
		return "CAMS"
	case CeipTable:
		return "CEIP"
	case FlandersExcel:
		return "Flanders"
	case UserRaster:
		return "user"
	default:
		return "uniform-fallback"
	}
}

// SpatialPatternSource records where a pattern came from: which file, for
// which canonical emission key, and which year.
type SpatialPatternSource struct {
	Kind Source
	Path string
	Key  ids.EmissionKey
	Year int
	// FallbackOf is set when the source was found under a fallback
	// pollutant rather than the originally requested one.
	FallbackOf *ids.PollutantId
}

// Source is an alias kept for readability at call sites; it is the same
// type as SourceKind.
type Source = SourceKind

func (s SpatialPatternSource) String() string {
	if s.FallbackOf != nil {
		return fmt.Sprintf("%s:%s (from fallback %s)", s.Kind, s.Path, s.FallbackOf)
	}
	return fmt.Sprintf("%s:%s", s.Kind, s.Path)
}

// SpatialPattern is a normalized weight raster for one country, on that
// country's output-aligned subgrid (as produced by coverage.Build). An
// empty (nil) Raster means "uniform over coverage cells".
type SpatialPattern struct {
	Source SpatialPatternSource
	Raster *sparse.SparseArray // nil => uniform

	// AvailableButWithoutData is set when an exception/file was found for
	// the key but contained no positive values after country extraction
	// (pattern normalization).
	AvailableButWithoutData bool
}

// IsUniform reports whether the pattern should be spread uniformly.
func (p SpatialPattern) IsUniform() bool {
	return p.Raster == nil
}

// ExceptionRule overrides the normal selection protocol for a matching
// key, per the exceptions table.
type ExceptionRule struct {
	YearFrom, YearTo int
	Country          ids.CountryId
	Pollutant        ids.PollutantId
	Gnfr, Nfr        string // empty means "any"
	Path             string
	Type             string // tif, cams, ceip, bef
	ViaGnfr, ViaNfr  string // redirect sector before lookup
}

func (r ExceptionRule) matches(key ids.EmissionKey, year int) bool {
	if year < r.YearFrom || year > r.YearTo {
		return false
	}
	if r.Country.IsValid() && r.Country != key.Country {
		return false
	}
	if r.Pollutant.IsValid() && r.Pollutant.Code() != key.Pollutant.Code() {
		return false
	}
	if n, ok := key.Sector.IsNfr(); ok {
		if r.Nfr != "" && r.Nfr != n.Code() {
			return false
		}
		if r.Gnfr != "" && r.Gnfr != ids.ParentGnfr(n).Code() {
			return false
		}
	} else if g, ok := key.Sector.IsGnfr(); ok {
		if r.Gnfr != "" && r.Gnfr != g.Code() {
			return false
		}
		if r.Nfr != "" {
			return false
		}
	}
	return true
}

func (r ExceptionRule) redirectsSector() bool { return r.ViaGnfr != "" || r.ViaNfr != "" }

// fileEntry is one scanned candidate file.
type fileEntry struct {
	path      string
	year      int
	pollutant string
	sector    string // NFR or GNFR code as it appears in the filename
	kind      SourceKind
}

// Index is the scanned, read-only-after-scan spatial pattern inventory.
type Index struct {
	log        *logrus.Logger
	exceptions []ExceptionRule

	// files[year] = entries found in that year's directory.
	files map[int][]fileEntry

	reportingYear int
	startYear     int

	reader RasterReader
	cache  *requestcache.Cache
}

// loadRequest is the payload fed through the requestcache pipeline: a
// single (file, country-coverage) pair to read and country-extract.
// This is a small LRU cache guarded by serialized access, generalized
// to every pattern source so repeated lookups of the same file across
// countries/levels are deduplicated too.
type loadRequest struct {
	fe  fileEntry
	cov *coverage.CountryCoverage
}

// NewIndex creates an empty, unscanned index. reader performs the actual
// file reads; numWorkers bounds how many run concurrently (0 = 4).
func NewIndex(exceptions []ExceptionRule, reader RasterReader, numWorkers int, log *logrus.Logger) *Index {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 4
	}
	idx := &Index{
		log:        log,
		exceptions: exceptions,
		files:      make(map[int][]fileEntry),
		reader:     reader,
	}
	processor := func(_ context.Context, payload interface{}) (interface{}, error) {
		req := payload.(loadRequest)
		return idx.reader.ReadForCountry(req.fe, req.cov)
	}
	idx.cache = requestcache.NewCache(processor, numWorkers,
		requestcache.Deduplicate(), requestcache.Memory(64))
	return idx
}

var (
	camsRe = regexp.MustCompile(`^CAMS_emissions_REG-[^_]+_(\d{4})_([A-Za-z0-9.]+)_([A-Za-z0-9]+)`)
	ceipRe = regexp.MustCompile(`^([A-Za-z0-9.]+)_([A-Za-z0-9]+)_(\d{4})_GRID_(\d{4})`)
)

// Scan walks rootPath/<year> directories for CAMS/CEIP/Flanders files and
// populates the index. Parsing is permissive: files whose names don't
// match a known convention are ignored with a debug log.
func (idx *Index) Scan(reportingYear, startYear int, camsRoot, ceipRoot, befRoot string) error {
	idx.reportingYear = reportingYear
	idx.startYear = startYear

	scanDir := func(root string, parse func(name string, year int) (fileEntry, bool)) error {
		if root == "" {
			return nil
		}
		years, err := listYearDirs(root)
		if err != nil {
			return fmt.Errorf("pattern: scanning %s: %w", root, err)
		}
		for _, y := range years {
			dir := filepath.Join(root, strconv.Itoa(y))
			entries, err := os.ReadDir(dir)
			if err != nil {
				idx.log.WithError(err).Debugf("pattern: skipping unreadable dir %s", dir)
				continue
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				fe, ok := parse(e.Name(), y)
				if !ok {
					idx.log.Debugf("pattern: ignoring unrecognized file %s", e.Name())
					continue
				}
				fe.path = filepath.Join(dir, e.Name())
				idx.files[y] = append(idx.files[y], fe)
			}
		}
		return nil
	}

	if err := scanDir(camsRoot, func(name string, year int) (fileEntry, bool) {
		m := camsRe.FindStringSubmatch(name)
		if m == nil {
			return fileEntry{}, false
		}
		return fileEntry{year: year, pollutant: m[2], sector: m[3], kind: CamsRaster}, true
	}); err != nil {
		return err
	}
	if err := scanDir(ceipRoot, func(name string, year int) (fileEntry, bool) {
		m := ceipRe.FindStringSubmatch(name)
		if m == nil {
			return fileEntry{}, false
		}
		return fileEntry{year: year, pollutant: m[1], sector: m[2], kind: CeipTable}, true
	}); err != nil {
		return err
	}
	if err := scanDir(befRoot, func(name string, year int) (fileEntry, bool) {
		if !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
			return fileEntry{}, false
		}
		pol := strings.TrimSuffix(name, filepath.Ext(name))
		return fileEntry{year: year, pollutant: pol, kind: FlandersExcel}, true
	}); err != nil {
		return err
	}
	return nil
}

func listYearDirs(root string) ([]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var years []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if y, err := strconv.Atoi(e.Name()); err == nil {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

// preferredYears returns start, start-1, start+1, start-2, start+2, ...
// limited to years that actually have scanned files
// step 3.
func (idx *Index) preferredYears() []int {
	present := make(map[int]bool, len(idx.files))
	for y := range idx.files {
		present[y] = true
	}
	var out []int
	if present[idx.startYear] {
		out = append(out, idx.startYear)
	}
	for d := 1; ; d++ {
		lo, hi := idx.startYear-d, idx.startYear+d
		found := false
		if present[lo] {
			out = append(out, lo)
			found = true
		}
		if present[hi] {
			out = append(out, hi)
			found = true
		}
		if !found && (lo < idx.startYear-len(idx.files)-1) {
			break
		}
		if d > 200 {
			break // safety valve; data roots never span centuries
		}
		if len(out) >= len(present) {
			break
		}
	}
	return out
}

// RasterReader loads a matched file over a country's coverage,
// returning nil if nothing positive remains; Index L1-normalizes the
// result.
type RasterReader interface {
	ReadForCountry(fe fileEntry, cov *coverage.CountryCoverage) (*sparse.SparseArray, error)
}

// GetPatternChecked resolves the pattern for key over coverage cov,
// verifying the source actually carries data for the target country.
// Used during the coarsest grid level.
func (idx *Index) GetPatternChecked(key ids.EmissionKey, cov *coverage.CountryCoverage) (SpatialPattern, error) {
	return idx.resolve(key, cov, true)
}

// GetPattern resolves the pattern for key; used on finer grid levels.
// It resolves exactly as GetPatternChecked does: the data-presence check
// is applied either way.
func (idx *Index) GetPattern(key ids.EmissionKey, cov *coverage.CountryCoverage) (SpatialPattern, error) {
	return idx.resolve(key, cov, false)
}

func (idx *Index) resolve(key ids.EmissionKey, cov *coverage.CountryCoverage, checked bool) (SpatialPattern, error) {
	sp, ok, err := idx.tryKey(key, cov, checked, nil)
	if err != nil {
		return SpatialPattern{}, err
	}
	if ok {
		return sp, nil
	}
	if fb, hasFallback := key.Pollutant.Fallback(); hasFallback {
		fbKey := key
		fbKey.Pollutant = fb
		sp, ok, err = idx.tryKey(fbKey, cov, checked, &key.Pollutant)
		if err != nil {
			return SpatialPattern{}, err
		}
		if ok {
			return sp, nil
		}
	}
	return SpatialPattern{
		Source: SpatialPatternSource{Kind: UniformFallback, Key: key, Year: idx.reportingYear},
	}, nil
}

// tryKey runs steps 1-3 of the selection protocol for exactly one
// pollutant (the original or its fallback).
func (idx *Index) tryKey(key ids.EmissionKey, cov *coverage.CountryCoverage, checked bool, fallbackOf *ids.PollutantId) (SpatialPattern, bool, error) {
	// Step 1/2: exception rules.
	for _, rule := range idx.exceptions {
		if !rule.matches(key, idx.reportingYear) {
			continue
		}
		if rule.redirectsSector() {
			redirected := key
			if rule.ViaNfr != "" {
				redirected.Sector = ids.NfrSector(ids.NewNfr(rule.ViaNfr, key.Sector.Destination()))
			} else if rule.ViaGnfr != "" {
				redirected.Sector = ids.GnfrSector(ids.NewGnfr(rule.ViaGnfr, key.Sector.Destination()))
			}
			return idx.tryKey(redirected, cov, checked, fallbackOf)
		}
		if rule.Path != "" {
			fe := fileEntry{path: rule.Path, year: idx.reportingYear, kind: kindFromRuleType(rule.Type)}
			sp, found, err := idx.loadAndNormalize(fe, key, cov, fallbackOf)
			if err != nil {
				return sp, found, err
			}
			if found && sp.AvailableButWithoutData {
				// The exception rule's file exists but carries no data for
				// this country: fall through to the directory search
				// instead of resolving here.
				continue
			}
			if found {
				return sp, found, nil
			}
		}
	}

	// Step 3: search preferred years for (pollutant, sector), falling
	// back to the NFR's parent GNFR sector.
	sectorCodes := sectorCandidates(key)
	for _, y := range idx.preferredYears() {
		for _, fe := range idx.files[y] {
			for _, sc := range sectorCodes {
				if strings.EqualFold(fe.pollutant, key.Pollutant.Code()) && strings.EqualFold(fe.sector, sc) {
					sp, found, err := idx.loadAndNormalize(fe, key, cov, fallbackOf)
					if err != nil || found {
						return sp, found, err
					}
				}
			}
		}
	}
	return SpatialPattern{}, false, nil
}

func sectorCandidates(key ids.EmissionKey) []string {
	if n, ok := key.Sector.IsNfr(); ok {
		return []string{n.Code(), ids.ParentGnfr(n).Code()}
	}
	if g, ok := key.Sector.IsGnfr(); ok {
		return []string{g.Code()}
	}
	return nil
}

func kindFromRuleType(t string) SourceKind {
	switch strings.ToLower(t) {
	case "cams":
		return CamsRaster
	case "ceip":
		return CeipTable
	case "bef":
		return FlandersExcel
	default:
		return UserRaster
	}
}

func (idx *Index) loadAndNormalize(fe fileEntry, key ids.EmissionKey, cov *coverage.CountryCoverage, fallbackOf *ids.PollutantId) (SpatialPattern, bool, error) {
	cacheKey := fmt.Sprintf("%s|%s", fe.path, key.Country)
	raw, err := idx.cache.NewRequest(context.Background(), loadRequest{fe: fe, cov: cov}, cacheKey).Result()
	if err != nil {
		return SpatialPattern{}, false, fmt.Errorf("pattern: reading %s: %w", fe.path, err)
	}
	raster, _ := raw.(*sparse.SparseArray)

	src := SpatialPatternSource{Kind: fe.kind, Path: fe.path, Key: key, Year: fe.year, FallbackOf: fallbackOf}
	if raster == nil || raster.Sum() == 0 {
		return SpatialPattern{Source: src, AvailableButWithoutData: true}, true, nil
	}
	norm := raster.ScaleCopy(1.0 / raster.Sum())
	return SpatialPattern{Source: src, Raster: norm}, true, nil
}
