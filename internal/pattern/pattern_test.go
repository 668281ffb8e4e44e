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
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ctessum/sparse"

	"github.com/VITObelgium/emap/internal/coverage"
	"github.com/VITObelgium/emap/internal/ids"
)

// fakeReader returns a fixed raster for any file whose path is in data,
// and nil otherwise.
type fakeReader struct {
	data map[string]*sparse.SparseArray
}

func (f *fakeReader) ReadForCountry(fe fileEntry, _ *coverage.CountryCoverage) (*sparse.SparseArray, error) {
	return f.data[fe.path], nil
}

func onesRaster() *sparse.SparseArray {
	a := sparse.ZerosSparse(2, 2)
	a.Set(1, 0, 0)
	a.Set(3, 1, 1)
	return a
}

func writeCamsTree(t *testing.T, year int, pollutant, sector string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, strconv.Itoa(year))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	name := "CAMS_emissions_REG-AP_" + strconv.Itoa(year) + "_" + pollutant + "_" + sector + ".tif"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestScanParsesCamsFilenames(t *testing.T) {
	root := writeCamsTree(t, 2018, "NOx", "1A2a")
	idx := NewIndex(nil, &fakeReader{}, 1, nil)
	if err := idx.Scan(2018, 2018, root, "", ""); err != nil {
		t.Fatalf("Scan: unexpected error %v", err)
	}
	entries := idx.files[2018]
	if len(entries) != 1 {
		t.Fatalf("files[2018]: want 1 entry but have %d", len(entries))
	}
	if entries[0].pollutant != "NOx" || entries[0].sector != "1A2a" || entries[0].kind != CamsRaster {
		t.Errorf("parsed entry: want {NOx 1A2a CamsRaster} but have %+v", entries[0])
	}
}

func TestGetPatternCheckedNormalizesToUnitSum(t *testing.T) {
	root := writeCamsTree(t, 2018, "NOx", "1A2a")
	path := filepath.Join(root, "2018", "CAMS_emissions_REG-AP_2018_NOx_1A2a.tif")

	nfr := ids.NewNfr("1A2a", ids.DestLand)
	gnfr := ids.NewGnfr("B_Industry", ids.DestLand)
	ids.RegisterNfr(nfr, gnfr)
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	pol := ids.NewPollutant("NOx", "")
	key := ids.EmissionKey{Country: country, Sector: ids.NfrSector(nfr), Pollutant: pol}

	idx := NewIndex(nil, &fakeReader{data: map[string]*sparse.SparseArray{path: onesRaster()}}, 1, nil)
	if err := idx.Scan(2018, 2018, root, "", ""); err != nil {
		t.Fatal(err)
	}

	sp, err := idx.GetPatternChecked(key, &coverage.CountryCoverage{Country: country})
	if err != nil {
		t.Fatalf("GetPatternChecked: unexpected error %v", err)
	}
	if sp.IsUniform() {
		t.Fatal("pattern: want a non-uniform raster pattern")
	}
	if got := sp.Raster.Sum(); got < 0.999 || got > 1.001 {
		t.Errorf("normalized sum: want ~1 but have %v", got)
	}
}

func TestGetPatternFallsBackToUniformWhenNothingMatches(t *testing.T) {
	nfr := ids.NewNfr("1A2a", ids.DestLand)
	gnfr := ids.NewGnfr("B_Industry", ids.DestLand)
	ids.RegisterNfr(nfr, gnfr)
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	pol := ids.NewPollutant("NOx", "")
	key := ids.EmissionKey{Country: country, Sector: ids.NfrSector(nfr), Pollutant: pol}

	idx := NewIndex(nil, &fakeReader{}, 1, nil)
	sp, err := idx.GetPattern(key, &coverage.CountryCoverage{Country: country})
	if err != nil {
		t.Fatalf("GetPattern: unexpected error %v", err)
	}
	if !sp.IsUniform() {
		t.Error("pattern: want uniform fallback when no source matches")
	}
	if sp.Source.Kind != UniformFallback {
		t.Errorf("source kind: want UniformFallback but have %v", sp.Source.Kind)
	}
}

func TestGetPatternUsesPollutantFallback(t *testing.T) {
	root := writeCamsTree(t, 2018, "PM10", "1A2a")
	path := filepath.Join(root, "2018", "CAMS_emissions_REG-AP_2018_PM10_1A2a.tif")

	nfr := ids.NewNfr("1A2a", ids.DestLand)
	gnfr := ids.NewGnfr("B_Industry", ids.DestLand)
	ids.RegisterNfr(nfr, gnfr)
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	pmCoarse := ids.NewPollutant("PMcoarse", "PM10")
	key := ids.EmissionKey{Country: country, Sector: ids.NfrSector(nfr), Pollutant: pmCoarse}

	idx := NewIndex(nil, &fakeReader{data: map[string]*sparse.SparseArray{path: onesRaster()}}, 1, nil)
	if err := idx.Scan(2018, 2018, root, "", ""); err != nil {
		t.Fatal(err)
	}

	sp, err := idx.GetPatternChecked(key, &coverage.CountryCoverage{Country: country})
	if err != nil {
		t.Fatalf("GetPatternChecked: unexpected error %v", err)
	}
	if sp.IsUniform() {
		t.Fatal("pattern: want the PM10 pattern to be found via fallback")
	}
	if sp.Source.FallbackOf == nil || sp.Source.FallbackOf.Code() != "PMcoarse" {
		t.Errorf("FallbackOf: want PMcoarse but have %v", sp.Source.FallbackOf)
	}
}

func TestExceptionRuleMatchesYearAndSector(t *testing.T) {
	nfr := ids.NewNfr("1A2a", ids.DestLand)
	gnfr := ids.NewGnfr("B_Industry", ids.DestLand)
	ids.RegisterNfr(nfr, gnfr)
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	pol := ids.NewPollutant("NOx", "")
	key := ids.EmissionKey{Country: country, Sector: ids.NfrSector(nfr), Pollutant: pol}

	rule := ExceptionRule{YearFrom: 2015, YearTo: 2020, Nfr: "1A2a"}
	if !rule.matches(key, 2018) {
		t.Error("matches: want true for a year within range and matching NFR code")
	}
	if rule.matches(key, 2025) {
		t.Error("matches: want false for a year outside range")
	}

	other := ExceptionRule{YearFrom: 2015, YearTo: 2020, Nfr: "1A4"}
	if other.matches(key, 2018) {
		t.Error("matches: want false for a non-matching NFR code")
	}
}

func TestExceptionRuleEmptyDataFallsThroughToDirectorySearch(t *testing.T) {
	root := writeCamsTree(t, 2018, "NOx", "1A2a")
	camsPath := filepath.Join(root, "2018", "CAMS_emissions_REG-AP_2018_NOx_1A2a.tif")
	emptyPath := filepath.Join(t.TempDir(), "empty.tif")

	nfr := ids.NewNfr("1A2a", ids.DestLand)
	gnfr := ids.NewGnfr("B_Industry", ids.DestLand)
	ids.RegisterNfr(nfr, gnfr)
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	pol := ids.NewPollutant("NOx", "")
	key := ids.EmissionKey{Country: country, Sector: ids.NfrSector(nfr), Pollutant: pol}

	reader := &fakeReader{data: map[string]*sparse.SparseArray{
		emptyPath: sparse.ZerosSparse(2, 2),
		camsPath:  onesRaster(),
	}}
	idx := NewIndex([]ExceptionRule{{YearFrom: 2000, YearTo: 2030, Nfr: "1A2a", Path: emptyPath, Type: "tif"}}, reader, 1, nil)
	if err := idx.Scan(2018, 2018, root, "", ""); err != nil {
		t.Fatal(err)
	}

	sp, err := idx.GetPatternChecked(key, &coverage.CountryCoverage{Country: country})
	if err != nil {
		t.Fatalf("GetPatternChecked: unexpected error %v", err)
	}
	if sp.IsUniform() {
		t.Fatal("pattern: want the directory-search CAMS file, not a uniform fallback")
	}
	if sp.Source.Path != camsPath {
		t.Errorf("source path: want the fall-through %q but have %q", camsPath, sp.Source.Path)
	}
	if sp.AvailableButWithoutData {
		t.Error("AvailableButWithoutData: want false once a populated pattern was found downstream")
	}
}

func TestExceptionRuleEmptyDataWithNoOtherSourceIsUniformFallback(t *testing.T) {
	nfr := ids.NewNfr("1A2a", ids.DestLand)
	gnfr := ids.NewGnfr("B_Industry", ids.DestLand)
	ids.RegisterNfr(nfr, gnfr)
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	pol := ids.NewPollutant("NOx", "")
	key := ids.EmissionKey{Country: country, Sector: ids.NfrSector(nfr), Pollutant: pol}

	emptyPath := filepath.Join(t.TempDir(), "empty.tif")
	reader := &fakeReader{data: map[string]*sparse.SparseArray{emptyPath: sparse.ZerosSparse(2, 2)}}
	idx := NewIndex([]ExceptionRule{{YearFrom: 2000, YearTo: 2030, Nfr: "1A2a", Path: emptyPath, Type: "tif"}}, reader, 1, nil)
	idx.reportingYear = 2018

	sp, err := idx.GetPatternChecked(key, &coverage.CountryCoverage{Country: country})
	if err != nil {
		t.Fatalf("GetPatternChecked: unexpected error %v", err)
	}
	if !sp.IsUniform() || sp.Source.Kind != UniformFallback {
		t.Errorf("pattern: want a uniform fallback when the only exception match is empty but have %+v", sp)
	}
}

func TestExceptionRuleWithPathOverridesSource(t *testing.T) {
	nfr := ids.NewNfr("1A2a", ids.DestLand)
	gnfr := ids.NewGnfr("B_Industry", ids.DestLand)
	ids.RegisterNfr(nfr, gnfr)
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	pol := ids.NewPollutant("NOx", "")
	key := ids.EmissionKey{Country: country, Sector: ids.NfrSector(nfr), Pollutant: pol}

	overridePath := filepath.Join(t.TempDir(), "custom.tif")
	reader := &fakeReader{data: map[string]*sparse.SparseArray{overridePath: onesRaster()}}
	idx := NewIndex([]ExceptionRule{{YearFrom: 2000, YearTo: 2030, Nfr: "1A2a", Path: overridePath, Type: "tif"}}, reader, 1, nil)
	idx.reportingYear = 2018

	sp, err := idx.GetPatternChecked(key, &coverage.CountryCoverage{Country: country})
	if err != nil {
		t.Fatalf("GetPatternChecked: unexpected error %v", err)
	}
	if sp.Source.Path != overridePath {
		t.Errorf("source path: want %q but have %q", overridePath, sp.Source.Path)
	}
}
