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

package refdata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/VITObelgium/emap/internal/emaperr"
	"github.com/VITObelgium/emap/internal/ids"
)

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadCountries(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "countries.csv", "iso,name,kind\nNL,Netherlands,land\nNOS,North Sea,sea\n")
	countries, err := LoadCountries(path)
	if err != nil {
		t.Fatalf("LoadCountries: unexpected error %v", err)
	}
	if len(countries) != 2 {
		t.Fatalf("countries: want 2 but have %d", len(countries))
	}
	if countries["NL"].Kind() != ids.Land {
		t.Errorf("NL kind: want Land but have %v", countries["NL"].Kind())
	}
	if countries["NOS"].Kind() != ids.Sea {
		t.Errorf("NOS kind: want Sea but have %v", countries["NOS"].Kind())
	}
}

func TestLoadPollutantsWithFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "pollutants.csv", "code,fallback\nNOx,\nPMcoarse,PM10\n")
	pollutants, err := LoadPollutants(path)
	if err != nil {
		t.Fatalf("LoadPollutants: unexpected error %v", err)
	}
	if _, ok := pollutants["NOx"].Fallback(); ok {
		t.Error("NOx: want no fallback")
	}
	fb, ok := pollutants["PMcoarse"].Fallback()
	if !ok || fb.Code() != "PM10" {
		t.Errorf("PMcoarse fallback: want PM10 but have %v (ok=%v)", fb, ok)
	}
}

func TestLoadSectorsRegistersGnfrParent(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "sectors.csv", "nfr,gnfr,destination\n1A2a,B_Industry,land\n1A3d,H_Shipping,sea\n")
	nfrs, err := LoadSectors(path)
	if err != nil {
		t.Fatalf("LoadSectors: unexpected error %v", err)
	}
	if len(nfrs) != 2 {
		t.Fatalf("sectors: want 2 but have %d", len(nfrs))
	}
	if got := ids.ParentGnfr(nfrs[0]); got.Code() != "B_Industry" {
		t.Errorf("parent of 1A2a: want B_Industry but have %s", got.Code())
	}
	if nfrs[1].Destination() != ids.DestSea {
		t.Errorf("1A3d destination: want sea but have %v", nfrs[1].Destination())
	}
}

func TestRegistryCountryUnknownCode(t *testing.T) {
	reg := &Registry{Countries: map[string]ids.CountryId{}}
	_, err := reg.Country("ZZ")
	if !errors.Is(err, emaperr.ErrInputData) {
		t.Errorf("Country with unknown code: want errors.Is(err, ErrInputData) but have %v", err)
	}
}

func TestRegistryPollutantUnknownCode(t *testing.T) {
	reg := &Registry{Pollutants: map[string]ids.PollutantId{}}
	_, err := reg.Pollutant("ZZ")
	if !errors.Is(err, emaperr.ErrInputData) {
		t.Errorf("Pollutant with unknown code: want errors.Is(err, ErrInputData) but have %v", err)
	}
}

func TestLoadMissingFileIsIOError(t *testing.T) {
	_, err := LoadCountries(filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, emaperr.ErrIO) {
		t.Errorf("LoadCountries on a missing file: want errors.Is(err, ErrIO) but have %v", err)
	}
}
