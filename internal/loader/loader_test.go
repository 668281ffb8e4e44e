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

package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/VITObelgium/emap/internal/ids"
	"github.com/VITObelgium/emap/internal/refdata"
)

func testRegistry() *refdata.Registry {
	nfr := ids.NewNfr("1A2a", ids.DestLand)
	gnfr := ids.NewGnfr("B_Industry", ids.DestLand)
	ids.RegisterNfr(nfr, gnfr)
	return &refdata.Registry{
		Countries:  map[string]ids.CountryId{"NL": ids.NewCountry("NL", "Netherlands", ids.Land)},
		Pollutants: map[string]ids.PollutantId{"NOx": ids.NewPollutant("NOx", "")},
		Sectors:    []ids.NfrId{nfr},
	}
}

func writeTSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestReadNfrTotals(t *testing.T) {
	reg := testRegistry()
	path := writeTSV(t, "nfr.tsv", "country\tnfr\tpollutant\tvalue\nNL\t1A2a\tNOx\t100\n")
	entries, err := ReadNfrTotals(path, reg)
	if err != nil {
		t.Fatalf("ReadNfrTotals: unexpected error %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: want 1 but have %d", len(entries))
	}
	if entries[0].Value() != 100 {
		t.Errorf("value: want 100 but have %v", entries[0].Value())
	}
	if n, ok := entries[0].Key.Sector.IsNfr(); !ok || n.Code() != "1A2a" {
		t.Errorf("sector: want NFR 1A2a but have %v (ok=%v)", n, ok)
	}
}

func TestReadNfrTotalsWrongColumnCount(t *testing.T) {
	reg := testRegistry()
	path := writeTSV(t, "nfr.tsv", "country\tnfr\tpollutant\tvalue\nNL\t1A2a\tNOx\n")
	if _, err := ReadNfrTotals(path, reg); err == nil {
		t.Fatal("ReadNfrTotals: want an error for a short row")
	}
}

func TestReadNfrTotalsUnknownCountry(t *testing.T) {
	reg := testRegistry()
	path := writeTSV(t, "nfr.tsv", "country\tnfr\tpollutant\tvalue\nZZ\t1A2a\tNOx\t100\n")
	if _, err := ReadNfrTotals(path, reg); err == nil {
		t.Fatal("ReadNfrTotals: want an error for an unregistered country")
	}
}

func TestReadGnfrTotals(t *testing.T) {
	reg := testRegistry()
	path := writeTSV(t, "gnfr.tsv", "country\tgnfr\tpollutant\tvalue\nNL\tB_Industry\tNOx\t50\n")
	entries, err := ReadGnfrTotals(path, reg)
	if err != nil {
		t.Fatalf("ReadGnfrTotals: unexpected error %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: want 1 but have %d", len(entries))
	}
	if g, ok := entries[0].Key.Sector.IsGnfr(); !ok || g.Code() != "B_Industry" {
		t.Errorf("sector: want GNFR B_Industry but have %v (ok=%v)", g, ok)
	}
}

func TestReadPointSources(t *testing.T) {
	reg := testRegistry()
	body := "country\tnfr\tpollutant\tvalue\tx\ty\theight\tdiameter\twarmth\tflow\ttemperature\n" +
		"NL\t1A2a\tNOx\t10\t100000\t200000\t30\t2\t1\t5\t400\n"
	path := writeTSV(t, "points.tsv", body)
	entries, err := ReadPointSources(path, reg)
	if err != nil {
		t.Fatalf("ReadPointSources: unexpected error %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries: want 1 but have %d", len(entries))
	}
	if !entries[0].IsPoint() {
		t.Fatal("entries[0]: want IsPoint true")
	}
	if entries[0].Coordinate.X != 100000 || entries[0].Coordinate.Y != 200000 {
		t.Errorf("coordinate: want (100000,200000) but have %+v", entries[0].Coordinate)
	}
	if entries[0].Stack.Height != 30 || entries[0].Stack.Diameter != 2 {
		t.Errorf("stack: want height 30 diameter 2 but have %+v", entries[0].Stack)
	}
}

func TestReadScalingsDiffuseAndPointBlanksAreOptional(t *testing.T) {
	reg := testRegistry()
	path := writeTSV(t, "scalings.tsv", "country\tkind\tcode\tpollutant\tdiffuse\tpoint\nNL\tnfr\t1A2a\tNOx\t1.5\t\n")
	scalings, err := ReadScalings(path, reg)
	if err != nil {
		t.Fatalf("ReadScalings: unexpected error %v", err)
	}
	if len(scalings) != 1 {
		t.Fatalf("scalings: want 1 but have %d", len(scalings))
	}
	if !scalings[0].HasDiffuse || scalings[0].Diffuse != 1.5 {
		t.Errorf("diffuse: want HasDiffuse true, value 1.5 but have %+v", scalings[0])
	}
	if scalings[0].HasPoint {
		t.Error("point: want HasPoint false for a blank field")
	}
}

func TestReadScalingsRejectsUnknownSectorKind(t *testing.T) {
	reg := testRegistry()
	path := writeTSV(t, "scalings.tsv", "country\tkind\tcode\tpollutant\tdiffuse\tpoint\nNL\tbogus\t1A2a\tNOx\t1.5\t\n")
	if _, err := ReadScalings(path, reg); err == nil {
		t.Fatal("ReadScalings: want an error for an unknown sector kind")
	}
}

func TestReadExceptionsBlankFieldsMeanAny(t *testing.T) {
	reg := testRegistry()
	body := "yearFrom\tyearTo\tcountry\tpollutant\tgnfr\tnfr\tpath\ttype\tviaGnfr\tviaNfr\n" +
		"2000\t2030\t\t\t\t1A2a\tpatterns/custom.tif\ttif\t\t\n"
	path := writeTSV(t, "exceptions.tsv", body)
	rules, err := ReadExceptions(path, reg)
	if err != nil {
		t.Fatalf("ReadExceptions: unexpected error %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("rules: want 1 but have %d", len(rules))
	}
	if rules[0].Country.IsValid() {
		t.Error("country: want an invalid/zero CountryId for a blank field")
	}
	if rules[0].Nfr != "1A2a" {
		t.Errorf("nfr: want 1A2a but have %q", rules[0].Nfr)
	}
}

func TestReadExceptionsUnknownPollutant(t *testing.T) {
	reg := testRegistry()
	body := "yearFrom\tyearTo\tcountry\tpollutant\tgnfr\tnfr\tpath\ttype\tviaGnfr\tviaNfr\n" +
		"2000\t2030\tNL\tZZZ\t\t1A2a\tpatterns/custom.tif\ttif\t\t\n"
	path := writeTSV(t, "exceptions.tsv", body)
	if _, err := ReadExceptions(path, reg); err == nil {
		t.Fatal("ReadExceptions: want an error for an unknown pollutant code")
	}
}
