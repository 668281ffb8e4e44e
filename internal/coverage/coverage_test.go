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

package coverage

import (
	"context"
	"testing"

	"github.com/ctessum/geom"

	"github.com/VITObelgium/emap/internal/grid"
	"github.com/VITObelgium/emap/internal/ids"
)

func square(minX, minY, maxX, maxY float64) geom.Polygon {
	ring := []geom.Point{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY}}
	return geom.Polygon{ring}
}

type fakeVectorSource struct {
	geoms []CountryGeometry
}

func (f *fakeVectorSource) Countries(_, _ string) ([]CountryGeometry, error) {
	return f.geoms, nil
}

type fakeInventory struct {
	countries map[ids.CountryId]bool
}

func (f *fakeInventory) HasCountry(c ids.CountryId) bool { return f.countries[c] }

func testExtent() grid.Meta {
	return grid.Meta{Name: "test", Rows: 2, Cols: 2, OriginX: 0, OriginY: 2, CellSizeX: 1, CellSizeY: -1}
}

func TestBuildFullyCoveringCountryGetsCoverageOne(t *testing.T) {
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	src := &fakeVectorSource{geoms: []CountryGeometry{{Country: country, Polygon: square(0, 0, 2, 2)}}}
	inv := &fakeInventory{countries: map[ids.CountryId]bool{country: true}}

	results, err := Build(context.Background(), testExtent(), src, "ISO", inv, AllCells, nil, nil)
	if err != nil {
		t.Fatalf("Build: unexpected error %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results: want 1 country but have %d", len(results))
	}
	cc := results[0]
	if len(cc.Cells) != 4 {
		t.Fatalf("cells: want 4 (full 2x2 grid) but have %d", len(cc.Cells))
	}
	for _, ci := range cc.Cells {
		if ci.Coverage != 1 {
			t.Errorf("cell %+v: want coverage 1 but have %v", ci.CountryGridCell, ci.Coverage)
		}
	}
}

func TestBuildSkipsCountriesNotInInventory(t *testing.T) {
	country := ids.NewCountry("NL", "Netherlands", ids.Land)
	src := &fakeVectorSource{geoms: []CountryGeometry{{Country: country, Polygon: square(0, 0, 2, 2)}}}
	inv := &fakeInventory{countries: map[ids.CountryId]bool{}}

	results, err := Build(context.Background(), testExtent(), src, "ISO", inv, AllCells, nil, nil)
	if err != nil {
		t.Fatalf("Build: unexpected error %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results: want 0 countries but have %d", len(results))
	}
}

func TestBuildSplitsCoverageBetweenNeighbors(t *testing.T) {
	left := ids.NewCountry("NL", "Netherlands", ids.Land)
	right := ids.NewCountry("DE", "Germany", ids.Land)
	// Each country fully covers one column of the 2x2 grid, no overlap.
	src := &fakeVectorSource{geoms: []CountryGeometry{
		{Country: left, Polygon: square(0, 0, 1, 2)},
		{Country: right, Polygon: square(1, 0, 2, 2)},
	}}
	inv := &fakeInventory{countries: map[ids.CountryId]bool{left: true, right: true}}

	results, err := Build(context.Background(), testExtent(), src, "ISO", inv, AllCells, nil, nil)
	if err != nil {
		t.Fatalf("Build: unexpected error %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results: want 2 countries but have %d", len(results))
	}
	for _, cc := range results {
		for _, ci := range cc.Cells {
			if ci.Coverage != 1 {
				t.Errorf("country %v cell %+v: want coverage 1 (cell fully inside one country) but have %v", cc.Country, ci.CountryGridCell, ci.Coverage)
			}
		}
	}
}

func TestSumCoverageAreaMatchesCellAreaTimesCount(t *testing.T) {
	cc := &CountryCoverage{
		OutputSubgrid: grid.Meta{CellSizeX: 2, CellSizeY: -2},
		Cells:         []CellInfo{{Coverage: 1}, {Coverage: 0.5}},
	}
	if got, want := cc.SumCoverageArea(), 4.0*1.5; got != want {
		t.Errorf("SumCoverageArea: want %v but have %v", want, got)
	}
}
