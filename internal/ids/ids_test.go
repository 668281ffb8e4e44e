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

package ids

import "testing"

func TestCountryIsBelgianRegion(t *testing.T) {
	cases := []struct {
		iso  string
		want bool
	}{
		{"BEF", true},
		{"BEB", true},
		{"BEW", true},
		{"NL", false},
		{"", false},
	}
	for _, c := range cases {
		got := NewCountry(c.iso, c.iso, Land).IsBelgianRegion()
		if got != c.want {
			t.Errorf("IsBelgianRegion(%q): want %v but have %v", c.iso, c.want, got)
		}
	}
}

func TestCountryIsValid(t *testing.T) {
	if (CountryId{}).IsValid() {
		t.Error("zero-value CountryId: want invalid but have valid")
	}
	if !NewCountry("NL", "Netherlands", Land).IsValid() {
		t.Error("NewCountry: want valid but have invalid")
	}
}

func TestPollutantFallback(t *testing.T) {
	p := NewPollutant("PMcoarse", "PM10")
	fb, ok := p.Fallback()
	if !ok {
		t.Fatal("Fallback: want ok but have not-ok")
	}
	if fb.Code() != "PM10" {
		t.Errorf("Fallback code: want PM10 but have %s", fb.Code())
	}

	noFallback := NewPollutant("NOx", "")
	if _, ok := noFallback.Fallback(); ok {
		t.Error("Fallback: want no fallback but have one")
	}
}

func TestSectorGnfrRollup(t *testing.T) {
	gnfr := NewGnfr("B_Industry", DestLand)
	nfr := NewNfr("1A2a", DestLand)
	RegisterNfr(nfr, gnfr)

	s := NfrSector(nfr)
	if got := s.Gnfr(); got.Code() != gnfr.Code() {
		t.Errorf("Gnfr: want %s but have %s", gnfr.Code(), got.Code())
	}

	gs := GnfrSector(gnfr)
	if got := gs.Gnfr(); got.Code() != gnfr.Code() {
		t.Errorf("Gnfr on a GnfrSector: want %s but have %s", gnfr.Code(), got.Code())
	}

	if _, ok := s.IsNfr(); !ok {
		t.Error("IsNfr on an NfrSector: want ok but have not-ok")
	}
	if _, ok := s.IsGnfr(); ok {
		t.Error("IsGnfr on an NfrSector: want not-ok but have ok")
	}
}

func TestParentGnfrPanicsOnUnregistered(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ParentGnfr on unregistered sector: want panic but have none")
		}
	}()
	ParentGnfr(NewNfr("unregistered-sector", DestLand))
}

func TestEmissionKeyLess(t *testing.T) {
	be := NewCountry("BE", "Belgium", Land)
	nl := NewCountry("NL", "Netherlands", Land)
	pol := NewPollutant("NOx", "")

	a := EmissionKey{Country: be, Pollutant: pol}
	b := EmissionKey{Country: nl, Pollutant: pol}
	if !a.Less(b) {
		t.Error("EmissionKey.Less: BE want less than NL")
	}
	if b.Less(a) {
		t.Error("EmissionKey.Less: NL want not less than BE")
	}
	if a.Less(a) {
		t.Error("EmissionKey.Less: a key should not be less than itself")
	}
}

func TestEmissionKeyString(t *testing.T) {
	be := NewCountry("BE", "Belgium", Land)
	pol := NewPollutant("NOx", "")
	nfr := NewNfr("1A2a", DestLand)
	k := EmissionKey{Country: be, Sector: NfrSector(nfr), Pollutant: pol}
	want := "BE/1A2a/NOx"
	if got := k.String(); got != want {
		t.Errorf("EmissionKey.String: want %q but have %q", want, got)
	}
}
