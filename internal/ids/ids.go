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

// Package ids defines the small, value-equal, hashable identifier types
// shared across the disaggregation pipeline: countries, pollutants and
// sectors, and the EmissionKey that ties the three together.
package ids

import "fmt"

// LandOrSea tags whether a country handle represents a land territory or
// an exclusive economic zone / sea area.
type LandOrSea int

const (
	Land LandOrSea = iota
	Sea
)

func (l LandOrSea) String() string {
	if l == Sea {
		return "sea"
	}
	return "land"
}

// CountryId is a small value-equal, hashable handle for a country or sea
// area. The zero value is not a valid country.
type CountryId struct {
	iso  string
	name string
	kind LandOrSea
}

// NewCountry creates a country handle. iso is the canonical ISO code used
// as the map key; name is a display name.
func NewCountry(iso, name string, kind LandOrSea) CountryId {
	return CountryId{iso: iso, name: name, kind: kind}
}

func (c CountryId) ISO() string        { return c.iso }
func (c CountryId) Name() string       { return c.name }
func (c CountryId) Kind() LandOrSea    { return c.kind }
func (c CountryId) IsValid() bool      { return c.iso != "" }
func (c CountryId) String() string     { return c.iso }

// IsBelgianRegion reports whether this country handle is one of the three
// Belgian regions, which are subject to the stricter point/total balance
// invariant.
func (c CountryId) IsBelgianRegion() bool {
	switch c.iso {
	case "BEF", "BEB", "BEW":
		return true
	}
	return false
}

// PollutantId is an opaque pollutant code with an optional fallback
// pollutant used when no spatial pattern is available for it.
type PollutantId struct {
	code     string
	fallback string
}

// NewPollutant creates a pollutant handle. fallback may be empty.
func NewPollutant(code, fallback string) PollutantId {
	return PollutantId{code: code, fallback: fallback}
}

func (p PollutantId) Code() string    { return p.code }
func (p PollutantId) String() string  { return p.code }
func (p PollutantId) IsValid() bool   { return p.code != "" }

// Fallback returns the fallback pollutant and true if one is configured.
func (p PollutantId) Fallback() (PollutantId, bool) {
	if p.fallback == "" {
		return PollutantId{}, false
	}
	return PollutantId{code: p.fallback}, true
}

// Destination classifies where a sector's emissions end up geographically.
type Destination int

const (
	DestLand Destination = iota
	DestSea
	DestEez
)

func (d Destination) String() string {
	switch d {
	case DestSea:
		return "sea"
	case DestEez:
		return "eez"
	default:
		return "land"
	}
}

// GnfrId identifies a GNFR (Grouped Nomenclature For Reporting) sector.
type GnfrId struct {
	code string
	dest Destination
}

func NewGnfr(code string, dest Destination) GnfrId { return GnfrId{code: code, dest: dest} }
func (g GnfrId) Code() string                       { return g.code }
func (g GnfrId) String() string                     { return g.code }
func (g GnfrId) Destination() Destination           { return g.dest }

// NfrId identifies an NFR (Nomenclature For Reporting) sector. Every NFR
// belongs to exactly one GNFR, recorded in the package-level parent table
// (see RegisterNfr / ParentGnfr) rather than through inheritance.
type NfrId struct {
	code string
	dest Destination
}

func NewNfr(code string, dest Destination) NfrId { return NfrId{code: code, dest: dest} }
func (n NfrId) Code() string                      { return n.code }
func (n NfrId) String() string                    { return n.code }
func (n NfrId) Destination() Destination          { return n.dest }

var nfrParent = map[string]GnfrId{}

// RegisterNfr records the GNFR parent of an NFR sector. Called while
// building the sector/pollutant/country id tables from
// 05_model_parameters/ at startup.
func RegisterNfr(n NfrId, parent GnfrId) {
	nfrParent[n.code] = parent
}

// ParentGnfr returns the GNFR that n rolls up to. Panics if n was never
// registered, which indicates a bug in the model-parameter tables rather
// than a recoverable runtime condition.
func ParentGnfr(n NfrId) GnfrId {
	g, ok := nfrParent[n.code]
	if !ok {
		panic(fmt.Sprintf("ids: NFR sector %q has no registered GNFR parent", n.code))
	}
	return g
}

// Sector is the tagged-union replacement for an NFR/GNFR class hierarchy:
// a SectorId is either an NfrSector or a GnfrSector.
type Sector interface {
	isSector()
	fmt.Stringer
	Destination() Destination
}

// sectorKind discriminates which variant a SectorId wraps. SectorId holds
// both variants by value (not by pointer) precisely so it stays a plain
// comparable struct: EmissionKey embeds it and is used as a map key
// throughout the inventory and pattern packages, and pointer fields would
// make two independently-constructed but logically-equal sectors compare
// unequal.
type sectorKind int

const (
	sectorNone sectorKind = iota
	sectorNfr
	sectorGnfr
)

// SectorId wraps exactly one of NfrId or GnfrId.
type SectorId struct {
	kind sectorKind
	nfr  NfrId
	gnfr GnfrId
}

func NfrSector(n NfrId) SectorId   { return SectorId{kind: sectorNfr, nfr: n} }
func GnfrSector(g GnfrId) SectorId { return SectorId{kind: sectorGnfr, gnfr: g} }

func (s SectorId) isSector() {}

func (s SectorId) String() string {
	switch s.kind {
	case sectorNfr:
		return s.nfr.String()
	case sectorGnfr:
		return s.gnfr.String()
	default:
		return "<invalid sector>"
	}
}

func (s SectorId) Destination() Destination {
	switch s.kind {
	case sectorNfr:
		return s.nfr.Destination()
	case sectorGnfr:
		return s.gnfr.Destination()
	default:
		return DestLand
	}
}

// IsNfr reports whether s wraps an NFR sector and returns it.
func (s SectorId) IsNfr() (NfrId, bool) {
	if s.kind != sectorNfr {
		return NfrId{}, false
	}
	return s.nfr, true
}

// IsGnfr reports whether s wraps a GNFR sector and returns it.
func (s SectorId) IsGnfr() (GnfrId, bool) {
	if s.kind != sectorGnfr {
		return GnfrId{}, false
	}
	return s.gnfr, true
}

// Gnfr returns the GNFR that s belongs to, resolving through the parent
// table when s is an NFR.
func (s SectorId) Gnfr() GnfrId {
	if g, ok := s.IsGnfr(); ok {
		return g
	}
	n, _ := s.IsNfr()
	return ParentGnfr(n)
}

// EmissionKey uniquely identifies an emission record by country, sector
// and pollutant. It is comparable (usable as a map key).
type EmissionKey struct {
	Country   CountryId
	Sector    SectorId
	Pollutant PollutantId
}

func (k EmissionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Country, k.Sector, k.Pollutant)
}

// Less provides a total order over keys so collections can be kept sorted
// for O(log n) lookup.
func (k EmissionKey) Less(o EmissionKey) bool {
	if k.Country.iso != o.Country.iso {
		return k.Country.iso < o.Country.iso
	}
	if ks, os := k.Sector.String(), o.Sector.String(); ks != os {
		return ks < os
	}
	return k.Pollutant.code < o.Pollutant.code
}
