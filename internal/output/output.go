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

// Package output defines the narrow interface the disaggregation core
// consumes for writing results, plus a tagged-union
// dispatch ("visitor over variants") used at the collector
// boundary instead of a virtual base-class writer hierarchy. Two
// concrete encoders are provided: a BRN-style writer (grounded on
// conventions) and a DAT-style writer.
package output

import (
	"fmt"

	"github.com/VITObelgium/emap/internal/ids"
)

// WriteMode tells a Builder whether a flush starts a fresh output file
// or appends to one already opened by a previous (coarser) grid level.
type WriteMode int

const (
	Create WriteMode = iota
	Append
)

// PointEntry is a single point-source row ready to write, carrying the
// fields both writers need.
type PointEntry struct {
	Key        ids.EmissionKey
	X, Y       float64
	Amount     float64
	Height     float64
	Diameter   float64
	Warmth     float64
	Flow       float64
	Temperature float64
}

// DiffuseEntry is a single gridded diffuse-emission row. SectorName is
// the already-resolved output-sector-name (NFR code, or a coarser
// user-defined name when the output sector level is coarser than NFR,
// computed once by the collector so writers never need a
// Sector-to-name mapping of their own.
type DiffuseEntry struct {
	Country        ids.CountryId
	Pollutant      ids.PollutantId
	SectorName     string
	Row, Col       int
	Amount         float64
	CellSizeMeters float64
}

// Kind tags which concrete entry an Event carries, replacing a
// virtual-dispatch writer hierarchy with a closed tagged union that a
// Builder implementation switches on.
type Kind int

const (
	KindPoint Kind = iota
	KindDiffuse
)

// Event is the tagged union submitted to a Builder.
type Event struct {
	Kind     Kind
	Point    *PointEntry
	Diffuse  *DiffuseEntry
}

// Builder is the output collaborator interface the disaggregation
// core requires. Implementations must make flush idempotent given
// identical input order and content.
type Builder interface {
	AddPointOutputEntry(e PointEntry) error
	AddDiffuseOutputEntry(e DiffuseEntry) error
	FlushPollutant(pollutant ids.PollutantId, mode WriteMode) error
	Flush(mode WriteMode) error
}

// Dispatch sends ev to the matching Builder method, a "visitor over
// variants" in place of a type switch at the writer boundary.
func Dispatch(b Builder, ev Event) error {
	switch ev.Kind {
	case KindPoint:
		if ev.Point == nil {
			return fmt.Errorf("output: KindPoint event missing Point payload")
		}
		return b.AddPointOutputEntry(*ev.Point)
	case KindDiffuse:
		if ev.Diffuse == nil {
			return fmt.Errorf("output: KindDiffuse event missing Diffuse payload")
		}
		return b.AddDiffuseOutputEntry(*ev.Diffuse)
	default:
		return fmt.Errorf("output: unknown event kind %d", ev.Kind)
	}
}
