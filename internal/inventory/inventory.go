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

// Package inventory builds a reconciled emission inventory from
// heterogeneous totals: NFR totals, independently reported GNFR totals,
// and point-source inventories. The resulting Inventory is built once
// and is read-only thereafter.
//
// Amounts are carried as github.com/ctessum/unit quantities (MassPerYear),
// but reconciliation works on their bare Value() floats: the dimensions
// of the inputs are not compared, so a unit mismatch between inputs is
// not detected here.
package inventory

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/unit"
	"github.com/sirupsen/logrus"

	"github.com/VITObelgium/emap/internal/emaperr"
	"github.com/VITObelgium/emap/internal/ids"
)

// MassPerYear is the dimensional signature of every amount in this
// package: mass / time.
var MassPerYear = unit.Dimensions{unit.MassDim: 1, unit.TimeDim: -1}

// Tolerance is the absolute floating-point tolerance used throughout the
// reconciliation invariants.
const Tolerance = 1e-6

// Coordinate is a point source's projected-coordinate location.
type Coordinate struct{ X, Y float64 }

// StackParams describes a point source's stack, when known.
type StackParams struct {
	Height, Diameter, Warmth, Flow, Temperature float64
}

// EmissionEntry is a single reported emission row. Coordinate != nil
// marks it as a point source.
type EmissionEntry struct {
	Key        ids.EmissionKey
	Amount     *unit.Unit // mass/year; may be nil if unreported
	Coordinate *Coordinate
	Stack      *StackParams
}

// IsPoint reports whether this entry is a point source.
func (e EmissionEntry) IsPoint() bool { return e.Coordinate != nil }

// Value returns the entry's amount as a bare float64 in mass/year, or 0
// if unreported.
func (e EmissionEntry) Value() float64 {
	if e.Amount == nil {
		return 0
	}
	return e.Amount.Value()
}

// InventoryEntry is the reconciled per-key record: a diffuse amount plus
// any point entries, each independently scaled by user and
// auto-(GNFR-ratio) derived factors. Totals are always derived, never
// stored redundantly.
type InventoryEntry struct {
	Key              ids.EmissionKey
	DiffuseAmount    float64
	PointEntries     []EmissionEntry
	DiffuseScaleUser float64
	DiffuseScaleAuto float64
	PointScaleUser   float64
	PointScaleAuto   float64
}

func newEntry(key ids.EmissionKey) *InventoryEntry {
	return &InventoryEntry{
		Key: key, DiffuseScaleUser: 1, DiffuseScaleAuto: 1,
		PointScaleUser: 1, PointScaleAuto: 1,
	}
}

// ScaledDiffuse returns diffuse * diffuseScaleUser * diffuseScaleAuto.
func (e *InventoryEntry) ScaledDiffuse() float64 {
	return e.DiffuseAmount * e.DiffuseScaleUser * e.DiffuseScaleAuto
}

// PointTotal returns the unscaled sum of point entries.
func (e *InventoryEntry) PointTotal() float64 {
	var sum float64
	for _, p := range e.PointEntries {
		sum += p.Value()
	}
	return sum
}

// ScaledTotal returns scaled_total = diffuse*du*da + Σ point*pu*pa.
func (e *InventoryEntry) ScaledTotal() float64 {
	return e.ScaledDiffuse() + e.PointTotal()*e.PointScaleUser*e.PointScaleAuto
}

// Inventory owns every InventoryEntry and every point-source
// EmissionEntry by value (moved in at build time, never copied). Entries
// are kept sorted by EmissionKey so lookups are O(log n).
type Inventory struct {
	entries  []*InventoryEntry
	countries map[ids.CountryId]bool
}

// Get returns the entry for key, if any, via binary search.
func (inv *Inventory) Get(key ids.EmissionKey) (*InventoryEntry, bool) {
	i := sort.Search(len(inv.entries), func(i int) bool {
		return !inv.entries[i].Key.Less(key)
	})
	if i < len(inv.entries) && inv.entries[i].Key == key {
		return inv.entries[i], true
	}
	return nil, false
}

// HasCountry implements coverage.CountryInventory.
func (inv *Inventory) HasCountry(c ids.CountryId) bool { return inv.countries[c] }

// All returns every entry in sorted key order. Callers must not mutate
// the returned entries.
func (inv *Inventory) All() []*InventoryEntry { return inv.entries }

// RatioRecord is a diagnostic record of a GNFR-consistency scaling
// computed during Build, surfaced to the run summary.
type RatioRecord struct {
	Country   ids.CountryId
	Gnfr      ids.GnfrId
	Pollutant ids.PollutantId
	Reported  float64
	FromNfr   float64
	Ratio     float64
}

// ClampRecord is a diagnostic record of a negative total clamped to zero.
type ClampRecord struct {
	Key ids.EmissionKey
	Was float64
}

// BuildResult bundles the built Inventory together with the diagnostics
// the builder produced along the way.
type BuildResult struct {
	Inventory *Inventory
	Ratios    []RatioRecord
	Clamps    []ClampRecord
	// BEClamped records Belgian-region keys whose point total exceeded
	// the national total within tolerance and were clamped to a zero
	// diffuse remainder.
	BEClamped []ids.EmissionKey
}

// ScalingFactor is a user-supplied multiplicative override for one key,
// applied to either the diffuse or the point side.
type ScalingFactor struct {
	Key     ids.EmissionKey
	Diffuse float64 // applies only when HasDiffuse is set; 1 is a no-op
	Point   float64
	HasDiffuse, HasPoint bool
}

// Build reconciles nfrTotals, gnfrTotals and pointSources into an
// Inventory.
func Build(nfrTotals, gnfrTotals, pointSources []EmissionEntry, scalings []ScalingFactor, log *logrus.Logger) (*BuildResult, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	res := &BuildResult{}

	// Group point sources by key.
	pointsByKey := make(map[ids.EmissionKey][]EmissionEntry)
	for _, p := range pointSources {
		if !p.IsPoint() {
			return nil, fmt.Errorf("inventory: point source %s has no coordinate: %w", p.Key, emaperr.ErrInputData)
		}
		pointsByKey[p.Key] = append(pointsByKey[p.Key], p)
	}

	// Step 1: aggregate NFR -> GNFR per (country, pollutant).
	type gnfrKey struct {
		Country   ids.CountryId
		Pollutant ids.PollutantId
		Gnfr      string
	}
	gnfrFromNfr := make(map[gnfrKey]float64)
	for _, e := range nfrTotals {
		n, ok := e.Key.Sector.IsNfr()
		if !ok {
			return nil, fmt.Errorf("inventory: NFR total %s is not an NFR sector: %w", e.Key, emaperr.ErrInputData)
		}
		gk := gnfrKey{Country: e.Key.Country, Pollutant: e.Key.Pollutant, Gnfr: ids.ParentGnfr(n).Code()}
		gnfrFromNfr[gk] += e.Value()
	}

	// Step 2: ratio = reported GNFR / GNFR-from-NFR, recorded as
	// diffuseAutoScaling for every NFR in that GNFR (non-BE only).
	ratios := make(map[gnfrKey]float64)
	for _, e := range gnfrTotals {
		g, ok := e.Key.Sector.IsGnfr()
		if !ok {
			return nil, fmt.Errorf("inventory: GNFR total %s is not a GNFR sector: %w", e.Key, emaperr.ErrInputData)
		}
		gk := gnfrKey{Country: e.Key.Country, Pollutant: e.Key.Pollutant, Gnfr: g.Code()}
		fromNfr := gnfrFromNfr[gk]
		var ratio float64 = 1
		if fromNfr != 0 {
			ratio = e.Value() / fromNfr
		}
		ratios[gk] = ratio
		res.Ratios = append(res.Ratios, RatioRecord{
			Country: e.Key.Country, Gnfr: g, Pollutant: e.Key.Pollutant,
			Reported: e.Value(), FromNfr: fromNfr, Ratio: ratio,
		})
	}

	entries := make(map[ids.EmissionKey]*InventoryEntry)
	countries := make(map[ids.CountryId]bool)
	var order []ids.EmissionKey

	for _, e := range nfrTotals {
		n, _ := e.Key.Sector.IsNfr()
		total := e.Value()
		entry := newEntry(e.Key)

		if e.Key.Country.IsBelgianRegion() {
			points := pointsByKey[e.Key]
			var pointSum float64
			for _, p := range points {
				pointSum += p.Value()
			}
			diffuse := total - pointSum
			if diffuse < 0 {
				if math.Abs(diffuse) <= Tolerance {
					log.WithFields(logrus.Fields{"key": e.Key.String()}).
						Warn("inventory: Belgian point sum exceeds total within tolerance; clamping diffuse to zero")
					diffuse = 0
					res.BEClamped = append(res.BEClamped, e.Key)
				} else {
					return nil, &emaperr.PointExceedsTotal{Key: e.Key.String(), Total: total, PointTotal: pointSum}
				}
			}
			entry.DiffuseAmount = diffuse
			entry.PointEntries = points
		} else {
			if total < 0 {
				log.WithFields(logrus.Fields{"key": e.Key.String(), "value": total}).
					Warn("inventory: negative total clamped to zero")
				res.Clamps = append(res.Clamps, ClampRecord{Key: e.Key, Was: total})
				total = 0
			}
			entry.DiffuseAmount = total
			gk := gnfrKey{Country: e.Key.Country, Pollutant: e.Key.Pollutant, Gnfr: ids.ParentGnfr(n).Code()}
			if ratio, ok := ratios[gk]; ok {
				entry.DiffuseScaleAuto = ratio
			}
		}

		if _, dup := entries[e.Key]; dup {
			return nil, fmt.Errorf("inventory: duplicate key %s: %w", e.Key, emaperr.ErrInvariant)
		}
		entries[e.Key] = entry
		countries[e.Key.Country] = true
		order = append(order, e.Key)
	}

	// Step 4: user scalings, multiplicative per key.
	for _, s := range scalings {
		entry, ok := entries[s.Key]
		if !ok {
			log.WithFields(logrus.Fields{"key": s.Key.String()}).
				Warn("inventory: scaling factor for unknown key ignored")
			continue
		}
		if s.HasDiffuse {
			entry.DiffuseScaleUser *= s.Diffuse
		}
		if s.HasPoint {
			entry.PointScaleUser *= s.Point
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })
	inv := &Inventory{countries: countries}
	for _, k := range order {
		inv.entries = append(inv.entries, entries[k])
	}
	res.Inventory = inv
	return res, nil
}
