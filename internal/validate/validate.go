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

// Package validate accumulates per-key bookkeeping across a disagg.Run
// and compares it against the reconciled inventory on finalize.
// Validator and Summary both implement disagg.Reporter so the
// pipeline reports to them the same way it reports to the collector,
// rather than through a bolted-on observer hierarchy.
package validate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/VITObelgium/emap/internal/disagg"
	"github.com/VITObelgium/emap/internal/ids"
	"github.com/VITObelgium/emap/internal/inventory"
)

// KeyDiff is one key's reconciliation result, surfaced after Finalize.
type KeyDiff struct {
	Key            ids.EmissionKey
	DiffuseInside  float64
	DiffuseOutside float64
	PointTotal     float64
	InventoryTotal float64
	Diff           float64
}

type accumulator struct {
	diffuseInside  float64
	diffuseOutside float64
	pointTotal     float64
}

// Validator implements an "accumulate per-key: diffuse
// inside grid, diffuse outside grid, point total" and the finalize
// comparison against inventory totals.
type Validator struct {
	inv *inventory.Inventory
	tol float64

	mu  sync.Mutex
	acc map[ids.EmissionKey]*accumulator
}

// NewValidator creates a Validator that will compare against inv's
// totals at Finalize, within the given absolute tolerance.
func NewValidator(inv *inventory.Inventory, tolerance float64) *Validator {
	return &Validator{inv: inv, tol: tolerance, acc: make(map[ids.EmissionKey]*accumulator)}
}

// ReportUnit implements disagg.Reporter.
func (v *Validator) ReportUnit(u disagg.UnitReport) {
	key := ids.EmissionKey{Country: u.Country, Sector: u.Sector, Pollutant: u.Pollutant}

	v.mu.Lock()
	defer v.mu.Unlock()
	a, ok := v.acc[key]
	if !ok {
		a = &accumulator{}
		v.acc[key] = a
	}
	// What stayed inside this level's grid is whatever wasn't clipped
	// away and wasn't handed to the next level; the carried-forward part
	// reappears as a later unit's ToSpread for the same key, so summing
	// across every report for this key yields the full cascade.
	a.diffuseInside += u.ToSpread - u.ClippedOut - u.CarriedForward
	a.diffuseOutside += u.ClippedOut
	if u.PointTotal != 0 {
		a.pointTotal = u.PointTotal
	}
}

// Finalize compares every accumulated key against the inventory's
// reconciled total, and returns the sorted diffs.
func (v *Validator) Finalize() []KeyDiff {
	v.mu.Lock()
	defer v.mu.Unlock()

	var out []KeyDiff
	for key, a := range v.acc {
		var invTotal float64
		if e, ok := v.inv.Get(key); ok {
			invTotal = e.ScaledTotal()
		}
		got := a.diffuseInside + a.diffuseOutside + a.pointTotal
		out = append(out, KeyDiff{
			Key: key, DiffuseInside: a.diffuseInside, DiffuseOutside: a.diffuseOutside,
			PointTotal: a.pointTotal, InventoryTotal: invTotal, Diff: got - invTotal,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// Exceeds reports whether d's diff is outside the validator's tolerance.
func (v *Validator) Exceeds(d KeyDiff) bool {
	diff := d.Diff
	if diff < 0 {
		diff = -diff
	}
	return diff > v.tol
}

// String renders a KeyDiff as a single diagnostic line.
func (d KeyDiff) String() string {
	return fmt.Sprintf("%s: inside=%.6g outside=%.6g points=%.6g inventory=%.6g diff=%.6g",
		d.Key, d.DiffuseInside, d.DiffuseOutside, d.PointTotal, d.InventoryTotal, d.Diff)
}
