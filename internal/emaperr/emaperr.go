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

// Package emaperr defines the error-kind taxonomy used across the
// pipeline: sentinel kinds wrapped with context via %w so
// callers can classify failures with errors.Is without string matching.
package emaperr

import (
	"errors"
	"strconv"
)

// Kind sentinels. Wrap one of these with fmt.Errorf("...: %w", Kind...)
// at the point an error is created.
var (
	// ErrConfig marks a fatal configuration problem: missing keys,
	// unparseable values, unknown enumerants.
	ErrConfig = errors.New("configuration error")

	// ErrInputData marks a malformed row, unknown code, or missing
	// column. Per-row occurrences are logged and skipped by the caller;
	// per-file occurrences are fatal.
	ErrInputData = errors.New("input data error")

	// ErrInvariant marks a violation of a global invariant (e.g. point
	// emissions exceeding the national total beyond tolerance, an
	// inventory key collision, an empty non-uniform raster). Always
	// fatal.
	ErrInvariant = errors.New("invariant violation")

	// ErrIO marks a missing file or permission problem. Fatal for
	// required inputs, non-fatal (caller logs a warning) for optional
	// ones.
	ErrIO = errors.New("io error")

	// ErrCancelled marks a clean user-requested abort.
	ErrCancelled = errors.New("run cancelled")
)

// PointExceedsTotal is raised at inventory-build time when a Belgian
// region's point sources exceed its national total beyond the configured
// floating-point tolerance.
type PointExceedsTotal struct {
	Key        string
	Total      float64
	PointTotal float64
}

func (e *PointExceedsTotal) Error() string {
	return "point emissions (" + ftoa(e.PointTotal) + ") exceed national total (" +
		ftoa(e.Total) + ") for " + e.Key
}

func (e *PointExceedsTotal) Unwrap() error { return ErrInvariant }

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
