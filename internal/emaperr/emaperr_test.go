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

package emaperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPointExceedsTotalIsInvariant(t *testing.T) {
	err := &PointExceedsTotal{Key: "BEF/1A2a/NOx", Total: 10, PointTotal: 15}
	if !errors.Is(err, ErrInvariant) {
		t.Error("PointExceedsTotal: want errors.Is(err, ErrInvariant) but have false")
	}

	wrapped := fmt.Errorf("inventory: %w", err)
	if !errors.Is(wrapped, ErrInvariant) {
		t.Error("wrapped PointExceedsTotal: want errors.Is(err, ErrInvariant) but have false")
	}

	var target *PointExceedsTotal
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As: want to unwrap a *PointExceedsTotal but could not")
	}
	if target.Key != "BEF/1A2a/NOx" {
		t.Errorf("unwrapped key: want %q but have %q", "BEF/1A2a/NOx", target.Key)
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrConfig, ErrInputData, ErrInvariant, ErrIO, ErrCancelled}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}

func TestErrorMessageContainsValues(t *testing.T) {
	err := &PointExceedsTotal{Key: "BEF/1A2a/NOx", Total: 10.5, PointTotal: 15.25}
	msg := err.Error()
	if msg == "" {
		t.Fatal("Error(): want non-empty message")
	}
	for _, want := range []string{"BEF/1A2a/NOx", "10.5", "15.25"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() %q: want to contain %q", msg, want)
		}
	}
}
