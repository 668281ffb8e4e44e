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

// Package geodata is the concrete vector-data adapter left as an
// injected collaborator: a coverage.VectorSource backed by an ESRI
// shapefile of country borders,
// read with github.com/jonas-p/go-shp. Raster resampling has no such
// adapter here: no library in the retrieved corpus wraps GDAL or an
// equivalent raster I/O stack, so pattern.RasterSource stays an
// interface the run controller must supply (DESIGN.md).
package geodata

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/geom"
	shp "github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"

	"github.com/VITObelgium/emap/internal/coverage"
	"github.com/VITObelgium/emap/internal/emaperr"
	"github.com/VITObelgium/emap/internal/ids"
)

// reprojectEnvVar, when set to a non-empty value, allows ShapefileSource
// to serve a shapefile whose projection string doesn't match the
// requested target, logging a warning instead of failing. Actual
// coordinate transformation is out of this engine's scope (no CRS
// library is available); the switch only relaxes the
// projection-match check.
const reprojectEnvVar = "EMAP_ALLOW_UNVERIFIED_PROJECTION"

// ShapefileSource reads country borders from a single ESRI shapefile,
// one feature per country, with Projection naming the CRS the shapefile
// coordinates are already in (e-map does no on-the-fly reprojection).
type ShapefileSource struct {
	Path       string
	Projection string
	// CountryOf maps a raw attribute value (the idField column) to a
	// CountryId; features with no match are skipped.
	CountryOf func(attr string) (ids.CountryId, bool)
}

// Countries implements coverage.VectorSource.
func (s *ShapefileSource) Countries(targetProjection, idField string) ([]coverage.CountryGeometry, error) {
	if targetProjection != "" && s.Projection != "" && !strings.EqualFold(targetProjection, s.Projection) {
		if os.Getenv(reprojectEnvVar) == "" {
			return nil, fmt.Errorf("geodata: shapefile %s is in projection %q, want %q (set %s to bypass this check): %w",
				s.Path, s.Projection, targetProjection, reprojectEnvVar, emaperr.ErrConfig)
		}
		logrus.Warnf("geodata: shapefile %s is in projection %q, not %q; serving it unchanged because %s is set",
			s.Path, s.Projection, targetProjection, reprojectEnvVar)
	}

	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("geodata: opening %s: %w", s.Path, emaperr.ErrIO)
	}
	defer reader.Close()

	fieldIdx := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(string(f.Name[:]), "\x00"), idField) {
			fieldIdx = i
			break
		}
	}
	if fieldIdx < 0 {
		return nil, fmt.Errorf("geodata: shapefile %s has no field %q: %w", s.Path, idField, emaperr.ErrInputData)
	}

	var out []coverage.CountryGeometry
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		attr := strings.TrimSpace(reader.ReadAttribute(n, fieldIdx))
		country, ok := s.CountryOf(attr)
		if !ok {
			continue
		}
		out = append(out, coverage.CountryGeometry{Country: country, Polygon: toGeomPolygon(poly)})
	}
	return out, nil
}

// toGeomPolygon splits a shapefile polygon's flat point list into rings
// using its Parts offsets, the ESRI shapefile format's multi-ring
// polygon encoding.
func toGeomPolygon(p *shp.Polygon) geom.Polygon {
	numParts := int(p.NumParts)
	poly := make(geom.Polygon, 0, numParts)
	for i := 0; i < numParts; i++ {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < numParts {
			end = int(p.Parts[i+1])
		}
		ring := make([]geom.Point, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, geom.Point{X: pt.X, Y: pt.Y})
		}
		poly = append(poly, ring)
	}
	return poly
}
