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

package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/VITObelgium/emap/internal/ids"
)

// datCellKey identifies one (country, row, col) grid cell in a DAT
// output table.
type datCellKey struct {
	Country  string
	Row, Col int
}

// DatWriter writes DAT-style gridded output: one row per (country, cell)
// with one emission column per distinct sector name seen so far, plus a
// point-source companion file written separately by Flush.
type DatWriter struct {
	Dir        string
	Suffix     string
	SectorName func(ids.SectorId) string

	mu          sync.Mutex
	sectorOrder []string
	sectorIndex map[string]int
	cells       map[ids.PollutantId]map[datCellKey][]float64
	points      map[ids.PollutantId][]datPoint
	cellSize    float64
}

type datPoint struct {
	x, y, temp, velocity, height, diameter float64
	country                                string
	sectorIdx                              int
}

// NewDatWriter creates a writer rooted at dir.
func NewDatWriter(dir, suffix string, sectorName func(ids.SectorId) string) *DatWriter {
	return &DatWriter{
		Dir: dir, Suffix: suffix, SectorName: sectorName,
		sectorIndex: make(map[string]int),
		cells:       make(map[ids.PollutantId]map[datCellKey][]float64),
		points:      make(map[ids.PollutantId][]datPoint),
	}
}

func (w *DatWriter) sectorCol(name string) int {
	if i, ok := w.sectorIndex[name]; ok {
		return i
	}
	i := len(w.sectorOrder)
	w.sectorOrder = append(w.sectorOrder, name)
	w.sectorIndex[name] = i
	return i
}

// AddPointOutputEntry implements output.Builder.
func (w *DatWriter) AddPointOutputEntry(e PointEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.sectorCol(w.sectorNameOf(e.Key.Sector))
	w.points[e.Key.Pollutant] = append(w.points[e.Key.Pollutant], datPoint{
		x: e.X, y: e.Y, temp: e.Temperature, velocity: e.Flow,
		height: e.Height, diameter: e.Diameter,
		country: e.Key.Country.ISO(), sectorIdx: idx,
	})
	return nil
}

// AddDiffuseOutputEntry implements output.Builder. Emissions for the
// same output-sector-name are summed cell-wise, accumulating in place
// rather than overwriting.
func (w *DatWriter) AddDiffuseOutputEntry(e DiffuseEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.sectorCol(e.SectorName)
	key := datCellKey{Country: e.Country.ISO(), Row: e.Row, Col: e.Col}
	byCell, ok := w.cells[e.Pollutant]
	if !ok {
		byCell = make(map[datCellKey][]float64)
		w.cells[e.Pollutant] = byCell
	}
	row, ok := byCell[key]
	if !ok {
		row = make([]float64, len(w.sectorOrder))
	}
	for len(row) <= idx {
		row = append(row, 0)
	}
	if !isNaN(e.Amount) {
		row[idx] += e.Amount
	}
	byCell[key] = row
	w.cellSize = e.CellSizeMeters
	return nil
}

func isNaN(f float64) bool { return f != f }

func (w *DatWriter) sectorNameOf(s ids.SectorId) string {
	if w.SectorName != nil {
		return w.SectorName(s)
	}
	return s.String()
}

// FlushPollutant writes <pollutant><suffix>.dat for pol: one header row
// of sector names followed by one row per (country, cell).
func (w *DatWriter) FlushPollutant(pol ids.PollutantId, mode WriteMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("output: creating %s: %w", w.Dir, err)
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("%s%s.dat", pol.Code(), w.Suffix))

	flags := os.O_WRONLY | os.O_CREATE
	if mode == Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("output: opening %s: %w", path, err)
	}
	defer f.Close()

	if mode == Create {
		fmt.Fprintf(f, "country row col %s\n", joinStrings(w.sectorOrder, " "))
	}

	var keys []datCellKey
	for k := range w.cells[pol] {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Country != keys[j].Country {
			return keys[i].Country < keys[j].Country
		}
		if keys[i].Row != keys[j].Row {
			return keys[i].Row < keys[j].Row
		}
		return keys[i].Col < keys[j].Col
	})
	for _, k := range keys {
		row := w.cells[pol][k]
		fmt.Fprintf(f, "%4s%5d%5d", k.Country, k.Row, k.Col)
		for _, v := range row {
			if isNaN(v) {
				v = 0
			}
			fmt.Fprintf(f, " %10.3e", v)
		}
		fmt.Fprint(f, "\n")
	}
	delete(w.cells, pol)
	return nil
}

// Flush writes the point-source companion file, one row per point
// source accumulated so far.
func (w *DatWriter) Flush(mode WriteMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("output: creating %s: %w", w.Dir, err)
	}
	for pol, pts := range w.points {
		path := filepath.Join(w.Dir, fmt.Sprintf("%s%s_points.dat", pol.Code(), w.Suffix))
		flags := os.O_WRONLY | os.O_CREATE
		if mode == Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return fmt.Errorf("output: opening %s: %w", path, err)
		}
		for i, p := range pts {
			fmt.Fprintf(f, "%6d%12.2f%12.2f%4s%4d%8.2f%8.2f%8.2f%8.2f\n",
				i, p.x, p.y, p.country, p.sectorIdx, p.temp, p.velocity, p.height, p.diameter)
		}
		f.Close()
	}
	return nil
}

func joinStrings(ss []string, sep string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}
