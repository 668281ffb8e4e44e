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

const secondsPerYear = 31536000.0
const gramPerYearToGramPerSecond = 1000000.0 / secondsPerYear

// brnEntry is the row shape of a BRN point-source file.
type brnEntry struct {
	xM, yM         int64
	qGS            float64
	hcMW           float64
	hM             float64
	dM             int32
	sM             float64
	dv             int32
	cat, area, sd  int32
	comp           string
	temp, flow     float64
}

// BrnWriter writes OPS/BRN-style point-source files, one per pollutant.
// It also forwards diffuse entries to a DatWriter, since the BRN format
// keeps point sources in .brn format while gridded emissions still use
// the DAT grid convention.
type BrnWriter struct {
	Dir        string
	Suffix     string
	Year       int
	SectorName func(ids.SectorId) string

	mu           sync.Mutex
	pointsByPol  map[ids.PollutantId][]brnEntry
	diffuse      *DatWriter
}

// NewBrnWriter creates a writer rooted at dir.
func NewBrnWriter(dir, suffix string, year int, sectorName func(ids.SectorId) string) *BrnWriter {
	return &BrnWriter{
		Dir: dir, Suffix: suffix, Year: year, SectorName: sectorName,
		pointsByPol: make(map[ids.PollutantId][]brnEntry),
		diffuse:     NewDatWriter(dir, suffix, sectorName),
	}
}

// AddPointOutputEntry implements output.Builder.
func (w *BrnWriter) AddPointOutputEntry(e PointEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pointsByPol[e.Key.Pollutant] = append(w.pointsByPol[e.Key.Pollutant], brnEntry{
		xM: int64(e.X), yM: int64(e.Y),
		qGS:  e.Amount * gramPerYearToGramPerSecond,
		hcMW: e.Warmth, hM: e.Height, dM: 0, sM: 0, dv: 1,
		cat: sectorCode(e.Key.Sector), area: 0, sd: 0,
		comp: e.Key.Pollutant.Code(), temp: e.Temperature, flow: e.Flow,
	})
	return nil
}

// AddDiffuseOutputEntry forwards to the embedded DAT writer: in the
// BRN layout, the output builder is only responsible for point
// sources and delegates gridded (diffuse) output to the DAT convention.
func (w *BrnWriter) AddDiffuseOutputEntry(e DiffuseEntry) error {
	return w.diffuse.AddDiffuseOutputEntry(e)
}

// FlushPollutant writes pol's accumulated point sources to
// <pol>_OPS_<year><suffix>.brn and drops them, so a later Append flush
// only writes points added since.
func (w *BrnWriter) FlushPollutant(pol ids.PollutantId, mode WriteMode) error {
	w.mu.Lock()
	entries := w.pointsByPol[pol]
	delete(w.pointsByPol, pol)
	w.mu.Unlock()

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("output: creating %s: %w", w.Dir, err)
	}
	name := fmt.Sprintf("%s_OPS_%d%s.brn", pol.Code(), w.Year, w.Suffix)
	path := filepath.Join(w.Dir, name)

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
		fmt.Fprint(f, "   ssn    x(m)    y(m)        q(g/s) hc(MW)  h(m)   d(m)  s(m) dv cat area  sd comp        temp        flow\n")
	}
	sorted := append([]brnEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].xM < sorted[j].xM || (sorted[i].xM == sorted[j].xM && sorted[i].yM < sorted[j].yM) })
	for i, e := range sorted {
		fmt.Fprintf(f, "%6d%8d%8d%14.7e%7.2f%6.1f%7d%6.1f%4d%4d%4d%4d%5s%12.3f%12.3f\n",
			i, e.xM, e.yM, e.qGS, e.hcMW, e.hM, e.dM, e.sM, e.dv, e.cat, e.area, e.sd, e.comp, e.temp, e.flow)
	}
	return w.diffuse.FlushPollutant(pol, mode)
}

// Flush implements output.Builder; the BRN convention has no per-run
// singleton beyond the per-pollutant files.
func (w *BrnWriter) Flush(mode WriteMode) error {
	return w.diffuse.Flush(mode)
}

func sectorCode(s ids.SectorId) int32 {
	// Stable small hash of the sector's string form; real deployments
	// map sectors to the legacy numeric SNAP/GNFR codes via
	// 05_model_parameters/ tables, which is out of this engine's scope.
	var h int32
	for _, r := range s.String() {
		h = h*31 + int32(r)
	}
	if h < 0 {
		h = -h
	}
	return h
}
