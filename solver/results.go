/*
Copyright © 2018 the depcouple authors.
This file is part of depcouple.

depcouple is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

depcouple is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with depcouple.  If not, see <http://www.gnu.org/licenses/>.
*/

package solver

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// ResultsFile is the name of the tally results file in the run directory.
const ResultsFile = "tallies.nc"

// Results holds the outcome of one solve: the eigenvalue and, for each
// material filter bin, the tallied reaction rates ordered nuclide-major
// and reaction-minor.
type Results struct {
	Keff      float64
	Materials []int
	Nuclides  []string
	Reactions []string

	// Data has shape (len(Materials), len(Nuclides)*len(Reactions)).
	Data *sparse.DenseArray
}

// NewResults allocates zeroed results.
func NewResults(keff float64, materials []int, nuclides, reactions []string) *Results {
	return &Results{
		Keff:      keff,
		Materials: materials,
		Nuclides:  nuclides,
		Reactions: reactions,
		Data:      sparse.ZerosDense(len(materials), len(nuclides)*len(reactions)),
	}
}

// Bins returns the number of (nuclide, reaction) bins per material.
func (r *Results) Bins() int { return len(r.Nuclides) * len(r.Reactions) }

// Row returns the bins of material id. The slice shares memory with r.
func (r *Results) Row(id int) ([]float64, bool) {
	for i, m := range r.Materials {
		if m == id {
			n := r.Bins()
			return r.Data.Elements[i*n : (i+1)*n], true
		}
	}
	return nil, false
}

// namesAttr joins names for storage as a text attribute. Empty lists are
// stored as a single space.
func namesAttr(names []string) string {
	if len(names) == 0 {
		return " "
	}
	return strings.Join(names, " ")
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// WriteResults saves r to a NetCDF file at path.
func WriteResults(path string, r *Results) error {
	nMat, nBin := len(r.Materials), r.Bins()
	h := cdf.NewHeader([]string{"material", "bin"}, []int{atLeastOne(nMat), atLeastOne(nBin)})
	h.AddAttribute("", "keff", []float64{r.Keff})
	h.AddAttribute("", "nuclides", namesAttr(r.Nuclides))
	h.AddAttribute("", "reactions", namesAttr(r.Reactions))
	h.AddAttribute("", "nmaterial", []int32{int32(nMat)})
	h.AddVariable("material_id", []string{"material"}, []int32{0})
	h.AddAttribute("material_id", "description", "Material filter bins")
	h.AddVariable("results", []string{"material", "bin"}, []float64{0})
	h.AddAttribute("results", "description", "Reaction rates by material, nuclide-major and reaction-minor")
	h.AddAttribute("results", "units", "reactions per source particle")
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("solver: creating results file: %v", err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("solver: creating results file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("solver: creating results file: %v", err)
	}
	if nMat == 0 {
		return nil
	}
	ids := make([]int32, nMat)
	for i, m := range r.Materials {
		ids[i] = int32(m)
	}
	w := f.Writer("material_id", []int{0}, []int{nMat})
	if _, err := w.Write(ids); err != nil {
		return fmt.Errorf("solver: writing material ids: %v", err)
	}
	if nBin == 0 {
		return nil
	}
	w = f.Writer("results", []int{0, 0}, []int{nMat, nBin})
	if _, err := w.Write(r.Data.Elements); err != nil {
		return fmt.Errorf("solver: writing results: %v", err)
	}
	return nil
}

// ReadResults loads results saved by WriteResults.
func ReadResults(path string) (*Results, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("solver: opening results: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("solver: reading results %s: %v", path, err)
	}
	keff, ok := f.Header.GetAttribute("", "keff").([]float64)
	if !ok || len(keff) != 1 {
		return nil, fmt.Errorf("solver: results %s have no eigenvalue", path)
	}
	nucs, _ := f.Header.GetAttribute("", "nuclides").(string)
	rxns, _ := f.Header.GetAttribute("", "reactions").(string)
	nMat, ok := f.Header.GetAttribute("", "nmaterial").([]int32)
	if !ok || len(nMat) != 1 {
		return nil, fmt.Errorf("solver: results %s have no material count", path)
	}

	r := NewResults(keff[0], make([]int, nMat[0]), strings.Fields(nucs), strings.Fields(rxns))
	if nMat[0] == 0 {
		return r, nil
	}
	ids := make([]int32, nMat[0])
	if _, err := f.Reader("material_id", []int{0}, []int{len(ids)}).Read(ids); err != nil {
		return nil, fmt.Errorf("solver: reading material ids: %v", err)
	}
	for i, id := range ids {
		r.Materials[i] = int(id)
	}
	if n := r.Bins(); n > 0 {
		rr := f.Reader("results", []int{0, 0}, []int{len(ids), n})
		if _, err := rr.Read(r.Data.Elements); err != nil {
			return nil, fmt.Errorf("solver: reading results: %v", err)
		}
	}
	return r, nil
}
