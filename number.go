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

package depcouple

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// NegativeDensityThreshold is the density in atoms/(b·cm) at or below
// which a negative value is reported when it is clamped. Values between
// it and zero are integrator noise and are clamped silently.
const NegativeDensityThreshold = -1.0e-21

// AtomDensityStore holds the number densities, in atoms/(b·cm), of every
// nuclide in every material resident on one worker. Burnable materials
// occupy positions [0, NumBurnMaterials) and the first NumBurnNuclides
// nuclides form the burn slice exchanged with the time integrator.
type AtomDensityStore struct {
	table     *IndexedQuantityTable
	materials []int
	volume    []float64
	nMatBurn  int
	nNucBurn  int
}

// NewAtomDensityStore creates a store for the burnable materials burn and
// non-burnable materials notBurn, in that order. nuclides is the store
// nuclide order, of which the first nNucBurn are burn nuclides. volume
// must hold the volume of every burnable material.
func NewAtomDensityStore(burn, notBurn []int, nuclides []string, nNucBurn int, volume map[int]float64) (*AtomDensityStore, error) {
	if nNucBurn > len(nuclides) {
		return nil, fmt.Errorf("depcouple: %d burn nuclides requested but only %d nuclides are present", nNucBurn, len(nuclides))
	}
	mats := append(append([]int{}, burn...), notBurn...)
	mx, err := NewIndex(materialKeys(mats))
	if err != nil {
		return nil, err
	}
	nx, err := NewIndex(nuclides)
	if err != nil {
		return nil, err
	}
	s := &AtomDensityStore{
		table:     NewIndexedQuantityTable(mx, nx),
		materials: mats,
		volume:    make([]float64, len(burn)),
		nMatBurn:  len(burn),
		nNucBurn:  nNucBurn,
	}
	var missing []int
	for i, id := range burn {
		v, ok := volume[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		s.volume[i] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("depcouple: need volumes for materials: %v", missing)
	}
	return s, nil
}

// NumMaterials returns the number of materials in the store.
func (s *AtomDensityStore) NumMaterials() int { return len(s.materials) }

// NumBurnMaterials returns the number of burnable materials in the store.
func (s *AtomDensityStore) NumBurnMaterials() int { return s.nMatBurn }

// NumNuclides returns the number of nuclides in the store.
func (s *AtomDensityStore) NumNuclides() int { return s.table.Dims(1).Len() }

// NumBurnNuclides returns the length of a burn slice.
func (s *AtomDensityStore) NumBurnNuclides() int { return s.nNucBurn }

// MaterialIDs returns the IDs of all resident materials, burnable first.
func (s *AtomDensityStore) MaterialIDs() []int { return append([]int{}, s.materials...) }

// BurnMaterialIDs returns the IDs of the resident burnable materials.
func (s *AtomDensityStore) BurnMaterialIDs() []int {
	return append([]int{}, s.materials[:s.nMatBurn]...)
}

// NuclideNames returns every nuclide in store order.
func (s *AtomDensityStore) NuclideNames() []string { return s.table.Dims(1).Keys() }

// BurnNuclideNames returns the nuclides of a burn slice, in slice order.
func (s *AtomDensityStore) BurnNuclideNames() []string {
	return s.table.Dims(1).Keys()[:s.nNucBurn]
}

// HasMaterial reports whether material id is resident in the store.
func (s *AtomDensityStore) HasMaterial(id int) bool {
	_, ok := s.table.Dims(0).Pos(materialKey(id))
	return ok
}

// Volume returns the volume of burnable material i in cm³.
func (s *AtomDensityStore) Volume(i int) float64 { return s.volume[i] }

// SetDensity sets the density of nuclide nuc in material mat.
// It panics if either is not in the store.
func (s *AtomDensityStore) SetDensity(mat int, nuc string, v float64) {
	s.table.Set(v, materialKey(mat), nuc)
}

// GetDensity returns the density of nuclide nuc in material mat.
// It panics if either is not in the store.
func (s *AtomDensityStore) GetDensity(mat int, nuc string) float64 {
	return s.table.Get(materialKey(mat), nuc)
}

// GetBurnSlice returns a copy of the burn nuclide densities of burnable
// material i.
func (s *AtomDensityStore) GetBurnSlice(i int) []float64 {
	if i < 0 || i >= s.nMatBurn {
		panic(fmt.Errorf("depcouple: burn material index %d out of range [0, %d)", i, s.nMatBurn))
	}
	return append([]float64{}, s.table.Row(i)[:s.nNucBurn]...)
}

// SetBurnSlice overwrites the burn nuclide densities of burnable
// material i with v.
func (s *AtomDensityStore) SetBurnSlice(i int, v []float64) {
	if i < 0 || i >= s.nMatBurn {
		panic(fmt.Errorf("depcouple: burn material index %d out of range [0, %d)", i, s.nMatBurn))
	}
	if len(v) != s.nNucBurn {
		panic(fmt.Errorf("depcouple: burn slice has length %d; want %d", len(v), s.nNucBurn))
	}
	copy(s.table.Row(i)[:s.nNucBurn], v)
}

// MaterialTotal returns the sum of the densities of nuclide nuc over all
// resident materials.
func (s *AtomDensityStore) MaterialTotal(nuc string) float64 {
	j, ok := s.table.Dims(1).Pos(nuc)
	if !ok {
		return 0
	}
	var sum float64
	for i := range s.materials {
		sum += s.table.At(i, j)
	}
	return sum
}

// Clamp sets the density of nuclide nuc in material mat to zero if it is
// not positive, warning if it is at or below NegativeDensityThreshold.
// It reports whether a warning was issued.
func (s *AtomDensityStore) Clamp(mat int, nuc string, log logrus.FieldLogger) bool {
	pos := s.table.mustLocate(materialKey(mat), nuc)
	v := s.table.At(pos...)
	if v > 0 {
		return false
	}
	s.table.SetAt(0, pos...)
	return warnNegative(log, mat, nuc, v)
}

// ClampNegative clamps every density in the store, as Clamp does, and
// returns the number of warnings issued.
func (s *AtomDensityStore) ClampNegative(log logrus.FieldLogger) int {
	var n int
	nuclides := s.table.Dims(1)
	for i, mat := range s.materials {
		row := s.table.Row(i)
		for j, v := range row {
			if v > 0 {
				continue
			}
			row[j] = 0
			if warnNegative(log, mat, nuclides.Key(j), v) {
				n++
			}
		}
	}
	return n
}

func warnNegative(log logrus.FieldLogger, mat int, nuc string, v float64) bool {
	if v > NegativeDensityThreshold {
		return false
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"nuclide":  nuc,
			"material": mat,
			"density":  v,
		}).Warn("negative density clamped to zero (atoms/b-cm)")
	}
	return true
}
