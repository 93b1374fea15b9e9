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

import "strconv"

// ReactionRateTable holds reaction rates indexed by
// (burnable material, burn nuclide, reaction). It is reset and refilled
// on every coupled step.
type ReactionRateTable struct {
	table *IndexedQuantityTable
}

// NewReactionRateTable allocates a zeroed rate table.
func NewReactionRateTable(materials []int, nuclides, reactions []string) (*ReactionRateTable, error) {
	mx, err := NewIndex(materialKeys(materials))
	if err != nil {
		return nil, err
	}
	nx, err := NewIndex(nuclides)
	if err != nil {
		return nil, err
	}
	rx, err := NewIndex(reactions)
	if err != nil {
		return nil, err
	}
	return &ReactionRateTable{table: NewIndexedQuantityTable(mx, nx, rx)}, nil
}

// NumMaterials returns the number of burnable materials in the table.
func (r *ReactionRateTable) NumMaterials() int { return r.table.Dims(0).Len() }

// NumNuclides returns the number of burn nuclides in the table.
func (r *ReactionRateTable) NumNuclides() int { return r.table.Dims(1).Len() }

// NumReactions returns the number of reactions in the table.
func (r *ReactionRateTable) NumReactions() int { return r.table.Dims(2).Len() }

// Materials returns the material IDs in table order.
func (r *ReactionRateTable) Materials() []int {
	keys := r.table.Dims(0).Keys()
	o := make([]int, len(keys))
	for i, k := range keys {
		o[i], _ = strconv.Atoi(k)
	}
	return o
}

// Nuclides returns the nuclide names in table order.
func (r *ReactionRateTable) Nuclides() []string { return r.table.Dims(1).Keys() }

// Reactions returns the reaction names in table order.
func (r *ReactionRateTable) Reactions() []string { return r.table.Dims(2).Keys() }

// MaterialIndex returns the table position of material id.
func (r *ReactionRateTable) MaterialIndex(id int) (int, bool) {
	return r.table.Dims(0).Pos(materialKey(id))
}

// NuclideIndex returns the table position of nuclide name.
func (r *ReactionRateTable) NuclideIndex(name string) (int, bool) {
	return r.table.Dims(1).Pos(name)
}

// ReactionIndex returns the table position of reaction name.
func (r *ReactionRateTable) ReactionIndex(name string) (int, bool) {
	return r.table.Dims(2).Pos(name)
}

// Get returns the rate of reaction rxn for nuclide nuc in material mat.
// It panics if any key is unknown.
func (r *ReactionRateTable) Get(mat int, nuc, rxn string) float64 {
	return r.table.Get(materialKey(mat), nuc, rxn)
}

// Set stores a rate. It panics if any key is unknown.
func (r *ReactionRateTable) Set(v float64, mat int, nuc, rxn string) {
	r.table.Set(v, materialKey(mat), nuc, rxn)
}

// At returns the rate at table position (i, j, k).
func (r *ReactionRateTable) At(i, j, k int) float64 { return r.table.At(i, j, k) }

// SetAt stores a rate at table position (i, j, k).
func (r *ReactionRateTable) SetAt(v float64, i, j, k int) { r.table.SetAt(v, i, j, k) }

// Material returns the rates of material position i, nuclide-major and
// reaction-minor. The slice shares memory with the table.
func (r *ReactionRateTable) Material(i int) []float64 { return r.table.Block(i) }

// Zero resets every rate to 0.
func (r *ReactionRateTable) Zero() { r.table.Zero() }

// Scale multiplies every rate by f.
func (r *ReactionRateTable) Scale(f float64) { r.table.Scale(f) }

// Copy returns a deep copy of the table.
func (r *ReactionRateTable) Copy() *ReactionRateTable {
	return &ReactionRateTable{table: r.table.Copy()}
}
