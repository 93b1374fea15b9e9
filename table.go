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
	"strconv"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Index maps semantic keys (material IDs, nuclide names, reaction names)
// to dense positions. An Index is built once and never changes size.
type Index struct {
	keys []string
	pos  map[string]int
}

// NewIndex creates an index holding keys in the given order.
func NewIndex(keys []string) (*Index, error) {
	x := &Index{
		keys: make([]string, len(keys)),
		pos:  make(map[string]int, len(keys)),
	}
	for i, k := range keys {
		if _, ok := x.pos[k]; ok {
			return nil, fmt.Errorf("depcouple: duplicate index key %q", k)
		}
		x.keys[i] = k
		x.pos[k] = i
	}
	return x, nil
}

// Pos returns the dense position of key.
func (x *Index) Pos(key string) (int, bool) {
	i, ok := x.pos[key]
	return i, ok
}

// Key returns the key at position i.
func (x *Index) Key(i int) string { return x.keys[i] }

// Len returns the number of keys.
func (x *Index) Len() int { return len(x.keys) }

// Keys returns a copy of the keys in index order.
func (x *Index) Keys() []string {
	o := make([]string, len(x.keys))
	copy(o, x.keys)
	return o
}

// materialKey is the index key of a material ID.
func materialKey(id int) string { return strconv.Itoa(id) }

func materialKeys(ids []int) []string {
	o := make([]string, len(ids))
	for i, id := range ids {
		o[i] = materialKey(id)
	}
	return o
}

// IndexedQuantityTable is a dense array whose dimensions are each
// addressed by an Index. It is used with two dimensions (material,
// nuclide) for number densities and three dimensions (material,
// nuclide, reaction) for reaction rates.
type IndexedQuantityTable struct {
	index []*Index
	data  *sparse.DenseArray
}

// NewIndexedQuantityTable allocates a zeroed table with one dimension per
// index. Two or three dimensions are supported.
func NewIndexedQuantityTable(index ...*Index) *IndexedQuantityTable {
	if len(index) != 2 && len(index) != 3 {
		panic(fmt.Errorf("depcouple: a table needs 2 or 3 dimensions, not %d", len(index)))
	}
	shape := make([]int, len(index))
	for i, x := range index {
		shape[i] = x.Len()
	}
	return &IndexedQuantityTable{
		index: index,
		data:  sparse.ZerosDense(shape...),
	}
}

// Dims returns the index of dimension d.
func (t *IndexedQuantityTable) Dims(d int) *Index { return t.index[d] }

// Shape returns the size of each dimension.
func (t *IndexedQuantityTable) Shape() []int {
	s := make([]int, len(t.index))
	for i, x := range t.index {
		s[i] = x.Len()
	}
	return s
}

// Locate converts keys into dense positions. It returns false if any key
// is not in its dimension's index.
func (t *IndexedQuantityTable) Locate(keys ...string) ([]int, bool) {
	if len(keys) != len(t.index) {
		return nil, false
	}
	pos := make([]int, len(keys))
	for d, k := range keys {
		i, ok := t.index[d].Pos(k)
		if !ok {
			return nil, false
		}
		pos[d] = i
	}
	return pos, true
}

func (t *IndexedQuantityTable) mustLocate(keys ...string) []int {
	pos, ok := t.Locate(keys...)
	if !ok {
		panic(fmt.Errorf("depcouple: no table entry for %v", keys))
	}
	return pos
}

// Get returns the value stored under keys. It panics if a key is unknown.
func (t *IndexedQuantityTable) Get(keys ...string) float64 {
	return t.At(t.mustLocate(keys...)...)
}

// Set stores v under keys. It panics if a key is unknown.
func (t *IndexedQuantityTable) Set(v float64, keys ...string) {
	t.SetAt(v, t.mustLocate(keys...)...)
}

// Add adds v to the value stored under keys. It panics if a key is
// unknown.
func (t *IndexedQuantityTable) Add(v float64, keys ...string) {
	idx := t.mustLocate(keys...)
	t.SetAt(t.At(idx...)+v, idx...)
}

// At returns the value at dense position idx.
func (t *IndexedQuantityTable) At(idx ...int) float64 {
	return t.data.Get(idx...)
}

// SetAt stores v at dense position idx, including zeros.
func (t *IndexedQuantityTable) SetAt(v float64, idx ...int) {
	if err := t.data.CheckIndex(idx); err != nil {
		panic(err)
	}
	t.data.Elements[t.data.Index1d(idx...)] = v
}

// Row returns the contiguous values along the last dimension with the
// leading positions fixed to lead. The returned slice shares memory
// with the table.
func (t *IndexedQuantityTable) Row(lead ...int) []float64 {
	if len(lead) != len(t.index)-1 {
		panic(fmt.Errorf("depcouple: row needs %d leading indices", len(t.index)-1))
	}
	idx := append(append([]int{}, lead...), 0)
	start := t.data.Index1d(idx...)
	n := t.index[len(t.index)-1].Len()
	return t.data.Elements[start : start+n]
}

// Block returns the contiguous values with the first dimension fixed to i.
// The returned slice shares memory with the table.
func (t *IndexedQuantityTable) Block(i int) []float64 {
	n := len(t.data.Elements)
	if t.index[0].Len() == 0 {
		return t.data.Elements[:0]
	}
	size := n / t.index[0].Len()
	return t.data.Elements[i*size : (i+1)*size]
}

// Zero sets every value to 0.
func (t *IndexedQuantityTable) Zero() {
	for i := range t.data.Elements {
		t.data.Elements[i] = 0
	}
}

// Scale multiplies every value by f.
func (t *IndexedQuantityTable) Scale(f float64) {
	floats.Scale(f, t.data.Elements)
}

// Sum returns the sum of all values.
func (t *IndexedQuantityTable) Sum() float64 { return floats.Sum(t.data.Elements) }

// Copy returns a deep copy of the values. The indices are shared, as they
// are never modified.
func (t *IndexedQuantityTable) Copy() *IndexedQuantityTable {
	return &IndexedQuantityTable{
		index: t.index,
		data:  t.data.Copy(),
	}
}
