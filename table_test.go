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
	"reflect"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func mustIndex(t *testing.T, keys ...string) *Index {
	t.Helper()
	x, err := NewIndex(keys)
	if err != nil {
		t.Fatal(err)
	}
	return x
}

func TestIndex(t *testing.T) {
	x := mustIndex(t, "U235", "U238", "Xe135")
	if i, ok := x.Pos("U238"); !ok || i != 1 {
		t.Errorf("Pos(U238) = %d, %v", i, ok)
	}
	if _, ok := x.Pos("Pu239"); ok {
		t.Error("Pu239 should not be indexed")
	}
	if x.Key(2) != "Xe135" || x.Len() != 3 {
		t.Errorf("Key(2) = %s, Len = %d", x.Key(2), x.Len())
	}
	keys := x.Keys()
	keys[0] = "changed"
	if x.Key(0) != "U235" {
		t.Error("Keys should return a copy")
	}
	if _, err := NewIndex([]string{"a", "b", "a"}); err == nil {
		t.Error("duplicate keys should be rejected")
	}
}

func TestIndexedQuantityTable(t *testing.T) {
	mats := mustIndex(t, "1", "2")
	nucs := mustIndex(t, "U235", "U238", "Xe135")
	rxns := mustIndex(t, "fission", "(n,gamma)")

	t.Run("2d", func(t *testing.T) {
		tbl := NewIndexedQuantityTable(mats, nucs)
		if !reflect.DeepEqual(tbl.Shape(), []int{2, 3}) {
			t.Fatalf("shape %v", tbl.Shape())
		}
		tbl.Set(4, "2", "U238")
		if tbl.Get("2", "U238") != 4 || tbl.At(1, 1) != 4 {
			t.Errorf("have %g", tbl.Get("2", "U238"))
		}
		tbl.Set(0, "2", "U238")
		if tbl.At(1, 1) != 0 {
			t.Error("setting zero should overwrite the value")
		}
		tbl.SetAt(1, 1, 0)
		tbl.SetAt(2, 1, 2)
		if row := tbl.Row(1); !floats.Equal(row, []float64{1, 0, 2}) {
			t.Errorf("row: %v", row)
		}
		if pos, ok := tbl.Locate("1", "Xe135"); !ok || !reflect.DeepEqual(pos, []int{0, 2}) {
			t.Errorf("Locate: %v %v", pos, ok)
		}
		if _, ok := tbl.Locate("3", "Xe135"); ok {
			t.Error("material 3 should not be located")
		}
		if tbl.Sum() != 3 {
			t.Errorf("sum %g", tbl.Sum())
		}
	})

	t.Run("3d", func(t *testing.T) {
		tbl := NewIndexedQuantityTable(mats, nucs, rxns)
		tbl.Set(2, "2", "Xe135", "(n,gamma)")
		tbl.Add(3, "2", "Xe135", "(n,gamma)")
		b := tbl.Block(1)
		if len(b) != 6 || b[5] != 5 {
			t.Errorf("block: %v", b)
		}
		b[0] = 7
		if tbl.Get("2", "U235", "fission") != 7 {
			t.Error("Block should share memory with the table")
		}
		c := tbl.Copy()
		tbl.Scale(2)
		if tbl.Get("2", "U235", "fission") != 14 || c.Get("2", "U235", "fission") != 7 {
			t.Error("Copy should not share memory with the table")
		}
		tbl.Zero()
		if tbl.Sum() != 0 {
			t.Error("Zero")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected a panic")
			}
		}()
		NewIndexedQuantityTable(mats, nucs).Get("1", "Pu239")
	})

	t.Run("dimensions", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected a panic")
			}
		}()
		NewIndexedQuantityTable(mats)
	})
}
