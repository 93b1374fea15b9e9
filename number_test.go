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
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gonum.org/v1/gonum/floats"
)

func newTestStore(t *testing.T) *AtomDensityStore {
	t.Helper()
	s, err := NewAtomDensityStore([]int{3, 1}, []int{8}, []string{"U235", "U238", "O16"}, 2,
		map[int]float64{1: 0.5, 3: 0.7})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAtomDensityStore(t *testing.T) {
	s := newTestStore(t)
	if s.NumMaterials() != 3 || s.NumBurnMaterials() != 2 || s.NumNuclides() != 3 || s.NumBurnNuclides() != 2 {
		t.Fatalf("sizes %d %d %d %d", s.NumMaterials(), s.NumBurnMaterials(), s.NumNuclides(), s.NumBurnNuclides())
	}
	if ids := s.BurnMaterialIDs(); len(ids) != 2 || ids[0] != 3 || ids[1] != 1 {
		t.Errorf("burn materials %v", ids)
	}
	if s.Volume(0) != 0.7 || s.Volume(1) != 0.5 {
		t.Errorf("volumes %g %g", s.Volume(0), s.Volume(1))
	}
	if !s.HasMaterial(8) || s.HasMaterial(2) {
		t.Error("HasMaterial")
	}
	s.SetDensity(8, "O16", 0.04)
	if s.GetDensity(8, "O16") != 0.04 {
		t.Errorf("density %g", s.GetDensity(8, "O16"))
	}
	if names := s.BurnNuclideNames(); len(names) != 2 || names[1] != "U238" {
		t.Errorf("burn nuclides %v", names)
	}
}

func TestBurnSliceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	s.SetDensity(1, "O16", 9)
	want := []float64{1e-3, 2.2e-2}
	s.SetBurnSlice(1, want)
	have := s.GetBurnSlice(1)
	if !floats.Equal(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	have[0] = 100
	if s.GetDensity(1, "U235") != 1e-3 {
		t.Error("GetBurnSlice should return a copy")
	}
	if s.GetDensity(1, "O16") != 9 {
		t.Error("the burn slice should not touch other nuclides")
	}
	for _, test := range []struct {
		name string
		f    func()
	}{
		{"short slice", func() { s.SetBurnSlice(0, []float64{1}) }},
		{"non-burnable material", func() { s.SetBurnSlice(2, want) }},
		{"negative index", func() { s.GetBurnSlice(-1) }},
	} {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected a panic")
				}
			}()
			test.f()
		})
	}
}

func TestMissingVolume(t *testing.T) {
	_, err := NewAtomDensityStore([]int{1, 2, 5}, nil, []string{"U235"}, 1, map[int]float64{2: 1})
	if err == nil || err.Error() != "depcouple: need volumes for materials: [1 5]" {
		t.Errorf("have %v", err)
	}
}

func TestClamp(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := newTestStore(t)
	s.SetDensity(3, "U235", -1e-25)
	s.SetDensity(3, "U238", -1e-21)
	s.SetDensity(1, "U235", -5)
	s.SetDensity(1, "U238", 2)
	s.SetDensity(8, "O16", -1e-22)

	if n := s.ClampNegative(log); n != 2 {
		t.Errorf("%d warnings, want 2", n)
	}
	for _, mat := range []int{3, 1, 8} {
		for _, nuc := range s.NuclideNames() {
			if v := s.GetDensity(mat, nuc); v < 0 {
				t.Errorf("material %d %s: %g", mat, nuc, v)
			}
		}
	}
	if s.GetDensity(1, "U238") != 2 {
		t.Error("positive densities should be left alone")
	}
	if len(hook.Entries) != 2 {
		t.Fatalf("%d log entries, want 2", len(hook.Entries))
	}
	e := hook.Entries[0]
	if e.Level != logrus.WarnLevel || e.Data["nuclide"] != "U238" || e.Data["material"] != 3 {
		t.Errorf("entry %v %v", e.Level, e.Data)
	}

	t.Run("single", func(t *testing.T) {
		hook.Reset()
		s.SetDensity(8, "U235", -1e-10)
		if !s.Clamp(8, "U235", log) || s.GetDensity(8, "U235") != 0 {
			t.Error("significant negative density")
		}
		s.SetDensity(8, "U235", -1e-30)
		if s.Clamp(8, "U235", log) || s.GetDensity(8, "U235") != 0 {
			t.Error("noise should be clamped silently")
		}
		if len(hook.Entries) != 1 {
			t.Errorf("%d log entries, want 1", len(hook.Entries))
		}
	})
}

func TestMaterialTotal(t *testing.T) {
	s := newTestStore(t)
	s.SetDensity(3, "U235", 1)
	s.SetDensity(1, "U235", 2)
	s.SetDensity(8, "U235", 4)
	if s.MaterialTotal("U235") != 7 {
		t.Errorf("have %g", s.MaterialTotal("U235"))
	}
	if s.MaterialTotal("Pu239") != 0 {
		t.Error("unknown nuclides have no inventory")
	}
}
