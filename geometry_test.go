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
	"strings"
	"testing"
)

func loadTestGeometry(t *testing.T, path string) *Geometry {
	t.Helper()
	g, err := LoadGeometry(path)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestLoadGeometry(t *testing.T) {
	g := loadTestGeometry(t, "testdata/geometry.toml")
	if len(g.Cells) != 8 || len(g.Materials) != 9 {
		t.Fatalf("%d cells and %d materials", len(g.Cells), len(g.Materials))
	}
	m, ok := g.Material(3)
	if !ok {
		t.Fatal("material 3 missing")
	}
	if !m.Burnable || m.Volume == nil || *m.Volume != 0.8 || m.Temperature != 900 {
		t.Errorf("material 3: %+v", m)
	}
	if m.Densities["U238"] != 2.2e-2 {
		t.Errorf("U238 density %g", m.Densities["U238"])
	}
	w, _ := g.Material(10)
	if w.Burnable || w.Volume != nil || len(w.SAB) != 1 || w.SAB[0].Name != "c_H_in_H2O" {
		t.Errorf("material 10: %+v", w)
	}
	var ids []int
	for _, m := range g.FilledMaterials() {
		ids = append(ids, m.ID)
	}
	if !reflect.DeepEqual(ids, []int{1, 2, 3, 4, 5, 6, 7, 10, 11}) {
		t.Errorf("filled materials %v", ids)
	}
}

func TestGeometryErrors(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{
			name: "undefined fill",
			doc:  "[[Cells]]\nName = \"a\"\nFill = [2]\n\n[[Materials]]\nID = 1\n",
			want: "undefined material 2",
		},
		{
			name: "empty fill",
			doc:  "[[Cells]]\nName = \"a\"\nFill = []\n",
			want: "has no fill",
		},
		{
			name: "duplicate material",
			doc:  "[[Materials]]\nID = 1\n\n[[Materials]]\nID = 1\n",
			want: "more than once",
		},
		{
			name: "syntax",
			doc:  "[[Cells]\n",
			want: "parsing geometry",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadGeometry(strings.NewReader(test.doc))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("have %v, want error containing %q", err, test.want)
			}
		})
	}
}
