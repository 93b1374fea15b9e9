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
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kr/pretty"
	"github.com/opendeplete/depcouple/comm"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		n    int
		ids  []int
		want [][]int
	}{
		{n: 3, ids: []int{1, 2, 3, 4, 5, 6, 7}, want: [][]int{{1, 2, 3}, {4, 5}, {6, 7}}},
		{n: 2, ids: []int{1, 2, 3, 4}, want: [][]int{{1, 2}, {3, 4}}},
		{n: 4, ids: []int{8, 9}, want: [][]int{{8}, {9}, {}, {}}},
		{n: 1, ids: nil, want: [][]int{{}}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d over %d", len(test.ids), test.n), func(t *testing.T) {
			have := Chunks(test.ids, test.n)
			if !reflect.DeepEqual(have, test.want) {
				t.Errorf("have %v, want %v", have, test.want)
			}
		})
	}
}

func TestChunksPartition(t *testing.T) {
	for total := 0; total < 30; total++ {
		ids := make([]int, total)
		for i := range ids {
			ids[i] = 100 + i
		}
		for n := 1; n < 9; n++ {
			chunks := Chunks(ids, n)
			var all []int
			min, max := total, 0
			for _, c := range chunks {
				all = append(all, c...)
				if len(c) < min {
					min = len(c)
				}
				if len(c) > max {
					max = len(c)
				}
			}
			if len(all) != total || (total > 0 && !reflect.DeepEqual(all, ids)) {
				t.Errorf("%d over %d: chunks %v do not partition the input", total, n, chunks)
			}
			if max-min > 1 {
				t.Errorf("%d over %d: sizes differ by %d", total, n, max-min)
			}
		}
	}
}

func TestExtractMaterials(t *testing.T) {
	g := loadTestGeometry(t, "testdata/geometry.toml")
	chain := loadTestChain(t)
	d, err := ExtractMaterials(g, chain, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := &Decomposition{
		Burn:       [][]int{{1, 2, 3}, {4, 5}, {6, 7}},
		NotBurn:    [][]int{{10}, {11}, {}},
		Volume:     map[int]float64{1: 0.6, 2: 0.7, 3: 0.8, 4: 0.9, 5: 1.0, 6: 1.1, 7: 1.2},
		TallyIndex: map[int]int{1: 0, 2: 1, 3: 2, 4: 3, 5: 4, 6: 5, 7: 6},
		Nuclides:   append(chain.NuclideNames(), "H1", "O16"),
	}
	if diff := pretty.Diff(d, want); len(diff) != 0 {
		t.Fatal(diff)
	}
	if !reflect.DeepEqual(d.BurnIDs(), []int{1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("burn ids %v", d.BurnIDs())
	}
}

func TestExtractMaterialsNeedVolumes(t *testing.T) {
	doc := `
[[Cells]]
Name = "lattice"
Fill = [9, 4, 2]

[[Materials]]
ID = 2
Burnable = true
Volume = 1.0

[[Materials]]
ID = 4
Burnable = true

[[Materials]]
ID = 9
Burnable = true
`
	g, err := ReadGeometry(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	_, err = ExtractMaterials(g, loadTestChain(t), 2)
	if err == nil || !strings.Contains(err.Error(), "need volumes for materials: [4 9]") {
		t.Errorf("error should list every material without a volume: %v", err)
	}
}

func TestDistribute(t *testing.T) {
	g := loadTestGeometry(t, "testdata/geometry.toml")
	chain := loadTestChain(t)
	const n = 3
	assignments := make([]*Assignment, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i, c := range comm.NewLocal(n) {
		wg.Add(1)
		go func(i int, c *comm.Local) {
			defer wg.Done()
			assignments[i], errs[i] = distribute(c, g, chain)
			if errs[i] != nil {
				c.Abort(errs[i])
			}
		}(i, c)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	var burn []int
	for i, a := range assignments {
		burn = append(burn, a.Burn...)
		if !reflect.DeepEqual(a.Volume, assignments[0].Volume) || !reflect.DeepEqual(a.TallyIndex, assignments[0].TallyIndex) {
			t.Errorf("worker %d has different shared maps", i)
		}
		if !reflect.DeepEqual(a.Nuclides, assignments[0].Nuclides) {
			t.Errorf("worker %d has a different nuclide order", i)
		}
	}
	if !sort.IntsAreSorted(burn) || len(burn) != 7 {
		t.Errorf("burnable materials %v", burn)
	}
	if len(assignments[1].Burn) != 2 || assignments[1].NotBurn[0] != 11 {
		t.Errorf("worker 1: %+v", assignments[1])
	}
}

func TestDistributeFailure(t *testing.T) {
	g := &Geometry{
		Cells:     []Cell{{Name: "c", Fill: []int{1}}},
		Materials: []Material{{ID: 1, Burnable: true}},
	}
	chain := loadTestChain(t)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, c := range comm.NewLocal(2) {
		wg.Add(1)
		go func(i int, c *comm.Local) {
			defer wg.Done()
			_, errs[i] = distribute(c, g, chain)
		}(i, c)
	}
	wg.Wait()
	for i, err := range errs {
		if err == nil {
			t.Errorf("worker %d should fail", i)
		}
	}
}
