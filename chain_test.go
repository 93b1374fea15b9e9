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

	"gonum.org/v1/gonum/floats"
)

func loadTestChain(t *testing.T) *DecayChain {
	t.Helper()
	c, err := LoadDecayChain("testdata/chain_simple.xml")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestLoadDecayChain(t *testing.T) {
	c := loadTestChain(t)
	want := []string{"I135", "Xe135", "Xe136", "Cs135", "Gd157", "Gd156", "U234", "U235", "U238"}
	if !reflect.DeepEqual(c.NuclideNames(), want) {
		t.Errorf("nuclides %v", c.NuclideNames())
	}
	if !reflect.DeepEqual(c.Reactions(), []string{"(n,gamma)", "fission"}) {
		t.Errorf("reactions %v", c.Reactions())
	}
	if q, ok := c.FissionQ("U235"); !ok || q != 193405400 {
		t.Errorf("U235 Q = %g, %v", q, ok)
	}
	if _, ok := c.FissionQ("Xe135"); ok {
		t.Error("Xe135 does not fission")
	}
	u235 := c.Nuclides[7]
	if len(u235.Yields) != 1 || len(u235.Yields[0].Products) != 6 || u235.Yields[0].Yields[2] != 6.28e-02 {
		t.Errorf("U235 yields %+v", u235.Yields)
	}
	if !floats.EqualWithinRel(c.Nuclides[0].DecayConstant(), 2.930607e-5, 1e-6) {
		t.Errorf("I135 decay constant %g", c.Nuclides[0].DecayConstant())
	}
	if c.Nuclides[2].DecayConstant() != 0 {
		t.Error("stable nuclides do not decay")
	}
}

func TestDecayChainErrors(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{
			name: "no fission",
			doc:  `<depletion_chain><nuclide name="A"><reaction type="(n,gamma)" target="B"/></nuclide></depletion_chain>`,
			want: "no \"fission\" reaction",
		},
		{
			name: "bad yields",
			doc: `<depletion_chain><nuclide name="A"><reaction type="fission" Q="1"/><neutron_fission_yields>
<fission_yields energy="0"><products>B C</products><data>0.5</data></fission_yields>
</neutron_fission_yields></nuclide></depletion_chain>`,
			want: "2 fission products but 1 yields",
		},
		{
			name: "duplicate nuclide",
			doc:  `<depletion_chain><nuclide name="A"><reaction type="fission"/></nuclide><nuclide name="A"/></depletion_chain>`,
			want: "duplicate",
		},
		{
			name: "not xml",
			doc:  `depletion chain`,
			want: "parsing depletion chain",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadDecayChain(strings.NewReader(test.doc))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("have %v, want error containing %q", err, test.want)
			}
		})
	}
	t.Run("no path", func(t *testing.T) {
		_, err := LoadDecayChain("")
		if err == nil || !strings.Contains(err.Error(), ChainEnv) {
			t.Errorf("error should name $%s: %v", ChainEnv, err)
		}
	})
}

func TestFormMatrix(t *testing.T) {
	c := loadTestChain(t)
	rates, err := NewReactionRateTable([]int{1}, []string{"U235", "Xe135"}, c.Reactions())
	if err != nil {
		t.Fatal(err)
	}
	rates.Set(2, 1, "U235", "fission")
	rates.Set(0.5, 1, "U235", "(n,gamma)")
	rates.Set(3, 1, "Xe135", "(n,gamma)")

	m, err := c.FormMatrix(rates, 0)
	if err != nil {
		t.Fatal(err)
	}
	idx := func(name string) int {
		i, _ := c.NuclideIndex(name)
		return i
	}
	i135, xe135, xe136, cs135, u235 := idx("I135"), idx("Xe135"), idx("Xe136"), idx("Cs135"), idx("U235")
	lambdaI := c.Nuclides[i135].DecayConstant()
	lambdaXe := c.Nuclides[xe135].DecayConstant()
	lambdaU := c.Nuclides[u235].DecayConstant()

	tests := []struct {
		name      string
		row, col  int
		want, tol float64
	}{
		{"I135 decay loss", i135, i135, -lambdaI, 0},
		{"I135 to Xe135", xe135, i135, lambdaI, 0},
		{"Xe135 removal", xe135, xe135, -lambdaXe - 3, 0},
		{"Xe135 decay to Cs135", cs135, xe135, lambdaXe, 0},
		{"Xe135 capture to Xe136", xe136, xe135, 3, 0},
		{"U235 removal", u235, u235, -lambdaU - 2.5, 0},
		{"U235 fission to I135", i135, u235, 2 * 6.28e-02, 1e-15},
		{"U235 fission to Xe135", xe135, u235, 2 * 1.05e-03, 1e-15},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			have := m.Get(test.row, test.col)
			if !floats.EqualWithinAbsOrRel(have, test.want, test.tol, 1e-12) {
				t.Errorf("have %g, want %g", have, test.want)
			}
		})
	}
	if _, err := c.FormMatrix(rates, 1); err == nil {
		t.Error("material position 1 is out of range")
	}
}
