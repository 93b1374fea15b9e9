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
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
)

// ChainEnv is the environment variable that conventionally holds the
// path to the depletion chain file.
const ChainEnv = "DEPLETION_CHAIN"

// FissionReaction is the name of the reaction whose rate, multiplied by
// the fission energy release, gives the power.
const FissionReaction = "fission"

// DecayMode is one decay branch of a nuclide.
type DecayMode struct {
	Type           string
	Target         string
	BranchingRatio float64
}

// Reaction is one neutron reaction of a nuclide. Q is the energy release
// in eV. Target is empty for fission and for reactions whose product is
// not tracked.
type Reaction struct {
	Type   string
	Target string
	Q      float64
}

// FissionYields holds the independent fission product yields at one
// incident energy (eV).
type FissionYields struct {
	Energy   float64
	Products []string
	Yields   []float64
}

// ChainNuclide is a nuclide in the decay chain. HalfLife is in seconds
// and is zero for stable nuclides.
type ChainNuclide struct {
	Name       string
	HalfLife   float64
	DecayModes []DecayMode
	Reactions  []Reaction
	Yields     []FissionYields
}

// DecayConstant returns ln(2)/HalfLife, or zero for a stable nuclide.
func (n *ChainNuclide) DecayConstant() float64 {
	if n.HalfLife <= 0 {
		return 0
	}
	return math.Ln2 / n.HalfLife
}

// DecayChain is the read-only depletion chain shared by all workers.
type DecayChain struct {
	Nuclides  []*ChainNuclide
	nuclides  *Index
	reactions *Index
}

type xmlChain struct {
	XMLName  xml.Name     `xml:"depletion_chain"`
	Nuclides []xmlNuclide `xml:"nuclide"`
}

type xmlNuclide struct {
	Name      string        `xml:"name,attr"`
	HalfLife  string        `xml:"half_life,attr"`
	Decays    []xmlDecay    `xml:"decay"`
	Reactions []xmlReaction `xml:"reaction"`
	Yields    *struct {
		Energies string `xml:"energies"`
		Sets     []struct {
			Energy   float64 `xml:"energy,attr"`
			Products string  `xml:"products"`
			Data     string  `xml:"data"`
		} `xml:"fission_yields"`
	} `xml:"neutron_fission_yields"`
}

type xmlDecay struct {
	Type           string  `xml:"type,attr"`
	Target         string  `xml:"target,attr"`
	BranchingRatio float64 `xml:"branching_ratio,attr"`
}

type xmlReaction struct {
	Type   string  `xml:"type,attr"`
	Target string  `xml:"target,attr"`
	Q      float64 `xml:"Q,attr"`
}

// LoadDecayChain reads the chain file at path.
func LoadDecayChain(path string) (*DecayChain, error) {
	if path == "" {
		return nil, fmt.Errorf("depcouple: no depletion chain specified; set $%s or the Chain option", ChainEnv)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("depcouple: opening depletion chain: %v", err)
	}
	defer f.Close()
	c, err := ReadDecayChain(f)
	if err != nil {
		return nil, fmt.Errorf("%v (file %s)", err, path)
	}
	return c, nil
}

// ReadDecayChain parses a depletion chain document. Reactions are indexed
// in order of first appearance. The chain must contain a fission reaction.
func ReadDecayChain(r io.Reader) (*DecayChain, error) {
	var doc xmlChain
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("depcouple: parsing depletion chain: %v", err)
	}
	c := new(DecayChain)
	var names, reactions []string
	seenRxn := make(map[string]bool)
	for _, xn := range doc.Nuclides {
		n := &ChainNuclide{Name: xn.Name}
		if xn.HalfLife != "" {
			hl, err := strconv.ParseFloat(xn.HalfLife, 64)
			if err != nil {
				return nil, fmt.Errorf("depcouple: nuclide %s half life: %v", xn.Name, err)
			}
			n.HalfLife = hl
		}
		for _, d := range xn.Decays {
			n.DecayModes = append(n.DecayModes, DecayMode(d))
		}
		for _, rx := range xn.Reactions {
			n.Reactions = append(n.Reactions, Reaction(rx))
			if !seenRxn[rx.Type] {
				seenRxn[rx.Type] = true
				reactions = append(reactions, rx.Type)
			}
		}
		if xn.Yields != nil {
			for _, set := range xn.Yields.Sets {
				y, err := parseYields(set.Energy, set.Products, set.Data)
				if err != nil {
					return nil, fmt.Errorf("depcouple: nuclide %s: %v", xn.Name, err)
				}
				n.Yields = append(n.Yields, y)
			}
		}
		names = append(names, n.Name)
		c.Nuclides = append(c.Nuclides, n)
	}
	var err error
	if c.nuclides, err = NewIndex(names); err != nil {
		return nil, err
	}
	if c.reactions, err = NewIndex(reactions); err != nil {
		return nil, err
	}
	if _, ok := c.reactions.Pos(FissionReaction); !ok {
		return nil, fmt.Errorf("depcouple: depletion chain has no %q reaction to normalize power against", FissionReaction)
	}
	return c, nil
}

func parseYields(energy float64, products, data string) (FissionYields, error) {
	y := FissionYields{Energy: energy, Products: strings.Fields(products)}
	for _, s := range strings.Fields(data) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return y, fmt.Errorf("fission yield: %v", err)
		}
		y.Yields = append(y.Yields, v)
	}
	if len(y.Yields) != len(y.Products) {
		return y, fmt.Errorf("%d fission products but %d yields at %g eV",
			len(y.Products), len(y.Yields), energy)
	}
	return y, nil
}

// NuclideIndex returns the chain position of nuclide name.
func (c *DecayChain) NuclideIndex(name string) (int, bool) { return c.nuclides.Pos(name) }

// NuclideNames returns the chain nuclides in chain order.
func (c *DecayChain) NuclideNames() []string { return c.nuclides.Keys() }

// Reactions returns every reaction type in the chain, in order of first
// appearance.
func (c *DecayChain) Reactions() []string { return c.reactions.Keys() }

// ReactionIndex returns the position of reaction name.
func (c *DecayChain) ReactionIndex(name string) (int, bool) { return c.reactions.Pos(name) }

// FissionQ returns the fission energy release of nuclide name in eV.
func (c *DecayChain) FissionQ(name string) (float64, bool) {
	i, ok := c.nuclides.Pos(name)
	if !ok {
		return 0, false
	}
	for _, rx := range c.Nuclides[i].Reactions {
		if rx.Type == FissionReaction {
			return rx.Q, true
		}
	}
	return 0, false
}

// FormMatrix builds the transition matrix of burnable material position i
// of rates. The matrix is n×n in chain order, where element (j, k) is the
// rate at which nuclide k produces nuclide j and the diagonal holds the
// total removal rates. Fission products use the yields at the first
// tabulated energy.
func (c *DecayChain) FormMatrix(rates *ReactionRateTable, i int) (*sparse.SparseArray, error) {
	if i < 0 || i >= rates.NumMaterials() {
		return nil, fmt.Errorf("depcouple: material position %d out of range [0, %d)", i, rates.NumMaterials())
	}
	n := c.nuclides.Len()
	m := sparse.ZerosSparse(n, n)
	for k, nuc := range c.Nuclides {
		if lambda := nuc.DecayConstant(); lambda != 0 {
			m.AddVal(-lambda, k, k)
			for _, d := range nuc.DecayModes {
				if j, ok := c.nuclides.Pos(d.Target); ok {
					m.AddVal(lambda*d.BranchingRatio, j, k)
				}
			}
		}
		ni, ok := rates.NuclideIndex(nuc.Name)
		if !ok {
			continue
		}
		for _, rx := range nuc.Reactions {
			ri, ok := rates.ReactionIndex(rx.Type)
			if !ok {
				continue
			}
			r := rates.At(i, ni, ri)
			if r == 0 {
				continue
			}
			m.AddVal(-r, k, k)
			if rx.Type == FissionReaction {
				if len(nuc.Yields) == 0 {
					continue
				}
				y := nuc.Yields[0]
				for p, product := range y.Products {
					if j, ok := c.nuclides.Pos(product); ok {
						m.AddVal(r*y.Yields[p], j, k)
					}
				}
				continue
			}
			if j, ok := c.nuclides.Pos(rx.Target); ok {
				m.AddVal(r, j, k)
			}
		}
	}
	return m, nil
}
