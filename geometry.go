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
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/BurntSushi/toml"
)

// SAB is a thermal scattering library reference. A zero Fraction means 1.
type SAB struct {
	Name     string
	Fraction float64
}

// Material is a material as authored in the model input.
type Material struct {
	ID          int
	Burnable    bool
	Volume      *float64 // cm³, required for burnable materials
	Temperature float64  // K
	Densities   map[string]float64
	SAB         []SAB
}

// Cell is a geometry cell filled with one or more materials.
type Cell struct {
	Name string
	Fill []int
}

// Geometry is the model input: the material-filled cells and the
// materials they reference.
type Geometry struct {
	Cells     []Cell
	Materials []Material

	byID map[int]int
}

// LoadGeometry reads a TOML model file.
func LoadGeometry(path string) (*Geometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("depcouple: opening geometry file: %v", err)
	}
	defer f.Close()
	return ReadGeometry(bufio.NewReader(f))
}

// ReadGeometry parses a TOML model description and checks that every
// cell fill refers to a defined material.
func ReadGeometry(r io.Reader) (*Geometry, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("depcouple: reading geometry: %v", err)
	}
	g := new(Geometry)
	if _, err := toml.Decode(string(b), g); err != nil {
		return nil, fmt.Errorf("depcouple: parsing geometry: %v", err)
	}
	if err := g.index(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Geometry) index() error {
	g.byID = make(map[int]int, len(g.Materials))
	for i, m := range g.Materials {
		if _, ok := g.byID[m.ID]; ok {
			return fmt.Errorf("depcouple: material %d is defined more than once", m.ID)
		}
		g.byID[m.ID] = i
	}
	for _, c := range g.Cells {
		if len(c.Fill) == 0 {
			return fmt.Errorf("depcouple: cell %q has no fill", c.Name)
		}
		for _, id := range c.Fill {
			if _, ok := g.byID[id]; !ok {
				return fmt.Errorf("depcouple: cell %q is filled with undefined material %d", c.Name, id)
			}
		}
	}
	return nil
}

// Material returns the material with the given ID.
func (g *Geometry) Material(id int) (*Material, bool) {
	if g.byID == nil {
		if err := g.index(); err != nil {
			return nil, false
		}
	}
	i, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return &g.Materials[i], true
}

// FilledMaterials returns the materials referenced by cell fills, each
// once, in order of first reference.
func (g *Geometry) FilledMaterials() []*Material {
	seen := make(map[int]bool)
	var o []*Material
	for _, c := range g.Cells {
		for _, id := range c.Fill {
			if seen[id] {
				continue
			}
			seen[id] = true
			if m, ok := g.Material(id); ok {
				o = append(o, m)
			}
		}
	}
	return o
}
