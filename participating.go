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
	"os"
	"strings"
)

// CrossSectionsEnv is the environment variable that conventionally holds
// the path to the solver's cross section catalog.
const CrossSectionsEnv = "CROSS_SECTIONS"

// Participating is the set of nuclides the transport solver has data for.
type Participating struct {
	names map[string]bool
	order []string
	burn  []string
}

type xmlCatalog struct {
	XMLName   xml.Name `xml:"cross_sections"`
	Libraries []struct {
		Materials string `xml:"materials,attr"`
	} `xml:"library"`
}

// LoadParticipating reads the cross section catalog at path and
// intersects it with chain.
func LoadParticipating(path string, chain *DecayChain) (*Participating, error) {
	if path == "" {
		return nil, fmt.Errorf("depcouple: no cross section catalog specified; set $%s or the CrossSections option", CrossSectionsEnv)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("depcouple: cross section catalog %q is invalid: %v", path, err)
	}
	defer f.Close()
	p, err := ReadParticipating(f, chain)
	if err != nil {
		return nil, fmt.Errorf("depcouple: cross section catalog %q is invalid: %v", path, err)
	}
	return p, nil
}

// ReadParticipating parses a cross section catalog. Every name listed in
// a library's materials attribute participates. Names that are also in
// chain become burn nuclides, in order of first appearance.
func ReadParticipating(r io.Reader, chain *DecayChain) (*Participating, error) {
	var doc xmlCatalog
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	p := &Participating{names: make(map[string]bool)}
	for _, lib := range doc.Libraries {
		for _, name := range strings.Fields(lib.Materials) {
			if p.names[name] {
				continue
			}
			p.names[name] = true
			p.order = append(p.order, name)
			if _, ok := chain.NuclideIndex(name); ok {
				p.burn = append(p.burn, name)
			}
		}
	}
	return p, nil
}

// Contains reports whether the solver has data for nuclide name.
func (p *Participating) Contains(name string) bool { return p.names[name] }

// Names returns the participating nuclides in catalog order.
func (p *Participating) Names() []string { return append([]string{}, p.order...) }

// BurnNuclides returns the participating nuclides that are also in the
// decay chain, in catalog order. This is the nuclide order of the
// reaction rate table.
func (p *Participating) BurnNuclides() []string { return append([]string{}, p.burn...) }
