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
	"sort"

	"github.com/opendeplete/depcouple/comm"
)

// Message tags used while distributing the decomposition.
const (
	tagBurn = iota + 1
	tagNotBurn
	tagNuclides
	tagTallyNuclides
	tagRates
)

// Chunks splits ids into n contiguous chunks whose sizes differ by at
// most one. The first len(ids) mod n chunks hold the extra elements.
func Chunks(ids []int, n int) [][]int {
	o := make([][]int, n)
	if n <= 0 {
		return o
	}
	size, extra := len(ids)/n, len(ids)%n
	start := 0
	for i := range o {
		end := start + size
		if i < extra {
			end++
		}
		o[i] = append([]int{}, ids[start:end]...)
		start = end
	}
	return o
}

// Decomposition is the assignment of materials to workers.
type Decomposition struct {
	// Burn and NotBurn hold, for each worker, the burnable and
	// non-burnable materials it owns.
	Burn, NotBurn [][]int

	// Volume holds the volume in cm³ of every burnable material.
	Volume map[int]float64

	// TallyIndex maps each burnable material to its position in the
	// global material tally filter.
	TallyIndex map[int]int

	// Nuclides is the store nuclide order: chain nuclides first, then
	// geometry-only nuclides in name order.
	Nuclides []string
}

// ExtractMaterials walks the cell fills of g and splits the materials
// found into size worker assignments. Material IDs are sorted
// numerically before splitting. Every burnable material must have a
// volume.
func ExtractMaterials(g *Geometry, chain *DecayChain, size int) (*Decomposition, error) {
	if size < 1 {
		return nil, fmt.Errorf("depcouple: cannot decompose over %d workers", size)
	}
	var burn, notBurn, needVolume []int
	volume := make(map[int]float64)
	geomNuclides := make(map[string]bool)
	for _, m := range g.FilledMaterials() {
		for nuc := range m.Densities {
			geomNuclides[nuc] = true
		}
		if !m.Burnable {
			notBurn = append(notBurn, m.ID)
			continue
		}
		burn = append(burn, m.ID)
		if m.Volume == nil {
			needVolume = append(needVolume, m.ID)
			continue
		}
		volume[m.ID] = *m.Volume
	}
	if len(needVolume) > 0 {
		sort.Ints(needVolume)
		return nil, fmt.Errorf("depcouple: need volumes for materials: %v", needVolume)
	}
	sort.Ints(burn)
	sort.Ints(notBurn)

	nuclides := chain.NuclideNames()
	inChain := make(map[string]bool, len(nuclides))
	for _, n := range nuclides {
		inChain[n] = true
	}
	var extra []string
	for n := range geomNuclides {
		if !inChain[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)

	d := &Decomposition{
		Burn:       Chunks(burn, size),
		NotBurn:    Chunks(notBurn, size),
		Volume:     volume,
		TallyIndex: make(map[int]int, len(burn)),
		Nuclides:   append(nuclides, extra...),
	}
	for i, id := range burn {
		d.TallyIndex[id] = i
	}
	return d, nil
}

// BurnIDs returns every burnable material in tally order.
func (d *Decomposition) BurnIDs() []int {
	o := make([]int, len(d.TallyIndex))
	for id, i := range d.TallyIndex {
		o[i] = id
	}
	return o
}

// Assignment is the part of a Decomposition one worker needs.
type Assignment struct {
	Burn, NotBurn []int
	Nuclides      []string
	Volume        map[int]float64
	TallyIndex    map[int]int
}

// distribute runs ExtractMaterials on the leader and hands each worker
// its assignment. It is a collective.
//
// Leader: extracts and decomposes, broadcasts the outcome so followers
// fail with it, then sends each follower its burnable list (tagBurn),
// non-burnable list (tagNotBurn) and nuclide order (tagNuclides), and
// finally broadcasts the volume map and the tally index.
// Follower: receives the outcome, the three messages and the two
// broadcasts.
func distribute(c comm.Communicator, g *Geometry, chain *DecayChain) (*Assignment, error) {
	var d *Decomposition
	err := comm.LeaderDo(c, func() error {
		var err error
		d, err = ExtractMaterials(g, chain, c.Size())
		return err
	})
	if err != nil {
		return nil, err
	}

	a := new(Assignment)
	switch comm.RoleOf(c) {
	case comm.Leader:
		for dst := 1; dst < c.Size(); dst++ {
			if err := c.Send(dst, tagBurn, d.Burn[dst]); err != nil {
				return nil, err
			}
			if err := c.Send(dst, tagNotBurn, d.NotBurn[dst]); err != nil {
				return nil, err
			}
			if err := c.Send(dst, tagNuclides, d.Nuclides); err != nil {
				return nil, err
			}
		}
		a.Burn, a.NotBurn, a.Nuclides = d.Burn[comm.LeaderRank], d.NotBurn[comm.LeaderRank], d.Nuclides
		a.Volume, a.TallyIndex = d.Volume, d.TallyIndex
	default:
		if err := c.Recv(comm.LeaderRank, tagBurn, &a.Burn); err != nil {
			return nil, err
		}
		if err := c.Recv(comm.LeaderRank, tagNotBurn, &a.NotBurn); err != nil {
			return nil, err
		}
		if err := c.Recv(comm.LeaderRank, tagNuclides, &a.Nuclides); err != nil {
			return nil, err
		}
	}
	if a.Volume, err = comm.Bcast(c, a.Volume); err != nil {
		return nil, err
	}
	if a.TallyIndex, err = comm.Bcast(c, a.TallyIndex); err != nil {
		return nil, err
	}
	return a, nil
}
