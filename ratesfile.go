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
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/opendeplete/depcouple/comm"
)

// RatesFile is the content of a reaction rate file written by
// WriteRates.
type RatesFile struct {
	Keff  float64
	Seed  int64
	Rates *ReactionRateTable
}

// rateBlock is one worker's share of a rate file.
type rateBlock struct {
	Materials []int
	Data      []float64
}

// WriteRates gathers the rate tables of every worker on the leader and
// saves them, with the eigenvalue and seed of the step that produced
// them, to a NetCDF file at path. It is a collective.
func (o *Operator) WriteRates(path string, keff float64, seed int64, rates *ReactionRateTable) error {
	blocks, err := comm.Gather(o.comm, rateBlock{
		Materials: rates.Materials(),
		Data:      rates.table.data.Elements,
	})
	if err != nil {
		return err
	}
	return comm.LeaderDo(o.comm, func() error {
		var all rateBlock
		for _, b := range blocks {
			all.Materials = append(all.Materials, b.Materials...)
			all.Data = append(all.Data, b.Data...)
		}
		return writeRates(path, keff, seed, rates.Nuclides(), rates.Reactions(), all)
	})
}

func padDim(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return " "
	}
	return strings.Join(names, " ")
}

func writeRates(path string, keff float64, seed int64, nuclides, reactions []string, b rateBlock) error {
	nMat, nNuc, nRxn := len(b.Materials), len(nuclides), len(reactions)
	h := cdf.NewHeader([]string{"material", "nuclide", "reaction"}, []int{padDim(nMat), padDim(nNuc), padDim(nRxn)})
	h.AddAttribute("", "keff", []float64{keff})
	h.AddAttribute("", "seed", strconv.FormatInt(seed, 10))
	h.AddAttribute("", "nmaterial", []int32{int32(nMat)})
	h.AddAttribute("", "nuclides", joinNames(nuclides))
	h.AddAttribute("", "reactions", joinNames(reactions))
	h.AddVariable("material_id", []string{"material"}, []int32{0})
	h.AddAttribute("material_id", "description", "Burnable material IDs")
	h.AddVariable("rates", []string{"material", "nuclide", "reaction"}, []float64{0})
	h.AddAttribute("rates", "description", "Normalized reaction rates per atom")
	h.AddAttribute("rates", "units", "reactions/s/atom")
	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("depcouple: creating rate file: %v", err)
	}

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("depcouple: creating rate file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("depcouple: creating rate file: %v", err)
	}
	if nMat == 0 {
		return nil
	}
	ids := make([]int32, nMat)
	for i, id := range b.Materials {
		ids[i] = int32(id)
	}
	if _, err := f.Writer("material_id", []int{0}, []int{nMat}).Write(ids); err != nil {
		return fmt.Errorf("depcouple: writing rate file: %v", err)
	}
	if nNuc == 0 || nRxn == 0 {
		return nil
	}
	if _, err := f.Writer("rates", []int{0, 0, 0}, []int{nMat, nNuc, nRxn}).Write(b.Data); err != nil {
		return fmt.Errorf("depcouple: writing rate file: %v", err)
	}
	return nil
}

// ReadRates reads a file written by WriteRates.
func ReadRates(path string) (*RatesFile, error) {
	ff, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("depcouple: opening rate file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		return nil, fmt.Errorf("depcouple: reading rate file %s: %v", path, err)
	}
	keff, ok := f.Header.GetAttribute("", "keff").([]float64)
	if !ok || len(keff) != 1 {
		return nil, fmt.Errorf("depcouple: rate file %s has no eigenvalue", path)
	}
	seedText, _ := f.Header.GetAttribute("", "seed").(string)
	seed, err := strconv.ParseInt(strings.TrimSpace(seedText), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("depcouple: rate file %s: seed: %v", path, err)
	}
	nMat, ok := f.Header.GetAttribute("", "nmaterial").([]int32)
	if !ok || len(nMat) != 1 {
		return nil, fmt.Errorf("depcouple: rate file %s has no material count", path)
	}
	nucText, _ := f.Header.GetAttribute("", "nuclides").(string)
	rxnText, _ := f.Header.GetAttribute("", "reactions").(string)

	ids := make([]int32, nMat[0])
	if len(ids) > 0 {
		if _, err := f.Reader("material_id", []int{0}, []int{len(ids)}).Read(ids); err != nil {
			return nil, fmt.Errorf("depcouple: reading rate file: %v", err)
		}
	}
	mats := make([]int, len(ids))
	for i, id := range ids {
		mats[i] = int(id)
	}
	rates, err := NewReactionRateTable(mats, strings.Fields(nucText), strings.Fields(rxnText))
	if err != nil {
		return nil, fmt.Errorf("depcouple: rate file %s: %v", path, err)
	}
	if data := rates.table.data.Elements; len(data) > 0 {
		end := []int{rates.NumMaterials(), rates.NumNuclides(), rates.NumReactions()}
		if _, err := f.Reader("rates", []int{0, 0, 0}, end).Read(data); err != nil {
			return nil, fmt.Errorf("depcouple: reading rate file: %v", err)
		}
	}
	return &RatesFile{Keff: keff[0], Seed: seed, Rates: rates}, nil
}
