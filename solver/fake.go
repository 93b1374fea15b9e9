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

package solver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Fake is a Solver for testing. It reads the documents in Dir the way a
// real solver would and produces tallies where the rate of reaction rxn
// on nuclide nuc in a material is the nuclide's atom density times
// Rate(nuc, rxn).
type Fake struct {
	Dir  string
	Keff float64

	// Rate gives the per-atom rate of each nuclide and reaction. A nil
	// Rate tallies zero everywhere.
	Rate func(nuc, rxn string) float64

	// Err, if not nil, is returned by Run.
	Err error

	mu   sync.Mutex
	runs int
	seed int64
}

// Reset discards the results of the previous solve.
func (f *Fake) Reset(ctx context.Context) error {
	if err := os.Remove(filepath.Join(f.Dir, ResultsFile)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Run tallies the materials in the materials document.
func (f *Fake) Run(ctx context.Context) error {
	if f.Err != nil {
		return f.Err
	}
	var settings Settings
	if err := ReadDocument(filepath.Join(f.Dir, SettingsFile), &settings); err != nil {
		return err
	}
	var tallies Tallies
	if err := ReadDocument(filepath.Join(f.Dir, TalliesFile), &tallies); err != nil {
		return err
	}
	mf, err := os.Open(filepath.Join(f.Dir, MaterialsFile))
	if err != nil {
		return fmt.Errorf("solver: opening materials: %v", err)
	}
	mats, err := ReadMaterials(mf)
	mf.Close()
	if err != nil {
		return err
	}
	density := make(map[int]map[string]float64)
	for _, m := range mats {
		d := make(map[string]float64)
		for _, n := range m.Nuclides {
			d[n.Name] = n.AO
		}
		density[m.ID] = d
	}

	ids, err := tallies.Materials()
	if err != nil {
		return err
	}
	r := NewResults(f.Keff, ids, tallies.Nuclides(), tallies.Scores())
	for i, id := range ids {
		d, ok := density[id]
		if !ok {
			return fmt.Errorf("solver: tally bin %d is not a defined material", id)
		}
		if f.Rate == nil {
			continue
		}
		row := r.Data.Elements[i*r.Bins() : (i+1)*r.Bins()]
		for j, nuc := range r.Nuclides {
			for k, rxn := range r.Reactions {
				row[j*len(r.Reactions)+k] = d[nuc] * f.Rate(nuc, rxn)
			}
		}
	}
	if err := WriteResults(filepath.Join(f.Dir, ResultsFile), r); err != nil {
		return err
	}

	f.mu.Lock()
	f.runs++
	f.seed = settings.Seed
	f.mu.Unlock()
	return nil
}

// Results reads back the tallies written by Run.
func (f *Fake) Results(ctx context.Context) (*Results, error) {
	return ReadResults(filepath.Join(f.Dir, ResultsFile))
}

// Runs returns the number of completed solves.
func (f *Fake) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// Seed returns the random seed of the latest solve.
func (f *Fake) Seed() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seed
}
