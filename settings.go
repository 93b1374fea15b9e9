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

	"github.com/opendeplete/depcouple/internal/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultDiluteInitial is the default density floor, in atoms/(b·cm),
// given to every burn nuclide in every burnable material before the
// geometry densities are applied.
const DefaultDiluteInitial = 1.0e3

// Settings configures an Operator.
type Settings struct {
	// Chain is the path to the decay chain file. If empty, the
	// DEPLETION_CHAIN environment variable is used.
	Chain string

	// CrossSections is the path to the cross section catalog. If empty,
	// the CROSS_SECTIONS environment variable is used.
	CrossSections string

	// RunDir is the directory the solver documents are written to.
	RunDir string

	// Power is the target power the reaction rates are normalized to,
	// in the units of Σ(fission rate × Q[MeV]).
	Power float64

	// Batches, Inactive and Particles control the transport solve.
	Batches, Inactive, Particles int

	// LowerLeft and UpperRight bound the initial source box.
	LowerLeft, UpperRight []float64

	// EntropyDimension, if not empty, adds a source entropy mesh with
	// this many cells in each direction.
	EntropyDimension []int

	// DiluteInitial is the initial density floor of burn nuclides.
	// Zero disables the floor.
	DiluteInitial float64

	// RoundNumber rounds densities in the materials document so that
	// repeated runs write identical input.
	RoundNumber bool

	// ConstantSeed, if not zero, is the random seed of every solve.
	// Otherwise a new seed is drawn for each step.
	ConstantSeed int64

	// Log receives progress and warnings. It defaults to the logrus
	// standard logger.
	Log logrus.FieldLogger

	// Metrics, if not nil, records step metrics on the leader.
	Metrics *metrics.Collector
}

// NewSettings returns settings with the defaults filled in.
func NewSettings() *Settings {
	return &Settings{
		DiluteInitial: DefaultDiluteInitial,
		Batches:       100,
		Inactive:      10,
		Particles:     1000,
	}
}

func (s *Settings) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

func (s *Settings) chainPath() string {
	if s.Chain != "" {
		return s.Chain
	}
	return os.Getenv(ChainEnv)
}

func (s *Settings) crossSectionsPath() string {
	if s.CrossSections != "" {
		return s.CrossSections
	}
	return os.Getenv(CrossSectionsEnv)
}

// check returns an error describing the first invalid setting.
func (s *Settings) check() error {
	if s.RunDir == "" {
		return fmt.Errorf("depcouple: the run directory must be set")
	}
	if s.Power <= 0 {
		return fmt.Errorf("depcouple: power must be positive but is %g", s.Power)
	}
	if s.Batches <= s.Inactive {
		return fmt.Errorf("depcouple: batches (%d) must be greater than inactive batches (%d)", s.Batches, s.Inactive)
	}
	if s.Particles <= 0 {
		return fmt.Errorf("depcouple: particles must be positive but is %d", s.Particles)
	}
	if len(s.LowerLeft) != len(s.UpperRight) {
		return fmt.Errorf("depcouple: source box corners have %d and %d coordinates", len(s.LowerLeft), len(s.UpperRight))
	}
	if s.DiluteInitial < 0 {
		return fmt.Errorf("depcouple: initial density floor must not be negative but is %g", s.DiluteInitial)
	}
	return nil
}
