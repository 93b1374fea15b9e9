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

// Package depcouple couples a burnup calculation to an external neutron
// transport solver. Each coupled step pushes the current nuclide
// densities into the solver's input documents, runs one transport solve,
// reads back the reaction rates and normalizes them to a target power.
//
// Materials are split across workers that communicate through a
// comm.Communicator. Rank 0 is the leader: it decomposes the model,
// writes the shared documents and runs the solver.
package depcouple

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/sparse"
	"github.com/opendeplete/depcouple/comm"
	"github.com/opendeplete/depcouple/internal/hash"
	"github.com/opendeplete/depcouple/internal/metrics"
	"github.com/opendeplete/depcouple/solver"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// MeVPerEV converts fission Q values from eV to MeV.
const MeVPerEV = 1.0e-6

// State is the position of an Operator within a coupled step.
type State int

// The states of a coupled step, in order.
const (
	Idle State = iota
	DensitiesPushed
	SolverRunning
	TalliesReady
	Normalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DensitiesPushed:
		return "densities pushed"
	case SolverRunning:
		return "solver running"
	case TalliesReady:
		return "tallies ready"
	case Normalized:
		return "normalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Operator couples the densities of the burnable materials owned by one
// worker to the transport solver. Every worker creates its own Operator
// and calls its collective methods in the same order.
type Operator struct {
	comm     comm.Communicator
	settings *Settings
	solver   solver.Solver
	log      logrus.FieldLogger

	chain         *DecayChain
	participating *Participating
	number        *AtomDensityStore
	rates         *ReactionRateTable
	tallyIndex    map[int]int
	materials     map[int]*Material

	nodes, npernode int

	state State
	step  int
	seed  int64
	rand  *rand.Rand
}

// NewOperator decomposes g across the workers of c, loads the decay chain
// and cross section catalog named in s, builds the density store and rate
// table of this worker's materials, and writes the initial solver
// documents. It is a collective. Every worker must pass an equivalent
// geometry and settings. The solver is run only by the leader but every
// worker reads its results.
func NewOperator(ctx context.Context, c comm.Communicator, g *Geometry, s *Settings, slv solver.Solver) (*Operator, error) {
	o := &Operator{
		comm:     c,
		settings: s,
		solver:   slv,
		log:      s.log().WithField("rank", c.Rank()),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	var err error
	if o.nodes, o.npernode, err = comm.NodeTopology(c); err != nil {
		return nil, err
	}
	if comm.RoleOf(c) == comm.Leader {
		o.log.WithFields(logrus.Fields{
			"workers":  c.Size(),
			"nodes":    o.nodes,
			"npernode": o.npernode,
		}).Info("worker topology")
	}

	err = s.check()
	if err == nil {
		o.chain, err = LoadDecayChain(s.chainPath())
	}
	if err == nil {
		o.participating, err = LoadParticipating(s.crossSectionsPath(), o.chain)
	}
	if err = comm.Agree(c, err); err != nil {
		return nil, err
	}
	if err := comm.LeaderDo(c, func() error { return os.MkdirAll(s.RunDir, 0755) }); err != nil {
		return nil, fmt.Errorf("depcouple: creating run directory: %v", err)
	}

	a, err := distribute(c, g, o.chain)
	if err != nil {
		return nil, err
	}
	o.tallyIndex = a.TallyIndex

	key := hash.Hash([][]string{a.Nuclides, o.participating.BurnNuclides(), o.chain.Reactions()})
	keys, err := comm.Allgather(c, key)
	if err != nil {
		return nil, err
	}
	if i := hash.Mismatch(keys); i >= 0 {
		return nil, fmt.Errorf("depcouple: worker %d derived different nuclide or reaction indices than worker 0; check that every worker reads the same chain and cross section files", i)
	}

	err = o.build(g, a)
	if err = comm.Agree(c, err); err != nil {
		return nil, err
	}
	if _, err := o.writeDocuments(); err != nil {
		return nil, err
	}
	return o, nil
}

// build creates the density store and rate table of the materials in a.
func (o *Operator) build(g *Geometry, a *Assignment) error {
	var err error
	o.number, err = NewAtomDensityStore(a.Burn, a.NotBurn, a.Nuclides, len(o.chain.Nuclides), a.Volume)
	if err != nil {
		return err
	}
	burnNuclides := o.participating.BurnNuclides()
	if d := o.settings.DiluteInitial; d != 0 {
		for _, id := range a.Burn {
			for _, nuc := range burnNuclides {
				o.number.SetDensity(id, nuc, d)
			}
		}
	}
	o.materials = make(map[int]*Material)
	for _, id := range o.number.MaterialIDs() {
		m, ok := g.Material(id)
		if !ok {
			return fmt.Errorf("depcouple: material %d is not in the geometry", id)
		}
		o.materials[id] = m
		for nuc, v := range m.Densities {
			o.number.SetDensity(id, nuc, v)
		}
	}
	o.rates, err = NewReactionRateTable(a.Burn, burnNuclides, o.chain.Reactions())
	return err
}

// Topology returns the number of nodes and workers per node.
func (o *Operator) Topology() (nodes, npernode int) { return o.nodes, o.npernode }

// State returns the position of o within a coupled step.
func (o *Operator) State() State { return o.state }

// Densities returns the density store of this worker.
func (o *Operator) Densities() *AtomDensityStore { return o.number }

// Chain returns the decay chain.
func (o *Operator) Chain() *DecayChain { return o.chain }

// Participating returns the nuclides the solver has data for.
func (o *Operator) Participating() *Participating { return o.participating }

// InitialCondition returns the burn slice of every burnable material
// owned by this worker.
func (o *Operator) InitialCondition() [][]float64 {
	vecs := make([][]float64, o.number.NumBurnMaterials())
	for i := range vecs {
		vecs[i] = o.number.GetBurnSlice(i)
	}
	return vecs
}

// ResultsInfo describes the layout of the rates returned by Eval.
type ResultsInfo struct {
	// Volume holds the volume of every burnable material of every worker.
	Volume map[int]float64

	// Nuclides are the burn nuclides, in rate table order.
	Nuclides []string

	// Burn lists the burnable materials owned by this worker.
	Burn []int

	// TallyIndex maps each burnable material to its global position.
	TallyIndex map[int]int
}

// ResultsInfo gathers the volumes of every worker's burnable materials
// and returns them with the rate table layout. It is a collective.
func (o *Operator) ResultsInfo() (*ResultsInfo, error) {
	local := make(map[int]float64, o.number.NumBurnMaterials())
	for i, id := range o.number.BurnMaterialIDs() {
		local[id] = o.number.Volume(i)
	}
	all, err := comm.Allgather(o.comm, local)
	if err != nil {
		return nil, err
	}
	info := &ResultsInfo{
		Volume:     make(map[int]float64),
		Nuclides:   o.rates.Nuclides(),
		Burn:       o.number.BurnMaterialIDs(),
		TallyIndex: make(map[int]int, len(o.tallyIndex)),
	}
	for _, m := range all {
		for id, v := range m {
			info.Volume[id] = v
		}
	}
	for id, i := range o.tallyIndex {
		info.TallyIndex[id] = i
	}
	return info, nil
}

// FormMatrix returns the transition matrix of burnable material position
// i under rates.
func (o *Operator) FormMatrix(rates *ReactionRateTable, i int) (*sparse.SparseArray, error) {
	return o.chain.FormMatrix(rates, i)
}

// Eval runs one coupled step. vecs holds the burn slice of every burnable
// material owned by this worker. It returns the eigenvalue, a copy of
// the normalized per-atom reaction rates and the seed of the solve. It
// is a collective.
func (o *Operator) Eval(ctx context.Context, vecs [][]float64) (keff float64, rates *ReactionRateTable, seed int64, err error) {
	if o.state != Idle {
		return 0, nil, 0, fmt.Errorf("depcouple: cannot start a step in state %v", o.state)
	}
	defer func() { o.state = Idle }()
	o.step++
	start := time.Now()

	err = o.checkSlices(vecs)
	if err = comm.Agree(o.comm, err); err != nil {
		return 0, nil, 0, err
	}
	for i, v := range vecs {
		o.number.SetBurnSlice(i, v)
	}
	o.state = DensitiesPushed

	tallied, err := o.writeDocuments()
	if err != nil {
		return 0, nil, 0, err
	}

	o.state = SolverRunning
	solveStart := time.Now()
	err = comm.LeaderDo(o.comm, func() error {
		if err := o.solver.Reset(ctx); err != nil {
			return err
		}
		return o.solver.Run(ctx)
	})
	if err != nil {
		return 0, nil, 0, fmt.Errorf("depcouple: step %d: transport solve: %v", o.step, err)
	}
	solveTime := time.Since(solveStart)

	o.state = TalliesReady
	unpackStart := time.Now()
	res, err := o.solver.Results(ctx)
	if err = comm.Agree(o.comm, err); err != nil {
		return 0, nil, 0, fmt.Errorf("depcouple: step %d: reading results: %v", o.step, err)
	}
	power, err := o.unpack(res, tallied)
	if err = comm.Agree(o.comm, err); err != nil {
		return 0, nil, 0, err
	}
	global, err := comm.AllreduceSum(o.comm, power)
	if err != nil {
		return 0, nil, 0, err
	}
	if global == 0 {
		return 0, nil, 0, fmt.Errorf("depcouple: step %d: total fission power is zero; cannot normalize reaction rates", o.step)
	}
	o.rates.Scale(o.settings.Power / global)
	o.state = Normalized
	unpackTime := time.Since(unpackStart)

	if comm.RoleOf(o.comm) == comm.Leader {
		o.log.WithFields(logrus.Fields{
			"step":   o.step,
			"keff":   res.Keff,
			"solve":  solveTime,
			"unpack": unpackTime,
		}).Info("coupled step complete")
		m := o.settings.Metrics
		m.ObservePhase(metrics.PhaseSolve, solveTime)
		m.ObservePhase(metrics.PhaseUnpack, unpackTime)
		m.ObservePhase(metrics.PhaseTotal, time.Since(start))
		m.StepDone(res.Keff, global)
	}
	return res.Keff, o.rates.Copy(), o.seed, nil
}

func (o *Operator) checkSlices(vecs [][]float64) error {
	if len(vecs) != o.number.NumBurnMaterials() {
		return fmt.Errorf("depcouple: step %d: have %d burn slices for %d burnable materials", o.step, len(vecs), o.number.NumBurnMaterials())
	}
	for i, v := range vecs {
		if len(v) != o.number.NumBurnNuclides() {
			return fmt.Errorf("depcouple: step %d: burn slice %d has length %d; want %d", o.step, i, len(v), o.number.NumBurnNuclides())
		}
	}
	return nil
}

// writeDocuments clamps the stored densities and writes the settings,
// materials and tallies documents. It returns the negotiated tally
// nuclides. It is a collective.
func (o *Operator) writeDocuments() ([]string, error) {
	o.settings.Metrics.AddNegative(o.number.ClampNegative(o.log))

	tallied, err := o.tallyNuclides()
	if err != nil {
		return nil, err
	}
	if err := o.writeSettings(); err != nil {
		return nil, err
	}
	if err := o.writeMaterials(); err != nil {
		return nil, err
	}
	err = comm.LeaderDo(o.comm, func() error {
		t := solver.NewTallies(o.burnIDs(), tallied, o.chain.Reactions())
		return solver.WriteDocument(filepath.Join(o.settings.RunDir, solver.TalliesFile), t)
	})
	if err != nil {
		return nil, err
	}
	return tallied, comm.Barrier(o.comm)
}

// burnIDs returns every burnable material in tally order.
func (o *Operator) burnIDs() []int {
	ids := make([]int, len(o.tallyIndex))
	for id, i := range o.tallyIndex {
		ids[i] = id
	}
	return ids
}

// tallyNuclides negotiates the nuclides to tally: participating nuclides
// with a positive total density on any worker, in store order, limited to
// the decay chain. It is a collective.
//
// Leader: receives each follower's nuclides (tagTallyNuclides), takes
// the union and broadcasts it.
// Follower: sends its nuclides to the leader (tagTallyNuclides) and
// receives the union.
func (o *Operator) tallyNuclides() ([]string, error) {
	var local []string
	for _, nuc := range o.number.NuclideNames() {
		if o.participating.Contains(nuc) && o.number.MaterialTotal(nuc) > 0 {
			local = append(local, nuc)
		}
	}
	var union []string
	switch comm.RoleOf(o.comm) {
	case comm.Leader:
		present := make(map[string]bool)
		for _, nuc := range local {
			present[nuc] = true
		}
		for src := 1; src < o.comm.Size(); src++ {
			var theirs []string
			if err := o.comm.Recv(src, tagTallyNuclides, &theirs); err != nil {
				return nil, fmt.Errorf("depcouple: tally nuclides from %d: %v", src, err)
			}
			for _, nuc := range theirs {
				present[nuc] = true
			}
		}
		for _, nuc := range o.number.NuclideNames() {
			if present[nuc] {
				union = append(union, nuc)
			}
		}
	default:
		if err := o.comm.Send(comm.LeaderRank, tagTallyNuclides, local); err != nil {
			return nil, fmt.Errorf("depcouple: tally nuclides to leader: %v", err)
		}
	}
	union, err := comm.Bcast(o.comm, union)
	if err != nil {
		return nil, err
	}
	var tallied []string
	for _, nuc := range union {
		if _, ok := o.chain.NuclideIndex(nuc); ok {
			tallied = append(tallied, nuc)
		}
	}
	return tallied, nil
}

// writeSettings writes the settings document on the leader and
// distributes its seed.
func (o *Operator) writeSettings() error {
	var seed int64
	err := comm.LeaderDo(o.comm, func() error {
		seed = o.settings.ConstantSeed
		if seed == 0 {
			seed = o.rand.Int63n(math.MaxInt64-1) + 1
		}
		s := o.settings
		doc := solver.NewSettings(s.Batches, s.Inactive, s.Particles, s.LowerLeft, s.UpperRight, s.EntropyDimension, seed)
		return solver.WriteDocument(filepath.Join(s.RunDir, solver.SettingsFile), doc)
	})
	if err != nil {
		return err
	}
	o.seed, err = comm.Bcast(o.comm, seed)
	return err
}

// materialFragment renders this worker's materials with their positive
// participating densities.
func (o *Operator) materialFragment() ([]byte, error) {
	nuclides := o.number.NuclideNames()
	ids := o.number.MaterialIDs()
	mats := make([]solver.Material, len(ids))
	for i, id := range ids {
		m := o.materials[id]
		sm := solver.Material{
			ID:          id,
			Density:     solver.Density{Units: "sum"},
			Temperature: m.Temperature,
		}
		for _, nuc := range nuclides {
			if !o.participating.Contains(nuc) {
				continue
			}
			v := o.number.GetDensity(id, nuc)
			if v <= 0 {
				continue
			}
			if o.settings.RoundNumber {
				v = solver.RoundSignificant(v)
			}
			sm.Nuclides = append(sm.Nuclides, solver.NuclideDensity{Name: nuc, AO: v})
		}
		for _, sab := range m.SAB {
			f := sab.Fraction
			if f == 1 {
				f = 0
			}
			sm.SAB = append(sm.SAB, solver.SAB{Name: sab.Name, Fraction: f})
		}
		mats[i] = sm
	}
	return solver.MaterialFragment(mats)
}

// writeMaterials writes the materials document. Each worker writes its
// own fragment at an offset given by the fragment lengths of the workers
// before it. The leader writes the header and the last worker the
// footer. It is a collective.
func (o *Operator) writeMaterials() error {
	frag, err := o.materialFragment()
	if err == nil {
		if comm.RoleOf(o.comm) == comm.Leader {
			frag = append([]byte(solver.MaterialsHeader), frag...)
		}
		if o.comm.Rank() == o.comm.Size()-1 {
			frag = append(frag, solver.MaterialsFooter...)
		}
	}
	if err = comm.Agree(o.comm, err); err != nil {
		return err
	}
	lengths, err := comm.Allgather(o.comm, len(frag))
	if err != nil {
		return err
	}
	var offset int64
	for _, n := range lengths[:o.comm.Rank()] {
		offset += int64(n)
	}

	path := filepath.Join(o.settings.RunDir, solver.MaterialsFile)
	err = comm.LeaderDo(o.comm, func() error {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		return f.Close()
	})
	if err != nil {
		return fmt.Errorf("depcouple: creating materials document: %v", err)
	}
	err = writeAt(path, frag, offset)
	if err = comm.Agree(o.comm, err); err != nil {
		return err
	}
	return comm.Barrier(o.comm)
}

func writeAt(path string, b []byte, offset int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("depcouple: opening materials document: %v", err)
	}
	if _, err := f.WriteAt(b, offset); err != nil {
		f.Close()
		return fmt.Errorf("depcouple: writing materials document: %v", err)
	}
	return f.Close()
}

// unpack fills the rate table from res and returns this worker's share
// of the fission power. Tallied rates are divided by the stored density
// to give per-atom rates.
func (o *Operator) unpack(res *solver.Results, tallied []string) (float64, error) {
	o.rates.Zero()
	if len(res.Nuclides) != len(tallied) {
		return 0, fmt.Errorf("depcouple: step %d: results have %d nuclides but %d were requested", o.step, len(res.Nuclides), len(tallied))
	}
	nucIndex := make([]int, len(res.Nuclides))
	q := make([]float64, len(res.Nuclides))
	for j, nuc := range res.Nuclides {
		ni, ok := o.rates.NuclideIndex(nuc)
		if !ok {
			return 0, fmt.Errorf("depcouple: step %d: results name unknown nuclide %q", o.step, nuc)
		}
		nucIndex[j] = ni
		if qv, ok := o.chain.FissionQ(nuc); ok {
			q[j] = qv * MeVPerEV
		}
	}
	rxnIndex := make([]int, len(res.Reactions))
	fission := -1
	for k, rxn := range res.Reactions {
		ri, ok := o.rates.ReactionIndex(rxn)
		if !ok {
			return 0, fmt.Errorf("depcouple: step %d: results name unknown reaction %q", o.step, rxn)
		}
		rxnIndex[k] = ri
		if rxn == FissionReaction {
			fission = k
		}
	}

	nRxn := o.rates.NumReactions()
	nBins := len(res.Reactions)
	fissionRates := make([]float64, len(res.Nuclides))
	var power float64
	for i, id := range o.number.BurnMaterialIDs() {
		row, ok := res.Row(id)
		if !ok {
			return 0, fmt.Errorf("depcouple: step %d: results have no row for material %d", o.step, id)
		}
		block := o.rates.Material(i)
		for j, nuc := range res.Nuclides {
			density := o.number.GetDensity(id, nuc)
			for k := range res.Reactions {
				v := row[j*nBins+k]
				if k == fission {
					fissionRates[j] = v
				}
				if density != 0 {
					v /= density
				}
				block[nucIndex[j]*nRxn+rxnIndex[k]] = v
			}
		}
		if fission >= 0 {
			power += floats.Dot(fissionRates, q)
		}
	}
	return power, nil
}
