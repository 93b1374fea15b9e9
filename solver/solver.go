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

// Package solver holds the documents exchanged with an external neutron
// transport solver and the ways of running one.
package solver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogFile receives the output of a solver process in its run directory.
const LogFile = "solver.log"

// A Solver runs a transport calculation on the documents in its run
// directory and reports the resulting tallies. Only the leader worker
// calls Reset and Run; every worker reads Results.
type Solver interface {
	// Reset discards the state of any previous solve.
	Reset(ctx context.Context) error

	// Run performs one solve.
	Run(ctx context.Context) error

	// Results returns the tallies of the latest solve.
	Results(ctx context.Context) (*Results, error)
}

// Exec runs a solver as an external process.
type Exec struct {
	// Command is the program and its arguments.
	Command []string

	// Dir is the run directory holding the input documents.
	Dir string

	// ResultsFile is the file, relative to Dir, where the process writes
	// its tallies. It defaults to ResultsFile.
	ResultsFile string

	Log logrus.FieldLogger
}

func (e *Exec) resultsPath() string {
	name := e.ResultsFile
	if name == "" {
		name = ResultsFile
	}
	return filepath.Join(e.Dir, name)
}

func (e *Exec) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// Reset removes the results of any previous solve.
func (e *Exec) Reset(ctx context.Context) error {
	if err := os.Remove(e.resultsPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("solver: resetting: %v", err)
	}
	return nil
}

// Run executes the command in Dir and waits for it to finish. Output is
// appended to LogFile in Dir.
func (e *Exec) Run(ctx context.Context) error {
	if len(e.Command) == 0 {
		return fmt.Errorf("solver: no solver command configured")
	}
	f, err := os.OpenFile(filepath.Join(e.Dir, LogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("solver: opening log: %v", err)
	}
	defer f.Close()

	cmd := exec.CommandContext(ctx, e.Command[0], e.Command[1:]...)
	cmd.Dir = e.Dir
	cmd.Stdout = f
	cmd.Stderr = f

	start := time.Now()
	e.log().WithField("command", strings.Join(e.Command, " ")).Info("starting solver")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("solver: running %s: %v (see %s)", e.Command[0], err, f.Name())
	}
	e.log().WithField("duration", time.Since(start)).Info("solver finished")
	return nil
}

// Results reads the tallies written by the latest run.
func (e *Exec) Results(ctx context.Context) (*Results, error) {
	return ReadResults(e.resultsPath())
}
