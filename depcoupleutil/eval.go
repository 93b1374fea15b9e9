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

package depcoupleutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/lnashier/viper"
	"github.com/opendeplete/depcouple"
	"github.com/opendeplete/depcouple/comm"
	"github.com/opendeplete/depcouple/internal/metrics"
	"github.com/opendeplete/depcouple/solver"
	"github.com/sirupsen/logrus"
)

// newSolver creates the solver each worker uses.
var newSolver = func(command []string, dir string, log logrus.FieldLogger) solver.Solver {
	return &solver.Exec{Command: command, Dir: dir, Log: log}
}

// Eval runs one coupled step as configured in cfg and saves the
// normalized reaction rates. The leader prints the eigenvalue to out.
func Eval(ctx context.Context, cfg *viper.Viper, out io.Writer) error {
	s, err := SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	geomPath, err := checkGeometry(cfg.GetString("Geometry"))
	if err != nil {
		return err
	}
	g, err := depcouple.LoadGeometry(geomPath)
	if err != nil {
		return err
	}
	command, err := solverCommand(cfg.Get("SolverCommand"))
	if err != nil {
		return err
	}
	ratesPath := checkRatesFile(cfg.GetString("RatesFile"), s.RunDir)

	if cfg.GetInt("rank") == comm.LeaderRank {
		if s.Metrics, err = metrics.NewCollector(nil); err != nil {
			return err
		}
		if addr := cfg.GetString("MetricsAddress"); addr != "" {
			srv := serveMetrics(addr, s.Metrics)
			defer srv.Close()
		}
	}

	return runWorkers(cfg, func(c comm.Communicator) error {
		slv := newSolver(command, s.RunDir, s.Log)
		return evalWorker(ctx, c, g, s, slv, ratesPath, out)
	})
}

func evalWorker(ctx context.Context, c comm.Communicator, g *depcouple.Geometry, s *depcouple.Settings, slv solver.Solver, ratesPath string, out io.Writer) error {
	o, err := depcouple.NewOperator(ctx, c, g, s, slv)
	if err != nil {
		return err
	}
	keff, rates, seed, err := o.Eval(ctx, o.InitialCondition())
	if err != nil {
		return err
	}
	if err := o.WriteRates(ratesPath, keff, seed, rates); err != nil {
		return err
	}
	if comm.RoleOf(c) == comm.Leader {
		logrus.WithField("file", ratesPath).Info("saved reaction rates")
		fmt.Fprintf(out, "keff = %.6f (seed %d)\n", keff, seed)
	}
	return nil
}

// Topology connects the workers configured in cfg and has the leader
// print how they are spread over nodes to out.
func Topology(cfg *viper.Viper, out io.Writer) error {
	return runWorkers(cfg, func(c comm.Communicator) error {
		nodes, npernode, err := comm.NodeTopology(c)
		if err != nil {
			return err
		}
		if comm.RoleOf(c) == comm.Leader {
			fmt.Fprintf(out, "%d workers on %d nodes, %d per node\n", c.Size(), nodes, npernode)
		}
		return nil
	})
}

// runWorkers runs f on every worker. With a size greater than 1, this
// process is the single worker of the configured rank and talks to the
// others over RPC. Otherwise the configured number of workers run as
// goroutines. A worker that fails aborts the others.
func runWorkers(cfg *viper.Viper, f func(c comm.Communicator) error) error {
	if size := cfg.GetInt("size"); size > 1 {
		c, err := connect(cfg, size)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := f(c); err != nil {
			c.Abort(err)
			return err
		}
		return nil
	}

	n := cfg.GetInt("workers")
	if n < 1 {
		return fmt.Errorf("depcouple: the number of workers must be at least 1 but is %d", n)
	}
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i, c := range comm.NewLocal(n) {
		wg.Add(1)
		go func(i int, c *comm.Local) {
			defer wg.Done()
			if errs[i] = f(c); errs[i] != nil {
				c.Abort(errs[i])
			}
		}(i, c)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// connect starts or joins a distributed run.
func connect(cfg *viper.Viper, size int) (*comm.RPC, error) {
	rank := cfg.GetInt("rank")
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("depcouple: rank %d is out of range for %d workers", rank, size)
	}
	listen := cfg.GetString("listen")
	if rank == comm.LeaderRank {
		return comm.Serve(size, listen)
	}
	leader := cfg.GetString("leader")
	if leader == "" {
		return nil, fmt.Errorf("depcouple: rank %d needs the address of the leader", rank)
	}
	return comm.Join(rank, leader, listen)
}

// serveMetrics serves the step metrics on addr.
func serveMetrics(addr string, m *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metrics server stopped")
		}
	}()
	logrus.WithField("addr", addr).Info("serving metrics")
	return srv
}
