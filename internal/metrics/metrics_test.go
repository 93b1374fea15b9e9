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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.ObservePhase(PhaseSolve, 2*time.Second)
	c.StepDone(1.02, 3.5e11)
	c.StepDone(1.01, 3.4e11)
	c.AddNegative(3)
	c.AddNegative(0)

	if have := testutil.ToFloat64(c.Steps); have != 2 {
		t.Errorf("steps: have %g, want 2", have)
	}
	if have := testutil.ToFloat64(c.Keff); have != 1.01 {
		t.Errorf("keff: have %g, want 1.01", have)
	}
	if have := testutil.ToFloat64(c.NegativeDensities); have != 3 {
		t.Errorf("negative densities: have %g, want 3", have)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	for _, name := range []string{"depcouple_steps_total 2", `depcouple_step_duration_seconds_count{phase="solve"} 1`} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("metrics output is missing %q", name)
		}
	}
}

func TestCollectorRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	a.StepDone(1, 1)
	if have := testutil.ToFloat64(b.Steps); have != 1 {
		t.Errorf("collectors are not shared: have %g", have)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObservePhase(PhaseTotal, time.Second)
	c.StepDone(1, 1)
	c.AddNegative(1)
}
