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

// Package metrics holds the Prometheus collectors for coupled steps.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Step phases recorded in StepDuration.
const (
	PhaseSolve  = "solve"
	PhaseUnpack = "unpack"
	PhaseTotal  = "total"
)

// Collector bundles the coupled-step metrics. A nil *Collector records
// nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	StepDuration      *prometheus.HistogramVec
	Steps             prometheus.Counter
	Keff              prometheus.Gauge
	Power             prometheus.Gauge
	NegativeDensities prometheus.Counter
}

// NewCollector registers the step metrics against reg, defaulting to the
// global Prometheus registry when reg is nil. Registering twice against
// the same registry returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "depcouple_step_duration_seconds",
		Help:    "Wall time of each coupled step phase in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"phase"}), "depcouple_step_duration_seconds")
	if err != nil {
		return nil, err
	}
	steps, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "depcouple_steps_total",
		Help: "Number of completed coupled steps.",
	}), "depcouple_steps_total")
	if err != nil {
		return nil, err
	}
	keff, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "depcouple_keff",
		Help: "Eigenvalue of the latest solve.",
	}), "depcouple_keff")
	if err != nil {
		return nil, err
	}
	power, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "depcouple_unnormalized_power",
		Help: "Global fission power of the latest solve before normalization, in MeV per source particle.",
	}), "depcouple_unnormalized_power")
	if err != nil {
		return nil, err
	}
	negative, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "depcouple_negative_densities_total",
		Help: "Number of significantly negative densities clamped to zero.",
	}), "depcouple_negative_densities_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		StepDuration:      duration,
		Steps:             steps,
		Keff:              keff,
		Power:             power,
		NegativeDensities: negative,
	}, nil
}

// Handler exposes the registry as a /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObservePhase records the duration of one step phase.
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	if c == nil || c.StepDuration == nil {
		return
	}
	c.StepDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// StepDone records a completed step.
func (c *Collector) StepDone(keff, power float64) {
	if c == nil {
		return
	}
	if c.Steps != nil {
		c.Steps.Inc()
	}
	if c.Keff != nil {
		c.Keff.Set(keff)
	}
	if c.Power != nil {
		c.Power.Set(power)
	}
}

// AddNegative counts n clamped negative densities.
func (c *Collector) AddNegative(n int) {
	if c == nil || c.NegativeDensities == nil || n <= 0 {
		return
	}
	c.NegativeDensities.Add(float64(n))
}

func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return col, fmt.Errorf("metrics: collector %s already registered with incompatible type", name)
		}
		return col, err
	}
	return col, nil
}
