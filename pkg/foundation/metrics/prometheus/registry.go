// Copyright © 2025 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prometheus

import (
	"sync"
	"time"

	"github.com/conduitio/creditflow/pkg/foundation/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry implements metrics.Registry as well as prometheus.Collector and
// can thus be used as an adapter to deliver creditflow metrics to the
// prometheus client.
type Registry struct {
	labels  map[string]string
	mu      sync.Mutex
	metrics []prometheus.Collector
}

// NewRegistry returns a registry that is responsible for managing a collection
// of metrics. Labels are added as constant labels to all metrics created in
// this registry.
func NewRegistry(labels map[string]string) *Registry {
	return &Registry{labels: labels}
}

var _ metrics.Registry = (*Registry)(nil)
var _ prometheus.Collector = (*Registry)(nil)

func (r *Registry) NewCounter(name, help string) metrics.Counter {
	pc := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: r.labels})
	r.add(pc)
	return counter{pc: pc}
}

func (r *Registry) NewLabeledCounter(name, help string, labels []string) metrics.LabeledCounter {
	pc := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help, ConstLabels: r.labels}, labels)
	r.add(pc)
	return labeledCounter{pc: pc}
}

func (r *Registry) NewGauge(name, help string) metrics.Gauge {
	pg := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: r.labels})
	r.add(pg)
	return gauge{pg: pg}
}

func (r *Registry) NewLabeledGauge(name, help string, labels []string) metrics.LabeledGauge {
	pg := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: r.labels}, labels)
	r.add(pg)
	return labeledGauge{pg: pg}
}

func (r *Registry) NewTimer(name, help string) metrics.Timer {
	ph := prometheus.NewHistogram(r.histogramOpts(name, help))
	r.add(ph)
	return timer{ph: ph}
}

func (r *Registry) NewLabeledTimer(name, help string, labels []string) metrics.LabeledTimer {
	ph := prometheus.NewHistogramVec(r.histogramOpts(name, help), labels)
	r.add(ph)
	return labeledTimer{ph: ph}
}

func (r *Registry) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
		Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
	}
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		m.Describe(ch)
	}
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		m.Collect(ch)
	}
}

func (r *Registry) add(c prometheus.Collector) {
	r.mu.Lock()
	r.metrics = append(r.metrics, c)
	r.mu.Unlock()
}

func sumFloat64(vs ...float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum
}

type counter struct{ pc prometheus.Counter }

func (c counter) Inc(vs ...float64) {
	if len(vs) == 0 {
		c.pc.Inc()
		return
	}
	c.pc.Add(sumFloat64(vs...))
}

type labeledCounter struct{ pc *prometheus.CounterVec }

func (lc labeledCounter) WithValues(vs ...string) metrics.Counter {
	return counter{pc: lc.pc.WithLabelValues(vs...)}
}

type gauge struct{ pg prometheus.Gauge }

func (g gauge) Inc(vs ...float64) {
	if len(vs) == 0 {
		g.pg.Inc()
		return
	}
	g.pg.Add(sumFloat64(vs...))
}

func (g gauge) Dec(vs ...float64) {
	if len(vs) == 0 {
		g.pg.Dec()
		return
	}
	g.pg.Sub(sumFloat64(vs...))
}

func (g gauge) Set(v float64) { g.pg.Set(v) }

type labeledGauge struct{ pg *prometheus.GaugeVec }

func (lg labeledGauge) WithValues(vs ...string) metrics.Gauge {
	return gauge{pg: lg.pg.WithLabelValues(vs...)}
}

type timer struct{ ph prometheus.Observer }

func (t timer) Update(d time.Duration) { t.ph.Observe(d.Seconds()) }

func (t timer) UpdateSince(start time.Time) { t.Update(time.Since(start)) }

type labeledTimer struct{ ph *prometheus.HistogramVec }

func (lt labeledTimer) WithValues(vs ...string) metrics.Timer {
	return timer{ph: lt.ph.WithLabelValues(vs...)}
}
