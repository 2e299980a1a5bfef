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

// Package metrics holds metric definitions that are independent of a metrics
// backend. Metrics are declared as package level variables and start
// collecting values once a Registry is registered.
package metrics

import (
	"sync"
	"time"
)

// Registry is an object that can create and collect metrics.
type Registry interface {
	NewCounter(name, help string) Counter
	NewGauge(name, help string) Gauge
	NewTimer(name, help string) Timer

	NewLabeledCounter(name, help string, labels []string) LabeledCounter
	NewLabeledGauge(name, help string, labels []string) LabeledGauge
	NewLabeledTimer(name, help string, labels []string) LabeledTimer
}

// Counter is a metric that can only increment its current count.
type Counter interface {
	// Inc adds Sum(vs) to the counter. Sum(vs) must be positive.
	//
	// If len(vs) == 0, increments the counter by 1.
	Inc(vs ...float64)
}

// LabeledCounter is a counter that must have labels populated before use.
type LabeledCounter interface {
	WithValues(vs ...string) Counter
}

// Gauge is a metric that allows incrementing and decrementing a value.
type Gauge interface {
	// Inc adds Sum(vs) to the gauge. If len(vs) == 0, increments by 1.
	Inc(vs ...float64)
	// Dec subtracts Sum(vs) from the gauge. If len(vs) == 0, decrements by 1.
	Dec(vs ...float64)
	// Set replaces the gauge's current value with the provided value.
	Set(float64)
}

// LabeledGauge describes a gauge that must have values populated before use.
type LabeledGauge interface {
	WithValues(labels ...string) Gauge
}

// Timer is a metric that allows collecting the duration of an action in
// seconds.
type Timer interface {
	// Update records a duration.
	Update(time.Duration)
	// UpdateSince will add the duration from the provided starting time to the
	// timer's summary.
	UpdateSince(time.Time)
}

// LabeledTimer is a timer that must have label values populated before use.
type LabeledTimer interface {
	WithValues(labels ...string) Timer
}

var global = struct {
	m          sync.Mutex
	metrics    []metric
	registries []Registry
}{}

// Register adds a Registry to the global registries. Any metrics that were
// created prior or after this call will also be created in this registry.
func Register(r Registry) {
	global.m.Lock()
	defer global.m.Unlock()
	global.registries = append(global.registries, r)
	for _, mt := range global.metrics {
		mt.New(r)
	}
}

func NewCounter(name, help string) Counter {
	mt := &counter{spec: spec{name: name, help: help}}
	addMetric(mt)
	return mt
}

func NewGauge(name, help string) Gauge {
	mt := &gauge{spec: spec{name: name, help: help}}
	addMetric(mt)
	return mt
}

func NewTimer(name, help string) Timer {
	mt := &timer{spec: spec{name: name, help: help}}
	addMetric(mt)
	return mt
}

func NewLabeledCounter(name, help string, labels []string) LabeledCounter {
	mt := &labeledCounter{spec: spec{name: name, help: help, labels: labels}}
	addMetric(mt)
	return mt
}

func NewLabeledGauge(name, help string, labels []string) LabeledGauge {
	mt := &labeledGauge{spec: spec{name: name, help: help, labels: labels}}
	addMetric(mt)
	return mt
}

func NewLabeledTimer(name, help string, labels []string) LabeledTimer {
	mt := &labeledTimer{spec: spec{name: name, help: help, labels: labels}}
	addMetric(mt)
	return mt
}

func addMetric(mt metric) {
	global.m.Lock()
	defer global.m.Unlock()
	global.metrics = append(global.metrics, mt)
	for _, r := range global.registries {
		mt.New(r)
	}
}

type metric interface {
	New(Registry)
}

type spec struct {
	name   string
	help   string
	labels []string
}

// snapshot copies the backing metrics so that fan out does not race with
// registries added later.
func snapshot[T any](m *sync.Mutex, s []T) []T {
	m.Lock()
	defer m.Unlock()
	out := make([]T, len(s))
	copy(out, s)
	return out
}

type counter struct {
	spec
	m       sync.Mutex
	metrics []Counter
}

func (mt *counter) New(r Registry) {
	mt.m.Lock()
	defer mt.m.Unlock()
	mt.metrics = append(mt.metrics, r.NewCounter(mt.name, mt.help))
}

func (mt *counter) Inc(vs ...float64) {
	for _, m := range snapshot(&mt.m, mt.metrics) {
		m.Inc(vs...)
	}
}

type labeledCounter struct {
	spec
	m       sync.Mutex
	metrics []LabeledCounter
}

func (mt *labeledCounter) New(r Registry) {
	mt.m.Lock()
	defer mt.m.Unlock()
	mt.metrics = append(mt.metrics, r.NewLabeledCounter(mt.name, mt.help, mt.labels))
}

func (mt *labeledCounter) WithValues(vs ...string) Counter {
	ms := snapshot(&mt.m, mt.metrics)
	c := &counter{spec: mt.spec, metrics: make([]Counter, len(ms))}
	for i, m := range ms {
		c.metrics[i] = m.WithValues(vs...)
	}
	return c
}

type gauge struct {
	spec
	m       sync.Mutex
	metrics []Gauge
}

func (mt *gauge) New(r Registry) {
	mt.m.Lock()
	defer mt.m.Unlock()
	mt.metrics = append(mt.metrics, r.NewGauge(mt.name, mt.help))
}

func (mt *gauge) Inc(vs ...float64) {
	for _, m := range snapshot(&mt.m, mt.metrics) {
		m.Inc(vs...)
	}
}

func (mt *gauge) Dec(vs ...float64) {
	for _, m := range snapshot(&mt.m, mt.metrics) {
		m.Dec(vs...)
	}
}

func (mt *gauge) Set(f float64) {
	for _, m := range snapshot(&mt.m, mt.metrics) {
		m.Set(f)
	}
}

type labeledGauge struct {
	spec
	m       sync.Mutex
	metrics []LabeledGauge
}

func (mt *labeledGauge) New(r Registry) {
	mt.m.Lock()
	defer mt.m.Unlock()
	mt.metrics = append(mt.metrics, r.NewLabeledGauge(mt.name, mt.help, mt.labels))
}

func (mt *labeledGauge) WithValues(vs ...string) Gauge {
	ms := snapshot(&mt.m, mt.metrics)
	g := &gauge{spec: mt.spec, metrics: make([]Gauge, len(ms))}
	for i, m := range ms {
		g.metrics[i] = m.WithValues(vs...)
	}
	return g
}

type timer struct {
	spec
	m       sync.Mutex
	metrics []Timer
}

func (mt *timer) New(r Registry) {
	mt.m.Lock()
	defer mt.m.Unlock()
	mt.metrics = append(mt.metrics, r.NewTimer(mt.name, mt.help))
}

func (mt *timer) Update(d time.Duration) {
	for _, m := range snapshot(&mt.m, mt.metrics) {
		m.Update(d)
	}
}

func (mt *timer) UpdateSince(t time.Time) {
	mt.Update(time.Since(t))
}

type labeledTimer struct {
	spec
	m       sync.Mutex
	metrics []LabeledTimer
}

func (mt *labeledTimer) New(r Registry) {
	mt.m.Lock()
	defer mt.m.Unlock()
	mt.metrics = append(mt.metrics, r.NewLabeledTimer(mt.name, mt.help, mt.labels))
}

func (mt *labeledTimer) WithValues(vs ...string) Timer {
	ms := snapshot(&mt.m, mt.metrics)
	t := &timer{spec: mt.spec, metrics: make([]Timer, len(ms))}
	for i, m := range ms {
		t.metrics[i] = m.WithValues(vs...)
	}
	return t
}
