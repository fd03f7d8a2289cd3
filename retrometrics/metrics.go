// Copyright 2026 The Retrotable Authors
// This file is part of retrotable.
//
// Retrotable is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package retrometrics instruments Subscribables (tables and views) with
// Prometheus metrics, the way erigon-lib/kv instruments its database
// transactions and page operations.
package retrometrics

import "github.com/prometheus/client_golang/prometheus"

// Set is a per-Subscribable bundle of instruments. A nil *Set is valid and
// every method on it is a no-op, so instrumentation is opt-in.
type Set struct {
	HistoryLength     prometheus.Gauge
	ActiveCheckpoints prometheus.Gauge
	TruncationsTotal  prometheus.Counter
	RecordsAppended   prometheus.Counter
	WorkerBacklog     prometheus.Gauge
}

// NewSet registers a fresh instrument bundle under the given label, e.g. the
// Subscribable's kind ("table", "select", "sum") and name.
func NewSet(registry prometheus.Registerer, kind, name string) *Set {
	labels := prometheus.Labels{"kind": kind, "name": name}
	s := &Set{
		HistoryLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "retrotable_history_length",
			Help:        "Number of slots currently retained in a Subscribable's history log.",
			ConstLabels: labels,
		}),
		ActiveCheckpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "retrotable_active_checkpoints",
			Help:        "Number of outstanding (referenced) checkpoints on a Subscribable.",
			ConstLabels: labels,
		}),
		TruncationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "retrotable_truncations_total",
			Help:        "Number of times the history prefix was truncated.",
			ConstLabels: labels,
		}),
		RecordsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "retrotable_records_appended_total",
			Help:        "Number of records appended to history.",
			ConstLabels: labels,
		}),
		WorkerBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "retrotable_worker_backlog",
			Help:        "Number of records a view's worker applied in its most recent batch.",
			ConstLabels: labels,
		}),
	}
	if registry != nil {
		registry.MustRegister(
			s.HistoryLength, s.ActiveCheckpoints, s.TruncationsTotal,
			s.RecordsAppended, s.WorkerBacklog,
		)
	}
	return s
}

// SetHistoryLength reports the current length of the history log.
func (s *Set) SetHistoryLength(n int) {
	if s != nil {
		s.HistoryLength.Set(float64(n))
	}
}

// SetActiveCheckpoints reports the number of outstanding checkpoints.
func (s *Set) SetActiveCheckpoints(n int) {
	if s != nil {
		s.ActiveCheckpoints.Set(float64(n))
	}
}

// IncTruncations reports a truncation of the history prefix.
func (s *Set) IncTruncations() {
	if s != nil {
		s.TruncationsTotal.Inc()
	}
}

// AddRecordsAppended reports n records appended to history.
func (s *Set) AddRecordsAppended(n int) {
	if s != nil {
		s.RecordsAppended.Add(float64(n))
	}
}

// SetWorkerBacklog reports the size of a view worker's most recent batch.
func (s *Set) SetWorkerBacklog(n int) {
	if s != nil {
		s.WorkerBacklog.Set(float64(n))
	}
}
