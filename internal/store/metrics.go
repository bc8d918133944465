// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instrumentation for the resolver engine (C5) and container
// mutation path, registered through promauto on the default
// Prometheus registry when the package is initialised.
var (
	resolverCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bag",
		Subsystem: "resolver",
		Name:      "cache_hits_total",
		Help:      "Resolver loads served from a node's cached value.",
	})
	resolverCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bag",
		Subsystem: "resolver",
		Name:      "cache_misses_total",
		Help:      "Resolver loads that invoked Load because no cached value was valid.",
	})
	resolverSingleFlightWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bag",
		Subsystem: "resolver",
		Name:      "single_flight_waits_total",
		Help:      "Times a caller waited for an in-flight Load instead of starting its own.",
	})
	resolverLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bag",
		Subsystem: "resolver",
		Name:      "load_duration_seconds",
		Help:      "Wall-clock time spent inside a resolver's Load call.",
		Buckets:   prometheus.DefBuckets,
	})
	containerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bag",
		Subsystem: "container",
		Name:      "mutations_total",
		Help:      "Container mutations by kind (insert, update, delete).",
	}, []string{"kind"})
)

func observeLoadDuration(start time.Time) {
	resolverLoadDuration.Observe(time.Since(start).Seconds())
}

func recordMutation(kind EventKind) {
	containerMutations.WithLabelValues(string(kind)).Inc()
}
