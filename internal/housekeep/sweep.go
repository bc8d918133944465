// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package housekeep periodically sweeps stale non-read-only resolver
// caches out of a Store, bounding its memory footprint without
// affecting read semantics (spec.md §4.5's TTL stays lazily correct
// either way). Grounded on the teacher's internal/taskManager package:
// one gocron/v2 scheduler per Sweeper, one job per concern, Start/
// Shutdown lifecycle.
package housekeep

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/genropy/genro-bag-sub000/internal/store"
	"github.com/genropy/genro-bag-sub000/pkg/log"
)

// Sweeper owns the background gocron scheduler running the sweep job.
type Sweeper struct {
	scheduler gocron.Scheduler
	root      *store.Container
	interval  time.Duration
	grace     time.Duration
}

// New builds a Sweeper over root. interval is how often the sweep
// runs; grace is how long a non-read-only resolver's cache may sit
// past its own cache_time before the sweep evicts it.
func New(root *store.Container, interval, grace time.Duration) (*Sweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Sweeper{scheduler: s, root: root, interval: interval, grace: grace}, nil
}

// Start registers the sweep job and starts the scheduler.
func (sw *Sweeper) Start() error {
	_, err := sw.scheduler.NewJob(
		gocron.DurationJob(sw.interval),
		gocron.NewTask(sw.sweep))
	if err != nil {
		return err
	}
	sw.scheduler.Start()
	return nil
}

// Shutdown stops the scheduler, letting any in-flight sweep finish.
func (sw *Sweeper) Shutdown() error {
	return sw.scheduler.Shutdown()
}

func (sw *Sweeper) sweep() {
	evicted := 0
	sw.root.Walk(func(path string, n *store.Node) bool {
		if store.StaleNonReadOnly(n, sw.grace) {
			store.ResetNodeCache(n)
			evicted++
		}
		return true
	})
	if evicted > 0 {
		log.Debugf("housekeep: evicted %d stale resolver cache(s)", evicted)
	}
}
