// Copyright 2026 The Retrotable Authors
// This file is part of retrotable.
//
// Retrotable is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Retrotable is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Retrotable. If not, see <http://www.gnu.org/licenses/>.

// Package view implements the view engine: a background worker that pulls
// changes from an upstream Subscribable, dispatches them by action, and
// publishes derived records to the view's own history — so views compose
// into DAGs. SelectView and SumView are the two concrete views; this file
// holds the shared worker/lifecycle base they embed.
package view

import (
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/retrotable/retrotable/column"
	"github.com/retrotable/retrotable/history"
	"github.com/retrotable/retrotable/record"
	"github.com/retrotable/retrotable/retrometrics"
)

// ErrViewInit is returned when a view is constructed over a nil upstream.
var ErrViewInit = errors.New("retrotable: view upstream is not a subscribable")

// ErrValueUninitialized would be returned by a view's accessor if read
// before the worker produced a first result; both SelectView and SumView
// initialize their materialized state before starting their worker, so in
// practice this is unreachable — it is declared for parity with §7's error
// catalogue, which allows for a subclass that skips initialization.
var ErrValueUninitialized = errors.New("retrotable: view value read before worker initialized it")

// Dispatcher is implemented by every concrete view. The worker calls
// exactly one of these per upstream record, in delivery order.
type Dispatcher interface {
	OnInsert(r *record.Record)
	OnDelete(r *record.Record)
	OnErase(time int64, records []*record.Record)
}

// Option configures a View's ambient concerns, distinct from the
// history.Option values that configure its own downstream Substrate.
type Option func(*View)

// WithLogger injects a structured logger used for worker lifecycle and
// dispatch warnings.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(v *View) { v.logger = l }
}

// WithMetrics injects a Prometheus instrument bundle used for worker
// backlog reporting.
func WithMetrics(m *retrometrics.Set) Option {
	return func(v *View) { v.metrics = m }
}

// View is the Subscribable base every concrete view embeds: it holds a
// reference to its upstream and runs the worker loop that drives
// Dispatcher. Construction does not start the worker — the concrete view's
// constructor must call Start once its own state (schema, initial value)
// is fully initialized, since the worker may deliver the upstream's entire
// backlog on its very first subscribe.
type View struct {
	*history.Substrate

	upstream history.Subscribable
	dispatch Dispatcher
	schema   column.Schema
	viewTime int64

	exitRequest chan struct{}
	group       *errgroup.Group
	startOnce   sync.Once
	freeOnce    sync.Once

	logger  *zap.SugaredLogger
	metrics *retrometrics.Set
}

// New constructs a view base bound to upstream, but does not start its
// worker. viewTime is the logical cutoff the concrete view applies to every
// dispatched record; schema is the view's own downstream schema.
// substrateOpts configure the view's own downstream Substrate; opts
// configure the view base itself (logger, metrics).
func New(name string, upstream history.Subscribable, schema column.Schema, viewTime int64, dispatch Dispatcher, substrateOpts []history.Option, opts ...Option) (*View, error) {
	if upstream == nil {
		return nil, ErrViewInit
	}
	v := &View{
		upstream:    upstream,
		dispatch:    dispatch,
		schema:      schema,
		viewTime:    viewTime,
		exitRequest: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.Substrate = history.NewSubstrate(name, substrateOpts...)
	return v, nil
}

// Schema returns the view's own downstream schema.
func (v *View) Schema() column.Schema { return v.schema }

// Time returns the view's logical cutoff.
func (v *View) Time() int64 { return v.viewTime }

// Start launches the worker goroutine, paired with its exit signal via an
// errgroup.Group so Free can join it with Wait. It must be called exactly
// once, after the concrete view has finished initializing its own state.
func (v *View) Start() {
	v.startOnce.Do(func() {
		v.group = new(errgroup.Group)
		v.group.Go(func() error {
			v.run()
			return nil
		})
	})
}

// run is the worker loop: subscribe with exponential backoff, dispatch
// every record in delivery order, repeat until exit is requested.
func (v *View) run() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0 // never stop retrying: "no changes" isn't an error

	var cp *history.Checkpoint
	for {
		select {
		case <-v.exitRequest:
			if cp != nil {
				v.upstream.Unsubscribe(*cp)
			}
			return
		default:
		}

		timeout := bo.NextBackOff()
		newCp, records, err := v.upstream.Subscribe(cp, &timeout)
		if err != nil {
			if v.logger != nil {
				v.logger.Warnw("upstream subscribe failed", "view", v.Name(), "error", pkgerrors.WithMessage(err, "view worker"))
			}
			continue
		}
		cp = &newCp

		if len(records) == 0 {
			continue
		}
		bo.Reset()

		for _, r := range records {
			v.dispatchOne(r)
		}
		if v.metrics != nil {
			v.metrics.SetWorkerBacklog(len(records))
		}
	}
}

func (v *View) dispatchOne(r *record.Record) {
	if v.logger != nil {
		v.logger.Debugw("dispatching record", "view", v.Name(), "action", r.Action(), "time", r.Time())
	}
	switch r.Action() {
	case record.Insert:
		v.dispatch.OnInsert(r)
	case record.Delete:
		v.dispatch.OnDelete(r)
	case record.Erase:
		v.dispatch.OnErase(r.Time(), r.Erased())
	default:
		if v.logger != nil {
			v.logger.Warnw("unknown record action, skipping", "view", v.Name(), "action", r.Action())
		}
	}
}

// Free requests the worker to exit, joins it (which also unsubscribes from
// upstream, done by the worker itself on its way out), and then drains
// this view's own downstream subscribers via the embedded Substrate's Free.
func (v *View) Free() {
	v.freeOnce.Do(func() {
		close(v.exitRequest)
	})
	if v.group != nil {
		v.group.Wait() //nolint:errcheck // run() never returns a non-nil error
	}
	v.Substrate.Free()
}

var _ history.Subscribable = (*View)(nil)
