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

// Package history implements the Subscribable substrate: the append-only
// history log, its checkpoint/epoch bookkeeping, and the condition-variable
// pull API every Table and View is built on.
package history

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/retrotable/retrotable/internal/xrand"
	"github.com/retrotable/retrotable/record"
	"github.com/retrotable/retrotable/retrometrics"
)

// Checkpoint is an opaque, reference-counted position in a Subscribable's
// history.
type Checkpoint uint64

// Subscribable is the contract every Table and View satisfies: a pull API
// over an append-only change log. Tables publish synchronously on the
// calling goroutine; Views publish from their worker goroutine.
type Subscribable interface {
	Subscribe(checkpoint *Checkpoint, timeout *time.Duration) (Checkpoint, []*record.Record, error)
	Unsubscribe(checkpoint Checkpoint)
	Free()
	Name() string
}

type checkpointEntry struct {
	stamp    int64
	refcount int
}

// Substrate is the shared implementation behind every Subscribable. A
// Table or View embeds *Substrate so Subscribe/Unsubscribe/Free/Name are
// promoted, and drives it with Append/Remove from its own mutators or
// worker dispatch.
type Substrate struct {
	mu   sync.Mutex
	cond *sync.Cond

	name string

	history []*record.Record // nil slot == erased
	epoch   int64            // stamp of history[0]
	closing bool

	checkpoints       map[Checkpoint]*checkpointEntry
	stampToCheckpoint map[int64]Checkpoint

	// allRecordsFunc, when set, answers subscribe(nil) with the owner's
	// materialized live state (e.g. a Table's current buckets, a View's
	// matched-record list) instead of a raw scan of history, which may
	// still hold stale DELETE slots for rows no longer live. Views set
	// this after their subclass-specific state is initialized, not at
	// construction, per the worker start-order requirement in §4.E.
	allRecordsFunc func() []*record.Record

	logger  *zap.SugaredLogger
	metrics *retrometrics.Set
}

// Option configures a Substrate at construction.
type Option func(*Substrate)

// WithLogger injects a structured logger. The default is a no-op.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Substrate) { s.logger = l }
}

// WithMetrics injects a Prometheus instrument bundle. A nil Set (the
// default) makes every metrics call a no-op.
func WithMetrics(m *retrometrics.Set) Option {
	return func(s *Substrate) { s.metrics = m }
}

// WithAllRecordsFunc sets the materialized-state callback at construction
// time, for owners (Tables) whose live state is available immediately.
func WithAllRecordsFunc(fn func() []*record.Record) Option {
	return func(s *Substrate) { s.allRecordsFunc = fn }
}

// NewSubstrate constructs an empty Substrate identified by name (used in
// logs, metrics labels, and debug String()s).
func NewSubstrate(name string, opts ...Option) *Substrate {
	s := &Substrate{
		name:              name,
		checkpoints:       make(map[Checkpoint]*checkpointEntry),
		stampToCheckpoint: make(map[int64]Checkpoint),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the Substrate's identifying name.
func (s *Substrate) Name() string { return s.name }

// SetAllRecordsFunc sets the materialized-state callback after
// construction. Views call this once their subclass-specific state (matched
// list, current sum record, ...) is initialized, immediately before
// starting their worker.
func (s *Substrate) SetAllRecordsFunc(fn func() []*record.Record) {
	s.mu.Lock()
	s.allRecordsFunc = fn
	s.mu.Unlock()
}

// Lock and Unlock expose the substrate's single mutex directly, so an
// owner (Table, View) can hold it across a multi-step mutator — updating
// its own materialized state and appending to history as one atomic step —
// without this package needing to know what that state is. This is the Go
// expression of §5's single-mutex invariant: the source's Table inherits
// its lock from Subscribable and reuses it for exactly this purpose.
func (s *Substrate) Lock()   { s.mu.Lock() }
func (s *Substrate) Unlock() { s.mu.Unlock() }

// Append adds records to history in one atomic step and wakes any blocked
// subscribers.
func (s *Substrate) Append(records ...*record.Record) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	s.AppendLocked(records...)
	s.mu.Unlock()
}

// AppendLocked is Append for a caller that already holds the lock via
// Lock(), e.g. a Table mutator updating its own buckets in the same
// critical section.
func (s *Substrate) AppendLocked(records ...*record.Record) {
	if len(records) == 0 {
		return
	}
	s.history = append(s.history, records...)
	length := len(s.history)
	s.cond.Broadcast()

	if s.metrics != nil {
		s.metrics.AddRecordsAppended(len(records))
		s.metrics.SetHistoryLength(length)
	}
	if s.logger != nil {
		s.logger.Debugw("appended to history", "substrate", s.name, "count", len(records), "length", length)
	}
}

// Remove nils out the history slots holding records and appends a single
// ERASE record citing them at time, satisfying §4.C's dual encoding: a
// downstream worker both skips the now-absent slots and observes the
// erasure event. The ERASE record cites every record passed; a record whose
// slot is no longer in history (dropped by truncation, or already erased)
// has no slot to nil out but is still cited, so a downstream view that
// consumed it before truncation still observes its erasure.
func (s *Substrate) Remove(time int64, records ...*record.Record) *record.Record {
	s.mu.Lock()
	erasure := s.RemoveLocked(time, records...)
	s.mu.Unlock()
	return erasure
}

// RemoveLocked is Remove for a caller that already holds the lock via
// Lock().
func (s *Substrate) RemoveLocked(time int64, records ...*record.Record) *record.Record {
	removed := make([]*record.Record, 0, len(records))
	for _, target := range records {
		for i, r := range s.history {
			if r == target {
				removed = append(removed, r)
				s.history[i] = nil
				break
			}
		}
	}
	erasure := record.NewErasure(s, time, records...)
	s.history = append(s.history, erasure)
	length := len(s.history)
	s.cond.Broadcast()

	if s.metrics != nil {
		s.metrics.SetHistoryLength(length)
	}
	if s.logger != nil {
		s.logger.Debugw("erased from history", "substrate", s.name, "count", len(removed), "time", time)
	}
	return erasure
}

// Subscribe implements the pull API described in §4.C:
//
//   - checkpoint == nil, or unknown to this substrate: returns the owner's
//     full materialized state and a fresh checkpoint anchored at the
//     current tail. Never blocks.
//   - otherwise: blocks on the condition variable until new history is
//     available past checkpoint's stamp, or timeout elapses. A timeout
//     returns the same checkpoint and an empty batch, consuming no
//     reference.
func (s *Substrate) Subscribe(checkpoint *Checkpoint, timeout *time.Duration) (Checkpoint, []*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if checkpoint == nil {
		return s.subscribeFreshLocked()
	}
	entry, ok := s.checkpoints[*checkpoint]
	if !ok {
		return s.subscribeFreshLocked()
	}

	var deadline time.Time
	hasDeadline := timeout != nil
	if hasDeadline {
		deadline = time.Now().Add(*timeout)
	}
	for entry.stamp >= s.tailStampLocked() && !s.closing {
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return *checkpoint, nil, nil
			}
			s.waitTimeoutLocked(remaining)
		} else {
			s.cond.Wait()
		}
	}
	if s.closing {
		return *checkpoint, nil, nil
	}

	oldStamp := entry.stamp
	newToken, newEntry := s.mintOrReuseLocked()
	newEntry.refcount++
	window := s.windowLocked(oldStamp, newEntry.stamp)
	s.releaseLocked(*checkpoint)

	if s.metrics != nil {
		s.metrics.SetActiveCheckpoints(len(s.checkpoints))
	}
	return newToken, window, nil
}

func (s *Substrate) subscribeFreshLocked() (Checkpoint, []*record.Record, error) {
	token, entry := s.mintOrReuseLocked()
	entry.refcount++

	var out []*record.Record
	if s.allRecordsFunc != nil {
		out = s.allRecordsFunc()
	} else {
		out = s.windowLocked(s.epoch-1, s.tailStampLocked())
	}
	if s.metrics != nil {
		s.metrics.SetActiveCheckpoints(len(s.checkpoints))
	}
	return token, out, nil
}

// Unsubscribe releases a checkpoint reference, truncating history if it
// was the last reference to the oldest still-live stamp.
func (s *Substrate) Unsubscribe(checkpoint Checkpoint) {
	s.mu.Lock()
	s.releaseLocked(checkpoint)
	count := len(s.checkpoints)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetActiveCheckpoints(count)
	}
}

// Free wakes every blocked subscriber and waits until no checkpoint
// reference remains outstanding.
func (s *Substrate) Free() {
	s.mu.Lock()
	s.closing = true
	s.cond.Broadcast()
	for len(s.checkpoints) > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Infow("substrate freed", "substrate", s.name)
	}
}

// --- internal helpers; all assume s.mu is already held ---

func (s *Substrate) tailStampLocked() int64 {
	return s.epoch + int64(len(s.history))
}

// windowLocked returns the non-erased records in the half-open stamp range
// (oldStamp, newStamp]. Stamps count records, not index them (tailStampLocked
// is epoch + len(history)), so the record just past oldStamp sits at index
// oldStamp - epoch, not oldStamp + 1 - epoch.
func (s *Substrate) windowLocked(oldStamp, newStamp int64) []*record.Record {
	start := oldStamp - s.epoch
	if start < 0 {
		start = 0
	}
	end := newStamp - s.epoch
	if end > int64(len(s.history)) {
		end = int64(len(s.history))
	}
	if end < start {
		return nil
	}
	out := make([]*record.Record, 0, end-start)
	for i := start; i < end; i++ {
		if s.history[i] != nil {
			out = append(out, s.history[i])
		}
	}
	return out
}

// mintOrReuseLocked returns the checkpoint anchored at the current tail,
// minting a fresh random token if none exists yet.
func (s *Substrate) mintOrReuseLocked() (Checkpoint, *checkpointEntry) {
	stamp := s.tailStampLocked()
	if tok, ok := s.stampToCheckpoint[stamp]; ok {
		return tok, s.checkpoints[tok]
	}
	var tok Checkpoint
	for {
		tok = Checkpoint(xrand.MustUint64())
		if _, collide := s.checkpoints[tok]; !collide {
			break
		}
	}
	entry := &checkpointEntry{stamp: stamp}
	s.checkpoints[tok] = entry
	s.stampToCheckpoint[stamp] = tok
	return tok, entry
}

func (s *Substrate) waitTimeoutLocked(d time.Duration) {
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()
	s.cond.Wait()
}

func (s *Substrate) releaseLocked(token Checkpoint) {
	entry, ok := s.checkpoints[token]
	if !ok {
		return
	}
	entry.refcount--
	if entry.refcount > 0 {
		return
	}
	delete(s.checkpoints, token)
	delete(s.stampToCheckpoint, entry.stamp)
	s.truncateLocked()
	s.cond.Broadcast()
}

// truncateLocked advances epoch to the oldest still-referenced stamp and
// drops the history prefix before it. With no checkpoints outstanding at
// all, nothing needs the raw log anymore — the owner's own materialized
// state (via allRecordsFunc) serves any future fresh subscriber — so the
// whole log is dropped.
func (s *Substrate) truncateLocked() {
	if len(s.stampToCheckpoint) == 0 {
		if len(s.history) == 0 {
			return
		}
		s.epoch = s.tailStampLocked()
		s.history = nil
		if s.metrics != nil {
			s.metrics.IncTruncations()
			s.metrics.SetHistoryLength(0)
		}
		return
	}
	min, first := int64(0), true
	for stamp := range s.stampToCheckpoint {
		if first || stamp < min {
			min, first = stamp, false
		}
	}
	if min <= s.epoch {
		return
	}
	dropped := min - s.epoch
	trimmed := make([]*record.Record, int64(len(s.history))-dropped)
	copy(trimmed, s.history[dropped:])
	s.history = trimmed
	s.epoch = min
	if s.metrics != nil {
		s.metrics.IncTruncations()
		s.metrics.SetHistoryLength(len(s.history))
	}
}

var _ Subscribable = (*Substrate)(nil)
