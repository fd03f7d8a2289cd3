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

// Package table implements Table: a schema plus time-bucketed records,
// whose mutators publish synchronously into the Subscribable history that
// views observe.
package table

import (
	"errors"
	"fmt"

	"github.com/retrotable/retrotable/column"
	"github.com/retrotable/retrotable/history"
	"github.com/retrotable/retrotable/predicate"
	"github.com/retrotable/retrotable/record"
	"github.com/retrotable/retrotable/retrometrics"
	"github.com/retrotable/retrotable/view"
)

// ErrInvalidField is returned by a mutator given a field not in the
// schema.
var ErrInvalidField = errors.New("retrotable: field not declared in schema")

// ErrTableInit re-exports column.ErrTableInit so callers need import only
// this package for the common failure modes.
var ErrTableInit = column.ErrTableInit

// Table holds a schema and a time-bucketed record set, and publishes every
// mutation into its own Subscribable history so views can observe it.
type Table struct {
	*history.Substrate

	schema  column.Schema
	name    string
	buckets map[int64][]*record.Record
}

// NewTable constructs a Table from a field declaration order and their
// column types. Construction fails with ErrTableInit on a duplicate field
// name or an undeclared type.
func NewTable(name string, fields []string, types map[string]column.Type, metrics *retrometrics.Set, opts ...history.Option) (*Table, error) {
	schema, err := column.NewSchema(fields, types)
	if err != nil {
		return nil, err
	}
	t := &Table{
		schema:  schema,
		name:    name,
		buckets: make(map[int64][]*record.Record),
	}
	allOpts := append([]history.Option{history.WithMetrics(metrics)}, opts...)
	allOpts = append(allOpts, history.WithAllRecordsFunc(t.allRecordsLocked))
	t.Substrate = history.NewSubstrate(name, allOpts...)
	return t, nil
}

// Schema returns the table's column schema.
func (t *Table) Schema() column.Schema { return t.schema }

// allRecordsLocked is the table's AllRecordsFunc: it is only ever invoked
// by the Substrate while its own lock is held (from a Subscribe with a nil
// or unknown checkpoint), which is also the only lock protecting
// t.buckets, so no separate locking is needed here.
func (t *Table) allRecordsLocked() []*record.Record {
	out := make([]*record.Record, 0)
	for _, bucket := range t.orderedBucketTimesLocked() {
		out = append(out, t.buckets[bucket]...)
	}
	return out
}

// orderedBucketTimesLocked returns bucket keys in ascending time order.
// Table buckets are few relative to the records within them, so a sort on
// every read is simpler than maintaining a separate ordered index.
func (t *Table) orderedBucketTimesLocked() []int64 {
	times := make([]int64, 0, len(t.buckets))
	for tm := range t.buckets {
		times = append(times, tm)
	}
	for i := 1; i < len(times); i++ {
		for j := i; j > 0 && times[j-1] > times[j]; j-- {
			times[j-1], times[j] = times[j], times[j-1]
		}
	}
	return times
}

// Insert appends a fresh INSERT record at time, rejecting any field not
// declared in the schema.
func (t *Table) Insert(time int64, values map[string]any) (*record.Record, error) {
	for f := range values {
		if !t.schema.Has(f) {
			return nil, fmt.Errorf("retrotable: %q: %w", f, ErrInvalidField)
		}
	}
	t.Lock()
	defer t.Unlock()

	rec := record.New(t, t.schema, time, values)
	t.buckets[time] = append(t.buckets[time], rec)
	t.AppendLocked(rec)
	return rec, nil
}

// Delete retracts rec at time, appending the paired DELETE record to the
// original record's own time-bucket (not the deletion time's bucket) and
// to history.
func (t *Table) Delete(time int64, rec *record.Record) (*record.Record, error) {
	del, err := rec.Delete(time)
	if err != nil {
		return nil, err
	}
	t.Lock()
	defer t.Unlock()

	t.buckets[rec.Time()] = append(t.buckets[rec.Time()], del)
	t.AppendLocked(del)
	return del, nil
}

// Erase removes the entire time-bucket at time, clearing inversion
// back-pointers on every record whose partner it removes, and emits the
// erasure into history.
func (t *Table) Erase(time int64) ([]*record.Record, error) {
	t.Lock()
	defer t.Unlock()

	removed := t.buckets[time]
	if len(removed) == 0 {
		delete(t.buckets, time)
		return nil, nil
	}
	delete(t.buckets, time)

	for _, r := range removed {
		if partner := r.Inversion(); partner != nil {
			partner.ClearInversionIfPointingTo(r)
		}
	}
	t.RemoveLocked(time, removed...)

	out := make([]*record.Record, len(removed))
	copy(out, removed)
	return out, nil
}

// Select constructs a SelectView over this table, cut off at time,
// projecting fields and filtering with predicates.
func (t *Table) Select(time int64, fields []string, predicates ...predicate.Predicate) (*view.SelectView, error) {
	return view.NewSelectView(t, t.schema, time, fields, predicates...)
}

// Sum constructs a SumView over this table's field, cut off at time.
func (t *Table) Sum(time int64, field string) (*view.SumView, error) {
	return view.NewSumView(t, t.schema, time, field)
}

// String returns a debug representation of the table's identity.
func (t *Table) String() string {
	return fmt.Sprintf("Table{%s}", t.name)
}
