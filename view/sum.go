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

package view

import (
	"errors"
	"fmt"

	"github.com/retrotable/retrotable/column"
	"github.com/retrotable/retrotable/history"
	"github.com/retrotable/retrotable/record"
)

// ErrTypeIncompatible is returned when a SumView is requested over a field
// whose column type does not implement column.Numeric.
var ErrTypeIncompatible = errors.New("retrotable: field's column type is not numeric")

// SumView maintains a single invertible numeric aggregate over an
// upstream field, re-publishing it downstream as a single "current"
// record: every fold deletes the previous current record and inserts a
// fresh one, so downstream views see the sum as an ordinary insert/delete
// stream.
//
// On erase, a live INSERT's contribution is subtracted and a live
// DELETE's contribution is added back — the DELETE had already subtracted
// it once, so erasing it undoes that subtraction. Subtracting for both (as
// a naive reading of the fold might suggest) double-counts the
// correction.
type SumView struct {
	*View

	field    string
	sumField string
	numeric  column.Numeric

	value   any
	current *record.Record
}

// NewSumView constructs a SumView over upstream's field, cut off at
// viewTime. Construction fails with ErrInvalidField if field is not in
// upstreamSchema, or ErrTypeIncompatible if its column type is not
// Numeric.
func NewSumView(upstream history.Subscribable, upstreamSchema column.Schema, viewTime int64, field string) (*SumView, error) {
	t, ok := upstreamSchema.TypeOf(field)
	if !ok {
		return nil, fmt.Errorf("retrotable: sum field %q: %w", field, ErrInvalidField)
	}
	numeric, ok := t.(column.Numeric)
	if !ok {
		return nil, fmt.Errorf("retrotable: sum field %q of type %s: %w", field, t.Name(), ErrTypeIncompatible)
	}

	sumField := fmt.Sprintf("SUM(%s)", field)
	schema, err := column.NewSchema([]string{sumField}, map[string]column.Type{sumField: t})
	if err != nil {
		return nil, err
	}

	sv := &SumView{
		field:    field,
		sumField: sumField,
		numeric:  numeric,
		value:    numeric.Zero(),
	}

	name := fmt.Sprintf("sum(%s)@%d", field, viewTime)
	base, err := New(name, upstream, schema, viewTime, sv, nil)
	if err != nil {
		return nil, err
	}
	sv.View = base
	sv.SetAllRecordsFunc(sv.allRecordsLocked)
	sv.Start()
	return sv, nil
}

func (sv *SumView) allRecordsLocked() []*record.Record {
	if sv.current == nil {
		return nil
	}
	return []*record.Record{sv.current}
}

// OnInsert implements Dispatcher.
func (sv *SumView) OnInsert(r *record.Record) {
	if r.Time() > sv.Time() {
		return
	}
	v, _ := r.Value(sv.field)
	sv.Lock()
	sv.value = sv.numeric.Add(sv.value, v)
	sv.republishLocked()
	sv.Unlock()
}

// OnDelete implements Dispatcher.
func (sv *SumView) OnDelete(r *record.Record) {
	if r.Time() > sv.Time() {
		return
	}
	v, _ := r.Value(sv.field)
	sv.Lock()
	sv.value = sv.numeric.Sub(sv.value, v)
	sv.republishLocked()
	sv.Unlock()
}

// OnErase implements Dispatcher.
func (sv *SumView) OnErase(t int64, records []*record.Record) {
	if t > sv.Time() {
		return
	}
	sv.Lock()
	for _, r := range records {
		v, ok := r.Value(sv.field)
		if !ok {
			continue
		}
		switch r.Action() {
		case record.Insert:
			sv.value = sv.numeric.Sub(sv.value, v)
		case record.Delete:
			sv.value = sv.numeric.Add(sv.value, v)
		}
	}
	sv.republishLocked()
	sv.Unlock()
}

// republishLocked retires the current published record and emits a fresh
// one carrying the new value. Called with the lock already held.
func (sv *SumView) republishLocked() {
	row := map[string]any{sv.sumField: sv.value}
	fresh := record.New(sv, sv.Schema(), sv.Time(), row)

	if sv.current != nil {
		if del, err := sv.current.Delete(sv.Time()); err == nil {
			sv.AppendLocked(del)
		}
	}
	sv.AppendLocked(fresh)
	sv.current = fresh
}

// Value returns the sum's current value.
func (sv *SumView) Value() any {
	sv.Lock()
	defer sv.Unlock()
	return sv.value
}

var _ Dispatcher = (*SumView)(nil)
