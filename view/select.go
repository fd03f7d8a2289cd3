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
	"strings"

	"github.com/retrotable/retrotable/column"
	"github.com/retrotable/retrotable/history"
	"github.com/retrotable/retrotable/predicate"
	"github.com/retrotable/retrotable/record"
)

// ErrInvalidField is returned when a SelectView is constructed over a field
// not present in its upstream schema.
var ErrInvalidField = errors.New("retrotable: field not declared in upstream schema")

// SelectView is a filter + project view. It maintains, in upstream
// insertion order, the upstream records that currently pass every
// predicate, their projected field values, and the view's own emitted
// copies of those records (the ones actually published to its history —
// kept distinct from the upstream originals per record.Equal's
// owner-identity rule).
type SelectView struct {
	*View

	fields     []string
	predicates []predicate.Predicate

	matchedUpstream []*record.Record
	ownRecords      []*record.Record
	rows            []map[string]any
}

// NewSelectView constructs a SelectView over upstream, projecting fields
// and keeping only records every predicate in predicates accepts.
// Construction fails with ErrInvalidField if a projected field is not in
// upstreamSchema.
func NewSelectView(upstream history.Subscribable, upstreamSchema column.Schema, viewTime int64, fields []string, predicates ...predicate.Predicate) (*SelectView, error) {
	typed := make(map[string]column.Type, len(fields))
	for _, f := range fields {
		t, ok := upstreamSchema.TypeOf(f)
		if !ok {
			return nil, fmt.Errorf("retrotable: select field %q: %w", f, ErrInvalidField)
		}
		typed[f] = t
	}
	schema, err := column.NewSchema(fields, typed)
	if err != nil {
		return nil, err
	}

	sv := &SelectView{
		fields:     append([]string(nil), fields...),
		predicates: predicates,
	}
	for _, p := range sv.predicates {
		p.BeforeQuery()
	}

	name := fmt.Sprintf("select(%s)@%d", strings.Join(fields, ","), viewTime)
	base, err := New(name, upstream, schema, viewTime, sv, nil)
	if err != nil {
		return nil, err
	}
	sv.View = base
	sv.SetAllRecordsFunc(sv.allRecordsLocked)
	sv.Start()
	return sv, nil
}

// allRecordsLocked is SelectView's AllRecordsFunc: invoked by the embedded
// Substrate only while its own lock (shared with Lock/Unlock below) is
// already held, so it reads ownRecords directly.
func (sv *SelectView) allRecordsLocked() []*record.Record {
	out := make([]*record.Record, len(sv.ownRecords))
	copy(out, sv.ownRecords)
	return out
}

// OnInsert implements Dispatcher.
func (sv *SelectView) OnInsert(r *record.Record) {
	if r.Time() > sv.Time() {
		return
	}
	for _, p := range sv.predicates {
		if !p.OnRecord(r) {
			return
		}
	}
	row := make(map[string]any, len(sv.fields))
	for _, f := range sv.fields {
		v, _ := r.Value(f)
		row[f] = v
	}
	own := record.New(sv, sv.Schema(), r.Time(), row)

	sv.Lock()
	sv.matchedUpstream = append(sv.matchedUpstream, r)
	sv.ownRecords = append(sv.ownRecords, own)
	sv.rows = append(sv.rows, row)
	sv.AppendLocked(own)
	sv.Unlock()
}

// OnDelete implements Dispatcher: find r's inversion partner among the
// matched upstream records, then delete and emit the corresponding owned
// copy.
func (sv *SelectView) OnDelete(r *record.Record) {
	if r.Time() > sv.Time() {
		return
	}
	partner := r.Inversion()
	if partner == nil {
		return
	}
	sv.Lock()
	defer sv.Unlock()
	for i, m := range sv.matchedUpstream {
		if !m.Equal(partner) {
			continue
		}
		del, err := sv.ownRecords[i].Delete(sv.Time())
		if err == nil {
			sv.AppendLocked(del)
		}
		sv.matchedUpstream = append(sv.matchedUpstream[:i:i], sv.matchedUpstream[i+1:]...)
		sv.ownRecords = append(sv.ownRecords[:i:i], sv.ownRecords[i+1:]...)
		sv.rows = append(sv.rows[:i:i], sv.rows[i+1:]...)
		return
	}
}

// OnErase implements Dispatcher: consumes records one-for-one against the
// matched list (so duplicate field values each remove exactly one matched
// entry), removing the corresponding owned records from the view's own
// history.
func (sv *SelectView) OnErase(t int64, records []*record.Record) {
	if t > sv.Time() {
		return
	}
	sv.Lock()
	defer sv.Unlock()

	remaining := append([]*record.Record(nil), records...)
	var removedOwn []*record.Record

	i := 0
	for i < len(sv.matchedUpstream) {
		m := sv.matchedUpstream[i]
		matchIdx := -1
		for j, target := range remaining {
			if m.Equal(target) {
				matchIdx = j
				break
			}
		}
		if matchIdx < 0 {
			i++
			continue
		}
		remaining = append(remaining[:matchIdx:matchIdx], remaining[matchIdx+1:]...)
		removedOwn = append(removedOwn, sv.ownRecords[i])
		sv.matchedUpstream = append(sv.matchedUpstream[:i:i], sv.matchedUpstream[i+1:]...)
		sv.ownRecords = append(sv.ownRecords[:i:i], sv.ownRecords[i+1:]...)
		sv.rows = append(sv.rows[:i:i], sv.rows[i+1:]...)
	}
	if len(removedOwn) > 0 {
		sv.RemoveLocked(t, removedOwn...)
	}
}

// Rows returns a defensive copy of the view's currently matched, projected
// records, in upstream insertion order.
func (sv *SelectView) Rows() []map[string]any {
	sv.Lock()
	defer sv.Unlock()
	out := make([]map[string]any, len(sv.rows))
	copy(out, sv.rows)
	return out
}

var _ Dispatcher = (*SelectView)(nil)
