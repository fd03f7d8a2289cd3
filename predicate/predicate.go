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

// Package predicate declares the filter capability SELECT views apply to
// upstream records.
package predicate

import "github.com/retrotable/retrotable/record"

// Predicate is a record filter with a per-query reset hook, letting a
// stateful predicate (e.g. a running count) start clean on each new query
// chain.
type Predicate interface {
	// BeforeQuery resets any accumulated state. Called exactly once per
	// view construction, before the first record is dispatched.
	BeforeQuery()
	// OnRecord reports whether r passes the predicate.
	OnRecord(r *record.Record) bool
}

// Where adapts a plain record predicate function into a Predicate. It is
// stateless, so BeforeQuery is a no-op.
type Where struct {
	fn func(*record.Record) bool
}

// NewWhere wraps fn as a Predicate.
func NewWhere(fn func(*record.Record) bool) Where {
	return Where{fn: fn}
}

// BeforeQuery is a no-op: Where carries no state to reset.
func (Where) BeforeQuery() {}

// OnRecord reports fn(r).
func (w Where) OnRecord(r *record.Record) bool {
	return w.fn(r)
}

var _ Predicate = Where{}
