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

// Package record implements the immutable Record tuple shared by every
// Subscribable: Tables emit them from mutators, Views emit derived copies
// downstream.
package record

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/retrotable/retrotable/column"
)

// ErrErasureUndeletable is returned by Delete when called on an ERASE
// record, which carries no values and is not invertible.
var ErrErasureUndeletable = errors.New("retrotable: erase records are not deletable")

// ErrAlreadyDeleted is returned by Delete when called on a DELETE record,
// which is already the inversion product of a prior Delete and has no
// partner of its own to pair against.
var ErrAlreadyDeleted = errors.New("retrotable: record is already deleted")

// Action is the kind of change a Record represents.
type Action int

const (
	// Insert adds a row.
	Insert Action = iota
	// Delete retracts a previously inserted row. Delete records are
	// always the inversion partner of an Insert record.
	Delete
	// Erase removes one or more prior records from history outright; it
	// carries no values of its own and has no inversion partner.
	Erase
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "INSERT"
	case Delete:
		return "DELETE"
	case Erase:
		return "ERASE"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Owner is the weak, purely informational reference a Record carries back
// to the Subscribable that emitted it. It is small enough (a single Name
// method) that any Table or View can satisfy it without an import cycle.
type Owner interface {
	Name() string
}

// Record is an immutable row tuple tagged with an action, a logical time,
// and (for INSERT/DELETE) a mutual inversion link. Every field is
// unexported; Records are built exclusively through New and Delete/NewErasure
// so the inversion invariants can't be violated from outside the package.
type Record struct {
	owner     Owner
	time      int64
	action    Action
	values    map[string]any
	inversion *Record
	erased    []*Record
	debug     uuid.UUID
}

// New constructs an INSERT record. Fields absent from values are filled
// from the schema's declared defaults. Rejecting undeclared fields with
// ErrInvalidField is the caller's responsibility (schema validation happens
// in table.Table.Insert, which knows the full field set); New itself only
// defaults and copies, and returns no error.
func New(owner Owner, schema column.Schema, time int64, values map[string]any) *Record {
	merged := schema.Defaults()
	for k, v := range values {
		merged[k] = v
	}
	return &Record{
		owner:  owner,
		time:   time,
		action: Insert,
		values: merged,
		debug:  uuid.New(),
	}
}

// Owner returns the Record's owning Subscribable.
func (r *Record) Owner() Owner { return r.owner }

// Time returns the record's logical (data) time.
func (r *Record) Time() int64 { return r.time }

// Action returns the record's action.
func (r *Record) Action() Action { return r.action }

// Value returns the field's value and whether the field is present. ERASE
// records have no values and always return (nil, false).
func (r *Record) Value(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Values returns a defensive copy of the record's field values. For ERASE
// records this is always empty.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Inversion returns the record's inversion partner, or nil if it has none
// (ERASE records, or an INSERT/DELETE whose partner was itself erased).
func (r *Record) Inversion() *Record { return r.inversion }

// Erased returns the records an ERASE record removed. It is empty for
// INSERT/DELETE records.
func (r *Record) Erased() []*Record {
	out := make([]*Record, len(r.erased))
	copy(out, r.erased)
	return out
}

// Delete produces the paired DELETE record for an INSERT record, wiring
// the mutual inversion link. It may only be called on an INSERT record (a
// DELETE is itself the product of a prior Delete call, and an ERASE has no
// partner at all).
func (r *Record) Delete(time int64) (*Record, error) {
	switch r.action {
	case Erase:
		return nil, ErrErasureUndeletable
	case Delete:
		return nil, fmt.Errorf("retrotable: record already deleted at time %d: %w", r.time, ErrAlreadyDeleted)
	}
	del := &Record{
		owner:     r.owner,
		time:      time,
		action:    Delete,
		values:    r.Values(),
		inversion: r,
		debug:     uuid.New(),
	}
	r.inversion = del
	return del, nil
}

// clearInversion severs the back-pointer from r to its partner, without
// touching the partner. Table.Erase calls this on every surviving partner
// of a record it removes.
func (r *Record) clearInversion() {
	r.inversion = nil
}

// ClearInversionIfPointingTo clears r's inversion back-pointer iff it
// currently points at partner. Used when erasing partner so r doesn't keep
// a dangling reference to a record no longer in history.
func (r *Record) ClearInversionIfPointingTo(partner *Record) {
	if r.inversion == partner {
		r.clearInversion()
	}
}

// NewErasure constructs an ERASE record citing the records it removes. An
// ERASE record carries no values of its own and has no inversion partner.
func NewErasure(owner Owner, time int64, records ...*Record) *Record {
	erased := make([]*Record, len(records))
	copy(erased, records)
	return &Record{
		owner:  owner,
		time:   time,
		action: Erase,
		erased: erased,
		debug:  uuid.New(),
	}
}

// Equal compares two records structurally: action, owner identity, time,
// and all field values. It deliberately does NOT compare debug identity —
// two Records with identical structural content minted by the same owner
// are equal — and it deliberately DOES compare owner identity, so a
// SELECT-emitted copy of an upstream record is never equal to the
// original: views own their own history.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.owner != other.owner || r.action != other.action || r.time != other.time {
		return false
	}
	if len(r.values) != len(other.values) {
		return false
	}
	for k, v := range r.values {
		ov, ok := other.values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// String returns a debug representation keyed by the record's stable debug
// identity, never used for equality.
func (r *Record) String() string {
	owner := "<nil>"
	if r.owner != nil {
		owner = r.owner.Name()
	}
	return fmt.Sprintf("Record{%s owner:%s time:%d id:%s}", r.action, owner, r.time, r.debug)
}
