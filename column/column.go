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

// Package column declares the scalar column-type registry and Schema that
// Tables and Views are built against. A column type carries no runtime
// representation beyond its name and default value; the values themselves
// are stored as a uniform Go interface{} (any) sum type.
package column

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

// ErrTableInit is returned when a Schema or Table is constructed from an
// invalid declaration: a duplicate field name or a field with no declared
// type. A view whose field lacks a capability it requires fails with the
// view's own error instead (view.ErrTypeIncompatible for SUM).
var ErrTableInit = errors.New("retrotable: invalid schema declaration")

// Type is the capability every column type must satisfy: a default value
// and a stable name, used for diagnostics and for SUM's "SUM(<field>)"
// output column naming.
type Type interface {
	// Default returns the zero value a field takes when a record omits it.
	Default() any
	// Name returns the type's display name, e.g. "Int", "Float", "String".
	Name() string
}

// Numeric is the marker capability SUM requires of its target field's
// column type. Only column types whose underlying scalar supports
// arithmetic implement it.
type Numeric interface {
	Type
	// Zero returns the additive identity as the column's concrete scalar
	// (int64 or float64) held in an any; Add and Sub assert their operands
	// to that scalar type and panic on a mismatch.
	Zero() any
	// Add folds b into a and returns the result.
	Add(a, b any) any
	// Sub returns a - b.
	Sub(a, b any) any
}

// Int is a column type over Go's int64.
type Int struct{}

func (Int) Default() any { return int64(0) }
func (Int) Name() string { return "Int" }
func (Int) Zero() any    { return int64(0) }
func (Int) Add(a, b any) any {
	return mustNumeric[int64](a) + mustNumeric[int64](b)
}
func (Int) Sub(a, b any) any {
	return mustNumeric[int64](a) - mustNumeric[int64](b)
}

// Float is a column type over Go's float64.
type Float struct{}

func (Float) Default() any { return float64(0) }
func (Float) Name() string { return "Float" }
func (Float) Zero() any    { return float64(0) }
func (Float) Add(a, b any) any {
	return mustNumeric[float64](a) + mustNumeric[float64](b)
}
func (Float) Sub(a, b any) any {
	return mustNumeric[float64](a) - mustNumeric[float64](b)
}

// String is a column type over Go's string. It does not implement Numeric;
// a SUM requested over a String field fails construction with
// ErrTypeIncompatible.
type String struct{}

func (String) Default() any { return "" }
func (String) Name() string { return "String" }

var (
	_ Type    = Int{}
	_ Numeric = Int{}
	_ Type    = Float{}
	_ Numeric = Float{}
	_ Type    = String{}
)

func mustNumeric[T constraints.Integer | constraints.Float](v any) T {
	t, ok := v.(T)
	if !ok {
		var zero T
		panic(fmt.Sprintf("column: value %v (%T) is not %T", v, v, zero))
	}
	return t
}

// Schema is an immutable, ordered mapping of field name to column Type.
// Field names are unique within a Schema by construction.
type Schema struct {
	fields []string
	types  map[string]Type
}

// NewSchema builds a Schema from field declarations given in the order they
// should be iterated (projection order, debug display order). It does not
// itself validate capability requirements — those are checked by the
// component that needs the capability (e.g. table.Table.Sum checks Numeric).
func NewSchema(fields []string, types map[string]Type) (Schema, error) {
	seen := make(map[string]struct{}, len(fields))
	ordered := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			return Schema{}, fmt.Errorf("column: duplicate field %q: %w", f, ErrTableInit)
		}
		if _, ok := types[f]; !ok {
			return Schema{}, fmt.Errorf("column: field %q has no declared type: %w", f, ErrTableInit)
		}
		seen[f] = struct{}{}
		ordered = append(ordered, f)
	}
	copied := make(map[string]Type, len(types))
	for k, v := range types {
		copied[k] = v
	}
	return Schema{fields: ordered, types: copied}, nil
}

// Fields returns the schema's field names in declaration order.
func (s Schema) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// Has reports whether field is part of the schema.
func (s Schema) Has(field string) bool {
	_, ok := s.types[field]
	return ok
}

// TypeOf returns the column type declared for field.
func (s Schema) TypeOf(field string) (Type, bool) {
	t, ok := s.types[field]
	return t, ok
}

// Defaults returns a fresh values map populated with every field's default,
// the starting point a Record constructor overlays supplied values onto.
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		out[f] = s.types[f].Default()
	}
	return out
}
