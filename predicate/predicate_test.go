// Copyright 2026 The Retrotable Authors
// This file is part of retrotable.
//
// Retrotable is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrotable/retrotable/column"
	"github.com/retrotable/retrotable/record"
)

type fakeOwner string

func (f fakeOwner) Name() string { return string(f) }

func TestWhere(t *testing.T) {
	schema, err := column.NewSchema([]string{"k"}, map[string]column.Type{"k": column.Int{}})
	require.NoError(t, err)

	odd := NewWhere(func(r *record.Record) bool {
		v, _ := r.Value("k")
		return v.(int64)%2 == 1
	})
	odd.BeforeQuery() // no-op, must not panic

	r1 := record.New(fakeOwner("t"), schema, 1, map[string]any{"k": int64(1)})
	r2 := record.New(fakeOwner("t"), schema, 2, map[string]any{"k": int64(2)})

	assert.True(t, odd.OnRecord(r1))
	assert.False(t, odd.OnRecord(r2))
}
