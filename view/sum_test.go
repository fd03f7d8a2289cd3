// Copyright 2026 The Retrotable Authors
// This file is part of retrotable.
//
// Retrotable is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrotable/retrotable/column"
	"github.com/retrotable/retrotable/history"
	"github.com/retrotable/retrotable/record"
)

func TestSumViewFoldsInsertDelete(t *testing.T) {
	schema := viewTestSchema()
	upstream := history.NewSubstrate("sum-fold")

	sum, err := NewSumView(upstream, schema, 10, "k")
	require.NoError(t, err)

	r1 := record.New(fakeOwner("u"), schema, 1, map[string]any{"k": int64(10)})
	r2 := record.New(fakeOwner("u"), schema, 2, map[string]any{"k": int64(5)})
	upstream.Append(r1, r2)
	require.Eventually(t, func() bool { return sum.Value() == int64(15) }, quiesce, poll)

	del, err := r1.Delete(3)
	require.NoError(t, err)
	upstream.Append(del)
	require.Eventually(t, func() bool { return sum.Value() == int64(5) }, quiesce, poll)

	sum.Free()
}

// TestSumViewEraseDoesNotDoubleSubtract exercises the fold correction: a
// live DELETE's contribution (already subtracted once) is added back on
// erase, rather than subtracted again.
func TestSumViewEraseDoesNotDoubleSubtract(t *testing.T) {
	schema := viewTestSchema()
	upstream := history.NewSubstrate("sum-erase")

	sum, err := NewSumView(upstream, schema, 10, "k")
	require.NoError(t, err)

	r1 := record.New(fakeOwner("u"), schema, 1, map[string]any{"k": int64(10)})
	r2 := record.New(fakeOwner("u"), schema, 2, map[string]any{"k": int64(5)})
	upstream.Append(r1, r2)
	require.Eventually(t, func() bool { return sum.Value() == int64(15) }, quiesce, poll)

	del, err := r1.Delete(3)
	require.NoError(t, err)
	upstream.Append(del)
	require.Eventually(t, func() bool { return sum.Value() == int64(5) }, quiesce, poll)

	// del is a live DELETE (contributed -10 already); r2 is a live INSERT.
	upstream.Remove(4, del, r2)
	require.Eventually(t, func() bool { return sum.Value() == int64(10) }, quiesce, poll)

	sum.Free()
}

func TestSumViewRejectsNonNumericField(t *testing.T) {
	schema, err := column.NewSchema([]string{"name"}, map[string]column.Type{"name": column.String{}})
	require.NoError(t, err)
	upstream := history.NewSubstrate("sum-non-numeric")
	_, err = NewSumView(upstream, schema, 10, "name")
	require.ErrorIs(t, err, ErrTypeIncompatible)
}

func TestSumViewRejectsUnknownField(t *testing.T) {
	schema := viewTestSchema()
	upstream := history.NewSubstrate("sum-bad-field")
	_, err := NewSumView(upstream, schema, 10, "nope")
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestSumViewFutureContributionIgnored(t *testing.T) {
	schema := viewTestSchema()
	upstream := history.NewSubstrate("sum-future")

	sum, err := NewSumView(upstream, schema, 5, "k")
	require.NoError(t, err)

	r := record.New(fakeOwner("u"), schema, 9, map[string]any{"k": int64(100)})
	upstream.Append(r)

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int64(0), sum.Value())

	sum.Free()
}
