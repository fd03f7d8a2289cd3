// Copyright 2026 The Retrotable Authors
// This file is part of retrotable.
//
// Retrotable is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package view

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/retrotable/retrotable/history"
	"github.com/retrotable/retrotable/record"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	inserts  []*record.Record
	deletes  []*record.Record
	erasures int
}

func (d *recordingDispatcher) OnInsert(r *record.Record) {
	d.mu.Lock()
	d.inserts = append(d.inserts, r)
	d.mu.Unlock()
}

func (d *recordingDispatcher) OnDelete(r *record.Record) {
	d.mu.Lock()
	d.deletes = append(d.deletes, r)
	d.mu.Unlock()
}

func (d *recordingDispatcher) OnErase(int64, []*record.Record) {
	d.mu.Lock()
	d.erasures++
	d.mu.Unlock()
}

func (d *recordingDispatcher) counts() (int, int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inserts), len(d.deletes), d.erasures
}

// TestWorkerDispatchesBacklogThenFollowsUp drives a View's worker against a
// mocked Subscribable: the first subscribe (checkpoint nil) delivers a
// backlog of one of each action, and every subsequent subscribe (anchored
// at the checkpoint the worker now holds) returns nothing until Free.
func TestWorkerDispatchesBacklogThenFollowsUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := NewMockSubscribable(ctrl)

	schema := viewTestSchema()
	ins := record.New(fakeOwner("u"), schema, 1, map[string]any{"k": int64(1)})
	del, err := ins.Delete(2)
	require.NoError(t, err)
	erasure := record.NewErasure(fakeOwner("u"), 3, ins)

	cp1 := history.Checkpoint(1)

	gomock.InOrder(
		upstream.EXPECT().
			Subscribe(gomock.Nil(), gomock.Any()).
			Return(cp1, []*record.Record{ins, del, erasure}, nil).
			Times(1),
		upstream.EXPECT().
			Subscribe(&cp1, gomock.Any()).
			Return(cp1, nil, nil).
			AnyTimes(),
	)
	upstream.EXPECT().Unsubscribe(gomock.Any()).AnyTimes()

	d := &recordingDispatcher{}
	v, err := New("dispatch-test", upstream, schema, 10, d, nil)
	require.NoError(t, err)
	v.Start()

	require.Eventually(t, func() bool {
		i, de, e := d.counts()
		return i == 1 && de == 1 && e == 1
	}, 2*time.Second, 5*time.Millisecond)

	v.Free()

	i, de, e := d.counts()
	require.Equal(t, 1, i)
	require.Equal(t, 1, de)
	require.Equal(t, 1, e)
}

// TestWorkerExitsWithoutAdditionalSubscribe confirms Free makes the worker
// observe exitRequest and return without issuing a further Subscribe call.
// The mock holds the worker's first Subscribe until the test releases it:
// Free must not return while that call is in flight, and once it returns
// the worker must unsubscribe and exit instead of subscribing again.
func TestWorkerExitsWithoutAdditionalSubscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	upstream := NewMockSubscribable(ctrl)

	schema := viewTestSchema()
	blocked := make(chan struct{})
	upstream.EXPECT().
		Subscribe(gomock.Nil(), gomock.Any()).
		DoAndReturn(func(*history.Checkpoint, *time.Duration) (history.Checkpoint, []*record.Record, error) {
			<-blocked
			return history.Checkpoint(1), nil, nil
		}).
		AnyTimes()
	upstream.EXPECT().Unsubscribe(gomock.Any()).AnyTimes()

	d := &recordingDispatcher{}
	v, err := New("exit-test", upstream, schema, 10, d, nil)
	require.NoError(t, err)
	v.Start()

	done := make(chan struct{})
	go func() {
		v.Free()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Free returned before the worker's in-flight Subscribe unblocked")
	case <-time.After(50 * time.Millisecond):
	}
	close(blocked)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after its Subscribe call returned")
	}
}
