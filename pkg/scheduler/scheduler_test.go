package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleFiresInOrder(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var order []int32
	done := make(chan struct{})
	s.Schedule(30*time.Millisecond, func() { order = append(order, 2) })
	s.Schedule(10*time.Millisecond, func() {
		order = append(order, 1)
	})
	s.Schedule(50*time.Millisecond, func() {
		order = append(order, 3)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not fire in time")
	}
	assert.Equal(t, []int32{1, 2, 3}, order)
}

func TestStopCancelsPendingTask(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var fired int32
	h := s.Schedule(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	h.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestDeferRunsOnLoopGoroutine(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	done := make(chan struct{})
	s.Defer(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deferred function never ran")
	}
}
