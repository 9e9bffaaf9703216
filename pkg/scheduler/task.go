package scheduler

import "container/heap"

// scheduledTask is one entry in the timer heap: due time, the callback to
// run, and a monotonic sequence number used to break due-time ties in
// FIFO order.
type scheduledTask struct {
	due       int64 // UnixNano
	fn        func()
	seq       uint64
	index     int
	cancelled bool
}

// taskHeap is a min-heap over scheduledTask.due, implementing
// container/heap.Interface.
type taskHeap []*scheduledTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due == h[j].due {
		return h[i].seq < h[j].seq
	}
	return h[i].due < h[j].due
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *taskHeap) Push(x any) {
	t := x.(*scheduledTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

var _ heap.Interface = (*taskHeap)(nil)

// TaskHandle is returned by Scheduler.Schedule and lets the caller cancel
// a pending one-shot task. set_state(newState, timer) in the spec's SSM
// description unconditionally stops the prior timer before installing a
// new one — SSMs call Stop on their previously-held handle exactly that
// way (see pkg/ssm).
type TaskHandle struct {
	s *Scheduler
	t *scheduledTask
}

// Stop cancels the task if it has not yet fired. It is always safe to
// call, including after the task has already fired or been stopped.
func (h *TaskHandle) Stop() {
	if h == nil || h.t == nil {
		return
	}
	h.s.mu.Lock()
	h.t.cancelled = true
	h.s.mu.Unlock()
}
