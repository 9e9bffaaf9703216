package smap

import (
	"context"
	"time"
)

// Drain implements scheduler.Drainer: it waits until every client and
// server transaction has reached a terminal state (or ctx is cancelled),
// so a process shutdown gives in-flight segmented transfers a chance to
// finish rather than being cut off mid-window. Transaction-table reads
// happen via Defer so they run on the loop goroutine, preserving §5's
// single-writer invariant even though Drain itself runs on its own
// goroutine.
func (s *SMAP) Drain(ctx context.Context) error {
	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()
	for {
		idle := make(chan bool, 1)
		s.sched.Defer(func() {
			idle <- len(s.clientTxns) == 0 && len(s.serverTxns) == 0
		})
		select {
		case done := <-idle:
			if done {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-poll.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
