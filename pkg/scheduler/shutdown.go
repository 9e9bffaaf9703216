package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Drainer is anything with in-flight work that must be given a chance to
// finish (or be forcibly torn down) before the process exits: the UDP
// director's read loop, SMAP's live SSM set, and so on.
type Drainer interface {
	// Drain blocks until outstanding work completes or ctx is cancelled.
	Drain(ctx context.Context) error
}

// DrainerFunc adapts a plain function to Drainer.
type DrainerFunc func(ctx context.Context) error

func (f DrainerFunc) Drain(ctx context.Context) error { return f(ctx) }

// Shutdown waits for every drainer concurrently, bounded by ctx. It does
// not stop the loop: cancelling the context passed to Run is left to the
// caller, which owns it.
// Per §2.B this is where golang.org/x/sync/errgroup replaces a hand-rolled
// sync.WaitGroup+error-channel: each drainer (the UDP director's read loop,
// SMAP's in-flight SSM set) runs independently and the first error — or the
// first ctx cancellation — aborts the rest's wait, the same pattern the
// teacher applies to its node shutdown fan-in.
func Shutdown(ctx context.Context, drainers ...Drainer) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range drainers {
		d := d
		g.Go(func() error { return d.Drain(gctx) })
	}
	return g.Wait()
}
