package scheduler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

// InstallSignalHandlers wires the process-wide signal handling described
// in §4.8: SIGTERM cancels ctx's owning cancel function for a clean stop,
// SIGUSR1 dumps all goroutine stacks to the logger. This must only be
// called once, from the main thread of the process — a scheduler run on
// a worker thread (e.g. an embedded stack inside a larger application)
// must skip this entirely, per §5.
func (s *Scheduler) InstallSignalHandlers(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGUSR1)
	go func() {
		for sig := range ch {
			switch sig {
			case syscall.SIGTERM:
				s.logger.Info("received SIGTERM, stopping scheduler")
				cancel()
				return
			case syscall.SIGUSR1:
				buf := make([]byte, 1<<20)
				n := runtime.Stack(buf, true)
				s.logger.Info("received SIGUSR1, dumping stacks", "stacks", string(buf[:n]))
			}
		}
	}()
}
