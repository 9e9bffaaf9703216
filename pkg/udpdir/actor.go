package udpdir

import (
	"github.com/bacstack/bacnet/pkg/scheduler"
)

// actor tracks per-peer liveness: it exists purely to drive the idle
// timeout described in §4.9 ("closes the actor after N seconds of
// silence"); the datagram socket itself is shared across all peers.
type actor struct {
	key     string
	timeout *scheduler.TaskHandle
}

// touch resets the idle timer for this actor's peer, rescheduling its
// eviction callback.
func (d *Director) touch(key string) {
	if d.idleTimeout <= 0 {
		return
	}
	d.mu.Lock()
	a, ok := d.actors[key]
	if !ok {
		a = &actor{key: key}
		d.actors[key] = a
	} else if a.timeout != nil {
		a.timeout.Stop()
	}
	a.timeout = d.scheduler.Schedule(d.idleTimeout, func() { d.evict(key) })
	d.mu.Unlock()
}

func (d *Director) evict(key string) {
	d.mu.Lock()
	delete(d.actors, key)
	d.mu.Unlock()
	d.logger.Debug("evicted idle peer actor", "peer", key)
}

// ActorCount reports the number of peers currently tracked for idle
// timeout purposes. Exposed for tests/metrics.
func (d *Director) ActorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.actors)
}
