package iocb

import (
	"sync"

	"github.com/bacstack/bacnet/pkg/asap"
	"github.com/bacstack/bacnet/pkg/metrics"
	"github.com/bacstack/bacnet/pkg/pdu"
)

// IOQController is a priority-ordered queue: four FIFOs, one per
// Priority, served lowest-priority-value-first.
type IOQController struct {
	queues [4][]*IOCB
}

// Enqueue appends io to its priority's FIFO and marks it Pending.
func (q *IOQController) Enqueue(io *IOCB) {
	io.state = Pending
	q.queues[io.Priority] = append(q.queues[io.Priority], io)
}

// Dequeue pops the highest-priority, oldest-enqueued IOCB, or nil if
// every FIFO is empty.
func (q *IOQController) Dequeue() *IOCB {
	for p := range q.queues {
		if len(q.queues[p]) == 0 {
			continue
		}
		io := q.queues[p][0]
		q.queues[p] = q.queues[p][1:]
		return io
	}
	return nil
}

// Empty reports whether every priority FIFO is empty.
func (q *IOQController) Empty() bool {
	return q.Len() == 0
}

// Len reports the total number of queued (not yet active) IOCBs across
// every priority.
func (q *IOQController) Len() int {
	n := 0
	for _, fifo := range q.queues {
		n += len(fifo)
	}
	return n
}

// ApplicationIOController is the IOCB controller (component J): it keeps
// one priority queue per destination and allows at most one request
// outstanding to any given destination at a time, so a slow or
// unresponsive peer never blocks traffic to others.
type ApplicationIOController struct {
	mu      sync.Mutex
	asap    *asap.ASAP
	metrics *metrics.Metrics
	queues  map[string]*IOQController
	active  map[string]*IOCB
}

func NewApplicationIOController(a *asap.ASAP) *ApplicationIOController {
	return NewApplicationIOControllerWithMetrics(a, nil)
}

// NewApplicationIOControllerWithMetrics is NewApplicationIOController plus
// an optional metrics sink for queue-depth observability.
func NewApplicationIOControllerWithMetrics(a *asap.ASAP, m *metrics.Metrics) *ApplicationIOController {
	c := &ApplicationIOController{
		asap:    a,
		metrics: m,
		queues:  make(map[string]*IOQController),
		active:  make(map[string]*IOCB),
	}
	a.ConfirmationHandler = c.onConfirmation
	return c
}

// Submit enqueues req for delivery, returning an IOCB the caller can wait
// on via its Done channel.
func (c *ApplicationIOController) Submit(req *asap.Request, prio Priority) *IOCB {
	c.mu.Lock()
	defer c.mu.Unlock()
	io := newIOCB(req, prio)
	key := req.Destination.String()
	q, ok := c.queues[key]
	if !ok {
		q = &IOQController{}
		c.queues[key] = q
	}
	q.Enqueue(io)
	c.metrics.SetIOCBQueueDepth(key, q.Len())
	c.pump(key)
	return io
}

// pump advances a destination's queue if nothing is currently active for
// it. Unconfirmed IOCBs complete immediately with a null response (there
// is nothing to wait for), per §9's Open Question resolution.
func (c *ApplicationIOController) pump(key string) {
	if _, busy := c.active[key]; busy {
		return
	}
	q, ok := c.queues[key]
	if !ok {
		return
	}
	io := q.Dequeue()
	if io == nil {
		delete(c.queues, key)
		return
	}
	c.metrics.SetIOCBQueueDepth(key, q.Len())
	io.state = Active
	if !io.Request.Confirmed {
		_ = c.asap.Indication(&pdu.PDU{UserData: io.Request})
		io.complete(nil)
		c.pump(key)
		return
	}
	c.active[key] = io
	if err := c.asap.Indication(&pdu.PDU{UserData: io.Request}); err != nil {
		io.complete(&asap.Confirmation{Outcome: asap.OutcomeAbort})
		delete(c.active, key)
		c.pump(key)
	}
}

// onConfirmation is ASAP's ConfirmationHandler: it completes the active
// IOCB for the confirming peer and pumps that destination's queue.
func (c *ApplicationIOController) onConfirmation(conf *asap.Confirmation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := conf.Source.String()
	io, ok := c.active[key]
	if !ok {
		logger.Warn("confirmation with no matching active iocb", "source", key, "invoke_id", conf.InvokeID)
		return
	}
	io.complete(conf)
	delete(c.active, key)
	c.pump(key)
}
