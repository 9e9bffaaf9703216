// Package iocb implements the I/O Control Block and its two queues
// (component J, §4.6): IOQController orders pending work by priority,
// ApplicationIOController serializes delivery to each destination so at
// most one request is outstanding per peer at a time.
package iocb

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bacstack/bacnet/pkg/asap"
	"github.com/bacstack/bacnet/pkg/pdu"
)

// State is the IOCB's monotone lifecycle: IDLE < PENDING < ACTIVE <
// {COMPLETED, ABORTED}. Once COMPLETED or ABORTED it never changes again.
type State uint8

const (
	Idle State = iota
	Pending
	Active
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Pending:
		return "PENDING"
	case Active:
		return "ACTIVE"
	case Completed:
		return "COMPLETED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Priority orders work within a destination's queue; lower values run
// first.
type Priority uint8

const (
	PriorityLifeSafety Priority = iota
	PriorityCritical
	PriorityUrgent
	PriorityNormal
)

// IOCB is a single in-flight (or completed) request.
type IOCB struct {
	ID        string
	Request   *asap.Request
	Priority  Priority
	SubmitTime time.Time

	state  State
	result *asap.Confirmation

	// Done is closed once the IOCB reaches a terminal state, letting a
	// caller block on it without polling.
	Done chan struct{}
}

func newIOCB(req *asap.Request, prio Priority) *IOCB {
	return &IOCB{
		ID:         uuid.NewString(),
		Request:    req,
		Priority:   prio,
		SubmitTime: time.Now(),
		state:      Idle,
		Done:       make(chan struct{}),
	}
}

// State reports the IOCB's current lifecycle state.
func (io *IOCB) State() State { return io.state }

// Result returns the final Confirmation, valid once State is Completed or
// Aborted.
func (io *IOCB) Result() *asap.Confirmation { return io.result }

func (io *IOCB) complete(c *asap.Confirmation) {
	if io.state == Completed || io.state == Aborted {
		return
	}
	io.result = c
	if c != nil && c.Outcome != asap.OutcomeSuccess {
		io.state = Aborted
	} else {
		io.state = Completed
	}
	close(io.Done)
}

var logger = slog.Default().With("component", "iocb")
