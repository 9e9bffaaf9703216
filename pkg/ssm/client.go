package ssm

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/scheduler"
)

// ClientSSM drives a single outbound confirmed transaction: §4.4's state
// table (IDLE -> SEGMENTED_REQUEST -> AWAIT_CONFIRMATION ->
// SEGMENTED_CONFIRMATION -> COMPLETED/ABORTED).
type ClientSSM struct {
	cfg       Config
	sched     *scheduler.Scheduler
	transport Transport
	peer      pdu.Address
	peerInfo  *deviceinfo.DeviceInfo
	invokeID  uint8

	state State
	req   *apdu.ConfirmedRequest

	segments    [][]byte
	ackedThru   int // number of outbound segments acknowledged so far
	windowSize  uint8
	retries     int
	timer       timerHandle

	reassembled []byte
	expectSeq   uint8

	// OnComplete delivers the final apdu.APDU (SimpleAck, ComplexAck with
	// reassembled ServiceData, Error, Reject or Abort) to the caller
	// (SMAP), which forwards it up to ASAP.
	OnComplete func(apdu.APDU)
}

// NewClientSSM constructs an idle ClientSSM for one invoke ID / peer pair.
// peerInfo may be nil, in which case segmentation is never attempted.
func NewClientSSM(cfg Config, sched *scheduler.Scheduler, transport Transport, peer pdu.Address, invokeID uint8, peerInfo *deviceinfo.DeviceInfo, onComplete func(apdu.APDU)) *ClientSSM {
	return &ClientSSM{
		cfg:        cfg,
		sched:      sched,
		transport:  transport,
		peer:       peer,
		peerInfo:   peerInfo,
		invokeID:   invokeID,
		windowSize: cfg.ProposedWindowSize,
		OnComplete: onComplete,
	}
}

func (c *ClientSSM) State() State { return c.state }

func (c *ClientSSM) fields() logrus.Fields {
	return logrus.Fields{"invokeID": c.invokeID, "peer": c.peer.String(), "state": c.state}
}

// Request begins the transaction: sends req whole if it fits in one
// segment, otherwise segments it (aborting immediately if the peer is not
// known to support receiving segments).
func (c *ClientSSM) Request(req *apdu.ConfirmedRequest) error {
	if c.state != Idle {
		return ErrWrongState
	}
	req.InvokeID = c.invokeID
	c.req = req
	segSize := peerSegmentSize(c.cfg, c.peerInfo)
	log.WithFields(c.fields()).Debugf("[CLIENT][TX] request service=%d bytes=%d segSize=%d", req.ServiceChoice, len(req.ServiceData), segSize)
	if len(req.ServiceData) <= segSize {
		c.state = AwaitConfirmation
		c.cfg.Metrics.SSMTransition("client", c.state.String())
		if err := c.transport.Send(c.peer, req); err != nil {
			return err
		}
		c.armTimer(c.cfg.ApduTimeout)
		return nil
	}
	if !c.cfg.LocalSegmentationSupported.CanTransmitSegmented() {
		c.abort(apdu.AbortSegmentationNotSupported)
		return ErrLocalCannotSegment
	}
	if c.peerInfo == nil || !c.peerInfo.SegmentationSupported.CanReceiveSegmented() {
		c.abort(apdu.AbortSegmentationNotSupported)
		return ErrPeerCannotSegment
	}
	segCount := segmentCount(len(req.ServiceData), segSize)
	if c.peerInfo.MaxSegmentsAccepted != nil && segCount > *c.peerInfo.MaxSegmentsAccepted {
		c.abort(apdu.AbortApduTooLong)
		return ErrTooManySegments
	}
	c.segments = splitSegments(req.ServiceData, segSize)
	req.Segmented = true
	c.state = SegmentedRequest
	c.cfg.Metrics.SSMTransition("client", c.state.String())
	return c.sendWindow(0)
}

func splitSegments(data []byte, size int) [][]byte {
	n := segmentCount(len(data), size)
	out := make([][]byte, n)
	for i := range out {
		out[i] = sliceSegment(data, size, i)
	}
	return out
}

// sendWindow sends segments [from, from+windowSize) and arms the segment
// timer for a SegmentAck covering the batch.
func (c *ClientSSM) sendWindow(from int) error {
	last := from + int(c.windowSize)
	if last > len(c.segments) {
		last = len(c.segments)
	}
	for i := from; i < last; i++ {
		seg := &apdu.ConfirmedRequest{
			Segmented:                 true,
			MoreFollows:               i != len(c.segments)-1,
			SegmentedResponseAccepted: c.req.SegmentedResponseAccepted,
			MaxSegmentsAccepted:       c.req.MaxSegmentsAccepted,
			MaxResponseSegments:       c.req.MaxResponseSegments,
			InvokeID:                  c.invokeID,
			SequenceNumber:            uint8(i),
			ProposedWindowSize:        c.windowSize,
			ServiceChoice:             c.req.ServiceChoice,
			ServiceData:               c.segments[i],
		}
		if err := c.transport.Send(c.peer, seg); err != nil {
			return err
		}
	}
	c.armTimer(c.cfg.SegmentTimeout)
	return nil
}

// Indication delivers an inbound APDU routed to this transaction by SMAP.
func (c *ClientSSM) Indication(a apdu.APDU) {
	log.WithFields(c.fields()).Debugf("[CLIENT][RX] %T", a)
	switch v := a.(type) {
	case *apdu.SegmentAck:
		c.handleSegmentAck(v)
	case *apdu.ComplexAck:
		c.handleComplexAck(v)
	case *apdu.SimpleAck:
		if c.state == AwaitConfirmation {
			stop(c.timer)
			c.complete(v)
		}
	case *apdu.Error:
		stop(c.timer)
		c.complete(v)
	case *apdu.Reject:
		stop(c.timer)
		c.complete(v)
	case *apdu.Abort:
		stop(c.timer)
		c.state = Aborted
		c.complete(v)
	}
}

func (c *ClientSSM) handleSegmentAck(ack *apdu.SegmentAck) {
	if c.state != SegmentedRequest {
		return
	}
	stop(c.timer)
	c.retries = 0
	if ack.NegativeAck {
		c.windowSize = ack.ActualWindowSize
		_ = c.sendWindow(int(ack.SequenceNumber) + 1)
		return
	}
	c.ackedThru = int(ack.SequenceNumber) + 1
	c.windowSize = ack.ActualWindowSize
	if c.ackedThru >= len(c.segments) {
		c.state = AwaitConfirmation
		c.armTimer(c.cfg.ApduTimeout)
		return
	}
	_ = c.sendWindow(c.ackedThru)
}

func (c *ClientSSM) handleComplexAck(ack *apdu.ComplexAck) {
	switch c.state {
	case AwaitConfirmation:
		stop(c.timer)
		c.retries = 0
		if !ack.Segmented {
			c.complete(ack)
			return
		}
		c.reassembled = append([]byte(nil), ack.ServiceData...)
		c.expectSeq = 1
		c.sendSegmentAck(ack.SequenceNumber, false, c.cfg.ProposedWindowSize)
		if !ack.MoreFollows {
			final := *ack
			final.ServiceData = c.reassembled
			c.complete(&final)
			return
		}
		c.state = SegmentedConfirmation
		c.armTimer(c.cfg.SegmentTimeout)
	case SegmentedConfirmation:
		if !inWindow(ack.SequenceNumber, c.expectSeq, c.cfg.ProposedWindowSize) {
			return // stale duplicate from an earlier window, ignore
		}
		stop(c.timer)
		c.retries = 0
		if ack.SequenceNumber != c.expectSeq {
			c.sendSegmentAck(c.expectSeq-1, true, c.cfg.ProposedWindowSize)
			c.armTimer(c.cfg.SegmentTimeout)
			return
		}
		c.reassembled = append(c.reassembled, ack.ServiceData...)
		c.expectSeq++
		c.sendSegmentAck(ack.SequenceNumber, false, c.cfg.ProposedWindowSize)
		if !ack.MoreFollows {
			final := *ack
			final.ServiceData = c.reassembled
			c.complete(&final)
			return
		}
		c.armTimer(c.cfg.SegmentTimeout)
	}
}

func (c *ClientSSM) sendSegmentAck(seq uint8, nak bool, win uint8) {
	_ = c.transport.Send(c.peer, &apdu.SegmentAck{
		NegativeAck:      nak,
		Server:           false,
		InvokeID:         c.invokeID,
		SequenceNumber:   seq,
		ActualWindowSize: win,
	})
}

// armTimer stops any previously-held timer and schedules onTimeout after
// d, per §4.8's "set_state unconditionally stops the prior timer".
func (c *ClientSSM) armTimer(d time.Duration) {
	stop(c.timer)
	c.timer = c.sched.Schedule(d, c.onTimeout)
}

func (c *ClientSSM) onTimeout() {
	switch c.state {
	case Idle, Completed, Aborted:
		return
	}
	c.retries++
	c.cfg.Metrics.SSMRetry("client")
	log.WithFields(c.fields()).Debugf("[CLIENT][TIMEOUT] retry=%d/%d", c.retries, c.cfg.NumberOfApduRetries)
	if c.retries > c.cfg.NumberOfApduRetries {
		c.abort(apdu.AbortNoResponse)
		return
	}
	switch c.state {
	case SegmentedRequest:
		_ = c.sendWindow(c.ackedThru)
	case AwaitConfirmation:
		_ = c.transport.Send(c.peer, c.req)
		c.armTimer(c.cfg.ApduTimeout)
	case SegmentedConfirmation:
		seq := uint8(0)
		if c.expectSeq > 0 {
			seq = c.expectSeq - 1
		}
		c.sendSegmentAck(seq, true, c.cfg.ProposedWindowSize)
		c.armTimer(c.cfg.SegmentTimeout)
	}
}

func (c *ClientSSM) abort(reason apdu.AbortReason) {
	c.state = Aborted
	c.complete(&apdu.Abort{Server: false, InvokeID: c.invokeID, Reason: reason})
}

func (c *ClientSSM) complete(a apdu.APDU) {
	if c.state != Aborted {
		c.state = Completed
	}
	c.cfg.Metrics.SSMTransition("client", c.state.String())
	log.WithFields(c.fields()).Debugf("[CLIENT][DONE] result=%T", a)
	if c.OnComplete != nil {
		c.OnComplete(a)
	}
}
