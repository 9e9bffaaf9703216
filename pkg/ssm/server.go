package ssm

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/scheduler"
)

// ServerSSM mirrors ClientSSM on the inbound side (§4.5): it reassembles
// a segmented incoming ConfirmedRequest, then — once the application
// produces a reply — segments and windows a large response the same way
// ClientSSM does for requests.
type ServerSSM struct {
	cfg       Config
	sched     *scheduler.Scheduler
	transport Transport
	peer      pdu.Address
	peerInfo  *deviceinfo.DeviceInfo
	invokeID  uint8

	state State
	timer timerHandle
	retries int

	// inbound reassembly
	reqServiceChoice uint8
	reqTemplate      *apdu.ConfirmedRequest
	reassembled      []byte
	expectSeq        uint8

	// outbound response segmentation
	segments   [][]byte
	respChoice uint8
	ackedThru  int
	windowSize uint8

	// OnRequestComplete delivers the fully reassembled (or never-
	// segmented) inbound ConfirmedRequest up to SMAP/ASAP for servicing.
	OnRequestComplete func(*apdu.ConfirmedRequest)
}

func NewServerSSM(cfg Config, sched *scheduler.Scheduler, transport Transport, peer pdu.Address, invokeID uint8, peerInfo *deviceinfo.DeviceInfo, onRequestComplete func(*apdu.ConfirmedRequest)) *ServerSSM {
	return &ServerSSM{
		cfg:               cfg,
		sched:             sched,
		transport:         transport,
		peer:              peer,
		peerInfo:          peerInfo,
		invokeID:          invokeID,
		windowSize:        cfg.ProposedWindowSize,
		OnRequestComplete: onRequestComplete,
	}
}

func (s *ServerSSM) State() State { return s.state }

func (s *ServerSSM) fields() logrus.Fields {
	return logrus.Fields{"invokeID": s.invokeID, "peer": s.peer.String(), "state": s.state}
}

// Indication delivers the first or a subsequent segment of an inbound
// ConfirmedRequest. SegmentAcks for our own segmented response arrive
// through HandleSegmentAck instead.
func (s *ServerSSM) Indication(req *apdu.ConfirmedRequest) {
	log.WithFields(s.fields()).Debugf("[SERVER][RX] seq=%d mor=%v bytes=%d", req.SequenceNumber, req.MoreFollows, len(req.ServiceData))
	if !req.Segmented || req.SequenceNumber == 0 {
		s.upgradePeerInfo(req)
	}
	if !req.Segmented {
		s.finishRequest(req)
		return
	}
	if req.SequenceNumber == 0 && s.state == Idle {
		s.reqTemplate = req
		s.reassembled = append([]byte(nil), req.ServiceData...)
		s.expectSeq = 1
		s.windowSize = req.ProposedWindowSize
		s.sendSegmentAck(0, false, s.windowSize)
		if !req.MoreFollows {
			s.finishRequest(s.completedRequest())
			return
		}
		s.state = SegmentedRequest
		s.armTimer(s.cfg.SegmentTimeout)
		return
	}
	if s.state != SegmentedRequest {
		return
	}
	if !inWindow(req.SequenceNumber, s.expectSeq, s.windowSize) {
		return // stale duplicate from an earlier window, ignore
	}
	stop(s.timer)
	s.retries = 0
	if req.SequenceNumber != s.expectSeq {
		s.sendSegmentAck(s.expectSeq-1, true, s.windowSize)
		s.armTimer(s.cfg.SegmentTimeout)
		return
	}
	s.reassembled = append(s.reassembled, req.ServiceData...)
	s.expectSeq++
	s.sendSegmentAck(req.SequenceNumber, false, s.windowSize)
	if !req.MoreFollows {
		s.finishRequest(s.completedRequest())
		return
	}
	s.armTimer(s.cfg.SegmentTimeout)
}

// upgradePeerInfo applies §4.5's opportunistic capability learning: a
// client that sets apduSA (SegmentedResponseAccepted) on a Confirmed-
// Request proves it can receive segments even if the cached DeviceInfo
// (from an earlier I-Am) said otherwise, and the request's own
// maxApduLengthAccepted/maxSegmentsAccepted buckets are merged in as the
// smaller of wire-advertised vs. cached value. When no DeviceInfo is held
// for the peer (peerInfo nil), nothing is recorded.
func (s *ServerSSM) upgradePeerInfo(req *apdu.ConfirmedRequest) {
	if s.peerInfo == nil {
		return
	}
	if req.SegmentedResponseAccepted {
		switch s.peerInfo.SegmentationSupported {
		case deviceinfo.NoSegmentation:
			s.peerInfo.SegmentationSupported = deviceinfo.SegmentedReceive
		case deviceinfo.SegmentedTransmit:
			s.peerInfo.SegmentationSupported = deviceinfo.SegmentedBoth
		}
	}
	if wireApdu := apdu.DecodeMaxAPDULength(req.MaxResponseSegments); wireApdu > 0 {
		if s.peerInfo.MaxApduLengthAccepted <= 0 || wireApdu < s.peerInfo.MaxApduLengthAccepted {
			s.peerInfo.MaxApduLengthAccepted = wireApdu
		}
	}
	if wireSegs := apdu.DecodeMaxSegments(req.MaxSegmentsAccepted); wireSegs > 0 {
		if s.peerInfo.MaxSegmentsAccepted == nil || wireSegs < *s.peerInfo.MaxSegmentsAccepted {
			s.peerInfo.MaxSegmentsAccepted = &wireSegs
		}
	}
}

func (s *ServerSSM) completedRequest() *apdu.ConfirmedRequest {
	out := *s.reqTemplate
	out.ServiceData = s.reassembled
	return &out
}

func (s *ServerSSM) finishRequest(req *apdu.ConfirmedRequest) {
	stop(s.timer)
	s.state = AwaitResponse
	s.cfg.Metrics.SSMTransition("server", s.state.String())
	log.WithFields(s.fields()).Debugf("[SERVER][REQUEST-COMPLETE] service=%d bytes=%d", req.ServiceChoice, len(req.ServiceData))
	if s.OnRequestComplete != nil {
		s.OnRequestComplete(req)
	}
}

// HandleSegmentAck processes a SegmentAck for our outbound segmented
// response (always sent by the client, Server=false).
func (s *ServerSSM) HandleSegmentAck(ack *apdu.SegmentAck) {
	if s.state != SegmentedResponse {
		return
	}
	stop(s.timer)
	s.retries = 0
	if ack.NegativeAck {
		s.windowSize = ack.ActualWindowSize
		_ = s.sendWindow(int(ack.SequenceNumber) + 1)
		return
	}
	s.ackedThru = int(ack.SequenceNumber) + 1
	s.windowSize = ack.ActualWindowSize
	if s.ackedThru >= len(s.segments) {
		s.state = Completed
		return
	}
	_ = s.sendWindow(s.ackedThru)
}

// Respond sends the application's reply: a SimpleAck/Error/Reject goes
// out unsegmented, a ComplexAck is segmented if it exceeds the negotiated
// segment size and the peer both requested and can accept segmented
// responses.
func (s *ServerSSM) Respond(reply apdu.APDU) error {
	log.WithFields(s.fields()).Debugf("[SERVER][TX] reply=%T", reply)
	segSize := peerSegmentSize(s.cfg, s.peerInfo)
	if ack, ok := reply.(*apdu.ComplexAck); ok && len(ack.ServiceData) > segSize {
		canSegment := s.cfg.LocalSegmentationSupported.CanTransmitSegmented() &&
			s.reqTemplate != nil && s.reqTemplate.SegmentedResponseAccepted &&
			s.peerInfo != nil && s.peerInfo.SegmentationSupported.CanReceiveSegmented()
		if canSegment {
			segCount := segmentCount(len(ack.ServiceData), segSize)
			if s.peerInfo.MaxSegmentsAccepted != nil && segCount > *s.peerInfo.MaxSegmentsAccepted {
				canSegment = false
			}
		}
		if canSegment {
			s.respChoice = ack.ServiceChoice
			s.segments = splitSegments(ack.ServiceData, segSize)
			s.state = SegmentedResponse
			return s.sendWindow(0)
		}
		return s.transport.Send(s.peer, &apdu.Abort{Server: true, InvokeID: s.invokeID, Reason: apdu.AbortSegmentationNotSupported})
	}
	s.state = Completed
	return s.transport.Send(s.peer, reply)
}

func (s *ServerSSM) sendWindow(from int) error {
	last := from + int(s.windowSize)
	if last > len(s.segments) {
		last = len(s.segments)
	}
	for i := from; i < last; i++ {
		seg := &apdu.ComplexAck{
			Segmented:          true,
			MoreFollows:        i != len(s.segments)-1,
			InvokeID:           s.invokeID,
			SequenceNumber:     uint8(i),
			ProposedWindowSize: s.windowSize,
			ServiceChoice:      s.respChoice,
			ServiceData:        s.segments[i],
		}
		if err := s.transport.Send(s.peer, seg); err != nil {
			return err
		}
	}
	s.armTimer(s.cfg.SegmentTimeout)
	return nil
}

func (s *ServerSSM) sendSegmentAck(seq uint8, nak bool, win uint8) {
	_ = s.transport.Send(s.peer, &apdu.SegmentAck{
		NegativeAck:      nak,
		Server:           true,
		InvokeID:         s.invokeID,
		SequenceNumber:   seq,
		ActualWindowSize: win,
	})
}

func (s *ServerSSM) armTimer(d time.Duration) {
	stop(s.timer)
	s.timer = s.sched.Schedule(d, s.onTimeout)
}

func (s *ServerSSM) onTimeout() {
	switch s.state {
	case SegmentedRequest, SegmentedResponse:
	default:
		return
	}
	s.retries++
	s.cfg.Metrics.SSMRetry("server")
	log.WithFields(s.fields()).Debugf("[SERVER][TIMEOUT] retry=%d/%d", s.retries, s.cfg.NumberOfApduRetries)
	if s.retries > s.cfg.NumberOfApduRetries {
		s.state = Aborted
		_ = s.transport.Send(s.peer, &apdu.Abort{Server: true, InvokeID: s.invokeID, Reason: apdu.AbortNoResponse})
		return
	}
	if s.state == SegmentedRequest {
		seq := uint8(0)
		if s.expectSeq > 0 {
			seq = s.expectSeq - 1
		}
		s.sendSegmentAck(seq, true, s.windowSize)
		s.armTimer(s.cfg.SegmentTimeout)
		return
	}
	_ = s.sendWindow(s.ackedThru)
}
