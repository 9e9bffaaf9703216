// Package asap implements the Application Service Access Point
// (component F, §4.2): it translates between application-facing
// Request/Indication/Confirmation values and the apdu.APDU structs
// exchanged with the State Machine Access Point below. Encoding
// service-specific parameters into ServiceData is the caller's
// responsibility (§1 excludes a full ASN.1 primitive codec); ASAP only
// deals in opaque service-choice + bytes.
package asap

import (
	"log/slog"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/pdu"
)

// Request is an application-originated call, confirmed or unconfirmed.
type Request struct {
	Confirmed                 bool
	Destination               pdu.Address
	ServiceChoice             uint8
	ServiceData               []byte
	MaxSegmentsAccepted       uint8
	MaxResponseSegments       uint8
	SegmentedResponseAccepted bool

	// InvokeID is filled in once SMAP has allocated an ID for a confirmed
	// request; it is read back by the caller (via the Request value it
	// passed down) to correlate with a later Confirmation.
	InvokeID uint8
}

// Indication is a peer-originated service call delivered to the
// application, confirmed or unconfirmed.
type Indication struct {
	Confirmed     bool
	Source        pdu.Address
	InvokeID      uint8 // zero for unconfirmed
	ServiceChoice uint8
	ServiceData   []byte
}

// Outcome discriminates how a confirmed transaction concluded.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeReject
	OutcomeAbort
)

// Confirmation reports the outcome of a confirmed Request.
type Confirmation struct {
	InvokeID      uint8
	Source        pdu.Address
	Outcome       Outcome
	ServiceChoice uint8
	ServiceData   []byte // populated for OutcomeSuccess complex acks
	ErrorClass    uint8
	ErrorCode     uint8
	RejectReason  apdu.RejectReason
	AbortReason   apdu.AbortReason
}

// Response is what an application handler returns for an inbound
// confirmed Indication.
type Response struct {
	Simple        bool // true => SimpleAck, false => ComplexAck with Data
	Data          []byte
	ServiceChoice uint8
}

// ASAP is a comm.ClientServer: its Server side faces the application /
// IOController above, its Client side faces SMAP below.
type ASAP struct {
	comm.ClientPort
	comm.ServerPort

	logger *slog.Logger

	// recognized is the set of service choices the application layer has
	// registered a handler for. A confirmed Indication for an
	// unregistered choice is rejected here without bothering the
	// application (§4.2 "unrecognized service -> Reject").
	recognized map[uint8]bool

	// IndicationHandler services an inbound confirmed or unconfirmed
	// request and returns the application's Response. It is nil-safe: if
	// unset, every confirmed Indication degenerates to a Reject with
	// RejectUnrecognizedService.
	IndicationHandler func(*Indication) (*Response, error)

	// ConfirmationHandler delivers the outcome of an application-
	// originated confirmed Request up to the IOController that is
	// tracking it.
	ConfirmationHandler func(*Confirmation)
}

func New(logger *slog.Logger) *ASAP {
	if logger == nil {
		logger = slog.Default()
	}
	return &ASAP{logger: logger.With("component", "asap"), recognized: make(map[uint8]bool)}
}

// RegisterService marks a service choice as handled by the application,
// so inbound confirmed requests for it are not auto-rejected.
func (a *ASAP) RegisterService(choice uint8) {
	a.recognized[choice] = true
}

// Indication receives an application Request (carried in p.UserData) and
// forwards the corresponding apdu.APDU struct down to SMAP.
func (a *ASAP) Indication(p *pdu.PDU) error {
	req, ok := p.UserData.(*Request)
	if !ok {
		return ErrBadPayload
	}
	var out apdu.APDU
	var cr *apdu.ConfirmedRequest
	if req.Confirmed {
		cr = &apdu.ConfirmedRequest{
			SegmentedResponseAccepted: req.SegmentedResponseAccepted,
			MaxSegmentsAccepted:       req.MaxSegmentsAccepted,
			MaxResponseSegments:       req.MaxResponseSegments,
			ServiceChoice:             req.ServiceChoice,
			ServiceData:               req.ServiceData,
		}
		out = cr
	} else {
		out = &apdu.UnconfirmedRequest{ServiceChoice: req.ServiceChoice, ServiceData: req.ServiceData}
	}
	down := &pdu.PDU{Destination: req.Destination, UserData: out}
	err := a.Request(down)
	if cr != nil {
		req.InvokeID = cr.InvokeID
	}
	return err
}

// Confirmation receives a decoded apdu.APDU from SMAP (carried in
// p.UserData) and either delivers it to the application as an Indication
// (peer-originated request) or a Confirmation (outcome of our own
// request).
func (a *ASAP) Confirmation(p *pdu.PDU) error {
	in, ok := p.UserData.(apdu.APDU)
	if !ok {
		return ErrBadPayload
	}
	switch v := in.(type) {
	case *apdu.ConfirmedRequest:
		return a.deliverConfirmedIndication(p.Source, v)
	case *apdu.UnconfirmedRequest:
		if a.IndicationHandler != nil {
			_, err := a.IndicationHandler(&Indication{Source: p.Source, ServiceChoice: v.ServiceChoice, ServiceData: v.ServiceData})
			return err
		}
		return nil
	case *apdu.SimpleAck:
		a.deliverConfirmation(&Confirmation{InvokeID: v.InvokeID, Source: p.Source, Outcome: OutcomeSuccess, ServiceChoice: v.ServiceChoice})
	case *apdu.ComplexAck:
		a.deliverConfirmation(&Confirmation{InvokeID: v.InvokeID, Source: p.Source, Outcome: OutcomeSuccess, ServiceChoice: v.ServiceChoice, ServiceData: v.ServiceData})
	case *apdu.Error:
		a.deliverConfirmation(&Confirmation{InvokeID: v.InvokeID, Source: p.Source, Outcome: OutcomeError, ServiceChoice: v.ServiceChoice, ErrorClass: v.ErrorClass, ErrorCode: v.ErrorCode})
	case *apdu.Reject:
		a.deliverConfirmation(&Confirmation{InvokeID: v.InvokeID, Source: p.Source, Outcome: OutcomeReject, RejectReason: v.Reason})
	case *apdu.Abort:
		a.deliverConfirmation(&Confirmation{InvokeID: v.InvokeID, Source: p.Source, Outcome: OutcomeAbort, AbortReason: v.Reason})
	default:
		a.logger.Warn("confirmation of unexpected apdu type", "type", in.Type())
	}
	return nil
}

func (a *ASAP) deliverConfirmation(c *Confirmation) {
	if a.ConfirmationHandler != nil {
		a.ConfirmationHandler(c)
	}
}

// deliverConfirmedIndication services an inbound confirmed request and
// sends back a SimpleAck/ComplexAck, or a Reject when the service is
// unrecognized or the handler returns an error, through the Response
// path down to SMAP, which stamps it with the matching invoke ID framing
// and segmentation as needed.
func (a *ASAP) deliverConfirmedIndication(src pdu.Address, req *apdu.ConfirmedRequest) error {
	if !a.recognized[req.ServiceChoice] || a.IndicationHandler == nil {
		return a.Request(&pdu.PDU{Destination: src, UserData: &apdu.Reject{InvokeID: req.InvokeID, Reason: apdu.RejectUnrecognizedService}})
	}
	resp, err := a.IndicationHandler(&Indication{
		Confirmed:     true,
		Source:        src,
		InvokeID:      req.InvokeID,
		ServiceChoice: req.ServiceChoice,
		ServiceData:   req.ServiceData,
	})
	var reply apdu.APDU
	switch {
	case err != nil:
		reply = &apdu.Reject{InvokeID: req.InvokeID, Reason: apdu.RejectOther}
	case resp == nil || resp.Simple:
		reply = &apdu.SimpleAck{InvokeID: req.InvokeID, ServiceChoice: req.ServiceChoice}
	default:
		reply = &apdu.ComplexAck{InvokeID: req.InvokeID, ServiceChoice: resp.ServiceChoice, ServiceData: resp.Data}
	}
	return a.Request(&pdu.PDU{Destination: src, UserData: reply})
}
