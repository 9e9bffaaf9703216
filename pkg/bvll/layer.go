package bvll

import (
	"log/slog"

	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/pdu"
)

// Layer is the BVLL/Annex-J framing layer as a comm.ClientServer: it sits
// between the NSAP above (bound as its client) and the UDP Director below
// (bound as its server peer). Indication wraps an outbound NPDU in the
// BVLL header and forwards it down; Confirmation strips the header off an
// inbound datagram and forwards the NPDU up.
type Layer struct {
	comm.ClientPort
	comm.ServerPort

	// BroadcastMac is the mac used for FunctionOriginalBroadcastNPDU
	// frames, typically the IPv4 limited- or subnet-broadcast address
	// paired with the BACnet/IP port (e.g. 255.255.255.255:47808).
	BroadcastMac []byte

	Logger *slog.Logger
}

// Indication receives an NPDU from the layer above and sends it down as a
// BVLL-framed datagram, choosing the unicast or broadcast function code
// from the destination's kind.
func (l *Layer) Indication(p *pdu.PDU) error {
	function := FunctionOriginalUnicastNPDU
	mac := p.Destination.Mac
	if p.Destination.IsBroadcast() {
		function = FunctionOriginalBroadcastNPDU
		mac = l.BroadcastMac
	}
	wire := Encode(function, p.Data)
	down := &pdu.PDU{
		Data:        wire,
		Source:      p.Source,
		Destination: pdu.NewLocalStation(mac),
		UserData:    p.UserData,
	}
	return l.Request(down)
}

// Confirmation receives a raw datagram from the Director, strips the BVLL
// header and, for the two NPDU-carrying function codes, forwards the
// payload up. Other function codes (BBMD/foreign-device management) are
// not part of the NPDU data path and are dropped here; §1 excludes BBMD
// relay logic.
func (l *Layer) Confirmation(p *pdu.PDU) error {
	frame, err := Decode(p.Data)
	if err != nil {
		if l.Logger != nil {
			l.Logger.Warn("dropping non-BVLL datagram", "error", err)
		}
		return nil
	}
	switch frame.Function {
	case FunctionOriginalUnicastNPDU, FunctionOriginalBroadcastNPDU:
		up := &pdu.PDU{Data: frame.Payload, Source: p.Source, UserData: p.UserData}
		return l.Response(up)
	default:
		return nil
	}
}
