package npdu

import (
	"log/slog"

	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/pdu"
)

// defaultHopCount is written into every outbound header that carries a
// destination specifier; there is no routing here to decrement it against.
const defaultHopCount = 255

// NSAP is the Network Service Access Point (component E): it wraps an
// outbound APDU in an NPDU header built from the destination address, and
// unwraps an inbound NPDU into a PDU with Source/Destination populated for
// the layer above (ASAP). It binds downward to a single local adapter
// (the bvll.Layer); selecting among multiple adapters and forwarding
// across network boundaries is router behavior excluded per §1.
type NSAP struct {
	comm.ClientPort
	comm.ServerPort

	Logger *slog.Logger
}

func New(logger *slog.Logger) *NSAP {
	if logger == nil {
		logger = slog.Default()
	}
	return &NSAP{Logger: logger.With("component", "nsap")}
}

// Indication builds an NPDU header for p's destination and forwards the
// framed header+APDU down to the bound adapter.
func (n *NSAP) Indication(p *pdu.PDU) error {
	hdr := &NPDU{Version: ProtocolVersion, Data: p.Data}
	if p.Source.HasNetwork() {
		hdr.SrcPresent = true
		hdr.SNET = p.Source.Network
		hdr.SAdr = p.Source.Mac
	}
	switch p.Destination.Kind {
	case pdu.LocalStation, pdu.LocalBroadcast:
		// no destination specifier: delivered directly on this network
	case pdu.GlobalBroadcast:
		hdr.DestPresent = true
		hdr.DNET = 0xFFFF
	case pdu.RemoteBroadcast:
		hdr.DestPresent = true
		hdr.DNET = p.Destination.Network
	case pdu.RemoteStation:
		hdr.DestPresent = true
		hdr.DNET = p.Destination.Network
		hdr.DAdr = p.Destination.Mac
	}
	if hdr.DestPresent {
		hdr.HopCount = defaultHopCount
	}
	down := &pdu.PDU{
		Data:        hdr.Encode(),
		Source:      p.Source,
		Destination: p.Destination,
		UserData:    p.UserData,
	}
	return n.Request(down)
}

// Confirmation decodes an inbound NPDU header and, for an APDU-bearing
// header (NetworkMessage false), forwards the unwrapped APDU upward with
// Source rebuilt from the SNET/SADR header fields when present (otherwise
// the datagram's own source) and Destination set to the local station
// with no MAC. Network-layer
// messages (Who-Is-Router-To-Network and friends) are outside this
// package's scope and are logged and dropped.
func (n *NSAP) Confirmation(p *pdu.PDU) error {
	hdr, err := Decode(p.Data)
	if err != nil {
		n.Logger.Warn("dropping malformed NPDU", "error", err)
		return nil
	}
	if hdr.NetworkMessage {
		n.Logger.Debug("dropping network-layer message", "type", hdr.MessageType)
		return nil
	}
	up := &pdu.PDU{Data: hdr.Data, Source: p.Source, UserData: p.UserData}
	if hdr.SrcPresent {
		up.Source = pdu.NewRemoteStation(hdr.SNET, hdr.SAdr)
	}
	up.Destination = pdu.NewLocalStation(nil)
	return n.Response(up)
}
