// Package npdu implements the Network Protocol Data Unit header described
// in §6: [version][control][dnet,dlen,daddr?][snet,slen,saddr?][hop?]
// [vendor?][msg?], plus the Network Service Access Point that selects a
// destination and binds to a single local adapter. Routing an NPDU across
// multiple networks (multi-adapter path selection) is out of scope per §1.
package npdu

import (
	"encoding/binary"
	"errors"
)

const ProtocolVersion uint8 = 0x01

// control octet bit layout (ANSI/ASHRAE 135).
const (
	ctrlNetworkMessage = 0x80
	ctrlDestPresent    = 0x20
	ctrlSrcPresent     = 0x08
	ctrlExpectingReply = 0x04
	ctrlPriorityMask   = 0x03
)

var (
	ErrTruncated    = errors.New("npdu: truncated header")
	ErrBadVersion   = errors.New("npdu: unsupported protocol version")
	ErrInvalidField = errors.New("npdu: invalid header field")
)

// NPDU is a decoded network-layer header paired with either an APDU (the
// common case) or network-layer message data (when NetworkMessage is
// set).
type NPDU struct {
	Version        uint8
	NetworkMessage bool
	ExpectingReply bool
	Priority       uint8 // 0..3, see §6

	DestPresent bool
	DNET        uint16
	DAdr        []byte // empty => broadcast on DNET

	SrcPresent bool
	SNET       uint16
	SAdr       []byte

	HopCount uint8 // valid iff DestPresent

	MessageType uint8  // valid iff NetworkMessage
	VendorID    uint16 // valid iff NetworkMessage && MessageType >= 0x80

	Data []byte // APDU bytes, or network-message data if NetworkMessage
}

// Encode produces the wire form of the header followed by Data.
func (n *NPDU) Encode() []byte {
	ctrl := byte(0)
	if n.NetworkMessage {
		ctrl |= ctrlNetworkMessage
	}
	if n.DestPresent {
		ctrl |= ctrlDestPresent
	}
	if n.SrcPresent {
		ctrl |= ctrlSrcPresent
	}
	if n.ExpectingReply {
		ctrl |= ctrlExpectingReply
	}
	ctrl |= n.Priority & ctrlPriorityMask

	out := []byte{ProtocolVersion, ctrl}
	if n.DestPresent {
		out = appendUint16(out, n.DNET)
		out = append(out, byte(len(n.DAdr)))
		out = append(out, n.DAdr...)
	}
	if n.SrcPresent {
		out = appendUint16(out, n.SNET)
		out = append(out, byte(len(n.SAdr)))
		out = append(out, n.SAdr...)
	}
	if n.DestPresent {
		out = append(out, n.HopCount)
	}
	if n.NetworkMessage {
		out = append(out, n.MessageType)
		if n.MessageType >= 0x80 {
			out = appendUint16(out, n.VendorID)
		}
	}
	out = append(out, n.Data...)
	return out
}

// Decode parses the header from raw bytes, leaving the remainder in Data.
func Decode(data []byte) (*NPDU, error) {
	if len(data) < 2 {
		return nil, ErrTruncated
	}
	n := &NPDU{Version: data[0]}
	if n.Version != ProtocolVersion {
		return nil, ErrBadVersion
	}
	ctrl := data[1]
	n.NetworkMessage = ctrl&ctrlNetworkMessage != 0
	n.DestPresent = ctrl&ctrlDestPresent != 0
	n.SrcPresent = ctrl&ctrlSrcPresent != 0
	n.ExpectingReply = ctrl&ctrlExpectingReply != 0
	n.Priority = ctrl & ctrlPriorityMask

	idx := 2
	if n.DestPresent {
		if len(data) < idx+3 {
			return nil, ErrTruncated
		}
		n.DNET = binary.BigEndian.Uint16(data[idx : idx+2])
		dlen := int(data[idx+2])
		idx += 3
		if len(data) < idx+dlen {
			return nil, ErrTruncated
		}
		n.DAdr = append([]byte(nil), data[idx:idx+dlen]...)
		idx += dlen
	}
	if n.SrcPresent {
		if len(data) < idx+3 {
			return nil, ErrTruncated
		}
		n.SNET = binary.BigEndian.Uint16(data[idx : idx+2])
		slen := int(data[idx+2])
		idx += 3
		if len(data) < idx+slen {
			return nil, ErrTruncated
		}
		n.SAdr = append([]byte(nil), data[idx:idx+slen]...)
		idx += slen
		if len(n.SAdr) == 0 {
			return nil, ErrInvalidField // a source specifier is never a broadcast
		}
	}
	if n.DestPresent {
		if len(data) < idx+1 {
			return nil, ErrTruncated
		}
		n.HopCount = data[idx]
		idx++
	}
	if n.NetworkMessage {
		if len(data) < idx+1 {
			return nil, ErrTruncated
		}
		n.MessageType = data[idx]
		idx++
		if n.MessageType >= 0x80 {
			if len(data) < idx+2 {
				return nil, ErrTruncated
			}
			n.VendorID = binary.BigEndian.Uint16(data[idx : idx+2])
			idx += 2
		}
	}
	n.Data = append([]byte(nil), data[idx:]...)
	return n, nil
}

func appendUint16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}
