// Package bvll implements the BACnet Virtual Link Layer / Annex-J UDP
// framing header: [type=0x81][function:1][length:2]...payload... Only
// header semantics and foreign-device registration framing are handled
// here; BBMD relay logic and NPDU contents are out of scope per §1.
package bvll

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Type is the fixed BVLL type octet for BACnet/IP.
const Type byte = 0x81

// Annex-J function codes, per §6's wire format (core: 0x0A/0x0B; foreign
// device registration: 0x05/0x06/0x07).
const (
	FunctionResult                        uint8 = 0x00
	FunctionWriteBroadcastDistribution     uint8 = 0x01
	FunctionReadBroadcastDistribution      uint8 = 0x02
	FunctionReadBroadcastDistributionAck   uint8 = 0x03
	FunctionForwardedNPDU                  uint8 = 0x04
	FunctionRegisterForeignDevice          uint8 = 0x05
	FunctionReadForeignDeviceTable         uint8 = 0x06
	FunctionDeleteForeignDeviceTableEntry  uint8 = 0x07
	FunctionDistributeBroadcastToNetwork   uint8 = 0x08
	FunctionOriginalUnicastNPDU            uint8 = 0x0A
	FunctionOriginalBroadcastNPDU          uint8 = 0x0B
)

var (
	ErrNotBVLL      = errors.New("bvll: not a BACnet/IP frame (bad type octet)")
	ErrTruncated    = errors.New("bvll: truncated frame")
	ErrLengthField  = errors.New("bvll: length field does not match frame size")
	ErrPayloadShort = errors.New("bvll: payload too short for function")
)

const headerLen = 4

// Frame is a decoded BVLL datagram: the function code plus its raw
// payload (the NPDU, for 0x0A/0x0B; function-specific fields otherwise).
type Frame struct {
	Function uint8
	Payload  []byte
}

// Encode produces the wire form: header + payload, with the length field
// set to the total frame size.
func Encode(function uint8, payload []byte) []byte {
	total := headerLen + len(payload)
	out := make([]byte, headerLen, total)
	out[0] = Type
	out[1] = function
	binary.BigEndian.PutUint16(out[2:4], uint16(total))
	out = append(out, payload...)
	return out
}

// Decode parses the BVLL header and returns the function code and
// payload. It validates the type octet and that the declared length
// matches the actual frame size.
func Decode(data []byte) (Frame, error) {
	if len(data) < headerLen {
		return Frame{}, ErrTruncated
	}
	if data[0] != Type {
		return Frame{}, fmt.Errorf("%w: got 0x%02x", ErrNotBVLL, data[0])
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if int(length) != len(data) {
		return Frame{}, fmt.Errorf("%w: header says %d, frame is %d bytes", ErrLengthField, length, len(data))
	}
	return Frame{Function: data[1], Payload: append([]byte(nil), data[headerLen:]...)}, nil
}

// EncodeOriginalUnicast wraps an NPDU for direct peer-to-peer delivery.
func EncodeOriginalUnicast(npdu []byte) []byte {
	return Encode(FunctionOriginalUnicastNPDU, npdu)
}

// EncodeOriginalBroadcast wraps an NPDU for local-broadcast delivery.
func EncodeOriginalBroadcast(npdu []byte) []byte {
	return Encode(FunctionOriginalBroadcastNPDU, npdu)
}

// RegisterForeignDevice is the payload of function 0x05: a single
// time-to-live, in seconds, after which the registration expires unless
// refreshed.
type RegisterForeignDevice struct {
	TimeToLive uint16
}

func (r RegisterForeignDevice) Encode() []byte {
	return Encode(FunctionRegisterForeignDevice, binaryUint16(r.TimeToLive))
}

func DecodeRegisterForeignDevice(payload []byte) (RegisterForeignDevice, error) {
	if len(payload) < 2 {
		return RegisterForeignDevice{}, ErrPayloadShort
	}
	return RegisterForeignDevice{TimeToLive: binary.BigEndian.Uint16(payload[:2])}, nil
}

func binaryUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}
