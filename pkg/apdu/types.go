// Package apdu implements the Application Protocol Data Unit: the
// discriminated PDU subtypes exchanged between BACnet devices, and their
// big-endian wire encoding.
package apdu

import "fmt"

// Type discriminates the eight APDU subtypes by the top nibble of the
// first octet.
type Type uint8

const (
	ConfirmedRequestType Type = iota
	UnconfirmedRequestType
	SimpleAckType
	ComplexAckType
	SegmentAckType
	ErrorType
	RejectType
	AbortType
)

func (t Type) String() string {
	switch t {
	case ConfirmedRequestType:
		return "ConfirmedRequest"
	case UnconfirmedRequestType:
		return "UnconfirmedRequest"
	case SimpleAckType:
		return "SimpleAck"
	case ComplexAckType:
		return "ComplexAck"
	case SegmentAckType:
		return "SegmentAck"
	case ErrorType:
		return "Error"
	case RejectType:
		return "Reject"
	case AbortType:
		return "Abort"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// APDU is implemented by every concrete subtype.
type APDU interface {
	Type() Type
	// Encode appends the wire form of the APDU to dst and returns it.
	Encode(dst []byte) []byte
}

// GetInvokeID returns the invoke ID of APDU subtypes that carry one, and
// false for Unconfirmed-Request (which carries none).
func GetInvokeID(a APDU) (uint8, bool) {
	switch v := a.(type) {
	case *ConfirmedRequest:
		return v.InvokeID, true
	case *SimpleAck:
		return v.InvokeID, true
	case *ComplexAck:
		return v.InvokeID, true
	case *SegmentAck:
		return v.InvokeID, true
	case *Error:
		return v.InvokeID, true
	case *Reject:
		return v.InvokeID, true
	case *Abort:
		return v.InvokeID, true
	default:
		return 0, false
	}
}

// RejectReason enumerates the wire-visible reject reasons of §7.
type RejectReason uint8

const (
	RejectBufferOverflow RejectReason = iota
	RejectInconsistentParameters
	RejectInvalidParameterDataType
	RejectInvalidTag
	RejectMissingRequiredParameter
	RejectParameterOutOfRange
	RejectTooManyArguments
	RejectUndefinedEnumeration
	RejectUnrecognizedService
	RejectOther
)

func (r RejectReason) String() string {
	names := [...]string{
		"bufferOverflow", "inconsistentParameters", "invalidParameterDataType",
		"invalidTag", "missingRequiredParameter", "parameterOutOfRange",
		"tooManyArguments", "undefinedEnumeration", "unrecognizedService", "other",
	}
	if int(r) < len(names) {
		return names[r]
	}
	return "other"
}

// AbortReason enumerates the wire-visible abort reasons of §7.
type AbortReason uint8

const (
	AbortBufferOverflow AbortReason = iota
	AbortInvalidApduInThisState
	AbortPreemptedByHigherPriorityTask
	AbortSegmentationNotSupported
	AbortApduTooLong
	AbortNoResponse
	AbortServerTimeout
)

func (r AbortReason) String() string {
	names := [...]string{
		"bufferOverflow", "invalidApduInThisState", "preemptedByHigherPriorityTask",
		"segmentationNotSupported", "apduTooLong", "noResponse", "serverTimeout",
	}
	if int(r) < len(names) {
		return names[r]
	}
	return "other"
}
