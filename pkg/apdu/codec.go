package apdu

// Decode reads a single APDU from its wire form. It is the one entry
// point used by ASAP on the upstream path; malformed data always yields
// ErrTruncated/ErrUnknownType rather than panicking, so callers can turn a
// decode failure into a Reject/Abort per §4.2.
func Decode(data []byte) (APDU, error) {
	if len(data) < 1 {
		return nil, ErrTruncated
	}
	t := Type(data[0] >> 4)
	flags := data[0] & 0x0F
	rest := data[1:]
	switch t {
	case ConfirmedRequestType:
		return decodeConfirmedRequest(flags, rest)
	case UnconfirmedRequestType:
		return decodeUnconfirmedRequest(rest)
	case SimpleAckType:
		return decodeSimpleAck(rest)
	case ComplexAckType:
		return decodeComplexAck(flags, rest)
	case SegmentAckType:
		return decodeSegmentAck(flags, rest)
	case ErrorType:
		return decodeError(rest)
	case RejectType:
		return decodeReject(rest)
	case AbortType:
		return decodeAbort(flags, rest)
	default:
		return nil, ErrUnknownType
	}
}

// Encode is a convenience wrapper around APDU.Encode(nil).
func Encode(a APDU) []byte {
	return a.Encode(nil)
}
