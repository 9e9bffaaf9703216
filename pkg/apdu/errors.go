package apdu

import "errors"

// ErrTruncated is returned when a buffer is too short to hold a well
// formed APDU of the type its first octet claims.
var ErrTruncated = errors.New("apdu: truncated")

// ErrUnknownType is returned by Decode for a type nibble outside 0..7.
var ErrUnknownType = errors.New("apdu: unknown type")
