package pdu

import "errors"

var (
	// ErrBufferUnderflow is returned by any Get* method when the buffer
	// does not hold enough octets to satisfy the read.
	ErrBufferUnderflow = errors.New("pdu: buffer underflow")

	// ErrInvalidAddress is returned when a textual address cannot be parsed.
	ErrInvalidAddress = errors.New("pdu: invalid address")
)
