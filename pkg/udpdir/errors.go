package udpdir

import "errors"

var (
	ErrNotConnected = errors.New("udpdir: director is not connected")
	ErrClosed       = errors.New("udpdir: director is closed")
	ErrInvalidMac   = errors.New("udpdir: destination mac is not a valid IPv4:port")
)
