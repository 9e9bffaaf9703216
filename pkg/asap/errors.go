package asap

import "errors"

// ErrBadPayload is returned when a PDU arrives without the UserData shape
// this layer expects (a *Request downward, a decoded apdu.APDU upward).
var ErrBadPayload = errors.New("asap: pdu carries unexpected payload type")
