package apdu

// Abort terminates a transaction. Server indicates which side originated
// it: true means the server is aborting (routes to the client SSM on
// delivery), false means the client is aborting (routes to the server SSM).
type Abort struct {
	Server    bool
	InvokeID  uint8
	Reason    AbortReason
}

func (a *Abort) Type() Type { return AbortType }

func (a *Abort) Encode(dst []byte) []byte {
	flags := byte(0)
	if a.Server {
		flags |= 0x01
	}
	dst = append(dst, byte(AbortType)<<4|flags)
	dst = append(dst, a.InvokeID, uint8(a.Reason))
	return dst
}

func decodeAbort(flags byte, data []byte) (*Abort, error) {
	if len(data) < 2 {
		return nil, ErrTruncated
	}
	return &Abort{Server: flags&0x01 != 0, InvokeID: data[0], Reason: AbortReason(data[1])}, nil
}

// Reject reports a malformed or unrecognized request; it is always
// generated locally, never forwarded by an application.
type Reject struct {
	InvokeID uint8
	Reason   RejectReason
}

func (r *Reject) Type() Type { return RejectType }

func (r *Reject) Encode(dst []byte) []byte {
	dst = append(dst, byte(RejectType)<<4)
	dst = append(dst, r.InvokeID, uint8(r.Reason))
	return dst
}

func decodeReject(data []byte) (*Reject, error) {
	if len(data) < 2 {
		return nil, ErrTruncated
	}
	return &Reject{InvokeID: data[0], Reason: RejectReason(data[1])}, nil
}

// Error carries an application-layer (errorClass, errorCode) pair, the
// result of an execution error in a confirmed-service handler.
type Error struct {
	InvokeID      uint8
	ServiceChoice uint8
	ErrorClass    uint8
	ErrorCode     uint8
}

func (e *Error) Type() Type { return ErrorType }

func (e *Error) Encode(dst []byte) []byte {
	dst = append(dst, byte(ErrorType)<<4)
	dst = append(dst, e.InvokeID, e.ServiceChoice, e.ErrorClass, e.ErrorCode)
	return dst
}

func decodeError(data []byte) (*Error, error) {
	if len(data) < 4 {
		return nil, ErrTruncated
	}
	return &Error{InvokeID: data[0], ServiceChoice: data[1], ErrorClass: data[2], ErrorCode: data[3]}, nil
}
