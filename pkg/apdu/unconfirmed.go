package apdu

// UnconfirmedRequest carries a service choice and opaque service data; it
// never receives a response and is never segmented.
type UnconfirmedRequest struct {
	ServiceChoice uint8
	ServiceData   []byte
}

func (u *UnconfirmedRequest) Type() Type { return UnconfirmedRequestType }

func (u *UnconfirmedRequest) Encode(dst []byte) []byte {
	dst = append(dst, byte(UnconfirmedRequestType)<<4)
	dst = append(dst, u.ServiceChoice)
	dst = append(dst, u.ServiceData...)
	return dst
}

func decodeUnconfirmedRequest(data []byte) (*UnconfirmedRequest, error) {
	if len(data) < 1 {
		return nil, ErrTruncated
	}
	return &UnconfirmedRequest{
		ServiceChoice: data[0],
		ServiceData:   append([]byte(nil), data[1:]...),
	}, nil
}
