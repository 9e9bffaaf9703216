package apdu

// SimpleAck acknowledges a confirmed request that produced no data.
type SimpleAck struct {
	InvokeID      uint8
	ServiceChoice uint8
}

func (a *SimpleAck) Type() Type { return SimpleAckType }

func (a *SimpleAck) Encode(dst []byte) []byte {
	dst = append(dst, byte(SimpleAckType)<<4)
	dst = append(dst, a.InvokeID, a.ServiceChoice)
	return dst
}

func decodeSimpleAck(data []byte) (*SimpleAck, error) {
	if len(data) < 2 {
		return nil, ErrTruncated
	}
	return &SimpleAck{InvokeID: data[0], ServiceChoice: data[1]}, nil
}

// ComplexAck acknowledges a confirmed request with response data, and may
// itself be segmented.
type ComplexAck struct {
	Segmented          bool
	MoreFollows         bool
	InvokeID            uint8
	SequenceNumber      uint8 // valid iff Segmented
	ProposedWindowSize  uint8 // valid iff Segmented
	ServiceChoice       uint8
	ServiceData         []byte
}

func (a *ComplexAck) Type() Type { return ComplexAckType }

func (a *ComplexAck) Encode(dst []byte) []byte {
	flags := byte(0)
	if a.Segmented {
		flags |= 0x08
	}
	if a.MoreFollows {
		flags |= 0x04
	}
	dst = append(dst, byte(ComplexAckType)<<4|flags)
	dst = append(dst, a.InvokeID)
	if a.Segmented {
		dst = append(dst, a.SequenceNumber, a.ProposedWindowSize)
	}
	dst = append(dst, a.ServiceChoice)
	dst = append(dst, a.ServiceData...)
	return dst
}

func decodeComplexAck(flags byte, data []byte) (*ComplexAck, error) {
	a := &ComplexAck{Segmented: flags&0x08 != 0, MoreFollows: flags&0x04 != 0}
	if len(data) < 1 {
		return nil, ErrTruncated
	}
	a.InvokeID = data[0]
	idx := 1
	if a.Segmented {
		if len(data) < idx+2 {
			return nil, ErrTruncated
		}
		a.SequenceNumber = data[idx]
		a.ProposedWindowSize = data[idx+1]
		idx += 2
	}
	if len(data) < idx+1 {
		return nil, ErrTruncated
	}
	a.ServiceChoice = data[idx]
	a.ServiceData = append([]byte(nil), data[idx+1:]...)
	return a, nil
}
