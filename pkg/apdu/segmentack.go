package apdu

// SegmentAck is the window-advance/NAK message sent by the segment
// receiver. Server selects which transaction table the recipient's
// corresponding SMAP dispatches to: Server=true means this ack was sent by
// a server (so it routes to the client SSM), Server=false means it routes
// to the server SSM.
type SegmentAck struct {
	NegativeAck       bool
	Server            bool
	InvokeID          uint8
	SequenceNumber    uint8
	ActualWindowSize  uint8
}

func (s *SegmentAck) Type() Type { return SegmentAckType }

func (s *SegmentAck) Encode(dst []byte) []byte {
	flags := byte(0)
	if s.NegativeAck {
		flags |= 0x02
	}
	if s.Server {
		flags |= 0x01
	}
	dst = append(dst, byte(SegmentAckType)<<4|flags)
	dst = append(dst, s.InvokeID, s.SequenceNumber, s.ActualWindowSize)
	return dst
}

func decodeSegmentAck(flags byte, data []byte) (*SegmentAck, error) {
	if len(data) < 3 {
		return nil, ErrTruncated
	}
	return &SegmentAck{
		NegativeAck:      flags&0x02 != 0,
		Server:           flags&0x01 != 0,
		InvokeID:         data[0],
		SequenceNumber:   data[1],
		ActualWindowSize: data[2],
	}, nil
}
