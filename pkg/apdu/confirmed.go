package apdu

// ConfirmedRequest carries the segmentation control fields described in
// §3: seg, mor, sa, seq (only meaningful when seg), win (only meaningful
// when seg), invokeID, maxSegs/maxResp, service choice and data.
type ConfirmedRequest struct {
	Segmented                bool
	MoreFollows               bool
	SegmentedResponseAccepted bool
	MaxSegmentsAccepted       uint8 // bucket, see EncodeMaxSegments
	MaxResponseSegments       uint8 // bucket, see EncodeMaxAPDULength
	InvokeID                  uint8
	SequenceNumber            uint8 // valid iff Segmented
	ProposedWindowSize        uint8 // valid iff Segmented
	ServiceChoice             uint8
	ServiceData               []byte
}

func (c *ConfirmedRequest) Type() Type { return ConfirmedRequestType }

func (c *ConfirmedRequest) Encode(dst []byte) []byte {
	flags := byte(0)
	if c.Segmented {
		flags |= 0x08
	}
	if c.MoreFollows {
		flags |= 0x04
	}
	if c.SegmentedResponseAccepted {
		flags |= 0x02
	}
	dst = append(dst, byte(ConfirmedRequestType)<<4|flags)
	dst = append(dst, PackMaxSegsMaxResp(c.MaxSegmentsAccepted, c.MaxResponseSegments))
	dst = append(dst, c.InvokeID)
	if c.Segmented {
		dst = append(dst, c.SequenceNumber, c.ProposedWindowSize)
	}
	dst = append(dst, c.ServiceChoice)
	dst = append(dst, c.ServiceData...)
	return dst
}

func decodeConfirmedRequest(flags byte, data []byte) (*ConfirmedRequest, error) {
	c := &ConfirmedRequest{
		Segmented:                 flags&0x08 != 0,
		MoreFollows:                flags&0x04 != 0,
		SegmentedResponseAccepted: flags&0x02 != 0,
	}
	if len(data) < 3 {
		return nil, ErrTruncated
	}
	c.MaxSegmentsAccepted, c.MaxResponseSegments = UnpackMaxSegsMaxResp(data[0])
	c.InvokeID = data[1]
	idx := 2
	if c.Segmented {
		if len(data) < idx+2 {
			return nil, ErrTruncated
		}
		c.SequenceNumber = data[idx]
		c.ProposedWindowSize = data[idx+1]
		idx += 2
	}
	if len(data) < idx+1 {
		return nil, ErrTruncated
	}
	c.ServiceChoice = data[idx]
	c.ServiceData = append([]byte(nil), data[idx+1:]...)
	return c, nil
}
