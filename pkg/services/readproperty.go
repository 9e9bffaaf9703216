package services

// ReadPropertyServiceChoice is the §6 mandatory confirmed service choice
// for Read-Property.
const ReadPropertyServiceChoice = 12

// PropertyIdentifier values used by this module (ASHRAE 135 clause 21).
const (
	PropertyObjectIdentifier uint32 = 75
	PropertyObjectType       uint32 = 79
	PropertyPresentValue     uint32 = 85
	PropertyVendorIdentifier uint32 = 120
)

// ReadProperty is a Read-Property request body: an object, one of its
// properties, and an optional array index.
type ReadProperty struct {
	ObjectIdentifier  ObjectIdentifier
	PropertyIdentifier uint32
	HasArrayIndex      bool
	PropertyArrayIndex uint32
}

// EncodeReadProperty encodes a Read-Property request: context tag 0 is
// the object identifier, tag 1 the property identifier, optional tag 2
// the array index.
func EncodeReadProperty(r ReadProperty) []byte {
	var dst []byte
	dst = EncodeContextObjectIdentifier(dst, 0, r.ObjectIdentifier)
	dst = EncodeContextEnumerated(dst, 1, r.PropertyIdentifier)
	if r.HasArrayIndex {
		dst = EncodeContextUnsigned(dst, 2, r.PropertyArrayIndex)
	}
	return dst
}

// DecodeReadProperty decodes a Read-Property request body.
func DecodeReadProperty(data []byte) (ReadProperty, error) {
	oid, n, err := DecodeContextObjectIdentifier(data, 0)
	if err != nil {
		return ReadProperty{}, err
	}
	prop, n2, err := DecodeContextEnumerated(data[n:], 1)
	if err != nil {
		return ReadProperty{}, err
	}
	n += n2
	r := ReadProperty{ObjectIdentifier: oid, PropertyIdentifier: prop}
	if n < len(data) {
		if h, err := peekTag(data[n:]); err == nil && h.Context && h.Number == 2 {
			idx, _, err := DecodeContextUnsigned(data[n:], 2)
			if err != nil {
				return ReadProperty{}, err
			}
			r.HasArrayIndex = true
			r.PropertyArrayIndex = idx
		}
	}
	return r, nil
}

// ReadPropertyAck is the Complex-Ack body for a Read-Property: the same
// object/property/array-index echoed back, plus the property's value —
// left as an opaque, already application-tagged byte slice. Per §4.10's
// Non-goal, generic property encoders for non-device objects are out of
// scope; callers that need the decoded value use DecodeReal/DecodeUnsigned/
// etc. on PropertyValue directly (AnalogInput.present-value is a Real,
// BinaryInput.present-value an Enumerated, and so on).
type ReadPropertyAck struct {
	ObjectIdentifier   ObjectIdentifier
	PropertyIdentifier uint32
	HasArrayIndex      bool
	PropertyArrayIndex uint32
	PropertyValue      []byte
}

// EncodeReadPropertyAck encodes a Read-Property Complex-Ack body.
func EncodeReadPropertyAck(a ReadPropertyAck) []byte {
	var dst []byte
	dst = EncodeContextObjectIdentifier(dst, 0, a.ObjectIdentifier)
	dst = EncodeContextEnumerated(dst, 1, a.PropertyIdentifier)
	if a.HasArrayIndex {
		dst = EncodeContextUnsigned(dst, 2, a.PropertyArrayIndex)
	}
	dst = encodeOpeningTag(dst, 3)
	dst = append(dst, a.PropertyValue...)
	dst = encodeClosingTag(dst, 3)
	return dst
}

// DecodeReadPropertyAck decodes a Read-Property Complex-Ack body.
func DecodeReadPropertyAck(data []byte) (ReadPropertyAck, error) {
	oid, n, err := DecodeContextObjectIdentifier(data, 0)
	if err != nil {
		return ReadPropertyAck{}, err
	}
	prop, n2, err := DecodeContextEnumerated(data[n:], 1)
	if err != nil {
		return ReadPropertyAck{}, err
	}
	n += n2
	ack := ReadPropertyAck{ObjectIdentifier: oid, PropertyIdentifier: prop}
	if h, err := peekTag(data[n:]); err == nil && h.Context && h.Number == 2 {
		idx, consumed, err := DecodeContextUnsigned(data[n:], 2)
		if err != nil {
			return ReadPropertyAck{}, err
		}
		ack.HasArrayIndex = true
		ack.PropertyArrayIndex = idx
		n += consumed
	}
	open, n2, err := decodeTag(data[n:])
	if err != nil {
		return ReadPropertyAck{}, err
	}
	if !open.Opening || open.Number != 3 {
		return ReadPropertyAck{}, ErrUnexpectedTag
	}
	n += n2
	valueStart := n
	close, closeLen, err := findClosingTag(data[n:], 3)
	if err != nil {
		return ReadPropertyAck{}, err
	}
	ack.PropertyValue = append([]byte(nil), data[valueStart:valueStart+close]...)
	_ = closeLen
	return ack, nil
}

// findClosingTag scans data for the matching closing tag for number at
// nesting depth 0, returning the length of the enclosed value.
func findClosingTag(data []byte, number uint8) (int, int, error) {
	pos := 0
	depth := 0
	for pos < len(data) {
		h, n, err := decodeTag(data[pos:])
		if err != nil {
			return 0, 0, err
		}
		if h.Opening {
			depth++
			pos += n
			continue
		}
		if h.Closing {
			if depth == 0 && h.Number == number {
				return pos, n, nil
			}
			depth--
			pos += n
			continue
		}
		pos += n + int(h.Length)
	}
	return 0, 0, ErrTruncated
}
