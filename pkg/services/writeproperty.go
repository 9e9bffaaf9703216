package services

// WritePropertyServiceChoice is the §6 mandatory confirmed service choice
// for Write-Property.
const WritePropertyServiceChoice = 15

// WriteProperty is a Write-Property request body.
type WriteProperty struct {
	ObjectIdentifier   ObjectIdentifier
	PropertyIdentifier uint32
	HasArrayIndex      bool
	PropertyArrayIndex uint32
	// PropertyValue is the already application-tagged value to write, see
	// ReadPropertyAck's PropertyValue doc for why this stays opaque.
	PropertyValue []byte
	HasPriority   bool
	Priority      uint32
}

// EncodeWriteProperty encodes a Write-Property request body.
func EncodeWriteProperty(w WriteProperty) []byte {
	var dst []byte
	dst = EncodeContextObjectIdentifier(dst, 0, w.ObjectIdentifier)
	dst = EncodeContextEnumerated(dst, 1, w.PropertyIdentifier)
	if w.HasArrayIndex {
		dst = EncodeContextUnsigned(dst, 2, w.PropertyArrayIndex)
	}
	dst = encodeOpeningTag(dst, 3)
	dst = append(dst, w.PropertyValue...)
	dst = encodeClosingTag(dst, 3)
	if w.HasPriority {
		dst = EncodeContextUnsigned(dst, 4, w.Priority)
	}
	return dst
}

// DecodeWriteProperty decodes a Write-Property request body.
func DecodeWriteProperty(data []byte) (WriteProperty, error) {
	oid, n, err := DecodeContextObjectIdentifier(data, 0)
	if err != nil {
		return WriteProperty{}, err
	}
	prop, n2, err := DecodeContextEnumerated(data[n:], 1)
	if err != nil {
		return WriteProperty{}, err
	}
	n += n2
	w := WriteProperty{ObjectIdentifier: oid, PropertyIdentifier: prop}
	if h, err := peekTag(data[n:]); err == nil && h.Context && h.Number == 2 {
		idx, consumed, err := DecodeContextUnsigned(data[n:], 2)
		if err != nil {
			return WriteProperty{}, err
		}
		w.HasArrayIndex = true
		w.PropertyArrayIndex = idx
		n += consumed
	}
	open, n2, err := decodeTag(data[n:])
	if err != nil {
		return WriteProperty{}, err
	}
	if !open.Opening || open.Number != 3 {
		return WriteProperty{}, ErrUnexpectedTag
	}
	n += n2
	valueStart := n
	valueLen, closeLen, err := findClosingTag(data[n:], 3)
	if err != nil {
		return WriteProperty{}, err
	}
	w.PropertyValue = append([]byte(nil), data[valueStart:valueStart+valueLen]...)
	n += valueLen + closeLen
	if n < len(data) {
		if h, err := peekTag(data[n:]); err == nil && h.Context && h.Number == 4 {
			prio, _, err := DecodeContextUnsigned(data[n:], 4)
			if err != nil {
				return WriteProperty{}, err
			}
			w.HasPriority = true
			w.Priority = prio
		}
	}
	return w, nil
}
