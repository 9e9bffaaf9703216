package services

// WhoIsServiceChoice and IAmServiceChoice are the §6 mandatory unconfirmed
// services' wire service choice numbers.
const (
	WhoIsServiceChoice = 8
	IAmServiceChoice   = 0
)

// WhoIs is the device-discovery request: an empty body matches every
// device, a range restricts replies to devices whose instance number
// falls within [DeviceInstanceRangeLowLimit, DeviceInstanceRangeHighLimit].
type WhoIs struct {
	HasRange                     bool
	DeviceInstanceRangeLowLimit  uint32
	DeviceInstanceRangeHighLimit uint32
}

// Matches reports whether deviceInstance falls within the requested
// range, or true unconditionally when no range was given.
func (w WhoIs) Matches(deviceInstance uint32) bool {
	if !w.HasRange {
		return true
	}
	return deviceInstance >= w.DeviceInstanceRangeLowLimit && deviceInstance <= w.DeviceInstanceRangeHighLimit
}

// EncodeWhoIs encodes a Who-Is service request body.
func EncodeWhoIs(w WhoIs) []byte {
	if !w.HasRange {
		return nil
	}
	var dst []byte
	dst = EncodeContextUnsigned(dst, 0, w.DeviceInstanceRangeLowLimit)
	dst = EncodeContextUnsigned(dst, 1, w.DeviceInstanceRangeHighLimit)
	return dst
}

// DecodeWhoIs decodes a Who-Is service request body.
func DecodeWhoIs(data []byte) (WhoIs, error) {
	if len(data) == 0 {
		return WhoIs{}, nil
	}
	low, n, err := DecodeContextUnsigned(data, 0)
	if err != nil {
		return WhoIs{}, err
	}
	high, _, err := DecodeContextUnsigned(data[n:], 1)
	if err != nil {
		return WhoIs{}, err
	}
	return WhoIs{HasRange: true, DeviceInstanceRangeLowLimit: low, DeviceInstanceRangeHighLimit: high}, nil
}

// IAm is the device-discovery response, per §6: "expect every configured
// device to emit one I-Am to local broadcast containing its
// deviceIdentifier, maxAPDULengthAccepted, segmentationSupported,
// vendorID".
type IAm struct {
	DeviceIdentifier      uint32
	MaxApduLengthAccepted uint32
	SegmentationSupported uint32 // deviceinfo.Segmentation value
	VendorID              uint32
}

// EncodeIAm encodes an I-Am service request body. All four fields are
// application-tagged (I-Am has no context-tagged fields).
func EncodeIAm(a IAm) []byte {
	var dst []byte
	dst = EncodeObjectIdentifier(dst, ObjectIdentifier{ObjectType: ObjectTypeDevice, Instance: a.DeviceIdentifier})
	dst = EncodeUnsigned(dst, a.MaxApduLengthAccepted)
	dst = EncodeEnumerated(dst, a.SegmentationSupported)
	dst = EncodeUnsigned(dst, a.VendorID)
	return dst
}

// DecodeIAm decodes an I-Am service request body.
func DecodeIAm(data []byte) (IAm, error) {
	oid, n, err := DecodeObjectIdentifier(data)
	if err != nil {
		return IAm{}, err
	}
	maxApdu, n2, err := DecodeUnsigned(data[n:])
	if err != nil {
		return IAm{}, err
	}
	n += n2
	seg, n2, err := DecodeEnumerated(data[n:])
	if err != nil {
		return IAm{}, err
	}
	n += n2
	vendor, _, err := DecodeUnsigned(data[n:])
	if err != nil {
		return IAm{}, err
	}
	return IAm{
		DeviceIdentifier:      oid.Instance,
		MaxApduLengthAccepted: maxApdu,
		SegmentationSupported: seg,
		VendorID:              vendor,
	}, nil
}

// ObjectTypeAnalogValue is the standard object type for a generic
// read/write analog point (ASHRAE 135 clause 12.1, object type 2).
const ObjectTypeAnalogValue uint16 = 2

// ObjectTypeDevice is the standard object type for the device object
// itself (ASHRAE 135 clause 21, object type 8).
const ObjectTypeDevice uint16 = 8
