// Package deviceinfo implements the per-peer capability record learned
// from I-Am broadcasts, and its dual-keyed, reference-counted cache.
package deviceinfo

import "github.com/bacstack/bacnet/pkg/pdu"

// Segmentation enumerates a device's segmentation support, as advertised
// in I-Am and in the apduSA/segmentation fields of Confirmed-Request.
type Segmentation uint8

const (
	NoSegmentation Segmentation = iota
	SegmentedTransmit
	SegmentedReceive
	SegmentedBoth
)

func (s Segmentation) String() string {
	switch s {
	case NoSegmentation:
		return "noSegmentation"
	case SegmentedTransmit:
		return "segmentedTransmit"
	case SegmentedReceive:
		return "segmentedReceive"
	case SegmentedBoth:
		return "segmentedBoth"
	default:
		return "unknown"
	}
}

// CanTransmitSegmented reports whether this capability allows sending
// segmented messages (requests from a client, or responses from a server).
func (s Segmentation) CanTransmitSegmented() bool {
	return s == SegmentedTransmit || s == SegmentedBoth
}

// CanReceiveSegmented reports whether this capability allows receiving
// segmented messages.
func (s Segmentation) CanReceiveSegmented() bool {
	return s == SegmentedReceive || s == SegmentedBoth
}

// Defaults from §6.
const (
	DefaultMaxApduLengthAccepted = 1024
)

// DeviceInfo is the learned capability record for a single peer device.
// It is shared and reference counted through Cache.Acquire,
// Cache.AcquireByAddress and Cache.Release; the cache never evicts
// records. SMAP and the SSMs look records up without acquiring them.
type DeviceInfo struct {
	DeviceIdentifier      uint32
	Address               pdu.Address
	MaxApduLengthAccepted int
	SegmentationSupported Segmentation
	// MaxSegmentsAccepted is nil when unknown (the spec's "null ≡
	// unknown/>64").
	MaxSegmentsAccepted *int
	VendorID              uint16
	MaxNpduLength         int

	refCount int
	// cacheKeys remembers the (id, address) pair last used to index this
	// record, so that Cache.Update can rewrite both indices atomically
	// even when either key changes.
	cacheKeys cacheKey
}

type cacheKey struct {
	id      uint32
	hasID   bool
	addr    string
	hasAddr bool
}

// NewDeviceInfo returns a record with the §6 defaults applied.
func NewDeviceInfo(id uint32, addr pdu.Address) *DeviceInfo {
	return &DeviceInfo{
		DeviceIdentifier:      id,
		Address:               addr,
		MaxApduLengthAccepted: DefaultMaxApduLengthAccepted,
		SegmentationSupported: NoSegmentation,
	}
}

// RefCount reports the number of Acquire/AcquireByAddress calls on this
// record not yet matched by a Release.
func (d *DeviceInfo) RefCount() int { return d.refCount }
