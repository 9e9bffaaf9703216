package deviceinfo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bacstack/bacnet/pkg/pdu"
)

// ErrReleaseAtZero is the fatal error raised by Release on a record whose
// reference count is already zero — a runtime-invariant violation per §7.
var ErrReleaseAtZero = errors.New("deviceinfo: release of record at zero refcount")

// Cache is the dual-keyed device info store: every record is reachable by
// both its deviceIdentifier and its Address, and both indices always
// resolve to the same record (or neither does) — §8's quantified
// invariant.
//
// The scheduler is single-threaded per §5, so in normal operation Cache
// needs no lock; the mutex here only guards against the Network.Scan-style
// pattern (mirrored from the teacher's parallel identity scan in
// pkg/network.Network.Scan) where multiple goroutines probe devices
// concurrently before the scheduler loop is the only mutator.
type Cache struct {
	mu     sync.Mutex
	byID   map[uint32]*DeviceInfo
	byAddr map[string]*DeviceInfo
}

func NewCache() *Cache {
	return &Cache{
		byID:   make(map[uint32]*DeviceInfo),
		byAddr: make(map[string]*DeviceInfo),
	}
}

// Lookup returns the record for a known device id, if any.
func (c *Cache) Lookup(id uint32) (*DeviceInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.byID[id]
	return d, ok
}

// LookupByAddress returns the record for a known peer address, if any.
func (c *Cache) LookupByAddress(addr pdu.Address) (*DeviceInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.byAddr[addr.String()]
	return d, ok
}

// Update inserts or replaces a record's indices, rewriting both the id and
// address keys atomically. Any previous indices the record was filed
// under (as remembered in its cacheKeys) are dropped first, so moving a
// device to a new address (or renumbering its id) never leaves a stale
// index pointing at it.
func (c *Cache) Update(d *DeviceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unindexLocked(d)
	addrKey := d.Address.String()
	d.cacheKeys = cacheKey{id: d.DeviceIdentifier, hasID: true, addr: addrKey, hasAddr: true}
	c.byID[d.DeviceIdentifier] = d
	c.byAddr[addrKey] = d
}

func (c *Cache) unindexLocked(d *DeviceInfo) {
	if d.cacheKeys.hasID {
		if cur, ok := c.byID[d.cacheKeys.id]; ok && cur == d {
			delete(c.byID, d.cacheKeys.id)
		}
	}
	if d.cacheKeys.hasAddr {
		if cur, ok := c.byAddr[d.cacheKeys.addr]; ok && cur == d {
			delete(c.byAddr, d.cacheKeys.addr)
		}
	}
}

// IAm upserts a record from an I-Am broadcast. It locates the existing
// record by device instance first, falling back to source address,
// otherwise constructs a new one; every field is overwritten from the
// arguments, per §4.7.
func (c *Cache) IAm(id uint32, addr pdu.Address, maxApdu int, seg Segmentation, maxSegments *int, vendorID uint16, maxNpdu int) *DeviceInfo {
	c.mu.Lock()
	d, ok := c.byID[id]
	if !ok {
		d, ok = c.byAddr[addr.String()]
	}
	if !ok {
		d = &DeviceInfo{}
	}
	c.mu.Unlock()

	d.DeviceIdentifier = id
	d.Address = addr
	d.MaxApduLengthAccepted = maxApdu
	d.SegmentationSupported = seg
	d.MaxSegmentsAccepted = maxSegments
	d.VendorID = vendorID
	d.MaxNpduLength = maxNpdu

	c.Update(d)
	return d
}

// Acquire bumps the reference count of the record for id, creating a bare
// record with §6 defaults if none exists yet (mirrors a ClientSSM
// referencing a peer it has never received an I-Am from).
func (c *Cache) Acquire(id uint32, addr pdu.Address) *DeviceInfo {
	c.mu.Lock()
	d, ok := c.byID[id]
	if !ok {
		d, ok = c.byAddr[addr.String()]
	}
	if !ok {
		d = NewDeviceInfo(id, addr)
	}
	c.mu.Unlock()
	d.refCount++
	c.Update(d)
	return d
}

// AcquireByAddress is the address-first variant of Acquire, for a peer
// known only by address; a record it creates is filed under device
// identifier 0.
func (c *Cache) AcquireByAddress(addr pdu.Address) *DeviceInfo {
	c.mu.Lock()
	d, ok := c.byAddr[addr.String()]
	c.mu.Unlock()
	if !ok {
		d = NewDeviceInfo(0, addr)
	}
	d.refCount++
	c.Update(d)
	return d
}

// All returns a snapshot of every cached record, keyed by device
// identifier; used by the example device app's HTTP inspection surface.
func (c *Cache) All() []*DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*DeviceInfo, 0, len(c.byID))
	for _, d := range c.byID {
		out = append(out, d)
	}
	return out
}

// Release decrements a record's reference count. Releasing an
// already-zero record is a runtime invariant violation (§7): it returns
// ErrReleaseAtZero rather than going negative.
func (c *Cache) Release(d *DeviceInfo) error {
	if d.refCount <= 0 {
		return fmt.Errorf("%w: device %d", ErrReleaseAtZero, d.DeviceIdentifier)
	}
	d.refCount--
	return nil
}
