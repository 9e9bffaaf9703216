package deviceinfo

import (
	"testing"

	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIAmUpsertAndDualIndex(t *testing.T) {
	c := NewCache()
	addr := pdu.NewLocalStation([]byte{1, 2, 3, 4, 0xBA, 0xC0})
	d := c.IAm(100, addr, 1024, NoSegmentation, nil, 42, 1476)

	byID, ok := c.Lookup(100)
	require.True(t, ok)
	byAddr, ok := c.LookupByAddress(addr)
	require.True(t, ok)
	assert.Same(t, d, byID)
	assert.Same(t, d, byAddr)
}

func TestIAmRenumberRewritesBothIndices(t *testing.T) {
	c := NewCache()
	addr := pdu.NewLocalStation([]byte{1, 2, 3, 4, 0xBA, 0xC0})
	d := c.IAm(100, addr, 1024, NoSegmentation, nil, 42, 1476)

	// Device comes back with a new id at the same address (re-commissioned).
	c.IAm(200, addr, 1024, NoSegmentation, nil, 42, 1476)

	_, stillThere := c.Lookup(100)
	assert.False(t, stillThere, "old id index must be dropped")
	byAddr, ok := c.LookupByAddress(addr)
	require.True(t, ok)
	assert.Equal(t, uint32(200), byAddr.DeviceIdentifier)
	assert.Same(t, d, byAddr, "same record object is updated in place")
}

func TestAcquireReleaseRefCounting(t *testing.T) {
	c := NewCache()
	addr := pdu.NewLocalStation([]byte{1, 2, 3, 4, 0xBA, 0xC1})
	d := c.Acquire(5, addr)
	assert.Equal(t, 1, d.RefCount())
	d2 := c.Acquire(5, addr)
	assert.Same(t, d, d2)
	assert.Equal(t, 2, d.RefCount())

	require.NoError(t, c.Release(d))
	assert.Equal(t, 1, d.RefCount())
	require.NoError(t, c.Release(d))
	assert.Equal(t, 0, d.RefCount())
}

func TestReleaseAtZeroIsFatalError(t *testing.T) {
	c := NewCache()
	addr := pdu.NewLocalStation([]byte{9, 9, 9, 9, 0, 1})
	d := NewDeviceInfo(7, addr)
	err := c.Release(d)
	assert.ErrorIs(t, err, ErrReleaseAtZero)
}
