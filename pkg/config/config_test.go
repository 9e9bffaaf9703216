package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacstack/bacnet/pkg/deviceinfo"
)

const sampleINI = `
[device]
DeviceIdentifier = 1001
VendorID = 42
MaxApduLengthAccepted = 1024
SegmentationSupported = segmentedBoth

[transaction]
NumberOfApduRetries = 5
ApduTimeoutMs = 6000
SegmentTimeoutMs = 2500
ProposedWindowSize = 8

[network]
LocalAddress = :47808
BroadcastMac = 192.168.1.255:47808
`

func TestLoadBytesAppliesConfiguredValues(t *testing.T) {
	cfg, err := LoadBytes([]byte(sampleINI))
	require.NoError(t, err)
	assert.Equal(t, uint32(1001), cfg.DeviceIdentifier)
	assert.Equal(t, uint16(42), cfg.VendorID)
	assert.Equal(t, deviceinfo.SegmentedBoth, cfg.SegmentationSupported)
	assert.Equal(t, 5, cfg.SSM.NumberOfApduRetries)
	assert.Equal(t, 6000*time.Millisecond, cfg.SSM.ApduTimeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.SSM.SegmentTimeout)
	assert.Equal(t, uint8(8), cfg.SSM.ProposedWindowSize)
	assert.Equal(t, []byte{192, 168, 1, 255, 0xba, 0xc0}, cfg.BroadcastMac)
}

func TestDefaultFillsSpecDefaultsWhenUnset(t *testing.T) {
	cfg, err := LoadBytes([]byte("[device]\nDeviceIdentifier = 5\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.SSM.NumberOfApduRetries)
	assert.Equal(t, 3000*time.Millisecond, cfg.SSM.ApduTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.SSM.SegmentTimeout)
	assert.Equal(t, uint8(2), cfg.SSM.ProposedWindowSize)
	assert.Equal(t, deviceinfo.NoSegmentation, cfg.SegmentationSupported)
	assert.Equal(t, 3000*time.Millisecond, cfg.ApplicationTimeout)
}

func TestLoadBytesRejectsMalformedBroadcastMac(t *testing.T) {
	_, err := LoadBytes([]byte("[network]\nBroadcastMac = not-an-address\n"))
	assert.Error(t, err)
}
