package ssm

import (
	"testing"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sent []apdu.APDU
}

func (f *fakeTransport) Send(dest pdu.Address, a apdu.APDU) error {
	f.sent = append(f.sent, a)
	return nil
}

func segmentedPeer() *deviceinfo.DeviceInfo {
	di := deviceinfo.NewDeviceInfo(1, pdu.NewLocalStation([]byte{1, 2, 3, 4, 0, 1}))
	di.SegmentationSupported = deviceinfo.SegmentedBoth
	return di
}

func testConfig() Config {
	return Config{NumberOfApduRetries: 3, SegmentSize: 4, ProposedWindowSize: 2, LocalSegmentationSupported: deviceinfo.SegmentedBoth}
}

func TestClientSSMSegmentedWriteSendsInitialWindow(t *testing.T) {
	tr := &fakeTransport{}
	sched := scheduler.New(nil)
	var completed apdu.APDU
	c := NewClientSSM(testConfig(), sched, tr, pdu.NewLocalStation(nil), 7, segmentedPeer(), func(a apdu.APDU) { completed = a })

	req := &apdu.ConfirmedRequest{ServiceChoice: 15, ServiceData: make([]byte, 10)}
	require.NoError(t, c.Request(req))

	require.Len(t, tr.sent, 2) // window size 2 of 3 total segments
	seg0 := tr.sent[0].(*apdu.ConfirmedRequest)
	assert.Equal(t, uint8(0), seg0.SequenceNumber)
	assert.True(t, seg0.MoreFollows)
	assert.Equal(t, SegmentedRequest, c.State())
	assert.Nil(t, completed)
}

func TestClientSSMSegmentedWriteAdvancesWindowAndCompletes(t *testing.T) {
	tr := &fakeTransport{}
	sched := scheduler.New(nil)
	var completed apdu.APDU
	c := NewClientSSM(testConfig(), sched, tr, pdu.NewLocalStation(nil), 7, segmentedPeer(), func(a apdu.APDU) { completed = a })
	req := &apdu.ConfirmedRequest{ServiceChoice: 15, ServiceData: make([]byte, 10)}
	require.NoError(t, c.Request(req))

	c.Indication(&apdu.SegmentAck{InvokeID: 7, SequenceNumber: 1, ActualWindowSize: 2})
	require.Len(t, tr.sent, 3) // +1 for the final segment
	last := tr.sent[2].(*apdu.ConfirmedRequest)
	assert.Equal(t, uint8(2), last.SequenceNumber)
	assert.False(t, last.MoreFollows)

	c.Indication(&apdu.SegmentAck{InvokeID: 7, SequenceNumber: 2, ActualWindowSize: 2})
	assert.Equal(t, AwaitConfirmation, c.State())

	c.Indication(&apdu.SimpleAck{InvokeID: 7, ServiceChoice: 15})
	require.NotNil(t, completed)
	assert.Equal(t, Completed, c.State())
}

func TestClientSSMNegativeSegmentAckRetransmits(t *testing.T) {
	tr := &fakeTransport{}
	sched := scheduler.New(nil)
	c := NewClientSSM(testConfig(), sched, tr, pdu.NewLocalStation(nil), 1, segmentedPeer(), nil)
	req := &apdu.ConfirmedRequest{ServiceChoice: 1, ServiceData: make([]byte, 10)}
	require.NoError(t, c.Request(req))
	require.Len(t, tr.sent, 2)

	c.Indication(&apdu.SegmentAck{InvokeID: 1, NegativeAck: true, SequenceNumber: 0, ActualWindowSize: 2})

	// resend starting from seq 1: segment 1 and 2
	require.Len(t, tr.sent, 4)
	resent := tr.sent[2].(*apdu.ConfirmedRequest)
	assert.Equal(t, uint8(1), resent.SequenceNumber)
}

func TestClientSSMSmallRequestSkipsSegmentation(t *testing.T) {
	tr := &fakeTransport{}
	sched := scheduler.New(nil)
	c := NewClientSSM(testConfig(), sched, tr, pdu.NewLocalStation(nil), 9, nil, nil)
	req := &apdu.ConfirmedRequest{ServiceChoice: 2, ServiceData: []byte{1, 2}}
	require.NoError(t, c.Request(req))

	require.Len(t, tr.sent, 1)
	assert.Equal(t, AwaitConfirmation, c.State())
	assert.False(t, tr.sent[0].(*apdu.ConfirmedRequest).Segmented)
}

func TestClientSSMOutOfOrderSegmentIsNacked(t *testing.T) {
	tr := &fakeTransport{}
	sched := scheduler.New(nil)
	var completed apdu.APDU
	c := NewClientSSM(testConfig(), sched, tr, pdu.NewLocalStation(nil), 3, segmentedPeer(), func(a apdu.APDU) { completed = a })
	req := &apdu.ConfirmedRequest{ServiceChoice: 4, ServiceData: []byte{9}}
	require.NoError(t, c.Request(req))

	// server responds with a segmented ComplexAck, segment 0 first
	c.Indication(&apdu.ComplexAck{InvokeID: 3, Segmented: true, MoreFollows: true, SequenceNumber: 0, ServiceData: []byte{0xAA}})
	require.Equal(t, SegmentedConfirmation, c.State())

	// segment 2 arrives before segment 1: out of order, must be NAK'd
	c.Indication(&apdu.ComplexAck{InvokeID: 3, Segmented: true, MoreFollows: false, SequenceNumber: 2, ServiceData: []byte{0xCC}})
	require.Nil(t, completed)
	lastSent := tr.sent[len(tr.sent)-1].(*apdu.SegmentAck)
	assert.True(t, lastSent.NegativeAck)
	assert.Equal(t, uint8(0), lastSent.SequenceNumber)

	// the correct segment 1 now arrives
	c.Indication(&apdu.ComplexAck{InvokeID: 3, Segmented: true, MoreFollows: true, SequenceNumber: 1, ServiceData: []byte{0xBB}})
	// then the final segment 2
	c.Indication(&apdu.ComplexAck{InvokeID: 3, Segmented: true, MoreFollows: false, SequenceNumber: 2, ServiceData: []byte{0xCC}})

	require.NotNil(t, completed)
	final := completed.(*apdu.ComplexAck)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, final.ServiceData)
}
