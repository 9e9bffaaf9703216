package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/asap"
	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/iocb"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/services"
)

type fakeLower struct {
	comm.ServerPort
	sent []*pdu.PDU
}

func (f *fakeLower) Indication(p *pdu.PDU) error {
	f.sent = append(f.sent, p)
	return nil
}

func newTestApp(t *testing.T) (*Application, *fakeLower, *asap.ASAP) {
	t.Helper()
	a := asap.New(nil)
	lower := &fakeLower{}
	require.NoError(t, a.BindServer(lower))
	ioc := iocb.NewApplicationIOController(a)
	dev := DeviceObject{Identifier: 1001, VendorID: 42, MaxApduLengthAccepted: 1024, SegmentationSupported: deviceinfo.NoSegmentation}
	application := New(dev, a, ioc, deviceinfo.NewCache(), nil)
	return application, lower, a
}

func TestWhoIsWithNoRangeTriggersIAm(t *testing.T) {
	_, lower, a := newTestApp(t)
	require.NoError(t, a.Confirmation(&pdu.PDU{
		Source:   pdu.NewLocalStation([]byte{10, 0, 0, 1, 0, 1}),
		UserData: &apdu.UnconfirmedRequest{ServiceChoice: services.WhoIsServiceChoice, ServiceData: services.EncodeWhoIs(services.WhoIs{})},
	}))
	require.Len(t, lower.sent, 1)
	sent, ok := lower.sent[0].UserData.(*apdu.UnconfirmedRequest)
	require.True(t, ok)
	assert.Equal(t, uint8(services.IAmServiceChoice), sent.ServiceChoice)

	iAm, err := services.DecodeIAm(sent.ServiceData)
	require.NoError(t, err)
	assert.Equal(t, uint32(1001), iAm.DeviceIdentifier)
}

func TestWhoIsOutOfRangeIsIgnored(t *testing.T) {
	_, lower, a := newTestApp(t)
	require.NoError(t, a.Confirmation(&pdu.PDU{
		Source: pdu.NewLocalStation([]byte{10, 0, 0, 1, 0, 1}),
		UserData: &apdu.UnconfirmedRequest{
			ServiceChoice: services.WhoIsServiceChoice,
			ServiceData: services.EncodeWhoIs(services.WhoIs{
				HasRange: true, DeviceInstanceRangeLowLimit: 1, DeviceInstanceRangeHighLimit: 2,
			}),
		},
	}))
	assert.Empty(t, lower.sent)
}

func TestIAmUpdatesDeviceInfoCache(t *testing.T) {
	application, _, a := newTestApp(t)
	src := pdu.NewLocalStation([]byte{10, 0, 0, 2, 0, 1})
	iAm := services.IAm{DeviceIdentifier: 55, MaxApduLengthAccepted: 1024, SegmentationSupported: 0, VendorID: 7}
	require.NoError(t, a.Confirmation(&pdu.PDU{
		Source:   src,
		UserData: &apdu.UnconfirmedRequest{ServiceChoice: services.IAmServiceChoice, ServiceData: services.EncodeIAm(iAm)},
	}))

	info, ok := application.cache.Lookup(55)
	require.True(t, ok)
	assert.Equal(t, uint16(7), info.VendorID)
}

func TestReadPropertyServesRegisteredObject(t *testing.T) {
	application, lower, a := newTestApp(t)
	key := ObjectKey{ObjectType: 0, Instance: 1}
	var value []byte
	value = services.EncodeReal(value, 72.5)
	application.PutObject(key, &Object{Properties: map[uint32][]byte{services.PropertyPresentValue: value}})

	req := services.ReadProperty{ObjectIdentifier: services.ObjectIdentifier{ObjectType: 0, Instance: 1}, PropertyIdentifier: services.PropertyPresentValue}
	src := pdu.NewLocalStation([]byte{10, 0, 0, 3, 0, 1})
	require.NoError(t, a.Confirmation(&pdu.PDU{
		Source:   src,
		UserData: &apdu.ConfirmedRequest{InvokeID: 1, ServiceChoice: services.ReadPropertyServiceChoice, ServiceData: services.EncodeReadProperty(req)},
	}))

	require.Len(t, lower.sent, 1)
	ack, ok := lower.sent[0].UserData.(*apdu.ComplexAck)
	require.True(t, ok)
	got, err := services.DecodeReadPropertyAck(ack.ServiceData)
	require.NoError(t, err)
	v, _, err := services.DecodeReal(got.PropertyValue)
	require.NoError(t, err)
	assert.InDelta(t, 72.5, v, 0.001)
}

func TestReadPropertyRejectsUnknownObject(t *testing.T) {
	_, lower, a := newTestApp(t)
	req := services.ReadProperty{ObjectIdentifier: services.ObjectIdentifier{ObjectType: 0, Instance: 77}, PropertyIdentifier: services.PropertyPresentValue}
	src := pdu.NewLocalStation([]byte{10, 0, 0, 3, 0, 1})
	require.NoError(t, a.Confirmation(&pdu.PDU{
		Source:   src,
		UserData: &apdu.ConfirmedRequest{InvokeID: 1, ServiceChoice: services.ReadPropertyServiceChoice, ServiceData: services.EncodeReadProperty(req)},
	}))
	require.Len(t, lower.sent, 1)
	_, ok := lower.sent[0].UserData.(*apdu.Reject)
	assert.True(t, ok)
}

func TestWritePropertySucceedsOnRegisteredObject(t *testing.T) {
	application, lower, a := newTestApp(t)
	application.PutObject(ObjectKey{ObjectType: 0, Instance: 1}, &Object{Properties: map[uint32][]byte{}})

	var value []byte
	value = services.EncodeReal(value, 21.0)
	w := services.WriteProperty{ObjectIdentifier: services.ObjectIdentifier{ObjectType: 0, Instance: 1}, PropertyIdentifier: services.PropertyPresentValue, PropertyValue: value}
	src := pdu.NewLocalStation([]byte{10, 0, 0, 4, 0, 1})
	require.NoError(t, a.Confirmation(&pdu.PDU{
		Source:   src,
		UserData: &apdu.ConfirmedRequest{InvokeID: 2, ServiceChoice: services.WritePropertyServiceChoice, ServiceData: services.EncodeWriteProperty(w)},
	}))

	require.Len(t, lower.sent, 1)
	_, ok := lower.sent[0].UserData.(*apdu.SimpleAck)
	assert.True(t, ok)

	obj, ok := application.object(ObjectKey{ObjectType: 0, Instance: 1})
	require.True(t, ok)
	assert.Equal(t, value, obj.Properties[services.PropertyPresentValue])
}

func TestReadPropertyServesDeviceObjectIdentity(t *testing.T) {
	_, lower, a := newTestApp(t)
	req := services.ReadProperty{
		ObjectIdentifier:   services.ObjectIdentifier{ObjectType: services.ObjectTypeDevice, Instance: 1001},
		PropertyIdentifier: services.PropertyVendorIdentifier,
	}
	src := pdu.NewLocalStation([]byte{10, 0, 0, 5, 0, 1})
	require.NoError(t, a.Confirmation(&pdu.PDU{
		Source:   src,
		UserData: &apdu.ConfirmedRequest{InvokeID: 4, ServiceChoice: services.ReadPropertyServiceChoice, ServiceData: services.EncodeReadProperty(req)},
	}))

	require.Len(t, lower.sent, 1)
	ack, ok := lower.sent[0].UserData.(*apdu.ComplexAck)
	require.True(t, ok)
	got, err := services.DecodeReadPropertyAck(ack.ServiceData)
	require.NoError(t, err)
	v, _, err := services.DecodeUnsigned(got.PropertyValue)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)
}

func TestWritePropertyRejectsUnknownObject(t *testing.T) {
	_, lower, a := newTestApp(t)
	w := services.WriteProperty{ObjectIdentifier: services.ObjectIdentifier{ObjectType: 0, Instance: 99}, PropertyIdentifier: services.PropertyPresentValue, PropertyValue: []byte{1}}
	src := pdu.NewLocalStation([]byte{10, 0, 0, 4, 0, 1})
	require.NoError(t, a.Confirmation(&pdu.PDU{
		Source:   src,
		UserData: &apdu.ConfirmedRequest{InvokeID: 3, ServiceChoice: services.WritePropertyServiceChoice, ServiceData: services.EncodeWriteProperty(w)},
	}))
	require.Len(t, lower.sent, 1)
	_, ok := lower.sent[0].UserData.(*apdu.Reject)
	assert.True(t, ok)
}
