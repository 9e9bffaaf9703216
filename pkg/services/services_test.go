package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhoIsRoundTripNoRange(t *testing.T) {
	data := EncodeWhoIs(WhoIs{})
	assert.Empty(t, data)
	got, err := DecodeWhoIs(data)
	require.NoError(t, err)
	assert.False(t, got.HasRange)
	assert.True(t, got.Matches(12345))
}

func TestWhoIsRoundTripWithRange(t *testing.T) {
	w := WhoIs{HasRange: true, DeviceInstanceRangeLowLimit: 100, DeviceInstanceRangeHighLimit: 200}
	data := EncodeWhoIs(w)
	got, err := DecodeWhoIs(data)
	require.NoError(t, err)
	assert.Equal(t, w, got)
	assert.True(t, got.Matches(150))
	assert.False(t, got.Matches(99))
	assert.False(t, got.Matches(201))
}

func TestIAmRoundTrip(t *testing.T) {
	a := IAm{DeviceIdentifier: 1001, MaxApduLengthAccepted: 1024, SegmentationSupported: 0, VendorID: 42}
	data := EncodeIAm(a)
	got, err := DecodeIAm(data)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestReadPropertyRoundTripNoArrayIndex(t *testing.T) {
	r := ReadProperty{ObjectIdentifier: ObjectIdentifier{ObjectType: 0, Instance: 1}, PropertyIdentifier: PropertyPresentValue}
	data := EncodeReadProperty(r)
	got, err := DecodeReadProperty(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestReadPropertyRoundTripWithArrayIndex(t *testing.T) {
	r := ReadProperty{
		ObjectIdentifier:   ObjectIdentifier{ObjectType: 0, Instance: 1},
		PropertyIdentifier: PropertyPresentValue,
		HasArrayIndex:      true,
		PropertyArrayIndex: 3,
	}
	data := EncodeReadProperty(r)
	got, err := DecodeReadProperty(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestReadPropertyAckRoundTripWithRealValue(t *testing.T) {
	var value []byte
	value = EncodeReal(value, 72.5)
	ack := ReadPropertyAck{
		ObjectIdentifier:   ObjectIdentifier{ObjectType: 0, Instance: 1},
		PropertyIdentifier: PropertyPresentValue,
		PropertyValue:      value,
	}
	data := EncodeReadPropertyAck(ack)
	got, err := DecodeReadPropertyAck(data)
	require.NoError(t, err)
	assert.Equal(t, ack, got)

	v, _, err := DecodeReal(got.PropertyValue)
	require.NoError(t, err)
	assert.InDelta(t, 72.5, v, 0.001)
}

func TestWritePropertyRoundTripWithPriority(t *testing.T) {
	var value []byte
	value = EncodeReal(value, 21.0)
	w := WriteProperty{
		ObjectIdentifier:   ObjectIdentifier{ObjectType: 0, Instance: 1},
		PropertyIdentifier: PropertyPresentValue,
		PropertyValue:      value,
		HasPriority:        true,
		Priority:           8,
	}
	data := EncodeWriteProperty(w)
	got, err := DecodeWriteProperty(data)
	require.NoError(t, err)
	assert.Equal(t, w, got)
}

func TestWritePropertyRoundTripWithoutPriority(t *testing.T) {
	var value []byte
	value = EncodeUnsigned(value, 1)
	w := WriteProperty{
		ObjectIdentifier:   ObjectIdentifier{ObjectType: 5, Instance: 10},
		PropertyIdentifier: PropertyPresentValue,
		PropertyValue:      value,
	}
	data := EncodeWriteProperty(w)
	got, err := DecodeWriteProperty(data)
	require.NoError(t, err)
	assert.Equal(t, w, got)
}

func TestDecodeTruncatedDataReturnsError(t *testing.T) {
	_, err := DecodeWhoIs([]byte{0x09})
	assert.Error(t, err)
}

func TestBooleanRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		data := EncodeBoolean(nil, v)
		got, n, err := DecodeBoolean(data)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(data), n)
	}
}

func TestObjectIdentifierRoundTrip(t *testing.T) {
	oid := ObjectIdentifier{ObjectType: ObjectTypeAnalogValue, Instance: 12345}
	data := EncodeObjectIdentifier(nil, oid)
	got, _, err := DecodeObjectIdentifier(data)
	require.NoError(t, err)
	assert.Equal(t, oid, got)
}
