package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDURoundTrip(t *testing.T) {
	p := New(nil)
	p.PutByte(0x12)
	p.PutShort(0x3456)
	p.PutLong(0x789ABCDE)
	p.PutData([]byte{0xFF, 0xEE})

	b, err := p.GetByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x12), b)

	s, err := p.GetShort()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3456), s)

	l, err := p.GetLong()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x789ABCDE), l)

	rest, err := p.GetData(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xEE}, rest)

	assert.Equal(t, 0, p.Len())
}

func TestPDUUnderflow(t *testing.T) {
	p := New([]byte{0x01})
	_, err := p.GetShort()
	assert.ErrorIs(t, err, ErrBufferUnderflow)

	empty := New(nil)
	_, err = empty.GetByte()
	assert.ErrorIs(t, err, ErrBufferUnderflow)

	_, err = empty.GetData(1)
	assert.ErrorIs(t, err, ErrBufferUnderflow)
}

func TestAddressParsing(t *testing.T) {
	cases := []struct {
		in   string
		kind AddressKind
	}{
		{"*", LocalBroadcast},
		{"*:*", GlobalBroadcast},
		{"5:*", RemoteBroadcast},
		{"192.168.1.10:47808", LocalStation},
		{"5:192.168.1.10:47808", RemoteStation},
		{"0A0B0C0D", LocalStation},
	}
	for _, c := range cases {
		addr, err := ParseAddress(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.kind, addr.Kind, c.in)
	}
}

func TestAddressParsingInvalid(t *testing.T) {
	_, err := ParseAddress("")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressEqual(t *testing.T) {
	a := NewRemoteStation(5, []byte{1, 2, 3, 4, 0xBA, 0xC0})
	b := NewRemoteStation(5, []byte{1, 2, 3, 4, 0xBA, 0xC0})
	c := NewRemoteStation(6, []byte{1, 2, 3, 4, 0xBA, 0xC0})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
