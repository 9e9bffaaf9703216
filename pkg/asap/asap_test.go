package asap

import (
	"testing"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	comm.ServerPort
	last *pdu.PDU
}

func (f *fakeServer) Indication(p *pdu.PDU) error {
	f.last = p
	return nil
}

func TestIndicationEncodesConfirmedRequest(t *testing.T) {
	a := New(nil)
	lower := &fakeServer{}
	require.NoError(t, a.BindServer(lower))

	req := &Request{Confirmed: true, ServiceChoice: 12, ServiceData: []byte{1, 2}}
	require.NoError(t, a.Indication(&pdu.PDU{UserData: req}))

	sent, ok := lower.last.UserData.(*apdu.ConfirmedRequest)
	require.True(t, ok)
	assert.Equal(t, uint8(12), sent.ServiceChoice)
}

func TestIndicationEncodesUnconfirmedRequest(t *testing.T) {
	a := New(nil)
	lower := &fakeServer{}
	require.NoError(t, a.BindServer(lower))

	req := &Request{Confirmed: false, ServiceChoice: 8, ServiceData: []byte{0xFF}}
	require.NoError(t, a.Indication(&pdu.PDU{UserData: req}))

	sent, ok := lower.last.UserData.(*apdu.UnconfirmedRequest)
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF}, sent.ServiceData)
}

func TestConfirmationDeliversSuccessOutcome(t *testing.T) {
	a := New(nil)
	var got *Confirmation
	a.ConfirmationHandler = func(c *Confirmation) { got = c }

	ack := &apdu.SimpleAck{InvokeID: 5, ServiceChoice: 1}
	require.NoError(t, a.Confirmation(&pdu.PDU{UserData: ack}))

	require.NotNil(t, got)
	assert.Equal(t, OutcomeSuccess, got.Outcome)
	assert.Equal(t, uint8(5), got.InvokeID)
}

func TestConfirmationDeliversAbortOutcome(t *testing.T) {
	a := New(nil)
	var got *Confirmation
	a.ConfirmationHandler = func(c *Confirmation) { got = c }

	require.NoError(t, a.Confirmation(&pdu.PDU{UserData: &apdu.Abort{InvokeID: 7, Reason: apdu.AbortServerTimeout}}))

	require.NotNil(t, got)
	assert.Equal(t, OutcomeAbort, got.Outcome)
	assert.Equal(t, apdu.AbortServerTimeout, got.AbortReason)
}

func TestUnrecognizedServiceIsRejected(t *testing.T) {
	a := New(nil)
	lower := &fakeServer{}
	require.NoError(t, a.BindServer(lower))

	in := &apdu.ConfirmedRequest{InvokeID: 3, ServiceChoice: 99}
	require.NoError(t, a.Confirmation(&pdu.PDU{Source: pdu.NewLocalStation([]byte{1, 2, 3, 4, 0, 1}), UserData: in}))

	reject, ok := lower.last.UserData.(*apdu.Reject)
	require.True(t, ok)
	assert.Equal(t, apdu.RejectUnrecognizedService, reject.Reason)
	assert.Equal(t, uint8(3), reject.InvokeID)
}

func TestRecognizedServiceReachesHandler(t *testing.T) {
	a := New(nil)
	lower := &fakeServer{}
	require.NoError(t, a.BindServer(lower))
	a.RegisterService(12)
	a.IndicationHandler = func(ind *Indication) (*Response, error) {
		return &Response{Simple: true}, nil
	}

	in := &apdu.ConfirmedRequest{InvokeID: 9, ServiceChoice: 12}
	require.NoError(t, a.Confirmation(&pdu.PDU{UserData: in}))

	ack, ok := lower.last.UserData.(*apdu.SimpleAck)
	require.True(t, ok)
	assert.Equal(t, uint8(9), ack.InvokeID)
}
