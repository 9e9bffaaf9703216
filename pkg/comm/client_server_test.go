package comm

import (
	"testing"

	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoLayer is a minimal ClientServer: Indication bounces the PDU back up
// via Response, Confirmation records what it received.
type echoLayer struct {
	ClientPort
	ServerPort
	lastConfirmation *pdu.PDU
}

func (e *echoLayer) Indication(p *pdu.PDU) error {
	return e.Response(p)
}

func (e *echoLayer) Confirmation(p *pdu.PDU) error {
	e.lastConfirmation = p
	return nil
}

func TestBindRoutesRequestAndResponse(t *testing.T) {
	top := &echoLayer{}
	bottom := &echoLayer{}
	require.NoError(t, Bind(top, bottom))

	p := pdu.New([]byte{1, 2, 3})
	require.NoError(t, top.Request(p))
	assert.Same(t, p, top.lastConfirmation) // bottom.Indication -> bottom.Response -> top.Confirmation
}

func TestDoubleBindRejected(t *testing.T) {
	top := &echoLayer{}
	mid := &echoLayer{}
	bottom := &echoLayer{}
	require.NoError(t, Bind(top, mid))
	err := top.BindServer(bottom)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestUnboundRequestRejected(t *testing.T) {
	lone := &echoLayer{}
	err := lone.Request(pdu.New(nil))
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("nsap", &echoLayer{}))
	err := r.Register("nsap", &echoLayer{})
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
