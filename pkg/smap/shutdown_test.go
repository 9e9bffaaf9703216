package smap

import (
	"context"
	"testing"
	"time"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainReturnsImmediatelyWhenIdle(t *testing.T) {
	s, _ := newSMAP(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.sched.Run(ctx)

	err := s.Drain(context.Background())
	assert.NoError(t, err)
}

func TestDrainWaitsForInFlightTransactionToComplete(t *testing.T) {
	s, _ := newSMAP(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.sched.Run(ctx)

	dest := pdu.NewLocalStation([]byte{1, 2, 3, 4, 0, 1})
	req := &apdu.ConfirmedRequest{ServiceChoice: 12, ServiceData: []byte{1}}
	require.NoError(t, s.Indication(&pdu.PDU{Destination: dest, UserData: req}))

	done := make(chan error, 1)
	go func() { done <- s.Drain(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Drain returned before the in-flight transaction completed")
	case <-time.After(30 * time.Millisecond):
	}

	ack := &apdu.SimpleAck{InvokeID: req.InvokeID, ServiceChoice: 12}
	require.NoError(t, s.Confirmation(&pdu.PDU{Source: dest, Data: apdu.Encode(ack)}))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Drain never observed the completed transaction")
	}
}
