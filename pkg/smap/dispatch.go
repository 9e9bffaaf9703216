package smap

import (
	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/ssm"
)

// Indication receives a downward request or reply from ASAP (carried in
// p.UserData) and either starts a new client transaction, forwards an
// unconfirmed request, or routes a reply to the server transaction it
// answers.
func (s *SMAP) Indication(p *pdu.PDU) error {
	switch v := p.UserData.(type) {
	case *apdu.UnconfirmedRequest:
		exempt := s.dcc == DCCDisableInitiation && v.ServiceChoice == iAmServiceChoice
		if s.dcc != DCCEnabled && !exempt {
			return ErrCommunicationDisabled
		}
		return s.Request(&pdu.PDU{Destination: p.Destination, Data: apdu.Encode(v)})
	case *apdu.ConfirmedRequest:
		if s.dcc != DCCEnabled {
			return ErrCommunicationDisabled
		}
		id, err := s.allocateInvokeID(p.Destination)
		if err != nil {
			return err
		}
		v.InvokeID = id
		key := txnKey{id, p.Destination.String()}
		c := ssm.NewClientSSM(s.cfg, s.sched, transport{s}, p.Destination, id, s.peerInfo(p.Destination), func(result apdu.APDU) {
			delete(s.clientTxns, key)
			_ = s.Response(&pdu.PDU{Source: p.Destination, UserData: result})
		})
		s.clientTxns[key] = c
		return c.Request(v)
	case apdu.APDU:
		// A reply to a previously-received confirmed indication: route to
		// the matching server transaction.
		id, _ := apdu.GetInvokeID(v)
		key := txnKey{id, p.Destination.String()}
		srv, ok := s.serverTxns[key]
		if !ok {
			return ErrNoTransaction
		}
		err := srv.Respond(v)
		if srv.State() == ssm.Completed || srv.State() == ssm.Aborted {
			delete(s.serverTxns, key)
		}
		return err
	default:
		return ErrNoTransaction
	}
}

// Confirmation receives an inbound raw datagram from NSAP, decodes it and
// dispatches it to the right transaction (or straight up to ASAP for
// unconfirmed requests and new inbound confirmed requests).
func (s *SMAP) Confirmation(p *pdu.PDU) error {
	a, err := apdu.Decode(p.Data)
	if err != nil {
		s.logger.Warn("dropping undecodable apdu", "error", err)
		return nil
	}
	switch v := a.(type) {
	case *apdu.ConfirmedRequest:
		return s.dispatchConfirmedRequest(p.Source, v)
	case *apdu.UnconfirmedRequest:
		if s.dcc == DCCDisabled && v.ServiceChoice != whoIsServiceChoice {
			return nil
		}
		return s.Response(&pdu.PDU{Source: p.Source, UserData: v})
	case *apdu.SegmentAck:
		s.routeToSSM(p.Source, v.InvokeID, v.Server, v)
	case *apdu.Abort:
		s.routeToSSM(p.Source, v.InvokeID, v.Server, v)
	case *apdu.SimpleAck, *apdu.ComplexAck, *apdu.Error, *apdu.Reject:
		id, _ := apdu.GetInvokeID(v)
		s.routeToClient(p.Source, id, v)
	default:
		s.logger.Warn("dropping apdu of unroutable type", "type", a.Type())
	}
	return nil
}

// routeToSSM dispatches a SegmentAck or Abort by its Server flag: sent by
// a server routes to our client transaction table, sent by a client
// routes to our server transaction table (§4.4/§4.5).
func (s *SMAP) routeToSSM(src pdu.Address, invokeID uint8, sentByServer bool, a apdu.APDU) {
	if sentByServer {
		s.routeToClient(src, invokeID, a)
		return
	}
	key := txnKey{invokeID, src.String()}
	srv, ok := s.serverTxns[key]
	if !ok {
		return
	}
	switch v := a.(type) {
	case *apdu.SegmentAck:
		srv.HandleSegmentAck(v)
	case *apdu.Abort:
		delete(s.serverTxns, key)
	}
}

func (s *SMAP) routeToClient(src pdu.Address, invokeID uint8, a apdu.APDU) {
	key := txnKey{invokeID, src.String()}
	c, ok := s.clientTxns[key]
	if !ok {
		return
	}
	c.Indication(a)
}

func (s *SMAP) dispatchConfirmedRequest(src pdu.Address, req *apdu.ConfirmedRequest) error {
	if s.dcc == DCCDisabled && req.ServiceChoice != deviceCommunicationControlChoice && req.ServiceChoice != reinitializeDeviceServiceChoice {
		return nil
	}
	key := txnKey{req.InvokeID, src.String()}
	srv, ok := s.serverTxns[key]
	if !ok {
		srv = ssm.NewServerSSM(s.cfg, s.sched, transport{s}, src, req.InvokeID, s.peerInfo(src), func(complete *apdu.ConfirmedRequest) {
			_ = s.Response(&pdu.PDU{Source: src, UserData: complete})
		})
		s.serverTxns[key] = srv
	}
	srv.Indication(req)
	return nil
}
