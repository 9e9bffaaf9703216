package comm

import "github.com/bacstack/bacnet/pkg/pdu"

// Client exposes Request (downward send) and Confirmation (upward
// receive).
type Client interface {
	Request(p *pdu.PDU) error
	Confirmation(p *pdu.PDU) error
}

// Server exposes Indication (downward receive) and Response (upward
// send).
type Server interface {
	Indication(p *pdu.PDU) error
	Response(p *pdu.PDU) error
}

// Binder is implemented by any entity participating in a Client/Server
// bind: BindServer attaches the peer below (this entity's Client side),
// BindClient attaches the peer above (this entity's Server side).
type Binder interface {
	BindServer(s Server) error
	BindClient(c Client) error
}

// ClientServer is satisfied by a layer that is simultaneously a Client
// (downward) and a Server (upward) — the shape every mid-stack layer
// takes, per §4.1.
type ClientServer interface {
	Client
	Server
	Binder
}

// ClientPort is embedded by any layer that needs a downward Client side.
// It provides Request/BindServer; the embedding type supplies
// Confirmation itself.
type ClientPort struct {
	peer Server
}

func (c *ClientPort) BindServer(s Server) error {
	if c.peer != nil {
		return configErr("client side already bound to a server")
	}
	c.peer = s
	return nil
}

// Request delivers p downward to the bound server's Indication.
func (c *ClientPort) Request(p *pdu.PDU) error {
	if c.peer == nil {
		return configErr("request on unbound client")
	}
	return c.peer.Indication(p)
}

// Bound reports whether this client side has a server peer.
func (c *ClientPort) Bound() bool { return c.peer != nil }

// ServerPort is embedded by any layer that needs an upward Server side.
// It provides Response/BindClient; the embedding type supplies Indication
// itself.
type ServerPort struct {
	peer Client
}

func (s *ServerPort) BindClient(c Client) error {
	if s.peer != nil {
		return configErr("server side already bound to a client")
	}
	s.peer = c
	return nil
}

// Response delivers p upward to the bound client's Confirmation.
func (s *ServerPort) Response(p *pdu.PDU) error {
	if s.peer == nil {
		return configErr("response on unbound server")
	}
	return s.peer.Confirmation(p)
}

// Bound reports whether this server side has a client peer.
func (s *ServerPort) Bound() bool { return s.peer != nil }

// Bind pairs every consecutive entry in a stack listed top to bottom: entries[i]'s
// client side is bound to entries[i+1]'s server side, so
// entries[i].Request(p) invokes entries[i+1].Indication(p), and
// entries[i+1].Response(p) invokes entries[i].Confirmation(p).
func Bind(entries ...ClientServer) error {
	for i := 0; i < len(entries)-1; i++ {
		upper, lower := entries[i], entries[i+1]
		if err := upper.BindServer(lower); err != nil {
			return err
		}
		if err := lower.BindClient(upper); err != nil {
			return err
		}
	}
	return nil
}
