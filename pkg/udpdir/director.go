// Package udpdir implements the UDP Director (§4.9): it owns the local
// datagram socket, maintains one idle-tracked "actor" per remote peer,
// and hands inbound datagrams to the bound layer above through the
// scheduler's deferred queue so delivery always happens on the loop
// goroutine (§5).
//
// Grounded on the teacher's can.Bus abstraction (Connect/Disconnect/Send/
// Subscribe, pkg/can/bus.go) and its virtual/socketcan adapters, adapted
// from a CAN frame bus to a connectionless UDP peer multiplexer; the
// goroutine-per-background-task shape mirrors pkg/node.NodeProcessor.
package udpdir

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/scheduler"
)

// Director binds to a local UDP address and multiplexes datagrams to/from
// many peers. It is the bottom of the stack: its Server side (embedded
// ServerPort) is bound to the BVLL layer above, so BVLL.Request delivers
// here as Indication (send), and inbound datagrams flow up via Response
// (Confirmation on the bound BVLL client).
type Director struct {
	comm.ServerPort

	conn        *net.UDPConn
	scheduler   *scheduler.Scheduler
	logger      *slog.Logger
	idleTimeout time.Duration

	mu     sync.Mutex
	actors map[string]*actor
	closed bool

	// OnError is invoked (on the goroutine that called Indication) whenever
	// a send fails; receive errors are only logged. It mirrors §4.9's
	// "actor_error -> sap_request": the
	// director has no SAP of its own to bubble errors through, so
	// callers that care (typically the application shell) set this hook.
	OnError func(addr pdu.Address, err error)

	wg sync.WaitGroup
}

// Options configures a Director.
type Options struct {
	// LocalAddress is the address to bind, e.g. ":47808" for all
	// interfaces or "192.168.1.5:47808" for a specific one.
	LocalAddress string
	// IdleTimeout closes a peer's actor after this much silence.
	// Zero disables idle tracking.
	IdleTimeout time.Duration
	Scheduler   *scheduler.Scheduler
	Logger      *slog.Logger
}

// New binds a UDP socket and returns a Director ready to Start.
func New(opts Options) (*Director, error) {
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	addr, err := net.ResolveUDPAddr("udp", opts.LocalAddress)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Director{
		conn:        conn,
		scheduler:   opts.Scheduler,
		logger:      opts.Logger.With("component", "udpdir"),
		idleTimeout: opts.IdleTimeout,
		actors:      make(map[string]*actor),
	}, nil
}

// Start launches the background datagram-reading goroutine. Reads block
// on the OS socket (there is no cooperative way to poll a UDP socket
// without a goroutine in Go), but every decoded datagram is handed to the
// loop goroutine via scheduler.Defer before anything upstream runs,
// preserving the single-writer discipline of §5.
func (d *Director) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.readLoop(ctx)
}

func (d *Director) readLoop(ctx context.Context) {
	defer d.wg.Done()
	buf := make([]byte, 1500)
	for {
		_ = d.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, raddr, err := d.conn.ReadFromUDP(buf)
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err != nil {
			d.mu.Lock()
			closed := d.closed
			d.mu.Unlock()
			if closed {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			d.logger.Warn("udp read error", "error", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		mac := udpAddrToMac(raddr)
		srcAddr := pdu.NewLocalStation(mac)
		d.touch(srcAddr.String())
		p := &pdu.PDU{Data: data, Source: srcAddr}
		d.scheduler.Defer(func() {
			if err := d.Response(p); err != nil {
				d.logger.Warn("delivering inbound datagram upward failed", "error", err)
			}
		})
	}
}

// Indication sends p.Data to p.Destination. Destination must resolve to a
// single UDP endpoint (local-station or remote-station mac) — broadcast
// fan-out across a local subnet address is the caller's (BVLL's)
// responsibility, since only it knows the broadcast address to use.
func (d *Director) Indication(p *pdu.PDU) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}
	udpAddr, err := macToUDPAddr(p.Destination.Mac)
	if err != nil {
		return err
	}
	d.touch(p.Destination.String())
	_, err = d.conn.WriteToUDP(p.Data, udpAddr)
	if err != nil && d.OnError != nil {
		d.OnError(p.Destination, err)
	}
	return err
}

// Close stops the read loop and releases the socket. It blocks until the
// read loop goroutine has exited.
func (d *Director) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	err := d.conn.Close()
	d.wg.Wait()
	return err
}

// LocalAddr returns the bound local UDP address.
func (d *Director) LocalAddr() net.Addr { return d.conn.LocalAddr() }

// Drain implements scheduler.Drainer: it closes the socket, which unblocks
// the read loop, then waits for it to exit or for ctx to be cancelled.
func (d *Director) Drain(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- d.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func udpAddrToMac(a *net.UDPAddr) []byte {
	ip := a.IP.To4()
	if ip == nil {
		ip = a.IP
	}
	mac := make([]byte, 0, len(ip)+2)
	mac = append(mac, ip...)
	mac = append(mac, byte(a.Port>>8), byte(a.Port))
	return mac
}

func macToUDPAddr(mac []byte) (*net.UDPAddr, error) {
	if len(mac) < 5 {
		return nil, ErrInvalidMac
	}
	ipLen := len(mac) - 2
	ip := net.IP(mac[:ipLen])
	port := int(mac[ipLen])<<8 | int(mac[ipLen+1])
	return &net.UDPAddr{IP: ip, Port: port}, nil
}
