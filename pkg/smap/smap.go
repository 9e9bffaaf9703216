// Package smap implements the State Machine Access Point (component G,
// §4.3): invoke ID allocation, Device Communication Control gating, and
// dispatch of inbound APDUs to the client/server transaction tables kept
// per (invoke ID, peer address).
package smap

import (
	"errors"
	"log/slog"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/scheduler"
	"github.com/bacstack/bacnet/pkg/ssm"
)

// deviceCommunicationControlChoice and reinitializeDeviceServiceChoice are
// the confirmed service choices exempt from a DCCDisabled gate (a disabled
// device must still be able to hear a re-enable or reinitialize request).
const (
	deviceCommunicationControlChoice = 17
	reinitializeDeviceServiceChoice  = 20
)

// iAmServiceChoice and whoIsServiceChoice are the unconfirmed service
// choices exempt from DCC gating: I-Am must still go out under
// DCCDisableInitiation, and Who-Is must still come in under DCCDisabled.
const (
	iAmServiceChoice   = 0
	whoIsServiceChoice = 8
)

// DCCMode mirrors the three states of §4.3's Device Communication Control.
type DCCMode uint8

const (
	DCCEnabled DCCMode = iota
	DCCDisabled
	DCCDisableInitiation
)

var (
	ErrInvokeIDsExhausted   = errors.New("smap: no invoke id available for this destination")
	ErrNoTransaction        = errors.New("smap: no transaction for this invoke id/address")
	ErrCommunicationDisabled = errors.New("smap: local communication is disabled")
)

type txnKey struct {
	invokeID uint8
	addr     string
}

// SMAP is a comm.ClientServer: its Server side faces ASAP above, its
// Client side faces NSAP below.
type SMAP struct {
	comm.ClientPort
	comm.ServerPort

	cfg    ssm.Config
	sched  *scheduler.Scheduler
	cache  *deviceinfo.Cache
	logger *slog.Logger

	clientTxns   map[txnKey]*ssm.ClientSSM
	serverTxns   map[txnKey]*ssm.ServerSSM
	lastInvokeID map[string]uint8

	dcc DCCMode
}

// Options configures a new SMAP.
type Options struct {
	Config    ssm.Config
	Scheduler *scheduler.Scheduler
	Cache     *deviceinfo.Cache
	Logger    *slog.Logger
}

func New(opts Options) *SMAP {
	if opts.Scheduler == nil {
		opts.Scheduler = scheduler.Default()
	}
	if opts.Cache == nil {
		opts.Cache = deviceinfo.NewCache()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SMAP{
		cfg:          opts.Config,
		sched:        opts.Scheduler,
		cache:        opts.Cache,
		logger:       opts.Logger.With("component", "smap"),
		clientTxns:   make(map[txnKey]*ssm.ClientSSM),
		serverTxns:   make(map[txnKey]*ssm.ServerSSM),
		lastInvokeID: make(map[string]uint8),
	}
}

// SetDCC changes the local communication-control mode.
func (s *SMAP) SetDCC(mode DCCMode) { s.dcc = mode }

func (s *SMAP) peerInfo(addr pdu.Address) *deviceinfo.DeviceInfo {
	d, ok := s.cache.LookupByAddress(addr)
	if !ok {
		return nil
	}
	return d
}

// transport adapts SMAP's downward comm.Client into the ssm.Transport
// shape expected by ClientSSM/ServerSSM.
type transport struct{ s *SMAP }

func (t transport) Send(dest pdu.Address, a apdu.APDU) error {
	return t.s.Request(&pdu.PDU{Destination: dest, Data: apdu.Encode(a)})
}

// allocateInvokeID returns the next unused invoke ID for dest, starting
// at 1 and wrapping mod 256 (skipping 0), per §4.3.
func (s *SMAP) allocateInvokeID(dest pdu.Address) (uint8, error) {
	key := dest.String()
	id := s.lastInvokeID[key]
	for i := 0; i < 256; i++ {
		id++
		if id == 0 {
			id = 1
		}
		if _, used := s.clientTxns[txnKey{id, key}]; !used {
			s.lastInvokeID[key] = id
			s.cfg.Metrics.SetInvokeIDsInUse(key, s.invokeIDsInUseFor(key))
			return id, nil
		}
	}
	return 0, ErrInvokeIDsExhausted
}

func (s *SMAP) invokeIDsInUseFor(key string) int {
	n := 0
	for k := range s.clientTxns {
		if k.addr == key {
			n++
		}
	}
	return n + 1 // the id about to be allocated
}
