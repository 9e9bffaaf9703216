// Package ssm implements the Segmentation State Machines of §4.4/§4.5
// (component H): a ClientSSM drives an outbound confirmed request
// through segmentation, windowing and retry; a ServerSSM mirrors that on
// the inbound side, including reassembling a segmented request and
// segmenting a large response. Both run exclusively on the scheduler
// loop goroutine (§5): no locking is needed on their state.
package ssm

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacstack/bacnet/pkg/apdu"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/metrics"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/scheduler"
)

// log is the segment-level trace logger, kept on logrus per §2.B rather
// than log/slog: this is the densest, most latency-sensitive logging in
// the stack, and the teacher's SDO client/server (pkg/sdo) traces every
// frame the same way with log.WithFields(...).Debugf(...).
var log = logrus.StandardLogger()

// State is the transaction's position in the §4.4/§4.5 state tables.
type State uint8

const (
	Idle State = iota
	SegmentedRequest
	AwaitConfirmation
	SegmentedConfirmation
	AwaitResponse
	SegmentedResponse
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case SegmentedRequest:
		return "SEGMENTED_REQUEST"
	case AwaitConfirmation:
		return "AWAIT_CONFIRMATION"
	case SegmentedConfirmation:
		return "SEGMENTED_CONFIRMATION"
	case AwaitResponse:
		return "AWAIT_RESPONSE"
	case SegmentedResponse:
		return "SEGMENTED_RESPONSE"
	case Completed:
		return "COMPLETED"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Config collects the §6 transaction timers and defaults. Durations here
// are the per-device configured values; a DeviceInfo record overrides
// SegmentSize/segmentation capability per peer (see peerSegmentSize).
type Config struct {
	NumberOfApduRetries int
	ApduTimeout         time.Duration
	SegmentTimeout      time.Duration
	SegmentSize         int // local maxApduLengthAccepted fallback, used when the peer's values are unknown
	ProposedWindowSize  uint8

	// LocalSegmentationSupported is this device's own segmentation
	// capability (§6's segmentationSupported), required before a
	// ClientSSM may segment an outbound request at all.
	LocalSegmentationSupported deviceinfo.Segmentation

	// Metrics is optional; a nil value disables instrumentation (Metrics's
	// methods are nil-receiver safe).
	Metrics *metrics.Metrics
}

// peerSegmentSize implements §4.4's segmentSize = min(device.maxNpduLength,
// device.maxApduLengthAccepted), falling back to the local
// maxApduLengthAccepted-derived cfg.SegmentSize when peer is nil or either
// of the two values is unknown (zero value).
func peerSegmentSize(cfg Config, peer *deviceinfo.DeviceInfo) int {
	if peer == nil || peer.MaxApduLengthAccepted <= 0 || peer.MaxNpduLength <= 0 {
		return cfg.SegmentSize
	}
	size := peer.MaxApduLengthAccepted
	if peer.MaxNpduLength < size {
		size = peer.MaxNpduLength
	}
	return size
}

// DefaultConfig returns the §6 retry and timer defaults, with a
// SegmentSize of 480 and a ProposedWindowSize of 16 (config.Default
// replaces the window size with 2).
func DefaultConfig() Config {
	return Config{
		NumberOfApduRetries: 3,
		ApduTimeout:         3000 * time.Millisecond,
		SegmentTimeout:      1500 * time.Millisecond,
		SegmentSize:         480,
		ProposedWindowSize:  16,
	}
}

// Transport is the downward path out of an SSM: it sends a single APDU to
// a single peer address. SMAP supplies this, bound ultimately to NSAP.
type Transport interface {
	Send(dest pdu.Address, a apdu.APDU) error
}

// inWindow implements the §4.4 windowing predicate: sequence numbers are
// compared mod 256 relative to the window's first sequence number.
func inWindow(seq, init, width uint8) bool {
	return uint8(seq-init) < width
}

func segmentCount(dataLen, segSize int) int {
	if dataLen == 0 {
		return 1
	}
	n := dataLen / segSize
	if dataLen%segSize != 0 {
		n++
	}
	return n
}

func sliceSegment(data []byte, segSize, index int) []byte {
	start := index * segSize
	if start >= len(data) {
		return nil
	}
	end := start + segSize
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}

type timerHandle = *scheduler.TaskHandle

func stop(h timerHandle) {
	if h != nil {
		h.Stop()
	}
}
