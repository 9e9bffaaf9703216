// Package config loads the device/router configuration described in §6:
// the transaction timers and defaults (numberOfApduRetries, apduTimeout,
// segmentTimeout, maxSegmentsAccepted, maxApduLengthAccepted,
// proposedWindowSize, segmentationSupported, applicationTimeout), plus the
// local device identity and network binding. maxSegmentsAccepted is read
// from the [device] section but is not applied to the returned Config.
//
// Grounded on the teacher's EDS parser (pkg/od/parser.go): ini.v1's
// section/key API and struct-tag driven MapTo are the same idiom, applied
// here to a flat three-section ([device], [transaction], [network]) INI
// file instead of EDS's per-index sections.
package config

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/smap"
	"github.com/bacstack/bacnet/pkg/ssm"
)

// ErrInvalidBroadcastMac is returned when a network.BroadcastMac value
// does not parse as "ipv4:port".
var ErrInvalidBroadcastMac = errors.New("config: broadcast mac must be ipv4:port")

var log = logrus.StandardLogger()

// deviceSection mirrors the INI [device] section; MapTo fills it directly
// from key names (case-insensitive, matched against the field name).
type deviceSection struct {
	DeviceIdentifier      uint32 `ini:"DeviceIdentifier"`
	VendorID              uint16 `ini:"VendorID"`
	MaxApduLengthAccepted int    `ini:"MaxApduLengthAccepted"`
	MaxSegmentsAccepted   int    `ini:"MaxSegmentsAccepted"`
	SegmentationSupported string `ini:"SegmentationSupported"`
}

// transactionSection mirrors the INI [transaction] section: the §6 SSM
// timer defaults.
type transactionSection struct {
	NumberOfApduRetries int `ini:"NumberOfApduRetries"`
	ApduTimeoutMs       int `ini:"ApduTimeoutMs"`
	SegmentTimeoutMs    int `ini:"SegmentTimeoutMs"`
	ProposedWindowSize  int `ini:"ProposedWindowSize"`
	ApplicationTimeoutMs int `ini:"ApplicationTimeoutMs"`
}

// networkSection mirrors the INI [network] section.
type networkSection struct {
	LocalAddress string `ini:"LocalAddress"`
	BroadcastMac string `ini:"BroadcastMac"`
}

// Config is the parsed, typed device configuration.
type Config struct {
	DeviceIdentifier      uint32
	VendorID              uint16
	SegmentationSupported deviceinfo.Segmentation

	SSM ssm.Config
	DCC smap.DCCMode

	ApplicationTimeout time.Duration

	LocalAddress string
	BroadcastMac []byte
}

// Options is the programmatic equivalent of a parsed file, used by tests
// and the example device app when no file on disk is wanted.
type Options struct {
	DeviceIdentifier      uint32
	VendorID              uint16
	SegmentationSupported deviceinfo.Segmentation
	SSM                   ssm.Config
	ApplicationTimeout    time.Duration
	LocalAddress          string
	BroadcastMac          []byte
}

// Default returns the §6 defaults with the given identity/network fields
// filled in.
func Default(opts Options) Config {
	sc := opts.SSM
	if (sc == ssm.Config{}) {
		sc = ssm.DefaultConfig()
		sc.ProposedWindowSize = 2 // §6: proposedWindowSize default is 2, not the SSM package's internal 16
	}
	appTimeout := opts.ApplicationTimeout
	if appTimeout == 0 {
		appTimeout = 3000 * time.Millisecond
	}
	sc.LocalSegmentationSupported = opts.SegmentationSupported
	return Config{
		DeviceIdentifier:      opts.DeviceIdentifier,
		VendorID:              opts.VendorID,
		SegmentationSupported: opts.SegmentationSupported,
		SSM:                   sc,
		DCC:                   smap.DCCEnabled,
		ApplicationTimeout:    appTimeout,
		LocalAddress:          opts.LocalAddress,
		BroadcastMac:          opts.BroadcastMac,
	}
}

// LoadFile parses an INI device configuration file, applying the §6
// defaults for anything left unset.
func LoadFile(path string) (Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return Config{}, err
	}
	return load(f)
}

// LoadBytes parses an in-memory INI document, the same way LoadFile does.
func LoadBytes(data []byte) (Config, error) {
	f, err := ini.Load(data)
	if err != nil {
		return Config{}, err
	}
	return load(f)
}

func load(f *ini.File) (Config, error) {
	var dev deviceSection
	if sec, err := f.GetSection("device"); err == nil {
		if err := sec.MapTo(&dev); err != nil {
			return Config{}, err
		}
	}
	var txn transactionSection
	if sec, err := f.GetSection("transaction"); err == nil {
		if err := sec.MapTo(&txn); err != nil {
			return Config{}, err
		}
	}
	var net networkSection
	if sec, err := f.GetSection("network"); err == nil {
		if err := sec.MapTo(&net); err != nil {
			return Config{}, err
		}
	}

	cfg := Default(Options{
		DeviceIdentifier: dev.DeviceIdentifier,
		VendorID:         dev.VendorID,
		LocalAddress:     net.LocalAddress,
	})

	if dev.MaxApduLengthAccepted > 0 {
		cfg.SSM.SegmentSize = segmentSizeFor(dev.MaxApduLengthAccepted)
	}
	if dev.SegmentationSupported != "" {
		cfg.SegmentationSupported = parseSegmentation(dev.SegmentationSupported)
		cfg.SSM.LocalSegmentationSupported = cfg.SegmentationSupported
	}
	if txn.NumberOfApduRetries > 0 {
		cfg.SSM.NumberOfApduRetries = txn.NumberOfApduRetries
	}
	if txn.ApduTimeoutMs > 0 {
		cfg.SSM.ApduTimeout = time.Duration(txn.ApduTimeoutMs) * time.Millisecond
	}
	if txn.SegmentTimeoutMs > 0 {
		cfg.SSM.SegmentTimeout = time.Duration(txn.SegmentTimeoutMs) * time.Millisecond
	}
	if txn.ProposedWindowSize > 0 {
		cfg.SSM.ProposedWindowSize = uint8(txn.ProposedWindowSize)
	}
	if txn.ApplicationTimeoutMs > 0 {
		cfg.ApplicationTimeout = time.Duration(txn.ApplicationTimeoutMs) * time.Millisecond
	}
	if net.BroadcastMac != "" {
		mac, err := parseBroadcastMac(net.BroadcastMac)
		if err != nil {
			return Config{}, err
		}
		cfg.BroadcastMac = mac
	}

	log.Debugf("[CONFIG] device=%d vendor=%d segmentation=%v retries=%d apduTimeout=%v",
		cfg.DeviceIdentifier, cfg.VendorID, cfg.SegmentationSupported, cfg.SSM.NumberOfApduRetries, cfg.SSM.ApduTimeout)

	return cfg, nil
}

// segmentSizeFor derives a conservative per-segment payload size from the
// configured max APDU length, leaving room for the fixed APDU header.
func segmentSizeFor(maxApduLength int) int {
	const headerRoom = 8
	if maxApduLength <= headerRoom {
		return maxApduLength
	}
	return maxApduLength - headerRoom
}

func parseSegmentation(s string) deviceinfo.Segmentation {
	switch s {
	case "segmentedTransmit":
		return deviceinfo.SegmentedTransmit
	case "segmentedReceive":
		return deviceinfo.SegmentedReceive
	case "segmentedBoth":
		return deviceinfo.SegmentedBoth
	default:
		return deviceinfo.NoSegmentation
	}
}

// parseBroadcastMac accepts the same "x.y.z.w:port" form §6 uses for
// addresses, yielding the raw mac bytes pkg/pdu and pkg/udpdir expect.
func parseBroadcastMac(s string) ([]byte, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return nil, ErrInvalidBroadcastMac
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return nil, err
	}
	mac := make([]byte, 0, 6)
	mac = append(mac, ip...)
	mac = append(mac, byte(p>>8), byte(p))
	return mac, nil
}
