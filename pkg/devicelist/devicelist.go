// Package devicelist loads a static YAML bootstrap file listing known
// peer devices, used by cmd/bacnet-read to pre-populate the device info
// cache before issuing Read-Property/Write-Property against a device
// that has not (yet) answered a Who-Is.
//
// Grounded on glennswest-ipmiserial's config.Load (yaml.v3 unmarshal of a
// flat []ServerEntry-shaped list into a typed struct).
package devicelist

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/pdu"
)

// Entry is one statically known device.
type Entry struct {
	Name                  string `yaml:"name"`
	DeviceIdentifier      uint32 `yaml:"deviceIdentifier"`
	Address               string `yaml:"address"`
	MaxApduLengthAccepted int    `yaml:"maxApduLengthAccepted"`
	VendorID              uint16 `yaml:"vendorId"`
}

// File is the root of a devices.yaml bootstrap file.
type File struct {
	Devices []Entry `yaml:"devices"`
}

// Load parses path and returns its entries.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

// Populate upserts every entry into cache, so a client can address known
// devices by identifier without waiting for an I-Am.
func Populate(cache *deviceinfo.Cache, f File) error {
	for _, e := range f.Devices {
		addr, err := pdu.ParseAddress(e.Address)
		if err != nil {
			return err
		}
		maxApdu := e.MaxApduLengthAccepted
		if maxApdu == 0 {
			maxApdu = deviceinfo.DefaultMaxApduLengthAccepted
		}
		cache.IAm(e.DeviceIdentifier, addr, maxApdu, deviceinfo.NoSegmentation, nil, e.VendorID, maxApdu)
	}
	return nil
}
