// Package app implements the minimal application shell of §4.10: a
// DeviceObject, an explicit service-choice handler registry (the "dynamic
// dispatch by class name" redesign of §9), and the two mandatory service
// pairs — Who-Is/I-Am and Read-Property/Write-Property.
package app

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/bacstack/bacnet/pkg/asap"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/iocb"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/services"
)

var ErrUnknownObject = errors.New("app: no such object")
var ErrUnknownProperty = errors.New("app: object has no such property")

// DeviceObject holds the local device's identity and the §6 capability
// defaults advertised in I-Am.
type DeviceObject struct {
	Identifier            uint32
	VendorID              uint16
	MaxApduLengthAccepted int
	SegmentationSupported deviceinfo.Segmentation
}

// ObjectKey identifies an object by type and instance.
type ObjectKey struct {
	ObjectType uint16
	Instance   uint32
}

// Object is an opaque bag of pre-encoded property values. Property
// encoders for non-device objects are out of scope per §1/§4.10 — values
// are stored and returned exactly as application-tagged bytes, with
// encoding/decoding left to the caller (see services.EncodeReal et al.).
type Object struct {
	Properties map[uint32][]byte
}

// Handler services one registered service choice.
type Handler func(ind *asap.Indication) (*asap.Response, error)

// Application wires a DeviceObject and its object table into ASAP's
// dispatch, and drives outbound requests through the IOCB path.
type Application struct {
	Device DeviceObject

	asap   *asap.ASAP
	ioc    *iocb.ApplicationIOController
	cache  *deviceinfo.Cache
	logger *slog.Logger

	mu       sync.Mutex
	objects  map[ObjectKey]*Object
	handlers map[uint8]handlerEntry
}

type handlerEntry struct {
	confirmed bool
	fn        Handler
}

// New constructs an Application and registers the §6 mandatory services.
// cache may be nil if the application never acts as a client.
func New(dev DeviceObject, a *asap.ASAP, ioc *iocb.ApplicationIOController, cache *deviceinfo.Cache, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	app := &Application{
		Device:   dev,
		asap:     a,
		ioc:      ioc,
		cache:    cache,
		logger:   logger.With("component", "app"),
		objects:  make(map[ObjectKey]*Object),
		handlers: make(map[uint8]handlerEntry),
	}
	app.RegisterUnconfirmed(services.WhoIsServiceChoice, app.handleWhoIs)
	app.RegisterUnconfirmed(services.IAmServiceChoice, app.handleIAm)
	app.RegisterConfirmed(services.ReadPropertyServiceChoice, app.handleReadProperty)
	app.RegisterConfirmed(services.WritePropertyServiceChoice, app.handleWriteProperty)
	a.IndicationHandler = app.dispatch
	return app
}

// RegisterConfirmed installs a handler for a confirmed service choice and
// marks it recognized with ASAP, so unregistered choices keep auto-
// rejecting per §4.2.
func (app *Application) RegisterConfirmed(choice uint8, h Handler) {
	app.mu.Lock()
	app.handlers[choice] = handlerEntry{confirmed: true, fn: h}
	app.mu.Unlock()
	app.asap.RegisterService(choice)
}

// RegisterUnconfirmed installs a handler for an unconfirmed service choice.
func (app *Application) RegisterUnconfirmed(choice uint8, h Handler) {
	app.mu.Lock()
	app.handlers[choice] = handlerEntry{confirmed: false, fn: h}
	app.mu.Unlock()
}

func (app *Application) dispatch(ind *asap.Indication) (*asap.Response, error) {
	app.mu.Lock()
	entry, ok := app.handlers[ind.ServiceChoice]
	app.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return entry.fn(ind)
}

// PutObject registers or replaces an object's property table, e.g. for an
// analog-input's present-value.
func (app *Application) PutObject(key ObjectKey, obj *Object) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.objects[key] = obj
}

func (app *Application) object(key ObjectKey) (*Object, bool) {
	app.mu.Lock()
	defer app.mu.Unlock()
	obj, ok := app.objects[key]
	return obj, ok
}

// handleWhoIs implements §4.10/§8 Scenario 1: on a Who-Is matching this
// device (or carrying no range at all), emit I-Am to local broadcast.
func (app *Application) handleWhoIs(ind *asap.Indication) (*asap.Response, error) {
	whoIs, err := services.DecodeWhoIs(ind.ServiceData)
	if err != nil {
		app.logger.Warn("malformed who-is, dropping", "error", err)
		return nil, nil
	}
	if !whoIs.Matches(app.Device.Identifier) {
		return nil, nil
	}
	iAm := services.IAm{
		DeviceIdentifier:      app.Device.Identifier,
		MaxApduLengthAccepted: uint32(app.Device.MaxApduLengthAccepted),
		SegmentationSupported: uint32(app.Device.SegmentationSupported),
		VendorID:              uint32(app.Device.VendorID),
	}
	app.ioc.Submit(&asap.Request{
		Confirmed:     false,
		Destination:   pdu.NewLocalBroadcast(),
		ServiceChoice: services.IAmServiceChoice,
		ServiceData:   services.EncodeIAm(iAm),
	}, iocb.PriorityNormal)
	return nil, nil
}

// handleIAm learns a peer's capability record, mirroring §3's
// iam_device_info upsert (by device identifier, falling back to source
// address).
func (app *Application) handleIAm(ind *asap.Indication) (*asap.Response, error) {
	if app.cache == nil {
		return nil, nil
	}
	iAm, err := services.DecodeIAm(ind.ServiceData)
	if err != nil {
		app.logger.Warn("malformed i-am, dropping", "error", err)
		return nil, nil
	}
	app.cache.IAm(iAm.DeviceIdentifier, ind.Source, int(iAm.MaxApduLengthAccepted),
		deviceinfo.Segmentation(iAm.SegmentationSupported), nil, uint16(iAm.VendorID), 0)
	return nil, nil
}

func (app *Application) handleReadProperty(ind *asap.Indication) (*asap.Response, error) {
	req, err := services.DecodeReadProperty(ind.ServiceData)
	if err != nil {
		return nil, err
	}
	value, err := app.readProperty(req.ObjectIdentifier, req.PropertyIdentifier)
	if err != nil {
		return nil, err
	}
	ack := services.ReadPropertyAck{
		ObjectIdentifier:   req.ObjectIdentifier,
		PropertyIdentifier: req.PropertyIdentifier,
		HasArrayIndex:      req.HasArrayIndex,
		PropertyArrayIndex: req.PropertyArrayIndex,
		PropertyValue:      value,
	}
	return &asap.Response{ServiceChoice: services.ReadPropertyServiceChoice, Data: services.EncodeReadPropertyAck(ack)}, nil
}

func (app *Application) readProperty(key services.ObjectIdentifier, prop uint32) ([]byte, error) {
	if key.ObjectType == services.ObjectTypeDevice && key.Instance == app.Device.Identifier {
		return app.deviceProperty(prop)
	}
	obj, ok := app.object(ObjectKey{ObjectType: key.ObjectType, Instance: key.Instance})
	if !ok {
		return nil, ErrUnknownObject
	}
	value, ok := obj.Properties[prop]
	if !ok {
		return nil, ErrUnknownProperty
	}
	return value, nil
}

func (app *Application) deviceProperty(prop uint32) ([]byte, error) {
	switch prop {
	case services.PropertyObjectIdentifier:
		return services.EncodeObjectIdentifier(nil, services.ObjectIdentifier{
			ObjectType: services.ObjectTypeDevice, Instance: app.Device.Identifier,
		}), nil
	case services.PropertyObjectType:
		return services.EncodeUnsigned(nil, uint32(services.ObjectTypeDevice)), nil
	case services.PropertyVendorIdentifier:
		return services.EncodeUnsigned(nil, uint32(app.Device.VendorID)), nil
	default:
		return nil, ErrUnknownProperty
	}
}

func (app *Application) handleWriteProperty(ind *asap.Indication) (*asap.Response, error) {
	req, err := services.DecodeWriteProperty(ind.ServiceData)
	if err != nil {
		return nil, err
	}
	if req.ObjectIdentifier.ObjectType == services.ObjectTypeDevice {
		return nil, ErrUnknownProperty
	}
	obj, ok := app.object(ObjectKey{ObjectType: req.ObjectIdentifier.ObjectType, Instance: req.ObjectIdentifier.Instance})
	if !ok {
		return nil, ErrUnknownObject
	}
	app.mu.Lock()
	obj.Properties[req.PropertyIdentifier] = req.PropertyValue
	app.mu.Unlock()
	return &asap.Response{Simple: true}, nil
}
