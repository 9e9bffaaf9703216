// Command bacnet-read is a BACnet/IP client: it broadcasts Who-Is and
// prints I-Am replies, and issues Read-Property/Write-Property against a
// single device.
//
// Grounded on the teacher's cmd/sdo_client (a thin client binary driving
// one SDO transaction and printing the result), generalized onto cobra's
// subcommand surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bacstack/bacnet/pkg/asap"
	"github.com/bacstack/bacnet/pkg/bvll"
	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/devicelist"
	"github.com/bacstack/bacnet/pkg/iocb"
	"github.com/bacstack/bacnet/pkg/npdu"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/scheduler"
	"github.com/bacstack/bacnet/pkg/services"
	"github.com/bacstack/bacnet/pkg/smap"
	"github.com/bacstack/bacnet/pkg/ssm"
	"github.com/bacstack/bacnet/pkg/udpdir"
)

var (
	localAddress string
	broadcastMac string
	devicesFile  string
	timeout      time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "bacnet-read",
		Short: "Issue BACnet/IP Who-Is / Read-Property / Write-Property requests",
	}
	root.PersistentFlags().StringVar(&localAddress, "local-address", ":0", "UDP address to bind for this client")
	root.PersistentFlags().StringVar(&broadcastMac, "broadcast-mac", "255.255.255.255:47808", "subnet broadcast address as ipv4:port")
	root.PersistentFlags().StringVar(&devicesFile, "devices", "", "optional devices.yaml bootstrap file to pre-populate the device cache")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to wait for a reply")

	whoIs := &cobra.Command{
		Use:   "whois",
		Short: "Broadcast Who-Is and print I-Am replies",
		RunE:  runWhoIs,
	}
	root.AddCommand(whoIs)

	read := &cobra.Command{
		Use:   "read <address> <object-type> <instance> <property>",
		Short: "Send a Read-Property request",
		Args:  cobra.ExactArgs(4),
		RunE:  runRead,
	}
	root.AddCommand(read)

	write := &cobra.Command{
		Use:   "write <address> <object-type> <instance> <property> <real-value>",
		Short: "Send a Write-Property request carrying a Real value",
		Args:  cobra.ExactArgs(5),
		RunE:  runWrite,
	}
	root.AddCommand(write)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stack bundles the bound layers a client needs, mirroring runServe's
// wiring in cmd/bacnet-device but without the application shell.
type stack struct {
	sched    *scheduler.Scheduler
	director *udpdir.Director
	asap     *asap.ASAP
	cache    *deviceinfo.Cache
}

func newStack() (*stack, error) {
	sched := scheduler.Default()
	cache := deviceinfo.NewCache()

	director, err := udpdir.New(udpdir.Options{LocalAddress: localAddress, Scheduler: sched})
	if err != nil {
		return nil, fmt.Errorf("binding udp socket: %w", err)
	}
	mac, err := pdu.ParseAddress(broadcastMac)
	if err != nil {
		return nil, err
	}
	layer := &bvll.Layer{BroadcastMac: mac.Mac}
	nsap := npdu.New(nil)
	smapInst := smap.New(smap.Options{Config: ssm.DefaultConfig(), Scheduler: sched, Cache: cache})
	asapInst := asap.New(nil)

	if err := comm.Bind(asapInst, smapInst, nsap, layer); err != nil {
		return nil, fmt.Errorf("binding stack: %w", err)
	}
	if err := layer.BindServer(director); err != nil {
		return nil, err
	}
	if err := director.BindClient(layer); err != nil {
		return nil, err
	}

	if devicesFile != "" {
		f, err := devicelist.Load(devicesFile)
		if err != nil {
			return nil, fmt.Errorf("loading devices file: %w", err)
		}
		if err := devicelist.Populate(cache, f); err != nil {
			return nil, fmt.Errorf("populating device cache: %w", err)
		}
	}

	return &stack{sched: sched, director: director, asap: asapInst, cache: cache}, nil
}

func (s *stack) start(ctx context.Context) {
	go s.sched.Run(ctx)
	s.director.Start(ctx)
}

func (s *stack) close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_ = scheduler.Shutdown(shutdownCtx, s.director)
}

func runWhoIs(cmd *cobra.Command, args []string) error {
	s, err := newStack()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.asap.IndicationHandler = func(ind *asap.Indication) (*asap.Response, error) {
		if ind.ServiceChoice != services.IAmServiceChoice {
			return nil, nil
		}
		iAm, err := services.DecodeIAm(ind.ServiceData)
		if err != nil {
			return nil, nil
		}
		fmt.Printf("I-Am device=%d vendor=%d maxApdu=%d address=%s\n",
			iAm.DeviceIdentifier, iAm.VendorID, iAm.MaxApduLengthAccepted, ind.Source)
		return nil, nil
	}

	s.start(ctx)
	defer s.close(context.Background())

	ioc := iocb.NewApplicationIOController(s.asap)
	ioc.Submit(&asap.Request{
		Confirmed:     false,
		Destination:   pdu.NewLocalBroadcast(),
		ServiceChoice: services.WhoIsServiceChoice,
		ServiceData:   services.EncodeWhoIs(services.WhoIs{}),
	}, iocb.PriorityNormal)

	<-ctx.Done()
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	dest, objType, instance, prop, err := parseObjectArgs(args[0], args[1], args[2], args[3])
	if err != nil {
		return err
	}
	s, err := newStack()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.start(ctx)
	defer s.close(context.Background())

	ioc := iocb.NewApplicationIOController(s.asap)
	req := services.ReadProperty{
		ObjectIdentifier:   services.ObjectIdentifier{ObjectType: objType, Instance: instance},
		PropertyIdentifier: prop,
	}
	io := ioc.Submit(&asap.Request{
		Confirmed:     true,
		Destination:   dest,
		ServiceChoice: services.ReadPropertyServiceChoice,
		ServiceData:   services.EncodeReadProperty(req),
	}, iocb.PriorityNormal)

	select {
	case <-io.Done:
	case <-ctx.Done():
		return fmt.Errorf("read-property: %w", ctx.Err())
	}
	return printConfirmation(io.Result())
}

func runWrite(cmd *cobra.Command, args []string) error {
	dest, objType, instance, prop, err := parseObjectArgs(args[0], args[1], args[2], args[3])
	if err != nil {
		return err
	}
	value, err := strconv.ParseFloat(args[4], 32)
	if err != nil {
		return fmt.Errorf("invalid real value %q: %w", args[4], err)
	}
	s, err := newStack()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.start(ctx)
	defer s.close(context.Background())

	var propertyValue []byte
	propertyValue = services.EncodeReal(propertyValue, float32(value))
	w := services.WriteProperty{
		ObjectIdentifier:   services.ObjectIdentifier{ObjectType: objType, Instance: instance},
		PropertyIdentifier: prop,
		PropertyValue:      propertyValue,
	}
	ioc := iocb.NewApplicationIOController(s.asap)
	io := ioc.Submit(&asap.Request{
		Confirmed:     true,
		Destination:   dest,
		ServiceChoice: services.WritePropertyServiceChoice,
		ServiceData:   services.EncodeWriteProperty(w),
	}, iocb.PriorityNormal)

	select {
	case <-io.Done:
	case <-ctx.Done():
		return fmt.Errorf("write-property: %w", ctx.Err())
	}
	return printConfirmation(io.Result())
}

func parseObjectArgs(addrArg, objTypeArg, instanceArg, propArg string) (pdu.Address, uint16, uint32, uint32, error) {
	dest, err := pdu.ParseAddress(addrArg)
	if err != nil {
		return pdu.Address{}, 0, 0, 0, fmt.Errorf("invalid address %q: %w", addrArg, err)
	}
	objType, err := strconv.ParseUint(objTypeArg, 10, 16)
	if err != nil {
		return pdu.Address{}, 0, 0, 0, fmt.Errorf("invalid object type %q: %w", objTypeArg, err)
	}
	instance, err := strconv.ParseUint(instanceArg, 10, 32)
	if err != nil {
		return pdu.Address{}, 0, 0, 0, fmt.Errorf("invalid instance %q: %w", instanceArg, err)
	}
	prop, err := strconv.ParseUint(propArg, 10, 32)
	if err != nil {
		return pdu.Address{}, 0, 0, 0, fmt.Errorf("invalid property %q: %w", propArg, err)
	}
	return dest, uint16(objType), uint32(instance), uint32(prop), nil
}

func printConfirmation(c *asap.Confirmation) error {
	if c == nil {
		return fmt.Errorf("no confirmation received")
	}
	switch c.Outcome {
	case asap.OutcomeSuccess:
		if len(c.ServiceData) == 0 {
			fmt.Println("OK")
			return nil
		}
		ack, err := services.DecodeReadPropertyAck(c.ServiceData)
		if err != nil {
			return fmt.Errorf("decoding read-property-ack: %w", err)
		}
		out, _ := json.Marshal(map[string]any{
			"objectType":         ack.ObjectIdentifier.ObjectType,
			"instance":           ack.ObjectIdentifier.Instance,
			"propertyIdentifier": ack.PropertyIdentifier,
			"valueBytes":         ack.PropertyValue,
		})
		fmt.Println(string(out))
		return nil
	case asap.OutcomeError:
		return fmt.Errorf("error: class=%d code=%d", c.ErrorClass, c.ErrorCode)
	case asap.OutcomeReject:
		return fmt.Errorf("rejected: reason=%v", c.RejectReason)
	case asap.OutcomeAbort:
		return fmt.Errorf("aborted: reason=%v", c.AbortReason)
	default:
		return fmt.Errorf("unknown outcome")
	}
}
