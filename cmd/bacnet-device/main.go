// Command bacnet-device runs a minimal BACnet/IP device: it binds a UDP
// socket, stands up the full stack (BVLL/NPDU/ASAP/SMAP), answers Who-Is
// with I-Am, and serves Read-Property/Write-Property against a small
// in-memory object table.
//
// Grounded on the teacher's cmd/canopen (flag-driven single-process node)
// and cmd/canopen_http (optional HTTP surface), generalized onto cobra
// for the richer serve/whois/read/write subcommand surface dittofs'
// cmd/dittofs demonstrates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bacstack/bacnet/pkg/app"
	"github.com/bacstack/bacnet/pkg/asap"
	"github.com/bacstack/bacnet/pkg/bvll"
	"github.com/bacstack/bacnet/pkg/comm"
	"github.com/bacstack/bacnet/pkg/config"
	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/httpapi"
	"github.com/bacstack/bacnet/pkg/iocb"
	"github.com/bacstack/bacnet/pkg/metrics"
	"github.com/bacstack/bacnet/pkg/npdu"
	"github.com/bacstack/bacnet/pkg/pdu"
	"github.com/bacstack/bacnet/pkg/scheduler"
	"github.com/bacstack/bacnet/pkg/services"
	"github.com/bacstack/bacnet/pkg/smap"
	"github.com/bacstack/bacnet/pkg/udpdir"
)

var (
	configFile   string
	deviceID     uint32
	vendorID     uint16
	localAddress string
	broadcastMac string
	httpAddr     string
	idleTimeout  time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "bacnet-device",
		Short: "Run a minimal BACnet/IP device",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to an INI device configuration file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Bind the device's UDP socket and start answering requests",
		RunE:  runServe,
	}
	serve.Flags().Uint32Var(&deviceID, "device-id", 1001, "local device object instance number")
	serve.Flags().Uint16Var(&vendorID, "vendor-id", 0, "BACnet vendor identifier")
	serve.Flags().StringVar(&localAddress, "local-address", ":47808", "UDP address to bind, e.g. :47808")
	serve.Flags().StringVar(&broadcastMac, "broadcast-mac", "", "subnet broadcast address as ipv4:port, e.g. 192.168.1.255:47808")
	serve.Flags().StringVar(&httpAddr, "http", "", "optional address for the local HTTP control surface, e.g. :8080 (disabled if empty)")
	serve.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "close a peer's UDP actor after this much silence (0 disables)")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	m := metrics.New(nil)
	cfg.SSM.Metrics = m
	sched := scheduler.Default()
	cache := deviceinfo.NewCache()

	director, err := udpdir.New(udpdir.Options{
		LocalAddress: cfg.LocalAddress,
		IdleTimeout:  idleTimeout,
		Scheduler:    sched,
	})
	if err != nil {
		return fmt.Errorf("binding udp socket: %w", err)
	}

	layer := &bvll.Layer{BroadcastMac: cfg.BroadcastMac}
	nsap := npdu.New(nil)
	smapInst := smap.New(smap.Options{Config: cfg.SSM, Scheduler: sched, Cache: cache})
	smapInst.SetDCC(cfg.DCC)
	asapInst := asap.New(nil)

	if err := comm.Bind(asapInst, smapInst, nsap, layer); err != nil {
		return fmt.Errorf("binding stack: %w", err)
	}
	if err := layer.BindServer(director); err != nil {
		return fmt.Errorf("binding bvll to udp director: %w", err)
	}
	if err := director.BindClient(layer); err != nil {
		return fmt.Errorf("binding udp director to bvll: %w", err)
	}

	ioc := iocb.NewApplicationIOControllerWithMetrics(asapInst, m)
	dev := app.DeviceObject{
		Identifier:            cfg.DeviceIdentifier,
		VendorID:              cfg.VendorID,
		MaxApduLengthAccepted: deviceinfo.DefaultMaxApduLengthAccepted,
		SegmentationSupported: cfg.SegmentationSupported,
	}
	application := app.New(dev, asapInst, ioc, cache, nil)
	seedValue := services.EncodeReal(nil, 0)
	application.PutObject(app.ObjectKey{ObjectType: services.ObjectTypeAnalogValue, Instance: 1},
		&app.Object{Properties: map[uint32][]byte{services.PropertyPresentValue: seedValue}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.InstallSignalHandlers(cancel)

	go sched.Run(ctx)
	director.Start(ctx)

	drainers := []scheduler.Drainer{director, smapInst}

	if httpAddr != "" {
		httpSrv := httpapi.New(httpAddr, cache, m)
		go func() {
			if err := httpSrv.Run(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "http control surface error: %v\n", err)
			}
		}()
		drainers = append(drainers, httpSrv)
	}

	fmt.Printf("bacnet-device: device %d listening on %s\n", cfg.DeviceIdentifier, director.LocalAddr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	signal.Stop(sigCh)
	fmt.Println("bacnet-device: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	cancel()
	return scheduler.Shutdown(shutdownCtx, drainers...)
}

func loadConfig() (config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	var mac []byte
	if broadcastMac != "" {
		addr, err := pdu.ParseAddress(broadcastMac)
		if err != nil {
			return config.Config{}, err
		}
		mac = addr.Mac
	}
	return config.Default(config.Options{
		DeviceIdentifier: deviceID,
		VendorID:         vendorID,
		LocalAddress:     localAddress,
		BroadcastMac:     mac,
	}), nil
}
