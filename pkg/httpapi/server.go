// Package httpapi implements the example device app's optional local
// control surface: a read-only view of the device-info cache and the
// Prometheus metrics registry, for operators inspecting a running
// process. It is not part of BACnet/IP itself — analogous to the
// teacher's HTTP gateway (http_gateway.go), generalized onto gorilla/mux
// for the path-parameter routing a per-device lookup needs.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/metrics"
)

// Server exposes /devices, /devices/{id} and /metrics over HTTP.
type Server struct {
	addr    string
	cache   *deviceinfo.Cache
	metrics *metrics.Metrics
	router  *mux.Router
	http    *http.Server
}

// New builds a Server bound to addr (e.g. ":8080"). m may be nil, in
// which case no /metrics route is registered.
func New(addr string, cache *deviceinfo.Cache, m *metrics.Metrics) *Server {
	s := &Server{addr: addr, cache: cache, metrics: m, router: mux.NewRouter()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/devices", s.handleListDevices).Methods(http.MethodGet)
	s.router.HandleFunc("/devices/{id}", s.handleGetDevice).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
}

type deviceView struct {
	DeviceIdentifier      uint32 `json:"deviceIdentifier"`
	Address               string `json:"address"`
	MaxApduLengthAccepted int    `json:"maxApduLengthAccepted"`
	SegmentationSupported string `json:"segmentationSupported"`
	VendorID              uint16 `json:"vendorId"`
}

func toView(d *deviceinfo.DeviceInfo) deviceView {
	return deviceView{
		DeviceIdentifier:      d.DeviceIdentifier,
		Address:               d.Address.String(),
		MaxApduLengthAccepted: d.MaxApduLengthAccepted,
		SegmentationSupported: d.SegmentationSupported.String(),
		VendorID:              d.VendorID,
	}
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	all := s.cache.All()
	views := make([]deviceView, 0, len(all))
	for _, d := range all {
		views = append(views, toView(d))
	}
	writeJSON(w, views)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}
	d, ok := s.cache.Lookup(uint32(id))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, toView(d))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("[HTTP] failed to encode response: %v", err)
	}
}

// Run starts serving and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{Addr: s.addr, Handler: s.router}
	go func() {
		<-ctx.Done()
		log.Info("[HTTP] context done, shutting down control surface")
		_ = s.http.Shutdown(context.Background())
	}()
	log.Infof("[HTTP] control surface listening on %s", s.addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return fmt.Errorf("http control surface: %w", err)
}

// Drain implements scheduler.Drainer.
func (s *Server) Drain(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
