package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacstack/bacnet/pkg/deviceinfo"
	"github.com/bacstack/bacnet/pkg/metrics"
	"github.com/bacstack/bacnet/pkg/pdu"
)

func newTestServer(t *testing.T) (*Server, *deviceinfo.Cache) {
	t.Helper()
	cache := deviceinfo.NewCache()
	s := New(":0", cache, metrics.New(nil))
	return s, cache
}

func TestListDevicesReturnsCacheSnapshot(t *testing.T) {
	s, cache := newTestServer(t)
	addr := pdu.NewLocalStation([]byte{10, 0, 0, 5, 0xBA, 0xC0})
	cache.IAm(77, addr, 1024, deviceinfo.NoSegmentation, nil, 9, 1476)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var views []deviceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, uint32(77), views[0].DeviceIdentifier)
	assert.Equal(t, uint16(9), views[0].VendorID)
}

func TestGetDeviceByIDFound(t *testing.T) {
	s, cache := newTestServer(t)
	addr := pdu.NewLocalStation([]byte{10, 0, 0, 6, 0xBA, 0xC0})
	cache.IAm(88, addr, 1024, deviceinfo.NoSegmentation, nil, 3, 1476)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/devices/88", nil)
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view deviceView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, uint32(88), view.DeviceIdentifier)
}

func TestGetDeviceByIDNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/devices/404", nil)
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDeviceInvalidIDIsBadRequest(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/devices/not-a-number", nil)
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpointServesPrometheusRegistry(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
