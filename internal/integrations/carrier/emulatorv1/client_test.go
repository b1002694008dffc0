package emulatorv1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/stretchr/testify/require"
)

func TestClient_GetTracking_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/tracking/EMULATOR/123", r.URL.Path)
		require.Equal(t, "k", r.URL.Query().Get("apiKey"))
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "carrier": "EMULATOR",
  "track_number": "123",
  "status": "IN_TRANSIT",
  "status_raw": "raw",
  "status_at": "2025-01-01T00:00:00Z",
  "events": [{"status":"IN_TRANSIT","status_raw":"raw","event_time":"2025-01-01T00:00:00Z","location":"Hub","message":"Departed"}]
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", time.Second)
	res, err := c.GetTracking(context.Background(), "123")
	require.NoError(t, err)
	require.Equal(t, models.TrackingStatusInTransit, res.Status)
	require.Equal(t, "raw", res.StatusRaw)
	require.Len(t, res.Events, 1)
	require.Equal(t, "Hub", res.Events[0].Location)
	require.Equal(t, "Departed", res.Events[0].Description)
	require.WithinDuration(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), res.Events[0].Timestamp, time.Second)
}

func TestClient_GetTracking_UnmappedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"LOST_IN_SPACE","status_raw":"lost","events":[]}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "", time.Second).GetTracking(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, models.TrackingStatusUnknown, res.Status)
}

func TestClient_GetTracking_429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", time.Second)
	_, err := c.GetTracking(context.Background(), "123")
	require.Error(t, err)
	ce, ok := carrier.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusTooManyRequests, ce.StatusCode)
}

func TestClient_GetRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/rates", r.URL.Path)
		var in rateReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Len(t, in.Packages, 1)
		_, _ = w.Write([]byte(`{"rates":[
  {"rate_id":"r1","service_type":"express","service_name":"Emu Express","amount":12.5,"currency":"USD","transit_days":1,"delivery_date":"2025-01-02T00:00:00Z"},
  {"rate_id":"r2","service_type":"weird","amount":3,"currency":"USD","transit_days":9,"delivery_date":"2025-01-10T00:00:00Z"}
]}`))
	}))
	defer srv.Close()

	quotes, err := New(srv.URL, "", time.Second).GetRates(context.Background(), models.RateRequest{
		Packages: []models.Package{{Weight: 1}},
	})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	require.Equal(t, models.ServiceTypeExpress, quotes[0].ServiceType)
	require.Equal(t, models.ServiceTypeStandard, quotes[1].ServiceType)
	require.Equal(t, ProviderName, quotes[0].Provider)
}

func TestClient_CreateShipment_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"recipient postal code missing"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).CreateShipment(context.Background(), models.ShipmentRequest{})
	ce, ok := carrier.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnprocessableEntity, ce.StatusCode)
	require.Equal(t, "recipient postal code missing", ce.Message)
}

func TestClient_ValidateAddress_DownIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v, err := New(srv.URL, "", time.Second).ValidateAddress(context.Background(), models.Address{Country: "US"})
	require.NoError(t, err)
	require.True(t, v.IsValid)
}
