package shippingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	carriermocks "github.com/BearBump/ShipBox/internal/integrations/carrier/mocks"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/rates"
	"github.com/BearBump/ShipBox/internal/services/settings"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/BearBump/ShipBox/internal/services/tracking"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	trackingmocks "github.com/BearBump/ShipBox/internal/services/tracking/mocks"
)

type memSettings struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memSettings) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *memSettings) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

type env struct {
	dhl  *carriermocks.MockProvider
	repo *trackingmocks.MockRepository
	srv  *httptest.Server
}

var shipper = models.Address{ContactName: "Warehouse", AddressLine1: "100 Congress Ave", City: "Austin", PostalCode: "78701", Country: "US"}

type memShipments struct {
	mu     sync.Mutex
	writes []models.ShippingInfo
}

func (m *memShipments) GetOrderShipping(ctx context.Context, orderID string) (*models.OrderShipment, error) {
	return nil, nil
}

func (m *memShipments) UpdateOrderShippingInfo(ctx context.Context, orderID string, info models.ShippingInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, info)
	return nil
}

func newEnv(t *testing.T) *env {
	return newEnvWithStore(t, nil)
}

func newEnvWithStore(t *testing.T, store shipments.Store) *env {
	t.Helper()
	dhl := carriermocks.NewMockProvider("DHL")
	repo := &trackingmocks.MockRepository{}
	reg := carrier.NewRegistry(dhl)
	resolver := settings.NewResolver(&memSettings{m: map[string]string{}}, reg)

	api := New(
		rates.New(reg, resolver, nil, 0),
		shipments.New(reg, resolver, store, shipper),
		tracking.New(reg, resolver, repo, nil, 0),
		resolver,
		reg,
	)
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return &env{dhl: dhl, repo: repo, srv: srv}
}

func (e *env) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

const rateBody = `{
  "shipper": {"addressLine1": "100 Congress Ave", "city": "Austin", "postalCode": "78701", "country": "United States"},
  "recipient": {"addressLine1": "Unter den Linden 1", "city": "Berlin", "postalCode": "10117", "country": "DE"},
  "packages": [{"weight": 2, "length": 10, "width": 10, "height": 10}]
}`

func TestQuoteRates_Degraded(t *testing.T) {
	e := newEnv(t)
	ce := carrier.HTTPError("DHL", "get_rates", http.StatusUnauthorized, []byte(`{"detail":"bad key"}`), "bad key")
	e.dhl.On("GetRates", mock.Anything, mock.Anything).Return(nil, ce).Once()

	resp, out := e.do(t, http.MethodPost, "/shipping/rates", rateBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["degraded"])
	require.Equal(t, "bad key", out["warning"])
	require.Equal(t, float64(http.StatusUnauthorized), out["errorStatus"])
	require.Len(t, out["rates"], 3)
}

func TestQuoteRates_Validation(t *testing.T) {
	e := newEnv(t)

	resp, out := e.do(t, http.MethodPost, "/shipping/rates", `{"packages": []}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, out["error"], "shipper")

	resp, _ = e.do(t, http.MethodPost, "/shipping/rates", `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e.dhl.AssertNotCalled(t, "GetRates", mock.Anything, mock.Anything)
}

func TestCreateShipment(t *testing.T) {
	e := newEnv(t)
	e.dhl.On("CreateShipment", mock.Anything, mock.MatchedBy(func(r models.ShipmentRequest) bool {
		return r.Shipper.City == "Austin" && r.Reference == "1001"
	})).Return(models.ShipmentResult{TrackingNumber: "1234567890", Currency: "USD"}, nil).Once()

	body := `{"order": {"id": "o-1", "number": "1001"}, "shipTo": {"addressLine1": "Rue Neuve 1", "city": "Brussels", "country": "Belgium"},
	  "packages": [{"weight": 1}], "serviceType": "EXPRESS"}`
	resp, out := e.do(t, http.MethodPost, "/shipping/shipments", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, true, out["created"])
	require.Equal(t, "1234567890", out["shipment"].(map[string]any)["trackingNumber"])
}

func TestCreateShipment_FailureIsNotARequestFailure(t *testing.T) {
	e := newEnv(t)
	e.dhl.On("CreateShipment", mock.Anything, mock.Anything).Return(models.ShipmentResult{}, errors.New("carrier down")).Once()

	body := `{"order": {"id": "o-2"}, "shipTo": {"addressLine1": "x", "city": "Berlin", "country": "DE"}, "packages": [{"weight": 1}]}`
	resp, out := e.do(t, http.MethodPost, "/shipping/shipments", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, false, out["created"])
	require.Nil(t, out["shipment"])
}

func TestCreateShipment_InvalidRequestIs400(t *testing.T) {
	store := &memShipments{}
	e := newEnvWithStore(t, store)

	for _, body := range []string{
		`{"order": {"id": "o-3"}, "shipTo": {"addressLine1": "x", "city": "Berlin", "country": "DE"}, "packages": []}`,
		`{"order": {"id": "o-3"}, "packages": [{"weight": 1}]}`,
		`{"order": {"id": "o-3"}, "shipTo": {"addressLine1": "x", "city": "Berlin", "country": "DE"}, "packages": [{"weight": 1}], "serviceType": "TELEPORT"}`,
	} {
		resp, out := e.do(t, http.MethodPost, "/shipping/shipments", body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		require.NotEmpty(t, out["error"])
	}
	e.dhl.AssertNotCalled(t, "CreateShipment", mock.Anything, mock.Anything)
	require.Empty(t, store.writes)
}

func TestCreateShipment_CarrierFailureIsRecorded(t *testing.T) {
	store := &memShipments{}
	e := newEnvWithStore(t, store)
	e.dhl.On("CreateShipment", mock.Anything, mock.Anything).Return(models.ShipmentResult{}, errors.New("carrier down")).Once()

	body := `{"order": {"id": "o-4"}, "shipTo": {"addressLine1": "x", "city": "Berlin", "country": "DE"}, "packages": [{"weight": 1}]}`
	resp, _ := e.do(t, http.MethodPost, "/shipping/shipments", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, store.writes, 1)
	require.Equal(t, models.ShipmentStatePending, store.writes[0].State)
}

func TestTrack(t *testing.T) {
	e := newEnv(t)
	t0 := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	e.dhl.On("GetTracking", mock.Anything, "123").Return(models.TrackingResponse{
		Status: models.TrackingStatusOutForDelivery,
		Events: []models.TrackingEvent{
			{Timestamp: t0.Add(time.Hour), Status: models.TrackingStatusOutForDelivery},
			{Timestamp: t0, Status: models.TrackingStatusInTransit},
		},
	}, nil).Once()

	resp, out := e.do(t, http.MethodGet, "/shipping/track?trackingNumber=123&provider=dhl", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OUT_FOR_DELIVERY", out["status"])
	events := out["events"].([]any)
	require.Equal(t, "IN_TRANSIT", events[0].(map[string]any)["status"])
}

func TestTrack_CarrierErrorIs502WithMessage(t *testing.T) {
	e := newEnv(t)
	ce := carrier.HTTPError("DHL", "get_tracking", http.StatusNotFound, []byte(`{"title":"Not found"}`), "No shipment with this number")
	e.dhl.On("GetTracking", mock.Anything, "404").Return(models.TrackingResponse{}, ce).Once()

	resp, out := e.do(t, http.MethodGet, "/shipping/track?trackingNumber=404", "")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "No shipment with this number", out["error"])
	require.Equal(t, float64(http.StatusNotFound), out["carrierStatus"])

	resp, _ = e.do(t, http.MethodGet, "/shipping/track", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDefaultProviderSettings(t *testing.T) {
	e := newEnv(t)

	_, out := e.do(t, http.MethodGet, "/shipping/settings/default-provider", "")
	require.Equal(t, "DHL", out["provider"])

	resp, _ := e.do(t, http.MethodPut, "/shipping/settings/default-provider", `{"provider": "ups"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = e.do(t, http.MethodPut, "/shipping/settings/default-provider", `{"provider": " dhl "}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "DHL", out["provider"])

	_, out = e.do(t, http.MethodGet, "/shipping/providers", "")
	require.Equal(t, []any{"DHL"}, out["providers"])
}

func TestValidateAddress(t *testing.T) {
	e := newEnv(t)
	e.dhl.On("ValidateAddress", mock.Anything, mock.MatchedBy(func(a models.Address) bool {
		return a.Country == "GB"
	})).Return(models.AddressValidation{IsValid: true}, nil).Once()

	resp, out := e.do(t, http.MethodPost, "/shipping/addresses/validate?provider=DHL",
		`{"addressLine1": "10 Downing St", "city": "London", "country": "United Kingdom"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["isValid"])

	resp, _ = e.do(t, http.MethodPost, "/shipping/addresses/validate?provider=nope", `{"city": "London"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboardAndShipment(t *testing.T) {
	e := newEnv(t)
	e.repo.On("ListOrderShipments", mock.Anything, 10, 0).Return([]*models.OrderShipment{
		{OrderID: "o-1", Provider: "DHL", TrackingNumber: "T1", Status: models.TrackingStatusInTransit},
	}, nil).Once()
	e.repo.On("ListShipmentEvents", mock.Anything, "o-1", mock.Anything, 0).Return(nil, nil)
	e.repo.On("GetOrderShipping", mock.Anything, "missing").Return(nil, nil).Once()

	resp, out := e.do(t, http.MethodGet, "/shipping/dashboard?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := out["items"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, float64(50), items[0].(map[string]any)["progressPercent"])

	resp, out = e.do(t, http.MethodGet, "/shipping/shipments/missing", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.True(t, strings.Contains(out["error"].(string), "not found"))
}

func TestRetryShipment_NoStore(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, http.MethodPost, "/shipping/shipments/o-1/retry", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
