package dhl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:       srv.URL,
		APIKey:        "key",
		APISecret:     "secret",
		AccountNumber: "123456789",
	}, WithClock(func() time.Time { return fixedNow }))
}

func testShipper() models.Address {
	return models.Address{
		ContactName:  "Warehouse",
		Phone:        "+1 512 555 0100",
		AddressLine1: "1 Dock St",
		City:         "Austin",
		PostalCode:   "73301",
		Country:      "US",
	}
}

func testRecipient() models.Address {
	return models.Address{
		ContactName:  "Jane Doe",
		Phone:        "+32 2 555 01 00",
		AddressLine1: "Rue Neuve 1",
		City:         "Brussels",
		PostalCode:   "1000",
		Country:      "BE",
	}
}

const ratesBody = `{
  "products": [
    {"productName":"EXPRESS WORLDWIDE","productCode":"P",
     "totalPrice":[{"currencyType":"PULCL","priceCurrency":"EUR","price":40.1},{"currencyType":"BILLC","priceCurrency":"USD","price":42.5}],
     "deliveryCapabilities":{"estimatedDeliveryDateAndTime":"2025-03-13T23:59:00","totalTransitDays":"2"}},
    {"productName":"EXPRESS 12:00","productCode":"T",
     "totalPrice":[{"currencyType":"BILLC","priceCurrency":"USD","price":61}],
     "deliveryCapabilities":{"totalTransitDays":1}},
    {"productName":"ECONOMY SELECT","productCode":"W",
     "totalPrice":[{"currencyType":"BILLC","priceCurrency":"USD","price":25.75}],
     "deliveryCapabilities":{"estimatedDeliveryDateAndTime":"","totalTransitDays":""}}
  ]
}`

func TestClient_GetRates_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rates", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key", user)
		require.Equal(t, "secret", pass)

		var body rateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "US", body.CustomerDetails.ShipperDetails.CountryCode)
		require.Equal(t, "BE", body.CustomerDetails.ReceiverDetails.CountryCode)
		require.Equal(t, "123456789", body.Accounts[0].Number)
		require.True(t, body.IsCustomsDeclarable)
		require.Len(t, body.Packages, 2)
		require.Equal(t, "2025-03-11T12:00:00 GMT+00:00", body.PlannedShippingDateAndTime)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ratesBody))
	})

	quotes, err := c.GetRates(context.Background(), models.RateRequest{
		Shipper:   testShipper(),
		Recipient: testRecipient(),
		Packages:  []models.Package{{Weight: 1}, {Weight: 3, Length: 10, Width: 10, Height: 10}},
	})
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	require.Equal(t, models.ServiceTypeStandard, quotes[0].ServiceType)
	require.Equal(t, 42.5, quotes[0].TotalAmount)
	require.Equal(t, "USD", quotes[0].Currency)
	require.Equal(t, 2, quotes[0].TransitDays)
	require.Equal(t, time.Date(2025, 3, 13, 23, 59, 0, 0, time.UTC), quotes[0].DeliveryDate)
	require.Equal(t, "dhl-p", quotes[0].RateID)
	require.Equal(t, ProviderName, quotes[0].Provider)

	require.Equal(t, models.ServiceTypeExpress, quotes[1].ServiceType)
	require.Equal(t, fixedNow.AddDate(0, 0, 1), quotes[1].DeliveryDate)

	require.Equal(t, models.ServiceTypeEconomy, quotes[2].ServiceType)
	require.Equal(t, 0, quotes[2].TransitDays)
}

func TestClient_GetRates_FiltersRequestedService(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ratesBody))
	})

	quotes, err := c.GetRates(context.Background(), models.RateRequest{
		Shipper:     testShipper(),
		Recipient:   testRecipient(),
		Packages:    []models.Package{{Weight: 1}},
		ServiceType: models.ServiceTypeExpress,
	})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.Equal(t, "dhl-t", quotes[0].RateID)
}

func TestClient_GetRates_ProblemJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"instance":"/rates","detail":"Invalid postal code","title":"Bad request","status":"400"}`))
	})

	_, err := c.GetRates(context.Background(), models.RateRequest{Packages: []models.Package{{Weight: 1}}})
	require.Error(t, err)
	ce, ok := carrier.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, ce.StatusCode)
	require.Equal(t, "Invalid postal code", ce.Message)
	require.Contains(t, string(ce.Payload), "Invalid postal code")
}

func TestClient_MissingCredentials(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "key"})
	_, err := c.GetRates(context.Background(), models.RateRequest{})
	require.ErrorIs(t, err, carrier.ErrNotConfigured)
	ce, ok := carrier.AsError(err)
	require.True(t, ok)
	require.Equal(t, 0, ce.StatusCode)
	require.False(t, called)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, APIKey: "k", APISecret: "s", AccountNumber: "1"})
	_, err := c.GetTracking(context.Background(), "123")
	ce, ok := carrier.AsError(err)
	require.True(t, ok)
	require.Equal(t, 0, ce.StatusCode)

	v, err := c.ValidateAddress(context.Background(), testRecipient())
	require.NoError(t, err)
	require.True(t, v.IsValid)
}

func TestClient_CreateShipment_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/shipments", r.URL.Path)
		var body shipmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "W", body.ProductCode)
		require.Equal(t, "ORD-1", body.CustomerReferences[0].Value)
		require.Equal(t, "Jane Doe", body.CustomerDetails.ReceiverDetails.ContactInformation.FullName)
		require.Equal(t, "Warehouse", body.CustomerDetails.ShipperDetails.ContactInformation.CompanyName)
		require.Equal(t, "Order ORD-1", body.Content.Description)

		_, _ = w.Write([]byte(`{
  "shipmentTrackingNumber":"1234567890",
  "dispatchConfirmationNumber":"PRG200227000256",
  "trackingUrl":"https://track.example/1234567890",
  "shipmentCharges":[{"currencyType":"BILLC","priceCurrency":"USD","price":25.75}],
  "documents":[{"imageFormat":"PDF","content":"JVBERi0=","typeCode":"label"}]
}`))
	})

	res, err := c.CreateShipment(context.Background(), models.ShipmentRequest{
		Shipper:     testShipper(),
		Recipient:   testRecipient(),
		Packages:    []models.Package{{Weight: 2}},
		ServiceType: models.ServiceTypeEconomy,
		Reference:   "ORD-1",
	})
	require.NoError(t, err)
	require.Equal(t, "1234567890", res.TrackingNumber)
	require.Equal(t, "PRG200227000256", res.ShipmentID)
	require.Equal(t, "data:application/pdf;base64,JVBERi0=", res.LabelURL)
	require.Equal(t, 25.75, res.TotalAmount)
	require.Equal(t, "USD", res.Currency)
	require.Equal(t, ProviderName, res.Provider)
}

func TestClient_CreateShipment_DomesticProduct(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body shipmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "N", body.ProductCode)
		require.False(t, body.Content.IsCustomsDeclarable)
		_, _ = w.Write([]byte(`{"shipmentTrackingNumber":"1","trackingUrl":"https://track.example/1"}`))
	})

	rcpt := testShipper()
	rcpt.City = "Dallas"
	res, err := c.CreateShipment(context.Background(), models.ShipmentRequest{
		Shipper:     testShipper(),
		Recipient:   rcpt,
		Packages:    []models.Package{{Weight: 1}},
		ServiceType: models.ServiceTypeExpress,
	})
	require.NoError(t, err)
	require.Equal(t, "1", res.ShipmentID)
	require.Equal(t, "https://track.example/1", res.LabelURL)
}

func TestClient_CreateShipment_MissingShipper(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("carrier must not be called")
	})

	_, err := c.CreateShipment(context.Background(), models.ShipmentRequest{
		Recipient: testRecipient(),
		Packages:  []models.Package{{Weight: 1}},
	})
	require.ErrorIs(t, err, carrier.ErrNotConfigured)
}

func TestClient_ValidateAddress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/address-validate", r.URL.Path)
		require.Equal(t, "delivery", r.URL.Query().Get("type"))
		switch r.URL.Query().Get("postalCode") {
		case "1000":
			_, _ = w.Write([]byte(`{"address":[{"countryCode":"BE","postalCode":"1000","cityName":"BRUXELLES"}]}`))
		case "1001":
			_, _ = w.Write([]byte(`{"address":[{"countryCode":"BE","postalCode":"1001","cityName":"Brussels"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"title":"Not Found","detail":"no address found","status":404}`))
		}
	})

	v, err := c.ValidateAddress(context.Background(), testRecipient())
	require.NoError(t, err)
	require.True(t, v.IsValid)
	require.NotNil(t, v.SuggestedAddress)
	require.Equal(t, "BRUXELLES", v.SuggestedAddress.City)

	a := testRecipient()
	a.PostalCode = "1001"
	v, err = c.ValidateAddress(context.Background(), a)
	require.NoError(t, err)
	require.True(t, v.IsValid)
	require.Nil(t, v.SuggestedAddress)

	a.PostalCode = "99999"
	v, err = c.ValidateAddress(context.Background(), a)
	require.NoError(t, err)
	require.False(t, v.IsValid)
}

func TestClient_ValidateAddress_CarrierUnusable(t *testing.T) {
	for _, status := range []int{
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"title":"nope","status":` + strconv.Itoa(status) + `}`))
		})
		v, err := c.ValidateAddress(context.Background(), testRecipient())
		require.NoError(t, err, status)
		require.True(t, v.IsValid, status)
		require.Nil(t, v.SuggestedAddress, status)
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"title":"Unprocessable","status":422}`))
	})
	v, err := c.ValidateAddress(context.Background(), testRecipient())
	require.NoError(t, err)
	require.False(t, v.IsValid)
}

func TestClient_GetTracking(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tracking", r.URL.Path)
		require.Equal(t, "1234567890", r.URL.Query().Get("shipmentTrackingNumber"))
		_, _ = w.Write([]byte(`{"shipments":[{
  "shipmentTrackingNumber":"1234567890",
  "status":"Success",
  "estimatedDeliveryDate":"2025-03-14",
  "events":[
    {"date":"2025-03-12","time":"08:10:00","GMTOffset":"+01:00","typeCode":"WC","description":"With delivery courier","serviceArea":[{"code":"BRU","description":"Brussels-BE"}]},
    {"date":"2025-03-11","time":"13:06:00","GMTOffset":"-05:00","typeCode":"PU","description":"Shipment picked up","serviceArea":[{"code":"AUS","description":"Austin-US"}]}
  ]}]}`))
	})

	res, err := c.GetTracking(context.Background(), "1234567890")
	require.NoError(t, err)
	require.Equal(t, models.TrackingStatusOutForDelivery, res.Status)
	require.Equal(t, "WC", res.StatusRaw)
	require.Equal(t, ProviderName, res.Provider)
	require.Len(t, res.Events, 2)
	require.Equal(t, models.TrackingStatusPickedUp, res.Events[0].Status)
	require.Equal(t, time.Date(2025, 3, 11, 18, 6, 0, 0, time.UTC), res.Events[0].Timestamp)
	require.Equal(t, "Austin-US", res.Events[0].Location)
	require.NotNil(t, res.EstimatedDeliveryDate)
	require.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), *res.EstimatedDeliveryDate)
}

func TestClient_GetTracking_NoEventsIsCreated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"shipments":[{"shipmentTrackingNumber":"1","status":"Success","events":[]}]}`))
	})

	res, err := c.GetTracking(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, models.TrackingStatusCreated, res.Status)
	require.Empty(t, res.Events)
}

func TestClient_GetTracking_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found","detail":"No shipments found","status":404}`))
	})

	_, err := c.GetTracking(context.Background(), "nope")
	ce, ok := carrier.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, ce.StatusCode)
	require.Equal(t, "No shipments found", ce.Message)
}
