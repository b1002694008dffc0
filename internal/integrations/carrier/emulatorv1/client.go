// Package emulatorv1 talks to the local carrier emulator used in dev and demo environments.
package emulatorv1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const ProviderName = "EMULATOR"

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string { return ProviderName }

type errBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "parse base url"))
	}
	q := u.Query()
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return carrier.WrapError(ProviderName, op, errors.Wrap(err, "encode request"))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "new request"))
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "do request"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "read body"))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return carrier.HTTPError(ProviderName, op, resp.StatusCode, raw, "carrier emulator rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		var eb errBody
		_ = json.Unmarshal(raw, &eb)
		return carrier.HTTPError(ProviderName, op, resp.StatusCode, raw, eb.Error)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return carrier.WrapError(ProviderName, op, errors.Wrap(err, "decode"))
	}
	return nil
}

type rateReq struct {
	Shipper     models.Address   `json:"shipper"`
	Recipient   models.Address   `json:"recipient"`
	Packages    []models.Package `json:"packages"`
	ServiceType string           `json:"service_type,omitempty"`
}

type rateResp struct {
	Rates []struct {
		RateID       string    `json:"rate_id"`
		ServiceType  string    `json:"service_type"`
		ServiceName  string    `json:"service_name"`
		Amount       float64   `json:"amount"`
		Currency     string    `json:"currency"`
		TransitDays  int       `json:"transit_days"`
		DeliveryDate time.Time `json:"delivery_date"`
	} `json:"rates"`
}

func (c *Client) GetRates(ctx context.Context, req models.RateRequest) ([]models.RateQuote, error) {
	var rb rateResp
	in := rateReq{Shipper: req.Shipper, Recipient: req.Recipient, Packages: req.Packages, ServiceType: string(req.ServiceType)}
	if err := c.do(ctx, "get_rates", http.MethodPost, "/v1/rates", in, &rb); err != nil {
		return nil, err
	}

	out := make([]models.RateQuote, 0, len(rb.Rates))
	for _, r := range rb.Rates {
		st := models.ParseServiceType(r.ServiceType)
		if st == "" {
			st = models.ServiceTypeStandard
		}
		out = append(out, models.RateQuote{
			Provider:     ProviderName,
			ServiceType:  st,
			ServiceName:  r.ServiceName,
			DeliveryDate: r.DeliveryDate,
			TotalAmount:  r.Amount,
			Currency:     r.Currency,
			TransitDays:  r.TransitDays,
			RateID:       r.RateID,
		})
	}
	return out, nil
}

type shipmentReq struct {
	Shipper     models.Address   `json:"shipper"`
	Recipient   models.Address   `json:"recipient"`
	Packages    []models.Package `json:"packages"`
	ServiceType string           `json:"service_type"`
	Reference   string           `json:"reference"`
}

type shipmentResp struct {
	ShipmentID  string  `json:"shipment_id"`
	TrackNumber string  `json:"track_number"`
	LabelURL    string  `json:"label_url"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

func (c *Client) CreateShipment(ctx context.Context, req models.ShipmentRequest) (models.ShipmentResult, error) {
	var rb shipmentResp
	in := shipmentReq{
		Shipper:     req.Shipper,
		Recipient:   req.Recipient,
		Packages:    req.Packages,
		ServiceType: string(req.ServiceType),
		Reference:   req.Reference,
	}
	if err := c.do(ctx, "create_shipment", http.MethodPost, "/v1/shipments", in, &rb); err != nil {
		return models.ShipmentResult{}, err
	}
	return models.ShipmentResult{
		Provider:       ProviderName,
		ShipmentID:     rb.ShipmentID,
		TrackingNumber: rb.TrackNumber,
		LabelURL:       rb.LabelURL,
		TotalAmount:    rb.Amount,
		Currency:       rb.Currency,
	}, nil
}

type validateResp struct {
	Valid     bool            `json:"valid"`
	Suggested *models.Address `json:"suggested,omitempty"`
}

// ValidateAddress returns valid when the emulator is down or rejects the call.
func (c *Client) ValidateAddress(ctx context.Context, addr models.Address) (models.AddressValidation, error) {
	var rb validateResp
	if err := c.do(ctx, "validate_address", http.MethodPost, "/v1/addresses/validate", addr, &rb); err != nil {
		return models.AddressValidation{IsValid: true}, nil
	}
	return models.AddressValidation{IsValid: rb.Valid, SuggestedAddress: rb.Suggested}, nil
}

type respEvent struct {
	Status    string    `json:"status"`
	StatusRaw string    `json:"status_raw"`
	EventTime time.Time `json:"event_time"`
	Location  *string   `json:"location,omitempty"`
	Message   *string   `json:"message,omitempty"`
}

type respBody struct {
	Carrier           string      `json:"carrier"`
	TrackNumber       string      `json:"track_number"`
	Status            string      `json:"status"`
	StatusRaw         string      `json:"status_raw"`
	StatusAt          time.Time   `json:"status_at"`
	EstimatedDelivery *time.Time  `json:"estimated_delivery,omitempty"`
	Events            []respEvent `json:"events"`
}

func (c *Client) GetTracking(ctx context.Context, trackNumber string) (models.TrackingResponse, error) {
	var rb respBody
	path := fmt.Sprintf("/v1/tracking/%s/%s", url.PathEscape(ProviderName), url.PathEscape(trackNumber))
	if err := c.do(ctx, "get_tracking", http.MethodGet, path, nil, &rb); err != nil {
		return models.TrackingResponse{}, err
	}

	evs := make([]models.TrackingEvent, 0, len(rb.Events))
	for _, e := range rb.Events {
		evs = append(evs, models.TrackingEvent{
			Timestamp:   e.EventTime,
			Description: deref(e.Message),
			Location:    deref(e.Location),
			Status:      models.ParseTrackingStatus(e.Status),
		})
	}

	status := models.ParseTrackingStatus(rb.Status)
	if rb.Status == "" && len(evs) == 0 {
		status = models.TrackingStatusCreated
	}

	return models.TrackingResponse{
		TrackingNumber:        trackNumber,
		Status:                status,
		StatusRaw:             rb.StatusRaw,
		Provider:              ProviderName,
		EstimatedDeliveryDate: rb.EstimatedDelivery,
		Events:                evs,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
