package shippingapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BearBump/ShipBox/internal/address"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/services/rates"
	"github.com/BearBump/ShipBox/internal/services/tracking"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

type RateQuoter interface {
	Quote(ctx context.Context, req models.RateRequest, provider string) (rates.Quote, error)
}

type ShipmentCreator interface {
	CreateShipmentForOrder(ctx context.Context, order models.Order, shipTo models.Address, packages []models.Package, serviceType models.ServiceType, provider string) *models.ShipmentResult
	RetryShipment(ctx context.Context, orderID string) (*models.ShipmentResult, error)
}

type Tracker interface {
	Track(ctx context.Context, trackingNumber, provider string) (*models.TrackingResponse, error)
	Dashboard(ctx context.Context, limit, offset int) ([]tracking.ShipmentView, error)
	GetShipment(ctx context.Context, orderID string) (*tracking.ShipmentView, error)
	ListEvents(ctx context.Context, orderID string, limit, offset int) ([]models.TrackingEvent, error)
}

type Settings interface {
	ResolveDefaultProvider(ctx context.Context) string
	SetDefaultProvider(ctx context.Context, name string) (string, error)
}

type Providers interface {
	Get(name string) (carrier.Provider, error)
	Names() []string
}

// ShippingAPI is the JSON surface of the shipping core.
type ShippingAPI struct {
	rates     RateQuoter
	shipments ShipmentCreator
	tracking  Tracker
	settings  Settings
	providers Providers
}

func New(r RateQuoter, s ShipmentCreator, t Tracker, st Settings, p Providers) *ShippingAPI {
	return &ShippingAPI{rates: r, shipments: s, tracking: t, settings: st, providers: p}
}

func (a *ShippingAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/shipping", func(r chi.Router) {
		r.Post("/rates", a.quoteRates)
		r.Post("/shipments", a.createShipment)
		r.Get("/shipments/{orderID}", a.getShipment)
		r.Get("/shipments/{orderID}/events", a.listEvents)
		r.Post("/shipments/{orderID}/retry", a.retryShipment)
		r.Get("/track", a.track)
		r.Get("/dashboard", a.dashboard)
		r.Get("/providers", a.listProviders)
		r.Get("/settings/default-provider", a.getDefaultProvider)
		r.Put("/settings/default-provider", a.setDefaultProvider)
		r.Post("/addresses/validate", a.validateAddress)
	})
	return r
}

func (a *ShippingAPI) quoteRates(w http.ResponseWriter, r *http.Request) {
	var req models.RateRequest
	if !decode(w, r, &req) {
		return
	}
	provider := r.URL.Query().Get("provider")
	q, err := a.rates.Quote(r.Context(), req, provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type createShipmentRequest struct {
	Order       models.Order       `json:"order"`
	ShipTo      models.Address     `json:"shipTo"`
	Packages    []models.Package   `json:"packages"`
	ServiceType models.ServiceType `json:"serviceType"`
	Provider    string             `json:"provider"`
}

type createShipmentResponse struct {
	Created  bool                   `json:"created"`
	Shipment *models.ShipmentResult `json:"shipment"`
}

// createShipment rejects malformed requests with 400 but never reports a carrier failure:
// the failure is recorded on the order and can be retried.
func (a *ShippingAPI) createShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Order.ID) == "" {
		writeError(w, models.Invalid("order.id", "is required"))
		return
	}
	check := models.ShipmentRequest{Recipient: req.ShipTo, Packages: req.Packages, ServiceType: req.ServiceType}
	if err := check.Validate(); err != nil {
		writeError(w, err)
		return
	}
	res := a.shipments.CreateShipmentForOrder(r.Context(), req.Order, req.ShipTo, req.Packages, req.ServiceType, req.Provider)
	if res == nil {
		writeJSON(w, http.StatusAccepted, createShipmentResponse{})
		return
	}
	writeJSON(w, http.StatusCreated, createShipmentResponse{Created: true, Shipment: res})
}

func (a *ShippingAPI) retryShipment(w http.ResponseWriter, r *http.Request) {
	res, err := a.shipments.RetryShipment(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createShipmentResponse{Created: true, Shipment: res})
}

func (a *ShippingAPI) getShipment(w http.ResponseWriter, r *http.Request) {
	v, err := a.tracking.GetShipment(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *ShippingAPI) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	evs, err := a.tracking.ListEvents(r.Context(), chi.URLParam(r, "orderID"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func (a *ShippingAPI) track(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := a.tracking.Track(r.Context(), q.Get("trackingNumber"), q.Get("provider"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *ShippingAPI) dashboard(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	items, err := a.tracking.Dashboard(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *ShippingAPI) listProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": a.providers.Names(),
		"default":   a.settings.ResolveDefaultProvider(r.Context()),
	})
}

type defaultProviderBody struct {
	Provider string `json:"provider"`
}

func (a *ShippingAPI) getDefaultProvider(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, defaultProviderBody{Provider: a.settings.ResolveDefaultProvider(r.Context())})
}

func (a *ShippingAPI) setDefaultProvider(w http.ResponseWriter, r *http.Request) {
	var body defaultProviderBody
	if !decode(w, r, &body) {
		return
	}
	name, err := a.settings.SetDefaultProvider(r.Context(), body.Provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defaultProviderBody{Provider: name})
}

func (a *ShippingAPI) validateAddress(w http.ResponseWriter, r *http.Request) {
	var addr models.Address
	if !decode(w, r, &addr) {
		return
	}
	if addr.IsZero() {
		writeError(w, models.Invalid("address", "is required"))
		return
	}
	name := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("provider")))
	if name == "" {
		name = a.settings.ResolveDefaultProvider(r.Context())
	}
	p, err := a.providers.Get(name)
	if err != nil {
		writeError(w, models.Invalid("provider", "unknown provider "+name))
		return
	}
	res, err := p.ValidateAddress(r.Context(), address.NormalizeAddress(addr))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func page(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body: " + err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error  string          `json:"error"`
	Status int             `json:"carrierStatus,omitempty"`
	Detail json.RawMessage `json:"carrierPayload,omitempty"`
}

// writeError maps the error taxonomy onto HTTP: validation 400, missing 404, carrier 502.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		if ce, ok := carrier.AsError(err); ok {
			writeJSON(w, http.StatusBadGateway, errorBody{Error: ce.Message, Status: ce.StatusCode, Detail: ce.Payload})
			return
		}
		slog.Error("shipping api", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
