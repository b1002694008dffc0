package tracking

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/cache"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/storage/pgshipping"
	"github.com/pkg/errors"
)

const (
	dashboardEvents = 5
	shipmentEvents  = 20
)

type Providers interface {
	Get(name string) (carrier.Provider, error)
}

type DefaultProvider interface {
	ResolveDefaultProvider(ctx context.Context) string
}

type Repository interface {
	GetOrderShipping(ctx context.Context, orderID string) (*models.OrderShipment, error)
	ListOrderShipments(ctx context.Context, limit, offset int) ([]*models.OrderShipment, error)
	ListShipmentEvents(ctx context.Context, orderID string, limit, offset int) ([]*models.ShipmentEvent, error)
	ApplyTrackingUpdate(ctx context.Context, upd pgshipping.TrackingUpdate) error
}

type Service struct {
	providers Providers
	defaults  DefaultProvider
	repo      Repository
	cache     cache.BytesCache
	cacheTTL  time.Duration
}

func New(providers Providers, defaults DefaultProvider, repo Repository, c cache.BytesCache, cacheTTL time.Duration) *Service {
	return &Service{providers: providers, defaults: defaults, repo: repo, cache: c, cacheTTL: cacheTTL}
}

// Track asks the carrier for the current state of a tracking number. Carrier errors are returned
// as is so the caller can surface the carrier message.
func (s *Service) Track(ctx context.Context, trackingNumber, providerName string) (*models.TrackingResponse, error) {
	number := strings.TrimSpace(trackingNumber)
	if number == "" {
		return nil, models.Invalid("trackingNumber", "is required")
	}
	name := strings.ToUpper(strings.TrimSpace(providerName))
	if name == "" && s.defaults != nil {
		name = s.defaults.ResolveDefaultProvider(ctx)
	}
	provider, err := s.providers.Get(name)
	if err != nil {
		return nil, models.Invalid("provider", "unknown provider "+name)
	}

	key := cacheKey(name, number)
	if resp, ok := s.cached(ctx, key); ok {
		metrics.TrackingLookupsTotal.WithLabelValues(name, metrics.OutcomeCached).Inc()
		return resp, nil
	}

	resp, err := provider.GetTracking(ctx, number)
	if err != nil {
		metrics.TrackingLookupsTotal.WithLabelValues(name, metrics.OutcomeError).Inc()
		return nil, err
	}
	if resp.TrackingNumber == "" {
		resp.TrackingNumber = number
	}
	if resp.Provider == "" {
		resp.Provider = name
	}
	if resp.Status == "" {
		resp.Status = models.TrackingStatusUnknown
	}
	resp.Events = resp.Chronological()

	if s.cache != nil && s.cacheTTL > 0 {
		if b, err := json.Marshal(resp); err == nil {
			_ = s.cache.Set(ctx, key, b, s.cacheTTL)
		}
	}
	metrics.TrackingLookupsTotal.WithLabelValues(name, metrics.OutcomeOK).Inc()
	return &resp, nil
}

func (s *Service) cached(ctx context.Context, key string) (*models.TrackingResponse, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var resp models.TrackingResponse
	if json.Unmarshal(b, &resp) != nil {
		return nil, false
	}
	return &resp, true
}

// ShipmentView is the stored state of an order shipment as the dashboard shows it.
type ShipmentView struct {
	OrderID           string                 `json:"orderId"`
	State             string                 `json:"state"`
	Provider          string                 `json:"provider"`
	ServiceType       models.ServiceType     `json:"serviceType,omitempty"`
	ShipmentID        string                 `json:"shipmentId,omitempty"`
	TrackingNumber    string                 `json:"trackingNumber,omitempty"`
	LabelURL          string                 `json:"labelUrl,omitempty"`
	TotalAmount       float64                `json:"totalAmount,omitempty"`
	Currency          string                 `json:"currency,omitempty"`
	Status            models.TrackingStatus  `json:"status"`
	StatusRaw         string                 `json:"statusRaw,omitempty"`
	ProgressPercent   int                    `json:"progressPercent"`
	EstimatedDelivery *time.Time             `json:"estimatedDelivery,omitempty"`
	LastCheckedAt     *time.Time             `json:"lastCheckedAt,omitempty"`
	LastError         *string                `json:"lastError,omitempty"`
	UpdatedAt         time.Time              `json:"updatedAt"`
	Events            []models.TrackingEvent `json:"events"`
}

// Dashboard lists stored shipments, most recently updated first, each with its latest events.
func (s *Service) Dashboard(ctx context.Context, limit, offset int) ([]ShipmentView, error) {
	if s.repo == nil {
		return nil, errors.New("shipment storage is not configured")
	}
	list, err := s.repo.ListOrderShipments(ctx, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list order shipments")
	}
	out := make([]ShipmentView, 0, len(list))
	for _, sh := range list {
		events, err := s.ListEvents(ctx, sh.OrderID, dashboardEvents, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, view(sh, events))
	}
	return out, nil
}

func (s *Service) GetShipment(ctx context.Context, orderID string) (*ShipmentView, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, models.Invalid("orderId", "is required")
	}
	if s.repo == nil {
		return nil, errors.New("shipment storage is not configured")
	}
	sh, err := s.repo.GetOrderShipping(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order shipment")
	}
	if sh == nil {
		return nil, errors.Wrapf(models.ErrNotFound, "order %s", orderID)
	}
	events, err := s.ListEvents(ctx, orderID, shipmentEvents, 0)
	if err != nil {
		return nil, err
	}
	v := view(sh, events)
	return &v, nil
}

// ListEvents returns stored events newest first.
func (s *Service) ListEvents(ctx context.Context, orderID string, limit, offset int) ([]models.TrackingEvent, error) {
	if s.repo == nil {
		return nil, errors.New("shipment storage is not configured")
	}
	stored, err := s.repo.ListShipmentEvents(ctx, orderID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list shipment events")
	}
	out := make([]models.TrackingEvent, 0, len(stored))
	for _, e := range stored {
		ev := models.TrackingEvent{Timestamp: e.EventTime, Status: e.Status}
		if e.Message != nil {
			ev.Description = *e.Message
		}
		if e.Location != nil {
			ev.Location = *e.Location
		}
		out = append(out, ev)
	}
	return models.TrackingResponse{Events: out}.NewestFirst(), nil
}

func view(sh *models.OrderShipment, events []models.TrackingEvent) ShipmentView {
	status := sh.Status
	if status == "" {
		status = models.TrackingStatusUnknown
	}
	return ShipmentView{
		OrderID:           sh.OrderID,
		State:             sh.State,
		Provider:          sh.Provider,
		ServiceType:       sh.ServiceType,
		ShipmentID:        sh.ShipmentID,
		TrackingNumber:    sh.TrackingNumber,
		LabelURL:          sh.LabelURL,
		TotalAmount:       sh.TotalAmount,
		Currency:          sh.Currency,
		Status:            status,
		StatusRaw:         sh.StatusRaw,
		ProgressPercent:   models.ProgressPercent(status),
		EstimatedDelivery: sh.EstimatedDelivery,
		LastCheckedAt:     sh.LastCheckedAt,
		LastError:         sh.LastError,
		UpdatedAt:         sh.UpdatedAt,
		Events:            events,
	}
}

// ApplyKafkaUpdate stores a poll result published by the worker.
func (s *Service) ApplyKafkaUpdate(ctx context.Context, msg messages.TrackingUpdated) error {
	if msg.OrderID == "" {
		return models.Invalid("order_id", "is required")
	}
	if s.repo == nil {
		return errors.New("shipment storage is not configured")
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = time.Now().UTC()
	}
	if msg.NextCheckAt.IsZero() {
		// воркер не прислал next_check_at: проверим через час
		msg.NextCheckAt = msg.CheckedAt.Add(time.Hour)
	}

	events := make([]*models.ShipmentEvent, 0, len(msg.Events))
	for _, e := range msg.Events {
		events = append(events, &models.ShipmentEvent{
			OrderID:   msg.OrderID,
			Status:    models.ParseTrackingStatus(e.Status),
			StatusRaw: e.StatusRaw,
			EventTime: e.EventTime,
			Location:  e.Location,
			Message:   e.Message,
		})
	}

	err := s.repo.ApplyTrackingUpdate(ctx, pgshipping.TrackingUpdate{
		OrderID:           msg.OrderID,
		CheckedAt:         msg.CheckedAt,
		Status:            models.ParseTrackingStatus(msg.Status),
		StatusRaw:         msg.StatusRaw,
		StatusAt:          msg.StatusAt,
		EstimatedDelivery: msg.EstimatedDelivery,
		NextCheckAt:       msg.NextCheckAt,
		Events:            events,
		Error:             msg.Error,
	})
	if err != nil {
		return errors.Wrap(err, "apply tracking update")
	}

	if s.cache != nil && msg.TrackingNumber != "" {
		key := cacheKey(strings.ToUpper(msg.Provider), msg.TrackingNumber)
		if err := s.cache.Delete(ctx, key); err != nil {
			slog.Warn("invalidate tracking cache", "key", key, "error", err.Error())
		}
	}
	return nil
}

func cacheKey(provider, number string) string {
	return "tracking:" + provider + ":" + number
}
