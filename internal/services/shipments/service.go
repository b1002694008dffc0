package shipments

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/address"
	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/cache"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/pkg/errors"
)

var (
	ErrNoStoredRequest = errors.New("order has no stored shipment request")
	ErrNotCreated      = errors.New("shipment was not created")
)

type Providers interface {
	Get(name string) (carrier.Provider, error)
}

type DefaultProvider interface {
	ResolveDefaultProvider(ctx context.Context) string
}

type Store interface {
	GetOrderShipping(ctx context.Context, orderID string) (*models.OrderShipment, error)
	UpdateOrderShippingInfo(ctx context.Context, orderID string, info models.ShippingInfo) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Service struct {
	providers Providers
	defaults  DefaultProvider
	store     Store
	locker    cache.Locker
	publisher Publisher
	topic     string
	shipper   models.Address
	lockTTL   time.Duration
	now       func() time.Time
}

// New wires the service. store, locker and publisher are optional.
func New(providers Providers, defaults DefaultProvider, store Store, shipper models.Address) *Service {
	return &Service{
		providers: providers,
		defaults:  defaults,
		store:     store,
		shipper:   shipper,
		lockTTL:   2 * time.Minute,
		now:       time.Now,
	}
}

func (s *Service) WithLocker(l cache.Locker, ttl time.Duration) *Service {
	s.locker = l
	if ttl > 0 {
		s.lockTTL = ttl
	}
	return s
}

func (s *Service) WithPublisher(p Publisher, topic string) *Service {
	s.publisher = p
	s.topic = topic
	return s
}

func lockKey(orderID string) string {
	return "shipment:lock:" + orderID
}

// CreateShipmentForOrder books a shipment for a confirmed order. It never fails: any problem is
// logged, recorded on the order for a later retry, and reported as a nil result.
func (s *Service) CreateShipmentForOrder(
	ctx context.Context,
	order models.Order,
	shipTo models.Address,
	packages []models.Package,
	serviceType models.ServiceType,
	providerName string,
) *models.ShipmentResult {
	req := models.ShipmentRequest{
		Recipient:   shipTo,
		Packages:    packages,
		ServiceType: serviceType,
		Reference:   order.Reference(),
		Provider:    providerName,
	}
	return s.create(ctx, order.ID, req)
}

// RetryShipment re-runs creation from the request stored on the order.
func (s *Service) RetryShipment(ctx context.Context, orderID string) (*models.ShipmentResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, models.Invalid("orderId", "is required")
	}
	if s.store == nil {
		return nil, errors.New("shipment store is not configured")
	}
	sh, err := s.store.GetOrderShipping(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load order shipment")
	}
	if sh == nil {
		return nil, errors.Wrapf(models.ErrNotFound, "order %s", orderID)
	}
	if res := sh.Result(); res != nil {
		return res, nil
	}
	if sh.Request == nil {
		return nil, errors.Wrapf(ErrNoStoredRequest, "order %s", orderID)
	}

	res := s.create(ctx, orderID, *sh.Request)
	if res == nil {
		return nil, errors.Wrapf(ErrNotCreated, "order %s", orderID)
	}
	return res, nil
}

func (s *Service) create(ctx context.Context, orderID string, req models.ShipmentRequest) *models.ShipmentResult {
	log := slog.With("order_id", orderID)

	if existing := s.existing(ctx, orderID); existing != nil {
		log.Info("shipment already exists, skipping carrier call", "tracking_number", existing.TrackingNumber)
		return existing
	}

	if s.locker != nil {
		token, ok, err := s.locker.Acquire(ctx, lockKey(orderID), s.lockTTL)
		switch {
		case err != nil:
			log.Warn("shipment lock unavailable, continuing without it", "error", err.Error())
		case !ok:
			log.Warn("shipment creation already in progress for order")
			metrics.ShipmentsTotal.WithLabelValues(req.Provider, metrics.OutcomeSkipped).Inc()
			return nil
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), lockKey(orderID), token); err != nil {
					log.Warn("release shipment lock", "error", err.Error())
				}
			}()
			// Другой запрос мог успеть создать отгрузку, пока мы ждали лок.
			if existing := s.existing(ctx, orderID); existing != nil {
				return existing
			}
		}
	}

	name := strings.ToUpper(strings.TrimSpace(req.Provider))
	if name == "" && s.defaults != nil {
		name = s.defaults.ResolveDefaultProvider(ctx)
	}
	req.Provider = name
	if req.Shipper.IsZero() {
		req.Shipper = s.shipper
	}
	if req.ServiceType == "" {
		req.ServiceType = models.ServiceTypeStandard
	}
	if err := req.Validate(); err != nil {
		// повтор такого запроса никогда не пройдёт, поэтому на заказе его не сохраняем
		log.Warn("shipment request rejected", "provider", name, "error", err.Error())
		metrics.ShipmentsTotal.WithLabelValues(name, metrics.OutcomeError).Inc()
		return nil
	}
	req.Shipper = address.NormalizeAddress(req.Shipper)
	req.Recipient = address.NormalizeAddress(req.Recipient)

	provider, err := s.providers.Get(name)
	if err != nil {
		s.fail(ctx, log, orderID, req, err)
		return nil
	}

	res, err := provider.CreateShipment(ctx, req)
	if err != nil {
		s.fail(ctx, log, orderID, req, err)
		return nil
	}
	if res.Provider == "" {
		res.Provider = name
	}

	metrics.ShipmentsTotal.WithLabelValues(name, metrics.OutcomeOK).Inc()
	log.Info("shipment created", "provider", name, "tracking_number", res.TrackingNumber)

	s.persist(ctx, log, orderID, req, res)
	s.publish(ctx, log, orderID, req, res)
	return &res
}

func (s *Service) existing(ctx context.Context, orderID string) *models.ShipmentResult {
	if s.store == nil || orderID == "" {
		return nil
	}
	sh, err := s.store.GetOrderShipping(ctx, orderID)
	if err != nil {
		slog.Warn("load order shipment", "order_id", orderID, "error", err.Error())
		return nil
	}
	return sh.Result()
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, orderID string, req models.ShipmentRequest, err error) {
	attrs := []any{"provider", req.Provider, "error", err.Error()}
	if ce, ok := carrier.AsError(err); ok {
		attrs = append(attrs, "carrier_status", ce.StatusCode)
		if len(ce.Payload) > 0 {
			attrs = append(attrs, "carrier_payload", string(ce.Payload))
		}
	}
	log.Error("shipment creation failed", attrs...)
	metrics.ShipmentsTotal.WithLabelValues(req.Provider, metrics.OutcomeError).Inc()

	if s.store == nil {
		return
	}
	msg := err.Error()
	reqCopy := req
	if perr := s.store.UpdateOrderShippingInfo(ctx, orderID, models.ShippingInfo{
		State:     models.ShipmentStatePending,
		Provider:  req.Provider,
		Request:   &reqCopy,
		LastError: &msg,
	}); perr != nil {
		log.Error("record failed shipment", "error", perr.Error())
	}
}

func (s *Service) persist(ctx context.Context, log *slog.Logger, orderID string, req models.ShipmentRequest, res models.ShipmentResult) {
	if s.store == nil {
		return
	}
	reqCopy := req
	err := s.store.UpdateOrderShippingInfo(ctx, orderID, models.ShippingInfo{
		State:          models.ShipmentStateCreated,
		Provider:       res.Provider,
		ServiceType:    req.ServiceType,
		ShipmentID:     res.ShipmentID,
		TrackingNumber: res.TrackingNumber,
		LabelURL:       res.LabelURL,
		TotalAmount:    res.TotalAmount,
		Currency:       res.Currency,
		ProviderMetadata: map[string]any{
			"shipmentId": res.ShipmentID,
			"createdAt":  s.now().UTC().Format(time.RFC3339),
		},
		Request: &reqCopy,
	})
	if err != nil {
		// Отгрузка у перевозчика уже есть: результат всё равно возвращаем вызывающему.
		log.Error("persist shipment", "tracking_number", res.TrackingNumber, "error", err.Error())
	}
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, orderID string, req models.ShipmentRequest, res models.ShipmentResult) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	msg := messages.ShipmentCreated{
		OrderID:        orderID,
		Provider:       res.Provider,
		ServiceType:    string(req.ServiceType),
		ShipmentID:     res.ShipmentID,
		TrackingNumber: res.TrackingNumber,
		LabelURL:       res.LabelURL,
		TotalAmount:    res.TotalAmount,
		Currency:       res.Currency,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.publisher.PublishJSON(ctx, s.topic, orderID, msg); err != nil {
		log.Warn("publish shipment created", "error", err.Error())
	}
}
