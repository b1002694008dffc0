package carrier

import (
	"context"
	"time"

	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
)

type instrumented struct {
	next    Provider
	timeout time.Duration
}

// Instrument bounds every call of p by timeout and records its duration.
// A non-positive timeout leaves the caller's context untouched.
func Instrument(p Provider, timeout time.Duration) Provider {
	return &instrumented{next: p, timeout: timeout}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, i.timeout)
}

func (i *instrumented) GetRates(ctx context.Context, req models.RateRequest) ([]models.RateQuote, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	defer metrics.ObserveCarrierCall(i.Name(), "get_rates", time.Now())
	return i.next.GetRates(ctx, req)
}

func (i *instrumented) CreateShipment(ctx context.Context, req models.ShipmentRequest) (models.ShipmentResult, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	defer metrics.ObserveCarrierCall(i.Name(), "create_shipment", time.Now())
	return i.next.CreateShipment(ctx, req)
}

func (i *instrumented) ValidateAddress(ctx context.Context, addr models.Address) (models.AddressValidation, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	defer metrics.ObserveCarrierCall(i.Name(), "validate_address", time.Now())
	return i.next.ValidateAddress(ctx, addr)
}

func (i *instrumented) GetTracking(ctx context.Context, trackingNumber string) (models.TrackingResponse, error) {
	ctx, cancel := i.bound(ctx)
	defer cancel()
	defer metrics.ObserveCarrierCall(i.Name(), "get_tracking", time.Now())
	return i.next.GetTracking(ctx, trackingNumber)
}
