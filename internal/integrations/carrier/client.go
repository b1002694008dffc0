package carrier

import (
	"context"

	"github.com/BearBump/ShipBox/internal/models"
)

// Provider is what every carrier integration implements.
//
// GetRates, CreateShipment and GetTracking return *Error on any failure; deciding what to do
// about it belongs to the caller. ValidateAddress is advisory and may report an address as
// valid when the carrier cannot be reached. GetTracking maps carrier statuses it does not
// recognize to UNKNOWN instead of failing.
type Provider interface {
	Name() string
	GetRates(ctx context.Context, req models.RateRequest) ([]models.RateQuote, error)
	CreateShipment(ctx context.Context, req models.ShipmentRequest) (models.ShipmentResult, error)
	ValidateAddress(ctx context.Context, addr models.Address) (models.AddressValidation, error)
	GetTracking(ctx context.Context, trackingNumber string) (models.TrackingResponse, error)
}
