package models

import "time"

// Shipment states as stored on the order.
const (
	ShipmentStatePending = "PENDING"
	ShipmentStateCreated = "CREATED"
)

// OrderShipment is the shipping attribute set owned by an order record.
type OrderShipment struct {
	OrderID          string
	State            string
	Provider         string
	ServiceType      ServiceType
	ShipmentID       string
	TrackingNumber   string
	LabelURL         string
	TotalAmount      float64
	Currency         string
	ProviderMetadata map[string]any
	Request          *ShipmentRequest

	Status            TrackingStatus
	StatusRaw         string
	StatusAt          *time.Time
	EstimatedDelivery *time.Time
	LastCheckedAt     *time.Time
	NextCheckAt       time.Time
	CheckFailCount    int32
	LastError         *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result returns the carrier result persisted on the order, or nil if no shipment exists yet.
func (s *OrderShipment) Result() *ShipmentResult {
	if s == nil || s.TrackingNumber == "" {
		return nil
	}
	return &ShipmentResult{
		Provider:       s.Provider,
		ShipmentID:     s.ShipmentID,
		TrackingNumber: s.TrackingNumber,
		LabelURL:       s.LabelURL,
		TotalAmount:    s.TotalAmount,
		Currency:       s.Currency,
	}
}

// ShippingInfo is a partial update of an order's shipping attributes. Zero values keep the stored value.
type ShippingInfo struct {
	State            string
	Provider         string
	ServiceType      ServiceType
	ShipmentID       string
	TrackingNumber   string
	LabelURL         string
	TotalAmount      float64
	Currency         string
	ProviderMetadata map[string]any
	Request          *ShipmentRequest
	LastError        *string
}

// ShipmentEvent is a stored tracking checkpoint.
type ShipmentEvent struct {
	ID          uint64
	OrderID     string
	Status      TrackingStatus
	StatusRaw   string
	EventTime   time.Time
	Location    *string
	Message     *string
	PayloadJSON *string
	CreatedAt   time.Time
}
