package messages

import "time"

// ShipmentCreated is published once a carrier accepted a shipment for an order.
type ShipmentCreated struct {
	OrderID        string    `json:"order_id"`
	Provider       string    `json:"provider"`
	ServiceType    string    `json:"service_type"`
	ShipmentID     string    `json:"shipment_id"`
	TrackingNumber string    `json:"tracking_number"`
	LabelURL       string    `json:"label_url"`
	TotalAmount    float64   `json:"total_amount"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
}
