package messages

import (
	"time"
)

// TrackingUpdated is published by ship-worker after every poll of an order shipment.
type TrackingUpdated struct {
	OrderID        string    `json:"order_id"`
	Provider       string    `json:"provider"`
	TrackingNumber string    `json:"tracking_number"`
	CheckedAt      time.Time `json:"checked_at"`

	Status            string     `json:"status,omitempty"`
	StatusRaw         string     `json:"status_raw,omitempty"`
	StatusAt          *time.Time `json:"status_at,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`

	NextCheckAt time.Time `json:"next_check_at"`

	Events []TrackingEvent `json:"events,omitempty"`

	Error *string `json:"error,omitempty"`
}

type TrackingEvent struct {
	Status    string    `json:"status"`
	StatusRaw string    `json:"status_raw"`
	EventTime time.Time `json:"event_time"`
	Location  *string   `json:"location,omitempty"`
	Message   *string   `json:"message,omitempty"`
}
