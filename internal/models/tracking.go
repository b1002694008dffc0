package models

import (
	"sort"
	"strings"
	"time"
)

// TrackingStatus is the carrier-neutral shipment state.
type TrackingStatus string

// Progressing states in real-world order, plus two states reachable from anywhere.
const (
	TrackingStatusCreated        TrackingStatus = "CREATED"
	TrackingStatusPickedUp       TrackingStatus = "PICKED_UP"
	TrackingStatusInTransit      TrackingStatus = "IN_TRANSIT"
	TrackingStatusOutForDelivery TrackingStatus = "OUT_FOR_DELIVERY"
	TrackingStatusDelivered      TrackingStatus = "DELIVERED"
	TrackingStatusException      TrackingStatus = "EXCEPTION"
	TrackingStatusUnknown        TrackingStatus = "UNKNOWN"
)

var progressPercent = map[TrackingStatus]int{
	TrackingStatusCreated:        10,
	TrackingStatusPickedUp:       25,
	TrackingStatusInTransit:      50,
	TrackingStatusOutForDelivery: 75,
	TrackingStatusDelivered:      100,
	TrackingStatusException:      0,
	TrackingStatusUnknown:        0,
}

// AllTrackingStatuses lists every status in display order.
func AllTrackingStatuses() []TrackingStatus {
	return []TrackingStatus{
		TrackingStatusCreated,
		TrackingStatusPickedUp,
		TrackingStatusInTransit,
		TrackingStatusOutForDelivery,
		TrackingStatusDelivered,
		TrackingStatusException,
		TrackingStatusUnknown,
	}
}

// ProgressPercent is the dashboard progress bar value for a status.
func ProgressPercent(s TrackingStatus) int {
	return progressPercent[s]
}

// ParseTrackingStatus accepts an already normalized status string; anything else is UNKNOWN.
func ParseTrackingStatus(s string) TrackingStatus {
	st := TrackingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := progressPercent[st]; ok {
		return st
	}
	return TrackingStatusUnknown
}

// IsFinal reports whether no more polling is needed.
func (s TrackingStatus) IsFinal() bool {
	return s == TrackingStatusDelivered
}

type TrackingEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description"`
	Location    string         `json:"location,omitempty"`
	Status      TrackingStatus `json:"status"`
}

type TrackingResponse struct {
	TrackingNumber        string          `json:"trackingNumber"`
	Status                TrackingStatus  `json:"status"`
	StatusRaw             string          `json:"statusRaw,omitempty"`
	Provider              string          `json:"provider"`
	EstimatedDeliveryDate *time.Time      `json:"estimatedDeliveryDate,omitempty"`
	Events                []TrackingEvent `json:"events"`
}

// Chronological returns the events oldest first. The receiver is not modified.
func (r TrackingResponse) Chronological() []TrackingEvent {
	out := append([]TrackingEvent(nil), r.Events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// NewestFirst returns the events newest first, as the dashboard renders them.
func (r TrackingResponse) NewestFirst() []TrackingEvent {
	out := append([]TrackingEvent(nil), r.Events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}
