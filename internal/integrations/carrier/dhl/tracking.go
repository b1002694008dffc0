package dhl

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
)

type trackingEvent struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	GMTOffset   string `json:"GMTOffset"`
	TypeCode    string `json:"typeCode"`
	Description string `json:"description"`
	ServiceArea []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"serviceArea"`
}

type trackingShipment struct {
	ShipmentTrackingNumber string          `json:"shipmentTrackingNumber"`
	Status                 string          `json:"status"`
	EstimatedDeliveryDate  string          `json:"estimatedDeliveryDate"`
	Events                 []trackingEvent `json:"events"`
}

type trackingResponse struct {
	Shipments []trackingShipment `json:"shipments"`
}

func (c *Client) GetTracking(ctx context.Context, trackingNumber string) (models.TrackingResponse, error) {
	const op = "get_tracking"

	q := url.Values{}
	q.Set("shipmentTrackingNumber", trackingNumber)
	q.Set("trackingView", "all-checkpoints")
	q.Set("levelOfDetail", "all")

	var rb trackingResponse
	if err := c.do(ctx, op, http.MethodGet, "/tracking", q, nil, &rb); err != nil {
		return models.TrackingResponse{}, err
	}
	if len(rb.Shipments) == 0 {
		return models.TrackingResponse{}, carrier.HTTPError(ProviderName, op, http.StatusNotFound, nil, "tracking number not found")
	}
	sh := rb.Shipments[0]

	events := make([]models.TrackingEvent, 0, len(sh.Events))
	for _, e := range sh.Events {
		var loc string
		if len(e.ServiceArea) > 0 {
			loc = e.ServiceArea[0].Description
		}
		events = append(events, models.TrackingEvent{
			Timestamp:   parseEventTime(e),
			Description: e.Description,
			Location:    loc,
			Status:      statusForEvent(e.TypeCode),
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })

	res := models.TrackingResponse{
		TrackingNumber: trackingNumber,
		Status:         models.TrackingStatusCreated,
		Provider:       ProviderName,
		Events:         events,
	}
	if sh.ShipmentTrackingNumber != "" {
		res.TrackingNumber = sh.ShipmentTrackingNumber
	}
	if len(sh.Events) > 0 {
		latest := latestEvent(sh.Events)
		res.Status = statusForEvent(latest.TypeCode)
		res.StatusRaw = latest.TypeCode
	} else {
		res.StatusRaw = sh.Status
	}
	if t, ok := parseDate(sh.EstimatedDeliveryDate); ok {
		res.EstimatedDeliveryDate = &t
	}
	return res, nil
}

func latestEvent(evs []trackingEvent) trackingEvent {
	latest := evs[0]
	lt := parseEventTime(latest)
	for _, e := range evs[1:] {
		if t := parseEventTime(e); !t.Before(lt) {
			latest, lt = e, t
		}
	}
	return latest
}

func parseEventTime(e trackingEvent) time.Time {
	s := strings.TrimSpace(e.Date + " " + e.Time)
	if e.GMTOffset != "" {
		if t, err := time.Parse("2006-01-02 15:04:05 -07:00", s+" "+e.GMTOffset); err == nil {
			return t.UTC()
		}
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", e.Date); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
