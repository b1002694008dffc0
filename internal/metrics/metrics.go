package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeCached   = "cached"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
)

var (
	RateQuotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_rate_quotes_total",
			Help: "Rate quote requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ShipmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_shipments_total",
			Help: "Shipment creation attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	TrackingLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipbox_tracking_lookups_total",
			Help: "Tracking lookups by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	CarrierRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shipbox_carrier_request_duration_seconds",
			Help:    "Duration of carrier adapter calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)
)

var registerOnce sync.Once

// Register registers all ShipBox metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RateQuotesTotal)
		prometheus.MustRegister(ShipmentsTotal)
		prometheus.MustRegister(TrackingLookupsTotal)
		prometheus.MustRegister(CarrierRequestDuration)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCarrierCall records the duration since start.
func ObserveCarrierCall(provider, operation string, start time.Time) {
	CarrierRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
