package rates

import (
	"math"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
)

const FallbackCurrency = "USD"

type fallbackTariff struct {
	serviceType models.ServiceType
	floor       float64
	perKg       float64
	transitDays int
}

// Order matters: quotes are returned ECONOMY, STANDARD, EXPRESS.
var fallbackTariffs = []fallbackTariff{
	{models.ServiceTypeEconomy, 15, 5, 5},
	{models.ServiceTypeStandard, 20, 7, 3},
	{models.ServiceTypeExpress, 30, 10, 1},
}

// FallbackQuotes computes the estimated rates used when the carrier cannot quote.
// The result depends only on the arguments.
func FallbackQuotes(provider string, totalWeight float64, now time.Time) []models.RateQuote {
	out := make([]models.RateQuote, 0, len(fallbackTariffs))
	for _, t := range fallbackTariffs {
		out = append(out, models.RateQuote{
			Provider:     provider,
			ServiceType:  t.serviceType,
			ServiceName:  "Estimated " + strings.ToLower(string(t.serviceType)),
			DeliveryDate: now.AddDate(0, 0, t.transitDays),
			TotalAmount:  roundCents(math.Max(t.floor, totalWeight*t.perKg)),
			Currency:     FallbackCurrency,
			TransitDays:  t.transitDays,
			RateID:       "fallback-" + strings.ToLower(string(t.serviceType)),
		})
	}
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
