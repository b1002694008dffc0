package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/google/uuid"
)

const ProviderName = "FAKE"

// FakeClient: детерминированный "перевозчик" для демо и тестов, без сети.
// Статус трека зависит только от хэша номера: часть треков станет DELIVERED.
type FakeClient struct {
	now func() time.Time
}

func New() *FakeClient { return &FakeClient{now: time.Now} }

func (f *FakeClient) Name() string { return ProviderName }

var fakeTariffs = []struct {
	st      models.ServiceType
	base    float64
	perKg   float64
	transit int
}{
	{models.ServiceTypeEconomy, 9, 2.5, 6},
	{models.ServiceTypeStandard, 12, 3.5, 3},
	{models.ServiceTypeExpress, 21, 6, 1},
}

func (f *FakeClient) GetRates(ctx context.Context, req models.RateRequest) ([]models.RateQuote, error) {
	w := models.TotalWeight(req.Packages)
	if w <= 0 {
		return nil, carrier.HTTPError(ProviderName, "get_rates", 400, nil, "total weight must be positive")
	}
	now := f.now().UTC()

	var out []models.RateQuote
	for _, t := range fakeTariffs {
		if req.ServiceType != "" && req.ServiceType != t.st {
			continue
		}
		out = append(out, models.RateQuote{
			Provider:     ProviderName,
			ServiceType:  t.st,
			ServiceName:  "Fake " + strings.ToLower(string(t.st)),
			DeliveryDate: now.AddDate(0, 0, t.transit),
			TotalAmount:  math.Round((t.base+t.perKg*w)*100) / 100,
			Currency:     "USD",
			TransitDays:  t.transit,
			RateID:       "fake-" + uuid.NewString(),
		})
	}
	return out, nil
}

func (f *FakeClient) CreateShipment(ctx context.Context, req models.ShipmentRequest) (models.ShipmentResult, error) {
	quotes, err := f.GetRates(ctx, models.RateRequest{
		Shipper:     req.Shipper,
		Recipient:   req.Recipient,
		Packages:    req.Packages,
		ServiceType: req.ServiceType,
	})
	if err != nil {
		return models.ShipmentResult{}, err
	}
	var amount float64
	if len(quotes) > 0 {
		amount = quotes[0].TotalAmount
	}

	id := uuid.New()
	number := fmt.Sprintf("FK%010d", id.ID())
	return models.ShipmentResult{
		Provider:       ProviderName,
		ShipmentID:     id.String(),
		TrackingNumber: number,
		LabelURL:       "https://labels.fake.local/" + number + ".pdf",
		TotalAmount:    amount,
		Currency:       "USD",
	}, nil
}

func (f *FakeClient) ValidateAddress(ctx context.Context, addr models.Address) (models.AddressValidation, error) {
	return models.AddressValidation{IsValid: addr.PostalCode != "" && addr.City != ""}, nil
}

var fakeProgress = []models.TrackingStatus{
	models.TrackingStatusCreated,
	models.TrackingStatusPickedUp,
	models.TrackingStatusInTransit,
	models.TrackingStatusOutForDelivery,
	models.TrackingStatusDelivered,
}

func (f *FakeClient) GetTracking(ctx context.Context, trackNumber string) (models.TrackingResponse, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(trackNumber))
	v := h.Sum32()

	// 20% треков считаем доставленными, остальные где-то по пути.
	stage := int(v % 4)
	if v%5 == 0 {
		stage = len(fakeProgress) - 1
	}

	now := f.now().UTC()
	start := now.Add(-time.Duration(stage+1) * 12 * time.Hour)
	evs := make([]models.TrackingEvent, 0, stage+1)
	for i := 0; i <= stage; i++ {
		st := fakeProgress[i]
		evs = append(evs, models.TrackingEvent{
			Timestamp:   start.Add(time.Duration(i) * 12 * time.Hour),
			Description: "fake carrier update: " + strings.ToLower(string(st)),
			Location:    "Fake Hub",
			Status:      st,
		})
	}

	status := fakeProgress[stage]
	res := models.TrackingResponse{
		TrackingNumber: trackNumber,
		Status:         status,
		StatusRaw:      string(status),
		Provider:       ProviderName,
		Events:         evs,
	}
	if !status.IsFinal() {
		eta := now.AddDate(0, 0, 2)
		res.EstimatedDeliveryDate = &eta
	}
	return res, nil
}
