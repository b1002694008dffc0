// Package mocks holds a testify mock of carrier.Provider.
package mocks

import (
	"context"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockProvider struct {
	mock.Mock

	ProviderName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{ProviderName: name}
}

func (m *MockProvider) Name() string { return m.ProviderName }

func (m *MockProvider) GetRates(ctx context.Context, req models.RateRequest) ([]models.RateQuote, error) {
	args := m.Called(ctx, req)
	var out []models.RateQuote
	if v := args.Get(0); v != nil {
		out = v.([]models.RateQuote)
	}
	return out, args.Error(1)
}

func (m *MockProvider) CreateShipment(ctx context.Context, req models.ShipmentRequest) (models.ShipmentResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.ShipmentResult), args.Error(1)
}

func (m *MockProvider) ValidateAddress(ctx context.Context, addr models.Address) (models.AddressValidation, error) {
	args := m.Called(ctx, addr)
	return args.Get(0).(models.AddressValidation), args.Error(1)
}

func (m *MockProvider) GetTracking(ctx context.Context, trackingNumber string) (models.TrackingResponse, error) {
	args := m.Called(ctx, trackingNumber)
	return args.Get(0).(models.TrackingResponse), args.Error(1)
}
