// Package mocks holds testify mocks for the tracking service dependencies.
package mocks

import (
	"context"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/BearBump/ShipBox/internal/storage/pgshipping"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetOrderShipping(ctx context.Context, orderID string) (*models.OrderShipment, error) {
	args := m.Called(ctx, orderID)
	var sh *models.OrderShipment
	if v := args.Get(0); v != nil {
		sh = v.(*models.OrderShipment)
	}
	return sh, args.Error(1)
}

func (m *MockRepository) ListOrderShipments(ctx context.Context, limit, offset int) ([]*models.OrderShipment, error) {
	args := m.Called(ctx, limit, offset)
	var out []*models.OrderShipment
	if v := args.Get(0); v != nil {
		out = v.([]*models.OrderShipment)
	}
	return out, args.Error(1)
}

func (m *MockRepository) ListShipmentEvents(ctx context.Context, orderID string, limit, offset int) ([]*models.ShipmentEvent, error) {
	args := m.Called(ctx, orderID, limit, offset)
	var out []*models.ShipmentEvent
	if v := args.Get(0); v != nil {
		out = v.([]*models.ShipmentEvent)
	}
	return out, args.Error(1)
}

func (m *MockRepository) ApplyTrackingUpdate(ctx context.Context, upd pgshipping.TrackingUpdate) error {
	args := m.Called(ctx, upd)
	return args.Error(0)
}
