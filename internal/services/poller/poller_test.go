package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/fake"
	carriermocks "github.com/BearBump/ShipBox/internal/integrations/carrier/mocks"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	mu    sync.Mutex
	topic string
	key   []byte
	value []byte
	calls int
	err   error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

type fakeRL struct {
	mu      sync.Mutex
	allowed bool
	err     error
	keys    []string
	limits  []int64
}

func (r *fakeRL) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.limits = append(r.limits, limit)
	return r.allowed, 1, r.err
}

func decode(t *testing.T, b []byte) messages.TrackingUpdated {
	t.Helper()
	var msg messages.TrackingUpdated
	require.NoError(t, json.Unmarshal(b, &msg))
	return msg
}

func TestPoller_processOne_okPublishes(t *testing.T) {
	now := time.Now().UTC()
	dhl := carriermocks.NewMockProvider("DHL")
	dhl.On("GetTracking", mock.Anything, "1234567890").Return(models.TrackingResponse{
		Status:    models.TrackingStatusInTransit,
		StatusRaw: "AF",
		Events: []models.TrackingEvent{
			{Timestamp: now, Status: models.TrackingStatusInTransit, Description: "Arrived", Location: "Leipzig"},
			{Timestamp: now.Add(-time.Hour), Status: models.TrackingStatusPickedUp},
		},
	}, nil).Once()

	fp := &fakeProducer{}
	rl := &fakeRL{allowed: true}
	p := New(nil, carrier.NewRegistry(dhl), fp, rl, "tracking.updated").
		WithProviderRateLimits(map[string]int{"dhl": 30})

	sh := &models.OrderShipment{OrderID: "o-1", Provider: "DHL", TrackingNumber: "1234567890"}
	require.NoError(t, p.processOne(context.Background(), sh))
	require.Equal(t, 1, fp.calls)
	require.Equal(t, "tracking.updated", fp.topic)
	require.Equal(t, "o-1", string(fp.key))
	require.Equal(t, []int64{30}, rl.limits)
	require.Contains(t, rl.keys[0], "rl:carrier:DHL:")

	msg := decode(t, fp.value)
	require.Equal(t, "IN_TRANSIT", msg.Status)
	require.Nil(t, msg.Error)
	require.Len(t, msg.Events, 2)
	require.Equal(t, "PICKED_UP", msg.Events[0].Status)
	require.Equal(t, "Leipzig", *msg.Events[1].Location)
	require.True(t, msg.StatusAt.Equal(now))
	require.True(t, msg.NextCheckAt.After(msg.CheckedAt.Add(29*time.Minute)))
	dhl.AssertExpectations(t)
}

func TestPoller_processOne_errorBackoff(t *testing.T) {
	dhl := carriermocks.NewMockProvider("DHL")
	dhl.On("GetTracking", mock.Anything, "N").Return(models.TrackingResponse{}, errors.New("boom")).Once()

	fp := &fakeProducer{}
	p := New(nil, carrier.NewRegistry(dhl), fp, nil, "tracking.updated")
	sh := &models.OrderShipment{OrderID: "o-2", Provider: "dhl", TrackingNumber: "N", CheckFailCount: 2}
	require.NoError(t, p.processOne(context.Background(), sh))
	require.Equal(t, 1, fp.calls)

	msg := decode(t, fp.value)
	require.NotNil(t, msg.Error)
	require.Equal(t, "boom", *msg.Error)
	require.Equal(t, 30*time.Minute, msg.NextCheckAt.Sub(msg.CheckedAt))
}

func TestPoller_processOne_unknownProviderIsReported(t *testing.T) {
	fp := &fakeProducer{}
	p := New(nil, carrier.NewRegistry(), fp, nil, "tracking.updated")
	sh := &models.OrderShipment{OrderID: "o-3", Provider: "UPS", TrackingNumber: "1Z"}
	require.NoError(t, p.processOne(context.Background(), sh))

	msg := decode(t, fp.value)
	require.NotNil(t, msg.Error)
	require.Contains(t, *msg.Error, "unknown shipping provider")
}

func TestPoller_processOne_rateLimiterError(t *testing.T) {
	fp := &fakeProducer{}
	p := New(nil, carrier.NewRegistry(fake.New()), fp, &fakeRL{err: errors.New("redis down")}, "t")
	err := p.processOne(context.Background(), &models.OrderShipment{OrderID: "o", Provider: "FAKE", TrackingNumber: "FK1"})
	require.Error(t, err)
	require.Equal(t, 0, fp.calls)
}

func TestPoller_publishRetriesThenFails(t *testing.T) {
	fp := &fakeProducer{err: errors.New("broker down")}
	p := New(nil, carrier.NewRegistry(fake.New()), fp, nil, "t")
	p.publishAttempts = 3
	p.publishBackoff = time.Millisecond

	err := p.processOne(context.Background(), &models.OrderShipment{OrderID: "o", Provider: "FAKE", TrackingNumber: "FK1"})
	require.Error(t, err)
	require.Equal(t, 3, fp.calls)
}

func TestPoller_WithSettings(t *testing.T) {
	p := New(nil, carrier.NewRegistry(), &fakeProducer{}, nil, "t").
		WithSettings(5*time.Second, 7, 9, 11*time.Second, 13)
	require.Equal(t, 5*time.Second, p.pollInterval)
	require.Equal(t, 7, p.batchSize)
	require.Equal(t, 9, p.concurrency)
	require.Equal(t, 11*time.Second, p.lease)
	require.Equal(t, int64(13), p.rateLimitPerMinute)
	require.Equal(t, int64(13), p.limitFor("DHL"))
}
