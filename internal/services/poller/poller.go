package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/ShipBox/internal/broker/messages"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.OrderShipment, error)
}

type Providers interface {
	Get(name string) (carrier.Provider, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Poller periodically refreshes tracking of active order shipments and publishes the results.
type Poller struct {
	repo      Repository
	providers Providers
	producer  Producer
	rl        RateLimiter

	topic string

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64
	providerLimits     map[string]int64
	publishAttempts    int
	publishBackoff     time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, providers Providers, producer Producer, rl RateLimiter, topic string) *Poller {
	return &Poller{
		repo:               repo,
		providers:          providers,
		producer:           producer,
		rl:                 rl,
		topic:              topic,
		planner:            NewPlanner(DefaultPlannerConfig(), nil),
		pollInterval:       2 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 120,
		providerLimits:     map[string]int64{},
		publishAttempts:    10,
		publishBackoff:     150 * time.Millisecond,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

// WithProviderRateLimits overrides the per-minute limit for individual providers.
func (p *Poller) WithProviderRateLimits(limits map[string]int) *Poller {
	for name, n := range limits {
		if n > 0 {
			p.providerLimits[strings.ToUpper(strings.TrimSpace(name))] = int64(n)
		}
	}
	return p
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalErrors:    p.totalErrors.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	items, err := p.repo.ClaimDueShipments(ctx, now, p.batchSize, p.lease)
	if err != nil {
		slog.Error("claim due shipments", "error", err.Error())
		p.setLastError(err)
		return
	}
	p.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, sh := range items {
		sem <- struct{}{}
		wg.Add(1)
		p.inFlight.Add(1)
		go func() {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.processOne(ctx, sh); err != nil {
				p.totalErrors.Add(1)
				p.setLastError(err)
				slog.Error("process shipment", "order_id", sh.OrderID, "error", err.Error())
			}
			p.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
}

func (p *Poller) limitFor(provider string) int64 {
	if n, ok := p.providerLimits[provider]; ok {
		return n
	}
	return p.rateLimitPerMinute
}

func (p *Poller) throttle(ctx context.Context, provider string, now time.Time) error {
	if p.rl == nil || p.rateLimitPerMinute <= 0 {
		return nil
	}
	minuteKey := fmt.Sprintf("rl:carrier:%s:%s", provider, now.Format("200601021504"))
	allowed, n, err := p.rl.Allow(ctx, minuteKey, p.limitFor(provider), 70*time.Second)
	if err != nil {
		return errors.Wrap(err, "rate limiter")
	}
	if !allowed {
		// Слишком много запросов в минуту: подождём немного, чтобы разгрузить перевозчика.
		slog.Warn("rate limit exceeded", "provider", provider, "count", n)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil
}

func (p *Poller) processOne(ctx context.Context, sh *models.OrderShipment) error {
	now := time.Now().UTC()
	name := strings.ToUpper(sh.Provider)

	if err := p.throttle(ctx, name, now); err != nil {
		return err
	}

	msg := messages.TrackingUpdated{
		OrderID:        sh.OrderID,
		Provider:       name,
		TrackingNumber: sh.TrackingNumber,
		CheckedAt:      now,
	}

	resp, err := p.track(ctx, name, sh.TrackingNumber)
	if err != nil {
		e := err.Error()
		msg.Error = &e
		msg.NextCheckAt = now.Add(p.planner.BackoffDelay(sh.CheckFailCount + 1))
		metrics.TrackingLookupsTotal.WithLabelValues(name, metrics.OutcomeError).Inc()
	} else {
		fillUpdate(&msg, resp)
		msg.NextCheckAt = now.Add(p.planner.NextCheckDelay(resp.Status))
		metrics.TrackingLookupsTotal.WithLabelValues(name, metrics.OutcomeOK).Inc()
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}
	return p.publish(ctx, []byte(sh.OrderID), b)
}

func (p *Poller) track(ctx context.Context, name, number string) (models.TrackingResponse, error) {
	provider, err := p.providers.Get(name)
	if err != nil {
		return models.TrackingResponse{}, err
	}
	return provider.GetTracking(ctx, number)
}

func fillUpdate(msg *messages.TrackingUpdated, resp models.TrackingResponse) {
	status := resp.Status
	if status == "" {
		status = models.TrackingStatusUnknown
	}
	msg.Status = string(status)
	msg.StatusRaw = resp.StatusRaw
	msg.EstimatedDelivery = resp.EstimatedDeliveryDate

	events := resp.Chronological()
	if len(events) > 0 {
		last := events[len(events)-1].Timestamp
		msg.StatusAt = &last
	}
	for _, e := range events {
		ev := messages.TrackingEvent{
			Status:    string(e.Status),
			StatusRaw: string(e.Status),
			EventTime: e.Timestamp,
		}
		if e.Location != "" {
			loc := e.Location
			ev.Location = &loc
		}
		if e.Description != "" {
			d := e.Description
			ev.Message = &d
		}
		msg.Events = append(msg.Events, ev)
	}
}

// publish retries: Kafka may come up after the worker under docker compose.
func (p *Poller) publish(ctx context.Context, key, value []byte) error {
	var pubErr error
	for i := 0; i < p.publishAttempts; i++ {
		if pubErr = p.producer.Publish(ctx, p.topic, key, value); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * p.publishBackoff):
		}
	}
	return pubErr
}
