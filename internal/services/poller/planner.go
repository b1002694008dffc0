package poller

import (
	"math/rand"
	"time"

	"github.com/BearBump/ShipBox/internal/models"
)

type Rand interface {
	Intn(n int) int
}

// PlannerConfig holds poll delays. Zero values fall back to DefaultPlannerConfig.
type PlannerConfig struct {
	DeliveredDelay time.Duration

	// Shipments that are still moving are polled somewhere in [ActiveMinDelay, ActiveMaxDelay].
	ActiveMinDelay time.Duration
	ActiveMaxDelay time.Duration

	ExceptionDelay time.Duration
	UnknownDelay   time.Duration

	// Backoff[i] is used after i+1 consecutive failures, the last step repeats.
	Backoff []time.Duration
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		DeliveredDelay: 365 * 24 * time.Hour,
		ActiveMinDelay: 30 * time.Minute,
		ActiveMaxDelay: 120 * time.Minute,
		ExceptionDelay: 3 * time.Hour,
		UnknownDelay:   90 * time.Minute,
		Backoff:        []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute, 60 * time.Minute},
	}
}

// Planner decides when a shipment should be polled again.
type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	cfg.DeliveredDelay = orDefault(cfg.DeliveredDelay, def.DeliveredDelay)
	cfg.ActiveMinDelay = orDefault(cfg.ActiveMinDelay, def.ActiveMinDelay)
	cfg.ActiveMaxDelay = orDefault(cfg.ActiveMaxDelay, def.ActiveMaxDelay)
	if cfg.ActiveMaxDelay < cfg.ActiveMinDelay {
		cfg.ActiveMaxDelay = cfg.ActiveMinDelay
	}
	cfg.ExceptionDelay = orDefault(cfg.ExceptionDelay, def.ExceptionDelay)
	cfg.UnknownDelay = orDefault(cfg.UnknownDelay, def.UnknownDelay)

	steps := make([]time.Duration, len(def.Backoff))
	for i := range steps {
		var v time.Duration
		if i < len(cfg.Backoff) {
			v = cfg.Backoff[i]
		}
		steps[i] = orDefault(v, def.Backoff[i])
	}
	if len(cfg.Backoff) > len(steps) {
		steps = append(steps, cfg.Backoff[len(steps):]...)
	}
	cfg.Backoff = steps

	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// NextCheckDelay: active shipments get a jittered delay so that polls spread out.
func (p *Planner) NextCheckDelay(status models.TrackingStatus) time.Duration {
	switch status {
	case models.TrackingStatusDelivered:
		return p.cfg.DeliveredDelay
	case models.TrackingStatusException:
		return p.cfg.ExceptionDelay
	case models.TrackingStatusCreated,
		models.TrackingStatusPickedUp,
		models.TrackingStatusInTransit,
		models.TrackingStatusOutForDelivery:
		return p.activeDelay()
	default:
		return p.cfg.UnknownDelay
	}
}

func (p *Planner) activeDelay() time.Duration {
	lo := int(p.cfg.ActiveMinDelay / time.Second)
	hi := int(p.cfg.ActiveMaxDelay / time.Second)
	if hi <= lo {
		return p.cfg.ActiveMinDelay
	}
	return time.Duration(lo+p.r.Intn(hi-lo+1)) * time.Second
}

// BackoffDelay returns the delay after failCount consecutive failed polls.
func (p *Planner) BackoffDelay(failCount int32) time.Duration {
	i := int(failCount) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(p.cfg.Backoff) {
		i = len(p.cfg.Backoff) - 1
	}
	return p.cfg.Backoff[i]
}
