package main

import (
	"context"
	"time"

	"github.com/BearBump/ShipBox/config"
	"github.com/BearBump/ShipBox/internal/broker/kafka"
	"github.com/BearBump/ShipBox/internal/cache/rediscache"
	"github.com/BearBump/ShipBox/internal/integrations/providers"
	"github.com/BearBump/ShipBox/internal/services/poller"
	"github.com/BearBump/ShipBox/internal/storage/pgshipping"
)

type workerFactories struct {
	newStorage     func(cfg *config.Config) (repo poller.Repository, closeFn func(), err error)
	newProducer    func(cfg *config.Config) poller.Producer
	newRateLimiter func(cfg *config.Config) poller.RateLimiter
	newProviders   func(cfg *config.Config) poller.Providers
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (poller.Repository, func(), error) {
			st, err := pgshipping.Connect(context.Background(), cfg.Database.ConnString(), 60*time.Second)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) poller.Producer {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			return rediscache.NewRateLimiter(rediscache.NewClient(cfg.Redis.Addr()))
		},
		newProviders: func(cfg *config.Config) poller.Providers {
			return providers.BuildRegistry(cfg.Carriers, cfg.ShipBox.CarrierTimeout())
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func plannerConfig(c config.ShipBoxConfig) poller.PlannerConfig {
	return poller.PlannerConfig{
		ActiveMinDelay: seconds(c.WorkerNextCheckInTransitMinSeconds),
		ActiveMaxDelay: seconds(c.WorkerNextCheckInTransitMaxSeconds),
		UnknownDelay:   seconds(c.WorkerNextCheckUnknownSeconds),
		Backoff: []time.Duration{
			seconds(c.WorkerBackoff1Seconds),
			seconds(c.WorkerBackoff2Seconds),
			seconds(c.WorkerBackoff3Seconds),
			seconds(c.WorkerBackoff4Seconds),
		},
	}
}

func newPoller(cfg *config.Config, repo poller.Repository, f workerFactories) *poller.Poller {
	topic := cfg.Kafka.TrackingUpdatedTopicName
	if topic == "" {
		topic = "tracking.updated"
	}
	// нули в WithSettings означают "оставить значение по умолчанию"
	return poller.New(repo, f.newProviders(cfg), f.newProducer(cfg), f.newRateLimiter(cfg), topic).
		WithSettings(
			seconds(cfg.ShipBox.WorkerPollIntervalSeconds),
			cfg.ShipBox.WorkerBatchSize,
			cfg.ShipBox.WorkerConcurrency,
			seconds(cfg.ShipBox.WorkerLeaseSeconds),
			int64(cfg.ShipBox.WorkerRateLimitPerMinute),
		).
		WithProviderRateLimits(cfg.ShipBox.WorkerProviderRateLimits).
		WithPlanner(plannerConfig(cfg.ShipBox))
}

// RunShipWorker runs the poller and the worker HTTP server until ctx is done.
func RunShipWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	p := newPoller(cfg, repo, f)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpOpts.poller = p
	httpOpts.cfg = cfg
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, httpOpts)
	}()
	runErr := make(chan error, 1)
	go func() {
		runErr <- p.Run(ctx)
	}()

	select {
	case err := <-runErr:
		cancel()
		<-httpErr
		return err
	case err := <-httpErr:
		cancel()
		pollErr := <-runErr
		if err != nil {
			return err
		}
		return pollErr
	}
}
