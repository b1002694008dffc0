package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ShipBox/config"
	"github.com/BearBump/ShipBox/internal/api/shippingapi"
	"github.com/BearBump/ShipBox/internal/broker/kafka"
	"github.com/BearBump/ShipBox/internal/cache/rediscache"
	"github.com/BearBump/ShipBox/internal/integrations/providers"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/services/rates"
	"github.com/BearBump/ShipBox/internal/services/settings"
	"github.com/BearBump/ShipBox/internal/services/shipments"
	"github.com/BearBump/ShipBox/internal/services/tracking"
	"github.com/BearBump/ShipBox/internal/storage/pgshipping"
)

type shipAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     shipAPIOpts
	api      *shippingapi.ShippingAPI
	tracking *tracking.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapShipAPI() *shipAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.ShipBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ShipBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "ship-api"
	}
	trackingTopic := cfg.Kafka.TrackingUpdatedTopicName
	if trackingTopic == "" {
		trackingTopic = "tracking.updated"
	}
	createdTopic := cfg.Kafka.ShipmentCreatedTopicName
	if createdTopic == "" {
		createdTopic = "shipment.created"
	}

	metrics.Register()

	st, err := pgshipping.Connect(context.Background(), cfg.Database.ConnString(), 60*time.Second)
	if err != nil {
		panic(err)
	}

	rdb := rediscache.NewClient(cfg.Redis.Addr())
	rc := rediscache.NewWithClient(rdb)

	reg := providers.BuildRegistry(cfg.Carriers, cfg.ShipBox.CarrierTimeout())
	resolver := settings.NewResolver(st, reg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := resolver.Seed(ctx, cfg.ShipBox.DefaultProvider); err != nil {
		slog.Warn("seed default provider", "provider", cfg.ShipBox.DefaultProvider, "error", err.Error())
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers())

	rateSvc := rates.New(reg, resolver, rc, cfg.ShipBox.RateCacheTTL())
	shipmentSvc := shipments.New(reg, resolver, st, cfg.Shipper.Address()).
		WithLocker(rediscache.NewLocker(rdb), cfg.ShipBox.ShipmentLockTTL()).
		WithPublisher(producer, createdTopic)
	trackingSvc := tracking.New(reg, resolver, st, rc, cfg.ShipBox.TrackingCacheTTL())

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), trackingTopic, consumerGroup)

	return &shipAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: shipAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         trackingTopic,
			consumerGroup: consumerGroup,
		},
		api:      shippingapi.New(rateSvc, shipmentSvc, trackingSvc, resolver, reg),
		tracking: trackingSvc,
		consumer: consumer,
		closers: []func(){
			func() { _ = consumer.Close() },
			func() { _ = producer.Close() },
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func (a *shipAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *shipAPIApp) Run() error {
	return runShipAPI(a.ctx, a.opts, a.api, a.tracking, a.consumer)
}
