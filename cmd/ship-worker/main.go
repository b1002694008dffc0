package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/ShipBox/config"
	"github.com/BearBump/ShipBox/internal/metrics"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	metrics.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunShipWorker(ctx, cfg, defaultWorkerFactories(), workerHTTPOpts{httpAddr: cfg.ShipBox.WorkerHTTPAddr})
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
