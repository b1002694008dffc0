// Package providers assembles the carrier registry from configuration.
package providers

import (
	"log/slog"
	"time"

	"github.com/BearBump/ShipBox/config"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/dhl"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/emulatorv1"
	"github.com/BearBump/ShipBox/internal/integrations/carrier/fake"
)

// BuildRegistry always registers DHL: missing credentials surface as a configuration error
// at call time. The emulator is registered when it has a base URL, the fake when enabled.
func BuildRegistry(cfg config.CarriersConfig, timeout time.Duration) *carrier.Registry {
	reg := carrier.NewRegistry()

	reg.Register(carrier.Instrument(dhl.New(dhl.Config{
		BaseURL:       cfg.DHL.BaseURL,
		APIKey:        cfg.DHL.APIKey,
		APISecret:     cfg.DHL.APISecret,
		AccountNumber: cfg.DHL.AccountNumber,
		Timeout:       timeout,
	}), timeout))

	if cfg.Emulator.BaseURL != "" {
		reg.Register(carrier.Instrument(emulatorv1.New(cfg.Emulator.BaseURL, cfg.Emulator.APIKey, timeout), timeout))
	}
	if cfg.Fake.Enabled {
		reg.Register(carrier.Instrument(fake.New(), timeout))
	}

	slog.Info("carrier providers registered", "providers", reg.Names())
	return reg
}
