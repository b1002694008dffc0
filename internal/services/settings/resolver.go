package settings

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BearBump/ShipBox/internal/models"
	"github.com/pkg/errors"
)

const (
	DefaultProviderKey = "shipping.default_provider"
	// FallbackProvider is used whenever the setting is missing or unreadable.
	FallbackProvider = "DHL"
)

type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// KnownProviders reports whether a provider name is registered.
type KnownProviders interface {
	Has(name string) bool
}

type Resolver struct {
	store Store
	known KnownProviders
}

func NewResolver(store Store, known KnownProviders) *Resolver {
	return &Resolver{store: store, known: known}
}

// ResolveDefaultProvider never fails: a store problem or a stored name that is not
// registered yields FallbackProvider.
func (r *Resolver) ResolveDefaultProvider(ctx context.Context) string {
	if r == nil || r.store == nil {
		return FallbackProvider
	}
	v, ok, err := r.store.GetSetting(ctx, DefaultProviderKey)
	if err != nil {
		slog.Warn("read default provider setting, using fallback", "error", err.Error(), "provider", FallbackProvider)
		return FallbackProvider
	}
	v = strings.ToUpper(strings.TrimSpace(v))
	if !ok || v == "" {
		return FallbackProvider
	}
	if r.known != nil && !r.known.Has(v) {
		slog.Warn("stored default provider is not registered, using fallback", "stored", v, "provider", FallbackProvider)
		return FallbackProvider
	}
	return v
}

func (r *Resolver) SetDefaultProvider(ctx context.Context, name string) (string, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return "", models.Invalid("provider", "is required")
	}
	if r.known != nil && !r.known.Has(name) {
		return "", models.Invalid("provider", "unknown provider "+name)
	}
	if r.store == nil {
		return "", errors.New("settings store is not configured")
	}
	if err := r.store.SetSetting(ctx, DefaultProviderKey, name); err != nil {
		return "", errors.Wrap(err, "save default provider")
	}
	slog.Info("default provider changed", "provider", name)
	return name, nil
}

// Seed writes name as the default provider unless one is already stored.
func (r *Resolver) Seed(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" || r.store == nil {
		return nil
	}
	_, ok, err := r.store.GetSetting(ctx, DefaultProviderKey)
	if err != nil {
		return errors.Wrap(err, "read default provider")
	}
	if ok {
		return nil
	}
	_, err = r.SetDefaultProvider(ctx, name)
	return err
}
