package rates

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/ShipBox/internal/address"
	"github.com/BearBump/ShipBox/internal/cache"
	"github.com/BearBump/ShipBox/internal/integrations/carrier"
	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/BearBump/ShipBox/internal/models"
)

type Providers interface {
	Get(name string) (carrier.Provider, error)
}

type DefaultProvider interface {
	ResolveDefaultProvider(ctx context.Context) string
}

// Quote is the result of a rate request. Degraded quotes are estimates, not carrier prices.
type Quote struct {
	Provider    string             `json:"provider"`
	Rates       []models.RateQuote `json:"rates"`
	Degraded    bool               `json:"degraded"`
	Warning     string             `json:"warning,omitempty"`
	APIError    string             `json:"apiError,omitempty"`
	ErrorStatus int                `json:"errorStatus,omitempty"`
}

type Service struct {
	providers Providers
	defaults  DefaultProvider
	cache     cache.BytesCache
	cacheTTL  time.Duration
	now       func() time.Time
}

func New(providers Providers, defaults DefaultProvider, c cache.BytesCache, cacheTTL time.Duration) *Service {
	return &Service{
		providers: providers,
		defaults:  defaults,
		cache:     c,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Quote returns live rates from the provider, or deterministic fallback rates when the provider
// fails. The only errors returned are validation errors.
func (s *Service) Quote(ctx context.Context, req models.RateRequest, providerName string) (Quote, error) {
	if err := req.Validate(); err != nil {
		return Quote{}, err
	}
	req.Shipper = address.NormalizeAddress(req.Shipper)
	req.Recipient = address.NormalizeAddress(req.Recipient)
	req.ServiceType = models.ParseServiceType(string(req.ServiceType))

	name := strings.ToUpper(strings.TrimSpace(providerName))
	if name == "" && s.defaults != nil {
		name = s.defaults.ResolveDefaultProvider(ctx)
	}
	provider, err := s.providers.Get(name)
	if err != nil {
		return Quote{}, models.Invalid("provider", "unknown provider "+name)
	}

	key := cacheKey(name, req)
	if q, ok := s.cached(ctx, key); ok {
		metrics.RateQuotesTotal.WithLabelValues(name, metrics.OutcomeCached).Inc()
		return q, nil
	}

	rates, err := provider.GetRates(ctx, req)
	if err != nil {
		q := s.fallback(name, req, err)
		slog.Warn("carrier rates unavailable, returning fallback quotes",
			"provider", name, "error", err.Error(), "status", q.ErrorStatus)
		metrics.RateQuotesTotal.WithLabelValues(name, metrics.OutcomeFallback).Inc()
		return q, nil
	}

	q := Quote{Provider: name, Rates: rates}
	s.store(ctx, key, q)
	metrics.RateQuotesTotal.WithLabelValues(name, metrics.OutcomeOK).Inc()
	return q, nil
}

func (s *Service) fallback(name string, req models.RateRequest, err error) Quote {
	q := Quote{
		Provider: name,
		Rates:    FallbackQuotes(name, models.TotalWeight(req.Packages), s.now().UTC()),
		Degraded: true,
		Warning:  err.Error(),
		APIError: err.Error(),
	}
	if ce, ok := carrier.AsError(err); ok {
		q.Warning = ce.Message
		q.ErrorStatus = ce.StatusCode
	}
	return q
}

func (s *Service) cached(ctx context.Context, key string) (Quote, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return Quote{}, false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return Quote{}, false
	}
	var q Quote
	if json.Unmarshal(b, &q) != nil || q.Degraded {
		return Quote{}, false
	}
	return q, true
}

// store caches live quotes only; a degraded answer must not outlive the outage.
func (s *Service) store(ctx context.Context, key string, q Quote) {
	if s.cache == nil || s.cacheTTL <= 0 || q.Degraded {
		return
	}
	b, err := json.Marshal(q)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, b, s.cacheTTL)
}

func cacheKey(provider string, req models.RateRequest) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return "rates:" + provider + ":" + hex.EncodeToString(sum[:])
}
