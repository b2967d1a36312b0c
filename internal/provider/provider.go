package provider

import (
	"context"

	"screener/pkg/model"
)

// Quote is one row of the full-market snapshot, enough for the
// pre-screen (today bullish) and for seeding display names
type Quote struct {
	Stock  model.Stock `json:"stock"`
	Latest float64     `json:"latest"`
	Open   float64     `json:"open"`
}

// Provider defines the market-data collaborator: a full-market snapshot
// for universe building and per-symbol daily history for the detectors
type Provider interface {
	// Name returns the provider name
	Name() string

	// GetQuotes fetches the full-market realtime snapshot
	GetQuotes(ctx context.Context) ([]Quote, error)

	// GetDailyBars fetches up to days of forward-adjusted daily bars,
	// oldest first
	GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error)

	// IsAvailable checks if the provider can be used
	IsAvailable() bool

	// RateLimit returns the request budget per minute
	RateLimit() int
}

// NameResolver refreshes display names for a batch of symbol codes
type NameResolver interface {
	GetLatestNames(ctx context.Context, codes []string) (map[string]string, error)
}

// ProviderError wraps a provider-specific failure
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FallbackProvider tries multiple providers in order
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider creates a fallback chain from the available providers
func NewFallbackProvider(providers ...Provider) *FallbackProvider {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsAvailable() {
			available = append(available, p)
		}
	}
	return &FallbackProvider{providers: available}
}

// Name returns the combined provider name
func (f *FallbackProvider) Name() string {
	return "fallback"
}

// GetQuotes tries each provider in order until one succeeds
func (f *FallbackProvider) GetQuotes(ctx context.Context) ([]Quote, error) {
	var lastErr error
	for _, p := range f.providers {
		quotes, err := p.GetQuotes(ctx)
		if err == nil {
			return quotes, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// GetDailyBars tries each provider in order until one succeeds
func (f *FallbackProvider) GetDailyBars(ctx context.Context, code string, days int) ([]model.Bar, error) {
	var lastErr error
	for _, p := range f.providers {
		bars, err := p.GetDailyBars(ctx, code, days)
		if err == nil {
			return bars, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// IsAvailable returns true if any provider is available
func (f *FallbackProvider) IsAvailable() bool {
	return len(f.providers) > 0
}

// RateLimit returns the highest rate limit among the providers
func (f *FallbackProvider) RateLimit() int {
	maxRate := 0
	for _, p := range f.providers {
		if p.RateLimit() > maxRate {
			maxRate = p.RateLimit()
		}
	}
	return maxRate
}

// Providers returns the underlying providers
func (f *FallbackProvider) Providers() []Provider {
	return f.providers
}
