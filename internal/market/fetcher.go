package market

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"signalboard/internal/config"
	"signalboard/internal/models"
	"signalboard/internal/repository"
)

const (
	kindQuote     = "quote"
	kindIndicator = "indicator"
)

// Route binds an asset-class predicate to an ordered provider list. Routes
// are evaluated in declaration order; the first match wins.
type Route struct {
	Match     func(symbol string) bool
	Providers []QuoteProvider
}

// Fetcher produces current prices and indicator readings, hiding upstream
// rate limits behind retry and a TTL cache. All failures degrade to nil.
type Fetcher struct {
	Cache      *Cache
	Repo       repository.Repository
	Logger     *zap.Logger
	Routes     []Route
	Indicators IndicatorProvider
	Config     config.MarketConfig
}

// DefaultRoutes builds the standard provider-selection table: crypto pairs
// prefer the crypto provider with the quote provider as backup, everything
// else goes straight to the quote provider.
func DefaultRoutes(crypto, quotes QuoteProvider) []Route {
	return []Route{
		{
			Match:     func(symbol string) bool { return Classify(symbol) == models.CategoryCrypto },
			Providers: []QuoteProvider{crypto, quotes},
		},
		{
			Match:     func(string) bool { return true },
			Providers: []QuoteProvider{quotes},
		},
	}
}

// GetPrice returns the current quote for symbol, or nil after logging when
// every provider fails. Successful fetches upsert the MarketData projection.
func (f *Fetcher) GetPrice(ctx context.Context, symbol string) *Quote {
	if cached, ok := f.Cache.Get(kindQuote, symbol, ""); ok {
		return cached.(*Quote)
	}

	for _, route := range f.Routes {
		if route.Match != nil && !route.Match(symbol) {
			continue
		}
		for _, provider := range route.Providers {
			if provider == nil {
				continue
			}
			quote, err := f.fetchQuoteWithRetry(ctx, provider, symbol)
			if err != nil {
				if f.Logger != nil {
					f.Logger.Warn("quote fetch failed",
						zap.String("symbol", symbol),
						zap.String("provider", provider.Name()),
						zap.Error(err))
				}
				continue
			}
			f.Cache.Put(kindQuote, symbol, "", quote, f.quoteTTL())
			f.projectQuote(ctx, quote)
			return quote
		}
		break
	}
	return nil
}

// GetIndicator returns the latest reading for (symbol, kind, interval), or
// nil after logging on failure. Indicator entries expire much sooner than
// quotes; the decision path needs fresher momentum data than price context.
func (f *Fetcher) GetIndicator(ctx context.Context, symbol string, kind IndicatorKind, interval string) *Reading {
	if interval == "" {
		interval = f.Config.IndicatorInterval
	}
	if cached, ok := f.Cache.Get(kindIndicator+":"+string(kind), symbol, interval); ok {
		return cached.(*Reading)
	}
	if f.Indicators == nil {
		return nil
	}

	reading, err := f.fetchIndicatorWithRetry(ctx, symbol, kind, interval)
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warn("indicator fetch failed",
				zap.String("symbol", symbol),
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
		return nil
	}
	f.Cache.Put(kindIndicator+":"+string(kind), symbol, interval, reading, f.indicatorTTL())
	return reading
}

func (f *Fetcher) fetchQuoteWithRetry(ctx context.Context, provider QuoteProvider, symbol string) (*Quote, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries(); attempt++ {
		if attempt > 0 {
			if err := f.backoff(ctx, lastErr, attempt); err != nil {
				return nil, err
			}
		}
		quote, err := provider.FetchQuote(ctx, symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fetcher) fetchIndicatorWithRetry(ctx context.Context, symbol string, kind IndicatorKind, interval string) (*Reading, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries(); attempt++ {
		if attempt > 0 {
			if err := f.backoff(ctx, lastErr, attempt); err != nil {
				return nil, err
			}
		}
		reading, err := f.Indicators.FetchIndicator(ctx, symbol, kind, interval)
		if err == nil {
			return reading, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// backoff waits before retry attempt n (1-based): rate-limited failures get
// the longer base, other transient failures the shorter one, both scaled
// linearly by the attempt number.
func (f *Fetcher) backoff(ctx context.Context, lastErr error, attempt int) error {
	base := f.Config.TransientBackoff
	if errors.Is(lastErr, ErrRateLimited) {
		base = f.Config.RateLimitBackoff
	}
	if base <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(base * time.Duration(attempt)):
		return nil
	}
}

func (f *Fetcher) projectQuote(ctx context.Context, quote *Quote) {
	if f.Repo == nil || quote == nil {
		return
	}
	err := f.Repo.UpsertMarketData(ctx, &models.MarketData{
		Symbol:        quote.Symbol,
		Price:         quote.Price,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
	})
	if err != nil && f.Logger != nil {
		f.Logger.Warn("market data upsert failed",
			zap.String("symbol", quote.Symbol),
			zap.Error(err))
	}
}

func (f *Fetcher) retries() int {
	if f.Config.RetryAttempts < 0 {
		return 0
	}
	return f.Config.RetryAttempts
}

func (f *Fetcher) quoteTTL() time.Duration {
	if f.Config.QuoteTTL <= 0 {
		return 30 * time.Minute
	}
	return f.Config.QuoteTTL
}

func (f *Fetcher) indicatorTTL() time.Duration {
	if f.Config.IndicatorTTL <= 0 {
		return time.Minute
	}
	return f.Config.IndicatorTTL
}
