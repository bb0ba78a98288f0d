package market

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"signalboard/internal/config"
	"signalboard/internal/models"
	"signalboard/internal/repository"
)

type stubQuoteProvider struct {
	name  string
	calls int
	// errs[i] is returned on call i; calls beyond the slice succeed.
	errs  []error
	quote *Quote
}

func (p *stubQuoteProvider) Name() string { return p.name }

func (p *stubQuoteProvider) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	if p.quote != nil {
		return p.quote, nil
	}
	return &Quote{
		Symbol:        symbol,
		Price:         decimal.RequireFromString("1.08500"),
		Change:        decimal.RequireFromString("0.00120"),
		ChangePercent: "0.11%",
		FetchedAt:     time.Now().UTC(),
	}, nil
}

type stubIndicatorProvider struct {
	calls int
	errs  []error
	value float64
}

func (p *stubIndicatorProvider) Name() string { return "stub" }

func (p *stubIndicatorProvider) FetchIndicator(ctx context.Context, symbol string, kind IndicatorKind, interval string) (*Reading, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	return &Reading{
		Kind:     kind,
		Symbol:   symbol,
		Interval: interval,
		Values:   map[string]float64{string(kind): p.value},
		At:       time.Now().UTC(),
	}, nil
}

type marketDataRecorder struct {
	repository.Repository
	upserts []models.MarketData
}

func (r *marketDataRecorder) UpsertMarketData(ctx context.Context, item *models.MarketData) error {
	r.upserts = append(r.upserts, *item)
	return nil
}

func newTestFetcher(routes []Route, indicators IndicatorProvider, repo repository.Repository) *Fetcher {
	return &Fetcher{
		Cache:      NewCache(nil),
		Repo:       repo,
		Logger:     zap.NewNop(),
		Routes:     routes,
		Indicators: indicators,
		Config: config.MarketConfig{
			QuoteTTL:          30 * time.Minute,
			IndicatorTTL:      time.Minute,
			RetryAttempts:     2,
			IndicatorInterval: "15min",
		},
	}
}

func TestGetPrice_RetriesAfterRateLimit(t *testing.T) {
	provider := &stubQuoteProvider{
		name: "quotes",
		errs: []error{fmt.Errorf("throttled: %w", ErrRateLimited)},
	}
	f := newTestFetcher([]Route{{Providers: []QuoteProvider{provider}}}, nil, nil)

	quote := f.GetPrice(context.Background(), "EUR/USD")
	if quote == nil {
		t.Fatalf("expected quote after retry")
	}
	if provider.calls != 2 {
		t.Fatalf("calls=%d want=2", provider.calls)
	}
}

func TestGetPrice_NilOnTotalFailure(t *testing.T) {
	fail := errors.New("boom")
	provider := &stubQuoteProvider{name: "quotes", errs: []error{fail, fail, fail}}
	f := newTestFetcher([]Route{{Providers: []QuoteProvider{provider}}}, nil, nil)

	if quote := f.GetPrice(context.Background(), "EUR/USD"); quote != nil {
		t.Fatalf("expected nil quote, got %+v", quote)
	}
	if provider.calls != 3 {
		t.Fatalf("calls=%d want=3 (initial + 2 retries)", provider.calls)
	}
	if f.Cache.Len() != 0 {
		t.Fatalf("failure must not populate the cache")
	}
}

func TestGetPrice_CryptoRouteFallsBackToQuoteProvider(t *testing.T) {
	fail := errors.New("boom")
	crypto := &stubQuoteProvider{name: "crypto", errs: []error{fail, fail, fail}}
	quotes := &stubQuoteProvider{name: "quotes"}
	f := newTestFetcher(DefaultRoutes(crypto, quotes), nil, nil)

	quote := f.GetPrice(context.Background(), "BTC/USD")
	if quote == nil {
		t.Fatalf("expected quote from backup provider")
	}
	if crypto.calls == 0 {
		t.Fatalf("crypto provider should be tried first for BTC/USD")
	}
	if quotes.calls != 1 {
		t.Fatalf("quotes calls=%d want=1", quotes.calls)
	}
}

func TestGetPrice_ForexSkipsCryptoProvider(t *testing.T) {
	crypto := &stubQuoteProvider{name: "crypto"}
	quotes := &stubQuoteProvider{name: "quotes"}
	f := newTestFetcher(DefaultRoutes(crypto, quotes), nil, nil)

	if quote := f.GetPrice(context.Background(), "EUR/USD"); quote == nil {
		t.Fatalf("expected quote")
	}
	if crypto.calls != 0 {
		t.Fatalf("crypto provider must not be consulted for forex")
	}
	if quotes.calls != 1 {
		t.Fatalf("quotes calls=%d want=1", quotes.calls)
	}
}

func TestGetPrice_SecondCallServedFromCache(t *testing.T) {
	provider := &stubQuoteProvider{name: "quotes"}
	f := newTestFetcher([]Route{{Providers: []QuoteProvider{provider}}}, nil, nil)

	first := f.GetPrice(context.Background(), "EUR/USD")
	second := f.GetPrice(context.Background(), "EUR/USD")
	if first == nil || second == nil {
		t.Fatalf("expected quotes on both calls")
	}
	if provider.calls != 1 {
		t.Fatalf("calls=%d want=1 (second call cached)", provider.calls)
	}
}

func TestGetPrice_UpsertsMarketData(t *testing.T) {
	provider := &stubQuoteProvider{name: "quotes"}
	repo := &marketDataRecorder{}
	f := newTestFetcher([]Route{{Providers: []QuoteProvider{provider}}}, nil, repo)

	if quote := f.GetPrice(context.Background(), "EUR/USD"); quote == nil {
		t.Fatalf("expected quote")
	}
	if len(repo.upserts) != 1 {
		t.Fatalf("upserts=%d want=1", len(repo.upserts))
	}
	got := repo.upserts[0]
	if got.Symbol != "EUR/USD" || got.Price.String() != "1.08500" {
		t.Fatalf("upsert=%+v", got)
	}
}

func TestGetIndicator_NilOnFailureAndCachedOnSuccess(t *testing.T) {
	fail := errors.New("boom")
	provider := &stubIndicatorProvider{errs: []error{fail, fail, fail}, value: 61.5}
	f := newTestFetcher(nil, provider, nil)

	if r := f.GetIndicator(context.Background(), "EUR/USD", IndicatorRSI, ""); r != nil {
		t.Fatalf("expected nil reading on failure")
	}

	provider.errs = nil
	first := f.GetIndicator(context.Background(), "EUR/USD", IndicatorRSI, "")
	if first == nil {
		t.Fatalf("expected reading")
	}
	if v, ok := first.Value(); !ok || v != 61.5 {
		t.Fatalf("value=%v ok=%v want=61.5", v, ok)
	}
	callsAfterSuccess := provider.calls
	if r := f.GetIndicator(context.Background(), "EUR/USD", IndicatorRSI, ""); r == nil {
		t.Fatalf("expected cached reading")
	}
	if provider.calls != callsAfterSuccess {
		t.Fatalf("cached call should not hit the provider")
	}
}

func TestGetIndicator_DefaultsInterval(t *testing.T) {
	provider := &stubIndicatorProvider{value: 50}
	f := newTestFetcher(nil, provider, nil)

	r := f.GetIndicator(context.Background(), "EUR/USD", IndicatorRSI, "")
	if r == nil {
		t.Fatalf("expected reading")
	}
	if r.Interval != "15min" {
		t.Fatalf("interval=%s want=15min", r.Interval)
	}
}
