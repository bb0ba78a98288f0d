package scanner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"signalboard/internal/config"
	"signalboard/internal/engine"
	"signalboard/internal/market"
	"signalboard/internal/models"
	"signalboard/internal/repository"
	memoryrepository "signalboard/internal/repository/memory"
)

type fakeQuotes struct {
	fail  bool
	price string
}

func (f *fakeQuotes) Name() string { return "fake_quotes" }

func (f *fakeQuotes) FetchQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	if f.fail {
		return nil, errors.New("provider down")
	}
	return &market.Quote{
		Symbol:        symbol,
		Price:         decimal.RequireFromString(f.price),
		ChangePercent: "0.10%",
		FetchedAt:     time.Now().UTC(),
	}, nil
}

type fakeIndicators struct {
	fail bool
	rsi  float64
}

func (f *fakeIndicators) Name() string { return "fake_indicators" }

func (f *fakeIndicators) FetchIndicator(ctx context.Context, symbol string, kind market.IndicatorKind, interval string) (*market.Reading, error) {
	if f.fail || kind != market.IndicatorRSI {
		return nil, errors.New("no data")
	}
	return &market.Reading{
		Kind:     kind,
		Symbol:   symbol,
		Interval: interval,
		Values:   map[string]float64{string(kind): f.rsi},
		At:       time.Now().UTC(),
	}, nil
}

func newTestScanner(repo repository.Repository, quotes market.QuoteProvider, indicators market.IndicatorProvider, symbols []string) *Scanner {
	fetcher := &market.Fetcher{
		Cache:      market.NewCache(nil),
		Repo:       repo,
		Logger:     zap.NewNop(),
		Routes:     []market.Route{{Providers: []market.QuoteProvider{quotes}}},
		Indicators: indicators,
		Config:     config.MarketConfig{IndicatorInterval: "15min"},
	}
	return &Scanner{
		Repo:    repo,
		Fetcher: fetcher,
		Engine:  engine.New(nil, zap.NewNop()),
		Logger:  zap.NewNop(),
		Config: config.ScannerConfig{
			Symbols:     symbols,
			SymbolDelay: time.Millisecond,
		},
	}
}

func activeSignals(t *testing.T, repo repository.Repository) []models.Signal {
	t.Helper()
	items, err := repo.ListActiveSignals(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	return items
}

func TestScan_CreatesSignalOncePerPair(t *testing.T) {
	repo := memoryrepository.New()
	s := newTestScanner(repo, &fakeQuotes{price: "1.08500"}, &fakeIndicators{rsi: 25}, []string{"EUR/USD"})

	if ok := s.Scan(context.Background()); !ok {
		t.Fatalf("scan should run")
	}
	items := activeSignals(t, repo)
	if len(items) != 1 {
		t.Fatalf("active=%d want=1", len(items))
	}
	sig := items[0]
	if sig.Pair != "EUR/USD" || sig.Direction != models.DirectionBuy {
		t.Fatalf("signal=%+v", sig)
	}
	if sig.Category != models.CategoryForex {
		t.Fatalf("category=%s want=FOREX", sig.Category)
	}
	if len(sig.Decision) == 0 {
		t.Fatalf("decision payload missing")
	}

	// Second pass must not stack a second ACTIVE signal on the same pair.
	s.Scan(context.Background())
	if got := len(activeSignals(t, repo)); got != 1 {
		t.Fatalf("active after rescan=%d want=1", got)
	}
}

func TestScan_SkipsSymbolWithoutQuote(t *testing.T) {
	repo := memoryrepository.New()
	s := newTestScanner(repo, &fakeQuotes{fail: true}, &fakeIndicators{rsi: 25}, []string{"EUR/USD", "GBP/USD"})

	s.Scan(context.Background())
	if got := len(activeSignals(t, repo)); got != 0 {
		t.Fatalf("active=%d want=0 when quotes unavailable", got)
	}
}

func TestScan_ProcessesAllSymbols(t *testing.T) {
	repo := memoryrepository.New()
	s := newTestScanner(repo, &fakeQuotes{price: "100.00"}, &fakeIndicators{rsi: 25}, []string{"AAPL", "TSLA", "NVDA"})

	s.Scan(context.Background())
	if got := len(activeSignals(t, repo)); got != 3 {
		t.Fatalf("active=%d want=3", got)
	}
}

func TestScan_StopsOnCancelledContext(t *testing.T) {
	repo := memoryrepository.New()
	s := newTestScanner(repo, &fakeQuotes{price: "100.00"}, &fakeIndicators{rsi: 25}, []string{"AAPL", "TSLA"})
	s.Config.SymbolDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.ScanAndGenerate(ctx)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scan did not stop on cancel")
	}
	if got := len(activeSignals(t, repo)); got != 1 {
		t.Fatalf("active=%d want=1 (only first symbol before cancel)", got)
	}
}

func seedActive(t *testing.T, repo repository.Repository, pair string, direction models.Direction) uint64 {
	t.Helper()
	item := &models.Signal{
		Pair:       pair,
		Direction:  direction,
		EntryPrice: decimal.RequireFromString("1.08500"),
		StopLoss:   decimal.RequireFromString("1.08000"),
		TakeProfit: decimal.RequireFromString("1.09500"),
		Analysis:   "seeded",
	}
	if err := repo.CreateSignal(context.Background(), item); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return item.ID
}

func TestCleanup_ClosesBuyWhenRSIRevertsAbove55(t *testing.T) {
	repo := memoryrepository.New()
	id := seedActive(t, repo, "EUR/USD", models.DirectionBuy)
	s := newTestScanner(repo, &fakeQuotes{price: "1.08500"}, &fakeIndicators{rsi: 60}, nil)

	s.CleanupObsoleteSignals(context.Background())

	got, err := repo.GetSignal(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusClosed {
		t.Fatalf("status=%s want=CLOSED", got.Status)
	}
	if got.ClosedAt == nil {
		t.Fatalf("closedAt not set")
	}
	if !strings.Contains(got.Analysis, "Closed automatically") {
		t.Fatalf("analysis missing closure note: %q", got.Analysis)
	}

	// Running again finds no ACTIVE signals and changes nothing.
	s.CleanupObsoleteSignals(context.Background())
	again, _ := repo.GetSignal(context.Background(), id)
	if again.Status != models.StatusClosed || !again.ClosedAt.Equal(*got.ClosedAt) {
		t.Fatalf("cleanup is not idempotent")
	}
}

func TestCleanup_ClosesSellWhenRSIDropsBelow45(t *testing.T) {
	repo := memoryrepository.New()
	id := seedActive(t, repo, "EUR/USD", models.DirectionSell)
	s := newTestScanner(repo, &fakeQuotes{price: "1.08500"}, &fakeIndicators{rsi: 40}, nil)

	s.CleanupObsoleteSignals(context.Background())
	got, _ := repo.GetSignal(context.Background(), id)
	if got.Status != models.StatusClosed {
		t.Fatalf("status=%s want=CLOSED", got.Status)
	}
}

func TestCleanup_LeavesSignalInsideThresholds(t *testing.T) {
	repo := memoryrepository.New()
	buyID := seedActive(t, repo, "EUR/USD", models.DirectionBuy)
	sellID := seedActive(t, repo, "GBP/USD", models.DirectionSell)
	s := newTestScanner(repo, &fakeQuotes{price: "1.08500"}, &fakeIndicators{rsi: 50}, nil)

	s.CleanupObsoleteSignals(context.Background())
	for _, id := range []uint64{buyID, sellID} {
		got, _ := repo.GetSignal(context.Background(), id)
		if got.Status != models.StatusActive {
			t.Fatalf("signal %d status=%s want=ACTIVE", id, got.Status)
		}
	}
}

func TestCleanup_MissingIndicatorLeavesSignalUntouched(t *testing.T) {
	repo := memoryrepository.New()
	id := seedActive(t, repo, "EUR/USD", models.DirectionBuy)
	s := newTestScanner(repo, &fakeQuotes{price: "1.08500"}, &fakeIndicators{fail: true}, nil)

	s.CleanupObsoleteSignals(context.Background())
	got, _ := repo.GetSignal(context.Background(), id)
	if got.Status != models.StatusActive {
		t.Fatalf("status=%s want=ACTIVE when RSI unavailable", got.Status)
	}
}

func TestGenerateInstantSignal_FallsBackToBaselinePrice(t *testing.T) {
	repo := memoryrepository.New()
	s := newTestScanner(repo, &fakeQuotes{fail: true}, &fakeIndicators{fail: true}, nil)

	sig, err := s.GenerateInstantSignal(context.Background(), "EUR/USD", models.StyleScalping)
	if err != nil {
		t.Fatalf("instant: %v", err)
	}
	if sig.EntryPrice.String() != "1.08500" {
		t.Fatalf("entry=%s want=1.08500 (baseline)", sig.EntryPrice.String())
	}
	if sig.Style != models.StyleScalping {
		t.Fatalf("style=%s want=SCALPING", sig.Style)
	}
	if sig.ID == 0 {
		t.Fatalf("signal not persisted")
	}
}

func TestGenerateInstantSignal_UnknownSymbolWithoutQuoteFails(t *testing.T) {
	repo := memoryrepository.New()
	s := newTestScanner(repo, &fakeQuotes{fail: true}, &fakeIndicators{fail: true}, nil)

	if _, err := s.GenerateInstantSignal(context.Background(), "ZZZ/XXX", ""); err == nil {
		t.Fatalf("expected error for unknown symbol with no quote")
	}
}

func TestGenerateInstantSignal_InsertsEvenWithActiveSignal(t *testing.T) {
	repo := memoryrepository.New()
	seedActive(t, repo, "EUR/USD", models.DirectionBuy)
	s := newTestScanner(repo, &fakeQuotes{price: "1.08500"}, &fakeIndicators{rsi: 25}, nil)

	if _, err := s.GenerateInstantSignal(context.Background(), "EUR/USD", ""); err != nil {
		t.Fatalf("instant: %v", err)
	}
	if got := len(activeSignals(t, repo)); got != 2 {
		t.Fatalf("active=%d want=2 (instant bypasses dedup)", got)
	}
}

func TestRun_ScansOnIntervalUntilCancelled(t *testing.T) {
	repo := memoryrepository.New()
	s := newTestScanner(repo, &fakeQuotes{price: "1.08500"}, &fakeIndicators{rsi: 25}, []string{"EUR/USD"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(activeSignals(t, repo)) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ticker loop produced no signal")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancel")
	}
}

func TestSeedShowcaseSignals(t *testing.T) {
	repo := memoryrepository.New()
	s := newTestScanner(repo, &fakeQuotes{fail: true}, &fakeIndicators{fail: true}, nil)

	if err := s.SeedShowcaseSignals(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	items, err := repo.ListSignals(context.Background(), repository.ListSignalsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("seeded=%d want=3", len(items))
	}

	// A non-empty store must not be reseeded.
	if err := s.SeedShowcaseSignals(context.Background()); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	items, _ = repo.ListSignals(context.Background(), repository.ListSignalsParams{})
	if len(items) != 3 {
		t.Fatalf("after reseed=%d want=3", len(items))
	}
}
