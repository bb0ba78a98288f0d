package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"signalboard/internal/config"
	"signalboard/internal/engine"
	"signalboard/internal/market"
	"signalboard/internal/models"
	"signalboard/internal/repository"
)

const (
	defaultBuyRevertRSI  = 55
	defaultSellRevertRSI = 45
	defaultSymbolDelay   = 3 * time.Second
)

// Scanner walks the configured watchlist, asks the engine for a verdict per
// symbol and persists new signals, then closes stale ones whose RSI has
// reverted. One scan runs at a time; overlapping triggers are dropped.
type Scanner struct {
	Repo    repository.Repository
	Fetcher *market.Fetcher
	Engine  *engine.Engine
	Logger  *zap.Logger
	Config  config.ScannerConfig

	Now func() time.Time

	running atomic.Bool
}

// Scan runs one full pass: generation over the watchlist followed by the
// cleanup sweep. Returns false when a pass was already in flight.
func (s *Scanner) Scan(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.Logger.Info("scan already in progress, skipping trigger")
		return false
	}
	defer s.running.Store(false)

	s.ScanAndGenerate(ctx)
	s.CleanupObsoleteSignals(ctx)
	return true
}

// ScanAndGenerate processes symbols strictly in order with a delay between
// them, so a free-tier data provider is not hammered. A symbol whose quote
// cannot be fetched is skipped, never aborting the pass.
func (s *Scanner) ScanAndGenerate(ctx context.Context) {
	for i, symbol := range s.Config.Symbols {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				s.Logger.Info("scan interrupted", zap.Error(err))
				return
			}
		}
		s.scanSymbol(ctx, symbol)
	}
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string) {
	quote := s.Fetcher.GetPrice(ctx, symbol)
	if quote == nil {
		s.Logger.Warn("no quote available, skipping symbol", zap.String("symbol", symbol))
		return
	}

	in := s.buildInput(ctx, symbol, quote.Price, models.StyleDaily)
	decision := s.Engine.Decide(ctx, in)
	if !decision.ShouldSignal {
		s.Logger.Info("no signal for symbol",
			zap.String("symbol", symbol), zap.String("source", decision.Source))
		return
	}

	item, err := s.buildSignal(symbol, quote.Price, models.StyleDaily, decision)
	if err != nil {
		s.Logger.Error("build signal", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	created, err := s.Repo.CreateSignalIfNoActive(ctx, item)
	if err != nil {
		s.Logger.Error("persist signal", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if !created {
		s.Logger.Info("active signal already exists, skipping",
			zap.String("symbol", symbol))
		return
	}
	s.Logger.Info("signal created",
		zap.Uint64("id", item.ID),
		zap.String("symbol", symbol),
		zap.String("direction", string(item.Direction)),
		zap.String("confidence", decision.Confidence),
		zap.String("source", decision.Source))
}

// CleanupObsoleteSignals closes ACTIVE signals whose momentum has reverted:
// a BUY once RSI rises above the buy threshold, a SELL once it falls below
// the sell threshold. Signals without a fresh RSI reading are left untouched.
// Safe to run repeatedly; closed signals are no longer ACTIVE and drop out.
func (s *Scanner) CleanupObsoleteSignals(ctx context.Context) {
	active, err := s.Repo.ListActiveSignals(ctx)
	if err != nil {
		s.Logger.Error("list active signals", zap.Error(err))
		return
	}

	for _, sig := range active {
		reading := s.Fetcher.GetIndicator(ctx, sig.Pair, market.IndicatorRSI, "")
		rsi, ok := reading.Value()
		if !ok {
			continue
		}
		if !s.reverted(sig.Direction, rsi) {
			continue
		}

		now := s.now()
		status := models.StatusClosed
		note := fmt.Sprintf("%s\n[%s] Closed automatically: RSI reverted to %.1f.",
			strings.TrimRight(sig.Analysis, "\n"), now.UTC().Format("2006-01-02 15:04"), rsi)
		if _, err := s.Repo.UpdateSignal(ctx, sig.ID, repository.SignalUpdate{
			Status:   &status,
			Analysis: &note,
			ClosedAt: &now,
		}); err != nil {
			s.Logger.Error("close signal", zap.Uint64("id", sig.ID), zap.Error(err))
			continue
		}
		s.Logger.Info("signal closed on RSI revert",
			zap.Uint64("id", sig.ID),
			zap.String("symbol", sig.Pair),
			zap.Float64("rsi", rsi))
	}
}

func (s *Scanner) reverted(direction models.Direction, rsi float64) bool {
	buyAt := s.Config.BuyRevertRSI
	if buyAt <= 0 {
		buyAt = defaultBuyRevertRSI
	}
	sellAt := s.Config.SellRevertRSI
	if sellAt <= 0 {
		sellAt = defaultSellRevertRSI
	}
	switch direction {
	case models.DirectionBuy:
		return rsi > buyAt
	case models.DirectionSell:
		return rsi < sellAt
	}
	return false
}

// GenerateInstantSignal builds and persists a signal for one symbol on
// demand. Unlike the scheduled scan it always inserts, even when the pair
// already has an ACTIVE signal, and it falls back to a baseline price
// estimate when no live quote is available.
func (s *Scanner) GenerateInstantSignal(ctx context.Context, symbol string, style models.Style) (*models.Signal, error) {
	if style == "" {
		style = models.StyleDaily
	}

	var price decimal.Decimal
	if quote := s.Fetcher.GetPrice(ctx, symbol); quote != nil {
		price = quote.Price
	} else {
		est, ok := market.EstimatedPrice(symbol)
		if !ok {
			return nil, fmt.Errorf("no quote or baseline price for %s", symbol)
		}
		price = est
		s.Logger.Warn("using baseline price estimate", zap.String("symbol", symbol))
	}

	in := s.buildInput(ctx, symbol, price, style)
	decision := s.Engine.Decide(ctx, in)

	item, err := s.buildSignal(symbol, price, style, decision)
	if err != nil {
		return nil, err
	}
	if existing, err := s.Repo.GetActiveSignalByPair(ctx, symbol); err == nil {
		s.Logger.Warn("pair already has an active signal, inserting anyway",
			zap.String("symbol", symbol),
			zap.Uint64("existing_id", existing.ID))
	}
	if err := s.Repo.CreateSignal(ctx, item); err != nil {
		return nil, fmt.Errorf("persist instant signal: %w", err)
	}
	s.Logger.Info("instant signal created",
		zap.Uint64("id", item.ID),
		zap.String("symbol", symbol),
		zap.String("direction", string(item.Direction)),
		zap.String("source", decision.Source))
	return item, nil
}

// Run drives scheduled scans on the given interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

func (s *Scanner) buildInput(ctx context.Context, symbol string, price decimal.Decimal, style models.Style) engine.Input {
	in := engine.Input{Symbol: symbol, Price: price, Style: style}

	// Best effort: a missing reading degrades the decision, never blocks it.
	if v, ok := s.Fetcher.GetIndicator(ctx, symbol, market.IndicatorRSI, "").Value(); ok {
		in.RSI = &v
	}
	if macd := s.Fetcher.GetIndicator(ctx, symbol, market.IndicatorMACD, ""); macd != nil {
		if v, ok := macd.Values["MACD"]; ok {
			in.MACD = &v
		}
		if v, ok := macd.Values["MACD_Signal"]; ok {
			in.MACDSignal = &v
		}
	}
	if v, ok := s.Fetcher.GetIndicator(ctx, symbol, market.IndicatorSMA, "").Value(); ok {
		in.SMA = &v
	}
	return in
}

func (s *Scanner) buildSignal(symbol string, price decimal.Decimal, style models.Style, decision *engine.Decision) (*models.Signal, error) {
	direction := models.Direction(decision.Direction)
	if !models.ValidDirection(direction) {
		return nil, fmt.Errorf("decision direction %q", decision.Direction)
	}
	sl, tp := levels(symbol, direction, price, decision)

	analysis := decision.Analysis
	if decision.TechnicalReasoning != "" {
		analysis = analysis + "\n\n" + decision.TechnicalReasoning
	}

	raw, err := json.Marshal(decision)
	if err != nil {
		return nil, fmt.Errorf("encode decision: %w", err)
	}

	return &models.Signal{
		Pair:       symbol,
		Direction:  direction,
		EntryPrice: price,
		StopLoss:   sl,
		TakeProfit: tp,
		Status:     models.StatusActive,
		Analysis:   analysis,
		Style:      style,
		Category:   market.Classify(symbol),
		Decision:   datatypes.JSON(raw),
		CreatedAt:  s.now(),
	}, nil
}

// levels parses the decision's stop and target; when either is absent or
// malformed it derives both from the instrument's volatility profile so a
// persisted signal always carries usable risk levels.
func levels(symbol string, direction models.Direction, price decimal.Decimal, decision *engine.Decision) (sl, tp decimal.Decimal) {
	var slErr, tpErr error
	sl, slErr = decimal.NewFromString(decision.StopLoss)
	tp, tpErr = decimal.NewFromString(decision.TakeProfit)
	if slErr == nil && tpErr == nil {
		return sl, tp
	}

	profile := market.Volatility(symbol)
	stopDist := price.Mul(decimal.NewFromFloat(profile.StopPct / 100))
	targetDist := price.Mul(decimal.NewFromFloat(profile.TargetPct / 100))
	if direction == models.DirectionBuy {
		return price.Sub(stopDist), price.Add(targetDist)
	}
	return price.Add(stopDist), price.Sub(targetDist)
}

func (s *Scanner) pause(ctx context.Context) error {
	delay := s.Config.SymbolDelay
	if delay <= 0 {
		delay = defaultSymbolDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
