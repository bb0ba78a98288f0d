package scanner

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"signalboard/internal/models"
	"signalboard/internal/repository"
)

// SeedShowcaseSignals inserts a few example signals into an empty store so a
// fresh deployment has content before the first scan completes. A store with
// any existing signals is left alone.
func (s *Scanner) SeedShowcaseSignals(ctx context.Context) error {
	existing, err := s.Repo.ListSignals(ctx, repository.ListSignalsParams{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, item := range showcaseSignals() {
		item := item
		item.CreatedAt = s.now()
		if err := s.Repo.CreateSignal(ctx, &item); err != nil {
			return err
		}
	}
	s.Logger.Info("seeded showcase signals", zap.Int("count", 3))
	return nil
}

func showcaseSignals() []models.Signal {
	return []models.Signal{
		{
			Pair:       "EUR/USD",
			Direction:  models.DirectionBuy,
			EntryPrice: decimal.RequireFromString("1.08500"),
			StopLoss:   decimal.RequireFromString("1.08000"),
			TakeProfit: decimal.RequireFromString("1.09500"),
			Status:     models.StatusActive,
			Analysis:   "EUR/USD holding above the 1.0800 support zone with improving momentum. Buyers defended the level twice this week, and a push toward 1.0950 looks favored while the support holds.",
			Style:      models.StyleDaily,
			Category:   models.CategoryForex,
		},
		{
			Pair:       "BTC/USD",
			Direction:  models.DirectionBuy,
			EntryPrice: decimal.RequireFromString("97500.00"),
			StopLoss:   decimal.RequireFromString("95500.00"),
			TakeProfit: decimal.RequireFromString("101500.00"),
			Status:     models.StatusActive,
			Analysis:   "Bitcoin consolidating under the psychological 100k mark after a strong advance. Dips continue to be bought, and a breakout retest targets 101,500 with a stop below the consolidation floor.",
			Style:      models.StyleSwing,
			Category:   models.CategoryCrypto,
			IsPremium:  true,
		},
		{
			Pair:       "GBP/JPY",
			Direction:  models.DirectionSell,
			EntryPrice: decimal.RequireFromString("189.500"),
			StopLoss:   decimal.RequireFromString("190.800"),
			TakeProfit: decimal.RequireFromString("187.200"),
			Status:     models.StatusActive,
			Analysis:   "GBP/JPY rejected at the 190.00 supply area for a third time. Momentum is rolling over on the daily chart, favoring a move back into the 187.20 demand zone.",
			Style:      models.StyleDaily,
			Category:   models.CategoryForex,
		},
	}
}
