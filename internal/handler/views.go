package handler

import (
	"encoding/json"
	"time"

	"signalboard/internal/models"
)

// signalView is the public JSON shape of a signal. Prices are strings so the
// stored precision survives serialization unchanged.
type signalView struct {
	ID         uint64          `json:"id"`
	Pair       string          `json:"pair"`
	Direction  string          `json:"direction"`
	EntryPrice string          `json:"entryPrice"`
	StopLoss   string          `json:"stopLoss"`
	TakeProfit string          `json:"takeProfit"`
	Status     string          `json:"status"`
	Analysis   string          `json:"analysis"`
	ImageURL   *string         `json:"imageUrl,omitempty"`
	IsPremium  bool            `json:"isPremium"`
	Style      string          `json:"style"`
	Category   string          `json:"category"`
	ResultPips *string         `json:"resultPips,omitempty"`
	Decision   json.RawMessage `json:"decision,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	ClosedAt   *time.Time      `json:"closedAt,omitempty"`
}

func toSignalView(s *models.Signal) signalView {
	v := signalView{
		ID:         s.ID,
		Pair:       s.Pair,
		Direction:  string(s.Direction),
		EntryPrice: s.EntryPrice.String(),
		StopLoss:   s.StopLoss.String(),
		TakeProfit: s.TakeProfit.String(),
		Status:     string(s.Status),
		Analysis:   s.Analysis,
		ImageURL:   s.ImageURL,
		IsPremium:  s.IsPremium,
		Style:      string(s.Style),
		Category:   string(s.Category),
		CreatedAt:  s.CreatedAt,
		ClosedAt:   s.ClosedAt,
	}
	if s.ResultPips != nil {
		pips := s.ResultPips.String()
		v.ResultPips = &pips
	}
	if len(s.Decision) > 0 {
		v.Decision = json.RawMessage(s.Decision)
	}
	return v
}

func toSignalViews(items []models.Signal) []signalView {
	out := make([]signalView, 0, len(items))
	for i := range items {
		out = append(out, toSignalView(&items[i]))
	}
	return out
}

type marketDataView struct {
	Symbol        string    `json:"symbol"`
	Price         string    `json:"price"`
	Change        string    `json:"change"`
	ChangePercent string    `json:"changePercent"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toMarketDataView(m *models.MarketData) marketDataView {
	return marketDataView{
		Symbol:        m.Symbol,
		Price:         m.Price.String(),
		Change:        m.Change.String(),
		ChangePercent: m.ChangePercent,
		UpdatedAt:     m.UpdatedAt,
	}
}
