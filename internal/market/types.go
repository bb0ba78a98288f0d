package market

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRateLimited marks an upstream rejection that warrants the longer retry
// backoff. Provider clients wrap it so the fetcher can classify failures.
var ErrRateLimited = errors.New("rate limited")

// Quote is a point-in-time price observation. Ephemeral: cached, never
// persisted as its own entity (the MarketData projection is the only write).
type Quote struct {
	Symbol        string
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent string
	FetchedAt     time.Time
}

type IndicatorKind string

const (
	IndicatorRSI  IndicatorKind = "RSI"
	IndicatorMACD IndicatorKind = "MACD"
	IndicatorSMA  IndicatorKind = "SMA"
)

// Reading is one indicator's most recent values for a symbol at an interval.
// MACD carries MACD/MACD_Signal/MACD_Hist; RSI and SMA a single value each.
type Reading struct {
	Kind     IndicatorKind
	Symbol   string
	Interval string
	Values   map[string]float64
	At       time.Time
}

// Value returns the reading's primary value (the one named after the kind).
func (r *Reading) Value() (float64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r.Values[string(r.Kind)]
	return v, ok
}

type QuoteProvider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}

type IndicatorProvider interface {
	Name() string
	FetchIndicator(ctx context.Context, symbol string, kind IndicatorKind, interval string) (*Reading, error)
}
