package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"signalboard/internal/models"
)

// ErrNotFound is returned when an operation references an unknown signal id.
var ErrNotFound = errors.New("not found")

type ListSignalsParams struct {
	Limit  int
	Offset int
	Status *models.Status
	Pair   *string
}

// SignalUpdate is a partial update; nil fields are left untouched.
type SignalUpdate struct {
	Pair       *string
	Direction  *models.Direction
	EntryPrice *decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Status     *models.Status
	Analysis   *string
	ImageURL   *string
	IsPremium  *bool
	Style      *models.Style
	Category   *models.Category
	ResultPips *decimal.Decimal
	Decision   datatypes.JSON
	ClosedAt   *time.Time
}

// Apply copies the non-nil fields onto item.
func (u SignalUpdate) Apply(item *models.Signal) {
	if u.Pair != nil {
		item.Pair = *u.Pair
	}
	if u.Direction != nil {
		item.Direction = *u.Direction
	}
	if u.EntryPrice != nil {
		item.EntryPrice = *u.EntryPrice
	}
	if u.StopLoss != nil {
		item.StopLoss = *u.StopLoss
	}
	if u.TakeProfit != nil {
		item.TakeProfit = *u.TakeProfit
	}
	if u.Status != nil {
		item.Status = *u.Status
	}
	if u.Analysis != nil {
		item.Analysis = *u.Analysis
	}
	if u.ImageURL != nil {
		item.ImageURL = u.ImageURL
	}
	if u.IsPremium != nil {
		item.IsPremium = *u.IsPremium
	}
	if u.Style != nil {
		item.Style = *u.Style
	}
	if u.Category != nil {
		item.Category = *u.Category
	}
	if u.ResultPips != nil {
		item.ResultPips = u.ResultPips
	}
	if u.Decision != nil {
		item.Decision = u.Decision
	}
	if u.ClosedAt != nil {
		item.ClosedAt = u.ClosedAt
	}
}

// Repository is the signal store consumed by the lifecycle manager and the
// HTTP surface. Implementations: gorm (postgres) and memory.
type Repository interface {
	// Signals. ListSignals orders newest-first.
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.Signal, error)
	GetSignal(ctx context.Context, id uint64) (*models.Signal, error)
	CreateSignal(ctx context.Context, item *models.Signal) error
	// CreateSignalIfNoActive atomically inserts item unless an ACTIVE signal
	// already exists for the same pair. Returns false when skipped.
	CreateSignalIfNoActive(ctx context.Context, item *models.Signal) (bool, error)
	UpdateSignal(ctx context.Context, id uint64, updates SignalUpdate) (*models.Signal, error)
	DeleteSignal(ctx context.Context, id uint64) error
	ListActiveSignals(ctx context.Context) ([]models.Signal, error)
	GetActiveSignalByPair(ctx context.Context, pair string) (*models.Signal, error)

	// Latest-quote projection.
	UpsertMarketData(ctx context.Context, item *models.MarketData) error
	GetMarketData(ctx context.Context, symbol string) (*models.MarketData, error)
	ListMarketData(ctx context.Context) ([]models.MarketData, error)
}
