package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is the denormalized latest-quote projection, upserted by the
// fetcher on every successful price fetch.
type MarketData struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	Symbol        string          `gorm:"type:varchar(20);uniqueIndex;not null"`
	Price         decimal.Decimal `gorm:"type:numeric;not null"`
	Change        decimal.Decimal `gorm:"type:numeric"`
	ChangePercent string          `gorm:"type:varchar(20)"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketData) TableName() string {
	return "market_data"
}
