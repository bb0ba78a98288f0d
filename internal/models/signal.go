package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusHitTP  Status = "HIT_TP"
	StatusHitSL  Status = "HIT_SL"
	StatusClosed Status = "CLOSED"
)

type Style string

const (
	StyleScalping Style = "SCALPING"
	StyleDaily    Style = "DAILY"
	StyleSwing    Style = "SWING"
)

type Category string

const (
	CategoryCrypto Category = "CRYPTO"
	CategoryForex  Category = "FOREX"
	CategoryStocks Category = "STOCKS"
)

// Signal is a published trading recommendation. Price levels are stored as
// numeric so decimal strings round-trip exactly.
type Signal struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Pair      string    `gorm:"type:varchar(20);not null;index"`
	Direction Direction `gorm:"type:varchar(4);not null"`

	EntryPrice decimal.Decimal `gorm:"type:numeric;not null"`
	StopLoss   decimal.Decimal `gorm:"type:numeric;not null"`
	TakeProfit decimal.Decimal `gorm:"type:numeric;not null"`

	Status   Status   `gorm:"type:varchar(10);not null;index;default:'ACTIVE'"`
	Analysis string   `gorm:"type:text"`
	ImageURL *string  `gorm:"type:text"`
	Style    Style    `gorm:"type:varchar(10);not null;default:'DAILY'"`
	Category Category `gorm:"type:varchar(10);not null;default:'FOREX'"`

	IsPremium bool `gorm:"not null;default:false"`

	// Decision is the raw engine output that produced the signal, including
	// the decision-source tag. Manually created signals leave it null.
	Decision datatypes.JSON `gorm:"type:jsonb"`

	ResultPips *decimal.Decimal `gorm:"type:numeric"`

	CreatedAt time.Time  `gorm:"type:timestamptz;autoCreateTime;index"`
	ClosedAt  *time.Time `gorm:"type:timestamptz"`
}

func (Signal) TableName() string {
	return "signals"
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusHitTP || s == StatusHitSL || s == StatusClosed
}

func ValidDirection(d Direction) bool {
	return d == DirectionBuy || d == DirectionSell
}

func ValidStatus(s Status) bool {
	return s == StatusActive || s.Terminal()
}
