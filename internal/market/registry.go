package market

import (
	"strings"

	"github.com/shopspring/decimal"

	"signalboard/internal/models"
)

// The symbol registry keeps asset classification explicit and data-driven:
// category inference, decimal precision, volatility profiles, and the
// instant-signal estimate table all key off it.

var cryptoTickers = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {}, "XRP": {}, "ADA": {}, "DOGE": {},
	"BNB": {}, "DOT": {}, "LTC": {}, "LINK": {}, "AVAX": {}, "MATIC": {},
	"SHIB": {}, "UNI": {}, "ATOM": {}, "XLM": {}, "TRX": {}, "NEAR": {},
}

var cryptoMajors = map[string]struct{}{
	"BTC": {}, "ETH": {},
}

var majorForexPairs = map[string]struct{}{
	"EUR/USD": {}, "GBP/USD": {}, "USD/JPY": {}, "USD/CHF": {},
	"AUD/USD": {}, "USD/CAD": {}, "NZD/USD": {},
}

// Classify maps a symbol to its asset category. Pairs with a crypto base are
// CRYPTO, other pairs FOREX, bare tickers in the crypto set CRYPTO, and
// everything else STOCKS.
func Classify(symbol string) models.Category {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if base, _, ok := strings.Cut(symbol, "/"); ok {
		if _, crypto := cryptoTickers[base]; crypto {
			return models.CategoryCrypto
		}
		return models.CategoryForex
	}
	if _, crypto := cryptoTickers[symbol]; crypto {
		return models.CategoryCrypto
	}
	return models.CategoryStocks
}

// IsJPYQuoted reports whether the pair's quote currency is JPY.
func IsJPYQuoted(symbol string) bool {
	_, quote, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(symbol)), "/")
	return ok && quote == "JPY"
}

// DecimalPlaces is the display/storage precision for derived price levels:
// JPY-quoted pairs 3, other FX pairs 5, crypto and equities 2.
func DecimalPlaces(symbol string) int32 {
	switch {
	case IsJPYQuoted(symbol):
		return 3
	case Classify(symbol) == models.CategoryForex:
		return 5
	default:
		return 2
	}
}

// VolatilityProfile expresses fallback stop/target distances as a percentage
// of the current price.
type VolatilityProfile struct {
	StopPct   float64
	TargetPct float64
}

func Volatility(symbol string) VolatilityProfile {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	switch Classify(symbol) {
	case models.CategoryCrypto:
		base := symbol
		if b, _, ok := strings.Cut(symbol, "/"); ok {
			base = b
		}
		if _, major := cryptoMajors[base]; major {
			return VolatilityProfile{StopPct: 2.0, TargetPct: 4.0}
		}
		return VolatilityProfile{StopPct: 3.0, TargetPct: 6.0}
	case models.CategoryForex:
		if _, major := majorForexPairs[symbol]; major {
			return VolatilityProfile{StopPct: 0.5, TargetPct: 1.0}
		}
		return VolatilityProfile{StopPct: 0.8, TargetPct: 1.5}
	default:
		return VolatilityProfile{StopPct: 1.5, TargetPct: 3.0}
	}
}

var priceEstimates = map[string]string{
	"BTC/USD": "97500.00",
	"ETH/USD": "3400.00",
	"SOL/USD": "210.00",
	"XRP/USD": "2.40",
	"EUR/USD": "1.08500",
	"GBP/USD": "1.27000",
	"USD/JPY": "149.500",
	"USD/CHF": "0.88000",
	"AUD/USD": "0.65500",
	"USD/CAD": "1.39000",
	"XAU/USD": "2650.00",
	"AAPL":    "230.00",
	"TSLA":    "250.00",
	"NVDA":    "135.00",
	"MSFT":    "420.00",
	"GOOGL":   "175.00",
	"AMZN":    "205.00",
}

// EstimatedPrice returns the hardcoded last-resort estimate used by instant
// signals when every provider fails.
func EstimatedPrice(symbol string) (decimal.Decimal, bool) {
	raw, ok := priceEstimates[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
