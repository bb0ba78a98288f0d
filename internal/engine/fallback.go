package engine

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/shopspring/decimal"

	"signalboard/internal/market"
	"signalboard/internal/models"
)

// DirectionPolicy decides a trade direction from the available indicators.
// It reports ok=false when it has no opinion, in which case the fallback
// tie-breaks deterministically from the symbol.
type DirectionPolicy func(in Input) (models.Direction, string, bool)

// Fallback produces a decision without any external service. Direction comes
// from simple momentum rules; stop and target distances come from the
// instrument's volatility profile. Fallback decisions are always LOW
// confidence.
type Fallback struct {
	Policy DirectionPolicy
}

func NewFallback() *Fallback {
	return &Fallback{Policy: MomentumPolicy}
}

// MomentumPolicy applies the rules in priority order: RSI extremes first,
// then MACD line versus its signal line, then price versus SMA.
func MomentumPolicy(in Input) (models.Direction, string, bool) {
	if in.RSI != nil {
		if *in.RSI < 30 {
			return models.DirectionBuy, fmt.Sprintf("RSI at %.1f signals oversold conditions", *in.RSI), true
		}
		if *in.RSI > 70 {
			return models.DirectionSell, fmt.Sprintf("RSI at %.1f signals overbought conditions", *in.RSI), true
		}
	}
	if in.MACD != nil && in.MACDSignal != nil && *in.MACD != *in.MACDSignal {
		if *in.MACD > *in.MACDSignal {
			return models.DirectionBuy, "MACD line is above its signal line, showing bullish momentum", true
		}
		return models.DirectionSell, "MACD line is below its signal line, showing bearish momentum", true
	}
	if in.SMA != nil && !in.Price.IsZero() {
		sma := decimal.NewFromFloat(*in.SMA)
		if in.Price.GreaterThan(sma) {
			return models.DirectionBuy, "price is trading above its 14-period moving average", true
		}
		if in.Price.LessThan(sma) {
			return models.DirectionSell, "price is trading below its 14-period moving average", true
		}
	}
	return "", "", false
}

func (f *Fallback) Decide(in Input) *Decision {
	policy := f.Policy
	if policy == nil {
		policy = MomentumPolicy
	}
	direction, reasoning, ok := policy(in)
	if !ok {
		direction = tieBreakDirection(in.Symbol)
		reasoning = "no clear indicator bias, direction chosen from symbol baseline"
	}

	places := market.DecimalPlaces(in.Symbol)
	profile := market.Volatility(in.Symbol)
	stopDist := in.Price.Mul(decimal.NewFromFloat(profile.StopPct / 100))
	targetDist := in.Price.Mul(decimal.NewFromFloat(profile.TargetPct / 100))

	var sl, tp, tp1, tp3 decimal.Decimal
	if direction == models.DirectionBuy {
		sl = in.Price.Sub(stopDist)
		tp = in.Price.Add(targetDist)
		tp1 = in.Price.Add(targetDist.Div(decimal.NewFromInt(2)))
		tp3 = in.Price.Add(targetDist.Mul(decimal.NewFromFloat(1.5)))
	} else {
		sl = in.Price.Add(stopDist)
		tp = in.Price.Sub(targetDist)
		tp1 = in.Price.Sub(targetDist.Div(decimal.NewFromInt(2)))
		tp3 = in.Price.Sub(targetDist.Mul(decimal.NewFromFloat(1.5)))
	}

	ratio := 0.0
	if profile.StopPct > 0 {
		ratio = profile.TargetPct / profile.StopPct
	}

	return &Decision{
		ShouldSignal: true,
		Direction:    string(direction),
		Confidence:   ConfidenceLow,
		Analysis: fmt.Sprintf("%s is trading at %s. Technical conditions favor a %s position with a stop placed %.1f%% away and a target %.1f%% away.",
			in.Symbol, FormatPrice(in.Price, places), strings.ToLower(string(direction)), profile.StopPct, profile.TargetPct),
		TechnicalReasoning: reasoning,
		StopLoss:           FormatPrice(sl, places),
		TakeProfit:         FormatPrice(tp, places),
		TakeProfit1:        FormatPrice(tp1, places),
		TakeProfit2:        FormatPrice(tp, places),
		TakeProfit3:        FormatPrice(tp3, places),
		RiskReward:         fmt.Sprintf("1:%.1f", ratio),
		WinProbability:     55,
		MarketContext:      fmt.Sprintf("Automated technical read for %s based on RSI, MACD and SMA.", in.Symbol),
		EntryZone:          FormatPrice(in.Price, places),
		Timeframe:          timeframeForStyle(in.Style),
		KeyLevels:          []string{FormatPrice(sl, places), FormatPrice(tp, places)},
	}
}

// tieBreakDirection is stable for a given symbol so repeated scans do not
// flip-flop when indicators are unavailable.
func tieBreakDirection(symbol string) models.Direction {
	h := fnv.New32a()
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(symbol))))
	if h.Sum32()%2 == 0 {
		return models.DirectionBuy
	}
	return models.DirectionSell
}
