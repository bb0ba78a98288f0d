package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"signalboard/internal/models"
)

// Source records which path produced a decision.
const (
	SourceExternal = "EXTERNAL_SERVICE"
	SourceLocal    = "LOCAL_HEURISTIC"
)

// Confidence levels, highest to lowest.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// ReasoningClient is the external analysis dependency. A nil client is valid
// and means decisions always come from the local heuristic.
type ReasoningClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Input carries everything the engine may consider for one symbol. Indicator
// fields are pointers: nil means the reading was unavailable, which is not an
// error condition.
type Input struct {
	Symbol     string
	Price      decimal.Decimal
	RSI        *float64
	MACD       *float64
	MACDSignal *float64
	SMA        *float64
	Style      models.Style
}

// Decision is the engine's verdict for one symbol. Prices are formatted
// strings so the instrument's display precision survives storage and the API.
type Decision struct {
	ShouldSignal       bool     `json:"shouldSignal"`
	Direction          string   `json:"direction"`
	Confidence         string   `json:"confidence"`
	Analysis           string   `json:"analysis"`
	TechnicalReasoning string   `json:"technicalReasoning"`
	StopLoss           string   `json:"stopLoss"`
	TakeProfit         string   `json:"takeProfit"`
	TakeProfit1        string   `json:"takeProfit1,omitempty"`
	TakeProfit2        string   `json:"takeProfit2,omitempty"`
	TakeProfit3        string   `json:"takeProfit3,omitempty"`
	RiskReward         string   `json:"riskReward,omitempty"`
	WinProbability     int      `json:"winProbability,omitempty"`
	MarketContext      string   `json:"marketContext,omitempty"`
	EntryZone          string   `json:"entryZone,omitempty"`
	TrailingStop       string   `json:"trailingStop,omitempty"`
	Timeframe          string   `json:"timeframe,omitempty"`
	KeyLevels          []string `json:"keyLevels,omitempty"`
	Source             string   `json:"source"`
}

// Engine produces trade decisions. When Reasoning is nil or its call fails,
// the engine degrades to Fallback and tags the result LOCAL_HEURISTIC.
type Engine struct {
	Reasoning ReasoningClient
	Fallback  *Fallback
	Logger    *zap.Logger
}

func New(reasoning ReasoningClient, logger *zap.Logger) *Engine {
	return &Engine{
		Reasoning: reasoning,
		Fallback:  NewFallback(),
		Logger:    logger,
	}
}

// Decide never returns an error: every failure path ends at the local
// heuristic, so callers always get a usable decision.
func (e *Engine) Decide(ctx context.Context, in Input) *Decision {
	if e.Reasoning != nil {
		d, err := e.decideExternal(ctx, in)
		if err == nil {
			d.Source = SourceExternal
			return d
		}
		if e.Logger != nil {
			e.Logger.Warn("reasoning service failed, using local heuristic",
				zap.String("symbol", in.Symbol), zap.Error(err))
		}
	}
	d := e.fallback().Decide(in)
	d.Source = SourceLocal
	return d
}

func (e *Engine) fallback() *Fallback {
	if e.Fallback != nil {
		return e.Fallback
	}
	return NewFallback()
}

func (e *Engine) decideExternal(ctx context.Context, in Input) (*Decision, error) {
	raw, err := e.Reasoning.Complete(ctx, systemPrompt, buildUserPrompt(in))
	if err != nil {
		return nil, err
	}
	d, err := parseDecision(raw)
	if err != nil {
		return nil, fmt.Errorf("parse reasoning response: %w", err)
	}
	normalizeDecision(d, in)
	if err := validateDecision(d, in); err != nil {
		return nil, fmt.Errorf("validate reasoning response: %w", err)
	}
	return d, nil
}

const systemPrompt = `You are a professional trading analyst. Analyze the provided market data and respond with a single JSON object, no surrounding text. Fields: shouldSignal (bool), direction ("BUY" or "SELL"), confidence ("HIGH", "MEDIUM" or "LOW"), analysis (2-3 sentences for a general audience), technicalReasoning (1-2 sentences citing the indicators), stopLoss and takeProfit (price strings at the instrument's usual precision), riskReward (like "1:2"), winProbability (integer 0-100), marketContext, entryZone, trailingStop, timeframe, keyLevels (array of price strings). When shouldSignal is false, direction and price fields may be empty.`

func buildUserPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", in.Symbol)
	fmt.Fprintf(&b, "Current price: %s\n", in.Price.String())
	if in.RSI != nil {
		fmt.Fprintf(&b, "RSI(14): %.2f\n", *in.RSI)
	}
	if in.MACD != nil {
		fmt.Fprintf(&b, "MACD: %.6f\n", *in.MACD)
	}
	if in.MACDSignal != nil {
		fmt.Fprintf(&b, "MACD signal: %.6f\n", *in.MACDSignal)
	}
	if in.SMA != nil {
		fmt.Fprintf(&b, "SMA(14): %.6f\n", *in.SMA)
	}
	style := in.Style
	if style == "" {
		style = models.StyleDaily
	}
	fmt.Fprintf(&b, "Trading style: %s\n", style)
	return b.String()
}

// parseDecision tolerates code fences some models wrap around JSON even when
// a JSON response format was requested.
func parseDecision(raw string) (*Decision, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func normalizeDecision(d *Decision, in Input) {
	d.Direction = strings.ToUpper(strings.TrimSpace(d.Direction))
	d.Confidence = strings.ToUpper(strings.TrimSpace(d.Confidence))
	if d.Confidence != ConfidenceHigh && d.Confidence != ConfidenceMedium && d.Confidence != ConfidenceLow {
		d.Confidence = ConfidenceMedium
	}
	if d.Timeframe == "" {
		d.Timeframe = timeframeForStyle(in.Style)
	}
}

func validateDecision(d *Decision, in Input) error {
	if !d.ShouldSignal {
		return nil
	}
	if !models.ValidDirection(models.Direction(d.Direction)) {
		return fmt.Errorf("direction %q", d.Direction)
	}
	sl, err := decimal.NewFromString(d.StopLoss)
	if err != nil {
		return fmt.Errorf("stopLoss %q", d.StopLoss)
	}
	tp, err := decimal.NewFromString(d.TakeProfit)
	if err != nil {
		return fmt.Errorf("takeProfit %q", d.TakeProfit)
	}
	// The stop and target must bracket the entry on the correct sides.
	switch d.Direction {
	case string(models.DirectionBuy):
		if sl.GreaterThanOrEqual(in.Price) || tp.LessThanOrEqual(in.Price) {
			return fmt.Errorf("levels do not bracket entry for BUY: sl=%s tp=%s price=%s", sl, tp, in.Price)
		}
	case string(models.DirectionSell):
		if sl.LessThanOrEqual(in.Price) || tp.GreaterThanOrEqual(in.Price) {
			return fmt.Errorf("levels do not bracket entry for SELL: sl=%s tp=%s price=%s", sl, tp, in.Price)
		}
	}
	return nil
}

func timeframeForStyle(style models.Style) string {
	switch style {
	case models.StyleScalping:
		return "15m-1h"
	case models.StyleSwing:
		return "1d-1w"
	default:
		return "4h-1d"
	}
}
