package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"signalboard/internal/market"
)

// Client talks to the Alpha Vantage query API: global quotes for equities,
// realtime exchange rates for FX/crypto pairs, and technical indicators.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co/query"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

func (c *Client) Name() string { return "alpha_vantage" }

func (c *Client) FetchQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	if from, to, ok := strings.Cut(symbol, "/"); ok {
		return c.fetchExchangeRate(ctx, symbol, from, to)
	}
	return c.fetchGlobalQuote(ctx, symbol)
}

func (c *Client) fetchGlobalQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	data, ok := payload["Global Quote"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}
	price, err := decimalField(data, "05. price")
	if err != nil {
		return nil, err
	}
	change, _ := decimalField(data, "09. change")
	changePercent, _ := data["10. change percent"].(string)

	return &market.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		FetchedAt:     time.Now().UTC(),
	}, nil
}

func (c *Client) fetchExchangeRate(ctx context.Context, symbol, from, to string) (*market.Quote, error) {
	params := url.Values{}
	params.Set("function", "CURRENCY_EXCHANGE_RATE")
	params.Set("from_currency", from)
	params.Set("to_currency", to)

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	data, ok := payload["Realtime Currency Exchange Rate"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("no exchange rate for %s", symbol)
	}
	price, err := decimalField(data, "5. Exchange Rate")
	if err != nil {
		return nil, err
	}

	return &market.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        decimal.Zero,
		ChangePercent: "0%",
		FetchedAt:     time.Now().UTC(),
	}, nil
}

// FetchIndicator fetches the latest RSI/MACD/SMA reading. Pair symbols are
// flattened ("EUR/USD" -> "EURUSD") the way the indicator endpoints expect.
func (c *Client) FetchIndicator(ctx context.Context, symbol string, kind market.IndicatorKind, interval string) (*market.Reading, error) {
	params := url.Values{}
	params.Set("function", string(kind))
	params.Set("symbol", strings.ReplaceAll(symbol, "/", ""))
	params.Set("interval", interval)
	params.Set("series_type", "close")
	if kind != market.IndicatorMACD {
		params.Set("time_period", "14")
	}

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	series, ok := payload["Technical Analysis: "+string(kind)].(map[string]any)
	if !ok || len(series) == 0 {
		return nil, fmt.Errorf("no %s data for %s", kind, symbol)
	}

	// Keys are timestamps, newest sorts last lexicographically.
	latestKey := ""
	for key := range series {
		if key > latestKey {
			latestKey = key
		}
	}
	point, ok := series[latestKey].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("malformed %s data for %s", kind, symbol)
	}

	values := make(map[string]float64, len(point))
	for name, raw := range point {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		values[name] = v
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty %s reading for %s", kind, symbol)
	}

	at, _ := time.Parse("2006-01-02 15:04:05", latestKey)

	return &market.Reading{
		Kind:     kind,
		Symbol:   symbol,
		Interval: interval,
		Values:   values,
		At:       at,
	}, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (map[string]any, error) {
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("http 429: %w", market.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// Alpha Vantage reports throttling and errors inside a 200 body.
	for _, field := range []string{"Note", "Information", "Error Message"} {
		msg, ok := payload[field].(string)
		if !ok || msg == "" {
			continue
		}
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "rate limit") || strings.Contains(lower, "call frequency") {
			return nil, fmt.Errorf("%s: %w", msg, market.ErrRateLimited)
		}
		return nil, fmt.Errorf("upstream error: %s", msg)
	}

	return payload, nil
}

func decimalField(data map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := data[key].(string)
	if !ok || raw == "" {
		return decimal.Decimal{}, fmt.Errorf("missing field %q", key)
	}
	return decimal.NewFromString(raw)
}
