package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"signalboard/internal/market"
)

// Client fetches crypto quotes from the public Binance REST API (no key).
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.binance.com/api/v3"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) Name() string { return "binance" }

func (c *Client) FetchQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	reqURL := c.baseURL + "/ticker/24hr?symbol=" + mapSymbol(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// 429 is the throttle status; 418 is the auto-ban escalation.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
		return nil, fmt.Errorf("http %d: %w", resp.StatusCode, market.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		LastPrice          string `json:"lastPrice"`
		PriceChange        string `json:"priceChange"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	price, err := decimal.NewFromString(parsed.LastPrice)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("invalid price %q", parsed.LastPrice)
	}
	change, _ := decimal.NewFromString(parsed.PriceChange)

	changePercent := parsed.PriceChangePercent
	if changePercent != "" && !strings.HasSuffix(changePercent, "%") {
		changePercent += "%"
	}

	return &market.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		FetchedAt:     time.Now().UTC(),
	}, nil
}

// mapSymbol converts dashboard pairs to Binance tickers ("BTC/USD" ->
// "BTCUSDT"; USD books trade against USDT).
func mapSymbol(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	base, quote, ok := strings.Cut(upper, "/")
	if !ok {
		return upper + "USDT"
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}
