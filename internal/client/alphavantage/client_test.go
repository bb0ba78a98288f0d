package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"signalboard/internal/market"
)

func TestFetchQuote_GlobalQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "GLOBAL_QUOTE" {
			t.Fatalf("function=%s want=GLOBAL_QUOTE", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Fatalf("symbol=%s", got)
		}
		if got := r.URL.Query().Get("apikey"); got != "test-key" {
			t.Fatalf("apikey=%s", got)
		}
		w.Write([]byte(`{"Global Quote": {
			"01. symbol": "AAPL",
			"05. price": "230.4500",
			"09. change": "1.2300",
			"10. change percent": "0.5368%"
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "test-key")
	quote, err := c.FetchQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if quote.Price.String() != "230.4500" {
		t.Fatalf("price=%s", quote.Price.String())
	}
	if quote.ChangePercent != "0.5368%" {
		t.Fatalf("changePercent=%s", quote.ChangePercent)
	}
}

func TestFetchQuote_ExchangeRateForPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "CURRENCY_EXCHANGE_RATE" {
			t.Fatalf("function=%s", q.Get("function"))
		}
		if q.Get("from_currency") != "EUR" || q.Get("to_currency") != "USD" {
			t.Fatalf("pair=%s/%s", q.Get("from_currency"), q.Get("to_currency"))
		}
		w.Write([]byte(`{"Realtime Currency Exchange Rate": {
			"1. From_Currency Code": "EUR",
			"5. Exchange Rate": "1.08503000"
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "k")
	quote, err := c.FetchQuote(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if quote.Symbol != "EUR/USD" {
		t.Fatalf("symbol=%s", quote.Symbol)
	}
	if quote.Price.String() != "1.08503000" {
		t.Fatalf("price=%s", quote.Price.String())
	}
}

func TestFetchQuote_RateLimitInsideOKBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 25 requests per day."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "k")
	_, err := c.FetchQuote(context.Background(), "AAPL")
	if !errors.Is(err, market.ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
}

func TestFetchQuote_HTTP429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "k")
	_, err := c.FetchQuote(context.Background(), "AAPL")
	if !errors.Is(err, market.ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
}

func TestFetchQuote_UpstreamErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "k")
	_, err := c.FetchQuote(context.Background(), "NOPE")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, market.ErrRateLimited) {
		t.Fatalf("plain upstream error must not classify as rate limit")
	}
}

func TestFetchIndicator_PicksLatestReading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "RSI" {
			t.Fatalf("function=%s", q.Get("function"))
		}
		if q.Get("symbol") != "EURUSD" {
			t.Fatalf("symbol=%s want flattened EURUSD", q.Get("symbol"))
		}
		if q.Get("time_period") != "14" {
			t.Fatalf("time_period=%s", q.Get("time_period"))
		}
		w.Write([]byte(`{"Technical Analysis: RSI": {
			"2026-02-01 10:00:00": {"RSI": "28.1000"},
			"2026-02-01 10:15:00": {"RSI": "31.5000"},
			"2026-02-01 09:45:00": {"RSI": "26.0000"}
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "k")
	reading, err := c.FetchIndicator(context.Background(), "EUR/USD", market.IndicatorRSI, "15min")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	v, ok := reading.Value()
	if !ok || v != 31.5 {
		t.Fatalf("value=%v ok=%v want latest 31.5", v, ok)
	}
}

func TestFetchIndicator_MACDOmitsTimePeriod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("time_period") {
			t.Fatalf("MACD request must not carry time_period")
		}
		w.Write([]byte(`{"Technical Analysis: MACD": {
			"2026-02-01 10:15:00": {
				"MACD": "0.00213",
				"MACD_Signal": "0.00180",
				"MACD_Hist": "0.00033"
			}
		}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "k")
	reading, err := c.FetchIndicator(context.Background(), "EUR/USD", market.IndicatorMACD, "15min")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if reading.Values["MACD"] != 0.00213 || reading.Values["MACD_Signal"] != 0.0018 {
		t.Fatalf("values=%v", reading.Values)
	}
}
