package market

import (
	"testing"
	"time"
)

func TestCache_HitBeforeTTL(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cache := NewCache(func() time.Time { return now })

	cache.Put("quote", "EUR/USD", "", "v1", 30*time.Minute)

	now = now.Add(30*time.Minute - time.Second)
	got, ok := cache.Get("quote", "EUR/USD", "")
	if !ok {
		t.Fatalf("expected cache hit just before expiry")
	}
	if got.(string) != "v1" {
		t.Fatalf("got=%v want=v1", got)
	}
}

func TestCache_MissAtTTL(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cache := NewCache(func() time.Time { return now })

	cache.Put("quote", "EUR/USD", "", "v1", 30*time.Minute)

	now = now.Add(30 * time.Minute)
	if _, ok := cache.Get("quote", "EUR/USD", ""); ok {
		t.Fatalf("expected miss exactly at expiry")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry not evicted, len=%d", cache.Len())
	}
}

func TestCache_KeyedByKindSymbolInterval(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	cache := NewCache(func() time.Time { return now })

	cache.Put("indicator:RSI", "EUR/USD", "15min", 42.0, time.Minute)

	if _, ok := cache.Get("indicator:RSI", "EUR/USD", "60min"); ok {
		t.Fatalf("interval should be part of the key")
	}
	if _, ok := cache.Get("indicator:SMA", "EUR/USD", "15min"); ok {
		t.Fatalf("kind should be part of the key")
	}
	if _, ok := cache.Get("indicator:RSI", "GBP/USD", "15min"); ok {
		t.Fatalf("symbol should be part of the key")
	}
	got, ok := cache.Get("indicator:RSI", "EUR/USD", "15min")
	if !ok || got.(float64) != 42.0 {
		t.Fatalf("got=%v ok=%v want=42", got, ok)
	}
}

func TestCache_ZeroTTLNotStored(t *testing.T) {
	cache := NewCache(nil)
	cache.Put("quote", "EUR/USD", "", "v1", 0)
	if cache.Len() != 0 {
		t.Fatalf("zero ttl entry should not be stored")
	}
}
