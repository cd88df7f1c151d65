package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDexScreenerSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "pepe" {
			t.Errorf("q = %q, want pepe", got)
		}
		w.Write([]byte(`{"pairs":[
			{"chainId":"ethereum","dexId":"uniswap","url":"https://dexscreener.com/ethereum/0xabc",
			 "priceUsd":"0.0000012","baseToken":{"address":"0xabc","name":"Pepe","symbol":"PEPE"},
			 "liquidity":{"usd":5000000},"volume":{"h24":12000000},"priceChange":{"h24":-8.1}},
			{"chainId":"solana","dexId":"raydium","url":"https://dexscreener.com/solana/xyz",
			 "priceUsd":"","baseToken":{"address":"xyz","name":"","symbol":""},
			 "liquidity":{"usd":1000},"volume":{"h24":500},"priceChange":{"h24":0}},
			{"chainId":"base","dexId":"aerodrome","url":"https://dexscreener.com/base/def",
			 "priceUsd":"0.5","baseToken":{"address":"def","name":"Third","symbol":"THR"},
			 "liquidity":{"usd":1},"volume":{"h24":1},"priceChange":{"h24":1}}
		]}`))
	}))
	defer server.Close()

	c := NewDexScreener(nil)
	c.baseURL = server.URL

	items, err := c.Collect(context.Background(), "pepe", Options{Limit: 2})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit of 2 items, got %d", len(items))
	}

	if items[0].Title != "PEPE on ethereum - $0.0000012" {
		t.Errorf("title = %q", items[0].Title)
	}
	if !strings.Contains(items[0].Content, "24h change: -8.1%") {
		t.Errorf("content = %q", items[0].Content)
	}
	if items[0].Metadata["address"] != "0xabc" {
		t.Errorf("metadata = %+v", items[0].Metadata)
	}

	// Missing token fields fall back to placeholders.
	if items[1].Title != "? on solana - $N/A" {
		t.Errorf("placeholder title = %q", items[1].Title)
	}
	if !strings.Contains(items[1].Content, "Unknown (?)") {
		t.Errorf("placeholder content = %q", items[1].Content)
	}
}

func TestDexScreenerNoPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer server.Close()

	c := NewDexScreener(nil)
	c.baseURL = server.URL

	items, err := c.Collect(context.Background(), "nothing", Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}
