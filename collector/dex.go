package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/briefops/research-agent/emit"
)

// DexScreener searches decentralized-exchange token pairs on DexScreener.
// Free, no API key.
type DexScreener struct {
	base
	baseURL string
	client  *http.Client
}

// NewDexScreener returns a DexScreener collector.
func NewDexScreener(em emit.Emitter) *DexScreener {
	return &DexScreener{
		base:    newBase("dexscreener", em),
		baseURL: "https://api.dexscreener.com",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *DexScreener) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		return c.fetch(ctx, query, opts)
	})
}

func (c *DexScreener) fetch(ctx context.Context, query string, opts Options) ([]Item, error) {
	var payload struct {
		Pairs []struct {
			ChainID   string `json:"chainId"`
			DexID     string `json:"dexId"`
			URL       string `json:"url"`
			PriceUsd  string `json:"priceUsd"`
			BaseToken struct {
				Address string `json:"address"`
				Name    string `json:"name"`
				Symbol  string `json:"symbol"`
			} `json:"baseToken"`
			Liquidity struct {
				USD float64 `json:"usd"`
			} `json:"liquidity"`
			Volume struct {
				H24 float64 `json:"h24"`
			} `json:"volume"`
			PriceChange struct {
				H24 float64 `json:"h24"`
			} `json:"priceChange"`
		} `json:"pairs"`
	}
	if err := getJSON(ctx, c.client, c.baseURL+"/latest/dex/search", url.Values{"q": {query}}, nil, &payload); err != nil {
		return nil, err
	}

	limit := opts.limitOr(5)
	items := make([]Item, 0, limit)
	for _, pair := range payload.Pairs {
		if len(items) >= limit {
			break
		}
		name, symbol := pair.BaseToken.Name, pair.BaseToken.Symbol
		if name == "" {
			name = "Unknown"
		}
		if symbol == "" {
			symbol = "?"
		}
		price := pair.PriceUsd
		if price == "" {
			price = "N/A"
		}
		content := fmt.Sprintf(
			"%s (%s) on %s: $%s. 24h change: %g%%. Liquidity: $%.0f. 24h volume: $%.0f. DEX: %s.",
			name, symbol, pair.ChainID, price, pair.PriceChange.H24, pair.Liquidity.USD, pair.Volume.H24, pair.DexID,
		)
		items = append(items, Item{
			Source:  "dexscreener",
			Title:   fmt.Sprintf("%s on %s - $%s", symbol, pair.ChainID, price),
			Content: content,
			URL:     pair.URL,
			Metadata: map[string]any{
				"chain":         pair.ChainID,
				"address":       pair.BaseToken.Address,
				"price_usd":     price,
				"liquidity_usd": pair.Liquidity.USD,
				"volume_24h":    pair.Volume.H24,
				"change_24h":    pair.PriceChange.H24,
			},
		})
	}
	return items, nil
}

func (c *DexScreener) Close() error { return closeClient(c.client) }
