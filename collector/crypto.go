package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/briefops/research-agent/emit"
)

// CoinGecko collects crypto market data from the free CoinGecko API.
//
// The query doubles as a mode selector:
//   - "trending": coins trending on CoinGecko
//   - "market" / "top": top coins by market cap
//   - anything else: a specific coin by id or name (searched when the id
//     does not resolve directly)
type CoinGecko struct {
	base
	baseURL string
	client  *http.Client
}

// NewCoinGecko returns a CoinGecko collector.
func NewCoinGecko(em emit.Emitter) *CoinGecko {
	return &CoinGecko{
		base:    newBase("crypto", em),
		baseURL: "https://api.coingecko.com/api/v3",
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *CoinGecko) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		switch {
		case strings.EqualFold(query, "trending") || opts.Mode == "trending":
			return c.fetchTrending(ctx)
		case strings.EqualFold(query, "market") || strings.EqualFold(query, "top") || opts.Mode == "market":
			return c.fetchMarket(ctx, opts.limitOr(10))
		default:
			return c.fetchCoin(ctx, query)
		}
	})
}

func (c *CoinGecko) fetchTrending(ctx context.Context) ([]Item, error) {
	var payload struct {
		Coins []struct {
			Item struct {
				ID            string  `json:"id"`
				Name          string  `json:"name"`
				Symbol        string  `json:"symbol"`
				MarketCapRank int     `json:"market_cap_rank"`
				PriceBTC      float64 `json:"price_btc"`
			} `json:"item"`
		} `json:"coins"`
	}
	if err := getJSON(ctx, c.client, c.baseURL+"/search/trending", nil, nil, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Coins))
	for _, wrapper := range payload.Coins {
		coin := wrapper.Item
		items = append(items, Item{
			Source: "crypto_coingecko",
			Title:  fmt.Sprintf("Trending: %s (%s)", coin.Name, coin.Symbol),
			Content: fmt.Sprintf(
				"%s (%s) is trending on CoinGecko. Market cap rank: #%d. Price in BTC: %.8f.",
				coin.Name, coin.Symbol, coin.MarketCapRank, coin.PriceBTC,
			),
			URL: "https://www.coingecko.com/en/coins/" + coin.ID,
			Metadata: map[string]any{
				"coin_id":         coin.ID,
				"symbol":          coin.Symbol,
				"market_cap_rank": coin.MarketCapRank,
				"price_btc":       coin.PriceBTC,
			},
		})
	}
	return items, nil
}

type geckoMarket struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"current_price"`
	MarketCap float64 `json:"market_cap"`
	Change24h float64 `json:"price_change_percentage_24h"`
	Change7d  float64 `json:"price_change_percentage_7d_in_currency"`
	Volume    float64 `json:"total_volume"`
}

func (c *CoinGecko) fetchMarket(ctx context.Context, limit int) ([]Item, error) {
	params := url.Values{
		"vs_currency":             {"usd"},
		"order":                   {"market_cap_desc"},
		"per_page":                {itoa(limit)},
		"page":                    {"1"},
		"sparkline":               {"false"},
		"price_change_percentage": {"24h,7d"},
	}
	var coins []geckoMarket
	if err := getJSON(ctx, c.client, c.baseURL+"/coins/markets", params, nil, &coins); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(coins))
	for _, coin := range coins {
		symbol := strings.ToUpper(coin.Symbol)
		direction := "up"
		if coin.Change24h < 0 {
			direction = "down"
		}
		content := fmt.Sprintf(
			"%s (%s): $%.2f (%s %.1f%% 24h). Market cap: $%.0f. 24h volume: $%.0f. 7d change: %+.1f%%.",
			coin.Name, symbol, coin.Price, direction, abs(coin.Change24h), coin.MarketCap, coin.Volume, coin.Change7d,
		)
		items = append(items, Item{
			Source:  "crypto_coingecko",
			Title:   fmt.Sprintf("%s (%s) - $%.2f", coin.Name, symbol, coin.Price),
			Content: content,
			URL:     "https://www.coingecko.com/en/coins/" + coin.ID,
			Metadata: map[string]any{
				"coin_id":    coin.ID,
				"symbol":     symbol,
				"price_usd":  coin.Price,
				"market_cap": coin.MarketCap,
				"change_24h": coin.Change24h,
				"change_7d":  coin.Change7d,
				"volume_24h": coin.Volume,
			},
		})
	}
	return items, nil
}

type geckoCoin struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description struct {
		En string `json:"en"`
	} `json:"description"`
	MarketData struct {
		CurrentPrice map[string]float64 `json:"current_price"`
		MarketCap    map[string]float64 `json:"market_cap"`
		Change24h    float64            `json:"price_change_percentage_24h"`
		ATH          map[string]float64 `json:"ath"`
	} `json:"market_data"`
}

func (c *CoinGecko) fetchCoin(ctx context.Context, coinID string) ([]Item, error) {
	detailParams := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"community_data": {"false"},
	}

	var coin geckoCoin
	err := getJSON(ctx, c.client, c.baseURL+"/coins/"+strings.ToLower(coinID), detailParams, nil, &coin)
	if err != nil {
		// Unknown id: resolve by search, then retry the detail endpoint.
		var search struct {
			Coins []struct {
				ID string `json:"id"`
			} `json:"coins"`
		}
		if serr := getJSON(ctx, c.client, c.baseURL+"/search", url.Values{"query": {coinID}}, nil, &search); serr != nil {
			return nil, serr
		}
		if len(search.Coins) == 0 {
			return []Item{{
				Source:  "crypto_coingecko",
				Title:   "Coin not found: " + coinID,
				Content: fmt.Sprintf("No cryptocurrency found matching %q.", coinID),
			}}, nil
		}
		if err = getJSON(ctx, c.client, c.baseURL+"/coins/"+search.Coins[0].ID, detailParams, nil, &coin); err != nil {
			return nil, err
		}
	}

	symbol := strings.ToUpper(coin.Symbol)
	price := coin.MarketData.CurrentPrice["usd"]
	marketCap := coin.MarketData.MarketCap["usd"]
	ath := coin.MarketData.ATH["usd"]
	description := coin.Description.En
	if len(description) > 500 {
		description = description[:500]
	}

	content := fmt.Sprintf(
		"%s (%s): $%.2f (%+.1f%% 24h). Market cap: $%.0f. ATH: $%.2f. %s",
		coin.Name, symbol, price, coin.MarketData.Change24h, marketCap, ath, description,
	)

	return []Item{{
		Source:  "crypto_coingecko",
		Title:   fmt.Sprintf("%s (%s) - $%.2f", coin.Name, symbol, price),
		Content: content,
		URL:     "https://www.coingecko.com/en/coins/" + coin.ID,
		Metadata: map[string]any{
			"coin_id":    coin.ID,
			"symbol":     symbol,
			"price_usd":  price,
			"market_cap": marketCap,
			"change_24h": coin.MarketData.Change24h,
			"ath_usd":    ath,
		},
	}}, nil
}

func (c *CoinGecko) Close() error { return closeClient(c.client) }

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
