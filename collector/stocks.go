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

// Stocks collects quotes from Yahoo Finance's unauthenticated endpoints.
//
// The query is a comma-separated list of tickers ("AAPL,MSFT"); the special
// query "market" expands to the major US indices. The batch v7 quote
// endpoint is tried first; when Yahoo rejects it (it intermittently demands
// a crumb), each symbol falls back to the v8 chart endpoint.
type Stocks struct {
	base
	quoteURL string
	chartURL string
	client   *http.Client
}

var marketIndices = []string{"^GSPC", "^DJI", "^IXIC", "^RUT", "^VIX"}

var indexNames = map[string]string{
	"^GSPC": "S&P 500",
	"^DJI":  "Dow Jones Industrial Average",
	"^IXIC": "NASDAQ Composite",
	"^RUT":  "Russell 2000",
	"^VIX":  "CBOE Volatility Index",
}

// NewStocks returns a Yahoo Finance collector.
func NewStocks(em emit.Emitter) *Stocks {
	return &Stocks{
		base:     newBase("stocks", em),
		quoteURL: "https://query1.finance.yahoo.com/v7/finance/quote",
		chartURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Stocks) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		symbols := parseSymbols(query)
		items, err := c.fetchQuotes(ctx, symbols)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		return c.fetchCharts(ctx, symbols)
	})
}

func parseSymbols(query string) []string {
	if strings.EqualFold(strings.TrimSpace(query), "market") {
		return marketIndices
	}
	var symbols []string
	for _, part := range strings.Split(query, ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

type yahooQuote struct {
	Symbol        string  `json:"symbol"`
	ShortName     string  `json:"shortName"`
	Price         float64 `json:"regularMarketPrice"`
	Change        float64 `json:"regularMarketChange"`
	ChangePercent float64 `json:"regularMarketChangePercent"`
	Volume        int64   `json:"regularMarketVolume"`
	MarketCap     float64 `json:"marketCap"`
	High52        float64 `json:"fiftyTwoWeekHigh"`
	Low52         float64 `json:"fiftyTwoWeekLow"`
}

func (c *Stocks) fetchQuotes(ctx context.Context, symbols []string) ([]Item, error) {
	var payload struct {
		QuoteResponse struct {
			Result []yahooQuote `json:"result"`
		} `json:"quoteResponse"`
	}
	params := url.Values{"symbols": {strings.Join(symbols, ",")}}
	if err := getJSON(ctx, c.client, c.quoteURL, params, nil, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.QuoteResponse.Result))
	for _, q := range payload.QuoteResponse.Result {
		items = append(items, quoteItem(q))
	}
	return items, nil
}

// fetchCharts queries the v8 chart endpoint one symbol at a time. Symbols
// that fail individually are skipped; an error is returned only when
// nothing resolved.
func (c *Stocks) fetchCharts(ctx context.Context, symbols []string) ([]Item, error) {
	var items []Item
	var lastErr error
	for _, symbol := range symbols {
		var payload struct {
			Chart struct {
				Result []struct {
					Meta struct {
						Symbol        string  `json:"symbol"`
						Price         float64 `json:"regularMarketPrice"`
						PreviousClose float64 `json:"chartPreviousClose"`
					} `json:"meta"`
				} `json:"result"`
			} `json:"chart"`
		}
		endpoint := c.chartURL + "/" + url.PathEscape(symbol)
		params := url.Values{"interval": {"1d"}, "range": {"5d"}}
		if err := getJSON(ctx, c.client, endpoint, params, nil, &payload); err != nil {
			lastErr = err
			continue
		}
		if len(payload.Chart.Result) == 0 {
			continue
		}
		meta := payload.Chart.Result[0].Meta
		change := meta.Price - meta.PreviousClose
		changePercent := 0.0
		if meta.PreviousClose != 0 {
			changePercent = change / meta.PreviousClose * 100
		}
		items = append(items, quoteItem(yahooQuote{
			Symbol:        meta.Symbol,
			Price:         meta.Price,
			Change:        change,
			ChangePercent: changePercent,
		}))
	}
	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return items, nil
}

func quoteItem(q yahooQuote) Item {
	name := q.ShortName
	if name == "" {
		if idx, ok := indexNames[q.Symbol]; ok {
			name = idx
		} else {
			name = q.Symbol
		}
	}
	direction := "up"
	if q.Change < 0 {
		direction = "down"
	}
	content := fmt.Sprintf(
		"%s (%s): $%.2f, %s %.2f (%+.2f%%) today.",
		name, q.Symbol, q.Price, direction, abs(q.Change), q.ChangePercent,
	)
	if q.MarketCap > 0 {
		content += " Market cap: " + formatMarketCap(q.MarketCap) + "."
	}
	if q.High52 > 0 {
		content += fmt.Sprintf(" 52-week range: $%.2f - $%.2f.", q.Low52, q.High52)
	}

	return Item{
		Source:  "stocks_yahoo",
		Title:   fmt.Sprintf("%s: $%.2f (%+.2f%%)", q.Symbol, q.Price, q.ChangePercent),
		Content: content,
		URL:     "https://finance.yahoo.com/quote/" + url.PathEscape(q.Symbol),
		Metadata: map[string]any{
			"symbol":         q.Symbol,
			"name":           name,
			"price":          q.Price,
			"change":         q.Change,
			"change_percent": q.ChangePercent,
			"volume":         q.Volume,
			"market_cap":     q.MarketCap,
		},
	}
}

func formatMarketCap(cap float64) string {
	switch {
	case cap >= 1e12:
		return fmt.Sprintf("$%.2fT", cap/1e12)
	case cap >= 1e9:
		return fmt.Sprintf("$%.2fB", cap/1e9)
	case cap >= 1e6:
		return fmt.Sprintf("$%.2fM", cap/1e6)
	default:
		return fmt.Sprintf("$%.0f", cap)
	}
}

func (c *Stocks) Close() error { return closeClient(c.client) }
