package collector

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/briefops/research-agent/emit"
)

// DDGWeb searches DuckDuckGo through its HTML endpoint, which works without
// an API key. Result links are redirect URLs; the target is recovered from
// the uddg parameter.
type DDGWeb struct {
	base
	baseURL string
	client  *http.Client
}

// NewDDGWeb returns a DuckDuckGo web-search collector.
func NewDDGWeb(em emit.Emitter) *DDGWeb {
	return &DDGWeb{
		base:    newBase("ddg", em),
		baseURL: "https://html.duckduckgo.com/html/",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *DDGWeb) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		return ddgSearch(ctx, c.client, c.baseURL, query, url.Values{}, "ddg", opts.limitOr(8))
	})
}

func (c *DDGWeb) Close() error { return closeClient(c.client) }

// DDGNews is the news-leaning variant: it restricts results to the past
// week, which surfaces current coverage for most queries.
type DDGNews struct {
	base
	baseURL string
	client  *http.Client
}

// NewDDGNews returns a DuckDuckGo news collector.
func NewDDGNews(em emit.Emitter) *DDGNews {
	return &DDGNews{
		base:    newBase("ddg_news", em),
		baseURL: "https://html.duckduckgo.com/html/",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *DDGNews) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		params := url.Values{"df": {"w"}}
		q := query
		if !strings.Contains(strings.ToLower(query), "news") {
			q = query + " news"
		}
		return ddgSearch(ctx, c.client, c.baseURL, q, params, "ddg_news", opts.limitOr(8))
	})
}

func (c *DDGNews) Close() error { return closeClient(c.client) }

func ddgSearch(ctx context.Context, client *http.Client, baseURL, query string, params url.Values, source string, limit int) ([]Item, error) {
	params.Set("q", query)
	params.Set("kl", "us-en")
	body, err := get(ctx, client, baseURL, params, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	var items []Item
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find(".result__a").First()
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			return true
		}
		snippet := strings.Join(strings.Fields(sel.Find(".result__snippet").Text()), " ")
		href, _ := anchor.Attr("href")

		content := title
		if snippet != "" {
			content = title + ": " + snippet
		}
		items = append(items, Item{
			Source:  source,
			Title:   title,
			Content: clip(content, 600),
			URL:     ddgResultURL(href),
		})
		return len(items) < limit
	})
	return items, nil
}

// ddgResultURL unwraps DuckDuckGo's /l/?uddg=<target> redirect links.
func ddgResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
