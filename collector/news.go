package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/briefops/research-agent/emit"
)

// GoogleNews collects news articles from the Google News RSS search feed.
// Free, no API key.
type GoogleNews struct {
	base
	baseURL string
	client  *http.Client
	parser  *gofeed.Parser
}

// NewGoogleNews returns a collector over news.google.com/rss/search.
func NewGoogleNews(em emit.Emitter) *GoogleNews {
	return &GoogleNews{
		base:    newBase("google_news", em),
		baseURL: "https://news.google.com/rss/search",
		client:  &http.Client{Timeout: 30 * time.Second},
		parser:  gofeed.NewParser(),
	}
}

func (c *GoogleNews) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		return c.fetch(ctx, query, opts)
	})
}

func (c *GoogleNews) fetch(ctx context.Context, query string, opts Options) ([]Item, error) {
	params := url.Values{
		"q":    {query},
		"hl":   {"en-US"},
		"gl":   {"US"},
		"ceid": {"US:en"},
	}
	body, err := get(ctx, c.client, c.baseURL, params, nil)
	if err != nil {
		return nil, err
	}
	feed, err := c.parser.ParseString(string(body))
	if err != nil {
		return nil, err
	}

	limit := opts.limitOr(10)
	items := make([]Item, 0, limit)
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		items = append(items, Item{
			Source:      "google_news",
			Title:       entry.Title,
			Content:     entry.Description,
			URL:         entry.Link,
			PublishedAt: entry.Published,
		})
	}
	return items, nil
}

func (c *GoogleNews) Close() error { return closeClient(c.client) }

// RapidAPINews collects news via the RapidAPI real-time news host. Requires
// a RapidAPI key; Collect refuses without one.
type RapidAPINews struct {
	base
	apiKey  string
	host    string
	baseURL string
	client  *http.Client
}

// NewRapidAPINews returns a keyed news collector.
func NewRapidAPINews(apiKey string, em emit.Emitter) *RapidAPINews {
	const host = "real-time-news-data.p.rapidapi.com"
	return &RapidAPINews{
		base:    newBase("news", em),
		apiKey:  apiKey,
		host:    host,
		baseURL: "https://" + host,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RapidAPINews) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		return c.fetch(ctx, query, opts)
	})
}

func (c *RapidAPINews) fetch(ctx context.Context, query string, opts Options) ([]Item, error) {
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	params := url.Values{
		"query": {query},
		"limit": {itoa(opts.limitOr(10))},
		"lang":  {lang},
	}
	header := http.Header{
		"X-Rapidapi-Key":  {c.apiKey},
		"X-Rapidapi-Host": {c.host},
	}

	var payload struct {
		Data []struct {
			Title       string `json:"title"`
			Snippet     string `json:"snippet"`
			Link        string `json:"link"`
			PublishedAt string `json:"published_datetime_utc"`
			SourceName  string `json:"source_name"`
			SourceURL   string `json:"source_url"`
			PhotoURL    string `json:"photo_url"`
		} `json:"data"`
	}
	if err := getJSON(ctx, c.client, c.baseURL+"/search", params, header, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Data))
	for _, article := range payload.Data {
		items = append(items, Item{
			Source:      "news",
			Title:       article.Title,
			Content:     article.Snippet,
			URL:         article.Link,
			PublishedAt: article.PublishedAt,
			Metadata: map[string]any{
				"source_name": article.SourceName,
				"source_url":  article.SourceURL,
				"photo_url":   article.PhotoURL,
			},
		})
	}
	return items, nil
}

func (c *RapidAPINews) Close() error { return closeClient(c.client) }
