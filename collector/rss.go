package collector

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/briefops/research-agent/emit"
)

// RSSFeed pulls a fixed RSS feed and filters entries locally, since
// these feeds have no server-side search. An empty or "latest"/"top" query
// returns the newest entries unfiltered.
type RSSFeed struct {
	base
	feedURL string
	source  string
	client  *http.Client
	parser  *gofeed.Parser
}

func newRSSFeed(name, feedURL, source string, em emit.Emitter) *RSSFeed {
	return &RSSFeed{
		base:    newBase(name, em),
		feedURL: feedURL,
		source:  source,
		client:  &http.Client{Timeout: 15 * time.Second},
		parser:  gofeed.NewParser(),
	}
}

func (c *RSSFeed) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		return c.fetch(ctx, query, opts.limitOr(10))
	})
}

func (c *RSSFeed) fetch(ctx context.Context, query string, limit int) ([]Item, error) {
	body, err := get(ctx, c.client, c.feedURL, nil, nil)
	if err != nil {
		return nil, err
	}
	feed, err := c.parser.ParseString(string(body))
	if err != nil {
		return nil, err
	}

	filter := strings.ToLower(strings.TrimSpace(query))
	switch filter {
	case "latest", "top", "news":
		filter = ""
	}

	var items []Item
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		description := strings.Join(strings.Fields(stripTags(entry.Description)), " ")
		if filter != "" &&
			!strings.Contains(strings.ToLower(entry.Title), filter) &&
			!strings.Contains(strings.ToLower(description), filter) {
			continue
		}
		content := entry.Title
		if description != "" {
			content += ": " + clip(description, 500)
		}
		items = append(items, Item{
			Source:      c.source,
			Title:       entry.Title,
			Content:     content,
			URL:         entry.Link,
			PublishedAt: entry.Published,
		})
	}
	return items, nil
}

func (c *RSSFeed) Close() error { return closeClient(c.client) }

// NewTMZ returns a collector for the TMZ celebrity-news feed.
func NewTMZ(em emit.Emitter) *RSSFeed {
	return newRSSFeed("tmz", "https://www.tmz.com/rss.xml", "tmz", em)
}

// NewCryptoNews returns a collector for the CryptoPanic news feed.
func NewCryptoNews(em emit.Emitter) *RSSFeed {
	return newRSSFeed("cryptonews", "https://cryptopanic.com/news/rss/", "cryptonews", em)
}
