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

// Reddit collects posts from Reddit's public JSON endpoints. No OAuth
// required; roughly one request per second is tolerated.
//
// Queries of the form "r/<name>" (or "/r/<name>") list that subreddit;
// anything else is a site-wide search.
type Reddit struct {
	base
	baseURL string
	client  *http.Client
}

// NewReddit returns a Reddit collector.
func NewReddit(em emit.Emitter) *Reddit {
	return &Reddit{
		base:    newBase("reddit", em),
		baseURL: "https://www.reddit.com",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				SelfText    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				Author      string  `json:"author"`
				Permalink   string  `json:"permalink"`
				CreatedUTC  float64 `json:"created_utc"`
				URL         string  `json:"url"`
				IsSelf      bool    `json:"is_self"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (c *Reddit) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		limit := opts.limitOr(10)
		sort := opts.Sort
		if sort == "" {
			sort = "hot"
		}
		if sub, ok := subredditName(query); ok {
			return c.fetchSubreddit(ctx, sub, limit, sort)
		}
		return c.fetchSearch(ctx, query, limit)
	})
}

// subredditName extracts "technology" from "r/technology" or "/r/technology".
func subredditName(query string) (string, bool) {
	trimmed := strings.TrimPrefix(query, "/")
	if strings.HasPrefix(trimmed, "r/") {
		return strings.TrimPrefix(trimmed, "r/"), true
	}
	return "", false
}

func (c *Reddit) fetchSubreddit(ctx context.Context, subreddit string, limit int, sort string) ([]Item, error) {
	var listing redditListing
	endpoint := fmt.Sprintf("%s/r/%s/%s.json", c.baseURL, subreddit, sort)
	params := url.Values{"limit": {itoa(limit)}, "raw_json": {"1"}}
	if err := getJSON(ctx, c.client, endpoint, params, nil, &listing); err != nil {
		return nil, err
	}
	return c.parseListing(listing, "r/"+subreddit), nil
}

func (c *Reddit) fetchSearch(ctx context.Context, query string, limit int) ([]Item, error) {
	var listing redditListing
	params := url.Values{
		"q":        {query},
		"limit":    {itoa(limit)},
		"sort":     {"relevance"},
		"t":        {"week"},
		"raw_json": {"1"},
	}
	if err := getJSON(ctx, c.client, c.baseURL+"/search.json", params, nil, &listing); err != nil {
		return nil, err
	}
	return c.parseListing(listing, "search:"+query), nil
}

func (c *Reddit) parseListing(listing redditListing, sourceLabel string) []Item {
	var items []Item
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Title == "" {
			continue
		}

		selftext := post.SelfText
		if len(selftext) > 500 {
			selftext = selftext[:500]
		}
		author := post.Author
		if author == "" {
			author = "[deleted]"
		}

		content := fmt.Sprintf("[r/%s] %s", post.Subreddit, post.Title)
		if selftext != "" {
			content += "\n\n" + selftext
		}
		content += fmt.Sprintf("\n\nScore: %d | Comments: %d | Author: u/%s", post.Score, post.NumComments, author)

		link := post.URL
		if post.Permalink != "" {
			link = "https://www.reddit.com" + post.Permalink
		}

		externalURL := ""
		if !post.IsSelf {
			externalURL = post.URL
		}

		items = append(items, Item{
			Source:      "reddit_" + sourceLabel,
			Title:       post.Title,
			Content:     content,
			URL:         link,
			PublishedAt: fmt.Sprintf("%d", int64(post.CreatedUTC)),
			Metadata: map[string]any{
				"subreddit":    post.Subreddit,
				"score":        post.Score,
				"num_comments": post.NumComments,
				"author":       author,
				"is_self":      post.IsSelf,
				"external_url": externalURL,
			},
		})
	}
	return items
}

func (c *Reddit) Close() error { return closeClient(c.client) }
