package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/briefops/research-agent/emit"
)

// Wikipedia collects from the Wikimedia APIs. Free, no key.
//
// The query doubles as a mode selector:
//   - "current events": bullets from the Portal:Current events page
//   - "on this day" / "today": historical events for today's date
//   - "featured": today's featured article plus most-read pages
//   - anything else: article search with REST summaries
type Wikipedia struct {
	base
	apiURL  string
	restURL string
	client  *http.Client
	now     func() time.Time
}

// NewWikipedia returns a Wikipedia collector.
func NewWikipedia(em emit.Emitter) *Wikipedia {
	return &Wikipedia{
		base:    newBase("wikipedia", em),
		apiURL:  "https://en.wikipedia.org/w/api.php",
		restURL: "https://en.wikipedia.org/api/rest_v1",
		client:  &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
	}
}

func (c *Wikipedia) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		normalized := strings.ToLower(strings.TrimSpace(query))
		switch normalized {
		case "current events", "current_events", "events":
			return c.fetchCurrentEvents(ctx, opts.limitOr(10))
		case "on this day", "on_this_day", "today":
			return c.fetchOnThisDay(ctx, opts.limitOr(5))
		case "featured":
			return c.fetchFeatured(ctx, opts.limitOr(5))
		default:
			return c.search(ctx, query, opts.limitOr(5))
		}
	})
}

func (c *Wikipedia) search(ctx context.Context, query string, limit int) ([]Item, error) {
	var payload struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {itoa(limit)},
		"format":   {"json"},
	}
	if err := getJSON(ctx, c.client, c.apiURL, params, nil, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Query.Search))
	for _, result := range payload.Query.Search {
		// The REST summary gives clean extract text; the search snippet is
		// HTML-tagged and only used when the summary call fails.
		extract, pageURL := c.fetchSummary(ctx, result.Title)
		if extract == "" {
			extract = stripTags(result.Snippet)
		}
		if pageURL == "" {
			pageURL = "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(result.Title, " ", "_"))
		}
		items = append(items, Item{
			Source:  "wikipedia",
			Title:   result.Title,
			Content: fmt.Sprintf("%s: %s", result.Title, extract),
			URL:     pageURL,
			Metadata: map[string]any{
				"page_title": result.Title,
			},
		})
	}
	return items, nil
}

func (c *Wikipedia) fetchSummary(ctx context.Context, title string) (extract, pageURL string) {
	var payload struct {
		Extract     string `json:"extract"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	endpoint := c.restURL + "/page/summary/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	if err := getJSON(ctx, c.client, endpoint, nil, nil, &payload); err != nil {
		return "", ""
	}
	extract = payload.Extract
	if len(extract) > 500 {
		extract = extract[:500]
	}
	return extract, payload.ContentURLs.Desktop.Page
}

// fetchCurrentEvents scrapes the rendered Portal:Current events page and
// returns its top-level bullets. The portal layout shifts occasionally, so
// parsing is best-effort.
func (c *Wikipedia) fetchCurrentEvents(ctx context.Context, limit int) ([]Item, error) {
	var payload struct {
		Parse struct {
			Text struct {
				HTML string `json:"*"`
			} `json:"text"`
		} `json:"parse"`
	}
	params := url.Values{
		"action": {"parse"},
		"page":   {"Portal:Current events"},
		"prop":   {"text"},
		"format": {"json"},
	}
	if err := getJSON(ctx, c.client, c.apiURL, params, nil, &payload); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload.Parse.Text.HTML))
	if err != nil {
		return nil, err
	}

	var items []Item
	doc.Find(".current-events-content li, .vevent li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if len(text) < 30 {
			return true
		}
		if len(text) > 500 {
			text = text[:500]
		}
		title := text
		if len(title) > 100 {
			title = title[:100] + "..."
		}
		link := "https://en.wikipedia.org/wiki/Portal:Current_events"
		if href, ok := sel.Find("a[href]").First().Attr("href"); ok && strings.HasPrefix(href, "/wiki/") {
			link = "https://en.wikipedia.org" + href
		}
		items = append(items, Item{
			Source:  "wikipedia_events",
			Title:   title,
			Content: text,
			URL:     link,
		})
		return len(items) < limit
	})
	return items, nil
}

func (c *Wikipedia) fetchOnThisDay(ctx context.Context, limit int) ([]Item, error) {
	today := c.now().UTC()
	var payload struct {
		Events []struct {
			Text  string `json:"text"`
			Year  int    `json:"year"`
			Pages []struct {
				ContentURLs struct {
					Desktop struct {
						Page string `json:"page"`
					} `json:"desktop"`
				} `json:"content_urls"`
			} `json:"pages"`
		} `json:"events"`
	}
	endpoint := fmt.Sprintf("%s/feed/onthisday/events/%02d/%02d", c.restURL, today.Month(), today.Day())
	if err := getJSON(ctx, c.client, endpoint, nil, nil, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, limit)
	for _, event := range payload.Events {
		if len(items) >= limit {
			break
		}
		link := ""
		if len(event.Pages) > 0 {
			link = event.Pages[0].ContentURLs.Desktop.Page
		}
		items = append(items, Item{
			Source:  "wikipedia_onthisday",
			Title:   fmt.Sprintf("%d: %s", event.Year, clip(event.Text, 100)),
			Content: fmt.Sprintf("On this day in %d: %s", event.Year, event.Text),
			URL:     link,
			Metadata: map[string]any{
				"year": event.Year,
			},
		})
	}
	return items, nil
}

func (c *Wikipedia) fetchFeatured(ctx context.Context, limit int) ([]Item, error) {
	today := c.now().UTC()
	var payload struct {
		TFA struct {
			Title       string `json:"title"`
			Extract     string `json:"extract"`
			ContentURLs struct {
				Desktop struct {
					Page string `json:"page"`
				} `json:"desktop"`
			} `json:"content_urls"`
		} `json:"tfa"`
		MostRead struct {
			Articles []struct {
				Title       string `json:"title"`
				Extract     string `json:"extract"`
				Views       int    `json:"views"`
				ContentURLs struct {
					Desktop struct {
						Page string `json:"page"`
					} `json:"desktop"`
				} `json:"content_urls"`
			} `json:"articles"`
		} `json:"mostread"`
	}
	endpoint := fmt.Sprintf("%s/feed/featured/%04d/%02d/%02d", c.restURL, today.Year(), today.Month(), today.Day())
	if err := getJSON(ctx, c.client, endpoint, nil, nil, &payload); err != nil {
		return nil, err
	}

	var items []Item
	if payload.TFA.Title != "" {
		items = append(items, Item{
			Source:  "wikipedia_featured",
			Title:   "Featured: " + payload.TFA.Title,
			Content: fmt.Sprintf("Today's featured article: %s. %s", payload.TFA.Title, clip(payload.TFA.Extract, 500)),
			URL:     payload.TFA.ContentURLs.Desktop.Page,
		})
	}
	for _, article := range payload.MostRead.Articles {
		if len(items) >= limit {
			break
		}
		items = append(items, Item{
			Source:  "wikipedia_featured",
			Title:   fmt.Sprintf("Trending: %s (%d views)", article.Title, article.Views),
			Content: fmt.Sprintf("%s: %s", article.Title, clip(article.Extract, 300)),
			URL:     article.ContentURLs.Desktop.Page,
			Metadata: map[string]any{
				"views": article.Views,
			},
		})
	}
	return items, nil
}

func (c *Wikipedia) Close() error { return closeClient(c.client) }

// clip truncates to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// stripTags removes the <span> highlighting MediaWiki puts in search
// snippets.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
