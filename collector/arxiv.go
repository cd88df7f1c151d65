package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/briefops/research-agent/emit"
)

// Arxiv collects research papers from the arXiv Atom API. Free, no
// authentication; about three requests per second are tolerated.
//
// Query examples: "machine learning" (full-text), "cat:cs.AI" (category),
// "au:hinton" (author). The query is wrapped as all:<q> unless it already
// carries a field prefix.
type Arxiv struct {
	base
	baseURL string
	client  *http.Client
	parser  *gofeed.Parser
}

// NewArxiv returns an arXiv collector.
func NewArxiv(em emit.Emitter) *Arxiv {
	return &Arxiv{
		base:    newBase("arxiv", em),
		baseURL: "http://export.arxiv.org/api/query",
		client:  &http.Client{Timeout: 20 * time.Second},
		parser:  gofeed.NewParser(),
	}
}

func (c *Arxiv) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		return c.fetch(ctx, query, opts)
	})
}

func (c *Arxiv) fetch(ctx context.Context, query string, opts Options) ([]Item, error) {
	searchQuery := query
	if !strings.Contains(query, ":") {
		searchQuery = "all:" + query
	}
	sortBy := opts.Sort
	if sortBy == "" {
		sortBy = "submittedDate"
	}
	params := url.Values{
		"search_query": {searchQuery},
		"start":        {"0"},
		"max_results":  {itoa(opts.limitOr(10))},
		"sortBy":       {sortBy},
		"sortOrder":    {"descending"},
	}

	body, err := get(ctx, c.client, c.baseURL, params, nil)
	if err != nil {
		return nil, err
	}
	feed, err := c.parser.ParseString(string(body))
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		title := strings.ReplaceAll(strings.TrimSpace(entry.Title), "\n", " ")
		summary := strings.ReplaceAll(strings.TrimSpace(entry.Description), "\n", " ")

		var authors []string
		for _, person := range entry.Authors {
			if person != nil && person.Name != "" {
				authors = append(authors, person.Name)
			}
		}
		authorLine := strings.Join(firstN(authors, 3), ", ")
		if len(authors) > 3 {
			authorLine += fmt.Sprintf(" et al. (%d authors)", len(authors))
		}

		absURL, pdfURL := entry.Link, ""
		for _, link := range entry.Links {
			switch {
			case strings.Contains(link, "/pdf/"):
				pdfURL = link
			case absURL == "" && strings.Contains(link, "/abs/"):
				absURL = link
			}
		}

		arxivID := ""
		if idx := strings.LastIndex(entry.GUID, "/abs/"); idx >= 0 {
			arxivID = entry.GUID[idx+len("/abs/"):]
		}

		clipped := summary
		if len(clipped) > 500 {
			clipped = clipped[:500]
		}
		published := entry.Published
		publishedDay := published
		if len(publishedDay) > 10 {
			publishedDay = publishedDay[:10]
		}

		content := fmt.Sprintf(
			"Title: %s\nAuthors: %s\nAbstract: %s\nCategories: %s\nPublished: %s",
			title, authorLine, clipped, strings.Join(firstN(entry.Categories, 5), ", "), publishedDay,
		)

		link := absURL
		if link == "" {
			link = pdfURL
		}
		items = append(items, Item{
			Source:      "arxiv",
			Title:       title,
			Content:     content,
			URL:         link,
			PublishedAt: published,
			Metadata: map[string]any{
				"arxiv_id":   arxivID,
				"authors":    firstN(authors, 10),
				"categories": entry.Categories,
				"pdf_url":    pdfURL,
				"updated":    entry.Updated,
			},
		})
	}
	return items, nil
}

func (c *Arxiv) Close() error { return closeClient(c.client) }
