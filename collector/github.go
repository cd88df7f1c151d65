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

// GitHub collects repositories from the GitHub search API. Works without a
// token (60 req/hour); a token raises the limit to 5000.
//
// A "trending" query searches repos created in the last seven days, sorted
// by stars; any other query is a plain repository search.
type GitHub struct {
	base
	token   string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewGitHub returns a GitHub collector. token may be empty.
func NewGitHub(token string, em emit.Emitter) *GitHub {
	return &GitHub{
		base:    newBase("github", em),
		token:   token,
		baseURL: "https://api.github.com",
		client:  &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
	}
}

type githubRepo struct {
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	HTMLURL     string   `json:"html_url"`
	OpenIssues  int      `json:"open_issues_count"`
}

func (c *GitHub) Collect(ctx context.Context, query string, opts Options) ([]Item, error) {
	return c.retry(ctx, query, func(ctx context.Context) ([]Item, error) {
		q := query
		if strings.EqualFold(query, "trending") {
			weekAgo := c.now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
			q = "created:>" + weekAgo
		}
		if opts.Language != "" {
			q += " language:" + opts.Language
		}
		return c.search(ctx, q, opts.limitOr(10))
	})
}

func (c *GitHub) search(ctx context.Context, q string, limit int) ([]Item, error) {
	header := http.Header{"Accept": {"application/vnd.github.v3+json"}}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	params := url.Values{
		"q":        {q},
		"sort":     {"stars"},
		"order":    {"desc"},
		"per_page": {itoa(limit)},
	}

	var payload struct {
		Items []githubRepo `json:"items"`
	}
	if err := getJSON(ctx, c.client, c.baseURL+"/search/repositories", params, header, &payload); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(payload.Items))
	for _, repo := range payload.Items {
		description := repo.Description
		if description == "" {
			description = "No description"
		}
		language := repo.Language
		if language == "" {
			language = "Unknown"
		}
		topics := "none"
		if len(repo.Topics) > 0 {
			topics = strings.Join(firstN(repo.Topics, 5), ", ")
		}
		updated := repo.UpdatedAt
		if len(updated) > 10 {
			updated = updated[:10]
		}

		content := fmt.Sprintf(
			"%s: %s\nStars: %d | Forks: %d | Language: %s\nTopics: %s\nUpdated: %s",
			repo.FullName, description, repo.Stars, repo.Forks, language, topics, updated,
		)
		items = append(items, Item{
			Source:      "github",
			Title:       fmt.Sprintf("%s (%d stars)", repo.FullName, repo.Stars),
			Content:     content,
			URL:         repo.HTMLURL,
			PublishedAt: repo.CreatedAt,
			Metadata: map[string]any{
				"full_name":   repo.FullName,
				"stars":       repo.Stars,
				"forks":       repo.Forks,
				"language":    language,
				"topics":      firstN(repo.Topics, 10),
				"open_issues": repo.OpenIssues,
			},
		})
	}
	return items, nil
}

func (c *GitHub) Close() error { return closeClient(c.client) }

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
