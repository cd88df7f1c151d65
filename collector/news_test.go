package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleNewsRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Search results</title>
    <item>
      <title>AI breakthrough announced</title>
      <link>https://example.com/ai-breakthrough</link>
      <description>Researchers announce a major advance.</description>
      <pubDate>Mon, 24 Aug 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Markets react to AI news</title>
      <link>https://example.com/markets</link>
      <description>Tech stocks rally.</description>
      <pubDate>Mon, 24 Aug 2026 09:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestGoogleNewsCollect(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleNewsRSS))
	}))
	defer srv.Close()

	c := NewGoogleNews(nil)
	c.baseURL = srv.URL
	defer c.Close()

	items, err := c.Collect(context.Background(), "AI", Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if gotQuery != "AI" {
		t.Errorf("query param = %q, want AI", gotQuery)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "AI breakthrough announced" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].Source != "google_news" {
		t.Errorf("source = %q, want google_news", items[0].Source)
	}
	if items[0].URL != "https://example.com/ai-breakthrough" {
		t.Errorf("url = %q", items[0].URL)
	}
}

func TestGoogleNewsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleNewsRSS))
	}))
	defer srv.Close()

	c := NewGoogleNews(nil)
	c.baseURL = srv.URL
	defer c.Close()

	items, err := c.Collect(context.Background(), "AI", Options{Limit: 1})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item with Limit=1, got %d", len(items))
	}
}

func TestRapidAPINewsRequiresKey(t *testing.T) {
	c := NewRapidAPINews("", nil)
	defer c.Close()

	_, err := c.Collect(context.Background(), "anything", Options{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestRapidAPINewsCollect(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Rapidapi-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"title":"Headline","snippet":"Body","link":"https://example.com/a","published_datetime_utc":"2026-08-24T08:00:00Z","source_name":"Example"}]}`))
	}))
	defer srv.Close()

	c := NewRapidAPINews("secret", nil)
	c.baseURL = srv.URL
	defer c.Close()

	items, err := c.Collect(context.Background(), "headline", Options{})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("X-Rapidapi-Key = %q, want secret", gotKey)
	}
	if len(items) != 1 || items[0].Title != "Headline" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if items[0].Metadata["source_name"] != "Example" {
		t.Errorf("source_name metadata = %v", items[0].Metadata["source_name"])
	}
}
