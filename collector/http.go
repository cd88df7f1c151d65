package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const userAgent = "research-agent/1.0 (research bot)"

// getJSON performs a GET with the given query params and decodes a JSON
// response body into v. Non-2xx statuses become errors.
func getJSON(ctx context.Context, client *http.Client, rawURL string, params url.Values, header http.Header, v any) error {
	body, err := get(ctx, client, rawURL, params, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// get performs a GET and returns the response body. Non-2xx statuses become
// errors carrying the status code.
func get(ctx context.Context, client *http.Client, rawURL string, params url.Values, header http.Header) ([]byte, error) {
	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Set(k, val)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// postJSON performs a POST with a JSON-encoded request body and decodes a
// JSON response body into v. Non-2xx statuses become errors.
func postJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, reqBody, v any) error {
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Set(k, val)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("POST %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }

// closeClient drops any idle connections a collector's private client holds.
// Collectors do not share clients across pipeline executions.
func closeClient(client *http.Client) error {
	client.CloseIdleConnections()
	return nil
}
