// Package search finds candidate activity pages through the Firecrawl
// search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trailscout/internal/config"
	"trailscout/internal/core"
	"trailscout/internal/logging"
)

const (
	hardResultCap    = 10
	snippetLimit     = 200
	defaultUserLimit = 5
)

// Client calls the Firecrawl search endpoint.
type Client struct {
	apiKey           string
	baseURL          string
	maxResults       int
	maxRetries       int
	retryBackoffBase time.Duration
	httpClient       *http.Client
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchItem struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type searchResponse struct {
	Success bool         `json:"success"`
	Data    []searchItem `json:"data"`
	Warning string       `json:"warning,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// NewClient builds a search client from the application config.
func NewClient(cfg *config.Config) *Client {
	maxResults := cfg.Search.MaxResults
	if maxResults <= 0 {
		maxResults = defaultUserLimit
	}
	if maxResults > hardResultCap {
		maxResults = hardResultCap
	}
	maxRetries := cfg.Search.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		apiKey:           cfg.Search.APIKey,
		baseURL:          strings.TrimSuffix(cfg.Search.BaseURL, "/"),
		maxResults:       maxResults,
		maxRetries:       maxRetries,
		retryBackoffBase: 500 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: cfg.GetSearchTimeout(),
		},
	}
}

// Search runs the query and returns cleaned results. Results without a
// URL are dropped; snippets are truncated to 200 runes. A limit of 0
// means the configured maximum; the hard cap is 10 either way.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search API key not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	if limit <= 0 {
		limit = c.maxResults
	}
	if limit > hardResultCap {
		limit = hardResultCap
	}

	timer := logging.StartTimer(logging.CategorySearch, "search "+query)
	defer timer.Stop()

	payload, err := json.Marshal(searchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/search"
	var lastErr error

	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * c.retryBackoffBase)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			results, err := decodeResults(body, limit)
			if err != nil {
				return nil, err
			}
			logging.Search("query %q returned %d results", query, len(results))
			return results, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("search API rejected key (status %d)", resp.StatusCode)
		case resp.StatusCode == http.StatusPaymentRequired:
			return nil, fmt.Errorf("search API quota exhausted (status %d)", resp.StatusCode)
		default:
			lastErr = fmt.Errorf("search API error %d: %s", resp.StatusCode, truncateBody(body))
			continue
		}
	}

	logging.Search("query %q failed after retries: %v", query, lastErr)
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func decodeResults(body []byte, limit int) ([]core.SearchResult, error) {
	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("search API error: %s", decoded.Error)
	}

	results := make([]core.SearchResult, 0, len(decoded.Data))
	for i, item := range decoded.Data {
		if len(results) >= limit {
			break
		}
		if item.URL == "" {
			continue
		}
		title := item.Title
		if title == "" {
			title = fmt.Sprintf("Result %d", i+1)
		}
		results = append(results, core.SearchResult{
			URL:     item.URL,
			Title:   title,
			Snippet: truncateSnippet(item.Description),
		})
	}
	return results, nil
}

func truncateSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= snippetLimit {
		return s
	}
	return string(runes[:snippetLimit]) + "..."
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
