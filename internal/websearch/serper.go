// Package websearch fetches supplementary web results through the Serper
// API. Web results are appended to retrieval responses, never ranked
// against document results.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
)

// DefaultEndpoint is the Serper search endpoint.
const DefaultEndpoint = "https://google.serper.dev/search"

// DefaultTimeout bounds each search request.
const DefaultTimeout = 10 * time.Second

// Result is a single web hit.
type Result struct {
	// Title is the page title.
	Title string

	// Snippet is the result summary text.
	Snippet string

	// URL is the page link.
	URL string
}

// Searcher runs web searches. Implemented by the Serper client.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Config configures the Serper client.
type Config struct {
	// APIKey authenticates with Serper. Empty disables the client.
	APIKey string

	// Endpoint overrides the API URL (tests).
	Endpoint string

	// Timeout bounds each request (default: 10s).
	Timeout time.Duration
}

// SerperClient calls the Serper search API.
type SerperClient struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// Verify interface implementation at compile time.
var _ Searcher = (*SerperClient)(nil)

// NewSerperClient creates the client. Returns an error when no API key is
// configured; callers treat that as web search being unavailable.
func NewSerperClient(cfg Config, logger *slog.Logger) (*SerperClient, error) {
	if cfg.APIKey == "" {
		return nil, ragerr.ConfigError("web search enabled but no serper api key configured", nil)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SerperClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// serperResponse is the subset of the Serper payload we consume.
type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic"`
}

// Search returns up to limit organic results for the query.
func (s *SerperClient) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	body, err := json.Marshal(map[string]any{
		"q":   query,
		"num": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ragerr.SourceUnavailable("web", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ragerr.SourceUnavailable("web",
			fmt.Errorf("serper returned status %d: %s", resp.StatusCode, string(snippet)))
	}

	var payload serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, ragerr.SourceUnavailable("web", fmt.Errorf("decode response: %w", err))
	}

	results := make([]Result, 0, limit)
	for _, o := range payload.Organic {
		results = append(results, Result{
			Title:   o.Title,
			Snippet: o.Snippet,
			URL:     o.Link,
		})
		if len(results) == limit {
			break
		}
	}

	s.logger.Debug("web search completed",
		slog.String("query", query),
		slog.Int("results", len(results)))
	return results, nil
}
