// Package searchclient provides an HTTP client for the OpenSearch-compatible
// search backend. It covers the small surface the assistant consumes:
// index mappings, sample documents, and cluster health.
package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/jsonx"
)

// SampleSize is the number of documents fetched per sample query.
const SampleSize = 5

// Client talks to a single search cluster.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds configuration for a search client.
type Config struct {
	BaseURL string
	// Timeout is applied to the underlying http.Client. Zero means no
	// client-level timeout; the transport's behavior is inherited as-is.
	Timeout time.Duration
}

// New creates a search client for one cluster.
func New(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("searchclient"),
	}
}

// GetMapping fetches the raw mapping document for an index.
func (c *Client) GetMapping(ctx context.Context, index string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/%s/_mapping", c.baseURL, url.PathEscape(index))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("Fetching index mapping", zap.String("index", index))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend error (status %d): %s", resp.StatusCode, string(body))
	}

	return json.RawMessage(body), nil
}

// searchResponse is the subset of the _search response the assistant reads.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SampleDocuments fetches up to SampleSize documents from an index using a
// match_all query and returns their _source payloads.
func (c *Client) SampleDocuments(ctx context.Context, index string) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/%s/_search", c.baseURL, url.PathEscape(index))

	reqBody := map[string]interface{}{
		"size": SampleSize,
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
	}
	jsonBody, err := jsonx.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Fetching sample documents",
		zap.String("index", index),
		zap.Int("size", SampleSize))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search backend error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp searchResponse
	if err := jsonx.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	samples := make([]json.RawMessage, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		samples = append(samples, hit.Source)
	}
	return samples, nil
}

// Health checks cluster reachability.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_cluster/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("search backend error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
