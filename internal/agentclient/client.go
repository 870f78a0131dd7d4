// Package agentclient invokes named, server-side-configured LLM agents over
// the ml-commons execute API.
package agentclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/jsonx"
)

// Client executes agents against one agent backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds configuration for the agent client.
type Config struct {
	BaseURL string
	// Timeout is applied to the underlying http.Client. Zero means no
	// client-level timeout.
	Timeout time.Duration
}

// New creates an agent client.
func New(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("agentclient"),
	}
}

// executeRequest is the body of an agent execute call.
type executeRequest struct {
	Parameters map[string]string `json:"parameters"`
}

// Output is one output slot of an inference result.
type Output struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// InferenceResult groups the outputs of one inference pass.
type InferenceResult struct {
	Output []Output `json:"output"`
}

// Response is the agent execution envelope.
type Response struct {
	InferenceResults []InferenceResult `json:"inference_results"`
}

// FirstResult returns the first output's result string, reporting false
// when any level of the envelope is absent.
func (r *Response) FirstResult() (string, bool) {
	if r == nil || len(r.InferenceResults) == 0 || len(r.InferenceResults[0].Output) == 0 {
		return "", false
	}
	res := r.InferenceResults[0].Output[0].Result
	return res, res != ""
}

// Execute runs the named agent configuration with the given parameters.
func (c *Client) Execute(ctx context.Context, agentName string, params map[string]string) (*Response, error) {
	endpoint := fmt.Sprintf("%s/_plugins/_ml/agents/%s/_execute", c.baseURL, url.PathEscape(agentName))

	jsonBody, err := jsonx.Marshal(executeRequest{Parameters: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Executing agent",
		zap.String("agent", agentName),
		zap.Int("parameters", len(params)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("agent backend error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var agentResp Response
	if err := jsonx.Unmarshal(body, &agentResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("Agent response received",
		zap.String("agent", agentName),
		zap.Int("inference_results", len(agentResp.InferenceResults)))

	return &agentResp, nil
}
