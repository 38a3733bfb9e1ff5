package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"foampilot/internal/logging"
)

// ReasonerClient talks to the reasoning service's intent endpoints.
// Implements Reasoner.
type ReasonerClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// ReasonerConfig holds configuration for the reasoner client.
type ReasonerConfig struct {
	BaseURL string
	Model   string // model alias resolved server-side, may be empty
}

// DefaultReasonerConfig returns sensible defaults for a local service.
func DefaultReasonerConfig() ReasonerConfig {
	return ReasonerConfig{
		BaseURL: "http://localhost:8100",
	}
}

// NewReasonerClient creates a reasoner client. Like the bridge client
// it carries no timeout; cancellation comes from the request context.
func NewReasonerClient(cfg ReasonerConfig) *ReasonerClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultReasonerConfig().BaseURL
	}
	return &ReasonerClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{},
	}
}

type intentRequest struct {
	Requirement string `json:"requirement"`
	Model       string `json:"model,omitempty"`
}

// Check runs the pre-validation call and returns the raw reply body.
// The body is LLM-shaped and unreliable; callers normalize it.
func (c *ReasonerClient) Check(ctx context.Context, requirement string) (string, error) {
	logging.API("reasoner check: %d chars", len(requirement))
	data, err := c.post(ctx, "/intent/collect", intentRequest{Requirement: requirement, Model: c.model})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type translateResponse struct {
	Text string `json:"text"`
}

// Translate converts the request into the canonical English requirement.
func (c *ReasonerClient) Translate(ctx context.Context, requirement string) (string, error) {
	logging.API("reasoner translate: %d chars", len(requirement))
	data, err := c.post(ctx, "/intent/translate", intentRequest{Requirement: requirement, Model: c.model})
	if err != nil {
		return "", err
	}
	var out translateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// post sends a JSON request and returns the body, converting non-2xx
// replies through ErrorText.
func (c *ReasonerClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ErrorText(resp.StatusCode, http.StatusText(resp.StatusCode), data)
		logging.APIError("reasoner %s failed: %s", path, msg)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return data, nil
}
