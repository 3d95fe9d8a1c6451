package copygen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client represents the copy generator service client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// GenerateRequest represents the request to generate outreach copy for a lead.
type GenerateRequest struct {
	OrderText    string `json:"order_text"`
	Language     string `json:"language"`
	ChannelTitle string `json:"channel_title"`
}

// GenerateResponse represents the generated outreach and DM texts.
type GenerateResponse struct {
	OutreachText string `json:"outreach_text"`
	DMText       string `json:"dm_text"`
}

// NewClient creates a new copy generator client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // LLM generation can be slow
		},
		logger: logger,
	}
}

// Generate produces the thread reply and DM texts for a lead.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("copy generator returned status %d", resp.StatusCode)
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if genResp.OutreachText == "" {
		return nil, fmt.Errorf("copy generator returned empty outreach text")
	}
	return &genResp, nil
}

// Ping checks if the copy generator service is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("copy generator health check failed with status %d", resp.StatusCode)
	}

	return nil
}
