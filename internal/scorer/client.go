// Package scorer is the HTTP client for the external relevance and sentiment
// scoring service. Only the contract the engine needs is modeled here; the
// model internals live behind the service boundary.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anichkay-yyy/client-pipeline/internal/models"
)

// Client is a client for the scorer service API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ScoreRequest represents a single message scoring request.
type ScoreRequest struct {
	Text         string   `json:"text"`
	TargetStacks []string `json:"target_stacks,omitempty"`
}

// ScoreResult represents the scoring outcome with extracted order fields.
type ScoreResult struct {
	Relevant bool    `json:"relevant"`
	Score    float64 `json:"score"`
	Budget   *string `json:"budget,omitempty"`
	Stack    *string `json:"stack,omitempty"`
	Deadline *string `json:"deadline,omitempty"`
	Language *string `json:"language,omitempty"`
	Summary  *string `json:"summary,omitempty"`
}

// SentimentRequest represents a reply sentiment request.
type SentimentRequest struct {
	OutreachText string `json:"outreach_text"`
	ReplyText    string `json:"reply_text"`
}

// SentimentResult represents the sentiment classification of a reply.
type SentimentResult struct {
	Sentiment models.Sentiment `json:"sentiment"`
}

// NewClient creates a new scorer service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Score classifies a single message. Unavailability is returned as an error;
// the caller must never substitute a default verdict.
func (c *Client) Score(ctx context.Context, text string, targetStacks []string) (*ScoreResult, error) {
	var result ScoreResult
	if err := c.post(ctx, "/api/v1/score", ScoreRequest{Text: text, TargetStacks: targetStacks}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Sentiment classifies an inbound reply against the outreach that produced it.
func (c *Client) Sentiment(ctx context.Context, outreachText, replyText string) (models.Sentiment, error) {
	var result SentimentResult
	if err := c.post(ctx, "/api/v1/sentiment", SentimentRequest{OutreachText: outreachText, ReplyText: replyText}, &result); err != nil {
		return "", err
	}
	if result.Sentiment == "" {
		return models.SentimentUnclear, nil
	}
	return result.Sentiment, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, out interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("scorer service returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
