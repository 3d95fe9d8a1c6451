// Package gateway is the HTTP client for the platform gateway service, the
// crawler/transport collaborator that owns the actual messaging session.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Transport error taxonomy surfaced by the gateway.
var (
	// ErrPeerFlood means the platform flagged the account for aggressive
	// outreach. All sending must pause.
	ErrPeerFlood = errors.New("gateway reported peer flood")
	// ErrWriteForbidden means the target chat does not accept our messages.
	ErrWriteForbidden = errors.New("gateway cannot write to chat")
	// ErrPrivacyRestricted means the target user does not accept DMs.
	ErrPrivacyRestricted = errors.New("target user restricts direct messages")
)

// Message represents one collected channel message from the gateway.
type Message struct {
	PlatformMsgID int64     `json:"platform_msg_id"`
	SenderID      *int64    `json:"sender_id"`
	SenderHandle  string    `json:"sender_handle"`
	Text          string    `json:"text"`
	PublishedAt   time.Time `json:"published_at"`
}

// Channel represents a channel known to the gateway.
type Channel struct {
	PlatformID int64  `json:"platform_id"`
	Handle     string `json:"handle"`
	Title      string `json:"title"`
	Reachable  bool   `json:"reachable"`
}

// InboundEvent is one raw inbound message event: a DM to our account or a
// reply inside a thread we posted in. Events are strictly ordered by ID so a
// restart resumes from the last acknowledged event.
type InboundEvent struct {
	EventID        int64     `json:"event_id"`
	PlatformMsgID  int64     `json:"platform_msg_id"`
	SenderID       int64     `json:"sender_id"`
	SenderHandle   string    `json:"sender_handle"`
	ConversationID int64     `json:"conversation_id"`
	IsDirect       bool      `json:"is_direct"`
	ReplyToMsgID   *int64    `json:"reply_to_msg_id,omitempty"`
	Text           string    `json:"text"`
	ReceivedAt     time.Time `json:"received_at"`
}

type sendRequest struct {
	ChatID       int64  `json:"chat_id"`
	ReplyToMsgID *int64 `json:"reply_to_msg_id,omitempty"`
	Text         string `json:"text"`
}

type sendResponse struct {
	PlatformMsgID int64  `json:"platform_msg_id"`
	Error         string `json:"error,omitempty"`
}

// Client for interacting with the platform gateway service. Outbound sends
// are paced by a shared rate limiter on top of the scheduler's own delays.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a new gateway API client. sendRatePerMinute caps how fast
// outbound sends leave the process regardless of caller.
func NewClient(baseURL string, timeout time.Duration, sendRatePerMinute float64, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(sendRatePerMinute/60.0), 1),
		logger:  logger,
	}
}

// Collect fetches channel messages newer than afterMsgID.
func (c *Client) Collect(ctx context.Context, channelPlatformID, afterMsgID int64) ([]Message, error) {
	url := fmt.Sprintf("%s/api/v1/collect?channel_id=%d&after_msg_id=%d", c.baseURL, channelPlatformID, afterMsgID)
	var response struct {
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, url, &response); err != nil {
		return nil, err
	}
	return response.Messages, nil
}

// Channels fetches channels currently visible to the gateway, including
// reachability so dead sources can be deactivated.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var response struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.get(ctx, c.baseURL+"/api/v1/channels", &response); err != nil {
		return nil, err
	}
	return response.Channels, nil
}

// ResolveHandle looks up a channel by its public @handle. Handles the
// platform does not know resolve to nil rather than an error.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (*Channel, error) {
	u := fmt.Sprintf("%s/api/v1/resolve?handle=%s", c.baseURL, url.QueryEscape(handle))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to make request to gateway", zap.Error(err))
		return nil, fmt.Errorf("failed to make request to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Gateway returned non-OK status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("gateway returned status: %d", resp.StatusCode)
	}

	var response struct {
		Channel Channel `json:"channel"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &response.Channel, nil
}

// SendThreadReply posts a reply into a channel thread and returns the platform
// message id of the sent message.
func (c *Client) SendThreadReply(ctx context.Context, chatID, replyToMsgID int64, text string) (int64, error) {
	return c.send(ctx, "/api/v1/send/thread", sendRequest{ChatID: chatID, ReplyToMsgID: &replyToMsgID, Text: text})
}

// SendDM sends a direct message to a user.
func (c *Client) SendDM(ctx context.Context, userID int64, text string) (int64, error) {
	return c.send(ctx, "/api/v1/send/dm", sendRequest{ChatID: userID, Text: text})
}

// Inbound fetches raw inbound events newer than afterEventID. The stream is
// unbounded and restartable: callers persist the last acknowledged id.
func (c *Client) Inbound(ctx context.Context, afterEventID int64) ([]InboundEvent, error) {
	url := fmt.Sprintf("%s/api/v1/inbound?after_event_id=%d", c.baseURL, afterEventID)
	var response struct {
		Events []InboundEvent `json:"events"`
	}
	if err := c.get(ctx, url, &response); err != nil {
		return nil, err
	}
	return response.Events, nil
}

func (c *Client) send(ctx context.Context, path string, req sendRequest) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return result.PlatformMsgID, nil
	case http.StatusTooManyRequests:
		c.logger.Error("Gateway reported peer flood", zap.String("path", path))
		return 0, ErrPeerFlood
	case http.StatusForbidden:
		if result.Error == "privacy_restricted" {
			return 0, ErrPrivacyRestricted
		}
		return 0, ErrWriteForbidden
	default:
		return 0, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, result.Error)
	}
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Error("Failed to create request to gateway", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to make request to gateway", zap.Error(err))
		return fmt.Errorf("failed to make request to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Gateway returned non-OK status", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("gateway returned status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("Failed to decode gateway response", zap.Error(err))
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
