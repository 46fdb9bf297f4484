// Package notify sends attendance notices to parents through the messaging gateway.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Message is one outbound SMS/alimtalk request.
type Message struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	Channel   string `json:"channel"`
	Reference string `json:"reference,omitempty"`
}

// Client calls the messaging gateway.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Skip    bool
	log     *zap.Logger
}

// New creates a client. In skip mode messages are logged instead of sent.
func New(baseURL, token string, skip bool, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Skip:    skip,
		log:     log,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts m to /messages.
func (c *Client) Send(ctx context.Context, m Message) error {
	if c.Skip {
		c.log.Info("notification skipped", zap.String("to", mask(m.To)), zap.String("reference", m.Reference))
		return nil
	}
	if m.To == "" {
		return fmt.Errorf("recipient required")
	}

	body, _ := json.Marshal(m)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("messaging request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("messaging error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}

// Health checks if the gateway is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("messaging unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("messaging unhealthy: %s", resp.Status)
	}
	return nil
}

// mask keeps the last four digits of a phone number.
func mask(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
