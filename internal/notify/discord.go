// Package notify delivers best-effort notifications to a Discord webhook.
// Delivery never blocks or fails the operation that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single webhook request.
	DefaultTimeout = 5 * time.Second
	// DefaultRateLimit stays under Discord's per-webhook limit of 5 requests
	// per 2 seconds.
	DefaultRateLimit = rate.Limit(2.0)

	embedColor  = 3447003
	titlePrefix = "Key Management: "
	footerText  = "T.E.S Access System"
)

// Message is a single notification.
type Message struct {
	Title       string
	Description string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Color       int         `json:"color"`
	Timestamp   string      `json:"timestamp"`
	Footer      embedFooter `json:"footer"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// DiscordClient posts embeds to a Discord webhook URL.
type DiscordClient struct {
	httpClient *http.Client
	webhookURL string
	limiter    *rate.Limiter
	now        func() time.Time
}

// Option configures a DiscordClient.
type Option func(*DiscordClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *DiscordClient) {
		c.httpClient = client
	}
}

// WithRateLimit sets a custom rate limit (requests per second).
func WithRateLimit(rps float64) Option {
	return func(c *DiscordClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewDiscordClient creates a client for webhookURL.
func NewDiscordClient(webhookURL string, opts ...Option) *DiscordClient {
	client := &DiscordClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		webhookURL: webhookURL,
		limiter:    rate.NewLimiter(DefaultRateLimit, 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Send makes one delivery attempt. Failures are not retried.
func (c *DiscordClient) Send(ctx context.Context, msg Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(webhookPayload{Embeds: []embed{{
		Title:       titlePrefix + msg.Title,
		Description: msg.Description,
		Color:       embedColor,
		Timestamp:   c.now().UTC().Format(time.RFC3339Nano),
		Footer:      embedFooter{Text: footerText},
	}}})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}
