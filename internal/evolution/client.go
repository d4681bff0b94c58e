// Package evolution talks to the Evolution API WhatsApp gateway.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxErrorBody caps how much of an error response is kept for logging.
const maxErrorBody = 4 << 10

// Config configures a Client.
type Config struct {
	BaseURL      string
	APIKey       string
	InstanceName string
	SendDelay    time.Duration
	Timeout      time.Duration
}

// Client sends messages and queries instance state through the Evolution API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an Evolution API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// InstanceName returns the configured gateway instance.
func (c *Client) InstanceName() string {
	return c.cfg.InstanceName
}

// BaseURL returns the configured gateway URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Delay  int64  `json:"delay"`
}

// Send delivers a text message to the given phone number.
func (c *Client) Send(ctx context.Context, to, text string) error {
	body, err := json.Marshal(sendTextRequest{
		Number: to,
		Text:   text,
		Delay:  c.cfg.SendDelay.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	endpoint := c.cfg.BaseURL + "/message/sendText/" + url.PathEscape(c.cfg.InstanceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send text to %s: %w", to, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("send text to %s: status %d: %s", to, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("Message sent", "identity", to)
	return nil
}

// ConnectionState returns the instance connection state as reported by the gateway.
func (c *Client) ConnectionState(ctx context.Context) (json.RawMessage, error) {
	endpoint := c.cfg.BaseURL + "/instance/connectionState/" + url.PathEscape(c.cfg.InstanceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build connection state request: %w", err)
	}
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query connection state: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("query connection state: status %d", resp.StatusCode)
	}

	var state json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("decode connection state: %w", err)
	}
	return state, nil
}
