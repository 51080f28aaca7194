package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/xilidan/meetings/services/meeting/events"
)

const TokenHeader = "X-Webhook-Token"

// Client posts meeting events as JSON to an HTTP endpoint, such as an n8n
// workflow. It implements events.Publisher.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

func New(url, token string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	log.Debug("creating webhook client", slog.String("url", url), slog.Bool("token_set", token != ""))
	return &Client{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With(slog.String("component", "webhook_client")),
	}
}

func (c *Client) Publish(ctx context.Context, e events.Event) error {
	jsonData, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}

	c.log.Debug("sending event",
		slog.String("event_type", e.EventType),
		slog.String("meeting_id", e.MeetingID),
		slog.Int("json_size", len(jsonData)),
	)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.Warn("webhook returned error",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
