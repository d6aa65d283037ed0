package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/resilience/retry"
)

// WebhookChannel surfaces drafts by POSTing them to a chat webhook
// (Discord-style "content" payload). It is the outbound half only: the
// verdict entry points are still Approve/Reject/Refine on the Bus, called
// by whatever front-end reads the channel. Adapted from the teacher's
// notifier webhook channels, trimmed to the single surfacing concern.
type WebhookChannel struct {
	url        string
	httpClient *http.Client
}

func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *WebhookChannel) Surface(ctx context.Context, d *entity.Draft) error {
	text := fmt.Sprintf(
		"**Draft #%d awaiting review** (platform: %s)\n\n%s\n\nReply with: scoutctl review approve %d | reject %d | refine %d \"...\"",
		d.ID, d.Platform, d.Content, d.ID, d.ID, d.ID)

	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return fmt.Errorf("surface draft %d: marshal: %w", d.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("surface draft %d: build request: %w", d.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &entity.TransientNetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return nil
}
