package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/resilience/circuitbreaker"
	"scoutengine/internal/resilience/retry"
)

// DiscordConfig configures a DiscordPublisher. Grounded on the teacher's
// notifier.DiscordConfig (Enabled/WebhookURL/Timeout).
type DiscordConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// DiscordPublisher posts Draft text to a Discord channel via an incoming
// webhook. Grounded on the teacher's notifier.DiscordNotifier: same rate
// limit (Discord's webhook cap is 30 requests/minute), same retry/backoff
// shape, generalized from a fixed article-embed payload to an arbitrary
// already-formatted message body.
type DiscordPublisher struct {
	webhookURL  string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retryConfig retry.Config
	breaker     *circuitbreaker.CircuitBreaker
}

// NewDiscordPublisher constructs a DiscordPublisher. Timeout defaults to
// 10s if unset.
func NewDiscordPublisher(cfg DiscordConfig) *DiscordPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DiscordPublisher{
		webhookURL:  cfg.WebhookURL,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(0.5), 3), // 30 req/min, burst 3
		retryConfig: retry.FeedFetchConfig(),
		breaker:     circuitbreaker.New(circuitbreaker.DefaultConfig("discord-publisher")),
	}
}

// Authenticate validates the webhook by issuing a GET against it: Discord
// returns the webhook's own metadata (200) for a valid, live webhook and a
// 401/404 for a revoked or mistyped one. The teacher's Notifier interface
// has no separate auth step; this is new surface area spec.md §6 calls for
// so a misconfigured Publisher is caught before a human approves a Draft
// that can never actually post.
func (d *DiscordPublisher) Authenticate(ctx context.Context) (bool, error) {
	if d.webhookURL == "" {
		return false, &entity.ConfigurationMissingError{Key: "DISCORD_WEBHOOK_URL"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.webhookURL, nil)
	if err != nil {
		return false, fmt.Errorf("discord authenticate: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false, &entity.TransientNetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

type discordMessagePayload struct {
	Content string `json:"content"`
}

type discordMessageResponse struct {
	ID string `json:"id"`
}

type discordErrorResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
}

// Publish sends text as a plain message via the webhook, with ?wait=true
// so Discord returns the created message object (its id becomes the
// Draft's external id). 5xx and network errors retry with backoff; 429 is
// surfaced as a typed RateLimitedError with zero local retry (the teacher
// sleeps in-process for retry_after; here the Review Bus's own poll loop
// provides the retry cadence); other 4xx are never retried.
func (d *DiscordPublisher) Publish(ctx context.Context, text string) (string, error) {
	if err := d.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("discord publish: rate limiter: %w", err)
	}

	var externalID string
	err := retry.WithBackoff(ctx, d.retryConfig, func() error {
		id, err := d.send(ctx, text)
		if err != nil {
			return err
		}
		externalID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return externalID, nil
}

func (d *DiscordPublisher) send(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(discordMessagePayload{Content: text})
	if err != nil {
		return "", fmt.Errorf("discord publish: marshal payload: %w", err)
	}

	result, err := d.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL+"?wait=true", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("discord publish: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return nil, &entity.TransientNetworkError{Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var msg discordMessageResponse
			if jsonErr := json.Unmarshal(respBody, &msg); jsonErr == nil {
				return msg.ID, nil
			}
			return "", nil
		}

		// 429 becomes the typed RateLimitedError immediately — never fed to
		// retry.WithBackoff's schedule. Discord's retry_after rides along so
		// the Review Bus can report when a manual retry is worth attempting.
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &entity.RateLimitedError{RetryAfter: extractRetryAfter(resp, respBody)}
		}
		// retry.HTTPError for everything else: retry.IsRetryable retries its
		// 5xx codes with backoff and rejects the remaining 4xx outright.
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	})
	if err != nil {
		slog.WarnContext(ctx, "discord publish attempt failed", slog.Any("error", err))
		return "", err
	}
	return result.(string), nil
}

func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var discordErr discordErrorResponse
	if err := json.Unmarshal(body, &discordErr); err == nil && discordErr.RetryAfter > 0 {
		return time.Duration(discordErr.RetryAfter * float64(time.Second))
	}
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}
