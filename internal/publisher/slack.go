package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/resilience/circuitbreaker"
	"scoutengine/internal/resilience/retry"
)

// SlackConfig configures a SlackPublisher. Grounded on the teacher's
// notifier.SlackConfig (Enabled/WebhookURL/Timeout).
type SlackConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// SlackPublisher posts Draft text to a Slack channel via an incoming
// webhook. Adapted from the teacher's notifier Slack channel: Slack's
// incoming-webhook limit is about 1 message/second, so the limiter allows
// 1 message/second with a burst of 2, looser than Discord's.
type SlackPublisher struct {
	webhookURL  string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retryConfig retry.Config
	breaker     *circuitbreaker.CircuitBreaker
}

func NewSlackPublisher(cfg SlackConfig) *SlackPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackPublisher{
		webhookURL:  cfg.WebhookURL,
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(1), 2),
		retryConfig: retry.FeedFetchConfig(),
		breaker:     circuitbreaker.New(circuitbreaker.DefaultConfig("slack-publisher")),
	}
}

// Authenticate checks the webhook is configured and well-formed. Slack
// incoming webhooks reject GET probes, so unlike Discord there is no
// cheap liveness check — a revoked webhook first shows up as a Publish
// failure, which the Review Bus surfaces with the Draft left in review.
func (s *SlackPublisher) Authenticate(_ context.Context) (bool, error) {
	if s.webhookURL == "" {
		return false, &entity.ConfigurationMissingError{Key: "SLACK_WEBHOOK_URL"}
	}
	if !strings.HasPrefix(s.webhookURL, "https://hooks.slack.com/services/") {
		return false, fmt.Errorf("slack authenticate: webhook URL must start with https://hooks.slack.com/services/")
	}
	return true, nil
}

type slackMessagePayload struct {
	Text string `json:"text"`
}

// Publish sends text as a plain message. Slack incoming webhooks return a
// bare "ok" body with no message id, so the external id recorded on the
// Draft is a locally-generated UUID — a correlation id for the engine's
// own records, not a Slack reference.
func (s *SlackPublisher) Publish(ctx context.Context, text string) (string, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("slack publish: rate limiter: %w", err)
	}

	err := retry.WithBackoff(ctx, s.retryConfig, func() error {
		return s.send(ctx, text)
	})
	if err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

func (s *SlackPublisher) send(ctx context.Context, text string) error {
	body, err := json.Marshal(slackMessagePayload{Text: text})
	if err != nil {
		return fmt.Errorf("slack publish: marshal payload: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("slack publish: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, &entity.TransientNetworkError{Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, nil
		}
		// Typed rate limit, no local retry; the Review Bus's poll cadence is
		// the retry schedule.
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &entity.RateLimitedError{}
		}
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	})
	if err != nil {
		slog.WarnContext(ctx, "slack publish attempt failed", slog.Any("error", err))
	}
	return err
}
