// Package publisher implements the outbound-posting seam spec.md §6
// defines: a small interface every concrete destination (Discord, a
// generic webhook, ...) satisfies, plus a no-op default for headless or
// demo operation. Grounded on the teacher's internal/infra/notifier
// package: a Notifier interface, one concrete webhook implementation, and
// a NoOpNotifier injected when the destination is disabled, generalized
// here from "notify about an article" to "publish this already-written
// text and report back an external id".
package publisher

import (
	"context"
	"log/slog"
)

// Publisher posts a Draft's already-composed text to one outbound
// platform. Authenticate is a separate step (spec.md §6) so the Review
// Bus can surface a configuration problem before a human spends time
// approving a Draft that can never actually post.
type Publisher interface {
	Authenticate(ctx context.Context) (bool, error)
	// Publish posts text and returns the destination's id for the created
	// post, if it has one.
	Publish(ctx context.Context, text string) (externalID string, err error)
}

// NoopPublisher logs what would have been posted and reports success
// without any network call, the same Null Object role the teacher's
// NoOpNotifier plays for a disabled notification channel. Used for
// platforms with no configured destination and for local/demo operation.
type NoopPublisher struct {
	Platform string
}

func (p NoopPublisher) Authenticate(_ context.Context) (bool, error) { return true, nil }

func (p NoopPublisher) Publish(ctx context.Context, text string) (string, error) {
	slog.InfoContext(ctx, "noop publisher: draft would be posted here",
		slog.String("platform", p.Platform), slog.Int("length", len(text)))
	return "", nil
}
