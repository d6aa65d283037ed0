// Command scoutd is the Scout Engine daemon: it opens the embedded store,
// runs migrations, takes the single-instance PID lock, and starts the
// scheduler (scout cron jobs + review-bus poll) alongside the metrics and
// health HTTP server. SIGINT/SIGTERM stop it gracefully, awaiting or
// cooperatively cancelling in-flight runs.
package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scoutengine/internal/agent"
	"scoutengine/internal/config"
	"scoutengine/internal/dedup"
	"scoutengine/internal/feedback"
	"scoutengine/internal/infra/adapter/persistence/sqlite"
	"scoutengine/internal/infra/db"
	"scoutengine/internal/observability/logging"
	"scoutengine/internal/publisher"
	"scoutengine/internal/review"
	"scoutengine/internal/scheduler"
	"scoutengine/internal/scout"
	"scoutengine/internal/sourceadapter"
)

const stopGracePeriod = 30 * time.Second

func main() {
	logger := logging.NewLogger()

	cfg, err := config.LoadEngineConfig()
	if err != nil {
		logger.Error("failed to load engine configuration", slog.Any("error", err))
		os.Exit(1)
	}

	database := db.Open(cfg.DatabasePath)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}

	sched, bus := buildEngine(cfg, database, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus.CheckPublishers(ctx); err != nil {
		// A bad publisher is worth knowing at startup but should not keep
		// scouting itself from running; approve will fail loudly later.
		logger.Warn("publisher authentication check failed", slog.Any("error", err))
	}

	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler refused to start", slog.Any("error", err))
		if errors.Is(err, db.ErrAlreadyRunning) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	srv := startServer(ctx, cfg, sched, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info("shutdown signal received", slog.String("signal", received.String()))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopGracePeriod)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Error("scheduler stop failed", slog.Any("error", err))
	}
	shutdownServer(srv, logger)
}

// buildEngine wires every component of the engine the way the teacher's
// setupFetchService wires its fetch pipeline: repositories first, then the
// external-facing clients, then the orchestrating services.
func buildEngine(cfg *config.EngineConfig, database *sql.DB, logger *slog.Logger) (*scheduler.Scheduler, *review.Bus) {
	scoutRepo := sqlite.NewScoutRepo(database)
	draftRepo := sqlite.NewDraftRepo(database)
	feedRepo := sqlite.NewFeedRepo(database)
	entryRepo := sqlite.NewEntryRepo(database)
	feedbackRepo := sqlite.NewFeedbackRepo(database)
	calibrationRepo := sqlite.NewCalibrationRepo(database)
	fingerprintRepo := sqlite.NewFingerprintRepo(database)

	memBudget := cfg.EmbedderMemoryBudgetMB
	embedder := dedup.NewLazyEmbedder(func() dedup.Embedder {
		return dedup.NewDefaultEmbedder(memBudget)
	})
	dedupStore := dedup.NewStore(fingerprintRepo, embedder, cfg.SemanticDedup)

	adapterClient := createHTTPClient(30 * time.Second)
	scrapeClient := createHTTPClient(10 * time.Second)
	registry := sourceadapter.NewRegistry(
		sourceadapter.NewRSSAdapter(feedRepo, entryRepo, adapterClient),
		sourceadapter.NewRedditAdapter(adapterClient),
		sourceadapter.NewSearchAdapter(adapterClient),
		sourceadapter.NewArxivAdapter(adapterClient),
		sourceadapter.NewHTTPAdapter(scrapeClient),
	)

	runtime, err := agent.NewRuntime(cfg, agent.RuntimeConfig{Provider: cfg.Provider})
	if err != nil {
		logger.Error("failed to initialize agent runtime", slog.Any("error", err))
		os.Exit(1)
	}

	executor := scout.NewExecutor(scoutRepo, draftRepo, dedupStore, registry, runtime, nil, cfg.LogDir, logger)
	feedbackSvc := feedback.NewService(scoutRepo, feedbackRepo, calibrationRepo, runtime, logger)

	bus := review.NewBus(draftRepo, scoutRepo, dedupStore, feedbackSvc, runtime,
		loadHumanChannel(logger), loadPublishers(logger), logger)

	sched := scheduler.New(scoutRepo, executor, bus, scheduler.Config{
		Timezone:           cfg.DefaultTimezone,
		PIDPath:            cfg.PIDPath,
		ReviewPollInterval: cfg.ReviewPollInterval,
	}, logger)

	return sched, bus
}

// loadPublishers builds the platform->Publisher map from environment
// configuration, one entry per configured destination. Unconfigured
// platforms fall back to the bus's NoopPublisher at approve time.
func loadPublishers(logger *slog.Logger) map[string]publisher.Publisher {
	out := make(map[string]publisher.Publisher)
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		out["discord"] = publisher.NewDiscordPublisher(publisher.DiscordConfig{WebhookURL: url})
		logger.Info("discord publisher configured")
	}
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		out["slack"] = publisher.NewSlackPublisher(publisher.SlackConfig{WebhookURL: url})
		logger.Info("slack publisher configured")
	}
	return out
}

// loadHumanChannel picks the review-channel implementation. A Discord
// review webhook doubles as the human channel's outbound half; approvals
// and rejections still arrive through scoutctl (or whatever front-end
// calls the bus's entry points).
func loadHumanChannel(logger *slog.Logger) review.HumanChannel {
	if url := os.Getenv("REVIEW_WEBHOOK_URL"); url != "" {
		logger.Info("review channel configured", slog.String("kind", "webhook"))
		return review.NewWebhookChannel(url)
	}
	logger.Info("review channel not configured, drafts surface to the log only")
	return review.NoopChannel{}
}

// createHTTPClient mirrors the teacher's createHTTPClient /
// createWebScraperHTTPClient pair: pooled transport, TLS 1.2 floor, the
// shorter timeout for page scraping.
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
