// Command scoutctl is the minimal interactive front-end the engine ships
// with: scout CRUD, YAML import/export, ad-hoc runs, and the review
// verdict entry points. It opens the same embedded store as scoutd; the
// per-scout mutual exclusion for ad-hoc runs against a live daemon comes
// from the store's single-writer connection plus the daemon's own keyed
// lock — scoutctl runs are expected to be used when the daemon is idle or
// for manual-only scouts.
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"scoutengine/internal/agent"
	"scoutengine/internal/config"
	"scoutengine/internal/dedup"
	"scoutengine/internal/feedback"
	"scoutengine/internal/infra/adapter/persistence/sqlite"
	"scoutengine/internal/infra/db"
	"scoutengine/internal/observability/logging"
	"scoutengine/internal/review"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scoutctl",
		Short:         "Manage scouts, trigger runs, and review drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScoutCmd(), newRunCmd(), newReviewCmd())
	return root
}

// engine is the lazily-built dependency bundle the commands share. The
// agent runtime is only constructed for commands that invoke the model
// (run, review refine), so listing scouts never demands an API key.
type engine struct {
	cfg      *config.EngineConfig
	database *sql.DB
	logger   *slog.Logger
}

func openEngine() (*engine, error) {
	logger := logging.NewTextLogger()

	cfg, err := config.LoadEngineConfig()
	if err != nil {
		return nil, err
	}

	database := db.Open(cfg.DatabasePath)
	if err := db.MigrateUp(database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &engine{cfg: cfg, database: database, logger: logger}, nil
}

func (e *engine) Close() {
	_ = e.database.Close()
}

func (e *engine) buildRuntime() (*agent.Runtime, error) {
	return agent.NewRuntime(e.cfg, agent.RuntimeConfig{Provider: e.cfg.Provider})
}

// buildBus assembles a Review Bus over the store. runtime may be nil for
// verdicts that never invoke the model (list/poll/approve/reject); the
// conditional below keeps a nil *agent.Runtime from becoming a non-nil
// interface value inside the bus.
func (e *engine) buildBus(runtime *agent.Runtime) *review.Bus {
	scoutRepo := sqlite.NewScoutRepo(e.database)
	draftRepo := sqlite.NewDraftRepo(e.database)
	feedbackRepo := sqlite.NewFeedbackRepo(e.database)
	calibrationRepo := sqlite.NewCalibrationRepo(e.database)
	fingerprintRepo := sqlite.NewFingerprintRepo(e.database)

	store := dedup.NewStore(fingerprintRepo, dedup.NewLazyEmbedder(func() dedup.Embedder {
		return dedup.NewDefaultEmbedder(e.cfg.EmbedderMemoryBudgetMB)
	}), e.cfg.SemanticDedup)

	if runtime == nil {
		svc := feedback.NewService(scoutRepo, feedbackRepo, calibrationRepo, nil, e.logger)
		return review.NewBus(draftRepo, scoutRepo, store, svc, nil, review.NoopChannel{}, nil, e.logger)
	}
	svc := feedback.NewService(scoutRepo, feedbackRepo, calibrationRepo, runtime, e.logger)
	return review.NewBus(draftRepo, scoutRepo, store, svc, runtime, review.NoopChannel{}, nil, e.logger)
}
