package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scoutengine/internal/dedup"
	"scoutengine/internal/domain/entity"
	"scoutengine/internal/infra/adapter/persistence/sqlite"
	"scoutengine/internal/scout"
	"scoutengine/internal/sourceadapter"
)

func newRunCmd() *cobra.Command {
	var query string
	var configOverlay string
	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a scout once, ad hoc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			scoutRepo := sqlite.NewScoutRepo(e.database)
			sc, err := scoutRepo.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if sc == nil {
				return fmt.Errorf("scout %q: %w", args[0], entity.ErrNotFound)
			}

			runtime, err := e.buildRuntime()
			if err != nil {
				return err
			}

			override := scout.Override{Query: query}
			if configOverlay != "" {
				cfg, err := scout.ParseConfig(configOverlay)
				if err != nil {
					return fmt.Errorf("--config: %w", err)
				}
				override.Config = cfg
			}

			client := &http.Client{
				Timeout: 30 * time.Second,
				Transport: &http.Transport{
					TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				},
			}
			registry := sourceadapter.NewRegistry(
				sourceadapter.NewRSSAdapter(sqlite.NewFeedRepo(e.database), sqlite.NewEntryRepo(e.database), client),
				sourceadapter.NewRedditAdapter(client),
				sourceadapter.NewSearchAdapter(client),
				sourceadapter.NewArxivAdapter(client),
				sourceadapter.NewHTTPAdapter(client),
			)
			store := dedup.NewStore(sqlite.NewFingerprintRepo(e.database),
				dedup.NewLazyEmbedder(func() dedup.Embedder {
					return dedup.NewDefaultEmbedder(e.cfg.EmbedderMemoryBudgetMB)
				}), e.cfg.SemanticDedup)

			executor := scout.NewExecutor(scoutRepo, sqlite.NewDraftRepo(e.database),
				store, registry, runtime, nil, e.cfg.LogDir, e.logger)

			draft, err := executor.Run(cmd.Context(), sc, override)
			if err != nil {
				return err
			}
			if draft == nil {
				cmd.Println("run finished: nothing new found")
				return nil
			}
			cmd.Printf("draft #%d created (platform %s, status %s)\n\n%s\n",
				draft.ID, draft.Platform, draft.Status, draft.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "one-off query override")
	cmd.Flags().StringVar(&configOverlay, "config", "", "JSON config overlay merged over the persisted config")
	return cmd
}

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "List and judge drafts awaiting review",
	}
	cmd.AddCommand(newReviewListCmd(), newReviewPollCmd(),
		newReviewVerdictCmd("approve", "Approve a draft (publishes when its platform is publishable)"),
		newReviewVerdictCmd("reject", "Reject a draft"),
		newReviewRefineCmd())
	return cmd
}

func newReviewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts in pending_review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			drafts, err := sqlite.NewDraftRepo(e.database).ListPendingReview(cmd.Context())
			if err != nil {
				return err
			}
			if len(drafts) == 0 {
				cmd.Println("no drafts awaiting review")
				return nil
			}
			for _, d := range drafts {
				preview := d.Content
				if len(preview) > 120 {
					preview = preview[:120] + "..."
				}
				cmd.Printf("#%-5d %-12s %s\n       %s\n", d.ID, d.Platform, d.CreatedAt.Format(time.RFC3339), preview)
			}
			return nil
		},
	}
}

// newReviewPollCmd runs one Review Bus poll cycle by hand — useful when
// the daemon is not running and drafts need surfacing for list/approve.
func newReviewPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Surface pending drafts into review now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			return e.buildBus(nil).PollOnce(cmd.Context())
		},
	}
}

func newReviewVerdictCmd(verdict, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verdict + " <draft-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("draft id: %w", err)
			}

			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			bus := e.buildBus(nil)

			if verdict == "approve" {
				err = bus.Approve(cmd.Context(), id)
			} else {
				err = bus.Reject(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			cmd.Printf("%sed draft #%d\n", verdict, id)
			return nil
		},
	}
}

func newReviewRefineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refine <draft-id> <feedback>",
		Short: "Rewrite a draft with the given feedback and keep it in review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("draft id: %w", err)
			}

			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			runtime, err := e.buildRuntime()
			if err != nil {
				return err
			}
			bus := e.buildBus(runtime)

			if err := bus.Refine(cmd.Context(), id, args[1]); err != nil {
				return err
			}

			d, err := sqlite.NewDraftRepo(e.database).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			cmd.Printf("refined draft #%d:\n\n%s\n", id, d.Content)
			return nil
		},
	}
}
