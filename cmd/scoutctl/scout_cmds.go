package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/infra/adapter/persistence/sqlite"
)

// scoutSpec is the YAML shape for import/export: one scout per list
// entry, config carried as a free-form map that round-trips to the
// persisted JSON blob.
type scoutSpec struct {
	Name           string         `yaml:"name"`
	Kind           string         `yaml:"kind"`
	Intent         string         `yaml:"intent"`
	Instruction    string         `yaml:"instruction,omitempty"`
	Platforms      []string       `yaml:"platforms,omitempty"`
	ReviewRequired bool           `yaml:"review_required"`
	Cron           string         `yaml:"cron,omitempty"`
	Config         map[string]any `yaml:"config,omitempty"`
}

type scoutFile struct {
	Scouts []scoutSpec `yaml:"scouts"`
}

func newScoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scout",
		Short: "Create, list, import, export, and delete scouts",
	}
	cmd.AddCommand(newScoutListCmd(), newScoutImportCmd(), newScoutExportCmd(), newScoutDeleteCmd())
	return cmd
}

func newScoutListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all scouts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			scouts, err := sqlite.NewScoutRepo(e.database).List(cmd.Context())
			if err != nil {
				return err
			}
			if len(scouts) == 0 {
				cmd.Println("no scouts configured")
				return nil
			}
			for _, sc := range scouts {
				cron := sc.CronExpr
				if cron == "" {
					cron = "manual"
				}
				lastFired := "never"
				if sc.LastFiredAt != nil {
					lastFired = sc.LastFiredAt.Format(time.RFC3339)
				}
				cmd.Printf("%-24s %-8s %-12s cron=%-14s last-fired=%s\n",
					sc.Name, sc.Kind, sc.Intent, cron, lastFired)
			}
			return nil
		},
	}
}

func newScoutImportCmd() *cobra.Command {
	var update bool
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create scouts from a YAML definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var file scoutFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			repo := sqlite.NewScoutRepo(e.database)

			for _, spec := range file.Scouts {
				sc, err := specToScout(spec)
				if err != nil {
					return fmt.Errorf("scout %q: %w", spec.Name, err)
				}

				existing, err := repo.GetByName(cmd.Context(), spec.Name)
				if err != nil {
					return err
				}
				switch {
				case existing == nil:
					if err := repo.Create(cmd.Context(), sc); err != nil {
						return fmt.Errorf("scout %q: %w", spec.Name, err)
					}
					cmd.Printf("created %s\n", sc.Name)
				case update:
					sc.ID = existing.ID
					sc.CreatedAt = existing.CreatedAt
					if err := repo.Update(cmd.Context(), sc); err != nil {
						return fmt.Errorf("scout %q: %w", spec.Name, err)
					}
					cmd.Printf("updated %s\n", sc.Name)
				default:
					cmd.Printf("skipped %s (exists; use --update to overwrite)\n", sc.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&update, "update", false, "overwrite scouts that already exist")
	return cmd
}

func newScoutExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [name...]",
		Short: "Print scouts as YAML (all scouts when no names are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			repo := sqlite.NewScoutRepo(e.database)

			var scouts []*entity.Scout
			if len(args) == 0 {
				scouts, err = repo.List(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				for _, name := range args {
					sc, err := repo.GetByName(cmd.Context(), name)
					if err != nil {
						return err
					}
					if sc == nil {
						return fmt.Errorf("scout %q: %w", name, entity.ErrNotFound)
					}
					scouts = append(scouts, sc)
				}
			}

			file := scoutFile{Scouts: make([]scoutSpec, 0, len(scouts))}
			for _, sc := range scouts {
				spec, err := scoutToSpec(sc)
				if err != nil {
					return err
				}
				file.Scouts = append(file.Scouts, spec)
			}
			out, err := yaml.Marshal(file)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}
}

func newScoutDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a scout (cascades to its feedback and calibrations)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			repo := sqlite.NewScoutRepo(e.database)

			sc, err := repo.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if sc == nil {
				return fmt.Errorf("scout %q: %w", args[0], entity.ErrNotFound)
			}
			if err := repo.Delete(cmd.Context(), sc.ID); err != nil {
				return err
			}
			cmd.Printf("deleted %s\n", sc.Name)
			return nil
		},
	}
}

func specToScout(spec scoutSpec) (*entity.Scout, error) {
	configJSON := ""
	if len(spec.Config) > 0 {
		raw, err := json.Marshal(spec.Config)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		configJSON = string(raw)
	}

	sc := &entity.Scout{
		Name:           strings.TrimSpace(spec.Name),
		Kind:           entity.ScoutKind(spec.Kind),
		ConfigJSON:     configJSON,
		Intent:         entity.ScoutIntent(spec.Intent),
		Instruction:    spec.Instruction,
		Platforms:      spec.Platforms,
		ReviewRequired: spec.ReviewRequired,
		CronExpr:       spec.Cron,
		CreatedAt:      time.Now().UTC(),
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func scoutToSpec(sc *entity.Scout) (scoutSpec, error) {
	spec := scoutSpec{
		Name:           sc.Name,
		Kind:           string(sc.Kind),
		Intent:         string(sc.Intent),
		Instruction:    sc.Instruction,
		Platforms:      sc.Platforms,
		ReviewRequired: sc.ReviewRequired,
		Cron:           sc.CronExpr,
	}
	if sc.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(sc.ConfigJSON), &spec.Config); err != nil {
			return scoutSpec{}, fmt.Errorf("scout %q: config: %w", sc.Name, err)
		}
	}
	return spec, nil
}
