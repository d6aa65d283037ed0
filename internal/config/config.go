package config

import (
	"fmt"
	"time"

	pkgconfig "scoutengine/pkg/config"
)

// EngineConfig holds top-level configuration for the scout engine daemon
// (cmd/scoutd) and CLI (cmd/scoutctl). It follows the same env-driven
// loading idiom as AIConfig: every field has a sensible default and is
// overridable via environment variable, validated once at startup.
type EngineConfig struct {
	// DataDir is the root directory for the sqlite database file, the PID
	// lock, and per-scout-run log files.
	DataDir string

	// DatabasePath is the sqlite file path. Defaults to DataDir/scoutengine.db.
	DatabasePath string

	// PIDPath is the lock file used to ensure only one scheduler runs
	// against DataDir at a time.
	PIDPath string

	// LogDir is the directory under which logs/scouts/<name>/<run>.log
	// files are created.
	LogDir string

	// HealthPort is loaded from SCOUT_HEALTH_PORT but not read by cmd/scoutd,
	// which serves /health and /health/scouts on MetricsPort.
	HealthPort int

	// MetricsPort serves /metrics (Prometheus), /health and /health/scouts.
	MetricsPort int

	// ReviewPollInterval is how often the scheduler's review-bus job checks
	// for scouts whose review-required drafts should be surfaced.
	ReviewPollInterval time.Duration

	// DefaultTimezone is used when a Scout's CronExpr omits one.
	DefaultTimezone string

	// Provider selects the default LLM provider for scouts that don't name
	// one explicitly: "anthropic" or "openai".
	Provider string

	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string

	// DedupThreshold and DedupTightThreshold are loaded and range-checked by
	// Validate; nothing else reads them. The Executor's dedup gate uses
	// dedup.DefaultThreshold.
	DedupThreshold      float64
	DedupTightThreshold float64

	// SemanticDedup enables the cosine-similarity gate in addition to exact
	// hashing; off, the Dedup Store stores hash-only rows.
	SemanticDedup bool

	// EmbedderMemoryBudgetMB feeds the embedding backend's model-size gate;
	// 0 means "unknown, assume ample".
	EmbedderMemoryBudgetMB int

	// OTLPEndpoint is loaded from OTEL_EXPORTER_OTLP_ENDPOINT; nothing reads
	// it, and no span exporter is configured from it.
	OTLPEndpoint string
}

// DefaultEngineConfig returns the configuration used when no environment
// overrides are present.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DataDir:             "data",
		DatabasePath:        "data/scoutengine.db",
		PIDPath:             "data/scoutengine.pid",
		LogDir:              "logs/scouts",
		HealthPort:          8081,
		MetricsPort:         9090,
		ReviewPollInterval:  1 * time.Minute,
		DefaultTimezone:     "UTC",
		Provider:            "anthropic",
		DedupThreshold:      0.85,
		DedupTightThreshold: 0.95,
	}
}

// LoadEngineConfig loads EngineConfig from environment variables, falling
// back to DefaultEngineConfig() for anything unset.
func LoadEngineConfig() (*EngineConfig, error) {
	def := DefaultEngineConfig()

	dataDir := pkgconfig.GetEnvString("SCOUT_DATA_DIR", def.DataDir)
	cfg := &EngineConfig{
		DataDir:                dataDir,
		DatabasePath:           pkgconfig.GetEnvString("SCOUT_DB_PATH", dataDir+"/scoutengine.db"),
		PIDPath:                pkgconfig.GetEnvString("SCOUT_PID_PATH", dataDir+"/scoutengine.pid"),
		LogDir:                 pkgconfig.GetEnvString("SCOUT_LOG_DIR", def.LogDir),
		HealthPort:             pkgconfig.GetEnvInt("SCOUT_HEALTH_PORT", def.HealthPort),
		MetricsPort:            pkgconfig.GetEnvInt("SCOUT_METRICS_PORT", def.MetricsPort),
		ReviewPollInterval:     pkgconfig.GetEnvDuration("SCOUT_REVIEW_POLL_INTERVAL", def.ReviewPollInterval),
		DefaultTimezone:        pkgconfig.GetEnvString("SCOUT_TIMEZONE", def.DefaultTimezone),
		Provider:               pkgconfig.GetEnvString("SCOUT_PROVIDER", def.Provider),
		AnthropicAPIKey:        pkgconfig.GetEnvString("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:           pkgconfig.GetEnvString("OPENAI_API_KEY", ""),
		OpenAIBaseURL:          pkgconfig.GetEnvString("OPENAI_BASE_URL", ""),
		DedupThreshold:         parseFloatOrDefault(pkgconfig.GetEnvString("SCOUT_DEDUP_THRESHOLD", ""), def.DedupThreshold),
		DedupTightThreshold:    parseFloatOrDefault(pkgconfig.GetEnvString("SCOUT_DEDUP_TIGHT_THRESHOLD", ""), def.DedupTightThreshold),
		SemanticDedup:          pkgconfig.GetEnvBool("SCOUT_SEMANTIC_DEDUP", def.SemanticDedup),
		EmbedderMemoryBudgetMB: pkgconfig.GetEnvInt("SCOUT_EMBEDDER_MEM_BUDGET_MB", def.EmbedderMemoryBudgetMB),
		OTLPEndpoint:           pkgconfig.GetEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration correctness, mirroring AIConfig.Validate's
// fail-fast-at-startup style.
func (c *EngineConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("SCOUT_DATA_DIR cannot be empty")
	}
	if c.Provider != "anthropic" && c.Provider != "openai" {
		return fmt.Errorf("SCOUT_PROVIDER must be 'anthropic' or 'openai', got %q", c.Provider)
	}
	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return fmt.Errorf("SCOUT_DEDUP_THRESHOLD must be in (0, 1], got %v", c.DedupThreshold)
	}
	if c.DedupTightThreshold < c.DedupThreshold || c.DedupTightThreshold > 1 {
		return fmt.Errorf("SCOUT_DEDUP_TIGHT_THRESHOLD must be in [DedupThreshold, 1], got %v", c.DedupTightThreshold)
	}
	if c.ReviewPollInterval <= 0 {
		return fmt.Errorf("SCOUT_REVIEW_POLL_INTERVAL must be positive")
	}
	return nil
}

func parseFloatOrDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return def
	}
	return v
}
