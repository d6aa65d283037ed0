// Package scout implements the Scout Executor (spec.md §4.E): the central
// subsystem that turns one Scout's declarative configuration into a run of
// fetch -> dedup -> (optionally select+draft) -> persist.
package scout

import (
	"encoding/json"
	"fmt"
)

// RawConfig is the generic shape every Scout's config_json decodes into
// before kind-specific fields are pulled out. Grounded on original_source's
// loose `config.get(key, default)` access pattern: unrecognized keys are
// ignored rather than rejected, so a newer engine version can add config
// keys an older-configured Scout simply never sets.
type RawConfig map[string]any

// ParseConfig decodes a Scout's config_json into a RawConfig, returning an
// empty map for an empty blob rather than erroring (a brand-new Scout may
// not have any kind-specific config yet).
func ParseConfig(configJSON string) (RawConfig, error) {
	if configJSON == "" {
		return RawConfig{}, nil
	}
	var cfg RawConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("ParseConfig: %w", err)
	}
	return cfg, nil
}

// Merge returns a new RawConfig with overlay's keys layered on top of base,
// per spec.md §4.E.1 ("merges persisted config with the overlay"). Neither
// input is mutated.
func Merge(base RawConfig, overlay RawConfig) RawConfig {
	out := make(RawConfig, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func (c RawConfig) strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (c RawConfig) str(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c RawConfig) boolean(key string) bool {
	b, _ := c[key].(bool)
	return b
}

func (c RawConfig) intOrDefault(key string, def int) int {
	switch v := c[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// Tools returns the bound tool-kind names from cfg["tools"], per spec.md §6:
// "any subset of {rss, reddit, google_search, arxiv, http_request, browser}".
func (c RawConfig) Tools() []string { return c.strings("tools") }

// ImageGeneration reports whether cfg["image_generation"] is set.
func (c RawConfig) ImageGeneration() bool { return c.boolean("image_generation") }

// MaxRetries returns cfg["max_retries"], defaulting to DefaultMaxRetries.
func (c RawConfig) MaxRetries() int { return c.intOrDefault("max_retries", DefaultMaxRetries) }

// DefaultMaxRetries is spec.md §4.E.6's default retry budget.
const DefaultMaxRetries = 2

// GenerationConfig is cfg["generation_config"]: LLM provider/model selection
// per spec.md §6.
type GenerationConfig struct {
	Provider    string
	ModelID     string
	Temperature float64
}

// Generation decodes cfg["generation_config"], defaulting Temperature to
// 0.7 (original_source's ScoutManager._get_agent_provider default) when
// absent.
func (c RawConfig) Generation() GenerationConfig {
	gc := GenerationConfig{Temperature: 0.7}
	raw, ok := c["generation_config"].(map[string]any)
	if !ok {
		return gc
	}
	rc := RawConfig(raw)
	gc.Provider = rc.str("provider")
	gc.ModelID = rc.str("model_id")
	if t, ok := raw["temperature"].(float64); ok {
		gc.Temperature = t
	}
	return gc
}

// RSSConfig is the rss-kind config shape (spec.md §6).
type RSSConfig struct {
	Feeds []string
}

func (c RawConfig) RSS() RSSConfig { return RSSConfig{Feeds: c.strings("feeds")} }

// RedditConfig is the reddit-kind config shape.
type RedditConfig struct {
	Subreddits []string
	Sort       string
}

func (c RawConfig) Reddit() RedditConfig {
	sort := c.str("reddit_sort")
	if sort == "" {
		sort = "hot"
	}
	return RedditConfig{Subreddits: c.strings("subreddits"), Sort: sort}
}

// SearchConfig is the search-kind config shape.
type SearchConfig struct {
	Query string
}

func (c RawConfig) Search() SearchConfig { return SearchConfig{Query: c.str("query")} }

// ArxivConfig is the arxiv-kind config shape.
type ArxivConfig struct {
	Query      string
	DateFilter string
	DaysBack   int
}

func (c RawConfig) Arxiv() ArxivConfig {
	return ArxivConfig{
		Query:      c.str("query"),
		DateFilter: c.str("date_filter"),
		DaysBack:   c.intOrDefault("days_back", 0),
	}
}

// HTTPConfig is the http-kind config shape.
type HTTPConfig struct {
	URL string
}

func (c RawConfig) HTTP() HTTPConfig { return HTTPConfig{URL: c.str("url")} }

// MetaConfig is the meta-kind config shape: other scouts bound as tools,
// per spec.md §9 and original_source's core/meta_scout.py.
type MetaConfig struct {
	ChildScouts         []string
	OrchestrationPrompt string
}

func (c RawConfig) Meta() MetaConfig {
	prompt := c.str("orchestration_prompt")
	if prompt == "" {
		prompt = "Coordinate the child scouts to find interesting content."
	}
	return MetaConfig{ChildScouts: c.strings("child_scouts"), OrchestrationPrompt: prompt}
}
