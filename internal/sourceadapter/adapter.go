// Package sourceadapter implements the uniform fetch(config, limit) -> []Item
// contract over RSS, Reddit, ArXiv, search, and arbitrary HTTP pages.
package sourceadapter

import (
	"context"
	"time"

	"scoutengine/internal/domain/entity"
)

// Adapter is the uniform shape every source implements. Adapters never
// touch the Dedup Store themselves — the Scout Executor applies dedup
// uniformly over whatever an Adapter returns (spec.md §4.B).
type Adapter interface {
	// Kind identifies which registry slot this adapter occupies.
	Kind() entity.ScoutKind
	// Fetch returns up to limit Items for the given opaque config.
	Fetch(ctx context.Context, cfg map[string]any, limit int) ([]entity.Item, error)
}

// DefaultTimeout bounds a single adapter network call, the "short" end of
// spec.md §5's 30-180s range for non-LLM operations.
const DefaultTimeout = 30 * time.Second

// UserAgent is attached to every outbound adapter request, per spec.md
// §4.B's "realistic User-Agent" requirement.
const UserAgent = "ScoutEngine/1.0 (+https://github.com/scoutengine)"
