package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/repository"
)

// DefaultThreshold and TightThreshold resolve spec.md §9's open question
// ("the source's embedding threshold differs across call sites (0.85 vs
// 0.95)"): the engine-wide default is fixed at 0.85 for ordinary retrieved
// content, and 0.95 for tight self-dedup within a single run (e.g.
// collapsing two near-identical RSS entries fetched together). See
// DESIGN.md's Open Question resolution for the rationale.
const (
	DefaultThreshold = 0.85
	TightThreshold   = 0.95
)

// Store is the Deduplication Store of spec.md §4.C: an exact-hash gate,
// optionally backed by a semantic cosine-similarity gate over stored
// embeddings. Grounded on original_source's core/embeddings.py
// EmbeddingManager (is_similar/add_item), reimplemented over the sqlite
// fingerprints table instead of an in-process list.
//
// Store is safe under interleaved IsSimilar/Add calls from a single
// Executor goroutine; it does not claim cross-process safety (spec.md
// §4.C), matching the single-writer assumption the rest of the engine makes
// about the embedded sqlite file.
type Store struct {
	repo            repository.FingerprintRepository
	embedder        Embedder
	semanticEnabled bool

	// Vector-index availability, resolved lazily on the first semantic call
	// so a hash-only deployment never touches sqlite-vec. When the index
	// can't be created the store degrades to the in-Go scan over
	// ListWithEmbeddings, the same fallback codenerd's vectorExt flag
	// provides when its vec probe fails.
	vecOnce    sync.Once
	vecIndexed bool
}

// NewStore constructs a Store. When semanticEnabled is false, only exact
// hash matching runs and Add persists hash-only rows — the configuration
// switch spec.md §4.C describes.
func NewStore(repo repository.FingerprintRepository, embedder Embedder, semanticEnabled bool) *Store {
	return &Store{repo: repo, embedder: embedder, semanticEnabled: semanticEnabled}
}

func computeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IsSimilar reports whether text matches a previously indexed fingerprint,
// either by exact hash or, if semantic mode is enabled, by cosine
// similarity above threshold against any stored embedding. Empty text never
// matches, mirroring original_source's empty-text guard.
func (s *Store) IsSimilar(ctx context.Context, text string, threshold float64) (bool, error) {
	if text == "" {
		return false, nil
	}

	hash := computeHash(text)
	existing, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("IsSimilar: FindByHash: %w", err)
	}
	if existing != nil {
		return true, nil
	}

	if !s.semanticEnabled {
		return false, nil
	}

	candidate, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("IsSimilar: Embed: %w", err)
	}

	if s.ensureVectorIndex(ctx) {
		best, err := s.repo.MaxSimilarity(ctx, candidate)
		if err != nil {
			return false, fmt.Errorf("IsSimilar: MaxSimilarity: %w", err)
		}
		return best > threshold, nil
	}

	fingerprints, err := s.repo.ListWithEmbeddings(ctx)
	if err != nil {
		return false, fmt.Errorf("IsSimilar: ListWithEmbeddings: %w", err)
	}

	best := 0.0
	for _, fp := range fingerprints {
		sim := cosineSimilarity(candidate, fp.Embedding)
		if sim > best {
			best = sim
		}
	}
	return best > threshold, nil
}

// ensureVectorIndex resolves vector-index availability exactly once per
// Store, creating the vec0 table sized to the embedder's dimension.
func (s *Store) ensureVectorIndex(ctx context.Context) bool {
	s.vecOnce.Do(func() {
		ok, err := s.repo.InitVectorIndex(ctx, s.embedder.Dimensions())
		if err != nil {
			slog.Warn("dedup: vector index unavailable, falling back to embedding scan",
				slog.Any("error", err))
			return
		}
		s.vecIndexed = ok
	})
	return s.vecIndexed
}

// Add inserts the (hash, optional vector, provenance) triple for text. On
// embedding failure it logs and falls back to a hash-only row rather than
// failing the caller, mirroring original_source's add_item: "try/except
// with logged failure, no raise".
func (s *Store) Add(ctx context.Context, text string, provenance entity.Provenance) error {
	if text == "" {
		return nil
	}

	fp := &entity.ContentFingerprint{Hash: computeHash(text), Provenance: provenance}

	if s.semanticEnabled {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("dedup: embedding failed, storing hash-only fingerprint",
				slog.String("provenance", string(provenance)), slog.Any("error", err))
		} else {
			fp.Embedding = vec
		}
	}

	if err := s.repo.Create(ctx, fp); err != nil {
		return fmt.Errorf("Add: Create: %w", err)
	}

	if fp.Embedding != nil && s.ensureVectorIndex(ctx) {
		if err := s.repo.IndexVector(ctx, fp.ID, fp.Embedding); err != nil {
			// The row itself landed; a missing index entry only costs this
			// fingerprint its fast-path lookup.
			slog.Warn("dedup: failed to index embedding", slog.Any("error", err))
		}
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
