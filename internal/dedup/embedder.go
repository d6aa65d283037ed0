package dedup

import (
	"context"
	"hash/fnv"
	"math"
	"runtime"
	"strings"
	"sync"
)

// Embedder produces a fixed-dimension vector for a piece of text. It is the
// capability-interface seam spec.md §9 requires ("process-wide mutable
// state... behind a capability interface so tests can substitute them"):
// tests inject a fake Embedder returning deterministic vectors instead of
// loading a model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the fixed vector size this embedder produces, the
	// same engine property codenerd's EmbeddingEngine.Dimensions() exposes;
	// the Store sizes its vector index from it.
	Dimensions() int
}

// FullDimension and LightDimension are the two model sizes spec.md §4.C's
// memory-footprint gate picks between. No third-party local-embedding
// library appears anywhere in the retrieved corpus — the teacher's own
// embedding path is a call to a remote AI gRPC service that has no place in
// this single-process architecture — so the default
// implementation is a deterministic feature-hashing embedding computed
// entirely in-process, the standard "hashing trick" bag-of-words technique.
// It is swapped out in tests and may be swapped out in production for a
// real model behind the same interface.
const (
	FullDimension  = 256
	LightDimension = 64

	// lowMemThresholdMB is the heuristic memory budget below which the
	// lighter dimension is selected, per spec.md §4.C: "on machines below a
	// small RAM threshold the embedding backend must pick a lighter model".
	lowMemThresholdMB = 512
)

// HashingEmbedder implements Embedder with a bag-of-words feature-hashing
// vector: each lower-cased token is hashed into one of Dimension buckets,
// counted, and the resulting vector is L2-normalized so cosine similarity
// behaves sensibly. Deterministic and side-effect free, which also makes it
// a faithful stand-in for a real model in tests.
type HashingEmbedder struct {
	Dimension int
}

// NewDefaultEmbedder picks FullDimension unless a caller-supplied memory
// budget (megabytes; 0 means "unknown, assume ample") or runtime.NumCPU()
// indicates a constrained machine, in which case it falls back to
// LightDimension — the constructor-time check spec.md §4.C calls for.
func NewDefaultEmbedder(memBudgetMB int) *HashingEmbedder {
	if memBudgetMB > 0 && memBudgetMB < lowMemThresholdMB {
		return &HashingEmbedder{Dimension: LightDimension}
	}
	if runtime.NumCPU() <= 1 {
		return &HashingEmbedder{Dimension: LightDimension}
	}
	return &HashingEmbedder{Dimension: FullDimension}
}

func (e *HashingEmbedder) Dimensions() int {
	if e.Dimension <= 0 {
		return FullDimension
	}
	return e.Dimension
}

func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := e.Dimensions()
	vec := make([]float32, dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}

// LazyEmbedder wraps a constructor behind sync.Once, so the model (real or
// hashing-based) is built on first use rather than at process start, per
// spec.md §4.C: "The engine lazily loads the model on first use."
type LazyEmbedder struct {
	once    sync.Once
	build   func() Embedder
	wrapped Embedder
}

func NewLazyEmbedder(build func() Embedder) *LazyEmbedder {
	return &LazyEmbedder{build: build}
}

func (l *LazyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	l.once.Do(func() { l.wrapped = l.build() })
	return l.wrapped.Embed(ctx, text)
}

// Dimensions forces the lazy build: the Store only asks when the semantic
// gate actually runs, which is exactly when the model must exist anyway.
func (l *LazyEmbedder) Dimensions() int {
	l.once.Do(func() { l.wrapped = l.build() })
	return l.wrapped.Dimensions()
}
