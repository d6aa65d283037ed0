package repository

import (
	"context"

	"scoutengine/internal/domain/entity"
)

// FingerprintRepository persists ContentFingerprint rows. No Update/Delete:
// fingerprints are append-only (spec.md §3), mirroring the teacher's
// ArticleEmbeddingRepository (Upsert-by-unique-key, no delete path).
type FingerprintRepository interface {
	// FindByHash returns the fingerprint with the given hash, or nil if none
	// exists. No two fingerprints may share a hash (spec.md §3 invariant).
	FindByHash(ctx context.Context, hash string) (*entity.ContentFingerprint, error)
	// ListWithEmbeddings returns every fingerprint that carries a non-nil
	// embedding vector — the fallback scan when no vector index is available.
	ListWithEmbeddings(ctx context.Context) ([]*entity.ContentFingerprint, error)
	Create(ctx context.Context, fp *entity.ContentFingerprint) error
	// InitVectorIndex creates the ANN index for dim-sized embeddings,
	// reporting whether one is available. false with a nil error means the
	// backend has no vector index; callers fall back to ListWithEmbeddings.
	InitVectorIndex(ctx context.Context, dim int) (bool, error)
	// IndexVector adds a fingerprint's embedding to the ANN index.
	IndexVector(ctx context.Context, fingerprintID int64, embedding []float32) error
	// MaxSimilarity returns the highest cosine similarity between candidate
	// and any indexed embedding, 0 when the index is empty.
	MaxSimilarity(ctx context.Context, candidate []float32) (float64, error)
}
