package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"scoutengine/internal/domain/entity"
	"scoutengine/internal/repository"
)

type FingerprintRepo struct{ db *sql.DB }

func NewFingerprintRepo(db *sql.DB) repository.FingerprintRepository {
	return &FingerprintRepo{db: db}
}

// encodeEmbedding packs a []float32 into the little-endian byte blob
// sqlite-vec's vec0 virtual table consumes (the encodeFloat32Slice layout),
// so the same encoding serves both the fingerprints.embedding column and
// the fingerprint_vectors index.
func encodeEmbedding(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func (repo *FingerprintRepo) FindByHash(ctx context.Context, hash string) (*entity.ContentFingerprint, error) {
	const query = `SELECT id, hash, embedding, provenance, created_at FROM fingerprints WHERE hash = ? LIMIT 1`
	var (
		fp        entity.ContentFingerprint
		embedding []byte
	)
	err := repo.db.QueryRowContext(ctx, query, hash).Scan(&fp.ID, &fp.Hash, &embedding, &fp.Provenance, &fp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByHash: %w", err)
	}
	fp.Embedding = decodeEmbedding(embedding)
	return &fp, nil
}

func (repo *FingerprintRepo) ListWithEmbeddings(ctx context.Context) ([]*entity.ContentFingerprint, error) {
	const query = `
SELECT id, hash, embedding, provenance, created_at
FROM fingerprints WHERE embedding IS NOT NULL`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListWithEmbeddings: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	fps := make([]*entity.ContentFingerprint, 0, 256)
	for rows.Next() {
		var (
			fp        entity.ContentFingerprint
			embedding []byte
		)
		if err := rows.Scan(&fp.ID, &fp.Hash, &embedding, &fp.Provenance, &fp.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListWithEmbeddings: Scan: %w", err)
		}
		fp.Embedding = decodeEmbedding(embedding)
		fps = append(fps, &fp)
	}
	return fps, rows.Err()
}

func (repo *FingerprintRepo) Create(ctx context.Context, fp *entity.ContentFingerprint) error {
	const query = `
INSERT INTO fingerprints (hash, embedding, provenance, created_at)
VALUES (?, ?, ?, ?)`
	if fp.CreatedAt.IsZero() {
		fp.CreatedAt = time.Now().UTC()
	}
	res, err := repo.db.ExecContext(ctx, query, fp.Hash, encodeEmbedding(fp.Embedding), fp.Provenance, fp.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("Create: LastInsertId: %w", err)
	}
	fp.ID = id
	return nil
}

// InitVectorIndex creates the sqlite-vec virtual table for the embedding
// dimension in use. Grounded on codenerd's initVecIndex: the index is
// created at first use with the embedder's dimension rather than in
// MigrateUp, because the dimension is an embedder property the static
// schema cannot know up front.
func (repo *FingerprintRepo) InitVectorIndex(ctx context.Context, dim int) (bool, error) {
	if dim <= 0 {
		return false, nil
	}
	stmt := fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS fingerprint_vectors USING vec0(fingerprint_id INTEGER PRIMARY KEY, embedding float[%d])", dim)
	if _, err := repo.db.ExecContext(ctx, stmt); err != nil {
		return false, fmt.Errorf("InitVectorIndex: %w", err)
	}
	return true, nil
}

func (repo *FingerprintRepo) IndexVector(ctx context.Context, fingerprintID int64, embedding []float32) error {
	const query = `INSERT OR REPLACE INTO fingerprint_vectors (fingerprint_id, embedding) VALUES (?, ?)`
	if _, err := repo.db.ExecContext(ctx, query, fingerprintID, encodeEmbedding(embedding)); err != nil {
		return fmt.Errorf("IndexVector: %w", err)
	}
	return nil
}

// MaxSimilarity is codenerd's vec_distance_cosine scan (vector_store.go's
// ANN query) reduced to the one number the dedup gate needs: the smallest
// cosine distance across the index, returned as a similarity.
func (repo *FingerprintRepo) MaxSimilarity(ctx context.Context, candidate []float32) (float64, error) {
	const query = `
SELECT vec_distance_cosine(embedding, ?) AS dist
FROM fingerprint_vectors ORDER BY dist ASC LIMIT 1`
	var dist float64
	err := repo.db.QueryRowContext(ctx, query, encodeEmbedding(candidate)).Scan(&dist)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("MaxSimilarity: %w", err)
	}
	return 1 - dist, nil
}
