package entity

import "time"

// Provenance distinguishes content fingerprinted because it was retrieved
// from a source versus content fingerprinted because the engine generated it.
type Provenance string

const (
	ProvenanceRetrieved Provenance = "retrieved"
	ProvenanceGenerated Provenance = "generated"
)

// ContentFingerprint is the (hash, optional embedding, provenance) triple the
// Dedup Store uses to recognise content it has already seen or emitted.
// Fingerprints are never deleted; retention is a future concern (spec.md §3).
type ContentFingerprint struct {
	ID         int64
	Hash       string    // hex-encoded SHA-256 over the UTF-8 bytes of the fingerprinted text
	Embedding  []float32 // nil when semantic mode is disabled
	Provenance Provenance
	CreatedAt  time.Time
}
