package core

import (
	"time"
)

// Document is a raw maintenance document submitted for processing.
// Work orders, failure reports, and equipment logs all arrive as plain text.
type Document struct {
	ID          string
	Text        string
	Fingerprint Fingerprint
	Size        int // Size of Text in bytes
}

// NewDocument builds a Document from raw text, computing its size and fingerprint.
func NewDocument(id, text string) *Document {
	return &Document{
		ID:          id,
		Text:        text,
		Fingerprint: FingerprintText(text),
		Size:        len(text),
	}
}

// Failure is the structured payload produced by AI extraction from a
// maintenance document.
type Failure struct {
	EquipmentID   string   // Asset tag, e.g. "P-101"
	EquipmentType string   // e.g. "pump", "compressor"
	FailureMode   string   // One of ai.FailureModes
	Severity      int      // 1 (minor) to 5 (catastrophic)
	Summary       string   // One-sentence description of the failure
	Actions       []string // Corrective actions taken or recommended
}

// ExtractionRecord is a cached, structured extraction keyed by the source
// document's fingerprint. It may be enriched with an embedding vector during
// processing.
type ExtractionRecord struct {
	Fingerprint Fingerprint
	Failure     Failure
	SourceText  string
	Vector      []float32 // Embedding vector for semantic search (populated by the batcher)
	CreatedAt   time.Time // When the extraction was computed
	ExpiresAt   time.Time // CreatedAt + cache TTL; the record is dead past this instant
	InsertedAt  time.Time // When the record was inserted into the database
}

// Expired reports whether the record's TTL has elapsed at the given instant.
// An expired record is logically absent and must never be served as valid.
func (r *ExtractionRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Clone returns a deep copy the caller may mutate freely. Records handed
// out by caches and shared pipeline stages are clones, so one caller's
// writes never leak into another's view of the same fingerprint.
func (r *ExtractionRecord) Clone() *ExtractionRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Vector != nil {
		clone.Vector = make([]float32, len(r.Vector))
		copy(clone.Vector, r.Vector)
	}
	if r.Failure.Actions != nil {
		clone.Failure.Actions = make([]string, len(r.Failure.Actions))
		copy(clone.Failure.Actions, r.Failure.Actions)
	}
	return &clone
}

// SimilarityMatch pairs a stored record with its similarity score for a query.
type SimilarityMatch struct {
	Record *ExtractionRecord
	Score  float32
}

// CostEntry records the priced usage of one provider call. Entries are
// immutable once appended.
type CostEntry struct {
	CallType string    // e.g. "extraction_input", "embedding"
	Units    int       // Token count for the call
	Cost     float64   // USD
	At       time.Time // When the call completed
}
