package ai

import (
	"context"

	"github.com/poiesic/maintel/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The call is atomic: it either returns one embedding per input text, in
	// input order, or fails for the whole batch.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// FailureExtractor converts a free-text maintenance document into a
// structured failure record. Implementations must be thread-safe for
// concurrent use.
type FailureExtractor interface {
	// ExtractFailure analyzes a maintenance document and extracts the
	// equipment involved, the failure mode, severity, and corrective actions.
	// The returned payload is not yet validated; callers decide how to treat
	// structurally malformed responses.
	// Returns an error if the extraction call fails.
	ExtractFailure(ctx context.Context, text string) (*core.Failure, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and FailureExtractor instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// FailureExtractor returns the failure extraction service.
	// The returned FailureExtractor is safe for concurrent use.
	FailureExtractor() FailureExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
