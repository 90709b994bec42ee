package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/pipeline"
	"github.com/poiesic/maintel/storage"
)

// BatchProcessor re-embeds batches of extraction records.
type BatchProcessor struct {
	repo     storage.RecordRepository
	embedder ai.Embedder
	retry    pipeline.RetryPolicy
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.RecordRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
		// Raw embedder errors carry no transience classification, so the
		// bulk path retries everything up to the attempt cap.
		retry: pipeline.RetryPolicy{
			MaxAttempts: maxRetries,
			BaseDelay:   retryBaseDelay,
			RetryAll:    true,
		},
	}
}

// Process re-embeds a batch of records from their source text and writes
// the updated vectors back. Vectors are unit-normalized so dot product
// equals cosine similarity at query time.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.ExtractionRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.SourceText
	}

	var embeddings [][]float32
	err := bp.retry.Do(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.retry.MaxAttempts, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(embeddings))
	}

	for i := range records {
		records[i].Vector = core.NormalizeVector(embeddings[i])
		if _, err := bp.repo.UpdateRecord(ctx, records[i]); err != nil {
			return fmt.Errorf("failed to update record %s: %w", records[i].Fingerprint, err)
		}
	}

	return nil
}
