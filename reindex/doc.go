// Package reindex re-embeds stored extraction records with a new or
// updated embedding model.
//
// This package supports batch processing of extraction records, bounded
// batch concurrency, progress tracking, retry logic with exponential
// backoff, and vector normalization to keep cosine similarity search
// consistent.
package reindex
