// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package pipeline

import (
	"errors"
	"fmt"

	"github.com/poiesic/maintel/core"
)

var (
	// ErrCacheRequired is returned when an extraction cache is not provided.
	ErrCacheRequired = errors.New("extraction cache required")

	// ErrExtractorRequired is returned when a failure extractor is not provided.
	ErrExtractorRequired = errors.New("failure extractor required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned when a retry policy has a non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")

	// ErrBatcherClosed is returned when submitting to a closed batcher.
	ErrBatcherClosed = errors.New("batcher is closed")
)

// ErrorKind classifies why an extraction failed.
type ErrorKind string

const (
	// KindTimeout indicates the extraction exceeded its per-attempt deadline.
	KindTimeout ErrorKind = "timeout"

	// KindProvider indicates the provider returned a transport or service error.
	KindProvider ErrorKind = "provider_error"

	// KindInvalidResponse indicates the provider responded with output that
	// could not be parsed or failed structural validation.
	KindInvalidResponse ErrorKind = "invalid_response"
)

// ExtractionError wraps an extraction failure with its classification.
type ExtractionError struct {
	Kind        ErrorKind
	Fingerprint core.Fingerprint
	Err         error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Retriable reports whether retrying the extraction could succeed.
// Malformed provider output is deterministic and never retried.
func (e *ExtractionError) Retriable() bool {
	return e.Kind == KindTimeout || e.Kind == KindProvider
}

// EmbeddingError wraps an embedding batch failure. A failed batch call
// fails every text in the batch; no partial results are surfaced.
type EmbeddingError struct {
	BatchSize int
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding batch of %d failed: %v", e.BatchSize, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}
