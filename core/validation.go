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


package core

import (
	"fmt"
)

// ValidateDocument validates a Document before it enters the pipeline.
//
// Validation rules:
//   - Text must not be empty or whitespace-only
//   - Size must not exceed maxSize (bytes)
//
// Rejected documents never reach the cache or the AI collaborators.
func ValidateDocument(doc *Document, maxSize int) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Fingerprint == EmptyFingerprint || NormalizeText(doc.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocument)
	}

	if maxSize > 0 && doc.Size > maxSize {
		return fmt.Errorf("%w: %w (%d > %d bytes)", ErrInvalidDocument, ErrDocumentTooLarge, doc.Size, maxSize)
	}

	return nil
}

// ValidateFailure validates a Failure payload returned by extraction.
//
// Validation rules:
//   - FailureMode must not be empty
//   - Severity must be between 1 and 5
//
// NOT validated:
//   - EquipmentID (logs may mention no specific asset)
//   - Actions (may be empty for observational reports)
//
// A payload failing these checks is a malformed extraction response, which is
// a non-retriable failure kind.
func ValidateFailure(failure *Failure) error {
	if failure == nil {
		return fmt.Errorf("%w: failure is nil", ErrInvalidFailure)
	}

	if failure.FailureMode == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFailure, ErrEmptyFailureMode)
	}

	if failure.Severity < 1 || failure.Severity > 5 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidFailure, ErrInvalidSeverity, failure.Severity)
	}

	return nil
}
