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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyDocument indicates the document text is empty or whitespace-only.
	ErrEmptyDocument = errors.New("document text cannot be empty")

	// ErrDocumentTooLarge indicates the document exceeds the configured size limit.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")

	// ErrInvalidFailure indicates a Failure payload failed structural validation.
	ErrInvalidFailure = errors.New("invalid failure record")

	// ErrInvalidSeverity indicates a severity outside the 1-5 range.
	ErrInvalidSeverity = errors.New("severity must be between 1 and 5")

	// ErrEmptyFailureMode indicates the failure mode field is empty.
	ErrEmptyFailureMode = errors.New("failure mode cannot be empty")

	// ErrInvalidConfig indicates an invalid configuration value.
	// Configuration errors are fatal at startup, never per-request.
	ErrInvalidConfig = errors.New("invalid configuration")
)
