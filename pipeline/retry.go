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
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy controls retries of transient provider failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// RetryAll also retries errors that carry no transience classification.
	// Bulk jobs driving a raw embedder set this; the extraction path leaves
	// it off so unclassified errors surface immediately.
	RetryAll bool
}

// DefaultRetryPolicy retries twice after the initial attempt with
// exponential backoff starting at half a second.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}

// retriable is satisfied by errors that classify their own transience.
type retriable interface {
	Retriable() bool
}

// Do runs operation, retrying with exponential backoff while the returned
// error reports itself as retriable. Errors without a transience
// classification stop the loop immediately unless RetryAll is set, as does
// context cancellation.
// Returns the error from the last attempt if all attempts fail.
func (p RetryPolicy) Do(ctx context.Context, operation func() error) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil // Success
		}

		var r retriable
		if errors.As(lastErr, &r) {
			if !r.Retriable() {
				return lastErr
			}
		} else if !p.RetryAll {
			return lastErr
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", p.MaxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		// Exponential backoff: baseDelay * 2^(attempt-1)
		delay := p.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Continue to next attempt
		}
	}

	return lastErr
}
