// Package pipeline orchestrates failure extraction and embedding generation.
//
// The Orchestrator type manages the extraction workflow for maintenance
// documents, including:
//   - Validating and fingerprinting incoming text
//   - Serving repeat documents from the extraction cache
//   - De-duplicating concurrent requests for identical text
//   - Bounding provider concurrency with a worker pool
//   - Retrying transient provider failures with exponential backoff
//
// The Batcher type coalesces embedding requests into batched provider
// calls, flushing on batch size or elapsed interval, whichever comes first.
package pipeline
