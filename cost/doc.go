// Package cost tracks provider API spend.
//
// The Tracker prices token usage per call type from a static rate table
// and aggregates it on demand. Recording is append-only and never fails;
// cost accounting is advisory and must not affect pipeline behavior.
package cost
