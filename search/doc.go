// Package search provides semantic similarity search over extraction records.
//
// The Index type embeds free-text queries and ranks stored records by
// cosine similarity over unit-normalized vectors. An optional Monitor
// observes each stage of a query for debugging and instrumentation.
package search
