// Package storage defines the persistence boundary of the pipeline: a
// repository for extraction records with vector similarity search, and the
// fingerprint-keyed extraction cache with TTL expiry.
//
// The storage/badger subpackage provides the durable BadgerDB implementation.
// WrapLRUCache layers an in-memory expirable LRU tier in front of any
// ExtractionCache so hot fingerprints skip the disk entirely.
//
// Records and cache entries are serialized with the mus format; see
// serialization.go for the layout.
package storage
