package core

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint is a deterministic, content-derived key identifying duplicate
// documents. Two documents that differ only in letter case or whitespace
// share a fingerprint, which maximizes extraction cache hits.
type Fingerprint string

// EmptyFingerprint is the sentinel fingerprint for empty or whitespace-only
// text. Documents carrying it are rejected before extraction.
const EmptyFingerprint Fingerprint = "empty"

// FingerprintText computes the fingerprint of a document's text.
//
// Normalization policy: the text is lowercased and every run of Unicode
// whitespace collapses to a single space, with leading and trailing
// whitespace removed. The fingerprint is the hex-encoded BLAKE2b-256 digest
// of the normalized bytes. Pure function; empty input yields EmptyFingerprint.
func FingerprintText(text string) Fingerprint {
	normalized := NormalizeText(text)
	if normalized == "" {
		return EmptyFingerprint
	}

	h, _ := blake2b.New(32, nil)
	h.Write([]byte(normalized))
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// NormalizeText applies the fingerprint normalization policy: lowercase,
// whitespace runs collapsed to single spaces, ends trimmed.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inSpace := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
