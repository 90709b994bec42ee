package badger

import (
	"github.com/poiesic/maintel/core"
)

// Key prefixes for different data types
const (
	recordPrefix = "extrec"
	cachePrefix  = "excache"
)

// makeRecordKey generates a key for an extraction record by fingerprint.
func makeRecordKey(fp core.Fingerprint) []byte {
	return makeKey(recordPrefix, fp)
}

// makeCacheKey generates a key for an extraction cache entry by fingerprint.
func makeCacheKey(fp core.Fingerprint) []byte {
	return makeKey(cachePrefix, fp)
}

// makeKey builds "prefix:fingerprint" without intermediate allocations.
func makeKey(prefix string, fp core.Fingerprint) []byte {
	buf := make([]byte, 0, len(prefix)+1+len(fp))
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	buf = append(buf, fp...)
	return buf
}
