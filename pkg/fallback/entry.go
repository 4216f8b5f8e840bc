// Package fallback implements the in-process cache tier used when the remote
// store is absent or failing.
package fallback

import (
	"encoding/json"
	"time"
	"unicode/utf16"
)

// Entry is a single locally held cache value.
type Entry struct {
	// Data is the codec-encoded payload.
	Data string `json:"data"`

	// StoredAt is when the entry was written.
	StoredAt time.Time `json:"stored_at"`

	// TTLSeconds is the lifetime of the entry. Always > 0.
	TTLSeconds int `json:"ttl_seconds"`

	// Compressed reports whether Data carries a compression marker.
	Compressed bool `json:"compressed"`
}

// IsExpired reports whether the entry outlived its TTL at the given instant.
func (e Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// ExpiresAt returns the instant after which the entry is expired.
func (e Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(time.Duration(e.TTLSeconds) * time.Second)
}

// footprint approximates the memory held by key and entry, counting two bytes
// per UTF-16 code unit of the key and of the JSON form of the entry.
func footprint(key string, e Entry) int64 {
	raw, err := json.Marshal(e)
	if err != nil {
		// Entry holds only strings, times and scalars.
		raw = []byte(e.Data)
	}
	return int64(utf16Len(key)*2 + utf16Len(string(raw))*2)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
