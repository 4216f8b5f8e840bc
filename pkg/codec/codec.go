// Package codec converts cache payloads to and from their stored string form.
//
// The default JSON strategy only tags large payloads with a marker and does
// not compress them. Gzip is the drop-in strategy that actually compresses.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultThreshold is the serialized length above which payloads are
	// marked (or compressed).
	DefaultThreshold = 1000

	// CompressedMarker prefixes payloads tagged by the JSON strategy.
	CompressedMarker = "compressed:"
)

// ErrCorrupt is returned when a stored payload cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt payload")

// Codec encodes values for storage and decodes them back.
// Decode(Encode(v)) must reproduce v for every JSON-serializable value.
type Codec interface {
	Encode(v any) (string, error)
	Decode(payload string, v any) error

	// Compressed reports whether payload carries a compression marker.
	Compressed(payload string) bool

	Name() string
}

// JSON serializes with encoding/json and marks payloads over Threshold
// characters when EnableCompression is set.
type JSON struct {
	EnableCompression bool
	Threshold         int
}

// NewJSON returns the default JSON strategy.
func NewJSON(enableCompression bool) *JSON {
	return &JSON{EnableCompression: enableCompression, Threshold: DefaultThreshold}
}

// Name implements Codec.
func (c *JSON) Name() string { return "json" }

// Encode implements Codec.
func (c *JSON) Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}

	s := string(raw)
	if c.EnableCompression && len(s) > threshold(c.Threshold) {
		return CompressedMarker + s, nil
	}
	return s, nil
}

// Decode implements Codec.
func (c *JSON) Decode(payload string, v any) error {
	return decodeJSON(strings.TrimPrefix(payload, CompressedMarker), v)
}

// Compressed implements Codec.
func (c *JSON) Compressed(payload string) bool {
	return strings.HasPrefix(payload, CompressedMarker)
}

// New returns the codec registered under name ("json" or "gzip").
func New(name string, enableCompression bool) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return NewJSON(enableCompression), nil
	case "gzip":
		return NewGzip(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

func decodeJSON(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

func threshold(t int) int {
	if t <= 0 {
		return DefaultThreshold
	}
	return t
}
