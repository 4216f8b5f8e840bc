package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GzipMarker prefixes payloads compressed by the Gzip strategy.
const GzipMarker = "gzip:"

// Gzip compresses JSON payloads over Threshold characters with gzip and
// stores them base64 encoded behind GzipMarker. It also decodes plain and
// marker-tagged JSON payloads written by the JSON strategy.
type Gzip struct {
	Threshold int
	Level     int
}

// NewGzip returns a gzip strategy with default threshold and speed-oriented level.
func NewGzip() *Gzip {
	return &Gzip{Threshold: DefaultThreshold, Level: gzip.BestSpeed}
}

// Name implements Codec.
func (c *Gzip) Name() string { return "gzip" }

// Encode implements Codec.
func (c *Gzip) Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	if len(raw) <= threshold(c.Threshold) {
		return string(raw), nil
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, c.Level)
	if err != nil {
		return "", fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}

	return GzipMarker + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode implements Codec.
func (c *Gzip) Decode(payload string, v any) error {
	if !strings.HasPrefix(payload, GzipMarker) {
		return decodeJSON(strings.TrimPrefix(payload, CompressedMarker), v)
	}

	compressed, err := base64.StdEncoding.DecodeString(payload[len(GzipMarker):])
	if err != nil {
		return fmt.Errorf("%w: base64: %v", ErrCorrupt, err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("%w: gzip: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("%w: gzip: %v", ErrCorrupt, err)
	}
	return decodeJSON(string(raw), v)
}

// Compressed implements Codec.
func (c *Gzip) Compressed(payload string) bool {
	return strings.HasPrefix(payload, GzipMarker) || strings.HasPrefix(payload, CompressedMarker)
}
