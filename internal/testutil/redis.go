package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// MockRedis is an in-memory Redis server for unit tests.
type MockRedis struct {
	*miniredis.Miniredis
}

// NewMockRedis starts an in-memory Redis server that is shut down when the
// test ends.
func NewMockRedis(t *testing.T) *MockRedis {
	t.Helper()
	return &MockRedis{Miniredis: miniredis.RunT(t)}
}

// URL returns a redis:// URL pointing at the mock server.
func (m *MockRedis) URL() string {
	return "redis://" + m.Addr()
}

// Fail makes every subsequent command return msg as an error.
// An empty msg restores normal operation.
func (m *MockRedis) Fail(msg string) {
	m.SetError(msg)
}

// UnusedAddr returns an address nothing listens on, for connection failure
// tests.
func UnusedAddr() string {
	return "127.0.0.1:1"
}
