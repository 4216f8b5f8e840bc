package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound indicates the key does not exist in the remote store.
	ErrNotFound = errors.New("remote: key not found")

	// ErrUnavailable is returned while the adapter is disabled or not connected.
	ErrUnavailable = errors.New("remote: unavailable")

	// ErrTimeout is returned when a single call exceeds its deadline.
	ErrTimeout = errors.New("remote: operation timed out")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("remote: adapter closed")
)

// ErrorClass represents a classification of remote failures.
type ErrorClass string

const (
	// ErrorClassConnection covers refused, reset or closed connections and
	// failed handshakes. These disable the adapter.
	ErrorClassConnection ErrorClass = "connection"

	// ErrorClassTimeout covers deadline expiry for a single call.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassCommand covers errors replied by the server.
	ErrorClassCommand ErrorClass = "command"
)

// OpError describes a failed remote operation.
type OpError struct {
	Op    string
	Key   string
	Class ErrorClass
	Err   error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("remote %s %q (%s): %v", e.Op, e.Key, e.Class, e.Err)
	}
	return fmt.Sprintf("remote %s (%s): %v", e.Op, e.Class, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTimeout) match timeout-class failures.
func (e *OpError) Is(target error) bool {
	return target == ErrTimeout && e.Class == ErrorClassTimeout
}

// IsConnectionError reports whether err is a connection-level failure.
func IsConnectionError(err error) bool {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Class == ErrorClassConnection
	}
	return classify(err) == ErrorClassConnection
}

func classify(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}

	switch {
	case errors.Is(err, redis.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return ErrorClassConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorClassConnection
	}

	return ErrorClassCommand
}
