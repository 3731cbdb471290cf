package types

import "errors"

var (
	// ErrHandshake means the peer sent an unrecognized mode or a malformed
	// negotiation payload. The session closes immediately, no retry.
	ErrHandshake = errors.New("handshake failed")

	// ErrCapacity means the server is at its session limit.
	ErrCapacity = errors.New("session limit reached")

	// ErrDisplayBusy means another session holds an exclusive capture handle
	// for the requested display.
	ErrDisplayBusy = errors.New("display already captured by another session")

	// ErrIdleTimeout means no inbound traffic arrived within the configured
	// interval; the session is closed as if the peer disconnected.
	ErrIdleTimeout = errors.New("idle timeout")

	// ErrSessionClosed is returned by operations on a session past Closing.
	ErrSessionClosed = errors.New("session closed")
)

// CaptureError wraps a FrameSource backend failure.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return "capture: " + e.Err.Error() }
func (e *CaptureError) Unwrap() error { return e.Err }

// TransportError wraps a read or write failure on the session's connection.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// InjectError wraps a failed input injection. A single failed injection is
// logged and dropped; it never tears down the session.
type InjectError struct {
	Err error
}

func (e *InjectError) Error() string { return "inject: " + e.Err.Error() }
func (e *InjectError) Unwrap() error { return e.Err }
