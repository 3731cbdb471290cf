// Package transport abstracts the persistent, ordered, bidirectional message
// channel a session runs over. Two substrates are provided: a WebSocket and a
// WebRTC data channel.
package transport

import "time"

// Transport is one peer connection. ReadMessage blocks until a message,
// the read deadline, or connection close. Implementations serialize writes
// internally or rely on the session's single writer goroutine.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}
