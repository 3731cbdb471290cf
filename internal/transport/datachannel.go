package transport

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

// ErrClosed is returned for operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// ChannelLabel is the data channel the viewer is expected to create.
const ChannelLabel = "desk"

// DataChannel adapts a viewer-created WebRTC data channel. The channel is
// negotiated ordered and reliable, so message ordering matches the WebSocket
// substrate.
type DataChannel struct {
	pc    *webrtc.PeerConnection
	ready chan struct{}
	done  chan struct{}
	recv  chan []byte

	mu       sync.Mutex
	dc       *webrtc.DataChannel
	deadline time.Time

	closeOnce sync.Once
	readyOnce sync.Once
}

// NewDataChannel wraps a peer connection and waits for the viewer to open
// the "desk" channel. The returned transport is usable after WaitReady.
func NewDataChannel(pc *webrtc.PeerConnection) *DataChannel {
	t := &DataChannel{
		pc:    pc,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
		recv:  make(chan []byte, 64),
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ChannelLabel {
			return
		}
		t.mu.Lock()
		t.dc = dc
		t.mu.Unlock()

		dc.OnOpen(func() {
			t.readyOnce.Do(func() { close(t.ready) })
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			select {
			case t.recv <- msg.Data:
			case <-t.done:
			}
		})
		dc.OnClose(func() {
			t.shutdown()
		})
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			t.shutdown()
		}
	})

	return t
}

// WaitReady blocks until the viewer's channel is open.
func (t *DataChannel) WaitReady(timeout time.Duration) error {
	select {
	case <-t.ready:
		return nil
	case <-t.done:
		return ErrClosed
	case <-time.After(timeout):
		return fmt.Errorf("data channel not opened within %s", timeout)
	}
}

func (t *DataChannel) ReadMessage() ([]byte, error) {
	t.mu.Lock()
	deadline := t.deadline
	t.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case data := <-t.recv:
		return data, nil
	case <-timeout:
		return nil, os.ErrDeadlineExceeded
	case <-t.done:
		return nil, ErrClosed
	}
}

func (t *DataChannel) WriteMessage(data []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	if dc == nil {
		return ErrClosed
	}
	return dc.SendText(string(data))
}

func (t *DataChannel) SetReadDeadline(deadline time.Time) error {
	t.mu.Lock()
	t.deadline = deadline
	t.mu.Unlock()
	return nil
}

func (t *DataChannel) Close() error {
	t.shutdown()
	return nil
}

func (t *DataChannel) shutdown() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		dc := t.dc
		t.mu.Unlock()
		if dc != nil {
			dc.Close()
		}
		t.pc.Close()
	})
}
