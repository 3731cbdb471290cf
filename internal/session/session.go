// Package session owns one viewer connection's lifecycle: handshake, the
// capture/encode/send loop, inbound message dispatch, and input injection.
package session

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"deskrelay/internal/codec"
	"deskrelay/internal/protocol"
	"deskrelay/internal/transport"
	"deskrelay/internal/types"
)

// State of a session's lifecycle.
type State int32

const (
	StateHandshaking State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Config holds per-session policy.
type Config struct {
	FPS              int
	Quality          int // default payload quality when the hello hint is 0
	DeltaThreshold   float64
	IdleTimeout      time.Duration
	HandshakeTimeout time.Duration
	Stats            bool
}

const (
	DefaultFPS              = 30
	DefaultQuality          = 80
	DefaultIdleTimeout      = 60 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second

	captureRetryDelay = 250 * time.Millisecond
	statsInterval     = 5 * time.Second
)

// Session exclusively owns its transport handle, its FrameSource, and the
// goroutines driving them. The registry holds it for lookup only.
type Session struct {
	ID      uuid.UUID
	Display int

	tr       transport.Transport
	source   types.FrameSource
	injector types.InputInjector
	cfg      Config

	codec *codec.Codec
	mode  string

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	writeMu sync.Mutex

	mu       sync.Mutex
	width    int
	height   int
	reason   string
	closeErr error

	seq      uint64
	forceKey atomic.Bool

	frameCh  chan *types.Frame
	ctrlCh   chan []byte
	injectCh chan types.InputEvent

	dropped     atomic.Uint64
	injectFails atomic.Uint64
}

// New creates a session over an accepted transport. The session takes
// ownership of tr and source; the injector is shared and stays open.
func New(id uuid.UUID, display int, tr transport.Transport, source types.FrameSource, injector types.InputInjector, cfg Config) *Session {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Session{
		ID:       id,
		Display:  display,
		tr:       tr,
		source:   source,
		injector: injector,
		cfg:      cfg,
		stop:     make(chan struct{}),
		frameCh:  make(chan *types.Frame, 1),
		ctrlCh:   make(chan []byte, 8),
		injectCh: make(chan types.InputEvent, 64),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Size returns the last-advertised frame dimensions.
func (s *Session) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Dropped reports how many frames were discarded under backpressure.
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// Run drives the session to completion: negotiation, then the concurrent
// send and receive loops until either direction fails, the peer leaves, or
// the session is closed. It always releases the capture source.
func (s *Session) Run() error {
	defer func() {
		s.source.Close()
		s.state.Store(int32(StateClosed))
	}()

	if err := s.negotiate(); err != nil {
		s.close("handshake failed", err, false)
		return err
	}
	s.state.Store(int32(StateActive))

	w, h := s.Size()
	log.Printf("session %s active (%s, %dx%d, %d fps)", s.ID, s.mode, w, h, s.cfg.FPS)

	s.wg.Add(3)
	go s.captureLoop()
	go s.writeLoop()
	go s.injectLoop()

	s.readLoop()
	s.close("session ended", nil, true)
	s.wg.Wait()

	s.mu.Lock()
	reason, err := s.reason, s.closeErr
	s.mu.Unlock()
	log.Printf("session %s closed: %s", s.ID, reason)
	return err
}

// Close shuts the session down, telling the viewer why.
func (s *Session) Close(reason string) {
	s.close(reason, nil, true)
}

// negotiate reads the hello message, primes the capture source, and replies
// with the current dimensions.
func (s *Session) negotiate() error {
	s.tr.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))

	data, err := s.tr.ReadMessage()
	if err != nil {
		return &types.TransportError{Err: err}
	}
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		s.send((&protocol.Message{Type: protocol.TypeError, Message: "malformed handshake"}).Encode())
		return fmt.Errorf("%w: %v", types.ErrHandshake, err)
	}
	if msg.Type != protocol.TypeHello {
		s.send((&protocol.Message{Type: protocol.TypeError, Message: "expected hello"}).Encode())
		return fmt.Errorf("%w: first message was %q", types.ErrHandshake, msg.Type)
	}
	if msg.Mode != protocol.ModeDesktop {
		s.send((&protocol.Message{Type: protocol.TypeError, Message: fmt.Sprintf("unsupported mode %q", msg.Mode)}).Encode())
		return fmt.Errorf("%w: unsupported mode %q", types.ErrHandshake, msg.Mode)
	}

	quality := msg.QualityHint
	if quality <= 0 || quality > 100 {
		quality = s.cfg.Quality
	}
	s.codec = codec.New(quality, s.cfg.DeltaThreshold)
	s.mode = msg.Mode

	buf, err := s.captureWithRetry()
	if err != nil {
		s.send((&protocol.Message{Type: protocol.TypeError, Message: "capture unavailable"}).Encode())
		return err
	}
	s.mu.Lock()
	s.width, s.height = buf.Width, buf.Height
	s.mu.Unlock()

	ack := &protocol.Message{
		Type:   protocol.TypeHelloAck,
		OK:     true,
		Width:  buf.Width,
		Height: buf.Height,
	}
	if err := s.send(ack.Encode()); err != nil {
		return &types.TransportError{Err: err}
	}
	s.tr.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	return nil
}

// captureLoop produces frames on a fixed cadence. A frame that finds the
// outbound channel still occupied is dropped and the next encoded frame is
// forced to be a keyframe so the viewer can resynchronize.
func (s *Session) captureLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	var loops, drops, encodeFails, unchanged uint64
	lastStats := time.Now()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		loops++

		buf, err := s.captureWithRetry()
		if err != nil {
			if errors.Is(err, types.ErrSessionClosed) {
				return
			}
			s.fail("capture failed", err)
			return
		}

		s.mu.Lock()
		resized := buf.Width != s.width || buf.Height != s.height
		if resized {
			s.width, s.height = buf.Width, buf.Height
		}
		s.mu.Unlock()
		if resized {
			s.enqueueCtrl(&protocol.Message{Type: protocol.TypeResize, Width: buf.Width, Height: buf.Height})
			s.forceKey.Store(true)
		}

		key := s.forceKey.Swap(false)
		frame, err := s.codec.Encode(buf, key)
		if err != nil {
			encodeFails++
			if key {
				s.forceKey.Store(true)
			}
			continue
		}
		if !frame.IsKeyframe && len(frame.Rects) == 0 {
			unchanged++
			continue
		}

		frame.Sequence = s.seq
		s.seq++
		select {
		case s.frameCh <- frame:
		default:
			// Transport still busy with the previous frame: freshness over
			// completeness. The sequence number is consumed, leaving a gap.
			drops++
			s.dropped.Add(1)
			s.forceKey.Store(true)
		}

		if s.cfg.Stats && time.Since(lastStats) >= statsInterval {
			log.Printf("session %s: loops=%d drops=%d encFail=%d unchanged=%d injectFail=%d",
				s.ID, loops, drops, encodeFails, unchanged, s.injectFails.Load())
			loops, drops, encodeFails, unchanged = 0, 0, 0, 0
			lastStats = time.Now()
		}
	}
}

// writeLoop is the only writer while the session is active. Control
// messages take priority over frames.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case data := <-s.ctrlCh:
			if s.write(data) != nil {
				return
			}
			continue
		default:
		}
		select {
		case <-s.stop:
			return
		case data := <-s.ctrlCh:
			if s.write(data) != nil {
				return
			}
		case frame := <-s.frameCh:
			data, err := protocol.EncodeFrame(frame)
			if err != nil {
				log.Printf("session %s: %v", s.ID, err)
				continue
			}
			if s.write(data) != nil {
				return
			}
		}
	}
}

// readLoop dispatches inbound messages until the connection or the session
// ends. Errors local to one message are absorbed.
func (s *Session) readLoop() {
	for {
		s.tr.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		data, err := s.tr.ReadMessage()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			if isTimeout(err) {
				s.fail("idle timeout", types.ErrIdleTimeout)
			} else {
				s.fail("connection lost", &types.TransportError{Err: err})
			}
			return
		}

		msg, err := protocol.DecodeMessage(data)
		if err != nil {
			log.Printf("session %s: bad message: %v", s.ID, err)
			continue
		}

		switch msg.Type {
		case protocol.TypePing:
			s.enqueueCtrl(&protocol.Message{Type: protocol.TypePong})
		case protocol.TypeResync:
			s.forceKey.Store(true)
		case protocol.TypeBye:
			s.close("peer disconnected", nil, false)
			return
		default:
			ev, ok := msg.InputEvent()
			if !ok {
				log.Printf("session %s: unknown message type %q", s.ID, msg.Type)
				continue
			}
			s.clamp(&ev)
			select {
			case s.injectCh <- ev:
			case <-s.stop:
				return
			}
		}
	}
}

// injectLoop applies input events in the exact order received. Injection is
// isolated here so a slow OS call cannot stall capture or transport I/O, and
// a single failed injection only costs that event.
func (s *Session) injectLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case ev := <-s.injectCh:
			if err := s.injector.Inject(ev); err != nil {
				s.injectFails.Add(1)
				log.Printf("session %s: input event dropped: %v", s.ID, err)
			}
		}
	}
}

func (s *Session) captureWithRetry() (*types.RawBuffer, error) {
	buf, err := s.source.Capture()
	if err == nil {
		return buf, nil
	}
	log.Printf("session %s: capture failed, retrying: %v", s.ID, err)
	select {
	case <-time.After(captureRetryDelay):
	case <-s.stop:
		return nil, types.ErrSessionClosed
	}
	buf, err = s.source.Capture()
	if err != nil {
		return nil, &types.CaptureError{Err: err}
	}
	return buf, nil
}

// clamp pulls out-of-range coordinates back into the advertised frame.
func (s *Session) clamp(ev *types.InputEvent) {
	if ev.Type != types.EventMouseMove && ev.Type != types.EventMouseButton {
		return
	}
	s.mu.Lock()
	w, h := s.width, s.height
	s.mu.Unlock()
	if ev.X < 0 {
		ev.X = 0
	} else if w > 0 && ev.X >= w {
		ev.X = w - 1
	}
	if ev.Y < 0 {
		ev.Y = 0
	} else if h > 0 && ev.Y >= h {
		ev.Y = h - 1
	}
}

func (s *Session) enqueueCtrl(msg *protocol.Message) {
	select {
	case s.ctrlCh <- msg.Encode():
	case <-s.stop:
	}
}

func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	err := s.tr.WriteMessage(data)
	s.writeMu.Unlock()
	if err != nil {
		select {
		case <-s.stop:
		default:
			s.fail("connection lost", &types.TransportError{Err: err})
		}
	}
	return err
}

func (s *Session) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.tr.WriteMessage(data)
}

func (s *Session) fail(reason string, err error) {
	s.close(reason, err, true)
}

// close records the first close reason, tells the viewer when asked to, and
// cancels all loops. Safe to call from any goroutine, any number of times.
func (s *Session) close(reason string, err error, sendBye bool) {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.mu.Lock()
		s.reason = reason
		s.closeErr = err
		s.mu.Unlock()
		if sendBye {
			bye := (&protocol.Message{Type: protocol.TypeBye, Reason: reason}).Encode()
			s.writeMu.Lock()
			_ = s.tr.WriteMessage(bye)
			s.writeMu.Unlock()
		}
		close(s.stop)
		s.tr.Close()
	})
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
