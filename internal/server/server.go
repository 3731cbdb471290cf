// Package server accepts viewer connections, enforces global limits, and
// hands each accepted connection to a session.
package server

import (
	"crypto/tls"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"deskrelay/internal/protocol"
	"deskrelay/internal/session"
	"deskrelay/internal/transport"
	"deskrelay/internal/types"
)

// SourceFactory creates a screen capturer for the given display.
type SourceFactory func(display int) (types.FrameSource, error)

// InjectorFactory creates the input injection backend.
type InjectorFactory func() (types.InputInjector, error)

// Config holds all server configuration.
type Config struct {
	Addr           string
	Display        int
	FPS            int
	Quality        int
	MaxSessions    int
	IdleTimeout    time.Duration
	DeltaThreshold float64
	Stats          bool

	// OfferTimeout bounds how long a WebRTC viewer may take to open its
	// data channel after the offer/answer exchange.
	OfferTimeout time.Duration

	TLSCert string
	TLSKey  string
	TLS     *tls.Config

	NewSource   SourceFactory
	NewInjector InjectorFactory
}

const (
	DefaultMaxSessions  = 10
	defaultOfferTimeout = 15 * time.Second
	writeTimeout        = 5 * time.Second
)

type Server struct {
	cfg Config
	reg *session.Registry

	upgrader websocket.Upgrader

	injOnce  sync.Once
	injector types.InputInjector
	injErr   error

	srv *http.Server
}

func New(cfg Config) *Server {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.OfferTimeout <= 0 {
		cfg.OfferTimeout = defaultOfferTimeout
	}
	return &Server{
		cfg:      cfg,
		reg:      session.NewRegistry(cfg.MaxSessions),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Registry exposes the session table for metrics.
func (s *Server) Registry() *session.Registry {
	return s.reg
}

// Handler builds the HTTP surface: websocket accept, WebRTC offer exchange,
// and session stats.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("POST /offer", s.handleOffer)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

func (s *Server) ListenAndServe() error {
	s.srv = &http.Server{
		Addr:      s.cfg.Addr,
		Handler:   s.Handler(),
		TLSConfig: s.cfg.TLS,
	}

	log.Printf("starting deskrelay on %s (display %d, %d fps, max %d sessions)",
		s.cfg.Addr, s.cfg.Display, s.cfg.FPS, s.cfg.MaxSessions)

	switch {
	case s.cfg.TLSCert != "":
		return s.srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	case s.cfg.TLS != nil:
		return s.srv.ListenAndServeTLS("", "")
	default:
		return s.srv.ListenAndServe()
	}
}

// Shutdown closes every active session and stops accepting connections.
func (s *Server) Shutdown() {
	s.reg.CloseAll("server shutting down")
	if s.srv != nil {
		s.srv.Close()
	}
	if s.injector != nil {
		s.injector.Close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade error: %v", err)
		return
	}
	s.runSession(transport.NewWS(ws, writeTimeout))
}

// handleOffer performs the WebRTC offer/answer exchange. The viewer posts an
// SDP offer and opens the "desk" data channel; the session starts once the
// channel is up.
func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		log.Printf("peer connection error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	dt := transport.NewDataChannel(pc)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(body)}
	if err := pc.SetRemoteDescription(offer); err != nil {
		dt.Close()
		http.Error(w, "bad SDP offer", http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		dt.Close()
		log.Printf("create answer error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		dt.Close()
		log.Printf("set local description error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	<-webrtc.GatheringCompletePromise(pc)

	go func() {
		if err := dt.WaitReady(s.cfg.OfferTimeout); err != nil {
			log.Printf("viewer channel never opened: %v", err)
			dt.Close()
			return
		}
		s.runSession(dt)
	}()

	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(pc.LocalDescription().SDP))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Sessions int      `json:"sessions"`
		Max      int      `json:"max"`
		IDs      []string `json:"ids"`
	}{
		Sessions: s.reg.Len(),
		Max:      s.cfg.MaxSessions,
		IDs:      s.reg.IDs(),
	})
}

// runSession builds a session around an accepted transport and drives it to
// completion. A connection past the session limit, or one whose display is
// exclusively held, is told why before the connection closes.
func (s *Server) runSession(tr transport.Transport) {
	source, err := s.cfg.NewSource(s.cfg.Display)
	if err != nil {
		log.Printf("capturer init error: %v", err)
		s.reject(tr, "capture backend unavailable")
		return
	}
	injector, err := s.sharedInjector()
	if err != nil {
		log.Printf("injector init error: %v", err)
		source.Close()
		s.reject(tr, "input backend unavailable")
		return
	}

	sess := session.New(uuid.New(), s.cfg.Display, tr, source, injector, session.Config{
		FPS:            s.cfg.FPS,
		Quality:        s.cfg.Quality,
		DeltaThreshold: s.cfg.DeltaThreshold,
		IdleTimeout:    s.cfg.IdleTimeout,
		Stats:          s.cfg.Stats,
	})

	exclusive := false
	if sv, ok := source.(types.SingleViewer); ok {
		exclusive = sv.ExclusiveDisplay()
	}
	if err := s.reg.Add(sess, exclusive); err != nil {
		source.Close()
		s.reject(tr, err.Error())
		return
	}
	defer s.reg.Remove(sess)

	log.Printf("session %s connected (%d active)", sess.ID, s.reg.Len())
	if err := sess.Run(); err != nil {
		log.Printf("session %s: %v", sess.ID, err)
	}
}

func (s *Server) reject(tr transport.Transport, msg string) {
	data := (&protocol.Message{Type: protocol.TypeError, Message: msg}).Encode()
	_ = tr.WriteMessage(data)
	tr.Close()
	log.Printf("connection rejected: %s", msg)
}

func (s *Server) sharedInjector() (types.InputInjector, error) {
	s.injOnce.Do(func() {
		s.injector, s.injErr = s.cfg.NewInjector()
	})
	return s.injector, s.injErr
}
