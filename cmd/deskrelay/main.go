package main

import (
	crypto_tls "crypto/tls"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deskrelay/internal/codec"
	"deskrelay/internal/server"
	"deskrelay/internal/session"
	tlsutil "deskrelay/internal/tls"
)

var (
	flagAddr        = flag.String("addr", "0.0.0.0:8080", "HTTP listen address")
	flagDisplay     = flag.Int("display", 0, "Display index to capture (0 = primary)")
	flagFPS         = flag.Int("fps", session.DefaultFPS, "Capture frame rate")
	flagQuality     = flag.Int("quality", session.DefaultQuality, "Default frame quality when the viewer sends no hint (1-99 = JPEG, 100 = raw)")
	flagMaxSessions = flag.Int("max-sessions", server.DefaultMaxSessions, "Maximum concurrent sessions")
	flagIdleTimeout = flag.Duration("idle-timeout", session.DefaultIdleTimeout, "Close sessions with no inbound traffic for this long")
	flagThreshold   = flag.Float64("delta-threshold", codec.DefaultDeltaThreshold, "Changed-area fraction above which a full frame is sent instead of a delta")
	flagStats       = flag.Bool("stats", false, "Log per-session pipeline stats every 5 seconds")
	flagTLS         = flag.Bool("tls", false, "Enable TLS with auto-generated self-signed certificate")
	flagTLSCert     = flag.String("tls-cert", "", "Path to TLS certificate file (PEM)")
	flagTLSKey      = flag.String("tls-key", "", "Path to TLS private key file (PEM)")
)

func main() {
	flag.Parse()

	if *flagFPS <= 0 {
		log.Fatal("--fps must be > 0")
	}
	if *flagQuality < 1 || *flagQuality > 100 {
		log.Fatal("--quality must be 1-100")
	}
	if *flagThreshold <= 0 || *flagThreshold > 1 {
		log.Fatal("--delta-threshold must be in (0,1]")
	}
	if (*flagTLSCert != "") != (*flagTLSKey != "") {
		log.Fatal("--tls-cert and --tls-key must both be set")
	}

	var tlsConfig *crypto_tls.Config
	if *flagTLSCert == "" && *flagTLS {
		tc, err := tlsutil.SelfSigned()
		if err != nil {
			log.Fatalf("self-signed cert: %v", err)
		}
		tlsConfig = tc
	}

	srv := server.New(server.Config{
		Addr:           *flagAddr,
		Display:        *flagDisplay,
		FPS:            *flagFPS,
		Quality:        *flagQuality,
		MaxSessions:    *flagMaxSessions,
		IdleTimeout:    *flagIdleTimeout,
		DeltaThreshold: *flagThreshold,
		Stats:          *flagStats,

		TLSCert: *flagTLSCert,
		TLSKey:  *flagTLSKey,
		TLS:     tlsConfig,

		NewSource:   newSource,
		NewInjector: newInjector,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %s, shutting down...", sig)
		srv.Shutdown()
		// Give sessions a moment to flush their goodbye.
		time.Sleep(200 * time.Millisecond)
		os.Exit(0)
	}()

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
