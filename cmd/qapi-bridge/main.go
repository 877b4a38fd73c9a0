package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tjst-t/qemu-qapi/internal/bridge"
	"github.com/tjst-t/qemu-qapi/internal/config"
	"github.com/tjst-t/qemu-qapi/internal/machine"
	"github.com/tjst-t/qemu-qapi/internal/qapi"
	"github.com/tjst-t/qemu-qapi/internal/qga"
	"github.com/tjst-t/qemu-qapi/internal/qmp"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("qapi-bridge starting...")

	cfg := config.Load()

	// Session traffic goes through slog so LOG_LEVEL=debug shows every line on the wire.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	// Connect to QMP
	qmpClient, err := qmp.NewClient(cfg.QMPSocket, qapi.WithLogger(logger.With("peer", "qmp")))
	if err != nil {
		log.Fatalf("Failed to connect to QMP socket %s: %v", cfg.QMPSocket, err)
	}
	defer qmpClient.Close()
	caps := qmpClient.Capabilities()
	log.Printf("Connected to QMP socket (QEMU %d.%d.%d, oob=%t)",
		caps.Version.QEMU.Major, caps.Version.QEMU.Minor, caps.Version.QEMU.Micro, caps.SupportsOOB())

	// Connect to the guest agent if configured
	var guest qga.Client
	if cfg.QGASocket != "" {
		c, err := qga.NewClient(cfg.QGASocket, qapi.WithLogger(logger.With("peer", "qga")))
		switch {
		case err == nil:
			guest = c
			defer c.Close()
			log.Println("Connected to guest agent")
		case cfg.QGARequired:
			log.Fatalf("Failed to connect to guest agent %s: %v", cfg.QGASocket, err)
		default:
			log.Printf("Guest agent unavailable, guest routes disabled: %v", err)
		}
	}

	m := machine.New(qmpClient, guest, cfg.CDDevice)
	srv := bridge.NewServer(m, cfg.BridgeUser, cfg.BridgePass, cfg.EventPollInterval)

	tlsConfig, err := serverTLSConfig(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		log.Fatalf("TLS setup failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.BridgeAddr,
		Handler:           srv,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if tlsConfig != nil {
			log.Printf("Starting bridge on %s (TLS)", cfg.BridgeAddr)
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			log.Printf("Starting bridge on %s", cfg.BridgeAddr)
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Bridge server error: %v", err)
		}
	}()

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %s, shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}
