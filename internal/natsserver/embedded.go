package natsserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

// EmbeddedServer runs an in-process NATS server so local transcription runs
// can publish events without an external broker.
type EmbeddedServer struct {
	ns  *server.Server
	log *slog.Logger
}

// Start creates and starts an embedded NATS server when bus.embedded is set.
// Returns (nil, nil) when embedded mode is disabled.
func Start(cfg config.BusConfig, log *slog.Logger) (*EmbeddedServer, error) {
	if !cfg.Embedded {
		return nil, nil
	}

	opts := &server.Options{
		Host: "127.0.0.1",
		Port: cfg.Port,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server did not become ready")
	}

	log.Info("embedded NATS server started", slog.String("url", ns.ClientURL()))
	return &EmbeddedServer{ns: ns, log: log}, nil
}

// ClientURL returns the URL clients should connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.ns.ClientURL()
}

func (s *EmbeddedServer) Shutdown() {
	if s == nil {
		return
	}
	s.log.Info("shutting down embedded NATS server")
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
