// Package runtime wires telemetry, the event bus, the run store, and the
// speech provider together and drives one transcription run.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/loqalabs/loqa-transcribe/internal/batch"
	"github.com/loqalabs/loqa-transcribe/internal/bus"
	"github.com/loqalabs/loqa-transcribe/internal/config"
	"github.com/loqalabs/loqa-transcribe/internal/natsserver"
	"github.com/loqalabs/loqa-transcribe/internal/speech"
	"github.com/loqalabs/loqa-transcribe/internal/store"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger
	wg     sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Run executes one transcription run end to end and returns its summary.
func (r *Runtime) Run(ctx context.Context) (batch.Summary, error) {
	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	stopMetrics := r.serveMetrics(metricHandler)
	defer stopMetrics()

	busCfg := r.cfg.Bus
	embedded, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return batch.Summary{}, err
	}
	defer embedded.Shutdown()
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}

	var sink batch.EventSink
	if busCfg.Enabled {
		client, err := bus.Connect(busCfg, r.logger)
		if err != nil {
			return batch.Summary{}, err
		}
		defer client.Close()
		sink = client
	}

	st, err := store.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		return batch.Summary{}, err
	}
	defer func() {
		if err := st.Close(); err != nil {
			r.logger.Warn("failed to close run store", slog.String("error", err.Error()))
		}
	}()

	provider, err := speech.NewProvider(r.cfg.Speech, r.logger)
	if err != nil {
		return batch.Summary{}, err
	}

	runner := batch.New(r.cfg, provider, st, sink, r.logger)
	return runner.Run(ctx)
}

// serveMetrics exposes /metrics and /healthz while the run is in flight.
// Disabled unless telemetry.prometheus_bind is set; a short batch rarely
// needs scraping, a long one sometimes does.
func (r *Runtime) serveMetrics(handler http.Handler) func() {
	if r.cfg.Telemetry.PrometheusBind == "" || handler == nil {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              r.cfg.Telemetry.PrometheusBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	r.logger.Info("metrics listener started", slog.String("addr", r.cfg.Telemetry.PrometheusBind))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics server shutdown error", slog.String("error", err.Error()))
		}
		r.wg.Wait()
	}
}
