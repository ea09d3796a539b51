package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/demosjarco/cloudflare-dns-updater/internal/metrics"
	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
	"github.com/demosjarco/cloudflare-dns-updater/internal/schema"
)

// Source returns the raw tunnel configuration document.
type Source interface {
	Read() ([]byte, error)
}

type Engine interface {
	Reconcile(ctx context.Context, tunnels []model.TunnelConfig) error
}

// Flusher waits for background alert deliveries.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Controller triggers sync runs once or on an interval.
type Controller struct {
	source     Source
	engine     Engine
	notifier   Flusher
	interval   time.Duration
	runTimeout time.Duration
	log        *slog.Logger
}

func NewController(source Source, engine Engine, notifier Flusher, interval time.Duration, runTimeout time.Duration, logger *slog.Logger) *Controller {
	return &Controller{
		source:     source,
		engine:     engine,
		notifier:   notifier,
		interval:   interval,
		runTimeout: runTimeout,
		log:        logger,
	}
}

// Run performs a sync run immediately and then on every tick until ctx ends.
// With runOnce the error of the single run is returned.
func (controller *Controller) Run(ctx context.Context, runOnce bool) error {
	err := controller.syncOnce(ctx)
	if runOnce {
		return err
	}
	if err != nil {
		controller.log.Error("initial sync failed", "error", err)
	}

	ticker := time.NewTicker(controller.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := controller.syncOnce(ctx); err != nil {
				controller.log.Error("sync failed", "error", err)
			}
		}
	}
}

func (controller *Controller) syncOnce(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RunDuration)

	tunnels, err := controller.loadTunnels()
	if err != nil {
		metrics.RunsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, controller.runTimeout)
	err = controller.engine.Reconcile(runCtx, tunnels)
	cancel()

	if flushErr := controller.notifier.Flush(ctx); flushErr != nil {
		controller.log.Warn("pending alerts not flushed", "error", flushErr)
	}

	metrics.RunsTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	controller.log.Info("sync run completed", "tunnels", len(tunnels), "duration", timer.Duration())
	return nil
}

func (controller *Controller) loadTunnels() ([]model.TunnelConfig, error) {
	data, err := controller.source.Read()
	if err != nil {
		return nil, err
	}
	tunnels, err := schema.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	for _, tunnel := range tunnels {
		controller.log.Debug("parsed tunnel configuration", "tunnel", tunnel.TunnelID, "zt_locations", len(tunnel.ZTLocations), "dns_records", len(tunnel.DNSRecords), "alerts", tunnel.FailureEmail != "")
	}
	return tunnels, nil
}

// ServeMetrics exposes /metrics on addr until ctx ends.
func ServeMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
