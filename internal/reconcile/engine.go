package reconcile

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/demosjarco/cloudflare-dns-updater/internal/metrics"
	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
	"github.com/demosjarco/cloudflare-dns-updater/internal/settle"
)

// Discoverer resolves the egress addresses of a tunnel.
type Discoverer interface {
	Discover(ctx context.Context, tunnelID string) (model.IPSet, error)
}

type LocationReconciler interface {
	Reconcile(ctx context.Context, locationIDs []string, ips model.IPSet) error
}

// ZoneReconciler is implemented by the DNS and Spectrum engines.
type ZoneReconciler interface {
	Reconcile(ctx context.Context, targets []model.ZoneTarget, ips model.IPSet) error
}

type Notifier interface {
	Notify(ctx context.Context, tunnel model.TunnelConfig)
}

// Dependencies wires the engine to discovery, the resource reconcilers and alerting.
type Dependencies struct {
	Discoverer Discoverer
	Locations  LocationReconciler
	Records    ZoneReconciler
	Spectrum   ZoneReconciler
	Notifier   Notifier
}

// TunnelDownError reports a tunnel without any active connection. Its resources were left untouched.
type TunnelDownError struct {
	TunnelID string
	Sections []string
}

func (err *TunnelDownError) Error() string {
	return fmt.Sprintf("tunnel %s is down; %s not updated", err.TunnelID, strings.Join(err.Sections, ","))
}

// TunnelError lists every failure of one tunnel.
type TunnelError struct {
	TunnelID string
	Errors   []error
}

func (err *TunnelError) Error() string {
	return fmt.Sprintf("tunnel %s: %d failure(s): %s", err.TunnelID, len(err.Errors), settle.Messages(err.Errors))
}

func (err *TunnelError) Unwrap() []error {
	return err.Errors
}

// RunError lists every failed tunnel of a run. Cause is set when the run was cut short.
type RunError struct {
	Tunnels []error
	Cause   error
}

func (err *RunError) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("sync run aborted: %v; %d tunnel(s) failed: %s", err.Cause, len(err.Tunnels), settle.Messages(err.Tunnels))
	}
	return fmt.Sprintf("sync run failed for %d tunnel(s): %s", len(err.Tunnels), settle.Messages(err.Tunnels))
}

func (err *RunError) Unwrap() []error {
	if err.Cause == nil {
		return err.Tunnels
	}
	return append([]error{err.Cause}, err.Tunnels...)
}

// Engine synchronises the declared resources of every tunnel with its discovered addresses.
type Engine struct {
	deps Dependencies
	log  *slog.Logger
}

func NewEngine(deps Dependencies, logger *slog.Logger) *Engine {
	return &Engine{deps: deps, log: logger}
}

// Reconcile processes all tunnels concurrently. One failing tunnel never stops
// another; the returned *RunError lists every tunnel that failed.
func (engine *Engine) Reconcile(ctx context.Context, tunnels []model.TunnelConfig) error {
	tasks := make([]settle.Task[string], 0, len(tunnels))
	for _, tunnel := range tunnels {
		tasks = append(tasks, func(ctx context.Context) (string, error) {
			return tunnel.TunnelID, engine.reconcileTunnel(ctx, tunnel)
		})
	}

	result := settle.RunAll(ctx, tasks)
	for _, tunnelID := range result.Successes {
		engine.log.Debug("tunnel synchronised", "tunnel", tunnelID)
	}

	if err := ctx.Err(); err != nil {
		return &RunError{Tunnels: result.Failures, Cause: err}
	}
	if len(result.Failures) > 0 {
		return &RunError{Tunnels: result.Failures}
	}
	return nil
}

func (engine *Engine) reconcileTunnel(ctx context.Context, tunnel model.TunnelConfig) error {
	ips, err := engine.deps.Discoverer.Discover(ctx, tunnel.TunnelID)
	if err != nil {
		return &TunnelError{TunnelID: tunnel.TunnelID, Errors: []error{err}}
	}
	metrics.DiscoveredIPs.WithLabelValues(tunnel.TunnelID).Set(float64(len(ips)))

	if ips.Empty() {
		engine.log.Warn("tunnel has no active connections; skipping updates", "tunnel", tunnel.TunnelID)
		metrics.TunnelsDownTotal.WithLabelValues(tunnel.TunnelID).Inc()
		engine.deps.Notifier.Notify(ctx, tunnel)
		return &TunnelDownError{TunnelID: tunnel.TunnelID, Sections: tunnel.Sections()}
	}
	engine.log.Info("discovered tunnel addresses", "tunnel", tunnel.TunnelID, "ips", ips.String())

	tasks := []settle.Task[struct{}]{}
	if len(tunnel.ZTLocations) > 0 {
		tasks = append(tasks, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, engine.deps.Locations.Reconcile(ctx, tunnel.ZTLocations, ips)
		})
	}
	if hasRecordNames(tunnel.DNSRecords) {
		tasks = append(tasks, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, engine.deps.Records.Reconcile(ctx, tunnel.DNSRecords, ips)
		})
	}
	if tunnel.HasSpectrum() {
		tasks = append(tasks, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, engine.deps.Spectrum.Reconcile(ctx, tunnel.DNSRecords, ips)
		})
	}

	result := settle.RunAll(ctx, tasks)
	if len(result.Failures) == 0 {
		return nil
	}
	failures := settle.Flatten(result.Failures...)
	for _, failure := range failures {
		engine.log.Error("resource update failed", "tunnel", tunnel.TunnelID, "error", failure)
	}
	return &TunnelError{TunnelID: tunnel.TunnelID, Errors: failures}
}

func hasRecordNames(targets []model.ZoneTarget) bool {
	for _, target := range targets {
		if len(target.RecordNames) > 0 {
			return true
		}
	}
	return false
}
