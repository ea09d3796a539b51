package gateway

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/demosjarco/cloudflare-dns-updater/internal/cloudflare"
	"github.com/demosjarco/cloudflare-dns-updater/internal/metrics"
	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
	"github.com/demosjarco/cloudflare-dns-updater/internal/settle"
)

// LocationNotFoundError reports a declared gateway location that does not exist.
type LocationNotFoundError struct {
	LocationID string
}

func (err *LocationNotFoundError) Error() string {
	return fmt.Sprintf("gateway location %s not found", err.LocationID)
}

// SyncError reports a gateway location that could not be fetched or updated.
type SyncError struct {
	LocationID string
	Err        error
}

func (err *SyncError) Error() string {
	return fmt.Sprintf("sync gateway location %s: %v", err.LocationID, err.Err)
}

func (err *SyncError) Unwrap() error {
	return err.Err
}

// Engine replaces the network allow-list of gateway locations with the discovered addresses.
type Engine struct {
	api    cloudflare.LocationAPI
	log    *slog.Logger
	dryRun bool
}

func NewEngine(api cloudflare.LocationAPI, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{api: api, log: logger, dryRun: dryRun}
}

// Reconcile updates every location concurrently and returns a *settle.AggregateError
// listing each location that failed.
func (engine *Engine) Reconcile(ctx context.Context, locationIDs []string, ips model.IPSet) error {
	tasks := make([]settle.Task[string], 0, len(locationIDs))
	for _, locationID := range locationIDs {
		tasks = append(tasks, func(ctx context.Context) (string, error) {
			return locationID, engine.syncLocation(ctx, locationID, ips)
		})
	}
	return settle.RunAll(ctx, tasks).Err()
}

func (engine *Engine) syncLocation(ctx context.Context, locationID string, ips model.IPSet) error {
	location, err := engine.api.GetLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, cloudflare.ErrNotFound) {
			return &LocationNotFoundError{LocationID: locationID}
		}
		return &SyncError{LocationID: locationID, Err: fmt.Errorf("fetch location: %w", err)}
	}
	engine.log.Debug("fetched gateway location", "location", locationID, "name", location.Name, "networks", len(location.Networks))

	update := buildUpdate(location, ips)
	if engine.dryRun {
		engine.log.Info("would update gateway location networks", "location", locationID, "name", location.Name, "ips", ips.String())
		return nil
	}

	_, err = engine.api.UpdateLocation(ctx, locationID, update)
	metrics.ObserveUpdate(metrics.KindGatewayLocation, err)
	if err != nil {
		return &SyncError{LocationID: locationID, Err: fmt.Errorf("update location: %w", err)}
	}
	engine.log.Info("updated gateway location networks", "location", locationID, "name", location.Name, "ips", ips.String())
	return nil
}

// buildUpdate keeps the name and every optional attribute present on the
// fetched location and replaces networks with one /32 per address.
func buildUpdate(location cloudflare.Location, ips model.IPSet) cloudflare.LocationUpdate {
	update := cloudflare.LocationUpdate{
		Name:     location.Name,
		Networks: make([]cloudflare.LocationNetwork, 0, len(ips)),
	}
	if location.ClientDefault != nil {
		update.ClientDefault = location.ClientDefault
	}
	if location.DNSDestinationIPsID != nil {
		update.DNSDestinationIPsID = location.DNSDestinationIPsID
	}
	if location.ECSSupport != nil {
		update.ECSSupport = location.ECSSupport
	}
	if len(location.Endpoints) > 0 && string(location.Endpoints) != "null" {
		update.Endpoints = location.Endpoints
	}
	for _, network := range ips.Networks() {
		update.Networks = append(update.Networks, cloudflare.LocationNetwork{Network: network})
	}
	return update
}
