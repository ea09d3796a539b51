package spectrum

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"log/slog"

	"github.com/demosjarco/cloudflare-dns-updater/internal/cloudflare"
	"github.com/demosjarco/cloudflare-dns-updater/internal/metrics"
	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
	"github.com/demosjarco/cloudflare-dns-updater/internal/settle"
)

// ErrZoneNotFetched marks a zone whose applications were not listed before the update phase.
var ErrZoneNotFetched = errors.New("spectrum applications of zone were not fetched")

var errEmptyOriginDirect = errors.New("origin_direct is present but empty")

// SyncError reports a zone or application whose origins could not be updated.
// AppID is empty when the failure concerns the whole zone.
type SyncError struct {
	ZoneID string
	AppID  string
	Err    error
}

func (err *SyncError) Error() string {
	if err.AppID == "" {
		return fmt.Sprintf("sync spectrum apps in zone %s: %v", err.ZoneID, err.Err)
	}
	return fmt.Sprintf("sync spectrum app %s in zone %s: %v", err.AppID, err.ZoneID, err.Err)
}

func (err *SyncError) Unwrap() error {
	return err.Err
}

// Engine points the direct origins of Spectrum applications at the discovered addresses.
type Engine struct {
	api    cloudflare.SpectrumAPI
	log    *slog.Logger
	dryRun bool
}

func NewEngine(api cloudflare.SpectrumAPI, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{api: api, log: logger, dryRun: dryRun}
}

type zoneApps struct {
	zoneID string
	apps   []cloudflare.SpectrumApp
}

// Reconcile lists the applications of every zone first, then updates each
// matching application concurrently. It returns a *settle.AggregateError
// listing each failed update.
func (engine *Engine) Reconcile(ctx context.Context, targets []model.ZoneTarget, ips model.IPSet) error {
	declared := declaredNames(targets)
	if len(declared) == 0 {
		return nil
	}

	fetched, fetchErrs := engine.prefetch(ctx, declared)

	tasks := []settle.Task[string]{}
	for _, target := range targets {
		if len(target.SpectrumRecordName) == 0 {
			continue
		}
		zoneID := target.ZoneID
		apps, ok := fetched[zoneID]
		if !ok {
			cause := fetchErrs[zoneID]
			if cause == nil {
				cause = ErrZoneNotFetched
			}
			tasks = append(tasks, func(ctx context.Context) (string, error) {
				return "", &SyncError{ZoneID: zoneID, Err: cause}
			})
			continue
		}

		wanted := nameSet(target.SpectrumRecordName)
		matched := map[string]struct{}{}
		for _, app := range apps {
			name := normalizeName(app.DNS.Name)
			if _, ok := wanted[name]; !ok {
				continue
			}
			matched[name] = struct{}{}
			tasks = append(tasks, func(ctx context.Context) (string, error) {
				if err := engine.updateApp(ctx, zoneID, app, ips); err != nil {
					return "", &SyncError{ZoneID: zoneID, AppID: app.ID, Err: err}
				}
				return app.ID, nil
			})
		}
		for _, name := range target.SpectrumRecordName {
			if _, ok := matched[normalizeName(name)]; !ok {
				engine.log.Warn("no spectrum app found for declared name", "zone", zoneID, "name", name)
			}
		}
	}

	return settle.RunAll(ctx, tasks).Err()
}

// prefetch lists the applications of every zone concurrently and keeps the declared ones.
func (engine *Engine) prefetch(ctx context.Context, declared map[string]map[string]struct{}) (map[string][]cloudflare.SpectrumApp, map[string]error) {
	tasks := make([]settle.Task[zoneApps], 0, len(declared))
	for zoneID, names := range declared {
		tasks = append(tasks, func(ctx context.Context) (zoneApps, error) {
			apps, err := engine.api.ListSpectrumApps(ctx, zoneID)
			if err != nil {
				return zoneApps{}, &SyncError{ZoneID: zoneID, Err: fmt.Errorf("list apps: %w", err)}
			}
			kept := []cloudflare.SpectrumApp{}
			for _, app := range apps {
				if _, ok := names[normalizeName(app.DNS.Name)]; ok {
					kept = append(kept, app)
				}
			}
			engine.log.Debug("fetched spectrum apps", "zone", zoneID, "listed", len(apps), "matching", len(kept))
			return zoneApps{zoneID: zoneID, apps: kept}, nil
		})
	}

	result := settle.RunAll(ctx, tasks)
	fetched := make(map[string][]cloudflare.SpectrumApp, len(result.Successes))
	for _, item := range result.Successes {
		fetched[item.zoneID] = item.apps
	}
	fetchErrs := map[string]error{}
	for _, failure := range result.Failures {
		var syncErr *SyncError
		if errors.As(failure, &syncErr) {
			fetchErrs[syncErr.ZoneID] = syncErr.Err
			engine.log.Error("failed to list spectrum apps", "zone", syncErr.ZoneID, "error", syncErr.Err)
			continue
		}
		engine.log.Error("failed to list spectrum apps", "error", failure)
	}
	return fetched, fetchErrs
}

func (engine *Engine) updateApp(ctx context.Context, zoneID string, app cloudflare.SpectrumApp, ips model.IPSet) error {
	update, err := buildUpdate(app, ips)
	if err != nil {
		return err
	}
	if engine.dryRun {
		engine.log.Info("would update spectrum app origins", "zone", zoneID, "app", app.ID, "name", app.DNS.Name, "origins", strings.Join(update.OriginDirect, ","))
		return nil
	}

	_, err = engine.api.UpdateSpectrumApp(ctx, zoneID, app.ID, update)
	metrics.ObserveUpdate(metrics.KindSpectrumApp, err)
	if err != nil {
		return fmt.Errorf("update app: %w", err)
	}
	engine.log.Info("updated spectrum app origins", "zone", zoneID, "app", app.ID, "name", app.DNS.Name, "origins", strings.Join(update.OriginDirect, ","))
	return nil
}

// buildUpdate passes every present attribute through and rewrites origin_direct
// from its first URL, one URL per address.
func buildUpdate(app cloudflare.SpectrumApp, ips model.IPSet) (cloudflare.SpectrumAppUpdate, error) {
	update := cloudflare.SpectrumAppUpdate{
		Protocol:         app.Protocol,
		DNS:              app.DNS,
		TrafficType:      app.TrafficType,
		ArgoSmartRouting: app.ArgoSmartRouting,
		EdgeIPs:          app.EdgeIPs,
		IPFirewall:       app.IPFirewall,
		OriginDNS:        app.OriginDNS,
		OriginPort:       app.OriginPort,
		ProxyProtocol:    app.ProxyProtocol,
		TLS:              app.TLS,
	}
	if app.OriginDirect == nil {
		return update, nil
	}
	if len(app.OriginDirect) == 0 {
		return cloudflare.SpectrumAppUpdate{}, errEmptyOriginDirect
	}

	origins, err := rewriteOrigins(app.OriginDirect[0], ips)
	if err != nil {
		return cloudflare.SpectrumAppUpdate{}, err
	}
	update.OriginDirect = origins
	return update, nil
}

func rewriteOrigins(template string, ips model.IPSet) ([]string, error) {
	parsed, err := url.Parse(template)
	if err != nil {
		return nil, fmt.Errorf("parse origin %q: %w", template, err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("origin %q has no host", template)
	}

	port := parsed.Port()
	origins := make([]string, 0, len(ips))
	for _, ip := range ips.Strings() {
		origin := *parsed
		if port != "" {
			origin.Host = net.JoinHostPort(ip, port)
		} else {
			origin.Host = ip
		}
		origins = append(origins, origin.String())
	}
	return origins, nil
}

// declaredNames unions the declared Spectrum names per zone.
func declaredNames(targets []model.ZoneTarget) map[string]map[string]struct{} {
	declared := map[string]map[string]struct{}{}
	for _, target := range targets {
		if len(target.SpectrumRecordName) == 0 {
			continue
		}
		names, ok := declared[target.ZoneID]
		if !ok {
			names = map[string]struct{}{}
			declared[target.ZoneID] = names
		}
		for name := range nameSet(target.SpectrumRecordName) {
			names[name] = struct{}{}
		}
	}
	return declared
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[normalizeName(name)] = struct{}{}
	}
	return set
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}
