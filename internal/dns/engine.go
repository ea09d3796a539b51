package dns

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/demosjarco/cloudflare-dns-updater/internal/cloudflare"
	"github.com/demosjarco/cloudflare-dns-updater/internal/metrics"
	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
	"github.com/demosjarco/cloudflare-dns-updater/internal/settle"
)

const (
	dnsRecordType = "A"
	dnsRecordTTL  = 1
)

// SyncError reports a record name of a zone that could not be moved to the discovered addresses.
type SyncError struct {
	ZoneID string
	Name   string
	Err    error
}

func (err *SyncError) Error() string {
	return fmt.Sprintf("sync DNS record %s in zone %s: %v", err.Name, err.ZoneID, err.Err)
}

func (err *SyncError) Unwrap() error {
	return err.Err
}

// Engine replaces the A records of declared names with one record per discovered address.
type Engine struct {
	api    cloudflare.DNSAPI
	log    *slog.Logger
	dryRun bool
}

func NewEngine(api cloudflare.DNSAPI, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{api: api, log: logger, dryRun: dryRun}
}

// Reconcile updates every (zone, record name) pair concurrently and returns
// a *settle.AggregateError listing each pair that failed.
func (engine *Engine) Reconcile(ctx context.Context, targets []model.ZoneTarget, ips model.IPSet) error {
	tasks := []settle.Task[string]{}
	for _, target := range targets {
		for _, name := range target.RecordNames {
			tasks = append(tasks, func(ctx context.Context) (string, error) {
				err := engine.syncRecord(ctx, target.ZoneID, name, ips)
				if err != nil {
					return "", &SyncError{ZoneID: target.ZoneID, Name: name, Err: err}
				}
				return name, nil
			})
		}
	}
	return settle.RunAll(ctx, tasks).Err()
}

func (engine *Engine) syncRecord(ctx context.Context, zoneID, name string, ips model.IPSet) error {
	existing, err := engine.api.ListDNSRecords(ctx, zoneID, dnsRecordType, name)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	engine.log.Debug("fetched DNS records", "zone", zoneID, "name", name, "records", len(existing))

	batch := buildBatch(name, existing, ips)
	if engine.dryRun {
		engine.log.Info("would replace DNS records", "zone", zoneID, "name", name, "deletes", len(batch.Deletes), "ips", ips.String())
		return nil
	}

	result, err := engine.api.BatchDNSRecords(ctx, zoneID, batch)
	metrics.ObserveUpdate(metrics.KindDNSRecord, err)
	if err != nil {
		return fmt.Errorf("batch update: %w", err)
	}
	engine.log.Info("replaced DNS records", "zone", zoneID, "name", name, "deleted", len(result.Deletes), "created", len(result.Posts), "ips", ips.String())
	return nil
}

// buildBatch deletes every existing record and posts one record per address.
// Attributes of the first existing record carry over to the new records.
func buildBatch(name string, existing []cloudflare.DNSRecord, ips model.IPSet) cloudflare.DNSBatch {
	template := cloudflare.DNSRecordInput{Name: name, Type: dnsRecordType, TTL: dnsRecordTTL}
	if len(existing) > 0 {
		first := existing[0]
		if first.TTL != nil {
			template.TTL = *first.TTL
		}
		template.Proxied = first.Proxied
		template.Comment = first.Comment
		template.Settings = first.Settings
		template.Tags = first.Tags
	}

	batch := cloudflare.DNSBatch{}
	for _, record := range existing {
		batch.Deletes = append(batch.Deletes, cloudflare.DNSRecordRef{ID: record.ID})
	}
	for _, ip := range ips.Strings() {
		post := template
		post.Content = ip
		batch.Posts = append(batch.Posts, post)
	}
	return batch
}
