package dns

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"sync"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demosjarco/cloudflare-dns-updater/internal/cloudflare"
	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
)

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Log(string(p))
	return len(p), nil
}

func newLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

func ipSet(values ...string) model.IPSet {
	addrs := make([]netip.Addr, 0, len(values))
	for _, value := range values {
		addrs = append(addrs, netip.MustParseAddr(value))
	}
	return model.NewIPSet(addrs...)
}

func intPtr(value int) *int { return &value }

func boolPtr(value bool) *bool { return &value }

type stubDNSAPI struct {
	mu       sync.Mutex
	records  map[string][]cloudflare.DNSRecord
	listErr  map[string]error
	batchErr error
	batches  map[string]cloudflare.DNSBatch
}

func newStubDNSAPI() *stubDNSAPI {
	return &stubDNSAPI{
		records: map[string][]cloudflare.DNSRecord{},
		listErr: map[string]error{},
		batches: map[string]cloudflare.DNSBatch{},
	}
}

func (api *stubDNSAPI) ListDNSRecords(ctx context.Context, zoneID, recordType, name string) ([]cloudflare.DNSRecord, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if err := api.listErr[name]; err != nil {
		return nil, err
	}
	return api.records[zoneID+"/"+name], nil
}

func (api *stubDNSAPI) BatchDNSRecords(ctx context.Context, zoneID string, batch cloudflare.DNSBatch) (cloudflare.DNSBatchResult, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.batchErr != nil {
		return cloudflare.DNSBatchResult{}, api.batchErr
	}
	name := ""
	if len(batch.Posts) > 0 {
		name = batch.Posts[0].Name
	}
	api.batches[zoneID+"/"+name] = batch

	created := make([]cloudflare.DNSRecord, 0, len(batch.Posts))
	for index, post := range batch.Posts {
		ttl := post.TTL
		created = append(created, cloudflare.DNSRecord{
			ID:      name + "-" + string(rune('a'+index)),
			Name:    post.Name,
			Type:    post.Type,
			Content: post.Content,
			TTL:     &ttl,
			Proxied: post.Proxied,
			Comment: post.Comment,
		})
	}
	api.records[zoneID+"/"+name] = created
	return cloudflare.DNSBatchResult{Posts: created}, nil
}

func TestReconcileReplacesExistingRecord(t *testing.T) {
	api := newStubDNSAPI()
	api.records["zone1/home.example.com"] = []cloudflare.DNSRecord{
		{ID: "r1", Name: "home.example.com", Type: "A", Content: "9.9.9.9", TTL: intPtr(300)},
	}
	engine := NewEngine(api, newLogger(t), false)

	targets := []model.ZoneTarget{{ZoneID: "zone1", RecordNames: []string{"home.example.com"}}}
	require.NoError(t, engine.Reconcile(context.Background(), targets, ipSet("1.2.3.4")))

	batch, ok := api.batches["zone1/home.example.com"]
	require.True(t, ok, "expected a batch for home.example.com")
	encoded, err := json.Marshal(batch)
	require.NoError(t, err)
	assert.Equal(t, `{"deletes":[{"id":"r1"}],"posts":[{"name":"home.example.com","type":"A","content":"1.2.3.4","ttl":300}]}`, string(encoded))
}

func TestReconcileCreatesWithoutExistingRecords(t *testing.T) {
	api := newStubDNSAPI()
	engine := NewEngine(api, newLogger(t), false)

	targets := []model.ZoneTarget{{ZoneID: "zone1", RecordNames: []string{"new.example.com"}}}
	require.NoError(t, engine.Reconcile(context.Background(), targets, ipSet("5.6.7.8", "1.2.3.4")))

	batch := api.batches["zone1/new.example.com"]
	assert.Empty(t, batch.Deletes)
	require.Len(t, batch.Posts, 2)
	assert.Equal(t, "1.2.3.4", batch.Posts[0].Content)
	assert.Equal(t, "5.6.7.8", batch.Posts[1].Content)
	for _, post := range batch.Posts {
		assert.Equal(t, dnsRecordTTL, post.TTL)
		assert.Nil(t, post.Proxied)
		assert.Nil(t, post.Comment)
		assert.Nil(t, post.Tags)
	}
}

func TestBuildBatchCarriesAttributes(t *testing.T) {
	comment := "managed"
	existing := []cloudflare.DNSRecord{
		{ID: "r1", TTL: intPtr(120), Proxied: boolPtr(false), Comment: &comment, Settings: json.RawMessage(`{"ipv4_only":true}`), Tags: []string{"env:home"}},
		{ID: "r2", TTL: intPtr(60)},
	}

	batch := buildBatch("home.example.com", existing, ipSet("1.2.3.4"))

	assert.Equal(t, []cloudflare.DNSRecordRef{{ID: "r1"}, {ID: "r2"}}, batch.Deletes)
	require.Len(t, batch.Posts, 1)
	post := batch.Posts[0]
	assert.Equal(t, 120, post.TTL)
	require.NotNil(t, post.Proxied)
	assert.False(t, *post.Proxied)
	require.NotNil(t, post.Comment)
	assert.Equal(t, comment, *post.Comment)
	assert.JSONEq(t, `{"ipv4_only":true}`, string(post.Settings))
	assert.Equal(t, []string{"env:home"}, post.Tags)
}

func TestReconcileIsIdempotent(t *testing.T) {
	api := newStubDNSAPI()
	engine := NewEngine(api, newLogger(t), false)
	targets := []model.ZoneTarget{{ZoneID: "zone1", RecordNames: []string{"home.example.com"}}}
	ips := ipSet("1.2.3.4", "5.6.7.8")

	require.NoError(t, engine.Reconcile(context.Background(), targets, ips))
	first := api.records["zone1/home.example.com"]
	require.NoError(t, engine.Reconcile(context.Background(), targets, ips))
	second := api.records["zone1/home.example.com"]

	require.Len(t, second, len(first))
	for index := range first {
		assert.Equal(t, first[index].Content, second[index].Content)
		assert.Equal(t, *first[index].TTL, *second[index].TTL)
	}
}

func TestReconcileIsolatesFailures(t *testing.T) {
	api := newStubDNSAPI()
	api.listErr["bad.example.com"] = errors.New("rate limited")
	engine := NewEngine(api, newLogger(t), false)

	targets := []model.ZoneTarget{{ZoneID: "zone1", RecordNames: []string{"bad.example.com", "good.example.com"}}}
	err := engine.Reconcile(context.Background(), targets, ipSet("1.2.3.4"))
	require.Error(t, err)

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "zone1", syncErr.ZoneID)
	assert.Equal(t, "bad.example.com", syncErr.Name)
	assert.Contains(t, api.batches, "zone1/good.example.com", "sibling record should still be updated")
}

func TestReconcileDryRunSkipsBatch(t *testing.T) {
	api := newStubDNSAPI()
	engine := NewEngine(api, newLogger(t), true)

	targets := []model.ZoneTarget{{ZoneID: "zone1", RecordNames: []string{"home.example.com"}}}
	require.NoError(t, engine.Reconcile(context.Background(), targets, ipSet("1.2.3.4")))
	assert.Empty(t, api.batches)
}
