package alert

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
)

const tunnelID = "6f2b1b4e-8c1d-4b7a-9f3e-2a5c7d9e1b3f"

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Log(string(p))
	return len(p), nil
}

type recordingSender struct {
	mu       sync.Mutex
	messages []Message
	delay    time.Duration
	err      error
}

func (sender *recordingSender) Send(ctx context.Context, message Message) error {
	time.Sleep(sender.delay)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.messages = append(sender.messages, message)
	return sender.err
}

func (sender *recordingSender) sent() []Message {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return append([]Message(nil), sender.messages...)
}

func TestCompose(t *testing.T) {
	tunnel := model.TunnelConfig{
		TunnelID:     tunnelID,
		FailureEmail: "ops@example.com",
		ZTLocations:  []string{"0c7a1b2d3e4f4a5b8c6d7e8f9a0b1c2d"},
		DNSRecords:   []model.ZoneTarget{{ZoneID: "zone1", RecordNames: []string{"home.example.com"}}},
	}

	message := Compose(tunnel)

	assert.Equal(t, "ops@example.com", message.From)
	assert.Equal(t, "ops@example.com", message.To)
	assert.Equal(t, "Cloudflared Tunnel Down Alert", message.Subject)
	assert.Equal(t, "The Cloudflared tunnel with ID "+tunnelID+" is currently down. zt_locations,dns_records are not being updated.", message.Body)
}

func TestComposeSingleSection(t *testing.T) {
	message := Compose(model.TunnelConfig{TunnelID: tunnelID, FailureEmail: "ops@example.com", ZTLocations: []string{"x"}})
	assert.Contains(t, message.Body, " zt_locations are not being updated.")
}

func TestMessageRendersHeaders(t *testing.T) {
	message := Compose(model.TunnelConfig{TunnelID: tunnelID, FailureEmail: "ops@example.com", ZTLocations: []string{"x"}})

	msg, err := message.Msg()
	require.NoError(t, err)

	var raw bytes.Buffer
	_, err = msg.WriteTo(&raw)
	require.NoError(t, err)

	rendered := raw.String()
	assert.Contains(t, rendered, "Subject: Cloudflared Tunnel Down Alert")
	assert.Contains(t, rendered, `"DNS Updater" <ops@example.com>`)
	assert.Contains(t, rendered, "To: ")
	assert.Contains(t, rendered, "text/plain")
}

func TestMessageRejectsInvalidAddress(t *testing.T) {
	_, err := Message{From: "not an address", To: "not an address"}.Msg()
	assert.Error(t, err)
}

func TestNotifierSendsInBackground(t *testing.T) {
	sender := &recordingSender{delay: 20 * time.Millisecond}
	notifier := NewNotifier(sender, slog.New(slog.NewTextHandler(testWriter{t}, nil)), false)

	notifier.Notify(context.Background(), model.TunnelConfig{TunnelID: tunnelID, FailureEmail: "ops@example.com", ZTLocations: []string{"x"}})
	assert.Empty(t, sender.sent())

	require.NoError(t, notifier.Flush(context.Background()))
	require.Len(t, sender.sent(), 1)
	assert.Equal(t, "ops@example.com", sender.sent()[0].To)
}

func TestNotifierIgnoresTunnelsWithoutEmail(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewNotifier(sender, slog.New(slog.NewTextHandler(testWriter{t}, nil)), false)

	notifier.Notify(context.Background(), model.TunnelConfig{TunnelID: tunnelID, ZTLocations: []string{"x"}})

	require.NoError(t, notifier.Flush(context.Background()))
	assert.Empty(t, sender.sent())
}

func TestNotifierSendFailureIsLogged(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay refused")}
	notifier := NewNotifier(sender, slog.New(slog.NewTextHandler(testWriter{t}, nil)), false)

	notifier.Notify(context.Background(), model.TunnelConfig{TunnelID: tunnelID, FailureEmail: "ops@example.com", ZTLocations: []string{"x"}})

	require.NoError(t, notifier.Flush(context.Background()))
	assert.Len(t, sender.sent(), 1)
}

func TestNotifierOutlivesCanceledRun(t *testing.T) {
	sender := &recordingSender{delay: 10 * time.Millisecond}
	notifier := NewNotifier(sender, slog.New(slog.NewTextHandler(testWriter{t}, nil)), false)

	runCtx, cancel := context.WithCancel(context.Background())
	notifier.Notify(runCtx, model.TunnelConfig{TunnelID: tunnelID, FailureEmail: "ops@example.com", ZTLocations: []string{"x"}})
	cancel()

	require.NoError(t, notifier.Flush(context.Background()))
	assert.Len(t, sender.sent(), 1)
}

func TestFlushHonoursContext(t *testing.T) {
	sender := &recordingSender{delay: 200 * time.Millisecond}
	notifier := NewNotifier(sender, slog.New(slog.NewTextHandler(testWriter{t}, nil)), false)
	notifier.Notify(context.Background(), model.TunnelConfig{TunnelID: tunnelID, FailureEmail: "ops@example.com", ZTLocations: []string{"x"}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, notifier.Flush(ctx), context.DeadlineExceeded)

	require.NoError(t, notifier.Flush(context.Background()))
}
