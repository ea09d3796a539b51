package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/demosjarco/cloudflare-dns-updater/internal/config"
	"github.com/demosjarco/cloudflare-dns-updater/internal/metrics"
	"github.com/demosjarco/cloudflare-dns-updater/internal/model"
)

const (
	senderName = "DNS Updater"
	subject    = "Cloudflared Tunnel Down Alert"

	sendTimeout = 30 * time.Second
)

// Message is a tunnel down alert. From and To are the same address.
type Message struct {
	TunnelID string
	From     string
	To       string
	Subject  string
	Body     string
}

// Compose builds the alert for a tunnel without active connections.
func Compose(tunnel model.TunnelConfig) Message {
	return Message{
		TunnelID: tunnel.TunnelID,
		From:     tunnel.FailureEmail,
		To:       tunnel.FailureEmail,
		Subject:  subject,
		Body: fmt.Sprintf("The Cloudflared tunnel with ID %s is currently down. %s are not being updated.",
			tunnel.TunnelID, strings.Join(tunnel.Sections(), ",")),
	}
}

// Msg renders the alert as a plain text e-mail.
func (message Message) Msg() (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(senderName, message.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(message.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(message.Subject)
	msg.SetBodyString(mail.TypeTextPlain, message.Body)
	return msg, nil
}

// Sender delivers alerts.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// SMTPSender delivers alerts through an SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (sender *SMTPSender) Send(ctx context.Context, message Message) error {
	msg, err := message.Msg()
	if err != nil {
		return err
	}

	options := []mail.Option{
		mail.WithPort(sender.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if sender.cfg.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(sender.cfg.Username),
			mail.WithPassword(sender.cfg.Password),
		)
	}
	client, err := mail.NewClient(sender.cfg.Host, options...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send alert to %s: %w", message.To, err)
	}
	return nil
}

// LogSender writes alerts to the log when no SMTP relay is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{log: logger}
}

func (sender *LogSender) Send(ctx context.Context, message Message) error {
	sender.log.Warn("tunnel down alert not mailed; SMTP_HOST is unset", "to", message.To, "subject", message.Subject, "body", message.Body)
	return nil
}

// Notifier sends alerts in the background. Flush waits for pending sends.
type Notifier struct {
	sender  Sender
	log     *slog.Logger
	dryRun  bool
	pending sync.WaitGroup
}

func NewNotifier(sender Sender, logger *slog.Logger, dryRun bool) *Notifier {
	return &Notifier{sender: sender, log: logger, dryRun: dryRun}
}

// Notify queues the alert of a down tunnel and returns immediately.
// Tunnels without failure_email are ignored.
func (notifier *Notifier) Notify(ctx context.Context, tunnel model.TunnelConfig) {
	if tunnel.FailureEmail == "" {
		return
	}
	message := Compose(tunnel)
	if notifier.dryRun {
		notifier.log.Info("would send tunnel down alert", "tunnel", tunnel.TunnelID, "to", message.To)
		return
	}

	sendCtx := context.WithoutCancel(ctx)
	notifier.pending.Add(1)
	go func() {
		defer notifier.pending.Done()
		sendCtx, cancel := context.WithTimeout(sendCtx, sendTimeout)
		defer cancel()

		err := notifier.sender.Send(sendCtx, message)
		metrics.AlertsTotal.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			notifier.log.Error("failed to send tunnel down alert", "tunnel", message.TunnelID, "to", message.To, "error", err)
			return
		}
		notifier.log.Info("sent tunnel down alert", "tunnel", message.TunnelID, "to", message.To)
	}()
}

// Flush blocks until every queued alert has been handed off or ctx ends.
func (notifier *Notifier) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		notifier.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
