package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/demosjarco/cloudflare-dns-updater/internal/alert"
	"github.com/demosjarco/cloudflare-dns-updater/internal/cloudflare"
	"github.com/demosjarco/cloudflare-dns-updater/internal/config"
	"github.com/demosjarco/cloudflare-dns-updater/internal/controller"
	"github.com/demosjarco/cloudflare-dns-updater/internal/discovery"
	"github.com/demosjarco/cloudflare-dns-updater/internal/dns"
	"github.com/demosjarco/cloudflare-dns-updater/internal/gateway"
	"github.com/demosjarco/cloudflare-dns-updater/internal/reconcile"
	"github.com/demosjarco/cloudflare-dns-updater/internal/schema"
	"github.com/demosjarco/cloudflare-dns-updater/internal/spectrum"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cloudflare-dns-updater",
	Short: "Keep DNS records, gateway locations and Spectrum apps on the egress IPs of Cloudflare tunnels",
	Long: `cloudflare-dns-updater discovers the live egress IPv4 addresses of the
configured Cloudflare tunnels and points DNS A records, Zero Trust gateway
location networks and Spectrum application origins at them.

Configuration comes from the environment (or a .env file). The tunnel
configuration document is read from CONFIG or CONFIG_FILE on every run.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the tunnel configuration document and print it normalised",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := config.LoadSource()
		if err != nil {
			return report(err)
		}
		data, err := source.Read()
		if err != nil {
			return report(err)
		}
		tunnels, err := schema.ParseDocument(data)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			return err
		}
		encoded, err := json.MarshalIndent(tunnels, "", "  ")
		if err != nil {
			return report(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	},
}

var verifyTokenCmd = &cobra.Command{
	Use:   "verify-token",
	Short: "Check that the Cloudflare API token is valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := strings.TrimSpace(os.Getenv("CF_API_TOKEN"))
		if token == "" {
			if !term.IsTerminal(int(syscall.Stdin)) {
				return report(errors.New("missing required CF_API_TOKEN"))
			}
			fmt.Fprint(cmd.ErrOrStderr(), "Enter Cloudflare API token: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return report(fmt.Errorf("read token from terminal: %w", err))
			}
			token = strings.TrimSpace(string(raw))
		}

		connections, err := cloudflare.NewTunnelConnections(config.CloudflareConfig{
			APIToken: token,
			BaseURL:  strings.TrimSpace(os.Getenv("CF_API_BASE_URL")),
		})
		if err != nil {
			return report(err)
		}
		status, err := connections.VerifyToken(cmd.Context())
		if err != nil {
			return report(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "token status: %s\n", status)
		if status != "active" {
			return report(fmt.Errorf("token is %s", status))
		}
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("cloudflare-dns-updater version %s\nCommit: %s\n", Version, Commit))

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(verifyTokenCmd)
}

func runSync() error {
	cfg, err := config.Load()
	if err != nil {
		return report(fmt.Errorf("failed to load configuration: %w", err))
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	cloudflareClient, err := cloudflare.NewClient(cfg.Cloudflare)
	if err != nil {
		logger.Error("failed to initialize Cloudflare client", "error", err)
		return err
	}
	connections, err := cloudflare.NewTunnelConnections(cfg.Cloudflare)
	if err != nil {
		logger.Error("failed to initialize Cloudflare SDK client", "error", err)
		return err
	}

	var sender alert.Sender = alert.NewLogSender(logger)
	if cfg.SMTP.Enabled() {
		sender = alert.NewSMTPSender(cfg.SMTP)
	}
	notifier := alert.NewNotifier(sender, logger, cfg.Controller.DryRun)

	engine := reconcile.NewEngine(reconcile.Dependencies{
		Discoverer: discovery.NewDiscoverer(connections, logger),
		Locations:  gateway.NewEngine(cloudflareClient, logger, cfg.Controller.DryRun),
		Records:    dns.NewEngine(cloudflareClient, logger, cfg.Controller.DryRun),
		Spectrum:   spectrum.NewEngine(cloudflareClient, logger, cfg.Controller.DryRun),
		Notifier:   notifier,
	}, logger)
	syncController := controller.NewController(cfg.Source, engine, notifier, cfg.Controller.PollInterval, cfg.Controller.RunTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(groupCtx)
	defer cancelRun()

	group.Go(func() error {
		defer cancelRun()
		err := syncController.Run(runCtx, cfg.Controller.RunOnce)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.MetricsAddr != "" {
		group.Go(func() error {
			return controller.ServeMetrics(runCtx, cfg.MetricsAddr, logger)
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("controller stopped with error", "error", err)
		return err
	}
	return nil
}

func report(err error) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel()}))
	log.Error("command failed", "error", err)
	return err
}
