package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Cloudflare  CloudflareConfig
	Controller  ControllerConfig
	Source      SourceConfig
	SMTP        SMTPConfig
	MetricsAddr string
	LogLevel    slog.Level
}

type CloudflareConfig struct {
	APIToken  string
	AccountID string
	BaseURL   string
}

type ControllerConfig struct {
	PollInterval time.Duration
	RunTimeout   time.Duration
	RunOnce      bool
	DryRun       bool
}

// SourceConfig locates the tunnel configuration document.
type SourceConfig struct {
	Inline string
	File   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Enabled reports whether alert e-mails can be delivered.
func (cfg SMTPConfig) Enabled() bool {
	return cfg.Host != ""
}

var errNoSource = errors.New("missing tunnel configuration: set CONFIG or CONFIG_FILE")

// Load parses configuration from environment variables, after applying a .env file when present.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	controller, err := loadController()
	if err != nil {
		return Config{}, err
	}

	logLevel, err := parseLogLevel(getEnvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cloudflare, err := LoadCloudflare()
	if err != nil {
		return Config{}, err
	}

	source, err := LoadSource()
	if err != nil {
		return Config{}, err
	}

	smtp, err := loadSMTP()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Cloudflare:  cloudflare,
		Controller:  controller,
		Source:      source,
		SMTP:        smtp,
		MetricsAddr: strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		LogLevel:    logLevel,
	}, nil
}

// LoadCloudflare reads the API credentials.
func LoadCloudflare() (CloudflareConfig, error) {
	apiToken, err := requiredEnv("CF_API_TOKEN")
	if err != nil {
		return CloudflareConfig{}, err
	}
	accountID, err := requiredEnv("CF_ACCOUNT_ID")
	if err != nil {
		return CloudflareConfig{}, err
	}
	return CloudflareConfig{
		APIToken:  apiToken,
		AccountID: accountID,
		BaseURL:   strings.TrimSpace(os.Getenv("CF_API_BASE_URL")),
	}, nil
}

// LoadSource reads where the tunnel configuration document lives.
func LoadSource() (SourceConfig, error) {
	if err := loadDotEnv(); err != nil {
		return SourceConfig{}, err
	}
	source := SourceConfig{
		Inline: os.Getenv("CONFIG"),
		File:   strings.TrimSpace(os.Getenv("CONFIG_FILE")),
	}
	if strings.TrimSpace(source.Inline) == "" && source.File == "" {
		return SourceConfig{}, errNoSource
	}
	return source, nil
}

// LogLevel reads LOG_LEVEL on its own, for commands that do not need the full configuration.
func LogLevel() slog.Level {
	level, err := parseLogLevel(getEnvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// Read returns the raw document. The inline value wins over the file.
func (source SourceConfig) Read() ([]byte, error) {
	if strings.TrimSpace(source.Inline) != "" {
		return []byte(source.Inline), nil
	}
	if source.File == "" {
		return nil, errNoSource
	}
	data, err := os.ReadFile(source.File)
	if err != nil {
		return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	return data, nil
}

func loadController() (ControllerConfig, error) {
	pollInterval, err := parseDurationEnv("SYNC_POLL_INTERVAL", "5m")
	if err != nil {
		return ControllerConfig{}, err
	}
	runTimeout, err := parseDurationEnv("SYNC_RUN_TIMEOUT", "5m")
	if err != nil {
		return ControllerConfig{}, err
	}
	runOnce, err := parseBoolEnv("SYNC_RUN_ONCE", false)
	if err != nil {
		return ControllerConfig{}, err
	}
	dryRun, err := parseBoolEnv("SYNC_DRY_RUN", false)
	if err != nil {
		return ControllerConfig{}, err
	}
	return ControllerConfig{
		PollInterval: pollInterval,
		RunTimeout:   runTimeout,
		RunOnce:      runOnce,
		DryRun:       dryRun,
	}, nil
}

func loadSMTP() (SMTPConfig, error) {
	port, err := strconv.Atoi(getEnvDefault("SMTP_PORT", "587"))
	if err != nil || port <= 0 || port > 65535 {
		return SMTPConfig{}, fmt.Errorf("invalid SMTP_PORT: %q", os.Getenv("SMTP_PORT"))
	}
	return SMTPConfig{
		Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
	}, nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func requiredEnv(key string) (string, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", fmt.Errorf("missing required %s", key)
	}
	return value, nil
}

func getEnvDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func parseDurationEnv(key, fallback string) (time.Duration, error) {
	parsed, err := time.ParseDuration(getEnvDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return parsed, nil
}

func parseBoolEnv(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := parseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", value)
	}
}

func parseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL: %s", value)
	}
}
