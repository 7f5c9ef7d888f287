// Package config defines the depthwatch configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/depthwatch/internal/bands"
	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DEPTHWATCH_* environment variables.
type Config struct {
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Engine   EngineConfig   `toml:"engine"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// RedisConfig holds Redis connection parameters. Redis carries the record
// logs, the view cache and the signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// StreamMaxLen caps each events:<market> stream (approximate trim).
	StreamMaxLen int64 `toml:"stream_max_len"`
}

// PostgresConfig holds the snapshot history database parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// EngineConfig is the analytics surface: which streams to follow and how
// their records are filtered, aggregated and displayed.
type EngineConfig struct {
	Symbol string `toml:"symbol"`
	// VenueSides is a subset of {spot, futures}; empty means discover.
	VenueSides      []string `toml:"venue_sides"`
	Mode            string   `toml:"mode"`
	MinBidThreshold float64  `toml:"min_bid_threshold"`
	MinAskThreshold float64  `toml:"min_ask_threshold"`
	// BandFilter lists band labels, or ["all"].
	BandFilter     []string `toml:"band_filter"`
	TopN           int      `toml:"top_n"`
	PricePrecision int      `toml:"price_precision"`
	SizePrecision  int      `toml:"size_precision"`
	StickySide     string   `toml:"sticky_side"`
	DisplayMode    string   `toml:"display_mode"`
	PollInterval   duration `toml:"poll_interval"`
	RingCapacity   int      `toml:"ring_capacity"`
	// Persist writes every band update to Postgres.
	Persist bool `toml:"persist"`
	// Verbose logs every rendered update at Info instead of Debug.
	Verbose bool `toml:"verbose"`
}

// ArchiveConfig controls moving old snapshots from Postgres to S3.
type ArchiveConfig struct {
	Enabled   bool     `toml:"enabled"`
	Cron      string   `toml:"cron"`
	Retention duration `toml:"retention"`
	// Prune deletes archived rows from Postgres.
	Prune bool `toml:"prune"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "500ms", "720h").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials and alert rules.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// ImbalanceThreshold is the absolute imbalance % that raises an alert;
	// zero disables imbalance alerts.
	ImbalanceThreshold float64  `toml:"imbalance_threshold"`
	ImbalanceBand      string   `toml:"imbalance_band"`
	Cooldown           duration `toml:"cooldown"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "depthwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "depthwatch-archive",
			ForcePathStyle: true,
		},
		Engine: EngineConfig{
			Symbol:         "BTCUSDT",
			Mode:           "both",
			BandFilter:     []string{"all"},
			TopN:           10,
			PricePrecision: 2,
			SizePrecision:  3,
			StickySide:     "none",
			DisplayMode:    "both",
			PollInterval:   duration{500 * time.Millisecond},
			RingCapacity:   100,
		},
		Archive: ArchiveConfig{
			Cron:      "0 3 * * *",
			Retention: duration{30 * 24 * time.Hour},
			Prune:     true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events:        []string{"stream_failed", "imbalance", "archive"},
			ImbalanceBand: "0-1",
			Cooldown:      duration{5 * time.Minute},
		},
		Mode:     "tail",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"tail":    true,
	"server":  true,
	"full":    true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsPostgres reports whether the configured mode touches the snapshot
// history database.
func (c *Config) NeedsPostgres() bool {
	switch c.Mode {
	case "archive":
		return true
	case "full":
		return c.Engine.Persist || c.Archive.Enabled
	default:
		return c.Engine.Persist
	}
}

// NeedsS3 reports whether the configured mode writes archives.
func (c *Config) NeedsS3() bool {
	return c.Mode == "archive" || (c.Mode == "full" && c.Archive.Enabled)
}

// Venues returns the configured venue sides as domain values.
func (c *Config) Venues() []domain.Venue {
	out := make([]domain.Venue, 0, len(c.Engine.VenueSides))
	for _, v := range c.Engine.VenueSides {
		out = append(out, domain.Venue(strings.ToLower(strings.TrimSpace(v))))
	}
	return out
}

// Modes expands engine.mode into the band modes to compute.
func (c *Config) Modes() []domain.Mode {
	switch strings.ToLower(c.Engine.Mode) {
	case "noncumulative":
		return []domain.Mode{domain.ModeNonCumulative}
	case "cumulative":
		return []domain.Mode{domain.ModeCumulative}
	default:
		return []domain.Mode{domain.ModeNonCumulative, domain.ModeCumulative}
	}
}

// Bands returns the band filter, or nil for all bands. An invalid filter
// also yields nil; Validate reports it.
func (c *Config) Bands() []string {
	selected, err := bands.ParseBandFilter(c.Engine.BandFilter)
	if err != nil {
		return nil
	}
	return selected
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: tail, server, full, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Engine
	e := c.Engine
	if strings.TrimSpace(e.Symbol) == "" {
		errs = append(errs, "engine: symbol must not be empty")
	}
	for _, v := range c.Venues() {
		if v != domain.VenueSpot && v != domain.VenueFutures {
			errs = append(errs, fmt.Sprintf("engine: unknown venue side %q (valid: spot, futures)", v))
		}
	}
	switch strings.ToLower(e.Mode) {
	case "noncumulative", "cumulative", "both":
	default:
		errs = append(errs, fmt.Sprintf("engine: unknown mode %q (valid: noncumulative, cumulative, both)", e.Mode))
	}
	if e.MinBidThreshold < 0 || e.MinAskThreshold < 0 {
		errs = append(errs, "engine: thresholds must be >= 0")
	}
	if _, err := bands.ParseBandFilter(e.BandFilter); err != nil {
		errs = append(errs, fmt.Sprintf("engine: band_filter: %v (valid: %s or all)", err, strings.Join(domain.Bands, ", ")))
	}
	if e.TopN < 1 {
		errs = append(errs, "engine: top_n must be >= 1")
	}
	if e.PricePrecision < 0 || e.SizePrecision < 0 {
		errs = append(errs, "engine: precisions must be >= 0")
	}
	switch strings.ToLower(e.StickySide) {
	case "", "none", "bid", "ask":
	default:
		errs = append(errs, fmt.Sprintf("engine: unknown sticky_side %q (valid: bid, ask, none)", e.StickySide))
	}
	switch strings.ToLower(e.DisplayMode) {
	case "total", "ratio", "both":
	default:
		errs = append(errs, fmt.Sprintf("engine: unknown display_mode %q (valid: total, ratio, both)", e.DisplayMode))
	}
	if e.PollInterval.Duration <= 0 {
		errs = append(errs, "engine: poll_interval must be > 0")
	}
	if e.RingCapacity < 1 {
		errs = append(errs, "engine: ring_capacity must be >= 1")
	}

	// Postgres
	if c.NeedsPostgres() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// S3 + archive
	if c.NeedsS3() {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.Archive.Retention.Duration <= 0 {
			errs = append(errs, "archive: retention must be > 0")
		}
	}
	if c.Mode == "full" && c.Archive.Enabled && strings.TrimSpace(c.Archive.Cron) == "" {
		errs = append(errs, "archive: cron must be set when archive is enabled in full mode")
	}

	// Server
	if c.Mode == "server" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify
	if c.Notify.ImbalanceThreshold < 0 || c.Notify.ImbalanceThreshold > 100 {
		errs = append(errs, "notify: imbalance_threshold must be within 0-100")
	}
	if c.Notify.ImbalanceThreshold > 0 && !domain.IsBand(c.Notify.ImbalanceBand) {
		errs = append(errs, fmt.Sprintf("notify: unknown imbalance_band %q", c.Notify.ImbalanceBand))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
