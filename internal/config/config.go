// Package config loads and validates lead finder configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported archive backends.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Supported lead event publishers.
const (
	PublisherNone   = "none"
	PublisherMemory = "memory"
	PublisherPubSub = "pubsub"
)

// EnvPrefix namespaces environment overrides, e.g. LEADFINDER_SCAN_INTERVAL=10m.
const EnvPrefix = "LEADFINDER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Reddit  RedditConfig  `mapstructure:"reddit"`
	DB      DBConfig      `mapstructure:"db"`
	Scan    ScanConfig    `mapstructure:"scan"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RedditConfig holds API credentials and endpoints.
type RedditConfig struct {
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	UserAgent      string `mapstructure:"user_agent"`
	BaseURL        string `mapstructure:"base_url"`
	TokenURL       string `mapstructure:"token_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Limit          int    `mapstructure:"limit"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ScanConfig selects what each pass searches and how often passes run.
type ScanConfig struct {
	Channels   []string      `mapstructure:"channels"`
	Keywords   []string      `mapstructure:"keywords"`
	Sort       string        `mapstructure:"sort"`
	TimeWindow string        `mapstructure:"time_window"`
	Interval   time.Duration `mapstructure:"interval"`
	Cron       string        `mapstructure:"cron"`
}

// PubSubConfig holds metadata for new-lead notifications. With no backend set,
// a topic selects Pub/Sub and an empty topic disables notifications.
type PubSubConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// PublisherBackend resolves the publisher to build.
func (c PubSubConfig) PublisherBackend() string {
	if c.Backend != "" {
		return c.Backend
	}
	if c.TopicName != "" {
		return PublisherPubSub
	}
	return PublisherNone
}

// ArchiveConfig selects where per-pass JSON snapshots are written.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	ProjectID   string  `mapstructure:"project_id"`
}

// Default search targets.
var (
	DefaultChannels = []string{"forhire", "jobbit", "jobs4bitcoins", "freelance_for_hire"}
	DefaultKeywords = []string{
		"looking for a web developer",
		"need a website built",
		"hiring a freelance developer",
		"help with a web project",
	}
)

// legacyEnv maps keys to the unprefixed variables older deployments set.
var legacyEnv = map[string]string{
	"reddit.client_id":     "REDDIT_CLIENT_ID",
	"reddit.client_secret": "REDDIT_CLIENT_SECRET",
	"reddit.user_agent":    "REDDIT_USER_AGENT",
	"db.dsn":               "DATABASE_URL",
	"server.port":          "PORT",
}

// LoadDotEnv loads variables from the given .env files (default ".env") into
// the process environment without overriding ones already set. Missing files
// are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load builds a Config from an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Scan.Channels = trimAll(cfg.Scan.Channels)
	cfg.Scan.Keywords = trimAll(cfg.Scan.Keywords)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 10000)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("reddit.user_agent", "")
	v.SetDefault("reddit.base_url", "https://oauth.reddit.com")
	v.SetDefault("reddit.token_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("reddit.timeout_seconds", 15)
	v.SetDefault("reddit.limit", 100)
	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("scan.channels", DefaultChannels)
	v.SetDefault("scan.keywords", DefaultKeywords)
	v.SetDefault("scan.sort", "new")
	v.SetDefault("scan.time_window", "week")
	v.SetDefault("scan.interval", 900*time.Second)
	v.SetDefault("scan.cron", "")
	v.SetDefault("pubsub.backend", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.base_dir", "data/scans")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "scans")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "freelance-lead-finder")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.project_id", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" {
		return fmt.Errorf("reddit.client_id and reddit.client_secret are required")
	}
	if c.Reddit.UserAgent == "" {
		return fmt.Errorf("reddit.user_agent is required")
	}
	if c.Reddit.TimeoutSeconds <= 0 {
		return fmt.Errorf("reddit.timeout_seconds must be > 0")
	}
	if c.Reddit.Limit <= 0 || c.Reddit.Limit > 100 {
		return fmt.Errorf("reddit.limit must be between 1 and 100")
	}
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("db.driver %q is not supported", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if len(c.Scan.Channels) == 0 {
		return fmt.Errorf("scan.channels must not be empty")
	}
	if len(c.Scan.Keywords) == 0 {
		return fmt.Errorf("scan.keywords must not be empty")
	}
	if c.Scan.Cron == "" && c.Scan.Interval <= 0 {
		return fmt.Errorf("scan.interval must be > 0")
	}
	switch c.PubSub.PublisherBackend() {
	case PublisherNone:
	case PublisherMemory:
		if c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.topic_name is required for the memory publisher")
		}
	case PublisherPubSub:
		if c.PubSub.TopicName == "" || c.PubSub.ProjectID == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required for the pubsub publisher")
		}
	default:
		return fmt.Errorf("pubsub.backend %q is not supported", c.PubSub.Backend)
	}
	if c.Tracing.Enabled && c.TraceProjectID() == "" {
		return fmt.Errorf("tracing.project_id (or pubsub.project_id) is required when tracing is enabled")
	}
	switch c.Archive.Backend {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not supported", c.Archive.Backend)
	}
	return nil
}

// RedditTimeout converts the forum client timeout into a duration.
func (c Config) RedditTimeout() time.Duration {
	return time.Duration(c.Reddit.TimeoutSeconds) * time.Second
}

// TraceProjectID returns the Cloud Trace project, falling back to the Pub/Sub project.
func (c Config) TraceProjectID() string {
	if c.Tracing.ProjectID != "" {
		return c.Tracing.ProjectID
	}
	return c.PubSub.ProjectID
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
