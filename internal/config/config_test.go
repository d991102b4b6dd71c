package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("REDDIT_CLIENT_ID", "id")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("REDDIT_USER_AGENT", "lead-finder/0.1 by tester")
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")
}

func TestLoadDefaults(t *testing.T) {
	setCredentials(t)
	t.Setenv("PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 10000, cfg.Server.Port)
	require.Equal(t, DefaultChannels, cfg.Scan.Channels)
	require.Equal(t, DefaultKeywords, cfg.Scan.Keywords)
	require.Equal(t, "new", cfg.Scan.Sort)
	require.Equal(t, "week", cfg.Scan.TimeWindow)
	require.Equal(t, 900*time.Second, cfg.Scan.Interval)
	require.Equal(t, DriverPostgres, cfg.DB.Driver)
	require.Equal(t, "postgres://localhost/leads", cfg.DB.DSN)
	require.Equal(t, 100, cfg.Reddit.Limit)
	require.Equal(t, 15*time.Second, cfg.RedditTimeout())
	require.Equal(t, ArchiveNone, cfg.Archive.Backend)
}

func TestLoadLegacyEnv(t *testing.T) {
	setCredentials(t)
	t.Setenv("PORT", "8081")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8081, cfg.Server.Port)
	require.Equal(t, "id", cfg.Reddit.ClientID)
	require.Equal(t, "secret", cfg.Reddit.ClientSecret)
	require.Equal(t, "lead-finder/0.1 by tester", cfg.Reddit.UserAgent)
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	setCredentials(t)
	t.Setenv("PORT", "8081")
	t.Setenv("LEADFINDER_SERVER_PORT", "9000")
	t.Setenv("LEADFINDER_DB_DSN", "file:leads.db")
	t.Setenv("LEADFINDER_DB_DRIVER", "sqlite")
	t.Setenv("LEADFINDER_SCAN_INTERVAL", "10m")
	t.Setenv("LEADFINDER_SCAN_CHANNELS", "forhire, jobbit")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, DriverSQLite, cfg.DB.Driver)
	require.Equal(t, "file:leads.db", cfg.DB.DSN)
	require.Equal(t, 10*time.Minute, cfg.Scan.Interval)
	require.Equal(t, []string{"forhire", "jobbit"}, cfg.Scan.Channels)
}

func TestLoadWithFileOverrides(t *testing.T) {
	setCredentials(t)
	t.Setenv("PORT", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: true
  level: debug
scan:
  channels: [forhire]
  keywords: ["need a website built"]
  cron: "@every 15m"
pubsub:
  project_id: proj
  topic_name: new-leads
archive:
  backend: local
  base_dir: /tmp/scans
tracing:
  enabled: true
  sample_ratio: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, []string{"forhire"}, cfg.Scan.Channels)
	require.Equal(t, "@every 15m", cfg.Scan.Cron)
	require.Equal(t, "new-leads", cfg.PubSub.TopicName)
	require.Equal(t, ArchiveLocal, cfg.Archive.Backend)
	require.True(t, cfg.Tracing.Enabled)
	require.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
	require.Equal(t, PublisherPubSub, cfg.PubSub.PublisherBackend())
	require.Equal(t, "proj", cfg.TraceProjectID())
}

func TestLoadMissingFile(t *testing.T) {
	setCredentials(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{Port: 10000},
			Reddit: RedditConfig{ClientID: "id", ClientSecret: "s", UserAgent: "ua", TimeoutSeconds: 15, Limit: 100},
			DB:     DBConfig{Driver: DriverPostgres, DSN: "postgres://x"},
			Scan: ScanConfig{
				Channels: []string{"forhire"}, Keywords: []string{"k"}, Interval: time.Minute,
			},
			Archive: ArchiveConfig{Backend: ArchiveNone},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"port":            func(c *Config) { c.Server.Port = 0 },
		"client id":       func(c *Config) { c.Reddit.ClientID = "" },
		"user agent":      func(c *Config) { c.Reddit.UserAgent = "" },
		"limit":           func(c *Config) { c.Reddit.Limit = 101 },
		"driver":          func(c *Config) { c.DB.Driver = "mysql" },
		"dsn":             func(c *Config) { c.DB.DSN = "" },
		"channels":        func(c *Config) { c.Scan.Channels = nil },
		"keywords":        func(c *Config) { c.Scan.Keywords = nil },
		"interval":        func(c *Config) { c.Scan.Interval = 0 },
		"pubsub project":  func(c *Config) { c.PubSub.TopicName = "t" },
		"pubsub backend":  func(c *Config) { c.PubSub.Backend = "kafka" },
		"memory topic":    func(c *Config) { c.PubSub.Backend = PublisherMemory },
		"tracing project": func(c *Config) { c.Tracing.Enabled = true },
		"archive backend": func(c *Config) { c.Archive.Backend = "s3" },
		"gcs bucket":      func(c *Config) { c.Archive.Backend = ArchiveGCS },
		"local dir":       func(c *Config) { c.Archive.Backend = ArchiveLocal },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	cronOnly := valid()
	cronOnly.Scan.Interval = 0
	cronOnly.Scan.Cron = "@hourly"
	require.NoError(t, cronOnly.Validate())

	memory := valid()
	memory.PubSub = PubSubConfig{Backend: PublisherMemory, TopicName: "new-leads"}
	require.NoError(t, memory.Validate())

	traced := valid()
	traced.Tracing = TracingConfig{Enabled: true, ProjectID: "proj"}
	require.NoError(t, traced.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LEADFINDER_TEST_DOTENV=from-file\nLEADFINDER_TEST_PRESET=from-file\n"), 0o600))
	t.Setenv("LEADFINDER_TEST_PRESET", "from-env")
	t.Setenv("LEADFINDER_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("LEADFINDER_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))
	require.Equal(t, "from-file", os.Getenv("LEADFINDER_TEST_DOTENV"))
	require.Equal(t, "from-env", os.Getenv("LEADFINDER_TEST_PRESET"))
}
