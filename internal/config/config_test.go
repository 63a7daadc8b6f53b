package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
http:
  user_agent: inkwatch-test
  timeout: 10s
feeds:
  festivals:
    region: jp
webhook:
  url: https://discord.com/api/webhooks/1/abc
  mentions:
    splatfest: "<@&10>"
    salmon_run: "<@&20>"
dispatch:
  rate_per_sec: 5
  max_rate_limit_retries: 3
logging:
  level: debug
storage:
  driver: SQLite
  path: ./state/inkwatch.db
  busy_timeout: 2s
scheduler:
  enabled: true
  schedule: "@every 10m"
  timezone: UTC
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	cfg, err := NewConfigManager(writeFile(t, "config.yaml", sampleYAML)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.UserAgent != "inkwatch-test" || cfg.Webhook.Mentions.SalmonRun != "<@&20>" {
		t.Fatalf("unexpected decode: %+v", cfg)
	}
	if cfg.Feeds.Festivals.Region != "JP" {
		t.Fatalf("region = %q, want JP", cfg.Feeds.Festivals.Region)
	}
	if cfg.Feeds.Schedules.URL != DefaultSchedulesURL || cfg.Feeds.Schedules.CachePath != DefaultSchedulesCachePath {
		t.Fatalf("schedules defaults not applied: %+v", cfg.Feeds.Schedules)
	}
	if cfg.Feeds.Festivals.CachePath != DefaultFestivalsCachePath {
		t.Fatalf("festivals cache = %q", cfg.Feeds.Festivals.CachePath)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if !cfg.Logging.Console {
		t.Fatal("console logging should default on when no sink is configured")
	}
	if d, err := cfg.HTTPTimeout(); err != nil || d != 10*time.Second {
		t.Fatalf("HTTPTimeout = %v, %v", d, err)
	}
	if err := cfg.Validate(true); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadJSONDefaults(t *testing.T) {
	cfg, err := NewConfigManager(writeFile(t, "config.json", `{"webhook":{"url":"https://example.com/hook"}}`)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.UserAgent != DefaultUserAgent || cfg.Scheduler.Schedule != DefaultSchedule || cfg.Metrics.Addr != DefaultMetricsAddr {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if d, _ := cfg.HTTPTimeout(); d != DefaultHTTPTimeout {
		t.Fatalf("timeout = %v", d)
	}
	if loc, err := cfg.Location(); err != nil || loc != time.UTC {
		t.Fatalf("Location = %v, %v", loc, err)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name, file, body string
	}{
		{"unknown json key", "c.json", `{"webhook":{"url":"https://x/y"},"slack":{}}`},
		{"unknown yaml key", "c.yml", "webhook:\n  urll: https://x/y\n"},
		{"trailing json", "c.json", `{} {}`},
		{"bad yaml", "c.yaml", "webhook: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewConfigManager(writeFile(t, tt.file, tt.body)).Parse(); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestEnvOverridesWebhookURL(t *testing.T) {
	t.Setenv(EnvWebhookURL, "https://discord.com/api/webhooks/2/from-env")
	cfg, err := NewConfigManager(writeFile(t, "config.yaml", "webhook:\n  url: https://discord.com/api/webhooks/1/file\n")).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.HasSuffix(cfg.Webhook.URL, "from-env") {
		t.Fatalf("webhook url = %q", cfg.Webhook.URL)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		c := &Config{Webhook: WebhookConfig{URL: "https://discord.com/api/webhooks/1/a"}}
		c.Normalize()
		return c
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		webhk  bool
		ok     bool
	}{
		{"valid", func(c *Config) {}, true, true},
		{"missing webhook", func(c *Config) { c.Webhook.URL = "" }, true, false},
		{"missing webhook dry run", func(c *Config) { c.Webhook.URL = "" }, false, true},
		{"bad scheme", func(c *Config) { c.Feeds.Schedules.URL = "ftp://x/y" }, true, false},
		{"bad region", func(c *Config) { c.Feeds.Festivals.Region = "MARS" }, true, false},
		{"bad timeout", func(c *Config) { c.HTTP.Timeout = "soon" }, true, false},
		{"negative rate", func(c *Config) { c.Dispatch.RatePerSec = -1 }, true, false},
		{"bad cron", func(c *Config) { c.Scheduler.Schedule = "every tuesday" }, true, false},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Nowhere/Land" }, true, false},
		{"bad driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "postgres"} }, true, false},
	}
	for _, tt := range tests {
		c := base()
		tt.mutate(c)
		err := c.Validate(tt.webhk)
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
	c := base()
	c.Webhook.URL = ""
	if err := c.Validate(true); !errors.Is(err, ErrNoWebhookURL) {
		t.Fatalf("expected ErrNoWebhookURL, got %v", err)
	}
}

func TestSummarizeChangeHidesSecrets(t *testing.T) {
	t.Parallel()
	a := &Config{Webhook: WebhookConfig{URL: "https://discord.com/api/webhooks/1/secret"}}
	b := &Config{Webhook: WebhookConfig{URL: "https://discord.com/api/webhooks/1/other"}, Dispatch: DispatchConfig{RatePerSec: 2}}
	changed, attrs := SummarizeChange(a, b)
	if strings.Join(changed, ",") != "dispatch,webhook" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatal("expected log attrs")
	}
	if got, _ := SummarizeChange(a, a); len(got) != 0 {
		t.Fatalf("identical configs reported changes: %v", got)
	}
}

func TestWatchPublishesReload(t *testing.T) {
	path := writeFile(t, "config.yaml", "logging:\n  level: info\n")
	m := NewConfigManager(path)
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error { return cfg.Validate(false) })
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-ch:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published level = %q", cfg.Logging.Level)
			}
			if m.Get().Logging.Level != "debug" {
				t.Fatal("reload not committed")
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch: %v", err)
			}
			return
		case <-tick.C:
			// The watcher may not be registered yet; keep rewriting until it notices.
			if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
				t.Fatalf("rewrite: %v", err)
			}
		case <-deadline:
			t.Fatal("no config published after rewrite")
		}
	}
}
