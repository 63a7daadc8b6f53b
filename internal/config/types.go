package config

// Config is the on-disk configuration (JSON or YAML).
//
// Unknown keys are rejected at load time. Defaults are applied by Normalize.
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Feeds     FeedsConfig     `json:"feeds"`
	Webhook   WebhookConfig   `json:"webhook"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Metrics   MetricsConfig   `json:"metrics"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

type HTTPConfig struct {
	UserAgent string `json:"user_agent,omitempty"`
	// Timeout is a Go duration string (e.g. "30s").
	Timeout string `json:"timeout,omitempty"`
}

type FeedsConfig struct {
	Schedules FeedConfig          `json:"schedules"`
	Festivals FestivalsFeedConfig `json:"festivals"`
}

// FeedConfig locates one feed and its cache file.
// CachePath is relative to the working directory unless absolute.
type FeedConfig struct {
	URL       string `json:"url,omitempty"`
	CachePath string `json:"cache_path,omitempty"`
}

type FestivalsFeedConfig struct {
	URL       string `json:"url,omitempty"`
	CachePath string `json:"cache_path,omitempty"`
	// Region is one of US, EU, JP, AP.
	Region string `json:"region,omitempty"`
}

// WebhookConfig holds the Discord webhook target.
//
// The URL is a secret: prefer the INKWATCH_WEBHOOK_URL environment variable.
type WebhookConfig struct {
	URL      string         `json:"url,omitempty"`
	Mentions MentionsConfig `json:"mentions"`
}

// MentionsConfig holds the message content per audience, e.g. "<@&1234>".
type MentionsConfig struct {
	Splatfest string `json:"splatfest,omitempty"`
	SalmonRun string `json:"salmon_run,omitempty"`
}

// DispatchConfig controls delivery.
//
//   - rate_per_sec: pre-send token bucket shared by all sends; 0 disables
//   - max_rate_limit_retries: per notification; 0 retries until success
type DispatchConfig struct {
	RatePerSec          int `json:"rate_per_sec,omitempty"`
	MaxRateLimitRetries int `json:"max_rate_limit_retries,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional delivery log.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./inkwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// MetricsConfig controls Prometheus exposition.
//
// In daemon mode Addr serves /metrics. In one-shot mode PushURL (if set)
// receives the values once the run ends.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	PushURL string `json:"push_url,omitempty"`
	Job     string `json:"job,omitempty"`
	// Pprof mounts /debug/pprof/ on Addr. Keep Addr on loopback when set.
	Pprof bool `json:"pprof,omitempty"`
}

// SchedulerConfig controls daemon mode.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a standard 5-field cron spec or a descriptor like "@every 10m".
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}
