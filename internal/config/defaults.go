package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultUserAgent          = "inkwatch"
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultSchedulesURL       = "https://splatoon3.ink/data/schedules.json"
	DefaultFestivalsURL       = "https://splatoon3.ink/data/festivals.json"
	DefaultSchedulesCachePath = "Schedules Json.json"
	DefaultFestivalsCachePath = "Splatfest Json.json"
	DefaultRegion             = "US"
	DefaultMetricsAddr        = "127.0.0.1:9464"
	DefaultMetricsJob         = "inkwatch"
	DefaultSchedule           = "*/15 * * * *"
	DefaultStoragePath        = "./inkwatch_store"
)

// Normalize fills defaults in place. It never fails; Validate reports bad values.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		c.HTTP.UserAgent = DefaultUserAgent
	}
	setDefault(&c.Feeds.Schedules.URL, DefaultSchedulesURL)
	setDefault(&c.Feeds.Schedules.CachePath, DefaultSchedulesCachePath)
	setDefault(&c.Feeds.Festivals.URL, DefaultFestivalsURL)
	setDefault(&c.Feeds.Festivals.CachePath, DefaultFestivalsCachePath)
	c.Feeds.Festivals.Region = strings.ToUpper(strings.TrimSpace(c.Feeds.Festivals.Region))
	setDefault(&c.Feeds.Festivals.Region, DefaultRegion)

	setDefault(&c.Logging.Level, "info")
	// A config that names no sink still logs to the console.
	if !c.Logging.Console && !c.Logging.File.Enabled {
		c.Logging.Console = true
	}

	if c.Storage != nil {
		c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
		if c.Storage.Driver != "" && c.Storage.Driver != "none" {
			setDefault(&c.Storage.Path, DefaultStoragePath)
		}
	}

	setDefault(&c.Metrics.Addr, DefaultMetricsAddr)
	setDefault(&c.Metrics.Job, DefaultMetricsJob)
	setDefault(&c.Scheduler.Schedule, DefaultSchedule)
}

func setDefault(p *string, def string) {
	if strings.TrimSpace(*p) == "" {
		*p = def
	}
}

var ErrNoWebhookURL = errors.New("webhook.url is required (or set INKWATCH_WEBHOOK_URL)")

// Validate checks a normalized config. requireWebhook is false for dry runs.
func (c *Config) Validate(requireWebhook bool) error {
	var errs []error
	if requireWebhook && strings.TrimSpace(c.Webhook.URL) == "" {
		errs = append(errs, ErrNoWebhookURL)
	}
	if u := strings.TrimSpace(c.Webhook.URL); u != "" {
		if err := validateURL("webhook.url", u); err != nil {
			errs = append(errs, err)
		}
	}
	if err := validateURL("feeds.schedules.url", c.Feeds.Schedules.URL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("feeds.festivals.url", c.Feeds.Festivals.URL); err != nil {
		errs = append(errs, err)
	}
	switch c.Feeds.Festivals.Region {
	case "US", "EU", "JP", "AP":
	default:
		errs = append(errs, fmt.Errorf("feeds.festivals.region: unknown region %q", c.Feeds.Festivals.Region))
	}
	if _, err := c.HTTPTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.Dispatch.RatePerSec < 0 {
		errs = append(errs, errors.New("dispatch.rate_per_sec must be >= 0"))
	}
	if c.Dispatch.MaxRateLimitRetries < 0 {
		errs = append(errs, errors.New("dispatch.max_rate_limit_retries must be >= 0"))
	}
	if c.Storage != nil {
		switch c.Storage.Driver {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.Scheduler.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.schedule: %w", err))
	}
	return errors.Join(errs...)
}

func validateURL(path, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q", path, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", path)
	}
	return nil
}

func (c *Config) HTTPTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("http.timeout", c.HTTP.Timeout, DefaultHTTPTimeout)
}

// Location resolves scheduler.timezone (default UTC).
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}
