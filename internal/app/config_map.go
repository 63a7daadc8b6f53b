package app

import (
	"fmt"
	"strings"
	"time"

	"inkwatch/internal/config"
	"inkwatch/internal/dispatch"
	"inkwatch/internal/feed"
	"inkwatch/internal/notification"
	"inkwatch/internal/pipeline"
	"inkwatch/internal/scheduler"
	"inkwatch/internal/storage"
	"inkwatch/internal/webhook"
	logx "inkwatch/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapDispatchConfig(cfg *config.Config) dispatch.Config {
	return dispatch.Config{
		Mentions: notification.Mentions{
			Splatfest: cfg.Webhook.Mentions.Splatfest,
			SalmonRun: cfg.Webhook.Mentions.SalmonRun,
		},
		RatePerSec:          cfg.Dispatch.RatePerSec,
		MaxRateLimitRetries: cfg.Dispatch.MaxRateLimitRetries,
	}
}

func mapFeedConfig(cfg *config.Config) (feed.Config, error) {
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return feed.Config{}, err
	}
	return feed.Config{UserAgent: cfg.HTTP.UserAgent, Timeout: timeout}, nil
}

func mapWebhookConfig(cfg *config.Config) (webhook.Config, error) {
	timeout, err := cfg.HTTPTimeout()
	if err != nil {
		return webhook.Config{}, err
	}
	return webhook.Config{URL: cfg.Webhook.URL, UserAgent: cfg.HTTP.UserAgent, Timeout: timeout}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Schedule: cfg.Scheduler.Schedule, Timezone: cfg.Scheduler.Timezone}
}

func schedulesSource(cfg *config.Config) pipeline.Source {
	return pipeline.Source{URL: cfg.Feeds.Schedules.URL, CachePath: cfg.Feeds.Schedules.CachePath}
}

func festivalsSource(cfg *config.Config) pipeline.Source {
	return pipeline.Source{
		URL:       cfg.Feeds.Festivals.URL,
		CachePath: cfg.Feeds.Festivals.CachePath,
		Region:    cfg.Feeds.Festivals.Region,
	}
}
