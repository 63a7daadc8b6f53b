package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"inkwatch/internal/config"
	"inkwatch/internal/metrics"
	"inkwatch/internal/runtime/supervisor"
	"inkwatch/internal/scheduler"
	logx "inkwatch/pkg/logx"
)

// restartOnly lists config sections that are read once at startup.
var restartOnly = []string{"storage", "metrics"}

// runDaemon runs a pass at startup and then on the cron schedule, reloading
// config on file changes, until ctx is done.
func (a *App) runDaemon(ctx context.Context) error {
	cfg := a.cfgm.Get()
	boot := cfg
	sup := supervisor.New(ctx, supervisor.WithLogger(a.base.With(logx.String("comp", "supervisor"))))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return c.Validate(!a.opts.DryRun)
	})

	var srv *metrics.Server
	if a.metrics != nil {
		var opts []metrics.ServerOption
		if cfg.Metrics.Pprof {
			opts = append(opts, metrics.WithPprof())
		}
		srv = metrics.NewServer(cfg.Metrics.Addr, a.metrics, opts...)
		addr, err := srv.Start()
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		a.log.Info("metrics listening", logx.String("addr", addr), logx.Bool("pprof", cfg.Metrics.Pprof))
	}

	a.sched = scheduler.New(mapSchedulerConfig(cfg), a.scheduledRun, a.base.With(logx.String("comp", "scheduler")))
	if err := a.sched.Start(sup.Context()); err != nil {
		sup.Cancel()
		if srv != nil {
			_ = srv.Shutdown(context.Background())
		}
		return fmt.Errorf("scheduler: %w", err)
	}

	updates := a.cfgm.Subscribe(4)
	sup.Go("config.reload", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-updates:
				if !ok {
					return nil
				}
				// Coalesce bursts; only the newest config matters.
			drain:
				for {
					select {
					case newer, ok := <-updates:
						if !ok {
							break drain
						}
						next = newer
					default:
						break drain
					}
				}
				a.apply(boot, next)
			}
		}
	})
	sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)

	if interval, err := daemon.SdWatchdogEnabled(false); err != nil {
		a.log.Warn("systemd watchdog check failed", logx.Err(err))
	} else if interval > 0 {
		sup.Go("systemd.watchdog", func(c context.Context) error {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return nil
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		})
	}

	sup.Go("run.startup", func(c context.Context) error {
		return a.scheduledRun(c)
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified ready")
	}
	a.log.Info("daemon started",
		logx.Bool("dry_run", a.opts.DryRun),
		logx.Time("next_run", a.sched.Next()),
	)

	<-sup.Context().Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a.sched.Stop(stopCtx)
	err := sup.Stop(stopCtx)
	a.cfgm.Unsubscribe(updates)
	if srv != nil {
		if serr := srv.Shutdown(stopCtx); serr != nil {
			err = errors.Join(err, fmt.Errorf("metrics shutdown: %w", serr))
		}
	}
	a.log.Info("stopped")
	return err
}

// apply pushes a reloaded config into the running components.
func (a *App) apply(boot, cfg *config.Config) {
	a.logs.Apply(mapLogConfig(cfg))
	a.dispatcher.Apply(mapDispatchConfig(cfg))

	if a.sender != nil {
		if wc, err := mapWebhookConfig(cfg); err != nil {
			a.log.Warn("invalid webhook config; keeping previous", logx.Err(err))
		} else {
			a.sender.Apply(wc)
		}
	}
	if err := a.setRunner(cfg); err != nil {
		a.log.Warn("invalid http config; keeping previous feed client", logx.Err(err))
	}
	if err := a.sched.Apply(mapSchedulerConfig(cfg)); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	}

	changed, _ := config.SummarizeChange(boot, cfg)
	for _, s := range changed {
		if slices.Contains(restartOnly, s) {
			a.log.Warn("config change needs a restart to take effect", logx.String("section", s))
		}
	}
	a.log.Debug("config applied", logx.Time("next_run", a.sched.Next()))
}
