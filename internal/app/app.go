package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"inkwatch/internal/config"
	"inkwatch/internal/dispatch"
	"inkwatch/internal/eventbus"
	"inkwatch/internal/feed"
	"inkwatch/internal/metrics"
	"inkwatch/internal/pipeline"
	"inkwatch/internal/runtime/supervisor"
	"inkwatch/internal/scheduler"
	"inkwatch/internal/storage"
	logx "inkwatch/pkg/logx"
)

// Options selects the run mode.
type Options struct {
	// Daemon keeps running passes on the configured schedule.
	// scheduler.enabled in the config has the same effect.
	Daemon bool
	// DryRun renders notifications and logs them instead of posting.
	DryRun bool
	// Strict makes failed deliveries fail the run.
	Strict bool
}

var (
	ErrDeliveriesFailed = errors.New("notifications failed")
	ErrStorageDisabled  = errors.New("storage is disabled")
)

type App struct {
	opts Options
	cfgm *config.ConfigManager

	base logx.Logger
	log  logx.Logger
	logs *logx.Service

	bus     eventbus.Bus
	store   storage.Store
	metrics *metrics.Metrics

	sender     *webhookSender // nil in dry-run mode
	dispatcher *dispatch.Dispatcher
	runner     atomic.Pointer[pipeline.Runner]
	sched      *scheduler.Service

	// runMu keeps the startup pass and scheduled passes from overlapping.
	runMu sync.Mutex

	unsubscribe func()
	recDone     chan struct{}
	drainOnce   sync.Once
	closeOnce   sync.Once
}

func NewApp(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(!opts.DryRun); err != nil {
		return nil, err
	}
	opts.Daemon = opts.Daemon || cfg.Scheduler.Enabled

	logSvc, base := logx.New(mapLogConfig(cfg))
	log := base.With(logx.String("comp", "app"))
	cfgm.SetLogger(base.With(logx.String("comp", "config")))

	var store storage.Store
	fail := func(err error) (*App, error) {
		if store != nil {
			_ = store.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}

	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return fail(err)
	} else if enabled {
		st, err := storage.Open(sc, base.With(logx.String("comp", "storage")))
		if err != nil {
			return fail(err)
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	a := &App{
		opts:    opts,
		cfgm:    cfgm,
		base:    base,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		store:   store,
		metrics: m,
	}

	var sender dispatch.Sender
	if opts.DryRun {
		sender = dryRunSender{log: base.With(logx.String("comp", "dryrun"))}
	} else {
		wc, err := mapWebhookConfig(cfg)
		if err != nil {
			return fail(err)
		}
		a.sender = newWebhookSender(wc)
		sender = a.sender
	}
	a.dispatcher = dispatch.New(mapDispatchConfig(cfg), sender, base.With(logx.String("comp", "dispatch")), a.bus)
	if err := a.setRunner(cfg); err != nil {
		return fail(err)
	}

	ch, unsub := a.bus.Subscribe(1024)
	a.unsubscribe = unsub
	a.recDone = make(chan struct{})
	rec := &recorder{store: store, m: m, log: base.With(logx.String("comp", "recorder"))}
	go func() {
		defer close(a.recDone)
		rec.run(ch)
	}()

	return a, nil
}

// setRunner rebuilds the feed client and pipelines for cfg.
func (a *App) setRunner(cfg *config.Config) error {
	fc, err := mapFeedConfig(cfg)
	if err != nil {
		return err
	}
	var obs pipeline.Observer
	if a.metrics != nil {
		obs = a.metrics
	}
	client := feed.NewClient(fc, a.base.With(logx.String("comp", "feed")))
	a.runner.Store(pipeline.New(client, a.dispatcher, obs, a.base.With(logx.String("comp", "pipeline"))))
	return nil
}

// Run performs one pass, or runs the daemon until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.opts.Daemon {
		return a.runDaemon(ctx)
	}
	err := a.RunOnce(ctx)
	// Metrics come from the recorder; let it catch up before pushing.
	a.drain()
	a.pushMetrics()
	return err
}

// RunOnce checks both feeds concurrently and dispatches what is new.
// Feed errors are joined; failed deliveries only count in strict mode.
// A pass cut short by ctx returns ctx.Err().
func (a *App) RunOnce(ctx context.Context) error {
	cfg := a.cfgm.Get()
	runner := a.runner.Load()
	runID := uuid.NewString()
	log := a.log.With(logx.String("run", runID))
	start := time.Now()
	log.Debug("run started")

	ctx = dispatch.WithRun(ctx, dispatch.Run{ID: runID})
	sup := supervisor.New(ctx, supervisor.WithLogger(a.base.With(logx.String("comp", "supervisor"), logx.String("run", runID))))
	defer sup.Cancel()

	var (
		mu       sync.Mutex
		outs     []dispatch.Outcome
		degraded []string
	)
	collect := func(res pipeline.Result) {
		mu.Lock()
		defer mu.Unlock()
		outs = append(outs, res.Outcomes...)
		if res.Degraded {
			degraded = append(degraded, res.Feed)
		}
	}
	sup.Go(pipeline.FeedSchedules, func(c context.Context) error {
		res, err := runner.Schedules(c, schedulesSource(cfg))
		collect(res)
		return err
	})
	sup.Go(pipeline.FeedFestivals, func(c context.Context) error {
		res, err := runner.Festivals(c, festivalsSource(cfg))
		collect(res)
		return err
	})
	err := sup.Wait(context.Background())
	// The supervisor drops context.Canceled; an interrupted pass still fails.
	if cerr := ctx.Err(); cerr != nil {
		err = errors.Join(err, cerr)
	}

	sent, failed := dispatch.Summarize(outs)
	fields := []logx.Field{
		logx.Int("sent", sent),
		logx.Int("failed", failed),
		logx.Duration("took", time.Since(start)),
	}
	if len(degraded) > 0 {
		fields = append(fields, logx.Any("from_cache", degraded))
	}
	log.Info("notifications dispatched", fields...)
	if err != nil {
		log.Error("run failed", logx.Err(err))
	}
	a.metrics.RunFinished(err == nil && failed == 0, time.Now())

	if a.opts.Strict && failed > 0 {
		err = errors.Join(err, fmt.Errorf("%w: %d of %d", ErrDeliveriesFailed, failed, sent+failed))
	}
	return err
}

// scheduledRun is the daemon job. Overlapping passes are skipped; errors are
// already logged by RunOnce.
func (a *App) scheduledRun(ctx context.Context) error {
	if !a.runMu.TryLock() {
		a.log.Warn("previous run still in progress; skipping")
		return nil
	}
	defer a.runMu.Unlock()
	_ = a.RunOnce(ctx)
	return nil
}

func (a *App) pushMetrics() {
	cfg := a.cfgm.Get()
	if a.metrics == nil || cfg.Metrics.PushURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.metrics.Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
		a.log.Warn("metrics push failed", logx.String("url", cfg.Metrics.PushURL), logx.Err(err))
		return
	}
	a.log.Debug("metrics pushed", logx.String("job", cfg.Metrics.Job))
}

// History returns up to limit delivery log rows, newest first.
func (a *App) History(ctx context.Context, limit int) ([]storage.DeliveryRecord, error) {
	if a.store == nil {
		return nil, ErrStorageDisabled
	}
	return a.store.Recent(ctx, limit)
}

// drain stops the recorder after it has handled every queued event.
func (a *App) drain() {
	a.drainOnce.Do(func() {
		a.unsubscribe()
		<-a.recDone
	})
}

func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		a.drain()
		if a.store != nil {
			errs = append(errs, a.store.Close())
		}
		if dropped := a.bus.Dropped(); dropped > 0 {
			a.log.Warn("events dropped", logx.Int64("count", int64(dropped)))
		}
		errs = append(errs, a.logs.Close())
	})
	return errors.Join(errs...)
}
