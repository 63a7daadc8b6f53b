// Package scheduler triggers polling runs on a cron schedule in daemon mode.
//
// A run that is still in progress when the next tick fires causes that tick
// to be skipped, never queued.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "inkwatch/pkg/logx"
)

type Config struct {
	// Schedule is a 5-field cron spec or a descriptor ("@hourly", "@every 10m").
	Schedule string
	Timezone string
}

// Job is one polling run.
type Job func(ctx context.Context) error

type Service struct {
	mu     sync.Mutex
	cfg    Config
	parser cron.Parser
	c      *cron.Cron
	entry  cron.EntryID
	ctx    context.Context

	run  Job
	job  cron.Job
	log  logx.Logger
	runs uint64
	last time.Time
}

func New(cfg Config, run Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:    cfg,
		run:    run,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	cl := cronLogger{log: log}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.fire))
	return s
}

// Start begins triggering. Jobs receive ctx.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	loc, err := loadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	sched, err := s.parser.Parse(strings.TrimSpace(s.cfg.Schedule))
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", s.cfg.Schedule, err)
	}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.entry = s.c.Schedule(sched, s.job)
	s.c.Start()
	s.log.Info("scheduler started",
		logx.String("schedule", s.cfg.Schedule),
		logx.String("tz", loc.String()),
		logx.Time("next", s.c.Entry(s.entry).Next),
	)
	return nil
}

// Apply switches to a new schedule or timezone. A running job is not interrupted.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(cfg.Schedule) == strings.TrimSpace(s.cfg.Schedule) &&
		strings.TrimSpace(cfg.Timezone) == strings.TrimSpace(s.cfg.Timezone) {
		return nil
	}
	old := s.cfg
	s.cfg = cfg
	if s.c == nil {
		return nil
	}
	c := s.c
	s.c = nil
	c.Stop()
	if err := s.startLocked(); err != nil {
		s.cfg = old
		if rerr := s.startLocked(); rerr != nil {
			s.log.Error("scheduler restore failed", logx.Err(rerr))
		}
		return err
	}
	return nil
}

// Stop stops triggering and waits for a running job until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Next returns the next trigger time, or the zero time if stopped.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

func (s *Service) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.runs++
	n := s.runs
	s.last = time.Now()
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.run(ctx); err != nil {
		s.log.Warn("scheduled run failed", logx.Int64("run", int64(n)), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("scheduled run finished", logx.Int64("run", int64(n)), logx.Duration("took", time.Since(start)))
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
