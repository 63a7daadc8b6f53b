package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"inkwatch/internal/eventbus"
	"inkwatch/internal/notification"
	"inkwatch/internal/webhook"
	logx "inkwatch/pkg/logx"
)

type Dispatcher struct {
	mu      sync.RWMutex
	cfg     Config
	limiter *rate.Limiter

	sender Sender
	log    logx.Logger
	bus    eventbus.Bus

	// sleep waits d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{
		sender: sender,
		log:    log,
		bus:    bus,
		sleep:  sleepCtx,
	}
	d.Apply(cfg)
	return d
}

// Apply swaps the delivery config. In-flight dispatches keep the limiter they started with.
func (d *Dispatcher) Apply(cfg Config) {
	if cfg.MaxRateLimitRetries < 0 {
		cfg.MaxRateLimitRetries = 0
	}
	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	d.mu.Lock()
	d.cfg = cfg
	d.limiter = lim
	d.mu.Unlock()
}

func (d *Dispatcher) snapshot() (Config, *rate.Limiter) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg, d.limiter
}

// Dispatch sends every notification concurrently and returns one Outcome per
// notification, in completion order. It returns once all sends have finished.
func (d *Dispatcher) Dispatch(ctx context.Context, ns []notification.Notification) []Outcome {
	if len(ns) == 0 {
		return nil
	}
	cfg, lim := d.snapshot()

	results := make(chan Outcome, len(ns))
	for _, n := range ns {
		msg := webhook.Render(n, cfg.Mentions)
		go func(n notification.Notification, msg webhook.Message) {
			results <- d.deliver(ctx, cfg, lim, n, msg)
		}(n, msg)
	}

	outs := make([]Outcome, 0, len(ns))
	for range ns {
		outs = append(outs, <-results)
	}
	return outs
}

func (d *Dispatcher) deliver(ctx context.Context, cfg Config, lim *rate.Limiter, n notification.Notification, msg webhook.Message) (out Outcome) {
	start := time.Now()
	out.Notification = n
	run := RunFrom(ctx)
	log := d.log.With(logx.String("notification", n.String()), logx.String("kind", n.Kind().String()))
	if run.Feed != "" {
		log = log.With(logx.String("feed", run.Feed))
	}
	event := func(attempt int) Event {
		return Event{RunID: run.ID, Feed: run.Feed, Kind: n.Kind().String(), Description: n.String(), Attempt: attempt}
	}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic while sending: %v", r)
			log.Error("send panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
		out.Took = time.Since(start)
		if out.Err != nil {
			log.Warn("notification failed", logx.Int("attempts", out.Attempts), logx.Err(out.Err))
			ev := event(out.Attempts)
			ev.Took, ev.Error = out.Took, out.Err.Error()
			d.publish(EventFailed, ev)
			return
		}
		log.Info("notification sent", logx.Int("attempts", out.Attempts), logx.Duration("took", out.Took))
		ev := event(out.Attempts)
		ev.Took = out.Took
		d.publish(EventSent, ev)
	}()

	for {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				out.Err = err
				return out
			}
		}
		out.Attempts++
		if out.Attempts == 1 {
			log.Info("sending notification")
		} else {
			log.Debug("sending notification", logx.Int("attempt", out.Attempts))
		}
		d.publish(EventSending, event(out.Attempts))

		err := d.sender.Send(ctx, msg)
		if err == nil {
			return out
		}
		var rl *webhook.RateLimitError
		if !errors.As(err, &rl) {
			out.Err = err
			return out
		}

		out.RateLimited++
		wait := rl.Wait()
		ev := event(out.Attempts)
		ev.Wait, ev.Global = wait, rl.Global
		d.publish(EventRateLimited, ev)
		if cfg.MaxRateLimitRetries > 0 && out.RateLimited > cfg.MaxRateLimitRetries {
			out.Err = fmt.Errorf("%w after %d attempts: %v", ErrRateLimitRetriesExhausted, out.Attempts, rl)
			return out
		}
		log.Info("rate limited; retrying", logx.Duration("wait", wait), logx.Bool("global", rl.Global))
		if err := d.sleep(ctx, wait); err != nil {
			out.Err = fmt.Errorf("waiting out rate limit: %w", err)
			return out
		}
	}
}

func (d *Dispatcher) publish(typ string, ev Event) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
