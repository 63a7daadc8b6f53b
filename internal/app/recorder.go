package app

import (
	"context"
	"time"

	"inkwatch/internal/dispatch"
	"inkwatch/internal/eventbus"
	"inkwatch/internal/metrics"
	"inkwatch/internal/storage"
	logx "inkwatch/pkg/logx"
)

// recorder turns dispatch events into delivery log rows and metric updates.
// store and m may be nil.
type recorder struct {
	store storage.Store
	m     *metrics.Metrics
	log   logx.Logger
}

// run consumes ch until it is closed.
func (r *recorder) run(ch <-chan eventbus.Event) {
	for ev := range ch {
		r.handle(ev)
	}
}

func (r *recorder) handle(ev eventbus.Event) {
	de, ok := ev.Data.(dispatch.Event)
	if !ok {
		return
	}
	r.log.Debug("event",
		logx.String("type", ev.Type),
		logx.String("run", de.RunID),
		logx.String("notification", de.Description),
		logx.Int("attempt", de.Attempt),
	)
	switch ev.Type {
	case dispatch.EventRateLimited:
		r.m.RateLimited(de.Feed)
	case dispatch.EventSent:
		r.m.Delivered(de.Feed, de.Kind, de.Took)
		r.append(ev.Time, de, true)
	case dispatch.EventFailed:
		r.m.Failed(de.Feed, de.Kind, de.Took)
		r.append(ev.Time, de, false)
	}
}

func (r *recorder) append(at time.Time, de dispatch.Event, ok bool) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := r.store.AppendDelivery(ctx, storage.DeliveryRecord{
		At:          at,
		RunID:       de.RunID,
		Feed:        de.Feed,
		Kind:        de.Kind,
		Description: de.Description,
		Attempts:    de.Attempt,
		OK:          ok,
		Error:       de.Error,
		TookMS:      de.Took.Milliseconds(),
	})
	if err != nil {
		r.log.Warn("delivery log append failed", logx.String("notification", de.Description), logx.Err(err))
	}
}
