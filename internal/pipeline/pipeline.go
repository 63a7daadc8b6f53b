// Package pipeline runs one polling pass per feed: fetch with cache
// fallback, diff every category against the cached snapshot, build
// notifications for the new events and dispatch them.
package pipeline

import (
	"context"

	"inkwatch/internal/diff"
	"inkwatch/internal/dispatch"
	"inkwatch/internal/feed"
	"inkwatch/internal/notification"
	logx "inkwatch/pkg/logx"
)

const (
	FeedSchedules = "schedules"
	FeedFestivals = "festivals"
)

// Dispatcher delivers a batch of notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, ns []notification.Notification) []dispatch.Outcome
}

// Observer receives feed-level counters. *metrics.Metrics satisfies it.
type Observer interface {
	CacheFallback(feed string)
	NewEvents(category string, n int)
}

type nopObserver struct{}

func (nopObserver) CacheFallback(string)  {}
func (nopObserver) NewEvents(string, int) {}

// Source locates a feed and its cache file.
type Source struct {
	URL       string
	CachePath string
	// Region selects the festival records (festivals feed only).
	Region string
}

// Result summarizes one feed pass.
type Result struct {
	Feed     string
	Degraded bool
	New      map[notification.Category]int
	Outcomes []dispatch.Outcome
}

type Runner struct {
	client     *feed.Client
	dispatcher Dispatcher
	obs        Observer
	log        logx.Logger
}

func New(client *feed.Client, d Dispatcher, obs Observer, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Runner{client: client, dispatcher: d, obs: obs, log: log}
}

// Schedules checks the Salmon Run schedules feed.
func (r *Runner) Schedules(ctx context.Context, src Source) (Result, error) {
	res := Result{Feed: FeedSchedules, New: map[notification.Category]int{}}
	log := r.log.With(logx.String("feed", FeedSchedules))

	pair, err := feed.FetchOrCached(ctx, r.client, src.URL, feed.NewSnapshotStore[feed.Schedules](src.CachePath))
	if err != nil {
		return res, err
	}
	r.noteDegraded(&res, pair.Degraded)

	live := pair.Live.Data.CoopGroupingSchedule
	cached := pair.Cached.Data.CoopGroupingSchedule

	regular := diff.NewEvents(live.RegularSchedules.Nodes, cached.RegularSchedules.Nodes)
	bigRun := diff.NewEvents(live.BigRunSchedules.Nodes, cached.BigRunSchedules.Nodes)
	teamContest := diff.NewEvents(live.TeamContestSchedules.Nodes, cached.TeamContestSchedules.Nodes)
	r.noteNew(&res, log, notification.CategoryRegular, len(regular))
	r.noteNew(&res, log, notification.CategoryBigRun, len(bigRun))
	r.noteNew(&res, log, notification.CategoryTeamContest, len(teamContest))

	var ns []notification.Notification
	ns = append(ns, notification.FromRegularList(regular)...)
	ns = append(ns, notification.FromBigRunList(bigRun)...)
	ns = append(ns, notification.FromTeamContestList(teamContest)...)

	res.Outcomes = r.dispatch(ctx, FeedSchedules, ns)
	return res, nil
}

// Festivals checks the Splatfest feed for src.Region.
func (r *Runner) Festivals(ctx context.Context, src Source) (Result, error) {
	res := Result{Feed: FeedFestivals, New: map[notification.Category]int{}}
	log := r.log.With(logx.String("feed", FeedFestivals), logx.String("region", src.Region))

	pair, err := feed.FetchOrCached(ctx, r.client, src.URL, feed.NewSnapshotStore[feed.Festivals](src.CachePath))
	if err != nil {
		return res, err
	}
	r.noteDegraded(&res, pair.Degraded)

	fests := diff.NewEvents(
		pair.Live.Region(src.Region).Data.FestRecords.Nodes,
		pair.Cached.Region(src.Region).Data.FestRecords.Nodes,
	)
	r.noteNew(&res, log, notification.CategoryFestival, len(fests))

	res.Outcomes = r.dispatch(ctx, FeedFestivals, notification.FromFestList(fests))
	return res, nil
}

func (r *Runner) noteDegraded(res *Result, degraded bool) {
	res.Degraded = degraded
	if degraded {
		r.obs.CacheFallback(res.Feed)
	}
}

func (r *Runner) noteNew(res *Result, log logx.Logger, c notification.Category, n int) {
	res.New[c] = n
	r.obs.NewEvents(string(c), n)
	if n > 0 {
		log.Info("new events", logx.String("category", string(c)), logx.Int("count", n))
	}
}

func (r *Runner) dispatch(ctx context.Context, feedName string, ns []notification.Notification) []dispatch.Outcome {
	if len(ns) == 0 {
		r.log.Debug("nothing to send", logx.String("feed", feedName))
		return nil
	}
	run := dispatch.RunFrom(ctx)
	run.Feed = feedName
	return r.dispatcher.Dispatch(dispatch.WithRun(ctx, run), ns)
}
