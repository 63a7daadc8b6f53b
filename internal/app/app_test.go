package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"inkwatch/internal/config"
	"inkwatch/internal/feed"
	"inkwatch/internal/notification"
	"inkwatch/internal/webhook"
)

var t0 = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

func rotation(i int, stage, weaponID string) feed.CoopEvent {
	return feed.CoopEvent{
		StartTime: t0.Add(time.Duration(i) * 40 * time.Hour),
		EndTime:   t0.Add(time.Duration(i+1) * 40 * time.Hour),
		Setting: feed.CoopSetting{
			Typename:  "CoopNormalSetting",
			CoopStage: feed.CoopStage{Name: stage},
			Weapons:   []feed.Weapon{{ID: weaponID, Name: "Random"}},
		},
		KingGuess: "Cohozuna",
	}
}

func schedules(regular ...feed.CoopEvent) feed.Schedules {
	var s feed.Schedules
	s.Data.CoopGroupingSchedule.RegularSchedules.Nodes = regular
	return s
}

func jsonServer(t *testing.T, v any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(v)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// hookServer records posted messages and answers with status.
type hookServer struct {
	mu     sync.Mutex
	posts  []webhook.Message
	status int
	srv    *httptest.Server
}

func newHookServer(t *testing.T, status int) *hookServer {
	t.Helper()
	h := &hookServer{status: status}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg webhook.Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		h.mu.Lock()
		h.posts = append(h.posts, msg)
		h.mu.Unlock()
		w.WriteHeader(h.status)
		if h.status != http.StatusNoContent {
			_, _ = io.WriteString(w, `{"message":"nope","code":0}`)
		}
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *hookServer) first() webhook.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.posts[0]
}

func (h *hookServer) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.posts)
}

type env struct {
	dir          string
	schedulesURL string
	festivalsURL string
	hookURL      string
	extra        string
}

// setup seeds the schedules cache with one rotation and serves a feed with a
// new Random rotation on top, so exactly one notification is due.
func setup(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	old := rotation(0, "Spawning Grounds", "w1")
	cache := filepath.Join(dir, "Schedules Json.json")
	if err := feed.NewSnapshotStore[feed.Schedules](cache).Save(schedules(old)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	live := schedules(rotation(1, "Sockeye Station", "x-"+notification.RandomWeaponMarker), old)
	return env{
		dir:          dir,
		schedulesURL: jsonServer(t, live).URL,
		festivalsURL: jsonServer(t, feed.Festivals{}).URL,
	}
}

func (e env) write(t *testing.T) string {
	t.Helper()
	body := fmt.Sprintf(`feeds:
  schedules:
    url: %q
    cache_path: %q
  festivals:
    url: %q
    cache_path: %q
webhook:
  url: %q
logging:
  level: error
storage:
  driver: file
  path: %q
%s`,
		e.schedulesURL, filepath.Join(e.dir, "Schedules Json.json"),
		e.festivalsURL, filepath.Join(e.dir, "Splatfest Json.json"),
		e.hookURL, filepath.Join(e.dir, "store"), e.extra)
	p := filepath.Join(e.dir, "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func newTestApp(t *testing.T, path string, opts Options) *App {
	t.Helper()
	a, err := NewApp(path, opts)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRunDeliversRecordsAndPushes(t *testing.T) {
	t.Parallel()
	e := setup(t)
	hook := newHookServer(t, http.StatusNoContent)
	e.hookURL = hook.srv.URL

	var (
		pushMu sync.Mutex
		pushed string
	)
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushMu.Lock()
		pushed = r.Method + " " + r.URL.Path
		pushMu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()
	e.extra = fmt.Sprintf("metrics:\n  enabled: true\n  push_url: %q\n", gw.URL)

	a := newTestApp(t, e.write(t), Options{})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hook.count() != 1 {
		t.Fatalf("webhook posts = %d, want 1", hook.count())
	}
	if msg := hook.first(); len(msg.Embeds) == 0 || msg.Embeds[0].Title == "" {
		t.Fatalf("posted message has no embed title: %+v", msg)
	}

	recs, err := a.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 1 || !recs[0].OK || recs[0].Feed != "schedules" || recs[0].Kind != "random" || recs[0].RunID == "" {
		t.Fatalf("delivery log = %+v", recs)
	}

	pushMu.Lock()
	defer pushMu.Unlock()
	if pushed != "PUT /metrics/job/inkwatch" {
		t.Fatalf("push request = %q", pushed)
	}
}

func TestStrictModeFailsOnDeliveryError(t *testing.T) {
	t.Parallel()
	for _, strict := range []bool{false, true} {
		strict := strict
		t.Run(fmt.Sprintf("strict=%v", strict), func(t *testing.T) {
			t.Parallel()
			e := setup(t)
			e.hookURL = newHookServer(t, http.StatusBadRequest).srv.URL
			a := newTestApp(t, e.write(t), Options{Strict: strict})

			err := a.Run(context.Background())
			if strict != errors.Is(err, ErrDeliveriesFailed) {
				t.Fatalf("Run = %v", err)
			}
			if !strict && err != nil {
				t.Fatalf("non-strict run failed: %v", err)
			}
			recs, herr := a.History(context.Background(), 0)
			if herr != nil || len(recs) != 1 || recs[0].OK || recs[0].Error == "" {
				t.Fatalf("delivery log = %+v, %v", recs, herr)
			}
		})
	}
}

func TestDryRunPostsNothing(t *testing.T) {
	t.Parallel()
	e := setup(t)
	hook := newHookServer(t, http.StatusNoContent)
	// No webhook URL: dry runs do not need one.
	a := newTestApp(t, e.write(t), Options{DryRun: true})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hook.count() != 0 {
		t.Fatalf("dry run posted %d messages", hook.count())
	}
	recs, err := a.History(context.Background(), 10)
	if err != nil || len(recs) != 1 || !recs[0].OK {
		t.Fatalf("delivery log = %+v, %v", recs, err)
	}
}

func TestMissingWebhookURLRejected(t *testing.T) {
	t.Parallel()
	e := setup(t)
	if _, err := NewApp(e.write(t), Options{}); !errors.Is(err, config.ErrNoWebhookURL) {
		t.Fatalf("NewApp = %v, want ErrNoWebhookURL", err)
	}
}

func TestFeedErrorFailsRunButOtherFeedRuns(t *testing.T) {
	t.Parallel()
	e := setup(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	e.festivalsURL = broken.URL
	hook := newHookServer(t, http.StatusNoContent)
	e.hookURL = hook.srv.URL

	a := newTestApp(t, e.write(t), Options{})
	err := a.Run(context.Background())
	var se *feed.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Run = %v, want feed status error", err)
	}
	if hook.count() != 1 {
		t.Fatalf("schedules notification not sent alongside festivals failure: posts=%d", hook.count())
	}
}

func TestInterruptedRunReturnsCanceled(t *testing.T) {
	t.Parallel()
	e := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetching := make(chan struct{})
	var once sync.Once
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(fetching) })
		<-r.Context().Done()
	}))
	defer slow.Close()
	e.schedulesURL = slow.URL
	e.festivalsURL = slow.URL
	e.hookURL = newHookServer(t, http.StatusNoContent).srv.URL

	a := newTestApp(t, e.write(t), Options{})
	go func() {
		<-fetching
		cancel()
	}()
	if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		sc      *config.StorageConfig
		enabled bool
		wantErr bool
		busy    time.Duration
	}{
		{name: "nil", sc: nil},
		{name: "none", sc: &config.StorageConfig{Driver: "none"}},
		{name: "file", sc: &config.StorageConfig{Driver: "file", Path: "x"}, enabled: true},
		{name: "sqlite default busy", sc: &config.StorageConfig{Driver: "SQLite", Path: "x.db"}, enabled: true, busy: time.Second},
		{name: "sqlite busy", sc: &config.StorageConfig{Driver: "sqlite3", Path: "x.db", BusyTimeout: "3s"}, enabled: true, busy: 3 * time.Second},
		{name: "sqlite no path", sc: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "sqlite bad busy", sc: &config.StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "soon"}, wantErr: true},
		{name: "unknown", sc: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		got, enabled, err := mapStorageConfig(&config.Config{Storage: tt.sc})
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: err = %v", tt.name, err)
		}
		if enabled != tt.enabled || got.BusyTimeout != tt.busy {
			t.Fatalf("%s: got %+v enabled=%v", tt.name, got, enabled)
		}
	}
}

func TestDaemonRunsAtStartupAndStopsOnCancel(t *testing.T) {
	t.Parallel()
	e := setup(t)
	hook := newHookServer(t, http.StatusNoContent)
	e.hookURL = hook.srv.URL
	e.extra = "scheduler:\n  schedule: \"@every 1h\"\n"

	a := newTestApp(t, e.write(t), Options{Daemon: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for hook.count() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("startup run did not post")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if hook.count() != 1 {
		t.Fatalf("posts = %d, want 1", hook.count())
	}
}
