package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "inkwatch/pkg/logx"
)

func testSchedules(stages ...string) Schedules {
	var s Schedules
	start := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	for i, name := range stages {
		s.Data.CoopGroupingSchedule.RegularSchedules.Nodes = append(s.Data.CoopGroupingSchedule.RegularSchedules.Nodes, CoopEvent{
			StartTime: start.Add(time.Duration(i) * 40 * time.Hour),
			EndTime:   start.Add(time.Duration(i+1) * 40 * time.Hour),
			Setting:   CoopSetting{Typename: "CoopNormalSetting", CoopStage: CoopStage{Name: name}},
			KingGuess: "Cohozuna",
		})
	}
	return s
}

func serveJSON(t *testing.T, v any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "inkwatch-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient() *Client {
	return NewClient(Config{UserAgent: "inkwatch-test", Timeout: 2 * time.Second}, logx.Nop())
}

func TestFetchOrCachedFirstRunUsesLiveAsBaseline(t *testing.T) {
	t.Parallel()
	store := NewSnapshotStore[Schedules](filepath.Join(t.TempDir(), "Schedules Json.json"))
	srv := serveJSON(t, testSchedules("Spawning Grounds", "Sockeye Station"))

	p, err := FetchOrCached(context.Background(), newTestClient(), srv.URL, store)
	if err != nil {
		t.Fatalf("FetchOrCached: %v", err)
	}
	if p.Degraded {
		t.Fatal("expected live fetch, got degraded")
	}
	live := p.Live.Data.CoopGroupingSchedule.RegularSchedules.Nodes
	cached := p.Cached.Data.CoopGroupingSchedule.RegularSchedules.Nodes
	if len(live) != 2 || len(cached) != 2 {
		t.Fatalf("live=%d cached=%d, want 2/2", len(live), len(cached))
	}
	if _, ok, err := store.Load(); err != nil || !ok {
		t.Fatalf("expected cache to be written (ok=%v err=%v)", ok, err)
	}
}

func TestFetchOrCachedReadsCacheBeforeWriting(t *testing.T) {
	t.Parallel()
	store := NewSnapshotStore[Schedules](filepath.Join(t.TempDir(), "schedules.json"))
	if err := store.Save(testSchedules("Sockeye Station")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	srv := serveJSON(t, testSchedules("Spawning Grounds", "Sockeye Station"))

	p, err := FetchOrCached(context.Background(), newTestClient(), srv.URL, store)
	if err != nil {
		t.Fatalf("FetchOrCached: %v", err)
	}
	if got := len(p.Cached.Data.CoopGroupingSchedule.RegularSchedules.Nodes); got != 1 {
		t.Fatalf("cached nodes = %d, want 1 (old snapshot)", got)
	}
	after, _, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(after.Data.CoopGroupingSchedule.RegularSchedules.Nodes); got != 2 {
		t.Fatalf("cache after run has %d nodes, want 2 (live snapshot)", got)
	}
	if _, err := os.Stat(store.Path() + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFetchOrCachedFallsBackOnConnectError(t *testing.T) {
	t.Parallel()
	store := NewSnapshotStore[Schedules](filepath.Join(t.TempDir(), "schedules.json"))
	if err := store.Save(testSchedules("Marooner's Bay")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens any more: dial fails

	p, err := FetchOrCached(context.Background(), newTestClient(), url, store)
	if err != nil {
		t.Fatalf("FetchOrCached: %v", err)
	}
	if !p.Degraded {
		t.Fatal("expected degraded pair")
	}
	live := p.Live.Data.CoopGroupingSchedule.RegularSchedules.Nodes
	cached := p.Cached.Data.CoopGroupingSchedule.RegularSchedules.Nodes
	if len(live) != 1 || len(cached) != 1 || !live[0].Equal(cached[0]) {
		t.Fatalf("expected live and cached to both be the on-disk snapshot, got %+v / %+v", live, cached)
	}
}

func TestFetchOrCachedConnectErrorWithoutCache(t *testing.T) {
	t.Parallel()
	store := NewSnapshotStore[Schedules](filepath.Join(t.TempDir(), "missing.json"))
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := FetchOrCached(context.Background(), newTestClient(), url, store); err == nil {
		t.Fatal("expected error when the feed is unreachable and no cache exists")
	}
}

func TestFetchOrCachedMalformedResponseDoesNotTouchCache(t *testing.T) {
	t.Parallel()
	store := NewSnapshotStore[Schedules](filepath.Join(t.TempDir(), "schedules.json"))
	if err := store.Save(testSchedules("Jammin' Salmon Junction")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	}))
	defer srv.Close()

	_, err := FetchOrCached(context.Background(), newTestClient(), srv.URL, store)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if IsConnectError(err) {
		t.Fatalf("decode error classified as connect error: %v", err)
	}
	after, _, _ := store.Load()
	if got := after.Data.CoopGroupingSchedule.RegularSchedules.Nodes[0].Setting.CoopStage.Name; got != "Jammin' Salmon Junction" {
		t.Fatalf("cache was overwritten: stage=%q", got)
	}
}

func TestGetJSONStatusAndEncodingErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down":
			w.WriteHeader(http.StatusBadGateway)
		case "/binary":
			_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
		}
	}))
	defer srv.Close()
	c := newTestClient()

	_, err := GetJSON[Schedules](context.Background(), c, srv.URL+"/down")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}

	_, err = GetJSON[Schedules](context.Background(), c, srv.URL+"/binary")
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestEventEqualIgnoresTimeZoneRepresentation(t *testing.T) {
	t.Parallel()
	utc := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	jst := utc.In(time.FixedZone("JST", 9*60*60))

	a := CoopEvent{StartTime: utc, EndTime: utc.Add(time.Hour), Setting: CoopSetting{Weapons: []Weapon{{ID: "w1", Name: "Splattershot"}}}}
	b := CoopEvent{StartTime: jst, EndTime: jst.Add(time.Hour), Setting: CoopSetting{Weapons: []Weapon{{ID: "w1", Name: "Splattershot"}}}}
	if !a.Equal(b) {
		t.Fatal("expected events with equal instants to be equal")
	}
	b.Setting.Weapons[0].Name = "Splat Roller"
	if a.Equal(b) {
		t.Fatal("expected weapon change to break equality")
	}
}

func TestFestEqualIgnoresVotesAndResults(t *testing.T) {
	t.Parallel()
	const before = `{"__splatoon3ink_id":"JUEA-00001","id":"f1","state":"CLOSED","title":"Spicy vs Sweet","teams":[{"id":"t1","teamName":"Spicy","votes":null,"result":null}]}`
	const after = `{"__splatoon3ink_id":"JUEA-00001","id":"f1","state":"CLOSED","title":"Spicy vs Sweet","undecidedVotes":{"totalCount":3},"teams":[{"id":"t1","teamName":"Spicy","votes":{"totalCount":10},"preVotes":{"totalCount":4},"result":{"isWinner":true}}]}`
	var a, b Fest
	if err := json.Unmarshal([]byte(before), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(after), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("expected vote and result updates to leave the record unchanged")
	}

	var f Festivals
	f.US.Data.FestRecords.Nodes = []Fest{b}
	path := filepath.Join(t.TempDir(), "Splatfest Json.json")
	if err := NewSnapshotStore[Festivals](path).Save(f); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache: %v", err)
	}
	for _, field := range []string{"votes", "preVotes", "result", "__splatoon3ink_id"} {
		if strings.Contains(string(raw), `"`+field+`"`) {
			t.Fatalf("cache kept untracked field %q: %s", field, raw)
		}
	}
}

func TestFestivalsRegion(t *testing.T) {
	t.Parallel()
	var f Festivals
	f.JP.Data.FestRecords.Nodes = []Fest{{Title: "jp"}}
	f.US.Data.FestRecords.Nodes = []Fest{{Title: "us"}}
	if got := f.Region("jp").Data.FestRecords.Nodes[0].Title; got != "jp" {
		t.Fatalf("Region(jp) = %q", got)
	}
	if got := f.Region("??").Data.FestRecords.Nodes[0].Title; got != "us" {
		t.Fatalf("Region(??) = %q, want us fallback", got)
	}
}
