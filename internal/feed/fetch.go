package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	logx "inkwatch/pkg/logx"
)

const maxBodyBytes = 32 << 20

var ErrInvalidUTF8 = errors.New("feed response is not valid UTF-8")

// StatusError is returned when a feed answers with a non-2xx status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// IsConnectError reports whether err means no connection could be
// established (DNS lookup or dial failure).
func IsConnectError(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Client performs feed GETs.
type Client struct {
	http      *http.Client
	userAgent string
	log       logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "inkwatch"
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: ua,
		log:       log,
	}
}

// GetJSON fetches url and decodes the body into T.
func GetJSON[T any](ctx context.Context, c *Client, url string) (T, error) {
	var v T
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return v, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return v, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return v, &StatusError{URL: url, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return v, fmt.Errorf("read %s: %w", url, err)
	}
	if !utf8.Valid(body) {
		return v, fmt.Errorf("GET %s: %w", url, ErrInvalidUTF8)
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", url, err)
	}
	c.log.Debug("feed fetched", logx.String("url", url), logx.Int("bytes", len(body)), logx.Duration("took", time.Since(start)))
	return v, nil
}

// Pair holds the live and previously cached snapshot of one feed.
// Degraded is set when the network was unreachable and Live came from the cache.
type Pair[T any] struct {
	Live     T
	Cached   T
	Degraded bool
}

// FetchOrCached fetches endpoint and pairs it with the snapshot in store.
//
//   - connect failure: the cached snapshot is used as Live (error if there is none)
//   - any other fetch failure is returned as-is
//   - no cache yet: Cached equals Live, so the first run reports nothing new
//
// Live is written to store only after the cached snapshot has been read.
func FetchOrCached[T any](ctx context.Context, c *Client, endpoint string, store *SnapshotStore[T]) (Pair[T], error) {
	var p Pair[T]

	live, err := GetJSON[T](ctx, c, endpoint)
	switch {
	case err == nil:
		p.Live = live
	case IsConnectError(err):
		cached, ok, lerr := store.Load()
		if lerr != nil {
			return p, lerr
		}
		if !ok {
			return p, fmt.Errorf("fetch %s: %w (no cached snapshot at %s)", endpoint, err, store.Path())
		}
		c.log.Warn("feed unreachable; using cached snapshot", logx.String("url", endpoint), logx.String("cache", store.Path()), logx.Err(err))
		p.Live = cached
		p.Degraded = true
	default:
		return p, fmt.Errorf("fetch %s: %w", endpoint, err)
	}

	cached, ok, err := store.Load()
	if err != nil {
		return p, err
	}
	if ok {
		p.Cached = cached
	} else {
		c.log.Info("no cached snapshot; treating live snapshot as baseline", logx.String("cache", store.Path()))
		p.Cached = p.Live
	}

	if err := store.Save(p.Live); err != nil {
		return p, err
	}
	return p, nil
}
