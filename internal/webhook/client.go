package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNoURL       = errors.New("webhook url not configured")
	ErrInvalidUTF8 = errors.New("webhook response is not valid UTF-8")
)

// RateLimitError is the body Discord returns when a webhook is rate limited.
// The same message may be resubmitted after RetryAfter seconds.
type RateLimitError struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

func (e *RateLimitError) Error() string {
	scope := "webhook"
	if e.Global {
		scope = "global"
	}
	return fmt.Sprintf("rate limited (%s): %s, retry after %.3fs", scope, e.Message, e.RetryAfter)
}

// Wait returns the minimum wait before resubmitting. Never negative.
func (e *RateLimitError) Wait() time.Duration {
	if e.RetryAfter <= 0 || math.IsNaN(e.RetryAfter) {
		return 0
	}
	return time.Duration(e.RetryAfter * float64(time.Second))
}

// ResponseError is a non-success response whose body is not a rate-limit error.
type ResponseError struct {
	Status int
	Body   string
	Err    error
}

func (e *ResponseError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:297] + "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("webhook status %d: %v: %s", e.Status, e.Err, body)
	}
	return fmt.Sprintf("webhook status %d: %s", e.Status, body)
}

func (e *ResponseError) Unwrap() error { return e.Err }

type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// Client posts messages to one webhook URL.
type Client struct {
	url       string
	userAgent string
	http      *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "inkwatch"
	}
	return &Client{
		url:       strings.TrimSpace(cfg.URL),
		userAgent: ua,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Send posts msg once. 204 No Content is success; a rate-limit body yields
// *RateLimitError; anything else yields *ResponseError or a transport error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.url == "" {
		return ErrNoURL
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read webhook response: %w", err)
	}
	return parseFailure(resp.StatusCode, raw)
}

func parseFailure(status int, raw []byte) error {
	if !utf8.Valid(raw) {
		return &ResponseError{Status: status, Err: ErrInvalidUTF8}
	}
	var body struct {
		Message    *string  `json:"message"`
		RetryAfter *float64 `json:"retry_after"`
		Global     *bool    `json:"global"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return &ResponseError{Status: status, Body: string(raw), Err: err}
	}
	if body.Message == nil || body.RetryAfter == nil || body.Global == nil {
		return &ResponseError{Status: status, Body: string(raw)}
	}
	retry := *body.RetryAfter
	if retry < 0 {
		retry = 0
	}
	return &RateLimitError{Message: *body.Message, RetryAfter: retry, Global: *body.Global}
}
