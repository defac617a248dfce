// Package remote talks to a task collaborator over HTTP. The route and payload
// shapes follow the web task table's JSON endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("task service unavailable")

// APIError is a non-success reply from the collaborator.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("task service: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("task service: %d %s", e.Status, e.Message)
}

// Client implements the engine's backend and preference contracts against a remote
// collaborator.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	flights singleflight.Group
	log     logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithBreaker replaces the default circuit breaker settings. Name and OnStateChange
// are filled in when empty.
func WithBreaker(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = c.newBreaker(st) }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api url %q needs a scheme and host", baseURL)
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  l,
	}
	for _, o := range opts {
		o(c)
	}
	if c.breaker == nil {
		c.breaker = c.newBreaker(gobreaker.Settings{
			MaxRequests: 1,
			Timeout:     5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
		})
	}
	return c, nil
}

func (c *Client) newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker {
	if st.Name == "" {
		st.Name = "task-service"
	}
	if st.OnStateChange == nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			c.log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		}
	}
	if st.IsSuccessful == nil {
		// Client errors are answers, not outages.
		st.IsSuccessful = func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

// envelope is the common reply shape: {"success": true, ...} or {"error": "..."}.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// do sends one request through the breaker and decodes the reply into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.log.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode, "took": time.Since(start)}).Debug("task service call")

	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode >= 300 || (!env.Success && env.Error != "") {
		msg := env.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		status := resp.StatusCode
		if status < 300 {
			status = http.StatusBadRequest
		}
		return &APIError{Status: status, Message: msg}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode reply: %w", method, path, err)
	}
	return nil
}

func taskPath(id string, rest ...string) string {
	p := "/tasks/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}
