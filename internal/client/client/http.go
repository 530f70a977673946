package client

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
	"sync"
	"time"

	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/logging"
	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the circuit breaker around every request.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	Breaker     BreakerSettings
	Logger      logging.Logger

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// HTTPClient talks to a memos server over its v1 REST API.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	log     logging.Logger
	now     func() time.Time

	mu    sync.RWMutex
	token string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q: %w", opts.BaseURL, ErrInvalidServer)
	}

	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	c := &HTTPClient{baseURL: u, token: opts.AccessToken, http: hc, log: log, now: time.Now}
	c.cb = newBreaker(u.Host, opts.Breaker, log)
	return c, nil
}

func newBreaker(name string, s BreakerSettings, log logging.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			minRequests := s.MinRequests
			if minRequests == 0 {
				minRequests = 5
			}
			if counts.Requests < minRequests {
				return false
			}
			threshold := s.FailureThreshold
			if threshold <= 0 {
				threshold = 0.8
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Only transient failures say anything about server health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// SetAccessToken replaces the bearer token used for subsequent calls.
func (c *HTTPClient) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, header http.Header, in, out any) error {
	if err := checkTokenExpiry(c.accessToken(), c.now()); err != nil {
		return err
	}
	return c.execute(ctx, method, path, query, header, in, out)
}

// execute runs the request through the circuit breaker without the token check.
func (c *HTTPClient) execute(ctx context.Context, method, path string, query url.Values, header http.Header, in, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, query, header, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnavailable)
	}
	return err
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, query url.Values, header http.Header, in, out any) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.accessToken(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	c.log.Debug(ctx, "remote call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode %s %s: %v: %w", method, path, err, ErrInvalidServer)
	}
	return nil
}

// statusError maps a non-2xx response to a StatusError.
func statusError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(b, &payload); err != nil {
		payload.Message = strings.TrimSpace(string(b))
	}

	e := &StatusError{StatusCode: resp.StatusCode, Message: payload.Message}
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		e.kind = ErrUnauthenticated
	case resp.StatusCode == http.StatusNotFound:
		e.kind = ErrNotFound
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusPreconditionFailed:
		e.kind = ErrConflict
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		e.kind = ErrUnavailable
	default:
		e.kind = ErrRejected
	}
	return e
}

// Ping checks that the host serves the memos API. Anything that is not a
// JSON workspace profile is reported as ErrInvalidServer.
func (c *HTTPClient) Ping(ctx context.Context) error {
	var profile struct {
		Version string `json:"version"`
	}
	err := c.execute(ctx, http.MethodGet, "/api/v1/workspace/profile", nil, nil, nil, &profile)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRejected):
		return fmt.Errorf("ping: %v: %w", err, ErrInvalidServer)
	case err != nil:
		return err
	case profile.Version == "":
		return fmt.Errorf("ping: no version in workspace profile: %w", ErrInvalidServer)
	}
	return nil
}
