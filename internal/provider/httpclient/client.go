// Package httpclient is the shared JSON transport for provider clients. It
// adds request pacing, a circuit breaker and error classification on top of
// net/http.
package httpclient

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

	"bluereach_backend/platform/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Options configures a Client.
type Options struct {
	Name              string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Log               *logger.Logger
}

// Client performs JSON requests against one provider API. Pacing and the
// circuit are tracked per provider account, so one tenant's failing key does
// not trip requests made with another.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	limit   rate.Limit
	log     *logger.Logger

	mu       sync.Mutex
	accounts map[string]*account
}

type account struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// Request describes one API call. Account identifies the provider account
// the call is made with, usually its API key.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    any
	Account string
}

// New creates a provider transport.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		name:     opts.Name,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		limit:    limit,
		log:      opts.Log,
		accounts: make(map[string]*account),
	}
}

func (c *Client) account(key string) *account {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.accounts[key]
	if !ok {
		a = &account{
			breaker: newBreaker(c.name),
			limiter: rate.NewLimiter(c.limit, 1),
		}
		c.accounts[key] = a
	}
	return a
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only transient failures count against the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
}

// Do sends req and decodes a JSON response into out. out may be nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	acct := c.account(req.Account)
	if err := acct.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := acct.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, req, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s circuit open: %w: %w", c.name, ErrTransient, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, req Request, out any) error {
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", c.name, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.name, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if c.log != nil {
			c.log.Warn("provider request failed", "provider", c.name, "path", req.Path, "error", err)
		}
		return fmt.Errorf("%s request: %w: %w", c.name, ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			Provider:   c.name,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
		if c.log != nil {
			c.log.Warn("provider request error", "provider", c.name, "path", req.Path, "status", resp.StatusCode)
		}
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}
