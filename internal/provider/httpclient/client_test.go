package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{Name: "test", BaseURL: srv.URL})
}

func TestDoDecodesJSONAndSendsHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.Do(context.Background(), Request{
		Method:  http.MethodPost,
		Path:    "/x",
		Query:   url.Values{"limit": {"5"}},
		Headers: map[string]string{"Authorization": "Bearer k"},
		Body:    map[string]int{"skip": 0},
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestDoClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusBadGateway, ErrTransient},
		{http.StatusServiceUnavailable, ErrTransient},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		})
		err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, tt.status, statusErr.StatusCode)
	}
}

func TestDoBadRequestIsNotTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad campaign id", http.StatusBadRequest)
	})
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "bad campaign id")
}

func TestBreakerOpensAfterConsecutiveTransientFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_ = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)
	}
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(5), hits.Load())
}

func TestBreakerIsTrackedPerAccount(t *testing.T) {
	var hitsB atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Account") == "a" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		hitsB.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	call := func(acct string) error {
		return c.Do(context.Background(), Request{
			Method:  http.MethodGet,
			Path:    "/",
			Headers: map[string]string{"X-Account": acct},
			Account: acct,
		}, nil)
	}

	for i := 0; i < 5; i++ {
		_ = call("a")
	}
	err := call("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")

	require.NoError(t, call("b"))
	assert.Equal(t, int32(1), hitsB.Load())
}

func TestBreakerIgnoresCredentialFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	for i := 0; i < 7; i++ {
		err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}, nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
	assert.Equal(t, int32(7), hits.Load())
}

func TestDoReturnsContextError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransient(err))
}
