package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func newTestClient(srv *httptest.Server) *Client {
	return New("test", Config{Client: srv.Client(), Backoff: fastBackoff})
}

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShouldRetry(tc.status), "status %d", tc.status)
	}
}

func TestBackoffTime(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, DefaultBackoff.BackoffTime(0))
	assert.Equal(t, time.Second, DefaultBackoff.BackoffTime(1))
	assert.Equal(t, 5*time.Second, DefaultBackoff.BackoffTime(10))
}

func TestGetSendsQuery(t *testing.T) {
	var gotMethod, gotQuery, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	q := url.Values{}
	q.Set("latitude", "-37.1")
	q.Set("hourly", "weather_code")

	resp, err := newTestClient(srv).Get(context.Background(), srv.URL+"/v1/forecast", q)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "/v1/forecast", gotPath)
	assert.Equal(t, "hourly=weather_code&latitude=-37.1", gotQuery)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = io.WriteString(w, `{"ok": true}`)
		}
	}))
	defer srv.Close()

	resp, err := newTestClient(srv).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Get(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrServerError)
	assert.EqualValues(t, fastBackoff.MaxRetries+1, atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": true, "reason": "Cannot initialize WeatherVariable from invalid String value foo"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Get(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "invalid String value foo")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClientErrorsDoNotOpenCircuit(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": true, "reason": "bad field"}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	for i := 0; i < 10; i++ {
		_, err := client.Get(context.Background(), srv.URL, nil)
		require.ErrorIs(t, err, ErrUnexpectedStatus)
	}

	healthy.Store(true)
	resp, err := client.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestServerErrorsOpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New("test", Config{Client: srv.Client(), Backoff: BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond}})
	for i := 0; i < 6; i++ {
		_, err := client.Get(context.Background(), srv.URL, nil)
		require.ErrorIs(t, err, ErrServerError)
	}

	_, err := client.Get(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestGetHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New("test", Config{
		Client:  srv.Client(),
		Backoff: BackoffConfig{MaxRetries: 5, InitialInterval: time.Hour},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetWithRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := New("test", Config{Client: srv.Client(), Backoff: fastBackoff, RateLimit: 1000, Burst: 1})
	for i := 0; i < 3; i++ {
		resp, err := c.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}
}

func TestGetRequiresClient(t *testing.T) {
	c := New("test", Config{Backoff: fastBackoff})
	_, err := c.Get(context.Background(), "http://example.invalid", nil)
	assert.ErrorIs(t, err, errNoHTTPClient)
}
