package connector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/source-open-meteo/internal/metrics"
	"github.com/i474232898/source-open-meteo/internal/openmeteo"
	"github.com/i474232898/source-open-meteo/internal/store"
	"github.com/i474232898/source-open-meteo/internal/transport"
)

const testConfig = `{
	"latitude": "-37.1",
	"longitude": "70.6",
	"wind_speed_unit": "knots",
	"hourly": ["weather_code", "temperature_2m"],
	"daily": ["weather_code", "precipitation_sum"]
}`

const hourlyBody = `{"hourly": {"time": ["2024-02-14T00:00", "2024-02-14T01:00"], "weather_code": [0, 2], "temperature_2m": [11.2, 11.9]}}`
const dailyBody = `{"daily": {"time": ["2024-02-14"], "weather_code": [80], "precipitation_sum": [3.4]}}`

// fakeAPI answers like Open-Meteo, choosing the payload from the query.
func fakeAPI(t *testing.T, daily string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		assert.Equal(t, "kn", q.Get("wind_speed_unit"))
		assert.Equal(t, "GMT", q.Get("timezone"))
		assert.False(t, q.Has("temperature_unit"))

		switch {
		case q.Has("hourly"):
			assert.Equal(t, "weather_code,temperature_2m", q.Get("hourly"))
			_, _ = io.WriteString(w, hourlyBody)
		case q.Has("daily"):
			assert.Equal(t, "weather_code,precipitation_sum", q.Get("daily"))
			_, _ = io.WriteString(w, daily)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func newTestService(t *testing.T, srv *httptest.Server, st Store) *Service {
	t.Helper()
	client := transport.New("openmeteo-test", transport.Config{
		Client:  srv.Client(),
		Backoff: transport.BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond},
	})
	return NewService(client, srv.URL+"/v1", st, metrics.New(prometheus.NewRegistry()))
}

func mustConfig(t *testing.T) openmeteo.SourceConfig {
	t.Helper()
	cfg, err := openmeteo.ParseSourceConfig([]byte(testConfig))
	require.NoError(t, err)
	return cfg
}

func TestReadEmitsBothStreams(t *testing.T) {
	srv := fakeAPI(t, dailyBody)
	defer srv.Close()

	svc := newTestService(t, srv, nil)

	var streams []string
	var daily []openmeteo.Record
	err := svc.Read(context.Background(), mustConfig(t), nil, func(stream string, rec openmeteo.Record) error {
		streams = append(streams, stream)
		if stream == "daily_forecast" {
			daily = append(daily, rec)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"hourly_forecast", "hourly_forecast", "daily_forecast"}, streams)
	require.Len(t, daily, 1)
	code, _ := daily[0].Get("weather_code")
	assert.Equal(t, "Rain showers: Slight intensity", code)
	_, ok := daily[0].Get("updated_at")
	assert.True(t, ok)
}

func TestReadAbortsOnUnknownCode(t *testing.T) {
	srv := fakeAPI(t, `{"daily": {"time": ["2024-02-14"], "weather_code": [42]}}`)
	defer srv.Close()

	svc := newTestService(t, srv, nil)

	err := svc.Read(context.Background(), mustConfig(t), nil, func(string, openmeteo.Record) error { return nil })
	assert.ErrorIs(t, err, openmeteo.ErrUnknownWeatherCode)
}

func TestReadStopsWhenEmitFails(t *testing.T) {
	srv := fakeAPI(t, dailyBody)
	defer srv.Close()

	svc := newTestService(t, srv, nil)
	sentinel := errors.New("downstream closed")

	calls := 0
	err := svc.Read(context.Background(), mustConfig(t), nil, func(string, openmeteo.Record) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestReadMissingCoordinates(t *testing.T) {
	srv := fakeAPI(t, dailyBody)
	defer srv.Close()

	svc := newTestService(t, srv, nil)
	err := svc.Read(context.Background(), openmeteo.SourceConfig{}, nil, func(string, openmeteo.Record) error { return nil })
	assert.ErrorIs(t, err, openmeteo.ErrMissingField)
}

func TestReadSelectedStreamOnly(t *testing.T) {
	var hourlyCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("hourly") {
			hourlyCalls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error": true, "reason": "bad hourly field"}`)
			return
		}
		_, _ = io.WriteString(w, dailyBody)
	}))
	defer srv.Close()

	svc := newTestService(t, srv, nil)

	var daily []openmeteo.Record
	collect := func(stream string, rec openmeteo.Record) error {
		assert.Equal(t, "daily_forecast", stream)
		daily = append(daily, rec)
		return nil
	}

	err := svc.Read(context.Background(), mustConfig(t), []openmeteo.Variant{openmeteo.Daily}, collect)
	require.NoError(t, err)
	assert.Len(t, daily, 1)
	assert.Zero(t, hourlyCalls.Load())

	// A configuration without an hourly list can still read the daily stream.
	dailyOnly, err := openmeteo.ParseSourceConfig([]byte(`{"latitude": "-37.1", "longitude": "70.6", "daily": ["weather_code"]}`))
	require.NoError(t, err)

	daily = nil
	err = svc.Read(context.Background(), dailyOnly, []openmeteo.Variant{openmeteo.Daily}, collect)
	require.NoError(t, err)
	assert.Len(t, daily, 1)
	assert.Zero(t, hourlyCalls.Load())

	// Reading everything still surfaces the hourly failure.
	err = svc.Read(context.Background(), mustConfig(t), nil, func(string, openmeteo.Record) error { return nil })
	assert.ErrorContains(t, err, "bad hourly field")
}

func TestSyncAndStore(t *testing.T) {
	srv := fakeAPI(t, dailyBody)
	defer srv.Close()

	mem := store.NewMemoryStore(10, 0)
	svc := newTestService(t, srv, mem)
	syncedAt := time.Date(2024, 2, 14, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return syncedAt }

	require.NoError(t, svc.SyncAndStore(context.Background(), mustConfig(t)))

	hourly, err := svc.GetLatest("hourly_forecast")
	require.NoError(t, err)
	assert.Len(t, hourly.Records, 2)
	assert.Equal(t, syncedAt, hourly.SyncedAt)

	daily, err := svc.GetLatest("daily_forecast")
	require.NoError(t, err)
	assert.Len(t, daily.Records, 1)
	assert.NotEqual(t, hourly.ID, daily.ID)
}

func TestSyncAndStoreKeepsLastGoodBatch(t *testing.T) {
	srv := fakeAPI(t, `{"daily": {"time": ["2024-02-14"], "weather_code": [42]}}`)
	defer srv.Close()

	mem := store.NewMemoryStore(10, 0)
	svc := newTestService(t, srv, mem)

	err := svc.SyncAndStore(context.Background(), mustConfig(t))
	require.Error(t, err)

	_, err = svc.GetLatest("hourly_forecast")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckDoesNotCallAPI(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	svc := newTestService(t, srv, nil)
	res := svc.Check(mustConfig(t))

	assert.True(t, res.Succeeded)
	assert.Zero(t, calls)
}
