package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const romeReply = `{
  "location": {"name": "Rome", "region": "Lazio", "country": "Italy", "lat": 41.9, "lon": 12.48, "localtime": "2025-05-01 10:00"},
  "current": {"last_updated": "2025-05-01 09:45", "temp_c": 21.5, "temp_f": 70.7, "humidity": 48,
              "wind_kph": 9.4, "precip_mm": 0, "cloud": 25, "uv": 6,
              "condition": {"text": "Partly cloudy", "icon": "//cdn/116.png", "code": 1003}}
}`

func newWeatherServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/current.json", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		switch r.URL.Query().Get("q") {
		case "Rome", "41.9,12.48":
			_, _ = w.Write([]byte(romeReply))
		case "Nowhere":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
}

func TestService_Current(t *testing.T) {
	t.Run("Should decode the current conditions", func(t *testing.T) {
		var calls atomic.Int32
		srv := newWeatherServer(t, &calls)
		defer srv.Close()
		svc := NewService(Config{BaseURL: srv.URL, APIKey: "k"}, nil)

		cw, err := svc.Current(context.Background(), " Rome ")

		require.NoError(t, err)
		assert.Equal(t, "Rome", cw.Location.Name)
		assert.Equal(t, 21.5, cw.Current.TempC)
		assert.Equal(t, 48, cw.Current.Humidity)
		assert.Equal(t, "Partly cloudy", cw.Current.Condition.Text)
	})

	t.Run("Should serve repeated lookups from the cache", func(t *testing.T) {
		var calls atomic.Int32
		srv := newWeatherServer(t, &calls)
		defer srv.Close()
		svc := NewService(Config{BaseURL: srv.URL, APIKey: "k", CacheTTL: time.Minute}, nil)

		_, err := svc.Current(context.Background(), "Rome")
		require.NoError(t, err)
		_, err = svc.Current(context.Background(), "rome")
		require.NoError(t, err)

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should format coordinates", func(t *testing.T) {
		var calls atomic.Int32
		srv := newWeatherServer(t, &calls)
		defer srv.Close()
		svc := NewService(Config{BaseURL: srv.URL, APIKey: "k"}, nil)

		cw, err := svc.CurrentByCoordinates(context.Background(), 41.9, 12.48)

		require.NoError(t, err)
		assert.Equal(t, "Italy", cw.Location.Country)
	})

	t.Run("Should report unknown locations without tripping the breaker", func(t *testing.T) {
		var calls atomic.Int32
		srv := newWeatherServer(t, &calls)
		defer srv.Close()
		svc := NewService(Config{BaseURL: srv.URL, APIKey: "k", BreakerFailures: 1}, nil)

		_, err := svc.Current(context.Background(), "Nowhere")
		var le *LocationError
		require.True(t, errors.As(err, &le))
		assert.Contains(t, le.Message, "No matching location")

		_, err = svc.Current(context.Background(), "Rome")
		assert.NoError(t, err)
	})

	t.Run("Should fail on server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := newWeatherServer(t, &calls)
		defer srv.Close()
		svc := NewService(Config{BaseURL: srv.URL, APIKey: "k"}, nil)

		_, err := svc.Current(context.Background(), "Atlantis")

		assert.ErrorContains(t, err, "status 500")
	})

	t.Run("Should validate input before calling out", func(t *testing.T) {
		svc := NewService(Config{APIKey: "k"}, nil)
		_, err := svc.Current(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrLocationRequired)

		svc = NewService(Config{}, nil)
		_, err = svc.Current(context.Background(), "Rome")
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})
}
