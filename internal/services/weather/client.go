// Package weather serves current conditions from WeatherAPI.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/soil_advisor/pkg/breaker"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/cache"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/metrics"
)

var (
	ErrLocationRequired = errors.New("location is required")
	ErrMissingAPIKey    = errors.New("missing weather api key")
)

// LocationError is a location WeatherAPI could not resolve.
type LocationError struct {
	Location string
	Message  string
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("weather: location %q: %s", e.Location, e.Message)
}

type Config struct {
	BaseURL   string // default http://api.weatherapi.com
	APIKey    string
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int

	BreakerFailures int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration
}

// Service fetches current weather, caching replies per location.
type Service struct {
	http    *resty.Client
	apiKey  string
	cache   *cache.Cache[string, CurrentWeather]
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewService(cfg Config, m *metrics.Metrics) *Service {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "http://api.weatherapi.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		http:   resty.New().SetBaseURL(base).SetTimeout(timeout),
		apiKey: cfg.APIKey,
		cache:  cache.New[string, CurrentWeather](cfg.CacheSize, cfg.CacheTTL),
		breaker: breaker.New(breaker.Settings{
			Name:     "weatherapi",
			Failures: cfg.BreakerFailures,
			OpenFor:  cfg.BreakerOpenFor,
			Interval: cfg.BreakerInterval,
			IsSuccessful: func(err error) bool {
				var le *LocationError
				return err == nil || errors.As(err, &le)
			},
		}),
		metrics: m,
	}
}

// Current returns the current conditions at location (a city name, postcode,
// or "lat,lon").
func (s *Service) Current(ctx context.Context, location string) (CurrentWeather, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return CurrentWeather{}, ErrLocationRequired
	}
	if s.apiKey == "" {
		return CurrentWeather{}, ErrMissingAPIKey
	}

	key := strings.ToLower(location)
	if cw, ok := s.cache.Get(key); ok {
		logger.FromContext(ctx).Debug("weather cache hit", "location", location)
		return cw, nil
	}

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx, location)
	})
	s.metrics.Upstream("weather", err)
	if err != nil {
		return CurrentWeather{}, fmt.Errorf("weather: %w", err)
	}
	cw := res.(CurrentWeather)
	s.cache.Set(key, cw)
	return cw, nil
}

// CurrentByCoordinates is Current for a latitude/longitude pair.
func (s *Service) CurrentByCoordinates(ctx context.Context, lat, lon float64) (CurrentWeather, error) {
	q := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
	return s.Current(ctx, q)
}

func (s *Service) fetch(ctx context.Context, location string) (CurrentWeather, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"key": s.apiKey, "q": location}).
		Get("/v1/current.json")
	if err != nil {
		return CurrentWeather{}, fmt.Errorf("request error: %w", err)
	}
	if resp.IsError() {
		var ae apiError
		if resp.StatusCode() == 400 && json.Unmarshal(resp.Body(), &ae) == nil && ae.Error.Message != "" {
			return CurrentWeather{}, &LocationError{Location: location, Message: ae.Error.Message}
		}
		return CurrentWeather{}, fmt.Errorf("failed to fetch weather: status %d", resp.StatusCode())
	}

	var cw CurrentWeather
	if err := json.Unmarshal(resp.Body(), &cw); err != nil {
		return CurrentWeather{}, fmt.Errorf("decode error: %w", err)
	}
	return cw, nil
}
