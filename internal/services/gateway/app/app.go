// Package app is the HTTP surface of the soil advisor.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/soil_advisor/internal/model"
	"github.com/LeonardoBeccarini/soil_advisor/internal/services/weather"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/auth"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/logger"
	"github.com/LeonardoBeccarini/soil_advisor/pkg/metrics"
)

// Analyzer is the soil analysis service seen from the routes.
type Analyzer interface {
	Analyze(ctx context.Context, token string, params model.SensorSessionParams) (model.SuccessMessage, error)
	List(ctx context.Context, token string) ([]model.SensorReadingsWithInterpretation, error)
	ListByFarm(ctx context.Context, token, farmName string) ([]model.SensorReadingsWithInterpretation, error)
}

// WeatherProvider returns current conditions for a location.
type WeatherProvider interface {
	Current(ctx context.Context, location string) (weather.CurrentWeather, error)
	CurrentByCoordinates(ctx context.Context, lat, lon float64) (weather.CurrentWeather, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) bool

type Config struct {
	// Verifier checks access tokens on routes that do not go through the
	// soil service. Requests are rejected when it is nil.
	Verifier auth.Verifier

	HTTPTimeout time.Duration
	Metrics     *metrics.Metrics
	Logger      logger.Logger

	// Checks are evaluated by /readyz; /healthz reports them without failing.
	Checks map[string]Check
}

type Gateway struct {
	cfg      Config
	soil     Analyzer
	weather  WeatherProvider
	validate *validator.Validate
}

func NewGateway(cfg Config, soil Analyzer, weather WeatherProvider) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &Gateway{
		cfg:      cfg,
		soil:     soil,
		weather:  weather,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router builds the route table with its middleware chain.
func (g *Gateway) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(g.withLogger, g.withMetrics)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(g.withTimeout, requireBearer)
	api.HandleFunc("/save-sensor-readings", g.HandleSaveSensorReadings).Methods(http.MethodPost)
	api.HandleFunc("/get-soil-analysis-data", g.HandleListSoilAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/get-soil-analysis-by-farm/{farmName}", g.HandleListSoilAnalysisByFarm).Methods(http.MethodGet)
	api.HandleFunc("/weather/current", g.HandleCurrentWeatherByCoordinates).
		Queries("lat", "{lat}", "lon", "{lon}").Methods(http.MethodGet)
	api.HandleFunc("/weather/current/{location}", g.HandleCurrentWeather).Methods(http.MethodGet)

	r.Handle("/healthz", g.healthHandler()).Methods(http.MethodGet)
	r.Handle("/readyz", g.readyHandler()).Methods(http.MethodGet)
	if g.cfg.Metrics != nil {
		r.Handle("/metrics", g.cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	return enableCORS(r)
}
